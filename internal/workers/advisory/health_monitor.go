package advisory

import (
	"context"
	"time"

	"quorum/internal/agents/workflow"
	"quorum/internal/events"
	"quorum/internal/workers"
)

// HealthSource produces agent health reports.
type HealthSource interface {
	HealthReport() workflow.HealthReport
}

// AgentHealthMonitor logs degraded agents and publishes a health event while
// any agent or the system as a whole is degraded.
type AgentHealthMonitor struct {
	*workers.BaseWorker
	source HealthSource
	events *events.Publisher

	last string
}

// NewAgentHealthMonitor creates the worker
func NewAgentHealthMonitor(source HealthSource, publisher *events.Publisher, interval time.Duration) *AgentHealthMonitor {
	if publisher == nil {
		publisher = events.NewNoopPublisher()
	}
	return &AgentHealthMonitor{
		BaseWorker: workers.NewBaseWorker("agent_health_monitor", interval, true),
		source:     source,
		events:     publisher,
	}
}

// Run checks health once.
func (m *AgentHealthMonitor) Run(ctx context.Context) error {
	report := m.source.HealthReport()

	if report.Overall != m.last {
		m.Log().Infow("Agent health changed",
			"from", m.last,
			"to", report.Overall,
			"active", report.ActiveAgents,
			"total", report.TotalAgents,
		)
		m.last = report.Overall
	}

	warnings := report.Warnings()
	for _, w := range warnings {
		m.Log().Warnw("Agent degraded", "warning", w)
	}

	if report.Overall == workflow.HealthHealthy && len(warnings) == 0 {
		return nil
	}

	return m.events.PublishAgentHealth(ctx, &events.AgentHealth{
		BaseEvent: events.NewBaseEvent("agents.health", "agent_health_monitor"),
		Overall:   report.Overall,
		Active:    report.ActiveAgents,
		Total:     report.TotalAgents,
		Warnings:  append(warnings, report.Recommendations...),
	})
}

// LastStatus returns the overall status seen by the previous run.
func (m *AgentHealthMonitor) LastStatus() string {
	return m.last
}
