package workflow

import (
	"fmt"
	"math"
	"time"
)

// Health levels.
const (
	HealthHealthy = "HEALTHY"
	HealthWarning = "WARNING"
)

const (
	minSuccessRate  = 0.8
	minActiveFactor = 0.5
)

// AgentHealth is the per-worker part of a health report.
type AgentHealth struct {
	Name        string     `json:"name"`
	Active      bool       `json:"active"`
	SuccessRate float64    `json:"success_rate"` // percent, one decimal
	TaskCount   int64      `json:"task_count"`
	LastUsed    *time.Time `json:"last_used,omitempty"`
	Warning     string     `json:"warning,omitempty"`
}

// HealthReport summarizes registry statistics and run history.
type HealthReport struct {
	Overall         string        `json:"overall"`
	Timestamp       time.Time     `json:"timestamp"`
	Agents          []AgentHealth `json:"agents"`
	TotalAgents     int           `json:"total_agents"`
	ActiveAgents    int           `json:"active_agents"`
	TotalWorkflows  int           `json:"total_workflows"`
	AvgDuration     time.Duration `json:"avg_duration"`
	Recommendations []string      `json:"recommendations"`
}

// Health builds a report. An agent is active once it has handled a task.
func (e *Engine) Health() HealthReport {
	report := HealthReport{
		Overall:         HealthHealthy,
		Timestamp:       e.now(),
		TotalWorkflows:  e.history.Len(),
		AvgDuration:     e.avgDuration(),
		Recommendations: []string{},
	}

	for _, rec := range e.registry.Snapshot() {
		h := AgentHealth{
			Name:        rec.Name,
			Active:      rec.LastUsed != nil,
			SuccessRate: math.Round(rec.SuccessRate*1000) / 10,
			TaskCount:   rec.TaskCount,
			LastUsed:    rec.LastUsed,
		}
		if h.Active {
			report.ActiveAgents++
		}
		if rec.SuccessRate < minSuccessRate {
			h.Warning = "low success rate"
			report.Recommendations = append(report.Recommendations, fmt.Sprintf("check %s performance", rec.Name))
		}
		report.Agents = append(report.Agents, h)
	}
	report.TotalAgents = len(report.Agents)

	if report.TotalAgents == 0 || float64(report.ActiveAgents)/float64(report.TotalAgents) < minActiveFactor {
		report.Overall = HealthWarning
		report.Recommendations = append(report.Recommendations, "low agent utilization")
	}
	return report
}

// Warnings lists the per-agent warnings of a report.
func (r HealthReport) Warnings() []string {
	var out []string
	for _, a := range r.Agents {
		if a.Warning != "" {
			out = append(out, a.Name+": "+a.Warning)
		}
	}
	return out
}

func (e *Engine) avgDuration() time.Duration {
	keys := e.history.Keys()
	if len(keys) == 0 {
		return 0
	}
	var total time.Duration
	n := 0
	for _, k := range keys {
		if run, ok := e.history.Peek(k); ok {
			total += run.Duration()
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return total / time.Duration(n)
}
