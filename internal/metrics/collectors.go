package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// AgentStat is the per-agent view the registry collector exports.
type AgentStat struct {
	Name        string
	SuccessRate float64
	TaskCount   int64
}

// AgentStatsFunc returns the current agent statistics.
type AgentStatsFunc func() []AgentStat

// RegistryCollector exports agent registry statistics at scrape time
type RegistryCollector struct {
	stats AgentStatsFunc

	successRate *prometheus.Desc
	taskCount   *prometheus.Desc
	registered  *prometheus.Desc
}

// NewRegistryCollector creates a collector reading from stats on every scrape
func NewRegistryCollector(stats AgentStatsFunc) *RegistryCollector {
	return &RegistryCollector{
		stats: stats,
		successRate: prometheus.NewDesc(
			"quorum_agent_success_rate",
			"Running success rate per agent",
			[]string{"agent"}, nil,
		),
		taskCount: prometheus.NewDesc(
			"quorum_agent_task_count",
			"Tasks dispatched per agent",
			[]string{"agent"}, nil,
		),
		registered: prometheus.NewDesc(
			"quorum_agents_registered",
			"Number of registered agents",
			nil, nil,
		),
	}
}

// Describe implements prometheus.Collector
func (c *RegistryCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.successRate
	ch <- c.taskCount
	ch <- c.registered
}

// Collect implements prometheus.Collector
func (c *RegistryCollector) Collect(ch chan<- prometheus.Metric) {
	stats := c.stats()
	for _, s := range stats {
		ch <- prometheus.MustNewConstMetric(c.successRate, prometheus.GaugeValue, s.SuccessRate, s.Name)
		ch <- prometheus.MustNewConstMetric(c.taskCount, prometheus.CounterValue, float64(s.TaskCount), s.Name)
	}
	ch <- prometheus.MustNewConstMetric(c.registered, prometheus.GaugeValue, float64(len(stats)))
}
