package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"quorum/pkg/errors"
)

var (
	// Dispatch metrics
	AgentDispatches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quorum_agent_dispatch_total",
			Help: "Total number of task dispatches per agent",
		},
		[]string{"agent", "kind", "status"}, // status: success|error|timeout|not_found
	)

	AgentDispatchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "quorum_agent_dispatch_duration_seconds",
			Help:    "Task dispatch duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"agent"},
	)

	// Workflow metrics
	WorkflowRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quorum_workflow_runs_total",
			Help: "Total number of analysis workflow runs",
		},
		[]string{"status"}, // status: COMPLETE|PARTIAL
	)

	WorkflowDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "quorum_workflow_duration_seconds",
			Help:    "End-to-end workflow duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
	)

	WorkflowStages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quorum_workflow_stage_total",
			Help: "Workflow stage outcomes",
		},
		[]string{"stage", "outcome"}, // outcome: success|failed|omitted
	)

	Recommendations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quorum_recommendations_total",
			Help: "Final recommendations by action",
		},
		[]string{"action"},
	)

	// Execution simulator metrics
	Executions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quorum_executions_total",
			Help: "Simulated executions",
		},
		[]string{"side", "status"}, // status: filled|rejected
	)

	ExecutionSlippage = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "quorum_execution_slippage_pct",
			Help:    "Simulated slippage in percent",
			Buckets: []float64{0.01, 0.05, 0.1, 0.2, 0.3, 0.5, 0.75},
		},
	)

	ExecutionFees = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "quorum_execution_fees_total",
			Help: "Total simulated fees charged",
		},
	)

	// Market data metrics
	DataSourceCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quorum_datasource_calls_total",
			Help: "Market data provider calls",
		},
		[]string{"provider", "method", "status"},
	)

	DataSourceLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "quorum_datasource_latency_seconds",
			Help:    "Market data provider latency in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 15},
		},
		[]string{"provider", "method"},
	)

	// Background worker metrics
	WorkerExecutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quorum_worker_executions_total",
			Help: "Total number of background worker executions",
		},
		[]string{"worker", "status"},
	)

	WorkerLastRun = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "quorum_worker_last_run_timestamp",
			Help: "Unix timestamp of last background worker execution",
		},
		[]string{"worker"},
	)

	KafkaMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quorum_kafka_messages_total",
			Help: "Events published to Kafka",
		},
		[]string{"topic", "status"},
	)
)

var initOnce sync.Once

// Init registers all collectors with the default registry. Safe to call more than once.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			AgentDispatches,
			AgentDispatchDuration,
			WorkflowRuns,
			WorkflowDuration,
			WorkflowStages,
			Recommendations,
			Executions,
			ExecutionSlippage,
			ExecutionFees,
			DataSourceCalls,
			DataSourceLatency,
			WorkerExecutions,
			WorkerLastRun,
			KafkaMessages,
		)
	})
}

// Handler returns the HTTP handler for scraping
func Handler() http.Handler {
	return promhttp.Handler()
}

// status is the outcome label: "success" or the error code
func status(err error) string {
	if err == nil {
		return "success"
	}
	return errors.Code(err)
}

// RecordDispatch records one task dispatch
func RecordDispatch(agent, kind, outcome string, duration time.Duration) {
	AgentDispatches.WithLabelValues(agent, kind, outcome).Inc()
	AgentDispatchDuration.WithLabelValues(agent).Observe(duration.Seconds())
}

// RecordWorkflow records a finished workflow run
func RecordWorkflow(completion string, duration time.Duration) {
	WorkflowRuns.WithLabelValues(completion).Inc()
	WorkflowDuration.Observe(duration.Seconds())
}

// RecordStage records a workflow stage outcome
func RecordStage(stage, outcome string) {
	WorkflowStages.WithLabelValues(stage, outcome).Inc()
}

// RecordRecommendation records the final action of a workflow
func RecordRecommendation(action string) {
	Recommendations.WithLabelValues(action).Inc()
}

// RecordExecution records a simulated fill
func RecordExecution(side string, slippagePct, fees float64) {
	Executions.WithLabelValues(side, "filled").Inc()
	ExecutionSlippage.Observe(slippagePct)
	ExecutionFees.Add(fees)
}

// RecordRejectedOrder records an order that failed validation
func RecordRejectedOrder(side string) {
	Executions.WithLabelValues(side, "rejected").Inc()
}

// RecordDataSourceCall records a market data provider call
func RecordDataSourceCall(provider, method string, latency time.Duration, err error) {
	DataSourceCalls.WithLabelValues(provider, method, status(err)).Inc()
	DataSourceLatency.WithLabelValues(provider, method).Observe(latency.Seconds())
}

// RecordWorkerExecution records a background worker execution
func RecordWorkerExecution(worker string, err error) {
	WorkerExecutions.WithLabelValues(worker, status(err)).Inc()
	WorkerLastRun.WithLabelValues(worker).SetToCurrentTime()
}

// RecordKafkaMessage records an event publish attempt
func RecordKafkaMessage(topic string, err error) {
	KafkaMessages.WithLabelValues(topic, status(err)).Inc()
}
