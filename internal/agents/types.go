package agents

import (
	"context"
	"time"

	"quorum/internal/domain/fusion"
)

// Worker names used by the analysis workflow.
const (
	NewsAgent      = "news_agent"
	FinancialAgent = "financial_agent"
	TechnicalAgent = "technical_agent"
	DataAgent      = "data_agent"
	DecisionAgent  = "decision_agent"
	TradingAgent   = "trading_agent"
)

// TaskKind enumerates every task a worker may be asked to handle.
type TaskKind string

const (
	TaskGetDisclosures   TaskKind = "get_disclosures"
	TaskAnalyzeSentiment TaskKind = "analyze_sentiment"

	TaskCalculateRatios TaskKind = "calculate_ratios"
	TaskAnalyzeHealth   TaskKind = "analyze_health"

	TaskGenerateSignals     TaskKind = "generate_signals"
	TaskCalculateIndicators TaskKind = "calculate_indicators"

	TaskCollectMarketData TaskKind = "collect_market_data"
	TaskCombineAgentData  TaskKind = "combine_agent_data"
	TaskMakeDecision      TaskKind = "make_investment_decision"

	TaskCalculateTradeSize TaskKind = "calculate_trade_size"
	TaskExecuteTrade       TaskKind = "execute_trade"
)

// Task is an immutable unit of work routed to one worker.
type Task struct {
	Kind   TaskKind
	Params map[string]any
}

// NewTask builds a task, copying params so later caller mutation cannot leak in.
func NewTask(kind TaskKind, params map[string]any) Task {
	cp := make(map[string]any, len(params))
	for k, v := range params {
		cp[k] = v
	}
	return Task{Kind: kind, Params: cp}
}

// String returns the string param under key, or def.
func (t Task) String(key, def string) string {
	if v, ok := t.Params[key].(string); ok && v != "" {
		return v
	}
	return def
}

// Int returns the integer param under key, or def.
func (t Task) Int(key string, def int) int {
	switch v := t.Params[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return def
}

// Float returns the numeric param under key, or def.
func (t Task) Float(key string, def float64) float64 {
	switch v := t.Params[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return def
}

// ErrorKind classifies a failed TaskResult.
type ErrorKind string

const (
	ErrorNone            ErrorKind = ""
	ErrorWorkerNotFound  ErrorKind = "worker_not_found"
	ErrorWorkerFault     ErrorKind = "worker_fault"
	ErrorUnsupportedTask ErrorKind = "unsupported_task"
	ErrorTimeout         ErrorKind = "timeout"
	ErrorInvalidOrder    ErrorKind = "invalid_order"
)

// TaskResult is the uniform outcome of a dispatch. Payload is nil whenever OK is false.
type TaskResult struct {
	OK        bool          `json:"ok"`
	Payload   any           `json:"payload,omitempty"`
	Error     string        `json:"error,omitempty"`
	ErrorKind ErrorKind     `json:"error_kind,omitempty"`
	Duration  time.Duration `json:"duration"`
}

// Success builds an ok result.
func Success(payload any, d time.Duration) TaskResult {
	return TaskResult{OK: true, Payload: payload, Duration: d}
}

// Failure builds a failed result.
func Failure(kind ErrorKind, err error, d time.Duration) TaskResult {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return TaskResult{OK: false, Error: msg, ErrorKind: kind, Duration: d}
}

// PayloadAs extracts a typed payload from an ok result.
func PayloadAs[T any](r TaskResult) (T, bool) {
	var zero T
	if !r.OK {
		return zero, false
	}
	v, ok := r.Payload.(T)
	return v, ok
}

// Worker is a capability-tagged task handler.
type Worker interface {
	Name() string
	CanHandle(task Task) bool
	Process(ctx context.Context, task Task) (any, error)
}

// Contributor is implemented by analyst reports that feed signal fusion.
type Contributor interface {
	Source() string
	SubResult() fusion.SubResult
}

// WorkerRecord holds the rolling statistics the registry keeps per worker.
type WorkerRecord struct {
	Name        string     `json:"name"`
	Tags        []string   `json:"tags"`
	SuccessRate float64    `json:"success_rate"`
	TaskCount   int64      `json:"task_count"`
	LastUsed    *time.Time `json:"last_used,omitempty"`
}

// HasTag reports whether the worker declared the capability tag.
func (r WorkerRecord) HasTag(tag string) bool {
	for _, t := range r.Tags {
		if t == tag {
			return true
		}
	}
	return false
}
