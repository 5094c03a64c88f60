package events

import (
	"context"
	"time"

	"github.com/google/uuid"

	"quorum/internal/adapters/kafka"
	"quorum/pkg/errors"
	"quorum/pkg/logger"
)

// Producer is the transport the publisher writes to. The kafka adapter
// satisfies it.
type Producer interface {
	Publish(ctx context.Context, topic string, key string, event interface{}) error
}

// BaseEvent carries the fields every event shares
type BaseEvent struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Source    string    `json:"source"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
}

// NewBaseEvent creates a base event with defaults
func NewBaseEvent(eventType, source string) BaseEvent {
	return BaseEvent{
		ID:        uuid.NewString(),
		Type:      eventType,
		Source:    source,
		Timestamp: time.Now().UTC(),
		Version:   "1.0",
	}
}

// WorkflowCompleted is emitted once per finished analysis run
type WorkflowCompleted struct {
	BaseEvent
	RunID             string   `json:"run_id"`
	Symbol            string   `json:"symbol"`
	Status            string   `json:"status"`
	StepsCompleted    int      `json:"steps_completed"`
	StepsAttempted    int      `json:"steps_attempted"`
	Action            string   `json:"action"`
	Confidence        float64  `json:"confidence"`
	CompositeScore    float64  `json:"composite_score"`
	RecommendedAmount string   `json:"recommended_amount,omitempty"`
	AgentsUtilized    []string `json:"agents_utilized"`
	DurationMs        int64    `json:"duration_ms"`
	Fallback          bool     `json:"fallback"`
}

// TradeExecuted is emitted for every simulated fill
type TradeExecuted struct {
	BaseEvent
	TradeID       string `json:"trade_id"`
	Symbol        string `json:"symbol"`
	Side          string `json:"side"`
	Quantity      string `json:"quantity"`
	ExecutedPrice string `json:"executed_price"`
	NetAmount     string `json:"net_amount"`
	TotalFees     string `json:"total_fees"`
	SlippagePct   string `json:"slippage_pct"`
}

// AgentHealth is emitted by the health monitor when the system degrades
type AgentHealth struct {
	BaseEvent
	Overall  string   `json:"overall"`
	Active   int      `json:"active"`
	Total    int      `json:"total"`
	Warnings []string `json:"warnings"`
}

// Publisher publishes domain events. A nil producer makes every publish a no-op.
type Publisher struct {
	producer Producer
	log      *logger.Logger
}

// NewPublisher creates a new event publisher
func NewPublisher(producer Producer) *Publisher {
	return &Publisher{
		producer: producer,
		log:      logger.Component("event_publisher"),
	}
}

// NewNoopPublisher creates a publisher that drops every event
func NewNoopPublisher() *Publisher {
	return NewPublisher(nil)
}

// Enabled reports whether events leave the process
func (p *Publisher) Enabled() bool {
	return p != nil && p.producer != nil
}

// PublishWorkflowCompleted publishes a workflow completion, keyed by symbol
func (p *Publisher) PublishWorkflowCompleted(ctx context.Context, event *WorkflowCompleted) error {
	return p.publish(ctx, kafka.TopicWorkflowCompleted, event.Symbol, event)
}

// PublishTradeExecuted publishes a simulated fill, keyed by symbol
func (p *Publisher) PublishTradeExecuted(ctx context.Context, event *TradeExecuted) error {
	return p.publish(ctx, kafka.TopicTradeExecuted, event.Symbol, event)
}

// PublishAgentHealth publishes a health report summary
func (p *Publisher) PublishAgentHealth(ctx context.Context, event *AgentHealth) error {
	return p.publish(ctx, kafka.TopicAgentHealth, event.Overall, event)
}

func (p *Publisher) publish(ctx context.Context, topic, key string, event interface{}) error {
	if !p.Enabled() {
		return nil
	}

	if err := p.producer.Publish(ctx, topic, key, event); err != nil {
		p.log.Warnw("Failed to publish event",
			"topic", topic,
			"key", key,
			"error", err,
		)
		return errors.Wrap(err, "send to kafka")
	}

	p.log.Debugw("Event published", "topic", topic, "key", key)
	return nil
}
