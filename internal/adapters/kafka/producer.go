package kafka

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"quorum/internal/metrics"
	"quorum/pkg/errors"
	"quorum/pkg/logger"
)

const (
	headerRunID  = "run_id"
	headerSymbol = "symbol"
)

// Producer publishes JSON events, one lazily created writer per topic
type Producer struct {
	cfg ProducerConfig
	log *logger.Logger

	mu      sync.Mutex
	writers map[string]*kafka.Writer
	closed  bool
}

// ProducerConfig holds producer configuration
type ProducerConfig struct {
	Brokers      []string
	WriteTimeout time.Duration
	BatchTimeout time.Duration
	RequiredAcks kafka.RequiredAcks
}

// NewProducer creates a producer. Nothing connects until the first Publish.
func NewProducer(cfg ProducerConfig) *Producer {
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if cfg.BatchTimeout <= 0 {
		// kafka-go batches for 1s by default
		cfg.BatchTimeout = 10 * time.Millisecond
	}
	if cfg.RequiredAcks == 0 {
		cfg.RequiredAcks = kafka.RequireOne
	}
	return &Producer{
		cfg:     cfg,
		writers: make(map[string]*kafka.Writer),
		log:     logger.Component("kafka_producer"),
	}
}

func (p *Producer) writer(topic string) (*kafka.Writer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, errors.Wrap(errors.ErrUnavailable, "producer closed")
	}
	if w, ok := p.writers[topic]; ok {
		return w, nil
	}

	w := &kafka.Writer{
		Addr:                   kafka.TCP(p.cfg.Brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		WriteTimeout:           p.cfg.WriteTimeout,
		BatchTimeout:           p.cfg.BatchTimeout,
		RequiredAcks:           p.cfg.RequiredAcks,
		AllowAutoTopicCreation: true,
	}
	p.writers[topic] = w
	return w, nil
}

// Publish sends event as JSON, keyed by key. The workflow run attached to ctx,
// if any, travels in the message headers.
func (p *Producer) Publish(ctx context.Context, topic string, key string, event interface{}) error {
	msg, err := message(ctx, key, event)
	if err != nil {
		return err
	}

	w, err := p.writer(topic)
	if err != nil {
		return err
	}

	err = w.WriteMessages(ctx, msg)
	metrics.RecordKafkaMessage(topic, err)
	if err != nil {
		p.log.ForContext(ctx).Errorw("Failed to publish", "topic", topic, "key", key, "error", err)
		return errors.Wrapf(errors.ErrUnavailable, "publish to %s: %v", topic, err)
	}

	p.log.Debugw("Published", "topic", topic, "key", key, "size_bytes", len(msg.Value))
	return nil
}

func message(ctx context.Context, key string, event interface{}) (kafka.Message, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, errors.Wrapf(errors.ErrInvalidInput, "marshal event: %v", err)
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: data,
		Time:  time.Now(),
	}
	if run, ok := errors.RunFromContext(ctx); ok {
		msg.Headers = []kafka.Header{
			{Key: headerRunID, Value: []byte(run.ID)},
			{Key: headerSymbol, Value: []byte(run.Symbol)},
		}
	}
	return msg, nil
}

// Close flushes and closes every writer. Later publishes fail with ErrUnavailable.
func (p *Producer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.closed = true
	var errs errors.MultiError
	for topic, w := range p.writers {
		if err := w.Close(); err != nil {
			p.log.Warnw("Failed to close writer", "topic", topic, "error", err)
			errs.Add(errors.Wrapf(err, "close writer %s", topic))
		}
	}
	p.writers = make(map[string]*kafka.Writer)
	return errs.ToError()
}
