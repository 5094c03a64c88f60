package noop

import (
	"context"
	"sync/atomic"

	"quorum/pkg/errors"
	"quorum/pkg/logger"
)

// Tracker does not ship anything. It logs captured errors at debug level and
// counts them, which is enough for development and tests.
type Tracker struct {
	captured atomic.Int64
	messages atomic.Int64
	log      *logger.Logger
}

// New creates a new no-op tracker
func New() *Tracker {
	return &Tracker{log: logger.Component("error_tracker")}
}

func (t *Tracker) CaptureError(ctx context.Context, err error, tags map[string]string) error {
	t.captured.Add(1)
	fields := []interface{}{"error", err, "code", errors.Code(err), "tags", tags}
	if run, ok := errors.RunFromContext(ctx); ok {
		fields = append(fields, "run_id", run.ID, "symbol", run.Symbol)
	}
	t.log.Debugw("Error captured", fields...)
	return nil
}

func (t *Tracker) CaptureMessage(ctx context.Context, message string, level errors.Level, tags map[string]string) error {
	t.messages.Add(1)
	t.log.Debugw("Message captured", "message", message, "level", level, "tags", tags)
	return nil
}

func (t *Tracker) AddBreadcrumb(ctx context.Context, message string, category string, level errors.Level, data map[string]interface{}) {
}

func (t *Tracker) Flush(ctx context.Context) error {
	return nil
}

// Captured returns how many errors were captured
func (t *Tracker) Captured() int64 {
	return t.captured.Load()
}

// Messages returns how many messages were captured
func (t *Tracker) Messages() int64 {
	return t.messages.Load()
}
