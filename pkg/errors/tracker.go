package errors

import (
	"context"
)

// Tracker defines the interface for error tracking services (Sentry or no-op)
type Tracker interface {
	// CaptureError sends an error to the tracking service
	CaptureError(ctx context.Context, err error, tags map[string]string) error

	// CaptureMessage sends a message to the tracking service
	CaptureMessage(ctx context.Context, message string, level Level, tags map[string]string) error

	// AddBreadcrumb records a workflow or dispatch step leading up to an error
	AddBreadcrumb(ctx context.Context, message string, category string, level Level, data map[string]interface{})

	// Flush waits for all pending events to be sent
	Flush(ctx context.Context) error
}

// Level represents the severity level of an error or message
type Level string

const (
	LevelDebug   Level = "debug"
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
	LevelFatal   Level = "fatal"
)

// String returns the string representation of the level
func (l Level) String() string {
	return string(l)
}

type runKey struct{}

// RunInfo identifies the workflow run an error happened in
type RunInfo struct {
	ID     string
	Symbol string
}

// WithRun attaches the workflow run to ctx so trackers can tag captured errors
func WithRun(ctx context.Context, id, symbol string) context.Context {
	return context.WithValue(ctx, runKey{}, RunInfo{ID: id, Symbol: symbol})
}

// RunFromContext returns the run attached by WithRun
func RunFromContext(ctx context.Context) (RunInfo, bool) {
	if ctx == nil {
		return RunInfo{}, false
	}
	info, ok := ctx.Value(runKey{}).(RunInfo)
	return info, ok
}
