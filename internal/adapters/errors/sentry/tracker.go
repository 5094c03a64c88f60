package sentry

import (
	"context"
	"time"

	"github.com/getsentry/sentry-go"

	"quorum/pkg/errors"
)

// Tracker implements error tracking via Sentry
type Tracker struct {
	hub          *sentry.Hub
	flushTimeout time.Duration
}

// New creates a Sentry tracker. Events from ctx-cancelled operations are dropped.
func New(dsn string, environment string) (*Tracker, error) {
	err := sentry.Init(sentry.ClientOptions{
		Dsn:         dsn,
		Environment: environment,
		BeforeSend: func(event *sentry.Event, hint *sentry.EventHint) *sentry.Event {
			if hint != nil && hint.OriginalException != nil && errors.Code(hint.OriginalException) == "canceled" {
				return nil
			}
			return event
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "sentry init")
	}

	return &Tracker{
		hub:          sentry.CurrentHub(),
		flushTimeout: 2 * time.Second,
	}, nil
}

// CaptureError sends an error to Sentry
func (t *Tracker) CaptureError(ctx context.Context, err error, tags map[string]string) error {
	hub := t.hub.Clone()

	hub.ConfigureScope(func(scope *sentry.Scope) {
		for k, v := range tags {
			scope.SetTag(k, v)
		}
		scope.SetTag("error_code", errors.Code(err))
		tagRun(ctx, scope)
	})

	hub.CaptureException(err)
	return nil
}

// CaptureMessage sends a message to Sentry
func (t *Tracker) CaptureMessage(ctx context.Context, message string, level errors.Level, tags map[string]string) error {
	hub := t.hub.Clone()

	hub.ConfigureScope(func(scope *sentry.Scope) {
		for k, v := range tags {
			scope.SetTag(k, v)
		}
		scope.SetLevel(convertLevel(level))
		tagRun(ctx, scope)
	})

	hub.CaptureMessage(message)
	return nil
}

// AddBreadcrumb records a step that led up to a later error
func (t *Tracker) AddBreadcrumb(ctx context.Context, message string, category string, level errors.Level, data map[string]interface{}) {
	t.hub.AddBreadcrumb(&sentry.Breadcrumb{
		Message:  message,
		Category: category,
		Level:    convertLevel(level),
		Data:     data,
	}, &sentry.BreadcrumbHint{})
}

// Flush waits for pending events, bounded by the ctx deadline when it is shorter
func (t *Tracker) Flush(ctx context.Context) error {
	timeout := t.flushTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left < timeout {
			timeout = left
		}
	}
	if !sentry.Flush(timeout) {
		return errors.Wrap(errors.ErrTimeout, "sentry flush")
	}
	return nil
}

func tagRun(ctx context.Context, scope *sentry.Scope) {
	if run, ok := errors.RunFromContext(ctx); ok {
		scope.SetTag("run_id", run.ID)
		scope.SetTag("symbol", run.Symbol)
	}
}

func convertLevel(level errors.Level) sentry.Level {
	switch level {
	case errors.LevelDebug:
		return sentry.LevelDebug
	case errors.LevelWarning:
		return sentry.LevelWarning
	case errors.LevelError:
		return sentry.LevelError
	case errors.LevelFatal:
		return sentry.LevelFatal
	default:
		return sentry.LevelInfo
	}
}
