package agents

import (
	"context"
	"fmt"
	"time"

	"quorum/internal/metrics"
	"quorum/pkg/errors"
	"quorum/pkg/logger"
)

// DefaultTaskTimeout bounds a single worker invocation when no timeout is configured.
const DefaultTaskTimeout = 30 * time.Second

// Dispatcher invokes one worker with one task and is the only place worker
// statistics change.
type Dispatcher struct {
	registry *Registry
	timeout  time.Duration
	now      func() time.Time
	tracker  errors.Tracker
	log      *logger.Logger
}

// DispatcherOption customizes a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithTaskTimeout sets the per-task deadline.
func WithTaskTimeout(d time.Duration) DispatcherOption {
	return func(disp *Dispatcher) {
		if d > 0 {
			disp.timeout = d
		}
	}
}

// WithClock overrides the time source used for LastUsed stamps.
func WithClock(now func() time.Time) DispatcherOption {
	return func(disp *Dispatcher) { disp.now = now }
}

// WithTracker reports worker faults to an error tracker.
func WithTracker(t errors.Tracker) DispatcherOption {
	return func(disp *Dispatcher) { disp.tracker = t }
}

// NewDispatcher creates a dispatcher over registry. A nil registry is a programming error.
func NewDispatcher(registry *Registry, opts ...DispatcherOption) *Dispatcher {
	if registry == nil {
		panic("agents: dispatcher requires a registry")
	}
	d := &Dispatcher{
		registry: registry,
		timeout:  DefaultTaskTimeout,
		now:      time.Now,
		log:      logger.Component("dispatcher"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Registry returns the registry the dispatcher routes through.
func (d *Dispatcher) Registry() *Registry {
	return d.registry
}

// Dispatch runs task on the named worker. It never returns an error: every
// failure is folded into the TaskResult.
func (d *Dispatcher) Dispatch(ctx context.Context, workerName string, task Task) TaskResult {
	start := time.Now()

	e, err := d.registry.lookup(workerName)
	if err != nil {
		metrics.RecordDispatch(workerName, string(task.Kind), "not_found", time.Since(start))
		return Failure(ErrorWorkerNotFound, err, time.Since(start))
	}

	result := d.invoke(ctx, e.worker, task)
	result.Duration = time.Since(start)

	rec := e.recordOutcome(result.OK, d.now())

	outcome := "success"
	if !result.OK {
		outcome = "error"
		if result.ErrorKind == ErrorTimeout {
			outcome = "timeout"
		}
		d.log.Warnw("Task failed",
			"worker", workerName,
			"kind", task.Kind,
			"error_kind", result.ErrorKind,
			"error", result.Error,
			"success_rate", rec.SuccessRate,
		)
	} else {
		d.log.Debugw("Task completed",
			"worker", workerName,
			"kind", task.Kind,
			"duration", result.Duration,
		)
	}
	metrics.RecordDispatch(workerName, string(task.Kind), outcome, result.Duration)

	return result
}

type invocation struct {
	payload any
	err     error
	kind    ErrorKind
}

func (d *Dispatcher) invoke(ctx context.Context, w Worker, task Task) TaskResult {
	if !w.CanHandle(task) {
		return Failure(ErrorUnsupportedTask,
			errors.Wrapf(errors.ErrUnsupportedTask, "%s cannot handle %s", w.Name(), task.Kind), 0)
	}

	taskCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	done := make(chan invocation, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- invocation{
					err:  errors.Wrapf(errors.ErrWorkerFault, "%s panicked: %v", w.Name(), r),
					kind: ErrorWorkerFault,
				}
			}
		}()
		payload, err := w.Process(taskCtx, task)
		if err != nil {
			done <- invocation{err: err, kind: classify(err)}
			return
		}
		done <- invocation{payload: payload}
	}()

	select {
	case inv := <-done:
		if inv.err != nil {
			if inv.kind == ErrorWorkerFault {
				d.capture(ctx, w.Name(), task, inv.err)
			}
			return Failure(inv.kind, inv.err, 0)
		}
		return Success(inv.payload, 0)
	case <-taskCtx.Done():
		// The worker goroutine observes the cancelled context and its late result is dropped.
		err := errors.Wrapf(errors.ErrTimeout, "%s exceeded %s", w.Name(), d.timeout)
		if ctx.Err() != nil {
			err = errors.Wrapf(ctx.Err(), "%s cancelled", w.Name())
		}
		return Failure(ErrorTimeout, err, 0)
	}
}

func (d *Dispatcher) capture(ctx context.Context, worker string, task Task, err error) {
	if d.tracker == nil {
		return
	}
	_ = d.tracker.CaptureError(ctx, fmt.Errorf("%s/%s: %w", worker, task.Kind, err), map[string]string{
		"component": "dispatcher",
		"worker":    worker,
		"task_kind": string(task.Kind),
		"code":      errors.Code(err),
	})
}

func classify(err error) ErrorKind {
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, errors.ErrTimeout):
		return ErrorTimeout
	case errors.Is(err, errors.ErrUnsupportedTask):
		return ErrorUnsupportedTask
	case errors.Is(err, errors.ErrInvalidOrder):
		return ErrorInvalidOrder
	default:
		return ErrorWorkerFault
	}
}
