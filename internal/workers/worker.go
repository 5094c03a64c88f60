package workers

import (
	"context"
	"sync"
	"time"

	"quorum/pkg/logger"
)

// Worker is a periodic advisory job: a watchlist sweep, a health check.
type Worker interface {
	Name() string

	// Run completes one sweep and returns. The scheduler calls it again every Interval().
	Run(ctx context.Context) error

	Interval() time.Duration
	Enabled() bool
}

// WorkerWithHealth is a worker that keeps sweep statistics
type WorkerWithHealth interface {
	Worker
	Health() WorkerHealth
	RecordRun(duration time.Duration)
	RecordError(err error, duration time.Duration)
}

// WorkerHealth is a point-in-time view of a worker's sweeps
type WorkerHealth struct {
	Name                string        `json:"name"`
	Enabled             bool          `json:"enabled"`
	LastRun             time.Time     `json:"last_run"`
	LastSuccess         time.Time     `json:"last_success"`
	LastError           string        `json:"last_error,omitempty"`
	RunCount            int64         `json:"run_count"`
	ErrorCount          int64         `json:"error_count"`
	ConsecutiveFailures int           `json:"consecutive_failures"`
	AvgDuration         time.Duration `json:"avg_duration"`
}

// Failing reports whether the last threshold sweeps all failed.
func (h WorkerHealth) Failing(threshold int) bool {
	return threshold > 0 && h.ConsecutiveFailures >= threshold
}

// BaseWorker carries name, interval and sweep statistics for embedding workers
type BaseWorker struct {
	name     string
	interval time.Duration
	now      func() time.Time
	log      *logger.Logger

	mu      sync.RWMutex
	enabled bool
	stats   WorkerHealth
	total   time.Duration
	lastErr error
}

// NewBaseWorker creates a base worker. A worker built disabled is skipped by the scheduler.
func NewBaseWorker(name string, interval time.Duration, enabled bool) *BaseWorker {
	return &BaseWorker{
		name:     name,
		interval: interval,
		enabled:  enabled,
		now:      time.Now,
		log:      logger.Component("worker").With("worker", name),
	}
}

func (w *BaseWorker) Name() string            { return w.name }
func (w *BaseWorker) Interval() time.Duration { return w.interval }
func (w *BaseWorker) Log() *logger.Logger     { return w.log }

func (w *BaseWorker) Enabled() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.enabled
}

// SetEnabled toggles the worker between ticks
func (w *BaseWorker) SetEnabled(enabled bool) {
	w.mu.Lock()
	w.enabled = enabled
	w.mu.Unlock()
	w.log.Infow("Worker enabled state changed", "enabled", enabled)
}

// Health returns a copy of the sweep statistics
func (w *BaseWorker) Health() WorkerHealth {
	w.mu.RLock()
	defer w.mu.RUnlock()

	h := w.stats
	h.Name = w.name
	h.Enabled = w.enabled
	if h.RunCount > 0 {
		h.AvgDuration = w.total / time.Duration(h.RunCount)
	}
	if w.lastErr != nil {
		h.LastError = w.lastErr.Error()
	}
	return h
}

// RecordRun records a successful sweep and resets the failure streak
func (w *BaseWorker) RecordRun(duration time.Duration) {
	w.record(nil, duration)
}

// RecordError records a failed sweep
func (w *BaseWorker) RecordError(err error, duration time.Duration) {
	w.record(err, duration)
}

func (w *BaseWorker) record(err error, duration time.Duration) {
	at := w.now()

	w.mu.Lock()
	defer w.mu.Unlock()

	w.stats.LastRun = at
	w.stats.RunCount++
	w.total += duration
	w.lastErr = err

	if err != nil {
		w.stats.ErrorCount++
		w.stats.ConsecutiveFailures++
		return
	}
	w.stats.LastSuccess = at
	w.stats.ConsecutiveFailures = 0
}
