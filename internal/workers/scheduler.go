package workers

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"quorum/internal/metrics"
	"quorum/pkg/errors"
	"quorum/pkg/logger"
)

// DefaultShutdownTimeout bounds Stop. A watchlist sweep runs several workflows
// back to back, each bounded by the stage timeout.
const DefaultShutdownTimeout = 2 * time.Minute

// Scheduler runs registered workers on their intervals
type Scheduler struct {
	workers         []Worker
	shutdownTimeout time.Duration

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.RWMutex
	log     *logger.Logger
	started bool
}

// NewScheduler creates a new worker scheduler
func NewScheduler() *Scheduler {
	return &Scheduler{
		workers:         make([]Worker, 0),
		shutdownTimeout: DefaultShutdownTimeout,
		log:             logger.Component("scheduler"),
	}
}

// WithShutdownTimeout overrides how long Stop waits for running workers
func (s *Scheduler) WithShutdownTimeout(d time.Duration) *Scheduler {
	if d > 0 {
		s.shutdownTimeout = d
	}
	return s
}

// RegisterWorker adds a worker to the scheduler
func (s *Scheduler) RegisterWorker(w Worker) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		s.log.Warnw("Cannot register worker after scheduler has started", "worker", w.Name())
		return
	}

	s.workers = append(s.workers, w)
	s.log.Infow("Worker registered", "worker", w.Name(), "interval", w.Interval())
}

// Start begins running all registered workers
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return errors.Wrap(errors.ErrInternal, "scheduler already started")
	}

	s.started = true
	s.ctx, s.cancel = context.WithCancel(ctx)
	workers := append([]Worker(nil), s.workers...)
	s.mu.Unlock()

	running := 0
	for _, worker := range workers {
		if !worker.Enabled() {
			s.log.Infow("Skipping disabled worker", "worker", worker.Name())
			continue
		}
		if worker.Interval() <= 0 {
			s.log.Warnw("Skipping worker without interval", "worker", worker.Name())
			continue
		}

		running++
		s.wg.Add(1)
		go s.runWorker(worker)
	}

	s.log.Infow("Worker scheduler started", "workers", running)
	return nil
}

// Stop cancels all workers and waits for in-flight runs to finish
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return errors.Wrap(errors.ErrInternal, "scheduler not started")
	}
	s.cancel()
	s.mu.Unlock()

	s.log.Info("Stopping worker scheduler...")

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	var shutdownErr error
	select {
	case <-done:
		s.log.Info("All workers stopped gracefully")
	case <-time.After(s.shutdownTimeout):
		s.log.Warnw("Worker shutdown timed out", "timeout", s.shutdownTimeout)
		shutdownErr = errors.Wrapf(errors.ErrTimeout, "worker shutdown after %s", s.shutdownTimeout)
	}

	s.mu.Lock()
	s.started = false
	s.mu.Unlock()

	return shutdownErr
}

func (s *Scheduler) runWorker(worker Worker) {
	defer s.wg.Done()

	ticker := time.NewTicker(worker.Interval())
	defer ticker.Stop()

	// Run immediately on start
	s.executeWorker(worker)

	for {
		select {
		case <-s.ctx.Done():
			s.log.Debugw("Worker stopping", "worker", worker.Name())
			return

		case <-ticker.C:
			if worker.Enabled() {
				s.executeWorker(worker)
			}
		}
	}
}

// executeWorker runs one iteration, converting panics into errors
func (s *Scheduler) executeWorker(worker Worker) {
	start := time.Now()

	var err error
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = errors.Wrap(errors.ErrInternal, fmt.Sprintf("worker panicked: %v", r))
			}
		}()
		err = worker.Run(s.ctx)
	}()
	duration := time.Since(start)

	if h, ok := worker.(WorkerWithHealth); ok {
		if err != nil {
			h.RecordError(err, duration)
		} else {
			h.RecordRun(duration)
		}
	}
	metrics.RecordWorkerExecution(worker.Name(), err)

	if err != nil {
		s.log.Errorw("Worker execution failed",
			"worker", worker.Name(),
			"error", err,
			"duration", duration,
		)
		return
	}
	s.log.Debugw("Worker execution completed",
		"worker", worker.Name(),
		"duration", duration,
	)
}

// GetWorkers returns a list of all registered workers
func (s *Scheduler) GetWorkers() []Worker {
	s.mu.RLock()
	defer s.mu.RUnlock()

	workers := make([]Worker, len(s.workers))
	copy(workers, s.workers)
	return workers
}

// Health returns statistics for every worker that keeps them
func (s *Scheduler) Health() []WorkerHealth {
	var out []WorkerHealth
	for _, w := range s.GetWorkers() {
		if h, ok := w.(WorkerWithHealth); ok {
			out = append(out, h.Health())
		}
	}
	return out
}

// Check fails when any worker has failed failureThreshold sweeps in a row.
// It has the shape of a readiness check.
func (s *Scheduler) Check(failureThreshold int) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		var failing []string
		for _, h := range s.Health() {
			if h.Enabled && h.Failing(failureThreshold) {
				failing = append(failing, fmt.Sprintf("%s (%d failures: %s)", h.Name, h.ConsecutiveFailures, h.LastError))
			}
		}
		if len(failing) > 0 {
			return errors.Wrapf(errors.ErrUnavailable, "failing workers: %s", strings.Join(failing, ", "))
		}
		return nil
	}
}

// IsRunning returns whether the scheduler is currently running
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.started
}
