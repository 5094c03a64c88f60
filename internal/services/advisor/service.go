package advisor

import (
	"context"

	"github.com/dustin/go-humanize"

	"quorum/internal/agents"
	"quorum/internal/agents/workflow"
	"quorum/internal/domain/risk"
	"quorum/internal/services/execution"
	"quorum/pkg/errors"
	"quorum/pkg/logger"
)

// RunReader loads archived runs. The redis adapter satisfies it.
type RunReader interface {
	Get(ctx context.Context, key string, dest interface{}) error
}

// Service is the boundary the HTTP layer and background workers call into.
// Nothing below it is reachable from outside the core.
type Service struct {
	dispatcher *agents.Dispatcher
	workflow   *workflow.Engine
	sizer      *risk.KellySizer
	simulator  *execution.Simulator
	archive    RunReader
	log        *logger.Logger
}

// NewService creates the advisor service
func NewService(dispatcher *agents.Dispatcher, wf *workflow.Engine, sizer *risk.KellySizer, sim *execution.Simulator) *Service {
	if dispatcher == nil || wf == nil {
		panic("advisor: dispatcher and workflow are required")
	}
	return &Service{
		dispatcher: dispatcher,
		workflow:   wf,
		sizer:      sizer,
		simulator:  sim,
		log:        logger.Component("advisor"),
	}
}

// WithArchive enables lookups of runs evicted from the in-memory history.
func (s *Service) WithArchive(r RunReader) *Service {
	s.archive = r
	return s
}

// RunWorkflow analyzes symbol end to end.
func (s *Service) RunWorkflow(ctx context.Context, symbol string) (*workflow.Summary, error) {
	return s.workflow.Run(ctx, symbol)
}

// DispatchToWorker sends one task to a named worker.
func (s *Service) DispatchToWorker(ctx context.Context, name string, task agents.Task) agents.TaskResult {
	return s.dispatcher.Dispatch(ctx, name, task)
}

// GetRegistrySnapshot returns copies of every worker record.
func (s *Service) GetRegistrySnapshot() []agents.WorkerRecord {
	return s.dispatcher.Registry().Snapshot()
}

// SizeOrder computes a Kelly-blend allocation.
func (s *Service) SizeOrder(ctx context.Context, req risk.SizingRequest) (*risk.SizingResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.sizer == nil {
		return nil, errors.Wrap(errors.ErrUnavailable, "sizing is not configured")
	}

	res, err := s.sizer.Size(req)
	if err != nil {
		return nil, err
	}
	amount, _ := res.RecommendedAmount.Float64()
	s.log.Infow("Order sized",
		"amount", humanize.Commaf(amount),
		"portfolio_pct", res.PortfolioPct,
		"method", res.Method,
	)
	return res, nil
}

// SimulateExecution fills an order against the paper ledger.
func (s *Service) SimulateExecution(ctx context.Context, order execution.Order) (*execution.ExecutionResult, error) {
	if s.simulator == nil {
		return nil, errors.Wrap(errors.ErrUnavailable, "execution simulator is not configured")
	}
	return s.simulator.Execute(ctx, order)
}

// HealthReport returns worker and workflow health.
func (s *Service) HealthReport() workflow.HealthReport {
	return s.workflow.Health()
}

// RecentRuns returns up to n runs, newest first.
func (s *Service) RecentRuns(n int) []*workflow.Run {
	return s.workflow.Recent(n)
}

// Run returns a run by id from memory, falling back to the archive.
func (s *Service) Run(ctx context.Context, id string) (*workflow.Run, error) {
	if run, ok := s.workflow.Get(id); ok {
		return run, nil
	}
	if s.archive == nil {
		return nil, errors.Wrapf(errors.ErrNotFound, "run %s", id)
	}

	var run workflow.Run
	if err := s.archive.Get(ctx, workflow.ArchiveKey(id), &run); err != nil {
		return nil, errors.Wrapf(err, "run %s", id)
	}
	return &run, nil
}

// Positions returns open paper positions.
func (s *Service) Positions() []execution.Position {
	if s.simulator == nil {
		return nil
	}
	return s.simulator.Positions()
}

// Trades returns up to n recent fills.
func (s *Service) Trades(n int) []execution.ExecutionResult {
	if s.simulator == nil {
		return nil
	}
	return s.simulator.History(n)
}

// Ready fails until at least one worker is registered.
func (s *Service) Ready(ctx context.Context) error {
	if len(s.dispatcher.Registry().Names()) == 0 {
		return errors.Wrap(errors.ErrUnavailable, "no workers registered")
	}
	return ctx.Err()
}
