package workflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"

	"quorum/internal/adapters/config"
	"quorum/internal/agents"
	"quorum/internal/agents/synthesis"
	"quorum/internal/domain/decision"
	"quorum/internal/domain/fusion"
	"quorum/internal/domain/risk"
	"quorum/internal/events"
	"quorum/internal/metrics"
	"quorum/pkg/errors"
	"quorum/pkg/logger"
)

// Stage names a workflow step. Stages run in declaration order.
type Stage string

const (
	StageNews      Stage = "news_analysis"
	StageFinancial Stage = "financial_analysis"
	StageTechnical Stage = "technical_analysis"
	StageFusion    Stage = "data_integration"
	StageDecision  Stage = "decision_making"
	StageSizing    Stage = "trading_strategy"
)

type stageSpec struct {
	stage  Stage
	worker string
	kind   agents.TaskKind
}

// Analyst stages have no data dependency on each other.
var analystStages = []stageSpec{
	{StageNews, agents.NewsAgent, agents.TaskGetDisclosures},
	{StageFinancial, agents.FinancialAgent, agents.TaskAnalyzeHealth},
	{StageTechnical, agents.TechnicalAgent, agents.TaskGenerateSignals},
}

var (
	fusionStage   = stageSpec{StageFusion, agents.DataAgent, agents.TaskCombineAgentData}
	decisionStage = stageSpec{StageDecision, agents.DecisionAgent, agents.TaskMakeDecision}
	sizingStage   = stageSpec{StageSizing, agents.TradingAgent, agents.TaskCalculateTradeSize}
)

// Stages lists every stage with the worker that serves it.
func Stages() map[Stage]string {
	out := make(map[Stage]string, 6)
	for _, s := range append(append([]stageSpec{}, analystStages...), fusionStage, decisionStage, sizingStage) {
		out[s.stage] = s.worker
	}
	return out
}

// Archive persists finished runs outside the process. The redis adapter satisfies it.
type Archive interface {
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// Engine coordinates the six-stage analysis workflow.
type Engine struct {
	registry   *agents.Registry
	dispatcher *agents.Dispatcher
	decisions  *decision.Engine
	history    *lru.Cache[string, *Run]
	archive    Archive
	events     *events.Publisher
	cfg        config.WorkflowConfig
	now        func() time.Time
	log        *logger.Logger
}

// Option customizes an Engine.
type Option func(*Engine)

// WithArchive stores every finished run in archive.
func WithArchive(a Archive) Option {
	return func(e *Engine) { e.archive = a }
}

// WithEvents publishes a completion event per run.
func WithEvents(p *events.Publisher) Option {
	return func(e *Engine) {
		if p != nil {
			e.events = p
		}
	}
}

// WithClock overrides the time source used for run stamps and IDs.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithDecisionEngine sets the engine used for the local fallback recommendation.
func WithDecisionEngine(d *decision.Engine) Option {
	return func(e *Engine) {
		if d != nil {
			e.decisions = d
		}
	}
}

// NewEngine creates a workflow engine. A nil dispatcher is a programming error.
func NewEngine(dispatcher *agents.Dispatcher, cfg config.WorkflowConfig, opts ...Option) *Engine {
	if dispatcher == nil {
		panic("workflow: engine requires a dispatcher")
	}
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = 500
	}
	if cfg.MaxParallel <= 0 {
		cfg.MaxParallel = len(analystStages)
	}

	history, err := lru.New[string, *Run](cfg.HistorySize)
	if err != nil {
		panic(fmt.Sprintf("workflow: history cache: %v", err))
	}

	e := &Engine{
		registry:   dispatcher.Registry(),
		dispatcher: dispatcher,
		decisions:  decision.NewEngine(),
		history:    history,
		events:     events.NewNoopPublisher(),
		cfg:        cfg,
		now:        time.Now,
		log:        logger.Component("workflow"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run executes the workflow for symbol. Worker failures never abort the run;
// the only error is an invalid symbol.
func (e *Engine) Run(ctx context.Context, symbol string) (*Summary, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, errors.Wrap(errors.ErrInvalidSymbol, "workflow requires a symbol")
	}

	started := e.now()
	run := &Run{
		ID:        runID(symbol, started),
		Symbol:    symbol,
		StartedAt: started,
		omitted:   make(map[Stage]error),
	}
	ctx = errors.WithRun(ctx, run.ID, symbol)
	e.log.Infow("Workflow started", "run_id", run.ID, "symbol", symbol)

	e.analyze(ctx, run)
	composite, tier := e.integrate(ctx, run)
	rec := e.decide(ctx, run, composite, tier)
	run.FinalRecommendation = &rec
	run.Composite = composite
	run.Sizing = e.size(ctx, run, rec)
	run.EndedAt = e.now()

	summary := run.summarize()
	e.finish(ctx, run, summary)
	return summary, nil
}

// analyze dispatches the analyst stages in parallel and joins them.
func (e *Engine) analyze(ctx context.Context, run *Run) {
	params := map[Stage]map[string]any{
		StageNews:      {"limit": e.disclosureLimit()},
		StageFinancial: {"symbol": run.Symbol},
		StageTechnical: {"symbol": run.Symbol, "days": e.cfg.HistoryDays},
	}

	slots := make([]*StepRecord, len(analystStages))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.MaxParallel)

	for i, st := range analystStages {
		if !e.registry.Has(st.worker) {
			run.omit(st.stage, errors.Wrapf(errors.ErrStageOmitted, "%s not registered", st.worker))
			continue
		}
		i, st := i, st
		g.Go(func() error {
			step := e.dispatch(gctx, st, agents.NewTask(st.kind, params[st.stage]))
			slots[i] = &step
			return nil
		})
	}
	_ = g.Wait()

	for _, step := range slots {
		if step != nil {
			run.Steps = append(run.Steps, *step)
		}
	}
}

// integrate runs the fusion stage over every successful analyst report.
func (e *Engine) integrate(ctx context.Context, run *Run) (*fusion.CompositeScore, risk.Tier) {
	var inputs []agents.Contributor
	for _, step := range run.Steps {
		if c, ok := agents.PayloadAs[agents.Contributor](step.Result); ok {
			inputs = append(inputs, c)
		}
	}

	if !e.registry.Has(fusionStage.worker) {
		run.omit(StageFusion, errors.Wrapf(errors.ErrStageOmitted, "%s not registered", fusionStage.worker))
		return nil, 0
	}
	if len(inputs) == 0 {
		run.omit(StageFusion, errors.Wrap(errors.ErrStageOmitted, "no analyst reports to combine"))
		return nil, 0
	}

	step := e.dispatch(ctx, fusionStage, agents.NewTask(fusionStage.kind, map[string]any{
		synthesis.ParamInputs: inputs,
	}))
	run.Steps = append(run.Steps, step)

	report, ok := agents.PayloadAs[*synthesis.IntegrationReport](step.Result)
	if !ok || report == nil {
		return nil, 0
	}
	composite := report.Composite
	return &composite, report.RiskTier
}

// decide resolves the recommendation: the decision worker's report, a local
// decision over the composite, or the neutral hold.
func (e *Engine) decide(ctx context.Context, run *Run, composite *fusion.CompositeScore, tier risk.Tier) decision.Recommendation {
	switch {
	case composite == nil:
		run.omit(StageDecision, errors.Wrap(errors.ErrStageOmitted, "no composite score"))
		return e.decisions.Neutral()
	case !e.registry.Has(decisionStage.worker):
		run.omit(StageDecision, errors.Wrapf(errors.ErrStageOmitted, "%s not registered", decisionStage.worker))
		return e.decisions.Decide(decision.FromComposite(*composite, tier))
	}

	step := e.dispatch(ctx, decisionStage, agents.NewTask(decisionStage.kind, map[string]any{
		synthesis.ParamComposite: *composite,
		synthesis.ParamRiskTier:  tier,
	}))
	run.Steps = append(run.Steps, step)

	if rec, ok := agents.PayloadAs[decision.Recommendation](step.Result); ok {
		return rec
	}
	return e.decisions.Decide(decision.FromComposite(*composite, tier))
}

func (e *Engine) size(ctx context.Context, run *Run, rec decision.Recommendation) *risk.SizingResult {
	if !e.registry.Has(sizingStage.worker) {
		run.omit(StageSizing, errors.Wrapf(errors.ErrStageOmitted, "%s not registered", sizingStage.worker))
		return nil
	}

	step := e.dispatch(ctx, sizingStage, agents.NewTask(sizingStage.kind, map[string]any{
		synthesis.ParamRecommendation: rec,
	}))
	run.Steps = append(run.Steps, step)

	res, _ := agents.PayloadAs[*risk.SizingResult](step.Result)
	return res
}

// dispatch runs one stage under the stage timeout.
func (e *Engine) dispatch(ctx context.Context, st stageSpec, task agents.Task) StepRecord {
	stageCtx := ctx
	if e.cfg.StageTimeout > 0 {
		var cancel context.CancelFunc
		stageCtx, cancel = context.WithTimeout(ctx, e.cfg.StageTimeout)
		defer cancel()
	}

	result := e.dispatcher.Dispatch(stageCtx, st.worker, task)

	outcome := string(ContributionSuccess)
	if !result.OK {
		outcome = string(ContributionFailed)
		e.log.ForContext(ctx).Warnw("Workflow stage failed",
			"stage", st.stage,
			"worker", st.worker,
			"error_kind", result.ErrorKind,
			"error", result.Error,
		)
	}
	metrics.RecordStage(string(st.stage), outcome)

	return StepRecord{Stage: st.stage, Worker: st.worker, Result: result}
}

func (e *Engine) finish(ctx context.Context, run *Run, summary *Summary) {
	e.history.Add(run.ID, run)

	metrics.RecordWorkflow(summary.Status, summary.Duration)
	metrics.RecordRecommendation(string(summary.Recommendation.Action))

	log := e.log.ForContext(ctx)
	if e.archive != nil && e.cfg.ArchiveTTL > 0 {
		if err := e.archive.Set(ctx, ArchiveKey(run.ID), run, e.cfg.ArchiveTTL); err != nil {
			log.Warnw("Failed to archive workflow run", "error", err)
		}
	}

	if err := e.events.PublishWorkflowCompleted(ctx, completedEvent(run, summary)); err != nil {
		log.Warnw("Failed to publish workflow completion", "error", err)
	}

	log.Infow("Workflow completed",
		"status", summary.Status,
		"steps_completed", summary.StepsCompleted,
		"steps_attempted", summary.StepsAttempted,
		"action", summary.Recommendation.Action,
		"confidence", summary.Recommendation.Confidence,
		"fallback", summary.Recommendation.Fallback,
		"duration", summary.Duration,
	)
}

func (e *Engine) disclosureLimit() int {
	if e.cfg.DisclosureSize > 0 {
		return e.cfg.DisclosureSize
	}
	return 5
}

// Get returns a run from the in-memory history.
func (e *Engine) Get(id string) (*Run, bool) {
	return e.history.Get(id)
}

// Recent returns up to n runs, newest first.
func (e *Engine) Recent(n int) []*Run {
	keys := e.history.Keys() // oldest to newest
	if n <= 0 || n > len(keys) {
		n = len(keys)
	}
	out := make([]*Run, 0, n)
	for i := len(keys) - 1; i >= 0 && len(out) < n; i-- {
		if run, ok := e.history.Peek(keys[i]); ok {
			out = append(out, run)
		}
	}
	return out
}

// HistoryLen returns the number of runs retained.
func (e *Engine) HistoryLen() int {
	return e.history.Len()
}

func runID(symbol string, at time.Time) string {
	return fmt.Sprintf("ANALYSIS_%s_%s_%s", symbol, at.Format("20060102_150405"), uuid.NewString()[:8])
}

// ArchiveKey is the key a run is archived under.
func ArchiveKey(id string) string {
	return "workflow:run:" + id
}

func completedEvent(run *Run, s *Summary) *events.WorkflowCompleted {
	ev := &events.WorkflowCompleted{
		BaseEvent:      events.NewBaseEvent("workflow.completed", "workflow"),
		RunID:          run.ID,
		Symbol:         run.Symbol,
		Status:         s.Status,
		StepsCompleted: s.StepsCompleted,
		StepsAttempted: s.StepsAttempted,
		Action:         string(s.Recommendation.Action),
		Confidence:     s.Recommendation.Confidence,
		CompositeScore: s.Recommendation.CompositeScore,
		AgentsUtilized: s.AgentsUtilized,
		DurationMs:     s.Duration.Milliseconds(),
		Fallback:       s.Recommendation.Fallback,
	}
	if s.Sizing != nil {
		ev.RecommendedAmount = s.Sizing.RecommendedAmount.String()
	}
	return ev
}
