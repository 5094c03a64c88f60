package advisor

import (
	"context"
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quorum/internal/adapters/config"
	"quorum/internal/adapters/marketdata"
	"quorum/internal/agents"
	"quorum/internal/agents/synthesis"
	"quorum/internal/agents/workflow"
	"quorum/internal/domain/risk"
	"quorum/internal/services/execution"
	"quorum/pkg/errors"
)

var anchor = time.Date(2026, 4, 14, 10, 0, 0, 0, time.UTC)

func newService(t *testing.T) *Service {
	t.Helper()

	registry := agents.NewRegistry()
	dispatcher := agents.NewDispatcher(registry, agents.WithTaskTimeout(5*time.Second))

	simCfg := execution.DefaultConfig()
	sim := execution.NewSimulator(simCfg,
		execution.WithRandom(func() float64 { return 0 }),
		execution.WithClock(func() time.Time { return anchor }))
	sizer := risk.NewKellySizer(1_000_000, 15, 0.25, 1000)

	require.NoError(t, RegisterWorkers(registry, Components{
		Source:    marketdata.NewStaticSource(anchor),
		Sizer:     sizer,
		Simulator: sim,
	}))

	wf := workflow.NewEngine(dispatcher, config.WorkflowConfig{
		StageTimeout: 5 * time.Second,
		HistorySize:  10,
		MaxParallel:  3,
		HistoryDays:  120,
	})
	return NewService(dispatcher, wf, sizer, sim)
}

func TestRegisterWorkers(t *testing.T) {
	registry := agents.NewRegistry()
	require.NoError(t, RegisterWorkers(registry, Components{Source: marketdata.NewStaticSource(anchor)}))

	assert.Equal(t, []string{
		agents.DataAgent, agents.DecisionAgent, agents.FinancialAgent,
		agents.NewsAgent, agents.TechnicalAgent, agents.TradingAgent,
	}, registry.Names())

	rec, err := registry.Record(agents.TechnicalAgent)
	require.NoError(t, err)
	assert.True(t, rec.HasTag("indicators"))

	rec, err = registry.Record(agents.DataAgent)
	require.NoError(t, err)
	assert.True(t, rec.HasTag("market_data"))

	err = RegisterWorkers(registry, Components{Source: marketdata.NewStaticSource(anchor)})
	assert.ErrorIs(t, err, errors.ErrAlreadyExists)

	assert.Error(t, RegisterWorkers(agents.NewRegistry(), Components{}))
}

func TestService_RunWorkflowEndToEnd(t *testing.T) {
	svc := newService(t)

	summary, err := svc.RunWorkflow(context.Background(), "THYAO")
	require.NoError(t, err)

	assert.Equal(t, 6, summary.StepsAttempted)
	assert.Equal(t, 6, summary.StepsCompleted)
	assert.Equal(t, workflow.StatusComplete, summary.Status)
	require.NotNil(t, summary.Composite)
	assert.Len(t, summary.Composite.Sources(), 3)
	assert.GreaterOrEqual(t, summary.Recommendation.PositionSizePct, 1.0)
	assert.LessOrEqual(t, summary.Recommendation.PositionSizePct, 25.0)
	require.NotNil(t, summary.Sizing)

	for _, rec := range svc.GetRegistrySnapshot() {
		assert.Equal(t, int64(1), rec.TaskCount, rec.Name)
		assert.Equal(t, 1.0, rec.SuccessRate, rec.Name)
	}

	runs := svc.RecentRuns(5)
	require.Len(t, runs, 1)
	assert.Equal(t, summary.RunID, runs[0].ID)

	health := svc.HealthReport()
	assert.Equal(t, workflow.HealthHealthy, health.Overall)
	assert.Equal(t, 6, health.ActiveAgents)
}

func TestService_DispatchToWorker(t *testing.T) {
	svc := newService(t)

	res := svc.DispatchToWorker(context.Background(), "ghost_agent", agents.NewTask(agents.TaskGetDisclosures, nil))
	assert.False(t, res.OK)
	assert.Equal(t, agents.ErrorWorkerNotFound, res.ErrorKind)

	res = svc.DispatchToWorker(context.Background(), agents.NewsAgent,
		agents.NewTask(agents.TaskAnalyzeSentiment, map[string]any{"text": "record profit"}))
	assert.True(t, res.OK)

	res = svc.DispatchToWorker(context.Background(), agents.NewsAgent, agents.NewTask(agents.TaskExecuteTrade, nil))
	assert.Equal(t, agents.ErrorUnsupportedTask, res.ErrorKind)
}

func TestService_CollectMarketData(t *testing.T) {
	svc := newService(t)

	res := svc.DispatchToWorker(context.Background(), agents.DataAgent,
		agents.NewTask(agents.TaskCollectMarketData, map[string]any{synthesis.ParamSymbol: "asels"}))
	require.True(t, res.OK, res.Error)

	snap, ok := agents.PayloadAs[*synthesis.MarketSnapshot](res)
	require.True(t, ok)
	assert.Equal(t, "ASELS", snap.Symbol)
	assert.Positive(t, snap.Price)
	assert.NotEmpty(t, snap.Rates)
}

func TestService_ExecuteTradeRejectsNaNPrice(t *testing.T) {
	svc := newService(t)

	var res agents.TaskResult
	require.NotPanics(t, func() {
		res = svc.DispatchToWorker(context.Background(), agents.TradingAgent, agents.NewTask(agents.TaskExecuteTrade, map[string]any{
			synthesis.ParamSymbol: "ASELS", "side": "buy", "quantity": 10, "price": math.NaN(),
		}))
	})
	assert.False(t, res.OK)
	assert.Equal(t, agents.ErrorInvalidOrder, res.ErrorKind)
	assert.Empty(t, svc.Positions())
}

func TestService_SizeOrder(t *testing.T) {
	svc := newService(t)

	res, err := svc.SizeOrder(context.Background(), risk.SizingRequest{PositionSizePct: 25, StopLossPct: 10, Confidence: 45})
	require.NoError(t, err)
	assert.True(t, res.RecommendedAmount.Equal(decimal.NewFromInt(83000)), res.RecommendedAmount.String())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = svc.SizeOrder(ctx, risk.SizingRequest{PositionSizePct: 10, StopLossPct: 5, Confidence: 50})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestService_SizeOrderRejectsNonFinite(t *testing.T) {
	svc := newService(t)

	for _, req := range []risk.SizingRequest{
		{PortfolioValue: math.Inf(1), PositionSizePct: 10, StopLossPct: 5, Confidence: 50},
		{PositionSizePct: 10, StopLossPct: 5, Confidence: math.NaN()},
	} {
		var err error
		require.NotPanics(t, func() { _, err = svc.SizeOrder(context.Background(), req) })
		assert.ErrorIs(t, err, errors.ErrInvalidInput)
	}
}

func TestService_SimulateExecution(t *testing.T) {
	svc := newService(t)

	res, err := svc.SimulateExecution(context.Background(), execution.Order{
		Symbol:   "ASELS",
		Side:     execution.SideBuy,
		Quantity: decimal.NewFromInt(10),
		Price:    decimal.NewFromInt(100),
	})
	require.NoError(t, err)
	assert.Equal(t, "ASELS", res.Symbol)

	positions := svc.Positions()
	require.Len(t, positions, 1)
	assert.True(t, positions[0].Quantity.Equal(decimal.NewFromInt(10)))
	assert.Len(t, svc.Trades(10), 1)

	_, err = svc.SimulateExecution(context.Background(), execution.Order{Symbol: "ASELS", Side: execution.SideBuy})
	assert.ErrorIs(t, err, errors.ErrInvalidOrder)
	assert.Len(t, svc.Positions(), 1)
}

type mapReader map[string][]byte

func (m mapReader) Get(_ context.Context, key string, dest interface{}) error {
	data, ok := m[key]
	if !ok {
		return errors.ErrNotFound
	}
	return json.Unmarshal(data, dest)
}

func TestService_RunFallsBackToArchive(t *testing.T) {
	svc := newService(t)

	_, err := svc.Run(context.Background(), "missing")
	assert.ErrorIs(t, err, errors.ErrNotFound)

	archived, err := json.Marshal(&workflow.Run{ID: "ANALYSIS_OLD", Symbol: "OLD"})
	require.NoError(t, err)
	svc.WithArchive(mapReader{workflow.ArchiveKey("ANALYSIS_OLD"): archived})

	run, err := svc.Run(context.Background(), "ANALYSIS_OLD")
	require.NoError(t, err)
	assert.Equal(t, "OLD", run.Symbol)

	_, err = svc.Run(context.Background(), "ANALYSIS_NONE")
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestService_Ready(t *testing.T) {
	assert.NoError(t, newService(t).Ready(context.Background()))

	dispatcher := agents.NewDispatcher(agents.NewRegistry())
	empty := NewService(dispatcher, workflow.NewEngine(dispatcher, config.WorkflowConfig{}), nil, nil)
	assert.ErrorIs(t, empty.Ready(context.Background()), errors.ErrUnavailable)
	assert.Nil(t, empty.Positions())

	_, err := empty.SizeOrder(context.Background(), risk.SizingRequest{})
	assert.ErrorIs(t, err, errors.ErrUnavailable)
}
