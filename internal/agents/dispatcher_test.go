package agents

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quorum/internal/adapters/errors/noop"
	"quorum/pkg/errors"
)

func newTestDispatcher(t *testing.T, workers ...Worker) *Dispatcher {
	t.Helper()
	reg := NewRegistry()
	for _, w := range workers {
		require.NoError(t, reg.Register(w.Name(), w))
	}
	return NewDispatcher(reg, WithTaskTimeout(200*time.Millisecond))
}

func TestDispatcher_Success(t *testing.T) {
	fixed := time.Date(2026, 5, 4, 11, 30, 0, 0, time.UTC)
	reg := NewRegistry()
	require.NoError(t, reg.Register("echo", echoWorker("echo", TaskGetDisclosures)))
	d := NewDispatcher(reg, WithClock(func() time.Time { return fixed }))

	res := d.Dispatch(context.Background(), "echo", NewTask(TaskGetDisclosures, map[string]any{"limit": 5}))

	require.True(t, res.OK)
	assert.Empty(t, res.Error)
	assert.Equal(t, ErrorNone, res.ErrorKind)
	payload, ok := PayloadAs[map[string]any](res)
	require.True(t, ok)
	assert.Equal(t, 5, payload["limit"])

	rec, err := reg.Record("echo")
	require.NoError(t, err)
	assert.Equal(t, int64(1), rec.TaskCount)
	assert.Equal(t, 1.0, rec.SuccessRate)
	require.NotNil(t, rec.LastUsed)
	assert.Equal(t, fixed, *rec.LastUsed)
}

func TestDispatcher_WorkerNotFoundLeavesStatsAlone(t *testing.T) {
	d := newTestDispatcher(t, echoWorker("echo", TaskGetDisclosures))

	res := d.Dispatch(context.Background(), "missing", NewTask(TaskGetDisclosures, nil))

	assert.False(t, res.OK)
	assert.Nil(t, res.Payload)
	assert.Equal(t, ErrorWorkerNotFound, res.ErrorKind)
	assert.Contains(t, res.Error, "missing")

	rec, err := d.Registry().Record("echo")
	require.NoError(t, err)
	assert.Equal(t, int64(0), rec.TaskCount)
}

func TestDispatcher_ErrorBecomesWorkerFault(t *testing.T) {
	failing := NewFuncWorker("failing", func(ctx context.Context, task Task) (any, error) {
		return map[string]any{"partial": true}, errors.Wrap(errors.ErrUnavailable, "provider down")
	}, TaskCalculateRatios)
	d := newTestDispatcher(t, failing)

	res := d.Dispatch(context.Background(), "failing", NewTask(TaskCalculateRatios, nil))

	assert.False(t, res.OK)
	assert.Nil(t, res.Payload)
	assert.Equal(t, ErrorWorkerFault, res.ErrorKind)
	assert.Contains(t, res.Error, "provider down")

	rec, _ := d.Registry().Record("failing")
	assert.Equal(t, int64(1), rec.TaskCount)
	assert.Equal(t, 0.0, rec.SuccessRate)
}

func TestDispatcher_PanicIsRecovered(t *testing.T) {
	panicky := NewFuncWorker("panicky", func(ctx context.Context, task Task) (any, error) {
		var m map[string]int
		m["boom"] = 1
		return nil, nil
	}, TaskGenerateSignals)
	d := newTestDispatcher(t, panicky)

	res := d.Dispatch(context.Background(), "panicky", NewTask(TaskGenerateSignals, nil))

	assert.False(t, res.OK)
	assert.Equal(t, ErrorWorkerFault, res.ErrorKind)
	assert.Contains(t, res.Error, "panicked")

	rec, _ := d.Registry().Record("panicky")
	assert.Equal(t, int64(1), rec.TaskCount)
}

func TestDispatcher_Timeout(t *testing.T) {
	slow := NewFuncWorker("slow", func(ctx context.Context, task Task) (any, error) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(5 * time.Second):
			return "late", nil
		}
	}, TaskMakeDecision)
	d := newTestDispatcher(t, slow)

	start := time.Now()
	res := d.Dispatch(context.Background(), "slow", NewTask(TaskMakeDecision, nil))

	assert.Less(t, time.Since(start), 2*time.Second)
	assert.False(t, res.OK)
	assert.Equal(t, ErrorTimeout, res.ErrorKind)

	rec, _ := d.Registry().Record("slow")
	assert.Equal(t, int64(1), rec.TaskCount)
	assert.Equal(t, 0.0, rec.SuccessRate)
}

func TestDispatcher_UnsupportedKindCountsAsFailure(t *testing.T) {
	d := newTestDispatcher(t, echoWorker("echo", TaskGetDisclosures))

	res := d.Dispatch(context.Background(), "echo", NewTask(TaskExecuteTrade, nil))

	assert.False(t, res.OK)
	assert.Equal(t, ErrorUnsupportedTask, res.ErrorKind)

	rec, _ := d.Registry().Record("echo")
	assert.Equal(t, int64(1), rec.TaskCount)
	assert.Equal(t, 0.0, rec.SuccessRate)
}

func TestDispatcher_MixedOutcomesUpdateRate(t *testing.T) {
	calls := 0
	flaky := NewFuncWorker("flaky", func(ctx context.Context, task Task) (any, error) {
		calls++
		if calls%4 == 0 {
			return nil, errors.New("every fourth call fails")
		}
		return calls, nil
	}, TaskAnalyzeSentiment)
	d := newTestDispatcher(t, flaky)

	for i := 0; i < 8; i++ {
		d.Dispatch(context.Background(), "flaky", NewTask(TaskAnalyzeSentiment, nil))
	}

	rec, _ := d.Registry().Record("flaky")
	assert.Equal(t, int64(8), rec.TaskCount)
	assert.InDelta(t, 0.75, rec.SuccessRate, 1e-9)
}

func TestNewDispatcher_NilRegistryPanics(t *testing.T) {
	assert.Panics(t, func() { NewDispatcher(nil) })
}

func TestTask_ParamAccessors(t *testing.T) {
	task := NewTask(TaskCalculateTradeSize, map[string]any{
		"symbol":    "THYAO",
		"limit":     float64(7),
		"portfolio": 250000,
	})

	assert.Equal(t, "THYAO", task.String("symbol", ""))
	assert.Equal(t, "fallback", task.String("missing", "fallback"))
	assert.Equal(t, 7, task.Int("limit", 5))
	assert.Equal(t, 250000.0, task.Float("portfolio", 0))
	assert.Equal(t, 1.5, task.Float("missing", 1.5))
}

func TestDispatcher_CapturesFaultsOnly(t *testing.T) {
	reg := NewRegistry()
	failing := NewFuncWorker("failing", func(context.Context, Task) (any, error) {
		return nil, errors.ErrUnavailable
	}, TaskGetDisclosures)
	require.NoError(t, reg.Register("failing", failing))
	require.NoError(t, reg.Register("echo", echoWorker("echo", TaskGetDisclosures)))

	tracker := noop.New()
	d := NewDispatcher(reg, WithTracker(tracker))
	ctx := errors.WithRun(context.Background(), "ANALYSIS_THYAO_1", "THYAO")

	d.Dispatch(ctx, "echo", NewTask(TaskGetDisclosures, nil))
	d.Dispatch(ctx, "echo", NewTask(TaskAnalyzeSentiment, nil))
	d.Dispatch(ctx, "missing", NewTask(TaskGetDisclosures, nil))
	assert.Zero(t, tracker.Captured())

	res := d.Dispatch(ctx, "failing", NewTask(TaskGetDisclosures, nil))
	assert.False(t, res.OK)
	assert.EqualValues(t, 1, tracker.Captured())

	require.NoError(t, reg.Register("rejecting", NewFuncWorker("rejecting", func(context.Context, Task) (any, error) {
		return nil, errors.Wrap(errors.ErrInvalidOrder, "price must be positive")
	}, TaskExecuteTrade)))
	res = d.Dispatch(ctx, "rejecting", NewTask(TaskExecuteTrade, nil))
	assert.Equal(t, ErrorInvalidOrder, res.ErrorKind)
	assert.EqualValues(t, 1, tracker.Captured())
}
