package workers

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quorum/pkg/errors"
)

type mockWorker struct {
	*BaseWorker
	runCount int32
	runFunc  func(ctx context.Context) error
}

func newMockWorker(name string, interval time.Duration, enabled bool) *mockWorker {
	return &mockWorker{
		BaseWorker: NewBaseWorker(name, interval, enabled),
		runFunc:    func(ctx context.Context) error { return nil },
	}
}

func (m *mockWorker) Run(ctx context.Context) error {
	atomic.AddInt32(&m.runCount, 1)
	if m.runFunc != nil {
		return m.runFunc(ctx)
	}
	return nil
}

func (m *mockWorker) runs() int {
	return int(atomic.LoadInt32(&m.runCount))
}

func TestScheduler_StartStop(t *testing.T) {
	scheduler := NewScheduler()
	worker := newMockWorker("watchlist", 50*time.Millisecond, true)
	scheduler.RegisterWorker(worker)

	require.NoError(t, scheduler.Start(context.Background()))
	assert.True(t, scheduler.IsRunning())

	time.Sleep(130 * time.Millisecond)

	require.NoError(t, scheduler.Stop())
	assert.False(t, scheduler.IsRunning())

	// immediate run plus at least one tick
	assert.GreaterOrEqual(t, worker.runs(), 2)
	assert.EqualValues(t, worker.runs(), worker.Health().RunCount)
}

func TestScheduler_DisabledWorker(t *testing.T) {
	scheduler := NewScheduler()
	enabled := newMockWorker("enabled", 50*time.Millisecond, true)
	disabled := newMockWorker("disabled", 50*time.Millisecond, false)
	scheduler.RegisterWorker(enabled)
	scheduler.RegisterWorker(disabled)

	require.NoError(t, scheduler.Start(context.Background()))
	time.Sleep(80 * time.Millisecond)
	require.NoError(t, scheduler.Stop())

	assert.Greater(t, enabled.runs(), 0)
	assert.Equal(t, 0, disabled.runs())
}

func TestScheduler_RecordsErrorsAndPanics(t *testing.T) {
	scheduler := NewScheduler()

	failing := newMockWorker("failing", time.Hour, true)
	failing.runFunc = func(context.Context) error { return errors.ErrUnavailable }

	panicking := newMockWorker("panicking", time.Hour, true)
	panicking.runFunc = func(context.Context) error { panic("boom") }

	scheduler.RegisterWorker(failing)
	scheduler.RegisterWorker(panicking)

	require.NoError(t, scheduler.Start(context.Background()))
	require.Eventually(t, func() bool {
		return failing.Health().RunCount == 1 && panicking.Health().RunCount == 1
	}, time.Second, 10*time.Millisecond)
	require.NoError(t, scheduler.Stop())

	h := failing.Health()
	assert.EqualValues(t, 1, h.ErrorCount)
	assert.Contains(t, h.LastError, "service unavailable")

	h = panicking.Health()
	assert.EqualValues(t, 1, h.ErrorCount)
	assert.Contains(t, h.LastError, "boom")

	assert.Len(t, scheduler.Health(), 2)
}

func TestScheduler_ShutdownTimeout(t *testing.T) {
	scheduler := NewScheduler().WithShutdownTimeout(30 * time.Millisecond)

	release := make(chan struct{})
	defer close(release)
	stuck := newMockWorker("stuck", time.Hour, true)
	stuck.runFunc = func(context.Context) error {
		<-release
		return nil
	}
	scheduler.RegisterWorker(stuck)

	require.NoError(t, scheduler.Start(context.Background()))
	require.Eventually(t, func() bool { return stuck.runs() == 1 }, time.Second, 5*time.Millisecond)

	err := scheduler.Stop()
	assert.ErrorIs(t, err, errors.ErrTimeout)
	assert.False(t, scheduler.IsRunning())
}

func TestScheduler_CannotStartTwice(t *testing.T) {
	scheduler := NewScheduler()
	scheduler.RegisterWorker(newMockWorker("w", time.Hour, true))

	require.NoError(t, scheduler.Start(context.Background()))
	assert.Error(t, scheduler.Start(context.Background()))
	require.NoError(t, scheduler.Stop())

	assert.Error(t, scheduler.Stop())
}

func TestScheduler_RegisterAfterStartIsIgnored(t *testing.T) {
	scheduler := NewScheduler()
	scheduler.RegisterWorker(newMockWorker("first", time.Hour, true))

	require.NoError(t, scheduler.Start(context.Background()))
	scheduler.RegisterWorker(newMockWorker("late", time.Hour, true))
	require.NoError(t, scheduler.Stop())

	workers := scheduler.GetWorkers()
	require.Len(t, workers, 1)
	assert.Equal(t, "first", workers[0].Name())
}

func TestBaseWorker_FailureStreak(t *testing.T) {
	w := NewBaseWorker("watchlist", time.Minute, true)
	at := time.Date(2026, 4, 14, 10, 0, 0, 0, time.UTC)
	w.now = func() time.Time { return at }

	w.RecordError(errors.ErrUnavailable, 10*time.Millisecond)
	w.RecordError(errors.ErrTimeout, 30*time.Millisecond)

	h := w.Health()
	assert.Equal(t, 2, h.ConsecutiveFailures)
	assert.True(t, h.Failing(2))
	assert.False(t, h.Failing(3))
	assert.True(t, h.LastSuccess.IsZero())
	assert.Equal(t, 20*time.Millisecond, h.AvgDuration)

	w.RecordRun(20 * time.Millisecond)
	h = w.Health()
	assert.Equal(t, 0, h.ConsecutiveFailures)
	assert.EqualValues(t, 3, h.RunCount)
	assert.EqualValues(t, 2, h.ErrorCount)
	assert.Equal(t, at, h.LastSuccess)
	assert.Empty(t, h.LastError)
}

func TestScheduler_Check(t *testing.T) {
	scheduler := NewScheduler()
	healthy := newMockWorker("healthy", time.Hour, true)
	broken := newMockWorker("broken", time.Hour, true)
	scheduler.RegisterWorker(healthy)
	scheduler.RegisterWorker(broken)

	check := scheduler.Check(2)
	require.NoError(t, check(context.Background()))

	broken.RecordError(errors.ErrUnavailable, time.Millisecond)
	require.NoError(t, check(context.Background()))

	broken.RecordError(errors.ErrUnavailable, time.Millisecond)
	err := check(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrUnavailable)
	assert.Contains(t, err.Error(), "broken")
	assert.NotContains(t, err.Error(), "healthy")

	broken.SetEnabled(false)
	assert.NoError(t, check(context.Background()))
}
