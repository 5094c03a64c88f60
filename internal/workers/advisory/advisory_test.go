package advisory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"quorum/internal/adapters/kafka"
	"quorum/internal/agents/workflow"
	"quorum/internal/domain/decision"
	"quorum/internal/events"
	"quorum/pkg/errors"
)

type mockAnalyzer struct {
	mock.Mock
}

func (m *mockAnalyzer) RunWorkflow(ctx context.Context, symbol string) (*workflow.Summary, error) {
	args := m.Called(ctx, symbol)
	summary, _ := args.Get(0).(*workflow.Summary)
	return summary, args.Error(1)
}

type memoryLocker struct {
	mu     sync.Mutex
	held   map[string]bool
	locked []string
}

func (l *memoryLocker) AcquireLock(_ context.Context, key string, _ time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] {
		return false, nil
	}
	if l.held == nil {
		l.held = make(map[string]bool)
	}
	l.held[key] = true
	l.locked = append(l.locked, key)
	return true, nil
}

func (l *memoryLocker) ReleaseLock(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, key)
	return nil
}

func summaryFor(symbol string) *workflow.Summary {
	return &workflow.Summary{Symbol: symbol, Status: workflow.StatusComplete,
		Recommendation: decision.Recommendation{Action: decision.ActionBuy, Confidence: 70}}
}

func TestWatchlistAnalyzer_NormalizesSymbols(t *testing.T) {
	w := NewWatchlistAnalyzer(new(mockAnalyzer), []string{" thyao", "THYAO", "", "asels "}, time.Minute, nil)
	assert.Equal(t, []string{"THYAO", "ASELS"}, w.Symbols())
	assert.True(t, w.Enabled())

	empty := NewWatchlistAnalyzer(new(mockAnalyzer), nil, time.Minute, nil)
	assert.False(t, empty.Enabled())
}

func TestWatchlistAnalyzer_ContinuesPastFailures(t *testing.T) {
	analyzer := new(mockAnalyzer)
	analyzer.On("RunWorkflow", mock.Anything, "THYAO").Return(nil, errors.ErrInvalidSymbol).Once()
	analyzer.On("RunWorkflow", mock.Anything, "ASELS").Return(summaryFor("ASELS"), nil).Once()

	locker := &memoryLocker{}
	w := NewWatchlistAnalyzer(analyzer, []string{"THYAO", "ASELS"}, time.Minute, locker)

	err := w.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrInvalidSymbol)
	assert.Contains(t, err.Error(), "THYAO")

	analyzer.AssertExpectations(t)
	assert.Equal(t, []string{"watchlist:THYAO", "watchlist:ASELS"}, locker.locked)
	assert.Empty(t, locker.held)
}

func TestWatchlistAnalyzer_SkipsLockedSymbols(t *testing.T) {
	analyzer := new(mockAnalyzer)
	analyzer.On("RunWorkflow", mock.Anything, "ASELS").Return(summaryFor("ASELS"), nil).Once()

	locker := &memoryLocker{held: map[string]bool{"watchlist:THYAO": true}}
	w := NewWatchlistAnalyzer(analyzer, []string{"THYAO", "ASELS"}, time.Minute, locker)

	require.NoError(t, w.Run(context.Background()))
	analyzer.AssertExpectations(t)
	analyzer.AssertNotCalled(t, "RunWorkflow", mock.Anything, "THYAO")
}

func TestWatchlistAnalyzer_StopsOnCancel(t *testing.T) {
	analyzer := new(mockAnalyzer)
	w := NewWatchlistAnalyzer(analyzer, []string{"THYAO"}, time.Minute, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, w.Run(ctx), context.Canceled)
	analyzer.AssertNotCalled(t, "RunWorkflow", mock.Anything, mock.Anything)
}

type staticHealth workflow.HealthReport

func (s staticHealth) HealthReport() workflow.HealthReport { return workflow.HealthReport(s) }

type mockProducer struct {
	mock.Mock
}

func (m *mockProducer) Publish(ctx context.Context, topic string, key string, event interface{}) error {
	return m.Called(ctx, topic, key, event).Error(0)
}

func TestAgentHealthMonitor_HealthyIsQuiet(t *testing.T) {
	producer := new(mockProducer)
	m := NewAgentHealthMonitor(staticHealth{Overall: workflow.HealthHealthy, TotalAgents: 6, ActiveAgents: 6},
		events.NewPublisher(producer), time.Minute)

	require.NoError(t, m.Run(context.Background()))
	assert.Equal(t, workflow.HealthHealthy, m.LastStatus())
	producer.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestAgentHealthMonitor_PublishesWhenDegraded(t *testing.T) {
	producer := new(mockProducer)
	producer.On("Publish", mock.Anything, kafka.TopicAgentHealth, workflow.HealthWarning,
		mock.MatchedBy(func(ev *events.AgentHealth) bool {
			return ev.Active == 1 && ev.Total == 6 && len(ev.Warnings) == 2
		})).Return(nil).Once()

	report := staticHealth{
		Overall:         workflow.HealthWarning,
		TotalAgents:     6,
		ActiveAgents:    1,
		Agents:          []workflow.AgentHealth{{Name: "news_agent", Active: true, Warning: "low success rate"}},
		Recommendations: []string{"low agent utilization"},
	}
	m := NewAgentHealthMonitor(report, events.NewPublisher(producer), time.Minute)

	require.NoError(t, m.Run(context.Background()))
	assert.Equal(t, workflow.HealthWarning, m.LastStatus())
	producer.AssertExpectations(t)
}
