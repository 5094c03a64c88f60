package advisory

import (
	"context"
	"strings"
	"time"

	"quorum/internal/agents/workflow"
	"quorum/internal/workers"
	"quorum/pkg/errors"
)

// Analyzer runs the analysis workflow for one symbol.
type Analyzer interface {
	RunWorkflow(ctx context.Context, symbol string) (*workflow.Summary, error)
}

// Locker serializes watchlist sweeps across instances. The redis adapter satisfies it.
type Locker interface {
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, key string) error
}

// WatchlistAnalyzer periodically runs the workflow for every watched symbol.
type WatchlistAnalyzer struct {
	*workers.BaseWorker
	analyzer Analyzer
	symbols  []string
	locker   Locker
}

// NewWatchlistAnalyzer creates the worker. It is disabled when the watchlist is empty.
func NewWatchlistAnalyzer(analyzer Analyzer, symbols []string, interval time.Duration, locker Locker) *WatchlistAnalyzer {
	clean := make([]string, 0, len(symbols))
	seen := make(map[string]bool, len(symbols))
	for _, s := range symbols {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		clean = append(clean, s)
	}

	return &WatchlistAnalyzer{
		BaseWorker: workers.NewBaseWorker("watchlist_analyzer", interval, len(clean) > 0),
		analyzer:   analyzer,
		symbols:    clean,
		locker:     locker,
	}
}

// Symbols returns the normalized watchlist.
func (w *WatchlistAnalyzer) Symbols() []string {
	return append([]string(nil), w.symbols...)
}

// Run analyzes each symbol in turn. One symbol failing does not stop the sweep.
func (w *WatchlistAnalyzer) Run(ctx context.Context) error {
	var errs errors.MultiError
	analyzed := 0

	for _, symbol := range w.symbols {
		if err := ctx.Err(); err != nil {
			errs.Add(err)
			break
		}

		ok, err := w.lock(ctx, symbol)
		if err != nil {
			errs.Add(errors.Wrapf(err, "lock %s", symbol))
			continue
		}
		if !ok {
			w.Log().Debugw("Symbol locked by another instance, skipping", "symbol", symbol)
			continue
		}

		summary, err := w.analyzer.RunWorkflow(ctx, symbol)
		w.unlock(ctx, symbol)
		if err != nil {
			errs.Add(errors.Wrapf(err, "analyze %s", symbol))
			continue
		}
		analyzed++

		w.Log().Infow("Watchlist symbol analyzed",
			"symbol", symbol,
			"action", summary.Recommendation.Action,
			"confidence", summary.Recommendation.Confidence,
			"status", summary.Status,
		)
	}

	w.Log().Debugw("Watchlist sweep finished", "analyzed", analyzed, "symbols", len(w.symbols))
	return errs.ToError()
}

func (w *WatchlistAnalyzer) lock(ctx context.Context, symbol string) (bool, error) {
	if w.locker == nil {
		return true, nil
	}
	return w.locker.AcquireLock(ctx, lockKey(symbol), w.Interval())
}

func (w *WatchlistAnalyzer) unlock(ctx context.Context, symbol string) {
	if w.locker == nil {
		return
	}
	if err := w.locker.ReleaseLock(ctx, lockKey(symbol)); err != nil {
		w.Log().Warnw("Failed to release watchlist lock", "symbol", symbol, "error", err)
	}
}

func lockKey(symbol string) string {
	return "watchlist:" + symbol
}
