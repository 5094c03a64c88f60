package marketdata

import (
	"context"
	"time"

	"quorum/internal/adapters/config"
	"quorum/internal/domain/market"
	"quorum/internal/metrics"
	"quorum/pkg/errors"
	"quorum/pkg/logger"
)

// Provider names accepted in MARKET_DATA_PROVIDER
const (
	ProviderStatic = "static"
	ProviderLive   = "live"
)

// LiveSource combines Yahoo prices with the HTTP feeds.
type LiveSource struct {
	quotes *YahooQuotes
	feeds  *RestFeeds
}

// NewLiveSource creates a live data source
func NewLiveSource(quotes *YahooQuotes, feeds *RestFeeds) *LiveSource {
	return &LiveSource{quotes: quotes, feeds: feeds}
}

func (s *LiveSource) GetPrice(ctx context.Context, symbol string) (market.Quote, error) {
	return s.quotes.GetPrice(ctx, symbol)
}

func (s *LiveSource) GetPriceHistory(ctx context.Context, symbol string, days int) ([]market.Candle, error) {
	return s.quotes.GetPriceHistory(ctx, symbol, days)
}

func (s *LiveSource) GetDisclosures(ctx context.Context, limit int) ([]market.Disclosure, error) {
	return s.feeds.GetDisclosures(ctx, limit)
}

func (s *LiveSource) GetExchangeRates(ctx context.Context) (map[string]float64, error) {
	return s.feeds.GetExchangeRates(ctx)
}

func (s *LiveSource) GetFinancials(ctx context.Context, symbol string) (market.Financials, error) {
	return s.feeds.GetFinancials(ctx, symbol)
}

// Guarded wraps a DataSource with throttling, metrics and logging.
type Guarded struct {
	next    market.DataSource
	name    string
	limiter *Limiter
	log     *logger.Logger
}

// NewGuarded wraps next. A nil limiter disables throttling.
func NewGuarded(name string, next market.DataSource, limiter *Limiter) *Guarded {
	return &Guarded{
		next:    next,
		name:    name,
		limiter: limiter,
		log:     logger.Component("market_data").With("provider", name),
	}
}

func (g *Guarded) observe(ctx context.Context, method string, call func() error) error {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			metrics.RecordDataSourceCall(g.name, method, 0, err)
			return err
		}
	}

	start := time.Now()
	err := call()
	latency := time.Since(start)
	metrics.RecordDataSourceCall(g.name, method, latency, err)

	if err != nil {
		g.log.Warnw("Data source call failed", "method", method, "latency", latency, "error", err)
		return err
	}
	g.log.Debugw("Data source call", "method", method, "latency", latency)
	return nil
}

func (g *Guarded) GetPrice(ctx context.Context, symbol string) (q market.Quote, err error) {
	err = g.observe(ctx, "price", func() error {
		q, err = g.next.GetPrice(ctx, symbol)
		return err
	})
	return q, err
}

func (g *Guarded) GetDisclosures(ctx context.Context, limit int) (d []market.Disclosure, err error) {
	err = g.observe(ctx, "disclosures", func() error {
		d, err = g.next.GetDisclosures(ctx, limit)
		return err
	})
	return d, err
}

func (g *Guarded) GetExchangeRates(ctx context.Context) (r map[string]float64, err error) {
	err = g.observe(ctx, "rates", func() error {
		r, err = g.next.GetExchangeRates(ctx)
		return err
	})
	return r, err
}

func (g *Guarded) GetPriceHistory(ctx context.Context, symbol string, days int) (c []market.Candle, err error) {
	err = g.observe(ctx, "history", func() error {
		c, err = g.next.GetPriceHistory(ctx, symbol, days)
		return err
	})
	return c, err
}

func (g *Guarded) GetFinancials(ctx context.Context, symbol string) (f market.Financials, err error) {
	err = g.observe(ctx, "financials", func() error {
		f, err = g.next.GetFinancials(ctx, symbol)
		return err
	})
	return f, err
}

// NewFromConfig builds the configured data source. cache may be nil.
func NewFromConfig(cfg config.MarketDataConfig, cache Cache) (market.DataSource, error) {
	var (
		src market.DataSource
		lim *Limiter
	)

	name := cfg.Provider
	switch name {
	case "", ProviderStatic:
		name = ProviderStatic
		src = NewStaticSource(time.Now().UTC().Truncate(24 * time.Hour))
	case ProviderLive:
		src = NewLiveSource(
			NewYahooQuotes(cfg.SymbolSuffix),
			NewRestFeeds(RestFeedsConfig{
				FXBaseURL:      cfg.FXBaseURL,
				FXBase:         cfg.FXBase,
				DisclosuresURL: cfg.DisclosuresURL,
				FinancialsURL:  cfg.FinancialsURL,
				Timeout:        cfg.Timeout,
			}),
		)
		lim = NewLimiter(ProviderLive, cfg.RateLimit, cfg.RateBurst)
	default:
		return nil, errors.Wrapf(errors.ErrInvalidInput, "unknown market data provider %q", cfg.Provider)
	}

	if cache != nil && cfg.CacheTTL > 0 {
		src = NewCachedSource(src, cache, cfg.CacheTTL)
	}
	return NewGuarded(name, src, lim), nil
}
