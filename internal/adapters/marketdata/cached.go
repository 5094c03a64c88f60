package marketdata

import (
	"context"
	"fmt"
	"time"

	"quorum/internal/domain/market"
	"quorum/pkg/logger"
)

// Cache is the JSON key/value store used for read-through caching.
// The redis adapter satisfies it.
type Cache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

const cachePrefix = "marketdata:"

// CachedSource caches prices, history and financials. Disclosures and
// rates always go to the underlying source.
type CachedSource struct {
	next  market.DataSource
	cache Cache
	ttl   time.Duration
	log   *logger.Logger
}

// NewCachedSource wraps next with a read-through cache
func NewCachedSource(next market.DataSource, cache Cache, ttl time.Duration) *CachedSource {
	return &CachedSource{
		next:  next,
		cache: cache,
		ttl:   ttl,
		log:   logger.Component("market_data_cache"),
	}
}

func readThrough[T any](ctx context.Context, c *CachedSource, key string, load func() (T, error)) (T, error) {
	var cached T
	if err := c.cache.Get(ctx, cachePrefix+key, &cached); err == nil {
		return cached, nil
	}

	v, err := load()
	if err != nil {
		return v, err
	}
	if err := c.cache.Set(ctx, cachePrefix+key, v, c.ttl); err != nil {
		c.log.Debugw("Cache write failed", "key", key, "error", err)
	}
	return v, nil
}

func (c *CachedSource) GetPrice(ctx context.Context, symbol string) (market.Quote, error) {
	return readThrough(ctx, c, "price:"+normalize(symbol), func() (market.Quote, error) {
		return c.next.GetPrice(ctx, symbol)
	})
}

func (c *CachedSource) GetPriceHistory(ctx context.Context, symbol string, days int) ([]market.Candle, error) {
	key := fmt.Sprintf("history:%s:%d", normalize(symbol), days)
	return readThrough(ctx, c, key, func() ([]market.Candle, error) {
		return c.next.GetPriceHistory(ctx, symbol, days)
	})
}

func (c *CachedSource) GetFinancials(ctx context.Context, symbol string) (market.Financials, error) {
	return readThrough(ctx, c, "financials:"+normalize(symbol), func() (market.Financials, error) {
		return c.next.GetFinancials(ctx, symbol)
	})
}

func (c *CachedSource) GetDisclosures(ctx context.Context, limit int) ([]market.Disclosure, error) {
	return c.next.GetDisclosures(ctx, limit)
}

func (c *CachedSource) GetExchangeRates(ctx context.Context) (map[string]float64, error) {
	return c.next.GetExchangeRates(ctx)
}
