package marketdata

import (
	"context"

	"golang.org/x/time/rate"

	"quorum/pkg/errors"
)

// Limiter throttles outbound data provider calls
type Limiter struct {
	limiter *rate.Limiter
	name    string
}

// NewLimiter creates a limiter allowing perSecond requests with the given burst.
// perSecond <= 0 disables throttling.
func NewLimiter(name string, perSecond float64, burst int) *Limiter {
	limit := rate.Limit(perSecond)
	if perSecond <= 0 {
		limit = rate.Inf
	}
	if burst < 1 {
		burst = 1
	}
	return &Limiter{
		limiter: rate.NewLimiter(limit, burst),
		name:    name,
	}
}

// Wait blocks until the limiter allows the request
func (l *Limiter) Wait(ctx context.Context) error {
	if err := l.limiter.Wait(ctx); err != nil {
		return errors.Wrapf(errors.ErrRateLimitExceeded, "rate limiter %s: %v", l.name, err)
	}
	return nil
}

// Allow checks if a request is allowed without blocking
func (l *Limiter) Allow() bool {
	return l.limiter.Allow()
}
