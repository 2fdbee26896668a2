// Package ratelimit wraps golang.org/x/time/rate for the source adapters,
// grounded on the teacher's internal/eodhd.Client limiter field.
package ratelimit

import (
	"context"

	"golang.org/x/time/rate"
)

// Limiter rate-limits outbound polls/fetches per source.
type Limiter struct {
	limiter *rate.Limiter
}

// New creates a Limiter allowing ratePerSecond requests/sec with a burst of
// the same size.
func New(ratePerSecond float64) *Limiter {
	if ratePerSecond <= 0 {
		ratePerSecond = 1
	}
	burst := int(ratePerSecond)
	if burst < 1 {
		burst = 1
	}
	return &Limiter{limiter: rate.NewLimiter(rate.Limit(ratePerSecond), burst)}
}

// Wait blocks until a token is available or ctx is cancelled.
func (l *Limiter) Wait(ctx context.Context) error {
	return l.limiter.Wait(ctx)
}
