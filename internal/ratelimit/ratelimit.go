// Package ratelimit throttles how fast a streaming query pulls records from
// its source.
package ratelimit

import (
	"context"

	"golang.org/x/time/rate"
)

// Limiter paces records. A nil *Limiter never waits.
type Limiter struct {
	limiter *rate.Limiter
}

// New returns a limiter admitting recordsPerSecond records per second with a
// burst of one. It returns nil for 0 or negative rates, meaning unlimited.
func New(recordsPerSecond float64) *Limiter {
	if recordsPerSecond <= 0 {
		return nil
	}
	return &Limiter{
		limiter: rate.NewLimiter(rate.Limit(recordsPerSecond), 1),
	}
}

// Wait blocks until the next record may be read or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil {
		return nil
	}
	return l.limiter.Wait(ctx)
}

// Limit returns the configured rate, 0 when unlimited.
func (l *Limiter) Limit() float64 {
	if l == nil {
		return 0
	}
	return float64(l.limiter.Limit())
}
