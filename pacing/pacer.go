// Package pacing admits model calls at a bounded rate shared by every
// connection the relay serves.
package pacing

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// Pacer is a token bucket: Burst calls may go out back to back, after which
// one call is admitted per Interval.
type Pacer struct {
	limiter *rate.Limiter
}

// New creates a pacer. An interval of zero admits every call immediately.
func New(interval time.Duration, burst int) *Pacer {
	if burst < 1 {
		burst = 1
	}

	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}

	return &Pacer{limiter: rate.NewLimiter(limit, burst)}
}

// Wait blocks until a call is admitted or ctx is done.
func (p *Pacer) Wait(ctx context.Context) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("pacer wait: %w", err)
	}
	return nil
}
