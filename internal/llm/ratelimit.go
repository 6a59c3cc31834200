package llm

import (
	"context"

	"golang.org/x/time/rate"
)

// Limiter throttles calls that share a budget: model requests and image
// searches.
type Limiter interface {
	Acquire(ctx context.Context) error
}

// NewLimiter allows rps calls per second with bursts of up to burst. With
// rps <= 0 it never blocks.
func NewLimiter(rps float64, burst int) Limiter {
	if rps <= 0 {
		return noLimit{}
	}
	return bucket{rate.NewLimiter(rate.Limit(rps), max(burst, 1))}
}

type bucket struct{ l *rate.Limiter }

func (b bucket) Acquire(ctx context.Context) error { return b.l.Wait(ctx) }

type noLimit struct{}

func (noLimit) Acquire(ctx context.Context) error { return ctx.Err() }
