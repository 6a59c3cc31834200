package retry

import (
	"context"
	"time"

	"deckflow/internal/deckerr"
)

// Op is one attempt; attempt counts from 1.
type Op[T any] func(ctx context.Context, attempt int) (T, error)

// Options tunes Do. The zero value retries immediately and classifies with
// deckerr.Retryable.
type Options struct {
	BaseDelay time.Duration
	// Retryable overrides the default classification.
	Retryable func(error) bool
	// OnRetry observes every failed attempt that will be retried.
	OnRetry func(attempt int, err error)
}

// Do runs op up to maxAttempts times, stopping on success, on a fatal error,
// or when ctx is done. The last error is returned on exhaustion.
func Do[T any](ctx context.Context, maxAttempts int, op Op[T], opts ...Options) (T, error) {
	var o Options
	if len(opts) > 0 {
		o = opts[0]
	}
	if o.Retryable == nil {
		o.Retryable = deckerr.Retryable
	}
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	var (
		zero T
		last error
	)
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if last != nil {
				return zero, last
			}
			return zero, err
		}
		out, err := op(ctx, attempt)
		if err == nil {
			return out, nil
		}
		last = err
		if !o.Retryable(err) || attempt == maxAttempts {
			break
		}
		if o.OnRetry != nil {
			o.OnRetry(attempt, err)
		}
		if o.BaseDelay > 0 {
			t := time.NewTimer(o.BaseDelay * time.Duration(1<<(attempt-1)))
			select {
			case <-ctx.Done():
				t.Stop()
				return zero, last
			case <-t.C:
			}
		}
	}
	return zero, last
}
