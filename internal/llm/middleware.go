package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"deckflow/internal/deckerr"
	llmclient "deckflow/internal/llmClient"
)

// Middleware decorates an LLMClient to inject cross-cutting concerns
// (rate limiting, retries, timeouts, logging, hooks).
type Middleware func(llmclient.LLMClient) llmclient.LLMClient

// Wrap applies middlewares in left-to-right order.
// Example: Wrap(inner, A, B) => A(B(inner))
func Wrap(inner llmclient.LLMClient, mws ...Middleware) llmclient.LLMClient {
	out := inner
	for i := len(mws) - 1; i >= 0; i-- {
		out = mws[i](out)
	}
	return out
}

// RateLimit spaces calls to rps per second. rps <= 0 disables it.
func RateLimit(rps float64, burst int) Middleware {
	return func(next llmclient.LLMClient) llmclient.LLMClient {
		return &rateLimited{next: next, rl: NewLimiter(rps, burst)}
	}
}

type rateLimited struct {
	next llmclient.LLMClient
	rl   Limiter
}

func (c *rateLimited) Name() string { return c.next.Name() }
func (c *rateLimited) Close() error { return c.next.Close() }
func (c *rateLimited) GenerateJSON(ctx context.Context, prompt string, input any) (json.RawMessage, error) {
	if err := c.rl.Acquire(ctx); err != nil {
		return nil, err
	}
	return c.next.GenerateJSON(ctx, prompt, input)
}

// Timeout bounds every call. An expired deadline surfaces as a
// GenerationError so stage retry budgets count it like any provider failure.
func Timeout(d time.Duration) Middleware {
	return func(next llmclient.LLMClient) llmclient.LLMClient {
		if d <= 0 {
			return next
		}
		return &timeboxed{next: next, d: d}
	}
}

type timeboxed struct {
	next llmclient.LLMClient
	d    time.Duration
}

func (t *timeboxed) Name() string { return t.next.Name() }
func (t *timeboxed) Close() error { return t.next.Close() }
func (t *timeboxed) GenerateJSON(ctx context.Context, prompt string, input any) (json.RawMessage, error) {
	cctx, cancel := context.WithTimeout(ctx, t.d)
	defer cancel()
	raw, err := t.next.GenerateJSON(cctx, prompt, input)
	if err != nil && ctx.Err() == nil && cctx.Err() == context.DeadlineExceeded {
		return nil, deckerr.Generation(llmclient.PhaseFrom(ctx), fmt.Errorf("call exceeded %s: %w", t.d, context.DeadlineExceeded))
	}
	return raw, err
}
