package llm

import (
	"context"
	"encoding/json"
	"slices"

	llmclient "deckflow/internal/llmClient"
)

// PromptHook observes every prompt and raw response.
type PromptHook interface {
	Before(ctx context.Context, phase, prompt string, input any)
	After(ctx context.Context, phase string, raw json.RawMessage, err error)
}

type hooksKey struct{}

// WithHook adds hook to those already on ctx. Hooks run in the order they
// were added.
func WithHook(ctx context.Context, hook PromptHook) context.Context {
	if hook == nil {
		return ctx
	}
	hooks := slices.Clip(hooksFrom(ctx))
	return context.WithValue(ctx, hooksKey{}, append(hooks, hook))
}

func hooksFrom(ctx context.Context) []PromptHook {
	hooks, _ := ctx.Value(hooksKey{}).([]PromptHook)
	return hooks
}

// WithHooks runs the context's hooks around each call.
func WithHooks() Middleware {
	return func(next llmclient.LLMClient) llmclient.LLMClient {
		return &hooked{next: next}
	}
}

type hooked struct{ next llmclient.LLMClient }

func (h *hooked) Name() string { return h.next.Name() }
func (h *hooked) Close() error { return h.next.Close() }

func (h *hooked) GenerateJSON(ctx context.Context, prompt string, input any) (json.RawMessage, error) {
	hooks := hooksFrom(ctx)
	if len(hooks) == 0 {
		return h.next.GenerateJSON(ctx, prompt, input)
	}
	phase := llmclient.PhaseFrom(ctx)
	for _, hk := range hooks {
		hk.Before(ctx, phase, prompt, input)
	}
	raw, err := h.next.GenerateJSON(ctx, prompt, input)
	for _, hk := range hooks {
		hk.After(ctx, phase, raw, err)
	}
	return raw, err
}
