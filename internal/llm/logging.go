package llm

import (
	"context"
	"encoding/json"
	"time"

	llmclient "deckflow/internal/llmClient"
	"deckflow/internal/logger"
)

// WithLogging logs request size, latency and errors per phase.
func WithLogging(log *logger.Logger) Middleware {
	log = logger.OrNop(log)
	return func(next llmclient.LLMClient) llmclient.LLMClient {
		return &logging{next: next, log: log}
	}
}

type logging struct {
	next llmclient.LLMClient
	log  *logger.Logger
}

func (l *logging) Name() string { return l.next.Name() }
func (l *logging) Close() error { return l.next.Close() }

func (l *logging) GenerateJSON(ctx context.Context, prompt string, input any) (json.RawMessage, error) {
	in, _ := json.Marshal(input)
	phase := llmclient.PhaseFrom(ctx)
	start := time.Now()
	raw, err := l.next.GenerateJSON(ctx, prompt, input)
	kv := []any{"phase", phase, "client", l.next.Name(), "request_bytes", len(prompt) + len(in), "elapsed", time.Since(start)}
	if err != nil {
		l.log.Warn("llm call failed", append(kv, "error", err)...)
		return raw, err
	}
	l.log.Debug("llm call", append(kv, "response_bytes", len(raw))...)
	return raw, nil
}
