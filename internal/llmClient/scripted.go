package llmclient

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// Responder produces one scripted reply.
type Responder func(ctx context.Context, prompt string, input any) (json.RawMessage, error)

// ScriptedClient answers by phase (see WithPhase). It is safe for concurrent
// use and records how often each phase was called.
type ScriptedClient struct {
	mu       sync.Mutex
	handlers map[string][]Responder
	calls    map[string]int
	fallback Responder
}

func NewScriptedClient() *ScriptedClient {
	return &ScriptedClient{handlers: map[string][]Responder{}, calls: map[string]int{}}
}

// On scripts a phase. With several responders the n-th call uses the n-th
// responder and the last one repeats.
func (s *ScriptedClient) On(phase string, rs ...Responder) *ScriptedClient {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[phase] = rs
	return s
}

// OnJSON scripts a phase with a static value encoded as JSON.
func (s *ScriptedClient) OnJSON(phase string, v any) *ScriptedClient {
	raw, err := json.Marshal(v)
	return s.On(phase, func(context.Context, string, any) (json.RawMessage, error) {
		if err != nil {
			return nil, err
		}
		return raw, nil
	})
}

// Fallback handles phases with no script.
func (s *ScriptedClient) Fallback(r Responder) *ScriptedClient {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fallback = r
	return s
}

func (s *ScriptedClient) Calls(phase string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[phase]
}

func (s *ScriptedClient) Name() string { return "Scripted" }
func (s *ScriptedClient) Close() error { return nil }

func (s *ScriptedClient) GenerateJSON(ctx context.Context, prompt string, input any) (json.RawMessage, error) {
	phase := PhaseFrom(ctx)
	s.mu.Lock()
	n := s.calls[phase]
	s.calls[phase] = n + 1
	rs := s.handlers[phase]
	fb := s.fallback
	s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	switch {
	case len(rs) > 0:
		if n >= len(rs) {
			n = len(rs) - 1
		}
		return rs[n](ctx, prompt, input)
	case fb != nil:
		return fb(ctx, prompt, input)
	}
	return nil, fmt.Errorf("scripted client: no response for phase %q", phase)
}
