package llmclient

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Options selects and configures a provider.
type Options struct {
	Provider string
	Model    string
	APIKey   string
	BaseURL  string
}

type ClientFactory func(ctx context.Context, opts Options) (LLMClient, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]ClientFactory{
		"gemini": func(ctx context.Context, o Options) (LLMClient, error) {
			return NewGeminiClient(ctx, o.APIKey, o.Model)
		},
		"openai": func(_ context.Context, o Options) (LLMClient, error) {
			return NewOpenAIClient(o.APIKey, o.BaseURL, o.Model)
		},
		"fake": func(context.Context, Options) (LLMClient, error) {
			return NewFakeClient(), nil
		},
	}
)

// Register adds or replaces a provider factory.
func Register(provider string, f ClientFactory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[strings.ToLower(strings.TrimSpace(provider))] = f
}

// Providers lists registered provider names.
func Providers() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	out := make([]string, 0, len(registry))
	for k := range registry {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// New builds a client for opts.Provider.
func New(ctx context.Context, opts Options) (LLMClient, error) {
	name := strings.ToLower(strings.TrimSpace(opts.Provider))
	registryMu.RLock()
	f, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("llm provider %q is not registered (have %s)", opts.Provider, strings.Join(Providers(), ", "))
	}
	return f(ctx, opts)
}
