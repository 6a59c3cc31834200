package session

import (
	"sort"
	"sync"

	"github.com/google/uuid"

	"deckflow/internal/types/deck"
)

// Registry tracks live sessions by ID for the API surface.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Store
}

func NewRegistry() *Registry {
	return &Registry{sessions: map[string]*Store{}}
}

// Create starts a session under a fresh UUID.
func (r *Registry) Create(req deck.Request) *Store {
	st := New(uuid.NewString(), req)
	r.mu.Lock()
	r.sessions[st.ID()] = st
	r.mu.Unlock()
	return st
}

func (r *Registry) Get(id string) (*Store, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	st, ok := r.sessions[id]
	return st, ok
}

// IDs lists session IDs in lexical order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
