package artifact

import (
	"context"
	"sort"
	"strings"
	"sync"
)

type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

func (s *MemoryStore) Put(_ context.Context, sessionID, path string, content []byte) error {
	key, err := objectKey(sessionID, path)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = append([]byte(nil), content...)
	return nil
}

func (s *MemoryStore) Get(_ context.Context, sessionID, path string) ([]byte, error) {
	key, err := objectKey(sessionID, path)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	raw, ok := s.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), raw...), nil
}

func (s *MemoryStore) List(_ context.Context, sessionID string) ([]string, error) {
	sid, err := cleanSession(sessionID)
	if err != nil {
		return nil, err
	}
	prefix := sid + "/"
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, 16)
	for key := range s.data {
		if strings.HasPrefix(key, prefix) {
			out = append(out, strings.TrimPrefix(key, prefix))
		}
	}
	sort.Strings(out)
	return out, nil
}

func (s *MemoryStore) GetURL(context.Context, string, string) (string, error) { return "", nil }
