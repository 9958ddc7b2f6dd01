// Package memory is an in-process ScopeStore.
package memory

import (
	"context"
	"sync"

	"github.com/kicksvault/storefront/internal/repository"
)

type scopeStore struct {
	mu     sync.RWMutex
	scopes map[string]map[string][]byte
}

// NewScopeStore creates an empty in-memory scope store
func NewScopeStore() *scopeStore {
	return &scopeStore{scopes: make(map[string]map[string][]byte)}
}

func (s *scopeStore) Read(_ context.Context, scope, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.scopes[scope][key]
	if !ok {
		return nil, repository.ErrNoValue
	}
	out := make([]byte, len(value))
	copy(out, value)
	return out, nil
}

func (s *scopeStore) Write(_ context.Context, scope, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.scopes[scope] == nil {
		s.scopes[scope] = make(map[string][]byte)
	}
	stored := make([]byte, len(value))
	copy(stored, value)
	s.scopes[scope][key] = stored
	return nil
}

func (s *scopeStore) Clear(_ context.Context, scope string, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(keys) == 0 {
		delete(s.scopes, scope)
		return nil
	}
	for _, key := range keys {
		delete(s.scopes[scope], key)
	}
	return nil
}
