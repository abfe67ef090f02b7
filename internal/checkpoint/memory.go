package checkpoint

import (
	"context"
	"sync"
)

// MemoryStore is an in-process Store. It is safe for concurrent use and is
// the default backend for single-instance deployments and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	cursors map[string]string
}

// NewMemoryStore creates an empty in-memory checkpoint store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		cursors: make(map[string]string),
	}
}

// Get returns the stored cursor for the server, or ErrNotFound.
func (s *MemoryStore) Get(_ context.Context, server string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cursor, ok := s.cursors[Key(server)]
	if !ok {
		return "", ErrNotFound
	}
	return cursor, nil
}

// Put records the cursor for the server, overwriting any previous value.
func (s *MemoryStore) Put(_ context.Context, server, cursor string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cursors[Key(server)] = cursor
	return nil
}
