package memory

import (
	"context"
	"sync"
)

// PrefStore is an in-memory ports.PreferenceStore. It backs board
// sessions when no Valkey address is configured and the unit tests.
type PrefStore struct {
	mu   sync.RWMutex
	data map[string]string
}

// NewPrefStore creates an empty in-memory store.
func NewPrefStore() *PrefStore {
	return &PrefStore{data: make(map[string]string)}
}

// Get retrieves a value; missing keys read as empty.
func (s *PrefStore) Get(ctx context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data[key], nil
}

// Set stores a value.
func (s *PrefStore) Set(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	return nil
}
