package store

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// MemoryStore is a process-local KV used in development and tests.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }

// Ping always succeeds.
func (s *MemoryStore) Ping(ctx context.Context) error { return ctx.Err() }

// Get retrieves a copy of the value under key.
func (s *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.data[key]
	if !ok {
		return nil, ErrKeyNotFound
	}
	return append([]byte(nil), v...), nil
}

// Put stores a copy of value under key.
func (s *MemoryStore) Put(ctx context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[key] = append([]byte(nil), value...)
	return nil
}

// List returns matching keys in ascending order.
func (s *MemoryStore) List(ctx context.Context, prefix, startAfter string, limit int) ([]string, error) {
	s.mu.RLock()
	keys := make([]string, 0)
	for k := range s.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	s.mu.RUnlock()

	sort.Strings(keys)
	return applyListWindow(keys, startAfter, limit), nil
}

// Len returns the number of stored keys.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}
