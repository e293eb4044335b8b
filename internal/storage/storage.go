package storage

import (
	"sync"
)

// Store is an in-memory keyed store safe for concurrent use
type Store[V any] struct {
	entries map[string]V
	mu      sync.RWMutex
}

func New[V any]() *Store[V] {
	return &Store[V]{
		entries: make(map[string]V),
	}
}

func (s *Store[V]) Get(key string) (V, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, exists := s.entries[key]
	return v, exists
}

func (s *Store[V]) Set(key string, v V) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = v
}

// Update applies fn to the current value for key (zero value if absent) and
// stores the result in one critical section
func (s *Store[V]) Update(key string, fn func(current V, exists bool) V) V {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, exists := s.entries[key]
	next := fn(current, exists)
	s.entries[key] = next
	return next
}
