// Package store provides a generic reader/writer-locked map used as the
// backing structure for the process-lifetime registries (channel bindings,
// voice profiles). One lock per logical store keeps unrelated stores from
// contending with each other; critical sections are bounded and never perform
// I/O.
package store

import "sync"

// Keyed is a thread-safe map from K to V. The zero value is not ready for use;
// construct with [NewKeyed]. Reads take the shared lock so concurrent lookups
// never serialise against each other.
type Keyed[K comparable, V any] struct {
	mu sync.RWMutex
	m  map[K]V
}

// NewKeyed returns an initialised [Keyed] store.
func NewKeyed[K comparable, V any]() *Keyed[K, V] {
	return &Keyed[K, V]{m: make(map[K]V)}
}

// Get returns the value stored under key and whether it was present.
func (s *Keyed[K, V]) Get(key K) (V, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.m[key]
	return v, ok
}

// Upsert stores value under key unconditionally, returning the previous value
// and whether one existed.
func (s *Keyed[K, V]) Upsert(key K, value V) (V, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, had := s.m[key]
	s.m[key] = value
	return prev, had
}

// SetIfAbsent stores value under key only when no value is present. It reports
// whether the value was stored; false means an existing entry was left
// untouched.
func (s *Keyed[K, V]) SetIfAbsent(key K, value V) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.m[key]; exists {
		return false
	}
	s.m[key] = value
	return true
}

// Remove deletes the entry under key, reporting whether one existed.
func (s *Keyed[K, V]) Remove(key K) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.m[key]; !ok {
		return false
	}
	delete(s.m, key)
	return true
}

// Len returns the number of stored entries.
func (s *Keyed[K, V]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.m)
}
