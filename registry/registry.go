// Package registry provides the per-run lookup table that maps identifiers to
// the state kept for them. It is safe for concurrent use and write-once per key.
package registry

import (
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrDuplicate is returned when a key is registered twice
	ErrDuplicate = errors.New("key already registered")
	// ErrNotFound is returned when a key has never been registered
	ErrNotFound = errors.New("key not registered")
)

// Registry is a mutex-guarded map whose entries cannot be overwritten. One
// registry lives for exactly one run and is dropped with it.
type Registry[K comparable, V any] struct {
	mu      sync.RWMutex
	entries map[K]V
	order   []K
}

// New creates an empty registry
func New[K comparable, V any]() *Registry[K, V] {
	return &Registry[K, V]{
		entries: make(map[K]V),
	}
}

// Register stores value under key. Registering an existing key leaves the
// original value in place and returns ErrDuplicate.
func (r *Registry[K, V]) Register(key K, value V) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[key]; exists {
		return fmt.Errorf("%w: %v", ErrDuplicate, key)
	}
	r.entries[key] = value
	r.order = append(r.order, key)
	return nil
}

// Get returns the value stored under key
func (r *Registry[K, V]) Get(key K) (V, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	v, ok := r.entries[key]
	return v, ok
}

// MustGet returns the value stored under key or an error wrapping ErrNotFound
func (r *Registry[K, V]) MustGet(key K) (V, error) {
	v, ok := r.Get(key)
	if !ok {
		return v, fmt.Errorf("%w: %v", ErrNotFound, key)
	}
	return v, nil
}

// Contains reports whether key has been registered
func (r *Registry[K, V]) Contains(key K) bool {
	_, ok := r.Get(key)
	return ok
}

// Len returns the number of registered keys
func (r *Registry[K, V]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Keys returns the registered keys in registration order
func (r *Registry[K, V]) Keys() []K {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]K, len(r.order))
	copy(out, r.order)
	return out
}

// Range calls fn for each entry in registration order until fn returns false.
// fn runs outside the lock, so it may use the registry itself.
func (r *Registry[K, V]) Range(fn func(key K, value V) bool) {
	for _, key := range r.Keys() {
		v, ok := r.Get(key)
		if !ok {
			continue
		}
		if !fn(key, v) {
			return
		}
	}
}
