// Package cache is a small typed TTL cache.  The in-memory implementation
// takes its time from an injected clock so expiry is deterministic under
// test; the Redis implementation delegates expiry to the server.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/iliyamo/seat-booking/internal/clock"
)

// Cache stores values of type V by string key.
type Cache[V any] interface {
	// Get returns the value and true on a hit.  A miss is not an error.
	Get(ctx context.Context, key string) (V, bool, error)
	Set(ctx context.Context, key string, value V, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// Memory is a process-local Cache.  Expired entries are dropped lazily on
// read.
type Memory[V any] struct {
	mu    sync.Mutex
	clock clock.Clock
	items map[string]entry[V]
}

// NewMemory returns an empty cache driven by c.
func NewMemory[V any](c clock.Clock) *Memory[V] {
	return &Memory[V]{clock: c, items: make(map[string]entry[V])}
}

func (m *Memory[V]) Get(_ context.Context, key string) (V, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var zero V
	e, ok := m.items[key]
	if !ok {
		return zero, false, nil
	}
	if !m.clock.Now().Before(e.expiresAt) {
		delete(m.items, key)
		return zero, false, nil
	}
	return e.value, true, nil
}

func (m *Memory[V]) Set(_ context.Context, key string, value V, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	m.mu.Lock()
	m.items[key] = entry[V]{value: value, expiresAt: m.clock.Now().Add(ttl)}
	m.mu.Unlock()
	return nil
}

func (m *Memory[V]) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.items, key)
	m.mu.Unlock()
	return nil
}

// Len reports the number of stored entries, expired ones included.
func (m *Memory[V]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}
