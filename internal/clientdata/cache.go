// Package clientdata provides in-memory caching for data fetched from external providers.
package clientdata

import (
	"sync"
	"time"
)

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// Cache is a concurrency-safe TTL cache. Expired entries are evicted lazily on read
// and in bulk by DeleteExpired, once they are also past the stale retention.
type Cache[V any] struct {
	mu       sync.Mutex
	entries  map[string]entry[V]
	now      func() time.Time
	name     string
	staleFor time.Duration
}

// NewCache creates an empty cache. The name is used in cleanup logs.
func NewCache[V any](name string) *Cache[V] {
	return &Cache[V]{
		entries: make(map[string]entry[V]),
		now:     time.Now,
		name:    name,
	}
}

// WithClock replaces the cache clock. Used by tests.
func (c *Cache[V]) WithClock(now func() time.Time) *Cache[V] {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
	return c
}

// WithStaleRetention keeps expired entries readable through GetStale for d
// after they expire. The default is zero.
func (c *Cache[V]) WithStaleRetention(d time.Duration) *Cache[V] {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.staleFor = d
	return c
}

// Name returns the cache name.
func (c *Cache[V]) Name() string {
	return c.name
}

// Get returns the value for key if it exists and has not expired.
// An expired entry is removed as a side effect.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	e, ok := c.entries[key]
	if !ok {
		return zero, false
	}
	now := c.now()
	if !now.Before(e.expiresAt) {
		if !now.Before(e.expiresAt.Add(c.staleFor)) {
			delete(c.entries, key)
		}
		return zero, false
	}
	return e.value, true
}

// GetStale returns the value for key whether or not it has expired, as long as
// it is still inside the stale retention window. Used as a fallback when the
// provider fails.
func (c *Cache[V]) GetStale(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	e, ok := c.entries[key]
	if !ok || !c.now().Before(e.expiresAt.Add(c.staleFor)) {
		return zero, false
	}
	return e.value, true
}

// Store saves value under key for ttl. A non-positive ttl is ignored.
func (c *Cache[V]) Store(key string, value V, ttl time.Duration) {
	if ttl <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry[V]{value: value, expiresAt: c.now().Add(ttl)}
}

// Delete removes key.
func (c *Cache[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Clear removes every entry.
func (c *Cache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]entry[V])
}

// DeleteExpired removes all entries past their TTL and stale retention and
// returns how many were removed.
func (c *Cache[V]) DeleteExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for key, e := range c.entries {
		if !now.Before(e.expiresAt.Add(c.staleFor)) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of stored entries, including expired ones not yet evicted.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
