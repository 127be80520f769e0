// Package cache provides a small process-wide TTL cache service.
// Expiry is driven by an injectable clock so tests control time
// deterministically instead of sleeping.
package cache

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// entry is a stored value with its expiry instant.
type entry struct {
	value     any
	expiresAt time.Time
}

// Cache is a key→value store with per-entry TTL. It is safe for concurrent
// use. Concurrent misses for the same key may recompute redundantly; the
// last writer wins.
type Cache struct {
	// clk supplies the current time; tests inject a mock clock.
	clk clock.Clock

	mu      sync.RWMutex
	entries map[string]entry
}

// New constructs a Cache on the given clock. Pass clock.New() in production.
func New(clk clock.Clock) *Cache {
	return &Cache{
		clk:     clk,
		entries: make(map[string]entry),
	}
}

// Get returns the live value for key, or false when absent or expired.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || c.clk.Now().After(e.expiresAt) {
		return nil, false
	}
	return e.value, true
}

// Set stores value under key for ttl.
func (c *Cache) Set(key string, value any, ttl time.Duration) {
	c.mu.Lock()
	c.entries[key] = entry{value: value, expiresAt: c.clk.Now().Add(ttl)}
	c.mu.Unlock()
}

// Delete removes key, if present. Used to bust stale entries when
// configuration changes ahead of the TTL.
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Wrap returns the cached value for key or computes, stores, and returns a
// fresh one via fn. Errors from fn are returned uncached.
func Wrap[T any](c *Cache, key string, ttl time.Duration, fn func() (T, error)) (T, error) {
	if v, ok := c.Get(key); ok {
		if t, ok := v.(T); ok {
			return t, nil
		}
	}

	t, err := fn()
	if err != nil {
		var zero T
		return zero, err
	}
	c.Set(key, t, ttl)
	return t, nil
}
