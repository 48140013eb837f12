// Package cache provides a generic, thread-safe TTL cache.
//
// Collaborators use it to memoize scan verdicts between cache-invalidate
// broadcasts; entries expire on their own so a missed broadcast can only
// serve a stale verdict for a bounded window.
package cache

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Cache is a string-keyed store of values of type V.
type Cache[V any] interface {
	// Get returns the value for key and whether it was present and unexpired.
	Get(key string) (V, bool)
	// Set stores value under key, resetting its TTL.
	Set(key string, value V)
	// Delete removes key if present.
	Delete(key string)
	// Clear removes all entries.
	Clear()
	// Len returns the number of live entries.
	Len() int
}

type ttlEntry[V any] struct {
	value     V
	expiresAt time.Time
}

// TTLCache expires entries a fixed duration after each Set.
type TTLCache[V any] struct {
	mu      sync.RWMutex
	entries map[string]ttlEntry[V]
	ttl     time.Duration
}

// NewTTL creates a TTL cache. A background janitor sweeps expired entries
// every cleanupInterval until ctx is cancelled; expired entries are also
// filtered on read, so the janitor only bounds memory.
func NewTTL[V any](ctx context.Context, ttl, cleanupInterval time.Duration) (*TTLCache[V], error) {
	if ttl <= 0 {
		return nil, errors.New("cache: ttl must be positive")
	}
	if cleanupInterval <= 0 {
		return nil, errors.New("cache: cleanup interval must be positive")
	}

	c := &TTLCache[V]{
		entries: make(map[string]ttlEntry[V]),
		ttl:     ttl,
	}

	go c.janitor(ctx, cleanupInterval)
	return c, nil
}

// Get returns the value for key if present and unexpired.
func (c *TTLCache[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok || time.Now().After(entry.expiresAt) {
		var zero V
		return zero, false
	}
	return entry.value, true
}

// Set stores value under key with a fresh TTL.
func (c *TTLCache[V]) Set(key string, value V) {
	c.mu.Lock()
	c.entries[key] = ttlEntry[V]{value: value, expiresAt: time.Now().Add(c.ttl)}
	c.mu.Unlock()
}

// Delete removes key if present.
func (c *TTLCache[V]) Delete(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Clear removes all entries.
func (c *TTLCache[V]) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]ttlEntry[V])
	c.mu.Unlock()
}

// Len returns the number of live (unexpired) entries.
func (c *TTLCache[V]) Len() int {
	now := time.Now()
	c.mu.RLock()
	defer c.mu.RUnlock()

	n := 0
	for _, entry := range c.entries {
		if !now.After(entry.expiresAt) {
			n++
		}
	}
	return n
}

func (c *TTLCache[V]) janitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := time.Now()
			c.mu.Lock()
			for key, entry := range c.entries {
				if now.After(entry.expiresAt) {
					delete(c.entries, key)
				}
			}
			c.mu.Unlock()
		}
	}
}
