// Package cache implements C2: a size-bounded, time-bounded key-value store
// with LRU eviction, plus the three logical caches named in the data model
// (final listing responses, debrid artifacts, upstream metadata).
package cache

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// TTLLRU is a generic get/set/cap cache: get(k) returns the value if present
// and not expired (refreshing LRU position); set(k, v) evicts the oldest
// entry when at capacity before insertion. Expiry is checked lazily on read;
// Sweep deletes at least the expired entries to bound memory between reads.
type TTLLRU[K comparable, V any] struct {
	mu    sync.Mutex
	lru   *lru.Cache[K, entry[V]]
	ttl   time.Duration
}

// New creates a TTL+LRU cache capped at size entries, each living for ttl
// after insertion.
func New[K comparable, V any](size int, ttl time.Duration) (*TTLLRU[K, V], error) {
	l, err := lru.New[K, entry[V]](size)
	if err != nil {
		return nil, err
	}
	return &TTLLRU[K, V]{lru: l, ttl: ttl}, nil
}

// Get returns the cached value and true if present and not expired.
func (c *TTLLRU[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.lru.Get(key)
	if !ok {
		var zero V
		return zero, false
	}
	if time.Now().After(e.expiresAt) {
		c.lru.Remove(key)
		var zero V
		return zero, false
	}
	return e.value, true
}

// Set inserts or overwrites key with v, resetting its TTL and LRU position.
func (c *TTLLRU[K, V]) Set(key K, v V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Add(key, entry[V]{value: v, expiresAt: time.Now().Add(c.ttl)})
}

// SetTTL is like Set but with an explicit per-entry TTL, used by caches
// whose entries have heterogeneous lifetimes (e.g. final-response caching
// where the TTL is scaled down by reliability penalties).
func (c *TTLLRU[K, V]) SetTTL(key K, v V, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Add(key, entry[V]{value: v, expiresAt: time.Now().Add(ttl)})
}

// Len returns the current number of entries, expired or not.
func (c *TTLLRU[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// Sweep removes all currently-expired entries. Intended to be called
// periodically from a background goroutine to bound memory between reads.
func (c *TTLLRU[K, V]) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	now := time.Now()
	for _, key := range c.lru.Keys() {
		if e, ok := c.lru.Peek(key); ok && now.After(e.expiresAt) {
			c.lru.Remove(key)
			removed++
		}
	}
	return removed
}

// StartSweeper launches a background goroutine that calls Sweep every
// interval until stop is closed.
func (c *TTLLRU[K, V]) StartSweeper(interval time.Duration, stop <-chan struct{}) {
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				c.Sweep()
			case <-stop:
				return
			}
		}
	}()
}
