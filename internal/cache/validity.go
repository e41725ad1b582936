package cache

import (
	"sync"
	"time"
)

// ValidityCache records the time a key (an API token, or an info_hash's
// "instant availability") was last confirmed valid. It is the interface
// debrid resolvers use for their token-validity and instant-availability
// caches (per-resolver, per spec §4.10's "per-provider caches").
type ValidityCache interface {
	Set(key string) error
	Get(key string) (time.Time, bool, error)
}

var _ ValidityCache = (*InMemoryValidityCache)(nil)

// InMemoryValidityCache is a mutex-guarded map recording confirmation
// timestamps. It never persists across restarts, matching the gateway's
// Non-goal of not persisting state.
type InMemoryValidityCache struct {
	mu    sync.RWMutex
	cache map[string]time.Time
}

func NewInMemoryValidityCache() *InMemoryValidityCache {
	return &InMemoryValidityCache{cache: map[string]time.Time{}}
}

func (c *InMemoryValidityCache) Set(key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache[key] = time.Now()
	return nil
}

func (c *InMemoryValidityCache) Get(key string) (time.Time, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	created, found := c.cache[key]
	return created, found, nil
}
