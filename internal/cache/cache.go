package cache

import (
	"sync"
	"time"
)

// Cache is a TTL read-through cache for slow-changing aggregates.
// Entries are replaced atomically under the lock; readers may observe a
// stale-but-within-TTL value, which is acceptable for informational
// snapshots. Expiry is enforced lazily on read.
type Cache[V any] struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]entry[V]
	now     func() time.Time
}

type entry[V any] struct {
	data     V
	storedAt time.Time
}

func New[V any](ttl time.Duration) *Cache[V] {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Cache[V]{
		ttl:     ttl,
		entries: make(map[string]entry[V]),
		now:     time.Now,
	}
}

// Get returns the cached value while it is fresh. A false return means
// absent or expired; the caller re-fetches from the source of truth.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	if !ok || c.now().Sub(e.storedAt) > c.ttl {
		var zero V
		return zero, false
	}
	return e.data, true
}

func (c *Cache[V]) Set(key string, data V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry[V]{data: data, storedAt: c.now()}
}

// Invalidate drops a key so the next Get re-fetches.
func (c *Cache[V]) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Len reports the number of entries, expired or not. The key space is a
// small enumerable set, so there is no eviction beyond TTL expiry.
func (c *Cache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
