package ttlcache

import (
	"context"
	"sync"
	"time"
)

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

func (e entry[V]) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// Cache is a thread-safe in-memory cache with per-entry expiration.
// Expired entries are removed lazily on read, or eagerly by an optional
// background sweeper. There is no capacity-based eviction: callers are
// expected to use narrow, bounded key spaces.
type Cache[K comparable, V any] struct {
	mu    sync.Mutex
	items map[K]entry[V]
	now   func() time.Time
}

// New creates an empty cache.
func New[K comparable, V any]() *Cache[K, V] {
	return &Cache[K, V]{
		items: make(map[K]entry[V]),
		now:   time.Now,
	}
}

// Get retrieves a value from the cache. An entry whose TTL has elapsed
// behaves as a miss and is removed.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.items[key]
	if !ok {
		var zero V
		return zero, false
	}
	if e.expired(c.now()) {
		delete(c.items, key)
		var zero V
		return zero, false
	}
	return e.value, true
}

// Set stores a value with the given TTL, replacing any existing entry for
// the key. The last concurrent Set wins. A non-positive ttl stores the
// value without expiration.
func (c *Cache[K, V]) Set(key K, value V, ttl time.Duration) {
	e := entry[V]{value: value}
	if ttl > 0 {
		e.expiresAt = c.now().Add(ttl)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = e
}

// Invalidate removes an entry from the cache. Removing a missing key is a
// no-op.
func (c *Cache[K, V]) Invalidate(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
}

// Len returns the number of stored entries, including any that have
// expired but have not been swept yet.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Clear removes all entries.
func (c *Cache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[K]entry[V])
}

// StartSweeper launches a background goroutine that periodically removes
// expired entries. It returns immediately; the sweeper stops when the
// context is cancelled. Each sweep pass holds the lock only briefly so
// foreground calls are not starved.
func (c *Cache[K, V]) StartSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.sweep()
			}
		}
	}()
}

func (c *Cache[K, V]) sweep() {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()
	for key, e := range c.items {
		if e.expired(now) {
			delete(c.items, key)
		}
	}
}
