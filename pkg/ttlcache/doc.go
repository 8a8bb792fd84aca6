// Package ttlcache provides a generic, thread-safe in-memory cache with
// per-entry time-to-live expiration.
//
// Unlike an LRU cache, nothing is evicted under memory pressure: entries
// disappear only when their TTL elapses or when they are explicitly
// invalidated. Expired entries are dropped lazily on read, and a background
// sweeper can be started to reclaim entries that are never read again.
//
// # Usage
//
//	cache := ttlcache.New[int64, string]()
//
//	cache.Set(42, "payload", 30*time.Minute)
//
//	if v, ok := cache.Get(42); ok {
//		// v is guaranteed to be within its TTL
//	}
//
//	cache.Invalidate(42)
//
// Optionally reclaim expired entries in the background:
//
//	cache.StartSweeper(ctx, 5*time.Minute)
//
// # Concurrency
//
// All operations are safe for concurrent use. Entries are immutable once
// stored; an update is a full replace and the last concurrent Set wins.
package ttlcache
