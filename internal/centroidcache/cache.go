// Package centroidcache wraps a centroidstore.Store with a bounded,
// TTL-aware, singleflight-style read-through cache (spec §4.B), grounded on
// the teacher's CachedEmbedder LRU-wrapping pattern in internal/embed/cached.go,
// generalized with a per-key TTL and fill deduplication the embedder cache
// doesn't need.
package centroidcache

import (
	"context"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/aman-cerp/federated-retrieval/internal/centroidstore"
	"github.com/aman-cerp/federated-retrieval/internal/retrieval"
)

// DefaultSize is the default LRU entry bound (spec §9 default).
const DefaultSize = 10000

// DefaultTTL is the default cache-entry freshness window.
const DefaultTTL = 5 * time.Minute

type entry struct {
	centroid  retrieval.Centroid
	cachedAt  time.Time
}

// Cache sits in front of a centroidstore.Store. Misses and expired entries
// fill from the backing store; concurrent requests for the same key share a
// single fill (no thundering herd), matching the teacher's single-flight
// instinct in its circuit breaker and cached-embedder designs even though
// neither the teacher's LRU cache itself serializes fills.
type Cache struct {
	store Store
	lru   *lru.Cache[centroidstore.Key, entry]
	ttl   time.Duration

	fillMu sync.Mutex
	inFlight map[centroidstore.Key]*fillCall
}

// Store is the subset of centroidstore.Store the cache needs to read through.
type Store interface {
	Get(ctx context.Context, key centroidstore.Key) (*retrieval.Centroid, bool, error)
}

type fillCall struct {
	done chan struct{}
	val  *retrieval.Centroid
	ok   bool
	err  error
}

// New constructs a Cache of the given size and TTL, defaulting both when
// non-positive.
func New(store Store, size int, ttl time.Duration) (*Cache, error) {
	if size <= 0 {
		size = DefaultSize
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	l, err := lru.New[centroidstore.Key, entry](size)
	if err != nil {
		return nil, err
	}
	return &Cache{
		store:    store,
		lru:      l,
		ttl:      ttl,
		inFlight: make(map[centroidstore.Key]*fillCall),
	}, nil
}

// Get returns the centroid for key, filling from the backing store on miss
// or expiry. The bool return distinguishes "not found anywhere" from an error.
func (c *Cache) Get(ctx context.Context, key centroidstore.Key) (*retrieval.Centroid, bool, error) {
	if e, ok := c.lru.Get(key); ok && time.Since(e.cachedAt) < c.ttl {
		centroid := e.centroid
		return &centroid, true, nil
	}
	return c.fill(ctx, key)
}

// fill ensures only one backing-store read happens per key at a time;
// concurrent callers for the same key wait on the first call's result.
func (c *Cache) fill(ctx context.Context, key centroidstore.Key) (*retrieval.Centroid, bool, error) {
	c.fillMu.Lock()
	if call, ok := c.inFlight[key]; ok {
		c.fillMu.Unlock()
		select {
		case <-call.done:
			return call.val, call.ok, call.err
		case <-ctx.Done():
			return nil, false, ctx.Err()
		}
	}

	call := &fillCall{done: make(chan struct{})}
	c.inFlight[key] = call
	c.fillMu.Unlock()

	val, ok, err := c.store.Get(ctx, key)

	c.fillMu.Lock()
	delete(c.inFlight, key)
	c.fillMu.Unlock()

	call.val, call.ok, call.err = val, ok, err
	close(call.done)

	if err == nil && ok {
		c.lru.Add(key, entry{centroid: *val, cachedAt: time.Now()})
	}
	return val, ok, err
}

// Invalidate evicts key from the cache, forcing the next Get to read through.
func (c *Cache) Invalidate(key centroidstore.Key) {
	c.lru.Remove(key)
}

// Clear empties the cache entirely.
func (c *Cache) Clear() {
	c.lru.Purge()
}

// Len reports the current number of cached entries (for tests/metrics).
func (c *Cache) Len() int {
	return c.lru.Len()
}
