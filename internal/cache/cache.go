// Package cache implements the named, stampede-safe TTL caches consulted by
// the ASN and history lookups (spec §4.2 C3): an in-process store where
// concurrent misses for the same key collapse into a single loader call via
// golang.org/x/sync/singleflight. The store has no size limit, and expired
// entries are not swept: they stay until a Get reloads or Put replaces them,
// or Invalidate removes them.
package cache

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

type entry struct {
	value     any
	expiresAt time.Time
}

// Loader produces the value for key on a cache miss.
type Loader func(ctx context.Context) (any, error)

// Cache is a single named TTL cache. Use Manager to hold one per concern
// (spec §4.2 names ASN, geolocation, and location-history caches).
type Cache struct {
	name  string
	ttl   time.Duration
	now   func() time.Time
	group singleflight.Group

	mu    sync.RWMutex
	items map[string]entry
}

// New constructs a cache named for metrics/logging, with entries expiring
// ttl after insertion.
func New(name string, ttl time.Duration) *Cache {
	return &Cache{
		name:  name,
		ttl:   ttl,
		now:   time.Now,
		items: make(map[string]entry),
	}
}

// Get returns the cached value for key, calling load on a miss or expiry.
// Concurrent Get calls for the same key share one load invocation.
func (c *Cache) Get(ctx context.Context, key string, load Loader) (any, error) {
	if v, ok := c.lookup(key); ok {
		return v, nil
	}

	result, err, _ := c.group.Do(key, func() (any, error) {
		if v, ok := c.lookup(key); ok {
			return v, nil
		}
		v, err := load(ctx)
		if err != nil {
			return nil, err
		}
		c.Put(key, v)
		return v, nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Peek returns the cached value for key without invoking a loader on a
// miss — useful for callers that want to fall through to a different
// lower-tier store before deciding whether to pay the loader's cost.
func (c *Cache) Peek(key string) (any, bool) {
	return c.lookup(key)
}

func (c *Cache) lookup(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.items[key]
	if !ok || c.now().After(e.expiresAt) {
		return nil, false
	}
	return e.value, true
}

// Put inserts or overwrites key unconditionally, resetting its TTL.
func (c *Cache) Put(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = entry{value: value, expiresAt: c.now().Add(c.ttl)}
}

// Invalidate drops key, forcing the next Get to reload.
func (c *Cache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
}

// Len reports the number of entries currently stored, including ones that
// have expired but not yet been replaced or removed.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Manager owns one Cache per name, as used across the ASN/history
// resolvers so each concern gets its own TTL and singleflight group.
type Manager struct {
	mu     sync.Mutex
	caches map[string]*Cache
}

// NewManager constructs an empty Manager.
func NewManager() *Manager {
	return &Manager{caches: make(map[string]*Cache)}
}

// Named returns the cache registered under name, constructing one with ttl
// the first time it's requested.
func (m *Manager) Named(name string, ttl time.Duration) *Cache {
	m.mu.Lock()
	defer m.mu.Unlock()

	if c, ok := m.caches[name]; ok {
		return c
	}
	c := New(name, ttl)
	m.caches[name] = c
	return c
}
