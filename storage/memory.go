package storage

import (
	"context"
	"sync"
	"time"

	"github.com/c360studio/lccshelf/shelf"
)

type memoryEntry struct {
	window  shelf.Window
	expires time.Time
}

// sweepInterval is the least time between full passes that drop expired
// entries on write.
const sweepInterval = time.Minute

// MemoryCache is a process-local shelf.Cache. Expired entries are dropped
// when next read, and writes sweep the whole map at most once per
// sweepInterval so keys that are never read again do not pile up.
type MemoryCache struct {
	mu        sync.Mutex
	entries   map[string]memoryEntry
	now       func() time.Time
	nextSweep time.Time
}

var _ shelf.Cache = (*MemoryCache)(nil)

// NewMemoryCache returns an empty cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

// Fetch implements shelf.Cache. compute runs without the lock held, so
// concurrent misses on one key may each compute.
func (c *MemoryCache) Fetch(ctx context.Context, key string, ttl time.Duration, compute func(context.Context) (shelf.Window, error)) (shelf.Window, error) {
	c.mu.Lock()
	e, ok := c.entries[key]
	if ok && c.now().Before(e.expires) {
		c.mu.Unlock()
		return e.window, nil
	}
	if ok {
		delete(c.entries, key)
	}
	c.mu.Unlock()

	w, err := compute(ctx)
	if err != nil {
		return shelf.Window{}, err
	}

	c.mu.Lock()
	now := c.now()
	if !now.Before(c.nextSweep) {
		c.sweep(now)
		c.nextSweep = now.Add(sweepInterval)
	}
	c.entries[key] = memoryEntry{window: w, expires: now.Add(ttl)}
	c.mu.Unlock()
	return w, nil
}

// sweep drops every expired entry. The caller holds mu.
func (c *MemoryCache) sweep(now time.Time) {
	for k, e := range c.entries {
		if !now.Before(e.expires) {
			delete(c.entries, k)
		}
	}
}

// Len returns the number of stored entries, expired or not.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
