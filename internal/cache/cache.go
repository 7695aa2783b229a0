// Package cache provides a small in-memory TTL cache that callers inject
// where they need one; there is no package-level instance.
package cache

import (
	"sort"
	"sync"
	"time"

	"famboard/internal/timeutil"
)

// Entry is a cached value with the time it was stored.
type Entry[V any] struct {
	Value    V
	StoredAt time.Time
}

// Config holds cache limits.
type Config struct {
	MaxAge     time.Duration // entries older than this are misses
	MaxEntries int           // 0 means no limit
}

// DefaultConfig keeps calendar bodies for a few minutes.
var DefaultConfig = Config{
	MaxAge:     5 * time.Minute,
	MaxEntries: 256,
}

type Cache[V any] struct {
	mu      sync.RWMutex
	entries map[string]Entry[V]
	cfg     Config
	clock   timeutil.Clock
}

// New creates a cache. A nil clock uses the system clock.
func New[V any](cfg Config, clock timeutil.Clock) *Cache[V] {
	if clock == nil {
		clock = timeutil.SystemClock{}
	}
	return &Cache[V]{
		entries: make(map[string]Entry[V]),
		cfg:     cfg,
		clock:   clock,
	}
}

// Get returns the entry for key if present and younger than MaxAge.
func (c *Cache[V]) Get(key string) (Entry[V], bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return Entry[V]{}, false
	}
	if c.expired(e, c.clock.Now()) {
		c.mu.Lock()
		// Re-check: a concurrent Set may have refreshed the entry.
		if cur, ok := c.entries[key]; ok && cur.StoredAt.Equal(e.StoredAt) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return Entry[V]{}, false
	}
	return e, true
}

func (c *Cache[V]) Set(key string, v V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = Entry[V]{Value: v, StoredAt: c.clock.Now()}
	if c.cfg.MaxEntries > 0 && len(c.entries) > c.cfg.MaxEntries {
		c.cleanup()
	}
}

func (c *Cache[V]) Delete(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Purge drops every entry.
func (c *Cache[V]) Purge() {
	c.mu.Lock()
	c.entries = make(map[string]Entry[V])
	c.mu.Unlock()
}

func (c *Cache[V]) expired(e Entry[V], now time.Time) bool {
	return c.cfg.MaxAge > 0 && now.Sub(e.StoredAt) >= c.cfg.MaxAge
}

// cleanup removes expired entries, then the oldest ones while over the limit.
// Caller holds the write lock.
func (c *Cache[V]) cleanup() {
	now := c.clock.Now()
	for k, e := range c.entries {
		if c.expired(e, now) {
			delete(c.entries, k)
		}
	}
	excess := len(c.entries) - c.cfg.MaxEntries
	if excess <= 0 {
		return
	}

	keys := make([]string, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return c.entries[keys[i]].StoredAt.Before(c.entries[keys[j]].StoredAt)
	})
	for _, k := range keys[:excess] {
		delete(c.entries, k)
	}
}

// Stats reports entry counts.
type Stats struct {
	TotalEntries   int
	ExpiredEntries int
	ActiveEntries  int
}

func (c *Cache[V]) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	now := c.clock.Now()
	expired := 0
	for _, e := range c.entries {
		if c.expired(e, now) {
			expired++
		}
	}
	return Stats{
		TotalEntries:   len(c.entries),
		ExpiredEntries: expired,
		ActiveEntries:  len(c.entries) - expired,
	}
}
