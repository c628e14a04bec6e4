// Package cache provides a content-addressed TTL/LRU cache and a
// memoizer that deduplicates concurrent computations of the same key.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"sync/atomic"
	"time"
)

// Cache is a concurrent-safe LRU cache with TTL expiration.
type Cache[V any] struct {
	mu         sync.RWMutex
	entries    map[string]*entry[V]
	order      []string // LRU order: front=oldest, back=newest
	maxEntries int
	ttl        time.Duration
	now        func() time.Time
	hits       atomic.Int64
	misses     atomic.Int64
}

type entry[V any] struct {
	value     V
	createdAt time.Time
}

// Stats contains cache performance statistics.
type Stats struct {
	Entries    int     `json:"entries" yaml:"entries"`
	MaxEntries int     `json:"max_entries" yaml:"max_entries"`
	Hits       int64   `json:"hits" yaml:"hits"`
	Misses     int64   `json:"misses" yaml:"misses"`
	HitRate    float64 `json:"hit_rate" yaml:"hit_rate"`
}

// New creates a Cache holding at most maxEntries values for ttl each.
// A non-positive maxEntries means unbounded; a non-positive ttl means
// entries never expire.
func New[V any](maxEntries int, ttl time.Duration) *Cache[V] {
	return &Cache[V]{
		entries:    make(map[string]*entry[V]),
		maxEntries: maxEntries,
		ttl:        ttl,
		now:        time.Now,
	}
}

// Key returns the SHA-256 hex digest of b followed by any extra parts.
func Key(b []byte, parts ...string) string {
	h := sha256.New()
	h.Write(b)
	for _, p := range parts {
		h.Write([]byte{0})
		h.Write([]byte(p))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Get returns the cached value for key. Expired entries are removed and
// reported as misses.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	e, ok := c.entries[key]
	if !ok {
		c.misses.Add(1)
		return zero, false
	}

	if c.expired(e) {
		delete(c.entries, key)
		c.removeFromOrder(key)
		c.misses.Add(1)
		return zero, false
	}

	c.removeFromOrder(key)
	c.order = append(c.order, key)
	c.hits.Add(1)
	return e.value, true
}

// Put stores value under key, evicting the least recently used entry when
// the cache is full.
func (c *Cache[V]) Put(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; ok {
		c.entries[key] = &entry[V]{value: value, createdAt: c.now()}
		c.removeFromOrder(key)
		c.order = append(c.order, key)
		return
	}

	for c.maxEntries > 0 && len(c.entries) >= c.maxEntries && len(c.order) > 0 {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}

	c.entries[key] = &entry[V]{value: value, createdAt: c.now()}
	c.order = append(c.order, key)
}

// Clear drops every entry and returns how many were removed.
func (c *Cache[V]) Clear() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := len(c.entries)
	c.entries = make(map[string]*entry[V])
	c.order = nil
	return n
}

// Purge removes expired entries and returns how many were dropped.
func (c *Cache[V]) Purge() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	var remaining []string
	n := 0
	for _, key := range c.order {
		if c.expired(c.entries[key]) {
			delete(c.entries, key)
			n++
			continue
		}
		remaining = append(remaining, key)
	}
	c.order = remaining
	return n
}

// Stats returns cache performance statistics.
func (c *Cache[V]) Stats() Stats {
	c.mu.RLock()
	entries := len(c.entries)
	maxEntries := c.maxEntries
	c.mu.RUnlock()

	hits := c.hits.Load()
	misses := c.misses.Load()

	var hitRate float64
	if total := hits + misses; total > 0 {
		hitRate = float64(hits) / float64(total)
	}

	return Stats{
		Entries:    entries,
		MaxEntries: maxEntries,
		Hits:       hits,
		Misses:     misses,
		HitRate:    hitRate,
	}
}

func (c *Cache[V]) expired(e *entry[V]) bool {
	return c.ttl > 0 && c.now().Sub(e.createdAt) > c.ttl
}

// removeFromOrder removes a key from the LRU order slice.
func (c *Cache[V]) removeFromOrder(key string) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}
