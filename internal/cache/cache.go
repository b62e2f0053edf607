// Package cache provides the in-memory, single-process result cache.
package cache

import (
	"sync"
	"time"

	"github.com/arturoeanton/go-diff-auditor/internal/domain"
)

type entry struct {
	result    *domain.AuditResult
	createdAt time.Time
}

// Cache deduplicates identical audit requests within a TTL, bounded by entry
// count. Staleness is checked lazily at access time; there is no sweeper
// goroutine, so memory is bounded by capacity rather than by a timer.
type Cache struct {
	mu         sync.RWMutex
	entries    map[string]entry
	ttl        time.Duration
	maxEntries int

	now func() time.Time // overridable in tests
}

// New creates a cache. A non-positive ttl or maxEntries disables caching.
func New(ttl time.Duration, maxEntries int) *Cache {
	return &Cache{
		entries:    make(map[string]entry),
		ttl:        ttl,
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

// Get returns the cached result for a fingerprint. Entries older than the
// TTL are treated as absent and purged on the spot.
func (c *Cache) Get(fingerprint string) (*domain.AuditResult, bool) {
	c.mu.RLock()
	e, ok := c.entries[fingerprint]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if c.now().Sub(e.createdAt) > c.ttl {
		c.mu.Lock()
		// Re-check: another writer may have refreshed the entry.
		if cur, still := c.entries[fingerprint]; still && c.now().Sub(cur.createdAt) > c.ttl {
			delete(c.entries, fingerprint)
		}
		c.mu.Unlock()
		return nil, false
	}
	return e.result, true
}

// Put stores a result. When at capacity, the least-recently-inserted entry
// is evicted first.
func (c *Cache) Put(fingerprint string, result *domain.AuditResult) {
	if c.ttl <= 0 || c.maxEntries <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.entries[fingerprint]; !exists && len(c.entries) >= c.maxEntries {
		c.evictOldest()
	}
	c.entries[fingerprint] = entry{result: result, createdAt: c.now()}
}

// Len returns the number of live entries, expired or not.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *Cache) evictOldest() {
	var oldestKey string
	var oldestAt time.Time
	for key, e := range c.entries {
		if oldestKey == "" || e.createdAt.Before(oldestAt) {
			oldestKey = key
			oldestAt = e.createdAt
		}
	}
	if oldestKey != "" {
		delete(c.entries, oldestKey)
	}
}
