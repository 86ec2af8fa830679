package governance

import (
	"sync"
	"time"
)

// cacheEntry holds a cached coverage report with its expiration time and
// insertion order.
type cacheEntry struct {
	report     *CoverageReport
	expiresAt  time.Time
	insertedAt time.Time
}

// evaluationCache is a thread-safe in-memory cache with TTL and max-size
// eviction for coverage evaluations. When the cache reaches maxSize, the
// oldest entry (by insertion time) is evicted. Expired entries are lazily
// evicted on get.
type evaluationCache struct {
	mu      sync.Mutex
	items   map[string]*cacheEntry
	maxSize int
	ttl     time.Duration
}

func newEvaluationCache(maxSize int, ttl time.Duration) *evaluationCache {
	if maxSize < 1 {
		maxSize = 1
	}
	if ttl <= 0 {
		ttl = 60 * time.Second
	}
	return &evaluationCache{
		items:   make(map[string]*cacheEntry, maxSize),
		maxSize: maxSize,
		ttl:     ttl,
	}
}

func (c *evaluationCache) get(key string) (*CoverageReport, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.items[key]
	if !ok {
		return nil, false
	}
	if time.Now().After(e.expiresAt) {
		delete(c.items, key)
		return nil, false
	}
	return e.report, true
}

func (c *evaluationCache) set(key string, report *CoverageReport) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	if _, ok := c.items[key]; !ok && len(c.items) >= c.maxSize {
		c.evictOldest()
	}
	c.items[key] = &cacheEntry{
		report:     report,
		expiresAt:  now.Add(c.ttl),
		insertedAt: now,
	}
}

func (c *evaluationCache) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// evictOldest removes the entry with the oldest insertedAt timestamp.
// Must be called with c.mu held.
func (c *evaluationCache) evictOldest() {
	var oldestKey string
	var oldestTime time.Time
	first := true
	for k, e := range c.items {
		if first || e.insertedAt.Before(oldestTime) {
			oldestKey = k
			oldestTime = e.insertedAt
			first = false
		}
	}
	if !first {
		delete(c.items, oldestKey)
	}
}
