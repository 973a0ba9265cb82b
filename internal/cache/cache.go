// Package cache provides a short-TTL, size-bounded in-memory cache for
// idempotent read endpoints. It is an explicit object constructed once at
// startup and passed into the request pipeline, never a package global.
package cache

import (
	"container/list"
	"strings"
	"sync"
	"time"

	"github.com/pixelmart/storefront/internal/metrics"
)

// entry holds one cached response keyed by request path and query.
type entry struct {
	key        string
	status     int
	body       []byte
	insertedAt time.Time
}

// Stats reports cache effectiveness counters.
type Stats struct {
	Hits      uint64 `json:"hits"`
	Misses    uint64 `json:"misses"`
	Evictions uint64 `json:"evictions"`
	Entries   int    `json:"entries"`
}

// ResponseCache caches JSON payloads by full request path including the query
// string. Entries expire after the TTL; exceeding the entry ceiling evicts the
// single oldest-inserted entry (FIFO, not LRU).
type ResponseCache struct {
	mu         sync.Mutex
	entries    map[string]*list.Element
	order      *list.List // front = oldest inserted
	ttl        time.Duration
	maxEntries int
	stats      Stats
	now        func() time.Time
}

// New creates a cache with the given TTL and entry ceiling.
func New(ttl time.Duration, maxEntries int) *ResponseCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if maxEntries <= 0 {
		maxEntries = 100
	}
	return &ResponseCache{
		entries:    make(map[string]*list.Element),
		order:      list.New(),
		ttl:        ttl,
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

// SetClock overrides the cache clock for tests.
func (c *ResponseCache) SetClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

// Get returns the cached response for key when present and fresh.
func (c *ResponseCache) Get(key string) (status int, body []byte, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, found := c.entries[key]
	if !found {
		c.stats.Misses++
		metrics.RecordCacheEvent("miss")
		return 0, nil, false
	}

	ent := elem.Value.(*entry)
	if c.now().Sub(ent.insertedAt) > c.ttl {
		c.removeLocked(elem)
		c.stats.Misses++
		metrics.RecordCacheEvent("miss")
		return 0, nil, false
	}

	c.stats.Hits++
	metrics.RecordCacheEvent("hit")
	return ent.status, ent.body, true
}

// Set stores a response payload under key. Racing writers for the same key
// land last-write-wins; entries are idempotent re-derivations of the same
// read, so either value serves.
func (c *ResponseCache) Set(key string, status int, body []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, exists := c.entries[key]; exists {
		c.removeLocked(elem)
	}

	for c.order.Len() >= c.maxEntries {
		oldest := c.order.Front()
		c.removeLocked(oldest)
		c.stats.Evictions++
		metrics.RecordCacheEvent("eviction")
	}

	ent := &entry{key: key, status: status, body: body, insertedAt: c.now()}
	c.entries[key] = c.order.PushBack(ent)
}

func (c *ResponseCache) removeLocked(elem *list.Element) {
	ent := elem.Value.(*entry)
	c.order.Remove(elem)
	delete(c.entries, ent.key)
}

// InvalidatePrefix drops every entry whose key starts with prefix. Used by the
// optional invalidate-on-write mode.
func (c *ResponseCache) InvalidatePrefix(prefix string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	var removed int
	for elem := c.order.Front(); elem != nil; {
		next := elem.Next()
		if strings.HasPrefix(elem.Value.(*entry).key, prefix) {
			c.removeLocked(elem)
			removed++
		}
		elem = next
	}
	return removed
}

// Clear drops every entry. Counters persist across clears.
func (c *ResponseCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*list.Element)
	c.order.Init()
}

// Stats returns a snapshot of the cache counters.
func (c *ResponseCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := c.stats
	stats.Entries = c.order.Len()
	return stats
}
