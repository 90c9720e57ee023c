// Package cache provides the bounded LRU cache used by the resolution
// engines.
//
// Both the fuzzy matcher and the override engine memoize resolution results.
// Scoring a pair of strings through the full algorithm ensemble, or walking
// the rule list for a column, is pure work: identical inputs always produce
// identical outputs, so caching is safe and invalidation only has to happen
// when configuration or rules change.
//
// Features:
//   - LRU eviction for bounded memory
//   - Optional TTL expiration
//   - Thread-safe operations
//   - Hit/miss statistics
//
// Usage:
//
//	c := cache.New(1000, 0)
//
//	key := cache.Key(fingerprint, "asset id", "Asset ID")
//	if v, ok := c.Get(key); ok {
//		return v.(*MatchResult) // cache hit
//	}
//
//	result := score(source, target)
//	c.Put(key, result)
package cache

import (
	"container/list"
	"encoding/binary"
	"hash/fnv"
	"sync"
	"sync/atomic"
	"time"
)

// Cache is a thread-safe LRU cache.
//
// The cache uses a hash map for O(1) lookups and a doubly-linked list for
// LRU ordering. Concurrent writers that compute the same key independently
// will store identical values (callers only cache pure computations), so
// last-write-wins on insert is acceptable.
type Cache struct {
	mu sync.RWMutex

	maxSize int
	ttl     time.Duration
	enabled bool

	list  *list.List
	items map[uint64]*list.Element

	hits   uint64
	misses uint64
}

type entry struct {
	key       uint64
	value     interface{}
	expiresAt time.Time
}

// New creates a cache bounded to maxSize entries.
//
// A non-positive maxSize falls back to 1000. A ttl of 0 disables
// expiration, leaving LRU eviction as the only removal path.
func New(maxSize int, ttl time.Duration) *Cache {
	if maxSize <= 0 {
		maxSize = 1000
	}
	return &Cache{
		maxSize: maxSize,
		ttl:     ttl,
		enabled: true,
		list:    list.New(),
		items:   make(map[uint64]*list.Element, maxSize),
	}
}

// Key hashes the given string parts and numeric salt into a cache key.
//
// Parts are separated by a NUL byte so ("ab", "c") and ("a", "bc") hash
// differently. The salt carries a configuration fingerprint or generation
// so entries from a previous configuration can never be served.
func Key(salt uint64, parts ...string) uint64 {
	h := fnv.New64a()
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], salt)
	h.Write(buf[:])
	for _, p := range parts {
		h.Write([]byte{0})
		h.Write([]byte(p))
	}
	return h.Sum64()
}

// Get retrieves a cached value if present and not expired.
// Moves the entry to the front of the LRU list on hit.
func (c *Cache) Get(key uint64) (interface{}, bool) {
	if !c.isEnabled() {
		atomic.AddUint64(&c.misses, 1)
		return nil, false
	}

	c.mu.RLock()
	elem, ok := c.items[key]
	c.mu.RUnlock()

	if !ok {
		atomic.AddUint64(&c.misses, 1)
		return nil, false
	}

	e := elem.Value.(*entry)

	if c.ttl > 0 && time.Now().After(e.expiresAt) {
		c.mu.Lock()
		c.removeElement(elem)
		c.mu.Unlock()
		atomic.AddUint64(&c.misses, 1)
		return nil, false
	}

	c.mu.Lock()
	c.list.MoveToFront(elem)
	c.mu.Unlock()

	atomic.AddUint64(&c.hits, 1)
	return e.value, true
}

// Put adds a value to the cache, evicting the least recently used entry
// when at capacity. An existing key is updated in place.
func (c *Cache) Put(key uint64, value interface{}) {
	if !c.isEnabled() {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		e := elem.Value.(*entry)
		e.value = value
		if c.ttl > 0 {
			e.expiresAt = time.Now().Add(c.ttl)
		}
		c.list.MoveToFront(elem)
		return
	}

	for c.list.Len() >= c.maxSize {
		c.evictOldest()
	}

	e := &entry{key: key, value: value}
	if c.ttl > 0 {
		e.expiresAt = time.Now().Add(c.ttl)
	}
	c.items[key] = c.list.PushFront(e)
}

// Remove removes an entry from the cache.
func (c *Cache) Remove(key uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		c.removeElement(elem)
	}
}

// Clear removes all entries. Hit/miss counters are preserved.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.list.Init()
	c.items = make(map[uint64]*list.Element, c.maxSize)
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.list.Len()
}

// Cap returns the maximum capacity.
func (c *Cache) Cap() int {
	return c.maxSize
}

// SetEnabled toggles the cache. Disabling clears all entries so a later
// re-enable starts cold rather than serving stale values.
func (c *Cache) SetEnabled(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.enabled = enabled

	if !enabled {
		c.list.Init()
		c.items = make(map[uint64]*list.Element, c.maxSize)
	}
}

func (c *Cache) isEnabled() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.enabled
}

// Stats holds cache performance counters.
type Stats struct {
	Size    int     // Current number of entries
	MaxSize int     // Maximum capacity
	Hits    uint64  // Number of cache hits
	Misses  uint64  // Number of cache misses
	HitRate float64 // Hit rate percentage (0-100)
}

// Stats returns a snapshot of cache statistics.
func (c *Cache) Stats() Stats {
	hits := atomic.LoadUint64(&c.hits)
	misses := atomic.LoadUint64(&c.misses)

	c.mu.RLock()
	size := c.list.Len()
	c.mu.RUnlock()

	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}

	return Stats{
		Size:    size,
		MaxSize: c.maxSize,
		Hits:    hits,
		Misses:  misses,
		HitRate: hitRate,
	}
}

// evictOldest removes the least recently used entry.
// Caller must hold the lock.
func (c *Cache) evictOldest() {
	if elem := c.list.Back(); elem != nil {
		c.removeElement(elem)
	}
}

// removeElement removes an element from the cache.
// Caller must hold the lock.
func (c *Cache) removeElement(elem *list.Element) {
	c.list.Remove(elem)
	delete(c.items, elem.Value.(*entry).key)
}
