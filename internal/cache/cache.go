// Package cache provides a thread-safe keyed cache with TTL expiry,
// optional LRU eviction at a size cap, and hit/miss/eviction metrics.
//
// Expiry is checked lazily at read time; there is no background sweeper.
// Memory is only reclaimed by LRU eviction (when capped) or Flush.
package cache

import (
	"container/list"
	"sync"
	"time"
)

// Cache is a generic TTL+LRU cache. The zero value is not usable; construct
// with New or NewCapped.
type Cache[K comparable, V any] struct {
	mu      sync.Mutex
	entries map[K]*list.Element
	order   *list.List // front = most recently used
	maxSize int        // 0 = unbounded

	metrics Metrics

	// now is swappable for TTL tests.
	now func() time.Time
}

type entry[K comparable, V any] struct {
	key      K
	value    V
	cachedAt time.Time
}

// New creates an unbounded cache.
func New[K comparable, V any]() *Cache[K, V] {
	return NewCapped[K, V](0)
}

// NewCapped creates a cache that evicts the least-recently-used entry once
// it holds more than maxSize entries. maxSize <= 0 means unbounded.
func NewCapped[K comparable, V any](maxSize int) *Cache[K, V] {
	return &Cache[K, V]{
		entries: make(map[K]*list.Element),
		order:   list.New(),
		maxSize: maxSize,
		now:     time.Now,
	}
}

// Get returns the cached value for key if it is present and younger than
// ttl. A hit refreshes the key's LRU position. Expired entries are treated
// as absent but not removed; the next Set overwrites them.
func (c *Cache[K, V]) Get(ttl time.Duration, key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	elem, ok := c.entries[key]
	if !ok {
		c.metrics.miss()
		return zero, false
	}

	ent := elem.Value.(*entry[K, V])
	if c.now().Sub(ent.cachedAt) > ttl {
		c.metrics.miss()
		return zero, false
	}

	c.order.MoveToFront(elem)
	c.metrics.hit()
	return ent.value, true
}

// Set stores value under key, resetting its timestamp and LRU position.
// If the cache is capped and over capacity afterwards, the least-recently
// used entry is evicted.
func (c *Cache[K, V]) Set(value V, key K) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[key]; ok {
		ent := elem.Value.(*entry[K, V])
		ent.value = value
		ent.cachedAt = c.now()
		c.order.MoveToFront(elem)
		return
	}

	c.entries[key] = c.order.PushFront(&entry[K, V]{
		key:      key,
		value:    value,
		cachedAt: c.now(),
	})

	if c.maxSize > 0 && c.order.Len() > c.maxSize {
		oldest := c.order.Back()
		if oldest != nil {
			c.order.Remove(oldest)
			delete(c.entries, oldest.Value.(*entry[K, V]).key)
			c.metrics.eviction()
		}
	}
}

// Flush discards every entry. Metrics are preserved.
func (c *Cache[K, V]) Flush() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[K]*list.Element)
	c.order.Init()
}

// Size returns the current number of entries, including expired ones that
// have not yet been overwritten.
func (c *Cache[K, V]) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Metrics returns a snapshot of the cache counters.
func (c *Cache[K, V]) Metrics() Snapshot {
	return c.metrics.snapshot()
}

// setClock overrides the time source. Test hook.
func (c *Cache[K, V]) setClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}
