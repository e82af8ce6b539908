// Package cache keeps recently used decoded docsets in memory so that
// consecutive operations on one docset skip the store round trip.
package cache

import (
	"container/list"
	"sync"

	"github.com/FocuswithJustin/juniper-succinct/core/docset"
)

// Stats contains cache statistics.
type Stats struct {
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Evictions int64 `json:"evictions"`
	Size      int   `json:"size"`
	MaxSize   int   `json:"maxSize"`
}

// Config configures an LRU.
type Config[K comparable, V any] struct {
	// MaxSize is the maximum number of entries (0 = unlimited).
	MaxSize int

	// OnEvict is called when an entry is dropped to make room. It is not
	// called for Remove.
	OnEvict func(key K, value V)
}

type entry[K comparable, V any] struct {
	key   K
	value V
}

// LRU is a thread-safe least recently used map.
type LRU[K comparable, V any] struct {
	mu      sync.Mutex
	config  Config[K, V]
	entries map[K]*list.Element
	order   *list.List
	stats   Stats
}

// NewLRU creates an empty LRU. A negative MaxSize means unlimited.
func NewLRU[K comparable, V any](config Config[K, V]) *LRU[K, V] {
	if config.MaxSize < 0 {
		config.MaxSize = 0
	}
	return &LRU[K, V]{
		config:  config,
		entries: make(map[K]*list.Element),
		order:   list.New(),
	}
}

// Get returns the value for key and marks it most recently used.
func (c *LRU[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		c.stats.Misses++
		var zero V
		return zero, false
	}
	c.order.MoveToFront(el)
	c.stats.Hits++
	return el.Value.(*entry[K, V]).value, true
}

// Contains reports whether key is cached without touching recency or stats.
func (c *LRU[K, V]) Contains(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[key]
	return ok
}

// Put stores value under key, evicting the least recently used entry when
// the cache is full.
func (c *LRU[K, V]) Put(key K, value V) {
	c.mu.Lock()
	var victim *entry[K, V]
	if el, ok := c.entries[key]; ok {
		c.order.MoveToFront(el)
		el.Value.(*entry[K, V]).value = value
	} else {
		c.entries[key] = c.order.PushFront(&entry[K, V]{key: key, value: value})
		if c.config.MaxSize > 0 && c.order.Len() > c.config.MaxSize {
			oldest := c.order.Back()
			victim = oldest.Value.(*entry[K, V])
			c.order.Remove(oldest)
			delete(c.entries, victim.key)
			c.stats.Evictions++
		}
	}
	c.mu.Unlock()

	// The callback runs unlocked so it may use the cache.
	if victim != nil && c.config.OnEvict != nil {
		c.config.OnEvict(victim.key, victim.value)
	}
}

// Remove drops key. It reports whether key was cached.
func (c *LRU[K, V]) Remove(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if ok {
		c.order.Remove(el)
		delete(c.entries, key)
	}
	return ok
}

// Len returns the number of entries.
func (c *LRU[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Keys returns the keys from most to least recently used.
func (c *LRU[K, V]) Keys() []K {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := make([]K, 0, c.order.Len())
	for el := c.order.Front(); el != nil; el = el.Next() {
		keys = append(keys, el.Value.(*entry[K, V]).key)
	}
	return keys
}

// Stats returns cache statistics.
func (c *LRU[K, V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.stats
	s.Size = c.order.Len()
	s.MaxSize = c.config.MaxSize
	return s
}

// DocSetCache holds decoded docsets keyed by docset id.
type DocSetCache struct {
	lru *LRU[string, *docset.DocSet]
}

// NewDocSetCache creates a docset cache holding at most maxSize docsets
// (0 = unlimited). onEvict may be nil.
func NewDocSetCache(maxSize int, onEvict func(id string, ds *docset.DocSet)) *DocSetCache {
	return &DocSetCache{lru: NewLRU(Config[string, *docset.DocSet]{
		MaxSize: maxSize,
		OnEvict: onEvict,
	})}
}

// Get returns a cached docset.
func (c *DocSetCache) Get(id string) (*docset.DocSet, bool) {
	return c.lru.Get(id)
}

// Contains reports whether id is cached. It does not count as a hit.
func (c *DocSetCache) Contains(id string) bool {
	return c.lru.Contains(id)
}

// Put stores a docset under its id.
func (c *DocSetCache) Put(ds *docset.DocSet) {
	c.lru.Put(ds.ID, ds)
}

// Remove drops a docset and reports whether it was cached.
func (c *DocSetCache) Remove(id string) bool {
	return c.lru.Remove(id)
}

// Len returns the number of cached docsets.
func (c *DocSetCache) Len() int {
	return c.lru.Len()
}

// IDs returns the cached docset ids from most to least recently used.
func (c *DocSetCache) IDs() []string {
	return c.lru.Keys()
}

// Stats returns cache statistics.
func (c *DocSetCache) Stats() Stats {
	return c.lru.Stats()
}
