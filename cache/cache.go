// Package cache provides a small in-memory LRU used to memoize derived
// lookups (normalized city names, stable ids) so hot paths in the reference
// loader and graph builder do not repeat string-normalization work. Adapted
// from the teacher corpus's validation-result LRU: same container/list +
// map shape, generalized from file-hash keys to arbitrary string keys.
package cache

import (
	"container/list"
	"sync"
)

// Stats reports cache performance counters.
type Stats struct {
	Size      int     `json:"size"`
	MaxSize   int     `json:"maxSize"`
	Hits      int64   `json:"hits"`
	Misses    int64   `json:"misses"`
	Evictions int64   `json:"evictions"`
	HitRate   float64 `json:"hitRate"`
}

type entry struct {
	key     string
	value   interface{}
	element *list.Element
}

// LookupCache is a fixed-size, thread-safe LRU cache keyed by string.
type LookupCache struct {
	mu      sync.RWMutex
	items   map[string]*entry
	lru     *list.List
	maxSize int

	hits      int64
	misses    int64
	evictions int64
}

// New creates a LookupCache holding at most maxSize entries.
func New(maxSize int) *LookupCache {
	if maxSize <= 0 {
		maxSize = 1000
	}
	return &LookupCache{
		items:   make(map[string]*entry),
		lru:     list.New(),
		maxSize: maxSize,
	}
}

// Get returns the cached value for key, if present.
func (c *LookupCache) Get(key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.items[key]
	if !ok {
		c.misses++
		return nil, false
	}
	c.lru.MoveToFront(e.element)
	c.hits++
	return e.value, true
}

// Set stores value under key, evicting the least-recently-used entry if the
// cache is at capacity.
func (c *LookupCache) Set(key string, value interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.items[key]; ok {
		existing.value = value
		c.lru.MoveToFront(existing.element)
		return
	}

	e := &entry{key: key, value: value}
	e.element = c.lru.PushFront(key)
	c.items[key] = e

	for len(c.items) > c.maxSize {
		oldest := c.lru.Back()
		if oldest == nil {
			break
		}
		key := oldest.Value.(string)
		delete(c.items, key)
		c.lru.Remove(oldest)
		c.evictions++
	}
}

// GetOrCompute returns the cached value for key, computing and storing it via
// fn on a miss.
func (c *LookupCache) GetOrCompute(key string, fn func() interface{}) interface{} {
	if v, ok := c.Get(key); ok {
		return v
	}
	v := fn()
	c.Set(key, v)
	return v
}

// Stats returns a snapshot of cache performance counters.
func (c *LookupCache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	total := c.hits + c.misses
	rate := 0.0
	if total > 0 {
		rate = float64(c.hits) / float64(total)
	}
	return Stats{
		Size:      len(c.items),
		MaxSize:   c.maxSize,
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
		HitRate:   rate,
	}
}

// Clear removes all entries and resets counters.
func (c *LookupCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]*entry)
	c.lru = list.New()
	c.hits, c.misses, c.evictions = 0, 0, 0
}
