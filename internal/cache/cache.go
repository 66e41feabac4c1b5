// Package cache provides a small bounded in-memory cache for read paths.
//
// Entries expire after a fixed TTL and the cache evicts its oldest entry
// by insertion order when full. Reads never refresh an entry's age or
// position, so a hot key still ages out on schedule and a burst of reads
// cannot pin stale data past its TTL.
package cache

import (
	"container/list"
	"sync"
	"time"
)

// Cache is a bounded TTL cache keyed by string.
type Cache struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	entries  map[string]*list.Element
	order    *list.List

	// now is swappable for tests
	now func() time.Time
}

type entry struct {
	key      string
	value    any
	storedAt time.Time
}

// New creates a cache holding at most capacity entries, each valid for ttl.
func New(capacity int, ttl time.Duration) *Cache {
	if capacity < 1 {
		capacity = 1
	}
	return &Cache{
		capacity: capacity,
		ttl:      ttl,
		entries:  make(map[string]*list.Element),
		order:    list.New(),
		now:      time.Now,
	}
}

// Get returns the cached value for key. Expired entries are removed on
// access and reported as a miss. A hit does not extend the entry's
// lifetime or protect it from eviction.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[key]
	if !ok {
		return nil, false
	}

	e := elem.Value.(*entry)
	if c.now().Sub(e.storedAt) >= c.ttl {
		c.removeLocked(elem)
		return nil, false
	}

	return e.value, true
}

// Set stores value under key. Overwriting an existing key refreshes its
// insertion position. When the cache is full the oldest entry by
// insertion is evicted first.
func (c *Cache) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[key]; ok {
		c.removeLocked(elem)
	}

	for c.order.Len() >= c.capacity {
		oldest := c.order.Front()
		if oldest == nil {
			break
		}
		c.removeLocked(oldest)
	}

	e := &entry{key: key, value: value, storedAt: c.now()}
	c.entries[key] = c.order.PushBack(e)
}

// Delete removes key from the cache if present.
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[key]; ok {
		c.removeLocked(elem)
	}
}

// Clear removes all entries.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*list.Element)
	c.order.Init()
}

// Len returns the number of entries currently stored, including any that
// have expired but not yet been touched.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

func (c *Cache) removeLocked(elem *list.Element) {
	e := elem.Value.(*entry)
	delete(c.entries, e.key)
	c.order.Remove(elem)
}

// GetOrLoad returns the cached value for key, calling load on a miss and
// caching the loaded value. Load errors are returned without caching.
func (c *Cache) GetOrLoad(key string, load func() (any, error)) (any, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}

	v, err := load()
	if err != nil {
		return nil, err
	}

	c.Set(key, v)
	return v, nil
}
