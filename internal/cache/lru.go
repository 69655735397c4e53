package cache

import (
	"container/list"
	"sync"
	"time"
)

// entry is what the recency list holds. expiry is fixed at Set time,
// a Get never extends it.
type entry[T any] struct {
	key    string
	value  T
	expiry time.Time
}

// LRUCache bounds memory two ways: entries expire after a fixed TTL
// and the least recently used entry is evicted once maxEntries is
// exceeded. Safe for concurrent use.
type LRUCache[T any] struct {
	mu         sync.Mutex
	maxEntries int
	ttl        time.Duration
	index      map[string]*list.Element
	recency    *list.List // front = most recently used
}

func NewLRUCache[T any](maxEntries int, ttl time.Duration) *LRUCache[T] {
	return &LRUCache[T]{
		maxEntries: maxEntries,
		ttl:        ttl,
		index:      make(map[string]*list.Element),
		recency:    list.New(),
	}
}

// Get returns the cached value for key. Expired entries are evicted
// on access and reported as misses.
func (c *LRUCache[T]) Get(key string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero T
	elem, ok := c.index[key]
	if !ok {
		return zero, false
	}
	ent := elem.Value.(*entry[T])
	if time.Now().After(ent.expiry) {
		c.evict(elem)
		return zero, false
	}

	c.recency.MoveToFront(elem)
	return ent.value, true
}

// Set stores value under key, resetting its TTL. When the cache is
// full the least recently used entry makes room.
func (c *LRUCache[T]) Set(key string, value T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ent := &entry[T]{key: key, value: value, expiry: time.Now().Add(c.ttl)}

	if elem, ok := c.index[key]; ok {
		elem.Value = ent
		c.recency.MoveToFront(elem)
		return
	}

	c.index[key] = c.recency.PushFront(ent)
	for c.recency.Len() > c.maxEntries {
		c.evict(c.recency.Back())
	}
}

// Delete drops key if present.
func (c *LRUCache[T]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.index[key]; ok {
		c.evict(elem)
	}
}

// CleanExpired removes every expired entry and reports how many were
// dropped. Called periodically by the Manager.
func (c *LRUCache[T]) CleanExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	removed := 0
	for elem := c.recency.Front(); elem != nil; {
		next := elem.Next()
		if now.After(elem.Value.(*entry[T]).expiry) {
			c.evict(elem)
			removed++
		}
		elem = next
	}
	return removed
}

// Size reports the number of live entries, expired or not.
func (c *LRUCache[T]) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.index)
}

func (c *LRUCache[T]) evict(elem *list.Element) {
	delete(c.index, elem.Value.(*entry[T]).key)
	c.recency.Remove(elem)
}
