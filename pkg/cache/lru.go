package cache

import (
	"container/list"
	"sync"
)

type entry[K comparable, V any] struct {
	key   K
	value V
}

// LRUCache is a thread-safe cache bounded by entry count. Adding past the
// capacity evicts the least recently used entry.
type LRUCache[K comparable, V any] struct {
	mu       sync.Mutex
	capacity int
	items    map[K]*list.Element
	order    *list.List
	onEvict  func(key K, value V)
}

// NewLRUCache creates a cache holding at most capacity entries.
// It panics when capacity is not positive.
func NewLRUCache[K comparable, V any](capacity int) *LRUCache[K, V] {
	if capacity <= 0 {
		panic("LRU cache capacity must be positive")
	}
	return &LRUCache[K, V]{
		capacity: capacity,
		items:    make(map[K]*list.Element, capacity),
		order:    list.New(),
	}
}

// SetEvictCallback registers fn to run for every entry that leaves the
// cache through eviction, Remove or Clear. fn runs with the cache locked
// and must not call back into it.
func (c *LRUCache[K, V]) SetEvictCallback(fn func(key K, value V)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onEvict = fn
}

// Get returns the value for key and marks it as recently used.
func (c *LRUCache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		c.order.MoveToFront(el)
		return el.Value.(*entry[K, V]).value, true
	}
	var zero V
	return zero, false
}

// Peek returns the value for key without touching its recency.
func (c *LRUCache[K, V]) Peek(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		return el.Value.(*entry[K, V]).value, true
	}
	var zero V
	return zero, false
}

// Put adds or replaces the value for key and returns the previous value.
// A replaced value does not trigger the evict callback.
func (c *LRUCache[K, V]) Put(key K, value V) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		c.order.MoveToFront(el)
		e := el.Value.(*entry[K, V])
		old := e.value
		e.value = value
		return old, true
	}

	c.insert(key, value)
	var zero V
	return zero, false
}

// GetOrCreate returns the cached value for key, or stores and returns the
// result of create. create runs with the cache locked, at most once per
// missing key.
func (c *LRUCache[K, V]) GetOrCreate(key K, create func() V) V {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		c.order.MoveToFront(el)
		return el.Value.(*entry[K, V]).value
	}
	v := create()
	c.insert(key, v)
	return v
}

// Remove deletes key and returns its value.
func (c *LRUCache[K, V]) Remove(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		e := c.drop(el)
		return e.value, true
	}
	var zero V
	return zero, false
}

// Len returns the number of cached entries.
func (c *LRUCache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Keys returns the cached keys from most to least recently used.
func (c *LRUCache[K, V]) Keys() []K {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := make([]K, 0, c.order.Len())
	for el := c.order.Front(); el != nil; el = el.Next() {
		keys = append(keys, el.Value.(*entry[K, V]).key)
	}
	return keys
}

// Clear removes every entry, running the evict callback for each.
func (c *LRUCache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for el := c.order.Back(); el != nil; el = c.order.Back() {
		c.drop(el)
	}
}

// insert must be called with the lock held.
func (c *LRUCache[K, V]) insert(key K, value V) {
	c.items[key] = c.order.PushFront(&entry[K, V]{key: key, value: value})
	if c.order.Len() > c.capacity {
		c.drop(c.order.Back())
	}
}

// drop must be called with the lock held.
func (c *LRUCache[K, V]) drop(el *list.Element) *entry[K, V] {
	c.order.Remove(el)
	e := el.Value.(*entry[K, V])
	delete(c.items, e.key)
	if c.onEvict != nil {
		c.onEvict(e.key, e.value)
	}
	return e
}
