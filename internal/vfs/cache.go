package vfs

import (
	"container/list"
	"sync"
)

// Cache is a byte-budgeted LRU of decompressed file content.
// It is safe for concurrent use.
type Cache struct {
	mu       sync.Mutex
	capacity int64
	size     int64
	order    *list.List // front = most recently used
	items    map[string]*list.Element

	// Stats
	hits   int
	misses int
}

type cacheItem struct {
	key  string
	data []byte
}

// NewCache creates a cache holding at most capacity bytes.
func NewCache(capacity int64) *Cache {
	return &Cache{
		capacity: capacity,
		order:    list.New(),
		items:    make(map[string]*list.Element),
	}
}

// Get retrieves an item and marks it recently used.
func (c *Cache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		c.misses++
		return nil, false
	}
	c.hits++
	c.order.MoveToFront(el)
	return el.Value.(*cacheItem).data, true
}

// Set stores an item, evicting least recently used entries to stay within
// capacity. Items larger than the whole budget are not stored.
func (c *Cache) Set(key string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	size := int64(len(data))
	if size > c.capacity {
		return
	}

	if el, ok := c.items[key]; ok {
		item := el.Value.(*cacheItem)
		c.size += size - int64(len(item.data))
		item.data = data
		c.order.MoveToFront(el)
	} else {
		c.items[key] = c.order.PushFront(&cacheItem{key: key, data: data})
		c.size += size
	}

	for c.size > c.capacity {
		oldest := c.order.Back()
		item := oldest.Value.(*cacheItem)
		c.order.Remove(oldest)
		delete(c.items, item.key)
		c.size -= int64(len(item.data))
	}
}

// Clear drops every item and resets statistics.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.order.Init()
	c.items = make(map[string]*list.Element)
	c.size = 0
	c.hits = 0
	c.misses = 0
}

// Len returns the number of cached items.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Stats returns cache statistics.
func (c *Cache) Stats() (hits, misses int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}
