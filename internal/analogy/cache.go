package analogy

import (
	"container/list"
	"slices"
	"sync"
)

// Cache is an LRU cache of solved analogies keyed by the raw query.
type Cache struct {
	capacity int
	items    map[string]*list.Element
	lru      *list.List
	mu       sync.Mutex
}

type cacheEntry struct {
	key   string
	words []string
}

// NewCache creates a cache holding at most capacity answers.
func NewCache(capacity int) *Cache {
	return &Cache{
		capacity: capacity,
		items:    make(map[string]*list.Element),
		lru:      list.New(),
	}
}

// Get returns a copy of the cached answer for key if present.
func (c *Cache) Get(key string) ([]string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		c.lru.MoveToFront(elem)
		return slices.Clone(elem.Value.(*cacheEntry).words), true
	}
	return nil, false
}

// Set stores the answer for key, evicting the least recently used entry if at capacity.
func (c *Cache) Set(key string, words []string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	words = slices.Clone(words)
	if elem, ok := c.items[key]; ok {
		c.lru.MoveToFront(elem)
		elem.Value.(*cacheEntry).words = words
		return
	}

	elem := c.lru.PushFront(&cacheEntry{key: key, words: words})
	c.items[key] = elem

	if c.lru.Len() > c.capacity {
		oldest := c.lru.Back()
		if oldest != nil {
			c.lru.Remove(oldest)
			delete(c.items, oldest.Value.(*cacheEntry).key)
		}
	}
}

// Len returns the number of cached answers.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}
