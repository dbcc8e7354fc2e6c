package filter

import (
	"container/list"
	"sync"
)

// lruCache implements a thread-safe LRU cache of compiled filters
type lruCache struct {
	size      int
	evictList *list.List
	items     map[string]*list.Element
	mu        sync.Mutex
}

// entry is stored in the cache
type entry struct {
	key   string
	value *ExprFilter
}

// newLRUCache creates a new LRU cache with the given size
func newLRUCache(size int) *lruCache {
	if size < 1 {
		size = 1
	}
	return &lruCache{
		size:      size,
		evictList: list.New(),
		items:     make(map[string]*list.Element),
	}
}

// Get retrieves a filter from the cache and marks it most recently used
func (c *lruCache) Get(key string) (*ExprFilter, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	node, exists := c.items[key]
	if !exists {
		return nil, false
	}
	c.evictList.MoveToFront(node)
	return node.Value.(*entry).value, true
}

// Put adds or updates a filter in the cache
func (c *lruCache) Put(key string, value *ExprFilter) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if node, exists := c.items[key]; exists {
		c.evictList.MoveToFront(node)
		node.Value.(*entry).value = value
		return
	}

	node := c.evictList.PushFront(&entry{key: key, value: value})
	c.items[key] = node

	if c.evictList.Len() > c.size {
		c.removeOldest()
	}
}

// removeOldest removes the least recently used item
func (c *lruCache) removeOldest() {
	node := c.evictList.Back()
	if node != nil {
		c.evictList.Remove(node)
		delete(c.items, node.Value.(*entry).key)
	}
}

// Clear removes all items from the cache
func (c *lruCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*list.Element)
	c.evictList.Init()
}

// Size returns the number of items in the cache
func (c *lruCache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.evictList.Len()
}
