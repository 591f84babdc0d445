package cache

import (
	"container/list"
	"sync"
	"time"
)

// LRUCache is the in-process tier: bounded by capacity, and every entry
// also expires ttl after it was written. A zero ttl never expires.
// SetWithExpiry pins an entry to an absolute deadline instead.
type LRUCache struct {
	capacity int
	ttl      time.Duration
	cache    map[string]*list.Element
	lruList  *list.List
	mu       sync.Mutex
	now      func() time.Time
}

type entry struct {
	key       string
	value     string
	expiresAt time.Time
}

func NewLRUCache(capacity int, ttl time.Duration) *LRUCache {
	return &LRUCache{
		capacity: capacity,
		ttl:      ttl,
		cache:    make(map[string]*list.Element),
		lruList:  list.New(),
		now:      time.Now,
	}
}

func (c *LRUCache) Get(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, found := c.cache[key]
	if !found {
		return "", false
	}

	e := elem.Value.(*entry)
	if !e.expiresAt.IsZero() && !c.now().Before(e.expiresAt) {
		c.remove(elem)
		return "", false
	}

	c.lruList.MoveToFront(elem)
	return e.value, true
}

func (c *LRUCache) Set(key string, value string) {
	var expiresAt time.Time
	if c.ttl > 0 {
		expiresAt = c.now().Add(c.ttl)
	}
	c.SetWithExpiry(key, value, expiresAt)
}

// SetWithExpiry stores value until expiresAt. A zero expiresAt never
// expires.
func (c *LRUCache) SetWithExpiry(key string, value string, expiresAt time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.capacity <= 0 {
		return
	}

	if elem, found := c.cache[key]; found {
		c.lruList.MoveToFront(elem)
		e := elem.Value.(*entry)
		e.value = value
		e.expiresAt = expiresAt
		return
	}

	elem := c.lruList.PushFront(&entry{key: key, value: value, expiresAt: expiresAt})
	c.cache[key] = elem

	if c.lruList.Len() > c.capacity {
		c.remove(c.lruList.Back())
	}
}

func (c *LRUCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, found := c.cache[key]; found {
		c.remove(elem)
	}
}

func (c *LRUCache) remove(elem *list.Element) {
	if elem == nil {
		return
	}
	c.lruList.Remove(elem)
	delete(c.cache, elem.Value.(*entry).key)
}

func (c *LRUCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lruList.Len()
}
