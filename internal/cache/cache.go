// Package cache holds short-lived per-user sync state in memory.
package cache

import (
	"sync"
	"time"
)

type entry[V any] struct {
	data      V
	expiresAt time.Time
}

// Cache is an in-memory map with per-key expiry
type Cache[V any] struct {
	items map[string]entry[V]
	mutex sync.Mutex
	now   func() time.Time
}

// New creates an empty cache
func New[V any]() *Cache[V] {
	return &Cache[V]{
		items: make(map[string]entry[V]),
		now:   time.Now,
	}
}

// Get returns the value for key if present and not expired
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	item, ok := c.items[key]
	if !ok {
		var zero V
		return zero, false
	}
	if !c.now().Before(item.expiresAt) {
		delete(c.items, key)
		var zero V
		return zero, false
	}
	return item.data, true
}

// Set stores data under key for ttl
func (c *Cache[V]) Set(key string, data V, ttl time.Duration) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.items[key] = entry[V]{data: data, expiresAt: c.now().Add(ttl)}
}

// SetIfAbsent stores data only when key holds no live value and reports
// whether it did
func (c *Cache[V]) SetIfAbsent(key string, data V, ttl time.Duration) bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if item, ok := c.items[key]; ok && c.now().Before(item.expiresAt) {
		return false
	}
	c.items[key] = entry[V]{data: data, expiresAt: c.now().Add(ttl)}
	return true
}

// Delete removes key
func (c *Cache[V]) Delete(key string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	delete(c.items, key)
}

// Clear removes every key
func (c *Cache[V]) Clear() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.items = make(map[string]entry[V])
}
