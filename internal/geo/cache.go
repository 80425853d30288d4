package geo

import (
	"sync"
	"time"
)

// Cache is a TTL cache for address lookups. It is constructed once at startup
// and passed to its consumers; entries expire a fixed time after insertion.
type Cache struct {
	ttl time.Duration

	mu      sync.RWMutex
	entries map[string]cacheEntry

	// now is swappable for tests.
	now func() time.Time
}

type cacheEntry struct {
	address   Address
	expiresAt time.Time
}

// NewCache creates a cache whose entries live for ttl.
func NewCache(ttl time.Duration) *Cache {
	return &Cache{
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
		now:     time.Now,
	}
}

// Get returns the cached address for a key, if present and fresh.
func (c *Cache) Get(key string) (Address, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok || c.now().After(entry.expiresAt) {
		return Address{}, false
	}
	return entry.address, true
}

// Set stores an address under a key for the cache's TTL.
func (c *Cache) Set(key string, address Address) {
	c.mu.Lock()
	c.entries[key] = cacheEntry{address: address, expiresAt: c.now().Add(c.ttl)}
	c.mu.Unlock()
}

// Invalidate drops a key immediately.
func (c *Cache) Invalidate(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}
