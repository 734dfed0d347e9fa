package symbolizer

import "sync"

// Cache memoizes successful resolutions of an inner Resolver in a
// thread-safe way. Failures are not cached.
type Cache struct {
	inner Resolver

	mu     sync.RWMutex
	cache  map[string]string
	hits   uint64
	misses uint64
}

// NewCache wraps inner.
func NewCache(inner Resolver) *Cache {
	return &Cache{inner: inner, cache: make(map[string]string)}
}

func (c *Cache) Resolve(address string) (string, error) {
	c.mu.RLock()
	sym, ok := c.cache[address]
	c.mu.RUnlock()
	if ok {
		c.mu.Lock()
		c.hits++
		c.mu.Unlock()
		return sym, nil
	}
	sym, err := c.inner.Resolve(address)
	c.mu.Lock()
	c.misses++
	if err == nil {
		c.cache[address] = sym
	}
	c.mu.Unlock()
	return sym, err
}

// Stats returns the number of cache hits and misses so far.
func (c *Cache) Stats() (hits, misses uint64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hits, c.misses
}

// Available forwards to the inner resolver when it can report liveness.
func (c *Cache) Available() bool {
	if a, ok := c.inner.(interface{ Available() bool }); ok {
		return a.Available()
	}
	return true
}

func (c *Cache) Close() error {
	return c.inner.Close()
}
