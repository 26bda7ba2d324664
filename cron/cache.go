package cron

import "sync"

// Cache memoizes parsed expressions. It is safe for concurrent use.
type Cache struct {
	mu     sync.RWMutex
	parsed map[string]*Schedule
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{parsed: make(map[string]*Schedule)}
}

// Get returns the parsed schedule for expr, parsing it on first use.
// Parse failures are not cached.
func (c *Cache) Get(expr string) (*Schedule, error) {
	c.mu.RLock()
	s, ok := c.parsed[expr]
	c.mu.RUnlock()
	if ok {
		return s, nil
	}

	s, err := Parse(expr)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.parsed[expr] = s
	c.mu.Unlock()
	return s, nil
}

// Len returns the number of cached expressions.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.parsed)
}
