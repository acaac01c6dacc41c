package tmdb

import (
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Cache is the process-wide movie cache. Keys are normalized (title, year)
// pairs; entries are complete records written exactly once and never expired
// within the process. Concurrent lookups for the same key share a single
// upstream fetch.
type Cache struct {
	mu     sync.RWMutex
	movies map[string]*Movie
	group  singleflight.Group
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{movies: make(map[string]*Movie)}
}

// Key normalizes a (title, year) pair to its cache key.
func Key(title string, year int) string {
	return fmt.Sprintf("%s|%d", strings.ToLower(strings.TrimSpace(title)), year)
}

// Fetch returns the cached movie for key, or runs fetch and stores the
// result. Errors are not cached, so a failed title is retried on the next
// request for it.
func (c *Cache) Fetch(key string, fetch func() (*Movie, error)) (*Movie, error) {
	if m, ok := c.lookup(key); ok {
		return m, nil
	}

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		// A previous flight may have landed between our miss and this call.
		if m, ok := c.lookup(key); ok {
			return m, nil
		}

		m, err := fetch()
		if err != nil {
			return nil, err
		}
		c.store(key, m)
		return m, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Movie), nil
}

// Len reports the number of cached movies.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.movies)
}

func (c *Cache) lookup(key string) (*Movie, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m, ok := c.movies[key]
	return m, ok
}

func (c *Cache) store(key string, m *Movie) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.movies[key]; ok {
		return // first write wins, entries are immutable
	}
	c.movies[key] = m
}
