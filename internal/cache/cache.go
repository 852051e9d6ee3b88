// Package cache holds file content in memory across requests. Entries
// are keyed by URL path and carry the query string that was current
// when they were stored; a lookup with a different query string misses
// so the caller re-reads and replaces the entry. Nothing is evicted on
// a timer.
package cache

import "sync"

type entry struct {
	data    []byte
	version string
}

// Cache is a path-keyed byte cache. Safe for concurrent use; under
// racing writers for the same path the last writer wins, which is
// acceptable because every stored buffer is self-consistent for its
// version token.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]entry
}

func New() *Cache {
	return &Cache{entries: make(map[string]entry)}
}

// Get returns the bytes stored for path if the version token matches.
// Callers must treat the returned slice as read-only.
func (c *Cache) Get(path, version string) ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[path]
	if !ok || e.version != version {
		return nil, false
	}
	return e.data, true
}

// Put stores data for path under the given version token, replacing any
// previous entry for the path.
func (c *Cache) Put(path, version string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[path] = entry{data: data, version: version}
}

// Len reports the number of cached paths.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
