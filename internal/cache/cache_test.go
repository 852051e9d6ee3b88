package cache

import (
	"fmt"
	"sync"
	"testing"
)

func TestCacheGetPut(t *testing.T) {
	c := New()

	if _, ok := c.Get("/a", ""); ok {
		t.Error("Get on empty cache reported a hit")
	}

	c.Put("/a", "v=1", []byte("alpha"))
	data, ok := c.Get("/a", "v=1")
	if !ok || string(data) != "alpha" {
		t.Errorf("Get(/a, v=1) = %q, %v; want alpha, true", data, ok)
	}

	// Different version token for the same path misses.
	if _, ok := c.Get("/a", "v=2"); ok {
		t.Error("version mismatch reported a hit")
	}

	// Replacing swaps both bytes and token.
	c.Put("/a", "v=2", []byte("beta"))
	if _, ok := c.Get("/a", "v=1"); ok {
		t.Error("stale version still hit after replacement")
	}
	data, ok = c.Get("/a", "v=2")
	if !ok || string(data) != "beta" {
		t.Errorf("Get(/a, v=2) = %q, %v; want beta, true", data, ok)
	}

	if c.Len() != 1 {
		t.Errorf("Len() = %d, want 1 (replacement must not grow the cache)", c.Len())
	}
}

func TestCacheConcurrentAccess(t *testing.T) {
	c := New()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			path := fmt.Sprintf("/f%d", i%4)
			for j := 0; j < 100; j++ {
				c.Put(path, "v", []byte(path))
				if data, ok := c.Get(path, "v"); ok && string(data) != path {
					t.Errorf("Get(%s) returned bytes for another path: %q", path, data)
				}
			}
		}(i)
	}
	wg.Wait()
}
