package export

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
)

// renderCache memoizes rendered exports. The registry never changes after
// startup, so a render for a given key is computed at most once.
type renderCache struct {
	mu    sync.RWMutex
	max   int
	items map[string][]byte
}

func newRenderCache(max int) *renderCache {
	return &renderCache{
		max:   max,
		items: make(map[string][]byte, max),
	}
}

func (c *renderCache) getOrCompute(key string, fn func() ([]byte, error)) ([]byte, error) {
	k := hash(key)

	c.mu.RLock()
	if v, ok := c.items[k]; ok {
		c.mu.RUnlock()
		return v, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	if v, ok := c.items[k]; ok {
		return v, nil
	}

	b, err := fn()
	if err != nil {
		return nil, err
	}

	if len(c.items) < c.max {
		c.items[k] = b
	}

	return b, nil
}

func hash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
