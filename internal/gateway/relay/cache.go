package relay

import (
	"sync"
	"time"
)

const cacheSweepThreshold = 256

type cacheEntry struct {
	body     []byte
	storedAt time.Time
}

// responseCache holds validated documents keyed by request path. An entry
// is fresh while now - storedAt < ttl.
type responseCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	clock   func() time.Time
	entries map[string]cacheEntry
}

func newResponseCache(ttl time.Duration, clock func() time.Time) *responseCache {
	return &responseCache{ttl: ttl, clock: clock, entries: make(map[string]cacheEntry)}
}

func (c *responseCache) get(key string) ([]byte, bool) {
	if c.ttl <= 0 {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.clock().Sub(entry.storedAt) >= c.ttl {
		delete(c.entries, key)
		return nil, false
	}
	return entry.body, true
}

func (c *responseCache) put(key string, body []byte) {
	if c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.clock()
	if len(c.entries) >= cacheSweepThreshold {
		for k, e := range c.entries {
			if now.Sub(e.storedAt) >= c.ttl {
				delete(c.entries, k)
			}
		}
	}
	c.entries[key] = cacheEntry{body: body, storedAt: now}
}

func (c *responseCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
