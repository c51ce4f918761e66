package sourcify

import (
	"sync"
	"time"
)

// cacheEntry pairs a cached ABI with its insertion time for TTL checks.
type cacheEntry struct {
	abiJSON    string
	insertedAt time.Time
}

// ttlCache is the resolver's in-memory ABI cache, keyed by
// (chain_id, normalized_address). A read past the configured TTL is treated
// as a miss; the entry is left in place until overwritten or explicitly
// cleared, matching the spec's "insert at t, valid until t+TTL" wording.
type ttlCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[cacheKey]cacheEntry
}

type cacheKey struct {
	chainID uint32
	address string
}

func newTTLCache(ttl time.Duration) *ttlCache {
	return &ttlCache{ttl: ttl, entries: make(map[cacheKey]cacheEntry)}
}

// get returns the cached ABI if present and still within TTL as of now.
func (c *ttlCache) get(chainID uint32, address string, now time.Time) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[cacheKey{chainID, address}]
	if !ok {
		return "", false
	}
	if now.Sub(e.insertedAt) >= c.ttl {
		return "", false
	}
	return e.abiJSON, true
}

// put writes through a freshly-fetched ABI. Concurrent misses racing on the
// same key are fine: last writer wins.
func (c *ttlCache) put(chainID uint32, address, abiJSON string, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[cacheKey{chainID, address}] = cacheEntry{abiJSON: abiJSON, insertedAt: now}
}

// clear invalidates one key (chainID, address both set), one chain's
// entries (address empty), or everything (chainID zero and address empty).
func (c *ttlCache) clear(chainID uint32, address string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case chainID != 0 && address != "":
		delete(c.entries, cacheKey{chainID, address})
	case chainID != 0:
		for k := range c.entries {
			if k.chainID == chainID {
				delete(c.entries, k)
			}
		}
	default:
		c.entries = make(map[cacheKey]cacheEntry)
	}
}
