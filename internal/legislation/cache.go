package legislation

import (
	"sync"
	"time"
)

// DefaultCacheTTL bounds how long fetched responses are reused.
const DefaultCacheTTL = 1 * time.Hour

type cacheEntry struct {
	body      []byte
	expiresAt time.Time
}

// FetchCache is a thread-safe in-memory TTL cache for HTTP responses,
// keyed by request URL (source plus query parameters). Entries expire
// lazily on access; Invalidate removes an entry explicitly.
type FetchCache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
	ttl     time.Duration
}

func NewFetchCache(ttl time.Duration) *FetchCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &FetchCache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
	}
}

// Get returns the cached body for key if present and unexpired.
func (c *FetchCache) Get(key string) ([]byte, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		return nil, false
	}
	if time.Now().After(entry.expiresAt) {
		c.mu.Lock()
		if current, still := c.entries[key]; still && time.Now().After(current.expiresAt) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return nil, false
	}
	return entry.body, true
}

// Set stores body under key with the cache TTL.
func (c *FetchCache) Set(key string, body []byte) {
	c.mu.Lock()
	c.entries[key] = cacheEntry{body: body, expiresAt: time.Now().Add(c.ttl)}
	c.mu.Unlock()
}

// Invalidate removes one entry.
func (c *FetchCache) Invalidate(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Clear removes every entry; used before a forced full re-scrape.
func (c *FetchCache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]cacheEntry)
	c.mu.Unlock()
}

// Len returns the entry count, including not-yet-pruned expired ones.
func (c *FetchCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
