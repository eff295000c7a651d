package oauth

import (
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/fortemi/matric-mcp/internal/domain/auth"
)

// cacheEntry is one cached introspection outcome. Negative entries carry a
// nil principal and a short expiry so a freshly issued token is usable
// quickly after a prior rejection.
type cacheEntry struct {
	principal *auth.Principal
	expiresAt time.Time
}

// tokenCache caches introspection results keyed by token hash. Raw tokens
// are never stored; the key is an xxhash of the token, so a leaked cache
// dump exposes no credentials. Per-key atomicity comes from the single
// map mutex; entries for unrelated tokens never invalidate each other.
type tokenCache struct {
	mu      sync.RWMutex
	entries map[uint64]cacheEntry
}

func newTokenCache() *tokenCache {
	return &tokenCache{entries: make(map[uint64]cacheEntry)}
}

// hashToken derives the cache key for a bearer token.
func hashToken(token string) uint64 {
	return xxhash.Sum64String(token)
}

// get returns the cached principal for token, whether a live entry exists,
// and whether that entry is negative. Expired entries are treated as absent.
func (c *tokenCache) get(token string) (principal *auth.Principal, ok, negative bool) {
	key := hashToken(token)

	c.mu.RLock()
	entry, found := c.entries[key]
	c.mu.RUnlock()

	if !found || time.Now().After(entry.expiresAt) {
		return nil, false, false
	}
	return entry.principal, true, entry.principal == nil
}

// put stores an introspection outcome. A nil principal records a negative
// entry.
func (c *tokenCache) put(token string, principal *auth.Principal, expiresAt time.Time) {
	key := hashToken(token)

	c.mu.Lock()
	defer c.mu.Unlock()

	// Opportunistically drop expired entries so the map doesn't grow
	// unbounded across many short-lived tokens.
	if len(c.entries) > 0 && len(c.entries)%128 == 0 {
		now := time.Now()
		for k, e := range c.entries {
			if now.After(e.expiresAt) {
				delete(c.entries, k)
			}
		}
	}

	c.entries[key] = cacheEntry{principal: principal, expiresAt: expiresAt}
}

// invalidate removes the entry for token, if any. Called when a downstream
// call using the token came back 401 before the cached expiry.
func (c *tokenCache) invalidate(token string) {
	key := hashToken(token)

	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// size returns the number of live and expired entries currently held.
func (c *tokenCache) size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
