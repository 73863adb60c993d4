package price

import (
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// cacheTTL bounds how long token metadata is kept.
const cacheTTL = 24 * time.Hour

type tokenMeta struct {
	decimals uint8
	symbol   string
}

type cacheEntry struct {
	meta      tokenMeta
	expiresAt time.Time
}

type tokenCache struct {
	mu      sync.RWMutex
	entries map[common.Address]cacheEntry
}

func newTokenCache() *tokenCache {
	return &tokenCache{
		entries: make(map[common.Address]cacheEntry),
	}
}

func (c *tokenCache) get(token common.Address) (tokenMeta, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[token]
	if !ok || time.Now().After(entry.expiresAt) {
		return tokenMeta{}, false
	}
	return entry.meta, true
}

func (c *tokenCache) set(token common.Address, meta tokenMeta) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[token] = cacheEntry{
		meta:      meta,
		expiresAt: time.Now().Add(cacheTTL),
	}
}
