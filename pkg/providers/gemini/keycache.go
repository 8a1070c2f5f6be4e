package gemini

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"
)

// keyCache memoizes credential validation results, keyed by a hash of the
// credential so the key itself is never retained.
type keyCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]keyEntry
}

type keyEntry struct {
	ok      bool
	message string
	at      time.Time
}

func newKeyCache(ttl time.Duration) *keyCache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &keyCache{ttl: ttl, entries: make(map[string]keyEntry)}
}

func (c *keyCache) get(key string) (bool, string, bool) {
	h := hashKey(key)
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[h]
	if !ok || time.Since(e.at) > c.ttl {
		delete(c.entries, h)
		return false, "", false
	}
	return e.ok, e.message, true
}

func (c *keyCache) put(key string, ok bool, message string) {
	h := hashKey(key)
	c.mu.Lock()
	c.entries[h] = keyEntry{ok: ok, message: message, at: time.Now()}
	c.mu.Unlock()
}

func hashKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}
