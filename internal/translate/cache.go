package translate

import (
	"crypto/md5" //nolint:gosec
	"encoding/hex"
	"sync"
	"time"
)

// cacheEntry is a cached translation result.
type cacheEntry struct {
	Text    string
	Emotion string
}

// Cache stores translation results keyed by CacheKey.
type Cache interface {
	Get(key string) (cacheEntry, bool)
	Put(key string, entry cacheEntry)
}

// CacheKey derives a stable key from the source text and language pair.
func CacheKey(text, sourceLanguage, targetLanguage string) string {
	sum := md5.Sum([]byte(text + "|" + sourceLanguage + "|" + targetLanguage)) //nolint:gosec
	return hex.EncodeToString(sum[:])
}

type memoryEntry struct {
	value    cacheEntry
	storedAt time.Time
}

// MemoryCache is a bounded in-memory cache. When full, the oldest insertion
// is evicted first. Entries expire after the configured TTL.
type MemoryCache struct {
	mu         sync.Mutex
	entries    map[string]memoryEntry
	order      []string
	maxEntries int
	ttl        time.Duration
	now        func() time.Time
}

// NewMemoryCache constructs a MemoryCache. maxEntries and ttl fall back to
// 1000 entries and 24 hours when non-positive.
func NewMemoryCache(maxEntries int, ttl time.Duration) *MemoryCache {
	if maxEntries <= 0 {
		maxEntries = 1000
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &MemoryCache{
		entries:    make(map[string]memoryEntry),
		maxEntries: maxEntries,
		ttl:        ttl,
		now:        time.Now,
	}
}

// Get returns the cached entry for key if present and not expired.
func (c *MemoryCache) Get(key string) (cacheEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key]
	if !ok {
		return cacheEntry{}, false
	}
	if c.now().Sub(entry.storedAt) > c.ttl {
		delete(c.entries, key)
		return cacheEntry{}, false
	}
	return entry.value, true
}

// Put stores entry under key, evicting the oldest insertion when full.
func (c *MemoryCache) Put(key string, entry cacheEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.entries[key]; !exists {
		for len(c.entries) >= c.maxEntries && len(c.order) > 0 {
			oldest := c.order[0]
			c.order = c.order[1:]
			delete(c.entries, oldest)
		}
		c.order = append(c.order, key)
	}
	c.entries[key] = memoryEntry{value: entry, storedAt: c.now()}
}

// Len reports the number of live entries.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
