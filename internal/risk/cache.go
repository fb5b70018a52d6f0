package risk

import (
	"strings"
	"sync"
	"time"
)

// DefaultCacheTTL bounds how long a cached assessment stays fresh.
const DefaultCacheTTL = 15 * time.Minute

// Cache memoizes assessments per address. Implementations must be safe for
// concurrent use. The cache never scores; it is strictly a read-through
// layer in front of the scorer.
type Cache interface {
	Get(address string) (*RiskAssessment, bool)
	Set(address string, assessment *RiskAssessment)
	Clear()
}

// MemoryCache is the process-lifetime Cache used in production. Stale
// entries are superseded on the next write, never evicted.
type MemoryCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]cacheEntry
}

type cacheEntry struct {
	assessment *RiskAssessment
	storedAt   time.Time
}

// NewMemoryCache creates a cache with the given TTL. A non-positive TTL
// falls back to the default.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &MemoryCache{
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
	}
}

// Get returns the cached assessment for an address if it is still fresh.
func (c *MemoryCache) Get(address string) (*RiskAssessment, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[strings.ToLower(address)]
	if !ok || time.Since(entry.storedAt) > c.ttl {
		return nil, false
	}

	a := *entry.assessment
	return &a, true
}

// Set stores or overwrites the assessment for an address.
func (c *MemoryCache) Set(address string, assessment *RiskAssessment) {
	c.mu.Lock()
	defer c.mu.Unlock()

	a := *assessment
	c.entries[strings.ToLower(address)] = cacheEntry{
		assessment: &a,
		storedAt:   time.Now(),
	}
}

// Clear drops every entry. Primarily for tests.
func (c *MemoryCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]cacheEntry)
}
