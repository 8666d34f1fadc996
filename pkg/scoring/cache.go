package scoring

import (
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// ScoreCache memoizes suitability scores by crop and serialized sample.
// Implementations must be safe for concurrent use.
type ScoreCache interface {
	Get(key string) (float64, bool)
	Put(key string, score float64)
	Len() int
}

// MapCache is an unbounded ScoreCache. Entries are never evicted, so it grows
// for the lifetime of the process; use it only when the input space is small.
type MapCache struct {
	mu      sync.RWMutex
	entries map[string]float64
}

// NewMapCache creates an empty unbounded cache.
func NewMapCache() *MapCache {
	return &MapCache{entries: make(map[string]float64)}
}

// Get returns the cached score for key.
func (c *MapCache) Get(key string) (float64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.entries[key]
	return v, ok
}

// Put stores a score. Existing entries are kept.
func (c *MapCache) Put(key string, score float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[key]; !ok {
		c.entries[key] = score
	}
}

// Len returns the number of cached entries.
func (c *MapCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// LRUCache is a bounded ScoreCache for long-lived processes.
type LRUCache struct {
	maxSize int
	entries *lru.Cache[string, float64]
}

// NewLRUCache creates a cache holding at most maxSize entries.
// If maxSize <= 0, it defaults to 4096.
func NewLRUCache(maxSize int) *LRUCache {
	if maxSize <= 0 {
		maxSize = 4096
	}
	entries, err := lru.New[string, float64](maxSize)
	if err != nil {
		panic(fmt.Sprintf("score cache: %v", err))
	}
	return &LRUCache{maxSize: maxSize, entries: entries}
}

// Get retrieves a score and marks it most recently used.
func (c *LRUCache) Get(key string) (float64, bool) {
	return c.entries.Get(key)
}

// Put adds a score, evicting the least recently used entry if full.
func (c *LRUCache) Put(key string, score float64) {
	c.entries.Add(key, score)
}

// Len returns the number of cached entries.
func (c *LRUCache) Len() int {
	return c.entries.Len()
}
