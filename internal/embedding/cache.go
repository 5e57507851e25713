package embedding

import (
	"container/list"
	"sync"
	"time"
)

// Strategy selects the eviction order of the cache.
type Strategy string

const (
	// StrategyLRU evicts the entry with the oldest last access. Default.
	StrategyLRU Strategy = "lru"

	// StrategyFIFO evicts in insertion order regardless of access.
	StrategyFIFO Strategy = "fifo"
)

// CacheConfig bounds the embedding cache.
type CacheConfig struct {
	// MaxEntries is the maximum number of cached vectors. Inserting beyond
	// it evicts according to Strategy.
	MaxEntries int

	// Strategy is the eviction strategy, StrategyLRU when empty.
	Strategy Strategy

	// TTL is the default time-to-live for entries; 0 means no expiry.
	// Expired entries are treated as absent on the next lookup and removed
	// lazily, not by a background sweep.
	TTL time.Duration
}

// Stats are cache observability counters. They are not part of correctness.
type Stats struct {
	Hits        uint64
	Misses      uint64
	Evictions   uint64
	Expirations uint64
	Size        int
}

type cacheEntry struct {
	key            string
	vector         []float32
	createdAt      time.Time
	lastAccessedAt time.Time
	accessCount    uint64
	ttl            time.Duration
	sizeBytes      int
	elem           *list.Element
}

func (e *cacheEntry) expired(now time.Time) bool {
	return e.ttl > 0 && now.Sub(e.createdAt) > e.ttl
}

// Cache is a bounded, evicting embedding cache. It owns its entries:
// eviction deletes them. All mutation is guarded by an ordinary mutex; no
// operation suspends while holding it.
type Cache struct {
	mu      sync.Mutex
	cfg     CacheConfig
	entries map[string]*cacheEntry
	order   *list.List // front = next eviction candidate
	stats   Stats
	now     func() time.Time
}

// NewCache creates a cache with the given bounds. MaxEntries defaults to 1000.
func NewCache(cfg CacheConfig) *Cache {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = 1000
	}
	if cfg.Strategy == "" {
		cfg.Strategy = StrategyLRU
	}
	return &Cache{
		cfg:     cfg,
		entries: make(map[string]*cacheEntry),
		order:   list.New(),
		now:     time.Now,
	}
}

// Get returns a copy of the cached vector for key and refreshes its access
// metadata. An entry past its TTL is removed and reported as absent. Both Get
// and Set copy the vector, so a caller mutating its slice cannot corrupt the
// cached value.
func (c *Cache) Get(key string) ([]float32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		c.stats.Misses++
		return nil, false
	}

	now := c.now()
	if entry.expired(now) {
		c.remove(entry)
		c.stats.Expirations++
		c.stats.Misses++
		return nil, false
	}

	entry.lastAccessedAt = now
	entry.accessCount++
	if c.cfg.Strategy == StrategyLRU {
		c.order.MoveToBack(entry.elem)
	}
	c.stats.Hits++
	return cloneVector(entry.vector), true
}

// Set stores a vector under key with the cache's default TTL.
func (c *Cache) Set(key string, vector []float32) {
	c.SetWithTTL(key, vector, c.cfg.TTL)
}

// SetWithTTL stores a vector with an explicit TTL (0 = never expires).
// Inserting beyond MaxEntries evicts one entry per the configured strategy.
func (c *Cache) SetWithTTL(key string, vector []float32, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if existing, ok := c.entries[key]; ok {
		existing.vector = cloneVector(vector)
		existing.createdAt = now
		existing.lastAccessedAt = now
		existing.ttl = ttl
		existing.sizeBytes = len(vector) * 4
		c.order.MoveToBack(existing.elem)
		return
	}

	if len(c.entries) >= c.cfg.MaxEntries {
		if front := c.order.Front(); front != nil {
			c.remove(front.Value.(*cacheEntry))
			c.stats.Evictions++
		}
	}

	entry := &cacheEntry{
		key:            key,
		vector:         cloneVector(vector),
		createdAt:      now,
		lastAccessedAt: now,
		ttl:            ttl,
		sizeBytes:      len(vector) * 4,
	}
	entry.elem = c.order.PushBack(entry)
	c.entries[key] = entry
}

// Remove deletes an entry by key if present.
func (c *Cache) Remove(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, ok := c.entries[key]; ok {
		c.remove(entry)
	}
}

// Purge removes every entry. Counters are retained.
func (c *Cache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*cacheEntry)
	c.order.Init()
}

// Len returns the number of live entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats returns a snapshot of the cache counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := c.stats
	stats.Size = len(c.entries)
	return stats
}

// remove deletes an entry; callers hold the mutex.
func (c *Cache) remove(entry *cacheEntry) {
	c.order.Remove(entry.elem)
	delete(c.entries, entry.key)
}

func cloneVector(vector []float32) []float32 {
	out := make([]float32, len(vector))
	copy(out, vector)
	return out
}
