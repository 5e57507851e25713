package embedding

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func vec(v float32) []float32 { return []float32{v, v, v} }

func TestCache_HitRefreshesMetadata(t *testing.T) {
	cache := NewCache(CacheConfig{MaxEntries: 10})
	cache.Set("k", vec(1))

	got, ok := cache.Get("k")
	require.True(t, ok)
	assert.Equal(t, vec(1), got)

	stats := cache.Stats()
	assert.Equal(t, uint64(1), stats.Hits)
	assert.Equal(t, uint64(0), stats.Misses)
	assert.Equal(t, 1, stats.Size)
}

func TestCache_Miss(t *testing.T) {
	cache := NewCache(CacheConfig{MaxEntries: 10})

	_, ok := cache.Get("absent")
	assert.False(t, ok)
	assert.Equal(t, uint64(1), cache.Stats().Misses)
}

func TestCache_LRUEviction(t *testing.T) {
	cache := NewCache(CacheConfig{MaxEntries: 3, Strategy: StrategyLRU})

	cache.Set("a", vec(1))
	cache.Set("b", vec(2))
	cache.Set("c", vec(3))

	// Touch a then c; b becomes least recently used.
	_, ok := cache.Get("a")
	require.True(t, ok)
	_, ok = cache.Get("c")
	require.True(t, ok)

	cache.Set("d", vec(4))

	_, ok = cache.Get("b")
	assert.False(t, ok, "b should have been evicted")
	for _, key := range []string{"a", "c", "d"} {
		_, ok := cache.Get(key)
		assert.True(t, ok, "%s should remain", key)
	}
	assert.Equal(t, uint64(1), cache.Stats().Evictions)
}

func TestCache_FIFOEviction(t *testing.T) {
	cache := NewCache(CacheConfig{MaxEntries: 3, Strategy: StrategyFIFO})

	cache.Set("a", vec(1))
	cache.Set("b", vec(2))
	cache.Set("c", vec(3))

	// Accessing a must not rescue it under FIFO.
	_, ok := cache.Get("a")
	require.True(t, ok)

	cache.Set("d", vec(4))

	_, ok = cache.Get("a")
	assert.False(t, ok, "a inserted first, evicted first")
	for _, key := range []string{"b", "c", "d"} {
		_, ok := cache.Get(key)
		assert.True(t, ok, "%s should remain", key)
	}
}

func TestCache_TTLExpiry(t *testing.T) {
	cache := NewCache(CacheConfig{MaxEntries: 10})

	current := time.Now()
	cache.now = func() time.Time { return current }

	cache.SetWithTTL("k", vec(1), 100*time.Millisecond)

	_, ok := cache.Get("k")
	require.True(t, ok, "fresh entry must be present")

	current = current.Add(150 * time.Millisecond)

	_, ok = cache.Get("k")
	assert.False(t, ok, "entry past its TTL is treated as absent")
	assert.Equal(t, 0, cache.Len(), "expired entry is physically removed on access")

	stats := cache.Stats()
	assert.Equal(t, uint64(1), stats.Expirations)
}

func TestCache_TTLZeroNeverExpires(t *testing.T) {
	cache := NewCache(CacheConfig{MaxEntries: 10})

	current := time.Now()
	cache.now = func() time.Time { return current }

	cache.Set("k", vec(1))
	current = current.Add(24 * time.Hour)

	_, ok := cache.Get("k")
	assert.True(t, ok)
}

func TestCache_OverwriteRefreshes(t *testing.T) {
	cache := NewCache(CacheConfig{MaxEntries: 2})

	cache.Set("a", vec(1))
	cache.Set("b", vec(2))
	cache.Set("a", vec(9)) // overwrite, no eviction

	assert.Equal(t, 2, cache.Len())
	got, ok := cache.Get("a")
	require.True(t, ok)
	assert.Equal(t, vec(9), got)
	assert.Equal(t, uint64(0), cache.Stats().Evictions)
}

func TestCache_ReturnedVectorIsACopy(t *testing.T) {
	cache := NewCache(CacheConfig{MaxEntries: 10})

	original := vec(1)
	cache.Set("k", original)
	original[0] = 99

	got, ok := cache.Get("k")
	require.True(t, ok)
	assert.Equal(t, vec(1), got, "mutating the caller's slice must not reach the cache")

	got[1] = 99
	again, ok := cache.Get("k")
	require.True(t, ok)
	assert.Equal(t, vec(1), again, "mutating a returned vector must not reach the cache")
}

func TestCache_Purge(t *testing.T) {
	cache := NewCache(CacheConfig{MaxEntries: 10})
	cache.Set("a", vec(1))
	cache.Set("b", vec(2))

	cache.Purge()

	assert.Equal(t, 0, cache.Len())
	_, ok := cache.Get("a")
	assert.False(t, ok)
}
