package embedding

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/vcia/knowledge-sync/internal/hashing"
)

// Embedder resolves chunk text to vectors through the cache, calling the
// provider only on misses. The cache instance is injected; there is no
// shared global state.
type Embedder struct {
	provider   Provider
	cache      *Cache
	dimension  int
	cacheTotal *prometheus.CounterVec // label "result": hit/miss, may be nil
	logger     *slog.Logger
}

// NewEmbedder creates an embedder in front of the given provider. dimension
// is the deployment's fixed vector size; vectors of any other length are
// rejected. cacheTotal may be nil when metrics are not wired.
func NewEmbedder(provider Provider, cache *Cache, dimension int, cacheTotal *prometheus.CounterVec, logger *slog.Logger) *Embedder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Embedder{
		provider:   provider,
		cache:      cache,
		dimension:  dimension,
		cacheTotal: cacheTotal,
		logger:     logger,
	}
}

// GetEmbedding returns the embedding for text under the given context string
// (the model identifier when empty). A cache hit returns the stored vector
// without touching the provider.
func (e *Embedder) GetEmbedding(ctx context.Context, text, embedContext string) ([]float32, error) {
	if embedContext == "" {
		embedContext = e.provider.Model()
	}
	key := hashing.HashKey(text, embedContext)

	if vector, ok := e.cache.Get(key); ok {
		e.incCache("hit")
		return vector, nil
	}
	e.incCache("miss")

	vector, err := e.provider.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed text: %w", err)
	}
	if len(vector) != e.dimension {
		return nil, fmt.Errorf("%w: provider returned %d dimensions, expected %d",
			ErrDimensionMismatch, len(vector), e.dimension)
	}

	e.cache.Set(key, vector)
	return vector, nil
}

// GetEmbeddings resolves a batch of texts in order. Failing on the first
// error keeps chunk/vector slices aligned for the synchronizer.
func (e *Embedder) GetEmbeddings(ctx context.Context, texts []string, embedContext string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vector, err := e.GetEmbedding(ctx, text, embedContext)
		if err != nil {
			return nil, fmt.Errorf("text %d: %w", i, err)
		}
		vectors[i] = vector
	}
	return vectors, nil
}

// CacheStats exposes the underlying cache counters for reporting.
func (e *Embedder) CacheStats() Stats {
	return e.cache.Stats()
}

func (e *Embedder) incCache(result string) {
	if e.cacheTotal != nil {
		e.cacheTotal.WithLabelValues(result).Inc()
	}
}
