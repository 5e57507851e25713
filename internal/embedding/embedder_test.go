package embedding

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProvider returns a fixed vector and counts invocations.
type fakeProvider struct {
	calls  int
	vector []float32
	err    error
}

func (f *fakeProvider) Name() string  { return "fake" }
func (f *fakeProvider) Model() string { return "fake-model" }

func (f *fakeProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.vector, nil
}

func TestGetEmbedding_CacheHitSkipsProvider(t *testing.T) {
	provider := &fakeProvider{vector: []float32{0.1, 0.2, 0.3}}
	embedder := NewEmbedder(provider, NewCache(CacheConfig{MaxEntries: 10}), 3, nil, nil)

	ctx := context.Background()

	first, err := embedder.GetEmbedding(ctx, "some text", "ctx")
	require.NoError(t, err)
	require.Equal(t, 1, provider.calls)

	second, err := embedder.GetEmbedding(ctx, "some text", "ctx")
	require.NoError(t, err)

	assert.Equal(t, 1, provider.calls, "second call must not invoke the provider")
	assert.Equal(t, first, second, "cached vector must be bit-identical")

	stats := embedder.CacheStats()
	assert.Equal(t, uint64(1), stats.Hits)
	assert.Equal(t, uint64(1), stats.Misses)
}

func TestGetEmbedding_ContextSeparatesKeys(t *testing.T) {
	provider := &fakeProvider{vector: []float32{1, 2, 3}}
	embedder := NewEmbedder(provider, NewCache(CacheConfig{MaxEntries: 10}), 3, nil, nil)

	ctx := context.Background()

	_, err := embedder.GetEmbedding(ctx, "text", "model-a")
	require.NoError(t, err)
	_, err = embedder.GetEmbedding(ctx, "text", "model-b")
	require.NoError(t, err)

	assert.Equal(t, 2, provider.calls, "different contexts must not share cache entries")
}

func TestGetEmbedding_DimensionValidation(t *testing.T) {
	provider := &fakeProvider{vector: []float32{1, 2}} // wrong size
	embedder := NewEmbedder(provider, NewCache(CacheConfig{MaxEntries: 10}), 3, nil, nil)

	_, err := embedder.GetEmbedding(context.Background(), "text", "")
	assert.ErrorIs(t, err, ErrDimensionMismatch)
	assert.Equal(t, 0, embedder.CacheStats().Size, "invalid vectors must not be cached")
}

func TestGetEmbedding_ProviderFailureNotCached(t *testing.T) {
	provider := &fakeProvider{err: ErrProviderUnavailable}
	embedder := NewEmbedder(provider, NewCache(CacheConfig{MaxEntries: 10}), 3, nil, nil)

	_, err := embedder.GetEmbedding(context.Background(), "text", "")
	require.ErrorIs(t, err, ErrProviderUnavailable)

	provider.err = nil
	provider.vector = []float32{1, 2, 3}

	got, err := embedder.GetEmbedding(context.Background(), "text", "")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2, 3}, got)
	assert.Equal(t, 2, provider.calls)
}

func TestGetEmbeddings_PreservesOrder(t *testing.T) {
	provider := &fakeProvider{vector: []float32{1, 2, 3}}
	embedder := NewEmbedder(provider, NewCache(CacheConfig{MaxEntries: 10}), 3, nil, nil)

	vectors, err := embedder.GetEmbeddings(context.Background(), []string{"a", "b", "c"}, "")
	require.NoError(t, err)
	require.Len(t, vectors, 3)
	for _, v := range vectors {
		assert.Len(t, v, 3)
	}
}
