package confidence

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize_VectorStoreScale(t *testing.T) {
	n := NewNormalizer(MethodLinear)

	got := n.Normalize(21.5, SourceVectorStore)
	assert.InDelta(t, 0.7167, got, 0.005)

	assert.Equal(t, 0.0, n.Normalize(0, SourceVectorStore))
	assert.Equal(t, 1.0, n.Normalize(30, SourceVectorStore))
	assert.Equal(t, 1.0, n.Normalize(45, SourceVectorStore), "above scale clamps to 1")
}

func TestNormalize_PercentageScale(t *testing.T) {
	n := NewNormalizer(MethodLinear)

	assert.Equal(t, 0.85, n.Normalize(85, SourcePercentage))
	assert.Equal(t, 0.0, n.Normalize(-10, SourcePercentage), "negative clamps to 0")
	assert.Equal(t, 1.0, n.Normalize(150, SourcePercentage), "over 100 clamps to 1")
}

func TestNormalize_RelevancePassthrough(t *testing.T) {
	n := NewNormalizer(MethodLinear)

	assert.Equal(t, 0.42, n.Normalize(0.42, SourceRelevance))
	assert.Equal(t, 1.0, n.Normalize(1.7, SourceRelevance))
	assert.Equal(t, 0.0, n.Normalize(-0.3, SourceRelevance))
}

func TestNormalize_UnknownSourceUsesDefault(t *testing.T) {
	n := NewNormalizer(MethodLinear)

	assert.Equal(t, DefaultScore, n.Normalize(12, SourceType("unknown")))
}

func TestNormalize_SigmoidKeepsEndpointsAndOrder(t *testing.T) {
	n := NewNormalizer(MethodSigmoid)

	assert.InDelta(t, 0.0, n.Normalize(0, SourceVectorStore), 1e-9)
	assert.InDelta(t, 1.0, n.Normalize(30, SourceVectorStore), 1e-9)
	assert.InDelta(t, 0.5, n.Normalize(15, SourceVectorStore), 1e-9)

	low := n.Normalize(10, SourceVectorStore)
	high := n.Normalize(20, SourceVectorStore)
	assert.Less(t, low, high)

	// The curve spreads the mid range compared to linear.
	assert.Less(t, low, 10.0/30.0)
	assert.Greater(t, high, 20.0/30.0)
}
