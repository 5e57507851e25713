// Package confidence converts the heterogeneous scores flowing through the
// system (raw vector store relevance, percentages, already normalized
// values) onto a single [0,1] scale and serves per-file confidence backed by
// the store.
package confidence

import "math"

// SourceType identifies the scale a raw score arrives on.
type SourceType string

const (
	// SourceVectorStore is the store's native relevance scale, roughly
	// [0,30] for the scoring heuristics feeding the payloads.
	SourceVectorStore SourceType = "vectorStore"

	// SourcePercentage is a [0,100] score.
	SourcePercentage SourceType = "percentage"

	// SourceRelevance is an already normalized [0,1] score, clamped only.
	SourceRelevance SourceType = "relevance"

	// SourceLocal marks a confidence blended with a locally computed score.
	SourceLocal SourceType = "local"

	// SourceDefault marks a confidence served because no score exists.
	SourceDefault SourceType = "default"
)

// Method selects the normalization curve.
type Method string

const (
	// MethodLinear scales proportionally. Default.
	MethodLinear Method = "linear"

	// MethodSigmoid compresses the extremes, spreading the mid range.
	MethodSigmoid Method = "sigmoid"
)

const (
	// vectorStoreMax is the top of the store's native relevance scale.
	vectorStoreMax = 30.0

	// sigmoidSteepness controls how sharply MethodSigmoid separates the
	// middle of the scale.
	sigmoidSteepness = 10.0

	// DefaultScore is returned when no score information exists at all.
	DefaultScore = 0.5
)

// Normalizer maps raw scores into [0,1].
type Normalizer struct {
	method Method
}

// NewNormalizer creates a normalizer, MethodLinear when method is empty.
func NewNormalizer(method Method) *Normalizer {
	if method == "" {
		method = MethodLinear
	}
	return &Normalizer{method: method}
}

// Normalize converts a raw score from the given source onto [0,1]. Out of
// range inputs clamp rather than error; score pipelines must never fail a
// sync over a bad number.
func (n *Normalizer) Normalize(raw float64, source SourceType) float64 {
	var scaled float64
	switch source {
	case SourceVectorStore:
		scaled = raw / vectorStoreMax
	case SourcePercentage:
		scaled = raw / 100.0
	case SourceRelevance:
		scaled = raw
	default:
		return DefaultScore
	}

	scaled = clamp01(scaled)
	if n.method == MethodSigmoid {
		scaled = sigmoid(scaled)
	}
	return scaled
}

// sigmoid maps [0,1] through a logistic curve centered at 0.5, rescaled so
// the endpoints stay exactly at 0 and 1.
func sigmoid(x float64) float64 {
	raw := func(v float64) float64 {
		return 1.0 / (1.0 + math.Exp(-sigmoidSteepness*(v-0.5)))
	}
	lo, hi := raw(0), raw(1)
	return (raw(x) - lo) / (hi - lo)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
