package embedding

import "errors"

var (
	// ErrProviderUnavailable is returned after retries against the embedding
	// service are exhausted.
	ErrProviderUnavailable = errors.New("embedding provider unavailable")

	// ErrDimensionMismatch is returned when the provider produces a vector
	// whose length disagrees with the configured dimension.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)
