// Package embedding obtains vector embeddings for chunk text, with a bounded
// cache in front of the external provider.
package embedding

import "context"

// Provider converts text into an embedding vector via an external service.
type Provider interface {
	// Name identifies the provider implementation ("ollama", "openai").
	Name() string

	// Model returns the model identifier used for embedding.
	Model() string

	// Embed returns the embedding vector for the given text. Transient
	// provider failures are retried internally; a terminal failure wraps
	// ErrProviderUnavailable.
	Embed(ctx context.Context, text string) ([]float32, error)
}
