package embedding

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/openai/openai-go"
)

// DefaultOpenAIModel is the OpenAI embedding model.
const DefaultOpenAIModel = "text-embedding-3-small"

// OpenAIClient is the alternative provider for deployments embedding through
// the OpenAI API instead of a local model.
type OpenAIClient struct {
	client *openai.Client
	model  string
}

// NewOpenAIClient creates an OpenAI embeddings provider. The API key is read
// from the environment variable named by apiKeyEnv (OPENAI_API_KEY when empty).
func NewOpenAIClient(apiKeyEnv, model string) (*OpenAIClient, error) {
	if apiKeyEnv == "" {
		apiKeyEnv = "OPENAI_API_KEY"
	}
	if os.Getenv(apiKeyEnv) == "" {
		return nil, fmt.Errorf("%s environment variable not set", apiKeyEnv)
	}
	if model == "" {
		model = DefaultOpenAIModel
	}

	client := openai.NewClient()
	return &OpenAIClient{client: &client, model: model}, nil
}

// Name returns the provider identifier.
func (c *OpenAIClient) Name() string { return "openai" }

// Model returns the embedding model identifier.
func (c *OpenAIClient) Model() string { return c.model }

// Embed requests an embedding with exponential backoff on rate limit errors.
// Other API errors are treated as permanent and fail immediately; exhausted
// retries surface ErrProviderUnavailable.
func (c *OpenAIClient) Embed(ctx context.Context, text string) ([]float32, error) {
	var vector []float32

	operation := func() error {
		resp, err := c.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
			Input: openai.EmbeddingNewParamsInputUnion{
				OfString: openai.String(text),
			},
			Model: openai.EmbeddingModel(c.model),
		})
		if err != nil {
			if isRateLimitError(err) {
				return err // will retry with backoff
			}
			return backoff.Permanent(err)
		}
		if len(resp.Data) == 0 {
			return backoff.Permanent(fmt.Errorf("no embedding returned"))
		}
		vector = toFloat32(resp.Data[0].Embedding)
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 30 * time.Second

	err := backoff.Retry(operation, backoff.WithMaxRetries(backoff.WithContext(b, ctx), maxAttempts))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	return vector, nil
}

// isRateLimitError checks if the error is a rate limit error (HTTP 429).
func isRateLimitError(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429
	}
	return false
}
