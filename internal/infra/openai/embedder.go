// Package openai adapts the OpenAI API to the llm capability interfaces.
// Retries live in the calling services; this package only classifies
// failures as transient or permanent.
package openai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/AyushPanchal/Medha/internal/core/llm"
)

const (
	// DefaultEmbeddingModel is used when no model is configured.
	DefaultEmbeddingModel = "text-embedding-3-small"
	// DefaultEmbeddingDimension is the model's native dimension.
	DefaultEmbeddingDimension = 1536
	// maxEmbeddingBatch is the OpenAI embeddings API input limit.
	maxEmbeddingBatch = 100
)

// Embedder generates embeddings through the OpenAI API.
type Embedder struct {
	client    openai.Client
	model     string
	dimension int
	timeout   time.Duration
}

type embedderOptions struct {
	model     string
	dimension int
	timeout   time.Duration
}

// EmbedderOption configures an Embedder.
type EmbedderOption func(*embedderOptions)

// WithEmbeddingModel overrides the embedding model.
func WithEmbeddingModel(model string) EmbedderOption {
	return func(o *embedderOptions) {
		o.model = model
	}
}

// WithEmbeddingDimension overrides the requested vector dimension.
func WithEmbeddingDimension(dimension int) EmbedderOption {
	return func(o *embedderOptions) {
		o.dimension = dimension
	}
}

// WithEmbeddingTimeout overrides the per-call timeout.
func WithEmbeddingTimeout(timeout time.Duration) EmbedderOption {
	return func(o *embedderOptions) {
		if timeout > 0 {
			o.timeout = timeout
		}
	}
}

// NewEmbedder creates an Embedder.
func NewEmbedder(apiKey string, opts ...EmbedderOption) *Embedder {
	options := embedderOptions{
		model:     DefaultEmbeddingModel,
		dimension: DefaultEmbeddingDimension,
		timeout:   DefaultTimeout,
	}
	for _, opt := range opts {
		opt(&options)
	}

	return &Embedder{
		client: openai.NewClient(
			option.WithAPIKey(apiKey),
		),
		model:     options.model,
		dimension: options.dimension,
		timeout:   options.timeout,
	}
}

var _ llm.Embedder = (*Embedder)(nil)

// BatchEmbed generates embeddings for up to MaxBatchSize texts, preserving
// input order.
func (e *Embedder) BatchEmbed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, &llm.EmbeddingError{Err: fmt.Errorf("no texts provided")}
	}
	if len(texts) > maxEmbeddingBatch {
		return nil, &llm.EmbeddingError{Err: fmt.Errorf("batch size %d exceeds maximum of %d", len(texts), maxEmbeddingBatch)}
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	params := openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(e.model),
	}

	if len(texts) == 1 {
		params.Input = openai.EmbeddingNewParamsInputUnion{
			OfString: openai.String(texts[0]),
		}
	} else {
		params.Input = openai.EmbeddingNewParamsInputUnion{
			OfArrayOfStrings: texts,
		}
	}

	if e.dimension > 0 {
		params.Dimensions = openai.Int(int64(e.dimension))
	}

	resp, err := e.client.Embeddings.New(ctx, params)
	if err != nil {
		return nil, &llm.EmbeddingError{
			Transient: isTransientError(err),
			Err:       fmt.Errorf("generate embeddings: %w", err),
		}
	}

	if len(resp.Data) != len(texts) {
		return nil, &llm.EmbeddingError{
			Err: fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Data)),
		}
	}

	embeddings := make([][]float32, len(resp.Data))
	for _, data := range resp.Data {
		vector := make([]float32, len(data.Embedding))
		for i, v := range data.Embedding {
			vector[i] = float32(v)
		}
		embeddings[data.Index] = vector
	}

	return embeddings, nil
}

// ModelName returns the configured model name.
func (e *Embedder) ModelName() string {
	return e.model
}

// Dimension returns the configured vector dimension.
func (e *Embedder) Dimension() int {
	return e.dimension
}

// MaxBatchSize returns the API's per-request input limit.
func (e *Embedder) MaxBatchSize() int {
	return maxEmbeddingBatch
}

// isTransientError reports whether a request is worth retrying: rate limits,
// server-side errors and context timeouts.
func isTransientError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429 || apiErr.StatusCode >= 500
	}

	return false
}
