// Package llm defines the external language-model capabilities the core
// depends on: embedding, completion generation, and summarization. Concrete
// providers live under internal/infra and are injected; nothing in core
// constructs a provider itself.
package llm

import "context"

// Embedder maps text to fixed-length vectors. Implementations must return one
// vector per input, in input order, and must be deterministic for a fixed
// model version.
type Embedder interface {
	// BatchEmbed generates embeddings for up to MaxBatchSize texts.
	BatchEmbed(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the vector length every embedding carries.
	Dimension() int

	// ModelName identifies the embedding model version.
	ModelName() string

	// MaxBatchSize returns the largest batch one BatchEmbed call accepts.
	MaxBatchSize() int
}

// CompletionRequest is a single prompt sent to a chat model.
type CompletionRequest struct {
	System      string
	Prompt      string
	Temperature float64
	MaxTokens   int
}

// CompletionResponse carries the generated text and usage accounting.
type CompletionResponse struct {
	Content    string
	TokensUsed int
	Model      string
}

// Generator produces chat completions.
type Generator interface {
	GenerateCompletion(ctx context.Context, req CompletionRequest) (CompletionResponse, error)
}

// Summarizer condenses text into a short summary. Callers treat failures as
// best-effort: a summarization error degrades to the raw text.
type Summarizer interface {
	Summarize(ctx context.Context, text string) (string, error)
}
