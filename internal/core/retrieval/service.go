package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/AyushPanchal/Medha/internal/core/index"
	"github.com/AyushPanchal/Medha/internal/core/llm"
)

const (
	// DefaultK is the number of passages returned when the caller does not
	// ask for a specific amount.
	DefaultK = 5
	// DefaultDedupThreshold is the word-set Jaccard similarity above which
	// two passages count as near-duplicates.
	DefaultDedupThreshold = 0.9
	// overFetchFactor over-requests from the index so deduplication can
	// drop near-duplicates and still fill k results.
	overFetchFactor = 2
)

// Service is the retriever.
type Service struct {
	idx            index.Store
	embedder       llm.Embedder
	dedupThreshold float64
	minScore       float64
	retry          llm.RetryPolicy
	logger         *slog.Logger
}

// ServiceOption configures the retriever.
type ServiceOption func(*Service)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) { s.logger = logger }
}

// WithDedupThreshold overrides the near-duplicate similarity threshold.
func WithDedupThreshold(threshold float64) ServiceOption {
	return func(s *Service) { s.dedupThreshold = threshold }
}

// WithMinScore drops results scoring below the threshold.
func WithMinScore(minScore float64) ServiceOption {
	return func(s *Service) { s.minScore = minScore }
}

// WithRetryPolicy overrides the backoff applied to transient embedding
// failures.
func WithRetryPolicy(p llm.RetryPolicy) ServiceOption {
	return func(s *Service) { s.retry = p }
}

// NewService builds a retriever over the given index and embedder.
func NewService(idx index.Store, embedder llm.Embedder, opts ...ServiceOption) *Service {
	svc := &Service{
		idx:            idx,
		embedder:       embedder,
		dedupThreshold: DefaultDedupThreshold,
		retry:          llm.DefaultRetryPolicy(),
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	if svc.logger == nil {
		svc.logger = slog.Default()
	}
	return svc
}

// Retrieve embeds the query, searches the index, and returns at most K
// results ordered by score descending, with near-duplicates of higher-ranked
// results dropped. Embedding failures surface as *Error with the transient
// tag preserved.
func (s *Service) Retrieve(ctx context.Context, params Params) ([]Result, error) {
	if params.Query == "" {
		return nil, fmt.Errorf("query is required")
	}
	if params.K <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", params.K)
	}
	k := params.K

	vector, err := s.embedQuery(ctx, params.Query)
	if err != nil {
		return nil, err
	}

	matches, err := s.idx.Search(ctx, vector, k*overFetchFactor, params.Filter)
	if err != nil {
		return nil, &Error{Err: fmt.Errorf("index search failed: %w", err)}
	}

	results := make([]Result, 0, len(matches))
	for _, m := range matches {
		if m.Score < s.minScore {
			continue
		}
		results = append(results, Result{
			ChunkID:      m.ChunkID,
			DocumentID:   m.DocumentID,
			SourceEntity: m.SourceEntity,
			Text:         m.Text,
			Score:        m.Score,
			Metadata:     m.Metadata,
		})
	}

	results = dedupe(results, s.dedupThreshold)
	if len(results) > k {
		results = results[:k]
	}

	s.logger.Debug("retrieval completed",
		"query", params.Query,
		"matches", len(matches),
		"results", len(results),
	)

	return results, nil
}

func (s *Service) embedQuery(ctx context.Context, query string) ([]float32, error) {
	var vectors [][]float32
	err := llm.Retry(ctx, s.retry, func() error {
		var embedErr error
		vectors, embedErr = s.embedder.BatchEmbed(ctx, []string{query})
		return embedErr
	})
	if err != nil {
		var ee *llm.EmbeddingError
		if errors.As(err, &ee) {
			return nil, &Error{Transient: ee.Transient, Err: fmt.Errorf("failed to embed query: %w", err)}
		}
		return nil, &Error{Err: fmt.Errorf("failed to embed query: %w", err)}
	}
	if len(vectors) == 0 {
		return nil, &Error{Err: fmt.Errorf("embedder returned no vector for query")}
	}
	return vectors[0], nil
}
