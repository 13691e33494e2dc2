package retrieval

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AyushPanchal/Medha/internal/core/index"
	"github.com/AyushPanchal/Medha/internal/core/llm"
)

type stubEmbedder struct {
	calls    int
	failures int
	failWith error
}

func (e *stubEmbedder) BatchEmbed(ctx context.Context, texts []string) ([][]float32, error) {
	e.calls++
	if e.calls <= e.failures {
		return nil, e.failWith
	}
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vectors[i] = []float32{1, 0, 0}
	}
	return vectors, nil
}

func (e *stubEmbedder) Dimension() int    { return 3 }
func (e *stubEmbedder) ModelName() string { return "stub-embedder" }
func (e *stubEmbedder) MaxBatchSize() int { return 100 }

type stubIndex struct {
	matches []index.Match
	lastK   int
	err     error
}

func (s *stubIndex) Upsert(ctx context.Context, records []index.Record) error { return nil }

func (s *stubIndex) Search(ctx context.Context, vector []float32, k int, filter index.Filter) ([]index.Match, error) {
	s.lastK = k
	if s.err != nil {
		return nil, s.err
	}
	if len(s.matches) > k {
		return s.matches[:k], nil
	}
	return s.matches, nil
}

func (s *stubIndex) Delete(ctx context.Context, chunkIDs []string) error { return nil }

func (s *stubIndex) DeleteByDocument(ctx context.Context, documentID string) error { return nil }

func (s *stubIndex) Count(ctx context.Context) (int, error) { return len(s.matches), nil }

func (s *stubIndex) Dimension() int { return 3 }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fastRetry() llm.RetryPolicy {
	return llm.RetryPolicy{MaxAttempts: 3, BaseBackoff: time.Millisecond, MaxBackoff: time.Millisecond}
}

func TestRetrieveRejectsEmptyQuery(t *testing.T) {
	svc := NewService(&stubIndex{}, &stubEmbedder{}, WithLogger(testLogger()))

	_, err := svc.Retrieve(context.Background(), Params{Query: "", K: 5})
	require.Error(t, err)
}

func TestRetrieveRejectsNonPositiveK(t *testing.T) {
	svc := NewService(&stubIndex{}, &stubEmbedder{}, WithLogger(testLogger()))

	for _, k := range []int{0, -1} {
		_, err := svc.Retrieve(context.Background(), Params{Query: "who teaches ai", K: k})
		require.Error(t, err, "k=%d", k)
	}
}

func TestRetrieveOverFetchesAndTruncates(t *testing.T) {
	idx := &stubIndex{matches: []index.Match{
		{ChunkID: "a#0000", Text: "operating systems course", Score: 0.9},
		{ChunkID: "b#0000", Text: "database systems course", Score: 0.8},
		{ChunkID: "c#0000", Text: "computer networks course", Score: 0.7},
	}}
	svc := NewService(idx, &stubEmbedder{}, WithLogger(testLogger()))

	results, err := svc.Retrieve(context.Background(), Params{Query: "courses", K: 2})
	require.NoError(t, err)

	assert.Equal(t, 4, idx.lastK, "index should be over-fetched to allow deduplication")
	require.Len(t, results, 2)
	assert.Equal(t, "a#0000", results[0].ChunkID)
	assert.Equal(t, "b#0000", results[1].ChunkID)
}

func TestRetrieveDropsNearDuplicates(t *testing.T) {
	idx := &stubIndex{matches: []index.Match{
		{ChunkID: "a#0000", Text: "Dr. Smith teaches machine learning and deep learning", Score: 0.9},
		{ChunkID: "a#0001", Text: "Dr. Smith teaches deep learning and machine learning", Score: 0.85},
		{ChunkID: "b#0000", Text: "The library is open from nine to five", Score: 0.5},
	}}
	svc := NewService(idx, &stubEmbedder{}, WithLogger(testLogger()))

	results, err := svc.Retrieve(context.Background(), Params{Query: "who teaches ml", K: 3})
	require.NoError(t, err)

	require.Len(t, results, 2)
	assert.Equal(t, "a#0000", results[0].ChunkID, "the higher-ranked duplicate must survive")
	assert.Equal(t, "b#0000", results[1].ChunkID)
}

func TestRetrieveAppliesMinScore(t *testing.T) {
	idx := &stubIndex{matches: []index.Match{
		{ChunkID: "a#0000", Text: "relevant text", Score: 0.9},
		{ChunkID: "b#0000", Text: "barely related text", Score: 0.2},
	}}
	svc := NewService(idx, &stubEmbedder{}, WithLogger(testLogger()), WithMinScore(0.5))

	results, err := svc.Retrieve(context.Background(), Params{Query: "q", K: 5})
	require.NoError(t, err)

	require.Len(t, results, 1)
	assert.Equal(t, "a#0000", results[0].ChunkID)
}

func TestRetrieveRetriesTransientEmbeddingFailure(t *testing.T) {
	embedder := &stubEmbedder{
		failures: 2,
		failWith: &llm.EmbeddingError{Transient: true, Err: fmt.Errorf("rate limited")},
	}
	idx := &stubIndex{matches: []index.Match{{ChunkID: "a#0000", Text: "text", Score: 0.9}}}
	svc := NewService(idx, embedder, WithLogger(testLogger()), WithRetryPolicy(fastRetry()))

	results, err := svc.Retrieve(context.Background(), Params{Query: "q", K: 1})
	require.NoError(t, err)

	assert.Equal(t, 3, embedder.calls)
	require.Len(t, results, 1)
}

func TestRetrieveDoesNotRetryPermanentEmbeddingFailure(t *testing.T) {
	embedder := &stubEmbedder{
		failures: 10,
		failWith: &llm.EmbeddingError{Transient: false, Err: fmt.Errorf("invalid input")},
	}
	svc := NewService(&stubIndex{}, embedder, WithLogger(testLogger()), WithRetryPolicy(fastRetry()))

	_, err := svc.Retrieve(context.Background(), Params{Query: "q", K: 1})
	require.Error(t, err)

	assert.Equal(t, 1, embedder.calls)

	var retErr *Error
	require.ErrorAs(t, err, &retErr)
	assert.False(t, retErr.Transient)
}

func TestRetrieveSurfacesTransientTag(t *testing.T) {
	embedder := &stubEmbedder{
		failures: 10,
		failWith: &llm.EmbeddingError{Transient: true, Err: fmt.Errorf("rate limited")},
	}
	svc := NewService(&stubIndex{}, embedder, WithLogger(testLogger()), WithRetryPolicy(fastRetry()))

	_, err := svc.Retrieve(context.Background(), Params{Query: "q", K: 1})
	require.Error(t, err)

	var retErr *Error
	require.ErrorAs(t, err, &retErr)
	assert.True(t, retErr.Transient, "transient tag must survive the retry wrapper")
}
