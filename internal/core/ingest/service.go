package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/AyushPanchal/Medha/internal/core/index"
	"github.com/AyushPanchal/Medha/internal/core/llm"
)

const (
	// DefaultWorkerCount is how many documents are ingested concurrently.
	DefaultWorkerCount = 4
	// DefaultEmbedBatchSize is the embedding batch size before clipping by
	// Embedder.MaxBatchSize().
	DefaultEmbedBatchSize = 100
)

// PipelineConfig controls the ingestion pipeline.
type PipelineConfig struct {
	// WorkerCount is the number of documents processed in parallel.
	WorkerCount int
	// EmbedBatchSize is the embedding batch size, clipped by the embedder's
	// own maximum.
	EmbedBatchSize int
}

// DefaultPipelineConfig returns the default pipeline settings.
func DefaultPipelineConfig() *PipelineConfig {
	return &PipelineConfig{
		WorkerCount:    DefaultWorkerCount,
		EmbedBatchSize: DefaultEmbedBatchSize,
	}
}

// Service runs the ingestion pipeline: store the document, chunk it, enrich
// chunk metadata (best effort), embed in batches, and replace the document's
// chunks in the vector index. Documents are independent and are processed
// concurrently; one document's failure never aborts the others.
type Service struct {
	store      DocumentStore
	idx        index.Store
	embedder   llm.Embedder
	summarizer llm.Summarizer
	chunker    *Chunker
	config     *PipelineConfig
	retry      llm.RetryPolicy
	logger     *slog.Logger

	effectiveBatchSize int
}

type serviceOptions struct {
	summarizer llm.Summarizer
	config     *PipelineConfig
	retry      llm.RetryPolicy
	logger     *slog.Logger
}

// ServiceOption configures the ingestion Service.
type ServiceOption func(*serviceOptions)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(o *serviceOptions) { o.logger = logger }
}

// WithSummarizer enables chunk metadata enrichment through the given
// summarization capability. Enrichment is on exactly when a summarizer is
// provided, independent of option order.
func WithSummarizer(s llm.Summarizer) ServiceOption {
	return func(o *serviceOptions) {
		o.summarizer = s
	}
}

// WithPipelineConfig overrides the pipeline settings.
func WithPipelineConfig(cfg *PipelineConfig) ServiceOption {
	return func(o *serviceOptions) {
		if cfg != nil {
			o.config = cfg
		}
	}
}

// WithRetryPolicy overrides the backoff applied to transient embedding
// failures.
func WithRetryPolicy(p llm.RetryPolicy) ServiceOption {
	return func(o *serviceOptions) { o.retry = p }
}

// NewService builds the ingestion Service. The embedder and index must agree
// on the vector dimension; skew is rejected here rather than discovered batch
// by batch.
func NewService(
	store DocumentStore,
	idx index.Store,
	embedder llm.Embedder,
	chunker *Chunker,
	opts ...ServiceOption,
) (*Service, error) {
	options := serviceOptions{
		config: DefaultPipelineConfig(),
		retry:  llm.DefaultRetryPolicy(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(&options)
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}

	if got, want := embedder.Dimension(), idx.Dimension(); got != want {
		return nil, &index.DimensionMismatchError{Want: want, Got: got}
	}

	batchSize := options.config.EmbedBatchSize
	if batchSize <= 0 {
		batchSize = DefaultEmbedBatchSize
	}
	if maxBatch := embedder.MaxBatchSize(); maxBatch > 0 && batchSize > maxBatch {
		batchSize = maxBatch
	}

	workers := options.config.WorkerCount
	if workers <= 0 {
		options.config.WorkerCount = DefaultWorkerCount
	}

	return &Service{
		store:              store,
		idx:                idx,
		embedder:           embedder,
		summarizer:         options.summarizer,
		chunker:            chunker,
		config:             options.config,
		retry:              options.retry,
		logger:             options.logger,
		effectiveBatchSize: batchSize,
	}, nil
}

type documentResult struct {
	documentID string
	chunks     int
	err        error
}

// Ingest runs the pipeline over the given documents and returns a report. A
// per-document failure is recorded in the report and does not abort the run;
// the returned error is non-nil only when the context is cancelled.
func (s *Service) Ingest(ctx context.Context, docs []*Document) (*Report, error) {
	start := time.Now()

	s.logger.Info("ingestion started",
		"documents", len(docs),
		"workers", s.config.WorkerCount,
		"embedBatchSize", s.effectiveBatchSize,
	)

	docChan := make(chan *Document, len(docs))
	resultChan := make(chan documentResult, len(docs))

	var wg sync.WaitGroup
	wg.Add(s.config.WorkerCount)
	for i := 0; i < s.config.WorkerCount; i++ {
		go func() {
			defer wg.Done()
			for doc := range docChan {
				if ctx.Err() != nil {
					return
				}
				chunks, err := s.ingestDocument(ctx, doc)
				resultChan <- documentResult{documentID: doc.ID, chunks: chunks, err: err}
			}
		}()
	}

	for _, doc := range docs {
		docChan <- doc
	}
	close(docChan)

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	report := &Report{}
	for result := range resultChan {
		if result.err != nil {
			s.logger.Warn("document ingestion failed",
				"documentID", result.documentID,
				"error", result.err,
			)
			report.Errors = append(report.Errors, DocumentError{
				DocumentID: result.documentID,
				Err:        result.err,
			})
			continue
		}
		report.DocumentsProcessed++
		report.ChunksIndexed += result.chunks
	}
	report.Duration = time.Since(start)

	s.logger.Info("ingestion finished",
		"documentsProcessed", report.DocumentsProcessed,
		"chunksIndexed", report.ChunksIndexed,
		"failedDocuments", len(report.Errors),
		"duration", report.Duration,
	)

	if err := ctx.Err(); err != nil {
		return report, err
	}
	return report, nil
}

// ingestDocument processes one document end to end. Re-ingesting the same
// document ID fully replaces its prior chunks: stale chunks are deleted
// before the new set is upserted, so no orphans survive.
func (s *Service) ingestDocument(ctx context.Context, doc *Document) (int, error) {
	if doc == nil || doc.ID == "" {
		return 0, fmt.Errorf("document id is required")
	}

	if err := s.store.Put(ctx, doc); err != nil {
		return 0, fmt.Errorf("failed to store document: %w", err)
	}

	chunks, err := s.chunker.Chunk(doc)
	if err != nil {
		return 0, fmt.Errorf("failed to chunk document: %w", err)
	}
	if len(chunks) == 0 {
		// Still drop stale chunks from any prior revision.
		if err := s.idx.DeleteByDocument(ctx, doc.ID); err != nil {
			return 0, fmt.Errorf("failed to delete stale chunks: %w", err)
		}
		return 0, nil
	}

	if s.summarizer != nil {
		s.enrichChunks(ctx, chunks)
	}

	records, err := s.embedChunks(ctx, chunks)
	if err != nil {
		return 0, err
	}

	if err := s.idx.DeleteByDocument(ctx, doc.ID); err != nil {
		return 0, fmt.Errorf("failed to delete stale chunks: %w", err)
	}
	if err := s.idx.Upsert(ctx, records); err != nil {
		return 0, fmt.Errorf("failed to upsert chunks: %w", err)
	}

	return len(records), nil
}

// enrichChunks attaches an LLM-generated summary to each chunk's metadata.
// Summarization is best effort: a failure logs and degrades to the raw chunk
// text, it never fails the document.
func (s *Service) enrichChunks(ctx context.Context, chunks []*Chunk) {
	for _, chunk := range chunks {
		summary, err := s.summarizer.Summarize(ctx, chunk.Text)
		if err != nil {
			s.logger.Warn("chunk summarization failed, indexing raw text",
				"chunkID", chunk.ID,
				"error", err,
			)
			continue
		}
		if summary != "" {
			chunk.Metadata["summary"] = summary
		}
	}
}

// embedChunks embeds the chunk texts in batches and pairs them with their
// chunks as index records. Transient embedding failures are retried with
// bounded backoff; permanent ones fail the document.
func (s *Service) embedChunks(ctx context.Context, chunks []*Chunk) ([]index.Record, error) {
	records := make([]index.Record, 0, len(chunks))

	for begin := 0; begin < len(chunks); begin += s.effectiveBatchSize {
		end := begin + s.effectiveBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[begin:end]

		texts := make([]string, len(batch))
		for i, chunk := range batch {
			texts[i] = chunk.Text
		}

		var vectors [][]float32
		err := llm.Retry(ctx, s.retry, func() error {
			var embedErr error
			vectors, embedErr = s.embedder.BatchEmbed(ctx, texts)
			return embedErr
		})
		if err != nil {
			return nil, fmt.Errorf("failed to embed chunk batch: %w", err)
		}
		if len(vectors) != len(batch) {
			return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(vectors), len(batch))
		}

		for i, chunk := range batch {
			records = append(records, index.Record{
				ChunkID:      chunk.ID,
				DocumentID:   chunk.DocumentID,
				SourceEntity: chunk.SourceEntity,
				Text:         chunk.Text,
				Metadata:     chunk.Metadata,
				Vector:       vectors[i],
			})
		}
	}

	return records, nil
}
