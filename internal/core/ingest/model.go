// Package ingest turns normalized documents into indexed, embedded chunks.
// It owns the document model, the chunker, and the ingestion pipeline that
// orchestrates Document Store -> Chunker -> Embedder -> Vector Index.
package ingest

import (
	"context"
	"time"
)

// Document is one normalized source document. Documents are immutable once
// stored; re-ingesting the same ID supersedes the prior revision instead of
// mutating it.
type Document struct {
	ID           string
	SourceEntity string
	Text         string
	Metadata     map[string]string
}

// Chunk is a bounded span of a document's text, the unit of embedding and
// retrieval. Text is always the contiguous substring
// Document.Text[StartOffset:EndOffset].
type Chunk struct {
	ID           string
	DocumentID   string
	SourceEntity string
	Ordinal      int
	Text         string
	StartOffset  int
	EndOffset    int
	TokenCount   int
	Metadata     map[string]string
}

// DocumentStore persists documents and their metadata.
type DocumentStore interface {
	// Put stores a new revision of the document. Prior revisions are kept
	// but superseded.
	Put(ctx context.Context, doc *Document) error

	// Get returns the latest revision of a document.
	Get(ctx context.Context, id string) (*Document, error)

	// List returns the latest revision of every stored document.
	List(ctx context.Context) ([]*Document, error)
}

// DocumentError records why one document failed to ingest.
type DocumentError struct {
	DocumentID string
	Err        error
}

// Report summarizes one ingestion run. Per-document failures are recorded
// here and never abort the run as a whole.
type Report struct {
	DocumentsProcessed int
	ChunksIndexed      int
	Errors             []DocumentError
	Duration           time.Duration
}
