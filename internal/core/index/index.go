// Package index defines the vector index contract shared by the ingestion
// pipeline and the retriever. Two implementations exist: a durable
// Postgres/pgvector store (internal/infra/postgres) and an explicitly
// ephemeral in-memory store (internal/infra/memindex).
package index

import (
	"context"

	"github.com/samber/mo"
)

// Record is one indexed chunk: its vector plus a denormalized metadata copy
// so searches can filter without a join back to the chunk.
type Record struct {
	ChunkID      string
	DocumentID   string
	SourceEntity string
	Text         string
	Metadata     map[string]string
	Vector       []float32
}

// Match is one search hit, scored by cosine similarity in [0, 1].
type Match struct {
	ChunkID      string
	DocumentID   string
	SourceEntity string
	Text         string
	Metadata     map[string]string
	Score        float64
}

// Filter restricts a search before ranking, never after truncation to k.
type Filter struct {
	// SourceEntity limits results to chunks from one source entity
	// (e.g. a single faculty member).
	SourceEntity mo.Option[string]
}

// Store is the vector index. The vector dimension is fixed per instance;
// Upsert rejects any record of a different dimension. Upsert must be safe
// under concurrent calls for disjoint chunk ID sets and must serialize
// writes to the same chunk ID (last writer wins, no partial write).
type Store interface {
	// Upsert inserts or replaces records by chunk ID.
	Upsert(ctx context.Context, records []Record) error

	// Search returns at most k nearest records by cosine similarity,
	// descending, ties broken by ascending chunk ID.
	Search(ctx context.Context, vector []float32, k int, filter Filter) ([]Match, error)

	// Delete removes the given chunk IDs. Unknown IDs are ignored.
	Delete(ctx context.Context, chunkIDs []string) error

	// DeleteByDocument removes every chunk belonging to a document.
	DeleteByDocument(ctx context.Context, documentID string) error

	// Count returns the number of records currently in the index.
	Count(ctx context.Context) (int, error)

	// Dimension returns the fixed vector dimension of this index.
	Dimension() int
}
