// Package postgres implements the durable document store and vector index
// on PostgreSQL with the pgvector extension.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/AyushPanchal/Medha/internal/core/index"
)

// Index implements index.Store on a single denormalized pgvector table.
// Concurrent upserts are serialized per chunk ID by the primary key; the
// ON CONFLICT update makes the last writer win without partial rows.
type Index struct {
	pool      *pgxpool.Pool
	dimension int
}

// NewIndex creates an Index over an existing pool. The dimension is fixed at
// construction and enforced on every write and search.
func NewIndex(pool *pgxpool.Pool, dimension int) (*Index, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("index dimension must be positive, got %d", dimension)
	}
	return &Index{pool: pool, dimension: dimension}, nil
}

var _ index.Store = (*Index)(nil)

// EnsureSchema creates the extension, table and indexes if they are missing.
func (x *Index) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS medha_chunks (
			chunk_id      TEXT PRIMARY KEY,
			document_id   TEXT NOT NULL,
			source_entity TEXT NOT NULL,
			content       TEXT NOT NULL,
			metadata      JSONB NOT NULL DEFAULT '{}',
			embedding     vector(%d) NOT NULL,
			updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, x.dimension),
		`CREATE INDEX IF NOT EXISTS medha_chunks_document_idx ON medha_chunks (document_id)`,
		`CREATE INDEX IF NOT EXISTS medha_chunks_entity_idx ON medha_chunks (source_entity)`,
	}
	for _, stmt := range stmts {
		if _, err := x.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure chunk schema: %w", err)
		}
	}
	return nil
}

func (x *Index) Upsert(ctx context.Context, records []index.Record) error {
	if len(records) == 0 {
		return nil
	}
	for _, record := range records {
		if len(record.Vector) != x.dimension {
			return &index.DimensionMismatchError{Want: x.dimension, Got: len(record.Vector)}
		}
	}

	batch := &pgx.Batch{}
	for _, record := range records {
		metadata, err := json.Marshal(record.Metadata)
		if err != nil {
			return fmt.Errorf("marshal chunk metadata: %w", err)
		}
		batch.Queue(`
			INSERT INTO medha_chunks (chunk_id, document_id, source_entity, content, metadata, embedding, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, now())
			ON CONFLICT (chunk_id) DO UPDATE SET
				document_id   = EXCLUDED.document_id,
				source_entity = EXCLUDED.source_entity,
				content       = EXCLUDED.content,
				metadata      = EXCLUDED.metadata,
				embedding     = EXCLUDED.embedding,
				updated_at    = now()`,
			record.ChunkID,
			record.DocumentID,
			record.SourceEntity,
			record.Text,
			metadata,
			pgvector.NewVector(record.Vector),
		)
	}

	results := x.pool.SendBatch(ctx, batch)
	defer results.Close()
	for range records {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("upsert chunks: %w", err)
		}
	}
	return nil
}

func (x *Index) Search(ctx context.Context, vector []float32, k int, filter index.Filter) ([]index.Match, error) {
	if len(vector) != x.dimension {
		return nil, &index.DimensionMismatchError{Want: x.dimension, Got: len(vector)}
	}
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}

	var entity *string
	if value, ok := filter.SourceEntity.Get(); ok {
		entity = &value
	}

	// <=> is cosine distance; the filter narrows the candidate set before
	// ranking, and chunk_id breaks score ties deterministically.
	rows, err := x.pool.Query(ctx, `
		SELECT chunk_id, document_id, source_entity, content, metadata,
		       1 - (embedding <=> $1) AS score
		FROM medha_chunks
		WHERE $2::text IS NULL OR source_entity = $2
		ORDER BY embedding <=> $1 ASC, chunk_id ASC
		LIMIT $3`,
		pgvector.NewVector(vector), entity, k,
	)
	if err != nil {
		return nil, fmt.Errorf("search chunks: %w", err)
	}
	defer rows.Close()

	matches := make([]index.Match, 0, k)
	for rows.Next() {
		var match index.Match
		var metadata []byte
		if err := rows.Scan(&match.ChunkID, &match.DocumentID, &match.SourceEntity, &match.Text, &metadata, &match.Score); err != nil {
			return nil, fmt.Errorf("scan chunk row: %w", err)
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &match.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshal chunk metadata: %w", err)
			}
		}
		matches = append(matches, match)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chunk rows: %w", err)
	}
	return matches, nil
}

func (x *Index) Delete(ctx context.Context, chunkIDs []string) error {
	if len(chunkIDs) == 0 {
		return nil
	}
	if _, err := x.pool.Exec(ctx, `DELETE FROM medha_chunks WHERE chunk_id = ANY($1)`, chunkIDs); err != nil {
		return fmt.Errorf("delete chunks: %w", err)
	}
	return nil
}

func (x *Index) DeleteByDocument(ctx context.Context, documentID string) error {
	if _, err := x.pool.Exec(ctx, `DELETE FROM medha_chunks WHERE document_id = $1`, documentID); err != nil {
		return fmt.Errorf("delete chunks by document: %w", err)
	}
	return nil
}

func (x *Index) Count(ctx context.Context) (int, error) {
	var count int
	if err := x.pool.QueryRow(ctx, `SELECT count(*) FROM medha_chunks`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count chunks: %w", err)
	}
	return count, nil
}

func (x *Index) Dimension() int {
	return x.dimension
}
