package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/AyushPanchal/Medha/internal/core/ingest"
)

// ErrDocumentNotFound is returned by Get for unknown document IDs.
var ErrDocumentNotFound = errors.New("postgres: document not found")

// DocumentStore keeps every revision of each document; reads always see the
// highest revision. Ingestion uses Put to supersede a document atomically.
type DocumentStore struct {
	pool *pgxpool.Pool
}

// NewDocumentStore creates a DocumentStore over an existing pool.
func NewDocumentStore(pool *pgxpool.Pool) *DocumentStore {
	return &DocumentStore{pool: pool}
}

var _ ingest.DocumentStore = (*DocumentStore)(nil)

// EnsureSchema creates the documents table if it is missing.
func (s *DocumentStore) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS medha_documents (
			document_id   TEXT NOT NULL,
			revision      BIGINT NOT NULL,
			source_entity TEXT NOT NULL,
			content       TEXT NOT NULL,
			metadata      JSONB NOT NULL DEFAULT '{}',
			created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (document_id, revision)
		)`)
	if err != nil {
		return fmt.Errorf("ensure document schema: %w", err)
	}
	return nil
}

func (s *DocumentStore) Put(ctx context.Context, doc *ingest.Document) error {
	metadata, err := json.Marshal(doc.Metadata)
	if err != nil {
		return fmt.Errorf("marshal document metadata: %w", err)
	}

	// The revision subquery and insert run in one statement, so concurrent
	// puts of the same document cannot allocate the same revision twice
	// without one of them failing on the primary key and retrying upstream.
	_, err = s.pool.Exec(ctx, `
		INSERT INTO medha_documents (document_id, revision, source_entity, content, metadata)
		SELECT $1, COALESCE(MAX(revision), 0) + 1, $2, $3, $4
		FROM medha_documents WHERE document_id = $1`,
		doc.ID, doc.SourceEntity, doc.Text, metadata,
	)
	if err != nil {
		return fmt.Errorf("store document %s: %w", doc.ID, err)
	}
	return nil
}

func (s *DocumentStore) Get(ctx context.Context, id string) (*ingest.Document, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT document_id, source_entity, content, metadata
		FROM medha_documents
		WHERE document_id = $1
		ORDER BY revision DESC
		LIMIT 1`, id)

	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrDocumentNotFound, id)
		}
		return nil, fmt.Errorf("get document %s: %w", id, err)
	}
	return doc, nil
}

func (s *DocumentStore) List(ctx context.Context) ([]*ingest.Document, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT DISTINCT ON (document_id) document_id, source_entity, content, metadata
		FROM medha_documents
		ORDER BY document_id, revision DESC`)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var docs []*ingest.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document row: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate document rows: %w", err)
	}
	return docs, nil
}

func scanDocument(row pgx.Row) (*ingest.Document, error) {
	var doc ingest.Document
	var metadata []byte
	if err := row.Scan(&doc.ID, &doc.SourceEntity, &doc.Text, &metadata); err != nil {
		return nil, err
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &doc.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal document metadata: %w", err)
		}
	}
	return &doc, nil
}
