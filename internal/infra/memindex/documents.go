package memindex

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/AyushPanchal/Medha/internal/core/ingest"
)

// ErrDocumentNotFound is returned by Get for unknown document IDs.
var ErrDocumentNotFound = errors.New("memindex: document not found")

// DocumentStore is the in-memory counterpart of the Postgres document store,
// holding only the latest revision of each document.
type DocumentStore struct {
	mu   sync.RWMutex
	docs map[string]*ingest.Document
}

// NewDocumentStore creates an empty store.
func NewDocumentStore() *DocumentStore {
	return &DocumentStore{docs: make(map[string]*ingest.Document)}
}

var _ ingest.DocumentStore = (*DocumentStore)(nil)

func (s *DocumentStore) Put(ctx context.Context, doc *ingest.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *doc
	if doc.Metadata != nil {
		clone.Metadata = make(map[string]string, len(doc.Metadata))
		for key, value := range doc.Metadata {
			clone.Metadata[key] = value
		}
	}
	s.docs[doc.ID] = &clone
	return nil
}

func (s *DocumentStore) Get(ctx context.Context, id string) (*ingest.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDocumentNotFound, id)
	}
	clone := *doc
	return &clone, nil
}

func (s *DocumentStore) List(ctx context.Context) ([]*ingest.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	docs := make([]*ingest.Document, 0, len(s.docs))
	for _, doc := range s.docs {
		clone := *doc
		docs = append(docs, &clone)
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	return docs, nil
}
