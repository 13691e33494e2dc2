// Package memindex provides an in-memory vector index. It is explicitly
// ephemeral: contents are lost on process exit, which suits tests and
// single-shot local runs. The durable implementation is internal/infra/postgres.
package memindex

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/AyushPanchal/Medha/internal/core/index"
)

// Index is a brute-force cosine similarity store guarded by a single RWMutex,
// so concurrent upserts to the same chunk ID serialize and the last writer
// wins.
type Index struct {
	mu        sync.RWMutex
	records   map[string]index.Record
	dimension int
}

// New creates an empty index with a fixed vector dimension.
func New(dimension int) (*Index, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("index dimension must be positive, got %d", dimension)
	}
	return &Index{
		records:   make(map[string]index.Record),
		dimension: dimension,
	}, nil
}

var _ index.Store = (*Index)(nil)

func (x *Index) Upsert(ctx context.Context, records []index.Record) error {
	for _, record := range records {
		if len(record.Vector) != x.dimension {
			return &index.DimensionMismatchError{Want: x.dimension, Got: len(record.Vector)}
		}
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	for _, record := range records {
		x.records[record.ChunkID] = cloneRecord(record)
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

	entity, filterByEntity := filter.SourceEntity.Get()

	x.mu.RLock()
	matches := make([]index.Match, 0, len(x.records))
	for _, record := range x.records {
		if filterByEntity && record.SourceEntity != entity {
			continue
		}
		matches = append(matches, index.Match{
			ChunkID:      record.ChunkID,
			DocumentID:   record.DocumentID,
			SourceEntity: record.SourceEntity,
			Text:         record.Text,
			Metadata:     cloneMetadata(record.Metadata),
			Score:        cosineSimilarity(vector, record.Vector),
		})
	}
	x.mu.RUnlock()

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].ChunkID < matches[j].ChunkID
	})

	if len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

func (x *Index) Delete(ctx context.Context, chunkIDs []string) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	for _, id := range chunkIDs {
		delete(x.records, id)
	}
	return nil
}

func (x *Index) DeleteByDocument(ctx context.Context, documentID string) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	for id, record := range x.records {
		if record.DocumentID == documentID {
			delete(x.records, id)
		}
	}
	return nil
}

func (x *Index) Count(ctx context.Context) (int, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.records), nil
}

func (x *Index) Dimension() int {
	return x.dimension
}

func cloneRecord(record index.Record) index.Record {
	clone := record
	clone.Vector = append([]float32(nil), record.Vector...)
	clone.Metadata = cloneMetadata(record.Metadata)
	return clone
}

func cloneMetadata(metadata map[string]string) map[string]string {
	if metadata == nil {
		return nil
	}
	clone := make(map[string]string, len(metadata))
	for key, value := range metadata {
		clone[key] = value
	}
	return clone
}

func cosineSimilarity(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
