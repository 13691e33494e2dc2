// Package retrieval selects context passages for a query: it embeds the
// query, searches the vector index, and ranks, filters, and deduplicates the
// hits into a context set.
package retrieval

import (
	"fmt"

	"github.com/AyushPanchal/Medha/internal/core/index"
)

// Result is one retrieved passage, ordered descending by score. Results are
// produced per query and never persisted.
type Result struct {
	ChunkID      string
	DocumentID   string
	SourceEntity string
	Text         string
	Score        float64
	Metadata     map[string]string
}

// Params describes one retrieval request.
type Params struct {
	Query string
	K     int
	// Filter restricts the search before ranking (see index.Filter).
	Filter index.Filter
}

// Error reports a retrieval failure. Transient failures (the embedding
// provider was rate limited or timed out) may be retried by the caller;
// permanent ones must not.
type Error struct {
	Transient bool
	Err       error
}

func (e *Error) Error() string {
	if e.Transient {
		return fmt.Sprintf("retrieval failed (transient): %v", e.Err)
	}
	return fmt.Sprintf("retrieval failed: %v", e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
