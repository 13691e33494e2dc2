package ingest

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

const (
	// DefaultMaxTokens is the default chunk budget, roughly the 1000
	// characters the corpus was originally tuned for.
	DefaultMaxTokens = 300
	// DefaultOverlapTokens is the default overlap carried between
	// consecutive chunks.
	DefaultOverlapTokens = 50
	// DefaultSentenceSlack is how many tokens a split may back off from the
	// budget to land on a sentence boundary.
	DefaultSentenceSlack = 40

	// tiktoken encoding compatible with the OpenAI embedding models.
	encodingName = "cl100k_base"
)

// ChunkerConfig controls chunk sizing.
type ChunkerConfig struct {
	MaxTokens     int
	OverlapTokens int
	SentenceSlack int
}

// DefaultChunkerConfig returns the default chunk sizing.
func DefaultChunkerConfig() *ChunkerConfig {
	return &ChunkerConfig{
		MaxTokens:     DefaultMaxTokens,
		OverlapTokens: DefaultOverlapTokens,
		SentenceSlack: DefaultSentenceSlack,
	}
}

// Chunker splits documents into overlapping, retrieval-sized chunks. Chunk
// boundaries prefer sentence ends: a split backs off up to SentenceSlack
// tokens to finish a sentence, and falls back to a plain token boundary when
// no sentence end is in reach. Chunk is a pure function over its input.
type Chunker struct {
	encoder *tiktoken.Tiktoken

	maxTokens int
	overlap   int
	slack     int
}

// NewChunker validates the config and builds a Chunker.
func NewChunker(cfg *ChunkerConfig) (*Chunker, error) {
	if cfg == nil {
		cfg = DefaultChunkerConfig()
	}
	if cfg.MaxTokens <= 0 {
		return nil, &ConfigError{Field: "MaxTokens", Reason: "must be positive"}
	}
	if cfg.OverlapTokens < 0 {
		return nil, &ConfigError{Field: "OverlapTokens", Reason: "must not be negative"}
	}
	if cfg.OverlapTokens >= cfg.MaxTokens {
		return nil, &ConfigError{Field: "OverlapTokens", Reason: "must be less than MaxTokens"}
	}
	if cfg.SentenceSlack < 0 {
		return nil, &ConfigError{Field: "SentenceSlack", Reason: "must not be negative"}
	}

	encoder, err := tiktoken.GetEncoding(encodingName)
	if err != nil {
		return nil, fmt.Errorf("failed to get tiktoken encoder: %w", err)
	}

	return &Chunker{
		encoder:   encoder,
		maxTokens: cfg.MaxTokens,
		overlap:   cfg.OverlapTokens,
		slack:     cfg.SentenceSlack,
	}, nil
}

// Chunk splits the document into chunks. Every chunk's Text is the contiguous
// substring Document.Text[StartOffset:EndOffset]; consecutive chunks overlap
// by roughly OverlapTokens so that no context is lost at a boundary.
func (c *Chunker) Chunk(doc *Document) ([]*Chunk, error) {
	if doc == nil {
		return nil, fmt.Errorf("document is nil")
	}
	if doc.Text == "" {
		return nil, nil
	}

	tokens := c.encoder.Encode(doc.Text, nil, nil)
	if len(tokens) == 0 {
		return nil, nil
	}

	// Byte offset of every token boundary: offsets[i] is the offset after
	// the first i tokens. BPE tokens partition the byte sequence, so
	// decoding token by token recovers exact boundaries.
	offsets := make([]int, len(tokens)+1)
	for i, tok := range tokens {
		offsets[i+1] = offsets[i] + len(c.encoder.Decode([]int{tok}))
	}

	boundaries := sentenceBoundaries(doc.Text)

	var chunks []*Chunk
	start := 0
	for start < len(tokens) {
		end := start + c.maxTokens
		if end >= len(tokens) {
			end = len(tokens)
		} else {
			// Back off to the nearest sentence boundary within slack.
			if snapped, ok := snapToBoundary(offsets, boundaries, end, c.slack, start); ok {
				end = snapped
			}
		}

		chunks = append(chunks, c.newChunk(doc, len(chunks), offsets[start], offsets[end], end-start))

		if end == len(tokens) {
			break
		}
		next := end - c.overlap
		if next <= start {
			next = end
		}
		start = next
	}

	return chunks, nil
}

// CountTokens counts tokens the way the chunk budget does.
func (c *Chunker) CountTokens(text string) int {
	return len(c.encoder.Encode(text, nil, nil))
}

func (c *Chunker) newChunk(doc *Document, ordinal, startOff, endOff, tokenCount int) *Chunk {
	metadata := make(map[string]string, len(doc.Metadata)+2)
	for k, v := range doc.Metadata {
		metadata[k] = v
	}
	// Provenance is carried in the metadata copy as well so the index can
	// serve it without a join back to the chunk.
	metadata["document_id"] = doc.ID
	metadata["source_entity"] = doc.SourceEntity

	return &Chunk{
		ID:           ChunkKey(doc.ID, ordinal),
		DocumentID:   doc.ID,
		SourceEntity: doc.SourceEntity,
		Ordinal:      ordinal,
		Text:         doc.Text[startOff:endOff],
		StartOffset:  startOff,
		EndOffset:    endOff,
		TokenCount:   tokenCount,
		Metadata:     metadata,
	}
}

// ChunkKey builds the deterministic chunk identifier
// {document_id}#{ordinal}. Re-chunking a document reproduces the same keys,
// which keeps re-ingestion idempotent.
func ChunkKey(documentID string, ordinal int) string {
	return fmt.Sprintf("%s#%04d", documentID, ordinal)
}

// sentenceBoundaries returns the byte offsets at which a sentence ends:
// after terminal punctuation plus any following whitespace, and after
// newlines.
func sentenceBoundaries(text string) map[int]bool {
	boundaries := make(map[int]bool)
	for i := 0; i < len(text); i++ {
		ch := text[i]
		if ch != '.' && ch != '!' && ch != '?' && ch != '\n' {
			continue
		}
		j := i + 1
		for j < len(text) && (text[j] == ' ' || text[j] == '\t' || text[j] == '\n' || text[j] == '\r') {
			j++
		}
		boundaries[j] = true
		i = j - 1
	}
	boundaries[len(text)] = true
	return boundaries
}

// snapToBoundary looks for the largest token index b in (start, end] whose
// byte offset is a sentence boundary, within slack tokens of end. Returns
// false when no boundary is in reach, in which case the caller splits at the
// plain token boundary.
func snapToBoundary(offsets []int, boundaries map[int]bool, end, slack, start int) (int, bool) {
	low := end - slack
	if low <= start {
		low = start + 1
	}
	for b := end; b >= low; b-- {
		if boundaries[offsets[b]] {
			return b, true
		}
	}
	return 0, false
}
