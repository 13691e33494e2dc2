package conversation

import (
	"github.com/AyushPanchal/Medha/internal/core/retrieval"
)

// State is the per-turn record that flows through the graph. Each node reads
// the fields written by earlier nodes and writes its own; nothing here
// outlives the turn.
type State struct {
	SessionID string

	// OriginalQuery is the user's text exactly as sent.
	OriginalQuery string

	// ReformulatedQuery is the self-contained form of the query used for
	// retrieval. Equal to OriginalQuery when there is no prior history.
	ReformulatedQuery string

	// Memory is the session snapshot as of the start of the turn.
	Memory MemorySnapshot

	// Context holds the retrieved chunks, empty when retrieval failed or
	// matched nothing.
	Context []retrieval.Result

	// Answer is the generated reply.
	Answer string

	// Grounded is false when the answer was produced without any
	// retrieved context backing it.
	Grounded bool
}
