package conversation

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/AyushPanchal/Medha/internal/core/index"
	"github.com/AyushPanchal/Medha/internal/core/llm"
	"github.com/AyushPanchal/Medha/internal/core/retrieval"
)

const (
	reformulateTemperature = 0.0
	reformulateMaxTokens   = 256
	answerTemperature      = 0.3
	answerMaxTokens        = 1024
)

// ReformulateNode rewrites the user's query into a self-contained form using
// session memory. With no history there is nothing to resolve, so the node
// passes the query through without calling the model.
type ReformulateNode struct {
	generator llm.Generator
	logger    *slog.Logger
}

func NewReformulateNode(generator llm.Generator, logger *slog.Logger) *ReformulateNode {
	return &ReformulateNode{
		generator: generator,
		logger:    logger,
	}
}

var _ Node = (*ReformulateNode)(nil)

func (n *ReformulateNode) Name() string { return "reformulate" }

func (n *ReformulateNode) Run(ctx context.Context, state *State) error {
	if state.Memory.Empty() {
		state.ReformulatedQuery = state.OriginalQuery
		return nil
	}

	resp, err := n.generator.GenerateCompletion(ctx, llm.CompletionRequest{
		System:      reformulateSystemPrompt,
		Prompt:      buildReformulatePrompt(state.Memory, state.OriginalQuery),
		Temperature: reformulateTemperature,
		MaxTokens:   reformulateMaxTokens,
	})
	if err != nil {
		// Retrieval with the raw query is better than failing the turn.
		n.logger.Warn("query reformulation failed, using original query",
			"session_id", state.SessionID,
			"error", err,
		)
		state.ReformulatedQuery = state.OriginalQuery
		return nil
	}

	reformulated := StripReasoning(resp.Content)
	if reformulated == "" {
		reformulated = state.OriginalQuery
	}
	state.ReformulatedQuery = reformulated
	return nil
}

// RetrieveNode fetches context for the reformulated query. A retrieval
// failure degrades the turn to an ungrounded answer instead of aborting it.
type RetrieveNode struct {
	retriever *retrieval.Service
	k         int
	filter    index.Filter
	logger    *slog.Logger
}

func NewRetrieveNode(retriever *retrieval.Service, k int, filter index.Filter, logger *slog.Logger) *RetrieveNode {
	if k <= 0 {
		k = retrieval.DefaultK
	}
	return &RetrieveNode{
		retriever: retriever,
		k:         k,
		filter:    filter,
		logger:    logger,
	}
}

var _ Node = (*RetrieveNode)(nil)

func (n *RetrieveNode) Name() string { return "retrieve" }

func (n *RetrieveNode) Run(ctx context.Context, state *State) error {
	results, err := n.retriever.Retrieve(ctx, retrieval.Params{
		Query:  state.ReformulatedQuery,
		K:      n.k,
		Filter: n.filter,
	})
	if err != nil {
		n.logger.Warn("retrieval failed, answering without context",
			"session_id", state.SessionID,
			"error", err,
		)
		state.Context = nil
		return nil
	}
	state.Context = results
	return nil
}

// GenerateNode produces the answer from the context, history and query, and
// marks the answer as ungrounded when no context backed it.
type GenerateNode struct {
	generator llm.Generator
	logger    *slog.Logger
}

func NewGenerateNode(generator llm.Generator, logger *slog.Logger) *GenerateNode {
	return &GenerateNode{
		generator: generator,
		logger:    logger,
	}
}

var _ Node = (*GenerateNode)(nil)

func (n *GenerateNode) Name() string { return "generate" }

func (n *GenerateNode) Run(ctx context.Context, state *State) error {
	resp, err := n.generator.GenerateCompletion(ctx, llm.CompletionRequest{
		System:      systemPrompt,
		Prompt:      buildAnswerPrompt(state.ReformulatedQuery, state.Context, state.Memory),
		Temperature: answerTemperature,
		MaxTokens:   answerMaxTokens,
	})
	if err != nil {
		return fmt.Errorf("generate answer: %w", err)
	}

	state.Answer = StripReasoning(resp.Content)
	state.Grounded = len(state.Context) > 0
	if !state.Grounded {
		n.logger.Info("answer generated without retrieved context",
			"session_id", state.SessionID,
		)
	}
	return nil
}
