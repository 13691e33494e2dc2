package conversation

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AyushPanchal/Medha/internal/core/index"
	"github.com/AyushPanchal/Medha/internal/core/llm"
	"github.com/AyushPanchal/Medha/internal/core/retrieval"
	"github.com/AyushPanchal/Medha/internal/infra/memindex"
)

// scriptedGenerator answers reformulation and generation calls separately,
// keyed on the system prompt, and records every call.
type scriptedGenerator struct {
	mu               sync.Mutex
	reformulateCalls []string
	generateCalls    []string
	reformulateWith  string
	answerWith       string
	err              error
	delay            time.Duration
}

func (g *scriptedGenerator) GenerateCompletion(ctx context.Context, req llm.CompletionRequest) (llm.CompletionResponse, error) {
	if g.delay > 0 {
		time.Sleep(g.delay)
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.err != nil {
		return llm.CompletionResponse{}, g.err
	}

	if req.System == reformulateSystemPrompt {
		g.reformulateCalls = append(g.reformulateCalls, req.Prompt)
		out := g.reformulateWith
		if out == "" {
			out = "reformulated question"
		}
		return llm.CompletionResponse{Content: out}, nil
	}

	g.generateCalls = append(g.generateCalls, req.Prompt)
	out := g.answerWith
	if out == "" {
		out = "an answer"
	}
	return llm.CompletionResponse{Content: out}, nil
}

type scriptedEmbedder struct{}

func (scriptedEmbedder) BatchEmbed(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vectors[i] = []float32{1, 0, 0}
	}
	return vectors, nil
}

func (scriptedEmbedder) Dimension() int    { return 3 }
func (scriptedEmbedder) ModelName() string { return "scripted" }
func (scriptedEmbedder) MaxBatchSize() int { return 100 }

type scriptedIndex struct {
	matches []index.Match
	err     error
}

func (s *scriptedIndex) Upsert(ctx context.Context, records []index.Record) error { return nil }

func (s *scriptedIndex) Search(ctx context.Context, vector []float32, k int, filter index.Filter) ([]index.Match, error) {
	if s.err != nil {
		return nil, s.err
	}
	if len(s.matches) > k {
		return s.matches[:k], nil
	}
	return s.matches, nil
}

func (s *scriptedIndex) Delete(ctx context.Context, chunkIDs []string) error { return nil }

func (s *scriptedIndex) DeleteByDocument(ctx context.Context, documentID string) error { return nil }

func (s *scriptedIndex) Count(ctx context.Context) (int, error) { return len(s.matches), nil }

func (s *scriptedIndex) Dimension() int { return 3 }

type fixedSummarizer struct {
	summary string
	calls   int
}

func (s *fixedSummarizer) Summarize(ctx context.Context, text string) (string, error) {
	s.calls++
	return s.summary, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestChat(t *testing.T, generator *scriptedGenerator, idx *scriptedIndex, opts ...ChatOption) *ChatService {
	t.Helper()
	logger := discardLogger()
	retriever := retrieval.NewService(idx, scriptedEmbedder{}, retrieval.WithLogger(logger))

	graph := NewGraph([]Node{
		NewReformulateNode(generator, logger),
		NewRetrieveNode(retriever, 3, index.Filter{}, logger),
		NewGenerateNode(generator, logger),
	}, WithGraphLogger(logger))

	opts = append([]ChatOption{WithChatLogger(logger)}, opts...)
	return NewChatService(graph, NewInMemoryStore(), opts...)
}

func contextMatches() []index.Match {
	return []index.Match{
		{ChunkID: "smith#0000", DocumentID: "smith", SourceEntity: "dr-smith",
			Text: "Dr. Smith teaches machine learning and advises the AI lab.", Score: 0.92},
	}
}

func TestSendTurnRejectsEmptyText(t *testing.T) {
	chat := newTestChat(t, &scriptedGenerator{}, &scriptedIndex{})

	sessionID, err := chat.StartSession(context.Background())
	require.NoError(t, err)

	_, err = chat.SendTurn(context.Background(), sessionID, "   ")
	require.Error(t, err)
}

func TestSendTurnUnknownSession(t *testing.T) {
	chat := newTestChat(t, &scriptedGenerator{}, &scriptedIndex{})

	_, err := chat.SendTurn(context.Background(), "no-such-session", "hello")
	require.ErrorIs(t, err, ErrSessionNotFound)
}

func TestFirstTurnSkipsReformulation(t *testing.T) {
	generator := &scriptedGenerator{answerWith: "Dr. Smith teaches ML."}
	chat := newTestChat(t, generator, &scriptedIndex{matches: contextMatches()})

	sessionID, err := chat.StartSession(context.Background())
	require.NoError(t, err)

	result, err := chat.SendTurn(context.Background(), sessionID, "Who teaches machine learning?")
	require.NoError(t, err)

	assert.Empty(t, generator.reformulateCalls, "no history means no reformulation call")
	assert.Equal(t, "Who teaches machine learning?", result.ReformulatedQuery)
	assert.Equal(t, "Dr. Smith teaches ML.", result.Answer)
	assert.True(t, result.Grounded)
	require.Len(t, result.Context, 1)
}

func TestFollowUpIsReformulated(t *testing.T) {
	generator := &scriptedGenerator{
		reformulateWith: "What does Dr. Smith research?",
		answerWith:      "Dr. Smith researches machine learning.",
	}
	chat := newTestChat(t, generator, &scriptedIndex{matches: contextMatches()})

	sessionID, err := chat.StartSession(context.Background())
	require.NoError(t, err)

	_, err = chat.SendTurn(context.Background(), sessionID, "Who teaches machine learning?")
	require.NoError(t, err)

	result, err := chat.SendTurn(context.Background(), sessionID, "What does he research?")
	require.NoError(t, err)

	require.Len(t, generator.reformulateCalls, 1)
	assert.Contains(t, generator.reformulateCalls[0], "What does he research?")
	assert.Contains(t, generator.reformulateCalls[0], "Who teaches machine learning?",
		"history must be part of the reformulation prompt")
	assert.Equal(t, "What does Dr. Smith research?", result.ReformulatedQuery)
}

func TestRetrievalFailureDegradesToUngroundedAnswer(t *testing.T) {
	generator := &scriptedGenerator{answerWith: "I don't have that information."}
	idx := &scriptedIndex{err: fmt.Errorf("index unavailable")}
	chat := newTestChat(t, generator, idx)

	sessionID, err := chat.StartSession(context.Background())
	require.NoError(t, err)

	result, err := chat.SendTurn(context.Background(), sessionID, "Who teaches networks?")
	require.NoError(t, err, "a retrieval failure must not fail the turn")

	assert.False(t, result.Grounded)
	assert.Empty(t, result.Context)
	assert.NotEmpty(t, result.Answer)
}

func TestGenerationFailureFailsTurnButKeepsSession(t *testing.T) {
	generator := &scriptedGenerator{err: &llm.GenerationError{Err: fmt.Errorf("model down")}}
	chat := newTestChat(t, generator, &scriptedIndex{matches: contextMatches()})

	sessionID, err := chat.StartSession(context.Background())
	require.NoError(t, err)

	_, err = chat.SendTurn(context.Background(), sessionID, "Who teaches AI?")
	require.Error(t, err)

	// The failed turn leaves no partial memory; a later turn starts clean.
	generator.mu.Lock()
	generator.err = nil
	generator.mu.Unlock()

	result, err := chat.SendTurn(context.Background(), sessionID, "Who teaches AI?")
	require.NoError(t, err)
	assert.Empty(t, generator.reformulateCalls,
		"the failed turn must not have been recorded as history")
	assert.NotEmpty(t, result.Answer)
}

func TestAnswersStripReasoningBlocks(t *testing.T) {
	generator := &scriptedGenerator{answerWith: "<think>chain of thought</think>The lab is in block A."}
	chat := newTestChat(t, generator, &scriptedIndex{matches: contextMatches()})

	sessionID, err := chat.StartSession(context.Background())
	require.NoError(t, err)

	result, err := chat.SendTurn(context.Background(), sessionID, "Where is the AI lab?")
	require.NoError(t, err)
	assert.Equal(t, "The lab is in block A.", result.Answer)
}

func TestMemoryWindowFoldsEvictedTurnsIntoSummary(t *testing.T) {
	generator := &scriptedGenerator{answerWith: "answer"}
	summarizer := &fixedSummarizer{summary: "they discussed the faculty"}
	chat := newTestChat(t, generator, &scriptedIndex{matches: contextMatches()},
		WithMemoryWindow(2),
		WithChatSummarizer(summarizer),
	)

	sessionID, err := chat.StartSession(context.Background())
	require.NoError(t, err)

	_, err = chat.SendTurn(context.Background(), sessionID, "first question")
	require.NoError(t, err)
	_, err = chat.SendTurn(context.Background(), sessionID, "second question")
	require.NoError(t, err)

	snapshot, err := chat.memory.History(context.Background(), sessionID)
	require.NoError(t, err)

	require.Len(t, snapshot.Turns, 2, "only the window survives verbatim")
	assert.Equal(t, "second question", snapshot.Turns[0].Text)
	assert.Equal(t, "they discussed the faculty", snapshot.Summary)
	assert.Greater(t, summarizer.calls, 0)
}

func TestConcurrentTurnsOnOneSessionSerialize(t *testing.T) {
	generator := &scriptedGenerator{answerWith: "answer", delay: 10 * time.Millisecond}
	chat := newTestChat(t, generator, &scriptedIndex{matches: contextMatches()})

	sessionID, err := chat.StartSession(context.Background())
	require.NoError(t, err)

	const turns = 4
	var wg sync.WaitGroup
	wg.Add(turns)
	for i := 0; i < turns; i++ {
		go func(i int) {
			defer wg.Done()
			_, err := chat.SendTurn(context.Background(), sessionID, fmt.Sprintf("question %d", i))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	snapshot, err := chat.memory.History(context.Background(), sessionID)
	require.NoError(t, err)

	// Every turn appended exactly a user/assistant pair, so interleaving
	// would show up as a broken alternation.
	require.Len(t, snapshot.Turns, turns*2)
	for i, turn := range snapshot.Turns {
		if i%2 == 0 {
			assert.Equal(t, RoleUser, turn.Role, "turn %d", i)
			assert.True(t, strings.HasPrefix(turn.Text, "question "))
		} else {
			assert.Equal(t, RoleAssistant, turn.Role, "turn %d", i)
		}
	}
}

func TestSessionLocksEvictedWhenIdle(t *testing.T) {
	generator := &scriptedGenerator{answerWith: "answer", delay: 5 * time.Millisecond}
	chat := newTestChat(t, generator, &scriptedIndex{matches: contextMatches()})

	sessionID, err := chat.StartSession(context.Background())
	require.NoError(t, err)

	const turns = 4
	var wg sync.WaitGroup
	wg.Add(turns)
	for i := 0; i < turns; i++ {
		go func(i int) {
			defer wg.Done()
			_, err := chat.SendTurn(context.Background(), sessionID, fmt.Sprintf("question %d", i))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	// A failed turn on an unknown session must not leave an entry either.
	_, err = chat.SendTurn(context.Background(), "no-such-session", "hello")
	require.Error(t, err)

	chat.mu.Lock()
	defer chat.mu.Unlock()
	assert.Empty(t, chat.locks, "idle sessions must not retain lock entries")
}

func TestFollowUpFlowEndToEnd(t *testing.T) {
	idx, err := memindex.New(3)
	require.NoError(t, err)
	require.NoError(t, idx.Upsert(context.Background(), []index.Record{{
		ChunkID:      "d1#0000",
		DocumentID:   "d1",
		SourceEntity: "Dr. Smith",
		Text:         "Dr. Smith works on distributed systems.",
		Vector:       []float32{1, 0, 0},
	}}))

	generator := &scriptedGenerator{
		reformulateWith: "What area does Dr. Smith work in?",
		answerWith:      "Dr. Smith works on distributed systems.",
	}
	logger := discardLogger()
	retriever := retrieval.NewService(idx, scriptedEmbedder{}, retrieval.WithLogger(logger))
	graph := NewGraph([]Node{
		NewReformulateNode(generator, logger),
		NewRetrieveNode(retriever, 5, index.Filter{}, logger),
		NewGenerateNode(generator, logger),
	}, WithGraphLogger(logger))
	chat := NewChatService(graph, NewInMemoryStore(), WithChatLogger(logger))

	sessionID, err := chat.StartSession(context.Background())
	require.NoError(t, err)
	require.NoError(t, chat.memory.Append(context.Background(), sessionID,
		Turn{Role: RoleUser, Text: "Who is Dr. Smith?", Timestamp: time.Now()},
		Turn{Role: RoleAssistant, Text: "Dr. Smith is a faculty member.", Timestamp: time.Now()},
	))

	result, err := chat.SendTurn(context.Background(), sessionID, "What area does he work in?")
	require.NoError(t, err)

	assert.Equal(t, "What area does Dr. Smith work in?", result.ReformulatedQuery,
		"the pronoun must be resolved against memory")
	require.Len(t, result.Context, 1)
	assert.Equal(t, "d1#0000", result.Context[0].ChunkID)
	assert.Greater(t, result.Context[0].Score, 0.9)
	assert.True(t, result.Grounded)
	assert.Contains(t, result.Answer, "distributed systems")
}

func TestSessionsAreIsolated(t *testing.T) {
	generator := &scriptedGenerator{answerWith: "answer"}
	chat := newTestChat(t, generator, &scriptedIndex{matches: contextMatches()})

	first, err := chat.StartSession(context.Background())
	require.NoError(t, err)
	second, err := chat.StartSession(context.Background())
	require.NoError(t, err)
	require.NotEqual(t, first, second)

	_, err = chat.SendTurn(context.Background(), first, "hello from the first session")
	require.NoError(t, err)

	snapshot, err := chat.memory.History(context.Background(), second)
	require.NoError(t, err)
	assert.True(t, snapshot.Empty(), "the second session must not see the first session's turns")
}
