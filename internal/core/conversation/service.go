package conversation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/AyushPanchal/Medha/internal/core/llm"
	"github.com/AyushPanchal/Medha/internal/core/retrieval"
)

// DefaultMemoryWindow is how many verbatim turns a session keeps before the
// oldest ones are folded into the running summary.
const DefaultMemoryWindow = 10

// TurnResult is what a single conversation turn produces.
type TurnResult struct {
	SessionID         string
	Answer            string
	ReformulatedQuery string
	Context           []retrieval.Result
	Grounded          bool
}

// ChatService is the session API: it creates sessions and drives one graph
// run per turn, with memory updated after the turn completes.
type ChatService struct {
	graph      *Graph
	memory     MemoryStore
	summarizer llm.Summarizer
	window     int
	logger     *slog.Logger

	mu    sync.Mutex
	locks map[string]*sessionLock
}

// sessionLock serializes turns within one session. Entries are refcounted so
// the map does not grow by one mutex per session ever seen.
type sessionLock struct {
	mu   sync.Mutex
	refs int
}

type chatOptions struct {
	summarizer llm.Summarizer
	window     int
	logger     *slog.Logger
}

type ChatOption func(*chatOptions)

// WithChatSummarizer enables summary folding for turns evicted from the
// memory window. Without it, evicted turns are concatenated verbatim.
func WithChatSummarizer(summarizer llm.Summarizer) ChatOption {
	return func(o *chatOptions) {
		o.summarizer = summarizer
	}
}

func WithMemoryWindow(turns int) ChatOption {
	return func(o *chatOptions) {
		if turns > 0 {
			o.window = turns
		}
	}
}

func WithChatLogger(logger *slog.Logger) ChatOption {
	return func(o *chatOptions) {
		o.logger = logger
	}
}

func NewChatService(graph *Graph, memory MemoryStore, opts ...ChatOption) *ChatService {
	o := &chatOptions{
		window: DefaultMemoryWindow,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return &ChatService{
		graph:      graph,
		memory:     memory,
		summarizer: o.summarizer,
		window:     o.window,
		logger:     o.logger,
		locks:      make(map[string]*sessionLock),
	}
}

// StartSession registers a new session and returns its ID.
func (s *ChatService) StartSession(ctx context.Context) (string, error) {
	sessionID := uuid.NewString()
	if err := s.memory.Create(ctx, sessionID); err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	s.logger.Info("session started", "session_id", sessionID)
	return sessionID, nil
}

// SendTurn runs one conversation turn. Turns within a session are serialized:
// a second SendTurn on the same session blocks until the first finishes, so
// memory always reflects completed turns only.
func (s *ChatService) SendTurn(ctx context.Context, sessionID string, text string) (*TurnResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("turn text must not be empty")
	}

	lock := s.acquireLock(sessionID)
	defer s.releaseLock(sessionID, lock)

	snapshot, err := s.memory.History(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load session memory: %w", err)
	}

	state := &State{
		SessionID:     sessionID,
		OriginalQuery: text,
		Memory:        snapshot,
	}
	if err := s.graph.Run(ctx, state); err != nil {
		return nil, fmt.Errorf("run conversation graph: %w", err)
	}

	now := time.Now()
	err = s.memory.Append(ctx, sessionID,
		Turn{Role: RoleUser, Text: text, Timestamp: now},
		Turn{Role: RoleAssistant, Text: state.Answer, Timestamp: now},
	)
	if err != nil {
		return nil, fmt.Errorf("append turns: %w", err)
	}
	s.applyWindow(ctx, sessionID, snapshot.Summary)

	return &TurnResult{
		SessionID:         sessionID,
		Answer:            state.Answer,
		ReformulatedQuery: state.ReformulatedQuery,
		Context:           state.Context,
		Grounded:          state.Grounded,
	}, nil
}

// applyWindow evicts turns beyond the window and folds them into the running
// summary. Folding is best effort: a summarizer failure keeps the evicted
// text verbatim rather than losing it.
func (s *ChatService) applyWindow(ctx context.Context, sessionID string, priorSummary string) {
	evicted, err := s.memory.Trim(ctx, sessionID, s.window)
	if err != nil {
		s.logger.Warn("trimming session memory failed", "session_id", sessionID, "error", err)
		return
	}
	if len(evicted) == 0 {
		return
	}

	sb := &strings.Builder{}
	if priorSummary != "" {
		sb.WriteString(priorSummary)
		sb.WriteString("\n")
	}
	for _, turn := range evicted {
		sb.WriteString(string(turn.Role))
		sb.WriteString(": ")
		sb.WriteString(turn.Text)
		sb.WriteString("\n")
	}
	summary := strings.TrimSpace(sb.String())

	if s.summarizer != nil {
		condensed, err := s.summarizer.Summarize(ctx, summary)
		if err != nil {
			s.logger.Warn("summarizing evicted turns failed, keeping verbatim text",
				"session_id", sessionID,
				"error", err,
			)
		} else if condensed != "" {
			summary = condensed
		}
	}

	if err := s.memory.SetSummary(ctx, sessionID, summary); err != nil {
		s.logger.Warn("updating session summary failed", "session_id", sessionID, "error", err)
	}
}

func (s *ChatService) acquireLock(sessionID string) *sessionLock {
	s.mu.Lock()
	lock, ok := s.locks[sessionID]
	if !ok {
		lock = &sessionLock{}
		s.locks[sessionID] = lock
	}
	lock.refs++
	s.mu.Unlock()

	lock.mu.Lock()
	return lock
}

// releaseLock drops the turn's hold on the session lock and evicts the map
// entry once no other turn is waiting on it.
func (s *ChatService) releaseLock(sessionID string, lock *sessionLock) {
	lock.mu.Unlock()

	s.mu.Lock()
	lock.refs--
	if lock.refs == 0 {
		delete(s.locks, sessionID)
	}
	s.mu.Unlock()
}
