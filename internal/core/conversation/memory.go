// Package conversation implements the stateful conversation graph: per turn
// it reformulates the query against session memory, retrieves context, and
// generates a grounded answer, then appends the turn to memory.
package conversation

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrSessionNotFound is returned for operations on an unknown session.
var ErrSessionNotFound = errors.New("conversation: session not found")

// Role identifies who spoke a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one utterance in a session.
type Turn struct {
	Role      Role
	Text      string
	Timestamp time.Time
}

// MemorySnapshot is the windowed view of a session's history handed to the
// graph: the last turns verbatim plus a running summary of everything
// evicted from the window.
type MemorySnapshot struct {
	SessionID string
	Turns     []Turn
	Summary   string
}

// Empty reports whether there is no usable history at all.
func (m MemorySnapshot) Empty() bool {
	return len(m.Turns) == 0 && m.Summary == ""
}

// MemoryStore holds per-session turn history. Memory is explicit state: it is
// passed into each turn as a snapshot, never consulted as an ambient global.
type MemoryStore interface {
	// Create registers a new, empty session.
	Create(ctx context.Context, sessionID string) error

	// History returns the session's current snapshot.
	History(ctx context.Context, sessionID string) (MemorySnapshot, error)

	// Append adds turns to the end of the session's history.
	Append(ctx context.Context, sessionID string, turns ...Turn) error

	// Trim evicts the oldest turns so that at most keepTurns remain, and
	// returns the evicted turns in order.
	Trim(ctx context.Context, sessionID string, keepTurns int) ([]Turn, error)

	// SetSummary replaces the session's running summary.
	SetSummary(ctx context.Context, sessionID string, summary string) error
}

type sessionMemory struct {
	turns   []Turn
	summary string
}

// InMemoryStore is the in-process MemoryStore. Sessions live for the process
// lifetime; durability is not a goal for conversation memory.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*sessionMemory
}

// NewInMemoryStore creates an empty store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{sessions: make(map[string]*sessionMemory)}
}

var _ MemoryStore = (*InMemoryStore)(nil)

func (s *InMemoryStore) Create(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sessionID]; !ok {
		s.sessions[sessionID] = &sessionMemory{}
	}
	return nil
}

func (s *InMemoryStore) History(ctx context.Context, sessionID string) (MemorySnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return MemorySnapshot{}, ErrSessionNotFound
	}
	turns := make([]Turn, len(session.turns))
	copy(turns, session.turns)
	return MemorySnapshot{
		SessionID: sessionID,
		Turns:     turns,
		Summary:   session.summary,
	}, nil
}

func (s *InMemoryStore) Append(ctx context.Context, sessionID string, turns ...Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return ErrSessionNotFound
	}
	session.turns = append(session.turns, turns...)
	return nil
}

func (s *InMemoryStore) Trim(ctx context.Context, sessionID string, keepTurns int) ([]Turn, error) {
	if keepTurns < 0 {
		keepTurns = 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	if len(session.turns) <= keepTurns {
		return nil, nil
	}
	cut := len(session.turns) - keepTurns
	evicted := make([]Turn, cut)
	copy(evicted, session.turns[:cut])
	session.turns = append([]Turn(nil), session.turns[cut:]...)
	return evicted, nil
}

func (s *InMemoryStore) SetSummary(ctx context.Context, sessionID string, summary string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return ErrSessionNotFound
	}
	session.summary = summary
	return nil
}
