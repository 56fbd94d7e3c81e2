package history

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps chat logs in process memory.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string][]Message
	// maxPerSession trims the oldest messages when positive.
	maxPerSession int
	now           func() time.Time
}

// NewMemoryStore creates an in-memory store. When maxPerSession is positive
// only that many most recent messages are retained per session.
func NewMemoryStore(maxPerSession int) *MemoryStore {
	return &MemoryStore{
		sessions:      make(map[string][]Message),
		maxPerSession: maxPerSession,
		now:           time.Now,
	}
}

// Append adds a message to the session.
func (s *MemoryStore) Append(ctx context.Context, sessionID string, role Role, content string) error {
	if err := Validate(sessionID, role); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := Message{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		CreatedAt: s.now(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	msgs := append(s.sessions[sessionID], msg)
	if s.maxPerSession > 0 && len(msgs) > s.maxPerSession {
		msgs = append([]Message(nil), msgs[len(msgs)-s.maxPerSession:]...)
	}
	s.sessions[sessionID] = msgs
	return nil
}

// Recent returns the last limit messages of the session, oldest first.
func (s *MemoryStore) Recent(ctx context.Context, sessionID string, limit int) ([]Message, error) {
	if sessionID == "" {
		return nil, ErrEmptySession
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	limit = Window(limit)

	s.mu.RLock()
	defer s.mu.RUnlock()

	msgs := s.sessions[sessionID]
	if len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return append([]Message(nil), msgs...), nil
}

// Sessions returns the number of sessions with at least one message.
func (s *MemoryStore) Sessions() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
