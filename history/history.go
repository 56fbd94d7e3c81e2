// Package history stores the per-session chat log the orchestrator reads
// for prompt context and appends to once per question and once per answer.
//
// Sessions are created on first append and are never edited or deleted;
// retention is left to the backing store. Implementations live in this
// package (MemoryStore) and in the redis, postgres and sqlite subpackages.
package history

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// DefaultWindow is the number of recent messages read back for a prompt.
const DefaultWindow = 25

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

var (
	// ErrEmptySession is returned when a session ID is blank.
	ErrEmptySession = errors.New("history: empty session id")

	// ErrInvalidRole is returned for roles other than user and assistant.
	ErrInvalidRole = errors.New("history: invalid role")
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// ParseRole maps stored role strings back to a Role. "agent", "ai" and
// "human" are accepted for logs written by other tools.
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "user", "human":
		return RoleUser, nil
	case "assistant", "agent", "ai":
		return RoleAssistant, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidRole, s)
	}
}

// Message is one entry of a session's chat log.
type Message struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Store is an append-only chat log keyed by session.
type Store interface {
	// Append adds a message to the end of the session's log.
	Append(ctx context.Context, sessionID string, role Role, content string) error

	// Recent returns up to limit most recent messages, oldest first.
	// A limit of zero or less uses DefaultWindow.
	Recent(ctx context.Context, sessionID string, limit int) ([]Message, error)
}

// Validate checks the arguments shared by every Append implementation.
func Validate(sessionID string, role Role) error {
	if strings.TrimSpace(sessionID) == "" {
		return ErrEmptySession
	}
	if !role.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
	return nil
}

// Window normalizes a Recent limit.
func Window(limit int) int {
	if limit <= 0 {
		return DefaultWindow
	}
	return limit
}

// Transcript renders messages as "role: content" lines, oldest first.
func Transcript(msgs []Message) string {
	var sb strings.Builder
	for i, m := range msgs {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(string(m.Role))
		sb.WriteString(": ")
		sb.WriteString(m.Content)
	}
	return sb.String()
}
