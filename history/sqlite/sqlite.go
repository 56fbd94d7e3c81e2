// Package sqlite provides a SQLite-backed history.Store for single-node
// deployments and local development.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/smallnest/lexgraph/history"
)

// Store implements history.Store using SQLite
type Store struct {
	db        *sql.DB
	tableName string
}

var _ history.Store = (*Store)(nil)

// Options configuration for SQLite connection
type Options struct {
	Path      string
	TableName string // Default "chat_messages"
}

// NewStore opens (or creates) the database at opts.Path and initializes the
// schema.
func NewStore(opts Options) (*Store, error) {
	db, err := sql.Open("sqlite3", opts.Path)
	if err != nil {
		return nil, fmt.Errorf("unable to open database: %w", err)
	}
	// Serialize writers; sqlite allows a single writer at a time.
	db.SetMaxOpenConns(1)

	tableName := opts.TableName
	if tableName == "" {
		tableName = "chat_messages"
	}

	store := &Store{
		db:        db,
		tableName: tableName,
	}

	if err := store.InitSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

// InitSchema creates the necessary table if it doesn't exist
func (s *Store) InitSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			session_id TEXT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_%s_session_seq ON %s (session_id, seq);
	`, s.tableName, s.tableName, s.tableName)

	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// Append inserts a message
func (s *Store) Append(ctx context.Context, sessionID string, role history.Role, content string) error {
	if err := history.Validate(sessionID, role); err != nil {
		return err
	}

	query := fmt.Sprintf(`INSERT INTO %s (id, session_id, role, content, created_at) VALUES (?, ?, ?, ?, ?)`, s.tableName)
	if _, err := s.db.ExecContext(ctx, query, uuid.NewString(), sessionID, string(role), content, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to append message: %w", err)
	}
	return nil
}

// Recent returns the last limit messages of a session, oldest first
func (s *Store) Recent(ctx context.Context, sessionID string, limit int) ([]history.Message, error) {
	if sessionID == "" {
		return nil, history.ErrEmptySession
	}
	limit = history.Window(limit)

	query := fmt.Sprintf(`
		SELECT id, session_id, role, content, created_at FROM (
			SELECT seq, id, session_id, role, content, created_at
			FROM %s WHERE session_id = ?
			ORDER BY seq DESC LIMIT ?
		) ORDER BY seq ASC
	`, s.tableName)

	rows, err := s.db.QueryContext(ctx, query, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var msgs []history.Message
	for rows.Next() {
		var (
			m    history.Message
			role string
		)
		if err := rows.Scan(&m.ID, &m.SessionID, &role, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		if m.Role, err = history.ParseRole(role); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating history: %w", err)
	}
	return msgs, nil
}
