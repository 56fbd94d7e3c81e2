// Package postgres provides a PostgreSQL-backed history.Store on pgx.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/smallnest/lexgraph/history"
)

// DBPool defines the interface for database connection pool
type DBPool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Close()
}

// Store implements history.Store using PostgreSQL
type Store struct {
	pool      DBPool
	tableName string
}

var _ history.Store = (*Store)(nil)

// Options configuration for Postgres connection
type Options struct {
	ConnString string
	TableName  string // Default "chat_messages"
}

// NewStore creates a new Postgres history store
func NewStore(ctx context.Context, opts Options) (*Store, error) {
	pool, err := pgxpool.New(ctx, opts.ConnString)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}
	return NewStoreWithPool(pool, opts.TableName), nil
}

// NewStoreWithPool creates a new Postgres history store with an existing pool
// Useful for testing with mocks
func NewStoreWithPool(pool DBPool, tableName string) *Store {
	if tableName == "" {
		tableName = "chat_messages"
	}
	return &Store{
		pool:      pool,
		tableName: tableName,
	}
}

// InitSchema creates the necessary table if it doesn't exist
func (s *Store) InitSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			seq BIGSERIAL PRIMARY KEY,
			id TEXT NOT NULL UNIQUE,
			session_id TEXT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_%s_session_seq ON %s (session_id, seq);
	`, s.tableName, s.tableName, s.tableName)

	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Close closes the connection pool
func (s *Store) Close() {
	s.pool.Close()
}

// Append inserts a message
func (s *Store) Append(ctx context.Context, sessionID string, role history.Role, content string) error {
	if err := history.Validate(sessionID, role); err != nil {
		return err
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, session_id, role, content, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, s.tableName)

	_, err := s.pool.Exec(ctx, query, uuid.NewString(), sessionID, string(role), content, time.Now().UTC())
	if err != nil {
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
			FROM %s WHERE session_id = $1
			ORDER BY seq DESC LIMIT $2
		) recent ORDER BY seq ASC
	`, s.tableName)

	rows, err := s.pool.Query(ctx, query, sessionID, limit)
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
