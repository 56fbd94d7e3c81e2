// Package redis provides a Redis-backed history.Store.
//
// Each session is a Redis list of JSON-encoded messages under
// "<prefix>history:<session>". Appends are RPUSH; reads are LRANGE over the
// tail of the list. An optional TTL is refreshed on every append and an
// optional cap trims the oldest entries.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/smallnest/lexgraph/history"
)

// Store implements history.Store using Redis lists
type Store struct {
	client      redis.UniversalClient
	prefix      string
	ttl         time.Duration
	maxMessages int64
}

var _ history.Store = (*Store)(nil)

// Options configuration for Redis connection
type Options struct {
	Addr        string
	Password    string
	DB          int
	Prefix      string        // Key prefix, default "lexgraph:"
	TTL         time.Duration // Expiration refreshed on append, default 0 (no expiration)
	MaxMessages int           // Retained messages per session, default 0 (unbounded)
}

// NewStore creates a new Redis history store
func NewStore(opts Options) *Store {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	return NewStoreWithClient(client, opts)
}

// NewStoreWithClient creates a store on an existing client. Connection
// fields of opts are ignored.
func NewStoreWithClient(client redis.UniversalClient, opts Options) *Store {
	prefix := opts.Prefix
	if prefix == "" {
		prefix = "lexgraph:"
	}
	return &Store{
		client:      client,
		prefix:      prefix,
		ttl:         opts.TTL,
		maxMessages: int64(opts.MaxMessages),
	}
}

func (s *Store) sessionKey(sessionID string) string {
	return fmt.Sprintf("%shistory:%s", s.prefix, sessionID)
}

// Append adds a message to the session list
func (s *Store) Append(ctx context.Context, sessionID string, role history.Role, content string) error {
	if err := history.Validate(sessionID, role); err != nil {
		return err
	}

	data, err := json.Marshal(history.Message{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	key := s.sessionKey(sessionID)
	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, key, data)
	if s.maxMessages > 0 {
		pipe.LTrim(ctx, key, -s.maxMessages, -1)
	}
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to append message to redis: %w", err)
	}
	return nil
}

// Recent returns the last limit messages, oldest first
func (s *Store) Recent(ctx context.Context, sessionID string, limit int) ([]history.Message, error) {
	if sessionID == "" {
		return nil, history.ErrEmptySession
	}
	limit = history.Window(limit)

	raw, err := s.client.LRange(ctx, s.sessionKey(sessionID), int64(-limit), -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read history from redis: %w", err)
	}

	msgs := make([]history.Message, 0, len(raw))
	for _, item := range raw {
		var m history.Message
		if err := json.Unmarshal([]byte(item), &m); err != nil {
			return nil, fmt.Errorf("failed to unmarshal message: %w", err)
		}
		msgs = append(msgs, m)
	}
	return msgs, nil
}

// Close closes the underlying client
func (s *Store) Close() error {
	return s.client.Close()
}
