package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smallnest/lexgraph/history"
)

func TestPostgresStore_InitSchema(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewStoreWithPool(mock, "")

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS chat_messages")).
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))

	assert.NoError(t, store.InitSchema(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Append(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewStoreWithPool(mock, "messages")

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO messages")).
		WithArgs(pgxmock.AnyArg(), "chat-1", "user", "Who filed the appeal?", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err = store.Append(context.Background(), "chat-1", history.RoleUser, "Who filed the appeal?")
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_AppendFailure(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewStoreWithPool(mock, "messages")

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO messages")).
		WillReturnError(errors.New("connection reset"))

	err = store.Append(context.Background(), "chat-1", history.RoleAssistant, "answer")
	assert.ErrorContains(t, err, "connection reset")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_AppendValidation(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewStoreWithPool(mock, "messages")
	assert.ErrorIs(t, store.Append(context.Background(), "", history.RoleUser, "x"), history.ErrEmptySession)
	assert.ErrorIs(t, store.Append(context.Background(), "s", "judge", "x"), history.ErrInvalidRole)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Recent(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewStoreWithPool(mock, "messages")
	now := time.Now().UTC()

	rows := pgxmock.NewRows([]string{"id", "session_id", "role", "content", "created_at"}).
		AddRow("m1", "chat-1", "user", "Who filed the appeal?", now).
		AddRow("m2", "chat-1", "agent", "The defendant.", now.Add(time.Second))

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, session_id, role, content, created_at FROM (")).
		WithArgs("chat-1", 25).
		WillReturnRows(rows)

	msgs, err := store.Recent(context.Background(), "chat-1", 0)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, history.RoleUser, msgs[0].Role)
	assert.Equal(t, "Who filed the appeal?", msgs[0].Content)
	assert.Equal(t, history.RoleAssistant, msgs[1].Role)
	assert.Equal(t, "m2", msgs[1].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_RecentUnknownRole(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewStoreWithPool(mock, "messages")

	rows := pgxmock.NewRows([]string{"id", "session_id", "role", "content", "created_at"}).
		AddRow("m1", "chat-1", "system", "x", time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM messages WHERE session_id = $1")).
		WithArgs("chat-1", 5).
		WillReturnRows(rows)

	_, err = store.Recent(context.Background(), "chat-1", 5)
	assert.ErrorIs(t, err, history.ErrInvalidRole)
}
