package redis

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smallnest/lexgraph/history"
)

func TestRedisStore_RoundTrip(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	store := NewStore(Options{Addr: mr.Addr()})
	defer store.Close()
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, "chat-1", history.RoleUser, "Which court heard the case?"))
	require.NoError(t, store.Append(ctx, "chat-1", history.RoleAssistant, "The appellate court."))

	msgs, err := store.Recent(ctx, "chat-1", 25)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, history.RoleUser, msgs[0].Role)
	assert.Equal(t, "Which court heard the case?", msgs[0].Content)
	assert.Equal(t, history.RoleAssistant, msgs[1].Role)
	assert.Equal(t, "chat-1", msgs[1].SessionID)
	assert.NotEmpty(t, msgs[1].ID)

	assert.True(t, mr.Exists("lexgraph:history:chat-1"))
}

func TestRedisStore_WindowAndCap(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	store := NewStore(Options{Addr: mr.Addr(), Prefix: "test:", MaxMessages: 5})
	ctx := context.Background()

	for i := range 8 {
		require.NoError(t, store.Append(ctx, "s", history.RoleUser, fmt.Sprintf("m%d", i)))
	}

	list, err := mr.List("test:history:s")
	require.NoError(t, err)
	assert.Len(t, list, 5)

	msgs, err := store.Recent(ctx, "s", 2)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "m6", msgs[0].Content)
	assert.Equal(t, "m7", msgs[1].Content)
}

func TestRedisStore_TTL(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	store := NewStore(Options{Addr: mr.Addr(), TTL: time.Hour})
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, "s", history.RoleUser, "hello"))
	assert.Equal(t, time.Hour, mr.TTL("lexgraph:history:s"))

	mr.FastForward(2 * time.Hour)
	msgs, err := store.Recent(ctx, "s", 10)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestRedisStore_Validation(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	store := NewStore(Options{Addr: mr.Addr()})
	ctx := context.Background()

	assert.ErrorIs(t, store.Append(ctx, "", history.RoleUser, "x"), history.ErrEmptySession)
	assert.ErrorIs(t, store.Append(ctx, "s", "robot", "x"), history.ErrInvalidRole)
	_, err = store.Recent(ctx, "", 1)
	assert.ErrorIs(t, err, history.ErrEmptySession)
}

func TestRedisStore_Unavailable(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	store := NewStore(Options{Addr: mr.Addr()})
	mr.Close()

	err = store.Append(context.Background(), "s", history.RoleUser, "x")
	assert.Error(t, err)
}

func TestRedisStore_CorruptEntry(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	_, err = mr.Push("lexgraph:history:s", "not json")
	require.NoError(t, err)

	store := NewStore(Options{Addr: mr.Addr()})
	_, err = store.Recent(context.Background(), "s", 10)
	assert.Error(t, err)
}
