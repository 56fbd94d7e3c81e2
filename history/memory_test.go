package history

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_RoundTrip(t *testing.T) {
	store := NewMemoryStore(0)
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, "s1", RoleUser, "What is a tort?"))
	require.NoError(t, store.Append(ctx, "s1", RoleAssistant, "A civil wrong."))

	msgs, err := store.Recent(ctx, "s1", 25)
	require.NoError(t, err)
	require.Len(t, msgs, 2)

	assert.Equal(t, RoleUser, msgs[0].Role)
	assert.Equal(t, "What is a tort?", msgs[0].Content)
	assert.Equal(t, RoleAssistant, msgs[1].Role)
	assert.Equal(t, "A civil wrong.", msgs[1].Content)
	assert.NotEmpty(t, msgs[0].ID)
	assert.NotEqual(t, msgs[0].ID, msgs[1].ID)
	assert.Equal(t, "s1", msgs[1].SessionID)
}

func TestMemoryStore_Window(t *testing.T) {
	store := NewMemoryStore(0)
	ctx := context.Background()

	for i := range 30 {
		require.NoError(t, store.Append(ctx, "s1", RoleUser, fmt.Sprintf("m%d", i)))
	}

	msgs, err := store.Recent(ctx, "s1", 0)
	require.NoError(t, err)
	require.Len(t, msgs, DefaultWindow)
	assert.Equal(t, "m5", msgs[0].Content)
	assert.Equal(t, "m29", msgs[DefaultWindow-1].Content)

	msgs, err = store.Recent(ctx, "s1", 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"m27", "m28", "m29"}, contents(msgs))
}

func TestMemoryStore_Retention(t *testing.T) {
	store := NewMemoryStore(2)
	ctx := context.Background()

	for _, c := range []string{"a", "b", "c"} {
		require.NoError(t, store.Append(ctx, "s1", RoleUser, c))
	}
	msgs, err := store.Recent(ctx, "s1", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c"}, contents(msgs))
}

func TestMemoryStore_SessionsAreIsolated(t *testing.T) {
	store := NewMemoryStore(0)
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, "a", RoleUser, "for a"))
	require.NoError(t, store.Append(ctx, "b", RoleUser, "for b"))

	msgs, err := store.Recent(ctx, "a", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"for a"}, contents(msgs))

	msgs, err = store.Recent(ctx, "unknown", 10)
	require.NoError(t, err)
	assert.Empty(t, msgs)
	assert.Equal(t, 2, store.Sessions())
}

func TestMemoryStore_Validation(t *testing.T) {
	store := NewMemoryStore(0)
	ctx := context.Background()

	assert.ErrorIs(t, store.Append(ctx, "", RoleUser, "x"), ErrEmptySession)
	assert.ErrorIs(t, store.Append(ctx, "s", Role("system"), "x"), ErrInvalidRole)

	_, err := store.Recent(ctx, "", 1)
	assert.ErrorIs(t, err, ErrEmptySession)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	assert.ErrorIs(t, store.Append(cancelled, "s", RoleUser, "x"), context.Canceled)
}

func TestMemoryStore_ConcurrentAppends(t *testing.T) {
	store := NewMemoryStore(0)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = store.Append(ctx, "s", RoleUser, fmt.Sprintf("m%d", i))
		}()
	}
	wg.Wait()

	msgs, err := store.Recent(ctx, "s", 100)
	require.NoError(t, err)
	assert.Len(t, msgs, 50)
}

func TestParseRoleAndTranscript(t *testing.T) {
	r, err := ParseRole("agent")
	require.NoError(t, err)
	assert.Equal(t, RoleAssistant, r)

	r, err = ParseRole("Human")
	require.NoError(t, err)
	assert.Equal(t, RoleUser, r)

	_, err = ParseRole("tool")
	assert.ErrorIs(t, err, ErrInvalidRole)

	out := Transcript([]Message{
		{Role: RoleUser, Content: "Who filed the appeal?"},
		{Role: RoleAssistant, Content: "The defendant."},
	})
	assert.Equal(t, "user: Who filed the appeal?\nassistant: The defendant.", out)
	assert.Empty(t, Transcript(nil))
}

func contents(msgs []Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.Content
	}
	return out
}
