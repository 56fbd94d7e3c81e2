package llm

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecide(t *testing.T) {
	ctx := context.Background()
	allowed := []string{"search_graph", "search_vector", "answer_final"}

	tests := []struct {
		name    string
		reply   string
		want    string
		wantErr error
	}{
		{name: "exact", reply: `{"choice":"search_graph"}`, want: "search_graph"},
		{name: "case and space", reply: `{"choice":"  Answer_Final "}`, want: "answer_final"},
		{name: "fenced", reply: "```json\n{\"choice\":\"search_vector\"}\n```", want: "search_vector"},
		{name: "not allowed", reply: `{"choice":"search_web"}`, wantErr: ErrInvalidChoice},
		{name: "missing field", reply: `{"route":"search_graph"}`, wantErr: ErrInvalidChoice},
		{name: "not json", reply: `search_graph`, wantErr: ErrInvalidOutput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMockModel().OnStructured("route", tt.reply)
			got, err := Decide(ctx, m, "route", "pick", allowed)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecide_PropagatesModelError(t *testing.T) {
	boom := errors.New("rate limited")
	m := NewMockModel().FailStructured("route", boom)
	_, err := Decide(context.Background(), m, "route", "pick", []string{"a"})
	assert.ErrorIs(t, err, boom)
}

func TestDecide_NoAllowedValues(t *testing.T) {
	_, err := Decide(context.Background(), NewMockModel(), "route", "pick", nil)
	assert.ErrorIs(t, err, ErrInvalidChoice)
}

func TestChoiceSchema(t *testing.T) {
	s := ChoiceSchema("start", []string{"needs_search", "answer_final"})
	assert.Equal(t, "start", s.Name)
	assert.Equal(t, []string{"choice"}, s.Definition.Required)
	assert.Equal(t, []string{"needs_search", "answer_final"}, s.Definition.Properties["choice"].Enum)
}

func TestList(t *testing.T) {
	m := NewMockModel().
		OnStructured("subqueries", `{"subquestions":["a","b","c","d"]}`).
		OnStructured("subqueries", `{"subquestions":[]}`)

	items, err := List(context.Background(), m, "subqueries", "split", "subquestions", 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, items)

	items, err = List(context.Background(), m, "subqueries", "split", "subquestions", 3)
	require.NoError(t, err)
	assert.Empty(t, items)

	calls := m.CallsFor("subqueries")
	require.Len(t, calls, 2)
	assert.Equal(t, "split", calls[0].Prompt)
}

func TestTruncate_KeepsRunesWhole(t *testing.T) {
	assert.Equal(t, "curto", truncate("curto", 10))

	s := "ação judicial"
	for n := 1; n < len(s); n++ {
		got := truncate(s, n)
		assert.True(t, utf8.ValidString(got), "cut at %d: %q", n, got)
		assert.True(t, strings.HasPrefix(s, strings.TrimSuffix(got, "...")))
	}
	assert.Equal(t, "a...", truncate(s, 2))
}

func TestExtractJSON(t *testing.T) {
	obj, err := ExtractJSON([]byte(`Sure! Here it is: {"a": {"b": 1}} Hope this helps.`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":{"b":1}}`, string(obj))

	_, err = ExtractJSON([]byte(`{"a": `))
	assert.ErrorIs(t, err, ErrInvalidOutput)

	_, err = ExtractJSON([]byte(`[1,2]`))
	assert.ErrorIs(t, err, ErrInvalidOutput)
}

func TestMockModel_RepeatsLastReply(t *testing.T) {
	m := NewMockModel().OnGenerate("first").OnGenerate("second")
	ctx := context.Background()

	for _, want := range []string{"first", "second", "second"} {
		got, err := m.Generate(ctx, []Message{User("hi")})
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	assert.Len(t, m.Calls(), 3)
}
