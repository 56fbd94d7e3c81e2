package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newOpenAIServer(t *testing.T, content string, captured *map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(captured))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 1,
			"model":   "gpt-4o-mini",
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": content},
			}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOpenAI_GenerateStructured(t *testing.T) {
	var body map[string]any
	srv := newOpenAIServer(t, `{"subquestions":["Which court?"]}`, &body)

	model := NewOpenAI(OpenAIConfig{Token: "test-token", BaseURL: srv.URL + "/v1"})
	items, err := List(context.Background(), model, "subqueries", "split it", "subquestions", 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"Which court?"}, items)

	assert.Equal(t, "gpt-4o-mini", body["model"])
	format, ok := body["response_format"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "json_schema", format["type"])
	schema, ok := format["json_schema"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "subqueries", schema["name"])
	assert.Equal(t, true, schema["strict"])
}

func TestOpenAI_Generate(t *testing.T) {
	var body map[string]any
	srv := newOpenAIServer(t, "Insufficient information.", &body)

	model := NewOpenAI(OpenAIConfig{Token: "test-token", BaseURL: srv.URL + "/v1", Model: "gpt-4o"})
	out, err := model.Generate(context.Background(), []Message{System("rules"), User("question")})
	require.NoError(t, err)
	assert.Equal(t, "Insufficient information.", out)

	assert.Equal(t, "gpt-4o", body["model"])
	msgs, ok := body["messages"].([]any)
	require.True(t, ok)
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].(map[string]any)["role"])
	assert.Nil(t, body["response_format"])
}
