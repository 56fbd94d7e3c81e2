package backend

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMalformedQueryError(t *testing.T) {
	cause := errors.New("Invalid input 'X'")
	err := fmt.Errorf("graph search: %w", &MalformedQueryError{
		Query:     "who filed?",
		Statement: "MATCH (",
		Err:       cause,
	})

	assert.ErrorIs(t, err, ErrMalformedQuery)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), `malformed query "MATCH ("`)

	var mqe *MalformedQueryError
	assert.True(t, errors.As(err, &mqe))
	assert.Equal(t, "who filed?", mqe.Query)

	assert.NotErrorIs(t, errors.New("connection refused"), ErrMalformedQuery)
}

func TestRender(t *testing.T) {
	assert.Empty(t, Render(nil))

	out := Render([]Document{
		{Source: SourceGraph, Query: "q1", Content: " rows ", Metadata: map[string]any{"classification": "Coherent Document"}},
		{Source: SourceVector, Query: "q2", Content: "chunk"},
	})
	assert.Equal(t, "[1] (graph) q1\nrows\nEvaluation: Coherent Document\n\n[2] (vector) q2\nchunk", out)
}
