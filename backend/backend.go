// Package backend defines the evidence document and the two knowledge
// backend contracts the orchestrator consumes: a graph query backend that
// answers natural-language questions through generated graph queries, and a
// similarity search backend over embeddings.
//
// Backend handles are long-lived: construct them once at process start and
// share them across invocations.
package backend

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Source identifies which backend produced a document.
type Source string

const (
	SourceGraph  Source = "graph"
	SourceVector Source = "vector"
)

// ErrMalformedQuery marks a generated backend query that failed syntax or
// validation checks. It is the only backend failure the orchestrator
// recovers from.
var ErrMalformedQuery = errors.New("malformed query")

// MalformedQueryError carries the question and the generated statement that
// failed.
type MalformedQueryError struct {
	Query     string
	Statement string
	Err       error
}

func (e *MalformedQueryError) Error() string {
	var sb strings.Builder
	sb.WriteString(ErrMalformedQuery.Error())
	if e.Statement != "" {
		fmt.Fprintf(&sb, " %q", e.Statement)
	}
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	return sb.String()
}

// Is reports whether target is ErrMalformedQuery.
func (e *MalformedQueryError) Is(target error) bool {
	return target == ErrMalformedQuery
}

func (e *MalformedQueryError) Unwrap() error {
	return e.Err
}

// Document is one piece of retrieved evidence.
type Document struct {
	ID       string         `json:"id"`
	Source   Source         `json:"source"`
	Query    string         `json:"query"`
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata,omitempty"`
	Score    float64        `json:"score,omitempty"`
}

// GraphBackend answers a natural-language query against the legal
// knowledge graph.
type GraphBackend interface {
	// Schema describes node labels, relationship types and properties for
	// prompt construction.
	Schema(ctx context.Context) (string, error)

	// Query translates question into a graph query using schema and the
	// chat history transcript, executes it and returns the result. Generated
	// queries that fail validation or parsing return an error matching
	// ErrMalformedQuery.
	Query(ctx context.Context, question, schema, history string) (Document, error)
}

// SimilarityBackend returns documents ranked by embedding similarity.
type SimilarityBackend interface {
	Search(ctx context.Context, query string, k int) ([]Document, error)
}

// Render formats documents as numbered context blocks for prompts.
// An empty slice renders as an empty string.
func Render(docs []Document) string {
	var sb strings.Builder
	for i, d := range docs {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "[%d] (%s) %s\n%s", i+1, d.Source, d.Query, strings.TrimSpace(d.Content))
		if c, ok := d.Metadata["classification"].(string); ok && c != "" {
			fmt.Fprintf(&sb, "\nEvaluation: %s", c)
		}
	}
	return sb.String()
}
