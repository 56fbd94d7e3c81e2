// Package graphqa answers natural-language questions against a property
// graph: it asks a model for a Cypher statement, validates and executes it
// read-only, and optionally has the model grade the result against the
// question.
package graphqa

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/smallnest/lexgraph/backend"
	"github.com/smallnest/lexgraph/backend/falkordb"
	"github.com/smallnest/lexgraph/llm"
	"github.com/smallnest/lexgraph/log"
)

// DefaultTopK is the number of result rows kept per query.
const DefaultTopK = 10

// Classification labels the QA step can assign.
const (
	Coherent   = "Coherent Document"
	Incomplete = "Incomplete Document"
	Unrelated  = "Unrelated Document"
)

// Classifications lists the labels in prompt order.
var Classifications = []string{Coherent, Incomplete, Unrelated}

// Executor runs read-only Cypher and describes the graph.
// *falkordb.Client satisfies it.
type Executor interface {
	Schema(ctx context.Context) (string, error)
	ReadOnlyQuery(ctx context.Context, cypher string) (falkordb.QueryResult, error)
}

// Options configures a Chain.
type Options struct {
	// TopK caps the rows rendered into the document. Zero means DefaultTopK.
	TopK int
	// SkipClassification disables the QA grading call.
	SkipClassification bool
	Logger             log.Logger
}

// Chain implements backend.GraphBackend.
type Chain struct {
	model  llm.Model
	exec   Executor
	topK   int
	skipQA bool
	logger log.Logger
}

// New creates a Chain.
func New(model llm.Model, exec Executor, opts Options) *Chain {
	if opts.TopK <= 0 {
		opts.TopK = DefaultTopK
	}
	return &Chain{
		model:  model,
		exec:   exec,
		topK:   opts.TopK,
		skipQA: opts.SkipClassification,
		logger: log.OrDefault(opts.Logger),
	}
}

var _ backend.GraphBackend = (*Chain)(nil)

// Schema implements backend.GraphBackend.
func (c *Chain) Schema(ctx context.Context) (string, error) {
	return c.exec.Schema(ctx)
}

// Query implements backend.GraphBackend.
func (c *Chain) Query(ctx context.Context, question, schema, history string) (backend.Document, error) {
	raw, err := c.model.Generate(ctx, []llm.Message{
		llm.User(fmt.Sprintf(cypherPrompt, orNone(history), schema, question)),
	})
	if err != nil {
		return backend.Document{}, fmt.Errorf("cypher generation failed: %w", err)
	}

	cypher := ExtractCypher(raw)
	if err := Validate(cypher); err != nil {
		return backend.Document{}, &backend.MalformedQueryError{Query: question, Statement: cypher, Err: err}
	}
	c.logger.Debug("graphqa: generated cypher for %q: %s", question, cypher)

	qr, err := c.exec.ReadOnlyQuery(ctx, cypher)
	if err != nil {
		var mqe *backend.MalformedQueryError
		if errors.As(err, &mqe) && mqe.Query == "" {
			mqe.Query = question
		}
		return backend.Document{}, fmt.Errorf("cypher execution failed: %w", err)
	}

	content := qr.Table(c.topK)
	if len(qr.Rows) == 0 {
		content = "No results."
	}

	doc := backend.Document{
		ID:      uuid.NewString(),
		Source:  backend.SourceGraph,
		Query:   question,
		Content: content,
		Metadata: map[string]any{
			"cypher": cypher,
			"rows":   len(qr.Rows),
		},
	}

	if !c.skipQA {
		label, err := llm.Decide(ctx, c.model, "graph_qa", fmt.Sprintf(qaPrompt, content, question), Classifications)
		switch {
		case errors.Is(err, llm.ErrInvalidChoice), errors.Is(err, llm.ErrInvalidOutput):
			c.logger.Warn("graphqa: unclassified result for %q: %v", question, err)
		case err != nil:
			return backend.Document{}, fmt.Errorf("result classification failed: %w", err)
		default:
			doc.Metadata["classification"] = label
		}
	}
	return doc, nil
}

var fence = regexp.MustCompile("(?s)```(?:cypher)?\\s*(.*?)```")

// ExtractCypher strips code fences, a leading "cypher" tag and a trailing
// semicolon from model output.
func ExtractCypher(raw string) string {
	s := strings.TrimSpace(raw)
	if m := fence.FindStringSubmatch(s); m != nil {
		s = m[1]
	}
	s = strings.TrimSpace(s)
	if len(s) > 7 && strings.EqualFold(s[:7], "cypher:") {
		s = s[7:]
	} else if len(s) > 6 && strings.EqualFold(s[:6], "cypher") && (s[6] == '\n' || s[6] == ' ') {
		s = s[6:]
	}
	return strings.TrimSuffix(strings.TrimSpace(s), ";")
}

var (
	wordSplit    = regexp.MustCompile(`[A-Za-z_]+`)
	writeClauses = map[string]bool{
		"CREATE": true, "MERGE": true, "SET": true,
		"DELETE": true, "REMOVE": true, "DROP": true,
	}
	stringLiteral = regexp.MustCompile(`'(?:[^'\\]|\\.)*'|"(?:[^"\\]|\\.)*"`)
)

// Validate rejects empty statements, statements that neither read
// (MATCH ... RETURN) nor call a procedure, and statements with write clauses.
// Keywords inside string literals are ignored.
func Validate(cypher string) error {
	if strings.TrimSpace(cypher) == "" {
		return fmt.Errorf("empty statement")
	}

	words := map[string]bool{}
	for _, w := range wordSplit.FindAllString(stringLiteral.ReplaceAllString(cypher, "''"), -1) {
		words[strings.ToUpper(w)] = true
	}

	for w := range writeClauses {
		if words[w] {
			return fmt.Errorf("write clause %s not allowed", w)
		}
	}
	if !(words["MATCH"] && words["RETURN"]) && !words["CALL"] {
		return fmt.Errorf("statement must read with MATCH ... RETURN or CALL")
	}
	return nil
}

func orNone(s string) string {
	if strings.TrimSpace(s) == "" {
		return "(none)"
	}
	return s
}
