package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/smallnest/lexgraph/backend"
	"github.com/smallnest/lexgraph/history"
	"github.com/smallnest/lexgraph/llm"
)

// Node names.
const (
	NodeEntryRouter        = "entry_router"
	NodeRouter             = "router"
	NodeGenerateSubqueries = "generate_subqueries"
	NodeSearchGraph        = "search_graph"
	NodeSearchVector       = "search_vector"
	NodeAnswer             = "answer"
)

// Structured output schema names.
const (
	schemaStart      = "agent_graph_start"
	schemaRoute      = "agent_graph_route"
	schemaSubqueries = "agent_graph_subquery"
	subqueriesField  = "subquestions"
)

// router is a routing node: a closed set of labels and the prompt used to
// pick among them.
type router struct {
	name    string
	schema  string
	allowed []Route
	prompt  func(TurnState) string
}

func (o *Orchestrator) routeNode(r router) func(context.Context, TurnState) (TurnState, error) {
	return func(ctx context.Context, s TurnState) (TurnState, error) {
		route, forced := RouteAnswerFinal, true
		if s.Depth < o.cfg.MaxDepth {
			forced = false
			callCtx, cancel := o.callContext(ctx)
			label, err := llm.Decide(callCtx, o.deps.Model, r.schema, r.prompt(s), routeStrings(r.allowed))
			cancel()
			if err != nil {
				return TurnState{}, fmt.Errorf("routing decision failed: %w", err)
			}
			route = Route(label)
		}

		if forced {
			o.logger.Info("orchestrator: %s at depth %d, answering", r.name, s.Depth)
		} else {
			o.logger.Debug("orchestrator: %s chose %s at depth %d", r.name, route, s.Depth)
		}
		o.deps.Observer.RouteDecided(r.name, route, forced)
		o.deps.Progress.Notify(ctx, s.SessionID, Describe(route))
		return TurnState{Route: route}, nil
	}
}

func (o *Orchestrator) entryPrompt(s TurnState) string {
	return fmt.Sprintf(startPrompt, s.Question)
}

func (o *Orchestrator) loopPrompt(s TurnState) string {
	return fmt.Sprintf(routingPrompt, renderOr(s.Documents, noDocuments), s.Question)
}

func (o *Orchestrator) simplePrompt(s TurnState) string {
	return fmt.Sprintf(simpleRoutingPrompt, renderOr(s.Documents, noDocuments), s.Question)
}

func (o *Orchestrator) generateSubqueries(ctx context.Context, s TurnState) (TurnState, error) {
	existing := noneYet
	if len(s.Subqueries) > 0 {
		existing = "- " + strings.Join(s.Subqueries, "\n- ")
	}
	prompt := fmt.Sprintf(subqueriesPrompt, o.cfg.MaxSubqueries, s.Question, existing)

	callCtx, cancel := o.callContext(ctx)
	items, err := llm.List(callCtx, o.deps.Model, schemaSubqueries, prompt, subqueriesField, o.cfg.MaxSubqueries)
	cancel()
	if err != nil {
		return TurnState{}, fmt.Errorf("sub-query generation failed: %w", err)
	}

	fresh := FilterSubqueries(s.Subqueries, items, o.cfg.MaxSubqueries)
	all := make([]string, 0, len(s.Subqueries)+len(fresh))
	all = append(append(all, s.Subqueries...), fresh...)
	o.logger.Debug("orchestrator: %d new sub-queries for %q", len(fresh), s.Question)
	return TurnState{Subqueries: all, Pending: fresh}, nil
}

// FilterSubqueries trims candidates, drops empties and anything equal
// (case-insensitively) to an existing or earlier candidate, and keeps at
// most max. The result is never nil.
func FilterSubqueries(existing, candidates []string, max int) []string {
	seen := make(map[string]bool, len(existing)+len(candidates))
	for _, e := range existing {
		seen[normalizeQuery(e)] = true
	}
	out := make([]string, 0, len(candidates))
	for _, c := range candidates {
		c = strings.TrimSpace(c)
		key := normalizeQuery(c)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, c)
		if max > 0 && len(out) == max {
			break
		}
	}
	return out
}

func normalizeQuery(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func (o *Orchestrator) searchGraph(ctx context.Context, s TurnState) (TurnState, error) {
	callCtx, cancel := o.callContext(ctx)
	schema, err := o.deps.Graph.Schema(callCtx)
	cancel()
	if err != nil {
		return TurnState{}, fmt.Errorf("graph schema: %w", err)
	}

	recent, err := o.deps.History.Recent(ctx, s.SessionID, o.cfg.HistoryWindow)
	if err != nil {
		return TurnState{}, fmt.Errorf("chat history: %w", err)
	}
	transcript := history.Transcript(recent)

	return o.search(ctx, s, NodeSearchGraph, func(ctx context.Context, q string) ([]backend.Document, error) {
		doc, err := o.deps.Graph.Query(ctx, q, schema, transcript)
		if err != nil {
			return nil, err
		}
		return []backend.Document{doc}, nil
	})
}

func (o *Orchestrator) searchVector(ctx context.Context, s TurnState) (TurnState, error) {
	return o.search(ctx, s, NodeSearchVector, func(ctx context.Context, q string) ([]backend.Document, error) {
		return o.deps.Vector.Search(ctx, q, o.cfg.VectorK)
	})
}

// search runs fn for every query in generation order. Malformed queries are
// recorded and skipped; any other failure aborts the node.
func (o *Orchestrator) search(ctx context.Context, s TurnState, node string, fn func(context.Context, string) ([]backend.Document, error)) (TurnState, error) {
	var (
		docs     []backend.Document
		failures []Failure
	)
	for _, q := range s.Queries() {
		callCtx, cancel := o.callContext(ctx)
		found, err := fn(callCtx, q)
		cancel()

		if errors.Is(err, backend.ErrMalformedQuery) {
			o.logger.Warn("orchestrator: %s skipped %q: %v", node, q, err)
			o.deps.Observer.MalformedQuery(node)
			o.deps.Progress.Notify(ctx, s.SessionID, fmt.Sprintf("Could not build a query for %q, continuing", q))
			failures = append(failures, Failure{Node: node, Query: q, Err: err.Error()})
			continue
		}
		if err != nil {
			return TurnState{}, fmt.Errorf("query %q: %w", q, err)
		}
		docs = append(docs, found...)
	}

	o.logger.Debug("orchestrator: %s found %d documents, %d failures", node, len(docs), len(failures))
	return TurnState{
		Documents: docs,
		Failures:  failures,
		Pending:   []string{},
		Depth:     s.Depth + 1,
	}, nil
}

// afterSearch loops back to decomposition below the ceiling and otherwise
// hands over to the router, which answers.
func (o *Orchestrator) afterSearch(ctx context.Context, s TurnState) string {
	if s.Depth < o.cfg.MaxDepth {
		return edgeContinue
	}
	return edgeCeiling
}

const (
	edgeContinue = "continue"
	edgeCeiling  = "ceiling"
)

func (o *Orchestrator) answer(ctx context.Context, s TurnState) (TurnState, error) {
	if err := o.deps.History.Append(ctx, s.SessionID, history.RoleUser, s.Question); err != nil {
		return TurnState{}, fmt.Errorf("record question: %w", err)
	}
	recent, err := o.deps.History.Recent(ctx, s.SessionID, o.cfg.HistoryWindow)
	if err != nil {
		return TurnState{}, fmt.Errorf("chat history: %w", err)
	}

	messages := make([]llm.Message, 0, len(recent)+1)
	messages = append(messages, llm.System(fmt.Sprintf(assistantPrompt, renderOr(s.Documents, noContext))))
	for _, m := range recent {
		if m.Role == history.RoleAssistant {
			messages = append(messages, llm.Assistant(m.Content))
		} else {
			messages = append(messages, llm.User(m.Content))
		}
	}

	callCtx, cancel := o.callContext(ctx)
	text, err := o.deps.Model.Generate(callCtx, messages)
	cancel()
	if err != nil {
		// The question stays in history.
		return TurnState{}, fmt.Errorf("answer generation failed: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		return TurnState{}, fmt.Errorf("answer generation failed: %w", llm.ErrEmptyResponse)
	}

	if err := o.deps.History.Append(ctx, s.SessionID, history.RoleAssistant, text); err != nil {
		return TurnState{}, fmt.Errorf("record answer: %w", err)
	}
	return TurnState{Answer: text}, nil
}

func renderOr(docs []backend.Document, empty string) string {
	if len(docs) == 0 {
		return empty
	}
	return backend.Render(docs)
}
