// Package orchestrator runs the retrieval loop that answers one chat turn.
//
// An invocation decides whether the question needs evidence, decomposes it
// into sub-questions, queries the graph or vector backend, and finally
// synthesizes an answer from the evidence and the session's chat history.
// The loop is a compiled graph.StateGraph over TurnState; the depth ceiling
// in Config guarantees termination.
//
// Topology (full):
//
//	entry_router -> generate_subqueries -> router -> search_graph | search_vector
//	search_* -> generate_subqueries (below the ceiling) | router (at the ceiling)
//	entry_router | router -> answer -> END
//
// Backends, model and stores are long-lived handles injected through Deps and
// shared by concurrent invocations.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/smallnest/lexgraph/backend"
	"github.com/smallnest/lexgraph/graph"
	"github.com/smallnest/lexgraph/history"
	"github.com/smallnest/lexgraph/llm"
	"github.com/smallnest/lexgraph/log"
	"github.com/smallnest/lexgraph/progress"
)

var (
	ErrEmptyQuestion = errors.New("question is empty")
	ErrEmptySession  = errors.New("session id is empty")
	ErrMissingDep    = errors.New("missing dependency")
	ErrRouteTable    = errors.New("router labels do not match routes")
)

// Observer receives orchestration events, typically for metrics.
type Observer interface {
	RouteDecided(router string, route Route, forced bool)
	MalformedQuery(node string)
	InvocationDone(outcome string, elapsed time.Duration)
}

type noopObserver struct{}

func (noopObserver) RouteDecided(string, Route, bool)     {}
func (noopObserver) MalformedQuery(string)                {}
func (noopObserver) InvocationDone(string, time.Duration) {}

// Deps are the collaborators of an Orchestrator.
type Deps struct {
	Model   llm.Model
	History history.Store
	Graph   backend.GraphBackend
	// Vector is required by the full topology only.
	Vector backend.SimilarityBackend

	// Optional.
	Progress progress.Emitter
	Observer Observer
	Tracer   *graph.Tracer
	Logger   log.Logger
}

// Orchestrator answers chat turns. It is safe for concurrent use.
type Orchestrator struct {
	cfg      Config
	deps     Deps
	logger   log.Logger
	graph    *graph.StateGraph[TurnState]
	runnable *graph.Runnable[TurnState]
	locks    *sessionLocks
}

// New validates deps and cfg and compiles the state machine.
func New(deps Deps, cfg Config) (*Orchestrator, error) {
	cfg, err := cfg.normalize()
	if err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	switch {
	case deps.Model == nil:
		return nil, fmt.Errorf("%w: model", ErrMissingDep)
	case deps.History == nil:
		return nil, fmt.Errorf("%w: history", ErrMissingDep)
	case deps.Graph == nil:
		return nil, fmt.Errorf("%w: graph backend", ErrMissingDep)
	case deps.Vector == nil && cfg.Topology == TopologyFull:
		return nil, fmt.Errorf("%w: vector backend", ErrMissingDep)
	}
	deps.Progress = progress.Safe(deps.Progress)
	if deps.Observer == nil {
		deps.Observer = noopObserver{}
	}

	o := &Orchestrator{
		cfg:    cfg,
		deps:   deps,
		logger: log.OrDefault(deps.Logger),
		locks:  newSessionLocks(),
	}

	routers := o.build()
	for _, r := range routers {
		got := o.graph.Routes(r.name)
		want := routeStrings(r.allowed)
		slices.Sort(want)
		if !slices.Equal(got, want) {
			return nil, fmt.Errorf("%w: %s decides %v, routes %v", ErrRouteTable, r.name, want, got)
		}
	}

	o.runnable, err = o.graph.Compile()
	if err != nil {
		return nil, fmt.Errorf("failed to compile state machine: %w", err)
	}
	o.runnable.AddListener(graph.NodeListenerFunc[TurnState](o.onNodeEvent))
	if deps.Tracer != nil {
		o.runnable.SetTracer(deps.Tracer)
	}
	return o, nil
}

// build assembles the state graph for the configured topology and returns
// its routers.
func (o *Orchestrator) build() []router {
	g := graph.NewStateGraph[TurnState]()
	g.SetSchema(turnSchema())
	g.SetMaxSteps(o.cfg.maxSteps())

	decide := func(_ context.Context, s TurnState) string { return string(s.Route) }

	var routers []router
	switch o.cfg.Topology {
	case TopologySimple:
		r := router{
			name:    NodeRouter,
			schema:  schemaRoute,
			allowed: []Route{RouteGenerateSubqueries, RouteAnswerFinal},
			prompt:  o.simplePrompt,
		}
		routers = append(routers, r)

		g.AddNode(NodeRouter, "Choosing the next step", o.routeNode(r))
		g.AddNode(NodeGenerateSubqueries, Describe(RouteGenerateSubqueries), o.generateSubqueries)
		g.AddNode(NodeSearchGraph, Describe(RouteSearchGraph), o.searchGraph)
		g.AddNode(NodeAnswer, "Writing the answer", o.answer)

		g.SetEntryPoint(NodeRouter)
		g.AddConditionalEdge(NodeRouter, decide, map[string]string{
			string(RouteGenerateSubqueries): NodeGenerateSubqueries,
			string(RouteAnswerFinal):        NodeAnswer,
		})
		g.AddEdge(NodeGenerateSubqueries, NodeSearchGraph)
		g.AddEdge(NodeSearchGraph, NodeRouter)
		g.AddEdge(NodeAnswer, graph.END)

	default:
		entry := router{
			name:    NodeEntryRouter,
			schema:  schemaStart,
			allowed: []Route{RouteNeedsSearch, RouteAnswerFinal},
			prompt:  o.entryPrompt,
		}
		loop := router{
			name:    NodeRouter,
			schema:  schemaRoute,
			allowed: []Route{RouteSearchGraph, RouteSearchVector, RouteAnswerFinal},
			prompt:  o.loopPrompt,
		}
		routers = append(routers, entry, loop)

		g.AddNode(NodeEntryRouter, "Analyzing the question", o.routeNode(entry))
		g.AddNode(NodeGenerateSubqueries, Describe(RouteGenerateSubqueries), o.generateSubqueries)
		g.AddNode(NodeRouter, "Choosing the next step", o.routeNode(loop))
		g.AddNode(NodeSearchGraph, Describe(RouteSearchGraph), o.searchGraph)
		g.AddNode(NodeSearchVector, Describe(RouteSearchVector), o.searchVector)
		g.AddNode(NodeAnswer, "Writing the answer", o.answer)

		g.SetEntryPoint(NodeEntryRouter)
		g.AddConditionalEdge(NodeEntryRouter, decide, map[string]string{
			string(RouteNeedsSearch): NodeGenerateSubqueries,
			string(RouteAnswerFinal): NodeAnswer,
		})
		g.AddEdge(NodeGenerateSubqueries, NodeRouter)
		g.AddConditionalEdge(NodeRouter, decide, map[string]string{
			string(RouteSearchGraph):  NodeSearchGraph,
			string(RouteSearchVector): NodeSearchVector,
			string(RouteAnswerFinal):  NodeAnswer,
		})
		for _, search := range []string{NodeSearchGraph, NodeSearchVector} {
			g.AddConditionalEdge(search, o.afterSearch, map[string]string{
				edgeContinue: NodeGenerateSubqueries,
				edgeCeiling:  NodeRouter,
			})
		}
		g.AddEdge(NodeAnswer, graph.END)
	}

	o.graph = g
	return routers
}

// Layout assembles the state graph for cfg without collaborators, for
// export.
func Layout(cfg Config) (*graph.StateGraph[TurnState], error) {
	cfg, err := cfg.normalize()
	if err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	o := &Orchestrator{cfg: cfg}
	o.build()
	return o.graph, nil
}

// Graph returns the assembled state graph, for export.
func (o *Orchestrator) Graph() *graph.StateGraph[TurnState] {
	return o.graph
}

// Config returns the effective configuration.
func (o *Orchestrator) Config() Config {
	return o.cfg
}

// Invoke answers question for sessionID.
func (o *Orchestrator) Invoke(ctx context.Context, sessionID, question string) (string, error) {
	s, err := o.Run(ctx, sessionID, question)
	if err != nil {
		return "", err
	}
	return s.Answer, nil
}

// Run answers question for sessionID and returns the final turn state,
// including the evidence. On failure the returned state is the last
// consistent state reached: the output of the node that failed is discarded
// as a whole, including documents it found before the failing query.
func (o *Orchestrator) Run(ctx context.Context, sessionID, question string) (TurnState, error) {
	sessionID = strings.TrimSpace(sessionID)
	question = strings.TrimSpace(question)
	if sessionID == "" {
		return TurnState{}, ErrEmptySession
	}
	if question == "" {
		return TurnState{}, ErrEmptyQuestion
	}

	start := time.Now()
	if d := o.cfg.Deadline(); d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	if o.cfg.SerializeSessions {
		unlock, err := o.locks.lock(ctx, sessionID)
		if err != nil {
			o.deps.Observer.InvocationDone(outcome(err), time.Since(start))
			return TurnState{}, fmt.Errorf("waiting for session %s: %w", sessionID, err)
		}
		defer unlock()
	}

	final, err := o.runnable.Invoke(ctx, TurnState{SessionID: sessionID, Question: question})
	o.deps.Observer.InvocationDone(outcome(err), time.Since(start))
	if err != nil {
		o.logger.Error("orchestrator: session %s failed after depth %d: %v", sessionID, final.Depth, err)
		return final, err
	}
	o.logger.Info("orchestrator: session %s answered at depth %d with %d documents", sessionID, final.Depth, len(final.Documents))
	return final, nil
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "error"
	}
}

func (o *Orchestrator) onNodeEvent(ctx context.Context, event graph.NodeEvent, nodeName string, s TurnState, err error) {
	if event != graph.NodeEventStart {
		return
	}
	if n, ok := o.graph.Node(nodeName); ok {
		o.deps.Progress.Notify(ctx, s.SessionID, n.Description)
	}
}

func (o *Orchestrator) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.cfg.CallTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, o.cfg.CallTimeout)
}
