package graph

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
)

// StateGraph represents a generic state-based graph with compile-time type safety.
// The type parameter S represents the state type, which is typically a struct.
//
// Example usage:
//
//	type MyState struct {
//	    Count int
//	    Name  string
//	}
//
//	g := graph.NewStateGraph[MyState]()
//	g.AddNode("increment", "Increment counter", func(ctx context.Context, state MyState) (MyState, error) {
//	    return MyState{Count: state.Count + 1}, nil
//	})
type StateGraph[S any] struct {
	// nodes is a map of node names to their corresponding Node objects
	nodes map[string]Node[S]

	// order keeps node names in insertion order for deterministic output
	order []string

	// edges is a slice of Edge objects representing the connections between nodes
	edges []Edge

	// conditionalEdges maps a "From" node to its decision function and routes
	conditionalEdges map[string]ConditionalEdge[S]

	// entryPoint is the name of the entry point node in the graph
	entryPoint string

	// maxSteps bounds node executions per invocation
	maxSteps int

	// schema defines the initial state and the merge of partial updates
	schema Schema[S]

	// buildErrs collects errors raised while the graph is being assembled
	buildErrs []error
}

// NewStateGraph creates a new instance of StateGraph with type safety.
// The type parameter S specifies the state type.
func NewStateGraph[S any]() *StateGraph[S] {
	return &StateGraph[S]{
		nodes:            make(map[string]Node[S]),
		conditionalEdges: make(map[string]ConditionalEdge[S]),
		maxSteps:         DefaultMaxSteps,
	}
}

// AddNode adds a new node to the state graph with the given name, description and function.
// Invalid or duplicate names are reported by Compile.
func (g *StateGraph[S]) AddNode(name string, description string, fn func(ctx context.Context, state S) (S, error)) {
	switch {
	case name == "" || name == END:
		g.buildErrs = append(g.buildErrs, fmt.Errorf("%w: %q", ErrInvalidNodeName, name))
		return
	case fn == nil:
		g.buildErrs = append(g.buildErrs, fmt.Errorf("%w: node %s has no function", ErrInvalidNodeName, name))
		return
	}
	if _, ok := g.nodes[name]; ok {
		g.buildErrs = append(g.buildErrs, fmt.Errorf("%w: %s", ErrDuplicateNode, name))
		return
	}
	g.nodes[name] = Node[S]{
		Name:        name,
		Description: description,
		Function:    fn,
	}
	g.order = append(g.order, name)
}

// AddEdge adds a new edge to the state graph between the "from" and "to" nodes.
func (g *StateGraph[S]) AddEdge(from, to string) {
	g.edges = append(g.edges, Edge{
		From: from,
		To:   to,
	})
}

// AddConditionalEdge adds a conditional edge where the target node is determined at runtime.
// routes maps every label decide may return to a successor node or END.
//
// Example:
//
//	g.AddConditionalEdge("check", func(ctx context.Context, state MyState) string {
//	    if state.Count > 10 {
//	        return "high"
//	    }
//	    return "low"
//	}, map[string]string{"high": "alert", "low": graph.END})
func (g *StateGraph[S]) AddConditionalEdge(from string, decide func(ctx context.Context, state S) string, routes map[string]string) {
	if _, ok := g.conditionalEdges[from]; ok {
		g.buildErrs = append(g.buildErrs, fmt.Errorf("%w: %s has two conditional edges", ErrAmbiguousEdge, from))
		return
	}
	copied := make(map[string]string, len(routes))
	for label, to := range routes {
		copied[label] = to
	}
	g.conditionalEdges[from] = ConditionalEdge[S]{
		From:   from,
		Decide: decide,
		Routes: copied,
	}
}

// SetEntryPoint sets the entry point node name for the state graph.
func (g *StateGraph[S]) SetEntryPoint(name string) {
	g.entryPoint = name
}

// SetSchema sets the state schema for the graph.
func (g *StateGraph[S]) SetSchema(schema Schema[S]) {
	g.schema = schema
}

// SetMaxSteps sets the per-invocation node execution bound. Values below 1
// restore DefaultMaxSteps.
func (g *StateGraph[S]) SetMaxSteps(n int) {
	if n < 1 {
		n = DefaultMaxSteps
	}
	g.maxSteps = n
}

// Routes returns the labels declared on the conditional edge leaving from,
// sorted.
func (g *StateGraph[S]) Routes(from string) []string {
	ce, ok := g.conditionalEdges[from]
	if !ok {
		return nil
	}
	labels := make([]string, 0, len(ce.Routes))
	for label := range ce.Routes {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}

// Node returns the node registered under name.
func (g *StateGraph[S]) Node(name string) (Node[S], bool) {
	n, ok := g.nodes[name]
	return n, ok
}

// Compile validates the topology and returns a Runnable.
func (g *StateGraph[S]) Compile() (*Runnable[S], error) {
	if err := g.validate(); err != nil {
		return nil, err
	}

	successors := make(map[string]string, len(g.edges))
	for _, e := range g.edges {
		successors[e.From] = e.To
	}
	conditional := make(map[string]ConditionalEdge[S], len(g.conditionalEdges))
	for from, ce := range g.conditionalEdges {
		conditional[from] = ce
	}
	nodes := make(map[string]Node[S], len(g.nodes))
	for name, n := range g.nodes {
		nodes[name] = n
	}

	return &Runnable[S]{
		nodes:       nodes,
		successors:  successors,
		conditional: conditional,
		entryPoint:  g.entryPoint,
		maxSteps:    g.maxSteps,
		schema:      g.schema,
	}, nil
}

func (g *StateGraph[S]) validate() error {
	errs := slices.Clone(g.buildErrs)

	if g.entryPoint == "" {
		errs = append(errs, ErrEntryPointNotSet)
	} else if _, ok := g.nodes[g.entryPoint]; !ok {
		errs = append(errs, fmt.Errorf("%w: entry point %s", ErrNodeNotFound, g.entryPoint))
	}

	outgoing := make(map[string]int, len(g.nodes))
	for _, e := range g.edges {
		if _, ok := g.nodes[e.From]; !ok {
			errs = append(errs, fmt.Errorf("%w: edge source %s", ErrNodeNotFound, e.From))
			continue
		}
		if !g.isTarget(e.To) {
			errs = append(errs, fmt.Errorf("%w: edge %s -> %s", ErrNodeNotFound, e.From, e.To))
		}
		outgoing[e.From]++
	}

	froms := make([]string, 0, len(g.conditionalEdges))
	for from := range g.conditionalEdges {
		froms = append(froms, from)
	}
	sort.Strings(froms)
	for _, from := range froms {
		ce := g.conditionalEdges[from]
		if _, ok := g.nodes[from]; !ok {
			errs = append(errs, fmt.Errorf("%w: conditional edge source %s", ErrNodeNotFound, from))
			continue
		}
		if ce.Decide == nil || len(ce.Routes) == 0 {
			errs = append(errs, fmt.Errorf("%w: %s", ErrNoRoutes, from))
		}
		for _, label := range g.Routes(from) {
			if to := ce.Routes[label]; !g.isTarget(to) {
				errs = append(errs, fmt.Errorf("%w: route %s -[%s]-> %s", ErrNodeNotFound, from, label, to))
			}
		}
		outgoing[from]++
	}

	for _, name := range g.order {
		switch n := outgoing[name]; {
		case n == 0:
			errs = append(errs, fmt.Errorf("%w: %s", ErrNoOutgoingEdge, name))
		case n > 1:
			errs = append(errs, fmt.Errorf("%w: %s", ErrAmbiguousEdge, name))
		}
	}

	if len(errs) == 0 && !g.reachesEnd() {
		errs = append(errs, ErrUnreachableEnd)
	}

	return errors.Join(errs...)
}

func (g *StateGraph[S]) isTarget(name string) bool {
	if name == END {
		return true
	}
	_, ok := g.nodes[name]
	return ok
}

func (g *StateGraph[S]) reachesEnd() bool {
	seen := map[string]bool{g.entryPoint: true}
	queue := []string{g.entryPoint}
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		var next []string
		for _, e := range g.edges {
			if e.From == name {
				next = append(next, e.To)
			}
		}
		if ce, ok := g.conditionalEdges[name]; ok {
			for _, to := range ce.Routes {
				next = append(next, to)
			}
		}
		for _, to := range next {
			if to == END {
				return true
			}
			if !seen[to] {
				seen[to] = true
				queue = append(queue, to)
			}
		}
	}
	return false
}
