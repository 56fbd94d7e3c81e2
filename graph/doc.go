// Package graph provides the state machine engine that drives lexgraph's
// retrieval loop.
//
// A StateGraph is a fixed directed graph of named nodes over a typed state S.
// Each node is a state transformer that returns a partial update; the update
// is merged into the running state by the graph's Schema. After each node the
// engine follows exactly one outgoing edge: either an unconditional edge or a
// conditional edge whose decision function returns a label from a declared
// route map.
//
// # Basic Usage
//
//	type State struct {
//		Count int
//		Route string
//	}
//
//	g := graph.NewStateGraph[State]()
//	g.AddNode("inc", "Increment the counter", func(ctx context.Context, s State) (State, error) {
//		return State{Count: s.Count + 1}, nil
//	})
//	g.AddNode("done", "Finish", func(ctx context.Context, s State) (State, error) {
//		return s, nil
//	})
//	g.SetEntryPoint("inc")
//	g.AddConditionalEdge("inc", func(ctx context.Context, s State) string {
//		if s.Count < 3 {
//			return "again"
//		}
//		return "stop"
//	}, map[string]string{"again": "inc", "stop": "done"})
//	g.AddEdge("done", graph.END)
//
//	runnable, err := g.Compile()
//	if err != nil {
//		return err
//	}
//	final, err := runnable.Invoke(ctx, State{})
//
// # Execution Model
//
// Nodes run one at a time; the engine awaits each node before evaluating the
// next edge and introduces no retries, parallelism or reordering of its own.
// Compile validates the topology up front so that an undeclared route label
// or a dangling edge surfaces as a configuration error at startup. A label
// that is not in the route map at run time fails the invocation with
// ErrUnknownRoute instead of panicking.
//
// # Observability
//
// Listeners receive start, complete and error events for every node in
// registration order. A Tracer receives graph, node and edge spans with
// timings. Exporter renders the topology as Mermaid or DOT.
package graph
