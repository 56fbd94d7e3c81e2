package graph

import (
	"context"
	"fmt"
	"sync"
)

// Runnable is a compiled state graph. It is immutable apart from its
// listeners and tracer and can be invoked concurrently.
type Runnable[S any] struct {
	nodes       map[string]Node[S]
	successors  map[string]string
	conditional map[string]ConditionalEdge[S]
	entryPoint  string
	maxSteps    int
	schema      Schema[S]

	mu        sync.RWMutex
	listeners []NodeListener[S]
	tracer    *Tracer
}

// AddListener registers a listener for node events.
func (r *Runnable[S]) AddListener(l NodeListener[S]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, l)
}

// SetTracer sets a tracer for observability.
func (r *Runnable[S]) SetTracer(tracer *Tracer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tracer = tracer
}

// Tracer returns the current tracer.
func (r *Runnable[S]) Tracer() *Tracer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tracer
}

// Invoke executes the graph from the entry point until END is reached.
// On failure it returns the state as it was after the last successful merge
// together with the error.
func (r *Runnable[S]) Invoke(ctx context.Context, initialState S) (S, error) {
	r.mu.RLock()
	listeners := append([]NodeListener[S](nil), r.listeners...)
	tracer := r.tracer
	r.mu.RUnlock()

	state := initialState
	if r.schema != nil {
		var err error
		state, err = r.schema.Update(r.schema.Init(), initialState)
		if err != nil {
			return initialState, fmt.Errorf("failed to initialize state with schema: %w", err)
		}
	}

	var graphSpan *TraceSpan
	if tracer != nil {
		graphSpan = tracer.StartSpan(ctx, TraceEventGraphStart, "graph")
		ctx = ContextWithSpan(ctx, graphSpan)
	}
	finish := func(s S, err error) (S, error) {
		if graphSpan != nil {
			tracer.EndSpan(ctx, graphSpan, err)
		}
		return s, err
	}

	current := r.entryPoint
	for step := 0; current != END; step++ {
		if step >= r.maxSteps {
			return finish(state, fmt.Errorf("%w: %d", ErrMaxStepsExceeded, r.maxSteps))
		}
		if err := ctx.Err(); err != nil {
			return finish(state, err)
		}

		node := r.nodes[current]
		update, err := r.runNode(ctx, node, state, listeners, tracer)
		if err != nil {
			return finish(state, err)
		}

		if r.schema != nil {
			merged, err := r.schema.Update(state, update)
			if err != nil {
				return finish(state, fmt.Errorf("schema update after node %s failed: %w", node.Name, err))
			}
			state = merged
		} else {
			state = update
		}

		next, err := r.next(ctx, current, state)
		if err != nil {
			return finish(state, err)
		}
		if tracer != nil {
			tracer.TraceEdgeTraversal(ctx, current, next)
		}
		current = next
	}

	return finish(state, nil)
}

func (r *Runnable[S]) runNode(ctx context.Context, node Node[S], state S, listeners []NodeListener[S], tracer *Tracer) (result S, err error) {
	var span *TraceSpan
	if tracer != nil {
		span = tracer.StartSpan(ctx, TraceEventNodeStart, node.Name)
		ctx = ContextWithSpan(ctx, span)
	}
	notify(ctx, listeners, NodeEventStart, node.Name, state, nil)

	defer func() {
		if p := recover(); p != nil {
			err = &NodeError{Node: node.Name, Err: fmt.Errorf("panic: %v", p)}
		}
		if span != nil {
			tracer.EndSpan(ctx, span, err)
		}
		if err != nil {
			notify(ctx, listeners, NodeEventError, node.Name, state, err)
			return
		}
		notify(ctx, listeners, NodeEventComplete, node.Name, result, nil)
	}()

	result, err = node.Function(ctx, state)
	if err != nil {
		err = &NodeError{Node: node.Name, Err: err}
	}
	return result, err
}

func (r *Runnable[S]) next(ctx context.Context, from string, state S) (string, error) {
	if ce, ok := r.conditional[from]; ok {
		label := ce.Decide(ctx, state)
		to, ok := ce.Routes[label]
		if !ok {
			return "", &RouteError{From: from, Label: label}
		}
		return to, nil
	}
	to, ok := r.successors[from]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNoOutgoingEdge, from)
	}
	return to, nil
}
