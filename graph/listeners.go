package graph

import "context"

// NodeEvent represents different types of node events
type NodeEvent string

const (
	// NodeEventStart indicates a node has started execution
	NodeEventStart NodeEvent = "start"

	// NodeEventComplete indicates a node has completed successfully
	NodeEventComplete NodeEvent = "complete"

	// NodeEventError indicates a node encountered an error
	NodeEventError NodeEvent = "error"
)

// NodeListener defines the interface for typed node event listeners.
// Listeners are called synchronously, in registration order, on the
// invocation's goroutine.
type NodeListener[S any] interface {
	// OnNodeEvent is called when a node event occurs
	OnNodeEvent(ctx context.Context, event NodeEvent, nodeName string, state S, err error)
}

// NodeListenerFunc is a function adapter for NodeListener
type NodeListenerFunc[S any] func(ctx context.Context, event NodeEvent, nodeName string, state S, err error)

// OnNodeEvent implements the NodeListener interface
func (f NodeListenerFunc[S]) OnNodeEvent(ctx context.Context, event NodeEvent, nodeName string, state S, err error) {
	f(ctx, event, nodeName, state, err)
}

func notify[S any](ctx context.Context, listeners []NodeListener[S], event NodeEvent, nodeName string, state S, err error) {
	for _, l := range listeners {
		safeNotify(ctx, l, event, nodeName, state, err)
	}
}

func safeNotify[S any](ctx context.Context, l NodeListener[S], event NodeEvent, nodeName string, state S, err error) {
	// A panicking listener must not affect the run.
	defer func() { _ = recover() }()
	l.OnNodeEvent(ctx, event, nodeName, state, err)
}
