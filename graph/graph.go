package graph

import (
	"context"
	"errors"
	"fmt"
)

// END is a special constant used to represent the end node in the graph.
const END = "END"

// DefaultMaxSteps bounds the number of node executions of one invocation.
const DefaultMaxSteps = 64

var (
	// ErrEntryPointNotSet is returned when the entry point of the graph is not set.
	ErrEntryPointNotSet = errors.New("entry point not set")

	// ErrNodeNotFound is returned when a node is not found in the graph.
	ErrNodeNotFound = errors.New("node not found")

	// ErrDuplicateNode is returned when two nodes share a name.
	ErrDuplicateNode = errors.New("duplicate node")

	// ErrInvalidNodeName is returned for empty or reserved node names.
	ErrInvalidNodeName = errors.New("invalid node name")

	// ErrNoOutgoingEdge is returned when no outgoing edge is found for a node.
	ErrNoOutgoingEdge = errors.New("no outgoing edge found for node")

	// ErrAmbiguousEdge is returned when a node has more than one way out.
	ErrAmbiguousEdge = errors.New("node has more than one outgoing edge")

	// ErrNoRoutes is returned when a conditional edge declares no routes.
	ErrNoRoutes = errors.New("conditional edge declares no routes")

	// ErrUnknownRoute is returned when a decision function returns a label
	// that is not in its route map.
	ErrUnknownRoute = errors.New("unknown route")

	// ErrUnreachableEnd is returned when END cannot be reached from the entry point.
	ErrUnreachableEnd = errors.New("END is not reachable from the entry point")

	// ErrMaxStepsExceeded is returned when an invocation runs more nodes than allowed.
	ErrMaxStepsExceeded = errors.New("maximum number of steps exceeded")
)

// Node is a named state transformer. Function returns a partial update that
// the graph's Schema merges into the running state.
type Node[S any] struct {
	Name        string
	Description string
	Function    func(ctx context.Context, state S) (S, error)
}

// Edge represents an unconditional edge in the graph.
type Edge struct {
	// From is the name of the node from which the edge originates.
	From string

	// To is the name of the node to which the edge points.
	To string
}

// ConditionalEdge picks the successor of From at run time. Decide returns a
// label and Routes maps every label it may return to a node name or END.
type ConditionalEdge[S any] struct {
	From   string
	Decide func(ctx context.Context, state S) string
	Routes map[string]string
}

// RouteError is returned when a decision function produces a label that has
// no declared successor.
type RouteError struct {
	From  string
	Label string
}

func (e *RouteError) Error() string {
	return fmt.Sprintf("%s: node %s returned %q", ErrUnknownRoute, e.From, e.Label)
}

// Is reports whether target is ErrUnknownRoute.
func (e *RouteError) Is(target error) bool {
	return target == ErrUnknownRoute
}

// NodeError wraps an error returned (or a panic raised) by a node.
type NodeError struct {
	Node string
	Err  error
}

func (e *NodeError) Error() string {
	return fmt.Sprintf("error in node %s: %v", e.Node, e.Err)
}

func (e *NodeError) Unwrap() error {
	return e.Err
}
