package graph

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// TraceEvent names what a span describes.
type TraceEvent string

// Span events. NodeStart spans end as NodeEnd or NodeError, GraphStart
// spans end as GraphEnd.
const (
	TraceEventGraphStart    TraceEvent = "graph_start"
	TraceEventGraphEnd      TraceEvent = "graph_end"
	TraceEventNodeStart     TraceEvent = "node_start"
	TraceEventNodeEnd       TraceEvent = "node_end"
	TraceEventNodeError     TraceEvent = "node_error"
	TraceEventEdgeTraversal TraceEvent = "edge_traversal"
)

// TraceSpan is one timed step of an invocation. FromNode and ToNode are set
// for edge traversals only.
type TraceSpan struct {
	ID       string
	ParentID string
	Event    TraceEvent
	NodeName string
	FromNode string
	ToNode   string

	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration
	Error     error
}

// TraceHook receives span events.
type TraceHook interface {
	OnEvent(ctx context.Context, span *TraceSpan)
}

type TraceHookFunc func(ctx context.Context, span *TraceSpan)

func (f TraceHookFunc) OnEvent(ctx context.Context, span *TraceSpan) {
	f(ctx, span)
}

// Tracer fans span events out to its hooks. It keeps no spans itself; use a
// Recorder hook to collect them.
type Tracer struct {
	mu    sync.RWMutex
	hooks []TraceHook
}

// NewTracer creates a new tracer instance
func NewTracer(hooks ...TraceHook) *Tracer {
	return &Tracer{hooks: hooks}
}

// AddHook registers a new trace hook
func (t *Tracer) AddHook(hook TraceHook) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.hooks = append(t.hooks, hook)
}

// StartSpan creates a new trace span
func (t *Tracer) StartSpan(ctx context.Context, event TraceEvent, nodeName string) *TraceSpan {
	span := &TraceSpan{
		ID:        uuid.NewString(),
		Event:     event,
		NodeName:  nodeName,
		StartTime: time.Now(),
	}
	if parent := SpanFromContext(ctx); parent != nil {
		span.ParentID = parent.ID
	}
	t.emit(ctx, span)
	return span
}

// EndSpan completes a trace span
func (t *Tracer) EndSpan(ctx context.Context, span *TraceSpan, err error) {
	span.EndTime = time.Now()
	span.Duration = span.EndTime.Sub(span.StartTime)
	span.Error = err

	switch {
	case span.Event == TraceEventNodeStart && err != nil:
		span.Event = TraceEventNodeError
	case span.Event == TraceEventNodeStart:
		span.Event = TraceEventNodeEnd
	case span.Event == TraceEventGraphStart:
		span.Event = TraceEventGraphEnd
	}
	t.emit(ctx, span)
}

// TraceEdgeTraversal records an edge traversal event
func (t *Tracer) TraceEdgeTraversal(ctx context.Context, fromNode, toNode string) {
	now := time.Now()
	span := &TraceSpan{
		ID:        uuid.NewString(),
		Event:     TraceEventEdgeTraversal,
		FromNode:  fromNode,
		ToNode:    toNode,
		StartTime: now,
		EndTime:   now,
	}
	if parent := SpanFromContext(ctx); parent != nil {
		span.ParentID = parent.ID
	}
	t.emit(ctx, span)
}

func (t *Tracer) emit(ctx context.Context, span *TraceSpan) {
	t.mu.RLock()
	hooks := append([]TraceHook(nil), t.hooks...)
	t.mu.RUnlock()

	// Hooks get a copy so later mutation of the live span does not race.
	snapshot := *span
	for _, hook := range hooks {
		hook.OnEvent(ctx, &snapshot)
	}
}

// Recorder is a TraceHook that keeps every event it sees.
type Recorder struct {
	mu    sync.Mutex
	spans []TraceSpan
}

// OnEvent implements TraceHook.
func (r *Recorder) OnEvent(_ context.Context, span *TraceSpan) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.spans = append(r.spans, *span)
}

// Spans returns the recorded events in order.
func (r *Recorder) Spans() []TraceSpan {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]TraceSpan(nil), r.spans...)
}

type contextKey string

const spanContextKey contextKey = "lexgraph_span"

// ContextWithSpan stores span as the parent of spans started from ctx.
func ContextWithSpan(ctx context.Context, span *TraceSpan) context.Context {
	return context.WithValue(ctx, spanContextKey, span)
}

// SpanFromContext extracts a span from context
func SpanFromContext(ctx context.Context) *TraceSpan {
	if span, ok := ctx.Value(spanContextKey).(*TraceSpan); ok {
		return span
	}
	return nil
}
