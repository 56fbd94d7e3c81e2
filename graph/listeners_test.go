package graph

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestRunnable_ListenersSeeEventsInOrder(t *testing.T) {
	g := NewStateGraph[TestState]()
	g.AddNode("a", "A", func(ctx context.Context, state TestState) (TestState, error) {
		state.Count++
		return state, nil
	})
	g.AddNode("b", "B", func(ctx context.Context, state TestState) (TestState, error) {
		return state, errors.New("b failed")
	})
	g.SetEntryPoint("a")
	g.AddEdge("a", "b")
	g.AddEdge("b", END)

	runnable, err := g.Compile()
	if err != nil {
		t.Fatalf("Failed to compile graph: %v", err)
	}

	var events []string
	runnable.AddListener(NodeListenerFunc[TestState](func(ctx context.Context, event NodeEvent, nodeName string, state TestState, err error) {
		events = append(events, nodeName+":"+string(event))
	}))
	runnable.AddListener(NodeListenerFunc[TestState](func(ctx context.Context, event NodeEvent, nodeName string, state TestState, err error) {
		panic("listener panics are contained")
	}))

	_, err = runnable.Invoke(context.Background(), TestState{})
	if err == nil {
		t.Fatal("Expected error from node b")
	}

	want := "a:start,a:complete,b:start,b:error"
	if got := strings.Join(events, ","); got != want {
		t.Errorf("Expected %s, got %s", want, got)
	}
}

func TestRunnable_Tracer(t *testing.T) {
	g := NewStateGraph[TestState]()
	g.AddNode("a", "A", func(ctx context.Context, state TestState) (TestState, error) {
		if SpanFromContext(ctx) == nil {
			t.Error("Expected node context to carry its span")
		}
		return state, nil
	})
	g.SetEntryPoint("a")
	g.AddEdge("a", END)

	runnable, err := g.Compile()
	if err != nil {
		t.Fatalf("Failed to compile graph: %v", err)
	}

	rec := &Recorder{}
	runnable.SetTracer(NewTracer(rec))
	if runnable.Tracer() == nil {
		t.Fatal("Expected tracer to be set")
	}

	if _, err := runnable.Invoke(context.Background(), TestState{}); err != nil {
		t.Fatalf("Failed to invoke graph: %v", err)
	}

	var kinds []string
	for _, span := range rec.Spans() {
		kinds = append(kinds, string(span.Event))
	}
	want := "graph_start,node_start,node_end,edge_traversal,graph_end"
	if got := strings.Join(kinds, ","); got != want {
		t.Errorf("Expected %s, got %s", want, got)
	}

	spans := rec.Spans()
	if spans[1].ParentID != spans[0].ID {
		t.Errorf("Expected node span parent %s, got %s", spans[0].ID, spans[1].ParentID)
	}
	if spans[3].FromNode != "a" || spans[3].ToNode != END {
		t.Errorf("Unexpected edge span %+v", spans[3])
	}
}

func TestTracer_NodeErrorEvent(t *testing.T) {
	rec := &Recorder{}
	tracer := NewTracer()
	tracer.AddHook(rec)

	ctx := context.Background()
	span := tracer.StartSpan(ctx, TraceEventNodeStart, "x")
	tracer.EndSpan(ctx, span, errors.New("bad"))

	spans := rec.Spans()
	if len(spans) != 2 || spans[1].Event != TraceEventNodeError || spans[1].Error == nil {
		t.Errorf("Expected node_error as closing event, got %+v", spans)
	}
}
