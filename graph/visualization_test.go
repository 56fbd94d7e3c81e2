package graph

import (
	"context"
	"strings"
	"testing"
)

func buildVisualGraph() *StateGraph[TestState] {
	noop := func(ctx context.Context, state TestState) (TestState, error) { return state, nil }
	g := NewStateGraph[TestState]()
	g.AddNode("router", "Route", noop)
	g.AddNode("search", "Search", noop)
	g.AddNode("answer", "Answer", noop)
	g.SetEntryPoint("router")
	g.AddConditionalEdge("router", func(ctx context.Context, s TestState) string { return s.Route },
		map[string]string{"search": "search", "done": "answer"})
	g.AddEdge("search", "router")
	g.AddEdge("answer", END)
	return g
}

func TestExporter_DrawMermaid(t *testing.T) {
	mermaid := NewExporter(buildVisualGraph()).DrawMermaid()

	for _, want := range []string{
		"flowchart TD",
		"START --> router",
		"router[[\"router\"]]",
		"search --> router",
		"answer --> END",
		"router -. done .-> answer",
		"router -. search .-> search",
		"END([\"END\"])",
	} {
		if !strings.Contains(mermaid, want) {
			t.Errorf("Expected mermaid output to contain %q, got:\n%s", want, mermaid)
		}
	}
}

func TestExporter_DrawMermaidDirection(t *testing.T) {
	mermaid := NewExporter(buildVisualGraph()).DrawMermaidWithOptions(MermaidOptions{Direction: "LR"})
	if !strings.HasPrefix(mermaid, "flowchart LR\n") {
		t.Errorf("Expected LR direction, got %q", mermaid)
	}
}

func TestExporter_DrawDOT(t *testing.T) {
	dot := NewExporter(buildVisualGraph()).DrawDOT()

	for _, want := range []string{
		"digraph G {",
		"START -> router;",
		"router -> answer [label=\"done\", style=dashed];",
		"answer -> END;",
	} {
		if !strings.Contains(dot, want) {
			t.Errorf("Expected DOT output to contain %q, got:\n%s", want, dot)
		}
	}
}
