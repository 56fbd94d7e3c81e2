package orchestrator

import (
	"fmt"
	"time"
)

// Topology selects the state machine layout.
type Topology string

const (
	// TopologyFull routes between graph search, vector search and the
	// answer, regenerating sub-queries after each search.
	TopologyFull Topology = "full"
	// TopologySimple decides only between another decomposition round,
	// followed by a graph search, and the answer.
	TopologySimple Topology = "simple"
)

// Config controls an Orchestrator.
type Config struct {
	// MaxDepth is the search ceiling. At MaxDepth routers answer without
	// consulting the model; zero answers immediately.
	MaxDepth int `yaml:"max_depth"`
	// MaxSubqueries caps each decomposition round.
	MaxSubqueries int `yaml:"max_subqueries"`
	// HistoryWindow is the number of recent messages read from history.
	HistoryWindow int `yaml:"history_window"`
	// VectorK is the number of similarity results per query.
	VectorK  int      `yaml:"vector_k"`
	Topology Topology `yaml:"topology"`
	// CallTimeout bounds each model and backend call. Zero disables it.
	CallTimeout time.Duration `yaml:"call_timeout"`
	// InvocationTimeout bounds a whole invocation. Zero derives it from
	// CallTimeout.
	InvocationTimeout time.Duration `yaml:"invocation_timeout"`
	// SerializeSessions runs invocations for the same session one at a time.
	SerializeSessions bool `yaml:"serialize_sessions"`
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		MaxDepth:          3,
		MaxSubqueries:     3,
		HistoryWindow:     25,
		VectorK:           10,
		Topology:          TopologyFull,
		CallTimeout:       30 * time.Second,
		SerializeSessions: true,
	}
}

// normalize fills unset fields and rejects invalid ones. MaxDepth is taken
// as given since zero is meaningful.
func (c Config) normalize() (Config, error) {
	def := DefaultConfig()
	if c.MaxDepth < 0 {
		return c, fmt.Errorf("max depth must not be negative: %d", c.MaxDepth)
	}
	if c.MaxSubqueries <= 0 {
		c.MaxSubqueries = def.MaxSubqueries
	}
	if c.HistoryWindow <= 0 {
		c.HistoryWindow = def.HistoryWindow
	}
	if c.VectorK <= 0 {
		c.VectorK = def.VectorK
	}
	switch c.Topology {
	case "":
		c.Topology = TopologyFull
	case TopologyFull, TopologySimple:
	default:
		return c, fmt.Errorf("unknown topology %q", c.Topology)
	}
	if c.CallTimeout < 0 || c.InvocationTimeout < 0 {
		return c, fmt.Errorf("timeouts must not be negative")
	}
	return c, nil
}

// Deadline returns the invocation timeout: InvocationTimeout when set,
// otherwise CallTimeout * (3 + MaxDepth*(MaxSubqueries+2)), which covers
// the entry decision, the answer and, per search cycle, one decomposition,
// one routing decision and one backend call per sub-query. Zero means no
// deadline.
func (c Config) Deadline() time.Duration {
	if c.InvocationTimeout > 0 {
		return c.InvocationTimeout
	}
	return c.CallTimeout * time.Duration(3+c.MaxDepth*(c.MaxSubqueries+2))
}

// maxSteps bounds engine steps: each search cycle is at most three nodes,
// plus the entry, the final router and the answer.
func (c Config) maxSteps() int {
	return 3*c.MaxDepth + 4
}
