package orchestrator

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smallnest/lexgraph/backend"
)

func TestMergeTurn(t *testing.T) {
	base := TurnState{SessionID: "s1", Question: "q", Depth: 1, Documents: []backend.Document{{ID: "a"}}}

	t.Run("documents append", func(t *testing.T) {
		out, err := mergeTurn(base, TurnState{Documents: []backend.Document{{ID: "b"}}})
		require.NoError(t, err)
		assert.Len(t, out.Documents, 2)
		assert.Equal(t, "a", out.Documents[0].ID)
		assert.Equal(t, "b", out.Documents[1].ID)
		assert.Len(t, base.Documents, 1)
	})

	t.Run("empty update keeps everything", func(t *testing.T) {
		out, err := mergeTurn(base, TurnState{})
		require.NoError(t, err)
		assert.Equal(t, base, out)
	})

	t.Run("answer is written once", func(t *testing.T) {
		out, err := mergeTurn(base, TurnState{Answer: "first"})
		require.NoError(t, err)
		_, err = mergeTurn(out, TurnState{Answer: "second"})
		assert.ErrorIs(t, err, ErrAnswerAlreadySet)
	})

	t.Run("depth cannot decrease", func(t *testing.T) {
		cur := base
		cur.Depth = 2
		_, err := mergeTurn(cur, TurnState{Depth: 1})
		assert.ErrorIs(t, err, ErrDepthDecreased)

		out, err := mergeTurn(cur, TurnState{Depth: 3})
		require.NoError(t, err)
		assert.Equal(t, 3, out.Depth)
	})

	t.Run("question is immutable", func(t *testing.T) {
		_, err := mergeTurn(base, TurnState{Question: "other"})
		assert.ErrorIs(t, err, ErrQuestionChanged)
		_, err = mergeTurn(base, TurnState{SessionID: "s2"})
		assert.Error(t, err)
	})

	t.Run("pending is replaced when set", func(t *testing.T) {
		cur := base
		cur.Pending = []string{"x"}
		out, err := mergeTurn(cur, TurnState{Route: RouteSearchGraph})
		require.NoError(t, err)
		assert.Equal(t, []string{"x"}, out.Pending)
		assert.Equal(t, RouteSearchGraph, out.Route)

		out, err = mergeTurn(out, TurnState{Pending: []string{}})
		require.NoError(t, err)
		assert.Empty(t, out.Pending)
	})
}

func TestTurnState_Queries(t *testing.T) {
	s := TurnState{Question: "q"}
	assert.Equal(t, []string{"q"}, s.Queries())

	s.Pending = []string{"a", "b"}
	assert.Equal(t, []string{"a", "b"}, s.Queries())
}

func TestFilterSubqueries(t *testing.T) {
	tests := []struct {
		name       string
		existing   []string
		candidates []string
		max        int
		want       []string
	}{
		{"empty", nil, nil, 3, []string{}},
		{"trims and drops blanks", nil, []string{" a ", "", "  "}, 3, []string{"a"}},
		{"drops existing", []string{"What is a tort?"}, []string{"what is a tort?", "b"}, 3, []string{"b"}},
		{"drops repeats within batch", nil, []string{"a", "A", "b"}, 3, []string{"a", "b"}},
		{"caps", nil, []string{"a", "b", "c", "d"}, 2, []string{"a", "b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FilterSubqueries(tt.existing, tt.candidates, tt.max)
			assert.NotNil(t, got)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFilterSubqueries_NeverDuplicates(t *testing.T) {
	vocab := []string{"a", "b", "c", "d", "e", "A", " b", "C ", ""}
	rng := rand.New(rand.NewSource(7))

	for i := 0; i < 200; i++ {
		var all []string
		for round := 0; round < 4; round++ {
			batch := make([]string, rng.Intn(6))
			for j := range batch {
				batch[j] = vocab[rng.Intn(len(vocab))]
			}
			fresh := FilterSubqueries(all, batch, 3)
			assert.LessOrEqual(t, len(fresh), 3)
			all = append(all, fresh...)
		}

		seen := map[string]bool{}
		for _, q := range all {
			key := normalizeQuery(q)
			require.NotEmpty(t, key)
			require.False(t, seen[key], "duplicate %q in %v", q, all)
			seen[key] = true
		}
	}
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, "Looking for supporting documents", Describe(RouteNeedsSearch))
	assert.Equal(t, "Querying graph relationships", Describe(RouteSearchGraph))
	assert.Equal(t, "Querying semantic context", Describe(RouteSearchVector))
	assert.Equal(t, "Generating new sub-queries", Describe(RouteGenerateSubqueries))
	assert.Equal(t, "Done! Generating final answer", Describe(RouteAnswerFinal))
	assert.Equal(t, UnknownStep, Describe(Route("teleport")))
}

func TestConfig(t *testing.T) {
	t.Run("deadline", func(t *testing.T) {
		c := DefaultConfig()
		c.CallTimeout = 10 * time.Second
		assert.Equal(t, 180*time.Second, c.Deadline())

		c.InvocationTimeout = 5 * time.Second
		assert.Equal(t, 5*time.Second, c.Deadline())

		c = Config{}
		assert.Zero(t, c.Deadline())
	})

	t.Run("normalize", func(t *testing.T) {
		c, err := Config{}.normalize()
		require.NoError(t, err)
		assert.Equal(t, 0, c.MaxDepth)
		assert.Equal(t, 3, c.MaxSubqueries)
		assert.Equal(t, 25, c.HistoryWindow)
		assert.Equal(t, 10, c.VectorK)
		assert.Equal(t, TopologyFull, c.Topology)

		_, err = Config{MaxDepth: -1}.normalize()
		assert.Error(t, err)
		_, err = Config{Topology: "ring"}.normalize()
		assert.Error(t, err)
		_, err = Config{CallTimeout: -1}.normalize()
		assert.Error(t, err)
	})

	t.Run("max steps cover the deepest path", func(t *testing.T) {
		for depth := 0; depth <= 5; depth++ {
			c := Config{MaxDepth: depth}
			// entry, depth*(generate, route, search), final route, answer
			assert.GreaterOrEqual(t, c.maxSteps(), 1+3*depth+2)
		}
	})
}
