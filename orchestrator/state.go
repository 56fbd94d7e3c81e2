package orchestrator

import (
	"errors"
	"fmt"

	"github.com/smallnest/lexgraph/backend"
	"github.com/smallnest/lexgraph/graph"
)

var (
	ErrAnswerAlreadySet = errors.New("answer already set")
	ErrDepthDecreased   = errors.New("depth cannot decrease")
	ErrQuestionChanged  = errors.New("question is immutable")
)

// TurnState is threaded through one invocation. Nodes return partial
// updates that are merged by turnSchema.
type TurnState struct {
	SessionID string
	Question  string
	Answer    string

	// Route is the most recent routing decision.
	Route Route

	// Subqueries holds every sub-question generated this invocation.
	Subqueries []string
	// Pending is the latest batch, consumed by the next search.
	Pending []string

	Documents []backend.Document
	Failures  []Failure

	// Depth counts completed search executions.
	Depth int
}

// Failure records a sub-query whose generated backend query was malformed.
type Failure struct {
	Node  string `json:"node"`
	Query string `json:"query"`
	Err   string `json:"error"`
}

// Queries returns the pending sub-queries, or the question when there are
// none.
func (s TurnState) Queries() []string {
	if len(s.Pending) == 0 {
		return []string{s.Question}
	}
	return s.Pending
}

func turnSchema() graph.Schema[TurnState] {
	return graph.SchemaFunc[TurnState]{MergeFunc: mergeTurn}
}

// mergeTurn applies update to current:
// Documents and Failures append, Depth takes the larger value and may not
// decrease, Subqueries and Pending replace when non-nil, Answer is written
// once, SessionID and Question are fixed after the first write.
func mergeTurn(current, update TurnState) (TurnState, error) {
	out := current

	if update.SessionID != "" {
		if current.SessionID != "" && update.SessionID != current.SessionID {
			return current, fmt.Errorf("session id is immutable: %q", update.SessionID)
		}
		out.SessionID = update.SessionID
	}
	if update.Question != "" {
		if current.Question != "" && update.Question != current.Question {
			return current, ErrQuestionChanged
		}
		out.Question = update.Question
	}
	if update.Answer != "" {
		if current.Answer != "" {
			return current, ErrAnswerAlreadySet
		}
		out.Answer = update.Answer
	}
	if update.Depth != 0 {
		if update.Depth < current.Depth {
			return current, fmt.Errorf("%w: %d -> %d", ErrDepthDecreased, current.Depth, update.Depth)
		}
		out.Depth = update.Depth
	}

	out.Route = graph.OverwriteReducer(current.Route, update.Route)
	if update.Subqueries != nil {
		out.Subqueries = update.Subqueries
	}
	if update.Pending != nil {
		out.Pending = update.Pending
	}
	out.Documents = graph.AppendReducer(current.Documents, update.Documents)
	out.Failures = graph.AppendReducer(current.Failures, update.Failures)
	return out, nil
}
