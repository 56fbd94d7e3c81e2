package llm

import (
	"context"
	"fmt"
	"sync"
)

// Call records one request received by a MockModel.
type Call struct {
	Schema   string // empty for Generate
	Prompt   string
	Messages []Message
}

// MockModel is a scripted Model for tests. Structured replies are looked up
// by schema name and consumed in order; the last reply for a schema repeats.
type MockModel struct {
	mu         sync.Mutex
	structured map[string][]reply
	texts      []reply
	calls      []Call
}

type reply struct {
	out string
	err error
}

// NewMockModel creates an empty MockModel.
func NewMockModel() *MockModel {
	return &MockModel{structured: make(map[string][]reply)}
}

// OnStructured queues a JSON reply for schema.
func (m *MockModel) OnStructured(schema, out string) *MockModel {
	return m.push(schema, reply{out: out})
}

// FailStructured queues an error for schema.
func (m *MockModel) FailStructured(schema string, err error) *MockModel {
	return m.push(schema, reply{err: err})
}

// OnGenerate queues a free text reply.
func (m *MockModel) OnGenerate(out string) *MockModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.texts = append(m.texts, reply{out: out})
	return m
}

// FailGenerate queues a free text error.
func (m *MockModel) FailGenerate(err error) *MockModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.texts = append(m.texts, reply{err: err})
	return m
}

func (m *MockModel) push(schema string, r reply) *MockModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.structured[schema] = append(m.structured[schema], r)
	return m
}

// Calls returns the requests received so far.
func (m *MockModel) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Call(nil), m.calls...)
}

// CallsFor returns the structured requests made with schema.
func (m *MockModel) CallsFor(schema string) []Call {
	var out []Call
	for _, c := range m.Calls() {
		if c.Schema == schema {
			out = append(out, c)
		}
	}
	return out
}

// Generate implements Model.
func (m *MockModel) Generate(ctx context.Context, messages []Message) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Messages: append([]Message(nil), messages...)})
	if len(m.texts) == 0 {
		return "", fmt.Errorf("mock: no text reply queued")
	}
	r := m.texts[0]
	if len(m.texts) > 1 {
		m.texts = m.texts[1:]
	}
	return r.out, r.err
}

// GenerateStructured implements Model.
func (m *MockModel) GenerateStructured(ctx context.Context, prompt string, schema Schema) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Schema: schema.Name, Prompt: prompt})
	queue := m.structured[schema.Name]
	if len(queue) == 0 {
		return nil, fmt.Errorf("mock: no reply queued for schema %q", schema.Name)
	}
	r := queue[0]
	if len(queue) > 1 {
		m.structured[schema.Name] = queue[1:]
	}
	if r.err != nil {
		return nil, r.err
	}
	return []byte(r.out), nil
}
