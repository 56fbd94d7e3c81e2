// Package llm is the language model service used by lexgraph.
//
// A Model produces free text from a message list and structured JSON that
// conforms to a JSON schema. Decide and List build on GenerateStructured to
// return closed results: Decide yields exactly one value from an allowed set
// or an error, and routing never parses free text.
//
// Two providers are included: LangChain over any langchaingo llms.Model
// (JSON mode with the schema embedded in the prompt) and OpenAI over
// sashabaranov/go-openai (strict JSON schema response format).
package llm

import (
	"context"
	"errors"

	"github.com/sashabaranov/go-openai/jsonschema"
)

var (
	// ErrEmptyResponse is returned when the provider returns no choices.
	ErrEmptyResponse = errors.New("llm: empty response")

	// ErrInvalidChoice is returned by Decide when the model picks a value
	// outside the allowed set.
	ErrInvalidChoice = errors.New("llm: invalid choice")

	// ErrInvalidOutput is returned when structured output cannot be decoded.
	ErrInvalidOutput = errors.New("llm: invalid structured output")
)

// Role is the author of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one chat message sent to a model.
type Message struct {
	Role    Role
	Content string
}

// System returns a system message.
func System(content string) Message { return Message{Role: RoleSystem, Content: content} }

// User returns a user message.
func User(content string) Message { return Message{Role: RoleUser, Content: content} }

// Assistant returns an assistant message.
func Assistant(content string) Message { return Message{Role: RoleAssistant, Content: content} }

// Schema names a JSON schema for structured output.
type Schema struct {
	Name        string
	Description string
	Definition  jsonschema.Definition
}

// Model is a language model provider.
type Model interface {
	// Generate returns the model's reply to messages.
	Generate(ctx context.Context, messages []Message) (string, error)

	// GenerateStructured returns a JSON document conforming to schema.
	GenerateStructured(ctx context.Context, prompt string, schema Schema) ([]byte, error)
}
