package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	lcopenai "github.com/tmc/langchaingo/llms/openai"
)

// LangChain adapts a langchaingo llms.Model. Structured output uses JSON
// mode with the schema embedded in the system message.
type LangChain struct {
	model llms.Model
	opts  []llms.CallOption
}

// NewLangChain wraps model. opts are applied to every call.
func NewLangChain(model llms.Model, opts ...llms.CallOption) *LangChain {
	return &LangChain{model: model, opts: opts}
}

// NewLangChainOpenAI connects to an OpenAI compatible endpoint through
// langchaingo. An empty baseURL uses the provider default.
func NewLangChainOpenAI(model, token, baseURL string, opts ...llms.CallOption) (*LangChain, error) {
	lopts := []lcopenai.Option{lcopenai.WithModel(model)}
	if token != "" {
		lopts = append(lopts, lcopenai.WithToken(token))
	}
	if baseURL != "" {
		lopts = append(lopts, lcopenai.WithBaseURL(baseURL))
	}
	client, err := lcopenai.New(lopts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create openai client: %w", err)
	}
	return NewLangChain(client, opts...), nil
}

// NewLangChainOllama connects to an Ollama server.
func NewLangChainOllama(model, serverURL string, opts ...llms.CallOption) (*LangChain, error) {
	lopts := []ollama.Option{ollama.WithModel(model)}
	if serverURL != "" {
		lopts = append(lopts, ollama.WithServerURL(serverURL))
	}
	client, err := ollama.New(lopts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create ollama client: %w", err)
	}
	return NewLangChain(client, opts...), nil
}

// Generate implements Model.
func (l *LangChain) Generate(ctx context.Context, messages []Message) (string, error) {
	content := make([]llms.MessageContent, 0, len(messages))
	for _, m := range messages {
		content = append(content, llms.TextParts(chatMessageType(m.Role), m.Content))
	}
	return l.call(ctx, content, l.opts...)
}

// GenerateStructured implements Model.
func (l *LangChain) GenerateStructured(ctx context.Context, prompt string, schema Schema) ([]byte, error) {
	def, err := json.Marshal(&schema.Definition)
	if err != nil {
		return nil, fmt.Errorf("failed to encode schema %s: %w", schema.Name, err)
	}

	system := fmt.Sprintf(
		"Respond with a single JSON object and nothing else. %s\nThe object must conform to this JSON schema (%s):\n%s",
		schema.Description, schema.Name, def)
	content := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, system),
		llms.TextParts(llms.ChatMessageTypeHuman, prompt),
	}

	opts := append([]llms.CallOption{llms.WithJSONMode()}, l.opts...)
	text, err := l.call(ctx, content, opts...)
	if err != nil {
		return nil, err
	}
	return ExtractJSON([]byte(text))
}

func (l *LangChain) call(ctx context.Context, content []llms.MessageContent, opts ...llms.CallOption) (string, error) {
	resp, err := l.model.GenerateContent(ctx, content, opts...)
	if err != nil {
		return "", err
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	return resp.Choices[0].Content, nil
}

func chatMessageType(r Role) llms.ChatMessageType {
	switch r {
	case RoleSystem:
		return llms.ChatMessageTypeSystem
	case RoleAssistant:
		return llms.ChatMessageTypeAI
	default:
		return llms.ChatMessageTypeHuman
	}
}
