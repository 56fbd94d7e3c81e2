package llm

import (
	"context"

	"github.com/sashabaranov/go-openai"
)

// OpenAIConfig configures NewOpenAI.
type OpenAIConfig struct {
	Token       string
	BaseURL     string
	Model       string
	Temperature float32
}

// OpenAI calls the chat completions API through go-openai. Structured output
// uses the strict json_schema response format.
type OpenAI struct {
	client      *openai.Client
	model       string
	temperature float32
}

// NewOpenAI creates a provider from cfg. An empty Model selects gpt-4o-mini.
func NewOpenAI(cfg OpenAIConfig) *OpenAI {
	occ := openai.DefaultConfig(cfg.Token)
	if cfg.BaseURL != "" {
		occ.BaseURL = cfg.BaseURL
	}
	o := NewOpenAIWithClient(openai.NewClientWithConfig(occ), cfg.Model)
	o.temperature = cfg.Temperature
	return o
}

// NewOpenAIWithClient wraps an existing client.
func NewOpenAIWithClient(client *openai.Client, model string) *OpenAI {
	if model == "" {
		model = openai.GPT4oMini
	}
	return &OpenAI{client: client, model: model}
}

// Generate implements Model.
func (o *OpenAI) Generate(ctx context.Context, messages []Message) (string, error) {
	msgs := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: string(m.Role), Content: m.Content})
	}
	return o.complete(ctx, openai.ChatCompletionRequest{
		Model:       o.model,
		Messages:    msgs,
		Temperature: o.temperature,
	})
}

// GenerateStructured implements Model.
func (o *OpenAI) GenerateStructured(ctx context.Context, prompt string, schema Schema) ([]byte, error) {
	def := schema.Definition
	text, err := o.complete(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: o.temperature,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:        schema.Name,
				Description: schema.Description,
				Schema:      &def,
				Strict:      true,
			},
		},
	})
	if err != nil {
		return nil, err
	}
	return ExtractJSON([]byte(text))
}

func (o *OpenAI) complete(ctx context.Context, req openai.ChatCompletionRequest) (string, error) {
	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	return resp.Choices[0].Message.Content, nil
}
