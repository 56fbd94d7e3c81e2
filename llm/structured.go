package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/sashabaranov/go-openai/jsonschema"
)

const choiceField = "choice"

// ChoiceSchema is the schema Decide sends: one string field restricted to
// allowed.
func ChoiceSchema(name string, allowed []string) Schema {
	return Schema{
		Name:        name,
		Description: "Select exactly one of the allowed values.",
		Definition: jsonschema.Definition{
			Type: jsonschema.Object,
			Properties: map[string]jsonschema.Definition{
				choiceField: {
					Type: jsonschema.String,
					Enum: allowed,
				},
			},
			Required:             []string{choiceField},
			AdditionalProperties: false,
		},
	}
}

// ListSchema is the schema List sends: one array of strings under field.
func ListSchema(name, field string, max int) Schema {
	desc := "A list of strings."
	if max > 0 {
		desc = fmt.Sprintf("A list of at most %d strings.", max)
	}
	return Schema{
		Name:        name,
		Description: desc,
		Definition: jsonschema.Definition{
			Type: jsonschema.Object,
			Properties: map[string]jsonschema.Definition{
				field: {
					Type:        jsonschema.Array,
					Description: desc,
					Items:       &jsonschema.Definition{Type: jsonschema.String},
				},
			},
			Required:             []string{field},
			AdditionalProperties: false,
		},
	}
}

// Decide asks m to pick one value from allowed. The returned value is always
// one of allowed: the model's answer is trimmed and matched case-insensitively
// and anything else is ErrInvalidChoice.
func Decide(ctx context.Context, m Model, name, prompt string, allowed []string) (string, error) {
	if len(allowed) == 0 {
		return "", fmt.Errorf("%w: no allowed values", ErrInvalidChoice)
	}

	raw, err := m.GenerateStructured(ctx, prompt, ChoiceSchema(name, allowed))
	if err != nil {
		return "", err
	}

	var out map[string]any
	if err := Unmarshal(raw, &out); err != nil {
		return "", err
	}
	got, ok := out[choiceField].(string)
	if !ok {
		return "", fmt.Errorf("%w: missing %q in %s", ErrInvalidChoice, choiceField, raw)
	}

	got = strings.TrimSpace(got)
	for _, a := range allowed {
		if strings.EqualFold(got, a) {
			return a, nil
		}
	}
	return "", fmt.Errorf("%w: %q not in %v", ErrInvalidChoice, got, allowed)
}

// List asks m for a list of strings under field, truncated to max items when
// max is positive.
func List(ctx context.Context, m Model, name, prompt, field string, max int) ([]string, error) {
	raw, err := m.GenerateStructured(ctx, prompt, ListSchema(name, field, max))
	if err != nil {
		return nil, err
	}

	var out map[string][]string
	if err := Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	items := out[field]
	if max > 0 && len(items) > max {
		items = items[:max]
	}
	return items, nil
}

// Unmarshal decodes structured output into v after extracting the JSON
// object from surrounding prose or code fences.
func Unmarshal(raw []byte, v any) error {
	obj, err := ExtractJSON(raw)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(obj, v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidOutput, err)
	}
	return nil
}

// ExtractJSON returns the outermost JSON object in raw.
func ExtractJSON(raw []byte) ([]byte, error) {
	s := bytes.TrimSpace(raw)
	if json.Valid(s) && len(s) > 0 && s[0] == '{' {
		return s, nil
	}

	start := bytes.IndexByte(s, '{')
	end := bytes.LastIndexByte(s, '}')
	if start < 0 || end <= start {
		return nil, fmt.Errorf("%w: no JSON object in %q", ErrInvalidOutput, truncate(string(raw), 200))
	}
	obj := s[start : end+1]
	if !json.Valid(obj) {
		return nil, fmt.Errorf("%w: malformed JSON object %q", ErrInvalidOutput, truncate(string(obj), 200))
	}
	return obj, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
