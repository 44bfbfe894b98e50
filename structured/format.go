// Package structured constrains model output to a schema derived from a Go
// type and decodes it back into that type.
package structured

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/hupe1980/agentcookbook/internal/util"
	"github.com/hupe1980/agentcookbook/model"
)

// ErrNoStructuredResponse is returned when a response carries neither a
// matching tool call nor JSON text.
var ErrNoStructuredResponse = errors.New("no structured response in model output")

// Format names a JSON schema the model output must follow.
type Format struct {
	Name        string
	Description string
	Schema      map[string]any
	Strict      bool
}

// For derives a Format from T. Struct tags json, description, enum, minimum
// and maximum shape the schema; the format is named after the type.
func For[T any](optFns ...func(f *Format)) Format {
	var zero T

	t := reflect.TypeOf(zero)
	for t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	name := "response"
	if t != nil && t.Name() != "" {
		name = t.Name()
	}

	f := Format{Name: name, Schema: util.CreateSchema(zero)}
	for _, fn := range optFns {
		fn(&f)
	}

	return f
}

// FromSchema builds a Format from a hand-written JSON schema.
func FromSchema(name, description string, schema map[string]any) Format {
	return Format{Name: name, Description: description, Schema: schema}
}

// WithDescription sets the format description shown to the model.
func WithDescription(desc string) func(f *Format) {
	return func(f *Format) { f.Description = desc }
}

// ResponseFormat returns the native json_schema response format.
func (f Format) ResponseFormat() *model.ResponseFormat {
	return &model.ResponseFormat{
		Type:        model.ResponseFormatJSONSchema,
		Name:        f.Name,
		Description: f.Description,
		Schema:      f.Schema,
		Strict:      f.Strict,
	}
}

// ToolDefinition exposes the format as a tool the model answers by calling.
func (f Format) ToolDefinition() model.ToolDefinition {
	desc := f.Description
	if desc == "" {
		desc = fmt.Sprintf("Respond with a %s. Call this tool exactly once with the final answer.", f.Name)
	}

	return model.NewToolDefinition(f.Name, desc, f.Schema)
}

// Validate checks decoded JSON data against the schema.
func (f Format) Validate(data map[string]any) error {
	if f.Schema == nil {
		return nil
	}

	return util.ValidateParameters(data, f.Schema)
}

// SchemaText renders the schema as indented JSON for prompt-based methods.
func (f Format) SchemaText() string {
	b, err := json.MarshalIndent(f.Schema, "", "  ")
	if err != nil {
		return "{}"
	}

	return string(b)
}

// Decode parses raw JSON, validates it against f and unmarshals it into T.
// Markdown code fences around the JSON are tolerated.
func Decode[T any](raw string, f Format) (T, error) {
	var out T

	raw = StripFences(raw)
	if raw == "" {
		return out, ErrNoStructuredResponse
	}

	var data map[string]any
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return out, fmt.Errorf("invalid JSON for %s: %w", f.Name, err)
	}

	if err := f.Validate(data); err != nil {
		return out, fmt.Errorf("%s does not match schema: %w", f.Name, err)
	}

	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return out, fmt.Errorf("failed to decode %s: %w", f.Name, err)
	}

	return out, nil
}

// StripFences removes a surrounding ``` or ```json fence and whitespace.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}

	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}

	s = strings.TrimSuffix(strings.TrimSpace(s), "```")

	return strings.TrimSpace(s)
}
