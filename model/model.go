package model

import (
	"context"

	"github.com/hupe1980/agentcookbook/core"
)

// ToolDefinition declaratively exposes a callable function to the model.
type ToolDefinition struct {
	Type     string             `json:"type"` // "function"
	Function FunctionDefinition `json:"function"`
}

// FunctionDefinition describes an individual function (tool) exposed to the model.
// Parameters is a JSON Schema object.
type FunctionDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// NewToolDefinition builds a function tool definition.
func NewToolDefinition(name, description string, parameters map[string]any) ToolDefinition {
	return ToolDefinition{
		Type: "function",
		Function: FunctionDefinition{
			Name:        name,
			Description: description,
			Parameters:  parameters,
		},
	}
}

// Tool choice modes.
const (
	ToolChoiceAuto     = "auto"
	ToolChoiceRequired = "required"
	ToolChoiceNone     = "none"
	ToolChoiceTool     = "tool"
)

// ToolChoice controls whether and which tool the model must call.
type ToolChoice struct {
	Mode string `json:"mode"`
	Name string `json:"name,omitempty"` // set when Mode is ToolChoiceTool
}

// ToolChoiceFor forces a call to the named tool.
func ToolChoiceFor(name string) *ToolChoice {
	return &ToolChoice{Mode: ToolChoiceTool, Name: name}
}

// Response format types.
const (
	ResponseFormatJSONSchema = "json_schema"
	ResponseFormatJSONObject = "json_object"
)

// ResponseFormat asks the provider to constrain the final text to JSON.
type ResponseFormat struct {
	Type        string         `json:"type"`
	Name        string         `json:"name,omitempty"`
	Description string         `json:"description,omitempty"`
	Schema      map[string]any `json:"schema,omitempty"`
	Strict      bool           `json:"strict,omitempty"`
}

// Request captures the normalized model input.
type Request struct {
	Instructions      string           `json:"instructions"`
	Contents          []core.Content   `json:"contents"`
	Tools             []ToolDefinition `json:"tools,omitempty"`
	ToolChoice        *ToolChoice      `json:"tool_choice,omitempty"`
	ParallelToolCalls *bool            `json:"parallel_tool_calls,omitempty"`
	ResponseFormat    *ResponseFormat  `json:"response_format,omitempty"`
	Settings          Settings         `json:"settings"`
	Stream            bool             `json:"stream,omitempty"`
}

// LastUserText returns the text of the most recent user message.
func (r Request) LastUserText() string {
	for i := len(r.Contents) - 1; i >= 0; i-- {
		if r.Contents[i].Role == core.RoleUser {
			return r.Contents[i].Text()
		}
	}

	return ""
}

// TokenUsage captures token usage statistics for a response.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
	ReasoningTokens  int `json:"reasoning_tokens,omitempty"`
	CachedTokens     int `json:"cached_tokens,omitempty"`
}

// Add accumulates o into u.
func (u *TokenUsage) Add(o TokenUsage) {
	u.PromptTokens += o.PromptTokens
	u.CompletionTokens += o.CompletionTokens
	u.TotalTokens += o.TotalTokens
	u.ReasoningTokens += o.ReasoningTokens
	u.CachedTokens += o.CachedTokens
}

// TokenLogprob is the log probability of one generated token and its top
// alternatives.
type TokenLogprob struct {
	Token       string       `json:"token"`
	Logprob     float64      `json:"logprob"`
	TopLogprobs []TopLogprob `json:"top_logprobs,omitempty"`
}

// TopLogprob is one alternative candidate for a token position.
type TopLogprob struct {
	Token   string  `json:"token"`
	Logprob float64 `json:"logprob"`
}

// Response is a (partial or final) chunk emitted by a streaming model.
type Response struct {
	ID           string         `json:"id"`
	Model        string         `json:"model,omitempty"`
	Partial      bool           `json:"partial"` // Indicates if this is a partial response
	Content      core.Content   `json:"content"`
	FinishReason string         `json:"finish_reason"` // "stop", "length", "tool_calls", etc.
	Usage        *TokenUsage    `json:"usage,omitempty"`
	Logprobs     []TokenLogprob `json:"logprobs,omitempty"`
}

// Text returns the concatenated text of the response.
func (r *Response) Text() string {
	if r == nil {
		return ""
	}

	return r.Content.Text()
}

// Info contains metadata about a model implementation.
type Info struct {
	Name                     string `json:"name"`
	Provider                 string `json:"provider"` // "openai", "anthropic", "gemini", "mock"
	SupportsTools            bool   `json:"supports_tools"`
	SupportsStructuredOutput bool   `json:"supports_structured_output"`
	SupportsVision           bool   `json:"supports_vision"`
}

// Model is the minimal interface required by agents to drive generation.
//
// Generate streams zero or more partial responses followed by exactly one
// final response on the first channel, or a single error on the second.
// Both channels are closed when generation ends.
type Model interface {
	Generate(ctx context.Context, req Request) (<-chan Response, <-chan error)

	// Info returns information about the model implementation.
	Info() Info
}
