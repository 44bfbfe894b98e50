package testutil

import (
	"fmt"

	"github.com/hupe1980/agentcookbook/core"
	"github.com/hupe1980/agentcookbook/model"
)

// ResponseBuilder provides a fluent helper for constructing scripted model
// responses in tests.
// Example:
//
//	resp := NewResponseBuilder().Call("get_weather", `{"city":"SF"}`).Build()
//
// Chain only the parts you need; sensible defaults are applied.
type ResponseBuilder struct {
	id        string
	model     string
	textParts []string
	funcCalls []core.FunctionCall
	usage     *model.TokenUsage
	finish    string
	logprobs  []model.TokenLogprob
}

// NewResponseBuilder creates a builder for an assistant response.
func NewResponseBuilder() *ResponseBuilder { return &ResponseBuilder{} }

// ID overrides the auto-generated response ID (chainable).
func (b *ResponseBuilder) ID(id string) *ResponseBuilder { b.id = id; return b }

// Model sets the reported model name (chainable).
func (b *ResponseBuilder) Model(name string) *ResponseBuilder { b.model = name; return b }

// Text appends a text part (chainable).
func (b *ResponseBuilder) Text(t string) *ResponseBuilder {
	b.textParts = append(b.textParts, t)
	return b
}

// Call adds a function call with the provided name and JSON argument string.
// Call IDs are numbered call_1, call_2, ... in order (chainable).
func (b *ResponseBuilder) Call(name, args string) *ResponseBuilder {
	id := fmt.Sprintf("call_%d", len(b.funcCalls)+1)
	b.funcCalls = append(b.funcCalls, core.FunctionCall{ID: id, Name: name, Arguments: args})

	return b
}

// Usage sets the token usage (chainable).
func (b *ResponseBuilder) Usage(prompt, completion int) *ResponseBuilder {
	b.usage = &model.TokenUsage{PromptTokens: prompt, CompletionTokens: completion, TotalTokens: prompt + completion}
	return b
}

// Finish sets the finish reason (chainable).
func (b *ResponseBuilder) Finish(reason string) *ResponseBuilder { b.finish = reason; return b }

// Logprobs sets the token log probabilities (chainable).
func (b *ResponseBuilder) Logprobs(lps ...model.TokenLogprob) *ResponseBuilder {
	b.logprobs = append(b.logprobs, lps...)
	return b
}

// Build constructs the model.Response value.
func (b *ResponseBuilder) Build() model.Response {
	parts := make([]core.Part, 0, len(b.textParts)+len(b.funcCalls))
	for _, t := range b.textParts {
		parts = append(parts, core.TextPart{Text: t})
	}

	for _, fc := range b.funcCalls {
		parts = append(parts, core.FunctionCallPart{FunctionCall: fc})
	}

	id := b.id
	if id == "" {
		id = core.NewID()
	}

	return model.Response{
		ID:           id,
		Model:        b.model,
		Content:      core.Content{Role: core.RoleAssistant, Parts: parts},
		FinishReason: b.finish,
		Usage:        b.usage,
		Logprobs:     b.logprobs,
	}
}
