package testutil

import (
	"github.com/hupe1980/agentcookbook/core"
)

// StateBuilder helps construct thread state with fluent chaining for tests.
// Example:
//
//	st := NewStateBuilder().Value("k", "v").UserText("hi").Build()
type StateBuilder struct {
	values   map[string]any
	messages []core.Content
}

// NewStateBuilder creates an empty builder.
func NewStateBuilder() *StateBuilder {
	return &StateBuilder{values: map[string]any{}}
}

// Value sets or overwrites a state value (chainable).
func (b *StateBuilder) Value(key string, val any) *StateBuilder {
	b.values[key] = val
	return b
}

// Message appends a message to the history (chainable).
func (b *StateBuilder) Message(msgs ...core.Content) *StateBuilder {
	b.messages = append(b.messages, msgs...)
	return b
}

// UserText appends a user message (chainable).
func (b *StateBuilder) UserText(t string) *StateBuilder {
	return b.Message(core.NewUserText(t))
}

// AssistantText appends an assistant message (chainable).
func (b *StateBuilder) AssistantText(t string) *StateBuilder {
	return b.Message(core.NewAssistantText(t))
}

// Turns appends n alternating user/assistant messages (chainable).
func (b *StateBuilder) Turns(n int) *StateBuilder {
	for i := 0; i < n; i++ {
		if i%2 == 0 {
			b.UserText("message")
		} else {
			b.AssistantText("reply")
		}
	}

	return b
}

// Build returns a *core.State with pre-populated values and history.
func (b *StateBuilder) Build() *core.State {
	s := core.NewState(b.values)
	s.Append(b.messages...)

	return s
}
