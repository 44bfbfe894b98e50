package core

import (
	"time"

	"github.com/google/uuid"
)

// Graph nodes that produce events during an agent run.
const (
	NodeInput = "input"
	NodeModel = "model"
	NodeTools = "tools"
)

// Event records one step of an agent run. Messages holds what the step added
// to the conversation; State is a snapshot taken right after the step.
type Event struct {
	ID        string         `json:"id"`
	ThreadID  string         `json:"thread_id,omitempty"`
	Node      string         `json:"node"`
	Step      int            `json:"step"`
	Messages  []Content      `json:"messages,omitempty"`
	State     *State         `json:"state,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// NewEvent creates an event for node carrying the messages it produced.
func NewEvent(node string, step int, msgs ...Content) Event {
	return Event{
		ID:        NewID(),
		Node:      node,
		Step:      step,
		Messages:  msgs,
		Timestamp: time.Now().UTC(),
	}
}

// NewID generates a new unique identifier.
func NewID() string { return uuid.NewString() }

// FunctionCalls returns every function call in the event's messages.
func (e Event) FunctionCalls() []FunctionCall {
	var calls []FunctionCall
	for _, m := range e.Messages {
		calls = append(calls, m.FunctionCalls()...)
	}

	return calls
}

// FunctionResponses returns every function response in the event's messages.
func (e Event) FunctionResponses() []FunctionResponse {
	var responses []FunctionResponse
	for _, m := range e.Messages {
		responses = append(responses, m.FunctionResponses()...)
	}

	return responses
}

// IsFinalResponse reports whether the event is a model turn with no pending
// tool calls.
func (e Event) IsFinalResponse() bool {
	return e.Node == NodeModel && len(e.FunctionCalls()) == 0
}
