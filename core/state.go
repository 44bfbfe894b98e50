package core

import (
	"fmt"
	"sync"
)

// State is the evolving conversation of one thread: the message history plus
// free-form values owned by middleware and tools. It is safe for concurrent
// use; pass it by pointer.
type State struct {
	mu       sync.RWMutex
	Messages []Content     `json:"messages"`
	Values   map[string]any `json:"values,omitempty"`
}

// NewState creates a state seeded with a copy of the given values.
func NewState(values map[string]any) *State {
	s := &State{Values: make(map[string]any, len(values))}
	for k, v := range values {
		s.Values[k] = v
	}

	return s
}

// Get returns the value stored under key.
func (s *State) Get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.Values[key]

	return v, ok
}

// Set stores value under key.
func (s *State) Set(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Values == nil {
		s.Values = map[string]any{}
	}

	s.Values[key] = value
}

// Merge copies every entry of delta into the state values.
func (s *State) Merge(delta map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Values == nil {
		s.Values = make(map[string]any, len(delta))
	}

	for k, v := range delta {
		s.Values[k] = v
	}
}

// Append adds messages to the history.
func (s *State) Append(msgs ...Content) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Messages = append(s.Messages, msgs...)
}

// History returns a copy of the message slice.
func (s *State) History() []Content {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Content, len(s.Messages))
	copy(out, s.Messages)

	return out
}

// Len returns the number of messages.
func (s *State) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.Messages)
}

// LastMessage returns the most recent message, if any.
func (s *State) LastMessage() (Content, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.Messages) == 0 {
		return Content{}, false
	}

	return s.Messages[len(s.Messages)-1], true
}

// Snapshot returns a copy of the values map.
func (s *State) Snapshot() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]any, len(s.Values))
	for k, v := range s.Values {
		out[k] = v
	}

	return out
}

// Clone returns an independent copy. Nested values are shared.
func (s *State) Clone() *State {
	s.mu.RLock()
	defer s.mu.RUnlock()

	clone := &State{Messages: make([]Content, len(s.Messages)), Values: make(map[string]any, len(s.Values))}
	copy(clone.Messages, s.Messages)

	for k, v := range s.Values {
		clone.Values[k] = v
	}

	return clone
}

// IntValue reads a numeric value regardless of whether it was stored as an
// int or decoded from JSON as a float64.
func (s *State) IntValue(key string) (int, error) {
	v, ok := s.Get(key)
	if !ok {
		return 0, nil
	}

	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		return int(n), nil
	default:
		return 0, fmt.Errorf("state value %q is %T, not a number", key, v)
	}
}

// StringValue reads a string value, returning "" when absent or mistyped.
func (s *State) StringValue(key string) string {
	v, _ := s.Get(key)
	str, _ := v.(string)

	return str
}
