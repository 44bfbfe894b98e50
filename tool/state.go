package tool

import (
	"fmt"

	"github.com/hupe1980/agentcookbook/core"
)

// StateTool reads values from the thread state, letting the model inspect
// what middleware or earlier tools recorded.
type StateTool struct {
	name        string
	description string
	keys        []string
}

// NewStateReader creates a tool returning the state values under keys. With
// a single key the bare value is returned; with several a map is returned.
// Missing keys are reported as an error string the model can act on.
func NewStateReader(name, description string, keys ...string) *StateTool {
	return &StateTool{name: name, description: description, keys: keys}
}

// Name returns the tool identifier.
func (t *StateTool) Name() string { return t.name }

// Description returns the tool description.
func (t *StateTool) Description() string { return t.description }

// Parameters returns an empty object schema; the tool takes no arguments.
func (t *StateTool) Parameters() map[string]any {
	return map[string]any{"type": "object", "properties": map[string]any{}}
}

// Call reads the configured keys.
func (t *StateTool) Call(toolCtx *core.ToolContext, _ map[string]any) (any, error) {
	values := make(map[string]any, len(t.keys))

	for _, k := range t.keys {
		v, ok := toolCtx.GetState(k)
		if !ok {
			return nil, NewToolError(t.name, fmt.Sprintf("state key %q is not set", k), "STATE_KEY_MISSING")
		}

		values[k] = v
	}

	toolCtx.Logger().Debug("tool.state.read", "tool", t.name, "keys", t.keys)

	if len(t.keys) == 1 {
		return values[t.keys[0]], nil
	}

	return values, nil
}
