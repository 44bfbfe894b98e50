package core

import (
	"context"

	"github.com/hupe1980/agentcookbook/logging"
)

// ToolContext is the surface a tool implementation sees while it runs: the
// request context, the invocation-scoped runtime value supplied by the caller,
// and read/write access to the thread state.
type ToolContext struct {
	ctx            context.Context
	functionCallID string
	toolName       string
	runtime        any
	state          *State
	logger         logging.Logger
}

// ToolContextOptions configures NewToolContext.
type ToolContextOptions struct {
	Runtime any
	State   *State
	Logger  logging.Logger
}

// NewToolContext constructs a tool context bound to one function call.
func NewToolContext(ctx context.Context, functionCallID, toolName string, optFns ...func(o *ToolContextOptions)) *ToolContext {
	opts := ToolContextOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.State == nil {
		opts.State = NewState(nil)
	}

	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	return &ToolContext{
		ctx:            ctx,
		functionCallID: functionCallID,
		toolName:       toolName,
		runtime:        opts.Runtime,
		state:          opts.State,
		logger:         opts.Logger,
	}
}

// Context returns the context associated with the tool invocation.
func (tc *ToolContext) Context() context.Context { return tc.ctx }

// Logger returns the logger associated with the tool invocation.
func (tc *ToolContext) Logger() logging.Logger { return tc.logger }

// FunctionCallID returns the id of the call being answered.
func (tc *ToolContext) FunctionCallID() string { return tc.functionCallID }

// ToolName returns the name of the tool being executed.
func (tc *ToolContext) ToolName() string { return tc.toolName }

// Runtime returns the value passed by the caller for this invocation.
func (tc *ToolContext) Runtime() any { return tc.runtime }

// GetState retrieves the state value associated with the given key.
func (tc *ToolContext) GetState(k string) (any, bool) { return tc.state.Get(k) }

// SetState records a state value visible to later model calls and tools.
func (tc *ToolContext) SetState(k string, v any) { tc.state.Set(k, v) }

// State exposes the thread state.
func (tc *ToolContext) State() *State { return tc.state }

// RuntimeAs returns the runtime value as T. Both T and *T are accepted.
func RuntimeAs[T any](tc *ToolContext) (T, bool) {
	var zero T
	if tc == nil || tc.runtime == nil {
		return zero, false
	}

	switch v := tc.runtime.(type) {
	case T:
		return v, true
	case *T:
		if v == nil {
			return zero, false
		}

		return *v, true
	}

	return zero, false
}
