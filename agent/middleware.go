package agent

import (
	"context"

	"github.com/hupe1980/agentcookbook/core"
	"github.com/hupe1980/agentcookbook/model"
	"github.com/hupe1980/agentcookbook/tool"
)

// ModelRequest is one model call as seen by middleware. Middleware may swap
// the model or edit the request before calling the next handler.
type ModelRequest struct {
	Model    model.Model
	Request  model.Request
	State    *core.State
	Runtime  any
	ThreadID string
}

// ModelHandler performs a model call.
type ModelHandler func(ctx context.Context, req *ModelRequest) (*model.Response, error)

// ToolCall is one tool execution as seen by middleware.
type ToolCall struct {
	Call    core.FunctionCall
	Tool    tool.Tool
	Args    map[string]any
	Context *core.ToolContext
}

// ToolHandler executes a tool call.
type ToolHandler func(ctx context.Context, call *ToolCall) (any, error)

// Middleware hooks into the agent loop. Every field is optional. With several
// middleware the first one registered is the outermost wrapper.
type Middleware struct {
	Name string
	// BeforeModel runs before every model call and may update the state.
	BeforeModel func(ctx context.Context, st *core.State, runtime any) error
	// WrapModelCall intercepts model calls.
	WrapModelCall func(ctx context.Context, req *ModelRequest, next ModelHandler) (*model.Response, error)
	// WrapToolCall intercepts tool executions.
	WrapToolCall func(ctx context.Context, call *ToolCall, next ToolHandler) (any, error)
}

// BeforeModel returns a middleware running fn before each model call.
func BeforeModel(name string, fn func(ctx context.Context, st *core.State, runtime any) error) Middleware {
	return Middleware{Name: name, BeforeModel: fn}
}

// SelectModel returns a middleware choosing the model per call, e.g. by
// conversation length.
func SelectModel(fn func(req *ModelRequest) model.Model) Middleware {
	return Middleware{
		Name: "select_model",
		WrapModelCall: func(ctx context.Context, req *ModelRequest, next ModelHandler) (*model.Response, error) {
			if m := fn(req); m != nil {
				req.Model = m
			}

			return next(ctx, req)
		},
	}
}

// DynamicPrompt returns a middleware replacing the system instructions per call.
func DynamicPrompt(fn func(req *ModelRequest) string) Middleware {
	return Middleware{
		Name: "dynamic_prompt",
		WrapModelCall: func(ctx context.Context, req *ModelRequest, next ModelHandler) (*model.Response, error) {
			req.Request.Instructions = fn(req)
			return next(ctx, req)
		},
	}
}

// HandleToolErrors returns a middleware that turns tool failures into a
// regular tool result produced by fn, so the model sees a friendly message
// instead of a raw error.
func HandleToolErrors(fn func(call *ToolCall, err error) string) Middleware {
	return Middleware{
		Name: "handle_tool_errors",
		WrapToolCall: func(ctx context.Context, call *ToolCall, next ToolHandler) (any, error) {
			result, err := next(ctx, call)
			if err != nil {
				return fn(call, err), nil
			}

			return result, nil
		},
	}
}

func chainModel(mw []Middleware, final ModelHandler) ModelHandler {
	h := final

	for i := len(mw) - 1; i >= 0; i-- {
		wrap := mw[i].WrapModelCall
		if wrap == nil {
			continue
		}

		next := h
		h = func(ctx context.Context, req *ModelRequest) (*model.Response, error) {
			return wrap(ctx, req, next)
		}
	}

	return h
}

func chainTool(mw []Middleware, final ToolHandler) ToolHandler {
	h := final

	for i := len(mw) - 1; i >= 0; i-- {
		wrap := mw[i].WrapToolCall
		if wrap == nil {
			continue
		}

		next := h
		h = func(ctx context.Context, call *ToolCall) (any, error) {
			return wrap(ctx, call, next)
		}
	}

	return h
}
