package tool

import (
	"errors"
	"fmt"
	"time"

	"github.com/hupe1980/agentcookbook/core"
	"github.com/hupe1980/agentcookbook/internal/util"
)

// FunctionTool exposes a plain Go function as a Tool.
//
// Arguments are validated against the parameter schema before the function
// runs. Failures are normalized to *ToolError:
//
//	*ToolError returned by the function -> forwarded unchanged
//	validation failure                  -> Code VALIDATION_ERROR
//	other error                         -> Code EXECUTION_ERROR, Cause set
//
// A FunctionTool has no mutable state and is safe for concurrent use.
type FunctionTool struct {
	name        string
	description string
	parameters  map[string]any
	fn          func(toolCtx *core.ToolContext, args map[string]any) (any, error)
}

// NewFunctionTool constructs a FunctionTool from an explicit schema.
//
// Example:
//
//	square := NewFunctionTool(
//	  "calculate_square",
//	  "Calculate the square of a number",
//	  map[string]any{
//	    "type":       "object",
//	    "properties": map[string]any{"number": map[string]any{"type": "number"}},
//	    "required":   []string{"number"},
//	  },
//	  func(tc *core.ToolContext, args map[string]any) (any, error) {
//	    n := args["number"].(float64)
//	    return n * n, nil
//	  },
//	)
func NewFunctionTool(
	name, description string,
	parameters map[string]any,
	fn func(toolCtx *core.ToolContext, args map[string]any) (any, error),
) *FunctionTool {
	if parameters == nil {
		parameters = map[string]any{"type": "object", "properties": map[string]any{}}
	}

	return &FunctionTool{
		name:        name,
		description: description,
		parameters:  parameters,
		fn:          fn,
	}
}

// NewFunctionToolFromStruct derives the parameter schema from a struct.
func NewFunctionToolFromStruct(
	name, description string,
	structType any,
	fn func(toolCtx *core.ToolContext, args map[string]any) (any, error),
) *FunctionTool {
	return NewFunctionTool(name, description, util.CreateSchema(structType), fn)
}

// Name returns the tool name.
func (t *FunctionTool) Name() string { return t.name }

// Description returns the description shown to models.
func (t *FunctionTool) Description() string { return t.description }

// Parameters returns the JSON schema of the arguments.
func (t *FunctionTool) Parameters() map[string]any { return t.parameters }

// Call validates args, then invokes the function.
func (t *FunctionTool) Call(toolCtx *core.ToolContext, args map[string]any) (any, error) {
	logger := toolCtx.Logger()
	start := time.Now()

	logger.Debug("tool.call.start", "tool", t.name, "fc_id", toolCtx.FunctionCallID())

	if args == nil {
		args = map[string]any{}
	}

	if err := util.ValidateParameters(args, t.parameters); err != nil {
		logger.Warn("tool.call.validation_failed", "tool", t.name, "error", err.Error())

		return nil, &ToolError{
			Tool:    t.name,
			Message: fmt.Sprintf("parameter validation failed: %v", err),
			Code:    CodeValidation,
			Details: err,
			Cause:   err,
		}
	}

	result, err := t.fn(toolCtx, args)
	if err != nil {
		var toolErr *ToolError
		if errors.As(err, &toolErr) {
			logger.Error("tool.call.error", "tool", t.name, "code", toolErr.Code, "error", toolErr.Message)

			return nil, toolErr
		}

		logger.Error("tool.call.error", "tool", t.name, "error", err.Error())

		return nil, &ToolError{
			Tool:    t.name,
			Message: err.Error(),
			Code:    CodeExecution,
			Cause:   err,
		}
	}

	logger.Info("tool.call.success", "tool", t.name, "duration_ms", time.Since(start).Milliseconds())

	return result, nil
}
