// Package tool exposes Go functions to models as callable tools with schema
// validated arguments and uniform error reporting.
package tool

import (
	"fmt"

	"github.com/hupe1980/agentcookbook/core"
	"github.com/hupe1980/agentcookbook/internal/util"
	"github.com/hupe1980/agentcookbook/model"
)

// Tool is a capability a model may request by name.
//
// Parameters returns a JSON schema for the arguments. Call receives arguments
// already decoded from the model's JSON and must be safe for concurrent use.
type Tool interface {
	Name() string
	Description() string
	Parameters() map[string]any
	Call(toolCtx *core.ToolContext, args map[string]any) (any, error)
}

// ValidationError represents parameter validation errors with detailed information.
type ValidationError = util.ValidationError

// Error codes attached to ToolError.
const (
	CodeValidation = "VALIDATION_ERROR"
	CodeExecution  = "EXECUTION_ERROR"
	CodePanic      = "PANIC"
	CodeNotFound   = "TOOL_NOT_FOUND"
)

// ToolError represents errors that occur during tool execution. The error
// returned by the tool function, if any, is kept in Cause and reachable via
// errors.Is and errors.As.
type ToolError struct {
	Tool    string `json:"tool"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Details any    `json:"details,omitempty"`
	Cause   error  `json:"-"`
}

func (e *ToolError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tool error [%s] in %s: %s", e.Code, e.Tool, e.Message)
	}

	return fmt.Sprintf("tool error in %s: %s", e.Tool, e.Message)
}

// Unwrap returns the underlying cause.
func (e *ToolError) Unwrap() error { return e.Cause }

// NewToolError creates a new ToolError with the specified details.
func NewToolError(tool, message, code string) *ToolError {
	return &ToolError{
		Tool:    tool,
		Message: message,
		Code:    code,
	}
}

// Definition describes t for a model request.
func Definition(t Tool) model.ToolDefinition {
	return model.NewToolDefinition(t.Name(), t.Description(), t.Parameters())
}

// Definitions describes every tool for a model request.
func Definitions(tools ...Tool) []model.ToolDefinition {
	defs := make([]model.ToolDefinition, 0, len(tools))
	for _, t := range tools {
		defs = append(defs, Definition(t))
	}

	return defs
}

// Find returns the tool called name.
func Find(tools []Tool, name string) (Tool, bool) {
	for _, t := range tools {
		if t.Name() == name {
			return t, true
		}
	}

	return nil, false
}
