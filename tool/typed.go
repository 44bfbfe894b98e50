package tool

import (
	"encoding/json"
	"fmt"

	"github.com/hupe1980/agentcookbook/core"
	"github.com/hupe1980/agentcookbook/internal/util"
)

// NewTyped builds a tool whose schema is derived from T and whose arguments
// are decoded into a T before fn runs.
//
//	type powArgs struct {
//	  Base     float64 `json:"base" description:"The base number"`
//	  Exponent float64 `json:"exponent" description:"The exponent"`
//	}
//
//	pow := tool.NewTyped("calculate_power", "Raise base to exponent",
//	  func(tc *core.ToolContext, a powArgs) (any, error) {
//	    return math.Pow(a.Base, a.Exponent), nil
//	  })
func NewTyped[T any](name, description string, fn func(toolCtx *core.ToolContext, args T) (any, error)) *FunctionTool {
	var zero T

	return NewFunctionTool(name, description, util.CreateSchema(zero), func(toolCtx *core.ToolContext, raw map[string]any) (any, error) {
		args, err := DecodeArgs[T](raw)
		if err != nil {
			return nil, &ToolError{Tool: name, Message: err.Error(), Code: CodeValidation, Cause: err}
		}

		return fn(toolCtx, args)
	})
}

// DecodeArgs converts decoded JSON arguments into T.
func DecodeArgs[T any](raw map[string]any) (T, error) {
	var out T

	b, err := json.Marshal(raw)
	if err != nil {
		return out, fmt.Errorf("failed to encode arguments: %w", err)
	}

	if err := json.Unmarshal(b, &out); err != nil {
		return out, fmt.Errorf("failed to decode arguments: %w", err)
	}

	return out, nil
}
