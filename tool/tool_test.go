package tool

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentcookbook/core"
)

var (
	_ Tool = (*FunctionTool)(nil)
	_ Tool = (*StateTool)(nil)
)

var errDivisionByZero = errors.New("division by zero")

func newToolContext(id string, state *core.State) *core.ToolContext {
	return core.NewToolContext(context.Background(), id, "test", func(o *core.ToolContextOptions) {
		o.State = state
	})
}

// -------------------- FunctionTool Tests --------------------

func TestFunctionTool_Success(t *testing.T) {
	params := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"a": map[string]any{"type": "number"},
			"b": map[string]any{"type": "number"},
		},
		"required": []string{"a", "b"},
	}

	sumTool := NewFunctionTool("sum", "Add numbers", params, func(_ *core.ToolContext, args map[string]any) (any, error) {
		a := args["a"].(float64)
		b := args["b"].(float64)
		return a + b, nil
	})

	result, err := sumTool.Call(newToolContext("fc1", nil), map[string]any{"a": 2.0, "b": 3.0})
	assert.NoError(t, err)
	assert.Equal(t, 5.0, result)
}

func TestFunctionTool_ValidationError(t *testing.T) {
	params := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"a": map[string]any{"type": "number"},
		},
		"required": []any{"a"},
	}

	tTool := NewFunctionTool("test", "Test", params, func(_ *core.ToolContext, _ map[string]any) (any, error) {
		return 0, nil
	})

	_, err := tTool.Call(newToolContext("fc2", nil), nil)
	require.Error(t, err)

	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, CodeValidation, toolErr.Code)

	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "a", vErr.Field)
}

func TestFunctionTool_ExecutionErrorKeepsCause(t *testing.T) {
	execTool := NewFunctionTool("divide", "Divides", nil, func(_ *core.ToolContext, _ map[string]any) (any, error) {
		return nil, errDivisionByZero
	})

	_, err := execTool.Call(newToolContext("fc3", nil), map[string]any{})
	require.Error(t, err)

	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, CodeExecution, toolErr.Code)
	assert.ErrorIs(t, err, errDivisionByZero)
}

func TestFunctionTool_CustomCodePreserved(t *testing.T) {
	custom := NewFunctionTool("lookup", "Lookup", nil, func(_ *core.ToolContext, _ map[string]any) (any, error) {
		return nil, NewToolError("lookup", "user not found", "NOT_FOUND")
	})

	_, err := custom.Call(newToolContext("fc4", nil), nil)

	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, "NOT_FOUND", toolErr.Code)
}

func TestFunctionTool_ConcurrentUse(t *testing.T) {
	square := NewFunctionToolFromStruct("square", "Square", struct {
		Number float64 `json:"number"`
	}{}, func(_ *core.ToolContext, args map[string]any) (any, error) {
		n := args["number"].(float64)
		return n * n, nil
	})

	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)

		go func(n float64) {
			defer wg.Done()

			res, err := square.Call(newToolContext("c", nil), map[string]any{"number": n})
			assert.NoError(t, err)
			assert.Equal(t, n*n, res)
		}(float64(i))
	}

	wg.Wait()
}

// -------------------- Typed tools --------------------

type powArgs struct {
	Base     float64 `json:"base" description:"The base number"`
	Exponent float64 `json:"exponent" description:"The exponent"`
}

func TestNewTyped(t *testing.T) {
	pow := NewTyped("calculate_power", "Raise base to exponent", func(_ *core.ToolContext, a powArgs) (any, error) {
		out := 1.0
		for i := 0; i < int(a.Exponent); i++ {
			out *= a.Base
		}

		return out, nil
	})

	props := pow.Parameters()["properties"].(map[string]any)
	assert.Contains(t, props, "base")
	assert.ElementsMatch(t, []string{"base", "exponent"}, pow.Parameters()["required"])

	res, err := pow.Call(newToolContext("p", nil), map[string]any{"base": 2.0, "exponent": 10.0})
	require.NoError(t, err)
	assert.Equal(t, 1024.0, res)

	_, err = pow.Call(newToolContext("p", nil), map[string]any{"base": "two", "exponent": 1.0})
	assert.Error(t, err)
}

func TestDefinitionsAndFind(t *testing.T) {
	a := NewFunctionTool("a", "A", nil, nil)
	b := NewFunctionTool("b", "B", nil, nil)

	defs := Definitions(a, b)
	require.Len(t, defs, 2)
	assert.Equal(t, "function", defs[0].Type)
	assert.Equal(t, "b", defs[1].Function.Name)

	found, ok := Find([]Tool{a, b}, "b")
	require.True(t, ok)
	assert.Equal(t, "B", found.Description())

	_, ok = Find([]Tool{a}, "missing")
	assert.False(t, ok)
}

// -------------------- State tools --------------------

func TestStateTool(t *testing.T) {
	state := core.NewState(map[string]any{
		"interaction_count": 3,
		"user_preferences":  map[string]any{"style": "casual"},
	})

	count := NewStateReader("get_interaction_count", "Count", "interaction_count")
	res, err := count.Call(newToolContext("s1", state), nil)
	require.NoError(t, err)
	assert.Equal(t, 3, res)

	both := NewStateReader("get_all", "All", "interaction_count", "user_preferences")
	res, err = both.Call(newToolContext("s2", state), nil)
	require.NoError(t, err)
	assert.Len(t, res.(map[string]any), 2)

	missing := NewStateReader("get_missing", "Missing", "nope")
	_, err = missing.Call(newToolContext("s3", state), nil)
	assert.Error(t, err)
}

// -------------------- ToolError Formatting --------------------

func TestToolErrorFormatting(t *testing.T) {
	err := NewToolError("demo", "something failed", "E123")
	assert.Contains(t, err.Error(), "E123")
	assert.Contains(t, err.Error(), "demo")
	assert.Nil(t, err.Unwrap())
}
