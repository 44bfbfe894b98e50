package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/agentcookbook/core"
	"github.com/hupe1980/agentcookbook/logging"
	"github.com/hupe1980/agentcookbook/run"
	"github.com/hupe1980/agentcookbook/tool"
)

// toolExecutor runs a batch of function calls, possibly in parallel, and
// returns exactly one tool message per call in the original call order. It
// never panics: panics, unknown tools and malformed arguments all become
// error responses for the model.
type toolExecutor struct {
	agent       string
	tools       map[string]tool.Tool
	maxParallel int
	handler     ToolHandler
	logger      logging.Logger
}

func newToolExecutor(name string, tools map[string]tool.Tool, maxParallel int, mw []Middleware, logger logging.Logger) *toolExecutor {
	return &toolExecutor{
		agent:       name,
		tools:       tools,
		maxParallel: maxParallel,
		handler:     chainTool(mw, callTool),
		logger:      logger,
	}
}

func (e *toolExecutor) execute(ctx context.Context, calls []core.FunctionCall, st *core.State, runtime any) []core.Content {
	n := len(calls)
	if n == 0 {
		return nil
	}

	results := make([]core.Content, n)

	// Fast path: single call, execute inline.
	if n == 1 {
		results[0] = e.executeSingle(ctx, calls[0], st, runtime)
		return results
	}

	g, gctx := errgroup.WithContext(ctx)
	if e.maxParallel > 0 {
		g.SetLimit(e.maxParallel)
	}

	batchStart := time.Now()

	for i, fc := range calls {
		g.Go(func() error {
			results[i] = e.executeSingle(gctx, fc, st, runtime)
			return nil
		})
	}

	_ = g.Wait()

	e.logger.Debug(
		"agent.tools.batch.complete",
		"agent", e.agent,
		"count", n,
		"parallelism", e.maxParallel,
		"duration_ms", time.Since(batchStart).Milliseconds(),
	)

	return results
}

func (e *toolExecutor) executeSingle(ctx context.Context, fc core.FunctionCall, st *core.State, runtime any) core.Content {
	toolCtx := core.NewToolContext(ctx, fc.ID, fc.Name, func(o *core.ToolContextOptions) {
		o.Runtime = runtime
		o.State = st
		o.Logger = e.logger
	})

	e.logger.Info("agent.tool.start", "agent", e.agent, "tool", fc.Name, "function_call_id", fc.ID)

	start := time.Now()
	run.Dispatch(ctx, run.Event{Type: run.EventToolStart, CallID: fc.ID, Name: fc.Name, Args: fc.Arguments, Start: start})

	var (
		result any
		err    error
	)

	func() { // panic safety
		defer func() {
			if r := recover(); r != nil {
				err = panicError(fc.Name, r)
				e.logger.Error("agent.tool.panic", "agent", e.agent, "tool", fc.Name, "recover", r)
			}
		}()

		result, err = e.call(ctx, toolCtx, fc)
	}()

	dur := time.Since(start)

	if cl, ok := e.logger.(logging.CallLogger); ok {
		cl.LogToolCall(fc.Name, dur, err == nil, err)
	} else {
		e.logger.Info(
			"agent.tool.executed",
			"agent", e.agent,
			"tool", fc.Name,
			"duration_ms", dur.Milliseconds(),
			"error", err != nil,
		)
	}

	run.Dispatch(ctx, run.Event{
		Type:     run.EventToolEnd,
		CallID:   fc.ID,
		Name:     fc.Name,
		Args:     fc.Arguments,
		Result:   result,
		Err:      err,
		Start:    start,
		Duration: dur,
	})

	return core.NewToolResponse(fc.ID, fc.Name, result, err)
}

func (e *toolExecutor) call(ctx context.Context, toolCtx *core.ToolContext, fc core.FunctionCall) (any, error) {
	impl, ok := e.tools[fc.Name]
	if !ok {
		return nil, tool.NewToolError(fc.Name, fmt.Sprintf("tool %s not found", fc.Name), tool.CodeNotFound)
	}

	args := map[string]any{}
	if fc.Arguments != "" {
		if err := json.Unmarshal([]byte(fc.Arguments), &args); err != nil {
			return nil, &tool.ToolError{
				Tool:    fc.Name,
				Message: "failed to unmarshal args",
				Code:    tool.CodeValidation,
				Cause:   err,
			}
		}
	}

	return e.handler(ctx, &ToolCall{Call: fc, Tool: impl, Args: args, Context: toolCtx})
}

func callTool(_ context.Context, call *ToolCall) (any, error) {
	return call.Tool.Call(call.Context, call.Args)
}

func panicError(name string, r any) error {
	return &tool.ToolError{
		Tool:    name,
		Message: fmt.Sprintf("panic recovered: %v", r),
		Code:    tool.CodePanic,
		Details: map[string]any{"stack": string(debug.Stack())},
	}
}
