package lessons

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hupe1980/agentcookbook/agent"
	"github.com/hupe1980/agentcookbook/core"
	"github.com/hupe1980/agentcookbook/internal/calc"
	"github.com/hupe1980/agentcookbook/model"
	"github.com/hupe1980/agentcookbook/tool"
)

func clockTool() tool.Tool {
	return tool.NewFunctionTool("get_current_time", "Return the current time.", nil,
		func(*core.ToolContext, map[string]any) (any, error) {
			return time.Now().Format("15:04:05"), nil
		})
}

func runModelVsAgent(ctx context.Context, env *Env) error {
	p := newPrinter(env.Out)
	p.title("LESSON 019 - MODEL VS AGENT")

	m, err := env.Model(ctx, "", model.Settings{Temperature: model.Float(0.7)})
	if err != nil {
		return err
	}

	p.step(1, "Direct model call")

	resp, err := model.Invoke(ctx, m, model.Prompt("What is the capital of France?"))
	if err != nil {
		return err
	}

	p.answer(resp.Text())

	p.step(2, "The same question through an agent")

	res, err := env.newAgent(m, agent.WithInstruction("You are a helpful assistant.")).
		Invoke(ctx, agent.Text("What is the capital of France?"))
	if err != nil {
		return err
	}

	p.answer(res.Text())

	p.step(3, "Asking the bare model for the time")

	resp, err = model.Invoke(ctx, m, model.Prompt("What time is it now?"))
	if err != nil {
		return err
	}

	p.answer(resp.Text())
	p.printf("The model executed no tool; it answered from general knowledge.")

	p.step(4, "Asking an agent with a clock tool")

	res, err = env.newAgent(m,
		agent.WithInstruction("You are an assistant. Use the available tools when needed."),
		agent.WithTools(clockTool()),
	).Invoke(ctx, agent.Text("What time is it now?"))
	if err != nil {
		return err
	}

	p.conversation(res.Messages)
	p.answer(res.Text())
	p.printf("The agent executed the tool automatically (%d model calls).", res.ModelCalls)

	p.notes(
		"A model call is one request and one response: text in, text or tool calls out.",
		"An agent loops: it executes requested tools and calls the model again.",
		"Use the model directly for single completions, an agent when tools are involved.",
	)

	return nil
}

var cityWeather = map[string]string{
	"São Paulo":      "Sunny, 28°C",
	"Rio de Janeiro": "Partly cloudy, 32°C",
	"Curitiba":       "Rainy, 18°C",
}

type expressionArgs struct {
	Expression string `json:"expression" description:"Arithmetic expression"`
}

func assistantTools() []tool.Tool {
	weather := tool.NewTyped("get_weather", "Return the weather forecast for a city.",
		func(_ *core.ToolContext, args cityArgs) (any, error) {
			if w, ok := cityWeather[args.City]; ok {
				return w, nil
			}

			return fmt.Sprintf("No data available for %s", args.City), nil
		})

	calculate := tool.NewTyped("calculate", "Calculate a mathematical expression.",
		func(tc *core.ToolContext, args expressionArgs) (any, error) {
			v, err := calc.Eval(tc.Context(), args.Expression)
			if err != nil {
				return fmt.Sprintf("Calculation error: %v", err), nil
			}

			return "Result: " + calc.Format(v), nil
		})

	return []tool.Tool{weather, calculate}
}

// executeCalls runs the tool calls of resp and returns one tool message per
// call, in call order.
func executeCalls(ctx context.Context, p *printer, tools []tool.Tool, resp *model.Response) []core.Content {
	var out []core.Content

	for _, fc := range resp.Content.FunctionCalls() {
		result, err := callTool(ctx, tools, fc)
		if err != nil {
			p.printf("   tool %s failed: %v", fc.Name, err)
		} else {
			p.printf("   tool %s returned: %v", fc.Name, result)
		}

		out = append(out, core.NewToolResponse(fc.ID, fc.Name, result, err))
	}

	return out
}

func callTool(ctx context.Context, tools []tool.Tool, fc core.FunctionCall) (any, error) {
	t, ok := tool.Find(tools, fc.Name)
	if !ok {
		return nil, fmt.Errorf("unknown tool %q", fc.Name)
	}

	args := map[string]any{}
	if fc.Arguments != "" {
		if err := json.Unmarshal([]byte(fc.Arguments), &args); err != nil {
			return nil, fmt.Errorf("invalid arguments for %s: %w", fc.Name, err)
		}
	}

	return t.Call(core.NewToolContext(ctx, fc.ID, fc.Name), args)
}

func runManualToolLoop(ctx context.Context, env *Env) error {
	p := newPrinter(env.Out)
	p.title("LESSON 020 - MANUAL TOOL LOOP")

	m, err := env.Model(ctx, "", model.Settings{Temperature: model.Float(0)})
	if err != nil {
		return err
	}

	tools := assistantTools()
	bound := model.WithTools(m, tool.Definitions(tools...)...)

	p.step(1, "Bind tools and ask")

	resp, err := model.Invoke(ctx, bound, model.Prompt("What is the weather in São Paulo?"))
	if err != nil {
		return err
	}

	p.printf("Content: %q", resp.Text())

	for _, fc := range resp.Content.FunctionCalls() {
		p.printf("Tool call: id=%s name=%s args=%s", fc.ID, fc.Name, fc.Arguments)
	}

	loop := func(question string) error {
		msgs := []core.Content{core.NewUserText(question)}

		resp, err := model.Invoke(ctx, bound, model.Request{Contents: msgs})
		if err != nil {
			return err
		}

		msgs = append(msgs, resp.Content)

		calls := resp.Content.FunctionCalls()
		if len(calls) == 0 {
			p.printf("1. The model answered without tools: %s", resp.Text())
			return nil
		}

		p.printf("1. The model decided to call %s with %s", calls[0].Name, calls[0].Arguments)
		p.printf("2. Executing tools:")

		msgs = append(msgs, executeCalls(ctx, p, tools, resp)...)

		final, err := model.Invoke(ctx, bound, model.Request{Contents: msgs})
		if err != nil {
			return err
		}

		p.printf("3. Final answer: %s", final.Text())

		return nil
	}

	p.step(2, "Run the loop by hand")

	if err := loop("What is the weather in São Paulo?"); err != nil {
		return err
	}

	p.step(3, "The model chooses between several tools")

	if err := loop("What is 15 * 8 + 42?"); err != nil {
		return err
	}

	p.notes(
		"Binding tools only describes them to the model; nothing is executed.",
		"The caller runs each tool call and answers with a tool message carrying the call id.",
		"A second model call turns the tool results into the final answer. Agents automate this loop.",
	)

	return nil
}
