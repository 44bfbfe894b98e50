package lessons

import (
	"context"
	"fmt"
	"strings"

	"github.com/hupe1980/agentcookbook/core"
	"github.com/hupe1980/agentcookbook/model"
	"github.com/hupe1980/agentcookbook/tool"
)

func searchWebTool() tool.Tool {
	return tool.NewTyped("search_web", "Search the web for information.",
		func(_ *core.ToolContext, args queryArgs) (any, error) {
			return fmt.Sprintf("Search results for %q: [simulated]", args.Query), nil
		})
}

func choiceLabel(c *model.ToolChoice) string {
	if c == nil {
		return model.ToolChoiceAuto
	}

	if c.Mode == model.ToolChoiceTool {
		return "tool:" + c.Name
	}

	return c.Mode
}

// smartToolChoice picks a tool choice from keywords in the user input.
func smartToolChoice(input string) *model.ToolChoice {
	lower := strings.ToLower(input)

	switch {
	case strings.Contains(lower, "weather"):
		return model.ToolChoiceFor("get_weather")
	case strings.ContainsAny(input, "+-*/="):
		return model.ToolChoiceFor("calculate")
	default:
		return &model.ToolChoice{Mode: model.ToolChoiceAuto}
	}
}

func runToolChoice(ctx context.Context, env *Env) error {
	p := newPrinter(env.Out)
	p.title("LESSON 032 - TOOL CHOICE")

	m, err := env.Model(ctx, "", model.Settings{Temperature: model.Float(0)})
	if err != nil {
		return err
	}

	tools := append(assistantTools(), searchWebTool())
	defs := tool.Definitions(tools...)

	bind := func(choice *model.ToolChoice) model.Model {
		return model.Bind(m, func(o *model.BindOptions) {
			o.Tools = defs
			o.ToolChoice = choice
		})
	}

	ask := func(mdl model.Model, prompt string) (*model.Response, error) {
		return model.Invoke(ctx, mdl, model.Prompt(prompt))
	}

	p.step(1, "auto: the model decides")

	auto := bind(&model.ToolChoice{Mode: model.ToolChoiceAuto})

	for _, prompt := range []string{
		"What is the weather in São Paulo?",
		"What is 15 * 8?",
		"What is the capital of France?",
	} {
		resp, err := ask(auto, prompt)
		if err != nil {
			return err
		}

		p.printf("Prompt: %q", prompt)

		if calls := resp.Content.FunctionCalls(); len(calls) > 0 {
			p.printf("  -> the model chose %s", calls[0].Name)
		} else {
			p.printf("  -> no tool; direct answer: %s", truncate(resp.Text(), 80))
		}
	}

	p.step(2, "required: some tool must be called")

	required := bind(&model.ToolChoice{Mode: model.ToolChoiceRequired})

	for _, prompt := range []string{"Hello!", "What is the capital of France?"} {
		resp, err := ask(required, prompt)
		if err != nil {
			return err
		}

		p.printf("Prompt: %q", prompt)

		if calls := resp.Content.FunctionCalls(); len(calls) > 0 {
			p.printf("  -> forced to call %s with %s", calls[0].Name, calls[0].Arguments)
		} else {
			p.printf("  -> no tool called (unexpected with required)")
		}
	}

	p.step(3, "A specific tool")

	specific := bind(model.ToolChoiceFor("calculate"))

	for _, prompt := range []string{"Hello!", "What is 10 + 5?", "What is the weather in São Paulo?"} {
		resp, err := ask(specific, prompt)
		if err != nil {
			return err
		}

		p.printf("Prompt: %q", prompt)

		calls := resp.Content.FunctionCalls()
		if len(calls) == 0 {
			p.printf("  -> no tool called")
			continue
		}

		p.printf("  -> tool %s with %s", calls[0].Name, calls[0].Arguments)

		if calls[0].Name != "calculate" {
			p.printf("  expected calculate, got %s", calls[0].Name)
		}
	}

	p.step(4, "none: tools are never called")

	none := bind(&model.ToolChoice{Mode: model.ToolChoiceNone})

	for _, prompt := range []string{"What is the weather in São Paulo?", "What is 5 + 5?"} {
		resp, err := ask(none, prompt)
		if err != nil {
			return err
		}

		p.printf("Prompt: %q", prompt)

		if calls := resp.Content.FunctionCalls(); len(calls) > 0 {
			p.printf("  -> tool %s called (unexpected with none)", calls[0].Name)
		} else {
			p.printf("  -> answer: %s", truncate(resp.Text(), 80))
		}
	}

	p.step(5, "Parallel tool calls")

	const both = "What is the weather in São Paulo and what is 10 * 5?"

	for _, parallel := range []bool{true, false} {
		mdl := model.Bind(auto, func(o *model.BindOptions) { o.ParallelToolCalls = model.Bool(parallel) })

		resp, err := ask(mdl, both)
		if err != nil {
			return err
		}

		calls := resp.Content.FunctionCalls()
		p.printf("parallel=%t: %d tool call(s) in one response", parallel, len(calls))

		for i, c := range calls {
			p.printf("  %d. %s %s (id %s)", i+1, c.Name, c.Arguments, c.ID)
		}
	}

	p.step(6, "Choosing the tool choice in code")

	for _, input := range []string{
		"How is the weather today in Curitiba?",
		"What is 25 * 4?",
		"What is the capital of Brazil?",
	} {
		choice := smartToolChoice(input)

		resp, err := ask(bind(choice), input)
		if err != nil {
			return err
		}

		p.printf("Input: %q", input)
		p.printf("  strategy: %s", choiceLabel(choice))

		if calls := resp.Content.FunctionCalls(); len(calls) > 0 {
			p.printf("  tool used: %s", calls[0].Name)
		} else {
			p.printf("  no tool, direct answer")
		}
	}

	p.notes(
		"auto lets the model decide; required forces some tool; a named choice forces one tool.",
		"none keeps tools visible but forbids calling them.",
		"Parallel tool calls let one response request several tools at once.",
	)

	return nil
}
