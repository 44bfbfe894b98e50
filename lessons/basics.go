package lessons

import (
	"context"
	"fmt"
	"time"

	"github.com/hupe1980/agentcookbook/agent"
	"github.com/hupe1980/agentcookbook/core"
	"github.com/hupe1980/agentcookbook/internal/calc"
	"github.com/hupe1980/agentcookbook/model"
	"github.com/hupe1980/agentcookbook/tool"
)

const mathPrompt = `You are a math expert.
If a user asks for the result of an equation, use the get_equation_result tool to calculate it.`

type equationArgs struct {
	Equation string `json:"equation" description:"Arithmetic expression such as 12 * 8 + 5"`
}

// equationTool evaluates arithmetic. Evaluation failures are returned as text
// so the model can explain them.
func equationTool() tool.Tool {
	return tool.NewTyped("get_equation_result", "Calculate the result of a mathematical equation.",
		func(tc *core.ToolContext, args equationArgs) (any, error) {
			v, err := calc.Eval(tc.Context(), args.Equation)
			if err != nil {
				return fmt.Sprintf("Error calculating the equation: %v", err), nil
			}

			return fmt.Sprintf("The result of %s is %s.", args.Equation, calc.Format(v)), nil
		})
}

func runBasicAgent(ctx context.Context, env *Env) error {
	p := newPrinter(env.Out)
	p.title("LESSON 001 - BASIC AGENT")

	p.step(1, "Create a model")

	m, err := env.Model(ctx, "", model.Settings{})
	if err != nil {
		return err
	}

	p.printf("Model: %s (%s)", m.Info().Name, m.Info().Provider)

	p.step(2, "Create the agent with only a system prompt")

	a := env.newAgent(m, agent.WithInstruction("You are a very smart and helpful astronomy expert."))

	p.step(3, "Ask a question")

	res, err := a.Invoke(ctx, agent.Text("What is the distance from the Earth to the Sun?"))
	if err != nil {
		return err
	}

	p.answer(res.Text())

	p.notes(
		"The simplest agent: a system prompt and a model, no tools or memory.",
		"Invoke returns the whole conversation; the last message is the answer.",
		"API keys come from the environment or a .env file.",
	)

	return nil
}

func runToolAgent(ctx context.Context, env *Env) error {
	p := newPrinter(env.Out)
	p.title("LESSON 002 - AGENT WITH A TOOL")

	m, err := env.Model(ctx, "", model.Settings{})
	if err != nil {
		return err
	}

	p.step(1, "Define the get_equation_result tool")

	eq := equationTool()
	p.json("Tool schema", eq.Parameters())

	p.step(2, "Create the agent")

	a := env.newAgent(m, agent.WithInstruction(mathPrompt), agent.WithTools(eq))

	p.step(3, "Ask for a calculation")

	res, err := a.Invoke(ctx, agent.Text("What is the result of 12 * 8 + 5?"))
	if err != nil {
		return err
	}

	p.conversation(res.Messages)
	p.answer(res.Text())

	p.notes(
		"The tool description tells the model when to use it.",
		"The agent decides on its own to call the tool and feeds the result back.",
		"Expressions are evaluated by a sandboxed interpreter over an allow-list, never as arbitrary code.",
	)

	return nil
}

func runModelParameters(ctx context.Context, env *Env) error {
	p := newPrinter(env.Out)
	p.title("LESSON 003 - PROVIDER MODEL WITH PARAMETERS")

	p.step(1, "Configure the provider model explicitly")

	s := model.Settings{
		Temperature: model.Float(0.1),
		Timeout:     30 * time.Second,
		MaxTokens:   model.Int(1000),
	}

	m, err := env.Model(ctx, model.ProviderOpenAI+":gpt-4o-mini", s)
	if err != nil {
		return err
	}

	p.printf("Model: %s, temperature=0.1, timeout=30s, max_tokens=1000", m.Info().Name)

	p.step(2, "Run the equation agent")

	a := env.newAgent(m, agent.WithInstruction(mathPrompt), agent.WithTools(equationTool()))

	res, err := a.Invoke(ctx, agent.Text("What is the result of 12 * 8 + 5?"))
	if err != nil {
		return err
	}

	p.answer(res.Text())

	p.notes(
		"A low temperature makes answers precise and repeatable.",
		"The timeout bounds every request made by this model.",
		"Settings given at construction are defaults; per-request settings win.",
	)

	return nil
}

func runInitModel(ctx context.Context, env *Env) error {
	p := newPrinter(env.Out)
	p.title("LESSON 004 - PROVIDER-INDEPENDENT MODEL")

	p.step(1, "Resolve a provider:model identifier")

	for _, id := range []string{"openai:gpt-4o-mini", "claude-3-5-sonnet-20241022", "google_genai:gemini-2.0-flash"} {
		provider, name := model.ParseID(id)
		p.printf("%-32s -> provider=%s model=%s", id, provider, name)
	}

	p.step(2, "Create the model with common parameters")

	m, err := env.Model(ctx, "openai:gpt-4o-mini", model.Settings{
		Temperature: model.Float(0.5),
		Timeout:     10 * time.Second,
		MaxTokens:   model.Int(1000),
	})
	if err != nil {
		return err
	}

	p.printf("Model: %s (%s)", m.Info().Name, m.Info().Provider)

	p.step(3, "Run the equation agent")

	a := env.newAgent(m, agent.WithInstruction(mathPrompt), agent.WithTools(equationTool()))

	res, err := a.Invoke(ctx, agent.Text("What is the result of 12 * 8 + 5?"))
	if err != nil {
		return err
	}

	p.answer(res.Text())

	p.notes(
		"Swapping providers only changes the identifier string.",
		"temperature, timeout and max tokens work the same for every provider.",
		"Use a provider package directly when you need provider-specific options.",
	)

	return nil
}
