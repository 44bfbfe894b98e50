package lessons

import (
	"context"
	"fmt"
	"time"

	"github.com/hupe1980/agentcookbook/agent"
	"github.com/hupe1980/agentcookbook/core"
	"github.com/hupe1980/agentcookbook/model"
	"github.com/hupe1980/agentcookbook/structured"
	"github.com/hupe1980/agentcookbook/tool"
)

const investmentPrompt = `You are a very smart and helpful investment expert.
If a user asks about the return of an investment, use the get_investment_return tool to calculate it.`

// InvestorContext is the runtime context of the investment lessons.
type InvestorContext struct {
	UserRole string
}

type investmentArgs struct {
	InvestmentValue float64 `json:"investment_value" description:"Amount to invest"`
}

// InvestmentReturn is the structured answer of lesson 006.
type InvestmentReturn struct {
	InvestmentReturn float64  `json:"investment_return" description:"Total value after the return"`
	InvestmentProfit *float64 `json:"investment_profit" description:"Profit over the invested amount"`
	ReturnPercentage *float64 `json:"return_percentage" description:"Return in percent"`
}

func roleMultiplier(role string) float64 {
	switch role {
	case "conservative":
		return 1.05
	case "balanced":
		return 1.10
	case "aggressive":
		return 1.20
	default:
		return 1.0
	}
}

func investmentTool() tool.Tool {
	return tool.NewTyped("get_investment_return", "Calculate the return of an investment based on the user's risk profile.",
		func(tc *core.ToolContext, args investmentArgs) (any, error) {
			ic, _ := core.RuntimeAs[InvestorContext](tc)
			total := roleMultiplier(ic.UserRole) * args.InvestmentValue

			return fmt.Sprintf("The investment return will be %.2f.", total), nil
		})
}

func investmentModel(ctx context.Context, env *Env) (model.Model, error) {
	return env.Model(ctx, "", model.Settings{
		Temperature: model.Float(0.5),
		Timeout:     10 * time.Second,
		MaxTokens:   model.Int(1000),
	})
}

func runRuntimeContext(ctx context.Context, env *Env) error {
	p := newPrinter(env.Out)
	p.title("LESSON 005 - RUNTIME CONTEXT")

	m, err := investmentModel(ctx, env)
	if err != nil {
		return err
	}

	p.step(1, "Risk profiles read by the tool")

	for _, role := range []string{"conservative", "balanced", "aggressive", "unknown"} {
		p.printf("  %-12s x%.2f", role, roleMultiplier(role))
	}

	p.step(2, "Invoke with the aggressive profile")

	a := env.newAgent(m, agent.WithInstruction(investmentPrompt), agent.WithTools(investmentTool()))

	res, err := a.Invoke(ctx, agent.Text("I will invest 1000. What will my return be?"),
		agent.WithRuntime(InvestorContext{UserRole: "aggressive"}))
	if err != nil {
		return err
	}

	p.conversation(res.Messages)
	p.answer(res.Text())

	p.notes(
		"The runtime context is passed per invocation and never shown to the model.",
		"Tools read it through their ToolContext with a typed accessor.",
		"The same agent serves every profile; only the invocation changes.",
	)

	return nil
}

func runStructuredResponse(ctx context.Context, env *Env) error {
	p := newPrinter(env.Out)
	p.title("LESSON 006 - STRUCTURED RESPONSE")

	m, err := investmentModel(ctx, env)
	if err != nil {
		return err
	}

	p.step(1, "Derive the response schema")

	format := structured.For[InvestmentReturn](structured.WithDescription("Response schema for the investment agent."))
	p.json("Schema", format.Schema)

	p.step(2, "Invoke the agent with a response format")

	a := env.newAgent(m,
		agent.WithInstruction(investmentPrompt),
		agent.WithTools(investmentTool()),
		agent.WithResponseFormat(structured.ProviderStrategy(format)),
	)

	res, err := a.Invoke(ctx, agent.Text("I will invest 1000. What will my return be?"),
		agent.WithRuntime(InvestorContext{UserRole: "aggressive"}))
	if err != nil {
		return err
	}

	out, err := agent.Structured[InvestmentReturn](res)
	if err != nil {
		return fmt.Errorf("failed to decode structured response: %w", err)
	}

	p.step(3, "Read typed fields")
	p.printf("Total value:       %.2f", out.InvestmentReturn)
	p.printf("Profit:            %s", orNA(out.InvestmentProfit))
	p.printf("Return percentage: %s%%", orNA(out.ReturnPercentage))

	p.notes(
		"The structured response is decoded into a Go struct after schema validation.",
		"Pointer fields are optional in the schema and print n/a when absent.",
		"Tools and structured output combine: tools gather data, the format shapes the answer.",
	)

	return nil
}
