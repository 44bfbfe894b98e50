package lessons

import (
	"context"
	"math"
	"time"

	"github.com/hupe1980/agentcookbook/agent"
	"github.com/hupe1980/agentcookbook/core"
	"github.com/hupe1980/agentcookbook/model"
	"github.com/hupe1980/agentcookbook/tool"
)

type powerArgs struct {
	Base     float64 `json:"base" description:"The base"`
	Exponent float64 `json:"exponent" description:"The exponent"`
}

type celsiusArgs struct {
	Celsius float64 `json:"celsius" description:"Temperature in degrees Celsius"`
}

// Temperature is a reading in three scales.
type Temperature struct {
	Celsius    float64 `json:"celsius"`
	Fahrenheit float64 `json:"fahrenheit"`
	Kelvin     float64 `json:"kelvin"`
}

func powerTool() tool.Tool {
	return tool.NewTyped("calculate_power", "Raise base to the given exponent.",
		func(_ *core.ToolContext, args powerArgs) (any, error) {
			return math.Pow(args.Base, args.Exponent), nil
		})
}

func temperatureTool() tool.Tool {
	return tool.NewTyped("convert_temperature", "Convert a temperature from Celsius to Fahrenheit and Kelvin.",
		func(_ *core.ToolContext, args celsiusArgs) (any, error) {
			return Temperature{
				Celsius:    args.Celsius,
				Fahrenheit: args.Celsius*9/5 + 32,
				Kelvin:     args.Celsius + 273.15,
			}, nil
		})
}

func runMessageSequences(ctx context.Context, env *Env) error {
	p := newPrinter(env.Out)
	p.title("LESSON 013 - MESSAGE SEQUENCES")

	m, err := env.Model(ctx, "", model.Settings{
		Temperature: model.Float(0.3),
		Timeout:     10 * time.Second,
		MaxTokens:   model.Int(1000),
	})
	if err != nil {
		return err
	}

	a := env.newAgent(m,
		agent.WithInstruction(`You are a very smart and helpful assistant who helps with calculations and answers general questions.
If the user mentions information from earlier messages, use that context to give more relevant answers.`),
		agent.WithTools(powerTool(), temperatureTool()),
	)

	p.step(1, "A single message")

	res, err := a.Invoke(ctx, agent.Text("Hi! What is 2 to the power of 8?"))
	if err != nil {
		return err
	}

	p.answer(res.Text())

	p.step(2, "A message sequence with prior history")

	res, err = a.Invoke(ctx, agent.Messages(
		core.NewUserText("Hi! My name is João."),
		core.NewAssistantText("Hi João! Nice to meet you. How can I help you today?"),
		core.NewUserText("What is 25°C in Fahrenheit?"),
		core.NewAssistantText("25°C is 77°F."),
		core.NewUserText("Do you remember my name?"),
	))
	if err != nil {
		return err
	}

	p.answer(res.Text())

	p.step(3, "Building the history progressively")

	history := []core.Content{core.NewUserText("Hi! I am studying mathematics.")}

	for _, next := range []string{"Can you calculate 3 to the power of 4 for me?", "What did I say I was studying?", ""} {
		res, err = a.Invoke(ctx, agent.Messages(history...))
		if err != nil {
			return err
		}

		p.printf("Agent: %s", truncate(res.Text(), 200))

		if next == "" {
			break
		}

		history = append(history, core.NewAssistantText(res.Text()), core.NewUserText(next))
	}

	p.printf("History length: %d messages", len(history))

	p.step(4, "Typed messages including a system message")

	res, err = a.Invoke(ctx, agent.Messages(
		core.NewSystemText("Answer in one short sentence."),
		core.NewUserText("Convert 0°C to Fahrenheit and Kelvin."),
	))
	if err != nil {
		return err
	}

	p.conversation(res.Messages)

	p.step(5, "Messages with rich context")

	res, err = a.Invoke(ctx, agent.Messages(
		core.NewUserText("I am planning a trip to Canada in winter."),
		core.NewAssistantText("How nice! Canada in winter is beautiful. Can I help with anything?"),
		core.NewUserText("Yes! The average temperature there is -10°C. How much is that in Fahrenheit?"),
	))
	if err != nil {
		return err
	}

	p.answer(res.Text())

	p.notes(
		"Input is always a message sequence; a single message is the shortest one.",
		"Passing earlier turns gives the model memory without a checkpointer.",
		"Extra system messages in the input are combined with the agent instruction.",
	)

	return nil
}
