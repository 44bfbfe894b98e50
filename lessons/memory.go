package lessons

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hupe1980/agentcookbook/agent"
	"github.com/hupe1980/agentcookbook/checkpoint"
	"github.com/hupe1980/agentcookbook/core"
	"github.com/hupe1980/agentcookbook/model"
	"github.com/hupe1980/agentcookbook/structured"
	"github.com/hupe1980/agentcookbook/tool"
)

const weatherPrompt = `You are a weather forecaster who speaks in puns.
You have access to two tools:
- get_weather_for_location: use this to get the weather for a specific location
- get_user_location: use this to get the user's location
If a user asks about the weather, make sure you know the location. If you can tell from the question that they mean wherever they are, use the get_user_location tool to find their location.`

// UserContext identifies the caller of the weather lessons.
type UserContext struct {
	UserID string
}

// PunnyWeather is the structured answer of the weather agent.
type PunnyWeather struct {
	PunnyResponse     string  `json:"punny_response" description:"The answer, told with a pun"`
	WeatherConditions *string `json:"weather_conditions" description:"Weather conditions, if known"`
}

type cityArgs struct {
	City string `json:"city" description:"City name"`
}

var weatherTurns = []string{
	"How's the weather outside?",
	"My name is João da Silva.",
	"Do you remember my name?",
}

func weatherTools() []tool.Tool {
	forLocation := tool.NewTyped("get_weather_for_location", "Get the weather for a given city.",
		func(_ *core.ToolContext, args cityArgs) (any, error) {
			return fmt.Sprintf("It's always sunny in %s!", args.City), nil
		})

	userLocation := tool.NewFunctionTool("get_user_location", "Retrieve the user's location based on the user id.", nil,
		func(tc *core.ToolContext, _ map[string]any) (any, error) {
			uc, _ := core.RuntimeAs[UserContext](tc)

			switch uc.UserID {
			case "1":
				return "Cachoeiro de Itapemirim", nil
			case "2":
				return "Vitória", nil
			default:
				return "São Paulo", nil
			}
		})

	return []tool.Tool{userLocation, forLocation}
}

func weatherAgent(ctx context.Context, env *Env, saver checkpoint.Saver) (*agent.Agent, error) {
	m, err := env.Model(ctx, "", model.Settings{
		Temperature: model.Float(0.5),
		Timeout:     10 * time.Second,
		MaxTokens:   model.Int(1000),
	})
	if err != nil {
		return nil, err
	}

	opts := []func(o *agent.Options){
		agent.WithInstruction(weatherPrompt),
		agent.WithTools(weatherTools()...),
		agent.WithResponseFormat(structured.ToolStrategy(structured.For[PunnyWeather]())),
	}

	if saver != nil {
		opts = append(opts, agent.WithCheckpointer(saver))
	}

	return env.newAgent(m, opts...), nil
}

// askWeather runs one turn and prints the punny response.
func askWeather(ctx context.Context, p *printer, a *agent.Agent, threadID, text string) error {
	opts := []func(o *agent.InvokeOptions){agent.WithRuntime(UserContext{UserID: "1"})}
	if threadID != "" {
		opts = append(opts, agent.WithThread(threadID))
	}

	res, err := a.Invoke(ctx, agent.Text(text), opts...)
	if err != nil {
		return err
	}

	p.printf("User: %s", text)

	out, err := agent.Structured[PunnyWeather](res)
	if err != nil {
		p.printf("Agent (unstructured): %s", res.Text())
		return nil
	}

	p.printf("Agent: %s", out.PunnyResponse)

	if out.WeatherConditions != nil {
		p.printf("Conditions: %s", *out.WeatherConditions)
	}

	return nil
}

// openSaver opens the configured checkpointer and clears the given threads so
// the lesson starts from the same point with persistent stores.
func openSaver(ctx context.Context, env *Env, threads ...string) (checkpoint.Saver, error) {
	saver, err := env.Checkpointer(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open checkpointer: %w", err)
	}

	for _, id := range threads {
		if err := saver.Delete(ctx, id); err != nil && !errors.Is(err, checkpoint.ErrNotFound) {
			_ = checkpoint.Close(saver)
			return nil, err
		}
	}

	return saver, nil
}

func runNoMemory(ctx context.Context, env *Env) error {
	p := newPrinter(env.Out)
	p.title("LESSON 007 - AGENT WITHOUT MEMORY")

	a, err := weatherAgent(ctx, env, nil)
	if err != nil {
		return err
	}

	for i, turn := range weatherTurns {
		p.step(i+1, "Independent invocation")

		if err := askWeather(ctx, p, a, "", turn); err != nil {
			return err
		}
	}

	p.notes(
		"Without a checkpointer every invocation starts with an empty history.",
		"The agent cannot recall the name given in the previous turn.",
		"Stateless agents suit one-shot questions and horizontally scaled workers.",
	)

	return nil
}

func runMemory(ctx context.Context, env *Env) error {
	p := newPrinter(env.Out)
	p.title("LESSON 008 - AGENT WITH MEMORY")

	saver, err := openSaver(ctx, env, "1")
	if err != nil {
		return err
	}
	defer checkpoint.Close(saver) //nolint:errcheck

	a, err := weatherAgent(ctx, env, saver)
	if err != nil {
		return err
	}

	for i, turn := range weatherTurns {
		p.step(i+1, "Invocation on thread 1")

		if err := askWeather(ctx, p, a, "1", turn); err != nil {
			return err
		}
	}

	if cp, err := saver.Get(ctx, "1"); err == nil {
		p.blank()
		p.printf("Thread 1 holds %d messages after %d turns", cp.State.Len(), len(weatherTurns))
	}

	p.notes(
		"The checkpointer stores the conversation under the thread id.",
		"Each invocation loads the thread, appends the new turn and saves it again.",
		"The store is configurable: memory, sqlite, redis or postgres.",
	)

	return nil
}

func runThreadIsolation(ctx context.Context, env *Env) error {
	p := newPrinter(env.Out)
	p.title("LESSON 009 - THREAD ISOLATION")

	saver, err := openSaver(ctx, env, "1", "2")
	if err != nil {
		return err
	}
	defer checkpoint.Close(saver) //nolint:errcheck

	a, err := weatherAgent(ctx, env, saver)
	if err != nil {
		return err
	}

	for i, turn := range weatherTurns {
		p.step(i+1, "Thread 1")

		if err := askWeather(ctx, p, a, "1", turn); err != nil {
			return err
		}
	}

	p.step(len(weatherTurns)+1, "Thread 2 asks for the name")

	if err := askWeather(ctx, p, a, "2", "Do you remember my name?"); err != nil {
		return err
	}

	p.step(len(weatherTurns)+2, "Stored messages per thread")

	for _, id := range []string{"1", "2"} {
		cp, err := saver.Get(ctx, id)
		if err != nil {
			return err
		}

		p.printf("  thread %s: %d messages", id, cp.State.Len())
	}

	p.notes(
		"Threads never share history: thread 2 does not know the name given on thread 1.",
		"One agent instance serves many concurrent conversations.",
		"Use stable ids (user or session ids) and delete threads you no longer need.",
	)

	return nil
}
