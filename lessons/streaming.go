package lessons

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hupe1980/agentcookbook/agent"
	"github.com/hupe1980/agentcookbook/core"
	"github.com/hupe1980/agentcookbook/model"
	"github.com/hupe1980/agentcookbook/tool"
)

var topicInfo = []struct{ key, text string }{
	{"go", "Go is a statically typed, compiled, general-purpose programming language designed at Google."},
	{"ai", "Artificial Intelligence is a field of computer science focused on systems that simulate human intelligence."},
	{"langchain", "LangChain is a framework for building applications with language models."},
}

type numbersArgs struct {
	Numbers []float64 `json:"numbers" description:"The numbers to analyse"`
}

type topicArgs struct {
	Topic string `json:"topic" description:"Report topic"`
}

func researchTools(env *Env) []tool.Tool {
	search := tool.NewTyped("search_information", "Search information about a topic.",
		func(tc *core.ToolContext, args queryArgs) (any, error) {
			if err := env.Sleep(tc.Context(), time.Second); err != nil {
				return nil, err
			}

			q := strings.ToLower(args.Query)
			for _, ti := range topicInfo {
				if strings.Contains(q, ti.key) {
					return ti.text, nil
				}
			}

			return fmt.Sprintf("No information about %q in the database.", args.Query), nil
		})

	stats := tool.NewTyped("calculate_statistics", "Calculate mean, minimum and maximum of a list of numbers.",
		func(tc *core.ToolContext, args numbersArgs) (any, error) {
			if err := env.Sleep(tc.Context(), 500*time.Millisecond); err != nil {
				return nil, err
			}

			if len(args.Numbers) == 0 {
				return "Empty list provided.", nil
			}

			lo, hi, sum := args.Numbers[0], args.Numbers[0], 0.0
			for _, n := range args.Numbers {
				sum += n
				lo = min(lo, n)
				hi = max(hi, n)
			}

			return fmt.Sprintf("Statistics: mean=%.2f, min=%g, max=%g", sum/float64(len(args.Numbers)), lo, hi), nil
		})

	report := tool.NewTyped("generate_report", "Generate a detailed report about a topic.",
		func(tc *core.ToolContext, args topicArgs) (any, error) {
			if err := env.Sleep(tc.Context(), 1500*time.Millisecond); err != nil {
				return nil, err
			}

			return fmt.Sprintf("REPORT: %s\nSummary: a comprehensive report about %s.\nAnalysis: data show significant growth.\nConclusion: continued investment is recommended.",
				strings.ToUpper(args.Topic), args.Topic), nil
		})

	return []tool.Tool{search, stats, report}
}

// drain consumes a stream, calling fn per event, and returns the run error.
func drain(events <-chan core.Event, errs <-chan error, fn func(core.Event)) error {
	for ev := range events {
		fn(ev)
	}

	return <-errs
}

func latest(ev core.Event) core.Content {
	if len(ev.Messages) == 0 {
		return core.Content{}
	}

	return ev.Messages[len(ev.Messages)-1]
}

func callNames(c core.Content) string {
	var names []string
	for _, fc := range c.FunctionCalls() {
		names = append(names, fc.Name)
	}

	return strings.Join(names, ", ")
}

func describe(c core.Content) string {
	switch {
	case c.Role == core.RoleUser:
		return "user question received"
	case len(c.FunctionCalls()) > 0:
		return "agent decided to call " + callNames(c)
	case c.Role == core.RoleTool:
		return "tool executed"
	case c.Role == core.RoleAssistant && c.Text() != "":
		return "final answer generated"
	default:
		return "step completed"
	}
}

func runAgentStreaming(ctx context.Context, env *Env) error {
	p := newPrinter(env.Out)
	p.title("LESSON 018 - AGENT STREAMING")

	m, err := env.Model(ctx, "", model.Settings{
		Temperature: model.Float(0.7),
		Timeout:     20 * time.Second,
		MaxTokens:   model.Int(2000),
	})
	if err != nil {
		return err
	}

	a := env.newAgent(m,
		agent.WithInstruction(`You are a smart assistant who searches for information and runs analyses.
You have access to the following tools:
- search_information: to search data about a topic
- calculate_statistics: to compute mean, minimum and maximum of numbers
- generate_report: to generate a detailed report about a topic
Use the tools when needed and give complete answers.`),
		agent.WithTools(researchTools(env)...),
	)

	stream := func(prompt string, mode agent.StreamMode, fn func(core.Event)) error {
		events, errs := a.Stream(ctx, agent.Text(prompt), mode)
		return drain(events, errs, fn)
	}

	p.step(1, "Invoke vs stream")
	p.printf("Agents stream state snapshots per step, not tokens.")

	start := time.Now()

	res, err := a.Invoke(ctx, agent.Text("Search information about Go"))
	if err != nil {
		return err
	}

	p.printf("[invoke] %s", truncate(res.Text(), 120))
	p.printf("[invoke] total time %s without intermediate feedback", time.Since(start).Round(time.Millisecond))

	start = time.Now()
	chunks := 0

	if err := stream("Search information about Go", agent.StreamValues, func(ev core.Event) {
		chunks++
		p.printf("[stream] chunk %d: %s", chunks, describe(latest(ev)))
	}); err != nil {
		return err
	}

	p.printf("[stream] total time %s with %d progress chunks", time.Since(start).Round(time.Millisecond), chunks)

	p.step(2, "Following each stage")

	if err := stream("Calculate the statistics of [15, 25, 35, 45]", agent.StreamValues, func(ev core.Event) {
		msg := latest(ev)
		if msg.Role == core.RoleAssistant && len(msg.FunctionCalls()) == 0 {
			p.printf("  answer ready: %s", truncate(msg.Text(), 80))
			return
		}

		p.printf("  %s", describe(msg))
	}); err != nil {
		return err
	}

	p.step(3, "Streaming with several tool calls")

	if err := stream("Search information about Go and calculate the statistics of [10, 20, 30, 40, 50]", agent.StreamValues, func(ev core.Event) {
		msg := latest(ev)

		switch {
		case len(msg.FunctionCalls()) > 0:
			p.printf("  calling tools: %s", callNames(msg))
		case msg.Role == core.RoleAssistant:
			p.printf("  final answer: %s", truncate(msg.Text(), 200))
		}
	}); err != nil {
		return err
	}

	p.step(4, "Chunk structure")

	chunks = 0

	if err := stream("Generate a report about Artificial Intelligence", agent.StreamValues, func(ev core.Event) {
		chunks++
		msg := latest(ev)

		if calls := msg.FunctionCalls(); len(calls) > 0 {
			p.printf("  chunk #%d: node=%s role=%s tool_calls=%d", chunks, ev.Node, msg.Role, len(calls))

			for _, c := range calls {
				p.printf("    -> tool: %s", c.Name)
			}

			return
		}

		p.printf("  chunk #%d: node=%s role=%s content=%q", chunks, ev.Node, msg.Role, truncate(msg.Text(), 50))
	}); err != nil {
		return err
	}

	p.printf("  total chunks: %d", chunks)

	p.step(5, "values vs updates")

	i := 0
	if err := stream("Calculate the statistics of [5, 10, 15]", agent.StreamValues, func(ev core.Event) {
		i++
		p.printf("  [values]  chunk %d: %d messages in state", i, len(ev.Messages))
	}); err != nil {
		return err
	}

	i = 0
	if err := stream("Calculate the statistics of [5, 10, 15]", agent.StreamUpdates, func(ev core.Event) {
		i++
		p.printf("  [updates] update %d: node %q added %d message(s)", i, ev.Node, len(ev.Messages))
	}); err != nil {
		return err
	}

	p.step(6, "Progress indicator")

	if err := stream("Search about LangChain and generate a report", agent.StreamValues, func(ev core.Event) {
		msg := latest(ev)

		switch {
		case len(msg.FunctionCalls()) > 0:
			p.printf("  running: %s... done", callNames(msg))
		case msg.Role == core.RoleAssistant:
			p.printf("  finished. First lines of the answer:")

			shown := 0
			for _, line := range strings.Split(msg.Text(), "\n") {
				if strings.TrimSpace(line) == "" || shown == 3 {
					continue
				}

				p.printf("    %s", line)
				shown++
			}
		}
	}); err != nil {
		return err
	}

	p.notes(
		"Stream emits one event per agent step: input, model turn, tool results.",
		"values carries the whole conversation; updates carries only what the step added.",
		"Total time is the same as invoke, but users see progress immediately.",
	)

	return nil
}
