package lessons

import (
	"context"
	"time"

	"github.com/hupe1980/agentcookbook/internal/util"
	"github.com/hupe1980/agentcookbook/model"
)

const agesPuzzle = `Three friends (Ana, Bruno and Carlos) have different ages.
- Ana is older than Bruno
- Carlos is not the oldest
- The sum of the ages is 90 years
- The difference between the highest and the lowest age is 20 years
- Bruno is 25 years old
What are the ages of Ana and Carlos?`

const stepByStepTemplate = `Solve the problem below step by step.
Show ALL of your reasoning before giving the final answer.
Use this format:
1. UNDERSTANDING: [explain the problem]
2. ANALYSIS: [identify the key points]
3. REASONING: [show every step of the solution]
4. VERIFICATION: [check that the answer makes sense]
5. FINAL ANSWER: [concise answer]

Problem: {{.problem}}`

func timed(ctx context.Context, m model.Model, prompt string) (*model.Response, time.Duration, error) {
	start := time.Now()
	resp, err := model.Invoke(ctx, m, model.Prompt(prompt))

	return resp, time.Since(start), err
}

func printReasoningUsage(p *printer, u *model.TokenUsage) {
	p.usage(u)

	if u != nil && u.ReasoningTokens > 0 {
		p.printf("Reasoning tokens: %d (billed as output, never shown)", u.ReasoningTokens)
	}
}

func runReasoningModels(ctx context.Context, env *Env) error {
	p := newPrinter(env.Out)
	p.title("LESSON 024 - REASONING MODELS")

	standard, err := env.Model(ctx, "", model.Settings{Temperature: model.Float(1)})
	if err != nil {
		return err
	}

	p.step(1, "Standard model on a logic puzzle")

	resp, elapsed, err := timed(ctx, standard, agesPuzzle)
	if err != nil {
		return err
	}

	p.answer(truncate(resp.Text(), 500))
	p.printf("Time: %s", elapsed.Round(time.Millisecond))
	printReasoningUsage(p, resp.Usage)

	p.step(2, "Reasoning model on the same puzzle")

	reasoner, err := env.Model(ctx, "openai:o3-mini", model.Settings{ReasoningEffort: model.ReasoningEffortMedium})
	if err != nil {
		return err
	}

	var reasoningAvailable bool

	resp, elapsed, err = timed(ctx, reasoner, agesPuzzle)
	if err != nil {
		p.printf("The reasoning model failed: %v", err)
		p.printf("Reasoning models are not available on every account.")
	} else {
		reasoningAvailable = true

		p.answer(truncate(resp.Text(), 500))
		p.printf("Time: %s (the model thinks before answering)", elapsed.Round(time.Millisecond))
		printReasoningUsage(p, resp.Usage)
	}

	p.step(3, "Response metadata")

	metaModel := standard
	if reasoningAvailable {
		metaModel = reasoner
	}

	resp, _, err = timed(ctx, metaModel, "Solve: 2x + 5 = 15")
	if err != nil {
		return err
	}

	p.printf("Model:         %s", resp.Model)
	p.printf("Finish reason: %s", resp.FinishReason)
	printReasoningUsage(p, resp.Usage)

	p.step(4, "Reasoning effort")

	if reasoningAvailable {
		for _, effort := range []string{model.ReasoningEffortLow, model.ReasoningEffortHigh} {
			m := model.WithSettings(reasoner, model.Settings{ReasoningEffort: effort})

			resp, elapsed, err := timed(ctx, m, "Find all prime numbers between 100 and 150 that leave remainder 3 when divided by 7.")
			if err != nil {
				p.printf("  %-6s failed: %v", effort, err)
				continue
			}

			reasoning := 0
			if resp.Usage != nil {
				reasoning = resp.Usage.ReasoningTokens
			}

			p.printf("  %-6s %s, %d reasoning tokens: %s", effort, elapsed.Round(time.Millisecond), reasoning, truncate(resp.Text(), 80))
		}
	} else {
		p.printf("Skipped: effort low|medium|high trades latency and cost for depth.")
	}

	p.step(5, "Prompting a standard model to reason")

	prompt, err := util.RenderTemplate(stepByStepTemplate, map[string]any{
		"problem": "A train travels at 60 km/h and another at 90 km/h in opposite directions, leaving cities 300 km apart. How long until they meet?",
	})
	if err != nil {
		return err
	}

	resp, _, err = timed(ctx, standard, prompt)
	if err != nil {
		return err
	}

	p.answer(truncate(resp.Text(), 800))

	p.notes(
		"Reasoning models think internally before answering; the thinking is billed as reasoning tokens.",
		"They are slower and ignore sampling parameters; effort controls how long they think.",
		"Step-by-step prompt templates give standard models part of the benefit at lower cost.",
	)

	return nil
}
