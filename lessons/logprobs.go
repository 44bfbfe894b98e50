package lessons

import (
	"context"
	"fmt"

	"github.com/hupe1980/agentcookbook/model"
)

func percent(v float64) string {
	return fmt.Sprintf("%.2f%%", v*100)
}

func runLogprobs(ctx context.Context, env *Env) error {
	p := newPrinter(env.Out)
	p.title("LESSON 031 - LOG PROBABILITIES")

	m, err := env.Model(ctx, "", model.Settings{
		Temperature: model.Float(0),
		Logprobs:    true,
		TopLogprobs: model.Int(3),
	})
	if err != nil {
		return err
	}

	invoke := func(mdl model.Model, prompt string) (*model.Response, error) {
		return model.Invoke(ctx, mdl, model.Prompt(prompt))
	}

	p.step(1, "Enabling log probabilities")

	resp, err := invoke(m, "The capital of France is")
	if err != nil {
		return err
	}

	p.answer(resp.Text())

	if len(resp.Logprobs) > 0 {
		p.printf("Log probabilities available for %d tokens.", len(resp.Logprobs))
	} else {
		p.printf("Log probabilities not available (support varies by provider).")
	}

	p.step(2, "Token by token")

	resp, err = invoke(m, "The sky is")
	if err != nil {
		return err
	}

	p.answer(resp.Text())

	for i, t := range resp.Logprobs[:min(5, len(resp.Logprobs))] {
		prob := model.Probability(t.Logprob)

		p.printf("Token %d: %q", i+1, t.Token)
		p.printf("  log probability: %.4f", t.Logprob)
		p.printf("  probability:     %.4f (%s)", prob, percent(prob))

		if len(t.TopLogprobs) > 0 {
			p.printf("  top alternatives:")

			for _, alt := range t.TopLogprobs[:min(3, len(t.TopLogprobs))] {
				p.printf("    - %q: %s", alt.Token, percent(model.Probability(alt.Logprob)))
			}
		}
	}

	p.step(3, "Measuring confidence")

	for _, q := range []string{
		"2 + 2 equals",
		"The capital of the planet Mars is",
		"How many legs does a dog have?",
	} {
		resp, err := invoke(m, q)
		if err != nil {
			return err
		}

		p.printf("Question: %q", q)
		p.printf("Answer:   %q", truncate(resp.Text(), 100))

		if len(resp.Logprobs) == 0 {
			p.printf("Confidence not available")
			continue
		}

		c := model.Confidence(resp.Logprobs)
		p.printf("Average confidence: %s -> %s", percent(c), model.ConfidenceLevel(c))
	}

	p.step(4, "Detecting uncertainty")

	resp, err = invoke(m, "The inventor of the telephone was")
	if err != nil {
		return err
	}

	p.answer(resp.Text())

	uncertain := model.UncertainTokens(resp.Logprobs, 0.6)
	if len(uncertain) == 0 {
		p.printf("Every token has a probability of at least 60%%.")
	} else {
		p.printf("%d tokens below 60%% probability:", len(uncertain))

		for _, u := range uncertain[:min(5, len(uncertain))] {
			p.printf("  - %q at position %d: %.1f%%", u.Token, u.Index, u.Probability*100)
		}
	}

	p.step(5, "Alternatives for the first token")

	top5 := model.WithSettings(m, model.Settings{TopLogprobs: model.Int(5)})

	resp, err = invoke(top5, "The best football team is")
	if err != nil {
		return err
	}

	p.answer(resp.Text())

	if len(resp.Logprobs) > 0 {
		first := resp.Logprobs[0]
		p.printf("First token: %q with %s", first.Token, percent(model.Probability(first.Logprob)))

		for i, alt := range first.TopLogprobs {
			p.printf("  %d. %q: %s", i+1, alt.Token, percent(model.Probability(alt.Logprob)))
		}
	}

	p.step(6, "Accepting or rejecting answers")

	for _, q := range []string{
		"What is 5 + 5?",
		"What color is Napoleon's white horse?",
	} {
		resp, err := invoke(m, q)
		if err != nil {
			return err
		}

		p.printf("Question: %s", q)
		p.printf("Answer:   %s", truncate(resp.Text(), 100))

		if len(resp.Logprobs) == 0 {
			p.printf("Status:   ACCEPTED - no confidence data")
			continue
		}

		ok, c := model.Accept(resp.Logprobs, 0.7)
		if ok {
			p.printf("Status:   ACCEPTED - high confidence (%.1f%%)", c*100)
		} else {
			p.printf("Status:   REJECTED - low confidence (%.1f%%)", c*100)
		}
	}

	p.notes(
		"Log probabilities are natural logarithms; exp turns them back into probabilities.",
		"Average token probability is a cheap confidence signal for routing answers to review.",
		"Top alternatives show what else the model considered at each position.",
	)

	return nil
}
