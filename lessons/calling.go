package lessons

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/agentcookbook/model"
)

func prompts(texts ...string) []model.Request {
	reqs := make([]model.Request, len(texts))
	for i, t := range texts {
		reqs[i] = model.Prompt(t)
	}

	return reqs
}

// streamTo prints every partial chunk and returns the final response and the
// number of chunks seen.
func streamTo(ctx context.Context, p *printer, m model.Model, prompt string) (*model.Response, int, error) {
	chunks := 0

	resp, err := model.Stream(ctx, m, model.Prompt(prompt), func(r model.Response) error {
		chunks++
		p.write(r.Text())

		return nil
	})
	if err != nil {
		return nil, chunks, err
	}

	if chunks == 0 {
		p.write(resp.Text())
	}

	p.blank()

	return resp, chunks, nil
}

func runInvokeStreamBatch(ctx context.Context, env *Env) error {
	p := newPrinter(env.Out)
	p.title("LESSON 025 - INVOKE, STREAM AND BATCH")

	m, err := env.Model(ctx, "", model.Settings{Temperature: model.Float(0.7)})
	if err != nil {
		return err
	}

	p.step(1, "Invoke: the complete answer")

	start := time.Now()

	resp, err := model.Invoke(ctx, m, model.Prompt("Write a short poem about the ocean."))
	if err != nil {
		return err
	}

	p.printf("%s", strings.TrimSpace(resp.Text()))
	p.printf("Total time: %s, returned %T", time.Since(start).Round(time.Millisecond), resp)

	p.step(2, "Stream: token by token")

	start = time.Now()

	if _, _, err := streamTo(ctx, p, m, "Write a short poem about the stars."); err != nil {
		return err
	}

	p.printf("Total time: %s", time.Since(start).Round(time.Millisecond))

	p.step(3, "Stream with aggregation")

	var chunks []string

	agg, err := model.Stream(ctx, m, model.Prompt("List 3 interesting facts about Go."), func(r model.Response) error {
		chunks = append(chunks, r.Text())
		return nil
	})
	if err != nil {
		return err
	}

	p.printf("Aggregated answer:\n%s", strings.TrimSpace(strings.Join(chunks, "")))
	p.printf("Chunks received: %d", len(chunks))
	p.printf("First chunks: %q", chunks[:min(5, len(chunks))])
	p.printf("The final response carries the same text: %t", len(chunks) == 0 || strings.Join(chunks, "") == agg.Text())

	p.step(4, "Batch: several requests in parallel")

	inputs := []string{
		"Translate to Portuguese: Good morning!",
		"Translate to Portuguese: Good night!",
		"Translate to Portuguese: See you later!",
		"Translate to Portuguese: Thank you!",
	}

	start = time.Now()

	responses, err := model.Batch(ctx, m, prompts(inputs...), 0)
	if err != nil {
		return err
	}

	elapsed := time.Since(start)

	for i, r := range responses {
		p.printf("%d. Input:  %s", i+1, inputs[i])
		p.printf("   Output: %s", strings.TrimSpace(r.Text()))
	}

	p.printf("Total time for %d requests: %s (%s on average)", len(inputs), elapsed.Round(time.Millisecond), (elapsed / time.Duration(len(inputs))).Round(time.Millisecond))

	p.step(5, "Sequential vs batch")

	questions := []string{
		"What is the capital of France?",
		"What is the capital of Brazil?",
		"What is the capital of Japan?",
	}

	start = time.Now()

	for _, q := range questions {
		if _, err := model.Invoke(ctx, m, model.Prompt(q)); err != nil {
			return err
		}
	}

	sequential := time.Since(start)
	p.printf("1. Sequential: %s", sequential.Round(time.Millisecond))

	start = time.Now()

	if _, err := model.Batch(ctx, m, prompts(questions...), 0); err != nil {
		return err
	}

	batched := time.Since(start)
	p.printf("2. Batch:      %s", batched.Round(time.Millisecond))

	if batched > 0 {
		p.printf("Speedup: %.2fx", float64(sequential)/float64(batched))
	}

	p.step(6, "Stream vs invoke for the user")

	const recursion = "Explain the concept of recursion in programming in two paragraphs."

	start = time.Now()

	resp, err = model.Invoke(ctx, m, model.Prompt(recursion))
	if err != nil {
		return err
	}

	p.printf("1. invoke: the user waits %s, then sees:", time.Since(start).Round(time.Millisecond))
	p.printf("%s", truncate(resp.Text(), 300))
	p.printf("2. stream: the user sees progress immediately:")

	start = time.Now()

	if _, _, err := streamTo(ctx, p, m, recursion); err != nil {
		return err
	}

	p.printf("[streaming completed in %s]", time.Since(start).Round(time.Millisecond))

	p.step(7, "Batch with max concurrency")

	counts := make([]string, 5)
	for i := range counts {
		counts[i] = fmt.Sprintf("Count to %d", i+1)
	}

	responses, err = model.Batch(ctx, m, prompts(counts...), 2)
	if err != nil {
		return err
	}

	p.printf("Processed %d requests with at most 2 in flight", len(counts))

	for i, r := range responses[:2] {
		p.printf("  %d. %s", i+1, truncate(r.Text(), 50))
	}

	p.step(8, "Concurrency with goroutines")

	greetings := []string{"Hi", "Hello", "Hey"}
	answers := make([]string, len(greetings))

	g, gctx := errgroup.WithContext(ctx)

	for i, text := range greetings {
		g.Go(func() error {
			r, err := model.Invoke(gctx, m, model.Prompt(text))
			if err != nil {
				return err
			}

			answers[i] = r.Text()

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	for i, a := range answers {
		p.printf("  %s -> %s", greetings[i], truncate(a, 60))
	}

	p.printf("Every call takes a context: cancel it to abort in-flight requests.")

	p.notes(
		"Invoke returns one complete response; Stream delivers partial chunks and then the final response.",
		"Batch runs requests concurrently, bounded by max concurrency, and keeps input order.",
		"Goroutines and contexts replace async variants: any call can run concurrently and be cancelled.",
	)

	return nil
}

func runSamplingParameters(ctx context.Context, env *Env) error {
	p := newPrinter(env.Out)
	p.title("LESSON 026 - SAMPLING PARAMETERS")

	build := func(s model.Settings) (model.Model, error) {
		return env.Model(ctx, "", s)
	}

	repeat := func(m model.Model, prompt string, n, width int) error {
		for i := range n {
			resp, err := model.Invoke(ctx, m, model.Prompt(prompt))
			if err != nil {
				return err
			}

			p.printf("  %d. %s", i+1, truncate(resp.Text(), width))
		}

		return nil
	}

	p.step(1, "temperature")

	for _, t := range []float64{0, 0.7, 1.5} {
		m, err := build(model.Settings{Temperature: model.Float(t)})
		if err != nil {
			return err
		}

		p.printf("temperature=%g:", t)

		if err := repeat(m, "Write one sentence about cats.", 3, 120); err != nil {
			return err
		}
	}

	p.printf("Answers vary more as the temperature grows.")

	p.step(2, "max tokens")

	for _, limit := range []int{20, 200} {
		m, err := build(model.Settings{MaxTokens: model.Int(limit)})
		if err != nil {
			return err
		}

		resp, err := model.Invoke(ctx, m, model.Prompt("Tell a story about a robot."))
		if err != nil {
			return err
		}

		p.printf("max_tokens=%d (finish reason %q): %s", limit, resp.FinishReason, truncate(resp.Text(), 200))
		p.printf("  words: %d", len(strings.Fields(resp.Text())))
	}

	p.step(3, "top_p")

	for _, topP := range []float64{1.0, 0.1} {
		m, err := build(model.Settings{Temperature: model.Float(1), TopP: model.Float(topP)})
		if err != nil {
			return err
		}

		p.printf("top_p=%g:", topP)

		if err := repeat(m, "Complete the sentence: The future of artificial intelligence will be...", 3, 80); err != nil {
			return err
		}
	}

	p.printf("A low top_p keeps answers conservative.")

	p.step(4, "frequency and presence penalties")

	for _, pen := range []float64{0, 1.0} {
		m, err := build(model.Settings{
			Temperature:      model.Float(0.7),
			FrequencyPenalty: model.Float(pen),
			PresencePenalty:  model.Float(pen),
		})
		if err != nil {
			return err
		}

		resp, err := model.Invoke(ctx, m, model.Prompt("List 10 fruits."))
		if err != nil {
			return err
		}

		p.printf("penalties=%g: %s", pen, truncate(strings.ReplaceAll(resp.Text(), "\n", " "), 200))
	}

	p.printf("frequency_penalty discourages repeated tokens; presence_penalty encourages new topics (-2.0 to 2.0).")

	p.step(5, "stop sequences")

	plain, err := build(model.Settings{Temperature: model.Float(0.7)})
	if err != nil {
		return err
	}

	stopped := model.WithSettings(plain, model.Settings{Stop: []string{".", "!", "?"}})

	for _, c := range []struct {
		label string
		m     model.Model
	}{{"without stop", plain}, {"with stop [. ! ?]", stopped}} {
		resp, err := model.Invoke(ctx, c.m, model.Prompt("Write 3 sentences about the universe"))
		if err != nil {
			return err
		}

		p.printf("%s: %s", c.label, truncate(resp.Text(), 200))
	}

	p.step(6, "seed")

	seeded, err := build(model.Settings{Temperature: model.Float(1), Seed: model.Int64(42)})
	if err != nil {
		return err
	}

	if err := repeat(seeded, "Invent a name for a technology company.", 5, 80); err != nil {
		return err
	}

	p.printf("A seed makes sampling reproducible on a best-effort basis.")

	p.step(7, "timeout")

	limited, err := build(model.Settings{Timeout: 5 * time.Second})
	if err != nil {
		return err
	}

	start := time.Now()

	resp, err := model.Invoke(ctx, limited, model.Prompt("Tell me a short story."))
	if err != nil {
		p.printf("Timeout or error: %v", err)
	} else {
		p.printf("Success in %s: %s", time.Since(start).Round(time.Millisecond), truncate(resp.Text(), 100))
	}

	p.step(8, "Combined presets")

	creative, err := build(model.Settings{
		Temperature:      model.Float(0.9),
		TopP:             model.Float(0.95),
		MaxTokens:        model.Int(150),
		FrequencyPenalty: model.Float(0.5),
		PresencePenalty:  model.Float(0.3),
		Seed:             model.Int64(123),
	})
	if err != nil {
		return err
	}

	factual, err := build(model.Settings{
		Temperature:      model.Float(0),
		TopP:             model.Float(0.1),
		MaxTokens:        model.Int(100),
		FrequencyPenalty: model.Float(0),
		PresencePenalty:  model.Float(0),
	})
	if err != nil {
		return err
	}

	for _, c := range []struct {
		label string
		m     model.Model
	}{{"creative (temp=0.9, top_p=0.95)", creative}, {"factual (temp=0, top_p=0.1)", factual}} {
		resp, err := model.Invoke(ctx, c.m, model.Prompt("Explain what machine learning is."))
		if err != nil {
			return err
		}

		p.printf("%s: %s", c.label, truncate(resp.Text(), 150))
	}

	p.notes(
		"temperature and top_p shape randomness; use temperature 0 for deterministic tasks.",
		"max tokens caps length and cost; the finish reason reports truncation.",
		"Penalties, stop sequences, seed and timeout are plain settings merged into each request.",
	)

	return nil
}
