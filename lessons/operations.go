package lessons

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/agentcookbook/model"
	"github.com/hupe1980/agentcookbook/model/ratelimit"
	"github.com/hupe1980/agentcookbook/model/usage"
	"github.com/hupe1980/agentcookbook/run"
)

func seconds(d time.Duration) string {
	return fmt.Sprintf("%.1fs", d.Seconds())
}

func limited(m model.Model, rps float64, bucket int) (*ratelimit.Model, error) {
	l, err := ratelimit.New(func(o *ratelimit.Options) {
		o.RequestsPerSecond = rps
		o.MaxBucketSize = bucket
	})
	if err != nil {
		return nil, err
	}

	return ratelimit.Wrap(m, l), nil
}

func runRateLimiting(ctx context.Context, env *Env) error {
	p := newPrinter(env.Out)
	p.title("LESSON 027 - RATE LIMITING")

	m, err := env.Model(ctx, "", model.Settings{Temperature: model.Float(0)})
	if err != nil {
		return err
	}

	sequence := func(mdl model.Model, n int, prompt string) error {
		start := time.Now()

		for i := range n {
			resp, err := model.Invoke(ctx, mdl, model.Prompt(fmt.Sprintf(prompt, i+1)))
			if err != nil {
				p.printf("  %d. ERROR: %v", i+1, err)
				continue
			}

			p.printf("  %d. %s (at %s)", i+1, truncate(resp.Text(), 40), seconds(time.Since(start)))
		}

		p.printf("Total time: %s", seconds(time.Since(start)))

		return nil
	}

	p.step(1, "Without a limiter")

	if err := sequence(m, 5, "Say the number %d"); err != nil {
		return err
	}

	p.printf("Unthrottled requests may exceed the provider's limits.")

	p.step(2, "Limiter at 1 request per second")

	slow, err := limited(m, 1, 10)
	if err != nil {
		return err
	}

	if err := sequence(slow, 5, "Say the number %d"); err != nil {
		return err
	}

	p.printf("The bucket starts empty, so requests are spaced one second apart.")

	p.step(3, "Limiter at 3 requests per second")

	fast, err := limited(m, 3, 1)
	if err != nil {
		return err
	}

	if err := sequence(fast, 6, "Number %d"); err != nil {
		return err
	}

	p.step(4, "Bucket size")
	p.printf("The bucket refills at requests_per_second and holds at most max_bucket_size tokens.")
	p.printf("Each request takes one token; a larger bucket allows bursts after idle periods.")

	p.step(5, "Two models sharing one limiter")

	shared, err := ratelimit.New(func(o *ratelimit.Options) { o.RequestsPerSecond = 2 })
	if err != nil {
		return err
	}

	modelA, modelB := ratelimit.Wrap(m, shared), ratelimit.Wrap(m, shared)
	start := time.Now()

	for i := range 4 {
		name, mdl := "A", modelA
		if i%2 == 1 {
			name, mdl = "B", modelB
		}

		resp, err := model.Invoke(ctx, mdl, model.Prompt(fmt.Sprintf("Model %s: %d", name, i+1)))
		if err != nil {
			return err
		}

		p.printf("  model %s: %s (%s)", name, truncate(resp.Text(), 40), seconds(time.Since(start)))
	}

	p.printf("Both models respect the same 2 requests per second.")

	p.step(6, "Limiter applied to a batch")

	batched, err := limited(m, 2, 1)
	if err != nil {
		return err
	}

	inputs := make([]string, 5)
	for i := range inputs {
		inputs[i] = fmt.Sprintf("Translate to English: Olá %d", i)
	}

	start = time.Now()

	responses, err := model.Batch(ctx, batched, prompts(inputs...), 0)
	if err != nil {
		return err
	}

	for i, r := range responses {
		p.printf("  %d. %s", i+1, truncate(r.Text(), 60))
	}

	p.printf("Total time: %s; every request inside the batch waits for a token.", seconds(time.Since(start)))

	p.step(7, "Goroutines sharing one limiter")

	threaded, err := limited(m, 2, 1)
	if err != nil {
		return err
	}

	var (
		g       errgroup.Group
		results = make([]string, 5)
	)

	start = time.Now()

	for i := range results {
		g.Go(func() error {
			resp, err := model.Invoke(ctx, threaded, model.Prompt(fmt.Sprintf("Goroutine %d", i)))
			if err != nil {
				results[i] = fmt.Sprintf("goroutine %d: ERROR %v", i, err)
				return nil
			}

			results[i] = fmt.Sprintf("goroutine %d: %s", i, truncate(resp.Text(), 50))

			return nil
		})
	}

	_ = g.Wait()

	for _, line := range results {
		p.printf("  %s", line)
	}

	p.printf("Total time: %s", seconds(time.Since(start)))

	p.notes(
		"A limiter is a token bucket wrapped around a model; wrapped models share it safely.",
		"It throttles sequential calls, batches and goroutines alike.",
		"Rate limiting prevents provider errors instead of retrying after them.",
	)

	return nil
}

func printTokens(p *printer, indent string, u *model.TokenUsage) {
	if u == nil {
		p.printf("%susage metadata not available", indent)
		return
	}

	p.printf("%sTokens: %d in + %d out = %d total", indent, u.PromptTokens, u.CompletionTokens, u.TotalTokens)
}

func printTracker(p *printer, t *usage.Tracker) {
	total := t.Total()
	p.printf("  Calls:         %d", total.Calls)
	p.printf("  Input tokens:  %d", total.PromptTokens)
	p.printf("  Output tokens: %d", total.CompletionTokens)
	p.printf("  Total tokens:  %d", total.TotalTokens)
}

func runTokenUsage(ctx context.Context, env *Env) error {
	p := newPrinter(env.Out)
	p.title("LESSON 028 - TOKEN USAGE AND COST")

	catalog := env.Catalog()

	const name = "gpt-4o-mini"

	m, err := env.Model(ctx, "openai:"+name, model.Settings{Temperature: model.Float(0)})
	if err != nil {
		return err
	}

	cost := func(u model.TokenUsage) float64 {
		c, _ := catalog.Cost(name, u)
		return c
	}

	p.step(1, "Usage of one response")

	resp, err := model.Invoke(ctx, m, model.Prompt("Explain what Go is in 2 sentences."))
	if err != nil {
		return err
	}

	p.answer(resp.Text())
	printTokens(p, "", resp.Usage)

	p.step(2, "Running totals over several calls")

	var totals model.TokenUsage

	for i, q := range []string{
		"What is the capital of France?",
		"What is the capital of Brazil?",
		"What is the capital of Japan?",
	} {
		resp, err := model.Invoke(ctx, m, model.Prompt(q))
		if err != nil {
			return err
		}

		p.printf("%d. %s", i+1, q)
		p.printf("   Answer: %s", truncate(resp.Text(), 80))
		printTokens(p, "   ", resp.Usage)

		if resp.Usage != nil {
			totals.Add(*resp.Usage)
		}
	}

	p.printf("Totals: %d in, %d out, %d total", totals.PromptTokens, totals.CompletionTokens, totals.TotalTokens)

	p.step(3, "Cost from the price catalog")

	price, _ := catalog.Lookup(name)
	p.printf("Price of %s: %.3f USD in / %.3f USD out per 1M tokens", name, price.Input, price.Output)

	resp, err = model.Invoke(ctx, m, model.Prompt("Write a paragraph about artificial intelligence."))
	if err != nil {
		return err
	}

	p.printf("Answer: %s", truncate(resp.Text(), 100))
	printTokens(p, "", resp.Usage)

	if resp.Usage != nil {
		c := cost(*resp.Usage)
		p.printf("Estimated cost: $%.6f USD (%.4f cents)", c, c*100)
	}

	p.step(4, "Collecting usage through the context")

	cctx, tracker := usage.Collect(ctx)

	for _, q := range []string{"Translate to English: Olá", "Translate to English: Bom dia", "Translate to English: Boa noite"} {
		if _, err := model.Invoke(cctx, m, model.Prompt(q)); err != nil {
			return err
		}
	}

	p.printf("Aggregated over 3 calls:")
	printTracker(p, tracker)
	p.printf("  Cost:          $%.6f USD", tracker.Cost(catalog))

	p.step(5, "Usage while streaming")

	final, _, err := streamTo(ctx, p, m, "List the 3 primary colors.")
	if err != nil {
		return err
	}

	p.printf("From the final response:")
	printTokens(p, "  ", final.Usage)

	p.step(6, "Batch cost")

	responses, err := model.Batch(ctx, m, prompts("Say: One", "Say: Two", "Say: Three"), 0)
	if err != nil {
		return err
	}

	var batch model.TokenUsage

	for i, r := range responses {
		p.printf("%d. %s", i+1, truncate(r.Text(), 40))
		printTokens(p, "   ", r.Usage)

		if r.Usage != nil {
			batch.Add(*r.Usage)
		}
	}

	p.printf("Batch total: %d in + %d out = %d, cost $%.6f USD", batch.PromptTokens, batch.CompletionTokens, batch.TotalTokens, cost(batch))

	p.step(7, "Several models at once")

	big, err := env.Model(ctx, "openai:gpt-4o", model.Settings{})
	if err != nil {
		return err
	}

	cctx, tracker = usage.Collect(ctx)

	for _, c := range []struct {
		m      model.Model
		prompt string
	}{{m, "Hello!"}, {m, "How are you?"}, {big, "Briefly explain quantum computing."}} {
		if _, err := model.Invoke(cctx, c.m, model.Prompt(c.prompt)); err != nil {
			return err
		}
	}

	printTracker(p, tracker)

	byModel := tracker.ByModel()
	for _, n := range tracker.Models() {
		s := byModel[n]

		c, ok := catalog.Cost(n, s.TokenUsage)
		if !ok {
			p.printf("  %-24s %d calls, %d tokens, no price known", n, s.Calls, s.TotalTokens)
			continue
		}

		p.printf("  %-24s %d calls, %d tokens, $%.6f", n, s.Calls, s.TotalTokens, c)
	}

	p.printf("Costs differ per model: prefer small models when they are good enough.")

	p.notes(
		"Every final response reports prompt, completion and total tokens.",
		"A context-scoped tracker aggregates usage per model across invoke, stream and batch.",
		"Cost is tokens times the catalog price, input and output priced separately.",
	)

	return nil
}

func formatMetadata(md map[string]any) string {
	keys := make([]string, 0, len(md))
	for k := range md {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%v", k, md[k])
	}

	return strings.Join(parts, " ")
}

func runRunConfig(ctx context.Context, env *Env) error {
	p := newPrinter(env.Out)
	p.title("LESSON 029 - RUN CONFIGURATION")

	m, err := env.Model(ctx, "", model.Settings{Temperature: model.Float(0)})
	if err != nil {
		return err
	}

	invoke := func(cfg run.Config, prompt string) (*model.Response, error) {
		return model.Invoke(run.WithConfig(ctx, cfg), m, model.Prompt(prompt))
	}

	p.step(1, "Config on invoke")

	cfg := run.Config{
		Tags:     []string{"example", "test"},
		Metadata: map[string]any{"user_id": "123", "session": "abc"},
		RunName:  "First Invocation",
	}

	resp, err := invoke(cfg, "What is the capital of France?")
	if err != nil {
		return err
	}

	p.answer(resp.Text())
	p.printf("Tags:     %s", strings.Join(cfg.Tags, ", "))
	p.printf("Metadata: %s", formatMetadata(cfg.Metadata))
	p.printf("Run name: %s", cfg.RunName)

	p.step(2, "Tags for organisation")

	for _, c := range []struct {
		tags   []string
		prompt string
	}{
		{[]string{"qa", "production"}, "What is Go?"},
		{[]string{"translation", "batch"}, "Translate to Portuguese: Good morning"},
	} {
		resp, err := invoke(run.Config{Tags: c.tags}, c.prompt)
		if err != nil {
			return err
		}

		p.printf("[%s] %s", strings.Join(c.tags, ", "), truncate(resp.Text(), 100))
	}

	p.step(3, "Metadata for context")

	cfg = run.Config{
		RunName: "Chatbot Interaction",
		Metadata: map[string]any{
			"user_id":     "user_456",
			"request_id":  "req_789",
			"feature":     "chatbot",
			"version":     "v2.1",
			"environment": "staging",
		},
	}

	resp, err = invoke(cfg, "Explain machine learning in one sentence.")
	if err != nil {
		return err
	}

	p.answer(resp.Text())
	p.printf("Metadata: %s", formatMetadata(cfg.Metadata))

	p.step(4, "Run names")

	for _, c := range []struct{ question, name string }{
		{"What is 2+2?", "Simple Math"},
		{"Translate: Hello", "Translation Task"},
		{"What is AI?", "Q&A About AI"},
	} {
		resp, err := invoke(run.Config{RunName: c.name}, c.question)
		if err != nil {
			return err
		}

		p.printf("[%s] %s -> %s", c.name, c.question, truncate(resp.Text(), 80))
	}

	p.step(5, "Callback handlers")

	trace := run.NewStdOutHandler(env.Out)

	resp, err = invoke(run.Config{RunName: "Execution with Callback", Handlers: []run.Handler{trace}}, "List 2 colors.")
	if err != nil {
		return err
	}

	p.printf("Final answer: %s", resp.Text())

	p.step(6, "Config while streaming")

	sctx := run.WithConfig(ctx, run.Config{
		Tags:     []string{"streaming", "chat"},
		Metadata: map[string]any{"mode": "interactive"},
		RunName:  "Streaming Example",
		Handlers: []run.Handler{trace},
	})

	if _, err := model.Stream(sctx, m, model.Prompt("Count to 3."), func(r model.Response) error {
		p.write(r.Text())
		return nil
	}); err != nil {
		return err
	}

	p.blank()

	p.step(7, "Config on a batch")

	inputs := []string{"One", "Two", "Three"}
	cfg = run.Config{
		Tags:           []string{"batch-processing"},
		Metadata:       map[string]any{"batch_size": len(inputs)},
		RunName:        "Batch of 3",
		MaxConcurrency: 2,
	}

	responses, err := run.Batch(run.WithConfig(ctx, cfg), m, prompts(inputs...))
	if err != nil {
		return err
	}

	for i, r := range responses {
		p.printf("  %d. %s", i+1, truncate(r.Text(), 60))
	}

	p.printf("Tags: %s, metadata: %s, max concurrency: %d", strings.Join(cfg.Tags, ","), formatMetadata(cfg.Metadata), cfg.MaxConcurrency)

	p.step(8, "Configurable values")

	cctx := run.WithConfig(ctx, run.Config{Configurable: map[string]any{"llm_temperature": 0.9, "max_retries": 3}})
	temp, _ := run.Configurable(cctx, "llm_temperature")
	p.printf("llm_temperature=%v is read by configurable models at call time (see lesson 030).", temp)

	p.step(9, "Everything combined with usage collection")

	cfg = run.Config{
		Tags: []string{"production", "user-query", "v2"},
		Metadata: map[string]any{
			"user_id":    "user_999",
			"session_id": "session_abc123",
			"feature":    "qa_system",
			"version":    "2.0.1",
		},
		RunName:      "Complete Config Example",
		Configurable: map[string]any{"model_name": "gpt-4o-mini"},
		Handlers: []run.Handler{run.On(run.EventModelEnd, func(_ context.Context, ev run.Event) {
			p.printf("[handler] %s finished in run %q", ev.Name, ev.Config.RunName)
		})},
	}

	uctx, tracker := usage.Collect(run.WithConfig(ctx, cfg))

	resp, err = model.Invoke(uctx, m, model.Prompt("What is the speed of light?"))
	if err != nil {
		return err
	}

	p.answer(resp.Text())
	p.printf("Run id:   %s", run.FromContext(uctx).RunID)
	p.printf("Tags:     %s", strings.Join(cfg.Tags, ", "))
	p.printf("Metadata: %s", formatMetadata(cfg.Metadata))
	p.printf("Total tokens used: %d", tracker.Total().TotalTokens)

	p.notes(
		"A run config travels in the context and reaches every model call made with it.",
		"Tags, metadata and run names label calls for tracing; handlers observe them.",
		"Max concurrency bounds batches and configurable values drive runtime model changes.",
	)

	return nil
}
