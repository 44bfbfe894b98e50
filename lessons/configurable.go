package lessons

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/hupe1980/agentcookbook/model"
	"github.com/hupe1980/agentcookbook/model/configurable"
	"github.com/hupe1980/agentcookbook/run"
)

// deployProfile maps a deployment name to an alternative key.
func deployProfile(name string) string {
	switch strings.ToLower(name) {
	case "", "dev", "development":
		return "dev"
	case "prod", "production":
		return "prod"
	default:
		return strings.ToLower(name)
	}
}

func runConfigurableModels(ctx context.Context, env *Env) error {
	p := newPrinter(env.Out)
	p.title("LESSON 030 - CONFIGURABLE MODELS")

	build := func(id string, s model.Settings) (model.Model, error) {
		return env.Model(ctx, id, s)
	}

	call := func(m model.Model, values map[string]any, prompt string) (string, error) {
		rctx := run.WithConfig(ctx, run.Config{Configurable: values})

		resp, err := model.Invoke(rctx, m, model.Prompt(prompt))
		if err != nil {
			return "", err
		}

		return resp.Text(), nil
	}

	// report prints a failed call without aborting the lesson.
	report := func(label string, text string, err error) {
		if err != nil {
			p.printf("%s error: %v", label, err)

			if errors.Is(err, configurable.ErrUnknownAlternative) {
				p.printf("%s (the selected alternative is not registered)", label)
			}

			return
		}

		p.printf("%s %s", label, truncate(text, 120))
	}

	p.step(1, "A configurable temperature")

	mini, err := build("openai:gpt-4o-mini", model.Settings{Temperature: model.Float(0.7)})
	if err != nil {
		return err
	}

	tempModel, err := configurable.New(mini, configurable.WithField("llm_temperature", configurable.FieldTemperature))
	if err != nil {
		return err
	}

	for _, c := range []struct {
		label  string
		values map[string]any
	}{
		{"default temperature (0.7):", nil},
		{"temperature=0 at runtime:", map[string]any{"llm_temperature": 0}},
		{"temperature=1.5 at runtime:", map[string]any{"llm_temperature": 1.5}},
	} {
		text, err := call(tempModel, c.values, "Write one sentence about cats.")
		if err != nil {
			return err
		}

		p.printf("%s %s", c.label, truncate(text, 120))
	}

	p.printf("Same model, different parameters at runtime.")

	p.step(2, "Several configurable fields")

	limitedMini, err := build("openai:gpt-4o-mini", model.Settings{Temperature: model.Float(0.7), MaxTokens: model.Int(100)})
	if err != nil {
		return err
	}

	multi, err := configurable.New(limitedMini,
		configurable.WithField("temperature", configurable.FieldTemperature),
		configurable.WithField("max_tokens", configurable.FieldMaxTokens),
	)
	if err != nil {
		return err
	}

	for _, c := range []struct {
		label  string
		values map[string]any
	}{
		{"defaults:", nil},
		{"temperature=0, max_tokens=50:", map[string]any{"temperature": 0, "max_tokens": 50}},
		{"temperature=1.5, max_tokens=200:", map[string]any{"temperature": 1.5, "max_tokens": 200}},
	} {
		text, err := call(multi, c.values, "Tell a story about a robot.")
		if err != nil {
			return err
		}

		p.printf("%s %s", c.label, truncate(text, 150))
	}

	p.step(3, "Alternatives: switching models at runtime")

	zero := model.Settings{Temperature: model.Float(0)}

	defaultModel, err := build("openai:gpt-4o-mini", zero)
	if err != nil {
		return err
	}

	gpt4o, err := build("openai:gpt-4o", zero)
	if err != nil {
		return err
	}

	claude, err := build("anthropic:claude-3-5-sonnet-20241022", model.Settings{
		Temperature: model.Float(0),
		Timeout:     30 * time.Second,
		Stop:        []string{"\n\n"},
	})
	if err != nil {
		return err
	}

	switchable, err := configurable.New(defaultModel,
		configurable.WithAlternative("gpt4o", gpt4o),
		configurable.WithAlternative("claude", claude),
	)
	if err != nil {
		return err
	}

	p.printf("Alternatives: %s", strings.Join(switchable.Keys(), ", "))

	for _, key := range []string{"default", "gpt4o", "claude", "mistral"} {
		text, err := call(switchable, map[string]any{"llm": key}, "What is the capital of Brazil?")
		report("  ["+key+"]", text, err)
	}

	p.step(4, "A/B testing")

	variantA, err := build("openai:gpt-4o-mini", model.Settings{Temperature: model.Float(0)})
	if err != nil {
		return err
	}

	variantB, err := build("openai:gpt-4o-mini", model.Settings{Temperature: model.Float(1)})
	if err != nil {
		return err
	}

	ab, err := configurable.New(mini,
		configurable.WithAlternative("variant_a", variantA),
		configurable.WithAlternative("variant_b", variantB),
		func(o *configurable.Options) { o.AlternativeKey = "model_variant" },
	)
	if err != nil {
		return err
	}

	variants := []string{"variant_a", "variant_b"}

	for userID := 1; userID <= 5; userID++ {
		variant := variants[env.Rand(len(variants))]

		rctx := run.WithConfig(ctx, run.Config{
			Configurable: map[string]any{"model_variant": variant},
			Metadata:     map[string]any{"user_id": userID, "variant": variant},
		})

		resp, err := model.Invoke(rctx, ab, model.Prompt("Say hello!"))
		if err != nil {
			return err
		}

		p.printf("  user %d (%s): %s", userID, variant, truncate(resp.Text(), 60))
	}

	p.printf("Metadata records the variant so metrics can be compared later.")

	p.step(5, "Deployment profiles")

	dev, err := build("openai:gpt-4o-mini", model.Settings{Temperature: model.Float(1)})
	if err != nil {
		return err
	}

	staging, err := build("openai:gpt-4o", model.Settings{Temperature: model.Float(0.5)})
	if err != nil {
		return err
	}

	prod, err := build("openai:gpt-4o", model.Settings{Temperature: model.Float(0)})
	if err != nil {
		return err
	}

	profiles, err := configurable.New(mini,
		configurable.WithAlternative("dev", dev),
		configurable.WithAlternative("staging", staging),
		configurable.WithAlternative("prod", prod),
		func(o *configurable.Options) { o.AlternativeKey = "environment" },
	)
	if err != nil {
		return err
	}

	for _, profile := range []string{"dev", "staging", "prod"} {
		text, err := call(profiles, map[string]any{"environment": profile}, "What is LangChain?")
		if err != nil {
			return err
		}

		p.printf("  %s: %s", strings.ToUpper(profile), truncate(text, 80))
	}

	p.step(6, "Fields and alternatives combined")

	combined, err := configurable.New(mini,
		configurable.WithField("temp", configurable.FieldTemperature),
		configurable.WithAlternative("anthropic", claude),
		func(o *configurable.Options) { o.AlternativeKey = "provider" },
	)
	if err != nil {
		return err
	}

	for _, c := range []struct {
		label  string
		values map[string]any
	}{
		{"  openai, temp=0:", map[string]any{"temp": 0}},
		{"  openai, temp=1.5:", map[string]any{"temp": 1.5}},
		{"  anthropic, temp=0:", map[string]any{"provider": "anthropic", "temp": 0}},
	} {
		text, err := call(combined, c.values, "Say a number.")
		report(c.label, text, err)
	}

	p.step(7, "Selection from the environment")

	current := env.Getenv("APP_ENV")
	if current == "" {
		current = env.Config.Env
	}

	byEnv, err := configurable.New(mini,
		configurable.WithAlternative("dev", dev),
		configurable.WithAlternative("prod", prod),
		func(o *configurable.Options) { o.AlternativeKey = "env" },
	)
	if err != nil {
		return err
	}

	text, err := call(byEnv, map[string]any{"env": deployProfile(current)}, "Hello!")
	p.printf("APP_ENV: %q -> alternative %q", current, deployProfile(current))
	report("  answer:", text, err)

	p.notes(
		"Configurable fields expose settings that the run config overrides per call.",
		"Alternatives swap the whole model, even across providers, behind one value.",
		"The same code serves A/B tests and deployment profiles by changing only configuration.",
	)

	return nil
}
