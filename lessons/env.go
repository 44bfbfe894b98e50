package lessons

import (
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"os"
	"time"

	"github.com/hupe1980/agentcookbook/agent"
	"github.com/hupe1980/agentcookbook/checkpoint"
	"github.com/hupe1980/agentcookbook/config"
	"github.com/hupe1980/agentcookbook/logging"
	"github.com/hupe1980/agentcookbook/model"
	"github.com/hupe1980/agentcookbook/model/anthropic"
	"github.com/hupe1980/agentcookbook/model/gemini"
	"github.com/hupe1980/agentcookbook/model/openai"
	"github.com/hupe1980/agentcookbook/model/usage"
)

// ModelFactory builds a model from a "provider:name" or bare model id with
// default settings merged under every request.
type ModelFactory func(ctx context.Context, id string, s model.Settings) (model.Model, error)

// Env is everything a lesson may touch outside of its own code. Tests replace
// the fields that would reach the network, the clock or the file system.
type Env struct {
	Out    io.Writer
	Config *config.Config
	Logger logging.Logger

	Models       ModelFactory
	Transcribe   func(ctx context.Context, r io.Reader, filename string) (string, error)
	Checkpointer func(ctx context.Context) (checkpoint.Saver, error)

	Sleep    func(ctx context.Context, d time.Duration) error
	Fetch    func(ctx context.Context, url string) ([]byte, string, error)
	Rand     func(n int) int
	Getenv   func(key string) string
	ReadFile func(name string) ([]byte, error)
}

// NewEnv builds the production environment for cfg. A nil cfg uses the
// built-in defaults.
func NewEnv(cfg *config.Config, optFns ...func(e *Env)) (*Env, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	env := &Env{
		Out:      os.Stdout,
		Config:   cfg,
		Logger:   defaultLogger(cfg.Log),
		Models:   providerFactory(cfg),
		Sleep:    sleep,
		Fetch:    fetch,
		Rand:     rand.IntN,
		Getenv:   os.Getenv,
		ReadFile: os.ReadFile,
	}

	env.Transcribe = func(ctx context.Context, r io.Reader, filename string) (string, error) {
		t := openai.NewTranscriber(func(o *openai.Options) {
			o.APIKey = cfg.Providers.OpenAI.APIKey
			o.BaseURL = cfg.Providers.OpenAI.BaseURL
		})

		return t.Transcribe(ctx, r, filename)
	}

	env.Checkpointer = func(ctx context.Context) (checkpoint.Saver, error) {
		return checkpoint.Open(ctx, cfg.Checkpoint)
	}

	for _, fn := range optFns {
		fn(env)
	}

	if env.Models == nil {
		return nil, fmt.Errorf("lessons: no model factory configured")
	}

	return env, nil
}

// Model builds the model identified by id. An empty id selects the default
// OpenAI model of the configuration.
func (e *Env) Model(ctx context.Context, id string, s model.Settings) (model.Model, error) {
	if id == "" {
		id = model.ProviderOpenAI + ":" + e.Config.Providers.OpenAI.DefaultModel
	}

	m, err := e.Models(ctx, id, s)
	if err != nil {
		return nil, fmt.Errorf("failed to create model %q: %w", id, err)
	}

	e.Logger.Debug("lesson.model.created", "id", id, "provider", m.Info().Provider)

	return m, nil
}

// newAgent builds a lesson agent that logs through the env logger.
func (e *Env) newAgent(m model.Model, optFns ...func(o *agent.Options)) *agent.Agent {
	return agent.New(m, append(optFns, agent.WithLogger(e.Logger))...)
}

// Catalog returns the default price catalog with the configured overrides.
func (e *Env) Catalog() usage.Catalog {
	overrides := make(map[string]usage.Price, len(e.Config.Pricing))
	for name, p := range e.Config.Pricing {
		overrides[name] = usage.Price{Input: p.Input, Output: p.Output}
	}

	return usage.DefaultCatalog().With(overrides)
}

// defaultLogger builds a stderr CookbookLogger from the log settings.
func defaultLogger(lc config.LogConfig) logging.Logger {
	level, err := logging.ParseLevel(lc.Level)
	if err != nil {
		level = logging.LogLevelInfo
	}

	lcfg := logging.DefaultLoggerConfig()
	lcfg.Level = level
	lcfg.Format = lc.Format
	lcfg.Component = "lesson"

	return logging.NewLogger(lcfg)
}

func providerFactory(cfg *config.Config) ModelFactory {
	return func(ctx context.Context, id string, s model.Settings) (model.Model, error) {
		provider, name := model.ParseID(id)

		switch provider {
		case model.ProviderAnthropic:
			p := cfg.Providers.Anthropic
			if name == "" {
				name = p.DefaultModel
			}

			return anthropic.NewModel(func(o *anthropic.Options) {
				o.Model = name
				o.APIKey = p.APIKey
				o.BaseURL = p.BaseURL
				o.MaxRetries = p.MaxRetries
				o.Settings = s
			}), nil
		case model.ProviderGemini:
			p := cfg.Providers.Gemini
			if name == "" {
				name = p.DefaultModel
			}

			return gemini.NewModel(ctx, func(o *gemini.Options) {
				o.Model = name
				o.APIKey = p.APIKey
				o.BaseURL = p.BaseURL
				o.Settings = s
			})
		case model.ProviderOpenAI:
			p := cfg.Providers.OpenAI
			if name == "" {
				name = p.DefaultModel
			}

			return openai.NewModel(func(o *openai.Options) {
				o.Model = name
				o.APIKey = p.APIKey
				o.BaseURL = p.BaseURL
				o.MaxRetries = p.MaxRetries
				o.Settings = s
			}), nil
		default:
			return nil, fmt.Errorf("unsupported provider %q", provider)
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func fetch(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", err
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("failed to fetch %s: status %s", url, resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", err
	}

	return data, resp.Header.Get("Content-Type"), nil
}
