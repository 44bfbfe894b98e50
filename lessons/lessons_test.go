package lessons

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/hupe1980/agentcookbook/checkpoint"
	"github.com/hupe1980/agentcookbook/config"
	"github.com/hupe1980/agentcookbook/core"
	"github.com/hupe1980/agentcookbook/internal/testutil"
	"github.com/hupe1980/agentcookbook/logging"
	"github.com/hupe1980/agentcookbook/model"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// models hands out auto-responding mock models and remembers them by id.
type models struct {
	mu     sync.Mutex
	byID   map[string]*model.MockModel
	failOn map[string]error
}

func newModels() *models {
	return &models{byID: map[string]*model.MockModel{}, failOn: map[string]error{}}
}

func (ms *models) factory(_ context.Context, id string, s model.Settings) (model.Model, error) {
	provider, name := model.ParseID(id)
	if name == "" {
		name = provider + "-default"
	}

	m := testutil.NewAutoModel(name, provider)

	if err, ok := ms.failOn[name]; ok {
		m = model.NewMockModel(name, provider)
		m.SetHandler(func(context.Context, model.Request) (model.Response, error) { return model.Response{}, err })
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	// The first model built for an id is kept for inspection.
	if _, ok := ms.byID[id]; !ok {
		ms.byID[id] = m
	}

	return model.WithSettings(m, s), nil
}

func (ms *models) get(id string) *model.MockModel {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	return ms.byID[id]
}

func newTestEnv(t *testing.T, optFns ...func(e *Env)) (*Env, *bytes.Buffer, *models) {
	t.Helper()

	out := &bytes.Buffer{}
	ms := newModels()
	saver := checkpoint.NewMemorySaver()

	env, err := NewEnv(config.DefaultConfig(), append([]func(e *Env){func(e *Env) {
		e.Out = out
		e.Logger = logging.NewLogger(&logging.LoggerConfig{Level: logging.LogLevelInfo, Output: io.Discard})
		e.Models = ms.factory
		e.Sleep = func(ctx context.Context, _ time.Duration) error { return ctx.Err() }
		e.Fetch = func(context.Context, string) ([]byte, string, error) {
			return []byte("\x89PNG fake image"), "image/png", nil
		}
		e.Transcribe = func(context.Context, io.Reader, string) (string, error) {
			return "hello from the recording", nil
		}
		e.Checkpointer = func(context.Context) (checkpoint.Saver, error) { return saver, nil }
		e.Rand = func(int) int { return 0 }
		e.Getenv = func(string) string { return "" }
		e.ReadFile = func(name string) ([]byte, error) { return []byte("data of " + name), nil }
	}}, optFns...)...)
	require.NoError(t, err)

	return env, out, ms
}

func TestAll(t *testing.T) {
	all := All()
	require.Len(t, all, 32)

	slugs := map[string]bool{}

	for i, l := range all {
		assert.Equal(t, fmt.Sprintf("%03d", i+1), l.ID)
		assert.NotEmpty(t, l.Title)
		assert.NotNil(t, l.Run)
		assert.False(t, slugs[l.Slug], "duplicate slug %s", l.Slug)

		slugs[l.Slug] = true
	}
}

func TestLookup(t *testing.T) {
	tests := []struct {
		key  string
		want string
		ok   bool
	}{
		{"7", "007", true},
		{"007", "007", true},
		{"memory", "008", true},
		{" Tool-Choice ", "032", true},
		{"33", "", false},
		{"nope", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			l, ok := Lookup(tt.key)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, l.ID)
		})
	}
}

func TestLessons_Run(t *testing.T) {
	for _, l := range All() {
		t.Run(l.ID+"-"+l.Slug, func(t *testing.T) {
			if l.Slug == "rate-limiting" && testing.Short() {
				t.Skip("waits on real token buckets")
			}

			env, out, _ := newTestEnv(t)

			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			defer cancel()

			require.NoError(t, l.Run(ctx, env))

			text := out.String()
			assert.Contains(t, text, "LESSON "+l.ID)
			assert.Contains(t, text, "--- Step 1:")
			assert.Contains(t, text, "Key observations:")
		})
	}
}

func TestRateLimiting_GoroutineResultsInOrder(t *testing.T) {
	if testing.Short() {
		t.Skip("waits on real token buckets")
	}

	env, out, _ := newTestEnv(t)

	l, ok := Lookup("rate-limiting")
	require.True(t, ok)
	require.NoError(t, l.Run(context.Background(), env))

	text := out.String()
	prev := strings.Index(text, "Goroutines sharing one limiter")
	require.GreaterOrEqual(t, prev, 0)

	for i := range 5 {
		idx := strings.Index(text, fmt.Sprintf("  goroutine %d: ", i))
		require.Greater(t, idx, prev, "goroutine %d", i)
		prev = idx
	}

	assert.NotContains(t, text, "ERROR")
}

func TestNewEnv(t *testing.T) {
	env, err := NewEnv(nil)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultConfig().Env, env.Config.Env)
	assert.NotNil(t, env.Transcribe)
	assert.NotNil(t, env.Checkpointer)
	assert.IsType(t, &logging.CookbookLogger{}, env.Logger)

	_, err = NewEnv(nil, func(e *Env) { e.Models = nil })
	assert.Error(t, err)
}

func TestEnv_LessonAgentsLogToEnvLogger(t *testing.T) {
	var logs bytes.Buffer

	env, _, _ := newTestEnv(t, func(e *Env) {
		e.Logger = logging.NewLogger(&logging.LoggerConfig{Level: logging.LogLevelInfo, Format: "json", Output: &logs})
	})

	l, ok := Lookup("tool-agent")
	require.True(t, ok)
	require.NoError(t, l.Run(context.Background(), env))

	assert.Contains(t, logs.String(), `"msg":"tool.call.completed"`)
	assert.Contains(t, logs.String(), `"tool_name":"get_equation_result"`)
	assert.Contains(t, logs.String(), `"msg":"model.call.completed"`)
}

func TestEnv_ModelDefaultsToConfiguredOpenAI(t *testing.T) {
	env, _, ms := newTestEnv(t)

	m, err := env.Model(context.Background(), "", model.Settings{})
	require.NoError(t, err)
	assert.Equal(t, model.ProviderOpenAI, m.Info().Provider)
	assert.NotNil(t, ms.get("openai:gpt-4o-mini"))
}

func TestEnv_ModelWrapsFactoryErrors(t *testing.T) {
	boom := errors.New("boom")

	env, _, _ := newTestEnv(t, func(e *Env) {
		e.Models = func(context.Context, string, model.Settings) (model.Model, error) { return nil, boom }
	})

	_, err := env.Model(context.Background(), "anthropic:claude", model.Settings{})
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "anthropic:claude")
}

func TestEnv_CatalogOverrides(t *testing.T) {
	env, _, _ := newTestEnv(t)
	env.Config.Pricing = map[string]config.PriceConfig{"gpt-4o-mini": {Input: 1, Output: 2}}

	p, ok := env.Catalog().Lookup("gpt-4o-mini-2024-07-18")
	require.True(t, ok)
	assert.InDelta(t, 1.0, p.Input, 1e-9)
	assert.InDelta(t, 2.0, p.Output, 1e-9)

	_, ok = env.Catalog().Lookup("gpt-4o")
	assert.True(t, ok)
}

func TestProviderFactory(t *testing.T) {
	cfg := config.DefaultConfig()
	f := providerFactory(cfg)

	m, err := f(context.Background(), "claude-3-5-haiku", model.Settings{})
	require.NoError(t, err)
	assert.Equal(t, model.ProviderAnthropic, m.Info().Provider)

	m, err = f(context.Background(), "openai:", model.Settings{})
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o-mini", m.Info().Name)

	_, err = f(context.Background(), "mistral:large", model.Settings{})
	assert.Error(t, err)
}

func TestMemory_PersistsThread(t *testing.T) {
	saver := checkpoint.NewMemorySaver()

	env, _, _ := newTestEnv(t, func(e *Env) {
		e.Checkpointer = func(context.Context) (checkpoint.Saver, error) { return saver, nil }
	})

	l, ok := Lookup("memory")
	require.True(t, ok)
	require.NoError(t, l.Run(context.Background(), env))

	cp, err := saver.Get(context.Background(), "1")
	require.NoError(t, err)
	assert.Greater(t, cp.State.Len(), 0)
}

func TestVision_InlineImage(t *testing.T) {
	env, _, ms := newTestEnv(t)

	require.NoError(t, runVision(context.Background(), env))

	var inline []core.FilePart

	for _, req := range ms.get("openai:gpt-4o-mini").Requests() {
		for _, c := range req.Contents {
			for _, part := range c.Parts {
				if fp, ok := part.(core.FilePart); ok && fp.File.IsInline() {
					inline = append(inline, fp)
				}
			}
		}
	}

	require.NotEmpty(t, inline)
	assert.Equal(t, "image/png", inline[0].File.MimeType)
}

func TestMultimodalMedia_DescribesWithoutSources(t *testing.T) {
	env, out, ms := newTestEnv(t)

	require.NoError(t, runMultimodalMedia(context.Background(), env))

	assert.Nil(t, ms.get("gemini:"))
	assert.Contains(t, out.String(), "set media.audio_uri")
	assert.Contains(t, out.String(), "file application/pdf")
}

func TestMultimodalMedia_SendsConfiguredSources(t *testing.T) {
	env, out, ms := newTestEnv(t)
	env.Config.Media = config.MediaConfig{
		AudioFile: "talk.mp3",
		AudioURI:  "gs://bucket/talk.mp3",
		VideoURI:  "gs://bucket/clip.mp4",
		PDFURI:    "gs://bucket/doc.pdf",
	}

	require.NoError(t, runMultimodalMedia(context.Background(), env))

	gemini := ms.get("gemini:")
	require.NotNil(t, gemini)
	assert.Len(t, gemini.Requests(), 5)
	assert.Contains(t, out.String(), "Transcript: hello from the recording")
	assert.NotContains(t, out.String(), "(set media.")
}

func TestReasoningModels_FailureIsReported(t *testing.T) {
	env, out, ms := newTestEnv(t)
	ms.failOn["o3-mini"] = errors.New("model not available")

	require.NoError(t, runReasoningModels(context.Background(), env))
	assert.Contains(t, out.String(), "The reasoning model failed: model not available")
	assert.Contains(t, out.String(), "Skipped: effort")
}

func TestConfigurableModels_UnknownAlternativeIsReported(t *testing.T) {
	env, out, _ := newTestEnv(t, func(e *Env) {
		e.Getenv = func(key string) string {
			if key == "APP_ENV" {
				return "production"
			}

			return ""
		}
	})

	require.NoError(t, runConfigurableModels(context.Background(), env))

	text := out.String()
	assert.Contains(t, text, "[mistral] error")
	assert.Contains(t, text, `APP_ENV: "production" -> alternative "prod"`)
}

func TestToolChoice_SmartChoice(t *testing.T) {
	assert.Equal(t, "tool:get_weather", choiceLabel(smartToolChoice("How is the weather?")))
	assert.Equal(t, "tool:calculate", choiceLabel(smartToolChoice("What is 25 * 4?")))
	assert.Equal(t, model.ToolChoiceAuto, choiceLabel(smartToolChoice("Capital of Brazil?")))
}

func TestLogprobs_ReportsConfidence(t *testing.T) {
	env, out, _ := newTestEnv(t)

	require.NoError(t, runLogprobs(context.Background(), env))

	text := out.String()
	assert.Contains(t, text, "Average confidence:")
	assert.Contains(t, text, "Status:   ")
	assert.NotContains(t, text, "Log probabilities not available")
}

func TestTokenUsage_PricesCalls(t *testing.T) {
	env, out, _ := newTestEnv(t)

	require.NoError(t, runTokenUsage(context.Background(), env))

	text := out.String()
	assert.Contains(t, text, "Price of gpt-4o-mini: 0.150 USD in / 0.600 USD out per 1M tokens")
	assert.Contains(t, text, "Calls:         3")
	assert.NotContains(t, text, "no price known")
}

func TestRunConfig_HandlersTrace(t *testing.T) {
	env, out, _ := newTestEnv(t)

	require.NoError(t, runRunConfig(context.Background(), env))

	text := out.String()
	assert.Contains(t, text, "[Execution with Callback] model start")
	assert.Contains(t, text, `finished in run "Complete Config Example"`)
}

func TestDeployProfile(t *testing.T) {
	for in, want := range map[string]string{"": "dev", "development": "dev", "Production": "prod", "staging": "staging"} {
		assert.Equal(t, want, deployProfile(in), in)
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("  abc ", 5))
	assert.Equal(t, "ab...", truncate("abcdef", 2))
	assert.Equal(t, "São...", truncate("São Paulo", 3))
	assert.True(t, strings.HasSuffix(truncate(strings.Repeat("x", 10), 4), "..."))
}
