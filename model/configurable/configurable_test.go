package configurable

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentcookbook/model"
	"github.com/hupe1980/agentcookbook/run"
)

func TestFields(t *testing.T) {
	base := model.NewMockModel("gpt-4o-mini", "openai")

	m, err := New(base, WithField("temperature", FieldTemperature), WithField("max_tokens", FieldMaxTokens))
	require.NoError(t, err)

	ctx := run.WithConfig(context.Background(), run.Config{Configurable: map[string]any{
		"temperature": 0.9,
		"max_tokens":  "50",
	}})

	_, err = model.Invoke(ctx, m, model.Prompt("hi"))
	require.NoError(t, err)

	req := base.Requests()[0]
	assert.Equal(t, 0.9, *req.Settings.Temperature)
	assert.Equal(t, 50, *req.Settings.MaxTokens)

	// explicit request settings win
	r := model.Prompt("again")
	r.Settings.Temperature = model.Float(0.1)
	_, err = model.Invoke(ctx, m, r)
	require.NoError(t, err)
	assert.Equal(t, 0.1, *base.Requests()[1].Settings.Temperature)

	// no config: defaults untouched
	_, err = model.Invoke(context.Background(), m, model.Prompt("plain"))
	require.NoError(t, err)
	assert.Nil(t, base.Requests()[2].Settings.Temperature)
}

func TestAlternatives(t *testing.T) {
	mini := model.NewMockModel("gpt-4o-mini", "openai")
	big := model.NewMockModel("gpt-4o", "openai")
	claude := model.NewMockModel("claude-3-5-sonnet", "anthropic")

	m, err := New(mini, func(o *Options) {
		o.DefaultKey = "gpt4mini"
	}, WithAlternative("gpt4o", big), WithAlternative("claude", claude))
	require.NoError(t, err)

	assert.Equal(t, []string{"gpt4mini", "claude", "gpt4o"}, m.Keys())

	for key, want := range map[string]*model.MockModel{"gpt4mini": mini, "gpt4o": big, "claude": claude} {
		ctx := run.WithConfig(context.Background(), run.Config{Configurable: map[string]any{"llm": key}})

		resp, err := model.Invoke(ctx, m, model.Prompt("who"))
		require.NoError(t, err)
		assert.Equal(t, want.Info().Name, resp.Model)
	}

	ctx := run.WithConfig(context.Background(), run.Config{Configurable: map[string]any{"llm": "llama"}})
	_, err = model.Invoke(ctx, m, model.Prompt("who"))
	assert.ErrorIs(t, err, ErrUnknownAlternative)
}

func TestNew_Validation(t *testing.T) {
	_, err := New(model.NewMockModel("m", "mock"), WithField("x", "frequency"))
	assert.Error(t, err)

	_, err = New(model.NewMockModel("m", "mock"), WithAlternative("default", model.NewMockModel("n", "mock")))
	assert.Error(t, err)
}

func TestResolve_BadValue(t *testing.T) {
	m, err := New(model.NewMockModel("m", "mock"), WithField("temperature", FieldTemperature))
	require.NoError(t, err)

	ctx := run.WithConfig(context.Background(), run.Config{Configurable: map[string]any{"temperature": []int{1}}})
	_, _, err = m.Resolve(ctx)
	assert.Error(t, err)
}
