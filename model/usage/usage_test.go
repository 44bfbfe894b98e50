package usage

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentcookbook/core"
	"github.com/hupe1980/agentcookbook/model"
)

func usageModel(name string, prompt, completion int) *model.MockModel {
	m := model.NewMockModel(name, "openai")
	m.SetHandler(func(context.Context, model.Request) (model.Response, error) {
		return model.Response{
			Content: core.NewAssistantText("ok"),
			Usage:   &model.TokenUsage{PromptTokens: prompt, CompletionTokens: completion, TotalTokens: prompt + completion},
		}, nil
	})

	return m
}

func TestCollect_AggregatesByModel(t *testing.T) {
	ctx, tracker := Collect(context.Background())

	mini := usageModel("gpt-4o-mini", 100, 50)
	big := usageModel("gpt-4o", 10, 5)

	for i := 0; i < 2; i++ {
		_, err := model.Invoke(ctx, mini, model.Prompt("a"))
		require.NoError(t, err)
	}

	_, err := model.Invoke(ctx, big, model.Prompt("b"))
	require.NoError(t, err)

	// calls without the collecting context are not recorded
	_, err = model.Invoke(context.Background(), big, model.Prompt("c"))
	require.NoError(t, err)

	total := tracker.Total()
	assert.Equal(t, 3, total.Calls)
	assert.Equal(t, 210, total.PromptTokens)
	assert.Equal(t, 315, total.TotalTokens)

	byModel := tracker.ByModel()
	assert.Equal(t, 2, byModel["gpt-4o-mini"].Calls)
	assert.Equal(t, 300, byModel["gpt-4o-mini"].TotalTokens)
	assert.Equal(t, []string{"gpt-4o", "gpt-4o-mini"}, tracker.Models())
	assert.Equal(t, 3, tracker.ByProvider()["openai"].Calls)

	got, ok := FromContext(ctx)
	require.True(t, ok)
	assert.Same(t, tracker, got)

	tracker.Reset()
	assert.Zero(t, tracker.Total().Calls)
}

func TestTracker_Failures(t *testing.T) {
	ctx, tracker := Collect(context.Background())

	m := model.NewMockModel("x", "mock")
	m.SetHandler(func(context.Context, model.Request) (model.Response, error) {
		return model.Response{}, errors.New("boom")
	})

	_, err := model.Invoke(ctx, m, model.Prompt("a"))
	require.Error(t, err)
	assert.Equal(t, 1, tracker.Failures())
	assert.Zero(t, tracker.Total().Calls)
}

func TestCatalog_Cost(t *testing.T) {
	c := DefaultCatalog()

	cost, ok := c.Cost("gpt-4o-mini", model.TokenUsage{PromptTokens: 1_000_000, CompletionTokens: 1_000_000})
	require.True(t, ok)
	assert.InDelta(t, 0.75, cost, 1e-9)

	p, ok := c.Lookup("gpt-4o-mini-2024-07-18")
	require.True(t, ok)
	assert.Equal(t, Price{Input: 0.15, Output: 0.60}, p)

	p, ok = c.Lookup("gpt-4o-2024-08-06")
	require.True(t, ok)
	assert.Equal(t, 2.50, p.Input)

	_, ok = c.Cost("unknown-model", model.TokenUsage{PromptTokens: 1})
	assert.False(t, ok)

	custom := c.With(map[string]Price{"gpt-4o-mini": {Input: 1, Output: 2}})
	cost, _ = custom.Cost("gpt-4o-mini", model.TokenUsage{PromptTokens: 500_000, CompletionTokens: 500_000})
	assert.InDelta(t, 1.5, cost, 1e-9)
	assert.Equal(t, 0.15, c["gpt-4o-mini"].Input)
}

func TestTracker_Cost(t *testing.T) {
	tr := NewTracker()
	tr.Record("gpt-4o-mini", "openai", model.TokenUsage{PromptTokens: 2_000_000})
	tr.Record("mystery", "x", model.TokenUsage{PromptTokens: 2_000_000})

	assert.InDelta(t, 0.30, tr.Cost(DefaultCatalog()), 1e-9)
}
