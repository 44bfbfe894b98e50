package run

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentcookbook/model"
)

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) Handle(_ context.Context, ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) types() []EventType {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]EventType, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Type)
	}

	return out
}

func TestWithConfig_NotifiesHandlersAroundModelCalls(t *testing.T) {
	rec := &recorder{}
	ctx := WithConfig(context.Background(), Config{
		RunName:  "demo",
		Tags:     []string{"tutorial"},
		Metadata: map[string]any{"user": "u1"},
		Handlers: []Handler{rec},
	})

	cfg := FromContext(ctx)
	assert.NotEmpty(t, cfg.RunID)
	assert.Equal(t, "demo", cfg.RunName)

	m := model.NewMockModel("mock", "mock")

	_, err := model.Invoke(ctx, m, model.Prompt("hi"))
	require.NoError(t, err)

	assert.Equal(t, []EventType{EventModelStart, EventModelEnd}, rec.types())
	assert.Equal(t, "demo", rec.events[1].Config.RunName)
	assert.Equal(t, "u1", rec.events[1].Config.Metadata["user"])
	assert.Equal(t, "mock", rec.events[1].Name)
}

func TestWithConfig_NestedDoesNotDuplicate(t *testing.T) {
	rec := &recorder{}
	ctx := WithConfig(context.Background(), Config{Handlers: []Handler{rec}})
	ctx = WithConfig(ctx, Config{RunName: "inner", Handlers: []Handler{rec}})

	_, err := model.Invoke(ctx, model.NewMockModel("mock", "mock"), model.Prompt("hi"))
	require.NoError(t, err)
	assert.Len(t, rec.types(), 2)
}

func TestWithHandlers_SurviveReplacedConfig(t *testing.T) {
	outer := &recorder{}
	inner := &recorder{}

	ctx := WithHandlers(context.Background(), outer)
	ctx = WithConfig(ctx, Config{RunName: "lesson", Handlers: []Handler{inner}})

	_, err := model.Invoke(ctx, model.NewMockModel("mock", "mock"), model.Prompt("hi"))
	require.NoError(t, err)

	assert.Equal(t, []EventType{EventModelStart, EventModelEnd}, outer.types())
	assert.Equal(t, []EventType{EventModelStart, EventModelEnd}, inner.types())
	assert.Equal(t, "lesson", outer.events[0].Config.RunName)
}

func TestDispatch_ErrorFollowUp(t *testing.T) {
	rec := &recorder{}
	ctx := WithConfig(context.Background(), Config{Handlers: []Handler{rec}})

	Dispatch(ctx, Event{Type: EventToolEnd, Name: "divide", Err: errors.New("division by zero")})
	assert.Equal(t, []EventType{EventToolEnd, EventError}, rec.types())

	// no config: no-op
	Dispatch(context.Background(), Event{Type: EventToolEnd})
}

func TestOn_FiltersByType(t *testing.T) {
	var count int

	ctx := WithConfig(context.Background(), Config{Handlers: []Handler{
		On(EventModelEnd, func(context.Context, Event) { count++ }),
	}})

	_, err := model.Invoke(ctx, model.NewMockModel("mock", "mock"), model.Prompt("hi"))
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestConfigurableAndBatch(t *testing.T) {
	ctx := WithConfig(context.Background(), Config{
		MaxConcurrency: 2,
		Configurable:   map[string]any{"temperature": 0.9},
	})

	v, ok := Configurable(ctx, "temperature")
	require.True(t, ok)
	assert.Equal(t, 0.9, v)

	_, ok = Configurable(context.Background(), "temperature")
	assert.False(t, ok)

	resps, err := Batch(ctx, model.NewMockModel("mock", "mock"), []model.Request{model.Prompt("a"), model.Prompt("b"), model.Prompt("c")})
	require.NoError(t, err)
	require.Len(t, resps, 3)
	assert.Equal(t, "Mock response to: c", resps[2].Text())
}

func TestStdOutHandler(t *testing.T) {
	var buf bytes.Buffer

	ctx := WithConfig(context.Background(), Config{RunName: "trace", Tags: []string{"a", "b"}, Handlers: []Handler{NewStdOutHandler(&buf)}})

	_, err := model.Invoke(ctx, model.NewMockModel("mock", "mock"), model.Prompt("hi"))
	require.NoError(t, err)

	Dispatch(ctx, Event{Type: EventToolStart, Name: "calc", Args: `{"x":1}`})

	out := buf.String()
	assert.Contains(t, out, "[trace] model start: mock tags=a,b")
	assert.Contains(t, out, "[trace] model end: mock")
	assert.Contains(t, out, `[trace] tool start: calc {"x":1}`)
}

func TestConfig_CloneIsolation(t *testing.T) {
	meta := map[string]any{"k": "v"}
	ctx := WithConfig(context.Background(), Config{Metadata: meta})

	meta["k"] = "changed"
	assert.Equal(t, "v", FromContext(ctx).Metadata["k"])
}
