package testutil

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentcookbook/core"
	"github.com/hupe1980/agentcookbook/model"
)

var weatherTool = model.NewToolDefinition("get_weather", "Weather", map[string]any{
	"type": "object",
	"properties": map[string]any{
		"city": map[string]any{"type": "string"},
		"days": map[string]any{"type": "integer", "minimum": 3.0},
	},
	"required": []string{"city"},
})

func TestAutoModel_CallsEachToolOnce(t *testing.T) {
	m := NewAutoModel("auto", "mock", func(o *AutoOptions) {
		o.Args = map[string]any{"city": "Paris"}
	})

	req := model.Prompt("Weather in Paris?")
	req.Tools = []model.ToolDefinition{weatherTool}

	resp, err := model.Invoke(context.Background(), m, req)
	require.NoError(t, err)

	calls := resp.Content.FunctionCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, "get_weather", calls[0].Name)

	var args map[string]any
	require.NoError(t, json.Unmarshal([]byte(calls[0].Arguments), &args))
	assert.Equal(t, "Paris", args["city"])
	assert.Equal(t, 3.0, args["days"])

	req.Contents = append(req.Contents, resp.Content, core.NewToolResponse(calls[0].ID, "get_weather", "sunny", nil))

	resp, err = model.Invoke(context.Background(), m, req)
	require.NoError(t, err)
	assert.Empty(t, resp.Content.FunctionCalls())
	assert.Contains(t, resp.Text(), "sunny")
}

func TestAutoModel_ToolChoiceNone(t *testing.T) {
	m := NewAutoModel("auto", "mock")

	req := model.Prompt("hi")
	req.Tools = []model.ToolDefinition{weatherTool}
	req.ToolChoice = &model.ToolChoice{Mode: model.ToolChoiceNone}

	resp, err := model.Invoke(context.Background(), m, req)
	require.NoError(t, err)
	assert.Equal(t, "Auto response to: hi", resp.Text())
	assert.Equal(t, 1, resp.Usage.PromptTokens)
}

func TestAutoModel_ResponseFormat(t *testing.T) {
	m := NewAutoModel("auto", "mock")

	req := model.Prompt("Rate it")
	req.ResponseFormat = &model.ResponseFormat{
		Type: model.ResponseFormatJSONSchema,
		Schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"rating":    map[string]any{"type": "integer", "minimum": 1.0, "maximum": 5.0},
				"sentiment": map[string]any{"type": "string", "enum": []any{"positive", "negative"}},
				"tags":      map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			},
		},
	}

	resp, err := model.Invoke(context.Background(), m, req)
	require.NoError(t, err)
	assert.JSONEq(t, `{"rating":1,"sentiment":"positive","tags":["sample"]}`, resp.Text())
}

func TestAutoModel_MaxTokensAndLogprobs(t *testing.T) {
	m := NewAutoModel("auto", "mock", func(o *AutoOptions) {
		o.Reply = func(model.Request) string { return "one two three four five" }
	})

	req := model.Prompt("count")
	req.Settings = model.Settings{MaxTokens: model.Int(4), Logprobs: true, TopLogprobs: model.Int(3)}

	resp, err := model.Invoke(context.Background(), m, req)
	require.NoError(t, err)
	assert.Equal(t, "one two three four", resp.Text())
	assert.Equal(t, "length", resp.FinishReason)
	require.Len(t, resp.Logprobs, 4)
	require.Len(t, resp.Logprobs[0].TopLogprobs, 3)
	assert.Equal(t, "one", resp.Logprobs[0].TopLogprobs[0].Token)
}

func TestResponseBuilder(t *testing.T) {
	resp := NewResponseBuilder().Text("thinking").Call("a", `{}`).Call("b", `{"x":1}`).Usage(3, 4).Build()

	calls := resp.Content.FunctionCalls()
	require.Len(t, calls, 2)
	assert.Equal(t, "call_2", calls[1].ID)
	assert.Equal(t, 7, resp.Usage.TotalTokens)
	assert.Equal(t, "thinking", resp.Text())
}

func TestStateBuilder(t *testing.T) {
	st := NewStateBuilder().Value("k", "v").Turns(12).Build()
	assert.Equal(t, 12, st.Len())
	assert.Equal(t, "v", st.StringValue("k"))
}
