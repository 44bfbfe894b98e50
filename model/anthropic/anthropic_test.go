package anthropic

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentcookbook/core"
	"github.com/hupe1980/agentcookbook/model"
)

var _ model.Model = (*Model)(nil)

func newTestModel(t *testing.T, payload string, bodies *[]map[string]any) *Model {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)

		var body map[string]any
		require.NoError(t, json.Unmarshal(raw, &body))
		*bodies = append(*bodies, body)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(payload))
	}))
	t.Cleanup(srv.Close)

	client := anthropic.NewClient(option.WithBaseURL(srv.URL), option.WithAPIKey("test"), option.WithMaxRetries(0))

	return NewModelFromClient(&client)
}

func TestGenerate_ToolUse(t *testing.T) {
	var bodies []map[string]any

	m := newTestModel(t, `{
	  "id": "msg_1", "type": "message", "role": "assistant", "model": "claude-3-5-sonnet-20241022",
	  "content": [
	    {"type": "text", "text": "Let me check."},
	    {"type": "tool_use", "id": "toolu_1", "name": "get_weather", "input": {"city": "Paris"}}
	  ],
	  "stop_reason": "tool_use", "stop_sequence": null,
	  "usage": {"input_tokens": 20, "output_tokens": 8}
	}`, &bodies)

	req := model.Request{
		Instructions: "Be brief",
		Contents: []core.Content{
			core.NewSystemText("Extra system"),
			core.NewUserText("Weather?"),
		},
		Tools: []model.ToolDefinition{model.NewToolDefinition("get_weather", "Weather lookup", map[string]any{
			"type":       "object",
			"properties": map[string]any{"city": map[string]any{"type": "string"}},
			"required":   []string{"city"},
		})},
		ParallelToolCalls: model.Bool(false),
		Settings:          model.Settings{Temperature: model.Float(0.3), Stop: []string{"###"}},
	}

	resp, err := model.Invoke(context.Background(), m, req)
	require.NoError(t, err)

	assert.Equal(t, "Let me check.", resp.Text())
	calls := resp.Content.FunctionCalls()
	require.Len(t, calls, 1)
	assert.JSONEq(t, `{"city":"Paris"}`, calls[0].Arguments)
	assert.Equal(t, "tool_calls", resp.FinishReason)
	assert.Equal(t, 28, resp.Usage.TotalTokens)

	body := bodies[0]
	assert.Equal(t, float64(4096), body["max_tokens"])
	assert.InDelta(t, 0.3, body["temperature"], 1e-9)
	assert.Equal(t, []any{"###"}, body["stop_sequences"])
	assert.Len(t, body["system"], 2)
	assert.Equal(t, map[string]any{"type": "auto", "disable_parallel_tool_use": true}, body["tool_choice"])

	tool := body["tools"].([]any)[0].(map[string]any)
	assert.Equal(t, "get_weather", tool["name"])
	assert.Equal(t, []any{"city"}, tool["input_schema"].(map[string]any)["required"])
}

func TestGenerate_ResponseFormatEmulation(t *testing.T) {
	var bodies []map[string]any

	m := newTestModel(t, `{
	  "id": "msg_2", "type": "message", "role": "assistant", "model": "claude-3-5-sonnet-20241022",
	  "content": [{"type": "tool_use", "id": "toolu_2", "name": "Person", "input": {"name": "Ana", "age": 30}}],
	  "stop_reason": "tool_use", "stop_sequence": null,
	  "usage": {"input_tokens": 5, "output_tokens": 5}
	}`, &bodies)

	req := model.Prompt("Ana is 30")
	req.ResponseFormat = &model.ResponseFormat{
		Type:   model.ResponseFormatJSONSchema,
		Name:   "Person",
		Schema: map[string]any{"type": "object", "properties": map[string]any{"name": map[string]any{"type": "string"}}},
	}

	resp, err := model.Invoke(context.Background(), m, req)
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"Ana","age":30}`, resp.Text())
	assert.Empty(t, resp.Content.FunctionCalls())
	assert.Equal(t, "stop", resp.FinishReason)

	assert.Equal(t, map[string]any{"type": "tool", "name": "Person"}, bodies[0]["tool_choice"])
}

func TestBuildMessages_ToolResultsGrouped(t *testing.T) {
	contents := []core.Content{
		core.NewUserText("add"),
		{Role: core.RoleAssistant, Parts: []core.Part{
			core.FunctionCallPart{FunctionCall: core.FunctionCall{ID: "a", Name: "x", Arguments: `{"n":1}`}},
			core.FunctionCallPart{FunctionCall: core.FunctionCall{ID: "b", Name: "x"}},
		}},
		core.NewToolResponse("a", "x", 1, nil),
		core.NewToolResponse("b", "x", nil, assert.AnError),
		core.NewUserContent(core.NewFileURI("https://example.com/a.pdf", "application/pdf"), core.NewInlineFile("aGk=", "image/png", "")),
	}

	msgs, err := buildMessages(contents)
	require.NoError(t, err)
	require.Len(t, msgs, 4)

	raw, err := json.Marshal(msgs)
	require.NoError(t, err)

	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))

	results := decoded[2]["content"].([]any)
	require.Len(t, results, 2)
	assert.Equal(t, "tool_result", results[0].(map[string]any)["type"])
	assert.Equal(t, true, results[1].(map[string]any)["is_error"])

	media := decoded[3]["content"].([]any)
	assert.Equal(t, "document", media[0].(map[string]any)["type"])
	assert.Equal(t, "image", media[1].(map[string]any)["type"])

	_, err = buildMessages([]core.Content{core.NewUserContent(core.NewFileURI("gs://a.mp4", "video/mp4"))})
	assert.Error(t, err)
}

func TestBuildToolChoice(t *testing.T) {
	assert.Nil(t, buildToolChoice(model.Request{}, false).OfAuto)
	assert.NotNil(t, buildToolChoice(model.Request{ToolChoice: &model.ToolChoice{Mode: model.ToolChoiceRequired}}, true).OfAny)
	assert.NotNil(t, buildToolChoice(model.Request{ToolChoice: &model.ToolChoice{Mode: model.ToolChoiceNone}}, true).OfNone)
	assert.Equal(t, "calc", buildToolChoice(model.Request{ToolChoice: model.ToolChoiceFor("calc")}, true).OfTool.Name)

	withFormat := model.Request{ResponseFormat: &model.ResponseFormat{Type: model.ResponseFormatJSONSchema, Name: "Out"}}
	assert.NotNil(t, buildToolChoice(withFormat, true).OfAny)
}
