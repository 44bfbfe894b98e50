package gemini

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/hupe1980/agentcookbook/core"
	"github.com/hupe1980/agentcookbook/model"
)

var _ model.Model = (*Model)(nil)

func TestBuildContents(t *testing.T) {
	contents := []core.Content{
		core.NewSystemText("ignored here"),
		core.NewUserContent(
			core.TextPart{Text: "Transcribe"},
			core.NewFileURI("gs://bucket/talk.mp3", "audio/mpeg"),
			core.NewInlineFile("aGVsbG8=", "application/pdf", "doc.pdf"),
			core.NewImageURL("https://example.com/cat.png", ""),
		),
		{Role: core.RoleAssistant, Parts: []core.Part{
			core.FunctionCallPart{FunctionCall: core.FunctionCall{ID: "c1", Name: "lookup", Arguments: `{"q":"go"}`}},
		}},
		core.NewToolResponse("c1", "lookup", "found", nil),
	}

	out, err := buildContents(contents)
	require.NoError(t, err)
	require.Len(t, out, 3)

	user := out[0]
	assert.Equal(t, genai.RoleUser, string(user.Role))
	require.Len(t, user.Parts, 4)
	assert.Equal(t, "audio/mpeg", user.Parts[1].FileData.MIMEType)
	assert.Equal(t, []byte("hello"), user.Parts[2].InlineData.Data)
	assert.Equal(t, "image/png", user.Parts[3].FileData.MIMEType)

	assert.Equal(t, genai.RoleModel, string(out[1].Role))
	assert.Equal(t, map[string]any{"q": "go"}, out[1].Parts[0].FunctionCall.Args)

	resp := out[2].Parts[0].FunctionResponse
	assert.Equal(t, "lookup", resp.Name)
	assert.Equal(t, "c1", resp.ID)
	assert.Equal(t, map[string]any{"result": "found"}, resp.Response)

	_, err = buildContents([]core.Content{core.NewUserContent(core.NewInlineFile("!!", "image/png", ""))})
	assert.Error(t, err)

	_, err = buildContents([]core.Content{core.NewUserContent(core.NewFileURI("gs://bucket/blob", ""))})
	assert.Error(t, err)
}

func TestBuildConfig(t *testing.T) {
	req := model.Request{
		Instructions: "Be brief",
		Tools:        []model.ToolDefinition{model.NewToolDefinition("calc", "Calculator", map[string]any{"type": "object"})},
		ToolChoice:   model.ToolChoiceFor("calc"),
		ResponseFormat: &model.ResponseFormat{
			Type:   model.ResponseFormatJSONSchema,
			Schema: map[string]any{"type": "object"},
		},
		Settings: model.Settings{
			Temperature:     model.Float(0.2),
			MaxTokens:       model.Int(100),
			Seed:            model.Int64(42),
			Stop:            []string{"END"},
			ReasoningEffort: model.ReasoningEffortLow,
		},
	}

	cfg := buildConfig(req)
	require.NotNil(t, cfg.SystemInstruction)
	assert.Equal(t, "Be brief", cfg.SystemInstruction.Parts[0].Text)
	assert.InDelta(t, 0.2, *cfg.Temperature, 1e-6)
	assert.Equal(t, int32(100), cfg.MaxOutputTokens)
	assert.Equal(t, int32(42), *cfg.Seed)
	assert.Equal(t, []string{"END"}, cfg.StopSequences)
	assert.Equal(t, int32(1024), *cfg.ThinkingConfig.ThinkingBudget)
	assert.Equal(t, "application/json", cfg.ResponseMIMEType)
	assert.Equal(t, map[string]any{"type": "object"}, cfg.ResponseJsonSchema)

	require.Len(t, cfg.Tools, 1)
	assert.Equal(t, "calc", cfg.Tools[0].FunctionDeclarations[0].Name)
	assert.Equal(t, genai.FunctionCallingConfigModeAny, cfg.ToolConfig.FunctionCallingConfig.Mode)
	assert.Equal(t, []string{"calc"}, cfg.ToolConfig.FunctionCallingConfig.AllowedFunctionNames)

	assert.Nil(t, toolConfig(nil))
	assert.Equal(t, genai.FunctionCallingConfigModeNone, toolConfig(&model.ToolChoice{Mode: model.ToolChoiceNone}).FunctionCallingConfig.Mode)
}

func TestConvertResponse(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		ResponseID: "r1",
		Candidates: []*genai.Candidate{{
			FinishReason: genai.FinishReasonStop,
			Content: &genai.Content{Role: genai.RoleModel, Parts: []*genai.Part{
				{Text: "thinking...", Thought: true},
				{Text: "Answer"},
				{FunctionCall: &genai.FunctionCall{Name: "calc", Args: map[string]any{"x": 1.0}}},
			}},
		}},
		UsageMetadata: &genai.GenerateContentResponseUsageMetadata{
			PromptTokenCount:     10,
			CandidatesTokenCount: 4,
			ThoughtsTokenCount:   6,
			TotalTokenCount:      20,
		},
	}

	out := convertResponse(resp, DefaultModel)
	assert.Equal(t, "Answer", out.Text())
	assert.Equal(t, DefaultModel, out.Model)
	assert.Equal(t, "tool_calls", out.FinishReason)

	calls := out.Content.FunctionCalls()
	require.Len(t, calls, 1)
	assert.NotEmpty(t, calls[0].ID)
	assert.JSONEq(t, `{"x":1}`, calls[0].Arguments)

	assert.Equal(t, &model.TokenUsage{PromptTokens: 10, CompletionTokens: 10, TotalTokens: 20, ReasoningTokens: 6}, out.Usage)
	assert.Equal(t, "length", finishReason(genai.FinishReasonMaxTokens, false))
}

func TestGenerate_HTTP(t *testing.T) {
	var body map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, ":generateContent"))

		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(raw, &body))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
		  "candidates": [{"content": {"role": "model", "parts": [{"text": "Hello"}]}, "finishReason": "STOP"}],
		  "usageMetadata": {"promptTokenCount": 3, "candidatesTokenCount": 1, "totalTokenCount": 4}
		}`))
	}))
	defer srv.Close()

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:      "test",
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{BaseURL: srv.URL},
	})
	require.NoError(t, err)

	m := NewModelFromClient(client)

	resp, err := model.Invoke(context.Background(), m, model.Prompt("hi"))
	require.NoError(t, err)
	assert.Equal(t, "Hello", resp.Text())
	assert.Equal(t, 4, resp.Usage.TotalTokens)
	assert.Contains(t, body, "contents")
}
