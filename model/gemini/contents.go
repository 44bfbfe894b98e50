package gemini

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"mime"
	"path"
	"strings"

	"google.golang.org/genai"

	"github.com/hupe1980/agentcookbook/core"
	"github.com/hupe1980/agentcookbook/model"
)

var thinkingBudgets = map[string]int32{
	model.ReasoningEffortLow:    1024,
	model.ReasoningEffortMedium: 4096,
	model.ReasoningEffortHigh:   16384,
}

// buildContents converts the conversation to genai contents. System messages
// are skipped here and sent as the system instruction; tool responses are
// sent as function response parts in a user turn.
func buildContents(contents []core.Content) ([]*genai.Content, error) {
	out := make([]*genai.Content, 0, len(contents))

	for _, c := range contents {
		switch c.Role {
		case core.RoleSystem:
			continue
		case core.RoleTool:
			var parts []*genai.Part
			for _, fr := range c.FunctionResponses() {
				parts = append(parts, functionResponsePart(fr))
			}

			if len(parts) > 0 {
				out = append(out, genai.NewContentFromParts(parts, genai.RoleUser))
			}
		case core.RoleAssistant:
			var parts []*genai.Part

			for _, p := range c.Parts {
				switch part := p.(type) {
				case core.TextPart:
					if part.Text != "" {
						parts = append(parts, genai.NewPartFromText(part.Text))
					}
				case core.FunctionCallPart:
					gp := genai.NewPartFromFunctionCall(part.FunctionCall.Name, decodeArgs(part.FunctionCall.Arguments))
					gp.FunctionCall.ID = part.FunctionCall.ID
					parts = append(parts, gp)
				}
			}

			if len(parts) > 0 {
				out = append(out, genai.NewContentFromParts(parts, genai.RoleModel))
			}
		default:
			parts, err := userParts(c)
			if err != nil {
				return nil, err
			}

			if len(parts) > 0 {
				out = append(out, genai.NewContentFromParts(parts, genai.RoleUser))
			}
		}
	}

	return out, nil
}

func userParts(c core.Content) ([]*genai.Part, error) {
	var parts []*genai.Part

	for _, p := range c.Parts {
		switch part := p.(type) {
		case core.TextPart:
			if part.Text != "" {
				parts = append(parts, genai.NewPartFromText(part.Text))
			}
		case core.DataPart:
			b, err := json.Marshal(part.Data)
			if err != nil {
				return nil, fmt.Errorf("failed to encode data part: %w", err)
			}

			parts = append(parts, genai.NewPartFromText(string(b)))
		case core.FilePart:
			gp, err := filePart(part.File)
			if err != nil {
				return nil, err
			}

			parts = append(parts, gp)
		}
	}

	return parts, nil
}

func filePart(f core.FilePartFile) (*genai.Part, error) {
	mimeType := f.MimeType
	if mimeType == "" {
		mimeType = guessMIME(f.URI, f.Name)
	}

	if mimeType == "" {
		return nil, fmt.Errorf("gemini: cannot determine mime type for file %q", f.URI+f.Name)
	}

	if f.IsInline() {
		data, err := base64.StdEncoding.DecodeString(f.Bytes)
		if err != nil {
			return nil, fmt.Errorf("gemini: invalid base64 file data: %w", err)
		}

		return genai.NewPartFromBytes(data, mimeType), nil
	}

	if f.URI == "" {
		return nil, fmt.Errorf("gemini: file part has neither bytes nor uri")
	}

	return genai.NewPartFromURI(f.URI, mimeType), nil
}

func guessMIME(names ...string) string {
	for _, n := range names {
		if n == "" {
			continue
		}

		if i := strings.IndexAny(n, "?#"); i >= 0 {
			n = n[:i]
		}

		if t := mime.TypeByExtension(path.Ext(n)); t != "" {
			if i := strings.Index(t, ";"); i >= 0 {
				t = t[:i]
			}

			return t
		}
	}

	return ""
}

func functionResponsePart(fr core.FunctionResponse) *genai.Part {
	var response map[string]any

	switch v := fr.Response.(type) {
	case map[string]any:
		response = v
	default:
		response = map[string]any{"result": model.ToolResultText(core.FunctionResponse{Response: v})}
	}

	if fr.Error != "" {
		response = map[string]any{"error": fr.Error}
	}

	gp := genai.NewPartFromFunctionResponse(fr.Name, response)
	gp.FunctionResponse.ID = fr.ID

	return gp
}

func functionCallPart(fc *genai.FunctionCall) core.Part {
	args := "{}"

	if len(fc.Args) > 0 {
		if b, err := json.Marshal(fc.Args); err == nil {
			args = string(b)
		}
	}

	id := fc.ID
	if id == "" {
		id = "call_" + core.NewID()
	}

	return core.FunctionCallPart{FunctionCall: core.FunctionCall{ID: id, Name: fc.Name, Arguments: args}}
}

func decodeArgs(args string) map[string]any {
	out := map[string]any{}
	if args == "" {
		return out
	}

	_ = json.Unmarshal([]byte(args), &out)

	return out
}

func buildConfig(req model.Request) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{}

	if system := systemInstruction(req); system != nil {
		config.SystemInstruction = system
	}

	s := req.Settings
	if s.Temperature != nil {
		config.Temperature = genai.Ptr(float32(*s.Temperature))
	}

	if s.TopP != nil {
		config.TopP = genai.Ptr(float32(*s.TopP))
	}

	if s.MaxTokens != nil {
		config.MaxOutputTokens = int32(*s.MaxTokens)
	}

	if s.FrequencyPenalty != nil {
		config.FrequencyPenalty = genai.Ptr(float32(*s.FrequencyPenalty))
	}

	if s.PresencePenalty != nil {
		config.PresencePenalty = genai.Ptr(float32(*s.PresencePenalty))
	}

	if len(s.Stop) > 0 {
		config.StopSequences = s.Stop
	}

	if s.Seed != nil {
		config.Seed = genai.Ptr(int32(*s.Seed))
	}

	if s.Logprobs {
		config.ResponseLogprobs = true

		if s.TopLogprobs != nil {
			config.Logprobs = genai.Ptr(int32(*s.TopLogprobs))
		}
	}

	if budget, ok := thinkingBudgets[s.ReasoningEffort]; ok {
		config.ThinkingConfig = &genai.ThinkingConfig{ThinkingBudget: genai.Ptr(budget)}
	}

	if len(req.Tools) > 0 {
		decls := make([]*genai.FunctionDeclaration, 0, len(req.Tools))
		for _, t := range req.Tools {
			decls = append(decls, &genai.FunctionDeclaration{
				Name:                 t.Function.Name,
				Description:          t.Function.Description,
				ParametersJsonSchema: t.Function.Parameters,
			})
		}

		config.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
		config.ToolConfig = toolConfig(req.ToolChoice)
	}

	if rf := req.ResponseFormat; rf != nil {
		config.ResponseMIMEType = "application/json"

		if rf.Type == model.ResponseFormatJSONSchema && rf.Schema != nil {
			config.ResponseJsonSchema = rf.Schema
		}
	}

	return config
}

func systemInstruction(req model.Request) *genai.Content {
	var parts []*genai.Part

	if req.Instructions != "" {
		parts = append(parts, genai.NewPartFromText(req.Instructions))
	}

	for _, c := range req.Contents {
		if c.Role == core.RoleSystem {
			if text := c.Text(); text != "" {
				parts = append(parts, genai.NewPartFromText(text))
			}
		}
	}

	if len(parts) == 0 {
		return nil
	}

	return genai.NewContentFromParts(parts, genai.RoleUser)
}

func toolConfig(tc *model.ToolChoice) *genai.ToolConfig {
	if tc == nil {
		return nil
	}

	fc := &genai.FunctionCallingConfig{}

	switch tc.Mode {
	case model.ToolChoiceRequired:
		fc.Mode = genai.FunctionCallingConfigModeAny
	case model.ToolChoiceNone:
		fc.Mode = genai.FunctionCallingConfigModeNone
	case model.ToolChoiceTool:
		fc.Mode = genai.FunctionCallingConfigModeAny
		fc.AllowedFunctionNames = []string{tc.Name}
	default:
		fc.Mode = genai.FunctionCallingConfigModeAuto
	}

	return &genai.ToolConfig{FunctionCallingConfig: fc}
}
