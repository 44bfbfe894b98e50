package anthropic

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/packages/param"
	"github.com/anthropics/anthropic-sdk-go/shared/constant"

	"github.com/hupe1980/agentcookbook/core"
	"github.com/hupe1980/agentcookbook/internal/util"
	"github.com/hupe1980/agentcookbook/model"
)

// thinkingBudgets maps reasoning effort to an extended-thinking token budget.
var thinkingBudgets = map[string]int64{
	model.ReasoningEffortLow:    1024,
	model.ReasoningEffortMedium: 4096,
	model.ReasoningEffortHigh:   16384,
}

func (m *Model) buildParams(req model.Request) (anthropic.MessageNewParams, error) {
	messages, err := buildMessages(req.Contents)
	if err != nil {
		return anthropic.MessageNewParams{}, err
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(m.opts.Model),
		Messages:  messages,
		MaxTokens: m.opts.MaxTokens,
	}

	if system := systemBlocks(req); len(system) > 0 {
		params.System = system
	}

	s := req.Settings
	if s.MaxTokens != nil {
		params.MaxTokens = int64(*s.MaxTokens)
	}

	if s.Temperature != nil {
		params.Temperature = anthropic.Float(*s.Temperature)
	}

	if s.TopP != nil {
		params.TopP = anthropic.Float(*s.TopP)
	}

	if len(s.Stop) > 0 {
		params.StopSequences = s.Stop
	}

	if budget, ok := thinkingBudgets[s.ReasoningEffort]; ok {
		params.Thinking = anthropic.ThinkingConfigParamOfEnabled(budget)
		if params.MaxTokens <= budget {
			params.MaxTokens = budget + m.opts.MaxTokens
		}
		// extended thinking only accepts the default temperature
		params.Temperature = param.Opt[float64]{}
	}

	tools := buildTools(req.Tools)

	if rf := req.ResponseFormat; rf != nil {
		tools = append(tools, formatTool(rf))
	}

	if len(tools) > 0 {
		params.Tools = tools
	}

	params.ToolChoice = buildToolChoice(req, len(req.Tools) > 0)

	return params, nil
}

func systemBlocks(req model.Request) []anthropic.TextBlockParam {
	var blocks []anthropic.TextBlockParam

	if req.Instructions != "" {
		blocks = append(blocks, anthropic.TextBlockParam{Text: req.Instructions})
	}

	for _, c := range req.Contents {
		if c.Role != core.RoleSystem {
			continue
		}

		if text := c.Text(); text != "" {
			blocks = append(blocks, anthropic.TextBlockParam{Text: text})
		}
	}

	if rf := req.ResponseFormat; rf != nil && rf.Type == model.ResponseFormatJSONObject {
		blocks = append(blocks, anthropic.TextBlockParam{Text: "Respond only with a valid JSON object."})
	}

	return blocks
}

// buildMessages converts contents to Anthropic messages. Tool responses are
// sent as tool_result blocks inside a user message; consecutive tool
// responses share one message.
func buildMessages(contents []core.Content) ([]anthropic.MessageParam, error) {
	var messages []anthropic.MessageParam

	var pendingResults []anthropic.ContentBlockParamUnion

	flush := func() {
		if len(pendingResults) > 0 {
			messages = append(messages, anthropic.NewUserMessage(pendingResults...))
			pendingResults = nil
		}
	}

	for _, c := range contents {
		switch c.Role {
		case core.RoleSystem:
			continue
		case core.RoleTool:
			for _, fr := range c.FunctionResponses() {
				pendingResults = append(pendingResults, anthropic.NewToolResultBlock(fr.ID, model.ToolResultText(fr), fr.Error != ""))
			}
		case core.RoleAssistant:
			flush()

			if blocks := assistantBlocks(c); len(blocks) > 0 {
				messages = append(messages, anthropic.NewAssistantMessage(blocks...))
			}
		default:
			flush()

			blocks, err := userBlocks(c)
			if err != nil {
				return nil, err
			}

			if len(blocks) > 0 {
				messages = append(messages, anthropic.NewUserMessage(blocks...))
			}
		}
	}

	flush()

	return messages, nil
}

func assistantBlocks(c core.Content) []anthropic.ContentBlockParamUnion {
	var blocks []anthropic.ContentBlockParamUnion

	for _, p := range c.Parts {
		switch part := p.(type) {
		case core.TextPart:
			if part.Text != "" {
				blocks = append(blocks, anthropic.NewTextBlock(part.Text))
			}
		case core.FunctionCallPart:
			blocks = append(blocks, anthropic.NewToolUseBlock(
				part.FunctionCall.ID,
				toolInput(part.FunctionCall.Arguments),
				part.FunctionCall.Name,
			))
		}
	}

	return blocks
}

func userBlocks(c core.Content) ([]anthropic.ContentBlockParamUnion, error) {
	var blocks []anthropic.ContentBlockParamUnion

	for _, p := range c.Parts {
		switch part := p.(type) {
		case core.TextPart:
			if part.Text != "" {
				blocks = append(blocks, anthropic.NewTextBlock(part.Text))
			}
		case core.DataPart:
			b, err := json.Marshal(part.Data)
			if err != nil {
				return nil, fmt.Errorf("failed to encode data part: %w", err)
			}

			blocks = append(blocks, anthropic.NewTextBlock(string(b)))
		case core.FilePart:
			block, err := fileBlock(part.File)
			if err != nil {
				return nil, err
			}

			blocks = append(blocks, block)
		}
	}

	return blocks, nil
}

func fileBlock(f core.FilePartFile) (anthropic.ContentBlockParamUnion, error) {
	switch {
	case f.MimeType == "application/pdf":
		if f.IsInline() {
			return anthropic.NewDocumentBlock(anthropic.Base64PDFSourceParam{Data: f.Bytes}), nil
		}

		return anthropic.NewDocumentBlock(anthropic.URLPDFSourceParam{URL: f.URI}), nil
	case f.MimeType == "" || strings.HasPrefix(f.MimeType, "image/"):
		if f.IsInline() {
			mime := f.MimeType
			if mime == "" {
				mime = "image/jpeg"
			}

			return anthropic.NewImageBlockBase64(mime, f.Bytes), nil
		}

		return anthropic.NewImageBlock(anthropic.URLImageSourceParam{URL: f.URI}), nil
	default:
		return anthropic.ContentBlockParamUnion{}, fmt.Errorf("anthropic: unsupported file type %q", f.MimeType)
	}
}

// buildTools converts tool definitions to Anthropic tool format.
func buildTools(defs []model.ToolDefinition) []anthropic.ToolUnionParam {
	tools := make([]anthropic.ToolUnionParam, 0, len(defs))

	for _, def := range defs {
		tool := anthropic.ToolUnionParamOfTool(inputSchema(def.Function.Parameters), def.Function.Name)
		if def.Function.Description != "" {
			tool.OfTool.Description = anthropic.String(def.Function.Description)
		}

		tools = append(tools, tool)
	}

	return tools
}

func formatTool(rf *model.ResponseFormat) anthropic.ToolUnionParam {
	description := rf.Description
	if description == "" {
		description = "Return the final answer in this structured format."
	}

	schema := rf.Schema
	if schema == nil {
		schema = map[string]any{"type": "object"}
	}

	tool := anthropic.ToolUnionParamOfTool(inputSchema(schema), formatToolName(rf))
	tool.OfTool.Description = anthropic.String(description)

	return tool
}

func inputSchema(params map[string]any) anthropic.ToolInputSchemaParam {
	schema := anthropic.ToolInputSchemaParam{Type: constant.Object("object")}
	if params == nil {
		return schema
	}

	if properties, ok := params["properties"]; ok {
		schema.Properties = properties
	}

	schema.Required = util.RequiredFields(params)

	extra := map[string]any{}
	for k, v := range params {
		switch k {
		case "type", "properties", "required":
		default:
			extra[k] = v
		}
	}

	if len(extra) > 0 {
		schema.ExtraFields = extra
	}

	return schema
}

// buildToolChoice maps the normalized tool choice. With a response format the
// synthetic tool is forced when no real tools exist, otherwise the model must
// call some tool (a real one or the format tool).
func buildToolChoice(req model.Request, hasTools bool) anthropic.ToolChoiceUnionParam {
	disableParallel := req.ParallelToolCalls != nil && !*req.ParallelToolCalls

	if rf := req.ResponseFormat; rf != nil && (req.ToolChoice == nil || req.ToolChoice.Mode == model.ToolChoiceAuto) {
		if !hasTools {
			return anthropic.ToolChoiceUnionParam{OfTool: &anthropic.ToolChoiceToolParam{Name: formatToolName(rf)}}
		}

		return anthropic.ToolChoiceUnionParam{OfAny: &anthropic.ToolChoiceAnyParam{DisableParallelToolUse: parallelOpt(disableParallel)}}
	}

	tc := req.ToolChoice
	if tc == nil {
		if hasTools && disableParallel {
			return anthropic.ToolChoiceUnionParam{OfAuto: &anthropic.ToolChoiceAutoParam{DisableParallelToolUse: anthropic.Bool(true)}}
		}

		return anthropic.ToolChoiceUnionParam{}
	}

	switch tc.Mode {
	case model.ToolChoiceRequired:
		return anthropic.ToolChoiceUnionParam{OfAny: &anthropic.ToolChoiceAnyParam{DisableParallelToolUse: parallelOpt(disableParallel)}}
	case model.ToolChoiceTool:
		return anthropic.ToolChoiceUnionParam{OfTool: &anthropic.ToolChoiceToolParam{Name: tc.Name, DisableParallelToolUse: parallelOpt(disableParallel)}}
	case model.ToolChoiceNone:
		return anthropic.ToolChoiceUnionParam{OfNone: &anthropic.ToolChoiceNoneParam{}}
	default:
		if !hasTools {
			return anthropic.ToolChoiceUnionParam{}
		}

		return anthropic.ToolChoiceUnionParam{OfAuto: &anthropic.ToolChoiceAutoParam{DisableParallelToolUse: parallelOpt(disableParallel)}}
	}
}

func parallelOpt(disable bool) param.Opt[bool] {
	if !disable {
		return param.Opt[bool]{}
	}

	return anthropic.Bool(true)
}
