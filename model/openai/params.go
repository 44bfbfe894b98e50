package openai

import (
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/shared"

	"github.com/hupe1980/agentcookbook/model"
)

// buildParams assembles the OpenAI request parameters.
func (m *Model) buildParams(
	req model.Request,
	messages []openai.ChatCompletionMessageParamUnion,
) openai.ChatCompletionNewParams {
	params := openai.ChatCompletionNewParams{
		Messages: messages,
		Model:    m.opts.Model,
	}

	applySettings(&params, req.Settings)

	if len(req.Tools) > 0 {
		tools := make([]openai.ChatCompletionToolParam, len(req.Tools))
		for i, tdef := range req.Tools {
			tools[i] = openai.ChatCompletionToolParam{
				Function: openai.FunctionDefinitionParam{
					Name:        tdef.Function.Name,
					Description: openai.String(tdef.Function.Description),
					Parameters:  openai.FunctionParameters(tdef.Function.Parameters),
				},
			}
		}

		params.Tools = tools

		if req.ParallelToolCalls != nil {
			params.ParallelToolCalls = openai.Bool(*req.ParallelToolCalls)
		}
	}

	if tc := req.ToolChoice; tc != nil {
		switch tc.Mode {
		case model.ToolChoiceTool:
			params.ToolChoice = openai.ChatCompletionToolChoiceOptionUnionParam{
				OfChatCompletionNamedToolChoice: &openai.ChatCompletionNamedToolChoiceParam{
					Function: openai.ChatCompletionNamedToolChoiceFunctionParam{Name: tc.Name},
				},
			}
		case model.ToolChoiceAuto, model.ToolChoiceRequired, model.ToolChoiceNone:
			params.ToolChoice = openai.ChatCompletionToolChoiceOptionUnionParam{OfAuto: openai.String(tc.Mode)}
		}
	}

	if rf := req.ResponseFormat; rf != nil {
		switch rf.Type {
		case model.ResponseFormatJSONSchema:
			schema := shared.ResponseFormatJSONSchemaJSONSchemaParam{
				Name:   rf.Name,
				Schema: rf.Schema,
				Strict: openai.Bool(rf.Strict),
			}
			if rf.Description != "" {
				schema.Description = openai.String(rf.Description)
			}

			params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
				OfJSONSchema: &shared.ResponseFormatJSONSchemaParam{JSONSchema: schema},
			}
		case model.ResponseFormatJSONObject:
			params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
				OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
			}
		}
	}

	return params
}

func applySettings(params *openai.ChatCompletionNewParams, s model.Settings) {
	if s.Temperature != nil {
		params.Temperature = openai.Float(*s.Temperature)
	}

	if s.MaxTokens != nil {
		params.MaxCompletionTokens = openai.Int(int64(*s.MaxTokens))
	}

	if s.TopP != nil {
		params.TopP = openai.Float(*s.TopP)
	}

	if s.FrequencyPenalty != nil {
		params.FrequencyPenalty = openai.Float(*s.FrequencyPenalty)
	}

	if s.PresencePenalty != nil {
		params.PresencePenalty = openai.Float(*s.PresencePenalty)
	}

	if len(s.Stop) == 1 {
		params.Stop = openai.ChatCompletionNewParamsStopUnion{OfString: openai.String(s.Stop[0])}
	} else if len(s.Stop) > 1 {
		params.Stop = openai.ChatCompletionNewParamsStopUnion{OfStringArray: s.Stop}
	}

	if s.Seed != nil {
		params.Seed = openai.Int(*s.Seed)
	}

	if s.Logprobs {
		params.Logprobs = openai.Bool(true)

		if s.TopLogprobs != nil {
			params.TopLogprobs = openai.Int(int64(*s.TopLogprobs))
		}
	}

	if s.ReasoningEffort != "" {
		params.ReasoningEffort = shared.ReasoningEffort(s.ReasoningEffort)
	}
}
