package testutil

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/hupe1980/agentcookbook/core"
	"github.com/hupe1980/agentcookbook/model"
)

// AutoOptions configures an auto-responding model.
type AutoOptions struct {
	// Args overrides sampled tool argument values by property name.
	Args map[string]any
	// Reply computes the final text answer; the default summarises the last
	// user prompt and any tool results.
	Reply func(req model.Request) string
}

// NewAutoModel returns a mock model that behaves like a cooperative LLM:
//   - with tools available it calls each tool once (one per turn, honouring
//     tool choice), sampling arguments from the tool schema
//   - with a response format it answers with JSON sampled from the schema
//   - otherwise it answers with plain text
//
// Every response reports word-count based token usage, and log
// probabilities when requested.
func NewAutoModel(name, provider string, optFns ...func(o *AutoOptions)) *model.MockModel {
	opts := AutoOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}

	m := model.NewMockModel(name, provider)
	m.SetHandler(func(_ context.Context, req model.Request) (model.Response, error) {
		return autoRespond(name, req, opts)
	})

	return m
}

func autoRespond(name string, req model.Request, opts AutoOptions) (model.Response, error) {
	resp := model.Response{ID: core.NewID(), Model: name}

	if call, ok := nextToolCall(req, opts); ok {
		resp.Content = core.Content{Role: core.RoleAssistant, Parts: []core.Part{core.FunctionCallPart{FunctionCall: call}}}
		resp.FinishReason = "tool_calls"
		resp.Usage = usageFor(req, call.Arguments)

		return resp, nil
	}

	text := replyText(req, opts)
	resp.FinishReason = "stop"

	if max := req.Settings.MaxTokens; max != nil && *max > 0 {
		if words := strings.Fields(text); len(words) > *max {
			text = strings.Join(words[:*max], " ")
			resp.FinishReason = "length"
		}
	}

	for _, stop := range req.Settings.Stop {
		if i := strings.Index(text, stop); stop != "" && i >= 0 {
			text = text[:i]
		}
	}

	resp.Content = core.NewAssistantText(text)
	resp.Usage = usageFor(req, text)

	if req.Settings.Logprobs {
		resp.Logprobs = sampleLogprobs(text, req.Settings.TopLogprobs)
	}

	return resp, nil
}

// nextToolCall picks the first tool not yet called since the last user
// message.
func nextToolCall(req model.Request, opts AutoOptions) (core.FunctionCall, bool) {
	if len(req.Tools) == 0 {
		return core.FunctionCall{}, false
	}

	tc := req.ToolChoice
	if tc != nil && tc.Mode == model.ToolChoiceNone {
		return core.FunctionCall{}, false
	}

	called := map[string]bool{}

	for i := len(req.Contents) - 1; i >= 0; i-- {
		c := req.Contents[i]
		if c.Role == core.RoleUser {
			break
		}

		for _, fc := range c.FunctionCalls() {
			called[fc.Name] = true
		}
	}

	for _, def := range req.Tools {
		name := def.Function.Name
		if tc != nil && tc.Mode == model.ToolChoiceTool && tc.Name != name {
			continue
		}

		if called[name] {
			continue
		}

		sample, ok := SampleValue(def.Function.Parameters, "", opts.Args).(map[string]any)
		if !ok {
			sample = map[string]any{}
		}

		args, err := json.Marshal(sample)
		if err != nil {
			args = []byte("{}")
		}

		return core.FunctionCall{ID: "call_" + core.NewID(), Name: name, Arguments: string(args)}, true
	}

	return core.FunctionCall{}, false
}

func replyText(req model.Request, opts AutoOptions) string {
	if rf := req.ResponseFormat; rf != nil {
		schema := rf.Schema
		if schema == nil {
			schema = schemaFromInstructions(req.Instructions)
		}

		b, err := json.Marshal(SampleValue(schema, "", opts.Args))
		if err != nil {
			return "{}"
		}

		return string(b)
	}

	if opts.Reply != nil {
		return opts.Reply(req)
	}

	var results []string

	for i := len(req.Contents) - 1; i >= 0; i-- {
		c := req.Contents[i]
		if c.Role != core.RoleTool {
			break
		}

		for _, fr := range c.FunctionResponses() {
			results = append([]string{model.ToolResultText(fr)}, results...)
		}
	}

	if len(results) > 0 {
		return fmt.Sprintf("Based on the tool results: %s", strings.Join(results, "; "))
	}

	return fmt.Sprintf("Auto response to: %s", req.LastUserText())
}

func schemaFromInstructions(text string) map[string]any {
	i := strings.Index(text, "{")
	if i < 0 {
		return nil
	}

	var schema map[string]any
	if err := json.Unmarshal([]byte(text[i:]), &schema); err != nil {
		return nil
	}

	return schema
}

// SampleValue produces a value conforming to schema. Properties named in
// overrides take the override value.
func SampleValue(schema map[string]any, name string, overrides map[string]any) any {
	if v, ok := overrides[name]; ok && name != "" {
		return v
	}

	if enum, ok := schema["enum"].([]any); ok && len(enum) > 0 {
		return enum[0]
	}

	typ, _ := schema["type"].(string)

	switch typ {
	case "object", "":
		props, _ := schema["properties"].(map[string]any)
		if typ == "" && props == nil {
			return "sample"
		}

		out := make(map[string]any, len(props))

		keys := make([]string, 0, len(props))
		for k := range props {
			keys = append(keys, k)
		}

		sort.Strings(keys)

		for _, k := range keys {
			sub, _ := props[k].(map[string]any)
			out[k] = SampleValue(sub, k, overrides)
		}

		return out
	case "array":
		items, _ := schema["items"].(map[string]any)
		return []any{SampleValue(items, "", overrides)}
	case "integer":
		return math.Round(bounded(schema, 1))
	case "number":
		return bounded(schema, 2)
	case "boolean":
		return true
	default:
		return "sample"
	}
}

func bounded(schema map[string]any, def float64) float64 {
	v := def

	if minimum, ok := schema["minimum"].(float64); ok {
		v = math.Max(v, minimum)
	}

	if maximum, ok := schema["maximum"].(float64); ok {
		v = math.Min(v, maximum)
	}

	return v
}

func usageFor(req model.Request, completion string) *model.TokenUsage {
	prompt := len(strings.Fields(req.Instructions))
	for _, c := range req.Contents {
		prompt += len(strings.Fields(c.Text()))
	}

	out := len(strings.Fields(completion))

	return &model.TokenUsage{PromptTokens: prompt, CompletionTokens: out, TotalTokens: prompt + out}
}

func sampleLogprobs(text string, top *int) []model.TokenLogprob {
	n := 0
	if top != nil {
		n = *top
	}

	words := strings.Fields(text)
	out := make([]model.TokenLogprob, 0, len(words))

	for i, w := range words {
		// Alternate between confident and uncertain tokens.
		lp := -0.05
		if i%4 == 3 {
			lp = -0.9
		}

		tl := model.TokenLogprob{Token: w, Logprob: lp}
		for j := 0; j < n; j++ {
			alt := w
			if j > 0 {
				alt = fmt.Sprintf("%s_%d", w, j)
			}

			tl.TopLogprobs = append(tl.TopLogprobs, model.TopLogprob{Token: alt, Logprob: lp - float64(j)})
		}

		out = append(out, tl)
	}

	return out
}
