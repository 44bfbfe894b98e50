// Package openai provides an implementation of model.Model using the OpenAI
// Chat Completions API (including streaming, tool calling, structured output,
// log probabilities and multimodal input) plus a Whisper based Transcriber.
package openai

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/hupe1980/agentcookbook/core"
	"github.com/hupe1980/agentcookbook/model"
)

// aggCall aggregates partial tool call streaming deltas (id, name, arguments).
type aggCall struct{ id, name, args string }

// Options configure the OpenAI model adapter.
type Options struct {
	Model      string
	APIKey     string // empty uses OPENAI_API_KEY
	BaseURL    string
	MaxRetries int
	Settings   model.Settings // defaults merged under every request
}

// Model wraps the OpenAI Chat Completions API behind the generic model.Model interface.
type Model struct {
	client *openai.Client
	opts   Options
}

// NewModel creates a new OpenAI model using the official client.
func NewModel(optFns ...func(o *Options)) *Model {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	client := openai.NewClient(clientOptions(opts)...)

	return &Model{client: &client, opts: opts}
}

// NewModelFromClient creates a new OpenAI model from an existing client.
func NewModelFromClient(client *openai.Client, optFns ...func(o *Options)) *Model {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Model{client: client, opts: opts}
}

func defaultOptions() Options {
	return Options{
		Model:      openai.ChatModelGPT4oMini,
		MaxRetries: 2,
	}
}

func clientOptions(opts Options) []option.RequestOption {
	var reqOpts []option.RequestOption

	if opts.APIKey != "" {
		reqOpts = append(reqOpts, option.WithAPIKey(opts.APIKey))
	}

	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.BaseURL))
	}

	if opts.MaxRetries >= 0 {
		reqOpts = append(reqOpts, option.WithMaxRetries(opts.MaxRetries))
	}

	return reqOpts
}

// Generate implements unified streaming / non-streaming generation.
func (m *Model) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	out := make(chan model.Response, 32)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		req.Settings = m.opts.Settings.Merge(req.Settings)

		ctx, cancel := req.Settings.WithTimeout(ctx)
		defer cancel()

		messages, err := buildMessages(req)
		if err != nil {
			errCh <- err
			return
		}

		params := m.buildParams(req, messages)

		if req.Stream {
			m.handleStreaming(ctx, params, out, errCh)
			return
		}

		m.handleNonStreaming(ctx, params, out, errCh)
	}()

	return out, errCh
}

// handleStreaming processes streaming responses and forwards partial / final events.
// The final response is emitted after the stream ends so that the trailing
// usage chunk is included.
func (m *Model) handleStreaming(
	ctx context.Context,
	params openai.ChatCompletionNewParams,
	out chan<- model.Response,
	errCh chan<- error,
) {
	params.StreamOptions = openai.ChatCompletionStreamOptionsParam{IncludeUsage: openai.Bool(true)}

	stream := m.client.Chat.Completions.NewStreaming(ctx, params)
	defer stream.Close()

	var (
		textBuilder  strings.Builder
		toolAgg      = map[int64]*aggCall{}
		finishReason string
		id, name     string
		usage        *model.TokenUsage
		logprobs     []model.TokenLogprob
	)

	for stream.Next() {
		ck := stream.Current()
		id, name = ck.ID, ck.Model

		if ck.Usage.TotalTokens > 0 {
			usage = convertUsage(ck.Usage)
		}

		for _, ch := range ck.Choices {
			logprobs = append(logprobs, convertLogprobs(ch.Logprobs.Content)...)

			if ch.Delta.Content != "" {
				textBuilder.WriteString(ch.Delta.Content)

				select {
				case out <- model.Response{ID: ck.ID, Model: ck.Model, Partial: true, Content: core.NewAssistantText(ch.Delta.Content)}:
				case <-ctx.Done():
					errCh <- ctx.Err()
					return
				}
			}

			aggregateToolCalls(ch.Delta.ToolCalls, toolAgg)

			if ch.FinishReason != "" {
				finishReason = ch.FinishReason
			}
		}
	}

	if err := stream.Err(); err != nil {
		errCh <- fmt.Errorf("openai streaming error: %w", err)
		return
	}

	parts := make([]core.Part, 0, len(toolAgg)+1)
	if textBuilder.Len() > 0 {
		parts = append(parts, core.TextPart{Text: textBuilder.String()})
	}

	parts = append(parts, orderedToolCalls(toolAgg)...)

	out <- model.Response{
		ID:           id,
		Model:        name,
		Content:      core.Content{Role: core.RoleAssistant, Parts: parts},
		FinishReason: finishReason,
		Usage:        usage,
		Logprobs:     logprobs,
	}
}

func aggregateToolCalls(deltas []openai.ChatCompletionChunkChoiceDeltaToolCall, agg map[int64]*aggCall) {
	for _, tc := range deltas {
		ac, ok := agg[tc.Index]
		if !ok {
			ac = &aggCall{}
			agg[tc.Index] = ac
		}

		if tc.ID != "" {
			ac.id = tc.ID
		}

		if tc.Function.Name != "" {
			ac.name = tc.Function.Name
		}

		ac.args += tc.Function.Arguments
	}
}

func orderedToolCalls(agg map[int64]*aggCall) []core.Part {
	idx := make([]int64, 0, len(agg))
	for i := range agg {
		idx = append(idx, i)
	}

	sort.Slice(idx, func(a, b int) bool { return idx[a] < idx[b] })

	parts := make([]core.Part, 0, len(idx))
	for _, i := range idx {
		ac := agg[i]
		parts = append(parts, core.FunctionCallPart{FunctionCall: core.FunctionCall{
			ID:        ac.id,
			Name:      ac.name,
			Arguments: ac.args,
		}})
	}

	return parts
}

// handleNonStreaming processes a normal (non-streaming) completion.
func (m *Model) handleNonStreaming(
	ctx context.Context,
	params openai.ChatCompletionNewParams,
	out chan<- model.Response,
	errCh chan<- error,
) {
	resp, err := m.client.Chat.Completions.New(ctx, params)
	if err != nil {
		errCh <- fmt.Errorf("openai api error: %w", err)
		return
	}

	if len(resp.Choices) == 0 {
		errCh <- fmt.Errorf("no choices returned")
		return
	}

	ch0 := resp.Choices[0]

	parts := make([]core.Part, 0, len(ch0.Message.ToolCalls)+1)
	if ch0.Message.Content != "" {
		parts = append(parts, core.TextPart{Text: ch0.Message.Content})
	} else if ch0.Message.Refusal != "" {
		parts = append(parts, core.TextPart{Text: ch0.Message.Refusal, Metadata: map[string]any{"refusal": true}})
	}

	for _, tc := range ch0.Message.ToolCalls {
		parts = append(parts, core.FunctionCallPart{FunctionCall: core.FunctionCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		}})
	}

	out <- model.Response{
		ID:           resp.ID,
		Model:        resp.Model,
		Content:      core.Content{Role: core.RoleAssistant, Parts: parts},
		FinishReason: ch0.FinishReason,
		Usage:        convertUsage(resp.Usage),
		Logprobs:     convertLogprobs(ch0.Logprobs.Content),
	}
}

func convertUsage(u openai.CompletionUsage) *model.TokenUsage {
	return &model.TokenUsage{
		PromptTokens:     int(u.PromptTokens),
		CompletionTokens: int(u.CompletionTokens),
		TotalTokens:      int(u.TotalTokens),
		ReasoningTokens:  int(u.CompletionTokensDetails.ReasoningTokens),
		CachedTokens:     int(u.PromptTokensDetails.CachedTokens),
	}
}

func convertLogprobs(in []openai.ChatCompletionTokenLogprob) []model.TokenLogprob {
	if len(in) == 0 {
		return nil
	}

	out := make([]model.TokenLogprob, 0, len(in))
	for _, lp := range in {
		tl := model.TokenLogprob{Token: lp.Token, Logprob: lp.Logprob}
		for _, top := range lp.TopLogprobs {
			tl.TopLogprobs = append(tl.TopLogprobs, model.TopLogprob{Token: top.Token, Logprob: top.Logprob})
		}

		out = append(out, tl)
	}

	return out
}

// Info returns metadata describing this OpenAI model implementation.
func (m *Model) Info() model.Info {
	return model.Info{
		Name:                     m.opts.Model,
		Provider:                 "openai",
		SupportsTools:            true,
		SupportsStructuredOutput: true,
		SupportsVision:           true,
	}
}
