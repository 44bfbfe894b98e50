// Package anthropic provides a model wrapper for the Anthropic Claude API.
//
// Anthropic has no native JSON response format, so a model.ResponseFormat is
// emulated with a synthetic tool whose input schema is the requested schema;
// the tool input is returned to the caller as the response text.
package anthropic

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/hupe1980/agentcookbook/core"
	"github.com/hupe1980/agentcookbook/model"
)

// DefaultModel is the Claude model used when Options.Model is empty.
const DefaultModel = "claude-3-5-sonnet-20241022"

// Options configures the Anthropic model adapter.
type Options struct {
	Model      string
	MaxTokens  int64 // required by the API; used when Settings.MaxTokens is unset
	APIKey     string
	BaseURL    string
	MaxRetries int
	Settings   model.Settings
}

// Model wraps the Anthropic Messages API behind the generic model.Model interface.
type Model struct {
	client *anthropic.Client
	opts   Options
}

// NewModel creates a new Anthropic model using the official client.
func NewModel(optFns ...func(o *Options)) *Model {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}

	if opts.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(opts.BaseURL))
	}

	if opts.MaxRetries >= 0 {
		clientOpts = append(clientOpts, option.WithMaxRetries(opts.MaxRetries))
	}

	client := anthropic.NewClient(clientOpts...)

	return &Model{
		client: &client,
		opts:   opts,
	}
}

// NewModelFromClient creates a new Anthropic model from an existing client.
func NewModelFromClient(client *anthropic.Client, optFns ...func(o *Options)) *Model {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Model{
		client: client,
		opts:   opts,
	}
}

func defaultOptions() Options {
	return Options{
		Model:      DefaultModel,
		MaxTokens:  4096,
		MaxRetries: 2,
	}
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

		params, err := m.buildParams(req)
		if err != nil {
			errCh <- err
			return
		}

		if req.Stream {
			m.handleStreaming(ctx, req, params, out, errCh)
			return
		}

		resp, err := m.client.Messages.New(ctx, params)
		if err != nil {
			errCh <- fmt.Errorf("anthropic api error: %w", err)
			return
		}

		out <- convertMessage(resp, req.ResponseFormat)
	}()

	return out, errCh
}

func (m *Model) handleStreaming(
	ctx context.Context,
	req model.Request,
	params anthropic.MessageNewParams,
	out chan<- model.Response,
	errCh chan<- error,
) {
	stream := m.client.Messages.NewStreaming(ctx, params)
	defer stream.Close()

	message := anthropic.Message{}

	for stream.Next() {
		event := stream.Current()
		if err := message.Accumulate(event); err != nil {
			errCh <- fmt.Errorf("anthropic stream accumulate error: %w", err)
			return
		}

		if event.Type == "content_block_delta" && event.Delta.Type == "text_delta" && event.Delta.Text != "" {
			select {
			case out <- model.Response{ID: message.ID, Model: string(message.Model), Partial: true, Content: core.NewAssistantText(event.Delta.Text)}:
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			}
		}
	}

	if err := stream.Err(); err != nil {
		errCh <- fmt.Errorf("anthropic streaming error: %w", err)
		return
	}

	out <- convertMessage(&message, req.ResponseFormat)
}

// convertMessage builds the final response. A call to the synthetic
// response-format tool becomes the response text unless real tool calls
// are pending.
func convertMessage(resp *anthropic.Message, rf *model.ResponseFormat) model.Response {
	formatTool := ""
	if rf != nil {
		formatTool = formatToolName(rf)
	}

	var (
		parts      []core.Part
		calls      []core.Part
		structured string
	)

	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			if block.Text != "" {
				parts = append(parts, core.TextPart{Text: block.Text})
			}
		case "tool_use":
			args := string(block.Input)
			if args == "" || args == "null" {
				args = "{}"
			}

			if formatTool != "" && block.Name == formatTool {
				structured = args
				continue
			}

			calls = append(calls, core.FunctionCallPart{FunctionCall: core.FunctionCall{
				ID:        block.ID,
				Name:      block.Name,
				Arguments: args,
			}})
		}
	}

	finishReason := "stop"

	switch {
	case len(calls) > 0:
		parts = append(parts, calls...)
		finishReason = "tool_calls"
	case structured != "":
		parts = []core.Part{core.TextPart{Text: structured}}
	case resp.StopReason == anthropic.StopReasonMaxTokens:
		finishReason = "length"
	}

	return model.Response{
		ID:           resp.ID,
		Model:        string(resp.Model),
		Content:      core.Content{Role: core.RoleAssistant, Parts: parts},
		FinishReason: finishReason,
		Usage: &model.TokenUsage{
			PromptTokens:     int(resp.Usage.InputTokens),
			CompletionTokens: int(resp.Usage.OutputTokens),
			TotalTokens:      int(resp.Usage.InputTokens + resp.Usage.OutputTokens),
			CachedTokens:     int(resp.Usage.CacheReadInputTokens),
		},
	}
}

// Info returns metadata describing this Anthropic model implementation.
func (m *Model) Info() model.Info {
	return model.Info{
		Name:                     m.opts.Model,
		Provider:                 "anthropic",
		SupportsTools:            true,
		SupportsStructuredOutput: true,
		SupportsVision:           true,
	}
}

func formatToolName(rf *model.ResponseFormat) string {
	if rf.Name != "" {
		return rf.Name
	}

	return "json_response"
}

// toolInput decodes JSON arguments for replaying a tool_use block.
func toolInput(args string) any {
	if args == "" {
		return map[string]any{}
	}

	var input any
	if err := json.Unmarshal([]byte(args), &input); err != nil {
		return args
	}

	return input
}
