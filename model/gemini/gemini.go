// Package gemini provides a model wrapper for Google Gemini via the genai SDK.
//
// Gemini accepts audio, video and PDF parts natively, either inline or by
// URI, which makes it the adapter used by the multimodal media lessons.
package gemini

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/hupe1980/agentcookbook/core"
	"github.com/hupe1980/agentcookbook/model"
)

// DefaultModel is the Gemini model used when Options.Model is empty.
const DefaultModel = "gemini-2.0-flash"

// Options configures the Gemini model adapter.
type Options struct {
	Model    string
	APIKey   string
	BaseURL  string
	Settings model.Settings
}

// Model wraps the genai Models API behind the generic model.Model interface.
type Model struct {
	client *genai.Client
	opts   Options
}

// NewModel creates a Gemini model using the Gemini API backend. An empty
// APIKey lets the SDK read GOOGLE_API_KEY or GEMINI_API_KEY.
func NewModel(ctx context.Context, optFns ...func(o *Options)) (*Model, error) {
	opts := Options{Model: DefaultModel}
	for _, fn := range optFns {
		fn(&opts)
	}

	cc := &genai.ClientConfig{
		APIKey:  opts.APIKey,
		Backend: genai.BackendGeminiAPI,
	}

	if opts.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: opts.BaseURL}
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	return &Model{client: client, opts: opts}, nil
}

// NewModelFromClient creates a Gemini model from an existing client.
func NewModelFromClient(client *genai.Client, optFns ...func(o *Options)) *Model {
	opts := Options{Model: DefaultModel}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Model{client: client, opts: opts}
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

		contents, err := buildContents(req.Contents)
		if err != nil {
			errCh <- err
			return
		}

		config := buildConfig(req)

		if req.Stream {
			m.handleStreaming(ctx, contents, config, out, errCh)
			return
		}

		resp, err := m.client.Models.GenerateContent(ctx, m.opts.Model, contents, config)
		if err != nil {
			errCh <- fmt.Errorf("gemini api error: %w", err)
			return
		}

		out <- convertResponse(resp, m.opts.Model)
	}()

	return out, errCh
}

func (m *Model) handleStreaming(
	ctx context.Context,
	contents []*genai.Content,
	config *genai.GenerateContentConfig,
	out chan<- model.Response,
	errCh chan<- error,
) {
	var (
		text     strings.Builder
		calls    []core.Part
		usage    *model.TokenUsage
		finish   genai.FinishReason
		id       string
		modelVer = m.opts.Model
	)

	for chunk, err := range m.client.Models.GenerateContentStream(ctx, m.opts.Model, contents, config) {
		if err != nil {
			errCh <- fmt.Errorf("gemini streaming error: %w", err)
			return
		}

		if chunk.ResponseID != "" {
			id = chunk.ResponseID
		}

		if chunk.ModelVersion != "" {
			modelVer = chunk.ModelVersion
		}

		if u := convertUsage(chunk.UsageMetadata); u != nil {
			usage = u
		}

		if len(chunk.Candidates) == 0 || chunk.Candidates[0].Content == nil {
			continue
		}

		cand := chunk.Candidates[0]
		if cand.FinishReason != "" {
			finish = cand.FinishReason
		}

		var delta strings.Builder

		for _, p := range cand.Content.Parts {
			switch {
			case p.FunctionCall != nil:
				calls = append(calls, functionCallPart(p.FunctionCall))
			case p.Text != "" && !p.Thought:
				delta.WriteString(p.Text)
			}
		}

		if delta.Len() == 0 {
			continue
		}

		text.WriteString(delta.String())

		select {
		case out <- model.Response{ID: id, Model: modelVer, Partial: true, Content: core.NewAssistantText(delta.String())}:
		case <-ctx.Done():
			errCh <- ctx.Err()
			return
		}
	}

	var parts []core.Part
	if text.Len() > 0 {
		parts = append(parts, core.TextPart{Text: text.String()})
	}

	parts = append(parts, calls...)

	out <- model.Response{
		ID:           id,
		Model:        modelVer,
		Content:      core.Content{Role: core.RoleAssistant, Parts: parts},
		FinishReason: finishReason(finish, len(calls) > 0),
		Usage:        usage,
	}
}

// Info returns metadata describing this Gemini model implementation.
func (m *Model) Info() model.Info {
	return model.Info{
		Name:                     m.opts.Model,
		Provider:                 "gemini",
		SupportsTools:            true,
		SupportsStructuredOutput: true,
		SupportsVision:           true,
	}
}

func convertResponse(resp *genai.GenerateContentResponse, fallbackModel string) model.Response {
	out := model.Response{
		ID:    resp.ResponseID,
		Model: resp.ModelVersion,
		Usage: convertUsage(resp.UsageMetadata),
	}

	if out.Model == "" {
		out.Model = fallbackModel
	}

	var (
		parts  []core.Part
		calls  int
		finish genai.FinishReason
	)

	if len(resp.Candidates) > 0 {
		cand := resp.Candidates[0]
		finish = cand.FinishReason

		if cand.Content != nil {
			for _, p := range cand.Content.Parts {
				switch {
				case p.FunctionCall != nil:
					parts = append(parts, functionCallPart(p.FunctionCall))
					calls++
				case p.Text != "" && !p.Thought:
					parts = append(parts, core.TextPart{Text: p.Text})
				}
			}
		}

		out.Logprobs = convertLogprobs(cand.LogprobsResult)
	}

	out.Content = core.Content{Role: core.RoleAssistant, Parts: parts}
	out.FinishReason = finishReason(finish, calls > 0)

	return out
}

func finishReason(r genai.FinishReason, hasCalls bool) string {
	switch {
	case hasCalls:
		return "tool_calls"
	case r == genai.FinishReasonMaxTokens:
		return "length"
	case r == genai.FinishReasonSafety, r == genai.FinishReasonProhibitedContent, r == genai.FinishReasonBlocklist:
		return "content_filter"
	default:
		return "stop"
	}
}

func convertUsage(u *genai.GenerateContentResponseUsageMetadata) *model.TokenUsage {
	if u == nil {
		return nil
	}

	total := int(u.TotalTokenCount)
	if total == 0 {
		total = int(u.PromptTokenCount + u.CandidatesTokenCount + u.ThoughtsTokenCount)
	}

	return &model.TokenUsage{
		PromptTokens:     int(u.PromptTokenCount),
		CompletionTokens: int(u.CandidatesTokenCount + u.ThoughtsTokenCount),
		TotalTokens:      total,
		ReasoningTokens:  int(u.ThoughtsTokenCount),
		CachedTokens:     int(u.CachedContentTokenCount),
	}
}

func convertLogprobs(lr *genai.LogprobsResult) []model.TokenLogprob {
	if lr == nil || len(lr.ChosenCandidates) == 0 {
		return nil
	}

	out := make([]model.TokenLogprob, 0, len(lr.ChosenCandidates))

	for i, c := range lr.ChosenCandidates {
		if c == nil {
			continue
		}

		tl := model.TokenLogprob{Token: c.Token, Logprob: float64(c.LogProbability)}

		if i < len(lr.TopCandidates) && lr.TopCandidates[i] != nil {
			for _, alt := range lr.TopCandidates[i].Candidates {
				if alt != nil {
					tl.TopLogprobs = append(tl.TopLogprobs, model.TopLogprob{Token: alt.Token, Logprob: float64(alt.LogProbability)})
				}
			}
		}

		out = append(out, tl)
	}

	return out
}
