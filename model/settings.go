package model

import (
	"context"
	"time"
)

// Reasoning effort levels understood by reasoning models.
const (
	ReasoningEffortLow    = "low"
	ReasoningEffortMedium = "medium"
	ReasoningEffortHigh   = "high"
)

// Settings are optional sampling and transport parameters. A nil pointer or
// zero value means "use the provider default".
type Settings struct {
	Temperature      *float64      `json:"temperature,omitempty"`
	MaxTokens        *int          `json:"max_tokens,omitempty"`
	TopP             *float64      `json:"top_p,omitempty"`
	FrequencyPenalty *float64      `json:"frequency_penalty,omitempty"`
	PresencePenalty  *float64      `json:"presence_penalty,omitempty"`
	Stop             []string      `json:"stop,omitempty"`
	Seed             *int64        `json:"seed,omitempty"`
	Timeout          time.Duration `json:"timeout,omitempty"`
	Logprobs         bool          `json:"logprobs,omitempty"`
	TopLogprobs      *int          `json:"top_logprobs,omitempty"`
	ReasoningEffort  string        `json:"reasoning_effort,omitempty"`
}

// Merge returns s overlaid with every field set in o.
func (s Settings) Merge(o Settings) Settings {
	out := s

	if o.Temperature != nil {
		out.Temperature = o.Temperature
	}

	if o.MaxTokens != nil {
		out.MaxTokens = o.MaxTokens
	}

	if o.TopP != nil {
		out.TopP = o.TopP
	}

	if o.FrequencyPenalty != nil {
		out.FrequencyPenalty = o.FrequencyPenalty
	}

	if o.PresencePenalty != nil {
		out.PresencePenalty = o.PresencePenalty
	}

	if len(o.Stop) > 0 {
		out.Stop = o.Stop
	}

	if o.Seed != nil {
		out.Seed = o.Seed
	}

	if o.Timeout > 0 {
		out.Timeout = o.Timeout
	}

	if o.Logprobs {
		out.Logprobs = true
	}

	if o.TopLogprobs != nil {
		out.TopLogprobs = o.TopLogprobs
	}

	if o.ReasoningEffort != "" {
		out.ReasoningEffort = o.ReasoningEffort
	}

	return out
}

// WithTimeout derives a context bounded by s.Timeout when one is set.
func (s Settings) WithTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.Timeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, s.Timeout)
}

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }

// Int returns a pointer to v.
func Int(v int) *int { return &v }

// Int64 returns a pointer to v.
func Int64(v int64) *int64 { return &v }

// Bool returns a pointer to v.
func Bool(v bool) *bool { return &v }
