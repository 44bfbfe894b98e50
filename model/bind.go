package model

import "context"

// BindOptions are request defaults attached to a model.
type BindOptions struct {
	Settings          Settings
	Tools             []ToolDefinition
	ToolChoice        *ToolChoice
	ParallelToolCalls *bool
	ResponseFormat    *ResponseFormat
}

// BoundModel fills request fields the caller left empty from its defaults.
type BoundModel struct {
	model Model
	opts  BindOptions
}

// Bind returns m with request defaults applied to every generation. Settings
// on the request win over bound settings.
func Bind(m Model, optFns ...func(o *BindOptions)) *BoundModel {
	opts := BindOptions{}
	if bm, ok := m.(*BoundModel); ok {
		opts = bm.opts
		m = bm.model
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &BoundModel{model: m, opts: opts}
}

// WithSettings binds sampling settings to m.
func WithSettings(m Model, s Settings) *BoundModel {
	return Bind(m, func(o *BindOptions) { o.Settings = o.Settings.Merge(s) })
}

// WithTools binds tool definitions to m.
func WithTools(m Model, tools ...ToolDefinition) *BoundModel {
	return Bind(m, func(o *BindOptions) { o.Tools = append(o.Tools, tools...) })
}

// Unwrap returns the underlying model.
func (b *BoundModel) Unwrap() Model { return b.model }

// Options returns the bound defaults.
func (b *BoundModel) Options() BindOptions { return b.opts }

// Generate implements Model.
func (b *BoundModel) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	req.Settings = b.opts.Settings.Merge(req.Settings)

	if len(req.Tools) == 0 {
		req.Tools = b.opts.Tools
	}

	if req.ToolChoice == nil {
		req.ToolChoice = b.opts.ToolChoice
	}

	if req.ParallelToolCalls == nil {
		req.ParallelToolCalls = b.opts.ParallelToolCalls
	}

	if req.ResponseFormat == nil {
		req.ResponseFormat = b.opts.ResponseFormat
	}

	return b.model.Generate(ctx, req)
}

// Info implements Model.
func (b *BoundModel) Info() Info { return b.model.Info() }
