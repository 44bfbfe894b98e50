package structured

import (
	"context"
	"fmt"

	"github.com/hupe1980/agentcookbook/core"
	"github.com/hupe1980/agentcookbook/model"
)

// Method selects how a structured Model requests schema-shaped output.
type Method string

// Methods.
const (
	MethodFunctionCalling Method = "function_calling"
	MethodJSONSchema      Method = "json_schema"
	MethodJSONMode        Method = "json_mode"
)

// Result is returned by InvokeRaw. Parsed is nil when ParsingError is set.
type Result[T any] struct {
	Parsed       *T
	Raw          *model.Response
	ParsingError error
}

// Options configures a structured Model.
type Options struct {
	Method Method
	Format *Format
}

// Model wraps a chat model so each call returns a T.
type Model[T any] struct {
	model  model.Model
	format Format
	method Method
}

// NewModel wraps m. The format is derived from T unless Options.Format is
// set; the default method is function calling.
func NewModel[T any](m model.Model, optFns ...func(o *Options)) *Model[T] {
	opts := Options{Method: MethodFunctionCalling}
	for _, fn := range optFns {
		fn(&opts)
	}

	format := For[T]()
	if opts.Format != nil {
		format = *opts.Format
	}

	return &Model[T]{model: m, format: format, method: opts.Method}
}

// NewMapModel returns a structured model producing generic maps for a
// hand-written schema.
func NewMapModel(m model.Model, f Format, optFns ...func(o *Options)) *Model[map[string]any] {
	return NewModel[map[string]any](m, append([]func(o *Options){func(o *Options) { o.Format = &f }}, optFns...)...)
}

// Format returns the schema the model answers with.
func (s *Model[T]) Format() Format { return s.format }

// Method returns the request method in use.
func (s *Model[T]) Method() Method { return s.method }

// Invoke sends input and decodes the answer.
func (s *Model[T]) Invoke(ctx context.Context, input ...core.Content) (T, error) {
	res, err := s.InvokeRaw(ctx, input...)
	if err != nil {
		var zero T
		return zero, err
	}

	if res.ParsingError != nil {
		var zero T
		return zero, res.ParsingError
	}

	return *res.Parsed, nil
}

// InvokeRaw sends input and returns the raw response alongside the parse
// outcome. Only transport errors are returned as err.
func (s *Model[T]) InvokeRaw(ctx context.Context, input ...core.Content) (Result[T], error) {
	resp, err := model.Invoke(ctx, s.model, s.request(input))
	if err != nil {
		return Result[T]{}, err
	}

	res := Result[T]{Raw: resp}

	parsed, err := Decode[T](s.extract(resp), s.format)
	if err != nil {
		res.ParsingError = err
		return res, nil
	}

	res.Parsed = &parsed

	return res, nil
}

// Batch invokes each input with at most maxConcurrency calls in flight.
func (s *Model[T]) Batch(ctx context.Context, inputs [][]core.Content, maxConcurrency int) ([]T, error) {
	reqs := make([]model.Request, 0, len(inputs))
	for _, in := range inputs {
		reqs = append(reqs, s.request(in))
	}

	resps, err := model.Batch(ctx, s.model, reqs, maxConcurrency)
	if err != nil {
		return nil, err
	}

	out := make([]T, len(resps))

	for i, resp := range resps {
		v, err := Decode[T](s.extract(resp), s.format)
		if err != nil {
			return nil, fmt.Errorf("batch item %d: %w", i, err)
		}

		out[i] = v
	}

	return out, nil
}

func (s *Model[T]) request(input []core.Content) model.Request {
	req := model.Request{Contents: input}

	switch s.method {
	case MethodJSONSchema:
		req.ResponseFormat = s.format.ResponseFormat()
	case MethodJSONMode:
		req.ResponseFormat = &model.ResponseFormat{Type: model.ResponseFormatJSONObject}
		req.Instructions = fmt.Sprintf("Respond only with a JSON object matching this JSON schema:\n%s", s.format.SchemaText())
	default:
		req.Tools = []model.ToolDefinition{s.format.ToolDefinition()}
		req.ToolChoice = model.ToolChoiceFor(s.format.Name)
	}

	return req
}

func (s *Model[T]) extract(resp *model.Response) string {
	for _, fc := range resp.Content.FunctionCalls() {
		if fc.Name == s.format.Name {
			return fc.Arguments
		}
	}

	return resp.Text()
}
