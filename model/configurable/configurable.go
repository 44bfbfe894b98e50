// Package configurable provides a model whose settings and underlying
// implementation are chosen per invocation from the run config.
package configurable

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/hupe1980/agentcookbook/model"
	"github.com/hupe1980/agentcookbook/run"
)

// ErrUnknownAlternative is returned when the run config selects an
// alternative that was never registered.
var ErrUnknownAlternative = errors.New("unknown model alternative")

// Settings fields that can be exposed as configurable.
const (
	FieldTemperature = "temperature"
	FieldMaxTokens   = "max_tokens"
	FieldTopP        = "top_p"
)

// Options configures a configurable Model.
type Options struct {
	// Fields maps a config id to the Settings field it overrides.
	Fields map[string]string
	// Alternatives are the models selectable under AlternativeKey.
	Alternatives map[string]model.Model
	// AlternativeKey is the config id selecting an alternative.
	AlternativeKey string
	// DefaultKey names the default model among the alternatives.
	DefaultKey string
}

// Model resolves its settings and implementation from run.Config.Configurable
// on every call.
type Model struct {
	def  model.Model
	opts Options
}

var _ model.Model = (*Model)(nil)

// New wraps def. Field targets are validated up front.
func New(def model.Model, optFns ...func(o *Options)) (*Model, error) {
	opts := Options{
		Fields:         map[string]string{},
		Alternatives:   map[string]model.Model{},
		AlternativeKey: "llm",
		DefaultKey:     "default",
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	for id, field := range opts.Fields {
		switch field {
		case FieldTemperature, FieldMaxTokens, FieldTopP:
		default:
			return nil, fmt.Errorf("configurable field %q targets unsupported setting %q", id, field)
		}
	}

	if _, ok := opts.Alternatives[opts.DefaultKey]; ok {
		return nil, fmt.Errorf("alternative %q collides with the default key", opts.DefaultKey)
	}

	return &Model{def: def, opts: opts}, nil
}

// WithField exposes setting field under config id.
func WithField(id, field string) func(o *Options) {
	return func(o *Options) { o.Fields[id] = field }
}

// WithAlternative registers m under key.
func WithAlternative(key string, m model.Model) func(o *Options) {
	return func(o *Options) { o.Alternatives[key] = m }
}

// Keys returns the selectable alternative keys, default first.
func (m *Model) Keys() []string {
	keys := make([]string, 0, len(m.opts.Alternatives))
	for k := range m.opts.Alternatives {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	return append([]string{m.opts.DefaultKey}, keys...)
}

// Resolve returns the model and settings overrides selected by ctx.
func (m *Model) Resolve(ctx context.Context) (model.Model, model.Settings, error) {
	cfg := run.FromContext(ctx).Configurable

	selected := m.def

	if raw, ok := cfg[m.opts.AlternativeKey]; ok && len(m.opts.Alternatives) > 0 {
		key := fmt.Sprint(raw)
		if key != m.opts.DefaultKey {
			alt, ok := m.opts.Alternatives[key]
			if !ok {
				return nil, model.Settings{}, fmt.Errorf("%w: %q (available: %v)", ErrUnknownAlternative, key, m.Keys())
			}

			selected = alt
		}
	}

	var s model.Settings

	for id, field := range m.opts.Fields {
		raw, ok := cfg[id]
		if !ok {
			continue
		}

		if err := apply(&s, field, raw); err != nil {
			return nil, model.Settings{}, fmt.Errorf("configurable field %q: %w", id, err)
		}
	}

	return selected, s, nil
}

// Generate implements model.Model. Per-request settings still take
// precedence over configured values.
func (m *Model) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	selected, s, err := m.Resolve(ctx)
	if err != nil {
		out := make(chan model.Response)
		errCh := make(chan error, 1)
		errCh <- err

		close(out)
		close(errCh)

		return out, errCh
	}

	req.Settings = s.Merge(req.Settings)

	return selected.Generate(ctx, req)
}

// Info describes the default model.
func (m *Model) Info() model.Info { return m.def.Info() }

func apply(s *model.Settings, field string, raw any) error {
	switch field {
	case FieldTemperature:
		f, err := toFloat(raw)
		if err != nil {
			return err
		}

		s.Temperature = model.Float(f)
	case FieldTopP:
		f, err := toFloat(raw)
		if err != nil {
			return err
		}

		s.TopP = model.Float(f)
	case FieldMaxTokens:
		f, err := toFloat(raw)
		if err != nil {
			return err
		}

		s.MaxTokens = model.Int(int(f))
	}

	return nil
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case string:
		return strconv.ParseFloat(n, 64)
	default:
		return 0, fmt.Errorf("expected a number, got %T", v)
	}
}
