// Package run carries per-invocation configuration through a context: tags,
// metadata, a run name, a concurrency limit, configurable field values and
// callback handlers notified about model and tool activity.
package run

import (
	"context"
	"maps"
	"slices"

	"github.com/hupe1980/agentcookbook/core"
	"github.com/hupe1980/agentcookbook/model"
)

// Config is the per-invocation run configuration.
type Config struct {
	RunID          string
	RunName        string
	Tags           []string
	Metadata       map[string]any
	MaxConcurrency int
	// Configurable holds values read by configurable models, keyed by field id.
	Configurable map[string]any
	Handlers     []Handler
}

type (
	configKey   struct{}
	observerKey struct{}
	handlersKey struct{}
)

// WithConfig returns a context carrying cfg. A missing RunID is generated.
// Handlers are notified about every model call made with the returned
// context.
func WithConfig(ctx context.Context, cfg Config) context.Context {
	if cfg.RunID == "" {
		cfg.RunID = core.NewID()
	}

	ctx = context.WithValue(ctx, configKey{}, cfg.clone())

	return observe(ctx)
}

// WithHandlers attaches handlers that are notified for every run started
// under ctx, including runs whose own config replaces the enclosing one.
func WithHandlers(ctx context.Context, hs ...Handler) context.Context {
	all := slices.Concat(inherited(ctx), hs)
	ctx = context.WithValue(ctx, handlersKey{}, all)

	return observe(ctx)
}

func inherited(ctx context.Context) []Handler {
	hs, _ := ctx.Value(handlersKey{}).([]Handler)
	return hs
}

func observe(ctx context.Context) context.Context {
	if ctx.Value(observerKey{}) != nil {
		return ctx
	}

	ctx = context.WithValue(ctx, observerKey{}, true)

	return model.WithObservers(ctx, observer{})
}

// FromContext returns the config attached to ctx, or the zero Config.
func FromContext(ctx context.Context) Config {
	cfg, _ := ctx.Value(configKey{}).(Config)
	return cfg
}

// Configurable returns the value stored under key in the run config.
func Configurable(ctx context.Context, key string) (any, bool) {
	v, ok := FromContext(ctx).Configurable[key]
	return v, ok
}

// Batch runs model.Batch with the MaxConcurrency of the run config in ctx.
func Batch(ctx context.Context, m model.Model, reqs []model.Request) ([]*model.Response, error) {
	return model.Batch(ctx, m, reqs, FromContext(ctx).MaxConcurrency)
}

func (c Config) clone() Config {
	out := c
	out.Tags = slices.Clone(c.Tags)
	out.Metadata = maps.Clone(c.Metadata)
	out.Configurable = maps.Clone(c.Configurable)
	out.Handlers = slices.Clone(c.Handlers)

	return out
}
