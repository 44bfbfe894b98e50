// Package usage aggregates token usage reported by model calls and prices it.
package usage

import (
	"context"
	"sort"
	"sync"

	"github.com/hupe1980/agentcookbook/model"
)

type contextKey struct{}

// Stats is the usage accumulated for one key.
type Stats struct {
	Calls int
	model.TokenUsage
}

// Tracker aggregates token usage per model, per provider and overall. It
// implements model.Observer and is safe for concurrent use.
type Tracker struct {
	mu         sync.Mutex
	total      Stats
	byModel    map[string]Stats
	byProvider map[string]Stats
	failures   int
}

var _ model.Observer = (*Tracker)(nil)

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{
		byModel:    make(map[string]Stats),
		byProvider: make(map[string]Stats),
	}
}

// Collect returns a context that records every model call made with it into
// a fresh tracker, together with that tracker.
func Collect(ctx context.Context) (context.Context, *Tracker) {
	t := NewTracker()

	ctx = context.WithValue(ctx, contextKey{}, t)

	return model.WithObservers(ctx, t), t
}

// FromContext returns the tracker installed by Collect, if any.
func FromContext(ctx context.Context) (*Tracker, bool) {
	t, ok := ctx.Value(contextKey{}).(*Tracker)
	return t, ok
}

// OnModelStart implements model.Observer.
func (t *Tracker) OnModelStart(context.Context, model.Call) {}

// OnModelEnd implements model.Observer.
func (t *Tracker) OnModelEnd(_ context.Context, call model.Call, resp *model.Response, err error) {
	if err != nil || resp == nil {
		t.mu.Lock()
		t.failures++
		t.mu.Unlock()

		return
	}

	name := resp.Model
	if name == "" {
		name = call.Info.Name
	}

	var u model.TokenUsage
	if resp.Usage != nil {
		u = *resp.Usage
	}

	t.Record(name, call.Info.Provider, u)
}

// Record adds u to the totals for modelName and provider.
func (t *Tracker) Record(modelName, provider string, u model.TokenUsage) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.total.Calls++
	t.total.Add(u)

	addTo(t.byModel, modelName, u)

	if provider != "" {
		addTo(t.byProvider, provider, u)
	}
}

func addTo(m map[string]Stats, key string, u model.TokenUsage) {
	s := m[key]
	s.Calls++
	s.Add(u)
	m[key] = s
}

// Total returns the usage across all calls.
func (t *Tracker) Total() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.total
}

// Failures returns the number of calls that ended in an error.
func (t *Tracker) Failures() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.failures
}

// ByModel returns a copy of the per-model usage.
func (t *Tracker) ByModel() map[string]Stats {
	t.mu.Lock()
	defer t.mu.Unlock()

	return copyStats(t.byModel)
}

// ByProvider returns a copy of the per-provider usage.
func (t *Tracker) ByProvider() map[string]Stats {
	t.mu.Lock()
	defer t.mu.Unlock()

	return copyStats(t.byProvider)
}

// Models returns the tracked model names in sorted order.
func (t *Tracker) Models() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	names := make([]string, 0, len(t.byModel))
	for name := range t.byModel {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// Cost prices the per-model usage with catalog and returns the sum.
func (t *Tracker) Cost(catalog Catalog) float64 {
	var total float64

	for name, s := range t.ByModel() {
		if c, ok := catalog.Cost(name, s.TokenUsage); ok {
			total += c
		}
	}

	return total
}

// Reset clears all recorded usage.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.total = Stats{}
	t.failures = 0
	t.byModel = make(map[string]Stats)
	t.byProvider = make(map[string]Stats)
}

func copyStats(in map[string]Stats) map[string]Stats {
	out := make(map[string]Stats, len(in))
	for k, v := range in {
		out[k] = v
	}

	return out
}
