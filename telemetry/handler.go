package telemetry

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/hupe1980/agentcookbook/run"
)

// Handler is a run.Handler recording one span per model or tool call and
// counting calls and tokens.
type Handler struct {
	tracer trace.Tracer

	modelCalls metric.Int64Counter
	toolCalls  metric.Int64Counter
	tokens     metric.Int64Counter
	duration   metric.Float64Histogram

	mu    sync.Mutex
	spans map[string]trace.Span
}

var _ run.Handler = (*Handler)(nil)

// NewHandler creates the instruments on meter.
func NewHandler(tracer trace.Tracer, meter metric.Meter) (*Handler, error) {
	modelCalls, err := meter.Int64Counter("cookbook.model.calls", metric.WithDescription("Model calls"))
	if err != nil {
		return nil, fmt.Errorf("failed to create model call counter: %w", err)
	}

	toolCalls, err := meter.Int64Counter("cookbook.tool.calls", metric.WithDescription("Tool calls"))
	if err != nil {
		return nil, fmt.Errorf("failed to create tool call counter: %w", err)
	}

	tokens, err := meter.Int64Counter("cookbook.tokens", metric.WithDescription("Tokens used"), metric.WithUnit("{token}"))
	if err != nil {
		return nil, fmt.Errorf("failed to create token counter: %w", err)
	}

	duration, err := meter.Float64Histogram("cookbook.model.duration", metric.WithDescription("Model call latency"), metric.WithUnit("ms"))
	if err != nil {
		return nil, fmt.Errorf("failed to create duration histogram: %w", err)
	}

	return &Handler{
		tracer:     tracer,
		modelCalls: modelCalls,
		toolCalls:  toolCalls,
		tokens:     tokens,
		duration:   duration,
		spans:      make(map[string]trace.Span),
	}, nil
}

// Handle implements run.Handler.
func (h *Handler) Handle(ctx context.Context, ev run.Event) {
	switch ev.Type {
	case run.EventModelStart:
		h.start(ctx, "model "+ev.Name, ev, attribute.String("gen_ai.system", ev.Provider), attribute.String("gen_ai.request.model", ev.Name))
	case run.EventToolStart:
		h.start(ctx, "tool "+ev.Name, ev, attribute.String("tool.name", ev.Name), attribute.String("tool.arguments", ev.Args))
	case run.EventModelEnd:
		attrs := metric.WithAttributes(attribute.String("model", ev.Name), attribute.Bool("error", ev.Err != nil))
		h.modelCalls.Add(ctx, 1, attrs)
		h.duration.Record(ctx, float64(ev.Duration.Milliseconds()), attrs)

		span := h.end(ev)
		if ev.Response != nil && ev.Response.Usage != nil {
			u := ev.Response.Usage
			h.tokens.Add(ctx, int64(u.PromptTokens), metric.WithAttributes(attribute.String("model", ev.Name), attribute.String("kind", "prompt")))
			h.tokens.Add(ctx, int64(u.CompletionTokens), metric.WithAttributes(attribute.String("model", ev.Name), attribute.String("kind", "completion")))

			if span != nil {
				span.SetAttributes(
					attribute.Int("gen_ai.usage.input_tokens", u.PromptTokens),
					attribute.Int("gen_ai.usage.output_tokens", u.CompletionTokens),
				)
			}
		}

		finish(span, ev.Err)
	case run.EventToolEnd:
		h.toolCalls.Add(ctx, 1, metric.WithAttributes(attribute.String("tool", ev.Name), attribute.Bool("error", ev.Err != nil)))
		finish(h.end(ev), ev.Err)
	}
}

func (h *Handler) start(ctx context.Context, name string, ev run.Event, attrs ...attribute.KeyValue) {
	cfg := ev.Config

	attrs = append(attrs,
		attribute.String("run.id", cfg.RunID),
		attribute.String("run.name", cfg.RunName),
		attribute.StringSlice("run.tags", cfg.Tags),
	)

	for k, v := range cfg.Metadata {
		attrs = append(attrs, attribute.String("run.metadata."+k, fmt.Sprint(v)))
	}

	_, span := h.tracer.Start(ctx, name, trace.WithAttributes(attrs...))

	h.mu.Lock()
	h.spans[ev.CallID] = span
	h.mu.Unlock()
}

func (h *Handler) end(ev run.Event) trace.Span {
	h.mu.Lock()
	defer h.mu.Unlock()

	span, ok := h.spans[ev.CallID]
	if !ok {
		return nil
	}

	delete(h.spans, ev.CallID)

	return span
}

func finish(span trace.Span, err error) {
	if span == nil {
		return
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	span.End()
}
