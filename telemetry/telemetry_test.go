package telemetry

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/hupe1980/agentcookbook/config"
	"github.com/hupe1980/agentcookbook/core"
	"github.com/hupe1980/agentcookbook/model"
	"github.com/hupe1980/agentcookbook/run"
)

func TestHandler_SpansAndMetrics(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	h, err := NewHandler(tp.Tracer("test"), mp.Meter("test"))
	require.NoError(t, err)

	m := model.NewMockModel("gpt-4o-mini", "openai")
	m.SetHandler(func(context.Context, model.Request) (model.Response, error) {
		return model.Response{
			Content: core.NewAssistantText("ok"),
			Usage:   &model.TokenUsage{PromptTokens: 7, CompletionTokens: 3, TotalTokens: 10},
		}, nil
	})

	ctx := run.WithConfig(context.Background(), run.Config{
		RunName:  "traced",
		Tags:     []string{"lesson"},
		Metadata: map[string]any{"user": "u1"},
		Handlers: []run.Handler{h},
	})

	_, err = model.Invoke(ctx, m, model.Prompt("hi"))
	require.NoError(t, err)

	run.Dispatch(ctx, run.Event{Type: run.EventToolStart, CallID: "c1", Name: "calc", Args: "{}"})
	run.Dispatch(ctx, run.Event{Type: run.EventToolEnd, CallID: "c1", Name: "calc", Err: assert.AnError})

	spans := exporter.GetSpans()
	require.Len(t, spans, 2)
	assert.Equal(t, "model gpt-4o-mini", spans[0].Name)
	assert.Equal(t, "tool calc", spans[1].Name)
	assert.Equal(t, "Error", spans[1].Status.Code.String())

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	names := map[string]bool{}
	for _, sm := range rm.ScopeMetrics {
		for _, md := range sm.Metrics {
			names[md.Name] = true
		}
	}

	assert.True(t, names["cookbook.model.calls"])
	assert.True(t, names["cookbook.tool.calls"])
	assert.True(t, names["cookbook.tokens"])
}

func TestInit_WritesFiles(t *testing.T) {
	dir := t.TempDir()

	p, err := Init(context.Background(), config.TelemetryConfig{
		ServiceName:    "test",
		TraceFile:      filepath.Join(dir, "traces.log"),
		MetricFile:     filepath.Join(dir, "metrics.log"),
		MetricInterval: time.Hour,
	})
	require.NoError(t, err)

	_, span := p.Tracer.Start(context.Background(), "op")
	span.End()

	require.NoError(t, p.Shutdown(context.Background()))
	assert.FileExists(t, filepath.Join(dir, "traces.log"))
}
