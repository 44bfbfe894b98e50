// Package telemetry exports OpenTelemetry traces and metrics for lesson runs
// to size-rotated files and records model and tool activity from run events.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/hupe1980/agentcookbook/config"
	"github.com/hupe1980/agentcookbook/logging"
)

// Providers holds the configured tracer and meter.
type Providers struct {
	Tracer trace.Tracer
	Meter  metric.Meter

	shutdown []func(context.Context) error
}

// Init sets up tracer and meter providers exporting to the files named in
// cfg and registers them globally. Call Shutdown to flush.
func Init(ctx context.Context, cfg config.TelemetryConfig) (*Providers, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion("1.0.0"),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	traceFile, err := logging.NewFileWriter(cfg.TraceFile)
	if err != nil {
		return nil, err
	}

	traceExporter, err := stdouttrace.New(
		stdouttrace.WithWriter(traceFile),
		stdouttrace.WithPrettyPrint(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	metricsFile, err := logging.NewFileWriter(cfg.MetricFile)
	if err != nil {
		return nil, err
	}

	metricExporter, err := stdoutmetric.New(
		stdoutmetric.WithWriter(metricsFile),
		stdoutmetric.WithPrettyPrint(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create metric exporter: %w", err)
	}

	interval := cfg.MetricInterval
	if interval <= 0 {
		interval = 10 * time.Second
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter, sdkmetric.WithInterval(interval))),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(mp)

	return &Providers{
		Tracer: tp.Tracer(cfg.ServiceName),
		Meter:  mp.Meter(cfg.ServiceName),
		shutdown: []func(context.Context) error{
			tp.Shutdown,
			mp.Shutdown,
			func(context.Context) error { return traceFile.Close() },
			func(context.Context) error { return metricsFile.Close() },
		},
	}, nil
}

// Shutdown flushes pending telemetry and closes the export files.
func (p *Providers) Shutdown(ctx context.Context) error {
	var errs []error

	for _, fn := range p.shutdown {
		if err := fn(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
