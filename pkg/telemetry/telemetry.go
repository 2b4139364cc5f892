// Copyright 2026 © The Amethyst Authors
// SPDX-License-Identifier: Apache-2.0

// Package telemetry wires slog and OpenTelemetry for the runtime.
package telemetry

import (
	"context"
	stderrors "errors"
	"io"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/jllopis/amethyst/pkg/errors"
)

// InstrumentationName scopes the runtime tracer and meter.
const InstrumentationName = "github.com/jllopis/amethyst"

// ShutdownFunc flushes and stops the exporters.
type ShutdownFunc func(context.Context) error

type Config struct {
	// Exporter is none, stdout or otlp.
	Exporter     string
	OTLPEndpoint string
	OTLPInsecure bool
	// ExportInterval is the metric export period. Defaults to one minute.
	ExportInterval time.Duration
	// Output receives the stdout exporter. Defaults to os.Stderr so spans
	// never interleave with the event stream on stdout.
	Output io.Writer
}

// Init installs global tracer and meter providers. The "none" exporter
// leaves the no-op providers in place and returns a no-op shutdown.
func Init(ctx context.Context, serviceName, version string, cfg Config) (ShutdownFunc, error) {
	exporter := strings.ToLower(strings.TrimSpace(cfg.Exporter))
	if exporter == "none" || exporter == "" {
		return func(context.Context) error { return nil }, nil
	}

	spans, metrics, err := exporters(ctx, exporter, cfg)
	if err != nil {
		return nil, err
	}
	res, err := resource.New(ctx, resource.WithAttributes(
		semconv.ServiceName(serviceName),
		semconv.ServiceVersion(version),
	))
	if err != nil {
		return nil, errors.New(errors.CodeInternal, "build telemetry resource", err)
	}

	interval := cfg.ExportInterval
	if interval <= 0 {
		interval = time.Minute
	}
	tp := trace.NewTracerProvider(
		trace.WithBatcher(spans, trace.WithBatchTimeout(time.Second)),
		trace.WithResource(res),
	)
	mp := metric.NewMeterProvider(
		metric.WithReader(metric.NewPeriodicReader(metrics, metric.WithInterval(interval))),
		metric.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return func(ctx context.Context) error {
		return stderrors.Join(tp.Shutdown(ctx), mp.Shutdown(ctx))
	}, nil
}

func exporters(ctx context.Context, exporter string, cfg Config) (trace.SpanExporter, metric.Exporter, error) {
	switch exporter {
	case "stdout":
		out := cfg.Output
		if out == nil {
			out = os.Stderr
		}
		spans, err := stdouttrace.New(stdouttrace.WithWriter(out))
		if err != nil {
			return nil, nil, errors.New(errors.CodeInternal, "create stdout trace exporter", err)
		}
		metrics, err := stdoutmetric.New(stdoutmetric.WithWriter(out))
		if err != nil {
			return nil, nil, errors.New(errors.CodeInternal, "create stdout metric exporter", err)
		}
		return spans, metrics, nil
	case "otlp":
		if cfg.OTLPEndpoint == "" {
			return nil, nil, errors.New(errors.CodeInvalidInput, "otlp exporter needs an endpoint", nil)
		}
		return otlpExporters(ctx, cfg)
	default:
		return nil, nil, errors.Newf(errors.CodeInvalidInput, "unknown telemetry exporter %q", cfg.Exporter)
	}
}

func otlpExporters(ctx context.Context, cfg Config) (trace.SpanExporter, metric.Exporter, error) {
	traceOpts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint)}
	metricOpts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.OTLPEndpoint)}
	if cfg.OTLPInsecure {
		dial := grpc.WithTransportCredentials(insecure.NewCredentials())
		traceOpts = append(traceOpts, otlptracegrpc.WithInsecure(), otlptracegrpc.WithDialOption(dial))
		metricOpts = append(metricOpts, otlpmetricgrpc.WithInsecure(), otlpmetricgrpc.WithDialOption(dial))
	}

	spans, err := otlptracegrpc.New(ctx, traceOpts...)
	if err != nil {
		return nil, nil, errors.New(errors.CodeInternal, "create otlp trace exporter", err).
			WithContext("endpoint", cfg.OTLPEndpoint)
	}
	metrics, err := otlpmetricgrpc.New(ctx, metricOpts...)
	if err != nil {
		_ = spans.Shutdown(ctx)
		return nil, nil, errors.New(errors.CodeInternal, "create otlp metric exporter", err).
			WithContext("endpoint", cfg.OTLPEndpoint)
	}
	return spans, metrics, nil
}
