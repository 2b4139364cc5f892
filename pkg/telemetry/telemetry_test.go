// Copyright 2026 © The Amethyst Authors
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/jllopis/amethyst/pkg/core"
	"github.com/jllopis/amethyst/pkg/errors"
)

func TestInitExporters(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"none", Config{Exporter: "none"}, false},
		{"empty", Config{}, false},
		{"stdout", Config{Exporter: "stdout"}, false},
		{"otlp without endpoint", Config{Exporter: "otlp"}, true},
		{"unknown", Config{Exporter: "zipkin"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			shutdown, err := Init(context.Background(), "test-service", "v0.0.1", tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Init err = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if err := shutdown(context.Background()); err != nil {
				t.Errorf("Shutdown failed: %v", err)
			}
		})
	}
}

func TestLoggerAddsRunAndTraceIDs(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, "debug", "json")

	tp := sdktrace.NewTracerProvider()
	defer tp.Shutdown(context.Background())
	ctx := core.WithTaskID(core.WithRunID(context.Background(), "run-1"), "task-7")
	ctx, span := tp.Tracer("test").Start(ctx, "op")
	logger.InfoContext(ctx, "hello")
	span.End()

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("decode log: %v (%s)", err, buf.String())
	}
	if rec["run_id"] != "run-1" {
		t.Fatalf("run_id = %v", rec["run_id"])
	}
	if rec["task_id"] != "task-7" {
		t.Fatalf("task_id = %v", rec["task_id"])
	}
	if rec["trace_id"] == nil || rec["span_id"] == nil {
		t.Fatalf("trace ids missing: %v", rec)
	}

	buf.Reset()
	logger.InfoContext(ctx, "explicit", slog.String(LogKeyTaskID, "other"))
	rec = map[string]any{}
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("decode log: %v", err)
	}
	if rec["task_id"] != "other" {
		t.Fatalf("explicit attribute overridden: %v", rec["task_id"])
	}
}

func TestLoggerLevelAndFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, "warn", "text")
	logger.Info("hidden")
	logger.Warn("shown")
	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, "shown") {
		t.Fatalf("unexpected output %q", out)
	}
	if ParseLogLevel("bogus") != slog.LevelInfo {
		t.Fatalf("unknown levels default to info")
	}
}

func TestEngineMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer mp.Shutdown(context.Background())

	m, err := NewEngineMetricsWithMeter(mp.Meter("test"))
	if err != nil {
		t.Fatalf("NewEngineMetricsWithMeter: %v", err)
	}
	ctx := context.Background()
	task := core.Task{ID: "a", Type: core.TaskToolCall, Status: core.TaskStatusCompleted}
	m.TaskCreated(ctx, task)
	m.TaskCreated(ctx, task)
	m.TaskFinished(ctx, task)
	m.CallFailed(ctx, "calc", errors.New(errors.CodeCallError, "boom", nil))
	m.AwaitObserved(ctx, 5*time.Millisecond, 2)

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	got := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, md := range sm.Metrics {
			switch data := md.Data.(type) {
			case metricdata.Sum[int64]:
				for _, dp := range data.DataPoints {
					got[md.Name] += dp.Value
				}
			case metricdata.Histogram[float64]:
				for _, dp := range data.DataPoints {
					got[md.Name] += int64(dp.Count)
				}
			}
		}
	}
	want := map[string]int64{
		"amethyst.tasks.created":  2,
		"amethyst.tasks.finished": 1,
		"amethyst.calls.failed":   1,
		"amethyst.await.duration": 1,
	}
	for name, v := range want {
		if got[name] != v {
			t.Fatalf("%s = %d, want %d (all: %v)", name, got[name], v, got)
		}
	}

	var nilMetrics *EngineMetrics
	nilMetrics.TaskCreated(ctx, task)
	nilMetrics.CallFailed(ctx, "x", errors.New(errors.CodeCallError, "x", nil))
}

func TestTaskAttributes(t *testing.T) {
	attrs := TaskAttributes(&core.Task{ID: "a", ParentTaskID: "p", ResourceName: "calc", Type: core.TaskToolCall})
	set := attribute.NewSet(attrs...)
	if v, ok := set.Value(AttrTaskParent); !ok || v.AsString() != "p" {
		t.Fatalf("parent attribute missing: %v", attrs)
	}
	if TaskAttributes(nil) != nil {
		t.Fatalf("nil task yields no attributes")
	}
}
