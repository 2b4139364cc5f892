// Copyright 2026 © The Amethyst Authors
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/jllopis/amethyst/pkg/core"
	"github.com/jllopis/amethyst/pkg/errors"
)

// EngineMetrics holds the runtime instruments. A nil *EngineMetrics is
// valid and records nothing.
type EngineMetrics struct {
	tasksCreated  metric.Int64Counter
	tasksFinished metric.Int64Counter
	callsFailed   metric.Int64Counter
	awaitDuration metric.Float64Histogram
}

// NewEngineMetrics creates the instruments on the global meter provider.
func NewEngineMetrics() (*EngineMetrics, error) {
	return NewEngineMetricsWithMeter(otel.Meter(InstrumentationName))
}

// NewEngineMetricsWithMeter creates the instruments on meter.
func NewEngineMetricsWithMeter(meter metric.Meter) (*EngineMetrics, error) {
	tasksCreated, err := meter.Int64Counter(
		"amethyst.tasks.created",
		metric.WithDescription("Tasks inserted in memory by type"),
	)
	if err != nil {
		return nil, err
	}
	tasksFinished, err := meter.Int64Counter(
		"amethyst.tasks.finished",
		metric.WithDescription("Tasks resolved by type and status"),
	)
	if err != nil {
		return nil, err
	}
	callsFailed, err := meter.Int64Counter(
		"amethyst.calls.failed",
		metric.WithDescription("Resource calls that failed by error code"),
	)
	if err != nil {
		return nil, err
	}
	awaitDuration, err := meter.Float64Histogram(
		"amethyst.await.duration",
		metric.WithDescription("Time spent blocked on await barriers"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}
	return &EngineMetrics{
		tasksCreated:  tasksCreated,
		tasksFinished: tasksFinished,
		callsFailed:   callsFailed,
		awaitDuration: awaitDuration,
	}, nil
}

// TaskCreated counts a task insertion.
func (m *EngineMetrics) TaskCreated(ctx context.Context, t core.Task) {
	if m == nil {
		return
	}
	m.tasksCreated.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrTaskType, string(t.Type)),
		attribute.Bool(AttrTaskAsync, t.IsAsync),
	))
}

// TaskFinished counts a task resolution.
func (m *EngineMetrics) TaskFinished(ctx context.Context, t core.Task) {
	if m == nil {
		return
	}
	m.tasksFinished.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrTaskType, string(t.Type)),
		attribute.String(AttrTaskStatus, string(t.Status)),
	))
}

// CallFailed counts a failed resource call.
func (m *EngineMetrics) CallFailed(ctx context.Context, resource string, err error) {
	if m == nil || err == nil {
		return
	}
	m.callsFailed.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrResource, resource),
		attribute.String(AttrErrorCode, string(errors.CodeOf(err))),
	))
}

// AwaitObserved records how long an await barrier blocked.
func (m *EngineMetrics) AwaitObserved(ctx context.Context, d time.Duration, tasks int) {
	if m == nil {
		return
	}
	m.awaitDuration.Record(ctx, float64(d.Microseconds())/1000, metric.WithAttributes(
		attribute.Int("amethyst.await.tasks", tasks),
	))
}
