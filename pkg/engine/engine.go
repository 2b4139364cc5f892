// Copyright 2026 © The Amethyst Authors
// SPDX-License-Identifier: Apache-2.0

// Package engine runs workflow applications.
//
// A run walks the application files in order. Each file goes through a
// planning phase (parse, hydrate, authorization check) and then its main
// unit is executed as a tree of tasks: composite tasks are driven by an
// Interpreter, leaf tasks are sent to a Caller. Results are folded into a
// shared Memory that feeds the next interpretation cycle.
package engine

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/jllopis/amethyst/pkg/caller"
	"github.com/jllopis/amethyst/pkg/core"
	"github.com/jllopis/amethyst/pkg/errors"
	"github.com/jllopis/amethyst/pkg/hydrate"
	"github.com/jllopis/amethyst/pkg/interpreter"
	"github.com/jllopis/amethyst/pkg/memory"
	"github.com/jllopis/amethyst/pkg/telemetry"
)

const (
	// DefaultCallTimeout bounds a single leaf call.
	DefaultCallTimeout = 60 * time.Second
	// DefaultMaxIterations bounds interpretation cycles per composite task.
	DefaultMaxIterations = 50
	// DefaultContextWindow is the number of resolved tasks shown to the
	// interpreter.
	DefaultContextWindow = 50
)

// Hydrator attaches schemas and skills to resources before a run.
type Hydrator interface {
	Hydrate(ctx context.Context, resources []*core.Resource) hydrate.Report
}

// Engine executes applications. It holds no per-run state and may run
// several applications concurrently.
type Engine struct {
	caller        caller.Caller
	factory       interpreter.Factory
	sink          core.Sink
	store         memory.Store
	hydrator      Hydrator
	enricher      hydrate.Enricher
	schemas       hydrate.Enricher
	callTimeout   time.Duration
	maxIterations int
	contextWindow int
	metrics       *telemetry.EngineMetrics
	logger        *slog.Logger
	tracer        trace.Tracer
}

// Option configures an Engine.
type Option func(*Engine)

// WithCaller sets the transport used for leaf tasks.
func WithCaller(c caller.Caller) Option {
	return func(e *Engine) {
		e.caller = c
	}
}

// WithInterpreter sets the factory that creates one interpreter per
// composite task.
func WithInterpreter(f interpreter.Factory) Option {
	return func(e *Engine) {
		e.factory = f
	}
}

// WithSink sets the progress event sink.
func WithSink(s core.Sink) Option {
	return func(e *Engine) {
		if s != nil {
			e.sink = s
		}
	}
}

// WithStore enables memory checkpoints after every file.
func WithStore(s memory.Store) Option {
	return func(e *Engine) {
		e.store = s
	}
}

// WithHydrator enables hydration of Amethyst resources.
func WithHydrator(h Hydrator) Option {
	return func(e *Engine) {
		e.hydrator = h
	}
}

// WithEnricher sets the connection-status provider for external resources.
func WithEnricher(en hydrate.Enricher) Option {
	return func(e *Engine) {
		e.enricher = en
	}
}

// WithSchemas sets the enricher that completes tool schemas of external
// resources once their connection status is known.
func WithSchemas(en hydrate.Enricher) Option {
	return func(e *Engine) {
		e.schemas = en
	}
}

// WithCallTimeout bounds each leaf call.
func WithCallTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.callTimeout = d
		}
	}
}

// WithMaxIterations bounds interpretation cycles per composite task.
func WithMaxIterations(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxIterations = n
		}
	}
}

// WithContextWindow sets how many resolved tasks the interpreter sees.
// Zero or negative shows every visible task.
func WithContextWindow(n int) Option {
	return func(e *Engine) {
		e.contextWindow = n
	}
}

// WithMetrics records engine metrics.
func WithMetrics(m *telemetry.EngineMetrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithTracer overrides the tracer.
func WithTracer(t trace.Tracer) Option {
	return func(e *Engine) {
		if t != nil {
			e.tracer = t
		}
	}
}

// New creates an Engine. A caller and an interpreter factory are required.
func New(opts ...Option) (*Engine, error) {
	e := &Engine{
		sink:          core.NoopSink{},
		callTimeout:   DefaultCallTimeout,
		maxIterations: DefaultMaxIterations,
		contextWindow: DefaultContextWindow,
		logger:        slog.Default(),
		tracer:        otel.Tracer(telemetry.InstrumentationName),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	if e.caller == nil {
		return nil, errors.Newf(errors.CodeInvalidInput, "engine: caller is required")
	}
	if e.factory == nil {
		return nil, errors.Newf(errors.CodeInvalidInput, "engine: interpreter factory is required")
	}
	return e, nil
}

type branchEventsKey struct{}

// branchEvents holds the events of an async branch until it is joined.
// Only the branch goroutine appends to it.
type branchEvents struct {
	events []core.Event
}

// emit publishes ev, or buffers it when ctx belongs to an async branch so
// the sink sees branch events in join order.
func (e *Engine) emit(ctx context.Context, ev core.Event) {
	if b, ok := ctx.Value(branchEventsKey{}).(*branchEvents); ok {
		b.events = append(b.events, ev)
		return
	}
	e.sink.Emit(ctx, ev)
}
