// Copyright 2026 © The Amethyst Authors
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"context"
	"io"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/trace"

	"github.com/jllopis/amethyst/pkg/core"
)

// Log attribute keys added from the context.
const (
	LogKeyRunID   = "run_id"
	LogKeyTaskID  = "task_id"
	LogKeyTraceID = "trace_id"
	LogKeySpanID  = "span_id"
)

// ConfigureSlog sets the global slog logger and returns it.
func ConfigureSlog(output io.Writer, level, format string) *slog.Logger {
	logger := NewLogger(output, level, format)
	slog.SetDefault(logger)
	return logger
}

// NewLogger builds a logger whose records carry the run, task and span of
// the context they are logged with. Attributes set explicitly on a record
// take precedence.
func NewLogger(output io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLogLevel(level)}
	var base slog.Handler
	if strings.EqualFold(strings.TrimSpace(format), "json") {
		base = slog.NewJSONHandler(output, opts)
	} else {
		base = slog.NewTextHandler(output, opts)
	}
	return slog.New(&runHandler{next: base})
}

type runHandler struct {
	next slog.Handler
}

func (h *runHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *runHandler) Handle(ctx context.Context, record slog.Record) error {
	if ctx == nil {
		return h.next.Handle(ctx, record)
	}
	extra := contextAttrs(ctx)
	if len(extra) == 0 {
		return h.next.Handle(ctx, record)
	}
	present := make(map[string]bool, record.NumAttrs())
	record.Attrs(func(a slog.Attr) bool {
		present[a.Key] = true
		return true
	})
	for _, a := range extra {
		if !present[a.Key] {
			record.AddAttrs(a)
		}
	}
	return h.next.Handle(ctx, record)
}

func (h *runHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &runHandler{next: h.next.WithAttrs(attrs)}
}

func (h *runHandler) WithGroup(name string) slog.Handler {
	return &runHandler{next: h.next.WithGroup(name)}
}

func contextAttrs(ctx context.Context) []slog.Attr {
	var out []slog.Attr
	if id, ok := core.RunID(ctx); ok && id != "" {
		out = append(out, slog.String(LogKeyRunID, id))
	}
	if id, ok := core.TaskID(ctx); ok && id != "" {
		out = append(out, slog.String(LogKeyTaskID, id))
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		out = append(out,
			slog.String(LogKeyTraceID, sc.TraceID().String()),
			slog.String(LogKeySpanID, sc.SpanID().String()),
		)
	}
	return out
}

// ParseLogLevel maps a level name to a slog level, defaulting to info.
func ParseLogLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
