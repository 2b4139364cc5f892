// Copyright 2026 © The Amethyst Authors
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// State is a phase of the run state machine.
type State string

const (
	StatePlanning      State = "planning"
	StateInterpreting  State = "interpreting"
	StateDispatching   State = "dispatching"
	StateAwaiting      State = "awaiting"
	StateFolding       State = "folding"
	StateDone          State = "done"
	StateOAuthRequired State = "oauth_required"
	StateFailed        State = "failed"
)

// Status is the outcome of a run.
type Status string

const (
	StatusCompleted     Status = "completed"
	StatusOAuthRequired Status = "oauth_required"
	StatusFailed        Status = "failed"
)

// enter records a transition on the active span and the debug log.
func (r *run) enter(ctx context.Context, s State, attrs ...slog.Attr) {
	trace.SpanFromContext(ctx).AddEvent("state", trace.WithAttributes(attribute.String("amethyst.state", string(s))))
	args := []any{slog.String("state", string(s))}
	for _, a := range attrs {
		args = append(args, a)
	}
	r.e.logger.DebugContext(ctx, "engine transition", args...)
}
