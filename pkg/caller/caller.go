// Copyright 2026 © The Amethyst Authors
// SPDX-License-Identifier: Apache-2.0

// Package caller performs the outbound invocation of a single resource.
//
// Every Call makes exactly one outbound request. Callers never retry and
// never return an empty result in place of an error.
package caller

import (
	"context"
	stderrors "errors"
	"net"

	"github.com/jllopis/amethyst/pkg/core"
	"github.com/jllopis/amethyst/pkg/errors"
)

// Request describes a single resource invocation.
type Request struct {
	TaskID   string
	TaskType core.TaskType
	Resource core.Resource
	Params   map[string]any
}

// Caller invokes a remote resource.
type Caller interface {
	Call(ctx context.Context, req Request) (any, error)
}

// Func adapts a function to the Caller interface.
type Func func(ctx context.Context, req Request) (any, error)

// Call implements Caller.
func (f Func) Call(ctx context.Context, req Request) (any, error) {
	return f(ctx, req)
}

// Router dispatches a request to the transport that serves the resource.
// External resources go through External whatever their kind; Amethyst
// tools and agents go through Tools and Agents.
type Router struct {
	Tools    Caller
	Agents   Caller
	External Caller
}

// Call implements Caller.
func (r *Router) Call(ctx context.Context, req Request) (any, error) {
	res := req.Resource
	var target Caller
	switch {
	case res.Provider == core.ProviderExternal:
		target = r.External
	case res.Kind == core.ResourceTool:
		target = r.Tools
	case res.Kind == core.ResourceAgent:
		target = r.Agents
	default:
		return nil, errors.Newf(errors.CodeInvalidInput, "resource %q of kind %q cannot be called remotely", res.Name, res.Kind).
			WithContext("task_id", req.TaskID)
	}
	if target == nil {
		return nil, errors.Newf(errors.CodeCallError, "no transport configured for %s resource %q", res.Provider, res.Name).
			WithContext("task_id", req.TaskID)
	}
	return target.Call(ctx, req)
}

// transportError classifies a failed round trip.
func transportError(name string, err error) *errors.Error {
	code := errors.CodeCallError
	var netErr net.Error
	if stderrors.Is(err, context.DeadlineExceeded) || (stderrors.As(err, &netErr) && netErr.Timeout()) {
		code = errors.CodeTimeout
	}
	return errors.New(code, "call "+name+" failed", err).WithContext("resource", name)
}
