// Copyright 2026 © The Amethyst Authors
// SPDX-License-Identifier: Apache-2.0

package interpreter

import (
	"context"
	"sync"

	"github.com/jllopis/amethyst/pkg/errors"
)

// Scripted replays pre-programmed plans per resource. Each instance keeps
// its own cursor, so every composite task created through ScriptedFactory
// replays its script from the start.
type Scripted struct {
	scripts map[string][]*Plan

	mu       sync.Mutex
	cursor   map[string]int
	requests []Request
}

// NewScripted creates an interpreter for the given scripts, keyed by the
// resource name being interpreted.
func NewScripted(scripts map[string][]*Plan) *Scripted {
	return &Scripted{scripts: scripts, cursor: make(map[string]int)}
}

// ScriptedFactory returns a Factory over shared scripts.
func ScriptedFactory(scripts map[string][]*Plan) Factory {
	return func() Interpreter {
		return NewScripted(scripts)
	}
}

// Interpret implements Interpreter. The parent of every planned task that
// has none is set to req.ParentTaskID.
func (s *Scripted) Interpret(_ context.Context, req Request) (*Plan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.requests = append(s.requests, req)
	script, ok := s.scripts[req.Resource]
	if !ok {
		return nil, errors.Newf(errors.CodeLLMError, "no script for %q", req.Resource)
	}
	n := s.cursor[req.Resource]
	if n >= len(script) {
		return nil, errors.Newf(errors.CodeLLMError, "script for %q exhausted after %d plans", req.Resource, n)
	}
	s.cursor[req.Resource] = n + 1

	plan := script[n].Clone()
	if plan == nil {
		plan = &Plan{}
	}
	for _, t := range plan.Tasks {
		if t.ParentTaskID == "" {
			t.ParentTaskID = req.ParentTaskID
		}
	}
	return plan, nil
}

// Requests returns the requests seen so far.
func (s *Scripted) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}
