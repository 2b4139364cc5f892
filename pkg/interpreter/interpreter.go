// Copyright 2026 © The Amethyst Authors
// SPDX-License-Identifier: Apache-2.0

// Package interpreter turns a code fragment plus the visible memory into the
// next batch of tasks and steps, or into the fragment's final result.
//
// The engine treats an Interpreter as an oracle: it never inspects the code
// itself. Each composite task gets a fresh Interpreter from a Factory, so
// conversation state never leaks between tasks.
package interpreter

import (
	"context"

	"github.com/jllopis/amethyst/pkg/core"
	"github.com/jllopis/amethyst/pkg/memory"
)

// Request is the input of one interpretation cycle.
type Request struct {
	// Resource names the agent or function whose code is interpreted.
	Resource string
	// Code is the fragment being interpreted.
	Code string
	// Context is the memory visible from ParentTaskID.
	Context memory.Context
	// Resources are the callable resources of the run.
	Resources []core.Resource
	// ParentTaskID is the composite task that owns every task planned here.
	ParentTaskID string
	// Input is the parent task input.
	Input []map[string]any
}

// Plan is the outcome of one cycle. A non-nil Result ends the fragment and
// any tasks are ignored; an empty plan asks the engine to interpret again.
type Plan struct {
	Tasks  []*core.Task
	Steps  []core.Step
	Result *core.Result
}

// Empty reports whether the plan carries nothing to do.
func (p *Plan) Empty() bool {
	return p == nil || (len(p.Tasks) == 0 && len(p.Steps) == 0 && p.Result == nil)
}

// Clone returns a deep enough copy for the engine to own.
func (p *Plan) Clone() *Plan {
	if p == nil {
		return nil
	}
	out := &Plan{}
	for _, t := range p.Tasks {
		if t == nil {
			continue
		}
		c := t.Descriptor(false)
		out.Tasks = append(out.Tasks, &c)
	}
	for _, s := range p.Steps {
		out.Steps = append(out.Steps, core.Step{Type: s.Type, TaskIDs: append([]string(nil), s.TaskIDs...)})
	}
	if p.Result != nil {
		r := *p.Result
		out.Result = &r
	}
	return out
}

// Interpreter plans the next cycle of a fragment.
type Interpreter interface {
	Interpret(ctx context.Context, req Request) (*Plan, error)
}

// Factory creates a fresh interpreter for one composite task.
type Factory func() Interpreter
