// Copyright 2026 © The Amethyst Authors
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/jllopis/amethyst/pkg/core"
	"github.com/jllopis/amethyst/pkg/errors"
	"github.com/jllopis/amethyst/pkg/syntax"
)

// functionUnit returns the parsed body of a function resource. Functions
// declared in the manifest with a code body are parsed on demand.
func (r *run) functionUnit(res core.Resource) (syntax.Unit, error) {
	if u, ok := r.units[res.Name]; ok && u.Kind == core.ResourceFunction {
		return u, nil
	}
	if res.Kind != core.ResourceFunction || strings.TrimSpace(res.Code) == "" {
		return syntax.Unit{}, errors.Newf(errors.CodeResourceNotFound, "function %q has no body", res.Name).
			WithContext("resource", res.Name)
	}
	prog, err := syntax.Parse("function " + res.Name + "\n" + res.Code + "\nend function")
	if err != nil {
		return syntax.Unit{}, errors.New(errors.CodeInvalidInput, "parse function "+res.Name, err)
	}
	u, _ := prog.Unit(res.Name)
	return u, nil
}

// runFunction executes the blocks of a function body. Sequence statements
// run in order; repeat blocks run their statements once per input item;
// wait joins every parallel statement started by this function. The
// result is the ordered list of collected statement results.
func (r *run) runFunction(ctx context.Context, t *core.Task, u syntax.Unit) (any, error) {
	results := []any{}
	collect := func(st syntax.Statement, item map[string]any) error {
		v, err := r.statement(ctx, t, st, item)
		if err != nil {
			return err
		}
		if !st.Parallel {
			results = append(results, v)
		}
		return nil
	}

	for _, b := range u.Blocks {
		switch b.Type {
		case syntax.BlockSequence:
			for _, st := range b.Statements {
				if err := collect(st, nil); err != nil {
					return nil, err
				}
			}
		case syntax.BlockRepeat:
			for i, item := range t.Input {
				r.e.emit(ctx, core.ProgressEvent(fmt.Sprintf("Processing item %d/%d", i+1, len(t.Input))))
				for _, st := range b.Statements {
					if err := collect(st, item); err != nil {
						return nil, err
					}
				}
			}
		case syntax.BlockWait:
			r.enter(ctx, StateAwaiting)
			hs := r.pending.takeWhere(func(c core.Task) bool { return c.ParentTaskID == t.ID })
			if err := r.joinObserved(ctx, hs); err != nil {
				return nil, err
			}
			for _, h := range hs {
				if done, ok := r.mem.Get(h.task.ID); ok && done.Result != nil {
					results = append(results, done.Result)
				}
			}
		}
	}
	return results, nil
}

// statement creates and dispatches a statement task. Parallel statements
// return immediately with a nil result.
func (r *run) statement(ctx context.Context, parent *core.Task, st syntax.Statement, item map[string]any) (any, error) {
	prefix := ""
	if st.Parallel {
		prefix = "parallel "
	}
	r.e.emit(ctx, core.ProgressEvent(fmt.Sprintf("Executing %sstatement %s", prefix, st.Text)))

	var input []map[string]any
	if item != nil {
		input = []map[string]any{item}
	}
	t := core.NewTask(parent.ID, "", core.TaskStatement, input)
	t.Statement = st.Text
	t.IsAsync = st.Parallel
	if err := r.createTask(ctx, t); err != nil {
		return nil, err
	}
	if err := r.dispatch(ctx, t); err != nil {
		return nil, err
	}
	if st.Parallel {
		return nil, nil
	}
	done, _ := r.mem.Get(t.ID)
	return done.Result, nil
}
