// Copyright 2026 © The Amethyst Authors
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"context"
	stderrors "errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jllopis/amethyst/pkg/caller"
	"github.com/jllopis/amethyst/pkg/core"
	"github.com/jllopis/amethyst/pkg/errors"
	"github.com/jllopis/amethyst/pkg/interpreter"
	"github.com/jllopis/amethyst/pkg/telemetry"
)

// outcome is what executing a task produced. err is a task-level failure
// that is folded as the task result, never a reason to abort the run.
type outcome struct {
	value any
	err   error
}

// createTask inserts t in memory and announces it.
func (r *run) createTask(ctx context.Context, t *core.Task) error {
	if err := r.mem.AddTask(t); err != nil {
		return err
	}
	r.announce(ctx, t)
	return nil
}

func (r *run) announce(ctx context.Context, t *core.Task) {
	r.e.metrics.TaskCreated(ctx, *t)
	r.e.emit(ctx, core.TaskCreatedEvent(t))
}

// claim stores the planned tasks of parent. Interpreter ids are only
// unique within one plan: a statement interpreted once per repeat item
// plans the same ids every time, so taken ids are re-keyed under parent.
func (r *run) claim(parent *core.Task, plan *interpreter.Plan, ids map[string]string) error {
	for _, pt := range plan.Tasks {
		planned := pt.ID
		if err := r.mem.AddTaskUnder(pt, parent.ID); err != nil {
			return err
		}
		ids[planned] = pt.ID
	}
	return nil
}

// resolveIDs translates interpreter ids to stored ids. Unknown ids are
// kept, they may name tasks the interpreter saw in its context.
func resolveIDs(ids map[string]string, planned []string) []string {
	out := make([]string, len(planned))
	for i, id := range planned {
		if stored, ok := ids[id]; ok {
			id = stored
		}
		out[i] = id
	}
	return out
}

// dispatch runs a sync task to completion and folds it, or starts an async
// task and leaves a pending handle for a later join.
func (r *run) dispatch(ctx context.Context, t *core.Task) error {
	r.enter(ctx, StateDispatching, slog.String("task_id", t.ID), slog.Bool("async", t.IsAsync))
	if err := r.mem.Start(t.ID); err != nil {
		return err
	}
	if !t.IsAsync {
		out, err := r.compute(ctx, t)
		if err != nil {
			return err
		}
		return r.fold(ctx, t.ID, out)
	}

	task := t.Descriptor(false)
	h := &handle{task: task, started: time.Now(), done: make(chan struct{})}
	r.pending.add(h)
	branch := &branchEvents{}
	bctx := context.WithValue(ctx, branchEventsKey{}, branch)
	go func() {
		defer close(h.done)
		out, err := r.compute(bctx, &task)
		h.value, h.callErr, h.fatal = out.value, out.err, err
		h.events = branch.events
	}()
	return nil
}

// compute executes t without touching its memory entry. The error return
// is reserved for conditions that abort the run.
func (r *run) compute(ctx context.Context, t *core.Task) (outcome, error) {
	ctx = core.WithTaskID(ctx, t.ID)
	ctx, span := r.e.tracer.Start(ctx, "Engine.Task", trace.WithAttributes(telemetry.TaskAttributes(t)...))
	defer span.End()

	switch t.Type {
	case core.TaskAgentResult:
		return outcome{value: agentResult(t)}, nil
	case core.TaskStatement:
		v, err := r.interpretLoop(ctx, t, t.Statement, t.Statement)
		return outcome{value: v}, spanError(span, err)
	}

	res, err := r.reg.Get(t.ResourceName)
	if err != nil {
		return outcome{err: err}, nil
	}
	span.SetAttributes(telemetry.ResourceAttributes(res)...)

	switch {
	case t.Type == core.TaskFunctionCall || res.Kind == core.ResourceFunction:
		unit, err := r.functionUnit(res)
		if err != nil {
			return outcome{err: err}, nil
		}
		v, err := r.runFunction(ctx, t, unit)
		return outcome{value: v}, spanError(span, err)
	case res.Composite():
		v, err := r.interpretLoop(ctx, t, res.Name, res.Code)
		return outcome{value: v}, spanError(span, err)
	default:
		v, err := r.call(ctx, t, res)
		if err != nil {
			span.RecordError(err)
		}
		return outcome{value: v, err: err}, nil
	}
}

func spanError(span trace.Span, err error) error {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

// call invokes a leaf resource once per input item. A single item yields
// its result directly; several yield the ordered list of results.
func (r *run) call(ctx context.Context, t *core.Task, res core.Resource) (any, error) {
	items := t.Input
	if len(items) == 0 {
		items = []map[string]any{{}}
	}
	results := make([]any, 0, len(items))
	for _, params := range items {
		v, err := r.callOnce(ctx, t, res, params)
		if err != nil {
			r.e.metrics.CallFailed(ctx, res.Name, err)
			return nil, err
		}
		results = append(results, v)
	}
	if len(results) == 1 {
		return results[0], nil
	}
	return results, nil
}

func (r *run) callOnce(ctx context.Context, t *core.Task, res core.Resource, params map[string]any) (any, error) {
	ctx, cancel := context.WithTimeout(ctx, r.e.callTimeout)
	defer cancel()
	v, err := r.e.caller.Call(ctx, caller.Request{
		TaskID:   t.ID,
		TaskType: t.Type,
		Resource: res,
		Params:   params,
	})
	if err == nil {
		return v, nil
	}
	if errors.As(err) == nil {
		code := errors.CodeCallError
		if stderrors.Is(err, context.DeadlineExceeded) {
			code = errors.CodeTimeout
		}
		err = errors.New(code, "call "+res.Name+" failed", err).WithContext("resource", res.Name)
	}
	return nil, err
}

// fold writes a task outcome into memory.
func (r *run) fold(ctx context.Context, id string, out outcome) error {
	r.enter(ctx, StateFolding, slog.String("task_id", id))
	t, err := r.mem.Resolve(id, out.value, out.err)
	if err != nil {
		return err
	}
	r.e.metrics.TaskFinished(ctx, t)
	if out.err != nil {
		r.e.logger.WarnContext(ctx, "task failed",
			slog.String("task_id", id),
			slog.String("resource", t.ResourceName),
			slog.String("code", string(errors.CodeOf(out.err))),
			slog.String("error", out.err.Error()),
		)
	}
	r.e.emit(ctx, core.TaskUpdatedEvent(&t, false))
	return nil
}

// await joins the pending handles of ids. Ids without a handle were either
// sync or already joined and are skipped.
func (r *run) await(ctx context.Context, ids []string) error {
	r.enter(ctx, StateAwaiting, slog.Any("task_ids", ids))
	var hs []*handle
	for _, id := range ids {
		if h, ok := r.pending.take(id); ok {
			hs = append(hs, h)
		}
	}
	return r.joinObserved(ctx, hs)
}

func (r *run) joinObserved(ctx context.Context, hs []*handle) error {
	start := time.Now()
	err := r.join(ctx, hs)
	r.e.metrics.AwaitObserved(ctx, time.Since(start), len(hs))
	return err
}

// join waits for each handle in order and folds its outcome.
func (r *run) join(ctx context.Context, hs []*handle) error {
	for _, h := range hs {
		select {
		case <-h.done:
		case <-ctx.Done():
			return errors.New(errors.CodeTimeout, "run abandoned while awaiting "+h.task.ID, ctx.Err())
		}
		for _, ev := range h.events {
			r.e.emit(ctx, ev)
		}
		if h.fatal != nil {
			return h.fatal
		}
		if err := r.fold(ctx, h.task.ID, outcome{value: h.value, err: h.callErr}); err != nil {
			return err
		}
	}
	return nil
}

// interpretLoop drives a composite task until the interpreter yields a
// result for code.
func (r *run) interpretLoop(ctx context.Context, t *core.Task, name, code string) (any, error) {
	interp := r.e.factory()
	// ids maps the ids chosen by the interpreter to the stored ones.
	ids := make(map[string]string)
	for i := 1; ; i++ {
		if i > r.e.maxIterations {
			return nil, errors.Newf(errors.CodeLimitExceeded, "%s: no result after %d interpretation cycles", name, r.e.maxIterations).
				WithContext("task_id", t.ID)
		}
		if err := ctx.Err(); err != nil {
			return nil, errors.New(errors.CodeTimeout, "run abandoned", err)
		}

		r.enter(ctx, StateInterpreting, slog.String("task_id", t.ID), slog.Int("iteration", i))
		plan, err := interp.Interpret(ctx, interpreter.Request{
			Resource:     name,
			Code:         code,
			Context:      r.mem.Context(t.ID, r.e.contextWindow),
			Resources:    r.reg.Snapshot(),
			ParentTaskID: t.ID,
			Input:        t.Input,
		})
		if err != nil {
			return nil, oracleError(name, err)
		}
		if plan == nil {
			plan = &interpreter.Plan{}
		}
		trace.SpanFromContext(ctx).AddEvent("plan", trace.WithAttributes(
			telemetry.PlanAttributes(i, len(plan.Tasks), len(plan.Steps), plan.Result != nil)...))

		if plan.Result == nil {
			if err := r.validatePlan(t, plan, ids); err != nil {
				return nil, err
			}
			if err := r.claim(t, plan, ids); err != nil {
				return nil, err
			}
		}
		if err := r.recordTrace(ctx, t.ID, code, plan); err != nil {
			return nil, err
		}
		if plan.Result != nil {
			return plan.Result.Value, nil
		}

		for _, child := range plan.Tasks {
			r.announce(ctx, child)
			if err := r.dispatch(ctx, child); err != nil {
				return nil, err
			}
		}
		for _, step := range plan.Steps {
			step.TaskIDs = resolveIDs(ids, step.TaskIDs)
			if err := r.await(ctx, step.TaskIDs); err != nil {
				return nil, err
			}
			r.mem.AddStep(step)
		}
	}
}

// recordTrace stores the interpreter exchange on the owning task and
// publishes it.
func (r *run) recordTrace(ctx context.Context, taskID, code string, plan *interpreter.Plan) error {
	tr := core.Trace{Code: code, Steps: len(plan.Steps)}
	for _, pt := range plan.Tasks {
		if pt != nil {
			tr.Tasks = append(tr.Tasks, pt.ID)
		}
	}
	if plan.Result != nil {
		tr.Result = plan.Result.Value
	}
	updated, err := r.mem.AppendTrace(taskID, tr)
	if err != nil {
		return err
	}
	r.e.emit(ctx, core.TaskUpdatedEvent(&updated, true))
	return nil
}

// validatePlan normalizes planned tasks and rejects plans the engine
// cannot execute consistently.
func (r *run) validatePlan(parent *core.Task, plan *interpreter.Plan, ids map[string]string) error {
	seen := make(map[string]struct{}, len(plan.Tasks))
	for i, pt := range plan.Tasks {
		if pt == nil {
			return errors.Newf(errors.CodeMalformedPlan, "planned task %d is empty", i)
		}
		if pt.ID == "" {
			pt.ID = uuid.NewString()
		}
		if _, dup := seen[pt.ID]; dup {
			return errors.Newf(errors.CodeMalformedPlan, "duplicate task id %q", pt.ID).WithContext("task_id", pt.ID)
		}
		seen[pt.ID] = struct{}{}
		if !pt.Type.Valid() {
			return errors.Newf(errors.CodeMalformedPlan, "task %q has unknown type %q", pt.ID, pt.Type).WithContext("task_id", pt.ID)
		}
		if pt.Type == core.TaskStatement && strings.TrimSpace(pt.Statement) == "" {
			return errors.Newf(errors.CodeMalformedPlan, "statement task %q has no statement", pt.ID).WithContext("task_id", pt.ID)
		}
		pt.ParentTaskID = parent.ID
		pt.Status = core.TaskStatusPending
		pt.Result = nil
		if pt.Input == nil {
			pt.Input = []map[string]any{}
		}
		if pt.CreatedAt.IsZero() {
			pt.CreatedAt = time.Now().UTC()
		}
	}
	for _, step := range plan.Steps {
		if step.Type != core.StepAwait {
			return errors.Newf(errors.CodeMalformedPlan, "unknown step type %q", step.Type)
		}
		for _, id := range step.TaskIDs {
			_, planned := seen[id]
			_, aliased := ids[id]
			if !planned && !aliased && !r.mem.Has(id) {
				return errors.Newf(errors.CodeMalformedPlan, "await references unknown task %q", id).WithContext("task_id", id)
			}
		}
	}
	return nil
}

func oracleError(name string, err error) error {
	if errors.Fatal(err) {
		return err
	}
	return errors.New(errors.CodeLLMError, "interpret "+name, err).WithContext("resource", name)
}

// agentResult is the value carried by an agent_result task.
func agentResult(t *core.Task) any {
	if len(t.Input) == 0 {
		return nil
	}
	if v, ok := t.Input[0]["result"]; ok {
		return v
	}
	return t.Input[0]
}
