// Copyright 2026 © The Amethyst Authors
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jllopis/amethyst/pkg/app"
	"github.com/jllopis/amethyst/pkg/core"
	"github.com/jllopis/amethyst/pkg/errors"
	"github.com/jllopis/amethyst/pkg/memory"
	"github.com/jllopis/amethyst/pkg/registry"
	"github.com/jllopis/amethyst/pkg/syntax"
	"github.com/jllopis/amethyst/pkg/telemetry"
)

// Result is the outcome of a run.
type Result struct {
	RunID  string `json:"run_id"`
	Status Status `json:"status"`
	// Resources lists the resources that blocked the run on authorization.
	Resources []core.Resource `json:"resources,omitempty"`
	// Result is the result of the last executed main unit.
	Result            any               `json:"result,omitempty"`
	HydrationFailures map[string]string `json:"hydration_failures,omitempty"`
	Error             string            `json:"error,omitempty"`

	Err    error          `json:"-"`
	Memory *memory.Memory `json:"-"`
}

// run is the state of one application run.
type run struct {
	e       *Engine
	id      string
	app     *app.App
	mem     *memory.Memory
	reg     *registry.Registry
	units   map[string]syntax.Unit
	pending *pendingTable

	hydrated          bool
	hydrationFailures map[string]string
}

func (e *Engine) newRun(id string, a *app.App) *run {
	r := &run{
		e:       e,
		id:      id,
		app:     a,
		mem:     memory.New(),
		reg:     registry.New(),
		units:   make(map[string]syntax.Unit),
		pending: newPendingTable(),
	}
	for _, res := range a.Resources {
		r.reg.Register(res.Clone())
	}
	return r
}

// Run executes every file of a in order. The returned Result is never nil;
// the error is non-nil exactly when the run failed.
func (e *Engine) Run(ctx context.Context, a *app.App, runID string) (*Result, error) {
	if runID != "" {
		ctx = core.WithRunID(ctx, runID)
	} else {
		ctx, runID = core.EnsureRunID(ctx)
	}
	res := &Result{RunID: runID}
	if err := a.Validate(); err != nil {
		return e.fail(ctx, res, errors.New(errors.CodeInvalidInput, "invalid app", err))
	}

	ctx, span := e.tracer.Start(ctx, "Engine.Run", trace.WithAttributes(
		attribute.String(telemetry.AttrRunID, runID),
		attribute.String(telemetry.AttrAppID, a.ID),
	))
	defer span.End()

	r := e.newRun(runID, a)
	skip, err := r.restore(ctx)
	if err != nil {
		return e.failSpan(ctx, span, res, err)
	}
	res.Memory = r.mem

	for idx, file := range a.Files {
		n := idx + 1
		if idx < skip {
			continue
		}
		e.emit(ctx, core.ProgressEvent(fmt.Sprintf("Parsing file %d/%d", n, len(a.Files))))

		prog, blocked, err := r.plan(ctx, file)
		res.HydrationFailures = r.hydrationFailures
		if err != nil {
			return e.failSpan(ctx, span, res, err)
		}
		if len(blocked) > 0 {
			r.enter(ctx, StateOAuthRequired, slog.Int("file", n))
			e.emit(ctx, core.OAuthRequiredEvent(blocked))
			e.logger.InfoContext(ctx, "run halted on authorization", slog.Int("file", n), slog.Any("resources", names(blocked)))
			res.Status = StatusOAuthRequired
			res.Resources = blocked
			span.SetAttributes(attribute.String("amethyst.run.status", string(res.Status)))
			return res, nil
		}

		r.mem.AddFile(file.Content, prog.Names())
		value, err := r.executeUnit(ctx, n, prog)
		if err != nil {
			return e.failSpan(ctx, span, res, err)
		}
		res.Result = value

		e.emit(ctx, core.ProgressEvent(fmt.Sprintf("Completed file %d", n)))
		if err := r.checkpoint(ctx); err != nil {
			return e.failSpan(ctx, span, res, err)
		}
	}

	r.enter(ctx, StateDone)
	e.emit(ctx, core.ProgressEvent("App execution completed"))
	res.Status = StatusCompleted
	span.SetAttributes(attribute.String("amethyst.run.status", string(res.Status)))
	return res, nil
}

func (e *Engine) failSpan(ctx context.Context, span trace.Span, res *Result, err error) (*Result, error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return e.fail(ctx, res, err)
}

func (e *Engine) fail(ctx context.Context, res *Result, err error) (*Result, error) {
	e.logger.ErrorContext(ctx, "run failed", slog.String("error", err.Error()), slog.String("code", string(errors.CodeOf(err))))
	e.emit(ctx, core.ProgressEvent("Run failed: "+err.Error()))
	res.Status = StatusFailed
	res.Err = err
	res.Error = err.Error()
	return res, err
}

// restore loads the checkpoint of a previous attempt with the same run id
// and returns the number of files it already completed.
func (r *run) restore(ctx context.Context) (int, error) {
	if r.e.store == nil {
		return 0, nil
	}
	snap, err := r.e.store.Load(ctx, r.id)
	if stderrors.Is(err, memory.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, errors.New(errors.CodeMemoryError, "load checkpoint", err).WithContext("run_id", r.id)
	}
	mem, err := memory.Restore(snap)
	if err != nil {
		return 0, errors.New(errors.CodeMemoryError, "restore checkpoint", err).WithContext("run_id", r.id)
	}
	r.mem = mem
	done := len(snap.Files)
	// Units of completed files stay callable.
	for _, f := range snap.Files {
		if prog, err := syntax.Parse(f.Content); err == nil {
			r.registerUnits(prog)
		}
	}
	if done > 0 {
		r.e.emit(ctx, core.ProgressEvent(fmt.Sprintf("Resuming run after file %d", done)))
	}
	return done, nil
}

func (r *run) checkpoint(ctx context.Context) error {
	if r.e.store == nil {
		return nil
	}
	if err := r.e.store.Save(ctx, r.id, r.mem.Snapshot()); err != nil {
		return errors.New(errors.CodeMemoryError, "save checkpoint", err).WithContext("run_id", r.id)
	}
	return nil
}

// plan parses a file, hydrates the declared resources once per run and
// returns the resources the file mentions that still need authorization.
func (r *run) plan(ctx context.Context, file app.File) (*syntax.Program, []core.Resource, error) {
	r.enter(ctx, StatePlanning)
	prog, err := syntax.Parse(file.Content)
	if err != nil {
		return nil, nil, errors.New(errors.CodeMalformedPlan, "parse code", err)
	}
	r.registerUnits(prog)

	if !r.hydrated {
		if err := r.hydrate(ctx); err != nil {
			return nil, nil, err
		}
		r.hydrated = true
	}

	blocked := r.reg.Filter(func(res core.Resource) bool {
		return res.NeedsOAuth() && mentions(file.Content, res.Name)
	})
	return prog, blocked, nil
}

func (r *run) registerUnits(prog *syntax.Program) {
	for _, u := range prog.Units {
		r.units[u.Name] = u
		r.reg.Register(u.Resource())
	}
}

// hydrate runs hydration and enrichment over the declared resources. It is
// the only phase that writes to the registry after setup.
func (r *run) hydrate(ctx context.Context) error {
	var targets []*core.Resource
	var unresolved []string
	for _, res := range r.reg.Filter(func(res core.Resource) bool { return res.Code == "" }) {
		c := res
		targets = append(targets, &c)
		if c.Provider == core.ProviderExternal && c.ConnectionStatus == core.ConnectionUnknown {
			unresolved = append(unresolved, c.Name)
		}
	}
	if len(targets) == 0 {
		return nil
	}

	if r.e.hydrator != nil {
		report := r.e.hydrator.Hydrate(ctx, targets)
		r.recordFailures(ctx, report.Failed)
	}
	if len(unresolved) > 0 {
		if r.e.enricher == nil {
			return errors.Newf(errors.CodeUnauthorized, "external resources %s need a connect provider", strings.Join(unresolved, ", ")).
				WithContext("resources", unresolved)
		}
		report := r.e.enricher.Enrich(ctx, targets)
		r.recordFailures(ctx, report.Failed)
	}
	if r.e.schemas != nil {
		report := r.e.schemas.Enrich(ctx, targets)
		r.recordFailures(ctx, report.Failed)
	}

	for _, res := range targets {
		r.reg.Register(*res)
	}
	return nil
}

func (r *run) recordFailures(ctx context.Context, failed map[string]error) {
	if len(failed) == 0 {
		return
	}
	if r.hydrationFailures == nil {
		r.hydrationFailures = make(map[string]string)
	}
	keys := make([]string, 0, len(failed))
	for name := range failed {
		keys = append(keys, name)
	}
	sort.Strings(keys)
	for _, name := range keys {
		err := failed[name]
		r.hydrationFailures[name] = err.Error()
		r.e.logger.WarnContext(ctx, "resource hydration failed", slog.String("resource", name), slog.String("error", err.Error()))
		r.e.emit(ctx, core.ProgressEvent(fmt.Sprintf("Hydration failed for %s", name)))
	}
}

// executeUnit runs the main unit of a file as a root task and joins every
// async task still in flight before returning its result.
func (r *run) executeUnit(ctx context.Context, n int, prog *syntax.Program) (any, error) {
	main, _ := prog.Main()
	r.e.emit(ctx, core.ProgressEvent("Executing main: "+main.Name))

	ctx, span := r.e.tracer.Start(ctx, "Engine.Unit", trace.WithAttributes(
		attribute.Int(telemetry.AttrFileIndex, n),
		attribute.String(telemetry.AttrUnit, main.Name),
	))
	defer span.End()

	taskType := core.TaskAgentCall
	if main.Kind == core.ResourceFunction {
		taskType = core.TaskFunctionCall
	}
	root := core.NewTask("", main.Name, taskType, nil)
	if err := r.createTask(ctx, root); err != nil {
		return nil, err
	}
	if err := r.dispatch(ctx, root); err != nil {
		return nil, err
	}
	if err := r.drain(ctx); err != nil {
		return nil, err
	}
	t, _ := r.mem.Get(root.ID)
	return t.Result, nil
}

// drain joins every outstanding handle. Joined tasks may have started
// async children of their own, so it repeats until the table is empty.
func (r *run) drain(ctx context.Context) error {
	for r.pending.len() > 0 {
		hs := r.pending.takeWhere(func(core.Task) bool { return true })
		if err := r.join(ctx, hs); err != nil {
			return err
		}
	}
	return nil
}

// mentions reports whether code refers to a resource name as a whole
// word, ignoring case. '-' and '_' are part of words, as in resource names.
func mentions(code, name string) bool {
	if name == "" {
		return false
	}
	code, name = strings.ToLower(code), strings.ToLower(name)
	for from := 0; from < len(code); {
		i := strings.Index(code[from:], name)
		if i < 0 {
			return false
		}
		start, end := from+i, from+i+len(name)
		before, _ := utf8.DecodeLastRuneInString(code[:start])
		after, _ := utf8.DecodeRuneInString(code[end:])
		if (start == 0 || !isNameRune(before)) && (end == len(code) || !isNameRune(after)) {
			return true
		}
		from = start + 1
	}
	return false
}

func isNameRune(r rune) bool {
	return r == '-' || r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

func names(resources []core.Resource) []string {
	out := make([]string, 0, len(resources))
	for _, r := range resources {
		out = append(out, r.Name)
	}
	return out
}
