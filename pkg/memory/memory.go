// Copyright 2026 © The Amethyst Authors
// SPDX-License-Identifier: Apache-2.0

// Package memory holds the run-scoped, append-only record of tasks, steps
// and code fragments that is fed back to the interpreter as context.
package memory

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jllopis/amethyst/pkg/core"
	"github.com/jllopis/amethyst/pkg/errors"
)

// File is a code fragment processed during the run.
type File struct {
	Index   int      `json:"index"`
	Content string   `json:"content"`
	Units   []string `json:"units,omitempty"`
}

// Memory is the run state. Tasks and steps are only ever added; a task's
// result is written at most once. All methods are safe for concurrent use.
type Memory struct {
	mu    sync.RWMutex
	tasks map[string]*core.Task
	order []string
	steps []core.Step
	files []File
}

// New creates an empty memory.
func New() *Memory {
	return &Memory{tasks: make(map[string]*core.Task)}
}

// AddTask inserts a task. Empty or duplicate ids are rejected.
func (m *Memory) AddTask(task *core.Task) error {
	if task == nil || task.ID == "" {
		return errors.Newf(errors.CodeMalformedPlan, "task id is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tasks[task.ID]; ok {
		return errors.Newf(errors.CodeMalformedPlan, "duplicate task id %q", task.ID).
			WithContext("task_id", task.ID)
	}
	m.insert(task)
	return nil
}

// AddTaskUnder inserts a task whose id was chosen by the interpreter. A
// taken id is re-keyed as "<scope>/<id>", with a "~n" suffix while that
// is taken too. task.ID holds the stored id on return.
func (m *Memory) AddTaskUnder(task *core.Task, scope string) error {
	if task == nil || task.ID == "" {
		return errors.Newf(errors.CodeMalformedPlan, "task id is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, taken := m.tasks[task.ID]; taken {
		base := scope + "/" + task.ID
		id := base
		for n := 2; ; n++ {
			if _, taken := m.tasks[id]; !taken {
				break
			}
			id = fmt.Sprintf("%s~%d", base, n)
		}
		task.ID = id
	}
	m.insert(task)
	return nil
}

func (m *Memory) insert(task *core.Task) {
	stored := task.Descriptor(true)
	if stored.Status == "" {
		stored.Status = core.TaskStatusPending
	}
	m.tasks[task.ID] = &stored
	m.order = append(m.order, task.ID)
}

// Get returns a copy of the task with the given id.
func (m *Memory) Get(id string) (core.Task, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	task, ok := m.tasks[id]
	if !ok {
		return core.Task{}, false
	}
	return task.Descriptor(true), true
}

// Has reports whether a task with id exists.
func (m *Memory) Has(id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.tasks[id]
	return ok
}

// Start marks a task as running.
func (m *Memory) Start(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	task, ok := m.tasks[id]
	if !ok {
		return unknownTask(id)
	}
	if !task.Resolved() {
		task.Status = core.TaskStatusRunning
	}
	return nil
}

// AppendTrace records an interpreter exchange on a task.
func (m *Memory) AppendTrace(id string, trace core.Trace) (core.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	task, ok := m.tasks[id]
	if !ok {
		return core.Task{}, unknownTask(id)
	}
	if trace.Timestamp.IsZero() {
		trace.Timestamp = time.Now().UTC()
	}
	task.Traces = append(task.Traces, trace)
	return task.Descriptor(true), nil
}

// Resolve folds a result into a task. A non-nil cause marks the task failed
// and stores the failure description as its result. Resolving the same task
// twice is an error.
func (m *Memory) Resolve(id string, result any, cause error) (core.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	task, ok := m.tasks[id]
	if !ok {
		return core.Task{}, unknownTask(id)
	}
	if task.Resolved() {
		return core.Task{}, errors.Newf(errors.CodeInternal, "task %q already resolved", id).
			WithContext("task_id", id)
	}
	if cause != nil {
		task.Status = core.TaskStatusFailed
		task.Error = cause.Error()
		task.Result = core.FailureResult(cause)
	} else {
		task.Status = core.TaskStatusCompleted
		task.Result = result
	}
	task.FinishedAt = time.Now().UTC()
	return task.Descriptor(true), nil
}

// AddStep records a processed control-flow step.
func (m *Memory) AddStep(step core.Step) {
	m.mu.Lock()
	defer m.mu.Unlock()
	step.TaskIDs = append([]string(nil), step.TaskIDs...)
	m.steps = append(m.steps, step)
}

// AddFile records a code fragment and returns its index.
func (m *Memory) AddFile(content string, units []string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx := len(m.files)
	m.files = append(m.files, File{Index: idx, Content: content, Units: append([]string(nil), units...)})
	return idx
}

// Tasks returns every task in insertion order.
func (m *Memory) Tasks() []core.Task {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]core.Task, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.tasks[id].Descriptor(true))
	}
	return out
}

// Children returns the direct children of parentID in insertion order.
func (m *Memory) Children(parentID string) []core.Task {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []core.Task
	for _, id := range m.order {
		if t := m.tasks[id]; t.ParentTaskID == parentID {
			out = append(out, t.Descriptor(false))
		}
	}
	return out
}

// Steps returns the processed steps in order.
func (m *Memory) Steps() []core.Step {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]core.Step(nil), m.steps...)
}

// Files returns the recorded code fragments in order.
func (m *Memory) Files() []File {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]File(nil), m.files...)
}

// Len returns the number of tasks.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.order)
}

// Summary lists every resolved task as "- resource: result".
func (m *Memory) Summary() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var lines []string
	for _, id := range m.order {
		t := m.tasks[id]
		if !t.Resolved() {
			continue
		}
		name := t.ResourceName
		if name == "" {
			name = t.ID
		}
		lines = append(lines, fmt.Sprintf("- %s: %v", name, t.Result))
	}
	return strings.Join(lines, "\n")
}

func unknownTask(id string) error {
	return errors.Newf(errors.CodeInternal, "task %q not found in memory", id).WithContext("task_id", id)
}
