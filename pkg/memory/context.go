// Copyright 2026 © The Amethyst Authors
// SPDX-License-Identifier: Apache-2.0

package memory

import "github.com/jllopis/amethyst/pkg/core"

// TaskSummary is the view of a resolved task shown to the interpreter.
type TaskSummary struct {
	ID           string        `json:"id"`
	ParentTaskID string        `json:"parent_task_id,omitempty"`
	ResourceName string        `json:"resource_name,omitempty"`
	Type         core.TaskType `json:"task_type"`
	Result       any           `json:"result"`
	Failed       bool          `json:"failed,omitempty"`
}

// Context is the slice of memory handed to the interpreter.
type Context struct {
	Tasks []TaskSummary `json:"tasks"`
	Steps []core.Step   `json:"steps,omitempty"`
	Files []File        `json:"files,omitempty"`
}

// Empty reports whether the context carries no task results.
func (c Context) Empty() bool {
	return len(c.Tasks) == 0
}

// Context returns the resolved tasks visible from taskID: children of the
// task itself and of each of its ancestors. Only the most recent limit
// entries are kept when limit is positive. An empty taskID sees every
// resolved task.
func (m *Memory) Context(taskID string, limit int) Context {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var scope map[string]struct{}
	if taskID != "" {
		scope = make(map[string]struct{})
		for id := taskID; id != ""; {
			if _, seen := scope[id]; seen {
				break
			}
			scope[id] = struct{}{}
			t, ok := m.tasks[id]
			if !ok {
				break
			}
			id = t.ParentTaskID
		}
	}

	var tasks []TaskSummary
	for _, id := range m.order {
		t := m.tasks[id]
		if !t.Resolved() {
			continue
		}
		if scope != nil {
			if _, ok := scope[t.ParentTaskID]; !ok {
				continue
			}
		}
		tasks = append(tasks, TaskSummary{
			ID:           t.ID,
			ParentTaskID: t.ParentTaskID,
			ResourceName: t.ResourceName,
			Type:         t.Type,
			Result:       t.Result,
			Failed:       t.Status == core.TaskStatusFailed,
		})
	}
	if limit > 0 && len(tasks) > limit {
		tasks = tasks[len(tasks)-limit:]
	}

	return Context{
		Tasks: tasks,
		Steps: append([]core.Step(nil), m.steps...),
		Files: append([]File(nil), m.files...),
	}
}

// Snapshot is the serializable form of a Memory.
type Snapshot struct {
	Tasks []core.Task `json:"tasks"`
	Steps []core.Step `json:"steps"`
	Files []File      `json:"files"`
}

// Snapshot captures the current memory state.
func (m *Memory) Snapshot() Snapshot {
	return Snapshot{
		Tasks: m.Tasks(),
		Steps: m.Steps(),
		Files: m.Files(),
	}
}

// Restore rebuilds a Memory from a snapshot.
func Restore(s Snapshot) (*Memory, error) {
	m := New()
	for i := range s.Tasks {
		if err := m.AddTask(&s.Tasks[i]); err != nil {
			return nil, err
		}
	}
	m.steps = append(m.steps, s.Steps...)
	m.files = append(m.files, s.Files...)
	return m, nil
}
