// Copyright 2026 © The Amethyst Authors
// SPDX-License-Identifier: Apache-2.0

package core

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TaskType enumerates the task variants the engine can dispatch.
type TaskType string

const (
	TaskToolCall     TaskType = "tool_call"
	TaskAgentCall    TaskType = "agent_call"
	TaskFunctionCall TaskType = "function_call"
	TaskStatement    TaskType = "statement"
	TaskAgentResult  TaskType = "agent_result"
)

// Valid reports whether t is a known task type.
func (t TaskType) Valid() bool {
	switch t {
	case TaskToolCall, TaskAgentCall, TaskFunctionCall, TaskStatement, TaskAgentResult:
		return true
	}
	return false
}

// TaskStatus describes the lifecycle state of a task.
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusFailed    TaskStatus = "failed"
)

// Trace records one interpreter exchange performed on behalf of a task.
type Trace struct {
	Code      string    `json:"code,omitempty"`
	Tasks     []string  `json:"tasks,omitempty"`
	Steps     int       `json:"steps,omitempty"`
	Result    any       `json:"result,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Task is one concrete invocation of a resource.
type Task struct {
	ID           string           `json:"id"`
	ParentTaskID string           `json:"parent_task_id,omitempty"`
	ResourceName string           `json:"resource_name"`
	Type         TaskType         `json:"task_type"`
	Input        []map[string]any `json:"input"`
	IsAsync      bool             `json:"is_async,omitempty"`
	// Statement is the code line executed by a statement task.
	Statement  string     `json:"statement,omitempty"`
	Result     any        `json:"result,omitempty"`
	Status     TaskStatus `json:"status,omitempty"`
	Error      string     `json:"error,omitempty"`
	Traces     []Trace    `json:"traces,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	FinishedAt time.Time  `json:"finished_at,omitempty"`
}

// NewTask creates a pending task with a generated ID.
func NewTask(parentID, resourceName string, taskType TaskType, input []map[string]any) *Task {
	if input == nil {
		input = []map[string]any{}
	}
	return &Task{
		ID:           uuid.NewString(),
		ParentTaskID: parentID,
		ResourceName: resourceName,
		Type:         taskType,
		Input:        input,
		Status:       TaskStatusPending,
		CreatedAt:    time.Now().UTC(),
	}
}

// Resolved reports whether the task result has been folded.
func (t *Task) Resolved() bool {
	return t.Status == TaskStatusCompleted || t.Status == TaskStatusFailed
}

// Descriptor returns the wire shape shared with the interpreter and sinks.
// Traces are only included when withTraces is set.
func (t *Task) Descriptor(withTraces bool) Task {
	out := *t
	out.Input = append([]map[string]any(nil), t.Input...)
	if withTraces {
		out.Traces = append([]Trace(nil), t.Traces...)
	} else {
		out.Traces = nil
	}
	return out
}

// FailureResult renders an error as the textual result folded into a failed
// task so later interpretation can react to it as ordinary context.
func FailureResult(err error) string {
	return fmt.Sprintf("error: %v", err)
}

// StepType enumerates control-flow markers.
type StepType string

const (
	StepAwait StepType = "await"
)

// Step is a control-flow marker naming tasks to synchronize on.
type Step struct {
	Type    StepType `json:"step_type"`
	TaskIDs []string `json:"task_ids"`
}

// Result is the terminal output of a code fragment.
type Result struct {
	TaskID string `json:"task_id,omitempty"`
	Value  any    `json:"result"`
}
