// Copyright 2026 © The Amethyst Authors
// SPDX-License-Identifier: Apache-2.0

package core

import (
	"errors"
	"testing"
)

func TestNewTask(t *testing.T) {
	task := NewTask("parent", "weather", TaskToolCall, nil)
	if task.ID == "" {
		t.Fatalf("expected generated id")
	}
	if task.Status != TaskStatusPending {
		t.Fatalf("expected pending status, got %s", task.Status)
	}
	if task.Input == nil {
		t.Fatalf("expected empty input list, got nil")
	}
	if task.Resolved() {
		t.Fatalf("new task must not be resolved")
	}
}

func TestTaskDescriptorDropsTraces(t *testing.T) {
	task := NewTask("", "planner", TaskAgentCall, []map[string]any{{"prompt": "hi"}})
	task.Traces = append(task.Traces, Trace{Code: "use x"})

	plain := task.Descriptor(false)
	if plain.Traces != nil {
		t.Fatalf("expected traces to be omitted")
	}
	full := task.Descriptor(true)
	if len(full.Traces) != 1 {
		t.Fatalf("expected traces to be included")
	}
	full.Input[0] = map[string]any{"prompt": "changed"}
	if task.Input[0]["prompt"] != "hi" {
		t.Fatalf("descriptor must not alias the input slice")
	}
}

func TestTaskTypeValid(t *testing.T) {
	for _, tt := range []TaskType{TaskToolCall, TaskAgentCall, TaskFunctionCall, TaskStatement, TaskAgentResult} {
		if !tt.Valid() {
			t.Errorf("expected %s to be valid", tt)
		}
	}
	if TaskType("loop").Valid() {
		t.Errorf("unexpected valid task type")
	}
}

func TestResourceComposite(t *testing.T) {
	tests := []struct {
		name string
		res  Resource
		want bool
	}{
		{"tool", Resource{Kind: ResourceTool, Name: "weather"}, false},
		{"remote agent", Resource{Kind: ResourceAgent, Name: "todoist", URL: "http://a"}, false},
		{"code agent", Resource{Kind: ResourceAgent, Name: "planner", Code: "use weather"}, true},
		{"function", Resource{Kind: ResourceFunction, Name: "summarize-all"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.res.Composite(); got != tt.want {
				t.Fatalf("Composite() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestResourceValidateAndClone(t *testing.T) {
	if err := (Resource{Kind: ResourceTool}).Validate(); err == nil {
		t.Fatalf("expected missing name error")
	}
	if err := (Resource{Name: "x", Kind: "widget"}).Validate(); err == nil {
		t.Fatalf("expected unknown kind error")
	}
	orig := Resource{Kind: ResourceTool, Name: "x", Parameters: map[string]any{"type": "object"}}
	clone := orig.Clone()
	clone.Parameters["type"] = "array"
	if orig.Parameters["type"] != "object" {
		t.Fatalf("clone must not share parameters")
	}
}

func TestFailureResult(t *testing.T) {
	if got := FailureResult(errors.New("boom")); got != "error: boom" {
		t.Fatalf("unexpected failure text %q", got)
	}
}
