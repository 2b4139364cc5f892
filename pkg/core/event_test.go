// Copyright 2026 © The Amethyst Authors
// SPDX-License-Identifier: Apache-2.0

package core

import (
	"context"
	"testing"
)

func TestMultiSinkPreservesOrder(t *testing.T) {
	var a, b RecordingSink
	sink := MultiSink{&a, nil, &b}

	sink.Emit(context.Background(), ProgressEvent("one"))
	sink.Emit(context.Background(), ProgressEvent("two"))

	for _, rec := range []*RecordingSink{&a, &b} {
		events := rec.Events()
		if len(events) != 2 {
			t.Fatalf("expected 2 events, got %d", len(events))
		}
		if events[0].Message != "one" || events[1].Message != "two" {
			t.Fatalf("unexpected order: %+v", events)
		}
	}
}

func TestChannelSinkStopsOnCancel(t *testing.T) {
	sink := NewChannelSink(1)
	sink.Emit(context.Background(), ProgressEvent("buffered"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sink.Emit(ctx, ProgressEvent("dropped"))

	if got := (<-sink.C).Message; got != "buffered" {
		t.Fatalf("expected buffered event, got %q", got)
	}
	select {
	case ev := <-sink.C:
		t.Fatalf("unexpected event %+v", ev)
	default:
	}
}

func TestTaskEventsDetachTask(t *testing.T) {
	task := NewTask("", "weather", TaskToolCall, nil)
	ev := TaskCreatedEvent(task)
	task.Result = "42"
	if ev.Task.Result != nil {
		t.Fatalf("event must carry a snapshot of the task")
	}
	if ev.Type != EventTaskCreated {
		t.Fatalf("unexpected type %s", ev.Type)
	}
}

func TestRecordingSinkOfType(t *testing.T) {
	var rec RecordingSink
	rec.Emit(context.Background(), ProgressEvent("p"))
	rec.Emit(context.Background(), OAuthRequiredEvent([]Resource{{Name: "gmail"}}))
	if got := rec.OfType(EventOAuthRequired); len(got) != 1 || got[0].Resources[0].Name != "gmail" {
		t.Fatalf("unexpected oauth events: %+v", got)
	}
}
