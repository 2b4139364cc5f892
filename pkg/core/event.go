// Copyright 2026 © The Amethyst Authors
// SPDX-License-Identifier: Apache-2.0

package core

import (
	"context"
	"sync"
	"time"
)

// EventType identifies a progress event emitted by the engine.
type EventType string

const (
	EventProgress      EventType = "progress"
	EventTaskCreated   EventType = "task_created"
	EventTaskUpdated   EventType = "task_updated"
	EventOAuthRequired EventType = "oauth_required"
)

// Event is one entry of the progress stream.
type Event struct {
	Type      EventType  `json:"type"`
	Message   string     `json:"message,omitempty"`
	Task      *Task      `json:"task,omitempty"`
	Resources []Resource `json:"resources,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
}

// Sink receives progress events. Implementations must be safe for concurrent
// use when shared by several runs.
type Sink interface {
	Emit(ctx context.Context, event Event)
}

// NoopSink discards every event.
type NoopSink struct{}

// Emit implements Sink.
func (NoopSink) Emit(_ context.Context, _ Event) {}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, event Event)

// Emit implements Sink.
func (f SinkFunc) Emit(ctx context.Context, event Event) { f(ctx, event) }

// MultiSink fans events out to several sinks in order.
type MultiSink []Sink

// Emit implements Sink.
func (m MultiSink) Emit(ctx context.Context, event Event) {
	for _, s := range m {
		if s != nil {
			s.Emit(ctx, event)
		}
	}
}

// ChannelSink forwards events to a channel. Emit blocks while the channel is
// full so no event is dropped or reordered; it gives up when ctx is done.
type ChannelSink struct {
	C chan Event
}

// NewChannelSink creates a sink with the given buffer size.
func NewChannelSink(buffer int) *ChannelSink {
	return &ChannelSink{C: make(chan Event, buffer)}
}

// Emit implements Sink.
func (s *ChannelSink) Emit(ctx context.Context, event Event) {
	select {
	case s.C <- event:
	case <-ctx.Done():
	}
}

// RecordingSink keeps every event in memory.
type RecordingSink struct {
	mu     sync.Mutex
	events []Event
}

// Emit implements Sink.
func (s *RecordingSink) Emit(_ context.Context, event Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

// Events returns a copy of the recorded events.
func (s *RecordingSink) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.events...)
}

// OfType returns the recorded events of the given type.
func (s *RecordingSink) OfType(eventType EventType) []Event {
	var out []Event
	for _, ev := range s.Events() {
		if ev.Type == eventType {
			out = append(out, ev)
		}
	}
	return out
}

// ProgressEvent builds a progress event.
func ProgressEvent(message string) Event {
	return Event{Type: EventProgress, Message: message, Timestamp: time.Now().UTC()}
}

// TaskCreatedEvent builds a task_created event with a detached task copy.
func TaskCreatedEvent(task *Task) Event {
	d := task.Descriptor(false)
	return Event{Type: EventTaskCreated, Task: &d, Timestamp: time.Now().UTC()}
}

// TaskUpdatedEvent builds a task_updated event, optionally with traces.
func TaskUpdatedEvent(task *Task, withTraces bool) Event {
	d := task.Descriptor(withTraces)
	return Event{Type: EventTaskUpdated, Task: &d, Timestamp: time.Now().UTC()}
}

// OAuthRequiredEvent builds an oauth_required event.
func OAuthRequiredEvent(resources []Resource) Event {
	return Event{Type: EventOAuthRequired, Resources: resources, Timestamp: time.Now().UTC()}
}
