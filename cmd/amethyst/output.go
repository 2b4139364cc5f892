// Copyright 2026 © The Amethyst Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"

	"github.com/jllopis/amethyst/pkg/core"
	"github.com/jllopis/amethyst/pkg/engine"
)

var (
	progressStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#8A8F98"))
	createdStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#5B8DEF"))
	doneStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#3FB950"))
	failedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#F85149"))
	oauthStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#D29922"))
	headerStyle   = lipgloss.NewStyle().Bold(true)
)

// jsonSink writes one JSON object per event.
type jsonSink struct {
	mu  sync.Mutex
	enc *json.Encoder
}

func (s *jsonSink) Emit(_ context.Context, ev core.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.enc.Encode(ev)
}

// prettySink writes one styled line per event.
type prettySink struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *prettySink) Emit(_ context.Context, ev core.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintln(s.w, renderEvent(ev))
}

func newEventSink(format string, w io.Writer) core.Sink {
	if format == "json" {
		return &jsonSink{enc: json.NewEncoder(w)}
	}
	return &prettySink{w: w}
}

func renderEvent(ev core.Event) string {
	switch ev.Type {
	case core.EventTaskCreated:
		if ev.Task == nil {
			return createdStyle.Render("+ task")
		}
		return createdStyle.Render(fmt.Sprintf("+ %s %s (%s)", ev.Task.Type, ev.Task.ResourceName, shortID(ev.Task.ID)))
	case core.EventTaskUpdated:
		t := ev.Task
		if t == nil {
			return progressStyle.Render("~ task")
		}
		switch t.Status {
		case core.TaskStatusCompleted:
			return doneStyle.Render(fmt.Sprintf("✓ %s (%s): %s", t.ResourceName, shortID(t.ID), summarize(t.Result)))
		case core.TaskStatusFailed:
			return failedStyle.Render(fmt.Sprintf("✗ %s (%s): %s", t.ResourceName, shortID(t.ID), summarize(t.Result)))
		}
		return progressStyle.Render(fmt.Sprintf("~ %s (%s) %s", t.ResourceName, shortID(t.ID), t.Status))
	case core.EventOAuthRequired:
		parts := make([]string, 0, len(ev.Resources))
		for _, r := range ev.Resources {
			if r.AuthURL != "" {
				parts = append(parts, fmt.Sprintf("%s <%s>", r.Name, r.AuthURL))
			} else {
				parts = append(parts, r.Name)
			}
		}
		return oauthStyle.Render("! authorization required: " + strings.Join(parts, ", "))
	}
	if strings.HasPrefix(ev.Message, "Run failed") {
		return failedStyle.Render(ev.Message)
	}
	return progressStyle.Render("· " + ev.Message)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func summarize(v any) string {
	var s string
	switch x := v.(type) {
	case nil:
		return "<nil>"
	case string:
		s = x
	default:
		data, err := json.Marshal(x)
		if err != nil {
			s = fmt.Sprint(x)
		} else {
			s = string(data)
		}
	}
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) > 120 {
		s = s[:117] + "..."
	}
	return s
}

func printJSON(w io.Writer, v any) {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func printResult(w io.Writer, res *engine.Result, format string) {
	if format == "json" {
		printJSON(w, res)
		return
	}
	fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("run %s: %s", res.RunID, res.Status)))
	for name, reason := range res.HydrationFailures {
		fmt.Fprintln(w, failedStyle.Render(fmt.Sprintf("  hydration failed for %s: %s", name, reason)))
	}
	switch res.Status {
	case engine.StatusOAuthRequired:
		for _, r := range res.Resources {
			fmt.Fprintf(w, "  %s %s\n", r.Name, r.AuthURL)
		}
	case engine.StatusFailed:
		fmt.Fprintln(w, failedStyle.Render("  "+res.Error))
	default:
		fmt.Fprintf(w, "  result: %s\n", summarize(res.Result))
	}
}

func printPreview(w io.Writer, p *engine.Preview, format string) {
	if format == "json" {
		printJSON(w, p)
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "FILE\tMAIN\tUNITS\tNEEDS OAUTH")
	for _, f := range p.Files {
		units := make([]string, 0, len(f.Units))
		for _, u := range f.Units {
			units = append(units, u.Name)
		}
		blocked := make([]string, 0, len(f.NeedsOAuth))
		for _, r := range f.NeedsOAuth {
			blocked = append(blocked, r.Name)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", f.Index, f.Main, strings.Join(units, ","), strings.Join(blocked, ","))
	}
	_ = tw.Flush()

	fmt.Fprintln(w)
	tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RESOURCE\tKIND\tPROVIDER\tSTATUS")
	for _, r := range p.Resources {
		status := string(r.ConnectionStatus)
		if status == "" {
			status = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.Name, r.Kind, r.Provider, status)
	}
	_ = tw.Flush()
	for name, reason := range p.HydrationFailures {
		fmt.Fprintln(w, failedStyle.Render(fmt.Sprintf("hydration failed for %s: %s", name, reason)))
	}
}
