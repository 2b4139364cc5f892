// Copyright 2026 © The Amethyst Authors
// SPDX-License-Identifier: Apache-2.0

package registry

import (
	"testing"

	"github.com/jllopis/amethyst/pkg/core"
	"github.com/jllopis/amethyst/pkg/errors"
)

func TestRegisterLastWriteWins(t *testing.T) {
	reg := New()
	reg.Register(core.Resource{Kind: core.ResourceTool, Name: "weather", URL: "http://old", Parameters: map[string]any{"a": 1}})
	reg.Register(core.Resource{Kind: core.ResourceAgent, Name: "weather", URL: "http://new"})

	got, err := reg.Get("weather")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Kind != core.ResourceAgent || got.URL != "http://new" {
		t.Fatalf("expected overwritten definition, got %+v", got)
	}
	if got.Parameters != nil {
		t.Fatalf("expected earlier parameters to be discarded, got %v", got.Parameters)
	}
	if reg.Len() != 1 {
		t.Fatalf("expected a single entry, got %d", reg.Len())
	}
}

func TestGetMissing(t *testing.T) {
	_, err := New().Get("slack")
	if !errors.Is(err, errors.CodeResourceNotFound) {
		t.Fatalf("expected RESOURCE_NOT_FOUND, got %v", err)
	}
}

func TestListIsRestartableAndOrdered(t *testing.T) {
	reg := New(
		core.Resource{Kind: core.ResourceTool, Name: "b"},
		core.Resource{Kind: core.ResourceTool, Name: "a"},
		core.Resource{Kind: core.ResourceTool, Name: "c"},
	)
	seq := reg.List()
	for pass := 0; pass < 2; pass++ {
		var names []string
		for res := range seq {
			names = append(names, res.Name)
		}
		if len(names) != 3 || names[0] != "a" || names[1] != "b" || names[2] != "c" {
			t.Fatalf("pass %d: unexpected names %v", pass, names)
		}
	}
}

func TestListStopsEarly(t *testing.T) {
	reg := New(core.Resource{Name: "a"}, core.Resource{Name: "b"})
	count := 0
	for range reg.List() {
		count++
		break
	}
	if count != 1 {
		t.Fatalf("expected early stop, got %d", count)
	}
}

func TestListYieldsCopies(t *testing.T) {
	reg := New(core.Resource{Kind: core.ResourceTool, Name: "a", Parameters: map[string]any{"k": "v"}})
	for res := range reg.List() {
		res.Parameters["k"] = "mutated"
	}
	got, _ := reg.Get("a")
	if got.Parameters["k"] != "v" {
		t.Fatalf("registry entry was mutated through List")
	}
}

func TestFilter(t *testing.T) {
	reg := New(
		core.Resource{Kind: core.ResourceTool, Name: "gmail", Provider: core.ProviderExternal},
		core.Resource{Kind: core.ResourceTool, Name: "weather", Provider: core.ProviderAmethyst},
	)
	ext := reg.Filter(func(r core.Resource) bool { return r.Provider == core.ProviderExternal })
	if len(ext) != 1 || ext[0].Name != "gmail" {
		t.Fatalf("unexpected filter result %+v", ext)
	}
}
