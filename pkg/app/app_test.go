// Copyright 2026 © The Amethyst Authors
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jllopis/amethyst/pkg/core"
)

const manifestYAML = `
id: day-planner
workspace_id: ws-1
files:
  - name: planner.amt
resources:
  - type: tool
    name: get weather
    provider: amethyst
    url: http://localhost:9998/tools/get_weather
  - type: tool
    name: gmail
    provider: external
    key: gmail
`

func TestLoadYAMLInlinesFiles(t *testing.T) {
	dir := t.TempDir()
	code := "main agent day planner\nuse get weather to check weather\nend agent\n"
	if err := os.WriteFile(filepath.Join(dir, "planner.amt"), []byte(code), 0o600); err != nil {
		t.Fatalf("write code: %v", err)
	}
	path := filepath.Join(dir, "app.yaml")
	if err := os.WriteFile(path, []byte(manifestYAML), 0o600); err != nil {
		t.Fatalf("write manifest: %v", err)
	}

	a, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if a.ID != "day-planner" || a.WorkspaceID != "ws-1" {
		t.Fatalf("unexpected ids %+v", a)
	}
	if a.Files[0].Content != code {
		t.Fatalf("expected file content to be inlined, got %q", a.Files[0].Content)
	}
	if len(a.Resources) != 2 || a.Resources[1].Provider != core.ProviderExternal || a.Resources[1].Key != "gmail" {
		t.Fatalf("unexpected resources %+v", a.Resources)
	}
}

func TestLoadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.json")
	payload := `{"files":[{"content":"agent a\nend agent"}],"resources":[{"type":"agent","name":"todoist","provider":"amethyst","url":"http://a"}]}`
	if err := os.WriteFile(path, []byte(payload), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	a, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if a.Resources[0].Kind != core.ResourceAgent {
		t.Fatalf("unexpected kind %q", a.Resources[0].Kind)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		app  App
	}{
		{"no files", App{}},
		{"empty file", App{Files: []File{{Content: "  "}}}},
		{"bad resource", App{Files: []File{{Content: "x"}}, Resources: []core.Resource{{Name: "x", Kind: "widget"}}}},
		{"duplicate resource", App{Files: []File{{Content: "x"}}, Resources: []core.Resource{
			{Name: "x", Kind: core.ResourceTool}, {Name: "x", Kind: core.ResourceTool},
		}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.app.Validate(); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}
