// Copyright 2026 © The Amethyst Authors
// SPDX-License-Identifier: Apache-2.0

// Package app describes an application: ordered code files plus the
// resources they may call.
package app

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jllopis/amethyst/pkg/core"
	"gopkg.in/yaml.v3"
)

// File is one unit of workflow code.
type File struct {
	Name    string `json:"name,omitempty" yaml:"name,omitempty"`
	Content string `json:"content" yaml:"content"`
}

// App is the input of a run.
type App struct {
	ID          string          `json:"id,omitempty" yaml:"id,omitempty"`
	WorkspaceID string          `json:"workspace_id,omitempty" yaml:"workspace_id,omitempty"`
	Files       []File          `json:"files" yaml:"files"`
	Resources   []core.Resource `json:"resources,omitempty" yaml:"resources,omitempty"`
}

// Validate checks the manifest is runnable.
func (a *App) Validate() error {
	if a == nil {
		return fmt.Errorf("app is nil")
	}
	if len(a.Files) == 0 {
		return fmt.Errorf("app has no files")
	}
	for i, f := range a.Files {
		if strings.TrimSpace(f.Content) == "" {
			return fmt.Errorf("file %d is empty", i+1)
		}
	}
	seen := make(map[string]struct{}, len(a.Resources))
	for _, r := range a.Resources {
		if err := r.Validate(); err != nil {
			return err
		}
		if _, dup := seen[r.Name]; dup {
			return fmt.Errorf("resource %q declared twice", r.Name)
		}
		seen[r.Name] = struct{}{}
	}
	return nil
}

// Load reads an app manifest from a YAML or JSON file. Files whose content
// is empty but whose name points to an existing file next to the manifest
// are read from disk.
func Load(path string) (*App, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("app path is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var a *App
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		a, err = ParseJSON(data)
	case ".yaml", ".yml":
		a, err = ParseYAML(data)
	default:
		a, err = parseAuto(data)
	}
	if err != nil {
		return nil, err
	}
	if err := inlineFiles(a, filepath.Dir(path)); err != nil {
		return nil, err
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}
	return a, nil
}

// ParseJSON decodes a manifest from JSON.
func ParseJSON(data []byte) (*App, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty JSON payload")
	}
	var a App
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("parse json app: %w", err)
	}
	return &a, nil
}

// ParseYAML decodes a manifest from YAML.
func ParseYAML(data []byte) (*App, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty YAML payload")
	}
	var a App
	if err := yaml.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("parse yaml app: %w", err)
	}
	return &a, nil
}

func parseAuto(data []byte) (*App, error) {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "{") {
		if a, err := ParseJSON(data); err == nil {
			return a, nil
		}
	}
	if a, err := ParseYAML(data); err == nil {
		return a, nil
	}
	return nil, fmt.Errorf("unsupported app format")
}

func inlineFiles(a *App, dir string) error {
	for i := range a.Files {
		f := &a.Files[i]
		if strings.TrimSpace(f.Content) != "" || f.Name == "" {
			continue
		}
		p := f.Name
		if !filepath.IsAbs(p) {
			p = filepath.Join(dir, p)
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return fmt.Errorf("read file %q: %w", f.Name, err)
		}
		f.Content = string(data)
	}
	return nil
}
