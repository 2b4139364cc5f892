// Copyright 2026 © The Amethyst Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jllopis/amethyst/pkg/errors"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.LLM.Provider != "ollama" {
		t.Errorf("expected default provider ollama, got %s", cfg.LLM.Provider)
	}
	if cfg.Engine.CallTimeout != 60*time.Second {
		t.Errorf("call timeout = %v", cfg.Engine.CallTimeout)
	}
	if cfg.Engine.MaxIterations != 50 {
		t.Errorf("max iterations = %d", cfg.Engine.MaxIterations)
	}
	if cfg.Hydration.BaseURL != "http://localhost:9998" {
		t.Errorf("hydration url = %s", cfg.Hydration.BaseURL)
	}
	if cfg.Memory.Store != "none" || cfg.Telemetry.Exporter != "none" {
		t.Errorf("memory/telemetry defaults = %+v %+v", cfg.Memory, cfg.Telemetry)
	}
	if cfg.Connect.Configured() {
		t.Errorf("connect must not be configured by default")
	}
}

func TestLoadFileEnvAndOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "amethyst.yaml")
	content := `
llm:
  provider: "openai"
  model: "gpt-4o-mini"
engine:
  call_timeout: 5s
  max_iterations: 7
memory:
  store: sqlite
  path: /tmp/amethyst.db
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("AMETHYST_LLM_PROVIDER", "anthropic")
	t.Setenv("AMETHYST_HYDRATION_BASE_URL", "http://discovery:9000")
	t.Setenv("AMETHYST_CONNECT_EXTERNAL_USER_ID", "user-7")

	cfg, err := Load(path, "engine.max_iterations=9", "log.level=debug")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.LLM.Provider != "anthropic" {
		t.Errorf("env must override file, got %s", cfg.LLM.Provider)
	}
	if cfg.LLM.Model != "gpt-4o-mini" {
		t.Errorf("model = %s", cfg.LLM.Model)
	}
	if cfg.Engine.CallTimeout != 5*time.Second {
		t.Errorf("call timeout = %v", cfg.Engine.CallTimeout)
	}
	if cfg.Engine.MaxIterations != 9 {
		t.Errorf("override must win, got %d", cfg.Engine.MaxIterations)
	}
	if cfg.Hydration.BaseURL != "http://discovery:9000" {
		t.Errorf("hydration url = %s", cfg.Hydration.BaseURL)
	}
	if cfg.Connect.ExternalUserID != "user-7" {
		t.Errorf("external user = %q", cfg.Connect.ExternalUserID)
	}
	if cfg.Memory.Store != "sqlite" || cfg.Log.Level != "debug" {
		t.Errorf("memory = %+v, log = %+v", cfg.Memory, cfg.Log)
	}
}

func TestServerURLAlias(t *testing.T) {
	t.Setenv("AMETHYST_SERVER_URL", "http://legacy:9998")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Hydration.BaseURL != "http://legacy:9998" {
		t.Errorf("hydration url = %s", cfg.Hydration.BaseURL)
	}
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name      string
		overrides []string
	}{
		{"bad store", []string{"memory.store=redis"}},
		{"bad exporter", []string{"telemetry.exporter=zipkin"}},
		{"otlp without endpoint", []string{"telemetry.exporter=otlp"}},
		{"zero iterations", []string{"engine.max_iterations=0"}},
		{"malformed override", []string{"nokey"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load("", tt.overrides...)
			if !errors.Is(err, errors.CodeInvalidInput) {
				t.Fatalf("expected invalid input, got %v", err)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestEnvKey(t *testing.T) {
	tests := map[string]string{
		"AMETHYST_LLM_API_KEY":         "llm.api_key",
		"AMETHYST_ENGINE_CALL_TIMEOUT": "engine.call_timeout",
		"AMETHYST_SERVER_URL":          "hydration.base_url",
	}
	for in, want := range tests {
		if got := envKey(in); got != want {
			t.Errorf("envKey(%s) = %s, want %s", in, got, want)
		}
	}
}
