// Copyright 2026 © The Amethyst Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads runtime settings: defaults, then an optional YAML
// file, then AMETHYST_* environment variables, then explicit overrides.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/jllopis/amethyst/pkg/errors"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "AMETHYST_"

type Config struct {
	Log       LogConfig       `koanf:"log"`
	LLM       LLMConfig       `koanf:"llm"`
	Engine    EngineConfig    `koanf:"engine"`
	Hydration HydrationConfig `koanf:"hydration"`
	Connect   ConnectConfig   `koanf:"connect"`
	MCP       MCPConfig       `koanf:"mcp"`
	Memory    MemoryConfig    `koanf:"memory"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // json, text
}

type LLMConfig struct {
	Provider    string  `koanf:"provider"` // ollama, openai, anthropic, gemini, mock
	Model       string  `koanf:"model"`
	BaseURL     string  `koanf:"base_url"`
	APIKey      string  `koanf:"api_key"`
	Temperature float64 `koanf:"temperature"`
}

type EngineConfig struct {
	// CallTimeout bounds a single resource call.
	CallTimeout time.Duration `koanf:"call_timeout"`
	// MaxIterations bounds interpretation cycles per composite task.
	MaxIterations int `koanf:"max_iterations"`
	// ContextWindow is the number of resolved tasks shown to the interpreter.
	ContextWindow int `koanf:"context_window"`
}

type HydrationConfig struct {
	BaseURL string `koanf:"base_url"`
	// Retries is the number of extra attempts on transient failures.
	Retries int `koanf:"retries"`
}

// ConnectConfig holds the connect-account provider credentials used to
// enrich external resources.
type ConnectConfig struct {
	BaseURL        string `koanf:"base_url"`
	ProjectID      string `koanf:"project_id"`
	Environment    string `koanf:"environment"`
	ExternalUserID string `koanf:"external_user_id"`
	Token          string `koanf:"token"`
}

// Configured reports whether any credential was provided.
func (c ConnectConfig) Configured() bool {
	return c.ProjectID != "" || c.Token != "" || c.ExternalUserID != ""
}

type MCPConfig struct {
	// URL is the MCP server for external resources without their own url.
	URL     string        `koanf:"url"`
	Timeout time.Duration `koanf:"timeout"`
}

type MemoryConfig struct {
	Store string `koanf:"store"` // none, file, sqlite
	Path  string `koanf:"path"`
}

type TelemetryConfig struct {
	Exporter     string `koanf:"exporter"` // none, stdout, otlp
	OTLPEndpoint string `koanf:"otlp_endpoint"`
	OTLPInsecure bool   `koanf:"otlp_insecure"`
}

func defaults(k *koanf.Koanf) {
	k.Set("log.level", "info")
	k.Set("log.format", "text")

	k.Set("llm.provider", "ollama")
	k.Set("llm.model", "qwen2.5-coder:7b-instruct-q5_K_M")
	k.Set("llm.base_url", "http://localhost:11434")

	k.Set("engine.call_timeout", "60s")
	k.Set("engine.max_iterations", 50)
	k.Set("engine.context_window", 50)

	k.Set("hydration.base_url", "http://localhost:9998")
	k.Set("hydration.retries", 2)

	k.Set("connect.base_url", "https://api.pipedream.com")
	k.Set("connect.environment", "development")

	k.Set("mcp.timeout", "30s")

	k.Set("memory.store", "none")
	k.Set("memory.path", ".amethyst")

	k.Set("telemetry.exporter", "none")
}

// envKey maps AMETHYST_HYDRATION_BASE_URL to hydration.base_url. Only the
// first underscore separates the section. AMETHYST_SERVER_URL is kept as an
// alias of the discovery server url.
func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	if key == "server_url" {
		return "hydration.base_url"
	}
	return strings.Replace(key, "_", ".", 1)
}

// Load reads the configuration. path may be empty. overrides are
// "key=value" pairs applied last, as given on the command line.
func Load(path string, overrides ...string) (*Config, error) {
	k := koanf.New(".")
	defaults(k)

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, errors.New(errors.CodeInvalidInput, "load config file", err).WithContext("path", path)
		}
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, errors.New(errors.CodeInvalidInput, "load config env", err)
	}
	for _, o := range overrides {
		key, value, ok := strings.Cut(o, "=")
		if !ok || strings.TrimSpace(key) == "" {
			return nil, errors.Newf(errors.CodeInvalidInput, "invalid override %q, want key=value", o)
		}
		k.Set(strings.TrimSpace(key), value)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, errors.New(errors.CodeInvalidInput, "decode config", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks enumerations and bounds.
func (c *Config) Validate() error {
	var problems []string
	switch c.Memory.Store {
	case "none", "file", "sqlite":
	default:
		problems = append(problems, fmt.Sprintf("memory.store %q must be none, file or sqlite", c.Memory.Store))
	}
	switch c.Telemetry.Exporter {
	case "none", "stdout", "otlp":
	default:
		problems = append(problems, fmt.Sprintf("telemetry.exporter %q must be none, stdout or otlp", c.Telemetry.Exporter))
	}
	if c.Telemetry.Exporter == "otlp" && c.Telemetry.OTLPEndpoint == "" {
		problems = append(problems, "telemetry.otlp_endpoint is required for the otlp exporter")
	}
	if c.Engine.MaxIterations < 1 {
		problems = append(problems, "engine.max_iterations must be positive")
	}
	if c.Engine.CallTimeout <= 0 {
		problems = append(problems, "engine.call_timeout must be positive")
	}
	if c.Hydration.Retries < 0 {
		problems = append(problems, "hydration.retries must not be negative")
	}
	if len(problems) > 0 {
		return errors.Newf(errors.CodeInvalidInput, "invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}
