// Copyright 2026 © The Amethyst Authors
// SPDX-License-Identifier: Apache-2.0

// Package hydrate enriches resource definitions before a run: Amethyst
// tools get their parameter schema, Amethyst agents their skills, and
// external resources their connection status.
//
// Hydration is best-effort. A resource that cannot be hydrated is reported
// and left as is; invoking it later fails on its own.
package hydrate

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/jllopis/amethyst/pkg/core"
	"github.com/jllopis/amethyst/pkg/errors"
	"github.com/jllopis/amethyst/pkg/resilience"
)

// DefaultBaseURL is the discovery server used when none is configured.
const DefaultBaseURL = "http://localhost:9998"

// AgentCardPath is the well-known card location under an agent prefix.
const AgentCardPath = "/.well-known/agent.json"

// Report lists the outcome of a hydration or enrichment pass.
type Report struct {
	Hydrated []string
	Failed   map[string]error
}

// OK reports whether every resource was processed.
func (r Report) OK() bool {
	return len(r.Failed) == 0
}

// FailedNames returns the names of failed resources, sorted.
func (r Report) FailedNames() []string {
	names := make([]string, 0, len(r.Failed))
	for name := range r.Failed {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Merge combines two reports.
func (r Report) Merge(other Report) Report {
	out := Report{Hydrated: append(append([]string(nil), r.Hydrated...), other.Hydrated...)}
	for _, src := range []map[string]error{r.Failed, other.Failed} {
		for name, err := range src {
			if out.Failed == nil {
				out.Failed = make(map[string]error)
			}
			out.Failed[name] = err
		}
	}
	return out
}

func (r *Report) fail(name string, err error) {
	if r.Failed == nil {
		r.Failed = make(map[string]error)
	}
	r.Failed[name] = err
}

// Option configures a Hydrator.
type Option func(*Hydrator)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(h *Hydrator) {
		if client != nil {
			h.client = client
		}
	}
}

// WithRetry overrides the retry policy for discovery requests.
func WithRetry(rc resilience.RetryConfig) Option {
	return func(h *Hydrator) {
		h.retry = rc
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Hydrator) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// Hydrator fetches schemas and skills from the discovery server.
type Hydrator struct {
	baseURL string
	client  *http.Client
	retry   resilience.RetryConfig
	logger  *slog.Logger
}

// New creates a Hydrator for the given discovery server.
func New(baseURL string, opts ...Option) *Hydrator {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	h := &Hydrator{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 15 * time.Second},
		retry:   resilience.DefaultRetryConfig(),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Hydrate attaches schemas to Amethyst tools and skills to Amethyst agents.
// Other resources are left untouched. A failure on one resource does not
// stop the others.
func (h *Hydrator) Hydrate(ctx context.Context, resources []*core.Resource) Report {
	var report Report
	for _, res := range resources {
		if res == nil || res.Provider != core.ProviderAmethyst || res.Code != "" {
			continue
		}
		var err error
		switch res.Kind {
		case core.ResourceTool:
			var params map[string]any
			params, err = h.fetchToolSchema(ctx, res.Name)
			if err == nil {
				res.Parameters = params
			}
		case core.ResourceAgent:
			var skills []core.Skill
			skills, err = h.fetchAgentSkills(ctx, res.Name)
			if err == nil {
				res.Skills = skills
			}
		default:
			continue
		}
		if err != nil {
			h.logger.WarnContext(ctx, "resource hydration failed",
				slog.String("resource", res.Name),
				slog.String("kind", string(res.Kind)),
				slog.String("error", err.Error()),
			)
			report.fail(res.Name, err)
			continue
		}
		report.Hydrated = append(report.Hydrated, res.Name)
	}
	return report
}

func (h *Hydrator) fetchToolSchema(ctx context.Context, name string) (map[string]any, error) {
	var info struct {
		Parameters map[string]any `json:"parameters"`
	}
	endpoint := h.baseURL + "/tools/" + url.PathEscape(name)
	if err := h.getJSON(ctx, name, endpoint, &info); err != nil {
		return nil, err
	}
	if info.Parameters == nil {
		return nil, errors.Newf(errors.CodeHydrationFailure, "tool %q: discovery response has no parameters", name).
			WithContext("resource", name)
	}
	return info.Parameters, nil
}

func (h *Hydrator) fetchAgentSkills(ctx context.Context, name string) ([]core.Skill, error) {
	var card struct {
		Skills *[]core.Skill `json:"skills"`
	}
	endpoint := h.baseURL + "/agents/" + url.PathEscape(name) + AgentCardPath
	if err := h.getJSON(ctx, name, endpoint, &card); err != nil {
		return nil, err
	}
	if card.Skills == nil {
		return nil, errors.Newf(errors.CodeHydrationFailure, "agent %q: agent card has no skills", name).
			WithContext("resource", name)
	}
	return *card.Skills, nil
}

func (h *Hydrator) getJSON(ctx context.Context, name, endpoint string, out any) error {
	rc := h.retry.WithOnRetry(func(attempt int, err error, delay time.Duration) {
		h.logger.DebugContext(ctx, "retrying discovery",
			slog.String("resource", name),
			slog.Int("attempt", attempt),
			slog.Duration("delay", delay),
			slog.String("error", err.Error()),
		)
	})
	return rc.Do(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return errors.New(errors.CodeHydrationFailure, "build discovery request", err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := h.client.Do(req)
		if err != nil {
			return errors.New(errors.CodeHydrationFailure, fmt.Sprintf("discovery endpoint unreachable for %q", name), err).
				WithContext("resource", name).
				WithRecoverable(true)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
		if err != nil {
			return errors.New(errors.CodeHydrationFailure, "read discovery response", err).WithRecoverable(true)
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return errors.Newf(errors.CodeHydrationFailure, "discovery for %q returned %s", name, resp.Status).
				WithContext("resource", name).
				WithStatusCode(resp.StatusCode).
				WithRecoverable(resp.StatusCode >= 500)
		}
		if err := json.Unmarshal(body, out); err != nil {
			return errors.New(errors.CodeHydrationFailure, fmt.Sprintf("malformed discovery response for %q", name), err).
				WithContext("resource", name)
		}
		return nil
	})
}
