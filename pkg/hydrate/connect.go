// Copyright 2026 © The Amethyst Authors
// SPDX-License-Identifier: Apache-2.0

package hydrate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jllopis/amethyst/pkg/core"
	"github.com/jllopis/amethyst/pkg/errors"
	"github.com/jllopis/amethyst/pkg/resilience"
)

// Enricher sets the connection status of external resources.
type Enricher interface {
	Enrich(ctx context.Context, resources []*core.Resource) Report
}

// ConnectConfig holds the credentials of a connect-account provider.
type ConnectConfig struct {
	BaseURL        string
	ProjectID      string
	Environment    string
	ExternalUserID string
	Token          string
}

// ConnectEnricher checks connected accounts of external apps and mints an
// authorization link for the ones that are not connected yet.
type ConnectEnricher struct {
	cfg    ConnectConfig
	client *http.Client
	retry  resilience.RetryConfig
	logger *slog.Logger
}

// ConnectOption configures a ConnectEnricher.
type ConnectOption func(*ConnectEnricher)

// WithConnectHTTPClient overrides the HTTP client.
func WithConnectHTTPClient(client *http.Client) ConnectOption {
	return func(e *ConnectEnricher) {
		if client != nil {
			e.client = client
		}
	}
}

// WithConnectRetry sets the retry policy of account lookups. Token
// creation is never retried.
func WithConnectRetry(rc resilience.RetryConfig) ConnectOption {
	return func(e *ConnectEnricher) {
		e.retry = rc
	}
}

// WithConnectLogger sets the logger.
func WithConnectLogger(logger *slog.Logger) ConnectOption {
	return func(e *ConnectEnricher) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewConnectEnricher validates the credentials and returns an enricher.
// Missing credentials are reported as CodeUnauthorized.
func NewConnectEnricher(cfg ConnectConfig, opts ...ConnectOption) (*ConnectEnricher, error) {
	var missing []string
	if strings.TrimSpace(cfg.BaseURL) == "" {
		missing = append(missing, "base_url")
	}
	if strings.TrimSpace(cfg.ProjectID) == "" {
		missing = append(missing, "project_id")
	}
	if strings.TrimSpace(cfg.ExternalUserID) == "" {
		missing = append(missing, "external_user_id")
	}
	if strings.TrimSpace(cfg.Token) == "" {
		missing = append(missing, "token")
	}
	if len(missing) > 0 {
		return nil, errors.Newf(errors.CodeUnauthorized, "connect credentials missing: %s", strings.Join(missing, ", ")).
			WithContext("missing", missing)
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	e := &ConnectEnricher{
		cfg:    cfg,
		client: &http.Client{Timeout: 15 * time.Second},
		retry:  resilience.DefaultRetryConfig(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e, nil
}

// Enrich marks each external resource connected or needs_oauth. A failure
// on one resource leaves its status unknown and is recorded in the report.
func (e *ConnectEnricher) Enrich(ctx context.Context, resources []*core.Resource) Report {
	var (
		report  Report
		linkURL string
		linkErr error
		minted  bool
	)
	for _, res := range resources {
		if res == nil || res.Provider != core.ProviderExternal {
			continue
		}
		app := res.Key
		if app == "" {
			app = res.Name
		}

		connected, err := e.hasAccount(ctx, app)
		if err != nil {
			e.logger.WarnContext(ctx, "account lookup failed",
				slog.String("resource", res.Name),
				slog.String("app", app),
				slog.String("error", err.Error()),
			)
			res.ConnectionStatus = core.ConnectionUnknown
			report.fail(res.Name, err)
			continue
		}
		if connected {
			res.ConnectionStatus = core.ConnectionConnected
			res.AuthURL = ""
			report.Hydrated = append(report.Hydrated, res.Name)
			continue
		}

		if !minted {
			linkURL, linkErr = e.connectLink(ctx)
			minted = true
		}
		if linkErr != nil {
			res.ConnectionStatus = core.ConnectionUnknown
			report.fail(res.Name, linkErr)
			continue
		}
		res.ConnectionStatus = core.ConnectionNeedsOAuth
		res.AuthURL = linkURL + "&app=" + url.QueryEscape(app)
		report.Hydrated = append(report.Hydrated, res.Name)
	}
	return report
}

func (e *ConnectEnricher) hasAccount(ctx context.Context, app string) (bool, error) {
	q := url.Values{}
	q.Set("external_user_id", e.cfg.ExternalUserID)
	q.Set("app", app)
	endpoint := fmt.Sprintf("%s/v1/connect/%s/accounts?%s", e.cfg.BaseURL, url.PathEscape(e.cfg.ProjectID), q.Encode())

	var out struct {
		Data []json.RawMessage `json:"data"`
	}
	if err := e.do(ctx, http.MethodGet, endpoint, nil, &out); err != nil {
		return false, err
	}
	return len(out.Data) > 0, nil
}

func (e *ConnectEnricher) connectLink(ctx context.Context) (string, error) {
	endpoint := fmt.Sprintf("%s/v1/connect/%s/tokens", e.cfg.BaseURL, url.PathEscape(e.cfg.ProjectID))
	body := map[string]string{"external_user_id": e.cfg.ExternalUserID}

	var out struct {
		Token          string `json:"token"`
		ConnectLinkURL string `json:"connect_link_url"`
	}
	if err := e.do(ctx, http.MethodPost, endpoint, body, &out); err != nil {
		return "", err
	}
	if out.ConnectLinkURL == "" {
		return "", errors.New(errors.CodeHydrationFailure, "connect token response has no connect_link_url", nil)
	}
	return out.ConnectLinkURL, nil
}

func (e *ConnectEnricher) do(ctx context.Context, method, endpoint string, payload, out any) error {
	if method != http.MethodGet {
		return e.roundTrip(ctx, method, endpoint, payload, out)
	}
	return e.retry.Do(ctx, func() error {
		return e.roundTrip(ctx, method, endpoint, nil, out)
	})
}

func (e *ConnectEnricher) roundTrip(ctx context.Context, method, endpoint string, payload, out any) error {
	var reader io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return errors.New(errors.CodeInvalidInput, "encode connect request", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return errors.New(errors.CodeHydrationFailure, "build connect request", err)
	}
	req.Header.Set("Authorization", "Bearer "+e.cfg.Token)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if e.cfg.Environment != "" {
		req.Header.Set("X-PD-Environment", e.cfg.Environment)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return errors.New(errors.CodeHydrationFailure, "connect provider unreachable", err).WithRecoverable(true)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return errors.New(errors.CodeHydrationFailure, "read connect response", err)
	}
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return errors.Newf(errors.CodeUnauthorized, "connect provider rejected credentials: %s", resp.Status).
			WithStatusCode(resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return errors.Newf(errors.CodeHydrationFailure, "connect provider returned %s", resp.Status).
			WithStatusCode(resp.StatusCode).
			WithRecoverable(resp.StatusCode >= 500)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return errors.New(errors.CodeHydrationFailure, "malformed connect response", err)
	}
	return nil
}
