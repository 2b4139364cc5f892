// Copyright 2026 © The Amethyst Authors
// SPDX-License-Identifier: Apache-2.0

// Package resilience retries planning-phase lookups with exponential
// backoff.
//
// Resource calls are never retried: a call is made exactly once and its
// failure becomes the task result. Only discovery and connect-account
// lookups, which are idempotent reads, go through a RetryConfig.
package resilience

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/jllopis/amethyst/pkg/errors"
)

// RetryConfig controls retry behavior with exponential backoff.
type RetryConfig struct {
	// MaxAttempts counts every attempt, the first one included.
	MaxAttempts int

	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64

	// Jitter spreads each delay by ±Jitter; 0.1 means ±10%.
	Jitter float64

	// IsRecoverable decides whether an error is worth another attempt.
	// Nil means typed errors follow their Recoverable flag and untyped
	// errors are retried.
	IsRecoverable func(error) bool

	// OnRetry is called before sleeping for the next attempt.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// DefaultRetryConfig makes three attempts, 100ms apart, doubling.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:   3,
		InitialDelay:  100 * time.Millisecond,
		MaxDelay:      5 * time.Second,
		Multiplier:    2.0,
		Jitter:        0.1,
		IsRecoverable: isRecoverableDefault,
	}
}

// ForRetries returns the default config allowing n retries after the first
// attempt. Negative values disable retries.
func ForRetries(n int) RetryConfig {
	if n < 0 {
		n = 0
	}
	return DefaultRetryConfig().WithMaxAttempts(n + 1)
}

func (rc RetryConfig) WithMaxAttempts(max int) RetryConfig {
	rc.MaxAttempts = max
	return rc
}

func (rc RetryConfig) WithInitialDelay(d time.Duration) RetryConfig {
	rc.InitialDelay = d
	return rc
}

func (rc RetryConfig) WithIsRecoverable(fn func(error) bool) RetryConfig {
	rc.IsRecoverable = fn
	return rc
}

func (rc RetryConfig) WithOnRetry(fn func(attempt int, err error, delay time.Duration)) RetryConfig {
	rc.OnRetry = fn
	return rc
}

// Do runs fn until it succeeds, fails with a non-recoverable error or runs
// out of attempts. The last error is returned; typed errors are annotated
// with the number of attempts made.
func (rc RetryConfig) Do(ctx context.Context, fn func() error) error {
	_, err := Value(ctx, rc, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// Value is Do for functions that produce a value.
func Value[T any](ctx context.Context, rc RetryConfig, fn func() (T, error)) (T, error) {
	if rc.MaxAttempts < 1 {
		rc.MaxAttempts = 1
	}
	if rc.IsRecoverable == nil {
		rc.IsRecoverable = isRecoverableDefault
	}

	var zero T
	for attempt := 1; ; attempt++ {
		v, err := fn()
		if err == nil {
			return v, nil
		}
		if attempt >= rc.MaxAttempts || !rc.IsRecoverable(err) {
			if attempt > 1 {
				if e := errors.As(err); e != nil {
					e.WithContext("attempts", attempt)
				}
			}
			return zero, err
		}

		delay := calculateBackoff(attempt, rc)
		if rc.OnRetry != nil {
			rc.OnRetry(attempt, err, delay)
		}
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, errors.New(errors.CodeTimeout, "context canceled during retry", ctx.Err()).
				WithContext("attempt", attempt).
				WithContext("max_attempts", rc.MaxAttempts)
		case <-timer.C:
		}
	}
}

// calculateBackoff returns the delay after the given failed attempt.
func calculateBackoff(attempt int, rc RetryConfig) time.Duration {
	if rc.Multiplier == 0 {
		rc.Multiplier = 2.0
	}
	delay := time.Duration(float64(rc.InitialDelay) * math.Pow(rc.Multiplier, float64(attempt-1)))
	if rc.MaxDelay > 0 && delay > rc.MaxDelay {
		delay = rc.MaxDelay
	}
	if rc.Jitter > 0 {
		spread := float64(delay) * rc.Jitter
		delay = max(time.Duration(float64(delay)+spread*2*(rand.Float64()-0.5)), 0)
	}
	return delay
}

func isRecoverableDefault(err error) bool {
	if err == nil {
		return false
	}
	if ae := errors.As(err); ae != nil {
		return ae.Recoverable
	}
	return true
}
