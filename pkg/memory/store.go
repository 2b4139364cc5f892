// Copyright 2026 © The Amethyst Authors
// SPDX-License-Identifier: Apache-2.0

package memory

import (
	"context"
	"errors"
)

// ErrNotFound is returned when no checkpoint exists for a run.
var ErrNotFound = errors.New("memory: checkpoint not found")

// Store persists memory checkpoints between code units.
type Store interface {
	Save(ctx context.Context, runID string, snapshot Snapshot) error
	Load(ctx context.Context, runID string) (Snapshot, error)
}
