// Copyright 2026 © The Amethyst Authors
// SPDX-License-Identifier: Apache-2.0

package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileStore keeps one JSON checkpoint file per run.
type FileStore struct {
	mu      sync.Mutex
	baseDir string
}

// NewFileStore creates a file-backed checkpoint store rooted at baseDir.
func NewFileStore(baseDir string) (*FileStore, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create checkpoint directory: %w", err)
	}
	return &FileStore{baseDir: baseDir}, nil
}

func (f *FileStore) runFile(runID string) string {
	// Sanitize runID to prevent path traversal
	safe := filepath.Base(runID)
	return filepath.Join(f.baseDir, safe+".json")
}

// Save overwrites the checkpoint of a run atomically.
func (f *FileStore) Save(_ context.Context, runID string, snapshot Snapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode checkpoint: %w", err)
	}
	path := f.runFile(runID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Load reads the checkpoint of a run.
func (f *FileStore) Load(_ context.Context, runID string) (Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.runFile(runID))
	if err != nil {
		if os.IsNotExist(err) {
			return Snapshot{}, ErrNotFound
		}
		return Snapshot{}, err
	}
	var snapshot Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return Snapshot{}, fmt.Errorf("failed to decode checkpoint: %w", err)
	}
	return snapshot, nil
}
