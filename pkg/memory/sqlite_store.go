// Copyright 2026 © The Amethyst Authors
// SPDX-License-Identifier: Apache-2.0

package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists checkpoints in SQLite, one row per run.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLiteStore opens (or creates) a SQLite database at path.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	store, err := NewSQLiteStore(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// NewSQLiteStore wraps an existing database and ensures the schema.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	if db == nil {
		return nil, errors.New("db is nil")
	}
	if err := ensureCheckpointSchema(db); err != nil {
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

// Save upserts the checkpoint of a run.
func (s *SQLiteStore) Save(ctx context.Context, runID string, snapshot Snapshot) error {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO memory_checkpoints (run_id, snapshot_json, task_count, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(run_id) DO UPDATE SET
			snapshot_json = excluded.snapshot_json,
			task_count = excluded.task_count,
			updated_at = excluded.updated_at
	`, runID, string(payload), len(snapshot.Tasks), time.Now().UTC())
	return err
}

// Load returns the checkpoint of a run.
func (s *SQLiteStore) Load(ctx context.Context, runID string) (Snapshot, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, `
		SELECT snapshot_json FROM memory_checkpoints WHERE run_id = ?
	`, runID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, ErrNotFound
	}
	if err != nil {
		return Snapshot{}, err
	}
	var snapshot Snapshot
	if err := json.Unmarshal([]byte(payload), &snapshot); err != nil {
		return Snapshot{}, err
	}
	return snapshot, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func ensureCheckpointSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS memory_checkpoints (
			run_id TEXT PRIMARY KEY,
			snapshot_json TEXT NOT NULL,
			task_count INTEGER NOT NULL,
			updated_at TIMESTAMP
		);
	`)
	return err
}
