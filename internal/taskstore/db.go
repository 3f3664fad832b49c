// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package taskstore is the SQLite-backed system of record for tasks
// (spec.md §4.5.2, persisted at tasks.sqlite): the task hierarchy,
// dependencies, and scheduling metadata that TaskTracker observes but
// never mutates.
package taskstore

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Store is the SQLite-backed system of record for tasks.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// Open opens (creating if absent) the SQLite database at path and ensures
// the task schema exists. path may be ":memory:" for tests.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("taskstore: open %s: %w", path, err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("taskstore: ping %s: %w", path, err)
	}

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		slog.Warn("taskstore: failed to enable WAL mode", "error", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA synchronous=NORMAL"); err != nil {
		slog.Warn("taskstore: failed to set synchronous=NORMAL", "error", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout=10000"); err != nil {
		slog.Warn("taskstore: failed to set busy timeout", "error", err)
	}

	s := &Store{db: db}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS tasks (
    id               TEXT PRIMARY KEY,
    name             TEXT NOT NULL DEFAULT '',
    type             TEXT NOT NULL,
    priority         TEXT NOT NULL,
    status           TEXT NOT NULL,
    parent_id        TEXT NOT NULL DEFAULT '',
    subtask_ids      TEXT NOT NULL DEFAULT '[]',
    dependency_ids   TEXT NOT NULL DEFAULT '[]',
    inputs           TEXT NOT NULL DEFAULT '{}',
    outputs          TEXT NOT NULL DEFAULT '{}',
    progress         REAL NOT NULL DEFAULT 0,
    deadline         TIMESTAMP,
    timeout_seconds  INTEGER NOT NULL DEFAULT 0,
    assigned_agent_id TEXT NOT NULL DEFAULT '',
    created_at       TIMESTAMP NOT NULL,
    started_at       TIMESTAMP,
    completed_at     TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_tasks_parent ON tasks(parent_id);
CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status);
`

func (s *Store) initSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("taskstore: init schema: %w", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
