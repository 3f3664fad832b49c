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

// Package conflict implements conflict detection and resolution (spec.md
// §4.3): stateless analyzers that raise candidates, a Merger that groups
// them by unordered memory pair and classifies them, a Detector that
// orchestrates full or incremental scans, and a Resolver that applies
// resolution actions.
package conflict

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Store is the SQLite-backed system of record for conflicts, scan audit
// rows, and the resolution log.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// Open opens (creating if absent) the SQLite database at path and ensures
// the conflict schema exists. path may be ":memory:" for tests.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("conflict: open %s: %w", path, err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("conflict: ping %s: %w", path, err)
	}

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		slog.Warn("conflict: failed to enable WAL mode", "error", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA synchronous=NORMAL"); err != nil {
		slog.Warn("conflict: failed to set synchronous=NORMAL", "error", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout=10000"); err != nil {
		slog.Warn("conflict: failed to set busy timeout", "error", err)
	}

	s := &Store{db: db}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS conflicts (
    id                TEXT PRIMARY KEY,
    pair_hash         TEXT NOT NULL,
    classification    TEXT NOT NULL,
    method            TEXT NOT NULL,
    confidence        REAL NOT NULL DEFAULT 0,
    description       TEXT NOT NULL DEFAULT '',
    evidence          TEXT NOT NULL DEFAULT '[]',
    status            TEXT NOT NULL,
    m1_id             TEXT NOT NULL,
    m2_id             TEXT NOT NULL,
    m1_role           TEXT NOT NULL DEFAULT '',
    m2_role           TEXT NOT NULL DEFAULT '',
    resolution_action TEXT NOT NULL DEFAULT '',
    resolved_by       TEXT NOT NULL DEFAULT '',
    resolved_at       TIMESTAMP,
    suppressed_until  TIMESTAMP,
    dismiss_reason    TEXT NOT NULL DEFAULT '',
    scan_id           TEXT NOT NULL DEFAULT '',
    created_at        TIMESTAMP NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_conflicts_pair_hash ON conflicts(pair_hash);
CREATE INDEX IF NOT EXISTS idx_conflicts_status ON conflicts(status);

CREATE TABLE IF NOT EXISTS conflict_scans (
    id               TEXT PRIMARY KEY,
    started_at       TIMESTAMP NOT NULL,
    ended_at         TIMESTAMP,
    methods          TEXT NOT NULL DEFAULT '[]',
    target_memory_id TEXT NOT NULL DEFAULT '',
    candidate_count  INTEGER NOT NULL DEFAULT 0,
    new_conflicts    INTEGER NOT NULL DEFAULT 0,
    existing_updated INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS resolution_log (
    id                  INTEGER PRIMARY KEY AUTOINCREMENT,
    conflict_id         TEXT NOT NULL,
    actor               TEXT NOT NULL,
    action              TEXT NOT NULL,
    memories_modified   TEXT NOT NULL DEFAULT '[]',
    memories_deprecated TEXT NOT NULL DEFAULT '[]',
    memories_created    TEXT NOT NULL DEFAULT '[]',
    error               TEXT NOT NULL DEFAULT '',
    created_at          TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_resolution_log_conflict ON resolution_log(conflict_id);
`

func (s *Store) initSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("conflict: init schema: %w", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
