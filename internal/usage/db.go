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

// Package usage is the UsageTracker (spec.md §2, §9; usage.sqlite): an
// event log of which memories, tags, and tools were actually exercised,
// and the one writer of MemoryStore.last_used that the conflict
// detector's staleness classification depends on.
package usage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Store is the SQLite-backed usage event log.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// Open opens (creating if absent) the SQLite database at path and ensures
// the schema exists. path may be ":memory:" for tests.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("usage: open %s: %w", path, err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("usage: ping %s: %w", path, err)
	}

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		slog.Warn("usage: failed to enable WAL mode", "error", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA synchronous=NORMAL"); err != nil {
		slog.Warn("usage: failed to set synchronous=NORMAL", "error", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout=10000"); err != nil {
		slog.Warn("usage: failed to set busy timeout", "error", err)
	}

	s := &Store{db: db}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS usage_events (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    component    TEXT NOT NULL,
    ref_id       TEXT NOT NULL,
    event_type   TEXT NOT NULL,
    occurred_at  TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_usage_events_component ON usage_events(component, ref_id);
CREATE INDEX IF NOT EXISTS idx_usage_events_occurred ON usage_events(occurred_at);

CREATE TABLE IF NOT EXISTS tracker_state (
    id      INTEGER PRIMARY KEY CHECK (id = 1),
    enabled BOOLEAN NOT NULL DEFAULT 1
);

INSERT OR IGNORE INTO tracker_state (id, enabled) VALUES (1, 1);
`

func (s *Store) initSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("usage: init schema: %w", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
