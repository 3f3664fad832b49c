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

// Package memorystore is the system of record for Memory entities
// (spec.md §3): SQL-backed metadata and front-matter, with composite/
// directory embeddings upserted into an injected vectorindex.Provider for
// the hybrid retrieval pipeline's stage-2 vector search. It does not parse
// YAML/Markdown itself — a Loader (spec.md §6) produces Memory values from
// source files; this package only persists and indexes them.
package memorystore

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Store is the SQLite-backed Memory store.
type Store struct {
	db  *sql.DB
	mu  sync.RWMutex
}

// Open opens (creating if absent) the SQLite database at path and ensures
// the memories schema exists.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("memorystore: open %s: %w", path, err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("memorystore: ping %s: %w", path, err)
	}

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		slog.Warn("memorystore: failed to enable WAL mode", "error", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA synchronous=NORMAL"); err != nil {
		slog.Warn("memorystore: failed to set synchronous=NORMAL", "error", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout=10000"); err != nil {
		slog.Warn("memorystore: failed to set busy timeout", "error", err)
	}

	s := &Store{db: db}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS memories (
    id                  TEXT PRIMARY KEY,
    path                TEXT NOT NULL DEFAULT '',
    directory           TEXT NOT NULL DEFAULT '',
    title               TEXT NOT NULL DEFAULT '',
    body                TEXT NOT NULL DEFAULT '',
    scope               TEXT NOT NULL,
    priority            REAL NOT NULL DEFAULT 0,
    confidence          TEXT NOT NULL,
    status              TEXT NOT NULL,
    tags                TEXT NOT NULL DEFAULT '[]',
    token_count         INTEGER NOT NULL DEFAULT 0,
    created_at          TIMESTAMP NOT NULL,
    last_used           TIMESTAMP,
    usage_count         INTEGER NOT NULL DEFAULT 0,
    content_hash        TEXT NOT NULL DEFAULT '',
    supersedes          TEXT NOT NULL DEFAULT '[]',
    related             TEXT NOT NULL DEFAULT '[]',
    expires_at          TIMESTAMP,
    composite_embedding BLOB,
    directory_embedding BLOB
);

CREATE INDEX IF NOT EXISTS idx_memories_scope ON memories(scope);
CREATE INDEX IF NOT EXISTS idx_memories_status ON memories(status);
CREATE INDEX IF NOT EXISTS idx_memories_directory ON memories(directory);
CREATE UNIQUE INDEX IF NOT EXISTS idx_memories_path ON memories(path) WHERE path != '';
`

func (s *Store) initSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("memorystore: init schema: %w", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
