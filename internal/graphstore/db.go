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

// Package graphstore is the SQLite-backed knowledge graph store
// (spec.md §3, §4.1): typed nodes and directed, typed edges with
// mismatched-endpoint rejection, BFS-based traversal, contradiction/
// supersession queries, and a templated query executor for admin use.
package graphstore

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Store is a SQLite-backed graph store. SQLite only supports one writer at a
// time, so Store serializes writes behind a single connection and an
// in-process RWMutex, same as the rest of AgentOS's SQL-backed stores.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// Open opens (creating if absent) the SQLite database at path and ensures
// the graph schema exists. path may be ":memory:" for tests.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("graphstore: open %s: %w", path, err)
	}

	// A single writer connection avoids "database is locked" errors, the
	// same tradeoff the rest of AgentOS's SQLite stores make.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("graphstore: ping %s: %w", path, err)
	}

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		slog.Warn("graphstore: failed to enable WAL mode", "error", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA synchronous=NORMAL"); err != nil {
		slog.Warn("graphstore: failed to set synchronous=NORMAL", "error", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout=10000"); err != nil {
		slog.Warn("graphstore: failed to set busy timeout", "error", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
		slog.Warn("graphstore: failed to enable foreign keys", "error", err)
	}

	s := &Store{db: db}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS graph_nodes (
    id         TEXT NOT NULL,
    type       TEXT NOT NULL,
    properties TEXT NOT NULL DEFAULT '{}',
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (id, type)
);

CREATE TABLE IF NOT EXISTS graph_edges (
    from_id     TEXT NOT NULL,
    from_type   TEXT NOT NULL,
    to_id       TEXT NOT NULL,
    to_type     TEXT NOT NULL,
    edge_type   TEXT NOT NULL,
    weight      REAL NOT NULL DEFAULT 0,
    context     TEXT NOT NULL DEFAULT '',
    strength    REAL NOT NULL DEFAULT 0,
    description TEXT NOT NULL DEFAULT '',
    reason      TEXT NOT NULL DEFAULT '',
    count       INTEGER NOT NULL DEFAULT 0,
    created_at  TIMESTAMP NOT NULL,
    PRIMARY KEY (from_id, from_type, to_id, to_type, edge_type)
);

CREATE INDEX IF NOT EXISTS idx_graph_edges_from ON graph_edges(from_id, from_type);
CREATE INDEX IF NOT EXISTS idx_graph_edges_to ON graph_edges(to_id, to_type);
CREATE INDEX IF NOT EXISTS idx_graph_edges_type ON graph_edges(edge_type);
CREATE INDEX IF NOT EXISTS idx_graph_nodes_type ON graph_nodes(type);
`

func (s *Store) initSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("graphstore: init schema: %w", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
