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

// Package agentosstore is the single SQL database backing the agent
// runtime's persistence (spec.md §4.5.4, agentos.sqlite): agent states,
// messages, self-modification audit, and sessions. All timestamps are
// stored and returned as UTC.
package agentosstore

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Store is the SQLite-backed system of record for agent_states,
// messages, modifications, and sessions.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// Open opens (creating if absent) the SQLite database at path and ensures
// the schema exists. path may be ":memory:" for tests.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("agentosstore: open %s: %w", path, err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("agentosstore: ping %s: %w", path, err)
	}

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		slog.Warn("agentosstore: failed to enable WAL mode", "error", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA synchronous=NORMAL"); err != nil {
		slog.Warn("agentosstore: failed to set synchronous=NORMAL", "error", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout=10000"); err != nil {
		slog.Warn("agentosstore: failed to set busy timeout", "error", err)
	}

	s := &Store{db: db}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS agent_states (
    agent_id    TEXT NOT NULL,
    session_id  TEXT NOT NULL,
    status      TEXT NOT NULL,
    token_count INTEGER NOT NULL DEFAULT 0,
    api_calls   INTEGER NOT NULL DEFAULT 0,
    context     BLOB,
    updated_at  TIMESTAMP NOT NULL,
    PRIMARY KEY (agent_id, session_id)
);

CREATE TABLE IF NOT EXISTS messages (
    id             TEXT PRIMARY KEY,
    session_id     TEXT NOT NULL DEFAULT '',
    sender         TEXT NOT NULL,
    recipient      TEXT NOT NULL DEFAULT '',
    recipients     TEXT NOT NULL DEFAULT '[]',
    type           TEXT NOT NULL,
    priority       TEXT NOT NULL,
    payload        TEXT NOT NULL DEFAULT '{}',
    correlation_id TEXT NOT NULL DEFAULT '',
    tags           TEXT NOT NULL DEFAULT '[]',
    status         TEXT NOT NULL,
    queued_at      TIMESTAMP NOT NULL,
    delivered_at   TIMESTAMP,
    read_at        TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id);
CREATE INDEX IF NOT EXISTS idx_messages_sender ON messages(sender);
CREATE INDEX IF NOT EXISTS idx_messages_recipient ON messages(recipient);
CREATE INDEX IF NOT EXISTS idx_messages_correlation ON messages(correlation_id);

CREATE TABLE IF NOT EXISTS modifications (
    id                  TEXT PRIMARY KEY,
    title               TEXT NOT NULL DEFAULT '',
    description         TEXT NOT NULL DEFAULT '',
    author              TEXT NOT NULL DEFAULT '',
    changes             TEXT NOT NULL DEFAULT '[]',
    risk                TEXT NOT NULL DEFAULT '',
    required_approvals  INTEGER NOT NULL DEFAULT 0,
    reviews             TEXT NOT NULL DEFAULT '[]',
    status              TEXT NOT NULL,
    created_at          TIMESTAMP NOT NULL,
    applied_at          TIMESTAMP,
    reverted_at         TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_modifications_status ON modifications(status);

CREATE TABLE IF NOT EXISTS sessions (
    id            TEXT PRIMARY KEY,
    name          TEXT NOT NULL DEFAULT '',
    started_at    TIMESTAMP NOT NULL,
    ended_at      TIMESTAMP,
    message_count INTEGER NOT NULL DEFAULT 0,
    task_count    INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_sessions_ended ON sessions(ended_at);
`

func (s *Store) initSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("agentosstore: init schema: %w", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
