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

package conflict

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/dmmproject/agentos/internal/apperr"
	"github.com/dmmproject/agentos/internal/domain"
)

// GetByPairHash returns the conflict for an unordered memory pair, if one
// exists.
func (s *Store) GetByPairHash(ctx context.Context, pairHash string) (*domain.Conflict, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `SELECT `+conflictColumns+` FROM conflicts WHERE pair_hash = ?`, pairHash)
	c, err := scanConflict(row)
	if err == sql.ErrNoRows {
		return nil, apperr.New(apperr.NotFound, "conflict.GetByPairHash", "no conflict for pair")
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.StoreError, "conflict.GetByPairHash", "scan", err)
	}
	return c, nil
}

// Get returns a conflict by id.
func (s *Store) Get(ctx context.Context, id string) (*domain.Conflict, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `SELECT `+conflictColumns+` FROM conflicts WHERE id = ?`, id)
	c, err := scanConflict(row)
	if err == sql.ErrNoRows {
		return nil, apperr.New(apperr.NotFound, "conflict.Get", "conflict not found: "+id)
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.StoreError, "conflict.Get", "scan", err)
	}
	return c, nil
}

// Create inserts a new conflict.
func (s *Store) Create(ctx context.Context, c *domain.Conflict) error {
	if err := c.Validate(); err != nil {
		return apperr.Wrap(apperr.ValidationFailure, "conflict.Create", "invalid conflict", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	evidenceJSON, _ := json.Marshal(c.Evidence)
	_, err := s.db.ExecContext(ctx, `
INSERT INTO conflicts (
    id, pair_hash, classification, method, confidence, description, evidence, status,
    m1_id, m2_id, m1_role, m2_role, resolution_action, resolved_by, resolved_at,
    suppressed_until, dismiss_reason, scan_id, created_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`, c.ID, c.PairHash(), string(c.Classification), string(c.Method), c.Confidence, c.Description,
		string(evidenceJSON), string(c.Status), c.M1ID, c.M2ID, c.M1Role, c.M2Role, c.ResolutionAction,
		c.ResolvedBy, c.ResolvedAt, c.SuppressedUntil, c.DismissReason, c.ScanID, c.CreatedAt)
	if err != nil {
		return apperr.Wrap(apperr.StoreError, "conflict.Create", "insert", err)
	}
	return nil
}

// Update replaces a conflict's mutable fields in place.
func (s *Store) Update(ctx context.Context, c *domain.Conflict) error {
	if err := c.Validate(); err != nil {
		return apperr.Wrap(apperr.ValidationFailure, "conflict.Update", "invalid conflict", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	evidenceJSON, _ := json.Marshal(c.Evidence)
	res, err := s.db.ExecContext(ctx, `
UPDATE conflicts SET
    classification = ?, method = ?, confidence = ?, description = ?, evidence = ?, status = ?,
    m1_role = ?, m2_role = ?, resolution_action = ?, resolved_by = ?, resolved_at = ?,
    suppressed_until = ?, dismiss_reason = ?
WHERE id = ?
`, string(c.Classification), string(c.Method), c.Confidence, c.Description, string(evidenceJSON),
		string(c.Status), c.M1Role, c.M2Role, c.ResolutionAction, c.ResolvedBy, c.ResolvedAt,
		c.SuppressedUntil, c.DismissReason, c.ID)
	if err != nil {
		return apperr.Wrap(apperr.StoreError, "conflict.Update", "update", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return apperr.New(apperr.NotFound, "conflict.Update", "conflict not found: "+c.ID)
	}
	return nil
}

// ListByStatus returns every conflict with the given status.
func (s *Store) ListByStatus(ctx context.Context, status domain.ConflictStatus) ([]*domain.Conflict, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT `+conflictColumns+` FROM conflicts WHERE status = ? ORDER BY created_at ASC`, string(status))
	if err != nil {
		return nil, apperr.Wrap(apperr.StoreError, "conflict.ListByStatus", "query", err)
	}
	defer rows.Close()

	var out []*domain.Conflict
	for rows.Next() {
		c, err := scanConflict(rows)
		if err != nil {
			return nil, apperr.Wrap(apperr.StoreError, "conflict.ListByStatus", "scan", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ListDeferredExpired returns suppressed conflicts whose TTL has elapsed and
// which must return to unresolved (spec.md §4.3 `defer` action).
func (s *Store) ListDeferredExpired(ctx context.Context, now time.Time) ([]*domain.Conflict, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT `+conflictColumns+` FROM conflicts WHERE suppressed_until IS NOT NULL AND suppressed_until <= ?`, now)
	if err != nil {
		return nil, apperr.Wrap(apperr.StoreError, "conflict.ListDeferredExpired", "query", err)
	}
	defer rows.Close()

	var out []*domain.Conflict
	for rows.Next() {
		c, err := scanConflict(rows)
		if err != nil {
			return nil, apperr.Wrap(apperr.StoreError, "conflict.ListDeferredExpired", "scan", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// CreateScan inserts a new conflict_scans audit row.
func (s *Store) CreateScan(ctx context.Context, scan *domain.ConflictScan) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	methodsJSON, _ := json.Marshal(scan.Methods)
	_, err := s.db.ExecContext(ctx, `
INSERT INTO conflict_scans (id, started_at, ended_at, methods, target_memory_id, candidate_count, new_conflicts, existing_updated)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
`, scan.ID, scan.StartedAt, nullableEndedAt(scan.EndedAt), string(methodsJSON), scan.TargetMemoryID,
		scan.CandidateCount, scan.NewConflicts, scan.ExistingUpdated)
	if err != nil {
		return apperr.Wrap(apperr.StoreError, "conflict.CreateScan", "insert", err)
	}
	return nil
}

// AppendResolutionLog records a (possibly partial) resolution.
func (s *Store) AppendResolutionLog(ctx context.Context, entry *domain.ResolutionLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	modifiedJSON, _ := json.Marshal(entry.MemoriesModified)
	deprecatedJSON, _ := json.Marshal(entry.MemoriesDeprecated)
	createdJSON, _ := json.Marshal(entry.MemoriesCreated)
	_, err := s.db.ExecContext(ctx, `
INSERT INTO resolution_log (conflict_id, actor, action, memories_modified, memories_deprecated, memories_created, error, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
`, entry.ConflictID, entry.Actor, string(entry.Action), string(modifiedJSON), string(deprecatedJSON),
		string(createdJSON), entry.Error, entry.CreatedAt)
	if err != nil {
		return apperr.Wrap(apperr.StoreError, "conflict.AppendResolutionLog", "insert", err)
	}
	return nil
}

// Stats summarizes the conflict table by status, for the CLI's
// `conflicts stats` verb.
type Stats struct {
	Total    int
	ByStatus map[domain.ConflictStatus]int
}

// GetStats counts conflicts grouped by status.
func (s *Store) GetStats(ctx context.Context) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM conflicts GROUP BY status`)
	if err != nil {
		return Stats{}, apperr.Wrap(apperr.StoreError, "conflict.GetStats", "query", err)
	}
	defer rows.Close()

	stats := Stats{ByStatus: map[domain.ConflictStatus]int{}}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return Stats{}, apperr.Wrap(apperr.StoreError, "conflict.GetStats", "scan", err)
		}
		stats.ByStatus[domain.ConflictStatus(status)] = count
		stats.Total += count
	}
	return stats, rows.Err()
}

// GetHistory returns every resolution_log entry for a conflict, oldest
// first.
func (s *Store) GetHistory(ctx context.Context, conflictID string) ([]domain.ResolutionLogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
SELECT conflict_id, actor, action, memories_modified, memories_deprecated, memories_created, error, created_at
FROM resolution_log WHERE conflict_id = ? ORDER BY created_at ASC, id ASC`, conflictID)
	if err != nil {
		return nil, apperr.Wrap(apperr.StoreError, "conflict.GetHistory", "query", err)
	}
	defer rows.Close()

	var out []domain.ResolutionLogEntry
	for rows.Next() {
		var e domain.ResolutionLogEntry
		var action, modifiedJSON, deprecatedJSON, createdJSON string
		if err := rows.Scan(&e.ConflictID, &e.Actor, &action, &modifiedJSON, &deprecatedJSON, &createdJSON,
			&e.Error, &e.CreatedAt); err != nil {
			return nil, apperr.Wrap(apperr.StoreError, "conflict.GetHistory", "scan", err)
		}
		e.Action = domain.ResolutionAction(action)
		_ = json.Unmarshal([]byte(modifiedJSON), &e.MemoriesModified)
		_ = json.Unmarshal([]byte(deprecatedJSON), &e.MemoriesDeprecated)
		_ = json.Unmarshal([]byte(createdJSON), &e.MemoriesCreated)
		out = append(out, e)
	}
	return out, rows.Err()
}

const conflictColumns = `id, pair_hash, classification, method, confidence, description, evidence, status,
    m1_id, m2_id, m1_role, m2_role, resolution_action, resolved_by, resolved_at,
    suppressed_until, dismiss_reason, scan_id, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanConflict(row scanner) (*domain.Conflict, error) {
	c := &domain.Conflict{}
	var classification, method, status, evidenceJSON, pairHash string
	var resolvedAt, suppressedUntil sql.NullTime

	if err := row.Scan(&c.ID, &pairHash, &classification, &method, &c.Confidence, &c.Description,
		&evidenceJSON, &status, &c.M1ID, &c.M2ID, &c.M1Role, &c.M2Role, &c.ResolutionAction,
		&c.ResolvedBy, &resolvedAt, &suppressedUntil, &c.DismissReason, &c.ScanID, &c.CreatedAt); err != nil {
		return nil, err
	}

	c.Classification = domain.ConflictType(classification)
	c.Method = domain.DetectionMethod(method)
	c.Status = domain.ConflictStatus(status)
	_ = json.Unmarshal([]byte(evidenceJSON), &c.Evidence)
	if resolvedAt.Valid {
		t := resolvedAt.Time
		c.ResolvedAt = &t
	}
	if suppressedUntil.Valid {
		t := suppressedUntil.Time
		c.SuppressedUntil = &t
	}
	return c, nil
}

func nullableEndedAt(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
