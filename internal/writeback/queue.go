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

package writeback

import (
	"context"
	"database/sql"
	"time"

	"github.com/dmmproject/agentos/internal/apperr"
	"github.com/dmmproject/agentos/internal/domain"
)

const proposalColumns = `id, type, target_path, reason, content, pre_image_hash, proposed_by,
    retry_count, status, commit_error, review_notes, created_at, updated_at`

// Stats summarizes the queue's current contents by status (spec.md §4.4.1
// `get_stats`).
type Stats struct {
	ByStatus map[domain.WriteProposalStatus]int
	Total    int
}

// Enqueue inserts a new WriteProposal. Callers must have already stamped
// PreImageHash at enqueue time (spec.md §4.4.3's stale_precondition check
// compares against this value at commit time).
func (s *Store) Enqueue(ctx context.Context, p *domain.WriteProposal) error {
	if err := p.Validate(); err != nil {
		return apperr.Wrap(apperr.ValidationFailure, "writeback.Enqueue", "invalid proposal", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	if p.Status == "" {
		p.Status = domain.WriteStatusPending
	}

	_, err := s.db.ExecContext(ctx, `
INSERT INTO write_proposals (
    id, type, target_path, reason, content, pre_image_hash, proposed_by,
    retry_count, status, commit_error, review_notes, created_at, updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`, p.ID, string(p.Type), p.TargetPath, p.Reason, p.Content, p.PreImageHash, p.ProposedBy,
		p.RetryCount, string(p.Status), p.CommitError, p.ReviewNotes, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return apperr.Wrap(apperr.StoreError, "writeback.Enqueue", "insert", err)
	}
	return s.appendLog(ctx, p.ID, "", p.Status, "enqueued")
}

// Get returns a proposal by id.
func (s *Store) Get(ctx context.Context, id string) (*domain.WriteProposal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `SELECT `+proposalColumns+` FROM write_proposals WHERE id = ?`, id)
	return scanAndWrap(row, "writeback.Get", "proposal not found: "+id)
}

// GetByPath returns the most recently created proposal for a target path, if
// any.
func (s *Store) GetByPath(ctx context.Context, path string) (*domain.WriteProposal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `SELECT `+proposalColumns+` FROM write_proposals WHERE target_path = ? ORDER BY created_at DESC LIMIT 1`, path)
	return scanAndWrap(row, "writeback.GetByPath", "no proposal for path: "+path)
}

// GetPending returns up to limit proposals with status=pending, oldest
// first, for the Reviewer to consume.
func (s *Store) GetPending(ctx context.Context, limit int) ([]*domain.WriteProposal, error) {
	return s.GetByStatus(ctx, domain.WriteStatusPending, limit)
}

// GetByStatus returns up to limit proposals with the given status, oldest
// first. limit <= 0 means unbounded.
func (s *Store) GetByStatus(ctx context.Context, status domain.WriteProposalStatus, limit int) ([]*domain.WriteProposal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT ` + proposalColumns + ` FROM write_proposals WHERE status = ? ORDER BY created_at ASC`
	args := []any{string(status)}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperr.Wrap(apperr.StoreError, "writeback.GetByStatus", "query", err)
	}
	defer rows.Close()

	var out []*domain.WriteProposal
	for rows.Next() {
		p, err := scanProposal(rows)
		if err != nil {
			return nil, apperr.Wrap(apperr.StoreError, "writeback.GetByStatus", "scan", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// HasPendingForPath reports whether path already has an open proposal
// (spec.md §3's "at most one open proposal per target path" invariant).
func (s *Store) HasPendingForPath(ctx context.Context, path string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT status FROM write_proposals WHERE target_path = ?`, path)
	if err != nil {
		return false, apperr.Wrap(apperr.StoreError, "writeback.HasPendingForPath", "query", err)
	}
	defer rows.Close()

	for rows.Next() {
		var status string
		if err := rows.Scan(&status); err != nil {
			return false, apperr.Wrap(apperr.StoreError, "writeback.HasPendingForPath", "scan", err)
		}
		if domain.IsOpenWriteStatus(domain.WriteProposalStatus(status)) {
			return true, nil
		}
	}
	return false, rows.Err()
}

// UpdateStatus transitions a proposal's status and appends a review_log
// entry recording the transition.
func (s *Store) UpdateStatus(ctx context.Context, id string, newStatus domain.WriteProposalStatus, notes string) error {
	p, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	fromStatus := p.Status

	s.mu.Lock()
	res, err := s.db.ExecContext(ctx, `UPDATE write_proposals SET status = ?, review_notes = ?, updated_at = ? WHERE id = ?`,
		string(newStatus), notes, time.Now().UTC(), id)
	s.mu.Unlock()
	if err != nil {
		return apperr.Wrap(apperr.StoreError, "writeback.UpdateStatus", "update", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return apperr.New(apperr.NotFound, "writeback.UpdateStatus", "proposal not found: "+id)
	}
	return s.appendLog(ctx, id, fromStatus, newStatus, notes)
}

// UpdateProposal fully replaces a proposal's mutable fields in place
// (spec.md §4.4.1 `update_proposal`).
func (s *Store) UpdateProposal(ctx context.Context, p *domain.WriteProposal) error {
	if err := p.Validate(); err != nil {
		return apperr.Wrap(apperr.ValidationFailure, "writeback.UpdateProposal", "invalid proposal", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p.UpdatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
UPDATE write_proposals SET
    type = ?, target_path = ?, reason = ?, content = ?, pre_image_hash = ?, proposed_by = ?,
    retry_count = ?, status = ?, commit_error = ?, review_notes = ?, updated_at = ?
WHERE id = ?
`, string(p.Type), p.TargetPath, p.Reason, p.Content, p.PreImageHash, p.ProposedBy, p.RetryCount,
		string(p.Status), p.CommitError, p.ReviewNotes, p.UpdatedAt, p.ID)
	if err != nil {
		return apperr.Wrap(apperr.StoreError, "writeback.UpdateProposal", "update", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return apperr.New(apperr.NotFound, "writeback.UpdateProposal", "proposal not found: "+p.ID)
	}
	return nil
}

// IncrementRetry bumps a proposal's retry_count by one.
func (s *Store) IncrementRetry(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `UPDATE write_proposals SET retry_count = retry_count + 1, updated_at = ? WHERE id = ?`, time.Now().UTC(), id)
	if err != nil {
		return apperr.Wrap(apperr.StoreError, "writeback.IncrementRetry", "update", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return apperr.New(apperr.NotFound, "writeback.IncrementRetry", "proposal not found: "+id)
	}
	return nil
}

// SetCommitError records a commit failure's message without changing status
// (callers pair this with UpdateStatus(..., failed, ...)).
func (s *Store) SetCommitError(ctx context.Context, id, msg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `UPDATE write_proposals SET commit_error = ?, updated_at = ? WHERE id = ?`, msg, time.Now().UTC(), id)
	if err != nil {
		return apperr.Wrap(apperr.StoreError, "writeback.SetCommitError", "update", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return apperr.New(apperr.NotFound, "writeback.SetCommitError", "proposal not found: "+id)
	}
	return nil
}

// Delete removes a proposal permanently. The review_log rows referencing it
// are retained as an audit trail.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM write_proposals WHERE id = ?`, id)
	if err != nil {
		return apperr.Wrap(apperr.StoreError, "writeback.Delete", "delete", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return apperr.New(apperr.NotFound, "writeback.Delete", "proposal not found: "+id)
	}
	return nil
}

// GetStats summarizes the queue by status.
func (s *Store) GetStats(ctx context.Context) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM write_proposals GROUP BY status`)
	if err != nil {
		return Stats{}, apperr.Wrap(apperr.StoreError, "writeback.GetStats", "query", err)
	}
	defer rows.Close()

	stats := Stats{ByStatus: map[domain.WriteProposalStatus]int{}}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return Stats{}, apperr.Wrap(apperr.StoreError, "writeback.GetStats", "scan", err)
		}
		stats.ByStatus[domain.WriteProposalStatus(status)] = count
		stats.Total += count
	}
	return stats, rows.Err()
}

// GetHistory returns every review_log entry for a proposal, oldest first.
func (s *Store) GetHistory(ctx context.Context, id string) ([]domain.ReviewLogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT proposal_id, from_status, to_status, notes, created_at FROM review_log WHERE proposal_id = ? ORDER BY created_at ASC, id ASC`, id)
	if err != nil {
		return nil, apperr.Wrap(apperr.StoreError, "writeback.GetHistory", "query", err)
	}
	defer rows.Close()

	var out []domain.ReviewLogEntry
	for rows.Next() {
		var e domain.ReviewLogEntry
		var from, to string
		if err := rows.Scan(&e.ProposalID, &from, &to, &e.Notes, &e.CreatedAt); err != nil {
			return nil, apperr.Wrap(apperr.StoreError, "writeback.GetHistory", "scan", err)
		}
		e.FromStatus = domain.WriteProposalStatus(from)
		e.ToStatus = domain.WriteProposalStatus(to)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) appendLog(ctx context.Context, proposalID string, from, to domain.WriteProposalStatus, notes string) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO review_log (proposal_id, from_status, to_status, notes, created_at) VALUES (?, ?, ?, ?, ?)`,
		proposalID, string(from), string(to), notes, time.Now().UTC())
	if err != nil {
		return apperr.Wrap(apperr.StoreError, "writeback.appendLog", "insert", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProposal(row scanner) (*domain.WriteProposal, error) {
	p := &domain.WriteProposal{}
	var typ, status string
	if err := row.Scan(&p.ID, &typ, &p.TargetPath, &p.Reason, &p.Content, &p.PreImageHash, &p.ProposedBy,
		&p.RetryCount, &status, &p.CommitError, &p.ReviewNotes, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.Type = domain.WriteProposalType(typ)
	p.Status = domain.WriteProposalStatus(status)
	return p, nil
}

func scanAndWrap(row scanner, op, notFoundMsg string) (*domain.WriteProposal, error) {
	p, err := scanProposal(row)
	if err == sql.ErrNoRows {
		return nil, apperr.New(apperr.NotFound, op, notFoundMsg)
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.StoreError, op, "scan", err)
	}
	return p, nil
}
