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

package agentosstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/dmmproject/agentos/internal/apperr"
	"github.com/dmmproject/agentos/internal/domain"
)

// SaveAgentState upserts an AgentState keyed by (AgentID, SessionID).
func (s *Store) SaveAgentState(ctx context.Context, a *domain.AgentState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if a.UpdatedAt.IsZero() {
		a.UpdatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO agent_states (agent_id, session_id, status, token_count, api_calls, context, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(agent_id, session_id) DO UPDATE SET
    status=excluded.status, token_count=excluded.token_count, api_calls=excluded.api_calls,
    context=excluded.context, updated_at=excluded.updated_at
`, a.AgentID, a.SessionID, string(a.Status), a.TokenCount, a.APICalls, a.Context, a.UpdatedAt)
	if err != nil {
		return apperr.Wrap(apperr.StoreError, "agentosstore.SaveAgentState", "upsert", err)
	}
	return nil
}

// GetAgentState fetches an AgentState by (agentID, sessionID).
func (s *Store) GetAgentState(ctx context.Context, agentID, sessionID string) (*domain.AgentState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
SELECT agent_id, session_id, status, token_count, api_calls, context, updated_at
FROM agent_states WHERE agent_id=? AND session_id=?
`, agentID, sessionID)

	var a domain.AgentState
	var status string
	if err := row.Scan(&a.AgentID, &a.SessionID, &status, &a.TokenCount, &a.APICalls, &a.Context, &a.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.New(apperr.NotFound, "agentosstore.GetAgentState", "agent state not found: "+agentID+"/"+sessionID)
		}
		return nil, apperr.Wrap(apperr.StoreError, "agentosstore.GetAgentState", "scan", err)
	}
	a.Status = domain.AgentStateStatus(status)
	return &a, nil
}

// SaveMessage upserts a Message by id (a re-save is how delivery/read
// status transitions are persisted).
func (s *Store) SaveMessage(ctx context.Context, m *domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveMessageLocked(ctx, m)
}

func (s *Store) saveMessageLocked(ctx context.Context, m *domain.Message) error {
	recipientsJSON, _ := json.Marshal(m.Recipients)
	payloadJSON, _ := json.Marshal(m.Payload)
	tagsJSON, _ := json.Marshal(m.Tags)

	_, err := s.db.ExecContext(ctx, `
INSERT INTO messages (id, session_id, sender, recipient, recipients, type, priority, payload,
    correlation_id, tags, status, queued_at, delivered_at, read_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    status=excluded.status, delivered_at=excluded.delivered_at, read_at=excluded.read_at
`, m.ID, m.SessionID, m.Sender, m.Recipient, string(recipientsJSON), string(m.Type), string(m.Priority),
		string(payloadJSON), m.CorrelationID, string(tagsJSON), string(m.Status),
		m.QueuedAt, nullTime(m.DeliveredAt), nullTime(m.ReadAt))
	if err != nil {
		return apperr.Wrap(apperr.StoreError, "agentosstore.SaveMessage", "upsert", err)
	}
	return nil
}

// MarkDelivered transitions a stored message to delivered.
func (s *Store) MarkDelivered(ctx context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.ExecContext(ctx, `UPDATE messages SET status=?, delivered_at=? WHERE id=?`,
		string(domain.DeliveryDelivered), at, id)
	if err != nil {
		return apperr.Wrap(apperr.StoreError, "agentosstore.MarkDelivered", "update", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.New(apperr.NotFound, "agentosstore.MarkDelivered", "message not found: "+id)
	}
	return nil
}

// MarkRead transitions a stored message to read.
func (s *Store) MarkRead(ctx context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.ExecContext(ctx, `UPDATE messages SET status=?, read_at=? WHERE id=?`,
		string(domain.DeliveryRead), at, id)
	if err != nil {
		return apperr.Wrap(apperr.StoreError, "agentosstore.MarkRead", "update", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.New(apperr.NotFound, "agentosstore.MarkRead", "message not found: "+id)
	}
	return nil
}

// MessageFilter narrows GetMessages; zero-value fields match everything
// on that axis.
type MessageFilter struct {
	SessionID     string
	Sender        string
	Recipient     string
	CorrelationID string
}

// GetMessages returns messages matching filter, ordered by queued_at.
func (s *Store) GetMessages(ctx context.Context, filter MessageFilter) ([]*domain.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT id, session_id, sender, recipient, recipients, type, priority, payload,
    correlation_id, tags, status, queued_at, delivered_at, read_at FROM messages WHERE 1=1`
	var args []any
	if filter.SessionID != "" {
		query += " AND session_id=?"
		args = append(args, filter.SessionID)
	}
	if filter.Sender != "" {
		query += " AND sender=?"
		args = append(args, filter.Sender)
	}
	if filter.Recipient != "" {
		query += " AND recipient=?"
		args = append(args, filter.Recipient)
	}
	if filter.CorrelationID != "" {
		query += " AND correlation_id=?"
		args = append(args, filter.CorrelationID)
	}
	query += " ORDER BY queued_at ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperr.Wrap(apperr.StoreError, "agentosstore.GetMessages", "query", err)
	}
	defer rows.Close()

	var out []*domain.Message
	for rows.Next() {
		var m domain.Message
		var typ, priority, status, recipientsJSON, payloadJSON, tagsJSON string
		var deliveredAt, readAt sql.NullTime
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Sender, &m.Recipient, &recipientsJSON, &typ, &priority,
			&payloadJSON, &m.CorrelationID, &tagsJSON, &status, &m.QueuedAt, &deliveredAt, &readAt); err != nil {
			return nil, apperr.Wrap(apperr.StoreError, "agentosstore.GetMessages", "scan", err)
		}
		m.Type = domain.MessageType(typ)
		m.Priority = domain.TaskPriority(priority)
		m.Status = domain.DeliveryStatus(status)
		_ = json.Unmarshal([]byte(recipientsJSON), &m.Recipients)
		_ = json.Unmarshal([]byte(payloadJSON), &m.Payload)
		_ = json.Unmarshal([]byte(tagsJSON), &m.Tags)
		if deliveredAt.Valid {
			d := deliveredAt.Time
			m.DeliveredAt = &d
		}
		if readAt.Valid {
			d := readAt.Time
			m.ReadAt = &d
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}

// SaveModification upserts a ModificationProposal's full audit state.
func (s *Store) SaveModification(ctx context.Context, p *domain.ModificationProposal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	changesJSON, _ := json.Marshal(p.Changes)
	reviewsJSON, _ := json.Marshal(p.Reviews)

	_, err := s.db.ExecContext(ctx, `
INSERT INTO modifications (id, title, description, author, changes, risk, required_approvals,
    reviews, status, created_at, applied_at, reverted_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    changes=excluded.changes, risk=excluded.risk, required_approvals=excluded.required_approvals,
    reviews=excluded.reviews, status=excluded.status, applied_at=excluded.applied_at,
    reverted_at=excluded.reverted_at
`, p.ID, p.Title, p.Description, p.Author, string(changesJSON), string(p.Risk), p.RequiredApprovals,
		string(reviewsJSON), string(p.Status), p.CreatedAt, nullTime(p.AppliedAt), nullTime(p.RevertedAt))
	if err != nil {
		return apperr.Wrap(apperr.StoreError, "agentosstore.SaveModification", "upsert", err)
	}
	return nil
}

// GetModification fetches a ModificationProposal by id.
func (s *Store) GetModification(ctx context.Context, id string) (*domain.ModificationProposal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
SELECT id, title, description, author, changes, risk, required_approvals, reviews, status,
    created_at, applied_at, reverted_at FROM modifications WHERE id=?`, id)

	var p domain.ModificationProposal
	var changesJSON, reviewsJSON, risk, status string
	var appliedAt, revertedAt sql.NullTime
	if err := row.Scan(&p.ID, &p.Title, &p.Description, &p.Author, &changesJSON, &risk, &p.RequiredApprovals,
		&reviewsJSON, &status, &p.CreatedAt, &appliedAt, &revertedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.New(apperr.NotFound, "agentosstore.GetModification", "modification not found: "+id)
		}
		return nil, apperr.Wrap(apperr.StoreError, "agentosstore.GetModification", "scan", err)
	}
	p.Risk = domain.RiskLevel(risk)
	p.Status = domain.ModificationStatus(status)
	_ = json.Unmarshal([]byte(changesJSON), &p.Changes)
	_ = json.Unmarshal([]byte(reviewsJSON), &p.Reviews)
	if appliedAt.Valid {
		d := appliedAt.Time
		p.AppliedAt = &d
	}
	if revertedAt.Valid {
		d := revertedAt.Time
		p.RevertedAt = &d
	}
	return &p, nil
}

// ListModifications returns every stored ModificationProposal, optionally
// filtered by status, newest first.
func (s *Store) ListModifications(ctx context.Context, status domain.ModificationStatus) ([]*domain.ModificationProposal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT id, title, description, author, changes, risk, required_approvals, reviews, status,
    created_at, applied_at, reverted_at FROM modifications WHERE 1=1`
	var args []any
	if status != "" {
		query += " AND status=?"
		args = append(args, string(status))
	}
	query += " ORDER BY created_at DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperr.Wrap(apperr.StoreError, "agentosstore.ListModifications", "query", err)
	}
	defer rows.Close()

	var out []*domain.ModificationProposal
	for rows.Next() {
		var p domain.ModificationProposal
		var changesJSON, reviewsJSON, risk, pstatus string
		var appliedAt, revertedAt sql.NullTime
		if err := rows.Scan(&p.ID, &p.Title, &p.Description, &p.Author, &changesJSON, &risk, &p.RequiredApprovals,
			&reviewsJSON, &pstatus, &p.CreatedAt, &appliedAt, &revertedAt); err != nil {
			return nil, apperr.Wrap(apperr.StoreError, "agentosstore.ListModifications", "scan", err)
		}
		p.Risk = domain.RiskLevel(risk)
		p.Status = domain.ModificationStatus(pstatus)
		_ = json.Unmarshal([]byte(changesJSON), &p.Changes)
		_ = json.Unmarshal([]byte(reviewsJSON), &p.Reviews)
		if appliedAt.Valid {
			d := appliedAt.Time
			p.AppliedAt = &d
		}
		if revertedAt.Valid {
			d := revertedAt.Time
			p.RevertedAt = &d
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}

// SaveSession upserts a Session.
func (s *Store) SaveSession(ctx context.Context, sess *domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess.StartedAt.IsZero() {
		sess.StartedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO sessions (id, name, started_at, ended_at, message_count, task_count)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    name=excluded.name, ended_at=excluded.ended_at, message_count=excluded.message_count,
    task_count=excluded.task_count
`, sess.ID, sess.Name, sess.StartedAt, nullTime(sess.EndedAt), sess.MessageCount, sess.TaskCount)
	if err != nil {
		return apperr.Wrap(apperr.StoreError, "agentosstore.SaveSession", "upsert", err)
	}
	return nil
}

// EndSession marks a session ended at the given time.
func (s *Store) EndSession(ctx context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.ExecContext(ctx, `UPDATE sessions SET ended_at=? WHERE id=?`, at, id)
	if err != nil {
		return apperr.Wrap(apperr.StoreError, "agentosstore.EndSession", "update", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.New(apperr.NotFound, "agentosstore.EndSession", "session not found: "+id)
	}
	return nil
}

// UpdateSessionStats sets a session's running message/task counts.
func (s *Store) UpdateSessionStats(ctx context.Context, id string, messageCount, taskCount int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.ExecContext(ctx, `UPDATE sessions SET message_count=?, task_count=? WHERE id=?`,
		messageCount, taskCount, id)
	if err != nil {
		return apperr.Wrap(apperr.StoreError, "agentosstore.UpdateSessionStats", "update", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.New(apperr.NotFound, "agentosstore.UpdateSessionStats", "session not found: "+id)
	}
	return nil
}

// GetActiveSessions returns every session with no ended_at.
func (s *Store) GetActiveSessions(ctx context.Context) ([]*domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
SELECT id, name, started_at, ended_at, message_count, task_count
FROM sessions WHERE ended_at IS NULL ORDER BY started_at ASC`)
	if err != nil {
		return nil, apperr.Wrap(apperr.StoreError, "agentosstore.GetActiveSessions", "query", err)
	}
	defer rows.Close()

	var out []*domain.Session
	for rows.Next() {
		var sess domain.Session
		var endedAt sql.NullTime
		if err := rows.Scan(&sess.ID, &sess.Name, &sess.StartedAt, &endedAt, &sess.MessageCount, &sess.TaskCount); err != nil {
			return nil, apperr.Wrap(apperr.StoreError, "agentosstore.GetActiveSessions", "scan", err)
		}
		if endedAt.Valid {
			d := endedAt.Time
			sess.EndedAt = &d
		}
		out = append(out, &sess)
	}
	return out, rows.Err()
}

// CleanupResult reports how many rows a CleanupOlderThan pass removed.
type CleanupResult struct {
	SessionsDeleted int64
	MessagesDeleted int64
}

// CleanupOlderThan deletes ended sessions (and terminal-status messages)
// older than cutoff, bounding the database's long-run growth.
func (s *Store) CleanupOlderThan(ctx context.Context, cutoff time.Time) (CleanupResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var res CleanupResult
	sessRes, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE ended_at IS NOT NULL AND ended_at < ?`, cutoff)
	if err != nil {
		return res, apperr.Wrap(apperr.StoreError, "agentosstore.CleanupOlderThan", "delete sessions", err)
	}
	res.SessionsDeleted, _ = sessRes.RowsAffected()

	statuses := []string{string(domain.DeliveryRead), string(domain.DeliveryDeadLettered)}
	msgRes, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE queued_at < ? AND status IN (?, ?)`,
		cutoff, statuses[0], statuses[1])
	if err != nil {
		return res, apperr.Wrap(apperr.StoreError, "agentosstore.CleanupOlderThan", "delete messages", err)
	}
	res.MessagesDeleted, _ = msgRes.RowsAffected()

	return res, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
