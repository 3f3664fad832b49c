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

package taskstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/dmmproject/agentos/internal/apperr"
	"github.com/dmmproject/agentos/internal/domain"
)

// Create inserts a new Task. The id is caller-assigned and must be unique.
func (s *Store) Create(ctx context.Context, t *domain.Task) error {
	if err := t.Validate(); err != nil {
		return apperr.Wrap(apperr.ValidationFailure, "taskstore.Create", "invalid task", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}

	subtasksJSON, _ := json.Marshal(t.SubtaskIDs)
	depsJSON, _ := json.Marshal(t.DependencyIDs)
	inputsJSON, _ := json.Marshal(t.Inputs)
	outputsJSON, _ := json.Marshal(t.Outputs)

	_, err := s.db.ExecContext(ctx, `
INSERT INTO tasks (
    id, name, type, priority, status, parent_id, subtask_ids, dependency_ids,
    inputs, outputs, progress, deadline, timeout_seconds, assigned_agent_id,
    created_at, started_at, completed_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`, t.ID, t.Name, string(t.Type), string(t.Priority), string(t.Status), t.ParentID,
		string(subtasksJSON), string(depsJSON), string(inputsJSON), string(outputsJSON),
		t.Progress, nullTime(t.Deadline), t.Constraints.TimeoutSeconds, t.AssignedAgentID,
		t.CreatedAt, nullTime(t.StartedAt), nullTime(t.CompletedAt))
	if err != nil {
		if isUniqueConstraintErr(err) {
			return apperr.Wrap(apperr.Conflict, "taskstore.Create", "task id already exists", err)
		}
		return apperr.Wrap(apperr.StoreError, "taskstore.Create", "insert", err)
	}
	return nil
}

// Update replaces a Task's mutable fields in place.
func (s *Store) Update(ctx context.Context, t *domain.Task) error {
	if err := t.Validate(); err != nil {
		return apperr.Wrap(apperr.ValidationFailure, "taskstore.Update", "invalid task", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	subtasksJSON, _ := json.Marshal(t.SubtaskIDs)
	depsJSON, _ := json.Marshal(t.DependencyIDs)
	inputsJSON, _ := json.Marshal(t.Inputs)
	outputsJSON, _ := json.Marshal(t.Outputs)

	res, err := s.db.ExecContext(ctx, `
UPDATE tasks SET name=?, type=?, priority=?, status=?, parent_id=?, subtask_ids=?,
    dependency_ids=?, inputs=?, outputs=?, progress=?, deadline=?, timeout_seconds=?,
    assigned_agent_id=?, started_at=?, completed_at=?
WHERE id=?
`, t.Name, string(t.Type), string(t.Priority), string(t.Status), t.ParentID,
		string(subtasksJSON), string(depsJSON), string(inputsJSON), string(outputsJSON),
		t.Progress, nullTime(t.Deadline), t.Constraints.TimeoutSeconds, t.AssignedAgentID,
		nullTime(t.StartedAt), nullTime(t.CompletedAt), t.ID)
	if err != nil {
		return apperr.Wrap(apperr.StoreError, "taskstore.Update", "update", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.New(apperr.NotFound, "taskstore.Update", "task not found: "+t.ID)
	}
	return nil
}

// Get fetches a Task by id.
func (s *Store) Get(ctx context.Context, id string) (*domain.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, taskSelect+" WHERE id=?", id)
	return scanAndWrap(row, "taskstore.Get", "task not found: "+id)
}

// GetChildren returns every task whose parent_id is id.
func (s *Store) GetChildren(ctx context.Context, id string) ([]*domain.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, taskSelect+" WHERE parent_id=? ORDER BY created_at ASC", id)
	if err != nil {
		return nil, apperr.Wrap(apperr.StoreError, "taskstore.GetChildren", "query", err)
	}
	defer rows.Close()
	return scanTasks(rows)
}

// ListByStatus returns every task with the given status.
func (s *Store) ListByStatus(ctx context.Context, status domain.TaskStatus) ([]*domain.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, taskSelect+" WHERE status=? ORDER BY created_at ASC", string(status))
	if err != nil {
		return nil, apperr.Wrap(apperr.StoreError, "taskstore.ListByStatus", "query", err)
	}
	defer rows.Close()
	return scanTasks(rows)
}

// List returns every task, ordered by creation.
func (s *Store) List(ctx context.Context) ([]*domain.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, taskSelect+" ORDER BY created_at ASC")
	if err != nil {
		return nil, apperr.Wrap(apperr.StoreError, "taskstore.List", "query", err)
	}
	defer rows.Close()
	return scanTasks(rows)
}

const taskSelect = `SELECT id, name, type, priority, status, parent_id, subtask_ids, dependency_ids,
    inputs, outputs, progress, deadline, timeout_seconds, assigned_agent_id,
    created_at, started_at, completed_at FROM tasks`

type scanner interface {
	Scan(dest ...any) error
}

func scanTask(row scanner) (*domain.Task, error) {
	var t domain.Task
	var typ, priority, status string
	var subtasksJSON, depsJSON, inputsJSON, outputsJSON string
	var deadline, startedAt, completedAt sql.NullTime

	if err := row.Scan(&t.ID, &t.Name, &typ, &priority, &status, &t.ParentID,
		&subtasksJSON, &depsJSON, &inputsJSON, &outputsJSON, &t.Progress,
		&deadline, &t.Constraints.TimeoutSeconds, &t.AssignedAgentID,
		&t.CreatedAt, &startedAt, &completedAt); err != nil {
		return nil, err
	}

	t.Type = domain.TaskType(typ)
	t.Priority = domain.TaskPriority(priority)
	t.Status = domain.TaskStatus(status)
	_ = json.Unmarshal([]byte(subtasksJSON), &t.SubtaskIDs)
	_ = json.Unmarshal([]byte(depsJSON), &t.DependencyIDs)
	_ = json.Unmarshal([]byte(inputsJSON), &t.Inputs)
	_ = json.Unmarshal([]byte(outputsJSON), &t.Outputs)
	if deadline.Valid {
		d := deadline.Time
		t.Deadline = &d
	}
	if startedAt.Valid {
		d := startedAt.Time
		t.StartedAt = &d
	}
	if completedAt.Valid {
		d := completedAt.Time
		t.CompletedAt = &d
	}
	return &t, nil
}

func scanAndWrap(row scanner, op, notFoundMsg string) (*domain.Task, error) {
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.New(apperr.NotFound, op, notFoundMsg)
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.StoreError, op, "scan", err)
	}
	return t, nil
}

func scanTasks(rows *sql.Rows) ([]*domain.Task, error) {
	var out []*domain.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, apperr.Wrap(apperr.StoreError, "taskstore", "scan row", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Wrap(apperr.StoreError, "taskstore", "rows", err)
	}
	return out, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func isUniqueConstraintErr(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint") || strings.Contains(err.Error(), "constraint failed"))
}
