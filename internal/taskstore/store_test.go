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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dmmproject/agentos/internal/apperr"
	"github.com/dmmproject/agentos/internal/domain"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newTask(id, parentID string, status domain.TaskStatus) *domain.Task {
	return &domain.Task{
		ID: id, Name: id, Type: domain.TaskTypeLeaf, Priority: domain.PriorityNormal,
		Status: status, ParentID: parentID,
	}
}

func TestCreateAndGet(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	require.NoError(t, s.Create(ctx, newTask("t1", "", domain.TaskPending)))

	got, err := s.Get(ctx, "t1")
	require.NoError(t, err)
	require.Equal(t, domain.TaskPending, got.Status)
}

func TestCreateRejectsDuplicateID(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	require.NoError(t, s.Create(ctx, newTask("t1", "", domain.TaskPending)))
	err := s.Create(ctx, newTask("t1", "", domain.TaskPending))
	require.True(t, apperr.IsKind(err, apperr.Conflict))
}

func TestGetChildren(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	require.NoError(t, s.Create(ctx, newTask("parent", "", domain.TaskPending)))
	require.NoError(t, s.Create(ctx, newTask("child1", "parent", domain.TaskPending)))
	require.NoError(t, s.Create(ctx, newTask("child2", "parent", domain.TaskPending)))

	children, err := s.GetChildren(ctx, "parent")
	require.NoError(t, err)
	require.Len(t, children, 2)
}

func TestUpdateRejectsUnknownTask(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	err := s.Update(ctx, newTask("missing", "", domain.TaskPending))
	require.True(t, apperr.IsKind(err, apperr.NotFound))
}

func TestListByStatus(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	require.NoError(t, s.Create(ctx, newTask("t1", "", domain.TaskRunning)))
	require.NoError(t, s.Create(ctx, newTask("t2", "", domain.TaskPending)))

	running, err := s.ListByStatus(ctx, domain.TaskRunning)
	require.NoError(t, err)
	require.Len(t, running, 1)
	require.Equal(t, "t1", running[0].ID)
}
