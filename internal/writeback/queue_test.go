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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dmmproject/agentos/internal/apperr"
	"github.com/dmmproject/agentos/internal/domain"
)

func openTestQueue(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newProposal(id, path string) *domain.WriteProposal {
	return &domain.WriteProposal{ID: id, Type: domain.WriteCreate, TargetPath: path, Content: "hello"}
}

func TestEnqueueDefaultsStatusToPending(t *testing.T) {
	ctx := context.Background()
	s := openTestQueue(t)

	p := newProposal("p1", "notes/a.md")
	require.NoError(t, s.Enqueue(ctx, p))

	got, err := s.Get(ctx, "p1")
	require.NoError(t, err)
	require.Equal(t, domain.WriteStatusPending, got.Status)
}

func TestGetByPathReturnsMostRecent(t *testing.T) {
	ctx := context.Background()
	s := openTestQueue(t)

	require.NoError(t, s.Enqueue(ctx, newProposal("p1", "notes/a.md")))
	require.NoError(t, s.Enqueue(ctx, newProposal("p2", "notes/a.md")))

	got, err := s.GetByPath(ctx, "notes/a.md")
	require.NoError(t, err)
	require.Equal(t, "p2", got.ID)
}

func TestHasPendingForPath(t *testing.T) {
	ctx := context.Background()
	s := openTestQueue(t)

	require.NoError(t, s.Enqueue(ctx, newProposal("p1", "notes/a.md")))

	has, err := s.HasPendingForPath(ctx, "notes/a.md")
	require.NoError(t, err)
	require.True(t, has)

	require.NoError(t, s.UpdateStatus(ctx, "p1", domain.WriteStatusCommitted, "done"))
	has, err = s.HasPendingForPath(ctx, "notes/a.md")
	require.NoError(t, err)
	require.False(t, has)
}

func TestUpdateStatusAppendsReviewLog(t *testing.T) {
	ctx := context.Background()
	s := openTestQueue(t)

	require.NoError(t, s.Enqueue(ctx, newProposal("p1", "notes/a.md")))
	require.NoError(t, s.UpdateStatus(ctx, "p1", domain.WriteStatusApproved, "looks good"))

	history, err := s.GetHistory(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, domain.WriteStatusPending, history[1].FromStatus)
	require.Equal(t, domain.WriteStatusApproved, history[1].ToStatus)
}

func TestIncrementRetryAndSetCommitError(t *testing.T) {
	ctx := context.Background()
	s := openTestQueue(t)

	require.NoError(t, s.Enqueue(ctx, newProposal("p1", "notes/a.md")))
	require.NoError(t, s.IncrementRetry(ctx, "p1"))
	require.NoError(t, s.SetCommitError(ctx, "p1", "stale_precondition"))

	got, err := s.Get(ctx, "p1")
	require.NoError(t, err)
	require.Equal(t, 1, got.RetryCount)
	require.Equal(t, "stale_precondition", got.CommitError)
}

func TestGetStats(t *testing.T) {
	ctx := context.Background()
	s := openTestQueue(t)

	require.NoError(t, s.Enqueue(ctx, newProposal("p1", "notes/a.md")))
	require.NoError(t, s.Enqueue(ctx, newProposal("p2", "notes/b.md")))
	require.NoError(t, s.UpdateStatus(ctx, "p2", domain.WriteStatusApproved, "ok"))

	stats, err := s.GetStats(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, stats.Total)
	require.Equal(t, 1, stats.ByStatus[domain.WriteStatusPending])
	require.Equal(t, 1, stats.ByStatus[domain.WriteStatusApproved])
}

func TestDeleteRemovesProposal(t *testing.T) {
	ctx := context.Background()
	s := openTestQueue(t)

	require.NoError(t, s.Enqueue(ctx, newProposal("p1", "notes/a.md")))
	require.NoError(t, s.Delete(ctx, "p1"))

	_, err := s.Get(ctx, "p1")
	require.True(t, apperr.IsKind(err, apperr.NotFound))
}

func TestGetPendingOrdersByCreation(t *testing.T) {
	ctx := context.Background()
	s := openTestQueue(t)

	require.NoError(t, s.Enqueue(ctx, newProposal("p1", "notes/a.md")))
	require.NoError(t, s.Enqueue(ctx, newProposal("p2", "notes/b.md")))

	pending, err := s.GetPending(ctx, 0)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	require.Equal(t, "p1", pending[0].ID)
}
