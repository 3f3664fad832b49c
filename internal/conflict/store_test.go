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
	"testing"
	"time"

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

func newConflict(id, m1, m2 string) *domain.Conflict {
	return &domain.Conflict{
		ID: id, Classification: domain.ConflictContradictory, Method: domain.MethodSemantic,
		Confidence: 0.8, Status: domain.ConflictUnresolved, M1ID: m1, M2ID: m2,
		CreatedAt: time.Now().UTC(),
	}
}

func TestCreateAndGetByPairHash(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	c := newConflict("c1", "a", "b")
	require.NoError(t, s.Create(ctx, c))

	got, err := s.GetByPairHash(ctx, domain.PairHash("b", "a"))
	require.NoError(t, err)
	require.Equal(t, "c1", got.ID)
}

func TestGetByPairHashNotFound(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	_, err := s.GetByPairHash(ctx, domain.PairHash("a", "b"))
	require.True(t, apperr.IsKind(err, apperr.NotFound))
}

func TestUpdateRejectsUnknownConflict(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	c := newConflict("missing", "a", "b")
	err := s.Update(ctx, c)
	require.True(t, apperr.IsKind(err, apperr.NotFound))
}

func TestCreateRejectsSelfPairedConflict(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	c := newConflict("c1", "a", "a")
	err := s.Create(ctx, c)
	require.True(t, apperr.IsKind(err, apperr.ValidationFailure))
}

func TestListByStatus(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	c1 := newConflict("c1", "a", "b")
	c2 := newConflict("c2", "c", "d")
	c2.Status = domain.ConflictResolved
	require.NoError(t, s.Create(ctx, c1))
	require.NoError(t, s.Create(ctx, c2))

	unresolved, err := s.ListByStatus(ctx, domain.ConflictUnresolved)
	require.NoError(t, err)
	require.Len(t, unresolved, 1)
	require.Equal(t, "c1", unresolved[0].ID)
}

func TestListDeferredExpired(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	past := time.Now().UTC().Add(-time.Hour)
	future := time.Now().UTC().Add(time.Hour)

	expired := newConflict("c1", "a", "b")
	expired.SuppressedUntil = &past
	stillSuppressed := newConflict("c2", "c", "d")
	stillSuppressed.SuppressedUntil = &future

	require.NoError(t, s.Create(ctx, expired))
	require.NoError(t, s.Create(ctx, stillSuppressed))

	out, err := s.ListDeferredExpired(ctx, time.Now().UTC())
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, "c1", out[0].ID)
}

func TestAppendResolutionLog(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	entry := &domain.ResolutionLogEntry{
		ConflictID: "c1", Actor: "tester", Action: domain.ActionDismiss,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, s.AppendResolutionLog(ctx, entry))
}

func TestCreateScan(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	scan := &domain.ConflictScan{
		ID: "scan1", StartedAt: time.Now().UTC(), EndedAt: time.Now().UTC(),
		Methods: []domain.DetectionMethod{domain.MethodTagOverlap}, CandidateCount: 3, NewConflicts: 1,
	}
	require.NoError(t, s.CreateScan(ctx, scan))
}
