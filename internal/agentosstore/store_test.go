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
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dmmproject/agentos/internal/domain"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSaveAndGetAgentState(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	a := &domain.AgentState{AgentID: "agent-1", SessionID: "sess-1", Status: domain.AgentBusy, TokenCount: 42, APICalls: 3}
	require.NoError(t, s.SaveAgentState(ctx, a))

	got, err := s.GetAgentState(ctx, "agent-1", "sess-1")
	require.NoError(t, err)
	require.Equal(t, domain.AgentBusy, got.Status)
	require.Equal(t, 42, got.TokenCount)
}

func TestSaveAgentStateUpserts(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	a := &domain.AgentState{AgentID: "agent-1", SessionID: "sess-1", Status: domain.AgentIdle}
	require.NoError(t, s.SaveAgentState(ctx, a))

	a.Status = domain.AgentTerminated
	require.NoError(t, s.SaveAgentState(ctx, a))

	got, err := s.GetAgentState(ctx, "agent-1", "sess-1")
	require.NoError(t, err)
	require.Equal(t, domain.AgentTerminated, got.Status)
}

func TestGetAgentStateNotFound(t *testing.T) {
	s := openTestStore(t)
	_, err := s.GetAgentState(context.Background(), "nope", "nope")
	require.Error(t, err)
}

func TestSaveMessageAndGetByFilters(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	m1 := &domain.Message{ID: "m1", SessionID: "s1", Sender: "a", Recipient: "b", Type: domain.MessageInform,
		Priority: domain.PriorityNormal, Status: domain.DeliveryQueued, QueuedAt: time.Now().UTC(), CorrelationID: "c1"}
	m2 := &domain.Message{ID: "m2", SessionID: "s2", Sender: "a", Recipient: "c", Type: domain.MessageInform,
		Priority: domain.PriorityNormal, Status: domain.DeliveryQueued, QueuedAt: time.Now().UTC()}
	require.NoError(t, s.SaveMessage(ctx, m1))
	require.NoError(t, s.SaveMessage(ctx, m2))

	bySession, err := s.GetMessages(ctx, MessageFilter{SessionID: "s1"})
	require.NoError(t, err)
	require.Len(t, bySession, 1)
	require.Equal(t, "m1", bySession[0].ID)

	byCorrelation, err := s.GetMessages(ctx, MessageFilter{CorrelationID: "c1"})
	require.NoError(t, err)
	require.Len(t, byCorrelation, 1)

	bySender, err := s.GetMessages(ctx, MessageFilter{Sender: "a"})
	require.NoError(t, err)
	require.Len(t, bySender, 2)
}

func TestMarkDeliveredAndRead(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	m := &domain.Message{ID: "m1", Sender: "a", Recipient: "b", Type: domain.MessageInform,
		Priority: domain.PriorityNormal, Status: domain.DeliveryQueued, QueuedAt: time.Now().UTC()}
	require.NoError(t, s.SaveMessage(ctx, m))

	now := time.Now().UTC()
	require.NoError(t, s.MarkDelivered(ctx, "m1", now))
	require.NoError(t, s.MarkRead(ctx, "m1", now))

	got, err := s.GetMessages(ctx, MessageFilter{Sender: "a"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, domain.DeliveryRead, got[0].Status)
	require.NotNil(t, got[0].DeliveredAt)
	require.NotNil(t, got[0].ReadAt)
}

func TestMarkDeliveredUnknownMessage(t *testing.T) {
	s := openTestStore(t)
	require.Error(t, s.MarkDelivered(context.Background(), "missing", time.Now()))
}

func TestSaveAndGetModification(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	p := &domain.ModificationProposal{
		ID: "p1", Title: "fix bug", Author: "alice",
		Changes: []domain.CodeChange{{FilePath: "a.go", ChangeType: domain.ChangeModify}},
		Risk:    domain.RiskLow, RequiredApprovals: 1, Status: domain.ModPendingReview, CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, s.SaveModification(ctx, p))

	got, err := s.GetModification(ctx, "p1")
	require.NoError(t, err)
	require.Equal(t, domain.RiskLow, got.Risk)
	require.Len(t, got.Changes, 1)
	require.Equal(t, "a.go", got.Changes[0].FilePath)
}

func TestSaveModificationUpsertsStatus(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	p := &domain.ModificationProposal{ID: "p1", Title: "t", Changes: []domain.CodeChange{{FilePath: "a.go"}},
		Status: domain.ModPendingReview, CreatedAt: time.Now().UTC()}
	require.NoError(t, s.SaveModification(ctx, p))

	p.Status = domain.ModApproved
	require.NoError(t, s.SaveModification(ctx, p))

	got, err := s.GetModification(ctx, "p1")
	require.NoError(t, err)
	require.Equal(t, domain.ModApproved, got.Status)
}

func TestSessionLifecycle(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	sess := &domain.Session{ID: "sess-1", Name: "demo", StartedAt: time.Now().UTC()}
	require.NoError(t, s.SaveSession(ctx, sess))

	active, err := s.GetActiveSessions(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)

	require.NoError(t, s.UpdateSessionStats(ctx, "sess-1", 5, 2))
	require.NoError(t, s.EndSession(ctx, "sess-1", time.Now().UTC()))

	active, err = s.GetActiveSessions(ctx)
	require.NoError(t, err)
	require.Len(t, active, 0)
}

func TestEndSessionUnknown(t *testing.T) {
	s := openTestStore(t)
	require.Error(t, s.EndSession(context.Background(), "missing", time.Now()))
}

func TestCleanupOlderThanRemovesStaleRows(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	old := time.Now().UTC().Add(-48 * time.Hour)
	sess := &domain.Session{ID: "old-sess", StartedAt: old}
	require.NoError(t, s.SaveSession(ctx, sess))
	ended := old.Add(time.Hour)
	require.NoError(t, s.EndSession(ctx, "old-sess", ended))

	m := &domain.Message{ID: "old-msg", Sender: "a", Recipient: "b", Type: domain.MessageInform,
		Priority: domain.PriorityNormal, Status: domain.DeliveryRead, QueuedAt: old}
	require.NoError(t, s.SaveMessage(ctx, m))

	cutoff := time.Now().UTC().Add(-time.Hour)
	res, err := s.CleanupOlderThan(ctx, cutoff)
	require.NoError(t, err)
	require.Equal(t, int64(1), res.SessionsDeleted)
	require.Equal(t, int64(1), res.MessagesDeleted)
}
