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

package bus

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dmmproject/agentos/internal/domain"
)

func msg(id, sender, recipient string, priority domain.TaskPriority) *domain.Message {
	return &domain.Message{ID: id, Sender: sender, Recipient: recipient, Type: domain.MessageInform, Priority: priority}
}

func TestSendAutoRegistersUnknownRecipient(t *testing.T) {
	b := New(0)
	require.NoError(t, b.Send(msg("m1", "a", "b", domain.PriorityNormal)))

	stats := b.GetStats()
	require.Equal(t, 1, stats.MailboxSizes["b"])
}

func TestReceiveOrdersByPriorityThenFIFO(t *testing.T) {
	b := New(0)
	require.NoError(t, b.Send(msg("low1", "a", "b", domain.PriorityLow)))
	require.NoError(t, b.Send(msg("crit1", "a", "b", domain.PriorityCritical)))
	require.NoError(t, b.Send(msg("high1", "a", "b", domain.PriorityHigh)))
	require.NoError(t, b.Send(msg("crit2", "a", "b", domain.PriorityCritical)))

	require.Equal(t, "crit1", b.Receive("b").ID)
	require.Equal(t, "crit2", b.Receive("b").ID)
	require.Equal(t, "high1", b.Receive("b").ID)
	require.Equal(t, "low1", b.Receive("b").ID)
	require.Nil(t, b.Receive("b"))
}

func TestReceiveMarksMessageRead(t *testing.T) {
	b := New(0)
	require.NoError(t, b.Send(msg("m1", "a", "b", domain.PriorityNormal)))

	got := b.Receive("b")
	require.Equal(t, domain.DeliveryRead, got.Status)
	require.NotNil(t, got.ReadAt)
}

func TestPeekIsNonDestructive(t *testing.T) {
	b := New(0)
	require.NoError(t, b.Send(msg("m1", "a", "b", domain.PriorityNormal)))

	peeked := b.Peek("b")
	require.Equal(t, "m1", peeked.ID)
	require.Equal(t, domain.DeliveryDelivered, peeked.Status)

	got := b.Receive("b")
	require.Equal(t, "m1", got.ID)
}

func TestSendWithNoRecipientGoesToDeadLetters(t *testing.T) {
	b := New(0)
	require.NoError(t, b.Send(msg("m1", "a", "", domain.PriorityNormal)))

	dl := b.GetDeadLetters()
	require.Len(t, dl, 1)
	require.Equal(t, domain.DeliveryDeadLettered, dl[0].Status)
}

func TestBroadcastFansOutToEveryAgentExceptSender(t *testing.T) {
	b := New(0)
	b.RegisterAgent("a")
	b.RegisterAgent("b")
	b.RegisterAgent("c")

	m := &domain.Message{ID: "bcast1", Sender: "a", Type: domain.MessageBroadcast, Priority: domain.PriorityNormal}
	require.NoError(t, b.Send(m))

	require.Nil(t, b.Receive("a"))
	require.NotNil(t, b.Receive("b"))
	require.NotNil(t, b.Receive("c"))
}

func TestExplicitRecipientsFanOutIndependently(t *testing.T) {
	b := New(0)
	m := &domain.Message{ID: "m1", Sender: "a", Recipients: []string{"b", "c"}, Type: domain.MessageInform, Priority: domain.PriorityNormal}
	require.NoError(t, b.Send(m))

	require.Equal(t, "m1#b", b.Receive("b").ID)
	require.Equal(t, "m1#c", b.Receive("c").ID)
}

func TestUnregisterAgentDeadLettersQueuedMessages(t *testing.T) {
	b := New(0)
	require.NoError(t, b.Send(msg("m1", "a", "b", domain.PriorityNormal)))
	b.UnregisterAgent("b")

	dl := b.GetDeadLetters()
	require.Len(t, dl, 1)
}

func TestMailboxCapacityDeadLettersOverflow(t *testing.T) {
	b := New(1)
	require.NoError(t, b.Send(msg("m1", "a", "b", domain.PriorityNormal)))
	require.NoError(t, b.Send(msg("m2", "a", "b", domain.PriorityNormal)))

	require.Len(t, b.GetDeadLetters(), 1)
	stats := b.GetStats()
	require.Equal(t, 1, stats.MailboxSizes["b"])
}

func TestSubscribeFiresSynchronouslyOnDelivery(t *testing.T) {
	b := New(0)
	var seen []string
	b.Subscribe("sub1", func(m *domain.Message) { seen = append(seen, m.ID) }, nil, nil)

	require.NoError(t, b.Send(msg("m1", "a", "b", domain.PriorityNormal)))
	require.Equal(t, []string{"m1"}, seen)
}

func TestSubscribeFiltersByMessageType(t *testing.T) {
	b := New(0)
	var seen []string
	b.Subscribe("sub1", func(m *domain.Message) { seen = append(seen, m.ID) }, []domain.MessageType{domain.MessageRequest}, nil)

	require.NoError(t, b.Send(msg("m1", "a", "b", domain.PriorityNormal)))
	require.Empty(t, seen)

	req := msg("m2", "a", "b", domain.PriorityNormal)
	req.Type = domain.MessageRequest
	require.NoError(t, b.Send(req))
	require.Equal(t, []string{"m2"}, seen)
}

func TestClearAgentMailboxEmptiesQueue(t *testing.T) {
	b := New(0)
	require.NoError(t, b.Send(msg("m1", "a", "b", domain.PriorityNormal)))
	b.ClearAgentMailbox("b")

	require.Nil(t, b.Receive("b"))
}

func TestGetStatsCountsLifetimeTotals(t *testing.T) {
	b := New(0)
	require.NoError(t, b.Send(msg("m1", "a", "b", domain.PriorityNormal)))
	b.Receive("b")

	stats := b.GetStats()
	require.Equal(t, 1, stats.TotalSent)
	require.Equal(t, 1, stats.TotalDelivered)
	require.Equal(t, 1, stats.TotalRead)
}
