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

// Package bus implements the in-process MessageBus (spec.md §4.5.1):
// durable, at-most-once routing of messages between registered agents
// through bounded priority mailboxes.
package bus

import (
	"log/slog"
	"sync"
	"time"

	"github.com/dmmproject/agentos/internal/apperr"
	"github.com/dmmproject/agentos/internal/domain"
)

const defaultMailboxCapacity = 1000

// priorityOrder is the dequeue order a mailbox drains in: CRITICAL, then
// HIGH, then NORMAL, then LOW, FIFO within each class.
var priorityOrder = []domain.TaskPriority{
	domain.PriorityCritical, domain.PriorityHigh, domain.PriorityNormal, domain.PriorityLow,
}

// mailbox is a bounded priority queue: one FIFO slice per priority class.
type mailbox struct {
	queues map[domain.TaskPriority][]*domain.Message
}

func newMailbox() *mailbox {
	return &mailbox{queues: make(map[domain.TaskPriority][]*domain.Message, len(priorityOrder))}
}

func (mb *mailbox) size() int {
	n := 0
	for _, q := range mb.queues {
		n += len(q)
	}
	return n
}

func (mb *mailbox) push(m *domain.Message) {
	mb.queues[m.Priority] = append(mb.queues[m.Priority], m)
}

// pop removes and returns the highest-priority, earliest-queued message.
func (mb *mailbox) pop() *domain.Message {
	for _, p := range priorityOrder {
		q := mb.queues[p]
		if len(q) > 0 {
			m := q[0]
			mb.queues[p] = q[1:]
			return m
		}
	}
	return nil
}

// peek returns the highest-priority, earliest-queued message without
// removing it.
func (mb *mailbox) peek() *domain.Message {
	for _, p := range priorityOrder {
		q := mb.queues[p]
		if len(q) > 0 {
			return q[0]
		}
	}
	return nil
}

// Stats summarizes the bus's current state (spec.md §4.5.1 get_stats).
type Stats struct {
	RegisteredAgents int
	MailboxSizes     map[string]int
	DeadLetterCount  int
	TotalSent        int
	TotalDelivered   int
	TotalRead        int
	TotalDeadLettered int
}

// subscription is a registered callback and the filters gating it.
type subscription struct {
	id           string
	callback     func(*domain.Message)
	messageTypes map[domain.MessageType]bool
	topicTags    map[string]bool
}

func (s subscription) matches(m *domain.Message) bool {
	if len(s.messageTypes) > 0 && !s.messageTypes[m.Type] {
		return false
	}
	if len(s.topicTags) > 0 {
		matched := false
		for _, tag := range m.Tags {
			if s.topicTags[tag] {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	return true
}

// Bus is the in-process MessageBus.
type Bus struct {
	mu              sync.Mutex
	mailboxes       map[string]*mailbox
	deadLetters     []*domain.Message
	subs            []subscription
	mailboxCapacity int

	totalSent         int
	totalDelivered    int
	totalRead         int
	totalDeadLettered int
}

// New builds an empty Bus. mailboxCapacity <= 0 defaults to 1000 queued
// messages per agent.
func New(mailboxCapacity int) *Bus {
	if mailboxCapacity <= 0 {
		mailboxCapacity = defaultMailboxCapacity
	}
	return &Bus{mailboxes: make(map[string]*mailbox), mailboxCapacity: mailboxCapacity}
}

// RegisterAgent creates an empty mailbox for id, if one doesn't already
// exist. Idempotent.
func (b *Bus) RegisterAgent(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.registerLocked(id)
}

func (b *Bus) registerLocked(id string) {
	if _, ok := b.mailboxes[id]; !ok {
		b.mailboxes[id] = newMailbox()
	}
}

// UnregisterAgent removes id's mailbox, dead-lettering whatever was still
// queued in it.
func (b *Bus) UnregisterAgent(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	mb, ok := b.mailboxes[id]
	if !ok {
		return
	}
	for _, p := range priorityOrder {
		for _, m := range mb.queues[p] {
			b.deadLetterLocked(m)
		}
	}
	delete(b.mailboxes, id)
}

// Send routes a message per spec.md §4.5.1's delivery semantics: an
// explicit Recipients list fans out independently to each; a single
// Recipient auto-registers the recipient if unknown; a BROADCAST message
// with no recipient goes to every registered agent except the sender; a
// message with no recipient and no Recipients and not BROADCAST goes to
// the dead-letter queue.
func (b *Bus) Send(m *domain.Message) error {
	if err := m.Validate(); err != nil {
		return apperr.Wrap(apperr.ValidationFailure, "bus.Send", "invalid message", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.totalSent++
	if m.QueuedAt.IsZero() {
		m.QueuedAt = time.Now().UTC()
	}
	m.Status = domain.DeliveryQueued

	switch {
	case len(m.Recipients) > 0:
		for _, r := range m.Recipients {
			b.deliverOneLocked(cloneFor(m, r))
		}
	case m.Recipient == "" && m.Type == domain.MessageBroadcast:
		for id := range b.mailboxes {
			if id == m.Sender {
				continue
			}
			b.deliverOneLocked(cloneFor(m, id))
		}
	case m.Recipient == "":
		b.deadLetterLocked(m)
	default:
		b.deliverOneLocked(m)
	}
	return nil
}

// cloneFor makes an independent per-recipient copy of a fan-out message so
// each recipient's delivery status tracks separately.
func cloneFor(m *domain.Message, recipient string) *domain.Message {
	c := *m
	c.ID = m.ID + "#" + recipient
	c.Recipient = recipient
	c.Recipients = nil
	return &c
}

func (b *Bus) deliverOneLocked(m *domain.Message) {
	b.registerLocked(m.Recipient)
	mb := b.mailboxes[m.Recipient]
	if mb.size() >= b.mailboxCapacity {
		b.deadLetterLocked(m)
		return
	}
	m.Status = domain.DeliveryDelivered
	now := time.Now().UTC()
	m.DeliveredAt = &now
	mb.push(m)
	b.totalDelivered++
	b.notifyLocked(m)
}

func (b *Bus) deadLetterLocked(m *domain.Message) {
	m.Status = domain.DeliveryDeadLettered
	b.deadLetters = append(b.deadLetters, m)
	b.totalDeadLettered++
}

// notifyLocked invokes every matching subscriber synchronously, in
// subscription order. Called with b.mu held; callbacks must not re-enter
// the bus. A callback that panics is recovered and logged, and the
// remaining subscribers are still notified.
func (b *Bus) notifyLocked(m *domain.Message) {
	for _, s := range b.subs {
		if s.matches(m) {
			func() {
				defer func() {
					if r := recover(); r != nil {
						slog.Error("bus: subscriber callback panicked", "subscriber", s.id, "message_id", m.ID, "panic", r)
					}
				}()
				s.callback(m)
			}()
		}
	}
}

// Receive pops the highest-priority, earliest-queued message from id's
// mailbox, marking it read. Returns nil if the mailbox is empty.
func (b *Bus) Receive(id string) *domain.Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	mb, ok := b.mailboxes[id]
	if !ok {
		return nil
	}
	m := mb.pop()
	if m == nil {
		return nil
	}
	m.Status = domain.DeliveryRead
	now := time.Now().UTC()
	m.ReadAt = &now
	b.totalRead++
	return m
}

// ReceiveAll pops up to limit messages from id's mailbox, in priority
// order. limit <= 0 drains the whole mailbox.
func (b *Bus) ReceiveAll(id string, limit int) []*domain.Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	mb, ok := b.mailboxes[id]
	if !ok {
		return nil
	}
	var out []*domain.Message
	for limit <= 0 || len(out) < limit {
		m := mb.pop()
		if m == nil {
			break
		}
		m.Status = domain.DeliveryRead
		now := time.Now().UTC()
		m.ReadAt = &now
		b.totalRead++
		out = append(out, m)
	}
	return out
}

// Peek returns the highest-priority message in id's mailbox without
// removing it.
func (b *Bus) Peek(id string) *domain.Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	mb, ok := b.mailboxes[id]
	if !ok {
		return nil
	}
	return mb.peek()
}

// Subscribe registers a callback invoked synchronously for every message
// delivered to any mailbox, filtered by messageTypes/topicTags (either may
// be nil/empty to match everything on that axis).
func (b *Bus) Subscribe(subscriberID string, callback func(*domain.Message), messageTypes []domain.MessageType, topicTags []string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	typeSet := make(map[domain.MessageType]bool, len(messageTypes))
	for _, t := range messageTypes {
		typeSet[t] = true
	}
	tagSet := make(map[string]bool, len(topicTags))
	for _, tag := range topicTags {
		tagSet[tag] = true
	}
	b.subs = append(b.subs, subscription{id: subscriberID, callback: callback, messageTypes: typeSet, topicTags: tagSet})
}

// Unsubscribe removes a previously registered subscriber.
func (b *Bus) Unsubscribe(subscriberID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.subs[:0]
	for _, s := range b.subs {
		if s.id != subscriberID {
			out = append(out, s)
		}
	}
	b.subs = out
}

// ClearAgentMailbox discards every message currently queued for id.
func (b *Bus) ClearAgentMailbox(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if mb, ok := b.mailboxes[id]; ok {
		b.mailboxes[id] = newMailbox()
		_ = mb
	}
}

// GetDeadLetters returns a snapshot of the dead-letter queue.
func (b *Bus) GetDeadLetters() []*domain.Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*domain.Message, len(b.deadLetters))
	copy(out, b.deadLetters)
	return out
}

// ClearDeadLetters empties the dead-letter queue.
func (b *Bus) ClearDeadLetters() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.deadLetters = nil
}

// GetStats summarizes the bus's current mailbox occupancy and lifetime
// counters.
func (b *Bus) GetStats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	sizes := make(map[string]int, len(b.mailboxes))
	for id, mb := range b.mailboxes {
		sizes[id] = mb.size()
	}
	return Stats{
		RegisteredAgents:  len(b.mailboxes),
		MailboxSizes:      sizes,
		DeadLetterCount:   len(b.deadLetters),
		TotalSent:         b.totalSent,
		TotalDelivered:    b.totalDelivered,
		TotalRead:         b.totalRead,
		TotalDeadLettered: b.totalDeadLettered,
	}
}
