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

// Package tasktracker observes the taskstore.Store and reports on it
// (spec.md §4.5.2): it emits events for state transitions, aggregates
// status across parent/child hierarchies, and monitors deadlines and
// timeouts. It never mutates the TaskStore itself.
package tasktracker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/dmmproject/agentos/internal/apperr"
	"github.com/dmmproject/agentos/internal/domain"
	"github.com/dmmproject/agentos/internal/taskstore"
)

const defaultRingSize = 10000

// Subscriber receives TaskEvents synchronously, in subscription order.
type Subscriber func(domain.TaskEvent)

type subscription struct {
	id string
	cb Subscriber
}

// Tracker emits and retains events for tasks tracked in a taskstore.Store.
type Tracker struct {
	store *taskstore.Store

	mu       sync.Mutex
	subs     []subscription
	ring     []domain.TaskEvent
	ringSize int
}

// New builds a Tracker observing store. ringSize <= 0 defaults to 10,000.
func New(store *taskstore.Store, ringSize int) *Tracker {
	if ringSize <= 0 {
		ringSize = defaultRingSize
	}
	return &Tracker{store: store, ringSize: ringSize}
}

// Subscribe registers a callback invoked synchronously for every emitted
// event, in the order subscriptions were added.
func (tr *Tracker) Subscribe(id string, cb Subscriber) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.subs = append(tr.subs, subscription{id: id, cb: cb})
}

// Unsubscribe removes a previously registered subscriber.
func (tr *Tracker) Unsubscribe(id string) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	out := tr.subs[:0]
	for _, s := range tr.subs {
		if s.id != id {
			out = append(out, s)
		}
	}
	tr.subs = out
}

// statusEventFor implements spec.md §4.5.2's status-change routing table.
func statusEventFor(from, to domain.TaskStatus) (domain.TaskEventType, bool) {
	switch {
	case (from == domain.TaskPending || from == domain.TaskScheduled) && to == domain.TaskRunning:
		return domain.EventStarted, true
	case from == domain.TaskRunning && to == domain.TaskCompleted:
		return domain.EventCompleted, true
	case from == domain.TaskRunning && to == domain.TaskFailed:
		return domain.EventFailed, true
	case from == domain.TaskBlocked && (to == domain.TaskScheduled || to == domain.TaskPending):
		return domain.EventUnblocked, true
	default:
		return "", false
	}
}

// RecordTransition emits the semantic event for a TaskStore status change,
// if the (from, to) pair maps to one. The caller is responsible for having
// already applied the transition in the TaskStore; the tracker only
// reports on it.
func (tr *Tracker) RecordTransition(taskID string, from, to domain.TaskStatus, data map[string]any) {
	evt, ok := statusEventFor(from, to)
	if !ok {
		return
	}
	tr.emit(domain.TaskEvent{TaskID: taskID, Type: evt, Data: data, Timestamp: time.Now().UTC()})
}

// RecordCreated emits a CREATED event for a newly persisted task.
func (tr *Tracker) RecordCreated(taskID string) {
	tr.emit(domain.TaskEvent{TaskID: taskID, Type: domain.EventCreated, Timestamp: time.Now().UTC()})
}

// RecordProgress emits a PROGRESS event carrying the new fraction complete.
func (tr *Tracker) RecordProgress(taskID string, progress float64) {
	tr.emit(domain.TaskEvent{
		TaskID: taskID, Type: domain.EventProgress,
		Data: map[string]any{"progress": progress}, Timestamp: time.Now().UTC(),
	})
}

// emit appends evt to the ring buffer and delivers it to every subscriber
// synchronously, in subscription order. A subscriber panic is caught,
// logged, and does not prevent delivery to the remaining subscribers
// (spec.md §4.5.2 failure semantics).
func (tr *Tracker) emit(evt domain.TaskEvent) {
	tr.mu.Lock()
	tr.ring = append(tr.ring, evt)
	if len(tr.ring) > tr.ringSize {
		tr.ring = tr.ring[len(tr.ring)-tr.ringSize:]
	}
	subs := make([]subscription, len(tr.subs))
	copy(subs, tr.subs)
	tr.mu.Unlock()

	for _, s := range subs {
		tr.deliver(s, evt)
	}
}

func (tr *Tracker) deliver(s subscription, evt domain.TaskEvent) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("tasktracker: subscriber panicked", "subscriber", s.id, "task_id", evt.TaskID, "panic", r)
		}
	}()
	s.cb(evt)
}

// GetEvents returns ring-buffered events matching the given filters. An
// empty taskID or eventType matches every event; limit <= 0 means no cap.
func (tr *Tracker) GetEvents(taskID string, eventType domain.TaskEventType, limit int) []domain.TaskEvent {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	var out []domain.TaskEvent
	for _, e := range tr.ring {
		if taskID != "" && e.TaskID != taskID {
			continue
		}
		if eventType != "" && e.Type != eventType {
			continue
		}
		out = append(out, e)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

// GetHierarchy returns a tree view of id and its subtasks, down to
// maxDepth levels (maxDepth <= 0 means unlimited).
func (tr *Tracker) GetHierarchy(ctx context.Context, id string, maxDepth int) (*domain.TaskHierarchy, error) {
	return tr.hierarchyAt(ctx, id, 0, maxDepth)
}

func (tr *Tracker) hierarchyAt(ctx context.Context, id string, depth, maxDepth int) (*domain.TaskHierarchy, error) {
	t, err := tr.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	node := &domain.TaskHierarchy{Task: t, Depth: depth}
	if maxDepth > 0 && depth >= maxDepth {
		return node, nil
	}
	children, err := tr.store.GetChildren(ctx, id)
	if err != nil {
		return nil, err
	}
	for _, c := range children {
		child, err := tr.hierarchyAt(ctx, c.ID, depth+1, maxDepth)
		if err != nil {
			return nil, err
		}
		node.Children = append(node.Children, child)
	}
	return node, nil
}

// GetRootTask walks id's parent chain to the top-level task.
func (tr *Tracker) GetRootTask(ctx context.Context, id string) (*domain.Task, error) {
	t, err := tr.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{t.ID: true}
	for t.ParentID != "" {
		if seen[t.ParentID] {
			return nil, apperr.New(apperr.Fatal, "tasktracker.GetRootTask", "parent cycle detected at "+t.ParentID)
		}
		parent, err := tr.store.Get(ctx, t.ParentID)
		if err != nil {
			return nil, err
		}
		seen[parent.ID] = true
		t = parent
	}
	return t, nil
}

// GetSiblings returns the other children of id's parent; an empty slice
// if id is a root task.
func (tr *Tracker) GetSiblings(ctx context.Context, id string) ([]*domain.Task, error) {
	t, err := tr.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.ParentID == "" {
		return nil, nil
	}
	children, err := tr.store.GetChildren(ctx, t.ParentID)
	if err != nil {
		return nil, err
	}
	var siblings []*domain.Task
	for _, c := range children {
		if c.ID != id {
			siblings = append(siblings, c)
		}
	}
	return siblings, nil
}

// AggregateStatus recursively walks id and its subtasks, counting
// per-status totals; overall progress is completed_count / total_count.
func (tr *Tracker) AggregateStatus(ctx context.Context, id string) (*domain.AggregateStatus, error) {
	agg := &domain.AggregateStatus{PerStatusCount: map[domain.TaskStatus]int{}}
	if err := tr.walkStatus(ctx, id, agg); err != nil {
		return nil, err
	}
	if agg.TotalCount > 0 {
		agg.OverallProgress = float64(agg.PerStatusCount[domain.TaskCompleted]) / float64(agg.TotalCount)
	}
	return agg, nil
}

func (tr *Tracker) walkStatus(ctx context.Context, id string, agg *domain.AggregateStatus) error {
	t, err := tr.store.Get(ctx, id)
	if err != nil {
		return err
	}
	agg.TotalCount++
	agg.PerStatusCount[t.Status]++

	children, err := tr.store.GetChildren(ctx, id)
	if err != nil {
		return err
	}
	for _, c := range children {
		if err := tr.walkStatus(ctx, c.ID, agg); err != nil {
			return err
		}
	}
	return nil
}

// CheckDeadlines returns (and emits DEADLINE_WARNING for) every open task
// whose deadline falls within warningMinutes of now.
func (tr *Tracker) CheckDeadlines(ctx context.Context, warningMinutes int) ([]*domain.Task, error) {
	tasks, err := tr.store.List(ctx)
	if err != nil {
		return nil, err
	}
	window := time.Now().UTC().Add(time.Duration(warningMinutes) * time.Minute)
	var warned []*domain.Task
	for _, t := range tasks {
		if t.Deadline == nil || isTerminalTaskStatus(t.Status) {
			continue
		}
		if !t.Deadline.After(window) {
			warned = append(warned, t)
			tr.emit(domain.TaskEvent{
				TaskID: t.ID, Type: domain.EventDeadlineWarning,
				Data: map[string]any{"deadline": *t.Deadline}, Timestamp: time.Now().UTC(),
			})
		}
	}
	return warned, nil
}

// CheckTimeouts returns (and emits TIMEOUT_WARNING for) every RUNNING task
// whose elapsed runtime exceeds its configured timeout.
func (tr *Tracker) CheckTimeouts(ctx context.Context) ([]*domain.Task, error) {
	tasks, err := tr.store.ListByStatus(ctx, domain.TaskRunning)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	var timedOut []*domain.Task
	for _, t := range tasks {
		if t.StartedAt == nil || t.Constraints.TimeoutSeconds <= 0 {
			continue
		}
		elapsed := now.Sub(*t.StartedAt)
		if elapsed > time.Duration(t.Constraints.TimeoutSeconds)*time.Second {
			timedOut = append(timedOut, t)
			tr.emit(domain.TaskEvent{
				TaskID: t.ID, Type: domain.EventTimeoutWarning,
				Data: map[string]any{"elapsed_seconds": elapsed.Seconds()}, Timestamp: now,
			})
		}
	}
	return timedOut, nil
}

func isTerminalTaskStatus(s domain.TaskStatus) bool {
	return s == domain.TaskCompleted || s == domain.TaskFailed || s == domain.TaskCancelled
}
