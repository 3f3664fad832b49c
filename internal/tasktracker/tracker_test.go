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

package tasktracker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dmmproject/agentos/internal/domain"
	"github.com/dmmproject/agentos/internal/taskstore"
)

func newTestTracker(t *testing.T) (*Tracker, *taskstore.Store) {
	t.Helper()
	s, err := taskstore.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return New(s, 100), s
}

func seedTask(t *testing.T, s *taskstore.Store, id, parentID string, status domain.TaskStatus) *domain.Task {
	t.Helper()
	ctx := context.Background()
	task := &domain.Task{ID: id, Name: id, Type: domain.TaskTypeLeaf, Priority: domain.PriorityNormal, Status: status, ParentID: parentID}
	require.NoError(t, s.Create(ctx, task))
	return task
}

func TestStatusEventForRoutingTable(t *testing.T) {
	evt, ok := statusEventFor(domain.TaskPending, domain.TaskRunning)
	require.True(t, ok)
	require.Equal(t, domain.EventStarted, evt)

	evt, ok = statusEventFor(domain.TaskRunning, domain.TaskCompleted)
	require.True(t, ok)
	require.Equal(t, domain.EventCompleted, evt)

	evt, ok = statusEventFor(domain.TaskRunning, domain.TaskFailed)
	require.True(t, ok)
	require.Equal(t, domain.EventFailed, evt)

	evt, ok = statusEventFor(domain.TaskBlocked, domain.TaskScheduled)
	require.True(t, ok)
	require.Equal(t, domain.EventUnblocked, evt)

	_, ok = statusEventFor(domain.TaskPending, domain.TaskBlocked)
	require.False(t, ok)
}

func TestRecordTransitionDeliversToSubscribersInOrder(t *testing.T) {
	tr, _ := newTestTracker(t)
	var order []string
	tr.Subscribe("a", func(domain.TaskEvent) { order = append(order, "a") })
	tr.Subscribe("b", func(domain.TaskEvent) { order = append(order, "b") })

	tr.RecordTransition("t1", domain.TaskPending, domain.TaskRunning, nil)

	require.Equal(t, []string{"a", "b"}, order)
	events := tr.GetEvents("t1", "", 0)
	require.Len(t, events, 1)
	require.Equal(t, domain.EventStarted, events[0].Type)
}

func TestSubscriberPanicDoesNotBlockOthers(t *testing.T) {
	tr, _ := newTestTracker(t)
	var delivered bool
	tr.Subscribe("panicky", func(domain.TaskEvent) { panic("boom") })
	tr.Subscribe("ok", func(domain.TaskEvent) { delivered = true })

	require.NotPanics(t, func() {
		tr.RecordTransition("t1", domain.TaskRunning, domain.TaskCompleted, nil)
	})
	require.True(t, delivered)
}

func TestRingBufferTrimsToCap(t *testing.T) {
	tr, _ := newTestTracker(t)
	tr.ringSize = 3
	for i := 0; i < 5; i++ {
		tr.RecordCreated("t1")
	}
	require.Len(t, tr.GetEvents("", "", 0), 3)
}

func TestGetHierarchyBuildsTree(t *testing.T) {
	ctx := context.Background()
	tr, s := newTestTracker(t)
	seedTask(t, s, "root", "", domain.TaskPending)
	seedTask(t, s, "child1", "root", domain.TaskPending)
	seedTask(t, s, "child2", "root", domain.TaskPending)
	seedTask(t, s, "grandchild", "child1", domain.TaskPending)

	tree, err := tr.GetHierarchy(ctx, "root", 0)
	require.NoError(t, err)
	require.Equal(t, "root", tree.Task.ID)
	require.Len(t, tree.Children, 2)
}

func TestGetHierarchyRespectsMaxDepth(t *testing.T) {
	ctx := context.Background()
	tr, s := newTestTracker(t)
	seedTask(t, s, "root", "", domain.TaskPending)
	seedTask(t, s, "child", "root", domain.TaskPending)
	seedTask(t, s, "grandchild", "child", domain.TaskPending)

	tree, err := tr.GetHierarchy(ctx, "root", 1)
	require.NoError(t, err)
	require.Len(t, tree.Children, 1)
	require.Empty(t, tree.Children[0].Children)
}

func TestGetRootTaskWalksParentChain(t *testing.T) {
	ctx := context.Background()
	tr, s := newTestTracker(t)
	seedTask(t, s, "root", "", domain.TaskPending)
	seedTask(t, s, "mid", "root", domain.TaskPending)
	seedTask(t, s, "leaf", "mid", domain.TaskPending)

	root, err := tr.GetRootTask(ctx, "leaf")
	require.NoError(t, err)
	require.Equal(t, "root", root.ID)
}

func TestGetSiblingsExcludesSelf(t *testing.T) {
	ctx := context.Background()
	tr, s := newTestTracker(t)
	seedTask(t, s, "root", "", domain.TaskPending)
	seedTask(t, s, "a", "root", domain.TaskPending)
	seedTask(t, s, "b", "root", domain.TaskPending)

	siblings, err := tr.GetSiblings(ctx, "a")
	require.NoError(t, err)
	require.Len(t, siblings, 1)
	require.Equal(t, "b", siblings[0].ID)
}

func TestAggregateStatusCountsRecursively(t *testing.T) {
	ctx := context.Background()
	tr, s := newTestTracker(t)
	seedTask(t, s, "root", "", domain.TaskRunning)
	seedTask(t, s, "c1", "root", domain.TaskCompleted)
	seedTask(t, s, "c2", "root", domain.TaskCompleted)
	seedTask(t, s, "c3", "root", domain.TaskFailed)

	agg, err := tr.AggregateStatus(ctx, "root")
	require.NoError(t, err)
	require.Equal(t, 4, agg.TotalCount)
	require.Equal(t, 2, agg.PerStatusCount[domain.TaskCompleted])
	require.InDelta(t, 0.5, agg.OverallProgress, 0.001)
}

func TestCheckDeadlinesWarnsWithinWindow(t *testing.T) {
	ctx := context.Background()
	tr, s := newTestTracker(t)
	soon := time.Now().UTC().Add(5 * time.Minute)
	task := seedTask(t, s, "t1", "", domain.TaskRunning)
	task.Deadline = &soon
	require.NoError(t, s.Update(ctx, task))

	warned, err := tr.CheckDeadlines(ctx, 10)
	require.NoError(t, err)
	require.Len(t, warned, 1)

	events := tr.GetEvents("t1", domain.EventDeadlineWarning, 0)
	require.Len(t, events, 1)
}

func TestCheckTimeoutsFlagsOverrunningTasks(t *testing.T) {
	ctx := context.Background()
	tr, s := newTestTracker(t)
	started := time.Now().UTC().Add(-1 * time.Hour)
	task := seedTask(t, s, "t1", "", domain.TaskRunning)
	task.StartedAt = &started
	task.Constraints.TimeoutSeconds = 60
	require.NoError(t, s.Update(ctx, task))

	timedOut, err := tr.CheckTimeouts(ctx)
	require.NoError(t, err)
	require.Len(t, timedOut, 1)

	events := tr.GetEvents("t1", domain.EventTimeoutWarning, 0)
	require.Len(t, events, 1)
}
