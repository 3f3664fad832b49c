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

package domain

import "time"

// TaskPriority orders scheduling among ready tasks, and message priority in
// the bus (spec.md §3, §4.5.1).
type TaskPriority string

const (
	PriorityCritical TaskPriority = "critical"
	PriorityHigh     TaskPriority = "high"
	PriorityNormal   TaskPriority = "normal"
	PriorityLow      TaskPriority = "low"
)

// priorityRank gives TaskPriority a total order for the bus's priority
// mailbox (higher rank dequeues first).
var priorityRank = map[TaskPriority]int{
	PriorityCritical: 3,
	PriorityHigh:     2,
	PriorityNormal:   1,
	PriorityLow:      0,
}

// Rank returns p's sort rank; higher values are higher priority.
func (p TaskPriority) Rank() int {
	if r, ok := priorityRank[p]; ok {
		return r
	}
	return priorityRank[PriorityNormal]
}

// TaskStatus is the lifecycle status of a Task.
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskScheduled TaskStatus = "scheduled"
	TaskRunning   TaskStatus = "running"
	TaskCompleted TaskStatus = "completed"
	TaskFailed    TaskStatus = "failed"
	TaskCancelled TaskStatus = "cancelled"
	TaskBlocked   TaskStatus = "blocked"
)

// TaskType distinguishes leaf work from composite (has subtasks) work.
type TaskType string

const (
	TaskTypeLeaf      TaskType = "leaf"
	TaskTypeComposite TaskType = "composite"
)

// TaskConstraints bounds a task's execution.
type TaskConstraints struct {
	TimeoutSeconds int
}

// Task is a unit of work tracked by the runtime.
type Task struct {
	ID       string
	Name     string
	Type     TaskType
	Priority TaskPriority
	Status   TaskStatus

	ParentID     string
	SubtaskIDs   []string
	DependencyIDs []string

	Inputs  map[string]any
	Outputs map[string]any

	Progress    float64 // [0,1]
	Deadline    *time.Time
	Constraints TaskConstraints

	AssignedAgentID string

	CreatedAt   time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
}

// Validate checks the invariants in spec.md §3 that are local to one task
// (acyclicity and parent/subtask progress consistency are checked by
// TaskStore across the whole graph).
func (t *Task) Validate() error {
	if t.ID == "" {
		return errRequired("id")
	}
	if t.Progress < 0 || t.Progress > 1 {
		return errInvalid("progress", t.Progress)
	}
	return nil
}

// TaskEventType is the set of events TaskTracker emits (spec.md §4.5.2).
type TaskEventType string

const (
	EventCreated         TaskEventType = "CREATED"
	EventStarted         TaskEventType = "STARTED"
	EventProgress        TaskEventType = "PROGRESS"
	EventCompleted       TaskEventType = "COMPLETED"
	EventFailed          TaskEventType = "FAILED"
	EventUnblocked       TaskEventType = "UNBLOCKED"
	EventDeadlineWarning TaskEventType = "DEADLINE_WARNING"
	EventTimeoutWarning  TaskEventType = "TIMEOUT_WARNING"
)

// TaskEvent is one entry in the tracker's ring buffer.
type TaskEvent struct {
	TaskID    string
	Type      TaskEventType
	Data      map[string]any
	Timestamp time.Time
}

// TaskHierarchy is a tree view of a task and its subtasks, returned by
// TaskTracker.GetHierarchy.
type TaskHierarchy struct {
	Task     *Task
	Children []*TaskHierarchy
	Depth    int
}

// AggregateStatus is the result of a recursive status rollup over a task
// and its subtasks.
type AggregateStatus struct {
	TotalCount     int
	PerStatusCount map[TaskStatus]int
	OverallProgress float64 // completed_count / total_count
}
