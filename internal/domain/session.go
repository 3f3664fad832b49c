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

// AgentStateStatus is the runtime status of one agent within one session.
type AgentStateStatus string

const (
	AgentIdle       AgentStateStatus = "idle"
	AgentBusy       AgentStateStatus = "busy"
	AgentWaiting    AgentStateStatus = "waiting"
	AgentTerminated AgentStateStatus = "terminated"
	AgentError      AgentStateStatus = "error"
)

// AgentState is keyed by the composite (AgentID, SessionID) (spec.md §3).
type AgentState struct {
	AgentID   string
	SessionID string
	Status    AgentStateStatus

	TokenCount int
	APICalls   int

	// Context is an opaque blob the agent runtime persists between turns
	// (e.g. serialized conversation state). AgentOS does not interpret it.
	Context []byte

	UpdatedAt time.Time
}

// Session groups agent runtime activity.
type Session struct {
	ID        string
	Name      string
	StartedAt time.Time
	EndedAt   *time.Time

	MessageCount int
	TaskCount    int
}

// Active reports whether the session has not been ended.
func (s *Session) Active() bool { return s.EndedAt == nil }
