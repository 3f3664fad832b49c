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

// Package domain holds the entity types shared across AgentOS's
// subsystems: the knowledge graph store, the hybrid retrieval pipeline,
// conflict detection, the write-back pipeline, and the agent runtime.
// Keeping them in one package avoids import cycles between subsystems that
// all need to talk about, say, a Memory.
package domain

import "time"

// Scope classifies where a Memory is visible from (spec.md §3).
type Scope string

const (
	ScopeBaseline   Scope = "baseline"
	ScopeGlobal     Scope = "global"
	ScopeAgent      Scope = "agent"
	ScopeProject    Scope = "project"
	ScopeEphemeral  Scope = "ephemeral"
	ScopeDeprecated Scope = "deprecated"
)

func (s Scope) Valid() bool {
	switch s {
	case ScopeBaseline, ScopeGlobal, ScopeAgent, ScopeProject, ScopeEphemeral, ScopeDeprecated:
		return true
	default:
		return false
	}
}

// Confidence tracks how settled a Memory's content is.
type Confidence string

const (
	ConfidenceExperimental Confidence = "experimental"
	ConfidenceActive       Confidence = "active"
	ConfidenceStable       Confidence = "stable"
	ConfidenceDeprecated   Confidence = "deprecated"
)

func (c Confidence) Valid() bool {
	switch c {
	case ConfidenceExperimental, ConfidenceActive, ConfidenceStable, ConfidenceDeprecated:
		return true
	default:
		return false
	}
}

// MemoryStatus is the lifecycle status of a Memory.
type MemoryStatus string

const (
	MemoryStatusActive     MemoryStatus = "active"
	MemoryStatusDeprecated MemoryStatus = "deprecated"
)

func (s MemoryStatus) Valid() bool {
	return s == MemoryStatusActive || s == MemoryStatusDeprecated
}

// MaxMemoryTokens is the hard token ceiling for a single memory's body
// (spec.md §3, enforced again by the Reviewer per §4.4.2).
const MaxMemoryTokens = 2000

// Memory is a named unit of persistent knowledge with a content body and
// front-matter metadata (spec.md §3).
type Memory struct {
	ID        string // mem_<date>_<n>, globally unique, append-only
	Path      string
	Directory string
	Title     string
	Body      string

	Scope      Scope
	Priority   float64 // [0,1]
	Confidence Confidence
	Status     MemoryStatus
	Tags       []string
	TokenCount int

	CreatedAt time.Time
	LastUsed  time.Time
	UsageCount int

	ContentHash string

	// CompositeEmbedding is the embedding of the memory's own text.
	CompositeEmbedding []float32
	// DirectoryEmbedding is the average embedding of every memory sharing
	// Directory, used as a fallback signal when a memory is too new or too
	// short to carry a reliable embedding of its own.
	DirectoryEmbedding []float32

	Supersedes []string
	Related    []string
	Expires    *time.Time
}

// Validate checks the invariants named in spec.md §3.
func (m *Memory) Validate() error {
	if m.ID == "" {
		return errRequired("id")
	}
	if !m.Scope.Valid() {
		return errInvalid("scope", string(m.Scope))
	}
	if !m.Confidence.Valid() {
		return errInvalid("confidence", string(m.Confidence))
	}
	if !m.Status.Valid() {
		return errInvalid("status", string(m.Status))
	}
	if m.Priority < 0 || m.Priority > 1 {
		return errInvalid("priority", m.Priority)
	}
	if m.TokenCount > MaxMemoryTokens {
		return errInvalid("token_count", m.TokenCount)
	}
	return nil
}

// IncludedByDefault reports whether this memory is eligible for default
// (non-admin) retrieval: active memories, always including baseline scope
// regardless of other filters.
func (m *Memory) IncludedByDefault() bool {
	return m.Status == MemoryStatusActive
}
