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

import (
	"fmt"
	"sort"
	"time"
)

// ConflictType classifies a detected conflict (spec.md §4.3 classification
// rules).
type ConflictType string

const (
	ConflictContradictory ConflictType = "contradictory"
	ConflictDuplicate     ConflictType = "duplicate"
	ConflictSupersession  ConflictType = "supersession"
	ConflictScopeOverlap  ConflictType = "scope_overlap"
	ConflictStale         ConflictType = "stale"
)

// ConflictStatus is the lifecycle status of a Conflict.
type ConflictStatus string

const (
	ConflictUnresolved ConflictStatus = "unresolved"
	ConflictInProgress ConflictStatus = "in_progress"
	ConflictResolved   ConflictStatus = "resolved"
	ConflictDismissed  ConflictStatus = "dismissed"
)

// DetectionMethod names which analyzer raised a conflict.
type DetectionMethod string

const (
	MethodTagOverlap      DetectionMethod = "tag_overlap"
	MethodSemantic        DetectionMethod = "semantic"
	MethodSupersession    DetectionMethod = "supersession"
	MethodRuleExtraction  DetectionMethod = "rule_extraction"
)

// PairHash returns the conflict table's unique key for an unordered memory
// pair: the two ids sorted, joined by "|" (spec.md §4.3 Merger).
func PairHash(m1, m2 string) string {
	a, b := m1, m2
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("%s|%s", a, b)
}

// ConflictCandidate is a stateless analyzer's raw output before merging.
type ConflictCandidate struct {
	M1ID     string
	M2ID     string
	Method   DetectionMethod
	RawScore float64 // [0,1]
	Evidence string
}

// Conflict is a detected relation between two memories requiring attention.
type Conflict struct {
	ID             string
	Classification ConflictType
	Method         DetectionMethod
	Confidence     float64 // [0,1]
	Description    string
	Evidence       []string
	Status         ConflictStatus

	M1ID   string
	M2ID   string
	M1Role string
	M2Role string

	ResolutionAction string
	ResolvedBy       string
	ResolvedAt       *time.Time
	SuppressedUntil  *time.Time
	DismissReason    string

	ScanID    string
	CreatedAt time.Time
}

// PairHash returns this conflict's unordered-pair hash.
func (c *Conflict) PairHash() string { return PairHash(c.M1ID, c.M2ID) }

// Validate checks the invariants in spec.md §3.
func (c *Conflict) Validate() error {
	if c.ID == "" {
		return errRequired("id")
	}
	if c.M1ID == "" || c.M2ID == "" {
		return errRequired("m1_id/m2_id")
	}
	if c.M1ID == c.M2ID {
		return errInvalid("pair", "identical memory ids")
	}
	if c.Confidence < 0 || c.Confidence > 1 {
		return errInvalid("confidence", c.Confidence)
	}
	switch c.Status {
	case ConflictUnresolved, ConflictInProgress, ConflictResolved, ConflictDismissed:
	default:
		return errInvalid("status", string(c.Status))
	}
	return nil
}

// MergeEvidence appends new evidence strings, deduplicating.
func (c *Conflict) MergeEvidence(evidence ...string) {
	seen := make(map[string]bool, len(c.Evidence))
	for _, e := range c.Evidence {
		seen[e] = true
	}
	for _, e := range evidence {
		if !seen[e] {
			c.Evidence = append(c.Evidence, e)
			seen[e] = true
		}
	}
	sort.Strings(c.Evidence)
}

// ResolutionAction is the set of actions a ResolutionRequest may apply.
type ResolutionAction string

const (
	ActionDeprecate ResolutionAction = "deprecate"
	ActionMerge     ResolutionAction = "merge"
	ActionClarify   ResolutionAction = "clarify"
	ActionDismiss   ResolutionAction = "dismiss"
	ActionDefer     ResolutionAction = "defer"
)

// ResolutionRequest is the input to the Resolver (spec.md §4.3).
type ResolutionRequest struct {
	ConflictID     string
	Action         ResolutionAction
	TargetMemoryID string
	MergedContent  string
	Reason         string
	ResolvedBy     string
}

// ResolutionLogEntry records a completed (or partially completed, on
// failure) resolution.
type ResolutionLogEntry struct {
	ConflictID        string
	Actor             string
	Action            ResolutionAction
	MemoriesModified  []string
	MemoriesDeprecated []string
	MemoriesCreated   []string
	Error             string
	CreatedAt         time.Time
}

// ConflictScan is an audit row for one detector run (spec.md §4.3 scan
// modes).
type ConflictScan struct {
	ID              string
	StartedAt       time.Time
	EndedAt         time.Time
	Methods         []DetectionMethod
	TargetMemoryID  string // empty for full scans
	CandidateCount  int
	NewConflicts    int
	ExistingUpdated int
}
