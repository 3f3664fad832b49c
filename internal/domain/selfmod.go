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

// RiskLevel is the deterministic risk classification of a
// ModificationProposal (spec.md §4.5.3).
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

var riskRank = map[RiskLevel]int{RiskLow: 0, RiskMedium: 1, RiskHigh: 2, RiskCritical: 3}

// Rank returns r's severity rank for comparisons ("bump one level higher").
func (r RiskLevel) Rank() int { return riskRank[r] }

// RiskFromRank clamps an integer rank back into a RiskLevel.
func RiskFromRank(rank int) RiskLevel {
	switch {
	case rank <= 0:
		return RiskLow
	case rank == 1:
		return RiskMedium
	case rank == 2:
		return RiskHigh
	default:
		return RiskCritical
	}
}

// ChangeType is the kind of edit a CodeChange makes.
type ChangeType string

const (
	ChangeAdd    ChangeType = "add"
	ChangeModify ChangeType = "modify"
	ChangeDelete ChangeType = "delete"
)

// CodeChange is one file-level edit within a ModificationProposal.
type CodeChange struct {
	FilePath      string
	OriginalCode  string
	ModifiedCode  string
	ChangeType    ChangeType
	ElementName string // function/class/symbol name, when applicable
}

// LineCount returns the number of changed lines, used by risk assessment
// (spec.md §4.5.3: >200 lines bumps risk one level). It is a rough diff
// line count, not a true patch hunk count.
func (c CodeChange) LineCount() int {
	orig := splitLines(c.OriginalCode)
	mod := splitLines(c.ModifiedCode)
	n := len(orig)
	if len(mod) > n {
		n = len(mod)
	}
	return n
}

func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	lines := []string{""}
	for _, r := range s {
		if r == '\n' {
			lines = append(lines, "")
			continue
		}
		lines[len(lines)-1] += string(r)
	}
	return lines
}

// ReviewResult is one reviewer's verdict on a ModificationProposal.
type ReviewResult struct {
	Reviewer  string
	Approved  bool
	Blocking  bool
	Comment   string
	CreatedAt time.Time
}

// ModificationStatus is the lifecycle status of a ModificationProposal.
type ModificationStatus string

const (
	ModDraft         ModificationStatus = "draft"
	ModPendingReview ModificationStatus = "pending_review"
	ModInReview      ModificationStatus = "in_review"
	ModApproved      ModificationStatus = "approved"
	ModRejected      ModificationStatus = "rejected"
	ModApplied       ModificationStatus = "applied"
	ModFailedApply   ModificationStatus = "failed_apply"
	ModReverted      ModificationStatus = "reverted"
)

// ModificationProposal is a code change proposed by an agent, tracked
// separately from WriteProposal (which is memory content, not code).
type ModificationProposal struct {
	ID          string
	Title       string
	Description string
	Author      string

	Changes []CodeChange

	Risk               RiskLevel
	RequiredApprovals  int
	Reviews            []ReviewResult

	Status ModificationStatus

	CreatedAt time.Time
	AppliedAt *time.Time
	RevertedAt *time.Time
}

// Validate checks the fields independent of the apply/revert operations.
func (p *ModificationProposal) Validate() error {
	if p.ID == "" {
		return errRequired("id")
	}
	if len(p.Changes) == 0 {
		return errRequired("changes")
	}
	return nil
}

// ApprovalsCount counts approving reviews.
func (p *ModificationProposal) ApprovalsCount() int {
	n := 0
	for _, r := range p.Reviews {
		if r.Approved {
			n++
		}
	}
	return n
}

// HasBlockingComments reports whether any review is marked blocking.
func (p *ModificationProposal) HasBlockingComments() bool {
	for _, r := range p.Reviews {
		if r.Blocking {
			return true
		}
	}
	return false
}

// MeetsApprovalRule implements spec.md §4.5.3: approved iff
// approvals-count >= required_approvals AND zero blocking comments.
func (p *ModificationProposal) MeetsApprovalRule() bool {
	return p.ApprovalsCount() >= p.RequiredApprovals && !p.HasBlockingComments()
}
