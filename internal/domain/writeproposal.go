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

// WriteProposalType is the kind of mutation a WriteProposal requests.
type WriteProposalType string

const (
	WriteCreate    WriteProposalType = "create"
	WriteUpdate    WriteProposalType = "update"
	WriteDeprecate WriteProposalType = "deprecate"
	WritePromote   WriteProposalType = "promote"
)

// WriteProposalStatus is the lifecycle status of a WriteProposal.
type WriteProposalStatus string

const (
	WriteStatusPending   WriteProposalStatus = "pending"
	WriteStatusInReview  WriteProposalStatus = "in_review"
	WriteStatusApproved  WriteProposalStatus = "approved"
	WriteStatusCommitted WriteProposalStatus = "committed"
	WriteStatusRejected  WriteProposalStatus = "rejected"
	WriteStatusModified  WriteProposalStatus = "modified"
	WriteStatusDeferred  WriteProposalStatus = "deferred"
	WriteStatusFailed    WriteProposalStatus = "failed"
)

// terminalWriteStatuses are statuses a WriteProposal can never leave
// (spec.md §3 invariant).
var terminalWriteStatuses = map[WriteProposalStatus]bool{
	WriteStatusCommitted: true,
	WriteStatusRejected:  true,
	WriteStatusFailed:    true,
}

// IsTerminalWriteStatus reports whether status is a terminal WriteProposal status.
func IsTerminalWriteStatus(status WriteProposalStatus) bool {
	return terminalWriteStatuses[status]
}

// openWriteStatuses are the statuses that count against the "at most one
// open proposal per path" invariant.
var openWriteStatuses = map[WriteProposalStatus]bool{
	WriteStatusPending:  true,
	WriteStatusInReview: true,
	WriteStatusApproved: true,
}

// IsOpenWriteStatus reports whether status blocks a new proposal for the
// same target path.
func IsOpenWriteStatus(status WriteProposalStatus) bool {
	return openWriteStatuses[status]
}

// WriteProposal is a pending mutation of the memory store awaiting review.
type WriteProposal struct {
	ID         string
	Type       WriteProposalType
	TargetPath string
	Reason     string

	// Content is the full proposed content (create) or patched content
	// (update); for deprecate/promote it may be empty.
	Content string
	Tags    []string
	Scope   Scope

	// PreImageHash is the content hash of TargetPath recorded at enqueue
	// time; the Committer requires the file to still match this hash
	// before writing (spec.md §4.4.3 stale_precondition check).
	PreImageHash string

	ProposedBy string
	RetryCount int
	Status     WriteProposalStatus
	CommitError string

	// ReviewNotes carries Reviewer annotations, e.g. the conflict
	// candidate list when a proposal is auto-escalated to in_review.
	ReviewNotes string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate checks the invariants in spec.md §3.
func (p *WriteProposal) Validate() error {
	if p.ID == "" {
		return errRequired("id")
	}
	if p.TargetPath == "" {
		return errRequired("target_path")
	}
	switch p.Type {
	case WriteCreate, WriteUpdate, WriteDeprecate, WritePromote:
	default:
		return errInvalid("type", string(p.Type))
	}
	return nil
}

// ReviewLogEntry is an immutable append-only record of a WriteProposal
// state change (spec.md §4.4.1).
type ReviewLogEntry struct {
	ProposalID string
	FromStatus WriteProposalStatus
	ToStatus   WriteProposalStatus
	Notes      string
	CreatedAt  time.Time
}
