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

package writeback

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/dmmproject/agentos/internal/apperr"
	"github.com/dmmproject/agentos/internal/domain"
	"github.com/dmmproject/agentos/internal/tokencount"
)

// conflictChecker is the subset of *conflict.Detector the Reviewer needs;
// declared locally to avoid writeback importing conflict's full surface
// (mirrors the conflictLLMClient pattern in internal/conflict).
type conflictChecker interface {
	CheckProposal(ctx context.Context, draft *domain.Memory) ([]domain.ConflictCandidate, error)
}

// Reviewer applies spec.md §4.4.2's validation and conflict-surfacing rules
// to a pending WriteProposal.
type Reviewer struct {
	store            *Store
	conflicts        conflictChecker
	memoryRoot       string
	autoReviewConfidence float64
	maxTokens        int
}

// NewReviewer builds a Reviewer. memoryRoot is the directory every
// TargetPath must resolve under.
func NewReviewer(store *Store, conflicts conflictChecker, memoryRoot string, autoReviewConfidence float64, maxTokens int) *Reviewer {
	return &Reviewer{store: store, conflicts: conflicts, memoryRoot: memoryRoot, autoReviewConfidence: autoReviewConfidence, maxTokens: maxTokens}
}

// Review runs validation and conflict-surfacing over a pending proposal and
// transitions it to in_review, approved, or rejected. Deferred/modified
// transitions are applied explicitly via Defer/Modify by the caller (agent
// or operator), not decided here.
func (r *Reviewer) Review(ctx context.Context, proposalID string) error {
	p, err := r.store.Get(ctx, proposalID)
	if err != nil {
		return err
	}
	if p.Status != domain.WriteStatusPending {
		return apperr.New(apperr.ValidationFailure, "writeback.Review", "proposal is not pending: "+string(p.Status))
	}

	if reason, ok := r.validate(p); !ok {
		return r.store.UpdateStatus(ctx, p.ID, domain.WriteStatusRejected, reason)
	}

	if p.Type == domain.WriteCreate || p.Type == domain.WriteUpdate {
		candidates, err := r.conflicts.CheckProposal(ctx, draftMemory(p))
		if err != nil {
			return apperr.Wrap(apperr.UpstreamFailure, "writeback.Review", "check proposal", err)
		}
		if escalate, notes := escalationNotes(candidates, r.autoReviewConfidence); escalate {
			return r.store.UpdateStatus(ctx, p.ID, domain.WriteStatusInReview, notes)
		}
	}

	return r.store.UpdateStatus(ctx, p.ID, domain.WriteStatusApproved, "passed automatic review")
}

// Approve manually approves a proposal sitting in_review.
func (r *Reviewer) Approve(ctx context.Context, proposalID, notes string) error {
	return r.store.UpdateStatus(ctx, proposalID, domain.WriteStatusApproved, notes)
}

// Reject rejects a proposal with a reason, a terminal transition.
func (r *Reviewer) Reject(ctx context.Context, proposalID, reason string) error {
	return r.store.UpdateStatus(ctx, proposalID, domain.WriteStatusRejected, reason)
}

// Modify rewrites a proposal's content (e.g. a reviewer trimming it to fit
// the token budget) and re-queues it for another automatic pass.
func (r *Reviewer) Modify(ctx context.Context, proposalID, newContent, reason string) error {
	p, err := r.store.Get(ctx, proposalID)
	if err != nil {
		return err
	}
	p.Content = newContent
	p.Status = domain.WriteStatusModified
	if err := r.store.UpdateProposal(ctx, p); err != nil {
		return err
	}
	return r.store.UpdateStatus(ctx, proposalID, domain.WriteStatusPending, reason)
}

// Defer leaves a proposal open for a later review pass.
func (r *Reviewer) Defer(ctx context.Context, proposalID, reason string) error {
	return r.store.UpdateStatus(ctx, proposalID, domain.WriteStatusDeferred, reason)
}

// validate checks token count, path containment, tag well-formedness, and
// scope legality (spec.md §4.4.2).
func (r *Reviewer) validate(p *domain.WriteProposal) (reason string, ok bool) {
	maxTokens := r.maxTokens
	if maxTokens <= 0 {
		maxTokens = domain.MaxMemoryTokens
	}
	if tokencount.EstimateTokens(p.Content) > maxTokens {
		return fmt.Sprintf("content exceeds max token count %d", maxTokens), false
	}
	if !pathUnderRoot(r.memoryRoot, p.TargetPath) {
		return "target_path escapes the memory root", false
	}
	for _, tag := range p.Tags {
		if strings.TrimSpace(tag) == "" {
			return "malformed tag: empty tag", false
		}
	}
	if p.Type == domain.WriteCreate {
		if !p.Scope.Valid() {
			return "invalid scope: " + string(p.Scope), false
		}
	}
	return "", true
}

func pathUnderRoot(root, target string) bool {
	if root == "" {
		return true
	}
	if filepath.IsAbs(target) {
		return false
	}
	cleaned := filepath.Clean(target)
	if strings.HasPrefix(cleaned, "..") {
		return false
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return false
	}
	absTarget, err := filepath.Abs(filepath.Join(root, cleaned))
	if err != nil {
		return false
	}
	return strings.HasPrefix(absTarget, absRoot)
}

func draftMemory(p *domain.WriteProposal) *domain.Memory {
	return &domain.Memory{
		ID: "proposal:" + p.ID, Path: p.TargetPath, Body: p.Content,
		Scope: p.Scope, Tags: p.Tags, Status: domain.MemoryStatusActive, Confidence: domain.ConfidenceActive,
	}
}

// escalationNotes decides whether any candidate's confidence crosses the
// auto-review threshold and, if so, renders the candidate list as review
// notes (spec.md §4.4.2).
func escalationNotes(candidates []domain.ConflictCandidate, threshold float64) (bool, string) {
	var high []domain.ConflictCandidate
	for _, c := range candidates {
		if c.RawScore >= threshold {
			high = append(high, c)
		}
	}
	if len(high) == 0 {
		return false, ""
	}
	b, _ := json.Marshal(high)
	return true, string(b)
}
