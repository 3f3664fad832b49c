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

// Package selfmod implements the self-modification proposal manager
// (spec.md §4.5.3): deterministic risk assessment, review, apply, and
// revert of code changes an agent proposes against the running system.
package selfmod

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dmmproject/agentos/internal/apperr"
	"github.com/dmmproject/agentos/internal/domain"
)

// FileWriter abstracts the filesystem the Manager applies changes to, so
// Apply/Revert are testable without touching disk.
type FileWriter interface {
	Write(path, content string) error
}

// OSFileWriter is the default FileWriter, writing directly to the local
// filesystem.
type OSFileWriter struct{}

// Write creates or overwrites path with content, creating parent
// directories as needed.
func (OSFileWriter) Write(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return apperr.Wrap(apperr.StoreError, "selfmod.OSFileWriter.Write", "mkdir", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return apperr.Wrap(apperr.StoreError, "selfmod.OSFileWriter.Write", "write", err)
	}
	return nil
}

// Callback is invoked synchronously on a lifecycle transition.
type Callback func(*domain.ModificationProposal)

// Manager accepts, risk-assesses, reviews, applies, and reverts
// ModificationProposals.
type Manager struct {
	mu        sync.Mutex
	proposals map[string]*domain.ModificationProposal

	files FileWriter

	requiredApprovals  int
	autoApproveLowRisk bool
	requireTests       bool
	lineCountThreshold int
	corePathPrefixes   []string

	onSubmit  []Callback
	onApprove []Callback
	onReject  []Callback
	onApply   []Callback
	onRevert  []Callback
}

// New builds a Manager. requiredApprovals <= 0 defaults to 1;
// lineCountThreshold <= 0 defaults to 200.
func New(files FileWriter, requiredApprovals int, autoApproveLowRisk, requireTests bool, lineCountThreshold int, corePathPrefixes []string) *Manager {
	if requiredApprovals <= 0 {
		requiredApprovals = 1
	}
	if lineCountThreshold <= 0 {
		lineCountThreshold = 200
	}
	if len(corePathPrefixes) == 0 {
		corePathPrefixes = []string{"core/", "internal/", "__init__.py"}
	}
	return &Manager{
		proposals: make(map[string]*domain.ModificationProposal),
		files:     files, requiredApprovals: requiredApprovals, autoApproveLowRisk: autoApproveLowRisk,
		requireTests: requireTests, lineCountThreshold: lineCountThreshold, corePathPrefixes: corePathPrefixes,
	}
}

func (m *Manager) OnSubmit(cb Callback)  { m.onSubmit = append(m.onSubmit, cb) }
func (m *Manager) OnApprove(cb Callback) { m.onApprove = append(m.onApprove, cb) }
func (m *Manager) OnReject(cb Callback)  { m.onReject = append(m.onReject, cb) }
func (m *Manager) OnApply(cb Callback)   { m.onApply = append(m.onApply, cb) }
func (m *Manager) OnRevert(cb Callback)  { m.onRevert = append(m.onRevert, cb) }

// Load seeds the manager's in-memory table with a proposal restored from
// durable storage, without re-running risk assessment or firing lifecycle
// callbacks. Callers that only hold a proposal id (a fresh process that
// persisted it in an earlier invocation) call Load before Approve/Reject/
// Apply/Revert, which otherwise only know about proposals submitted in the
// current process.
func (m *Manager) Load(p *domain.ModificationProposal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.proposals[p.ID] = p
}

// Get fetches a proposal by id.
func (m *Manager) Get(id string) (*domain.ModificationProposal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.proposals[id]
	if !ok {
		return nil, apperr.New(apperr.NotFound, "selfmod.Get", "modification proposal not found: "+id)
	}
	return p, nil
}

// Submit accepts a DRAFT proposal, assesses its risk, transitions it to
// PENDING_REVIEW, and auto-approves it if configured and eligible
// (spec.md §4.5.3).
func (m *Manager) Submit(p *domain.ModificationProposal, testsAttached bool) error {
	if err := p.Validate(); err != nil {
		return apperr.Wrap(apperr.ValidationFailure, "selfmod.Submit", "invalid proposal", err)
	}

	m.mu.Lock()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	if p.RequiredApprovals == 0 {
		p.RequiredApprovals = m.requiredApprovals
	}
	p.Risk = m.assessRisk(p)
	p.Status = domain.ModPendingReview
	m.proposals[p.ID] = p
	m.mu.Unlock()

	m.fire(m.onSubmit, p)

	if m.autoApproveLowRisk && p.Risk == domain.RiskLow && (!m.requireTests || testsAttached) {
		return m.Approve(p.ID, "system")
	}
	return nil
}

// assessRisk implements spec.md §4.5.3's deterministic risk rules.
func (m *Manager) assessRisk(p *domain.ModificationProposal) domain.RiskLevel {
	rank := domain.RiskLow.Rank()

	totalLines := 0
	touchesCore := false
	deletesSymbol := false
	for _, c := range p.Changes {
		totalLines += c.LineCount()
		if m.touchesCorePath(c.FilePath) {
			touchesCore = true
		}
		if c.ChangeType == domain.ChangeDelete && c.ElementName != "" {
			deletesSymbol = true
		}
	}

	if touchesCore {
		rank++
	}
	if totalLines > m.lineCountThreshold {
		rank++
	}
	risk := domain.RiskFromRank(rank)
	if deletesSymbol && risk.Rank() < domain.RiskHigh.Rank() {
		risk = domain.RiskHigh
	}
	if p.HasBlockingComments() && risk.Rank() < domain.RiskMedium.Rank() {
		risk = domain.RiskMedium
	}
	return risk
}

func (m *Manager) touchesCorePath(path string) bool {
	for _, prefix := range m.corePathPrefixes {
		if strings.Contains(path, prefix) {
			return true
		}
	}
	return false
}

// Review appends a reviewer's verdict and, if the approval rule is now
// met, approves the proposal.
func (m *Manager) Review(id string, result domain.ReviewResult) error {
	m.mu.Lock()
	p, ok := m.proposals[id]
	if !ok {
		m.mu.Unlock()
		return apperr.New(apperr.NotFound, "selfmod.Review", "modification proposal not found: "+id)
	}
	if result.CreatedAt.IsZero() {
		result.CreatedAt = time.Now().UTC()
	}
	p.Reviews = append(p.Reviews, result)
	if p.Status == domain.ModPendingReview {
		p.Status = domain.ModInReview
	}
	meetsRule := p.MeetsApprovalRule()
	m.mu.Unlock()

	if meetsRule {
		return m.Approve(id, result.Reviewer)
	}
	return nil
}

// Approve transitions a proposal to APPROVED.
func (m *Manager) Approve(id, approver string) error {
	m.mu.Lock()
	p, ok := m.proposals[id]
	if !ok {
		m.mu.Unlock()
		return apperr.New(apperr.NotFound, "selfmod.Approve", "modification proposal not found: "+id)
	}
	p.Status = domain.ModApproved
	m.mu.Unlock()
	m.fire(m.onApprove, p)
	return nil
}

// Reject transitions a proposal to REJECTED, a terminal status.
func (m *Manager) Reject(id, reason string) error {
	m.mu.Lock()
	p, ok := m.proposals[id]
	if !ok {
		m.mu.Unlock()
		return apperr.New(apperr.NotFound, "selfmod.Reject", "modification proposal not found: "+id)
	}
	p.Status = domain.ModRejected
	p.Reviews = append(p.Reviews, domain.ReviewResult{Reviewer: "system", Approved: false, Blocking: true, Comment: reason, CreatedAt: time.Now().UTC()})
	m.mu.Unlock()
	m.fire(m.onReject, p)
	return nil
}

// Apply writes every change's ModifiedCode to its FilePath, in declared
// order. OriginalCode is assumed already captured on each CodeChange (the
// revert pre-image); Apply only performs the forward write. If any write
// fails, Apply stops, marks the proposal FAILED_APPLY, and leaves
// already-written files in place (spec.md §4.5.3).
func (m *Manager) Apply(ctx context.Context, id string) error {
	m.mu.Lock()
	p, ok := m.proposals[id]
	if !ok {
		m.mu.Unlock()
		return apperr.New(apperr.NotFound, "selfmod.Apply", "modification proposal not found: "+id)
	}
	if p.Status != domain.ModApproved {
		m.mu.Unlock()
		return apperr.New(apperr.ValidationFailure, "selfmod.Apply", "proposal is not approved: "+string(p.Status))
	}
	changes := p.Changes
	m.mu.Unlock()

	for _, c := range changes {
		select {
		case <-ctx.Done():
			m.markFailedApply(id)
			return apperr.Wrap(apperr.Cancelled, "selfmod.Apply", "context cancelled", ctx.Err())
		default:
		}
		if err := m.files.Write(c.FilePath, c.ModifiedCode); err != nil {
			m.markFailedApply(id)
			return apperr.Wrap(apperr.StoreError, "selfmod.Apply", "write "+c.FilePath, err)
		}
	}

	m.mu.Lock()
	now := time.Now().UTC()
	p.Status = domain.ModApplied
	p.AppliedAt = &now
	m.mu.Unlock()
	m.fire(m.onApply, p)
	return nil
}

func (m *Manager) markFailedApply(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.proposals[id]; ok {
		p.Status = domain.ModFailedApply
	}
}

// Revert writes every change's OriginalCode back to its FilePath, in
// reverse declared order. Valid only from APPLIED.
func (m *Manager) Revert(id string) error {
	m.mu.Lock()
	p, ok := m.proposals[id]
	if !ok {
		m.mu.Unlock()
		return apperr.New(apperr.NotFound, "selfmod.Revert", "modification proposal not found: "+id)
	}
	if p.Status != domain.ModApplied {
		m.mu.Unlock()
		return apperr.New(apperr.ValidationFailure, "selfmod.Revert", "proposal is not applied: "+string(p.Status))
	}
	changes := p.Changes
	m.mu.Unlock()

	for i := len(changes) - 1; i >= 0; i-- {
		c := changes[i]
		if err := m.files.Write(c.FilePath, c.OriginalCode); err != nil {
			return apperr.Wrap(apperr.StoreError, "selfmod.Revert", "write "+c.FilePath, err)
		}
	}

	m.mu.Lock()
	now := time.Now().UTC()
	p.Status = domain.ModReverted
	p.RevertedAt = &now
	m.mu.Unlock()
	m.fire(m.onRevert, p)
	return nil
}

func (m *Manager) fire(callbacks []Callback, p *domain.ModificationProposal) {
	for _, cb := range callbacks {
		cb(p)
	}
}
