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

package conflict

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dmmproject/agentos/internal/apperr"
	"github.com/dmmproject/agentos/internal/domain"
)

// Merger groups candidates by unordered memory pair and classifies,
// creates, or updates the persisted Conflict (spec.md §4.3 Merger).
type Merger struct {
	store *Store
	cfg   mergerConfig
}

type mergerConfig struct {
	DuplicateThreshold float64
	StalenessDays      int
}

// NewMerger builds a Merger.
func NewMerger(store *Store, duplicateThreshold float64, stalenessDays int) *Merger {
	return &Merger{store: store, cfg: mergerConfig{DuplicateThreshold: duplicateThreshold, StalenessDays: stalenessDays}}
}

// Merge groups candidates by pair hash, classifies each group, and
// persists either an update to an existing non-dismissed conflict or a new
// Conflict. Returns (new_conflicts, existing_conflicts).
func (m *Merger) Merge(ctx context.Context, scanID string, candidates []domain.ConflictCandidate, memoriesByID map[string]*domain.Memory) (newConflicts, existingConflicts int, err error) {
	now := time.Now().UTC()
	groups := map[string][]domain.ConflictCandidate{}
	for _, c := range candidates {
		groups[domain.PairHash(c.M1ID, c.M2ID)] = append(groups[domain.PairHash(c.M1ID, c.M2ID)], c)
	}

	for pairHash, group := range groups {
		existing, getErr := m.store.GetByPairHash(ctx, pairHash)
		if getErr != nil && !apperr.IsKind(getErr, apperr.NotFound) {
			return newConflicts, existingConflicts, getErr
		}

		if existing != nil && existing.Status != domain.ConflictDismissed {
			existing.Confidence = maxRawScore(existing.Confidence, group)
			for _, c := range group {
				existing.MergeEvidence(c.Evidence)
			}
			if err := m.store.Update(ctx, existing); err != nil {
				return newConflicts, existingConflicts, err
			}
			existingConflicts++
			continue
		}

		classification, method := classify(group, memoriesByID, m.cfg, now)
		conflict := &domain.Conflict{
			ID:             uuid.NewString(),
			Classification: classification,
			Method:         method,
			Confidence:     maxRawScore(0, group),
			Description:    describe(classification, group),
			Status:         domain.ConflictUnresolved,
			M1ID:           group[0].M1ID,
			M2ID:           group[0].M2ID,
			ScanID:         scanID,
			CreatedAt:      now,
		}
		for _, c := range group {
			conflict.MergeEvidence(c.Evidence)
		}
		if err := m.store.Create(ctx, conflict); err != nil {
			return newConflicts, existingConflicts, err
		}
		newConflicts++
	}
	return newConflicts, existingConflicts, nil
}

func maxRawScore(current float64, group []domain.ConflictCandidate) float64 {
	max := current
	for _, c := range group {
		if c.RawScore > max {
			max = c.RawScore
		}
	}
	return max
}

func hasMethod(group []domain.ConflictCandidate, method domain.DetectionMethod) (float64, bool) {
	var best float64
	var found bool
	for _, c := range group {
		if c.Method == method {
			found = true
			if c.RawScore > best {
				best = c.RawScore
			}
		}
	}
	return best, found
}

// classify applies spec.md §4.3's classification rules in priority order:
// supersession evidence beats a semantic duplicate match, which beats a
// rule-extraction contradiction, which beats a tag-overlap-only scope
// match, with staleness as the last-resort classification when nothing
// sharper matched.
func classify(group []domain.ConflictCandidate, memoriesByID map[string]*domain.Memory, cfg mergerConfig, now time.Time) (domain.ConflictType, domain.DetectionMethod) {
	if _, ok := hasMethod(group, domain.MethodSupersession); ok {
		return domain.ConflictSupersession, domain.MethodSupersession
	}

	m1, m2 := memoriesByID[group[0].M1ID], memoriesByID[group[0].M2ID]
	if score, ok := hasMethod(group, domain.MethodSemantic); ok && score >= cfg.DuplicateThreshold && m1 != nil && m2 != nil && m1.Scope == m2.Scope {
		return domain.ConflictDuplicate, domain.MethodSemantic
	}

	if _, ok := hasMethod(group, domain.MethodRuleExtraction); ok {
		return domain.ConflictContradictory, domain.MethodRuleExtraction
	}

	_, hasSemantic := hasMethod(group, domain.MethodSemantic)
	if _, ok := hasMethod(group, domain.MethodTagOverlap); ok && !hasSemantic {
		return domain.ConflictScopeOverlap, domain.MethodTagOverlap
	}

	if isStale(m1, cfg.StalenessDays, now) || isStale(m2, cfg.StalenessDays, now) {
		return domain.ConflictStale, dominantMethod(group)
	}

	return domain.ConflictContradictory, dominantMethod(group)
}

func isStale(m *domain.Memory, stalenessDays int, now time.Time) bool {
	if m == nil || m.LastUsed.IsZero() || stalenessDays <= 0 {
		return false
	}
	return m.LastUsed.Before(now.AddDate(0, 0, -stalenessDays))
}

// dominantMethod picks the method with the highest raw score in the group.
func dominantMethod(group []domain.ConflictCandidate) domain.DetectionMethod {
	best := group[0]
	for _, c := range group[1:] {
		if c.RawScore > best.RawScore {
			best = c
		}
	}
	return best.Method
}

func describe(classification domain.ConflictType, group []domain.ConflictCandidate) string {
	return fmt.Sprintf("%s conflict detected via %s (score %.2f)", classification, group[0].Method, maxRawScore(0, group))
}
