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
	"time"

	"github.com/google/uuid"

	"github.com/dmmproject/agentos/internal/apperr"
	"github.com/dmmproject/agentos/internal/config"
	"github.com/dmmproject/agentos/internal/domain"
	"github.com/dmmproject/agentos/internal/memorystore"
	"github.com/dmmproject/agentos/internal/obs"
)

// Detector orchestrates conflict scans: loading candidate memories, running
// every configured analyzer, and handing the merged result to the Merger
// (spec.md §4.3 Detector orchestration).
type Detector struct {
	memories  *memorystore.Store
	store     *Store
	merger    *Merger
	analyzers []Analyzer
	cfg       config.ConflictConfig
}

// New builds a Detector. llm may be nil; the rule-extraction analyzer is
// then skipped regardless of cfg.EnableRuleExtraction.
func New(memories *memorystore.Store, store *Store, llm conflictLLMClient, cfg config.ConflictConfig) *Detector {
	d := &Detector{
		memories: memories,
		store:    store,
		merger:   NewMerger(store, cfg.DuplicateThreshold, cfg.StalenessDays),
		cfg:      cfg,
	}
	d.analyzers = []Analyzer{
		&TagOverlapAnalyzer{Threshold: cfg.TagOverlapThreshold},
		&SemanticAnalyzer{Threshold: cfg.SemanticThreshold},
		&SupersessionAnalyzer{},
	}
	if cfg.EnableRuleExtraction && llm != nil {
		d.analyzers = append(d.analyzers, &RuleExtractionAnalyzer{Client: llm})
	}
	return d
}

// CheckProposal surfaces conflict candidates for a not-yet-committed
// write-back proposal without persisting them (spec.md §4.4.2's
// `check_proposal(content, path, tags)`): it synthesizes a transient
// in-memory Memory from the proposal and runs it against every existing
// memory through the same analyzers a full scan uses.
func (d *Detector) CheckProposal(ctx context.Context, draft *domain.Memory) ([]domain.ConflictCandidate, error) {
	existing, err := d.memories.List(ctx, memorystore.Filter{ExcludeDeprecated: true})
	if err != nil {
		return nil, apperr.Wrap(apperr.StoreError, "conflict.CheckProposal", "list memories", err)
	}

	pool := append([]*domain.Memory{draft}, existing...)
	var candidates []domain.ConflictCandidate
	for _, a := range d.analyzers {
		found, err := a.Analyze(ctx, pool, d.cfg.MaxCandidatesPerMethod)
		if err != nil {
			return nil, apperr.Wrap(apperr.UpstreamFailure, "conflict.CheckProposal", "analyzer failed", err)
		}
		for _, c := range found {
			if c.M1ID == draft.ID || c.M2ID == draft.ID {
				candidates = append(candidates, c)
			}
		}
	}
	return candidates, nil
}

// Scan runs a full or incremental conflict scan. targetMemoryID narrows an
// incremental scan to one memory's pairs; empty means a full scan across
// every active, non-ephemeral memory.
func (d *Detector) Scan(ctx context.Context, targetMemoryID string) (_ *domain.ConflictScan, err error) {
	start := time.Now().UTC()
	var candidateCount, conflictsFound int
	defer func() {
		obs.Global().RecordConflictScan(ctx, time.Since(start), conflictsFound, err)
	}()

	memories, err := d.memories.List(ctx, memorystore.Filter{ExcludeDeprecated: true, ExcludeEphemeral: true})
	if err != nil {
		return nil, apperr.Wrap(apperr.StoreError, "conflict.Scan", "list memories", err)
	}

	if targetMemoryID != "" {
		memories = pairsInvolving(memories, targetMemoryID)
	}

	byID := make(map[string]*domain.Memory, len(memories))
	for _, m := range memories {
		byID[m.ID] = m
	}

	methods := make([]domain.DetectionMethod, 0, len(d.analyzers))
	var allCandidates []domain.ConflictCandidate
	for _, a := range d.analyzers {
		methods = append(methods, a.Method())
		found, err := a.Analyze(ctx, memories, d.cfg.MaxCandidatesPerMethod)
		if err != nil {
			return nil, apperr.Wrap(apperr.UpstreamFailure, "conflict.Scan", "analyzer failed", err)
		}
		for _, c := range found {
			if targetMemoryID == "" || c.M1ID == targetMemoryID || c.M2ID == targetMemoryID {
				allCandidates = append(allCandidates, c)
			}
		}
	}
	candidateCount = len(allCandidates)

	scanID := uuid.NewString()
	newConflicts, existingConflicts, err := d.merger.Merge(ctx, scanID, allCandidates, byID)
	if err != nil {
		return nil, err
	}
	conflictsFound = newConflicts + existingConflicts

	scan := &domain.ConflictScan{
		ID: scanID, StartedAt: start, EndedAt: time.Now().UTC(), Methods: methods,
		TargetMemoryID: targetMemoryID, CandidateCount: candidateCount,
		NewConflicts: newConflicts, ExistingUpdated: existingConflicts,
	}
	if err := d.store.CreateScan(ctx, scan); err != nil {
		return nil, err
	}
	return scan, nil
}

func pairsInvolving(memories []*domain.Memory, targetID string) []*domain.Memory {
	var target *domain.Memory
	var rest []*domain.Memory
	for _, m := range memories {
		if m.ID == targetID {
			target = m
			continue
		}
		rest = append(rest, m)
	}
	if target == nil {
		return nil
	}
	return append([]*domain.Memory{target}, rest...)
}
