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
	"github.com/dmmproject/agentos/internal/graphstore"
	"github.com/dmmproject/agentos/internal/memorystore"
)

// Resolver applies a ResolutionRequest to a Conflict, mutating memories as
// the action requires and appending a resolution_log entry (spec.md §4.3
// Resolver). Partial failures leave the conflict in_progress and report
// what completed, per the spec's failure semantics.
type Resolver struct {
	memories *memorystore.Store
	graph    *graphstore.Store
	store    *Store
	deferTTL time.Duration
}

// NewResolver builds a Resolver. deferTTLHours is the default suppression
// window for the `defer` action.
func NewResolver(memories *memorystore.Store, graph *graphstore.Store, store *Store, deferTTLHours int) *Resolver {
	return &Resolver{memories: memories, graph: graph, store: store, deferTTL: time.Duration(deferTTLHours) * time.Hour}
}

// Resolve applies req to its target conflict.
func (r *Resolver) Resolve(ctx context.Context, req domain.ResolutionRequest) (*domain.ResolutionLogEntry, error) {
	c, err := r.store.Get(ctx, req.ConflictID)
	if err != nil {
		return nil, err
	}

	c.Status = domain.ConflictInProgress
	if err := r.store.Update(ctx, c); err != nil {
		return nil, err
	}

	entry := &domain.ResolutionLogEntry{ConflictID: c.ID, Actor: req.ResolvedBy, Action: req.Action, CreatedAt: time.Now().UTC()}

	var resolveErr error
	switch req.Action {
	case domain.ActionDeprecate:
		resolveErr = r.deprecate(ctx, req, entry)
	case domain.ActionMerge:
		resolveErr = r.merge(ctx, c, req, entry)
	case domain.ActionClarify:
		resolveErr = r.clarify(ctx, c, req, entry)
	case domain.ActionDismiss:
		resolveErr = r.dismiss(ctx, c, req)
	case domain.ActionDefer:
		resolveErr = r.deferConflict(ctx, c, req)
	default:
		resolveErr = apperr.New(apperr.ValidationFailure, "conflict.Resolve", "unknown action: "+string(req.Action))
	}

	now := time.Now().UTC()
	if resolveErr != nil {
		entry.Error = resolveErr.Error()
		// c.Status stays in_progress per spec.md §4.3 failure semantics:
		// "the conflict stays in_progress, the audit log records the
		// partial actions, and the caller receives an error".
	} else if c.Status == domain.ConflictInProgress {
		// Actions that don't set a terminal status themselves (deprecate,
		// merge, clarify) resolve here; dismiss/defer set their own status.
		c.Status = domain.ConflictResolved
		c.ResolvedBy = req.ResolvedBy
		c.ResolvedAt = &now
		c.ResolutionAction = string(req.Action)
		if err := r.store.Update(ctx, c); err != nil {
			resolveErr = err
			entry.Error = err.Error()
		}
	}

	if logErr := r.store.AppendResolutionLog(ctx, entry); logErr != nil {
		if resolveErr == nil {
			resolveErr = logErr
		}
	}
	return entry, resolveErr
}

func (r *Resolver) deprecate(ctx context.Context, req domain.ResolutionRequest, entry *domain.ResolutionLogEntry) error {
	if req.TargetMemoryID == "" {
		return apperr.New(apperr.ValidationFailure, "conflict.deprecate", "target_memory_id required")
	}
	if err := r.memories.Deprecate(ctx, req.TargetMemoryID); err != nil {
		return err
	}
	entry.MemoriesDeprecated = append(entry.MemoriesDeprecated, req.TargetMemoryID)
	return nil
}

func (r *Resolver) merge(ctx context.Context, c *domain.Conflict, req domain.ResolutionRequest, entry *domain.ResolutionLogEntry) error {
	m1, err := r.memories.Get(ctx, c.M1ID)
	if err != nil {
		return err
	}
	m2, err := r.memories.Get(ctx, c.M2ID)
	if err != nil {
		return err
	}

	merged := &domain.Memory{
		ID:         fmt.Sprintf("mem_%s_%s", time.Now().UTC().Format("20060102"), uuid.NewString()[:8]),
		Directory:  m1.Directory,
		Title:      "Merged: " + m1.Title,
		Body:       req.MergedContent,
		Scope:      m1.Scope,
		Priority:   maxFloat(m1.Priority, m2.Priority),
		Confidence: domain.ConfidenceActive,
		Status:     domain.MemoryStatusActive,
		Tags:       unionTags(m1.Tags, m2.Tags),
		CreatedAt:  time.Now().UTC(),
		Supersedes: []string{m1.ID, m2.ID},
	}
	if err := r.memories.Create(ctx, merged); err != nil {
		return err
	}
	entry.MemoriesCreated = append(entry.MemoriesCreated, merged.ID)

	if err := r.memories.Deprecate(ctx, m1.ID); err != nil {
		return err
	}
	entry.MemoriesDeprecated = append(entry.MemoriesDeprecated, m1.ID)
	if err := r.memories.Deprecate(ctx, m2.ID); err != nil {
		return err
	}
	entry.MemoriesDeprecated = append(entry.MemoriesDeprecated, m2.ID)

	if r.graph != nil {
		for _, original := range []string{m1.ID, m2.ID} {
			edge := &domain.Edge{FromID: original, FromType: domain.NodeMemory, ToID: merged.ID, ToType: domain.NodeMemory, Type: domain.EdgeSupersedes, Weight: 1, Reason: "merged by conflict resolution"}
			if err := r.graph.CreateEdge(ctx, edge); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *Resolver) clarify(ctx context.Context, c *domain.Conflict, req domain.ResolutionRequest, entry *domain.ResolutionLogEntry) error {
	note := "\n\n---\nClarification (" + req.Reason + ")"
	for _, id := range []string{c.M1ID, c.M2ID} {
		m, err := r.memories.Get(ctx, id)
		if err != nil {
			return err
		}
		m.Body += note
		if err := r.memories.Update(ctx, m); err != nil {
			return err
		}
		entry.MemoriesModified = append(entry.MemoriesModified, id)
	}
	return nil
}

func (r *Resolver) dismiss(ctx context.Context, c *domain.Conflict, req domain.ResolutionRequest) error {
	c.Status = domain.ConflictDismissed
	c.DismissReason = req.Reason
	c.ResolvedBy = req.ResolvedBy
	return r.store.Update(ctx, c)
}

func (r *Resolver) deferConflict(ctx context.Context, c *domain.Conflict, req domain.ResolutionRequest) error {
	ttl := r.deferTTL
	until := time.Now().UTC().Add(ttl)
	c.SuppressedUntil = &until
	c.Status = domain.ConflictUnresolved
	return r.store.Update(ctx, c)
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func unionTags(a, b []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, t := range append(append([]string{}, a...), b...) {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}
