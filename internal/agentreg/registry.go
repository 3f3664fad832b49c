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

// Package agentreg is the AgentRegistry (spec.md §4.6): the set of
// YAML-defined Agent entities available to the runtime, with search,
// filtering, enable/disable, and graph sync.
package agentreg

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/dmmproject/agentos/internal/apperr"
	"github.com/dmmproject/agentos/internal/domain"
	"github.com/dmmproject/agentos/internal/graphstore"
	"github.com/dmmproject/agentos/internal/registry"
)

// Loader produces Agent values from whatever source backs them (spec.md
// §6: "the core does not parse these formats directly"). The default
// YAML loader lives in internal/loader.
type Loader interface {
	LoadAll(ctx context.Context) ([]*domain.Agent, error)
	LoadByID(ctx context.Context, id string) (*domain.Agent, error)
}

// Registry is the AgentRegistry.
type Registry struct {
	mu     sync.RWMutex
	base   *registry.BaseRegistry[*domain.Agent]
	loader Loader
}

// New creates an empty Registry backed by loader.
func New(loader Loader) *Registry {
	return &Registry{base: registry.NewBaseRegistry[*domain.Agent](), loader: loader}
}

// LoadAll replaces the registry's contents with every agent the loader
// currently produces that passes Validate. An agent that fails Validate
// gets the error appended to its ValidationWarnings and is not registered.
// Skill and tool references are not checked against their registries.
func (r *Registry) LoadAll(ctx context.Context) error {
	agents, err := r.loader.LoadAll(ctx)
	if err != nil {
		return apperr.Wrap(apperr.StoreError, "agentreg.LoadAll", "load agents", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.base.Clear()
	for _, a := range agents {
		if err := a.Validate(); err != nil {
			a.ValidationWarnings = append(a.ValidationWarnings, err.Error())
			continue
		}
		_ = r.base.Register(a.ID, a)
	}
	return nil
}

// LoadByID re-reads a single agent from the loader and upserts it.
func (r *Registry) LoadByID(ctx context.Context, id string) error {
	a, err := r.loader.LoadByID(ctx, id)
	if err != nil {
		return apperr.Wrap(apperr.StoreError, "agentreg.LoadByID", "load agent "+id, err)
	}
	if err := a.Validate(); err != nil {
		return apperr.Wrap(apperr.ValidationFailure, "agentreg.LoadByID", "invalid agent "+id, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	_ = r.base.Remove(id)
	return r.base.Register(id, a)
}

// Reload is a full LoadAll, the "reload from disk" operation.
func (r *Registry) Reload(ctx context.Context) error {
	return r.LoadAll(ctx)
}

// FindByID returns the agent with id, if present.
func (r *Registry) FindByID(id string) (*domain.Agent, bool) {
	return r.base.Get(id)
}

// FindByCategory returns every agent whose Category matches exactly.
func (r *Registry) FindByCategory(category string) []*domain.Agent {
	var out []*domain.Agent
	for _, a := range r.base.List() {
		if a.Category == category {
			out = append(out, a)
		}
	}
	return out
}

// FindByTags returns agents carrying tags. matchAll requires every tag to
// be present; otherwise any one tag is sufficient.
func (r *Registry) FindByTags(tags []string, matchAll bool) []*domain.Agent {
	var out []*domain.Agent
	for _, a := range r.base.List() {
		if hasTags(a.Tags, tags, matchAll) {
			out = append(out, a)
		}
	}
	return out
}

func hasTags(have, want []string, matchAll bool) bool {
	if len(want) == 0 {
		return true
	}
	set := make(map[string]bool, len(have))
	for _, t := range have {
		set[t] = true
	}
	matched := 0
	for _, t := range want {
		if set[t] {
			matched++
		}
	}
	if matchAll {
		return matched == len(want)
	}
	return matched > 0
}

// Search scores every agent against query using spec.md §4.6's relevance
// formula (exact id match 100, name contains 50, name starts-with +25,
// description contains 20, tag contains 10), optionally restricted to
// enabled agents and a category filter, sorted by score descending.
func (r *Registry) Search(query string, enabledOnly bool, filters map[string]string) []domain.SearchMatch {
	q := strings.ToLower(strings.TrimSpace(query))
	var matches []domain.SearchMatch
	for _, a := range r.base.List() {
		if enabledOnly && !a.Enabled {
			continue
		}
		if cat, ok := filters["category"]; ok && cat != "" && a.Category != cat {
			continue
		}
		score, why := scoreAgent(a, q)
		if score > 0 {
			matches = append(matches, domain.SearchMatch{ID: a.ID, Score: score, Why: why})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	return matches
}

func scoreAgent(a *domain.Agent, q string) (int, string) {
	if q == "" {
		return 0, ""
	}
	score := 0
	var reasons []string

	if strings.EqualFold(a.ID, q) {
		score += 100
		reasons = append(reasons, "exact id match")
	}
	name := strings.ToLower(a.Name)
	if strings.Contains(name, q) {
		score += 50
		reasons = append(reasons, "name contains query")
		if strings.HasPrefix(name, q) {
			score += 25
			reasons = append(reasons, "name starts with query")
		}
	}
	if strings.Contains(strings.ToLower(a.Description), q) {
		score += 20
		reasons = append(reasons, "description contains query")
	}
	for _, tag := range a.Tags {
		if strings.Contains(strings.ToLower(tag), q) {
			score += 10
			reasons = append(reasons, "tag match: "+tag)
			break
		}
	}
	return score, strings.Join(reasons, "; ")
}

// Enable marks an agent enabled.
func (r *Registry) Enable(id string) error {
	return r.setEnabled(id, true)
}

// Disable marks an agent disabled.
func (r *Registry) Disable(id string) error {
	return r.setEnabled(id, false)
}

func (r *Registry) setEnabled(id string, enabled bool) error {
	a, ok := r.base.Get(id)
	if !ok {
		return apperr.New(apperr.NotFound, "agentreg.setEnabled", "agent not found: "+id)
	}
	a.Enabled = enabled
	return nil
}

// ListAll returns every registered agent.
func (r *Registry) ListAll() []*domain.Agent {
	return r.base.List()
}

// GetStats summarizes the registry's contents.
func (r *Registry) GetStats() domain.RegistryStats {
	stats := domain.RegistryStats{ByCategory: map[string]int{}}
	for _, a := range r.base.List() {
		stats.Total++
		if a.Enabled {
			stats.Enabled++
		} else {
			stats.Disabled++
		}
		if a.Category != "" {
			stats.ByCategory[a.Category]++
		}
	}
	return stats
}

// SyncToGraph upserts every loaded agent as an AgentNode and creates
// HAS_SKILL (weighted 1.0 for primary skills, 0.5 for secondary),
// HAS_TOOL, and PREFERS_SCOPE edges (spec.md §4.6). Idempotent: a second
// call with the same registry contents replaces, not duplicates, edges.
func (r *Registry) SyncToGraph(ctx context.Context, gs *graphstore.Store) error {
	for _, a := range r.base.List() {
		props := map[string]any{
			"name": a.Name, "category": a.Category, "enabled": a.Enabled, "tags": a.Tags,
		}
		if err := gs.UpsertNode(ctx, a.ID, domain.NodeAgent, props); err != nil {
			return err
		}

		for _, skillID := range a.Skills.Primary {
			if err := gs.CreateEdge(ctx, &domain.Edge{
				FromID: a.ID, FromType: domain.NodeAgent, ToID: skillID, ToType: domain.NodeSkill,
				Type: domain.EdgeHasSkill, Weight: 1.0, Description: "primary",
			}); err != nil {
				return err
			}
		}
		for _, skillID := range a.Skills.Secondary {
			if err := gs.CreateEdge(ctx, &domain.Edge{
				FromID: a.ID, FromType: domain.NodeAgent, ToID: skillID, ToType: domain.NodeSkill,
				Type: domain.EdgeHasSkill, Weight: 0.5, Description: "secondary",
			}); err != nil {
				return err
			}
		}
		for _, toolID := range a.Tools.Enabled {
			if err := gs.CreateEdge(ctx, &domain.Edge{
				FromID: a.ID, FromType: domain.NodeAgent, ToID: toolID, ToType: domain.NodeTool,
				Type: domain.EdgeHasTool, Weight: 1.0,
			}); err != nil {
				return err
			}
		}
		for _, scope := range a.Memory.PreferredScopes {
			if err := gs.CreateEdge(ctx, &domain.Edge{
				FromID: a.ID, FromType: domain.NodeAgent, ToID: string(scope), ToType: domain.NodeScope,
				Type: domain.EdgePrefersScope, Weight: 1.0,
			}); err != nil {
				return err
			}
		}
	}
	return nil
}
