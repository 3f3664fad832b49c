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

// Package skillreg is the SkillRegistry (spec.md §4.6): the set of
// YAML-defined Skill entities, with search, filtering, enable/disable,
// and graph sync.
package skillreg

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

// Loader produces Skill values from whatever source backs them.
type Loader interface {
	LoadAll(ctx context.Context) ([]*domain.Skill, error)
	LoadByID(ctx context.Context, id string) (*domain.Skill, error)
}

// Registry is the SkillRegistry.
type Registry struct {
	mu     sync.RWMutex
	base   *registry.BaseRegistry[*domain.Skill]
	loader Loader
}

// New creates an empty Registry backed by loader.
func New(loader Loader) *Registry {
	return &Registry{base: registry.NewBaseRegistry[*domain.Skill](), loader: loader}
}

// LoadAll replaces the registry's contents with every skill the loader
// currently produces.
func (r *Registry) LoadAll(ctx context.Context) error {
	skills, err := r.loader.LoadAll(ctx)
	if err != nil {
		return apperr.Wrap(apperr.StoreError, "skillreg.LoadAll", "load skills", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.base.Clear()
	for _, s := range skills {
		if err := s.Validate(); err != nil {
			continue
		}
		_ = r.base.Register(s.ID, s)
	}
	return nil
}

// LoadByID re-reads a single skill from the loader and upserts it.
func (r *Registry) LoadByID(ctx context.Context, id string) error {
	s, err := r.loader.LoadByID(ctx, id)
	if err != nil {
		return apperr.Wrap(apperr.StoreError, "skillreg.LoadByID", "load skill "+id, err)
	}
	if err := s.Validate(); err != nil {
		return apperr.Wrap(apperr.ValidationFailure, "skillreg.LoadByID", "invalid skill "+id, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	_ = r.base.Remove(id)
	return r.base.Register(id, s)
}

// Reload is a full LoadAll.
func (r *Registry) Reload(ctx context.Context) error {
	return r.LoadAll(ctx)
}

// FindByID returns the skill with id, if present.
func (r *Registry) FindByID(id string) (*domain.Skill, bool) {
	return r.base.Get(id)
}

// FindByCategory returns every skill whose Category matches exactly.
func (r *Registry) FindByCategory(category string) []*domain.Skill {
	var out []*domain.Skill
	for _, s := range r.base.List() {
		if s.Category == category {
			out = append(out, s)
		}
	}
	return out
}

// FindByTags returns skills carrying tags, matchAll requiring every tag.
func (r *Registry) FindByTags(tags []string, matchAll bool) []*domain.Skill {
	var out []*domain.Skill
	for _, s := range r.base.List() {
		if hasTags(s.Tags, tags, matchAll) {
			out = append(out, s)
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

// Search scores every skill against query using spec.md §4.6's relevance
// formula.
func (r *Registry) Search(query string, enabledOnly bool, filters map[string]string) []domain.SearchMatch {
	q := strings.ToLower(strings.TrimSpace(query))
	var matches []domain.SearchMatch
	for _, s := range r.base.List() {
		if enabledOnly && !s.Enabled {
			continue
		}
		if cat, ok := filters["category"]; ok && cat != "" && s.Category != cat {
			continue
		}
		score, why := scoreSkill(s, q)
		if score > 0 {
			matches = append(matches, domain.SearchMatch{ID: s.ID, Score: score, Why: why})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	return matches
}

func scoreSkill(s *domain.Skill, q string) (int, string) {
	if q == "" {
		return 0, ""
	}
	score := 0
	var reasons []string

	if strings.EqualFold(s.ID, q) {
		score += 100
		reasons = append(reasons, "exact id match")
	}
	name := strings.ToLower(s.Name)
	if strings.Contains(name, q) {
		score += 50
		reasons = append(reasons, "name contains query")
		if strings.HasPrefix(name, q) {
			score += 25
			reasons = append(reasons, "name starts with query")
		}
	}
	if strings.Contains(strings.ToLower(s.Description), q) {
		score += 20
		reasons = append(reasons, "description contains query")
	}
	for _, tag := range s.Tags {
		if strings.Contains(strings.ToLower(tag), q) {
			score += 10
			reasons = append(reasons, "tag match: "+tag)
			break
		}
	}
	return score, strings.Join(reasons, "; ")
}

// Enable marks a skill enabled.
func (r *Registry) Enable(id string) error { return r.setEnabled(id, true) }

// Disable marks a skill disabled.
func (r *Registry) Disable(id string) error { return r.setEnabled(id, false) }

func (r *Registry) setEnabled(id string, enabled bool) error {
	s, ok := r.base.Get(id)
	if !ok {
		return apperr.New(apperr.NotFound, "skillreg.setEnabled", "skill not found: "+id)
	}
	s.Enabled = enabled
	return nil
}

// ListAll returns every registered skill.
func (r *Registry) ListAll() []*domain.Skill {
	return r.base.List()
}

// GetStats summarizes the registry's contents.
func (r *Registry) GetStats() domain.RegistryStats {
	stats := domain.RegistryStats{ByCategory: map[string]int{}}
	for _, s := range r.base.List() {
		stats.Total++
		if s.Enabled {
			stats.Enabled++
		} else {
			stats.Disabled++
		}
		if s.Category != "" {
			stats.ByCategory[s.Category]++
		}
	}
	return stats
}

// SyncToGraph upserts every loaded skill as a SkillNode and creates
// SKILL_DEPENDS_ON and USES_TOOL edges (spec.md §4.6).
func (r *Registry) SyncToGraph(ctx context.Context, gs *graphstore.Store) error {
	for _, s := range r.base.List() {
		props := map[string]any{
			"name": s.Name, "category": s.Category, "enabled": s.Enabled, "tags": s.Tags, "core": s.Core,
		}
		if err := gs.UpsertNode(ctx, s.ID, domain.NodeSkill, props); err != nil {
			return err
		}
		for _, dep := range s.DependsOn {
			if err := gs.CreateEdge(ctx, &domain.Edge{
				FromID: s.ID, FromType: domain.NodeSkill, ToID: dep, ToType: domain.NodeSkill,
				Type: domain.EdgeSkillDependsOn, Weight: 1.0,
			}); err != nil {
				return err
			}
		}
		for _, toolID := range s.UsesTools {
			if err := gs.CreateEdge(ctx, &domain.Edge{
				FromID: s.ID, FromType: domain.NodeSkill, ToID: toolID, ToType: domain.NodeTool,
				Type: domain.EdgeUsesTool, Weight: 1.0,
			}); err != nil {
				return err
			}
		}
	}
	return nil
}
