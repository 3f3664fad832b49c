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

// Package toolreg is the ToolRegistry (spec.md §4.6): the set of
// YAML-defined Tool entities, with search, filtering, enable/disable,
// per-run-cached availability probing, and graph sync.
package toolreg

import (
	"context"
	"os"
	"os/exec"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dmmproject/agentos/internal/apperr"
	"github.com/dmmproject/agentos/internal/domain"
	"github.com/dmmproject/agentos/internal/graphstore"
	"github.com/dmmproject/agentos/internal/registry"
)

// Loader produces Tool values from whatever source backs them.
type Loader interface {
	LoadAll(ctx context.Context) ([]*domain.Tool, error)
	LoadByID(ctx context.Context, id string) (*domain.Tool, error)
}

// checkCommandTimeout bounds how long a CLI tool's liveness probe may run
// (spec.md §4.6).
const checkCommandTimeout = 10 * time.Second

// Registry is the ToolRegistry.
type Registry struct {
	mu          sync.RWMutex
	base        *registry.BaseRegistry[*domain.Tool]
	loader      Loader
	availCache  map[string]bool
}

// New creates an empty Registry backed by loader.
func New(loader Loader) *Registry {
	return &Registry{base: registry.NewBaseRegistry[*domain.Tool](), loader: loader, availCache: map[string]bool{}}
}

// LoadAll replaces the registry's contents with every tool the loader
// currently produces, clearing the availability cache (a fresh load gets
// a fresh probe on next check).
func (r *Registry) LoadAll(ctx context.Context) error {
	tools, err := r.loader.LoadAll(ctx)
	if err != nil {
		return apperr.Wrap(apperr.StoreError, "toolreg.LoadAll", "load tools", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.base.Clear()
	r.availCache = map[string]bool{}
	for _, t := range tools {
		if err := t.Validate(); err != nil {
			continue
		}
		_ = r.base.Register(t.ID, t)
	}
	return nil
}

// LoadByID re-reads a single tool from the loader and upserts it.
func (r *Registry) LoadByID(ctx context.Context, id string) error {
	t, err := r.loader.LoadByID(ctx, id)
	if err != nil {
		return apperr.Wrap(apperr.StoreError, "toolreg.LoadByID", "load tool "+id, err)
	}
	if err := t.Validate(); err != nil {
		return apperr.Wrap(apperr.ValidationFailure, "toolreg.LoadByID", "invalid tool "+id, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	_ = r.base.Remove(id)
	delete(r.availCache, id)
	return r.base.Register(id, t)
}

// Reload is a full LoadAll.
func (r *Registry) Reload(ctx context.Context) error {
	return r.LoadAll(ctx)
}

// FindByID returns the tool with id, if present.
func (r *Registry) FindByID(id string) (*domain.Tool, bool) {
	return r.base.Get(id)
}

// FindByCategory returns every tool whose Category matches exactly.
func (r *Registry) FindByCategory(category string) []*domain.Tool {
	var out []*domain.Tool
	for _, t := range r.base.List() {
		if t.Category == category {
			out = append(out, t)
		}
	}
	return out
}

// FindByTags returns tools carrying tags, matchAll requiring every tag.
func (r *Registry) FindByTags(tags []string, matchAll bool) []*domain.Tool {
	var out []*domain.Tool
	for _, t := range r.base.List() {
		if hasTags(t.Tags, tags, matchAll) {
			out = append(out, t)
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

// Search scores every tool against query using spec.md §4.6's relevance
// formula.
func (r *Registry) Search(query string, enabledOnly bool, filters map[string]string) []domain.SearchMatch {
	q := strings.ToLower(strings.TrimSpace(query))
	var matches []domain.SearchMatch
	for _, t := range r.base.List() {
		if enabledOnly && !t.Enabled {
			continue
		}
		if cat, ok := filters["category"]; ok && cat != "" && t.Category != cat {
			continue
		}
		score, why := scoreTool(t, q)
		if score > 0 {
			matches = append(matches, domain.SearchMatch{ID: t.ID, Score: score, Why: why})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	return matches
}

func scoreTool(t *domain.Tool, q string) (int, string) {
	if q == "" {
		return 0, ""
	}
	score := 0
	var reasons []string

	if strings.EqualFold(t.ID, q) {
		score += 100
		reasons = append(reasons, "exact id match")
	}
	name := strings.ToLower(t.Name)
	if strings.Contains(name, q) {
		score += 50
		reasons = append(reasons, "name contains query")
		if strings.HasPrefix(name, q) {
			score += 25
			reasons = append(reasons, "name starts with query")
		}
	}
	if strings.Contains(strings.ToLower(t.Description), q) {
		score += 20
		reasons = append(reasons, "description contains query")
	}
	for _, tag := range t.Tags {
		if strings.Contains(strings.ToLower(tag), q) {
			score += 10
			reasons = append(reasons, "tag match: "+tag)
			break
		}
	}
	return score, strings.Join(reasons, "; ")
}

// Enable marks a tool enabled.
func (r *Registry) Enable(id string) error { return r.setEnabled(id, true) }

// Disable marks a tool disabled.
func (r *Registry) Disable(id string) error { return r.setEnabled(id, false) }

func (r *Registry) setEnabled(id string, enabled bool) error {
	t, ok := r.base.Get(id)
	if !ok {
		return apperr.New(apperr.NotFound, "toolreg.setEnabled", "tool not found: "+id)
	}
	t.Enabled = enabled
	return nil
}

// ListAll returns every registered tool.
func (r *Registry) ListAll() []*domain.Tool {
	return r.base.List()
}

// GetStats summarizes the registry's contents.
func (r *Registry) GetStats() domain.RegistryStats {
	stats := domain.RegistryStats{ByCategory: map[string]int{}}
	for _, t := range r.base.List() {
		stats.Total++
		if t.Enabled {
			stats.Enabled++
		} else {
			stats.Disabled++
		}
		if t.Category != "" {
			stats.ByCategory[t.Category]++
		}
	}
	return stats
}

// IsAvailable probes (and caches for the remaining lifetime of this
// Registry, i.e. per run) whether tool id's type-specific liveness signal
// is satisfied (spec.md §4.6): CLI tools run check_command under a 10s
// timeout and require exit success plus any named platform/files; API
// tools require their auth env var to be set; MCP tools require their
// server executable to resolve on PATH.
func (r *Registry) IsAvailable(ctx context.Context, id string) (bool, error) {
	r.mu.Lock()
	if cached, ok := r.availCache[id]; ok {
		r.mu.Unlock()
		return cached, nil
	}
	r.mu.Unlock()

	t, ok := r.base.Get(id)
	if !ok {
		return false, apperr.New(apperr.NotFound, "toolreg.IsAvailable", "tool not found: "+id)
	}

	avail := r.probe(ctx, t)

	r.mu.Lock()
	r.availCache[id] = avail
	r.mu.Unlock()
	return avail, nil
}

func (r *Registry) probe(ctx context.Context, t *domain.Tool) bool {
	switch t.Kind {
	case domain.ToolKindCLI:
		return r.probeCLI(ctx, t)
	case domain.ToolKindAPI:
		return t.AuthEnvVar == "" || os.Getenv(t.AuthEnvVar) != ""
	case domain.ToolKindMCP:
		if t.ServerExecutable == "" {
			return false
		}
		_, err := exec.LookPath(t.ServerExecutable)
		return err == nil
	case domain.ToolKindFunction:
		return true
	default:
		return false
	}
}

func (r *Registry) probeCLI(ctx context.Context, t *domain.Tool) bool {
	if t.RequiredPlatform != "" && t.RequiredPlatform != runtime.GOOS {
		return false
	}
	for _, f := range t.RequiredFiles {
		if _, err := os.Stat(f); err != nil {
			return false
		}
	}
	if t.CheckCommand == "" {
		return true
	}

	checkCtx, cancel := context.WithTimeout(ctx, checkCommandTimeout)
	defer cancel()
	cmd := exec.CommandContext(checkCtx, "sh", "-c", t.CheckCommand)
	return cmd.Run() == nil
}

// ClearAvailabilityCache discards every cached probe result, forcing the
// next IsAvailable call per tool to re-probe.
func (r *Registry) ClearAvailabilityCache() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.availCache = map[string]bool{}
}

// SyncToGraph upserts every loaded tool as a ToolNode (spec.md §4.6).
// Tools have no outgoing edges of their own; agents and skills point at
// them via HAS_TOOL/USES_TOOL.
func (r *Registry) SyncToGraph(ctx context.Context, gs *graphstore.Store) error {
	for _, t := range r.base.List() {
		props := map[string]any{
			"name": t.Name, "category": t.Category, "enabled": t.Enabled, "tags": t.Tags, "kind": string(t.Kind),
		}
		if err := gs.UpsertNode(ctx, t.ID, domain.NodeTool, props); err != nil {
			return err
		}
	}
	return nil
}
