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

package agentreg

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dmmproject/agentos/internal/domain"
	"github.com/dmmproject/agentos/internal/graphstore"
)

type fakeLoader struct {
	agents map[string]*domain.Agent
}

func (f *fakeLoader) LoadAll(ctx context.Context) ([]*domain.Agent, error) {
	var out []*domain.Agent
	for _, a := range f.agents {
		out = append(out, a)
	}
	return out, nil
}

func (f *fakeLoader) LoadByID(ctx context.Context, id string) (*domain.Agent, error) {
	return f.agents[id], nil
}

func sampleLoader() *fakeLoader {
	return &fakeLoader{agents: map[string]*domain.Agent{
		"researcher": {
			ID: "researcher", Name: "Researcher", Description: "Digs through documents for facts",
			Category: "research", Tags: []string{"search", "reading"}, Enabled: true,
			Skills: domain.SkillsConfig{Primary: []string{"web-search"}, Secondary: []string{"summarize"}},
			Tools:  domain.ToolsConfig{Enabled: []string{"curl"}},
			Memory: domain.MemoryConfig{PreferredScopes: []domain.Scope{domain.Scope("global")}},
		},
		"writer": {
			ID: "writer", Name: "Writer", Description: "Drafts prose from notes",
			Category: "authoring", Tags: []string{"writing"}, Enabled: false,
		},
	}}
}

func TestLoadAllRegistersEveryAgent(t *testing.T) {
	r := New(sampleLoader())
	require.NoError(t, r.LoadAll(context.Background()))
	require.Len(t, r.ListAll(), 2)
}

func TestFindByIDAndCategory(t *testing.T) {
	r := New(sampleLoader())
	require.NoError(t, r.LoadAll(context.Background()))

	a, ok := r.FindByID("researcher")
	require.True(t, ok)
	require.Equal(t, "Researcher", a.Name)

	byCategory := r.FindByCategory("authoring")
	require.Len(t, byCategory, 1)
	require.Equal(t, "writer", byCategory[0].ID)
}

func TestFindByTagsMatchAll(t *testing.T) {
	r := New(sampleLoader())
	require.NoError(t, r.LoadAll(context.Background()))

	any := r.FindByTags([]string{"search", "writing"}, false)
	require.Len(t, any, 2)

	all := r.FindByTags([]string{"search", "writing"}, true)
	require.Len(t, all, 0)
}

func TestSearchScoresAndSortsDescending(t *testing.T) {
	r := New(sampleLoader())
	require.NoError(t, r.LoadAll(context.Background()))

	matches := r.Search("research", false, nil)
	require.NotEmpty(t, matches)
	require.Equal(t, "researcher", matches[0].ID)
	require.GreaterOrEqual(t, matches[0].Score, 50)
}

func TestSearchEnabledOnlyExcludesDisabled(t *testing.T) {
	r := New(sampleLoader())
	require.NoError(t, r.LoadAll(context.Background()))

	matches := r.Search("writer", true, nil)
	require.Empty(t, matches)
}

func TestEnableDisable(t *testing.T) {
	r := New(sampleLoader())
	require.NoError(t, r.LoadAll(context.Background()))

	require.NoError(t, r.Enable("writer"))
	a, _ := r.FindByID("writer")
	require.True(t, a.Enabled)

	require.NoError(t, r.Disable("writer"))
	a, _ = r.FindByID("writer")
	require.False(t, a.Enabled)

	require.Error(t, r.Enable("missing"))
}

func TestGetStats(t *testing.T) {
	r := New(sampleLoader())
	require.NoError(t, r.LoadAll(context.Background()))

	stats := r.GetStats()
	require.Equal(t, 2, stats.Total)
	require.Equal(t, 1, stats.Enabled)
	require.Equal(t, 1, stats.Disabled)
	require.Equal(t, 1, stats.ByCategory["research"])
}

func TestSyncToGraphUpsertsNodesAndEdges(t *testing.T) {
	ctx := context.Background()
	gs, err := graphstore.Open(ctx, ":memory:")
	require.NoError(t, err)
	defer gs.Close()

	r := New(sampleLoader())
	require.NoError(t, r.LoadAll(ctx))
	require.NoError(t, r.SyncToGraph(ctx, gs))

	props, err := gs.GetNode(ctx, "researcher", domain.NodeAgent)
	require.NoError(t, err)
	require.Equal(t, "Researcher", props["name"])

	edges, err := gs.EdgesFrom(ctx, "researcher", domain.NodeAgent, domain.EdgeHasSkill)
	require.NoError(t, err)
	require.Len(t, edges, 2)
}
