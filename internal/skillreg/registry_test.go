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

package skillreg

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dmmproject/agentos/internal/domain"
	"github.com/dmmproject/agentos/internal/graphstore"
)

type fakeLoader struct {
	skills map[string]*domain.Skill
}

func (f *fakeLoader) LoadAll(ctx context.Context) ([]*domain.Skill, error) {
	var out []*domain.Skill
	for _, s := range f.skills {
		out = append(out, s)
	}
	return out, nil
}

func (f *fakeLoader) LoadByID(ctx context.Context, id string) (*domain.Skill, error) {
	return f.skills[id], nil
}

func sampleLoader() *fakeLoader {
	return &fakeLoader{skills: map[string]*domain.Skill{
		"web-search": {ID: "web-search", Name: "Web Search", Description: "Search the web for sources",
			Category: "research", Tags: []string{"search"}, Enabled: true, UsesTools: []string{"curl"}},
		"summarize": {ID: "summarize", Name: "Summarize", Description: "Condense long text",
			Category: "writing", Enabled: true, DependsOn: []string{"web-search"}},
	}}
}

func TestLoadAllAndFind(t *testing.T) {
	r := New(sampleLoader())
	require.NoError(t, r.LoadAll(context.Background()))
	require.Len(t, r.ListAll(), 2)

	s, ok := r.FindByID("summarize")
	require.True(t, ok)
	require.Equal(t, "writing", s.Category)
}

func TestSearchScoring(t *testing.T) {
	r := New(sampleLoader())
	require.NoError(t, r.LoadAll(context.Background()))

	matches := r.Search("search", false, nil)
	require.NotEmpty(t, matches)
	require.Equal(t, "web-search", matches[0].ID)
}

func TestGetStats(t *testing.T) {
	r := New(sampleLoader())
	require.NoError(t, r.LoadAll(context.Background()))
	stats := r.GetStats()
	require.Equal(t, 2, stats.Total)
	require.Equal(t, 2, stats.Enabled)
}

func TestSyncToGraphCreatesDependencyAndToolEdges(t *testing.T) {
	ctx := context.Background()
	gs, err := graphstore.Open(ctx, ":memory:")
	require.NoError(t, err)
	defer gs.Close()

	r := New(sampleLoader())
	require.NoError(t, r.LoadAll(ctx))
	require.NoError(t, r.SyncToGraph(ctx, gs))

	deps, err := gs.EdgesFrom(ctx, "summarize", domain.NodeSkill, domain.EdgeSkillDependsOn)
	require.NoError(t, err)
	require.Len(t, deps, 1)
	require.Equal(t, "web-search", deps[0].ToID)

	tools, err := gs.EdgesFrom(ctx, "web-search", domain.NodeSkill, domain.EdgeUsesTool)
	require.NoError(t, err)
	require.Len(t, tools, 1)
}
