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

package graphanalysis

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dmmproject/agentos/internal/config"
	"github.com/dmmproject/agentos/internal/domain"
	"github.com/dmmproject/agentos/internal/graphstore"
	"github.com/dmmproject/agentos/internal/memorystore"
)

func testMemory(id string, tags ...string) *domain.Memory {
	return &domain.Memory{
		ID:         id,
		Path:       "memory/global/" + id + ".md",
		Directory:  "global",
		Title:      "memory " + id,
		Body:       "body",
		Scope:      domain.ScopeGlobal,
		Priority:   0.5,
		Confidence: domain.ConfidenceActive,
		Status:     domain.MemoryStatusActive,
		Tags:       tags,
	}
}

func newTestDetector(t *testing.T, cfg config.ClusterConfig) (*Detector, *graphstore.Store, *memorystore.Store) {
	t.Helper()
	ctx := context.Background()

	graph, err := graphstore.Open(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = graph.Close() })

	memories, err := memorystore.Open(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = memories.Close() })

	cfg.SetDefaults()
	return New(graph, memories, cfg), graph, memories
}

func TestDetectFindsConnectedComponent(t *testing.T) {
	ctx := context.Background()
	d, graph, memories := newTestDetector(t, config.ClusterConfig{MinClusterSize: 2})

	a := testMemory("mem_a", "backend")
	b := testMemory("mem_b", "backend")
	c := testMemory("mem_c", "frontend")
	require.NoError(t, memories.Create(ctx, a))
	require.NoError(t, memories.Create(ctx, b))
	require.NoError(t, memories.Create(ctx, c))

	require.NoError(t, graph.UpsertNode(ctx, a.ID, domain.NodeMemory, nil))
	require.NoError(t, graph.UpsertNode(ctx, b.ID, domain.NodeMemory, nil))
	require.NoError(t, graph.UpsertNode(ctx, c.ID, domain.NodeMemory, nil))
	require.NoError(t, graph.CreateEdge(ctx, &domain.Edge{
		FromID: a.ID, FromType: domain.NodeMemory,
		ToID: b.ID, ToType: domain.NodeMemory,
		Type: domain.EdgeRelatesTo, Weight: 0.8,
	}))

	result, err := d.Detect(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, result.TotalMemories)
	require.Len(t, result.Clusters, 1)
	require.ElementsMatch(t, []string{a.ID, b.ID}, result.Clusters[0].MemoryIDs)
	require.Equal(t, 1, result.SingletonCount)
	require.Equal(t, []string{"backend"}, result.Clusters[0].CommonTags)
}

func TestDetectBelowWeightThresholdStaysUnclustered(t *testing.T) {
	ctx := context.Background()
	d, graph, memories := newTestDetector(t, config.ClusterConfig{MinClusterSize: 2, MinEdgeWeight: 0.9})

	a := testMemory("mem_a")
	b := testMemory("mem_b")
	require.NoError(t, memories.Create(ctx, a))
	require.NoError(t, memories.Create(ctx, b))
	require.NoError(t, graph.UpsertNode(ctx, a.ID, domain.NodeMemory, nil))
	require.NoError(t, graph.UpsertNode(ctx, b.ID, domain.NodeMemory, nil))
	require.NoError(t, graph.CreateEdge(ctx, &domain.Edge{
		FromID: a.ID, FromType: domain.NodeMemory,
		ToID: b.ID, ToType: domain.NodeMemory,
		Type: domain.EdgeRelatesTo, Weight: 0.5,
	}))

	result, err := d.Detect(ctx)
	require.NoError(t, err)
	require.Empty(t, result.Clusters)
	require.Equal(t, 2, result.SingletonCount)
}

func TestFindGapsFlagsSimilarUnconnectedMemories(t *testing.T) {
	ctx := context.Background()
	d, graph, memories := newTestDetector(t, config.ClusterConfig{
		MinClusterSize:      2,
		DetectKnowledgeGaps: true,
		GapMinTagSimilarity: 0.3,
	})

	a := testMemory("mem_a", "kubernetes", "networking")
	b := testMemory("mem_b", "kubernetes", "storage")
	require.NoError(t, memories.Create(ctx, a))
	require.NoError(t, memories.Create(ctx, b))
	require.NoError(t, graph.UpsertNode(ctx, a.ID, domain.NodeMemory, nil))
	require.NoError(t, graph.UpsertNode(ctx, b.ID, domain.NodeMemory, nil))

	result, err := d.Detect(ctx)
	require.NoError(t, err)
	require.Len(t, result.Gaps, 1)
	require.ElementsMatch(t, []string{"mem_a", "mem_b"}, []string{result.Gaps[0].MemoryID1, result.Gaps[0].MemoryID2})
	require.True(t, result.Gaps[0].SameScope)
}

func TestFindGapsSkipsDirectlyConnectedPairs(t *testing.T) {
	ctx := context.Background()
	d, graph, memories := newTestDetector(t, config.ClusterConfig{
		DetectKnowledgeGaps: true,
		GapMinTagSimilarity: 0.1,
	})

	a := testMemory("mem_a", "go")
	b := testMemory("mem_b", "go")
	require.NoError(t, memories.Create(ctx, a))
	require.NoError(t, memories.Create(ctx, b))
	require.NoError(t, graph.UpsertNode(ctx, a.ID, domain.NodeMemory, nil))
	require.NoError(t, graph.UpsertNode(ctx, b.ID, domain.NodeMemory, nil))
	require.NoError(t, graph.CreateEdge(ctx, &domain.Edge{
		FromID: a.ID, FromType: domain.NodeMemory,
		ToID: b.ID, ToType: domain.NodeMemory,
		Type: domain.EdgeRelatesTo, Weight: 0.9,
	}))

	result, err := d.Detect(ctx)
	require.NoError(t, err)
	require.Empty(t, result.Gaps)
}
