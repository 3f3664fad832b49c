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

package graphstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dmmproject/agentos/internal/apperr"
	"github.com/dmmproject/agentos/internal/domain"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestUpsertNodeIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	require.NoError(t, s.UpsertNode(ctx, "mem_1", domain.NodeMemory, map[string]any{"title": "first"}))
	require.NoError(t, s.UpsertNode(ctx, "mem_1", domain.NodeMemory, map[string]any{"title": "second"}))

	props, err := s.GetNode(ctx, "mem_1", domain.NodeMemory)
	require.NoError(t, err)
	require.Equal(t, "second", props["title"])
}

func TestGetNodeNotFound(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	_, err := s.GetNode(ctx, "missing", domain.NodeMemory)
	require.True(t, apperr.IsKind(err, apperr.NotFound))
}

func TestCreateEdgeRejectsMismatchedEndpoints(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	err := s.CreateEdge(ctx, &domain.Edge{
		FromID: "mem_1", FromType: domain.NodeMemory,
		ToID: "tag_1", ToType: domain.NodeTag,
		Type: domain.EdgeRelatesTo, Weight: 0.5,
	})
	require.Error(t, err)
	require.True(t, apperr.IsKind(err, apperr.ValidationFailure))
}

func TestDeleteNodeCascadesEdges(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	require.NoError(t, s.UpsertNode(ctx, "mem_1", domain.NodeMemory, nil))
	require.NoError(t, s.UpsertNode(ctx, "mem_2", domain.NodeMemory, nil))
	require.NoError(t, s.CreateEdge(ctx, &domain.Edge{
		FromID: "mem_1", FromType: domain.NodeMemory,
		ToID: "mem_2", ToType: domain.NodeMemory,
		Type: domain.EdgeRelatesTo, Weight: 0.8,
	}))

	require.NoError(t, s.DeleteNode(ctx, "mem_1", domain.NodeMemory))

	edges, err := s.EdgesTo(ctx, "mem_2", domain.NodeMemory)
	require.NoError(t, err)
	require.Empty(t, edges)
}

func TestGetRelatedMemoriesBFS(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	for _, id := range []string{"mem_a", "mem_b", "mem_c", "mem_d"} {
		require.NoError(t, s.UpsertNode(ctx, id, domain.NodeMemory, nil))
	}
	require.NoError(t, s.CreateEdge(ctx, &domain.Edge{FromID: "mem_a", FromType: domain.NodeMemory, ToID: "mem_b", ToType: domain.NodeMemory, Type: domain.EdgeSupports, Weight: 1}))
	require.NoError(t, s.CreateEdge(ctx, &domain.Edge{FromID: "mem_b", FromType: domain.NodeMemory, ToID: "mem_c", ToType: domain.NodeMemory, Type: domain.EdgeRelatesTo, Weight: 1}))
	require.NoError(t, s.CreateEdge(ctx, &domain.Edge{FromID: "mem_a", FromType: domain.NodeMemory, ToID: "mem_d", ToType: domain.NodeMemory, Type: domain.EdgeContradicts, Weight: 1}))

	conns, err := s.GetRelatedMemories(ctx, "mem_a", 2, nil)
	require.NoError(t, err)

	var ids []string
	for _, c := range conns {
		ids = append(ids, c.SourceID)
	}
	require.Len(t, conns, 2) // mem_b at hop 1, mem_c at hop 2; mem_d excluded (CONTRADICTS not in default expansion set)
}

func TestFindPathReturnsShortest(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	for _, id := range []string{"mem_a", "mem_b", "mem_c"} {
		require.NoError(t, s.UpsertNode(ctx, id, domain.NodeMemory, nil))
	}
	require.NoError(t, s.CreateEdge(ctx, &domain.Edge{FromID: "mem_a", FromType: domain.NodeMemory, ToID: "mem_b", ToType: domain.NodeMemory, Type: domain.EdgeRelatesTo, Weight: 1}))
	require.NoError(t, s.CreateEdge(ctx, &domain.Edge{FromID: "mem_b", FromType: domain.NodeMemory, ToID: "mem_c", ToType: domain.NodeMemory, Type: domain.EdgeRelatesTo, Weight: 1}))

	path, err := s.FindPath(ctx, "mem_a", "mem_c", 5)
	require.NoError(t, err)
	require.Len(t, path, 2)
	require.Equal(t, "mem_b", path[0].ToID)
	require.Equal(t, "mem_c", path[1].ToID)
}

func TestGetSupersessionChain(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	for _, id := range []string{"mem_v3", "mem_v2", "mem_v1"} {
		require.NoError(t, s.UpsertNode(ctx, id, domain.NodeMemory, nil))
	}
	require.NoError(t, s.CreateEdge(ctx, &domain.Edge{FromID: "mem_v3", FromType: domain.NodeMemory, ToID: "mem_v2", ToType: domain.NodeMemory, Type: domain.EdgeSupersedes, Weight: 1}))
	require.NoError(t, s.CreateEdge(ctx, &domain.Edge{FromID: "mem_v2", FromType: domain.NodeMemory, ToID: "mem_v1", ToType: domain.NodeMemory, Type: domain.EdgeSupersedes, Weight: 1}))

	chain, err := s.GetSupersessionChain(ctx, "mem_v3")
	require.NoError(t, err)
	require.Equal(t, []string{"mem_v2", "mem_v1"}, chain)
}

func TestGetContradictionPairs(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	require.NoError(t, s.UpsertNode(ctx, "mem_1", domain.NodeMemory, nil))
	require.NoError(t, s.UpsertNode(ctx, "mem_2", domain.NodeMemory, nil))
	require.NoError(t, s.CreateEdge(ctx, &domain.Edge{FromID: "mem_1", FromType: domain.NodeMemory, ToID: "mem_2", ToType: domain.NodeMemory, Type: domain.EdgeContradicts, Weight: 1}))

	pairs, err := s.GetContradictionPairs(ctx)
	require.NoError(t, err)
	require.Equal(t, [][2]string{{"mem_1", "mem_2"}}, pairs)
}

func TestGetStats(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	require.NoError(t, s.UpsertNode(ctx, "mem_1", domain.NodeMemory, nil))
	require.NoError(t, s.UpsertNode(ctx, "tag_go", domain.NodeTag, nil))
	require.NoError(t, s.CreateEdge(ctx, &domain.Edge{FromID: "mem_1", FromType: domain.NodeMemory, ToID: "tag_go", ToType: domain.NodeTag, Type: domain.EdgeHasTag, Weight: 1}))

	stats, err := s.GetStats(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, stats.NodesByType[domain.NodeMemory])
	require.Equal(t, 1, stats.NodesByType[domain.NodeTag])
	require.Equal(t, 1, stats.EdgesByType[domain.EdgeHasTag])
}

func TestQueryRejectsNonSelect(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	_, err := s.Query(ctx, "DELETE FROM graph_nodes")
	require.True(t, apperr.IsKind(err, apperr.ValidationFailure))
}

func TestQueryReturnsRows(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	require.NoError(t, s.UpsertNode(ctx, "mem_1", domain.NodeMemory, nil))

	rows, err := s.Query(ctx, "SELECT id FROM graph_nodes WHERE type = ?", string(domain.NodeMemory))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "mem_1", rows[0]["id"])
}
