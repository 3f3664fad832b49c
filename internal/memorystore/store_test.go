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

package memorystore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dmmproject/agentos/internal/apperr"
	"github.com/dmmproject/agentos/internal/domain"
	"github.com/dmmproject/agentos/internal/vectorindex"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testMemory(id string) *domain.Memory {
	return &domain.Memory{
		ID:         id,
		Path:       "memory/global/" + id + ".md",
		Directory:  "global",
		Title:      "Test memory " + id,
		Body:       "body of " + id,
		Scope:      domain.ScopeGlobal,
		Priority:   0.5,
		Confidence: domain.ConfidenceActive,
		Status:     domain.MemoryStatusActive,
		Tags:       []string{"go", "testing"},
	}
}

func TestCreateAndGet(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	m := testMemory("mem_2026_01_01_001")
	m.CompositeEmbedding = []float32{1, 0, 0}
	require.NoError(t, s.Create(ctx, m))

	got, err := s.Get(ctx, m.ID)
	require.NoError(t, err)
	require.Equal(t, m.Title, got.Title)
	require.Equal(t, []float32{1, 0, 0}, got.CompositeEmbedding)
}

func TestCreateDuplicateIDConflicts(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	m := testMemory("mem_2026_01_01_002")
	require.NoError(t, s.Create(ctx, m))
	err := s.Create(ctx, m)
	require.True(t, apperr.IsKind(err, apperr.Conflict))
}

func TestUpdateNotFound(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	m := testMemory("mem_missing")
	err := s.Update(ctx, m)
	require.True(t, apperr.IsKind(err, apperr.NotFound))
}

func TestDeprecateExcludesFromBaseline(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	m := testMemory("mem_2026_01_01_003")
	m.Scope = domain.ScopeBaseline
	require.NoError(t, s.Create(ctx, m))

	base, err := s.Baseline(ctx)
	require.NoError(t, err)
	require.Len(t, base, 1)

	require.NoError(t, s.Deprecate(ctx, m.ID))

	base, err = s.Baseline(ctx)
	require.NoError(t, err)
	require.Empty(t, base)
}

func TestTouchUsage(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	m := testMemory("mem_2026_01_01_004")
	require.NoError(t, s.Create(ctx, m))

	now := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, s.TouchUsage(ctx, m.ID, now))

	got, err := s.Get(ctx, m.ID)
	require.NoError(t, err)
	require.Equal(t, 1, got.UsageCount)
	require.WithinDuration(t, now, got.LastUsed, time.Second)
}

func TestSearchByVectorExcludesBaselineAndRanksByCosine(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	closeMatch := testMemory("mem_close")
	closeMatch.CompositeEmbedding = []float32{1, 0, 0}
	require.NoError(t, s.Create(ctx, closeMatch))

	farMatch := testMemory("mem_far")
	farMatch.CompositeEmbedding = []float32{0, 1, 0}
	require.NoError(t, s.Create(ctx, farMatch))

	baseline := testMemory("mem_base")
	baseline.Scope = domain.ScopeBaseline
	baseline.CompositeEmbedding = []float32{1, 0, 0}
	require.NoError(t, s.Create(ctx, baseline))

	results, err := s.SearchByVector(ctx, []float32{1, 0, 0}, Filter{}, nil, 10)
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, "mem_close", results[0].Memory.ID)
	require.InDelta(t, 1.0, results[0].Score, 1e-6)
}

func TestEmbeddingRoundTrip(t *testing.T) {
	v := []float32{0.5, -1.25, 3.0}
	require.Equal(t, v, bytesToEmbedding(embeddingToBytes(v)))
	require.Nil(t, bytesToEmbedding(nil))
}

type fakeEmbedder struct{ dim int }

func (f fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	v := make([]float32, f.dim)
	for i := range v {
		v[i] = float32(len(text)+i) / 10
	}
	return v, nil
}
func (f fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i], _ = f.Embed(ctx, t)
	}
	return out, nil
}
func (f fakeEmbedder) Dimension() int  { return f.dim }
func (f fakeEmbedder) Model() string   { return "fake" }
func (f fakeEmbedder) Close() error    { return nil }

func TestIndexerComputesDirectoryAverage(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	ix := NewIndexer(s, fakeEmbedder{dim: 3}, vectorindex.NilProvider{})

	m1 := testMemory("mem_dir_1")
	require.NoError(t, ix.IndexMemory(ctx, m1))
	require.NoError(t, s.Create(ctx, m1))

	m2 := testMemory("mem_dir_2")
	m2.Body = "second body"
	require.NoError(t, ix.IndexMemory(ctx, m2))
	require.NoError(t, s.Create(ctx, m2))

	require.Len(t, m2.DirectoryEmbedding, 3)
	require.NotEqual(t, m2.CompositeEmbedding, m2.DirectoryEmbedding)
}
