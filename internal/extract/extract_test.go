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

package extract

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dmmproject/agentos/internal/domain"
)

func mem(id string, tags []string, created time.Time, scope domain.Scope, emb []float32) *domain.Memory {
	return &domain.Memory{
		ID: id, Title: id, Body: "body of " + id, Scope: scope, Priority: 0.5,
		Confidence: domain.ConfidenceActive, Status: domain.MemoryStatusActive,
		Tags: tags, CreatedAt: created, CompositeEmbedding: emb,
	}
}

func TestTagExtractorComputesJaccard(t *testing.T) {
	now := time.Now()
	a := mem("a", []string{"go", "sqlite", "graph"}, now, domain.ScopeGlobal, nil)
	b := mem("b", []string{"go", "sqlite"}, now, domain.ScopeGlobal, nil)

	ex := &TagExtractor{Threshold: 0.3}
	out, err := ex.Extract(context.Background(), []*domain.Memory{a, b})
	require.NoError(t, err)
	require.Len(t, out, 2) // a->b and b->a
	require.InDelta(t, 2.0/3.0, out[0].Weight, 1e-9)
}

func TestTagExtractorBelowThresholdProducesNoEdges(t *testing.T) {
	now := time.Now()
	a := mem("a", []string{"go"}, now, domain.ScopeGlobal, nil)
	b := mem("b", []string{"python", "rust", "java"}, now, domain.ScopeGlobal, nil)

	ex := &TagExtractor{Threshold: 0.5}
	out, err := ex.Extract(context.Background(), []*domain.Memory{a, b})
	require.NoError(t, err)
	require.Empty(t, out)
}

func TestTemporalExtractorRequiresSharedScopeAndWindow(t *testing.T) {
	now := time.Now()
	a := mem("a", nil, now, domain.ScopeGlobal, nil)
	b := mem("b", nil, now.Add(2*time.Hour), domain.ScopeGlobal, nil)
	c := mem("c", nil, now.Add(48*time.Hour), domain.ScopeGlobal, nil)
	d := mem("d", nil, now, domain.ScopeProject, nil)

	ex := &TemporalExtractor{WindowHours: 24, Weight: 0.2}
	out, err := ex.Extract(context.Background(), []*domain.Memory{a, b, c, d})
	require.NoError(t, err)
	require.Len(t, out, 2) // a<->b only; c is out of window, d has a different scope
	require.Equal(t, 0.2, out[0].Weight)
}

func TestSemanticExtractorPromotesHighSimilarityToSupports(t *testing.T) {
	now := time.Now()
	a := mem("a", nil, now, domain.ScopeGlobal, []float32{1, 0, 0})
	b := mem("b", nil, now, domain.ScopeGlobal, []float32{1, 0, 0})
	c := mem("c", nil, now, domain.ScopeGlobal, []float32{0.6, 0.8, 0})

	ex := &SemanticExtractor{RelatesThreshold: 0.5, SupportsThreshold: 0.95}
	out, err := ex.Extract(context.Background(), []*domain.Memory{a, b, c})
	require.NoError(t, err)

	var sawSupports, sawRelates bool
	for _, e := range out {
		if e.FromID == "a" && e.ToID == "b" {
			require.Equal(t, domain.EdgeSupports, e.Type)
			sawSupports = true
		}
		if e.FromID == "a" && e.ToID == "c" {
			require.Equal(t, domain.EdgeRelatesTo, e.Type)
			sawRelates = true
		}
	}
	require.True(t, sawSupports)
	require.True(t, sawRelates)
}

func TestMergeKeepsHighestWeightAndConcatenatesContexts(t *testing.T) {
	candidates := []EdgeCandidate{
		{FromID: "a", ToID: "b", Type: domain.EdgeRelatesTo, Weight: 0.4, Context: "tags"},
		{FromID: "a", ToID: "b", Type: domain.EdgeRelatesTo, Weight: 0.7, Context: "semantic"},
	}
	merged := Merge(candidates, 0.3, 30)
	require.Len(t, merged, 1)
	require.Equal(t, 0.7, merged[0].Weight)
	require.Contains(t, merged[0].Context, "tags")
	require.Contains(t, merged[0].Context, "semantic")
}

func TestMergeFiltersBelowMinWeight(t *testing.T) {
	candidates := []EdgeCandidate{
		{FromID: "a", ToID: "b", Type: domain.EdgeRelatesTo, Weight: 0.1},
	}
	merged := Merge(candidates, 0.3, 30)
	require.Empty(t, merged)
}

func TestMergeCapsEdgesPerSourceMemory(t *testing.T) {
	var candidates []EdgeCandidate
	for i := 0; i < 5; i++ {
		candidates = append(candidates, EdgeCandidate{FromID: "a", ToID: string(rune('b' + i)), Type: domain.EdgeRelatesTo, Weight: 0.5 + float64(i)*0.01})
	}
	merged := Merge(candidates, 0.3, 2)
	require.Len(t, merged, 2)
	// the two highest-weight edges survive
	require.Equal(t, 0.54, merged[0].Weight)
	require.Equal(t, 0.53, merged[1].Weight)
}

type fakeLLMClient struct {
	response string
	err      error
}

func (f *fakeLLMClient) Call(ctx context.Context, prompt string, params map[string]any) (string, error) {
	return f.response, f.err
}

func TestLLMExtractorParsesFencedJSON(t *testing.T) {
	now := time.Now()
	a := mem("a", nil, now, domain.ScopeGlobal, nil)
	a.Priority = 0.9
	b := mem("b", nil, now, domain.ScopeGlobal, nil)

	client := &fakeLLMClient{response: "```json\n[{\"from_id\":\"a\",\"to_id\":\"b\",\"type\":\"SUPPORTS\",\"confidence\":0.8,\"reason\":\"b backs a\"}]\n```"}
	ex := &LLMExtractor{Client: client, MinPriority: 0.7, MaxContextMemories: 5}

	out, err := ex.Extract(context.Background(), []*domain.Memory{a, b})
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, domain.EdgeSupports, out[0].Type)
	require.Equal(t, 0.8, out[0].Weight)
}

func TestLLMExtractorDropsBatchOnParseFailure(t *testing.T) {
	now := time.Now()
	a := mem("a", nil, now, domain.ScopeGlobal, nil)
	a.Priority = 0.9
	b := mem("b", nil, now, domain.ScopeGlobal, nil)

	client := &fakeLLMClient{response: "not json at all"}
	ex := &LLMExtractor{Client: client, MinPriority: 0.7, MaxContextMemories: 5}

	out, err := ex.Extract(context.Background(), []*domain.Memory{a, b})
	require.NoError(t, err)
	require.Empty(t, out)
}

func TestLLMExtractorSkipsBelowMinPriority(t *testing.T) {
	now := time.Now()
	a := mem("a", nil, now, domain.ScopeGlobal, nil)
	a.Priority = 0.2
	b := mem("b", nil, now, domain.ScopeGlobal, nil)

	client := &fakeLLMClient{response: "[]"}
	ex := &LLMExtractor{Client: client, MinPriority: 0.7, MaxContextMemories: 5}

	out, err := ex.Extract(context.Background(), []*domain.Memory{a, b})
	require.NoError(t, err)
	require.Empty(t, out)
}
