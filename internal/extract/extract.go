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

// Package extract implements the extractor orchestrator (spec.md §4.2.2): a
// subsystem that builds graph edges before retrieval queries them. Four
// extractors run in a fixed, cheap-first order; their candidate edges are
// merged, thresholded, and capped before being committed to the graph store.
package extract

import (
	"context"
	"log/slog"
	"sort"

	"github.com/dmmproject/agentos/internal/apperr"
	"github.com/dmmproject/agentos/internal/config"
	"github.com/dmmproject/agentos/internal/domain"
	"github.com/dmmproject/agentos/internal/graphstore"
	"github.com/dmmproject/agentos/internal/memorystore"
)

// LLMClient is the prompt-in, text-out collaborator the LLM extractor calls
// (spec.md §6). CallJSON is optional: when a client doesn't implement it,
// the LLM extractor falls back to stripping code fences from Call's output
// and parsing the result itself.
type LLMClient interface {
	Call(ctx context.Context, prompt string, params map[string]any) (string, error)
}

// JSONCaller is an LLMClient that can enforce a JSON response shape
// natively.
type JSONCaller interface {
	CallJSON(ctx context.Context, prompt string, schema any) (string, error)
}

// EdgeCandidate is one proposed edge before merging, thresholding, and
// commit.
type EdgeCandidate struct {
	FromID  string
	ToID    string
	Type    domain.EdgeType
	Weight  float64
	Context string
}

// Extractor proposes edge candidates over a batch of memories.
type Extractor interface {
	Extract(ctx context.Context, memories []*domain.Memory) ([]EdgeCandidate, error)
}

// Orchestrator runs the fixed extractor pipeline and commits the merged
// result to the graph store.
type Orchestrator struct {
	memories   *memorystore.Store
	graph      *graphstore.Store
	cfg        config.ExtractConfig
	extractors []Extractor
}

// New builds an Orchestrator. llm may be nil; the LLM extractor is then
// skipped regardless of cfg.EnableLLMExtractor.
func New(memories *memorystore.Store, graph *graphstore.Store, llm LLMClient, cfg config.ExtractConfig) *Orchestrator {
	o := &Orchestrator{memories: memories, graph: graph, cfg: cfg}
	o.extractors = []Extractor{
		&TagExtractor{Threshold: cfg.TagJaccardThreshold},
		&TemporalExtractor{WindowHours: cfg.TemporalWindowHours, Weight: cfg.TemporalWeight},
		&SemanticExtractor{RelatesThreshold: cfg.SemanticRelatesThreshold, SupportsThreshold: cfg.SemanticSupportsThreshold},
	}
	if cfg.EnableLLMExtractor && llm != nil {
		o.extractors = append(o.extractors, &LLMExtractor{
			Client:            llm,
			Graph:             graph,
			MinPriority:       cfg.LLMMinPriority,
			MaxContextMemories: cfg.LLMMaxContextMemories,
		})
	}
	return o
}

// Run extracts edges across memories (typically every active, non-baseline
// memory, or a single newly-committed one plus its existing neighborhood)
// and commits the merged, thresholded, capped result to the graph store.
func (o *Orchestrator) Run(ctx context.Context, memories []*domain.Memory) error {
	var all []EdgeCandidate
	for _, ex := range o.extractors {
		candidates, err := ex.Extract(ctx, memories)
		if err != nil {
			return apperr.Wrap(apperr.UpstreamFailure, "extract.Run", "extractor failed", err)
		}
		all = append(all, candidates...)
	}

	merged := Merge(all, o.cfg.MinEdgeWeight, o.cfg.MaxEdgesPerMemory)

	for id, node := range nodeTypes(memories) {
		if err := o.graph.UpsertNode(ctx, id, node, nil); err != nil {
			return apperr.Wrap(apperr.StoreError, "extract.Run", "upsert memory node", err)
		}
	}

	for _, c := range merged {
		edge := &domain.Edge{
			FromID: c.FromID, FromType: domain.NodeMemory,
			ToID: c.ToID, ToType: domain.NodeMemory,
			Type: c.Type, Weight: c.Weight, Context: c.Context,
		}
		if err := o.graph.CreateEdge(ctx, edge); err != nil {
			return apperr.Wrap(apperr.StoreError, "extract.Run", "create edge", err)
		}
	}
	return nil
}

func nodeTypes(memories []*domain.Memory) map[string]domain.NodeType {
	out := make(map[string]domain.NodeType, len(memories))
	for _, m := range memories {
		out[m.ID] = domain.NodeMemory
	}
	return out
}

// candidateKey groups candidates by (from, to, type) for merging, per
// spec.md §4.2.2.
type candidateKey struct {
	from, to string
	edgeType domain.EdgeType
}

// Merge groups candidate edges by (from_id, to_id, edge_type), keeps the
// highest-weight one, concatenates up to three distinct context strings,
// filters by minWeight, and caps total edges per source memory at maxPerSource.
func Merge(candidates []EdgeCandidate, minWeight float64, maxPerSource int) []EdgeCandidate {
	grouped := map[candidateKey]*EdgeCandidate{}
	contexts := map[candidateKey][]string{}

	for _, c := range candidates {
		key := candidateKey{c.FromID, c.ToID, c.Type}
		existing, ok := grouped[key]
		if !ok || c.Weight > existing.Weight {
			cp := c
			grouped[key] = &cp
		}
		if c.Context != "" && !containsString(contexts[key], c.Context) && len(contexts[key]) < 3 {
			contexts[key] = append(contexts[key], c.Context)
		}
	}

	bySource := map[string][]EdgeCandidate{}
	for key, c := range grouped {
		if c.Weight < minWeight {
			continue
		}
		if ctxs := contexts[key]; len(ctxs) > 0 {
			c.Context = joinContexts(ctxs)
		}
		bySource[c.FromID] = append(bySource[c.FromID], *c)
	}

	var out []EdgeCandidate
	for _, edges := range bySource {
		sort.Slice(edges, func(i, j int) bool { return edges[i].Weight > edges[j].Weight })
		if maxPerSource > 0 && len(edges) > maxPerSource {
			slog.Debug("extract: capping edges per source memory", "dropped", len(edges)-maxPerSource)
			edges = edges[:maxPerSource]
		}
		out = append(out, edges...)
	}
	return out
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func joinContexts(ctxs []string) string {
	out := ctxs[0]
	for _, c := range ctxs[1:] {
		out += "; " + c
	}
	return out
}
