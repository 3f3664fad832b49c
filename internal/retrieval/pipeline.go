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

// Package retrieval implements the hybrid retrieval pipeline (spec.md
// §4.2): baseline injection, vector search, BFS graph expansion, weighted
// score combination, ranking, and delegation to internal/assemble for the
// final context pack.
package retrieval

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/dmmproject/agentos/internal/apperr"
	"github.com/dmmproject/agentos/internal/assemble"
	"github.com/dmmproject/agentos/internal/config"
	"github.com/dmmproject/agentos/internal/domain"
	"github.com/dmmproject/agentos/internal/embedder"
	"github.com/dmmproject/agentos/internal/graphstore"
	"github.com/dmmproject/agentos/internal/memorystore"
	"github.com/dmmproject/agentos/internal/obs"
	"github.com/dmmproject/agentos/internal/vectorindex"
)

// candidateCacheSize bounds the LRU cache of per-query vector candidate
// sets (spec.md's repeated-query optimization is implicit; the teacher's
// stack carries golang-lru for exactly this shape of cache).
const candidateCacheSize = 256

// Options narrows one Retrieve call beyond the pipeline's configured
// defaults.
type Options struct {
	Limit           int
	Scopes          []domain.Scope
	MinPriority     float64
	MaxTokenCount   int
	ExcludeEphemeral bool
	Format          string // "markdown" (default), "json", "text"
}

// Pipeline wires the hybrid retrieval stages over a MemoryStore and
// GraphStore.
type Pipeline struct {
	memories *memorystore.Store
	graph    *graphstore.Store
	embed    embedder.Embedder
	vectors  vectorindex.Provider
	cfg      config.RetrievalConfig

	candidateCache *lru.Cache[string, []memorystore.ScoredMemory]
}

// New builds a Pipeline. vectors may be vectorindex.NilProvider{}.
func New(memories *memorystore.Store, graph *graphstore.Store, embed embedder.Embedder, vectors vectorindex.Provider, cfg config.RetrievalConfig) (*Pipeline, error) {
	cache, err := lru.New[string, []memorystore.ScoredMemory](candidateCacheSize)
	if err != nil {
		return nil, apperr.Wrap(apperr.Fatal, "retrieval.New", "build candidate cache", err)
	}
	if vectors == nil {
		vectors = vectorindex.NilProvider{}
	}
	return &Pipeline{memories: memories, graph: graph, embed: embed, vectors: vectors, cfg: cfg, candidateCache: cache}, nil
}

// Retrieve runs the full six-stage pipeline for queryText and returns an
// assembled context pack within the configured token budget.
func (p *Pipeline) Retrieve(ctx context.Context, queryText string, opts Options) (_ *domain.AssembledContext, err error) {
	start := time.Now()
	var vectorCandidates, graphExpanded, resultCount int
	defer func() {
		obs.Global().RecordRetrieval(ctx, time.Since(start), vectorCandidates, graphExpanded, resultCount, err)
	}()

	limit := opts.Limit
	if limit <= 0 {
		limit = p.cfg.DefaultLimit
	}

	// Stage 1: baseline injection.
	baseline, err := p.memories.Baseline(ctx)
	if err != nil {
		return nil, apperr.Wrap(apperr.StoreError, "retrieval.Retrieve", "baseline", err)
	}

	queryVec, err := p.embed.Embed(ctx, queryText)
	if err != nil {
		return nil, apperr.Wrap(apperr.UpstreamFailure, "retrieval.Retrieve", "embed query", err)
	}

	// Stage 2: vector search, optionally ANN pre-filtered.
	candidateLimit := limit * p.cfg.VectorCandidateMultiplier
	filter := memorystore.Filter{
		Scopes:            opts.Scopes,
		ExcludeDeprecated: true,
		ExcludeEphemeral:  opts.ExcludeEphemeral,
		MinPriority:       opts.MinPriority,
		MaxTokenCount:      opts.MaxTokenCount,
	}

	var preFilterIDs []string
	if annResults, err := p.vectors.Search(ctx, "memories", queryVec, candidateLimit); err == nil {
		for _, r := range annResults {
			preFilterIDs = append(preFilterIDs, r.ID)
		}
	}

	cacheKey := cacheKeyFor(queryText, filter, candidateLimit)
	vectorResults, ok := p.candidateCache.Get(cacheKey)
	if !ok {
		vectorResults, err = p.memories.SearchByVector(ctx, queryVec, filter, preFilterIDs, candidateLimit)
		if err != nil {
			return nil, apperr.Wrap(apperr.StoreError, "retrieval.Retrieve", "vector search", err)
		}
		p.candidateCache.Add(cacheKey, vectorResults)
	}
	vectorCandidates = len(vectorResults)

	vectorScoreByID := make(map[string]float64, len(vectorResults))
	byID := make(map[string]*domain.Memory, len(vectorResults))
	for _, vr := range vectorResults {
		vectorScoreByID[vr.Memory.ID] = vr.Score
		byID[vr.Memory.ID] = vr.Memory
	}

	// Stage 3: BFS graph expansion from the vector frontier.
	edgeTypes := p.expansionEdgeTypes()
	connections := map[string][]domain.Connection{}
	visited := map[string]bool{}
	for id := range vectorScoreByID {
		visited[id] = true
	}

	frontier := make([]string, 0, len(vectorResults))
	for id := range vectorScoreByID {
		frontier = append(frontier, id)
	}
	sort.Strings(frontier) // deterministic hop ordering, ties unspecified by spec

	for depth := 1; depth <= p.cfg.MaxGraphDepth && len(frontier) > 0; depth++ {
		var next []string
		for _, sourceID := range frontier {
			edges, err := p.graph.EdgesFrom(ctx, sourceID, domain.NodeMemory, edgeTypes...)
			if err != nil {
				return nil, apperr.Wrap(apperr.StoreError, "retrieval.Retrieve", "graph expansion", err)
			}
			if len(edges) > p.cfg.MaxExpansionPerHop {
				edges = edges[:p.cfg.MaxExpansionPerHop]
			}
			for _, e := range edges {
				if e.ToType != domain.NodeMemory || visited[e.ToID] {
					continue
				}
				visited[e.ToID] = true
				connections[e.ToID] = append(connections[e.ToID], domain.Connection{SourceID: sourceID, EdgeType: e.Type, Hops: depth})
				next = append(next, e.ToID)
				graphExpanded++

				if byID[e.ToID] == nil {
					if m, err := p.memories.Get(ctx, e.ToID); err == nil && m.IncludedByDefault() {
						byID[e.ToID] = m
					}
				}
			}
		}
		frontier = next
	}

	// Stage 4: score combination.
	contradictedBy := p.contradictionSources(ctx, byID)

	var results []domain.RetrievalResult
	for id, m := range byID {
		if m == nil {
			continue
		}
		vectorScore := vectorScoreByID[id]
		graphScore := p.graphScore(connections[id], vectorScoreByID)
		if contradictedBy[id] {
			graphScore *= p.cfg.ContradictionPenalty
		}
		combined := p.cfg.VectorWeight*vectorScore + p.cfg.GraphWeight*graphScore

		results = append(results, domain.RetrievalResult{
			Memory:        m,
			VectorScore:   vectorScore,
			GraphScore:    graphScore,
			CombinedScore: combined,
			Connections:   connections[id],
		})
	}

	// Stage 5: ranking & limiting.
	sort.Slice(results, func(i, j int) bool { return results[i].CombinedScore > results[j].CombinedScore })
	if len(results) > limit {
		results = results[:limit]
	}
	resultCount = len(results)

	// Stage 6: context assembly.
	format := opts.Format
	if format == "" {
		format = "markdown"
	}
	assembled, err := assemble.Assemble(ctx, assemble.Input{
		Baseline:            baseline,
		Results:             results,
		Format:              format,
		TotalTokenBudget:    p.cfg.TotalTokenBudget,
		BaselineTokenBudget: p.cfg.BaselineTokenBudget,
		MaxRelationshipContext: p.cfg.MaxRelationshipContext,
		Graph:               p.graph,
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.StoreError, "retrieval.Retrieve", "assemble", err)
	}
	return assembled, nil
}

func (p *Pipeline) expansionEdgeTypes() []domain.EdgeType {
	if len(p.cfg.ExpansionEdgeTypes) == 0 {
		return domain.ExpansionEdgeTypes
	}
	out := make([]domain.EdgeType, len(p.cfg.ExpansionEdgeTypes))
	for i, s := range p.cfg.ExpansionEdgeTypes {
		out[i] = domain.EdgeType(s)
	}
	return out
}

// graphScore implements spec.md §4.2 stage 4: sum over connections of
// direct_connection_boost x hop_decay^hop x (1 + source vector score if the
// source was itself a vector result, else 1), clamped to [0,1].
func (p *Pipeline) graphScore(conns []domain.Connection, vectorScoreByID map[string]float64) float64 {
	if len(conns) == 0 {
		return 0
	}
	var total float64
	for _, c := range conns {
		boost := 1.0
		if sv, ok := vectorScoreByID[c.SourceID]; ok {
			boost = 1 + sv
		}
		total += p.cfg.DirectConnectionBoost * math.Pow(p.cfg.HopDecay, float64(c.Hops)) * boost
	}
	if total > 1 {
		total = 1
	}
	if total < 0 {
		total = 0
	}
	return total
}

// contradictionSources reports, for each candidate id in byID, whether any
// other candidate in the same set holds an incoming CONTRADICTS edge to it.
func (p *Pipeline) contradictionSources(ctx context.Context, byID map[string]*domain.Memory) map[string]bool {
	out := map[string]bool{}
	for id := range byID {
		edges, err := p.graph.EdgesTo(ctx, id, domain.NodeMemory, domain.EdgeContradicts)
		if err != nil {
			continue
		}
		for _, e := range edges {
			if byID[e.FromID] != nil {
				out[id] = true
				break
			}
		}
	}
	return out
}

// cacheKeyFor derives a candidate-set cache key from the query text and the
// filter/limit that shape its result set, so two distinct queries under the
// same filter never collide.
func cacheKeyFor(queryText string, filter memorystore.Filter, candidateLimit int) string {
	key := fmt.Sprintf("%s|%d|%g|%d|%v|%v", queryText, candidateLimit, filter.MinPriority, filter.MaxTokenCount, filter.ExcludeEphemeral, filter.Scopes)
	return key
}
