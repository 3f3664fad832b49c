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

// Package graphanalysis finds groups of highly interconnected memories and
// flags pairs of memories that look related but carry no edge between them.
// It sits downstream of graphstore and memorystore: both detectors read the
// graph and the memory list but never write either.
package graphanalysis

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/dmmproject/agentos/internal/config"
	"github.com/dmmproject/agentos/internal/domain"
	"github.com/dmmproject/agentos/internal/graphstore"
	"github.com/dmmproject/agentos/internal/memorystore"
)

// Cluster is a connected component of memories linked by RELATES_TO,
// SUPPORTS, or DEPENDS_ON edges meeting a minimum weight.
type Cluster struct {
	ID              string       `json:"id"`
	MemoryIDs       []string     `json:"memory_ids"`
	Size            int          `json:"size"`
	Density         float64      `json:"density"`
	AvgEdgeWeight   float64      `json:"avg_edge_weight"`
	CentralMemoryID string       `json:"central_memory_id,omitempty"`
	CommonTags      []string     `json:"common_tags,omitempty"`
	CommonScope     domain.Scope `json:"common_scope,omitempty"`
	InternalEdges   int          `json:"internal_edges"`
}

// Gap is a pair of memories whose tags overlap enough to suggest a missing
// relationship, found nowhere in the graph's direct edges.
type Gap struct {
	MemoryID1       string   `json:"memory_id_1"`
	MemoryID2       string   `json:"memory_id_2"`
	SimilarityScore float64  `json:"similarity_score"`
	SharedTags      []string `json:"shared_tags"`
	SameScope       bool     `json:"same_scope"`
	Reason          string   `json:"reason"`
}

// Result is the output of Detect: clusters, optional gaps, and summary
// counts over the set of memories analyzed.
type Result struct {
	Clusters           []Cluster `json:"clusters"`
	Gaps               []Gap     `json:"knowledge_gaps,omitempty"`
	TotalMemories      int       `json:"total_memories"`
	ClusteredMemories  int       `json:"clustered_memories"`
	SingletonCount     int       `json:"singleton_count"`
	LargestClusterSize int       `json:"largest_cluster_size"`
	AvgClusterSize     float64   `json:"avg_cluster_size"`
}

// Detector runs connected-component clustering and Jaccard-similarity gap
// detection over a graphstore/memorystore pair.
type Detector struct {
	graph    *graphstore.Store
	memories *memorystore.Store
	cfg      config.ClusterConfig
}

func New(graph *graphstore.Store, memories *memorystore.Store, cfg config.ClusterConfig) *Detector {
	return &Detector{graph: graph, memories: memories, cfg: cfg}
}

// Detect clusters every non-deprecated memory, then optionally flags
// knowledge gaps among the same set.
func (d *Detector) Detect(ctx context.Context) (*Result, error) {
	mems, err := d.memories.List(ctx, memorystore.Filter{ExcludeDeprecated: true})
	if err != nil {
		return nil, fmt.Errorf("listing memories: %w", err)
	}

	result := &Result{TotalMemories: len(mems)}
	if len(mems) == 0 {
		return result, nil
	}

	byID := make(map[string]*domain.Memory, len(mems))
	ids := make([]string, 0, len(mems))
	for _, m := range mems {
		byID[m.ID] = m
		ids = append(ids, m.ID)
	}

	adjacency, weights, err := d.buildAdjacency(ctx, ids)
	if err != nil {
		return nil, err
	}

	components := connectedComponents(ids, adjacency)

	var clusters []Cluster
	clusteredIDs := make(map[string]bool)
	for i, component := range components {
		if len(component) < d.cfg.MinClusterSize && !d.cfg.IncludeSingletons {
			continue
		}
		c := d.buildCluster(fmt.Sprintf("cluster_%03d", i), component, byID, adjacency, weights)
		clusters = append(clusters, c)
		for _, id := range component {
			clusteredIDs[id] = true
		}
	}
	sort.Slice(clusters, func(i, j int) bool { return clusters[i].Size > clusters[j].Size })

	result.Clusters = clusters
	result.ClusteredMemories = len(clusteredIDs)
	result.SingletonCount = result.TotalMemories - result.ClusteredMemories
	if len(clusters) > 0 {
		result.LargestClusterSize = clusters[0].Size
		var total int
		for _, c := range clusters {
			total += c.Size
		}
		result.AvgClusterSize = float64(total) / float64(len(clusters))
	}

	if d.cfg.DetectKnowledgeGaps {
		result.Gaps = d.findGaps(byID, ids, adjacency)
	}

	return result, nil
}

// buildAdjacency pulls edges of the configured clustering types between the
// given memory IDs, keeping only those at or above MinEdgeWeight.
func (d *Detector) buildAdjacency(ctx context.Context, ids []string) (map[string][]string, map[[2]string]float64, error) {
	idSet := make(map[string]bool, len(ids))
	for _, id := range ids {
		idSet[id] = true
	}

	var edgeTypes []domain.EdgeType
	for _, t := range d.cfg.EdgeTypesForClustering {
		edgeTypes = append(edgeTypes, domain.EdgeType(t))
	}

	adjacency := make(map[string][]string, len(ids))
	weights := make(map[[2]string]float64)

	for _, id := range ids {
		edges, err := d.graph.EdgesFrom(ctx, id, domain.NodeMemory, edgeTypes...)
		if err != nil {
			return nil, nil, fmt.Errorf("edges from %s: %w", id, err)
		}
		for _, e := range edges {
			if !idSet[e.ToID] || e.Weight < d.cfg.MinEdgeWeight {
				continue
			}
			adjacency[id] = append(adjacency[id], e.ToID)
			adjacency[e.ToID] = append(adjacency[e.ToID], id)
			weights[edgeKey(id, e.ToID)] = e.Weight
		}
	}
	return adjacency, weights, nil
}

func edgeKey(a, b string) [2]string {
	if a < b {
		return [2]string{a, b}
	}
	return [2]string{b, a}
}

// connectedComponents finds components via iterative DFS, visiting ids in a
// fixed order so results are deterministic across runs.
func connectedComponents(ids []string, adjacency map[string][]string) [][]string {
	visited := make(map[string]bool, len(ids))
	var components [][]string

	for _, start := range ids {
		if visited[start] {
			continue
		}
		var component []string
		stack := []string{start}
		for len(stack) > 0 {
			node := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if visited[node] {
				continue
			}
			visited[node] = true
			component = append(component, node)
			for _, neighbor := range adjacency[node] {
				if !visited[neighbor] {
					stack = append(stack, neighbor)
				}
			}
		}
		sort.Strings(component)
		components = append(components, component)
	}
	return components
}

func (d *Detector) buildCluster(id string, memberIDs []string, byID map[string]*domain.Memory, adjacency map[string][]string, weights map[[2]string]float64) Cluster {
	members := make(map[string]bool, len(memberIDs))
	for _, m := range memberIDs {
		members[m] = true
	}

	degree := make(map[string]int, len(memberIDs))
	internalEdges := 0
	var edgeWeights []float64
	for _, mid := range memberIDs {
		for _, neighbor := range adjacency[mid] {
			if !members[neighbor] {
				continue
			}
			degree[mid]++
			if mid < neighbor {
				internalEdges++
				edgeWeights = append(edgeWeights, weights[edgeKey(mid, neighbor)])
			}
		}
	}

	size := len(memberIDs)
	maxEdges := 1
	if size > 1 {
		maxEdges = size * (size - 1) / 2
	}
	density := float64(internalEdges) / float64(maxEdges)

	var avgWeight float64
	if len(edgeWeights) > 0 {
		var sum float64
		for _, w := range edgeWeights {
			sum += w
		}
		avgWeight = sum / float64(len(edgeWeights))
	}

	var central string
	bestDegree := -1
	for _, mid := range memberIDs {
		if degree[mid] > bestDegree {
			bestDegree = degree[mid]
			central = mid
		}
	}

	tagCounts := make(map[string]int)
	scopeCounts := make(map[domain.Scope]int)
	for _, mid := range memberIDs {
		mem := byID[mid]
		if mem == nil {
			continue
		}
		for _, tag := range mem.Tags {
			tagCounts[strings.ToLower(tag)]++
		}
		if mem.Scope != "" {
			scopeCounts[mem.Scope]++
		}
	}

	type tagCount struct {
		tag   string
		count int
	}
	var sortedTags []tagCount
	for tag, count := range tagCounts {
		if float64(count) >= float64(size)*0.5 {
			sortedTags = append(sortedTags, tagCount{tag, count})
		}
	}
	sort.Slice(sortedTags, func(i, j int) bool { return sortedTags[i].count > sortedTags[j].count })
	var commonTags []string
	for i, tc := range sortedTags {
		if i >= 5 {
			break
		}
		commonTags = append(commonTags, tc.tag)
	}

	var commonScope domain.Scope
	bestScopeCount := 0
	for scope, count := range scopeCounts {
		if count > bestScopeCount {
			bestScopeCount = count
			commonScope = scope
		}
	}
	if float64(bestScopeCount) < float64(size)*0.5 {
		commonScope = ""
	}

	return Cluster{
		ID:              id,
		MemoryIDs:       memberIDs,
		Size:            size,
		Density:         density,
		AvgEdgeWeight:   avgWeight,
		CentralMemoryID: central,
		CommonTags:      commonTags,
		CommonScope:     commonScope,
		InternalEdges:   internalEdges,
	}
}

// findGaps flags memory pairs with no direct edge whose tag sets are
// Jaccard-similar enough to suggest a missing relationship, boosted 1.2x
// when the pair shares a scope.
func (d *Detector) findGaps(byID map[string]*domain.Memory, ids []string, adjacency map[string][]string) []Gap {
	neighborSet := make(map[string]map[string]bool, len(ids))
	for id, neighbors := range adjacency {
		set := make(map[string]bool, len(neighbors))
		for _, n := range neighbors {
			set[n] = true
		}
		neighborSet[id] = set
	}

	tagsOf := func(id string) map[string]bool {
		mem := byID[id]
		if mem == nil {
			return nil
		}
		set := make(map[string]bool, len(mem.Tags))
		for _, t := range mem.Tags {
			set[strings.ToLower(t)] = true
		}
		return set
	}

	var gaps []Gap
	for i, id1 := range ids {
		tags1 := tagsOf(id1)
		if len(tags1) == 0 {
			continue
		}
		for _, id2 := range ids[i+1:] {
			if neighborSet[id1][id2] {
				continue
			}
			tags2 := tagsOf(id2)
			if len(tags2) == 0 {
				continue
			}

			var shared []string
			union := make(map[string]bool)
			for t := range tags1 {
				union[t] = true
				if tags2[t] {
					shared = append(shared, t)
				}
			}
			for t := range tags2 {
				union[t] = true
			}
			if len(union) == 0 {
				continue
			}
			jaccard := float64(len(shared)) / float64(len(union))

			sameScope := byID[id1].Scope == byID[id2].Scope
			if sameScope {
				jaccard *= 1.2
			}

			if jaccard >= d.cfg.GapMinTagSimilarity {
				sort.Strings(shared)
				reason := fmt.Sprintf("high tag similarity (%.2f) but no direct relationship", jaccard)
				if sameScope {
					reason += fmt.Sprintf(" (same scope: %s)", byID[id1].Scope)
				}
				gaps = append(gaps, Gap{
					MemoryID1:       id1,
					MemoryID2:       id2,
					SimilarityScore: jaccard,
					SharedTags:      shared,
					SameScope:       sameScope,
					Reason:          reason,
				})
			}
		}
	}

	sort.Slice(gaps, func(i, j int) bool { return gaps[i].SimilarityScore > gaps[j].SimilarityScore })
	if len(gaps) > d.cfg.GapMaxResults {
		gaps = gaps[:d.cfg.GapMaxResults]
	}
	return gaps
}
