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

// Package assemble implements the Context Assembler (spec.md §4.2.1):
// contradiction warnings, dependency ordering, three output formats, and
// token budgeting over a ranked retrieval result set.
package assemble

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/dmmproject/agentos/internal/domain"
	"github.com/dmmproject/agentos/internal/graphstore"
	"github.com/dmmproject/agentos/internal/tokencount"
)

// Input is everything Assemble needs to build an AssembledContext.
type Input struct {
	Baseline               []*domain.Memory
	Results                []domain.RetrievalResult
	Format                 string // "markdown", "json", "text"
	TotalTokenBudget       int
	BaselineTokenBudget    int
	MaxRelationshipContext int
	Graph                  *graphstore.Store
}

// Assemble builds the final context pack.
func Assemble(ctx context.Context, in Input) (*domain.AssembledContext, error) {
	warnings := contradictionWarnings(ctx, in.Graph, in.Results)
	ordered := dependencyOrder(ctx, in.Graph, in.Results)

	out := &domain.AssembledContext{
		Format:      formatOrDefault(in.Format),
		Warnings:    warnings,
		Baseline:    in.Baseline,
		Results:     ordered,
		TokenBudget: in.TotalTokenBudget,
	}

	body := render(out, in.MaxRelationshipContext)
	estimate := tokencount.EstimateTokens(body)
	out.TokenEstimate = estimate

	if in.TotalTokenBudget > 0 && estimate > in.TotalTokenBudget {
		body, out.Truncated = truncateToBudget(body, in.TotalTokenBudget)
		out.TokenEstimate = tokencount.EstimateTokens(body)
	}
	out.Body = body
	return out, nil
}

func formatOrDefault(f string) string {
	switch f {
	case "json", "text":
		return f
	default:
		return "markdown"
	}
}

// contradictionWarnings produces one deduplicated warning per unordered
// pair in the result set connected by a CONTRADICTS edge.
func contradictionWarnings(ctx context.Context, graph *graphstore.Store, results []domain.RetrievalResult) []string {
	if graph == nil {
		return nil
	}
	inSet := make(map[string]bool, len(results))
	for _, r := range results {
		inSet[r.Memory.ID] = true
	}

	seen := map[string]bool{}
	var warnings []string
	for _, r := range results {
		edges, err := graph.EdgesFrom(ctx, r.Memory.ID, domain.NodeMemory, domain.EdgeContradicts)
		if err != nil {
			continue
		}
		for _, e := range edges {
			if !inSet[e.ToID] {
				continue
			}
			key := pairKey(r.Memory.ID, e.ToID)
			if seen[key] {
				continue
			}
			seen[key] = true
			warnings = append(warnings, fmt.Sprintf("Potential contradiction: %s <-> %s: %s", r.Memory.ID, e.ToID, e.Description))
		}
	}
	sort.Strings(warnings)
	return warnings
}

func pairKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + "|" + b
}

// dependencyOrder topologically sorts results on DEPENDS_ON edges within
// the result set, breaking ties by combined score descending; a cycle
// (illegal but must be tolerated) falls back to pure score order.
func dependencyOrder(ctx context.Context, graph *graphstore.Store, results []domain.RetrievalResult) []domain.RetrievalResult {
	scoreSorted := make([]domain.RetrievalResult, len(results))
	copy(scoreSorted, results)
	sort.SliceStable(scoreSorted, func(i, j int) bool { return scoreSorted[i].CombinedScore > scoreSorted[j].CombinedScore })

	if graph == nil || len(results) == 0 {
		return scoreSorted
	}

	inSet := make(map[string]bool, len(results))
	byID := make(map[string]domain.RetrievalResult, len(results))
	for _, r := range results {
		inSet[r.Memory.ID] = true
		byID[r.Memory.ID] = r
	}

	deps := map[string][]string{} // id -> ids it depends on (must come first)
	for _, r := range results {
		edges, err := graph.EdgesFrom(ctx, r.Memory.ID, domain.NodeMemory, domain.EdgeDependsOn)
		if err != nil {
			continue
		}
		for _, e := range edges {
			if inSet[e.ToID] {
				deps[r.Memory.ID] = append(deps[r.Memory.ID], e.ToID)
			}
		}
	}

	order, ok := topoSort(scoreSorted, deps)
	if !ok {
		return scoreSorted
	}
	return order
}

// topoSort returns results ordered so every dependency precedes its
// dependent, ties broken by the pre-sorted input order (already
// score-descending). ok is false if a cycle is detected.
func topoSort(scoreSorted []domain.RetrievalResult, deps map[string][]string) ([]domain.RetrievalResult, bool) {
	visited := map[string]int{} // 0=unvisited, 1=in-progress, 2=done
	var order []domain.RetrievalResult
	byID := make(map[string]domain.RetrievalResult, len(scoreSorted))
	for _, r := range scoreSorted {
		byID[r.Memory.ID] = r
	}

	var visit func(id string) bool
	visit = func(id string) bool {
		switch visited[id] {
		case 2:
			return true
		case 1:
			return false // cycle
		}
		visited[id] = 1
		for _, dep := range deps[id] {
			if !visit(dep) {
				return false
			}
		}
		visited[id] = 2
		if r, ok := byID[id]; ok {
			order = append(order, r)
		}
		return true
	}

	for _, r := range scoreSorted {
		if !visit(r.Memory.ID) {
			return nil, false
		}
	}
	return order, true
}

func truncateToBudget(body string, budget int) (string, bool) {
	maxChars := budget * 4 // inverse of tokencount's chars*0.25 estimate
	if len(body) <= maxChars {
		return body, false
	}
	// Cut at the last blank line (the separator between sections and
	// entries in every format), else the last line break.
	cut := strings.LastIndex(body[:maxChars], "\n\n")
	if cut <= 0 {
		cut = strings.LastIndex(body[:maxChars], "\n")
	}
	if cut <= 0 {
		cut = maxChars
	}
	return body[:cut] + "\n\n[Content truncated to fit token budget]", true
}
