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
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dmmproject/agentos/internal/domain"
	"github.com/dmmproject/agentos/internal/graphstore"
)

// allowedLLMEdgeTypes is the fixed relationship vocabulary the LLM
// extractor may label (spec.md §4.2.2).
var allowedLLMEdgeTypes = map[string]domain.EdgeType{
	"SUPPORTS":    domain.EdgeSupports,
	"CONTRADICTS": domain.EdgeContradicts,
	"DEPENDS_ON":  domain.EdgeDependsOn,
	"SUPERSEDES":  domain.EdgeSupersedes,
	"RELATES_TO":  domain.EdgeRelatesTo,
}

// LLMExtractor is the optional, expensive extractor that asks an LLM to
// label relationships between a high-priority memory and a batch of
// candidate neighbors (spec.md §4.2.2).
type LLMExtractor struct {
	Client             LLMClient
	Graph              *graphstore.Store
	MinPriority        float64
	MaxContextMemories int
}

type llmRelation struct {
	FromID     string  `json:"from_id"`
	ToID       string  `json:"to_id"`
	Type       string  `json:"type"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
}

func (e *LLMExtractor) Extract(ctx context.Context, memories []*domain.Memory) ([]EdgeCandidate, error) {
	if e.Client == nil {
		return nil, nil
	}

	byID := make(map[string]*domain.Memory, len(memories))
	for _, m := range memories {
		byID[m.ID] = m
	}

	var out []EdgeCandidate
	for _, target := range memories {
		if target.Priority < e.MinPriority {
			continue
		}
		candidates := pickCandidates(target, memories, e.MaxContextMemories)
		if len(candidates) == 0 {
			continue
		}

		prompt := buildLLMPrompt(target, candidates)
		raw, err := e.callLLM(ctx, prompt)
		if err != nil {
			slog.Warn("extract: LLM extractor call failed, dropping batch", "memory_id", target.ID, "error", err)
			continue
		}

		relations, err := parseLLMRelations(raw)
		if err != nil {
			slog.Warn("extract: LLM extractor response was not valid JSON, dropping batch", "memory_id", target.ID, "error", err)
			continue
		}

		for _, r := range relations {
			edgeType, ok := allowedLLMEdgeTypes[r.Type]
			if !ok || byID[r.FromID] == nil || byID[r.ToID] == nil {
				continue
			}
			out = append(out, EdgeCandidate{FromID: r.FromID, ToID: r.ToID, Type: edgeType, Weight: clampWeight(r.Confidence), Context: r.Reason})
		}
	}
	return out, nil
}

func (e *LLMExtractor) callLLM(ctx context.Context, prompt string) (string, error) {
	if jc, ok := e.Client.(JSONCaller); ok {
		return jc.CallJSON(ctx, prompt, llmRelation{})
	}
	return e.Client.Call(ctx, prompt, nil)
}

func pickCandidates(target *domain.Memory, pool []*domain.Memory, max int) []*domain.Memory {
	var out []*domain.Memory
	for _, m := range pool {
		if m.ID == target.ID {
			continue
		}
		out = append(out, m)
		if max > 0 && len(out) >= max {
			break
		}
	}
	return out
}

func buildLLMPrompt(target *domain.Memory, candidates []*domain.Memory) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Memory %s: %s\n%s\n\n", target.ID, target.Title, target.Body)
	b.WriteString("Candidate memories:\n")
	for _, c := range candidates {
		fmt.Fprintf(&b, "- %s: %s\n%s\n\n", c.ID, c.Title, c.Body)
	}
	b.WriteString("Label relationships between memory " + target.ID + " and each candidate using one of " +
		"SUPPORTS, CONTRADICTS, DEPENDS_ON, SUPERSEDES, RELATES_TO. Respond as a JSON array of objects " +
		"{\"from_id\", \"to_id\", \"type\", \"confidence\", \"reason\"}. Omit pairs with no relationship.")
	return b.String()
}

// parseLLMRelations strips markdown code fences (LLMs routinely wrap JSON
// in ```json blocks despite instructions) before parsing.
func parseLLMRelations(raw string) ([]llmRelation, error) {
	trimmed := strings.TrimSpace(raw)
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(trimmed, "```")
	trimmed = strings.TrimSpace(trimmed)

	var relations []llmRelation
	if err := json.Unmarshal([]byte(trimmed), &relations); err != nil {
		return nil, err
	}
	return relations, nil
}
