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

package conflict

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/dmmproject/agentos/internal/domain"
)

// Analyzer is a stateless detector of one kind of candidate conflict
// (spec.md §4.3). Each analyzer caps its own output at maxCandidates.
type Analyzer interface {
	Method() domain.DetectionMethod
	Analyze(ctx context.Context, memories []*domain.Memory, maxCandidates int) ([]domain.ConflictCandidate, error)
}

// TagOverlapAnalyzer flags memory pairs whose tag sets are Jaccard-similar
// above a threshold.
type TagOverlapAnalyzer struct {
	Threshold float64
}

func (a *TagOverlapAnalyzer) Method() domain.DetectionMethod { return domain.MethodTagOverlap }

func (a *TagOverlapAnalyzer) Analyze(_ context.Context, memories []*domain.Memory, maxCandidates int) ([]domain.ConflictCandidate, error) {
	var out []domain.ConflictCandidate
	for i, m1 := range memories {
		set1 := tagSet(m1.Tags)
		if len(set1) == 0 {
			continue
		}
		for j := i + 1; j < len(memories); j++ {
			m2 := memories[j]
			set2 := tagSet(m2.Tags)
			if len(set2) == 0 {
				continue
			}
			score := jaccard(set1, set2)
			if score < a.Threshold {
				continue
			}
			out = append(out, domain.ConflictCandidate{
				M1ID: m1.ID, M2ID: m2.ID, Method: a.Method(), RawScore: score,
				Evidence: fmt.Sprintf("tag overlap %.2f", score),
			})
			if maxCandidates > 0 && len(out) >= maxCandidates {
				return out, nil
			}
		}
	}
	return out, nil
}

// SemanticAnalyzer flags memory pairs whose composite embeddings are
// cosine-similar above a threshold.
type SemanticAnalyzer struct {
	Threshold float64
}

func (a *SemanticAnalyzer) Method() domain.DetectionMethod { return domain.MethodSemantic }

func (a *SemanticAnalyzer) Analyze(_ context.Context, memories []*domain.Memory, maxCandidates int) ([]domain.ConflictCandidate, error) {
	var out []domain.ConflictCandidate
	for i, m1 := range memories {
		if len(m1.CompositeEmbedding) == 0 {
			continue
		}
		for j := i + 1; j < len(memories); j++ {
			m2 := memories[j]
			if len(m2.CompositeEmbedding) == 0 {
				continue
			}
			score := cosineSimilarity(m1.CompositeEmbedding, m2.CompositeEmbedding)
			if score < a.Threshold {
				continue
			}
			out = append(out, domain.ConflictCandidate{
				M1ID: m1.ID, M2ID: m2.ID, Method: a.Method(), RawScore: score,
				Evidence: fmt.Sprintf("semantic similarity %.2f", score),
			})
			if maxCandidates > 0 && len(out) >= maxCandidates {
				return out, nil
			}
		}
	}
	return out, nil
}

// SupersessionAnalyzer flags explicit supersedes: front-matter references
// whose target is among the scanned memories. It does not compare claims
// or creation dates, so an unreferenced replacement is not flagged.
type SupersessionAnalyzer struct{}

func (a *SupersessionAnalyzer) Method() domain.DetectionMethod { return domain.MethodSupersession }

func (a *SupersessionAnalyzer) Analyze(_ context.Context, memories []*domain.Memory, maxCandidates int) ([]domain.ConflictCandidate, error) {
	byID := make(map[string]*domain.Memory, len(memories))
	for _, m := range memories {
		byID[m.ID] = m
	}

	var out []domain.ConflictCandidate
	for _, m := range memories {
		for _, supersededID := range m.Supersedes {
			if byID[supersededID] == nil {
				continue
			}
			out = append(out, domain.ConflictCandidate{
				M1ID: m.ID, M2ID: supersededID, Method: a.Method(), RawScore: 1.0,
				Evidence: "explicit supersedes reference",
			})
			if maxCandidates > 0 && len(out) >= maxCandidates {
				return out, nil
			}
		}
	}
	return out, nil
}

// RuleExtractionAnalyzer is the optional, LLM-assisted analyzer that
// extracts normative rules ("always X" / "never X") from memory bodies and
// flags pairwise contradictions between them (spec.md §4.3).
type RuleExtractionAnalyzer struct {
	Client conflictLLMClient
}

// conflictLLMClient mirrors internal/extract's LLMClient shape; kept local
// to avoid an import cycle between conflict and extract.
type conflictLLMClient interface {
	Call(ctx context.Context, prompt string, params map[string]any) (string, error)
}

func (a *RuleExtractionAnalyzer) Method() domain.DetectionMethod { return domain.MethodRuleExtraction }

func (a *RuleExtractionAnalyzer) Analyze(ctx context.Context, memories []*domain.Memory, maxCandidates int) ([]domain.ConflictCandidate, error) {
	if a.Client == nil {
		return nil, nil
	}

	rules := make(map[string][]string, len(memories))
	for _, m := range memories {
		rules[m.ID] = extractNormativeRules(m.Body)
	}

	var out []domain.ConflictCandidate
	for i, m1 := range memories {
		for j := i + 1; j < len(memories); j++ {
			m2 := memories[j]
			if !rulesConflict(rules[m1.ID], rules[m2.ID]) {
				continue
			}
			prompt := fmt.Sprintf("Do these two rule sets contradict each other?\nA: %v\nB: %v", rules[m1.ID], rules[m2.ID])
			resp, err := a.Client.Call(ctx, prompt, nil)
			if err != nil {
				slog.Warn("conflict: rule extraction LLM call failed", "error", err)
				continue
			}
			if !strings.Contains(strings.ToLower(resp), "yes") {
				continue
			}
			out = append(out, domain.ConflictCandidate{
				M1ID: m1.ID, M2ID: m2.ID, Method: a.Method(), RawScore: 0.8,
				Evidence: "conflicting normative rules",
			})
			if maxCandidates > 0 && len(out) >= maxCandidates {
				return out, nil
			}
		}
	}
	return out, nil
}

// extractNormativeRules does a cheap lexical pass for "always"/"never"
// sentences; the LLM call above only runs on pairs this pass flags as
// worth comparing.
func extractNormativeRules(body string) []string {
	var rules []string
	for _, sentence := range strings.Split(body, ".") {
		lower := strings.ToLower(sentence)
		if strings.Contains(lower, "always ") || strings.Contains(lower, "never ") {
			rules = append(rules, strings.TrimSpace(sentence))
		}
	}
	return rules
}

func rulesConflict(a, b []string) bool {
	return len(a) > 0 && len(b) > 0
}

func tagSet(tags []string) map[string]bool {
	out := make(map[string]bool, len(tags))
	for _, t := range tags {
		out[t] = true
	}
	return out
}

func jaccard(a, b map[string]bool) float64 {
	var intersection int
	for t := range a {
		if b[t] {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
