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

// Package matcher implements the AgentMatcher (spec.md §4.6): given a
// task description or a required skill/capability set, it scores every
// enabled agent and returns ranked matches with a rationale.
package matcher

import (
	"sort"
	"strings"

	"github.com/dmmproject/agentos/internal/domain"
)

const (
	skillWeight    = 0.5
	tagWeight      = 0.3
	behaviorWeight = 0.2
)

// Request names what the caller is looking for. Either or both of
// RequiredSkills and Description may be set; Description drives the
// tag/category and behavior-focus text matches, RequiredSkills drives the
// skill match.
type Request struct {
	Description     string
	RequiredSkills  []string
	RequiredTags    []string
}

// Match scores every enabled agent in agents against req (spec.md §4.6:
// score = 50% skill match + 30% tag/category match + 20% behavior
// focus-area text match), returning results sorted by score descending.
func Match(agents []*domain.Agent, req Request) []domain.MatchResult {
	words := queryWords(req.Description)

	var results []domain.MatchResult
	for _, a := range agents {
		if !a.Enabled {
			continue
		}
		skillScore, skillWhy := scoreSkills(a, req.RequiredSkills)
		tagScore, tagWhy := scoreTags(a, req.RequiredTags, words)
		behaviorScore, behaviorWhy := scoreBehavior(a, words)

		total := skillScore*skillWeight + tagScore*tagWeight + behaviorScore*behaviorWeight
		if total <= 0 {
			continue
		}

		var reasons []string
		for _, r := range []string{skillWhy, tagWhy, behaviorWhy} {
			if r != "" {
				reasons = append(reasons, r)
			}
		}
		results = append(results, domain.MatchResult{
			AgentID: a.ID, Score: total, Rationale: strings.Join(reasons, "; "),
		})
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	return results
}

func queryWords(description string) []string {
	fields := strings.FieldsFunc(strings.ToLower(description), func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9')
	})
	seen := map[string]bool{}
	var out []string
	for _, w := range fields {
		if len(w) < 3 || seen[w] {
			continue
		}
		seen[w] = true
		out = append(out, w)
	}
	return out
}

// scoreSkills returns the fraction of req's required skills the agent
// carries as primary (full credit) or secondary (half credit).
func scoreSkills(a *domain.Agent, required []string) (float64, string) {
	if len(required) == 0 {
		return 0, ""
	}
	primary := toSet(a.Skills.Primary)
	secondary := toSet(a.Skills.Secondary)

	var matched float64
	var hits []string
	for _, s := range required {
		switch {
		case primary[s]:
			matched++
			hits = append(hits, s+" (primary)")
		case secondary[s]:
			matched += 0.5
			hits = append(hits, s+" (secondary)")
		}
	}
	score := matched / float64(len(required))
	if len(hits) == 0 {
		return 0, ""
	}
	return score, "skills: " + strings.Join(hits, ", ")
}

// scoreTags credits matches against RequiredTags and against the
// description's words landing in the agent's category or tags.
func scoreTags(a *domain.Agent, requiredTags []string, words []string) (float64, string) {
	tagSet := toSet(a.Tags)
	var hits []string
	var matched, total float64

	for _, t := range requiredTags {
		total++
		if tagSet[t] {
			matched++
			hits = append(hits, t)
		}
	}

	for _, w := range words {
		if strings.EqualFold(a.Category, w) {
			matched++
			total++
			hits = append(hits, "category:"+a.Category)
			continue
		}
		if tagSet[w] {
			matched++
			total++
			hits = append(hits, w)
		}
	}

	if total == 0 {
		return 0, ""
	}
	if len(hits) == 0 {
		return 0, ""
	}
	return matched / total, "tags/category: " + strings.Join(hits, ", ")
}

// scoreBehavior credits description words found in the agent's focus
// areas and guidelines text.
func scoreBehavior(a *domain.Agent, words []string) (float64, string) {
	if len(words) == 0 {
		return 0, ""
	}
	haystack := strings.ToLower(strings.Join(append(append([]string{}, a.Behavior.FocusAreas...), a.Behavior.Guidelines...), " "))
	if haystack == "" {
		return 0, ""
	}

	var hits []string
	for _, w := range words {
		if strings.Contains(haystack, w) {
			hits = append(hits, w)
		}
	}
	if len(hits) == 0 {
		return 0, ""
	}
	return float64(len(hits)) / float64(len(words)), "focus areas mention: " + strings.Join(hits, ", ")
}

func toSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, i := range items {
		set[i] = true
	}
	return set
}
