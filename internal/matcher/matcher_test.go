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

package matcher

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dmmproject/agentos/internal/domain"
)

func agents() []*domain.Agent {
	return []*domain.Agent{
		{
			ID: "researcher", Enabled: true, Category: "research", Tags: []string{"search", "analysis"},
			Skills:   domain.SkillsConfig{Primary: []string{"web-search"}, Secondary: []string{"summarize"}},
			Behavior: domain.BehaviorConfig{FocusAreas: []string{"deep research", "fact checking"}},
		},
		{
			ID: "writer", Enabled: true, Category: "authoring", Tags: []string{"writing"},
			Skills:   domain.SkillsConfig{Primary: []string{"summarize"}},
			Behavior: domain.BehaviorConfig{FocusAreas: []string{"prose drafting"}},
		},
		{
			ID: "disabled-agent", Enabled: false, Category: "research",
			Skills: domain.SkillsConfig{Primary: []string{"web-search"}},
		},
	}
}

func TestMatchScoresBySkillRequirement(t *testing.T) {
	results := Match(agents(), Request{RequiredSkills: []string{"web-search"}})
	require.NotEmpty(t, results)
	require.Equal(t, "researcher", results[0].AgentID)
}

func TestMatchExcludesDisabledAgents(t *testing.T) {
	results := Match(agents(), Request{RequiredSkills: []string{"web-search"}})
	for _, r := range results {
		require.NotEqual(t, "disabled-agent", r.AgentID)
	}
}

func TestMatchUsesDescriptionForBehaviorAndTags(t *testing.T) {
	results := Match(agents(), Request{Description: "I need deep research and fact checking"})
	require.NotEmpty(t, results)
	require.Equal(t, "researcher", results[0].AgentID)
	require.Contains(t, results[0].Rationale, "focus areas mention")
}

func TestMatchPartialSkillCreditForSecondary(t *testing.T) {
	results := Match(agents(), Request{RequiredSkills: []string{"summarize"}})
	require.Len(t, results, 2)
	var writerScore, researcherScore float64
	for _, r := range results {
		if r.AgentID == "writer" {
			writerScore = r.Score
		}
		if r.AgentID == "researcher" {
			researcherScore = r.Score
		}
	}
	require.Greater(t, writerScore, researcherScore, "primary skill credit should outrank secondary")
}

func TestMatchReturnsEmptyWhenNothingScores(t *testing.T) {
	results := Match(agents(), Request{RequiredSkills: []string{"nonexistent-skill"}})
	require.Empty(t, results)
}
