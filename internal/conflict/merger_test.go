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
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dmmproject/agentos/internal/domain"
)

func TestClassifySupersessionBeatsEverythingElse(t *testing.T) {
	group := []domain.ConflictCandidate{
		{M1ID: "a", M2ID: "b", Method: domain.MethodSemantic, RawScore: 0.99},
		{M1ID: "a", M2ID: "b", Method: domain.MethodSupersession, RawScore: 1.0},
	}
	byID := map[string]*domain.Memory{
		"a": {ID: "a", Scope: domain.ScopeGlobal},
		"b": {ID: "b", Scope: domain.ScopeGlobal},
	}
	cls, method := classify(group, byID, mergerConfig{DuplicateThreshold: 0.9, StalenessDays: 180}, time.Now())
	require.Equal(t, domain.ConflictSupersession, cls)
	require.Equal(t, domain.MethodSupersession, method)
}

func TestClassifySemanticDuplicateRequiresSameScope(t *testing.T) {
	group := []domain.ConflictCandidate{
		{M1ID: "a", M2ID: "b", Method: domain.MethodSemantic, RawScore: 0.95},
	}
	byID := map[string]*domain.Memory{
		"a": {ID: "a", Scope: domain.ScopeGlobal},
		"b": {ID: "b", Scope: domain.ScopeProject},
	}
	cls, _ := classify(group, byID, mergerConfig{DuplicateThreshold: 0.9, StalenessDays: 180}, time.Now())
	require.Equal(t, domain.ConflictContradictory, cls)
}

func TestClassifyRuleExtractionBeatsTagOverlap(t *testing.T) {
	group := []domain.ConflictCandidate{
		{M1ID: "a", M2ID: "b", Method: domain.MethodTagOverlap, RawScore: 0.6},
		{M1ID: "a", M2ID: "b", Method: domain.MethodRuleExtraction, RawScore: 0.8},
	}
	byID := map[string]*domain.Memory{"a": {ID: "a"}, "b": {ID: "b"}}
	cls, method := classify(group, byID, mergerConfig{DuplicateThreshold: 0.9, StalenessDays: 180}, time.Now())
	require.Equal(t, domain.ConflictContradictory, cls)
	require.Equal(t, domain.MethodRuleExtraction, method)
}

func TestClassifyTagOverlapAloneIsScopeOverlap(t *testing.T) {
	group := []domain.ConflictCandidate{
		{M1ID: "a", M2ID: "b", Method: domain.MethodTagOverlap, RawScore: 0.6},
	}
	byID := map[string]*domain.Memory{"a": {ID: "a"}, "b": {ID: "b"}}
	cls, method := classify(group, byID, mergerConfig{DuplicateThreshold: 0.9, StalenessDays: 180}, time.Now())
	require.Equal(t, domain.ConflictScopeOverlap, cls)
	require.Equal(t, domain.MethodTagOverlap, method)
}

// TestClassifyFallsBackToStalenessWhenNothingSharperMatched covers the
// redesign that replaced the original self-paired StaleCandidates approach:
// staleness is a fallback evaluated against the real pair under
// classification, not an independently generated candidate (domain.Conflict
// rejects M1ID == M2ID).
func TestClassifyFallsBackToStalenessWhenNothingSharperMatched(t *testing.T) {
	now := time.Now()
	group := []domain.ConflictCandidate{
		{M1ID: "a", M2ID: "b", Method: domain.MethodSemantic, RawScore: 0.5},
	}
	byID := map[string]*domain.Memory{
		"a": {ID: "a", Scope: domain.ScopeGlobal, LastUsed: now.AddDate(0, 0, -200)},
		"b": {ID: "b", Scope: domain.ScopeGlobal, LastUsed: now.AddDate(0, 0, -1)},
	}
	cls, _ := classify(group, byID, mergerConfig{DuplicateThreshold: 0.9, StalenessDays: 180}, now)
	require.Equal(t, domain.ConflictStale, cls)
}

func TestClassifyDefaultsToContradictory(t *testing.T) {
	now := time.Now()
	group := []domain.ConflictCandidate{
		{M1ID: "a", M2ID: "b", Method: domain.MethodSemantic, RawScore: 0.5},
	}
	byID := map[string]*domain.Memory{
		"a": {ID: "a", Scope: domain.ScopeGlobal, LastUsed: now},
		"b": {ID: "b", Scope: domain.ScopeGlobal, LastUsed: now},
	}
	cls, _ := classify(group, byID, mergerConfig{DuplicateThreshold: 0.9, StalenessDays: 180}, now)
	require.Equal(t, domain.ConflictContradictory, cls)
}

func TestIsStaleHandlesZeroLastUsed(t *testing.T) {
	require.False(t, isStale(&domain.Memory{}, 180, time.Now()))
	require.False(t, isStale(nil, 180, time.Now()))
}
