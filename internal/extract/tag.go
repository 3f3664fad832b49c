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
	"fmt"

	"github.com/dmmproject/agentos/internal/domain"
)

// TagExtractor proposes RELATES_TO edges between memories whose tag sets
// overlap, weighted by Jaccard similarity (spec.md §4.2.2).
type TagExtractor struct {
	Threshold float64
}

func (t *TagExtractor) Extract(_ context.Context, memories []*domain.Memory) ([]EdgeCandidate, error) {
	var out []EdgeCandidate
	for i, a := range memories {
		setA := toSet(a.Tags)
		if len(setA) == 0 {
			continue
		}
		for j := i + 1; j < len(memories); j++ {
			b := memories[j]
			setB := toSet(b.Tags)
			if len(setB) == 0 {
				continue
			}
			jaccard := jaccardSimilarity(setA, setB)
			if jaccard < t.Threshold {
				continue
			}
			ctx := fmt.Sprintf("shared tags (jaccard=%.2f)", jaccard)
			out = append(out, EdgeCandidate{FromID: a.ID, ToID: b.ID, Type: domain.EdgeRelatesTo, Weight: jaccard, Context: ctx})
			out = append(out, EdgeCandidate{FromID: b.ID, ToID: a.ID, Type: domain.EdgeRelatesTo, Weight: jaccard, Context: ctx})
		}
	}
	return out, nil
}

func toSet(tags []string) map[string]bool {
	out := make(map[string]bool, len(tags))
	for _, t := range tags {
		out[t] = true
	}
	return out
}

func jaccardSimilarity(a, b map[string]bool) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
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
