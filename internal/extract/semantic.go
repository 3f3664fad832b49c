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
	"math"

	"github.com/dmmproject/agentos/internal/domain"
)

// SemanticExtractor proposes RELATES_TO edges (and, above a higher
// threshold, candidate SUPPORTS edges) between memories whose composite
// embeddings are highly similar (spec.md §4.2.2).
type SemanticExtractor struct {
	RelatesThreshold  float64
	SupportsThreshold float64
}

func (s *SemanticExtractor) Extract(_ context.Context, memories []*domain.Memory) ([]EdgeCandidate, error) {
	var out []EdgeCandidate
	for i, a := range memories {
		if len(a.CompositeEmbedding) == 0 {
			continue
		}
		for j := i + 1; j < len(memories); j++ {
			b := memories[j]
			if len(b.CompositeEmbedding) == 0 {
				continue
			}
			sim := cosineSimilarity(a.CompositeEmbedding, b.CompositeEmbedding)
			if sim < s.RelatesThreshold {
				continue
			}
			weight := clampWeight(sim)
			ctx := fmt.Sprintf("semantic similarity %.2f", sim)
			if sim >= s.SupportsThreshold {
				out = append(out, EdgeCandidate{FromID: a.ID, ToID: b.ID, Type: domain.EdgeSupports, Weight: weight, Context: ctx})
				out = append(out, EdgeCandidate{FromID: b.ID, ToID: a.ID, Type: domain.EdgeSupports, Weight: weight, Context: ctx})
				continue
			}
			out = append(out, EdgeCandidate{FromID: a.ID, ToID: b.ID, Type: domain.EdgeRelatesTo, Weight: weight, Context: ctx})
			out = append(out, EdgeCandidate{FromID: b.ID, ToID: a.ID, Type: domain.EdgeRelatesTo, Weight: weight, Context: ctx})
		}
	}
	return out, nil
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
