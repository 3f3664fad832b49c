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
	"math"
	"time"

	"github.com/dmmproject/agentos/internal/domain"
)

// TemporalExtractor proposes low-weight RELATES_TO edges between memories
// created close together in time that share a scope (spec.md §4.2.2).
type TemporalExtractor struct {
	WindowHours int
	Weight      float64
}

func (t *TemporalExtractor) Extract(_ context.Context, memories []*domain.Memory) ([]EdgeCandidate, error) {
	window := time.Duration(t.WindowHours) * time.Hour
	var out []EdgeCandidate
	for i, a := range memories {
		for j := i + 1; j < len(memories); j++ {
			b := memories[j]
			if a.Scope != b.Scope {
				continue
			}
			delta := a.CreatedAt.Sub(b.CreatedAt)
			if delta < 0 {
				delta = -delta
			}
			if delta > window {
				continue
			}
			out = append(out, EdgeCandidate{FromID: a.ID, ToID: b.ID, Type: domain.EdgeRelatesTo, Weight: t.Weight, Context: "created close in time"})
			out = append(out, EdgeCandidate{FromID: b.ID, ToID: a.ID, Type: domain.EdgeRelatesTo, Weight: t.Weight, Context: "created close in time"})
		}
	}
	return out, nil
}

// clampWeight keeps a derived weight inside the valid [0,1] range spec.md
// §3 requires of every edge.
func clampWeight(w float64) float64 {
	return math.Max(0, math.Min(1, w))
}
