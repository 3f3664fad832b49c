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

package domain

// Connection describes how a retrieval candidate was reached from a vector
// search result during graph expansion (spec.md §4.2 stage 3).
type Connection struct {
	SourceID string
	EdgeType EdgeType
	Hops     int
}

// RetrievalResult is one ranked memory produced by the hybrid retrieval
// pipeline (spec.md §3, §4.2).
type RetrievalResult struct {
	Memory *Memory

	VectorScore   float64
	GraphScore    float64
	CombinedScore float64

	Connections []Connection
}

// AssembledContext is the final output of the Context Assembler
// (spec.md §4.2.1): a formatted context pack plus the metadata needed to
// render it in any of the three output formats.
type AssembledContext struct {
	Format string // "markdown", "json", "text"
	Body   string

	Warnings  []string
	Baseline  []*Memory
	Results   []RetrievalResult

	TokenEstimate int
	TokenBudget   int
	Truncated     bool
}
