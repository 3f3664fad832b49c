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

package assemble

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dmmproject/agentos/internal/domain"
)

// render produces out.Body in the requested format. Token budgeting and
// truncation run on the returned string afterward.
func render(out *domain.AssembledContext, maxRelationshipContext int) string {
	switch out.Format {
	case "json":
		return renderJSON(out)
	case "text":
		return renderText(out, maxRelationshipContext)
	default:
		return renderMarkdown(out, maxRelationshipContext)
	}
}

func renderMarkdown(out *domain.AssembledContext, maxRel int) string {
	var b strings.Builder

	b.WriteString("# Context\n\n")

	if len(out.Warnings) > 0 {
		b.WriteString("## Warnings\n\n")
		for _, w := range out.Warnings {
			fmt.Fprintf(&b, "- %s\n", w)
		}
		b.WriteString("\n")
	}

	if len(out.Baseline) > 0 {
		b.WriteString("## Baseline\n\n")
		for _, m := range out.Baseline {
			fmt.Fprintf(&b, "### %s\n\n%s\n\n", m.Title, m.Body)
		}
	}

	if len(out.Results) > 0 {
		b.WriteString("## Retrieved Memories\n\n")
		for _, r := range out.Results {
			fmt.Fprintf(&b, "### %s\n\n", r.Memory.Title)
			fmt.Fprintf(&b, "_vector_score=%.3f graph_score=%.3f combined_score=%.3f_\n\n", r.VectorScore, r.GraphScore, r.CombinedScore)
			b.WriteString(r.Memory.Body)
			b.WriteString("\n\n")
			if len(r.Connections) > 0 {
				b.WriteString("Connections:\n")
				for _, c := range relationshipAnnotations(r.Connections, maxRel) {
					fmt.Fprintf(&b, "- %s\n", c)
				}
				b.WriteString("\n")
			}
		}
	}

	if rel := relationshipMap(out.Results); rel != "" {
		b.WriteString("## Relationship Map\n\n")
		b.WriteString(rel)
	}

	return b.String()
}

func renderText(out *domain.AssembledContext, maxRel int) string {
	var b strings.Builder

	for _, w := range out.Warnings {
		fmt.Fprintf(&b, "WARNING: %s\n", w)
	}
	if len(out.Warnings) > 0 {
		b.WriteString("\n")
	}

	for _, m := range out.Baseline {
		fmt.Fprintf(&b, "[baseline] %s\n%s\n\n", m.Title, m.Body)
	}

	for _, r := range out.Results {
		fmt.Fprintf(&b, "%s (vector=%.3f graph=%.3f combined=%.3f)\n%s\n", r.Memory.Title, r.VectorScore, r.GraphScore, r.CombinedScore, r.Memory.Body)
		for _, c := range relationshipAnnotations(r.Connections, maxRel) {
			fmt.Fprintf(&b, "  %s\n", c)
		}
		b.WriteString("\n")
	}

	return b.String()
}

type jsonMemory struct {
	ID            string   `json:"id"`
	Title         string   `json:"title"`
	Body          string   `json:"body"`
	VectorScore   float64  `json:"vector_score,omitempty"`
	GraphScore    float64  `json:"graph_score,omitempty"`
	CombinedScore float64  `json:"combined_score,omitempty"`
	Connections   []string `json:"connections,omitempty"`
}

type jsonContext struct {
	Warnings []string     `json:"warnings,omitempty"`
	Baseline []jsonMemory `json:"baseline,omitempty"`
	Results  []jsonMemory `json:"results,omitempty"`
}

func renderJSON(out *domain.AssembledContext) string {
	doc := jsonContext{Warnings: out.Warnings}
	for _, m := range out.Baseline {
		doc.Baseline = append(doc.Baseline, jsonMemory{ID: m.ID, Title: m.Title, Body: m.Body})
	}
	for _, r := range out.Results {
		doc.Results = append(doc.Results, jsonMemory{
			ID: r.Memory.ID, Title: r.Memory.Title, Body: r.Memory.Body,
			VectorScore: r.VectorScore, GraphScore: r.GraphScore, CombinedScore: r.CombinedScore,
			Connections: relationshipAnnotations(r.Connections, len(r.Connections)),
		})
	}
	blob, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(blob)
}

// relationshipAnnotations formats up to max connections as
// "<EDGE_TYPE> from <id> (k hop(s))" strings (spec.md §4.2.1).
func relationshipAnnotations(conns []domain.Connection, max int) []string {
	if max <= 0 {
		max = len(conns)
	}
	if len(conns) > max {
		conns = conns[:max]
	}
	out := make([]string, 0, len(conns))
	for _, c := range conns {
		hopWord := "hop"
		if c.Hops != 1 {
			hopWord = "hops"
		}
		out = append(out, fmt.Sprintf("%s from %s (%d %s)", c.EdgeType, c.SourceID, c.Hops, hopWord))
	}
	return out
}

func relationshipMap(results []domain.RetrievalResult) string {
	var b strings.Builder
	for _, r := range results {
		for _, c := range r.Connections {
			fmt.Fprintf(&b, "- %s --[%s]--> %s\n", c.SourceID, c.EdgeType, r.Memory.ID)
		}
	}
	return b.String()
}
