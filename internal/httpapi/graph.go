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

package httpapi

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/dmmproject/agentos/internal/domain"
	"github.com/dmmproject/agentos/internal/graphstore"
)

// mountGraphRoutes exposes the `graph` CLI verb group (spec.md §6) as
// JSON: status, related, contradictions, path.
func mountGraphRoutes(r chi.Router, g *graphstore.Store) {
	r.Route("/graph", func(r chi.Router) {
		r.Get("/status", func(w http.ResponseWriter, req *http.Request) {
			stats, err := g.GetStats(req.Context())
			if err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, stats)
		})

		r.Get("/memories/{id}/related", func(w http.ResponseWriter, req *http.Request) {
			id := chi.URLParam(req, "id")
			depth := intParam(req, "depth", 2)

			var edgeTypes []domain.EdgeType
			if t := req.URL.Query().Get("type"); t != "" {
				edgeTypes = append(edgeTypes, domain.EdgeType(t))
			}

			related, err := g.GetRelatedMemories(req.Context(), id, depth, edgeTypes)
			if err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, related)
		})

		r.Get("/contradictions", func(w http.ResponseWriter, req *http.Request) {
			pairs, err := g.GetContradictionPairs(req.Context())
			if err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"pairs": pairs})
		})

		r.Get("/path", func(w http.ResponseWriter, req *http.Request) {
			from := req.URL.Query().Get("from")
			to := req.URL.Query().Get("to")
			if from == "" || to == "" {
				writeJSON(w, http.StatusBadRequest, errorResponse{Error: errorBody{
					Kind: "validation_failure", Message: "from and to query parameters are required",
				}})
				return
			}
			depth := intParam(req, "depth", 6)

			edges, err := g.FindPath(req.Context(), from, to, depth)
			if err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{
				"ids":   graphstore.PathIDs(from, edges),
				"edges": edges,
			})
		})
	})
}

func intParam(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}
