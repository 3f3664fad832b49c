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
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dmmproject/agentos/internal/conflict"
	"github.com/dmmproject/agentos/internal/domain"
)

// mountConflictRoutes exposes the `conflicts` CLI verb group (spec.md §6):
// list, show, and resolve (deprecate/merge/clarify/dismiss/defer).
// resolver may be nil, in which case resolve is not mounted and the
// surface is read-only.
func mountConflictRoutes(r chi.Router, store *conflict.Store, resolver *conflict.Resolver) {
	r.Route("/conflicts", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, req *http.Request) {
			status := domain.ConflictStatus(req.URL.Query().Get("status"))
			if status == "" {
				status = domain.ConflictUnresolved
			}
			conflicts, err := store.ListByStatus(req.Context(), status)
			if err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"conflicts": conflicts, "total": len(conflicts)})
		})

		r.Get("/{id}", func(w http.ResponseWriter, req *http.Request) {
			c, err := store.Get(req.Context(), chi.URLParam(req, "id"))
			if err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, c)
		})

		if resolver != nil {
			r.Post("/{id}/resolve", func(w http.ResponseWriter, req *http.Request) {
				var body struct {
					Action         domain.ResolutionAction `json:"action"`
					TargetMemoryID string                  `json:"target_memory_id"`
					MergedContent  string                  `json:"merged_content"`
					Reason         string                  `json:"reason"`
					ResolvedBy     string                  `json:"resolved_by"`
				}
				if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
					writeJSON(w, http.StatusBadRequest, errorResponse{Error: errorBody{
						Kind: "validation_failure", Message: "invalid JSON body: " + err.Error(),
					}})
					return
				}

				entry, err := resolver.Resolve(req.Context(), domain.ResolutionRequest{
					ConflictID:     chi.URLParam(req, "id"),
					Action:         body.Action,
					TargetMemoryID: body.TargetMemoryID,
					MergedContent:  body.MergedContent,
					Reason:         body.Reason,
					ResolvedBy:     body.ResolvedBy,
				})
				if err != nil {
					writeError(w, err)
					return
				}
				writeJSON(w, http.StatusOK, entry)
			})
		}
	})
}
