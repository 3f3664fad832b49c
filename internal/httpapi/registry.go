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

	"github.com/dmmproject/agentos/internal/agentreg"
	"github.com/dmmproject/agentos/internal/matcher"
	"github.com/dmmproject/agentos/internal/skillreg"
	"github.com/dmmproject/agentos/internal/toolreg"
)

// mountAgentRoutes exposes the AgentRegistry: list, search, show,
// enable/disable, and the AgentMatcher's scoring endpoint.
func mountAgentRoutes(r chi.Router, reg *agentreg.Registry) {
	r.Route("/agents", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, req *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{"agents": reg.ListAll(), "stats": reg.GetStats()})
		})

		r.Get("/search", func(w http.ResponseWriter, req *http.Request) {
			q := req.URL.Query()
			matches := reg.Search(q.Get("q"), q.Get("enabled_only") == "true", nil)
			writeJSON(w, http.StatusOK, map[string]any{"matches": matches})
		})

		r.Get("/{id}", func(w http.ResponseWriter, req *http.Request) {
			a, ok := reg.FindByID(chi.URLParam(req, "id"))
			if !ok {
				writeJSON(w, http.StatusNotFound, errorResponse{Error: errorBody{
					Kind: "not_found", Message: "agent not found: " + chi.URLParam(req, "id"),
				}})
				return
			}
			writeJSON(w, http.StatusOK, a)
		})

		r.Post("/{id}/enable", func(w http.ResponseWriter, req *http.Request) {
			if err := reg.Enable(chi.URLParam(req, "id")); err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]string{"status": "enabled"})
		})

		r.Post("/{id}/disable", func(w http.ResponseWriter, req *http.Request) {
			if err := reg.Disable(chi.URLParam(req, "id")); err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		})

		r.Post("/match", func(w http.ResponseWriter, req *http.Request) {
			var body matcher.Request
			if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
				writeJSON(w, http.StatusBadRequest, errorResponse{Error: errorBody{
					Kind: "validation_failure", Message: "invalid JSON body: " + err.Error(),
				}})
				return
			}
			results := matcher.Match(reg.ListAll(), body)
			writeJSON(w, http.StatusOK, map[string]any{"matches": results})
		})
	})
}

// mountSkillRoutes exposes the SkillRegistry: list, search, show,
// enable/disable.
func mountSkillRoutes(r chi.Router, reg *skillreg.Registry) {
	r.Route("/skills", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, req *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{"skills": reg.ListAll(), "stats": reg.GetStats()})
		})

		r.Get("/search", func(w http.ResponseWriter, req *http.Request) {
			q := req.URL.Query()
			matches := reg.Search(q.Get("q"), q.Get("enabled_only") == "true", nil)
			writeJSON(w, http.StatusOK, map[string]any{"matches": matches})
		})

		r.Get("/{id}", func(w http.ResponseWriter, req *http.Request) {
			s, ok := reg.FindByID(chi.URLParam(req, "id"))
			if !ok {
				writeJSON(w, http.StatusNotFound, errorResponse{Error: errorBody{
					Kind: "not_found", Message: "skill not found: " + chi.URLParam(req, "id"),
				}})
				return
			}
			writeJSON(w, http.StatusOK, s)
		})

		r.Post("/{id}/enable", func(w http.ResponseWriter, req *http.Request) {
			if err := reg.Enable(chi.URLParam(req, "id")); err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]string{"status": "enabled"})
		})

		r.Post("/{id}/disable", func(w http.ResponseWriter, req *http.Request) {
			if err := reg.Disable(chi.URLParam(req, "id")); err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		})
	})
}

// mountToolRoutes exposes the ToolRegistry: list, search, show,
// enable/disable, and per-run availability probing.
func mountToolRoutes(r chi.Router, reg *toolreg.Registry) {
	r.Route("/tools", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, req *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{"tools": reg.ListAll(), "stats": reg.GetStats()})
		})

		r.Get("/search", func(w http.ResponseWriter, req *http.Request) {
			q := req.URL.Query()
			matches := reg.Search(q.Get("q"), q.Get("enabled_only") == "true", nil)
			writeJSON(w, http.StatusOK, map[string]any{"matches": matches})
		})

		r.Get("/{id}", func(w http.ResponseWriter, req *http.Request) {
			t, ok := reg.FindByID(chi.URLParam(req, "id"))
			if !ok {
				writeJSON(w, http.StatusNotFound, errorResponse{Error: errorBody{
					Kind: "not_found", Message: "tool not found: " + chi.URLParam(req, "id"),
				}})
				return
			}
			writeJSON(w, http.StatusOK, t)
		})

		r.Get("/{id}/available", func(w http.ResponseWriter, req *http.Request) {
			available, err := reg.IsAvailable(req.Context(), chi.URLParam(req, "id"))
			if err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]bool{"available": available})
		})

		r.Post("/{id}/enable", func(w http.ResponseWriter, req *http.Request) {
			if err := reg.Enable(chi.URLParam(req, "id")); err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]string{"status": "enabled"})
		})

		r.Post("/{id}/disable", func(w http.ResponseWriter, req *http.Request) {
			if err := reg.Disable(chi.URLParam(req, "id")); err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		})
	})
}
