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

	"github.com/go-chi/chi/v5"

	"github.com/dmmproject/agentos/internal/domain"
	"github.com/dmmproject/agentos/internal/memorystore"
)

// mountMemoryRoutes exposes read access to the MemoryStore: list with
// filters, and fetch by id.
func mountMemoryRoutes(r chi.Router, store *memorystore.Store) {
	r.Route("/memories", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, req *http.Request) {
			q := req.URL.Query()
			filter := memorystore.Filter{
				ExcludeDeprecated: q.Get("exclude_deprecated") == "true",
				ExcludeEphemeral:  q.Get("exclude_ephemeral") == "true",
				Directory:         q.Get("directory"),
			}
			if scope := q.Get("scope"); scope != "" {
				filter.Scopes = []domain.Scope{domain.Scope(scope)}
			}

			memories, err := store.List(req.Context(), filter)
			if err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"memories": memories, "total": len(memories)})
		})

		r.Get("/{id}", func(w http.ResponseWriter, req *http.Request) {
			m, err := store.Get(req.Context(), chi.URLParam(req, "id"))
			if err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, m)
		})

		r.Get("/baseline", func(w http.ResponseWriter, req *http.Request) {
			memories, err := store.Baseline(req.Context())
			if err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"memories": memories, "total": len(memories)})
		})
	})
}
