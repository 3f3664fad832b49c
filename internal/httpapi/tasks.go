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
	"github.com/dmmproject/agentos/internal/taskstore"
)

// mountTaskRoutes exposes the TaskTracker's persisted state: list (all or
// by status), show, and a task's children.
func mountTaskRoutes(r chi.Router, store *taskstore.Store) {
	r.Route("/tasks", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, req *http.Request) {
			if status := req.URL.Query().Get("status"); status != "" {
				tasks, err := store.ListByStatus(req.Context(), domain.TaskStatus(status))
				if err != nil {
					writeError(w, err)
					return
				}
				writeJSON(w, http.StatusOK, map[string]any{"tasks": tasks, "total": len(tasks)})
				return
			}

			tasks, err := store.List(req.Context())
			if err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"tasks": tasks, "total": len(tasks)})
		})

		r.Get("/{id}", func(w http.ResponseWriter, req *http.Request) {
			t, err := store.Get(req.Context(), chi.URLParam(req, "id"))
			if err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, t)
		})

		r.Get("/{id}/children", func(w http.ResponseWriter, req *http.Request) {
			children, err := store.GetChildren(req.Context(), chi.URLParam(req, "id"))
			if err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"tasks": children, "total": len(children)})
		})
	})
}
