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

	"github.com/dmmproject/agentos/internal/usage"
)

// mountUsageRoutes exposes the UsageTracker's health report and the
// tracking-enabled toggle.
func mountUsageRoutes(r chi.Router, tracker *usage.Tracker) {
	r.Route("/usage", func(r chi.Router) {
		r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
			topN := intParam(req, "top", 10)
			report, err := tracker.GetHealthReport(req.Context(), topN)
			if err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, report)
		})

		r.Post("/enabled", func(w http.ResponseWriter, req *http.Request) {
			var body struct {
				Enabled bool `json:"enabled"`
			}
			if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
				writeJSON(w, http.StatusBadRequest, errorResponse{Error: errorBody{
					Kind: "validation_failure", Message: "invalid JSON body: " + err.Error(),
				}})
				return
			}
			if err := tracker.SetEnabled(req.Context(), body.Enabled); err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]bool{"enabled": body.Enabled})
		})
	})
}
