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

// Package httpapi is the admin HTTP surface named in spec.md §6: a
// read-mostly JSON view of the same subsystems the CLI verbs operate on
// (graph, conflicts, registries, tasks, usage), plus /healthz and /metrics
// for operators. Routing follows the teacher's chi-based server
// (pkg/server/http.go), rebuilt here with chi instead of a bare
// http.ServeMux so route patterns stay low-cardinality Prometheus labels
// (obs.HTTPMiddleware reads them from chi's RouteContext).
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dmmproject/agentos/internal/agentosstore"
	"github.com/dmmproject/agentos/internal/agentreg"
	"github.com/dmmproject/agentos/internal/conflict"
	"github.com/dmmproject/agentos/internal/graphstore"
	"github.com/dmmproject/agentos/internal/memorystore"
	"github.com/dmmproject/agentos/internal/obs"
	"github.com/dmmproject/agentos/internal/skillreg"
	"github.com/dmmproject/agentos/internal/taskstore"
	"github.com/dmmproject/agentos/internal/toolreg"
	"github.com/dmmproject/agentos/internal/usage"
)

// Deps are the subsystems the admin API exposes. Any field may be nil,
// in which case the routes that depend on it are not mounted — a
// deployment can run the HTTP surface with only a subset wired
// (e.g. a read replica with no conflict resolver).
type Deps struct {
	Graph     *graphstore.Store
	Memories  *memorystore.Store
	Conflicts *conflict.Store
	Resolver  *conflict.Resolver
	Tasks     *taskstore.Store
	AgentOS   *agentosstore.Store
	Agents    *agentreg.Registry
	Skills    *skillreg.Registry
	Tools     *toolreg.Registry
	Usage     *usage.Tracker
	Recorder  obs.Recorder
	Ready     func(ctx context.Context) error
}

// Router builds the admin HTTP mux. Every route group is mounted only if
// its dependency is non-nil.
func Router(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	if deps.Recorder != nil {
		r.Use(obs.HTTPMiddleware(deps.Recorder))
	}

	r.Get("/healthz", handleHealthz(deps))
	if deps.Recorder != nil {
		r.Handle("/metrics", promhttp.Handler())
	}

	if deps.Graph != nil {
		mountGraphRoutes(r, deps.Graph)
	}
	if deps.Memories != nil {
		mountMemoryRoutes(r, deps.Memories)
	}
	if deps.Conflicts != nil {
		mountConflictRoutes(r, deps.Conflicts, deps.Resolver)
	}
	if deps.Tasks != nil {
		mountTaskRoutes(r, deps.Tasks)
	}
	if deps.AgentOS != nil {
		mountSessionRoutes(r, deps.AgentOS)
	}
	if deps.Agents != nil {
		mountAgentRoutes(r, deps.Agents)
	}
	if deps.Skills != nil {
		mountSkillRoutes(r, deps.Skills)
	}
	if deps.Tools != nil {
		mountToolRoutes(r, deps.Tools)
	}
	if deps.Usage != nil {
		mountUsageRoutes(r, deps.Usage)
	}

	return r
}

func handleHealthz(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Ready != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
			defer cancel()
			if err := deps.Ready(ctx); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{
					"status": "unavailable",
					"error":  err.Error(),
				})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// writeJSON encodes v as the response body, setting the content type and
// status first so a marshal failure can't corrupt a partially-written
// response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// errorResponse is the `{"error": {...}}` shape spec.md §7 requires for
// --json CLI output, reused here for the HTTP surface's error body.
type errorResponse struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Kind    string         `json:"kind"`
	Message string         `json:"message"`
	Context map[string]any `json:"context,omitempty"`
}

func writeError(w http.ResponseWriter, err error) {
	kind, status := classifyError(err)
	writeJSON(w, status, errorResponse{Error: errorBody{Kind: string(kind), Message: err.Error()}})
}
