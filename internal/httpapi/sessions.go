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

	"github.com/dmmproject/agentos/internal/agentosstore"
)

// mountSessionRoutes exposes the AgentOSStore's runtime-visible state:
// active sessions, messages (filterable), agent states, and
// modification proposals.
func mountSessionRoutes(r chi.Router, store *agentosstore.Store) {
	r.Get("/sessions/active", func(w http.ResponseWriter, req *http.Request) {
		sessions, err := store.GetActiveSessions(req.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"sessions": sessions, "total": len(sessions)})
	})

	r.Get("/messages", func(w http.ResponseWriter, req *http.Request) {
		q := req.URL.Query()
		filter := agentosstore.MessageFilter{
			SessionID:     q.Get("session_id"),
			Sender:        q.Get("sender"),
			Recipient:     q.Get("recipient"),
			CorrelationID: q.Get("correlation_id"),
		}
		messages, err := store.GetMessages(req.Context(), filter)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"messages": messages, "total": len(messages)})
	})

	r.Get("/agent-states/{agentID}/{sessionID}", func(w http.ResponseWriter, req *http.Request) {
		state, err := store.GetAgentState(req.Context(), chi.URLParam(req, "agentID"), chi.URLParam(req, "sessionID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, state)
	})

	r.Get("/modifications/{id}", func(w http.ResponseWriter, req *http.Request) {
		p, err := store.GetModification(req.Context(), chi.URLParam(req, "id"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, p)
	})
}
