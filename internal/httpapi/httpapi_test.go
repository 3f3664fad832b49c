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
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dmmproject/agentos/internal/agentosstore"
	"github.com/dmmproject/agentos/internal/agentreg"
	"github.com/dmmproject/agentos/internal/conflict"
	"github.com/dmmproject/agentos/internal/domain"
	"github.com/dmmproject/agentos/internal/graphstore"
	"github.com/dmmproject/agentos/internal/memorystore"
	"github.com/dmmproject/agentos/internal/taskstore"
	"github.com/dmmproject/agentos/internal/usage"
)

type fakeAgentLoader struct {
	agents map[string]*domain.Agent
}

func (f *fakeAgentLoader) LoadAll(ctx context.Context) ([]*domain.Agent, error) {
	out := make([]*domain.Agent, 0, len(f.agents))
	for _, a := range f.agents {
		out = append(out, a)
	}
	return out, nil
}

func (f *fakeAgentLoader) LoadByID(ctx context.Context, id string) (*domain.Agent, error) {
	return f.agents[id], nil
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	ctx := context.Background()

	graph, err := graphstore.Open(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { graph.Close() })

	memories, err := memorystore.Open(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { memories.Close() })
	require.NoError(t, memories.Create(ctx, &domain.Memory{
		ID: "mem_2026_01_01_001", Path: "global/note.md", Directory: "global",
		Title: "note", Body: "body", Scope: domain.ScopeGlobal, Priority: 0.5,
		Confidence: domain.ConfidenceActive, Status: domain.MemoryStatusActive,
		CreatedAt: time.Now().UTC(), ContentHash: "hash1",
	}))

	conflicts, err := conflict.Open(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { conflicts.Close() })
	require.NoError(t, conflicts.Create(ctx, &domain.Conflict{
		ID: "conf-1", Classification: domain.ConflictDuplicate, Method: domain.MethodSemantic,
		Confidence: 0.9, Status: domain.ConflictUnresolved,
		M1ID: "mem_2026_01_01_001", M2ID: "mem_2026_01_01_002", CreatedAt: time.Now().UTC(),
	}))

	tasks, err := taskstore.Open(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { tasks.Close() })
	require.NoError(t, tasks.Create(ctx, &domain.Task{
		ID: "task-1", Name: "do thing", Type: domain.TaskTypeLeaf,
		Priority: domain.PriorityNormal, Status: domain.TaskPending, CreatedAt: time.Now().UTC(),
	}))

	agentOS, err := agentosstore.Open(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { agentOS.Close() })
	require.NoError(t, agentOS.SaveSession(ctx, &domain.Session{ID: "sess-1", Name: "test"}))

	agents := agentreg.New(&fakeAgentLoader{agents: map[string]*domain.Agent{
		"researcher": {ID: "researcher", Name: "Researcher", Enabled: true, Category: "research",
			Skills: domain.SkillsConfig{Primary: []string{"web-search"}}},
	}})
	require.NoError(t, agents.LoadAll(ctx))

	usageStore, err := usage.Open(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { usageStore.Close() })
	tracker := usage.New(usageStore, memories)

	return Router(Deps{
		Graph:     graph,
		Memories:  memories,
		Conflicts: conflicts,
		Tasks:     tasks,
		AgentOS:   agentOS,
		Agents:    agents,
		Usage:     tracker,
		Ready: func(ctx context.Context) error {
			return nil
		},
	})
}

func doRequest(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthzReturnsOK(t *testing.T) {
	h := newTestRouter(t)
	rec := doRequest(t, h, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestGraphStatusReturnsStats(t *testing.T) {
	h := newTestRouter(t)
	rec := doRequest(t, h, http.MethodGet, "/graph/status", "")
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestMemoriesListAndGet(t *testing.T) {
	h := newTestRouter(t)

	rec := doRequest(t, h, http.MethodGet, "/memories/", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var listBody map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listBody))
	require.EqualValues(t, 1, listBody["total"])

	rec = doRequest(t, h, http.MethodGet, "/memories/mem_2026_01_01_001", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, h, http.MethodGet, "/memories/does-not-exist", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestConflictsListByDefaultStatus(t *testing.T) {
	h := newTestRouter(t)
	rec := doRequest(t, h, http.MethodGet, "/conflicts/", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.EqualValues(t, 1, body["total"])
}

func TestConflictsResolveNotMountedWithoutResolver(t *testing.T) {
	h := newTestRouter(t)
	rec := doRequest(t, h, http.MethodPost, "/conflicts/conf-1/resolve", `{"action":"dismiss"}`)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTasksListAndGet(t *testing.T) {
	h := newTestRouter(t)
	rec := doRequest(t, h, http.MethodGet, "/tasks/", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, h, http.MethodGet, "/tasks/task-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestSessionsActiveIncludesSavedSession(t *testing.T) {
	h := newTestRouter(t)
	rec := doRequest(t, h, http.MethodGet, "/sessions/active", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.EqualValues(t, 1, body["total"])
}

func TestAgentsListAndEnableDisable(t *testing.T) {
	h := newTestRouter(t)

	rec := doRequest(t, h, http.MethodGet, "/agents/", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, h, http.MethodPost, "/agents/researcher/disable", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, h, http.MethodPost, "/agents/missing/disable", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAgentsMatchEndpoint(t *testing.T) {
	h := newTestRouter(t)
	rec := doRequest(t, h, http.MethodPost, "/agents/match", `{"required_skills":["web-search"]}`)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestUsageHealthReportReflectsTrackingState(t *testing.T) {
	h := newTestRouter(t)
	rec := doRequest(t, h, http.MethodGet, "/usage/health", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var report usage.HealthReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	require.True(t, report.TrackingEnabled)
}

func TestUsageEnabledToggle(t *testing.T) {
	h := newTestRouter(t)
	rec := doRequest(t, h, http.MethodPost, "/usage/enabled", `{"enabled":false}`)
	require.Equal(t, http.StatusOK, rec.Code)
}
