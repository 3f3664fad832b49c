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

package loader

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dmmproject/agentos/internal/apperr"
	"github.com/dmmproject/agentos/internal/domain"
)

func TestAgentLoaderLoadAllAndLoadByID(t *testing.T) {
	root := t.TempDir()
	layout, err := NewLayout(root)
	require.NoError(t, err)

	writeFile(t, filepath.Join(layout.agentsDir(), "researcher.yaml"), `
id: researcher
name: Researcher
enabled: true
category: research
skills:
  primary: [web-search]
`)

	al := NewAgentLoader(layout)
	agents, err := al.LoadAll(context.Background())
	require.NoError(t, err)
	require.Len(t, agents, 1)
	require.Equal(t, "researcher", agents[0].ID)
	require.ElementsMatch(t, []string{"web-search"}, agents[0].Skills.Primary)

	found, err := al.LoadByID(context.Background(), "researcher")
	require.NoError(t, err)
	require.Equal(t, "Researcher", found.Name)

	_, err = al.LoadByID(context.Background(), "missing")
	require.True(t, apperr.IsKind(err, apperr.NotFound))
}

func TestSkillLoaderSetsCoreFromDirectory(t *testing.T) {
	root := t.TempDir()
	layout, err := NewLayout(root)
	require.NoError(t, err)

	writeFile(t, filepath.Join(layout.skillsDir("core"), "web-search.yaml"), `
id: web-search
name: Web Search
enabled: true
`)
	writeFile(t, filepath.Join(layout.skillsDir("custom"), "custom-chart.yaml"), `
id: custom-chart
name: Custom Chart
enabled: true
`)

	sl := NewSkillLoader(layout)
	skills, err := sl.LoadAll(context.Background())
	require.NoError(t, err)
	require.Len(t, skills, 2)

	byID := map[string]*domain.Skill{}
	for _, s := range skills {
		byID[s.ID] = s
	}
	require.True(t, byID["web-search"].Core)
	require.False(t, byID["custom-chart"].Core)

	_, err = sl.LoadByID(context.Background(), "does-not-exist")
	require.True(t, apperr.IsKind(err, apperr.NotFound))
}

func TestToolLoaderSetsKindFromDirectory(t *testing.T) {
	root := t.TempDir()
	layout, err := NewLayout(root)
	require.NoError(t, err)

	writeFile(t, filepath.Join(layout.toolsDir("cli"), "grep.yaml"), `
id: grep
name: grep
enabled: true
check_command: "grep --version"
`)
	writeFile(t, filepath.Join(layout.toolsDir("api"), "weather.yaml"), `
id: weather
name: Weather API
enabled: true
auth_env_var: WEATHER_API_KEY
`)

	tl := NewToolLoader(layout)
	tools, err := tl.LoadAll(context.Background())
	require.NoError(t, err)
	require.Len(t, tools, 2)

	byID := map[string]*domain.Tool{}
	for _, tool := range tools {
		byID[tool.ID] = tool
	}
	require.Equal(t, domain.ToolKindCLI, byID["grep"].Kind)
	require.Equal(t, domain.ToolKindAPI, byID["weather"].Kind)

	found, err := tl.LoadByID(context.Background(), "weather")
	require.NoError(t, err)
	require.Equal(t, "WEATHER_API_KEY", found.AuthEnvVar)
}
