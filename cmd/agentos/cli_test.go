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

package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// writeAgentFixture drops a minimal agent definition under cli.Path's
// .dmm/agents/ directory, the same layout internal/loader.AgentLoader reads.
func writeAgentFixture(t *testing.T, cli *CLI, id string) {
	t.Helper()
	dir := filepath.Join(cli.Path, ".dmm", "agents")
	require.NoError(t, os.MkdirAll(dir, 0755))

	body, err := yaml.Marshal(map[string]any{
		"id":          id,
		"name":        "Researcher",
		"category":    "research",
		"description": "looks things up",
		"enabled":     true,
	})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, id+".yaml"), body, 0644))
}

func TestGraphStatusOnEmptyWorkdir(t *testing.T) {
	cli := newTestCLI(t)
	cli.JSON = true
	require.NoError(t, (&GraphStatusCmd{}).Run(cli))
}

func TestGraphMigrateIsIdempotent(t *testing.T) {
	cli := newTestCLI(t)
	require.NoError(t, (&GraphMigrateCmd{}).Run(cli))
	require.NoError(t, (&GraphMigrateCmd{}).Run(cli))
}

func TestGraphQueryRejectsNonSelect(t *testing.T) {
	cli := newTestCLI(t)
	err := (&GraphQueryCmd{SQL: "DELETE FROM graph_nodes"}).Run(cli)
	require.Error(t, err)
}

func TestGraphTagsOnEmptyGraph(t *testing.T) {
	cli := newTestCLI(t)
	cli.JSON = true
	require.NoError(t, (&GraphTagsCmd{}).Run(cli))
}

func TestAgentsListAndShow(t *testing.T) {
	cli := newTestCLI(t)
	writeAgentFixture(t, cli, "researcher")

	cli.JSON = true
	require.NoError(t, (&AgentsListCmd{}).Run(cli))
	require.NoError(t, (&AgentsShowCmd{ID: "researcher"}).Run(cli))
}

func TestAgentsShowUnknownIDIsNotFound(t *testing.T) {
	cli := newTestCLI(t)
	err := (&AgentsShowCmd{ID: "nope"}).Run(cli)
	require.Error(t, err)
	ec, ok := err.(exitCoder)
	require.True(t, ok)
	require.Equal(t, 3, ec.ExitCode())
}

func TestAgentsEnableDisableRoundTrip(t *testing.T) {
	cli := newTestCLI(t)
	writeAgentFixture(t, cli, "researcher")

	require.NoError(t, (&AgentsDisableCmd{ID: "researcher"}).Run(cli))
	require.NoError(t, (&AgentsEnableCmd{ID: "researcher"}).Run(cli))
}

func TestAgentsSearchFindsFixture(t *testing.T) {
	cli := newTestCLI(t)
	writeAgentFixture(t, cli, "researcher")
	cli.JSON = true
	require.NoError(t, (&AgentsSearchCmd{Query: "research"}).Run(cli))
}

func TestSkillsAndToolsListOnEmptyWorkdir(t *testing.T) {
	cli := newTestCLI(t)
	cli.JSON = true
	require.NoError(t, (&SkillsListCmd{}).Run(cli))
	require.NoError(t, (&ToolsListCmd{}).Run(cli))
}

func TestTasksListOnEmptyStore(t *testing.T) {
	cli := newTestCLI(t)
	cli.JSON = true
	require.NoError(t, (&TasksListCmd{}).Run(cli))
	require.NoError(t, (&TasksListCmd{Status: "pending"}).Run(cli))
}

func TestTasksShowUnknownIDErrors(t *testing.T) {
	cli := newTestCLI(t)
	err := (&TasksShowCmd{ID: "nope"}).Run(cli)
	require.Error(t, err)
}

func TestUsageHealthAndToggle(t *testing.T) {
	cli := newTestCLI(t)
	cli.JSON = true
	require.NoError(t, (&UsageHealthCmd{TopN: 5}).Run(cli))
	require.NoError(t, (&UsageDisableCmd{}).Run(cli))
	require.NoError(t, (&UsageEnableCmd{}).Run(cli))
}

func TestConflictsListOnEmptyStore(t *testing.T) {
	cli := newTestCLI(t)
	cli.JSON = true
	require.NoError(t, (&ConflictsListCmd{Status: "unresolved"}).Run(cli))
}

func TestConflictsStatsOnEmptyStore(t *testing.T) {
	cli := newTestCLI(t)
	cli.JSON = true
	require.NoError(t, (&ConflictsStatsCmd{}).Run(cli))
}

func TestConflictsHistoryUnknownIsNotFound(t *testing.T) {
	cli := newTestCLI(t)
	err := (&ConflictsHistoryCmd{ID: "nope"}).Run(cli)
	require.Error(t, err)
	ec, ok := err.(exitCoder)
	require.True(t, ok)
	require.Equal(t, 3, ec.ExitCode())
}

func TestProposalsListOnEmptyStore(t *testing.T) {
	cli := newTestCLI(t)
	cli.JSON = true
	require.NoError(t, (&ProposalsListCmd{Status: "pending"}).Run(cli))
}

func TestProposalsStatsOnEmptyStore(t *testing.T) {
	cli := newTestCLI(t)
	cli.JSON = true
	require.NoError(t, (&ProposalsStatsCmd{}).Run(cli))
}

func TestVersionCmdPrints(t *testing.T) {
	cli := newTestCLI(t)
	require.NoError(t, (&VersionCmd{}).Run(cli))
}
