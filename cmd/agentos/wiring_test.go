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
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dmmproject/agentos/internal/domain"
)

func TestQueryOnEmptyWorkdir(t *testing.T) {
	cli := newTestCLI(t)
	cli.JSON = true
	require.NoError(t, (&QueryCmd{Text: "deployment notes", Limit: 5}).Run(cli))
}

func TestMessagesSendAndList(t *testing.T) {
	cli := newTestCLI(t)
	cli.JSON = true

	require.NoError(t, (&MessagesSendCmd{
		Sender: "researcher", Recipient: "writer", Body: "draft ready",
	}).Run(cli))

	require.NoError(t, (&MessagesListCmd{Sender: "researcher"}).Run(cli))
	require.NoError(t, (&MessagesStatsCmd{}).Run(cli))
}

func TestGraphClustersOnEmptyGraph(t *testing.T) {
	cli := newTestCLI(t)
	cli.JSON = true
	require.NoError(t, (&GraphClustersCmd{}).Run(cli))
}

func TestSelfModSubmitApproveApplyRoundTrip(t *testing.T) {
	cli := newTestCLI(t)
	cli.JSON = true

	target := filepath.Join(cli.Path, "README.md")
	require.NoError(t, os.WriteFile(target, []byte("old content\n"), 0644))

	modified := filepath.Join(t.TempDir(), "modified.md")
	require.NoError(t, os.WriteFile(modified, []byte("new content\n"), 0644))

	submit := &SelfModSubmitCmd{
		Title: "update readme", File: "README.md", ModifiedPath: modified,
		Author: "tester", TestsAttached: true,
	}
	require.NoError(t, submit.Run(cli))

	app, err := cli.open(context.Background())
	require.NoError(t, err)
	proposals, err := app.AgentOS.ListModifications(context.Background(), domain.ModificationStatus(""))
	require.NoError(t, err)
	require.Len(t, proposals, 1)
	id := proposals[0].ID
	require.NoError(t, app.Close())

	require.NoError(t, (&SelfModListCmd{}).Run(cli))
	require.NoError(t, (&SelfModShowCmd{ID: id}).Run(cli))

	require.NoError(t, (&SelfModApproveCmd{ID: id, Reviewer: "lead"}).Run(cli))
	require.NoError(t, (&SelfModApplyCmd{ID: id}).Run(cli))

	body, err := os.ReadFile(target)
	require.NoError(t, err)
	require.Equal(t, "new content\n", string(body))
}

func TestProposalsCommitWritesMemory(t *testing.T) {
	cli := newTestCLI(t)
	cli.JSON = true
	ctx := context.Background()

	app, err := cli.open(ctx)
	require.NoError(t, err)
	p := &domain.WriteProposal{
		ID: "p1", Type: domain.WriteCreate, TargetPath: "notes/a.md",
		Content: "hello world", Scope: domain.ScopeGlobal, Status: domain.WriteStatusApproved,
	}
	require.NoError(t, app.Writeback.Enqueue(ctx, p))
	require.NoError(t, app.Close())

	require.NoError(t, (&ProposalsCommitCmd{ID: "p1"}).Run(cli))

	app, err = cli.open(ctx)
	require.NoError(t, err)
	defer app.Close()
	m, err := app.Memories.GetByPath(ctx, "notes/a.md")
	require.NoError(t, err)
	require.Equal(t, "hello world", m.Body)
}
