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

	"github.com/dmmproject/agentos/internal/config"
)

// newTestCLI returns a CLI rooted at a fresh temp directory, ready for a
// command's Run to be called against it directly.
func newTestCLI(t *testing.T) *CLI {
	t.Helper()
	return &CLI{Path: t.TempDir()}
}

func TestOpenAppCreatesIndexLayout(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	cfg := &config.Config{}
	cfg.SetDefaults()

	app, err := openApp(ctx, dir, cfg)
	require.NoError(t, err)
	defer app.Close()

	require.NotNil(t, app.Graph)
	require.NotNil(t, app.Memories)
	require.NotNil(t, app.Conflicts)
	require.NotNil(t, app.Detector)
	require.NotNil(t, app.Resolver)
	require.NotNil(t, app.Writeback)
	require.NotNil(t, app.Reviewer)
	require.NotNil(t, app.Tasks)
	require.NotNil(t, app.AgentOS)
	require.NotNil(t, app.Usage)
	require.NotNil(t, app.Agents)
	require.NotNil(t, app.Skills)
	require.NotNil(t, app.Tools)
	require.NotNil(t, app.Embedder)
	require.NotNil(t, app.Vectors)
	require.NotNil(t, app.Indexer)
	require.NotNil(t, app.Extractor)
	require.NotNil(t, app.Committer)
	require.NotNil(t, app.Retrieval)
	require.NotNil(t, app.Bus)
	require.NotNil(t, app.Trackr)
	require.NotNil(t, app.SelfMod)

	_, err = os.Stat(filepath.Join(app.Layout.Root, "index", "knowledge.graph"))
	require.NoError(t, err)
}

func TestOpenAppTwiceReopensExistingStores(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	cfg := &config.Config{}
	cfg.SetDefaults()

	first, err := openApp(ctx, dir, cfg)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := openApp(ctx, dir, cfg)
	require.NoError(t, err)
	defer second.Close()
}

func TestAppCloseReturnsFirstError(t *testing.T) {
	a := &App{}
	wantErr := os.ErrClosed
	a.addCloser(func() error { return wantErr })
	a.addCloser(func() error { return nil })
	require.ErrorIs(t, a.Close(), wantErr)
}

func TestCLILoadConfigDefaultsWhenUnset(t *testing.T) {
	cli := newTestCLI(t)
	cfg, err := cli.loadConfig(context.Background())
	require.NoError(t, err)
	require.NotZero(t, cfg.Retrieval.DefaultLimit)
}
