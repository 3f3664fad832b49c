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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dmmproject/agentos/internal/domain"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestMemoryLoaderParsesFrontMatterAndBody(t *testing.T) {
	root := t.TempDir()
	layout, err := NewLayout(root)
	require.NoError(t, err)

	writeFile(t, filepath.Join(layout.memoryDir("global"), "note.md"), `---
id: mem_2026_01_01_001
tags: [go, testing]
priority: 0.8
confidence: stable
status: active
created: 2026-01-01
supersedes: [mem_2025_12_01_003]
---

# Use table-driven tests

Prefer table-driven tests for pure functions with many input shapes.
`)

	ml := NewMemoryLoader(layout, nil)
	memories, err := ml.LoadMemories(context.Background())
	require.NoError(t, err)
	require.Len(t, memories, 1)

	m := memories[0]
	require.Equal(t, "mem_2026_01_01_001", m.ID)
	require.Equal(t, "global", m.Directory)
	require.Equal(t, "global/note.md", m.Path)
	require.Equal(t, "Use table-driven tests", m.Title)
	require.Equal(t, domain.ScopeGlobal, m.Scope)
	require.InDelta(t, 0.8, m.Priority, 0.0001)
	require.Equal(t, domain.ConfidenceStable, m.Confidence)
	require.Equal(t, domain.MemoryStatusActive, m.Status)
	require.ElementsMatch(t, []string{"go", "testing"}, m.Tags)
	require.ElementsMatch(t, []string{"mem_2025_12_01_003"}, m.Supersedes)
	require.Equal(t, 2026, m.CreatedAt.Year())
	require.NotEmpty(t, m.ContentHash)
	require.NotZero(t, m.TokenCount)
	require.NoError(t, m.Validate())
}

func TestMemoryLoaderAppliesScopeDirectoryDefaults(t *testing.T) {
	root := t.TempDir()
	layout, err := NewLayout(root)
	require.NoError(t, err)

	writeFile(t, filepath.Join(layout.memoryDir("baseline"), "policy.md"), `---
id: mem_2026_02_01_001
---
# House Style

Always write tests alongside new code.
`)

	ml := NewMemoryLoader(layout, nil)
	memories, err := ml.LoadMemories(context.Background())
	require.NoError(t, err)
	require.Len(t, memories, 1)

	m := memories[0]
	require.Equal(t, domain.ScopeBaseline, m.Scope)
	require.Equal(t, domain.ConfidenceActive, m.Confidence)
	require.Equal(t, domain.MemoryStatusActive, m.Status)
	require.InDelta(t, 0.5, m.Priority, 0.0001)
}

func TestMemoryLoaderSkipsFileMissingID(t *testing.T) {
	root := t.TempDir()
	layout, err := NewLayout(root)
	require.NoError(t, err)

	writeFile(t, filepath.Join(layout.memoryDir("global"), "broken.md"), `---
tags: [oops]
---
# No id here
`)

	ml := NewMemoryLoader(layout, nil)
	memories, err := ml.LoadMemories(context.Background())
	require.NoError(t, err)
	require.Empty(t, memories)
}

func TestMemoryLoaderSkipsFileWithoutFrontMatter(t *testing.T) {
	root := t.TempDir()
	layout, err := NewLayout(root)
	require.NoError(t, err)

	writeFile(t, filepath.Join(layout.memoryDir("global"), "plain.md"), "# just a heading\n\nno front matter at all\n")

	ml := NewMemoryLoader(layout, nil)
	memories, err := ml.LoadMemories(context.Background())
	require.NoError(t, err)
	require.Empty(t, memories)
}

func TestMemoryLoaderMissingDirectoryYieldsNoResults(t *testing.T) {
	root := t.TempDir()
	layout, err := NewLayout(root)
	require.NoError(t, err)

	ml := NewMemoryLoader(layout, nil)
	memories, err := ml.LoadMemories(context.Background())
	require.NoError(t, err)
	require.Empty(t, memories)
}
