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

// Package loader is the default implementation of the Loader interfaces
// named by memorystore, agentreg, skillreg, and toolreg (spec.md §6: "the
// core does not parse these formats directly"). It reads the YAML and
// Markdown files under a `.dmm/` working directory (util.WorkDirName) and
// produces the domain values those registries and stores operate on.
package loader

import (
	"path/filepath"

	"github.com/dmmproject/agentos/internal/util"
)

// Layout is the set of paths a Loader reads from, all rooted under a single
// working directory (spec.md §6 persisted state layout).
type Layout struct {
	Root string
}

// NewLayout resolves a Layout from a base directory, defaulting to the
// current directory's util.WorkDirName when base is empty.
func NewLayout(base string) (Layout, error) {
	root, err := util.EnsureWorkDir(base)
	if err != nil {
		return Layout{}, err
	}
	return Layout{Root: root}, nil
}

func (l Layout) memoryDir(scope string) string {
	return filepath.Join(l.Root, "memory", scope)
}

func (l Layout) agentsDir() string {
	return filepath.Join(l.Root, "agents")
}

func (l Layout) skillsDir(kind string) string {
	return filepath.Join(l.Root, "skills", kind)
}

func (l Layout) toolsDir(kind string) string {
	return filepath.Join(l.Root, "tools", kind)
}

// IndexDir returns the path of one of the fixed index/ subdirectories or
// files (spec.md §6: embeddings.sqlite, knowledge.graph/, conflicts.sqlite,
// review_queue.sqlite, usage.sqlite, agentos.sqlite, tasks.sqlite), rooted
// under the working directory. Callers that need the directory itself to
// exist (e.g. before sql.Open, which never creates one) should os.MkdirAll
// filepath.Dir of the result.
func (l Layout) IndexDir(name string) string {
	return filepath.Join(l.Root, "index", name)
}

// memoryScopeDirs are the five on-disk scope directories under memory/
// (spec.md §6). "deprecated" memories are written in place by status
// change, not moved to their own directory, so there is no sixth entry
// here.
var memoryScopeDirs = []string{"baseline", "global", "agent", "project", "ephemeral"}

// skillKindDirs are the two on-disk skill directories.
var skillKindDirs = []string{"core", "custom"}

// toolKindDirs mirror domain.ToolKind's four values.
var toolKindDirs = []string{"cli", "api", "mcp", "function"}
