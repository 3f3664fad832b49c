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

// Package util provides small filesystem helpers shared across AgentOS's
// stores.
package util

import (
	"fmt"
	"os"
	"path/filepath"
)

// WorkDirName is the default name of AgentOS's persisted-state directory
// (spec.md §6): graph/vector indexes, the agentosstore SQLite file, and
// agent/skill/tool YAML definitions all live under it.
const WorkDirName = ".dmm"

// EnsureWorkDir ensures the working directory exists at the given base path
// and returns its full path. If basePath is empty or ".", it creates
// ./.dmm in the current directory; otherwise {basePath}/.dmm.
func EnsureWorkDir(basePath string) (string, error) {
	dir := WorkDirName
	if basePath != "" && basePath != "." {
		dir = filepath.Join(basePath, WorkDirName)
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create work directory at '%s': %w", dir, err)
	}

	return dir, nil
}

// EnsureSubdir ensures a named subdirectory of the working directory exists
// (e.g. "vectors", "checkpoints") and returns its full path.
func EnsureSubdir(workDir, name string) (string, error) {
	dir := filepath.Join(workDir, name)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create subdirectory at '%s': %w", dir, err)
	}
	return dir, nil
}

// AtomicWriteFile writes data to path by writing to a temp file in the same
// directory and renaming it into place, so readers never observe a partial
// write (used by the write-back committer, spec.md §4.4).
func AtomicWriteFile(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename temp file into place: %w", err)
	}
	return nil
}
