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
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// unmarshalYAMLDir reads every *.yaml/*.yml file directly under dir and
// unmarshals each onto a fresh T. A missing directory yields no results; a
// file that fails to parse is skipped with a warning rather than failing
// the whole load, so one bad definition doesn't take the registry down.
func unmarshalYAMLDir[T any](dir string) ([]*T, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read dir %s: %w", dir, err)
	}

	var out []*T
	for _, entry := range entries {
		if entry.IsDir() || !isYAMLFile(entry.Name()) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		raw, err := os.ReadFile(path)
		if err != nil {
			slog.Warn("skipping unreadable definition file", "path", path, "error", err)
			continue
		}
		var v T
		if err := yaml.Unmarshal(raw, &v); err != nil {
			slog.Warn("skipping malformed definition file", "path", path, "error", err)
			continue
		}
		out = append(out, &v)
	}
	return out, nil
}

func isYAMLFile(name string) bool {
	return strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml")
}
