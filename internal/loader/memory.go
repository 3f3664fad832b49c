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
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dmmproject/agentos/internal/domain"
	"github.com/dmmproject/agentos/internal/tokencount"
)

// MemoryLoader implements memorystore.Loader by reading
// `.dmm/memory/{scope}/*.md` files: YAML front-matter delimited by `---`
// lines followed by a Markdown body whose first `# ` line is the title
// (spec.md §6). Malformed files are skipped with a warning rather than
// failing the whole load, matching memory_curator_agent's scan behavior.
type MemoryLoader struct {
	layout  Layout
	counter *tokencount.TokenCounter
}

// NewMemoryLoader creates a MemoryLoader rooted at layout. counter may be
// nil, in which case token counts fall back to tokencount.EstimateTokens.
func NewMemoryLoader(layout Layout, counter *tokencount.TokenCounter) *MemoryLoader {
	return &MemoryLoader{layout: layout, counter: counter}
}

// memoryFrontMatter is the YAML block recognized at the top of a memory
// file (spec.md §6). Dates are kept as strings since front-matter authors
// write plain dates as often as RFC3339 timestamps; parseMemoryTime
// accepts both.
type memoryFrontMatter struct {
	ID         string   `yaml:"id"`
	Tags       []string `yaml:"tags"`
	Scope      string   `yaml:"scope"`
	Priority   *float64 `yaml:"priority"`
	Confidence string   `yaml:"confidence"`
	Status     string   `yaml:"status"`
	Created    string   `yaml:"created"`
	LastUsed   string   `yaml:"last_used"`
	Supersedes []string `yaml:"supersedes"`
	Related    []string `yaml:"related"`
	Expires    string   `yaml:"expires"`
}

// LoadMemories walks every scope directory under memory/ and parses each
// .md file it finds.
func (l *MemoryLoader) LoadMemories(ctx context.Context) ([]*domain.Memory, error) {
	var out []*domain.Memory

	for _, scope := range memoryScopeDirs {
		dir := l.layout.memoryDir(scope)
		entries, err := os.ReadDir(dir)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read memory dir %s: %w", dir, err)
		}

		for _, entry := range entries {
			if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
				continue
			}
			path := filepath.Join(dir, entry.Name())
			mem, err := l.parseMemoryFile(path, scope, entry.Name())
			if err != nil {
				slog.Warn("skipping malformed memory file", "path", path, "error", err)
				continue
			}
			out = append(out, mem)
		}
	}

	return out, nil
}

func (l *MemoryLoader) parseMemoryFile(path, scope, name string) (*domain.Memory, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	front, body, err := splitFrontMatter(string(raw))
	if err != nil {
		return nil, err
	}

	var fm memoryFrontMatter
	if err := yaml.Unmarshal([]byte(front), &fm); err != nil {
		return nil, fmt.Errorf("parse front matter: %w", err)
	}
	if fm.ID == "" {
		return nil, fmt.Errorf("missing required id front-matter key")
	}

	body = strings.TrimSpace(body)
	title := extractTitle(body)

	priority := 0.5
	if fm.Priority != nil {
		priority = *fm.Priority
	}

	memScope := domain.Scope(fm.Scope)
	if memScope == "" {
		memScope = domain.Scope(scope)
	}

	confidence := domain.Confidence(fm.Confidence)
	if confidence == "" {
		confidence = domain.ConfidenceActive
	}

	status := domain.MemoryStatus(fm.Status)
	if status == "" {
		status = domain.MemoryStatusActive
	}

	created, err := parseMemoryTime(fm.Created)
	if err != nil {
		return nil, fmt.Errorf("parse created: %w", err)
	}
	if created.IsZero() {
		info, statErr := os.Stat(path)
		if statErr == nil {
			created = info.ModTime().UTC()
		} else {
			created = time.Now().UTC()
		}
	}

	lastUsed, err := parseMemoryTime(fm.LastUsed)
	if err != nil {
		return nil, fmt.Errorf("parse last_used: %w", err)
	}

	var expires *time.Time
	if fm.Expires != "" {
		t, err := parseMemoryTime(fm.Expires)
		if err != nil {
			return nil, fmt.Errorf("parse expires: %w", err)
		}
		expires = &t
	}

	sum := sha256.Sum256([]byte(body))

	mem := &domain.Memory{
		ID:          fm.ID,
		Path:        filepath.ToSlash(filepath.Join(scope, name)),
		Directory:   scope,
		Title:       title,
		Body:        body,
		Scope:       memScope,
		Priority:    priority,
		Confidence:  confidence,
		Status:      status,
		Tags:        fm.Tags,
		TokenCount:  l.countTokens(body),
		CreatedAt:   created,
		LastUsed:    lastUsed,
		ContentHash: hex.EncodeToString(sum[:]),
		Supersedes:  fm.Supersedes,
		Related:     fm.Related,
		Expires:     expires,
	}

	return mem, nil
}

func (l *MemoryLoader) countTokens(body string) int {
	if l.counter != nil {
		return l.counter.Count(body)
	}
	return tokencount.EstimateTokens(body)
}

// splitFrontMatter separates a memory file's leading `---`-delimited YAML
// block from its Markdown body, mirroring the split("---", 2) shape memory
// curation agents have always used for this format.
func splitFrontMatter(content string) (front, body string, err error) {
	if !strings.HasPrefix(content, "---") {
		return "", "", fmt.Errorf("file does not start with a --- front-matter block")
	}
	content = strings.TrimPrefix(content, "---")

	idx := strings.Index(content, "\n---")
	if idx == -1 {
		return "", "", fmt.Errorf("unterminated front-matter block")
	}
	front = content[:idx]
	body = content[idx+len("\n---"):]
	return front, body, nil
}

// extractTitle returns the text of the body's first `# ` heading, or "" if
// it has none.
func extractTitle(body string) string {
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "# ") {
			return strings.TrimSpace(strings.TrimPrefix(line, "# "))
		}
	}
	return ""
}

// memoryTimeLayouts are tried in order; front-matter authors write either a
// bare date or a full timestamp.
var memoryTimeLayouts = []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"}

func parseMemoryTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	var lastErr error
	for _, layout := range memoryTimeLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t.UTC(), nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}
