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
	"fmt"

	"github.com/dmmproject/agentos/internal/apperr"
	"github.com/dmmproject/agentos/internal/domain"
)

// ToolLoader implements toolreg.Loader by reading
// `.dmm/tools/{cli,api,mcp,function}/*.yaml` files. A definition's Kind
// field is always overwritten with the kind of the directory it was found
// in, since the directory is the structural source of truth; a mismatch is
// not logged.
type ToolLoader struct {
	layout Layout
}

// NewToolLoader creates a ToolLoader rooted at layout.
func NewToolLoader(layout Layout) *ToolLoader {
	return &ToolLoader{layout: layout}
}

// LoadAll reads every tool definition under tools/{cli,api,mcp,function}/.
func (l *ToolLoader) LoadAll(ctx context.Context) ([]*domain.Tool, error) {
	var out []*domain.Tool
	for _, kind := range toolKindDirs {
		tools, err := unmarshalYAMLDir[domain.Tool](l.layout.toolsDir(kind))
		if err != nil {
			return nil, err
		}
		for _, t := range tools {
			t.Kind = domain.ToolKind(kind)
		}
		out = append(out, tools...)
	}
	return out, nil
}

// LoadByID re-reads a single tool definition by id.
func (l *ToolLoader) LoadByID(ctx context.Context, id string) (*domain.Tool, error) {
	tools, err := l.LoadAll(ctx)
	if err != nil {
		return nil, err
	}
	for _, t := range tools {
		if t.ID == id {
			return t, nil
		}
	}
	return nil, apperr.New(apperr.NotFound, "loader.ToolLoader.LoadByID", fmt.Sprintf("tool not found: %s", id))
}
