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

// AgentLoader implements agentreg.Loader by reading `.dmm/agents/*.yaml`
// files, each directly unmarshaled onto domain.Agent since its fields
// already carry the matching yaml struct tags.
type AgentLoader struct {
	layout Layout
}

// NewAgentLoader creates an AgentLoader rooted at layout.
func NewAgentLoader(layout Layout) *AgentLoader {
	return &AgentLoader{layout: layout}
}

// LoadAll reads every agent definition under agents/.
func (l *AgentLoader) LoadAll(ctx context.Context) ([]*domain.Agent, error) {
	agents, err := unmarshalYAMLDir[domain.Agent](l.layout.agentsDir())
	if err != nil {
		return nil, err
	}
	return agents, nil
}

// LoadByID re-reads a single agent definition by id.
func (l *AgentLoader) LoadByID(ctx context.Context, id string) (*domain.Agent, error) {
	agents, err := l.LoadAll(ctx)
	if err != nil {
		return nil, err
	}
	for _, a := range agents {
		if a.ID == id {
			return a, nil
		}
	}
	return nil, apperr.New(apperr.NotFound, "loader.AgentLoader.LoadByID", fmt.Sprintf("agent not found: %s", id))
}
