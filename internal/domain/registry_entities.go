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

package domain

// SkillsConfig names the skills an Agent may use.
type SkillsConfig struct {
	Primary   []string `yaml:"primary,omitempty"`
	Secondary []string `yaml:"secondary,omitempty"`
	Disabled  []string `yaml:"disabled,omitempty"`
}

// ToolsConfig is an enabled-tool allow-list. An empty Enabled list means
// "all tools allowed except those in Disabled" (spec.md §3).
type ToolsConfig struct {
	Enabled  []string `yaml:"enabled,omitempty"`
	Disabled []string `yaml:"disabled,omitempty"`
}

// Allows reports whether toolID is usable under this config.
func (t ToolsConfig) Allows(toolID string) bool {
	for _, d := range t.Disabled {
		if d == toolID {
			return false
		}
	}
	if len(t.Enabled) == 0 {
		return true
	}
	for _, e := range t.Enabled {
		if e == toolID {
			return true
		}
	}
	return false
}

// MemoryConfig scopes which memories an Agent draws on.
type MemoryConfig struct {
	RequiredScopes []Scope  `yaml:"required_scopes,omitempty"`
	PreferredScopes []Scope `yaml:"preferred_scopes,omitempty"`
	ExcludedScopes []Scope  `yaml:"excluded_scopes,omitempty"`
	PreferredTags  []string `yaml:"preferred_tags,omitempty"`
	ContextBudget  int      `yaml:"context_budget,omitempty"`
}

// BehaviorConfig shapes how an Agent presents itself.
type BehaviorConfig struct {
	Tone        string   `yaml:"tone,omitempty"`
	Verbosity   string   `yaml:"verbosity,omitempty"`
	FocusAreas  []string `yaml:"focus_areas,omitempty"`
	Guidelines  []string `yaml:"guidelines,omitempty"`
}

// AgentConstraints bounds what an Agent may do.
type AgentConstraints struct {
	TokenCeiling       int      `yaml:"token_ceiling,omitempty"`
	ToolExecutionAllowed bool   `yaml:"tool_execution_allowed,omitempty"`
	MemoryWriteAllowed bool     `yaml:"memory_write_allowed,omitempty"`
	AllowedScopes      []Scope  `yaml:"allowed_scopes,omitempty"`
}

// Agent is a YAML-defined registry entity (spec.md §3, §4.6).
type Agent struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`
	Category    string `yaml:"category,omitempty"`
	Tags        []string `yaml:"tags,omitempty"`
	Enabled     bool   `yaml:"enabled"`

	Skills      SkillsConfig     `yaml:"skills,omitempty"`
	Tools       ToolsConfig      `yaml:"tools,omitempty"`
	Memory      MemoryConfig     `yaml:"memory,omitempty"`
	Behavior    BehaviorConfig   `yaml:"behavior,omitempty"`
	Constraints AgentConstraints `yaml:"constraints,omitempty"`

	// ValidationWarnings collects validation messages for the agent. The
	// agent registry's LoadAll appends the Validate error here and does not
	// register an agent that fails Validate. Skill and tool references are
	// not checked against their registries.
	ValidationWarnings []string `yaml:"-"`
}

func (a *Agent) Validate() error {
	if a.ID == "" {
		return errRequired("id")
	}
	if a.Name == "" {
		return errRequired("name")
	}
	return nil
}

// Skill is a YAML-defined registry entity.
type Skill struct {
	ID          string   `yaml:"id"`
	Name        string   `yaml:"name"`
	Description string   `yaml:"description,omitempty"`
	Category    string   `yaml:"category,omitempty"`
	Tags        []string `yaml:"tags,omitempty"`
	Enabled     bool     `yaml:"enabled"`
	DependsOn   []string `yaml:"depends_on,omitempty"`
	UsesTools   []string `yaml:"uses_tools,omitempty"`
	Core        bool     `yaml:"-"` // true when loaded from skills/core/
}

func (s *Skill) Validate() error {
	if s.ID == "" {
		return errRequired("id")
	}
	return nil
}

// ToolKind is where a Tool executes (spec.md §4.6 availability check).
type ToolKind string

const (
	ToolKindCLI      ToolKind = "cli"
	ToolKindAPI      ToolKind = "api"
	ToolKindMCP      ToolKind = "mcp"
	ToolKindFunction ToolKind = "function"
)

// Tool is a YAML-defined registry entity.
type Tool struct {
	ID          string   `yaml:"id"`
	Name        string   `yaml:"name"`
	Description string   `yaml:"description,omitempty"`
	Category    string   `yaml:"category,omitempty"`
	Tags        []string `yaml:"tags,omitempty"`
	Enabled     bool     `yaml:"enabled"`
	Kind        ToolKind `yaml:"kind"`

	// CLI
	CheckCommand     string   `yaml:"check_command,omitempty"`
	RequiredPlatform string   `yaml:"required_platform,omitempty"`
	RequiredFiles    []string `yaml:"required_files,omitempty"`

	// API
	AuthEnvVar string `yaml:"auth_env_var,omitempty"`

	// MCP
	ServerExecutable string `yaml:"server_executable,omitempty"`
}

func (t *Tool) Validate() error {
	if t.ID == "" {
		return errRequired("id")
	}
	switch t.Kind {
	case ToolKindCLI, ToolKindAPI, ToolKindMCP, ToolKindFunction:
	default:
		return errInvalid("kind", string(t.Kind))
	}
	return nil
}

// RegistryStats is the common shape returned by get_stats across the three
// registries (spec.md §4.6).
type RegistryStats struct {
	Total    int
	Enabled  int
	Disabled int
	ByCategory map[string]int
}

// SearchMatch is one scored search hit (spec.md §4.6 relevance scoring).
type SearchMatch struct {
	ID    string
	Score int
	Why   string
}

// MatchResult is a scored agent returned by AgentMatcher.
type MatchResult struct {
	AgentID   string
	Score     float64
	Rationale string
}
