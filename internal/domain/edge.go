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

// NodeType identifies what kind of entity a graph node represents.
type NodeType string

const (
	NodeMemory NodeType = "Memory"
	NodeTag    NodeType = "Tag"
	NodeScope  NodeType = "Scope"
	NodeConcept NodeType = "Concept"
	NodeAgent  NodeType = "Agent"
	NodeSkill  NodeType = "Skill"
	NodeTool   NodeType = "Tool"
)

// EdgeType is the fixed set of relationship types the graph store accepts
// (spec.md §3). Each type fixes its endpoint node types; GraphStore rejects
// edges with mismatched endpoints.
type EdgeType string

const (
	EdgeRelatesTo     EdgeType = "RELATES_TO"     // Memory -> Memory
	EdgeSupports      EdgeType = "SUPPORTS"       // Memory -> Memory
	EdgeContradicts   EdgeType = "CONTRADICTS"    // Memory -> Memory
	EdgeDependsOn     EdgeType = "DEPENDS_ON"     // Memory -> Memory
	EdgeSupersedes    EdgeType = "SUPERSEDES"     // Memory -> Memory
	EdgeHasTag        EdgeType = "HAS_TAG"        // Memory -> Tag
	EdgeInScope       EdgeType = "IN_SCOPE"       // Memory -> Scope
	EdgeTagCooccurs   EdgeType = "TAG_COOCCURS"   // Tag -> Tag
	EdgeHasSkill      EdgeType = "HAS_SKILL"      // Agent -> Skill
	EdgeHasTool       EdgeType = "HAS_TOOL"       // Agent -> Tool
	EdgePrefersScope  EdgeType = "PREFERS_SCOPE"  // Agent -> Scope
	EdgeSkillDependsOn EdgeType = "SKILL_DEPENDS_ON" // Skill -> Skill
	EdgeUsesTool      EdgeType = "USES_TOOL"      // Skill -> Tool
)

// endpointTypes names the (from, to) node types an edge type is allowed to
// connect. GraphStore.CreateEdge consults this to reject malformed edges.
var endpointTypes = map[EdgeType][2]NodeType{
	EdgeRelatesTo:      {NodeMemory, NodeMemory},
	EdgeSupports:       {NodeMemory, NodeMemory},
	EdgeContradicts:    {NodeMemory, NodeMemory},
	EdgeDependsOn:      {NodeMemory, NodeMemory},
	EdgeSupersedes:     {NodeMemory, NodeMemory},
	EdgeHasTag:         {NodeMemory, NodeTag},
	EdgeInScope:        {NodeMemory, NodeScope},
	EdgeTagCooccurs:    {NodeTag, NodeTag},
	EdgeHasSkill:       {NodeAgent, NodeSkill},
	EdgeHasTool:        {NodeAgent, NodeTool},
	EdgePrefersScope:   {NodeAgent, NodeScope},
	EdgeSkillDependsOn: {NodeSkill, NodeSkill},
	EdgeUsesTool:       {NodeSkill, NodeTool},
}

// ValidEndpoints reports whether (fromType, toType) is legal for edgeType.
func ValidEndpoints(edgeType EdgeType, fromType, toType NodeType) bool {
	want, ok := endpointTypes[edgeType]
	if !ok {
		return false
	}
	return want[0] == fromType && want[1] == toType
}

// ExpansionEdgeTypes is the default set the graph-expansion stage of hybrid
// retrieval walks (spec.md §4.2 stage 3).
var ExpansionEdgeTypes = []EdgeType{EdgeSupports, EdgeRelatesTo, EdgeDependsOn}

// Edge is a typed, directed, optionally-weighted connection between two
// nodes.
type Edge struct {
	FromID   string
	FromType NodeType
	ToID     string
	ToType   NodeType
	Type     EdgeType

	Weight      float64 // [0,1]
	Context     string  // RELATES_TO
	Strength    float64 // SUPPORTS
	Description string  // CONTRADICTS
	Reason      string  // SUPERSEDES
	Count       int     // TAG_COOCCURS
}

// Validate checks the invariants in spec.md §3: no self-loops, weights in
// [0,1], and legal endpoint types.
func (e *Edge) Validate() error {
	if e.FromID == "" || e.ToID == "" {
		return errRequired("from_id/to_id")
	}
	if e.FromID == e.ToID && e.FromType == e.ToType {
		return errInvalid("edge", "self-loop")
	}
	if e.Weight < 0 || e.Weight > 1 {
		return errInvalid("weight", e.Weight)
	}
	if !ValidEndpoints(e.Type, e.FromType, e.ToType) {
		return errInvalid("endpoints", string(e.Type))
	}
	return nil
}
