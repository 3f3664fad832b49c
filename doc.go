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

// Package agentos is a durable runtime that coordinates cooperating
// autonomous agents over a shared knowledge graph.
//
// Agents, skills, and tools are declared as YAML under a working
// directory's .dmm/ tree and loaded into registries backed by
// internal/agentreg, internal/skillreg, and internal/toolreg. Agent output
// is persisted as memories in internal/memorystore and internal/graphstore,
// retrieved by internal/retrieval's hybrid vector/graph pipeline, checked
// for contradictions by internal/conflict, and written back through
// internal/writeback's review queue. internal/bus, internal/tasktracker,
// and internal/selfmod round out the agent runtime: message passing, task
// progress tracking, and self-modification proposals.
//
// # Quick Start
//
// Build the CLI:
//
//	go install ./cmd/agentos
//
// Inspect a working directory:
//
//	agentos graph status
//	agentos conflicts scan
//	agentos proposals list --status pending
//
// Serve the admin HTTP surface:
//
//	agentos serve --port 8080
//
// # Architecture
//
//	Agents -> Retrieval Pipeline -> Knowledge Graph (memories, tags, edges)
//	       -> Conflict Detector   -> Write-back Review Queue -> Graph
//
// Every subsystem is reachable both from the agentos CLI and from
// internal/httpapi's admin HTTP endpoints, backed by the same on-disk
// stores under a single .dmm working directory.
//
// # License
//
// Apache-2.0 - see LICENSE for details.
package agentos
