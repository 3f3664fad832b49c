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

package main

import (
	"context"
	"os"
	"path/filepath"

	"github.com/dmmproject/agentos/internal/agentosstore"
	"github.com/dmmproject/agentos/internal/agentreg"
	"github.com/dmmproject/agentos/internal/bus"
	"github.com/dmmproject/agentos/internal/config"
	"github.com/dmmproject/agentos/internal/conflict"
	"github.com/dmmproject/agentos/internal/domain"
	"github.com/dmmproject/agentos/internal/embedder"
	"github.com/dmmproject/agentos/internal/extract"
	"github.com/dmmproject/agentos/internal/graphstore"
	"github.com/dmmproject/agentos/internal/loader"
	"github.com/dmmproject/agentos/internal/memorystore"
	"github.com/dmmproject/agentos/internal/retrieval"
	"github.com/dmmproject/agentos/internal/selfmod"
	"github.com/dmmproject/agentos/internal/skillreg"
	"github.com/dmmproject/agentos/internal/taskstore"
	"github.com/dmmproject/agentos/internal/tasktracker"
	"github.com/dmmproject/agentos/internal/toolreg"
	"github.com/dmmproject/agentos/internal/usage"
	"github.com/dmmproject/agentos/internal/vectorindex"
	"github.com/dmmproject/agentos/internal/writeback"
)

// App wires every subsystem the CLI verbs operate on, rooted at a single
// .dmm working directory. It plays the role the teacher's DirectExecutor /
// ComponentManager pair plays for chat sessions: one struct, built once per
// invocation, handed to whichever command is running.
type App struct {
	Layout loader.Layout
	Config *config.Config

	Graph     *graphstore.Store
	Memories  *memorystore.Store
	Conflicts *conflict.Store
	Detector  *conflict.Detector
	Resolver  *conflict.Resolver
	Writeback *writeback.Store
	Reviewer  *writeback.Reviewer
	Committer *writeback.Committer
	Tasks     *taskstore.Store
	AgentOS   *agentosstore.Store
	Usage     *usage.Tracker

	Embedder  embedder.Embedder
	Vectors   vectorindex.Provider
	Indexer   *memorystore.Indexer
	Extractor *extract.Orchestrator
	Retrieval *retrieval.Pipeline

	Bus     *bus.Bus
	Trackr  *tasktracker.Tracker
	SelfMod *selfmod.Manager

	Agents *agentreg.Registry
	Skills *skillreg.Registry
	Tools  *toolreg.Registry

	closers []func() error
}

// openApp opens every store under path's .dmm directory and wires the
// registries/detector/resolver/reviewer on top of them.
func openApp(ctx context.Context, path string, cfg *config.Config) (*App, error) {
	layout, err := loader.NewLayout(path)
	if err != nil {
		return nil, err
	}

	a := &App{Layout: layout, Config: cfg}

	if err := os.MkdirAll(filepath.Join(layout.Root, "index"), 0755); err != nil {
		return nil, err
	}

	graphPath := filepath.Join(layout.IndexDir("knowledge.graph"), "graph.sqlite")
	if err := os.MkdirAll(filepath.Dir(graphPath), 0755); err != nil {
		return nil, err
	}
	graph, err := graphstore.Open(ctx, graphPath)
	if err != nil {
		return nil, err
	}
	a.Graph = graph
	a.addCloser(graph.Close)

	memories, err := memorystore.Open(ctx, layout.IndexDir("embeddings.sqlite"))
	if err != nil {
		return nil, err
	}
	a.Memories = memories
	a.addCloser(memories.Close)

	conflicts, err := conflict.Open(ctx, layout.IndexDir("conflicts.sqlite"))
	if err != nil {
		return nil, err
	}
	a.Conflicts = conflicts
	a.addCloser(conflicts.Close)
	a.Detector = conflict.New(memories, conflicts, nil, cfg.Conflict)
	a.Resolver = conflict.NewResolver(memories, graph, conflicts, cfg.Conflict.DeferTTLHours)

	wb, err := writeback.Open(ctx, layout.IndexDir("review_queue.sqlite"))
	if err != nil {
		return nil, err
	}
	a.Writeback = wb
	a.addCloser(wb.Close)
	a.Reviewer = writeback.NewReviewer(wb, a.Detector, layout.Root, cfg.Writeback.AutoReviewConfidence, cfg.Writeback.MaxTokens)

	tasks, err := taskstore.Open(ctx, layout.IndexDir("tasks.sqlite"))
	if err != nil {
		return nil, err
	}
	a.Tasks = tasks
	a.addCloser(tasks.Close)

	agentOS, err := agentosstore.Open(ctx, layout.IndexDir("agentos.sqlite"))
	if err != nil {
		return nil, err
	}
	a.AgentOS = agentOS
	a.addCloser(agentOS.Close)

	usageStore, err := usage.Open(ctx, layout.IndexDir("usage.sqlite"))
	if err != nil {
		return nil, err
	}
	a.addCloser(usageStore.Close)
	a.Usage = usage.New(usageStore, memories)

	// HashEmbedder is the production default: deterministic and
	// dependency-free, so indexing and retrieval run without a concrete
	// LLM-provider SDK wired in (a real deployment swaps it for one).
	a.Embedder = embedder.NewHashEmbedder(cfg.Embedder.Dimension, cfg.Embedder.Model)

	if cfg.Vector.Chromem != nil && cfg.Vector.Chromem.PersistPath == "" {
		cfg.Vector.Chromem.PersistPath = layout.IndexDir("vectors")
	}
	vectors, err := vectorindex.New(&cfg.Vector)
	if err != nil {
		return nil, err
	}
	a.Vectors = vectors
	a.addCloser(vectors.Close)

	a.Indexer = memorystore.NewIndexer(memories, a.Embedder, a.Vectors)
	a.Extractor = extract.New(memories, graph, nil, cfg.Extract)
	a.Committer = writeback.NewCommitter(wb, writeback.OSFileStore{Root: layout.Root}, memories, a.Indexer, a.Extractor, a.Detector, cfg.Writeback.MaxRetries)

	retrievalPipeline, err := retrieval.New(memories, graph, a.Embedder, a.Vectors, cfg.Retrieval)
	if err != nil {
		return nil, err
	}
	a.Retrieval = retrievalPipeline

	// The message bus and the self-modification manager are wired against
	// agentosstore for durability (spec.md §2): every delivered message and
	// self-mod lifecycle transition is persisted as it happens, so either
	// survives a process restart. The task tracker keeps its events in
	// memory only.
	a.Bus = bus.New(cfg.Runtime.MailboxCapacity)
	a.Bus.Subscribe("agentosstore-durability", func(m *domain.Message) {
		_ = agentOS.SaveMessage(ctx, m)
	}, nil, nil)

	a.Trackr = tasktracker.New(tasks, cfg.Runtime.EventBufferSize)

	a.SelfMod = selfmod.New(rootedFileWriter{root: layout.Root}, cfg.SelfMod.RequiredApprovals, cfg.SelfMod.AutoApproveLowRisk,
		cfg.SelfMod.RequireTests, cfg.SelfMod.LineCountThreshold, cfg.SelfMod.CorePathPrefixes)
	persistMod := func(p *domain.ModificationProposal) { _ = agentOS.SaveModification(ctx, p) }
	a.SelfMod.OnSubmit(persistMod)
	a.SelfMod.OnApprove(persistMod)
	a.SelfMod.OnReject(persistMod)
	a.SelfMod.OnApply(persistMod)
	a.SelfMod.OnRevert(persistMod)

	a.Agents = agentreg.New(loader.NewAgentLoader(layout))
	a.Skills = skillreg.New(loader.NewSkillLoader(layout))
	a.Tools = toolreg.New(loader.NewToolLoader(layout))
	if err := a.Agents.LoadAll(ctx); err != nil {
		return nil, err
	}
	if err := a.Agents.SyncToGraph(ctx, graph); err != nil {
		return nil, err
	}
	if err := a.Skills.LoadAll(ctx); err != nil {
		return nil, err
	}
	if err := a.Skills.SyncToGraph(ctx, graph); err != nil {
		return nil, err
	}
	if err := a.Tools.LoadAll(ctx); err != nil {
		return nil, err
	}
	if err := a.Tools.SyncToGraph(ctx, graph); err != nil {
		return nil, err
	}

	return a, nil
}

// open loads config (per cli.Config / defaults) and opens an App rooted at
// cli.Path, the shared bootstrap sequence every command's Run starts with.
func (cli *CLI) open(ctx context.Context) (*App, error) {
	cfg, err := cli.loadConfig(ctx)
	if err != nil {
		return nil, err
	}
	return openApp(ctx, cli.Path, cfg)
}

func (a *App) addCloser(fn func() error) {
	a.closers = append(a.closers, fn)
}

// Close closes every store that was opened, returning the first error
// encountered (after attempting to close the rest).
func (a *App) Close() error {
	var first error
	for _, fn := range a.closers {
		if err := fn(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// rootedFileWriter is a selfmod.FileWriter that resolves relative paths
// against the working directory root, the same containment selfmod.Manager
// writes its code changes under as writeback.OSFileStore does for memory
// write-backs.
type rootedFileWriter struct {
	root string
}

func (w rootedFileWriter) Write(path, content string) error {
	return selfmod.OSFileWriter{}.Write(filepath.Join(w.root, filepath.Clean(path)), content)
}
