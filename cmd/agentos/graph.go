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
	"fmt"

	"github.com/dmmproject/agentos/internal/domain"
	"github.com/dmmproject/agentos/internal/graphanalysis"
	"github.com/dmmproject/agentos/internal/graphstore"
)

// GraphCmd groups the knowledge-graph inspection verbs.
type GraphCmd struct {
	Status         GraphStatusCmd         `cmd:"" help:"Show node/edge counts by type."`
	Migrate        GraphMigrateCmd        `cmd:"" help:"Ensure the graph schema exists."`
	Show           GraphShowCmd           `cmd:"" help:"Show a node's edges."`
	Related        GraphRelatedCmd        `cmd:"" help:"Show memories related to a memory, within a hop radius."`
	Contradictions GraphContradictionsCmd `cmd:"" help:"List contradiction pairs."`
	Path           GraphPathCmd           `cmd:"" help:"Find a path between two nodes."`
	Query          GraphQueryCmd          `cmd:"" help:"Run a read-only templated SELECT."`
	Tags           GraphTagsCmd           `cmd:"" help:"List tags and their memory counts."`
	Clusters       GraphClustersCmd       `cmd:"" help:"Detect memory clusters and knowledge gaps."`
}

type GraphStatusCmd struct{}

func (c *GraphStatusCmd) Run(cli *CLI) error {
	ctx := context.Background()
	app, err := cli.open(ctx)
	if err != nil {
		return cliErr(err)
	}
	defer app.Close()

	stats, err := app.Graph.GetStats(ctx)
	if err != nil {
		return cliErr(err)
	}
	if cli.JSON {
		return printJSON(stats)
	}
	fmt.Println("Nodes:")
	for t, n := range stats.NodesByType {
		fmt.Printf("  %-10s %d\n", t, n)
	}
	fmt.Println("Edges:")
	for t, n := range stats.EdgesByType {
		fmt.Printf("  %-18s %d\n", t, n)
	}
	return nil
}

// GraphMigrateCmd is idempotent: opening the store already creates the
// schema if absent, so this verb is just that open/close round trip made
// explicit for operators who want to provision a working directory before
// anything else touches it.
type GraphMigrateCmd struct{}

func (c *GraphMigrateCmd) Run(cli *CLI) error {
	ctx := context.Background()
	app, err := cli.open(ctx)
	if err != nil {
		return cliErr(err)
	}
	defer app.Close()
	if cli.JSON {
		return printJSON(map[string]string{"status": "ok"})
	}
	fmt.Println("graph schema up to date")
	return nil
}

type GraphShowCmd struct {
	ID   string `arg:"" help:"Node id."`
	Type string `help:"Node type (Memory, Tag, Scope, Concept, Agent, Skill, Tool)." default:"Memory"`
}

func (c *GraphShowCmd) Run(cli *CLI) error {
	ctx := context.Background()
	app, err := cli.open(ctx)
	if err != nil {
		return cliErr(err)
	}
	defer app.Close()

	nodeType := domain.NodeType(c.Type)
	node, err := app.Graph.GetNode(ctx, c.ID, nodeType)
	if err != nil {
		return cliErr(err)
	}
	out, err := app.Graph.EdgesFrom(ctx, c.ID, nodeType)
	if err != nil {
		return cliErr(err)
	}
	in, err := app.Graph.EdgesTo(ctx, c.ID, nodeType)
	if err != nil {
		return cliErr(err)
	}

	if cli.JSON {
		return printJSON(map[string]any{"node": node, "edges_from": out, "edges_to": in})
	}
	fmt.Printf("Node %s (%s):\n", c.ID, nodeType)
	for k, v := range node {
		fmt.Printf("  %s: %v\n", k, v)
	}
	fmt.Println("Edges out:")
	for _, e := range out {
		fmt.Printf("  -[%s]-> %s (%s) weight=%.2f\n", e.Type, e.ToID, e.ToType, e.Weight)
	}
	fmt.Println("Edges in:")
	for _, e := range in {
		fmt.Printf("  %s (%s) -[%s]->\n", e.FromID, e.FromType, e.Type)
	}
	return nil
}

type GraphRelatedCmd struct {
	ID    string   `arg:"" help:"Memory id."`
	Depth int      `help:"Maximum hop depth." default:"2"`
	Type  []string `name:"type" help:"Edge type filter, may repeat."`
}

func (c *GraphRelatedCmd) Run(cli *CLI) error {
	ctx := context.Background()
	app, err := cli.open(ctx)
	if err != nil {
		return cliErr(err)
	}
	defer app.Close()

	var edgeTypes []domain.EdgeType
	for _, t := range c.Type {
		edgeTypes = append(edgeTypes, domain.EdgeType(t))
	}

	related, err := app.Graph.GetRelatedMemories(ctx, c.ID, c.Depth, edgeTypes)
	if err != nil {
		return cliErr(err)
	}
	if cli.JSON {
		return printJSON(related)
	}
	for _, r := range related {
		fmt.Printf("%s  (%s, %d hop(s))\n", r.SourceID, r.EdgeType, r.Hops)
	}
	return nil
}

type GraphContradictionsCmd struct{}

func (c *GraphContradictionsCmd) Run(cli *CLI) error {
	ctx := context.Background()
	app, err := cli.open(ctx)
	if err != nil {
		return cliErr(err)
	}
	defer app.Close()

	pairs, err := app.Graph.GetContradictionPairs(ctx)
	if err != nil {
		return cliErr(err)
	}
	if cli.JSON {
		return printJSON(pairs)
	}
	for _, p := range pairs {
		fmt.Printf("%s  <->  %s\n", p[0], p[1])
	}
	return nil
}

type GraphPathCmd struct {
	From      string  `arg:"" help:"Source node id."`
	To        string  `arg:"" help:"Destination node id."`
	MinWeight float64 `name:"min-weight" help:"Reject a found path if any edge along it has a lower weight."`
	Depth     int     `help:"Maximum hop depth." default:"4"`
}

func (c *GraphPathCmd) Run(cli *CLI) error {
	ctx := context.Background()
	app, err := cli.open(ctx)
	if err != nil {
		return cliErr(err)
	}
	defer app.Close()

	path, err := app.Graph.FindPath(ctx, c.From, c.To, c.Depth)
	if err != nil {
		return cliErr(err)
	}
	if path != nil && c.MinWeight > 0 {
		for _, e := range path {
			if e.Weight < c.MinWeight {
				path = nil
				break
			}
		}
	}
	if cli.JSON {
		return printJSON(map[string]any{"ids": graphstore.PathIDs(c.From, path), "edges": path})
	}
	if path == nil {
		fmt.Println("no path found")
		return nil
	}
	for _, id := range graphstore.PathIDs(c.From, path) {
		fmt.Println(id)
	}
	return nil
}

type GraphQueryCmd struct {
	SQL string `arg:"" help:"A read-only SELECT statement."`
}

func (c *GraphQueryCmd) Run(cli *CLI) error {
	ctx := context.Background()
	app, err := cli.open(ctx)
	if err != nil {
		return cliErr(err)
	}
	defer app.Close()

	rows, err := app.Graph.Query(ctx, c.SQL)
	if err != nil {
		return cliErr(err)
	}
	if cli.JSON {
		return printJSON(rows)
	}
	for _, row := range rows {
		fmt.Println(row)
	}
	return nil
}

type GraphTagsCmd struct{}

// Run aggregates HAS_TAG edges with a GROUP BY SELECT through the graph
// store's read-only Query: there's no dedicated store method for this,
// since it's a thin admin-only rollup.
func (c *GraphTagsCmd) Run(cli *CLI) error {
	ctx := context.Background()
	app, err := cli.open(ctx)
	if err != nil {
		return cliErr(err)
	}
	defer app.Close()

	rows, err := app.Graph.Query(ctx, `SELECT to_id AS tag, COUNT(*) AS memory_count FROM graph_edges WHERE edge_type = ? GROUP BY to_id ORDER BY memory_count DESC`, string(domain.EdgeHasTag))
	if err != nil {
		return cliErr(err)
	}
	if cli.JSON {
		return printJSON(rows)
	}
	for _, row := range rows {
		fmt.Printf("%v  %v\n", row["tag"], row["memory_count"])
	}
	return nil
}

type GraphClustersCmd struct {
	MinSize           int  `name:"min-size" help:"Minimum cluster size (0 = use config default)."`
	IncludeSingletons bool `name:"include-singletons" help:"Include memories with no qualifying neighbor as size-1 clusters."`
	NoGaps            bool `name:"no-gaps" help:"Skip knowledge gap detection."`
}

// Run detects connected components of related memories and, unless
// suppressed, memory pairs whose tags overlap enough to suggest a missing
// relationship the graph doesn't record yet.
func (c *GraphClustersCmd) Run(cli *CLI) error {
	ctx := context.Background()
	app, err := cli.open(ctx)
	if err != nil {
		return cliErr(err)
	}
	defer app.Close()

	cfg := app.Config.Cluster
	if c.MinSize > 0 {
		cfg.MinClusterSize = c.MinSize
	}
	if c.IncludeSingletons {
		cfg.IncludeSingletons = true
	}
	if c.NoGaps {
		cfg.DetectKnowledgeGaps = false
	}

	result, err := graphanalysis.New(app.Graph, app.Memories, cfg).Detect(ctx)
	if err != nil {
		return cliErr(err)
	}
	if cli.JSON {
		return printJSON(result)
	}

	fmt.Printf("%d memories, %d clustered, %d singleton(s)\n", result.TotalMemories, result.ClusteredMemories, result.SingletonCount)
	for _, cl := range result.Clusters {
		fmt.Printf("%s  size=%d density=%.2f central=%s tags=%v\n", cl.ID, cl.Size, cl.Density, cl.CentralMemoryID, cl.CommonTags)
	}
	if len(result.Gaps) > 0 {
		fmt.Println("Knowledge gaps:")
		for _, g := range result.Gaps {
			fmt.Printf("  %s <-> %s  similarity=%.2f  %s\n", g.MemoryID1, g.MemoryID2, g.SimilarityScore, g.Reason)
		}
	}
	return nil
}
