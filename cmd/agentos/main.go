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

// Command agentos is the administrative CLI for an AgentOS working
// directory: inspecting the knowledge graph, scanning and resolving
// conflicts, reviewing write-back proposals, managing agent/skill/tool
// registries, and serving the admin HTTP surface.
//
// Usage:
//
//	agentos graph status
//	agentos conflicts scan
//	agentos proposals list --status pending
//	agentos serve --port 8080
package main

import (
	"context"
	"fmt"
	"os"
	"runtime/debug"

	"github.com/alecthomas/kong"

	"github.com/dmmproject/agentos/internal/config"
	"github.com/dmmproject/agentos/internal/logger"
)

// CLI is the top-level command tree.
type CLI struct {
	Graph     GraphCmd     `cmd:"" help:"Inspect the knowledge graph."`
	Conflicts ConflictsCmd `cmd:"" help:"Scan, list, and resolve detected conflicts."`
	Proposals ProposalsCmd `cmd:"" help:"Review write-back proposals."`
	Agents    AgentsCmd    `cmd:"" help:"Inspect and manage the agent registry."`
	Skills    SkillsCmd    `cmd:"" help:"Inspect and manage the skill registry."`
	Tools     ToolsCmd     `cmd:"" help:"Inspect and manage the tool registry."`
	Tasks     TasksCmd     `cmd:"" help:"Inspect tracked tasks."`
	Usage     UsageCmd     `cmd:"" help:"Inspect and control usage tracking."`
	Query     QueryCmd     `cmd:"" help:"Run a query through the hybrid retrieval pipeline."`
	Messages  MessagesCmd  `cmd:"" help:"Send and inspect inter-agent bus messages."`
	SelfMod   SelfModCmd   `cmd:"" help:"Submit and review self-modification proposals."`
	Serve     ServeCmd     `cmd:"" help:"Start the admin HTTP surface."`
	Version   VersionCmd   `cmd:"" help:"Show version information."`

	Path      string `short:"p" help:"Path to the working directory (parent of .dmm)." type:"path" default:"."`
	Config    string `short:"c" help:"Path to config file." type:"path"`
	JSON      bool   `help:"Emit machine-readable JSON instead of human-readable text."`
	LogLevel  string `help:"Log level (debug, info, warn, error)." default:"info"`
	LogFile   string `help:"Log file path (empty = stderr)."`
	LogFormat string `help:"Log format (simple, verbose, or custom)." default:"simple"`
}

// loadConfig loads a Config from cli.Config when set, otherwise returns a
// defaulted zero-value config — every sub-config's SetDefaults fills in the
// values spec.md §4 names (token budgets, thresholds, worker counts).
func (c *CLI) loadConfig(ctx context.Context) (*config.Config, error) {
	if c.Config != "" {
		cfg, ld, err := config.LoadConfigFile(ctx, c.Config)
		if err != nil {
			return nil, err
		}
		ld.Close()
		return cfg, nil
	}
	cfg := &config.Config{}
	cfg.SetDefaults()
	return cfg, nil
}

// VersionCmd prints the build version.
type VersionCmd struct{}

func (c *VersionCmd) Run(cli *CLI) error {
	version := "dev"
	if info, ok := debug.ReadBuildInfo(); ok {
		if info.Main.Version != "(devel)" && info.Main.Version != "" {
			version = info.Main.Version
		}
	}
	fmt.Printf("agentos version %s\n", version)
	return nil
}

func main() {
	cli := CLI{}
	kctx := kong.Parse(&cli,
		kong.Name("agentos"),
		kong.Description("AgentOS admin CLI: knowledge graph, conflicts, write-back, and registries."),
		kong.UsageOnError(),
	)

	level, err := logger.ParseLevel(cli.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid --log-level: %v\n", err)
		os.Exit(1)
	}
	output := os.Stderr
	if cli.LogFile != "" {
		f, cleanup, openErr := logger.OpenLogFile(cli.LogFile)
		if openErr != nil {
			fmt.Fprintf(os.Stderr, "failed to open --log-file: %v\n", openErr)
			os.Exit(1)
		}
		defer cleanup()
		output = f
	}
	logger.Init(level, output, cli.LogFormat)

	err = kctx.Run(&cli)
	if err == nil {
		return
	}

	printError(err, cli.JSON)
	if ec, ok := err.(exitCoder); ok {
		os.Exit(ec.ExitCode())
	}
	os.Exit(1)
}
