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

	"github.com/dmmproject/agentos/internal/apperr"
)

// AgentsCmd groups the agent registry verbs.
type AgentsCmd struct {
	List    AgentsListCmd    `cmd:"" help:"List agents."`
	Show    AgentsShowCmd    `cmd:"" help:"Show a single agent."`
	Search  AgentsSearchCmd  `cmd:"" help:"Search agents by name, description, and tags."`
	Enable  AgentsEnableCmd  `cmd:"" help:"Enable an agent."`
	Disable AgentsDisableCmd `cmd:"" help:"Disable an agent."`
}

type AgentsListCmd struct{}

func (c *AgentsListCmd) Run(cli *CLI) error {
	ctx := context.Background()
	app, err := cli.open(ctx)
	if err != nil {
		return cliErr(err)
	}
	defer app.Close()

	agents := app.Agents.ListAll()
	if cli.JSON {
		return printJSON(agents)
	}
	for _, a := range agents {
		status := "enabled"
		if !a.Enabled {
			status = "disabled"
		}
		fmt.Printf("%-20s [%s]  %s\n", a.ID, status, a.Description)
	}
	return nil
}

type AgentsShowCmd struct {
	ID string `arg:"" help:"Agent id."`
}

func (c *AgentsShowCmd) Run(cli *CLI) error {
	ctx := context.Background()
	app, err := cli.open(ctx)
	if err != nil {
		return cliErr(err)
	}
	defer app.Close()

	agent, ok := app.Agents.FindByID(c.ID)
	if !ok {
		return cliErr(apperr.New(apperr.NotFound, "agents.show", "agent not found: "+c.ID))
	}
	if cli.JSON {
		return printJSON(agent)
	}
	fmt.Printf("ID:          %s\n", agent.ID)
	fmt.Printf("Name:        %s\n", agent.Name)
	fmt.Printf("Category:    %s\n", agent.Category)
	fmt.Printf("Enabled:     %v\n", agent.Enabled)
	fmt.Printf("Tags:        %v\n", agent.Tags)
	fmt.Printf("Primary:     %v\n", agent.Skills.Primary)
	for _, w := range agent.ValidationWarnings {
		fmt.Printf("warning:     %s\n", w)
	}
	return nil
}

type AgentsSearchCmd struct {
	Query       string `arg:"" help:"Search query."`
	EnabledOnly bool   `name:"enabled-only" help:"Only match enabled agents."`
}

func (c *AgentsSearchCmd) Run(cli *CLI) error {
	ctx := context.Background()
	app, err := cli.open(ctx)
	if err != nil {
		return cliErr(err)
	}
	defer app.Close()

	matches := app.Agents.Search(c.Query, c.EnabledOnly, nil)
	if cli.JSON {
		return printJSON(matches)
	}
	for _, m := range matches {
		fmt.Printf("%-20s score=%-3d %s\n", m.ID, m.Score, m.Why)
	}
	return nil
}

type AgentsEnableCmd struct {
	ID string `arg:"" help:"Agent id."`
}

func (c *AgentsEnableCmd) Run(cli *CLI) error {
	ctx := context.Background()
	app, err := cli.open(ctx)
	if err != nil {
		return cliErr(err)
	}
	defer app.Close()
	if err := app.Agents.Enable(c.ID); err != nil {
		return cliErr(err)
	}
	fmt.Printf("enabled %s\n", c.ID)
	return nil
}

type AgentsDisableCmd struct {
	ID string `arg:"" help:"Agent id."`
}

func (c *AgentsDisableCmd) Run(cli *CLI) error {
	ctx := context.Background()
	app, err := cli.open(ctx)
	if err != nil {
		return cliErr(err)
	}
	defer app.Close()
	if err := app.Agents.Disable(c.ID); err != nil {
		return cliErr(err)
	}
	fmt.Printf("disabled %s\n", c.ID)
	return nil
}

// SkillsCmd groups the skill registry verbs.
type SkillsCmd struct {
	List    SkillsListCmd    `cmd:"" help:"List skills."`
	Show    SkillsShowCmd    `cmd:"" help:"Show a single skill."`
	Search  SkillsSearchCmd  `cmd:"" help:"Search skills by name, description, and tags."`
	Enable  SkillsEnableCmd  `cmd:"" help:"Enable a skill."`
	Disable SkillsDisableCmd `cmd:"" help:"Disable a skill."`
}

type SkillsListCmd struct{}

func (c *SkillsListCmd) Run(cli *CLI) error {
	ctx := context.Background()
	app, err := cli.open(ctx)
	if err != nil {
		return cliErr(err)
	}
	defer app.Close()

	skills := app.Skills.ListAll()
	if cli.JSON {
		return printJSON(skills)
	}
	for _, s := range skills {
		kind := "custom"
		if s.Core {
			kind = "core"
		}
		fmt.Printf("%-20s [%s]  %s\n", s.ID, kind, s.Description)
	}
	return nil
}

type SkillsShowCmd struct {
	ID string `arg:"" help:"Skill id."`
}

func (c *SkillsShowCmd) Run(cli *CLI) error {
	ctx := context.Background()
	app, err := cli.open(ctx)
	if err != nil {
		return cliErr(err)
	}
	defer app.Close()

	skill, ok := app.Skills.FindByID(c.ID)
	if !ok {
		return cliErr(apperr.New(apperr.NotFound, "skills.show", "skill not found: "+c.ID))
	}
	if cli.JSON {
		return printJSON(skill)
	}
	fmt.Printf("ID:          %s\n", skill.ID)
	fmt.Printf("Name:        %s\n", skill.Name)
	fmt.Printf("Core:        %v\n", skill.Core)
	fmt.Printf("Enabled:     %v\n", skill.Enabled)
	fmt.Printf("Tags:        %v\n", skill.Tags)
	return nil
}

type SkillsSearchCmd struct {
	Query       string `arg:"" help:"Search query."`
	EnabledOnly bool   `name:"enabled-only" help:"Only match enabled skills."`
}

func (c *SkillsSearchCmd) Run(cli *CLI) error {
	ctx := context.Background()
	app, err := cli.open(ctx)
	if err != nil {
		return cliErr(err)
	}
	defer app.Close()

	matches := app.Skills.Search(c.Query, c.EnabledOnly, nil)
	if cli.JSON {
		return printJSON(matches)
	}
	for _, m := range matches {
		fmt.Printf("%-20s score=%-3d %s\n", m.ID, m.Score, m.Why)
	}
	return nil
}

type SkillsEnableCmd struct {
	ID string `arg:"" help:"Skill id."`
}

func (c *SkillsEnableCmd) Run(cli *CLI) error {
	ctx := context.Background()
	app, err := cli.open(ctx)
	if err != nil {
		return cliErr(err)
	}
	defer app.Close()
	if err := app.Skills.Enable(c.ID); err != nil {
		return cliErr(err)
	}
	fmt.Printf("enabled %s\n", c.ID)
	return nil
}

type SkillsDisableCmd struct {
	ID string `arg:"" help:"Skill id."`
}

func (c *SkillsDisableCmd) Run(cli *CLI) error {
	ctx := context.Background()
	app, err := cli.open(ctx)
	if err != nil {
		return cliErr(err)
	}
	defer app.Close()
	if err := app.Skills.Disable(c.ID); err != nil {
		return cliErr(err)
	}
	fmt.Printf("disabled %s\n", c.ID)
	return nil
}

// ToolsCmd groups the tool registry verbs.
type ToolsCmd struct {
	List      ToolsListCmd      `cmd:"" help:"List tools."`
	Show      ToolsShowCmd      `cmd:"" help:"Show a single tool."`
	Search    ToolsSearchCmd    `cmd:"" help:"Search tools by name, description, and tags."`
	Enable    ToolsEnableCmd    `cmd:"" help:"Enable a tool."`
	Disable   ToolsDisableCmd   `cmd:"" help:"Disable a tool."`
	Available ToolsAvailableCmd `cmd:"" help:"Probe whether a tool is currently available."`
}

type ToolsListCmd struct{}

func (c *ToolsListCmd) Run(cli *CLI) error {
	ctx := context.Background()
	app, err := cli.open(ctx)
	if err != nil {
		return cliErr(err)
	}
	defer app.Close()

	tools := app.Tools.ListAll()
	if cli.JSON {
		return printJSON(tools)
	}
	for _, t := range tools {
		fmt.Printf("%-20s [%s]  %s\n", t.ID, t.Kind, t.Description)
	}
	return nil
}

type ToolsShowCmd struct {
	ID string `arg:"" help:"Tool id."`
}

func (c *ToolsShowCmd) Run(cli *CLI) error {
	ctx := context.Background()
	app, err := cli.open(ctx)
	if err != nil {
		return cliErr(err)
	}
	defer app.Close()

	tool, ok := app.Tools.FindByID(c.ID)
	if !ok {
		return cliErr(apperr.New(apperr.NotFound, "tools.show", "tool not found: "+c.ID))
	}
	if cli.JSON {
		return printJSON(tool)
	}
	fmt.Printf("ID:          %s\n", tool.ID)
	fmt.Printf("Name:        %s\n", tool.Name)
	fmt.Printf("Kind:        %s\n", tool.Kind)
	fmt.Printf("Enabled:     %v\n", tool.Enabled)
	return nil
}

type ToolsSearchCmd struct {
	Query       string `arg:"" help:"Search query."`
	EnabledOnly bool   `name:"enabled-only" help:"Only match enabled tools."`
}

func (c *ToolsSearchCmd) Run(cli *CLI) error {
	ctx := context.Background()
	app, err := cli.open(ctx)
	if err != nil {
		return cliErr(err)
	}
	defer app.Close()

	matches := app.Tools.Search(c.Query, c.EnabledOnly, nil)
	if cli.JSON {
		return printJSON(matches)
	}
	for _, m := range matches {
		fmt.Printf("%-20s score=%-3d %s\n", m.ID, m.Score, m.Why)
	}
	return nil
}

type ToolsEnableCmd struct {
	ID string `arg:"" help:"Tool id."`
}

func (c *ToolsEnableCmd) Run(cli *CLI) error {
	ctx := context.Background()
	app, err := cli.open(ctx)
	if err != nil {
		return cliErr(err)
	}
	defer app.Close()
	if err := app.Tools.Enable(c.ID); err != nil {
		return cliErr(err)
	}
	fmt.Printf("enabled %s\n", c.ID)
	return nil
}

type ToolsDisableCmd struct {
	ID string `arg:"" help:"Tool id."`
}

func (c *ToolsDisableCmd) Run(cli *CLI) error {
	ctx := context.Background()
	app, err := cli.open(ctx)
	if err != nil {
		return cliErr(err)
	}
	defer app.Close()
	if err := app.Tools.Disable(c.ID); err != nil {
		return cliErr(err)
	}
	fmt.Printf("disabled %s\n", c.ID)
	return nil
}

type ToolsAvailableCmd struct {
	ID string `arg:"" help:"Tool id."`
}

func (c *ToolsAvailableCmd) Run(cli *CLI) error {
	ctx := context.Background()
	app, err := cli.open(ctx)
	if err != nil {
		return cliErr(err)
	}
	defer app.Close()

	available, err := app.Tools.IsAvailable(ctx, c.ID)
	if err != nil {
		return cliErr(err)
	}
	if cli.JSON {
		return printJSON(map[string]bool{"available": available})
	}
	fmt.Println(available)
	return nil
}
