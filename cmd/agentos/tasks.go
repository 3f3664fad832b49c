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
)

// TasksCmd groups the task-tracker inspection verbs. Tasks are created and
// advanced by the agent runtime itself (spec.md §5.3); the CLI only reads.
type TasksCmd struct {
	List     TasksListCmd     `cmd:"" help:"List tasks, optionally filtered by status."`
	Show     TasksShowCmd     `cmd:"" help:"Show a single task."`
	Children TasksChildrenCmd `cmd:"" help:"List a task's subtasks."`
}

type TasksListCmd struct {
	Status string `help:"Filter by status; omitted lists every task."`
}

func (c *TasksListCmd) Run(cli *CLI) error {
	ctx := context.Background()
	app, err := cli.open(ctx)
	if err != nil {
		return cliErr(err)
	}
	defer app.Close()

	var tasks []*domain.Task
	if c.Status != "" {
		tasks, err = app.Tasks.ListByStatus(ctx, domain.TaskStatus(c.Status))
	} else {
		tasks, err = app.Tasks.List(ctx)
	}
	if err != nil {
		return cliErr(err)
	}
	if cli.JSON {
		return printJSON(tasks)
	}
	for _, t := range tasks {
		fmt.Printf("%-20s [%s/%s]  %.0f%%  %s\n", t.ID, t.Type, t.Status, t.Progress*100, t.Name)
	}
	return nil
}

type TasksShowCmd struct {
	ID string `arg:"" help:"Task id."`
}

func (c *TasksShowCmd) Run(cli *CLI) error {
	ctx := context.Background()
	app, err := cli.open(ctx)
	if err != nil {
		return cliErr(err)
	}
	defer app.Close()

	t, err := app.Tasks.Get(ctx, c.ID)
	if err != nil {
		return cliErr(err)
	}
	if cli.JSON {
		return printJSON(t)
	}
	fmt.Printf("ID:       %s\n", t.ID)
	fmt.Printf("Name:     %s\n", t.Name)
	fmt.Printf("Type:     %s\n", t.Type)
	fmt.Printf("Status:   %s\n", t.Status)
	fmt.Printf("Priority: %s\n", t.Priority)
	fmt.Printf("Progress: %.0f%%\n", t.Progress*100)
	if t.AssignedAgentID != "" {
		fmt.Printf("Agent:    %s\n", t.AssignedAgentID)
	}
	if t.ParentID != "" {
		fmt.Printf("Parent:   %s\n", t.ParentID)
	}
	return nil
}

type TasksChildrenCmd struct {
	ID string `arg:"" help:"Task id."`
}

func (c *TasksChildrenCmd) Run(cli *CLI) error {
	ctx := context.Background()
	app, err := cli.open(ctx)
	if err != nil {
		return cliErr(err)
	}
	defer app.Close()

	children, err := app.Tasks.GetChildren(ctx, c.ID)
	if err != nil {
		return cliErr(err)
	}
	if cli.JSON {
		return printJSON(children)
	}
	for _, t := range children {
		fmt.Printf("%-20s [%s/%s]  %.0f%%  %s\n", t.ID, t.Type, t.Status, t.Progress*100, t.Name)
	}
	return nil
}
