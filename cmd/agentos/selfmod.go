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
	"os"

	"github.com/google/uuid"

	"github.com/dmmproject/agentos/internal/domain"
)

// SelfModCmd groups the self-modification proposal verbs (spec.md §4.5.3).
// Submit/Approve/Reject/Apply/Revert all run through internal/selfmod's
// Manager, which agentosstore persists on every lifecycle transition;
// because the Manager's table is in-process only, every verb but Submit
// first Loads the proposal back from agentosstore so a fresh CLI process
// can act on one it didn't submit itself.
type SelfModCmd struct {
	Submit  SelfModSubmitCmd  `cmd:"" help:"Submit a code change proposal for review."`
	List    SelfModListCmd    `cmd:"" help:"List proposals, optionally filtered by status."`
	Show    SelfModShowCmd    `cmd:"" help:"Show a single proposal."`
	Approve SelfModApproveCmd `cmd:"" help:"Record an approving review."`
	Reject  SelfModRejectCmd  `cmd:"" help:"Reject a proposal."`
	Apply   SelfModApplyCmd   `cmd:"" help:"Apply an approved proposal's changes to disk."`
	Revert  SelfModRevertCmd  `cmd:"" help:"Revert a previously applied proposal."`
}

type SelfModSubmitCmd struct {
	Title         string `arg:"" help:"Short proposal title."`
	File          string `arg:"" help:"File path the change targets, relative to the working directory."`
	ModifiedPath  string `arg:"" name:"modified-file" help:"Path to a file on disk holding the proposed new content."`
	Author        string `help:"Proposing agent id." default:"cli"`
	Description   string `help:"Longer description of the change."`
	TestsAttached bool   `name:"tests-attached" help:"Whether tests were attached, for auto-approval eligibility."`
}

func (c *SelfModSubmitCmd) Run(cli *CLI) error {
	ctx := context.Background()
	app, err := cli.open(ctx)
	if err != nil {
		return cliErr(err)
	}
	defer app.Close()

	modified, err := os.ReadFile(c.ModifiedPath)
	if err != nil {
		return cliErr(err)
	}
	original, _ := os.ReadFile(c.File)

	p := &domain.ModificationProposal{
		ID:          uuid.NewString(),
		Title:       c.Title,
		Description: c.Description,
		Author:      c.Author,
		Changes: []domain.CodeChange{{
			FilePath:     c.File,
			OriginalCode: string(original),
			ModifiedCode: string(modified),
			ChangeType:   domain.ChangeModify,
		}},
	}
	if err := app.SelfMod.Submit(p, c.TestsAttached); err != nil {
		return cliErr(err)
	}
	if cli.JSON {
		return printJSON(p)
	}
	fmt.Printf("%s  status=%s  risk=%s\n", p.ID, p.Status, p.Risk)
	return nil
}

type SelfModListCmd struct {
	Status string `help:"Filter by status (draft, pending_review, in_review, approved, rejected, applied, failed_apply, reverted)."`
}

func (c *SelfModListCmd) Run(cli *CLI) error {
	ctx := context.Background()
	app, err := cli.open(ctx)
	if err != nil {
		return cliErr(err)
	}
	defer app.Close()

	proposals, err := app.AgentOS.ListModifications(ctx, domain.ModificationStatus(c.Status))
	if err != nil {
		return cliErr(err)
	}
	if cli.JSON {
		return printJSON(proposals)
	}
	for _, p := range proposals {
		fmt.Printf("%s  [%s/%s]  %s\n", p.ID, p.Risk, p.Status, p.Title)
	}
	return nil
}

type SelfModShowCmd struct {
	ID string `arg:"" help:"Proposal id."`
}

func (c *SelfModShowCmd) Run(cli *CLI) error {
	ctx := context.Background()
	app, err := cli.open(ctx)
	if err != nil {
		return cliErr(err)
	}
	defer app.Close()

	p, err := app.AgentOS.GetModification(ctx, c.ID)
	if err != nil {
		return cliErr(err)
	}
	if cli.JSON {
		return printJSON(p)
	}
	fmt.Printf("ID:          %s\n", p.ID)
	fmt.Printf("Title:       %s\n", p.Title)
	fmt.Printf("Status:      %s\n", p.Status)
	fmt.Printf("Risk:        %s\n", p.Risk)
	fmt.Printf("Approvals:   %d/%d\n", p.ApprovalsCount(), p.RequiredApprovals)
	for _, ch := range p.Changes {
		fmt.Printf("  %s  %s\n", ch.ChangeType, ch.FilePath)
	}
	return nil
}

// loadModification fetches a persisted proposal and seeds the process-local
// Manager with it, since the Manager only knows about proposals Submit-ed
// within the current process.
func loadModification(ctx context.Context, app *App, id string) (*domain.ModificationProposal, error) {
	p, err := app.AgentOS.GetModification(ctx, id)
	if err != nil {
		return nil, err
	}
	app.SelfMod.Load(p)
	return p, nil
}

type SelfModApproveCmd struct {
	ID       string `arg:"" help:"Proposal id."`
	Reviewer string `help:"Reviewer identity." default:"cli"`
	Comment  string `help:"Review comment."`
}

func (c *SelfModApproveCmd) Run(cli *CLI) error {
	ctx := context.Background()
	app, err := cli.open(ctx)
	if err != nil {
		return cliErr(err)
	}
	defer app.Close()

	if _, err := loadModification(ctx, app, c.ID); err != nil {
		return cliErr(err)
	}
	if err := app.SelfMod.Review(c.ID, domain.ReviewResult{Reviewer: c.Reviewer, Approved: true, Comment: c.Comment}); err != nil {
		return cliErr(err)
	}
	p, err := app.SelfMod.Get(c.ID)
	if err != nil {
		return cliErr(err)
	}
	if cli.JSON {
		return printJSON(p)
	}
	fmt.Printf("%s  status=%s\n", p.ID, p.Status)
	return nil
}

type SelfModRejectCmd struct {
	ID     string `arg:"" help:"Proposal id."`
	Reason string `help:"Reason recorded on the proposal."`
}

func (c *SelfModRejectCmd) Run(cli *CLI) error {
	ctx := context.Background()
	app, err := cli.open(ctx)
	if err != nil {
		return cliErr(err)
	}
	defer app.Close()

	if _, err := loadModification(ctx, app, c.ID); err != nil {
		return cliErr(err)
	}
	if err := app.SelfMod.Reject(c.ID, c.Reason); err != nil {
		return cliErr(err)
	}
	if cli.JSON {
		return printJSON(map[string]string{"status": "rejected"})
	}
	fmt.Printf("rejected %s\n", c.ID)
	return nil
}

type SelfModApplyCmd struct {
	ID string `arg:"" help:"Proposal id."`
}

func (c *SelfModApplyCmd) Run(cli *CLI) error {
	ctx := context.Background()
	app, err := cli.open(ctx)
	if err != nil {
		return cliErr(err)
	}
	defer app.Close()

	if _, err := loadModification(ctx, app, c.ID); err != nil {
		return cliErr(err)
	}
	if err := app.SelfMod.Apply(ctx, c.ID); err != nil {
		return cliErr(err)
	}
	if cli.JSON {
		return printJSON(map[string]string{"status": "applied"})
	}
	fmt.Printf("applied %s\n", c.ID)
	return nil
}

type SelfModRevertCmd struct {
	ID string `arg:"" help:"Proposal id."`
}

func (c *SelfModRevertCmd) Run(cli *CLI) error {
	ctx := context.Background()
	app, err := cli.open(ctx)
	if err != nil {
		return cliErr(err)
	}
	defer app.Close()

	if _, err := loadModification(ctx, app, c.ID); err != nil {
		return cliErr(err)
	}
	if err := app.SelfMod.Revert(c.ID); err != nil {
		return cliErr(err)
	}
	if cli.JSON {
		return printJSON(map[string]string{"status": "reverted"})
	}
	fmt.Printf("reverted %s\n", c.ID)
	return nil
}
