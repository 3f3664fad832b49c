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

// ProposalsCmd groups the write-back review queue verbs for memory
// write-back proposals (spec.md §4.4). Self-modification proposals go
// through selfmod.Manager and have their own verb group, SelfModCmd.
type ProposalsCmd struct {
	List    ProposalsListCmd    `cmd:"" help:"List proposals, optionally filtered by status."`
	Show    ProposalsShowCmd    `cmd:"" help:"Show a single proposal."`
	Approve ProposalsApproveCmd `cmd:"" help:"Approve a pending proposal for commit."`
	Reject  ProposalsRejectCmd  `cmd:"" help:"Reject a pending proposal."`
	Commit  ProposalsCommitCmd  `cmd:"" help:"Commit an approved proposal to disk and reconcile the graph."`
	Stats   ProposalsStatsCmd   `cmd:"" help:"Show proposal counts by status."`
	History ProposalsHistoryCmd `cmd:"" help:"Show the review log for a proposal."`
}

type ProposalsListCmd struct {
	Status string `help:"Filter by status (pending, in_review, approved, committed, rejected, modified, deferred, failed)." default:"pending"`
}

func (c *ProposalsListCmd) Run(cli *CLI) error {
	ctx := context.Background()
	app, err := cli.open(ctx)
	if err != nil {
		return cliErr(err)
	}
	defer app.Close()

	proposals, err := app.Writeback.GetByStatus(ctx, domain.WriteProposalStatus(c.Status), 0)
	if err != nil {
		return cliErr(err)
	}
	if cli.JSON {
		return printJSON(proposals)
	}
	for _, p := range proposals {
		fmt.Printf("%s  [%s/%s]  %s  %s\n", p.ID, p.Type, p.Status, p.TargetPath, p.Reason)
	}
	return nil
}

type ProposalsShowCmd struct {
	ID string `arg:"" help:"Proposal id."`
}

func (c *ProposalsShowCmd) Run(cli *CLI) error {
	ctx := context.Background()
	app, err := cli.open(ctx)
	if err != nil {
		return cliErr(err)
	}
	defer app.Close()

	p, err := app.Writeback.Get(ctx, c.ID)
	if err != nil {
		return cliErr(err)
	}
	if cli.JSON {
		return printJSON(p)
	}
	fmt.Printf("ID:       %s\n", p.ID)
	fmt.Printf("Type:     %s\n", p.Type)
	fmt.Printf("Status:   %s\n", p.Status)
	fmt.Printf("Path:     %s\n", p.TargetPath)
	fmt.Printf("Reason:   %s\n", p.Reason)
	fmt.Printf("Retries:  %d\n", p.RetryCount)
	if p.CommitError != "" {
		fmt.Printf("Error:    %s\n", p.CommitError)
	}
	if p.ReviewNotes != "" {
		fmt.Printf("Notes:    %s\n", p.ReviewNotes)
	}
	return nil
}

type ProposalsApproveCmd struct {
	ID    string `arg:"" help:"Proposal id."`
	Notes string `help:"Review notes."`
}

func (c *ProposalsApproveCmd) Run(cli *CLI) error {
	ctx := context.Background()
	app, err := cli.open(ctx)
	if err != nil {
		return cliErr(err)
	}
	defer app.Close()

	if err := app.Reviewer.Approve(ctx, c.ID, c.Notes); err != nil {
		return cliErr(err)
	}
	if cli.JSON {
		return printJSON(map[string]string{"status": "approved"})
	}
	fmt.Printf("approved %s\n", c.ID)
	return nil
}

type ProposalsRejectCmd struct {
	ID     string `arg:"" help:"Proposal id."`
	Reason string `help:"Reason recorded on the proposal."`
}

func (c *ProposalsRejectCmd) Run(cli *CLI) error {
	ctx := context.Background()
	app, err := cli.open(ctx)
	if err != nil {
		return cliErr(err)
	}
	defer app.Close()

	if err := app.Reviewer.Reject(ctx, c.ID, c.Reason); err != nil {
		return cliErr(err)
	}
	if cli.JSON {
		return printJSON(map[string]string{"status": "rejected"})
	}
	fmt.Printf("rejected %s\n", c.ID)
	return nil
}

type ProposalsCommitCmd struct {
	ID string `arg:"" help:"Proposal id."`
}

func (c *ProposalsCommitCmd) Run(cli *CLI) error {
	ctx := context.Background()
	app, err := cli.open(ctx)
	if err != nil {
		return cliErr(err)
	}
	defer app.Close()

	if err := app.Committer.Commit(ctx, c.ID); err != nil {
		return cliErr(err)
	}
	p, err := app.Writeback.Get(ctx, c.ID)
	if err != nil {
		return cliErr(err)
	}
	if cli.JSON {
		return printJSON(p)
	}
	fmt.Printf("%s  status=%s\n", p.ID, p.Status)
	if p.CommitError != "" {
		fmt.Printf("error:    %s\n", p.CommitError)
	}
	return nil
}

type ProposalsStatsCmd struct{}

func (c *ProposalsStatsCmd) Run(cli *CLI) error {
	ctx := context.Background()
	app, err := cli.open(ctx)
	if err != nil {
		return cliErr(err)
	}
	defer app.Close()

	stats, err := app.Writeback.GetStats(ctx)
	if err != nil {
		return cliErr(err)
	}
	if cli.JSON {
		return printJSON(stats)
	}
	fmt.Printf("total: %d\n", stats.Total)
	for status, n := range stats.ByStatus {
		fmt.Printf("  %-12s %d\n", status, n)
	}
	return nil
}

type ProposalsHistoryCmd struct {
	ID string `arg:"" help:"Proposal id."`
}

func (c *ProposalsHistoryCmd) Run(cli *CLI) error {
	ctx := context.Background()
	app, err := cli.open(ctx)
	if err != nil {
		return cliErr(err)
	}
	defer app.Close()

	history, err := app.Writeback.GetHistory(ctx, c.ID)
	if err != nil {
		return cliErr(err)
	}
	if cli.JSON {
		return printJSON(history)
	}
	for _, e := range history {
		fmt.Printf("%s  %s -> %s  %s\n", e.CreatedAt.Format("2006-01-02T15:04:05Z07:00"), e.FromStatus, e.ToStatus, e.Notes)
	}
	return nil
}
