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
	"github.com/dmmproject/agentos/internal/domain"
)

// ConflictsCmd groups the conflict-detection and resolution verbs.
type ConflictsCmd struct {
	Scan     ConflictsScanCmd     `cmd:"" help:"Scan for new conflicts, optionally scoped to one memory."`
	List     ConflictsListCmd     `cmd:"" help:"List conflicts, optionally filtered by status."`
	Show     ConflictsShowCmd     `cmd:"" help:"Show a single conflict."`
	Resolve  ConflictsResolveCmd  `cmd:"" help:"Resolve a conflict (deprecate, merge, clarify, dismiss, defer)."`
	Dismiss  ConflictsDismissCmd  `cmd:"" help:"Dismiss a conflict as not actually in conflict."`
	Flag     ConflictsFlagCmd     `cmd:"" help:"Defer a conflict for a human reviewer."`
	Check    ConflictsCheckCmd    `cmd:"" help:"Check an existing memory against the corpus for conflicts, without creating a Conflict record."`
	Stats    ConflictsStatsCmd    `cmd:"" help:"Show conflict counts by status."`
	History  ConflictsHistoryCmd  `cmd:"" help:"Show the resolution log for a conflict."`
}

type ConflictsScanCmd struct {
	Memory string `help:"Scope the scan to a single memory id; omitted scans the whole corpus."`
}

func (c *ConflictsScanCmd) Run(cli *CLI) error {
	ctx := context.Background()
	app, err := cli.open(ctx)
	if err != nil {
		return cliErr(err)
	}
	defer app.Close()

	scan, err := app.Detector.Scan(ctx, c.Memory)
	if err != nil {
		return cliErr(err)
	}
	if cli.JSON {
		return printJSON(scan)
	}
	fmt.Printf("scan %s: %d candidate(s), %d new, %d updated\n", scan.ID, scan.CandidateCount, scan.NewConflicts, scan.ExistingUpdated)
	return nil
}

type ConflictsListCmd struct {
	Status string `help:"Filter by status (unresolved, in_progress, resolved, dismissed)." default:"unresolved"`
}

func (c *ConflictsListCmd) Run(cli *CLI) error {
	ctx := context.Background()
	app, err := cli.open(ctx)
	if err != nil {
		return cliErr(err)
	}
	defer app.Close()

	conflicts, err := app.Conflicts.ListByStatus(ctx, domain.ConflictStatus(c.Status))
	if err != nil {
		return cliErr(err)
	}
	if cli.JSON {
		return printJSON(conflicts)
	}
	for _, co := range conflicts {
		fmt.Printf("%s  [%s/%s]  %s <-> %s  %s\n", co.ID, co.Classification, co.Status, co.M1ID, co.M2ID, co.Description)
	}
	return nil
}

type ConflictsShowCmd struct {
	ID string `arg:"" help:"Conflict id."`
}

func (c *ConflictsShowCmd) Run(cli *CLI) error {
	ctx := context.Background()
	app, err := cli.open(ctx)
	if err != nil {
		return cliErr(err)
	}
	defer app.Close()

	co, err := app.Conflicts.Get(ctx, c.ID)
	if err != nil {
		return cliErr(err)
	}
	if cli.JSON {
		return printJSON(co)
	}
	fmt.Printf("ID:             %s\n", co.ID)
	fmt.Printf("Classification: %s\n", co.Classification)
	fmt.Printf("Status:         %s\n", co.Status)
	fmt.Printf("Method:         %s\n", co.Method)
	fmt.Printf("Confidence:     %.2f\n", co.Confidence)
	fmt.Printf("Memories:       %s (%s) <-> %s (%s)\n", co.M1ID, co.M1Role, co.M2ID, co.M2Role)
	fmt.Printf("Description:    %s\n", co.Description)
	for _, e := range co.Evidence {
		fmt.Printf("  evidence: %s\n", e)
	}
	return nil
}

type ConflictsResolveCmd struct {
	ID      string `arg:"" help:"Conflict id."`
	Action  string `required:"" help:"Resolution action: deprecate, merge, clarify, dismiss, defer."`
	Target  string `name:"target" help:"Target memory id (deprecate, clarify)."`
	Content string `help:"Merged content (merge)."`
	Reason  string `help:"Reason recorded in the resolution log."`
}

func (c *ConflictsResolveCmd) Run(cli *CLI) error {
	ctx := context.Background()
	app, err := cli.open(ctx)
	if err != nil {
		return cliErr(err)
	}
	defer app.Close()

	entry, err := app.Resolver.Resolve(ctx, domain.ResolutionRequest{
		ConflictID:     c.ID,
		Action:         domain.ResolutionAction(c.Action),
		TargetMemoryID: c.Target,
		MergedContent:  c.Content,
		Reason:         c.Reason,
		ResolvedBy:     "cli",
	})
	if err != nil {
		return cliErr(err)
	}
	if cli.JSON {
		return printJSON(entry)
	}
	fmt.Printf("resolved %s via %s\n", c.ID, c.Action)
	return nil
}

type ConflictsDismissCmd struct {
	ID     string `arg:"" help:"Conflict id."`
	Reason string `help:"Reason recorded in the resolution log."`
}

func (c *ConflictsDismissCmd) Run(cli *CLI) error {
	ctx := context.Background()
	app, err := cli.open(ctx)
	if err != nil {
		return cliErr(err)
	}
	defer app.Close()

	entry, err := app.Resolver.Resolve(ctx, domain.ResolutionRequest{
		ConflictID: c.ID,
		Action:     domain.ActionDismiss,
		Reason:     c.Reason,
		ResolvedBy: "cli",
	})
	if err != nil {
		return cliErr(err)
	}
	if cli.JSON {
		return printJSON(entry)
	}
	fmt.Printf("dismissed %s\n", c.ID)
	return nil
}

type ConflictsFlagCmd struct {
	ID     string `arg:"" help:"Conflict id."`
	Reason string `help:"Reason recorded in the resolution log."`
}

func (c *ConflictsFlagCmd) Run(cli *CLI) error {
	ctx := context.Background()
	app, err := cli.open(ctx)
	if err != nil {
		return cliErr(err)
	}
	defer app.Close()

	entry, err := app.Resolver.Resolve(ctx, domain.ResolutionRequest{
		ConflictID: c.ID,
		Action:     domain.ActionDefer,
		Reason:     c.Reason,
		ResolvedBy: "cli",
	})
	if err != nil {
		return cliErr(err)
	}
	if cli.JSON {
		return printJSON(entry)
	}
	fmt.Printf("deferred %s for human review\n", c.ID)
	return nil
}

type ConflictsCheckCmd struct {
	Memory string `arg:"" help:"Memory id to check against the rest of the corpus."`
}

func (c *ConflictsCheckCmd) Run(cli *CLI) error {
	ctx := context.Background()
	app, err := cli.open(ctx)
	if err != nil {
		return cliErr(err)
	}
	defer app.Close()

	draft, err := app.Memories.Get(ctx, c.Memory)
	if err != nil {
		return cliErr(err)
	}
	candidates, err := app.Detector.CheckProposal(ctx, draft)
	if err != nil {
		return cliErr(err)
	}
	if cli.JSON {
		return printJSON(candidates)
	}
	if len(candidates) == 0 {
		fmt.Println("no conflicts found")
		return nil
	}
	for _, cand := range candidates {
		fmt.Printf("%s <-> %s  [%s]  score=%.2f  %s\n", cand.M1ID, cand.M2ID, cand.Method, cand.RawScore, cand.Evidence)
	}
	return nil
}

type ConflictsStatsCmd struct{}

func (c *ConflictsStatsCmd) Run(cli *CLI) error {
	ctx := context.Background()
	app, err := cli.open(ctx)
	if err != nil {
		return cliErr(err)
	}
	defer app.Close()

	stats, err := app.Conflicts.GetStats(ctx)
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

type ConflictsHistoryCmd struct {
	ID string `arg:"" help:"Conflict id."`
}

func (c *ConflictsHistoryCmd) Run(cli *CLI) error {
	ctx := context.Background()
	app, err := cli.open(ctx)
	if err != nil {
		return cliErr(err)
	}
	defer app.Close()

	history, err := app.Conflicts.GetHistory(ctx, c.ID)
	if err != nil {
		return cliErr(err)
	}
	if len(history) == 0 {
		return cliErr(apperr.New(apperr.NotFound, "conflicts.history", "no resolution history for "+c.ID))
	}
	if cli.JSON {
		return printJSON(history)
	}
	for _, e := range history {
		fmt.Printf("%s  %s by %s  %s\n", e.CreatedAt.Format("2006-01-02T15:04:05Z07:00"), e.Action, e.Actor, e.Error)
	}
	return nil
}
