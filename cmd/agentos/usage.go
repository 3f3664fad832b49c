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
)

// UsageCmd groups the usage-tracking verbs (spec.md §2: which memories,
// tags and tools are actually exercised, feeding the conflict engine's
// staleness checks).
type UsageCmd struct {
	Health  UsageHealthCmd  `cmd:"" help:"Show a usage health report."`
	Enable  UsageEnableCmd  `cmd:"" help:"Enable usage tracking."`
	Disable UsageDisableCmd `cmd:"" help:"Disable usage tracking."`
}

type UsageHealthCmd struct {
	TopN int `name:"top" help:"How many top refs to show." default:"10"`
}

func (c *UsageHealthCmd) Run(cli *CLI) error {
	ctx := context.Background()
	app, err := cli.open(ctx)
	if err != nil {
		return cliErr(err)
	}
	defer app.Close()

	report, err := app.Usage.GetHealthReport(ctx, c.TopN)
	if err != nil {
		return cliErr(err)
	}
	if cli.JSON {
		return printJSON(report)
	}
	fmt.Printf("tracking enabled: %v\n", report.TrackingEnabled)
	fmt.Printf("total events:     %d\n", report.TotalEvents)
	for component, n := range report.EventsByComponent {
		fmt.Printf("  %-10s %d\n", component, n)
	}
	fmt.Println("top refs:")
	for _, r := range report.TopRefs {
		fmt.Printf("  %-10s %-20s %d\n", r.Component, r.RefID, r.Count)
	}
	return nil
}

type UsageEnableCmd struct{}

func (c *UsageEnableCmd) Run(cli *CLI) error {
	ctx := context.Background()
	app, err := cli.open(ctx)
	if err != nil {
		return cliErr(err)
	}
	defer app.Close()
	if err := app.Usage.SetEnabled(ctx, true); err != nil {
		return cliErr(err)
	}
	fmt.Println("usage tracking enabled")
	return nil
}

type UsageDisableCmd struct{}

func (c *UsageDisableCmd) Run(cli *CLI) error {
	ctx := context.Background()
	app, err := cli.open(ctx)
	if err != nil {
		return cliErr(err)
	}
	defer app.Close()
	if err := app.Usage.SetEnabled(ctx, false); err != nil {
		return cliErr(err)
	}
	fmt.Println("usage tracking disabled")
	return nil
}
