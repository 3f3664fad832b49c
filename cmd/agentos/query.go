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
	"github.com/dmmproject/agentos/internal/retrieval"
)

// QueryCmd runs a query through the hybrid retrieval pipeline: baseline
// injection, vector search, graph expansion, scoring, and context assembly
// (spec.md §4.2), the same path an agent's runtime loop drives on every
// turn.
type QueryCmd struct {
	Text             string   `arg:"" help:"Query text."`
	Limit            int      `help:"Maximum results." default:"10"`
	Scope            []string `name:"scope" help:"Restrict to these scopes, may repeat."`
	MinPriority      float64  `name:"min-priority" help:"Drop results below this priority."`
	MaxTokenCount    int      `name:"max-tokens" help:"Token budget for the assembled context."`
	ExcludeEphemeral bool     `name:"exclude-ephemeral" help:"Drop ephemeral-scope memories."`
	Format           string   `help:"Output format (markdown, json, text)." default:"markdown"`
}

func (c *QueryCmd) Run(cli *CLI) error {
	ctx := context.Background()
	app, err := cli.open(ctx)
	if err != nil {
		return cliErr(err)
	}
	defer app.Close()

	var scopes []domain.Scope
	for _, s := range c.Scope {
		scopes = append(scopes, domain.Scope(s))
	}

	result, err := app.Retrieval.Retrieve(ctx, c.Text, retrieval.Options{
		Limit:            c.Limit,
		Scopes:           scopes,
		MinPriority:      c.MinPriority,
		MaxTokenCount:    c.MaxTokenCount,
		ExcludeEphemeral: c.ExcludeEphemeral,
		Format:           c.Format,
	})
	if err != nil {
		return cliErr(err)
	}
	if cli.JSON {
		return printJSON(result)
	}
	fmt.Println(result.Body)
	for _, w := range result.Warnings {
		fmt.Printf("warning: %s\n", w)
	}
	return nil
}
