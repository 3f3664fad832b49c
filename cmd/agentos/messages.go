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
	"time"

	"github.com/google/uuid"

	"github.com/dmmproject/agentos/internal/agentosstore"
	"github.com/dmmproject/agentos/internal/domain"
)

// MessagesCmd groups the inter-agent message bus verbs (spec.md §4.5.1).
// Send exercises the live, in-process Bus; List reads the durable
// record internal/agentosstore persists on every delivery, which is what
// survives across CLI invocations (the Bus itself is rebuilt fresh per
// process, the same as the agent/skill/tool registries).
type MessagesCmd struct {
	Send  MessagesSendCmd  `cmd:"" help:"Send a message through the bus."`
	List  MessagesListCmd  `cmd:"" help:"List delivered messages, optionally filtered."`
	Stats MessagesStatsCmd `cmd:"" help:"Show the bus's current mailbox occupancy and counters."`
}

type MessagesSendCmd struct {
	Sender    string   `arg:"" help:"Sending agent id."`
	Recipient string   `arg:"" help:"Recipient agent id (ignored for broadcast)."`
	Body      string   `arg:"" help:"Message body, stored under payload.text."`
	Type      string   `help:"Message type (request, inform, broadcast, response)." default:"inform"`
	Priority  string   `help:"Priority (low, normal, high, critical)." default:"normal"`
	Tags      []string `name:"tag" help:"Topic tags, may repeat."`
}

func (c *MessagesSendCmd) Run(cli *CLI) error {
	ctx := context.Background()
	app, err := cli.open(ctx)
	if err != nil {
		return cliErr(err)
	}
	defer app.Close()

	app.Bus.RegisterAgent(c.Sender)
	m := &domain.Message{
		ID:       uuid.NewString(),
		Sender:   c.Sender,
		Type:     domain.MessageType(c.Type),
		Priority: domain.TaskPriority(c.Priority),
		Payload:  map[string]any{"text": c.Body},
		Tags:     c.Tags,
		QueuedAt: time.Now().UTC(),
	}
	if domain.MessageType(c.Type) != domain.MessageBroadcast {
		m.Recipient = c.Recipient
		app.Bus.RegisterAgent(c.Recipient)
	}

	if err := app.Bus.Send(m); err != nil {
		return cliErr(err)
	}
	if cli.JSON {
		return printJSON(m)
	}
	fmt.Printf("sent %s -> %s  [%s/%s]\n", m.ID, c.Recipient, m.Type, m.Status)
	return nil
}

type MessagesListCmd struct {
	Sender        string `help:"Filter by sender."`
	Recipient     string `help:"Filter by recipient."`
	CorrelationID string `name:"correlation-id" help:"Filter by correlation id."`
}

func (c *MessagesListCmd) Run(cli *CLI) error {
	ctx := context.Background()
	app, err := cli.open(ctx)
	if err != nil {
		return cliErr(err)
	}
	defer app.Close()

	msgs, err := app.AgentOS.GetMessages(ctx, agentosstore.MessageFilter{
		Sender: c.Sender, Recipient: c.Recipient, CorrelationID: c.CorrelationID,
	})
	if err != nil {
		return cliErr(err)
	}
	if cli.JSON {
		return printJSON(msgs)
	}
	for _, m := range msgs {
		fmt.Printf("%s  %s -> %s  [%s/%s]  %v\n", m.ID, m.Sender, m.Recipient, m.Type, m.Status, m.Payload)
	}
	return nil
}

type MessagesStatsCmd struct{}

func (c *MessagesStatsCmd) Run(cli *CLI) error {
	ctx := context.Background()
	app, err := cli.open(ctx)
	if err != nil {
		return cliErr(err)
	}
	defer app.Close()

	stats := app.Bus.GetStats()
	if cli.JSON {
		return printJSON(stats)
	}
	fmt.Printf("registered agents: %d\n", stats.RegisteredAgents)
	fmt.Printf("dead letters:      %d\n", stats.DeadLetterCount)
	fmt.Printf("sent/delivered/read: %d/%d/%d\n", stats.TotalSent, stats.TotalDelivered, stats.TotalRead)
	return nil
}
