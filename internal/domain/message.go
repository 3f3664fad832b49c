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

package domain

import "time"

// MessageType is the inter-agent communication kind (spec.md §3).
type MessageType string

const (
	MessageRequest   MessageType = "request"
	MessageInform    MessageType = "inform"
	MessageBroadcast MessageType = "broadcast"
	MessageResponse  MessageType = "response"
)

// DeliveryStatus tracks a Message's progress through the bus.
type DeliveryStatus string

const (
	DeliveryQueued       DeliveryStatus = "queued"
	DeliveryDelivered    DeliveryStatus = "delivered"
	DeliveryRead         DeliveryStatus = "read"
	DeliveryDeadLettered DeliveryStatus = "dead-lettered"
)

// Message is an inter-agent communication record (spec.md §3, §4.5.1).
type Message struct {
	ID            string
	SessionID     string
	Sender        string
	Recipient     string   // single-recipient case
	Recipients    []string // explicit broadcast fan-out list
	Type          MessageType
	Priority      TaskPriority
	Payload       map[string]any
	CorrelationID string
	Tags          []string

	Status DeliveryStatus

	QueuedAt    time.Time
	DeliveredAt *time.Time
	ReadAt      *time.Time
}

// Validate checks the fields Validate() can check without consulting the
// bus's registered-agent set.
func (m *Message) Validate() error {
	if m.ID == "" {
		return errRequired("id")
	}
	if m.Sender == "" {
		return errRequired("sender")
	}
	if m.Recipient == "" && len(m.Recipients) == 0 && m.Type != MessageBroadcast {
		return errRequired("recipient")
	}
	return nil
}
