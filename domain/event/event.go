// Package event defines the domain events flowing through connection sinks
// and the internal delivery pipeline.
package event

import (
	"time"

	"github.com/google/uuid"

	"chat-relay/domain"
)

type DomainEvent interface {
	EventType() string
}

// MessageReceived is pushed to each live recipient of a persisted message.
type MessageReceived struct {
	Message domain.Message
}

func (MessageReceived) EventType() string { return "message-received" }

// MessageStored is emitted after a message is durably persisted.
// Consumed by side-effect workers (search indexing); never required
// for delivery correctness.
type MessageStored struct {
	Message domain.Message
}

func (MessageStored) EventType() string { return "message-stored" }

// PresenceChanged reports a user gaining or losing their live connection.
type PresenceChanged struct {
	UserID string
	Online bool
	At     time.Time
}

func (PresenceChanged) EventType() string { return "presence" }

// Ack acknowledges a successful send back to its author.
type Ack struct {
	MessageID uuid.UUID
	CreatedAt time.Time
	Delivered []string
}

func (Ack) EventType() string { return "ack" }

// Problem reports a failed send back to its author.
type Problem struct {
	Kind   string
	Reason string
}

func (Problem) EventType() string { return "error" }
