// Package domain contains core concepts of the chat system.
// This file defines Message entities and related rules.
// Messages are immutable once persisted and carry no runtime state.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Kind selects the addressing mode of a message.
type Kind string

const (
	KindDirect  Kind = "DIRECT"
	KindChannel Kind = "CHANNEL"
)

// Message represents an immutable chat message.
// Exactly one of RecipientID or ChannelID is set, consistent with Kind.
type Message struct {
	ID          uuid.UUID `json:"id"`
	Kind        Kind      `json:"kind"`
	SenderID    string    `json:"sender_id"`
	RecipientID string    `json:"recipient_id,omitempty"`
	ChannelID   string    `json:"channel_id,omitempty"`
	Body        string    `json:"body"`
	Attachment  string    `json:"attachment,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Target returns the addressing target regardless of kind.
func (m Message) Target() string {
	if m.Kind == KindChannel {
		return m.ChannelID
	}
	return m.RecipientID
}

// Contact is one entry of a user's direct-thread list: a counterpart
// and the moment of the last message exchanged with them.
type Contact struct {
	UserID       string    `json:"user_id"`
	LastActivity time.Time `json:"last_activity"`
}

// DeliveryReceipt names the persisted message and the subset of recipients
// that were live-pushed. The store remains the source of truth; the receipt
// exists for acknowledgments and observability.
type DeliveryReceipt struct {
	MessageID uuid.UUID `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Delivered []string  `json:"delivered"`
}
