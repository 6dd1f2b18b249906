// Package ws is the websocket transport: one authenticated persistent
// connection per user, JSON events both ways.
package ws

import (
	"encoding/json"
	"fmt"
	"time"

	"chat-relay/domain"
	"chat-relay/domain/event"
)

// inboundEvent is every frame a client may send. Only send-message exists
// today; the type field keeps the envelope open.
type inboundEvent struct {
	Type       string `json:"type"`
	Kind       string `json:"kind,omitempty"`
	Target     string `json:"target,omitempty"`
	Body       string `json:"body,omitempty"`
	Attachment string `json:"attachment,omitempty"`
}

const eventSendMessage = "send-message"

func (e inboundEvent) toCommand() domain.SendCommand {
	return domain.SendCommand{
		Kind:       domain.Kind(e.Kind),
		Target:     e.Target,
		Body:       e.Body,
		Attachment: e.Attachment,
	}
}

type ackPayload struct {
	Type      string    `json:"type"`
	MessageID string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Delivered []string  `json:"delivered"`
}

type errorPayload struct {
	Type    string `json:"type"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

type messagePayload struct {
	Type string `json:"type"`
	domain.Message
}

type presencePayload struct {
	Type   string    `json:"type"`
	UserID string    `json:"user_id"`
	Online bool      `json:"online"`
	At     time.Time `json:"at"`
}

// encodeEvent turns a domain event into the JSON frame the client sees.
// Internal-only events have no wire form and return false.
func encodeEvent(evt event.DomainEvent) ([]byte, bool, error) {
	var payload any
	switch e := evt.(type) {
	case event.MessageReceived:
		payload = messagePayload{Type: e.EventType(), Message: e.Message}
	case event.Ack:
		delivered := e.Delivered
		if delivered == nil {
			delivered = []string{}
		}
		payload = ackPayload{
			Type:      e.EventType(),
			MessageID: e.MessageID.String(),
			CreatedAt: e.CreatedAt,
			Delivered: delivered,
		}
	case event.Problem:
		payload = errorPayload{Type: e.EventType(), Kind: e.Kind, Message: e.Reason}
	case event.PresenceChanged:
		payload = presencePayload{Type: e.EventType(), UserID: e.UserID, Online: e.Online, At: e.At}
	default:
		return nil, false, nil
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, false, fmt.Errorf("encoding %s event: %w", evt.EventType(), err)
	}
	return data, true, nil
}
