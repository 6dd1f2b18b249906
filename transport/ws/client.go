package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"chat-relay/domain/event"
	"chat-relay/errors"
	"chat-relay/runtime"
	"chat-relay/services"
	"chat-relay/sink"
)

const (
	// Time allowed to write a frame to the peer.
	writeWait = 10 * time.Second
	// Time allowed to read the next pong before the peer counts as gone.
	pongWait = 60 * time.Second
	// Ping interval; must be shorter than pongWait.
	pingPeriod = (pongWait * 9) / 10
)

// Client binds one websocket connection to its session, sink and identity.
// The read pump is the only goroutine reading the socket, the write pump the
// only one writing it; the sink sits in between.
type Client struct {
	log         *slog.Logger
	conn        *websocket.Conn
	session     *runtime.Session
	coordinator *runtime.Coordinator
	chat        *services.ChatService
	sink        *sink.ConnSink
	userID      string
	maxFrame    int64
}

// readPump decodes inbound events and runs them through the chat service.
// One send at a time per connection: per-sender ordering follows from this
// loop being the only place a user's sends originate.
func (c *Client) readPump(ctx context.Context) {
	defer c.teardown()

	c.conn.SetReadLimit(c.maxFrame)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Warn("Connection dropped", "user_id", c.userID, "error", err)
			}
			return
		}

		var evt inboundEvent
		if err := json.Unmarshal(data, &evt); err != nil {
			c.reply(ctx, event.Problem{Kind: errors.KindValidation, Reason: "malformed event"})
			continue
		}

		switch evt.Type {
		case eventSendMessage:
			c.handleSend(ctx, evt)
		default:
			c.reply(ctx, event.Problem{Kind: errors.KindValidation, Reason: "unknown event type"})
		}
	}
}

func (c *Client) handleSend(ctx context.Context, evt inboundEvent) {
	receipt, err := c.chat.Send(ctx, c.userID, evt.toCommand())
	if err != nil {
		c.reply(ctx, event.Problem{Kind: errors.WireKind(err), Reason: err.Error()})
		return
	}
	c.reply(ctx, event.Ack{
		MessageID: receipt.MessageID,
		CreatedAt: receipt.CreatedAt,
		Delivered: receipt.Delivered,
	})
}

// reply feeds the author's own sink so acks and errors share the write pump
// with pushes.
func (c *Client) reply(ctx context.Context, evt event.DomainEvent) {
	if err := c.sink.Consume(ctx, evt); err != nil {
		c.log.Warn("Failed to queue reply", "user_id", c.userID, "error", err)
	}
}

// writePump drains the sink onto the socket and keeps the connection alive
// with pings. It exits when the sink closes, which happens on teardown, on
// replacement by a newer login and on registry shutdown.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case evt := <-c.sink.Events():
			data, wired, err := encodeEvent(evt)
			if err != nil {
				c.log.Error("Failed to encode event", "user_id", c.userID, "error", err)
				continue
			}
			if !wired {
				continue
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-c.sink.Done():
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) teardown() {
	c.coordinator.Close(c.session)
	_ = c.conn.Close()
}
