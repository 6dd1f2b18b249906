package runtime

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/samber/lo"

	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"chat-relay/observability"
)

// Engine validates, persists, then routes a message to the right live
// connections. Persistence always precedes delivery: a crash after the store
// commit can at worst cause a redundant history read, never a lost message.
type Engine struct {
	log          *slog.Logger
	validate     *validator.Validate
	messages     contract.IMessageRepository
	directory    contract.IDirectory
	registry     contract.IRegistry
	monitoring   *observability.Monitoring
	pipeline     chan event.DomainEvent
	storeTimeout time.Duration
	pushTimeout  time.Duration
}

func NewEngine(log *slog.Logger, messages contract.IMessageRepository,
	directory contract.IDirectory, registry contract.IRegistry,
	monitoring *observability.Monitoring, bufferSize int,
	storeTimeout, pushTimeout time.Duration) *Engine {
	return &Engine{
		log:          log,
		validate:     validator.New(),
		messages:     messages,
		directory:    directory,
		registry:     registry,
		monitoring:   monitoring,
		pipeline:     make(chan event.DomainEvent, bufferSize),
		storeTimeout: storeTimeout,
		pushTimeout:  pushTimeout,
	}
}

// Pipeline exposes the side-effect event stream (search indexing). Events on
// it are best-effort; delivery correctness never depends on a consumer.
func (e *Engine) Pipeline() <-chan event.DomainEvent {
	return e.pipeline
}

// Send runs the full delivery algorithm for one message.
//
// Per-sender ordering holds because Send persists synchronously and the
// store assigns monotonic ordering keys: two sequential sends by one sender
// commit, and therefore read back, in call order. Each connection issues its
// sends from a single read loop, so one user's sends are naturally serial.
func (e *Engine) Send(ctx context.Context, senderID string, cmd domain.SendCommand) (domain.DeliveryReceipt, error) {
	if err := e.validateCommand(cmd); err != nil {
		return domain.DeliveryReceipt{}, err
	}

	recipients, err := e.resolveRecipients(senderID, cmd)
	if err != nil {
		return domain.DeliveryReceipt{}, err
	}

	msg := newMessage(senderID, cmd)

	storeCtx, cancel := context.WithTimeout(ctx, e.storeTimeout)
	defer cancel()
	if err := e.messages.Store(storeCtx, msg); err != nil {
		return domain.DeliveryReceipt{}, err
	}
	e.monitoring.IncrPersisted()
	e.dispatch(event.MessageStored{Message: msg})

	delivered := make([]string, 0, len(recipients))
	for _, recipient := range recipients {
		if e.push(ctx, recipient, msg) {
			delivered = append(delivered, recipient)
		}
	}

	return domain.DeliveryReceipt{
		MessageID: msg.ID,
		CreatedAt: msg.CreatedAt,
		Delivered: delivered,
	}, nil
}

// push delivers the persisted message to one recipient's live connection.
// Absence and push failure are equivalent: the recipient will find the
// message in history. Neither ever fails the send.
func (e *Engine) push(ctx context.Context, recipient string, msg domain.Message) bool {
	conn, online := e.registry.Lookup(recipient)
	if !online {
		return false
	}

	pushCtx, cancel := context.WithTimeout(ctx, e.pushTimeout)
	defer cancel()
	if err := conn.Sink.Consume(pushCtx, event.MessageReceived{Message: msg}); err != nil {
		e.monitoring.IncrPushFailure()
		e.log.Warn("live push failed, recipient treated as offline",
			"user_id", recipient,
			"message_id", msg.ID,
			"error", err)
		return false
	}
	e.monitoring.IncrPushed()
	return true
}

func (e *Engine) validateCommand(cmd domain.SendCommand) error {
	if err := e.validate.Struct(cmd); err != nil {
		if cmd.Kind != domain.KindDirect && cmd.Kind != domain.KindChannel {
			return errors.ErrInvalidKind
		}
		return errors.ErrBadTarget
	}
	if cmd.Body == "" && cmd.Attachment == "" {
		return errors.ErrEmptyMessage
	}
	return nil
}

// resolveRecipients runs before persistence so an unauthorized or unresolvable
// send leaves no record behind.
//
// DIRECT targets are deliberately permissive: no existence check is made, and
// fan-out to an unknown id is simply empty.
func (e *Engine) resolveRecipients(senderID string, cmd domain.SendCommand) ([]string, error) {
	switch cmd.Kind {
	case domain.KindDirect:
		return []string{cmd.Target}, nil
	case domain.KindChannel:
		members, err := e.directory.Members(cmd.Target)
		if err != nil {
			return nil, err
		}
		if !lo.Contains(members, senderID) {
			return nil, errors.ErrNotMember
		}
		// The sender renders its own message optimistically; no echo.
		return lo.Filter(members, func(member string, _ int) bool {
			return member != senderID
		}), nil
	default:
		return nil, errors.ErrInvalidKind
	}
}

// dispatch feeds the side-effect pipeline without ever blocking a send.
func (e *Engine) dispatch(evt event.DomainEvent) {
	select {
	case e.pipeline <- evt:
	default:
		e.log.Warn("pipeline full, dropping side-effect event", "type", evt.EventType())
	}
}

func newMessage(senderID string, cmd domain.SendCommand) domain.Message {
	msg := domain.Message{
		ID:         uuid.New(),
		Kind:       cmd.Kind,
		SenderID:   senderID,
		Body:       cmd.Body,
		Attachment: cmd.Attachment,
		CreatedAt:  time.Now().UTC(),
	}
	if cmd.Kind == domain.KindChannel {
		msg.ChannelID = cmd.Target
	} else {
		msg.RecipientID = cmd.Target
	}
	return msg
}
