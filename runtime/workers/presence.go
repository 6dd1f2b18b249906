package workers

import (
	"context"
	"log/slog"
	"time"

	"chat-relay/contract"
	"chat-relay/domain/event"
	"chat-relay/observability"
)

// PresenceWorker drains presence transitions from the lifecycle coordinator
// and notifies the users who care: the online counterparts the user has a
// direct thread with. Notifications are best-effort; a missed one only costs
// a stale presence indicator until the next transition.
type PresenceWorker struct {
	log         *slog.Logger
	events      <-chan event.DomainEvent
	messages    contract.IMessageRepository
	registry    contract.IRegistry
	monitoring  *observability.Monitoring
	pushTimeout time.Duration
}

func NewPresenceWorker(log *slog.Logger, events <-chan event.DomainEvent,
	messages contract.IMessageRepository, registry contract.IRegistry,
	monitoring *observability.Monitoring, pushTimeout time.Duration) *PresenceWorker {
	return &PresenceWorker{
		log:         log,
		events:      events,
		messages:    messages,
		registry:    registry,
		monitoring:  monitoring,
		pushTimeout: pushTimeout,
	}
}

func (w *PresenceWorker) Run(ctx context.Context) error {
	w.log.Info("Starting presence worker")
	for {
		select {
		case <-ctx.Done():
			return nil
		case evt := <-w.events:
			changed, ok := evt.(event.PresenceChanged)
			if !ok {
				continue
			}
			w.notify(ctx, changed)
		}
	}
}

func (w *PresenceWorker) notify(ctx context.Context, changed event.PresenceChanged) {
	contacts, err := w.messages.Counterparts(changed.UserID)
	if err != nil {
		w.log.Error("Failed to resolve counterparts for presence", "user_id", changed.UserID, "error", err)
		return
	}

	for _, contact := range contacts {
		conn, online := w.registry.Lookup(contact.UserID)
		if !online {
			continue
		}

		pushCtx, cancel := context.WithTimeout(ctx, w.pushTimeout)
		if err := conn.Sink.Consume(pushCtx, changed); err != nil {
			w.log.Debug("Presence push skipped", "user_id", contact.UserID, "error", err)
		} else {
			w.monitoring.IncrPresencePush()
		}
		cancel()
	}
}
