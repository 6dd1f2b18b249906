//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"
	"time"

	"chat-relay/domain"
	"chat-relay/domain/event"
)

// EventSink is the write side of one live connection. Consume must be quick:
// it hands the event to the connection's buffer and never performs I/O.
type EventSink interface {
	Consume(ctx context.Context, e event.DomainEvent) error
	Close()
}

// Connection is the ephemeral runtime record the registry owns for a user.
// It is never persisted.
type Connection struct {
	UserID      string
	Sink        EventSink
	ConnectedAt time.Time
}

// IRegistry is the process-wide map from user identity to their single live
// connection. Registering over an existing entry replaces it and closes the
// predecessor; unregistering with a stale connection is a no-op.
type IRegistry interface {
	Register(userID string, conn *Connection) error
	Unregister(userID string, conn *Connection)
	Lookup(userID string) (*Connection, bool)
	Snapshot() map[string]*Connection
	Shutdown()
}

// IMessageRepository is the durable message store. Store must commit before
// returning; history reads observe every committed write (read-your-writes).
type IMessageRepository interface {
	Store(ctx context.Context, msg domain.Message) error
	DirectHistory(userA, userB string) ([]domain.Message, error)
	ChannelHistory(channelID string) ([]domain.Message, error)
	Counterparts(userID string) ([]domain.Contact, error)
}

// IDirectory exposes the channel membership reads the delivery core needs.
type IDirectory interface {
	Members(channelID string) ([]string, error)
	IsMember(channelID, userID string) (bool, error)
}

// ISender accepts a validated sending intent from a transport.
type ISender interface {
	Send(ctx context.Context, senderID string, cmd domain.SendCommand) (domain.DeliveryReceipt, error)
}

// Worker doesn't protect itself; the supervisor does.
type Worker interface {
	Run(ctx context.Context) error
}

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// Used for logging and supervision, avoiding manual naming in the Worker
// interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}
