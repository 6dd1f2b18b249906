package runtime

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"chat-relay/contract"
	"chat-relay/domain/event"
	"chat-relay/errors"
)

// recordingSink captures everything the runtime pushes at a connection.
type recordingSink struct {
	mu      sync.Mutex
	events  []event.DomainEvent
	closed  int
	failing bool
}

func (s *recordingSink) Consume(_ context.Context, e event.DomainEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return errors.ErrSlowConsumer
	}
	s.events = append(s.events, e)
	return nil
}

func (s *recordingSink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed++
}

func (s *recordingSink) Events() []event.DomainEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]event.DomainEvent(nil), s.events...)
}

func (s *recordingSink) CloseCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func connectionFor(userID string, sink contract.EventSink) *contract.Connection {
	return &contract.Connection{
		UserID:      userID,
		Sink:        sink,
		ConnectedAt: time.Now().UTC(),
	}
}

func TestRegistry_Register_And_Lookup(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(slog.Default())

	conn := connectionFor("alice", &recordingSink{})
	req.NoError(registry.Register("alice", conn))

	found, ok := registry.Lookup("alice")
	req.True(ok)
	req.Same(conn, found)

	_, ok = registry.Lookup("bob")
	req.False(ok)
}

func TestRegistry_Register_Replaces_And_Closes_The_Previous_Connection(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(slog.Default())

	// Given a live connection for alice
	oldSink := &recordingSink{}
	oldConn := connectionFor("alice", oldSink)
	req.NoError(registry.Register("alice", oldConn))

	// When alice connects again
	newConn := connectionFor("alice", &recordingSink{})
	req.NoError(registry.Register("alice", newConn))

	// Then the newer connection wins and the older one is closed
	found, ok := registry.Lookup("alice")
	req.True(ok)
	req.Same(newConn, found)
	req.Equal(1, oldSink.CloseCount())
}

func TestRegistry_Unregister_Ignores_A_Stale_Connection(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(slog.Default())

	oldConn := connectionFor("alice", &recordingSink{})
	req.NoError(registry.Register("alice", oldConn))
	newConn := connectionFor("alice", &recordingSink{})
	req.NoError(registry.Register("alice", newConn))

	// A disconnect of the replaced connection must not evict the active one
	registry.Unregister("alice", oldConn)

	found, ok := registry.Lookup("alice")
	req.True(ok)
	req.Same(newConn, found)

	// And unregistering the active one twice is harmless
	registry.Unregister("alice", newConn)
	registry.Unregister("alice", newConn)
	_, ok = registry.Lookup("alice")
	req.False(ok)
}

func TestRegistry_Snapshot_Is_A_Copy(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(slog.Default())
	req.NoError(registry.Register("alice", connectionFor("alice", &recordingSink{})))

	snapshot := registry.Snapshot()
	req.Len(snapshot, 1)

	delete(snapshot, "alice")
	_, ok := registry.Lookup("alice")
	req.True(ok)
}

func TestRegistry_Shutdown_Closes_Everything_And_Refuses_New_Registrations(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(slog.Default())

	aliceSink := &recordingSink{}
	bobSink := &recordingSink{}
	req.NoError(registry.Register("alice", connectionFor("alice", aliceSink)))
	req.NoError(registry.Register("bob", connectionFor("bob", bobSink)))

	registry.Shutdown()

	req.Equal(1, aliceSink.CloseCount())
	req.Equal(1, bobSink.CloseCount())
	req.Empty(registry.Snapshot())

	err := registry.Register("clara", connectionFor("clara", &recordingSink{}))
	req.ErrorIs(err, errors.ErrRegistryClosed)
}
