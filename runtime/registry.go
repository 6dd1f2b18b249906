// Package runtime hosts the delivery core: the connection registry, the
// delivery engine and the presence lifecycle coordinator. It orchestrates
// message flow without owning storage or transport details.
package runtime

import (
	"log/slog"
	"sync"

	"chat-relay/contract"
	"chat-relay/errors"
)

// Registry is the process-wide map from user identity to their single live
// connection. A user holds zero or one connection; registering a new one
// replaces and closes the previous one (last-writer-wins, so a zombie
// session can never shadow a fresh login).
//
// Registry state is not persisted. On process restart every client simply
// re-registers, which is a normal event, not a failure.
type Registry struct {
	mu          sync.RWMutex
	connections map[string]*contract.Connection
	closed      bool
	log         *slog.Logger
}

func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{
		connections: make(map[string]*contract.Connection),
		log:         log,
	}
}

// Register installs the connection as the user's current one. The lock is
// only held for the map swap; closing the replaced sink happens outside it
// so registry mutation never waits on anything.
func (r *Registry) Register(userID string, conn *contract.Connection) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return errors.ErrRegistryClosed
	}
	previous := r.connections[userID]
	r.connections[userID] = conn
	r.mu.Unlock()

	if previous != nil {
		r.log.Info("replacing live connection", "user_id", userID)
		previous.Sink.Close()
	}
	return nil
}

// Unregister removes the user's entry only if it still is the supplied
// connection. A stale disconnect racing a newer registration is a no-op, so
// calling it twice, or after a replacement, never evicts the active
// connection.
func (r *Registry) Unregister(userID string, conn *contract.Connection) {
	r.mu.Lock()
	if current, ok := r.connections[userID]; ok && current == conn {
		delete(r.connections, userID)
	}
	r.mu.Unlock()
}

// Lookup returns the user's live connection, if any.
func (r *Registry) Lookup(userID string) (*contract.Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.connections[userID]
	return conn, ok
}

// Snapshot copies the current connection map for observability reads.
func (r *Registry) Snapshot() map[string]*contract.Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	snapshot := make(map[string]*contract.Connection, len(r.connections))
	for userID, conn := range r.connections {
		snapshot[userID] = conn
	}
	return snapshot
}

// Shutdown closes every live connection and refuses further registrations.
// Part of the explicit registry lifecycle: init at server start, shutdown on
// server stop.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	r.closed = true
	remaining := r.connections
	r.connections = make(map[string]*contract.Connection)
	r.mu.Unlock()

	for userID, conn := range remaining {
		r.log.Debug("closing connection on shutdown", "user_id", userID)
		conn.Sink.Close()
	}
}
