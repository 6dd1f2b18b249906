package runtime

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"chat-relay/contract"
	"chat-relay/domain/event"
	"chat-relay/observability"
)

// SessionState is the lifecycle position of one connection.
type SessionState int

const (
	StateConnecting SessionState = iota
	StateAuthenticated
	StateActive
	StateClosed
)

func (s SessionState) String() string {
	switch s {
	case StateConnecting:
		return "CONNECTING"
	case StateAuthenticated:
		return "AUTHENTICATED"
	case StateActive:
		return "ACTIVE"
	case StateClosed:
		return "CLOSED"
	}
	return "UNKNOWN"
}

// Session tracks one connection through
// CONNECTING -> AUTHENTICATED -> ACTIVE -> CLOSED.
// Transitions only move forward; Close is reachable from every state and is
// idempotent.
type Session struct {
	mu     sync.Mutex
	state  SessionState
	userID string
	conn   *contract.Connection
}

// State returns the session's current lifecycle position.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// UserID returns the trusted identity, empty until authenticated.
func (s *Session) UserID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userID
}

// Coordinator reacts to connection lifecycle events: it attaches a trusted
// identity, registers the connection, and guarantees unregistration exactly
// once on the way out. It never attempts reconnection; a dropped connection
// is the client's problem to re-establish.
type Coordinator struct {
	log        *slog.Logger
	registry   contract.IRegistry
	monitoring *observability.Monitoring
	presence   chan event.DomainEvent
}

func NewCoordinator(log *slog.Logger, registry contract.IRegistry,
	monitoring *observability.Monitoring, bufferSize int) *Coordinator {
	return &Coordinator{
		log:        log,
		registry:   registry,
		monitoring: monitoring,
		presence:   make(chan event.DomainEvent, bufferSize),
	}
}

// Presence exposes the best-effort presence event stream drained by the
// presence worker.
func (c *Coordinator) Presence() <-chan event.DomainEvent {
	return c.presence
}

// Begin starts tracking a freshly accepted transport connection.
func (c *Coordinator) Begin() *Session {
	return &Session{state: StateConnecting}
}

// Authenticate attaches the externally verified identity. No anonymous
// session ever advances past CONNECTING; the transport drops the connection
// on any error here (fail closed).
func (c *Coordinator) Authenticate(s *Session, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateConnecting {
		return fmt.Errorf("cannot authenticate a session in state %s", s.state)
	}
	if userID == "" {
		return fmt.Errorf("refusing anonymous session")
	}
	s.userID = userID
	s.state = StateAuthenticated
	return nil
}

// Activate registers the session's connection, completing the transition to
// ACTIVE, and announces the user online.
func (c *Coordinator) Activate(s *Session, sink contract.EventSink) error {
	s.mu.Lock()
	if s.state != StateAuthenticated {
		state := s.state
		s.mu.Unlock()
		return fmt.Errorf("cannot activate a session in state %s", state)
	}
	conn := &contract.Connection{
		UserID:      s.userID,
		Sink:        sink,
		ConnectedAt: time.Now().UTC(),
	}
	s.conn = conn
	userID := s.userID
	s.mu.Unlock()

	if err := c.registry.Register(userID, conn); err != nil {
		s.mu.Lock()
		s.state = StateClosed
		s.mu.Unlock()
		sink.Close()
		return err
	}

	s.mu.Lock()
	s.state = StateActive
	s.mu.Unlock()

	c.monitoring.ConnectionOpened()
	c.log.Info("connection active", "user_id", userID)
	c.announce(event.PresenceChanged{UserID: userID, Online: true, At: conn.ConnectedAt})
	return nil
}

// Close tears the session down from any state. Double-close is safe: the
// registry's identity guard makes the unregister a no-op when the connection
// was already replaced, and the sink close is idempotent.
func (c *Coordinator) Close(s *Session) {
	s.mu.Lock()
	state := s.state
	userID := s.userID
	conn := s.conn
	s.state = StateClosed
	s.mu.Unlock()

	if state == StateClosed {
		return
	}
	if state != StateActive {
		c.log.Debug("session closed before activation", "state", state.String())
		return
	}

	c.registry.Unregister(userID, conn)
	conn.Sink.Close()
	c.monitoring.ConnectionClosed()
	c.log.Info("connection closed", "user_id", userID)

	// When a newer connection already replaced this one the user is still
	// online; only announce the user offline once no connection remains.
	if _, ok := c.registry.Lookup(userID); !ok {
		c.announce(event.PresenceChanged{UserID: userID, Online: false, At: time.Now().UTC()})
	}
}

// announce never blocks lifecycle handling; a full presence buffer only
// costs a notification.
func (c *Coordinator) announce(evt event.DomainEvent) {
	select {
	case c.presence <- evt:
	default:
		c.log.Warn("presence buffer full, dropping event")
	}
}
