// Package sink provides the per-connection event buffer sitting between the
// delivery engine and a connection's write pump.
package sink

import (
	"context"
	"sync"
	"time"

	"chat-relay/domain/event"
	"chat-relay/errors"
)

// ConnSink buffers events for a single connection. Consume is called by the
// delivery engine and by the presence worker; the connection's write pump
// drains Events. A full buffer means the consumer is too slow: Consume gives
// up after a short wait so one dead connection never blocks delivery to the
// others.
type ConnSink struct {
	events  chan event.DomainEvent
	done    chan struct{}
	once    sync.Once
	timeout time.Duration
}

func NewConnSink(bufferSize int, timeout time.Duration) *ConnSink {
	return &ConnSink{
		events:  make(chan event.DomainEvent, bufferSize),
		done:    make(chan struct{}),
		timeout: timeout,
	}
}

// Consume hands the event to the connection buffer.
// The events channel is never closed, so a Consume racing Close can only
// time out or observe done, never panic.
func (s *ConnSink) Consume(ctx context.Context, e event.DomainEvent) error {
	timer := time.NewTimer(s.timeout)
	defer timer.Stop()

	select {
	case <-s.done:
		return errors.ErrSinkClosed
	default:
	}

	select {
	case s.events <- e:
		return nil
	case <-s.done:
		return errors.ErrSinkClosed
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return errors.ErrSlowConsumer
	}
}

// Events is drained by the connection's write pump.
func (s *ConnSink) Events() <-chan event.DomainEvent {
	return s.events
}

// Done is closed when the sink is closed; the write pump uses it as its
// termination signal.
func (s *ConnSink) Done() <-chan struct{} {
	return s.done
}

// Close is idempotent and safe to call from the registry (replacement,
// shutdown) and from the connection itself.
func (s *ConnSink) Close() {
	s.once.Do(func() {
		close(s.done)
	})
}
