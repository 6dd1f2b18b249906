package errors

import (
	stderrors "errors"
	"fmt"
)

var (
	// Validation family: rejected before any persistence.
	ErrEmptyMessage = fmt.Errorf("message body and attachment are both empty")
	ErrBadTarget    = fmt.Errorf("target is not well-formed for the message kind")
	ErrInvalidKind  = fmt.Errorf("unknown message kind")

	// Authorization and resolution: rejected before any persistence.
	ErrNotMember       = fmt.Errorf("sender is not a member of the channel")
	ErrChannelNotFound = fmt.Errorf("channel does not exist")

	// Persistence failures: retryable by the caller, nothing was delivered.
	ErrStoreTimeout     = fmt.Errorf("store deadline exceeded")
	ErrStoreUnavailable = fmt.Errorf("store unavailable")

	// Connection plumbing.
	ErrRegistryClosed = fmt.Errorf("connection registry is shut down")
	ErrSinkClosed     = fmt.Errorf("connection sink is closed")
	ErrSlowConsumer   = fmt.Errorf("connection send buffer is full")

	ErrInvalidToken = fmt.Errorf("session token is invalid")

	ErrWorkerPanic = fmt.Errorf("worker panicked")
)

// Wire error kinds carried by the error event of the websocket protocol.
const (
	KindValidation  = "VALIDATION"
	KindForbidden   = "FORBIDDEN"
	KindNotFound    = "NOT_FOUND"
	KindTimeout     = "TIMEOUT"
	KindUnavailable = "UNAVAILABLE"
)

// WireKind maps a send failure to the error kind a client sees.
// Unknown errors are reported as UNAVAILABLE rather than leaking internals.
func WireKind(err error) string {
	switch {
	case stderrors.Is(err, ErrEmptyMessage),
		stderrors.Is(err, ErrBadTarget),
		stderrors.Is(err, ErrInvalidKind):
		return KindValidation
	case stderrors.Is(err, ErrNotMember):
		return KindForbidden
	case stderrors.Is(err, ErrChannelNotFound):
		return KindNotFound
	case stderrors.Is(err, ErrStoreTimeout):
		return KindTimeout
	default:
		return KindUnavailable
	}
}
