package broker

import "errors"

// None of these stop the broker. Handlers log them and drop the event.
var (
	// ErrSessionNotFound is reported for events naming an unknown or already
	// removed connection.
	ErrSessionNotFound = errors.New("session not found")

	// ErrAddressUnbound is reported when a session has not identified yet, or
	// when no live session is bound to a selected address.
	ErrAddressUnbound = errors.New("address not bound")

	// ErrMalformedStatus is reported for status payloads that are not a list
	// of booleans. The agent is then recorded with zero cameras.
	ErrMalformedStatus = errors.New("malformed status vector")

	// ErrFrameIndex is reported for camera indexes outside the slot range.
	ErrFrameIndex = errors.New("camera index out of range")

	// ErrSendFailure wraps transport errors on outbound commands.
	ErrSendFailure = errors.New("send failure")

	// ErrClosed is returned by Submit and Call once the loop has stopped.
	ErrClosed = errors.New("broker closed")
)
