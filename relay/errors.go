package relay

import "errors"

var (
	// ErrInvalidSignature is returned when an event's signature does not
	// verify over its canonical serialization.
	ErrInvalidSignature = errors.New("relay: invalid event signature")

	// ErrUnknownSharedKey names an event that requires a vault shared key
	// this process has not yet recorded. The Dispatcher does not return
	// it: it parks such events as pending instead.
	ErrUnknownSharedKey = errors.New("relay: shared key unknown")

	// ErrMalformedEvent is returned when an event's tags or content don't
	// match what its kind requires.
	ErrMalformedEvent = errors.New("relay: malformed event")

	// ErrUnauthorizedDeletion is returned (logged, not propagated) when an
	// EventDeletion's author does not match the original event's author.
	ErrUnauthorizedDeletion = errors.New("relay: deletion author does not match original event author")
)
