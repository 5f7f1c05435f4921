package remotesigner

import "errors"

var (
	// ErrSessionNotFound is returned when a request references an
	// app_pubkey with no open session.
	ErrSessionNotFound = errors.New("remotesigner: no session for app pubkey")

	// ErrNotAuthorized names a request for a session that has no active
	// pre-authorization and requires one. The Router does not return it:
	// it queues such requests for PendingRequests instead.
	ErrNotAuthorized = errors.New("remotesigner: session not pre-authorized")

	// ErrUnsupportedMethod is returned for a NIP-46 method this router
	// does not implement.
	ErrUnsupportedMethod = errors.New("remotesigner: unsupported method")
)
