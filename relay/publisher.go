package relay

import (
	"time"

	"github.com/nbd-wtf/go-nostr"
)

// Publisher is implemented by whatever owns the live relay socket
// connections. Dispatcher and the background schedulers only construct
// what needs to go out over the wire — a signed event, or a filter-shaped
// request with its read timeout — they never dial a relay themselves, the
// same "define the interface where it's consumed" shape as NotifierSink.
type Publisher interface {
	// Publish sends ev to relayURL.
	Publish(relayURL string, ev Event) error
	// Request issues filter against relayURL and waits up to timeout for
	// results.
	Request(relayURL string, filter nostr.Filter, timeout time.Duration) error
}
