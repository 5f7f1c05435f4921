package relay

import (
	"github.com/nbd-wtf/go-nostr"
)

// Event is the wire event type. go-nostr's own nostr.Event is adopted as-is
// rather than redefining the JSON shape; this package only adds the
// dispatch logic layered on top of it.
type Event = nostr.Event

// Kind is a stable integer identifying an event's purpose: this package's
// own domain-specific kinds alongside the standard NIP-01 kinds.
type Kind int

const (
	KindMetadata     Kind = 0
	KindContactList  Kind = 3
	KindEventDeletion Kind = 5

	KindPolicy            Kind = 30000
	KindProposal          Kind = 30001
	KindApprovedProposal  Kind = 30002
	KindCompletedProposal Kind = 30003
	KindSharedKey         Kind = 30004
	KindSigners           Kind = 30005
	KindSharedSigners     Kind = 30006

	KindNostrConnect Kind = 24133
)

// ExtractFirstEventID returns the value of the first "e" tag, if any.
func ExtractFirstEventID(ev *Event) (string, bool) {
	return firstTagValue(ev, "e", 0)
}

// ExtractSecondEventID returns the value of the second "e" tag, if any —
// used by ApprovedProposal events, whose second e-tag names the policy.
func ExtractSecondEventID(ev *Event) (string, bool) {
	return firstTagValue(ev, "e", 1)
}

// ExtractFirstPubkeyTag returns the value of the first "p" tag, if any.
func ExtractFirstPubkeyTag(ev *Event) (string, bool) {
	return firstTagValue(ev, "p", 0)
}

// firstTagValue returns the value at the occurrence-th "e"/"p" tag matching
// name (0-indexed among tags of that name), following the same left-to-
// right ordering NIP-01 tag arrays use.
func firstTagValue(ev *Event, name string, occurrence int) (string, bool) {
	seen := 0
	for _, tag := range ev.Tags {
		if len(tag) < 2 || tag[0] != name {
			continue
		}
		if seen == occurrence {
			return tag[1], true
		}
		seen++
	}
	return "", false
}

// IsExpired reports whether relay-supplied metadata marks ev as expired —
// an "expiration" tag with a unix timestamp in the past.
func IsExpired(ev *Event, now int64) bool {
	val, ok := firstTagValue(ev, "expiration", 0)
	if !ok {
		return false
	}
	var exp int64
	for _, c := range val {
		if c < '0' || c > '9' {
			return false
		}
		exp = exp*10 + int64(c-'0')
	}
	return exp <= now
}
