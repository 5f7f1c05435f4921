package relay

import (
	"time"

	"github.com/nbd-wtf/go-nostr"
)

// selfKinds are the kinds subscribed both authored-by-self and
// p-tagged-as-self.
var selfKinds = []int{
	int(KindPolicy), int(KindProposal), int(KindApprovedProposal),
	int(KindCompletedProposal), int(KindSharedKey), int(KindSigners),
	int(KindSharedSigners), int(KindMetadata), int(KindContactList),
	int(KindEventDeletion),
}

// BuildMetadataRequest constructs the one batched Metadata-kind filter the
// metadata-sync scheduler issues for every profile pubkey it has marked
// unsynced, with a read timeout of 10 seconds per requested pubkey. Returns
// ok=false if pubkeys is empty: there is nothing to request.
func BuildMetadataRequest(pubkeys []string) (filter nostr.Filter, timeout time.Duration, ok bool) {
	if len(pubkeys) == 0 {
		return nostr.Filter{}, 0, false
	}
	return nostr.Filter{
		Authors: pubkeys,
		Kinds:   []int{int(KindMetadata)},
	}, 10 * time.Duration(len(pubkeys)) * time.Second, true
}

// BuildFilters constructs the one filter set per relay a client
// subscribes with, derived from since = last_successful_EOSE_for_relay.
func BuildFilters(pubkey string, since time.Time) nostr.Filters {
	sinceTS := nostr.Timestamp(since.Unix())

	return nostr.Filters{
		// authored-by-self
		{
			Authors: []string{pubkey},
			Kinds:   selfKinds,
			Since:   &sinceTS,
		},
		// p-tagged-as-self, same kinds
		{
			Tags:  nostr.TagMap{"p": []string{pubkey}},
			Kinds: selfKinds,
			Since: &sinceTS,
		},
		// p-tagged-as-self with kind NostrConnect
		{
			Tags:  nostr.TagMap{"p": []string{pubkey}},
			Kinds: []int{int(KindNostrConnect)},
			Since: &sinceTS,
		},
		// authored-by-self with kind {Metadata, ContactList}
		{
			Authors: []string{pubkey},
			Kinds:   []int{int(KindMetadata), int(KindContactList)},
			Since:   &sinceTS,
		},
	}
}
