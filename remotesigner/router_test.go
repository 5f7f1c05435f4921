package remotesigner

import (
	"encoding/hex"
	"encoding/json"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/nbd-wtf/go-nostr"
	"github.com/stretchr/testify/require"

	"github.com/3yekn/coinstr/relay"
)

type recordingSink struct {
	results []string
	errs    []string
}

func (s *recordingSink) RespondNostrConnect(appPubkey, requestID, result, errMessage string) error {
	s.results = append(s.results, result)
	s.errs = append(s.errs, errMessage)
	return nil
}

func keyPair(t *testing.T) (privHex, pubHex string) {
	t.Helper()
	key, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	return hex.EncodeToString(key.Serialize()), hex.EncodeToString(schnorr.SerializePubKey(key.PubKey()))
}

func connectEvent(t *testing.T, appPriv, appPub, ourPub, method string) *relay.Event {
	req := struct {
		ID     string   `json:"id"`
		Method string   `json:"method"`
		Params []string `json:"params"`
	}{ID: "req1", Method: method}
	raw, err := json.Marshal(req)
	require.NoError(t, err)
	ciphertext, err := relay.Nip04Encrypt(appPriv, ourPub, string(raw))
	require.NoError(t, err)
	return &relay.Event{
		ID:        "ev1",
		PubKey:    appPub,
		CreatedAt: nostr.Timestamp(time.Now().Unix()),
		Kind:      int(relay.KindNostrConnect),
		Content:   ciphertext,
	}
}

func TestConnectRequestIsAckedImmediately(t *testing.T) {
	ourPriv, ourPub := keyPair(t)
	appPriv, appPub := keyPair(t)

	sink := &recordingSink{}
	r := NewRouter(ourPub, ourPriv, sink)

	ev := connectEvent(t, appPriv, appPub, ourPub, "connect")
	require.NoError(t, r.HandleNostrConnect(ev))

	require.Len(t, sink.results, 1)
	require.Equal(t, "ack", sink.results[0])

	_, ok := r.Session(appPub)
	require.True(t, ok)
}

func TestUnauthorizedMethodIsQueued(t *testing.T) {
	ourPriv, ourPub := keyPair(t)
	appPriv, appPub := keyPair(t)

	sink := &recordingSink{}
	r := NewRouter(ourPub, ourPriv, sink)
	r.OpenSession(appPub, "wss://relay.example", "session-key")

	ev := connectEvent(t, appPriv, appPub, ourPub, "sign_event")
	require.NoError(t, r.HandleNostrConnect(ev))

	require.Empty(t, sink.results)
	pending := r.PendingRequests()
	require.Len(t, pending, 1)
	require.Equal(t, "sign_event", pending[0].Request.Method)

	// Draining clears the queue.
	require.Empty(t, r.PendingRequests())
}

func TestPreAuthorizedSessionGetsClassificationReply(t *testing.T) {
	ourPriv, ourPub := keyPair(t)
	appPriv, appPub := keyPair(t)

	sink := &recordingSink{}
	r := NewRouter(ourPub, ourPriv, sink)
	r.OpenSession(appPub, "wss://relay.example", "session-key")
	require.NoError(t, r.PreAuthorize(appPub, time.Now().Add(time.Hour)))

	ev := connectEvent(t, appPriv, appPub, ourPub, "sign_event")
	require.NoError(t, r.HandleNostrConnect(ev))

	require.Len(t, sink.errs, 1)
	require.Equal(t, ErrUnsupportedMethod.Error(), sink.errs[0])
	require.Empty(t, r.PendingRequests())
}

func TestGetPublicKeyReturnsOurKey(t *testing.T) {
	ourPriv, ourPub := keyPair(t)
	appPriv, appPub := keyPair(t)

	sink := &recordingSink{}
	r := NewRouter(ourPub, ourPriv, sink)

	ev := connectEvent(t, appPriv, appPub, ourPub, "get_public_key")
	require.NoError(t, r.HandleNostrConnect(ev))

	require.Equal(t, ourPub, sink.results[0])
}
