package relay

import (
	"encoding/hex"
	"encoding/json"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/nbd-wtf/go-nostr"
	"github.com/stretchr/testify/require"

	"github.com/3yekn/coinstr/vaultdb"
)

type recordingNotifier struct {
	notes []vaultdb.Notification
}

func (r *recordingNotifier) Publish(n vaultdb.Notification) {
	r.notes = append(r.notes, n)
}

func keyPair(t *testing.T) (privHex, pubHex string, priv *btcec.PrivateKey) {
	t.Helper()
	key, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	return hex.EncodeToString(key.Serialize()), hex.EncodeToString(schnorr.SerializePubKey(key.PubKey())), key
}

func newDispatcher(t *testing.T, selfPriv, selfPub string) (*Dispatcher, *vaultdb.Store, *recordingNotifier) {
	store := vaultdb.New()
	signers := vaultdb.NewSignerStore()
	notif := &recordingNotifier{}
	d := NewDispatcher(store, signers, notif, nil, &chaincfg.MainNetParams, selfPriv, selfPub)
	return d, store, notif
}

func TestSharedKeyThenPolicyIsSavedOnRedrive(t *testing.T) {
	selfPriv, selfPub, _ := keyPair(t)
	_, senderPub, senderPriv := keyPair(t)

	d, store, notif := newDispatcher(t, selfPriv, selfPub)

	descStr := "tr(" + repeatHex("ab", 32) + ",pk([aabbccdd]02" + repeatHex("11", 32) + "))"
	policyEv := &Event{
		ID:        "policy1",
		PubKey:    senderPub,
		CreatedAt: nostr.Timestamp(time.Now().Unix()),
		Kind:      int(KindPolicy),
		Tags:      nostr.Tags{{"p", "member-a"}, {"p", "member-b"}},
		Content:   "will-not-decrypt-yet",
	}

	// Policy arrives first: shared key is unknown, so it is parked.
	require.NoError(t, d.HandleEvent(policyEv))
	_, ok := store.GetVault("policy1")
	require.False(t, ok)
	require.Len(t, notif.notes, 0)

	pending := store.GetPendingEvents()
	require.Len(t, pending, 1)
	require.Equal(t, "policy1", pending[0].ID)

	// Now the SharedKey event arrives, ECDH-encrypted from sender to us.
	sharedSecret := "aa" + repeatHex("bb", 31)
	ciphertext, err := nip04EncryptFor(senderPriv, selfPub, sharedSecret)
	require.NoError(t, err)
	sharedKeyEv := &Event{
		ID:        "sk1",
		PubKey:    senderPub,
		CreatedAt: nostr.Timestamp(time.Now().Unix()),
		Kind:      int(KindSharedKey),
		Tags:      nostr.Tags{{"e", "policy1"}},
		Content:   ciphertext,
	}
	require.NoError(t, d.HandleEvent(sharedKeyEv))

	// Re-drive the parked policy event now that the shared key is known.
	payload := policyPayload{Name: "vault", Description: "d", Descriptor: descStr}
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	encryptedContent, err := Nip04EncryptWithKey(sharedSecret, string(raw))
	require.NoError(t, err)
	policyEv.Content = encryptedContent

	require.NoError(t, d.HandleEvent(policyEv))

	vault, ok := store.GetVault("policy1")
	require.True(t, ok)
	require.Equal(t, "vault", vault.Metadata.Name)
	require.Len(t, notif.notes, 1)
	require.Equal(t, vaultdb.NewPolicy, notif.notes[0].Kind)
}

func TestEventDeletionRequiresMatchingAuthor(t *testing.T) {
	selfPriv, selfPub, _ := keyPair(t)
	_, attackerPub, _ := keyPair(t)

	d, _, _ := newDispatcher(t, selfPriv, selfPub)

	// A SharedSigners event from ourselves is recorded as our own shared
	// signer, which gives a tracked event id with a known author.
	sharedSignersEv := &Event{
		ID:        "shared1",
		PubKey:    selfPub,
		CreatedAt: nostr.Timestamp(time.Now().Unix()),
		Kind:      int(KindSharedSigners),
		Tags:      nostr.Tags{{"e", "signer1"}, {"p", "receiver-pub"}},
	}
	require.NoError(t, d.HandleEvent(sharedSignersEv))

	// An attacker attempts to delete it: authorship check must reject.
	attackerDeletion := &Event{
		ID:        "del1",
		PubKey:    attackerPub,
		CreatedAt: nostr.Timestamp(time.Now().Unix()),
		Kind:      int(KindEventDeletion),
		Tags:      nostr.Tags{{"e", "shared1"}},
	}
	require.NoError(t, d.HandleEvent(attackerDeletion))
	require.Contains(t, d.eventAuthors, "shared1")

	// The real author deletes it: must succeed.
	ownDeletion := &Event{
		ID:        "del2",
		PubKey:    selfPub,
		CreatedAt: nostr.Timestamp(time.Now().Unix()),
		Kind:      int(KindEventDeletion),
		Tags:      nostr.Tags{{"e", "shared1"}},
	}
	require.NoError(t, d.HandleEvent(ownDeletion))
	require.NotContains(t, d.eventAuthors, "shared1")
}

func TestDeletedEventIsNotResurrected(t *testing.T) {
	selfPriv, selfPub, _ := keyPair(t)
	_, senderPub, senderPriv := keyPair(t)

	d, store, notif := newDispatcher(t, selfPriv, selfPub)

	descStr := "tr(" + repeatHex("ab", 32) + ",pk([aabbccdd]02" + repeatHex("11", 32) + "))"
	sharedSecret := "aa" + repeatHex("bb", 31)

	sharedKeyCiphertext, err := nip04EncryptFor(senderPriv, selfPub, sharedSecret)
	require.NoError(t, err)
	sharedKeyEv := &Event{
		ID:        "sk1",
		PubKey:    senderPub,
		CreatedAt: nostr.Timestamp(time.Now().Unix()),
		Kind:      int(KindSharedKey),
		Tags:      nostr.Tags{{"e", "policy1"}},
		Content:   sharedKeyCiphertext,
	}
	require.NoError(t, d.HandleEvent(sharedKeyEv))

	payload := policyPayload{Name: "vault", Description: "d", Descriptor: descStr}
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	encryptedContent, err := Nip04EncryptWithKey(sharedSecret, string(raw))
	require.NoError(t, err)

	policyEv := &Event{
		ID:        "policy1",
		PubKey:    senderPub,
		CreatedAt: nostr.Timestamp(time.Now().Unix()),
		Kind:      int(KindPolicy),
		Tags:      nostr.Tags{{"p", "member-a"}, {"p", "member-b"}},
		Content:   encryptedContent,
	}
	require.NoError(t, d.HandleEvent(policyEv))
	_, ok := store.GetVault("policy1")
	require.True(t, ok)
	require.Len(t, notif.notes, 1)

	// The author deletes the policy event.
	deletion := &Event{
		ID:        "del1",
		PubKey:    senderPub,
		CreatedAt: nostr.Timestamp(time.Now().Unix()),
		Kind:      int(KindEventDeletion),
		Tags:      nostr.Tags{{"e", "policy1"}},
	}
	require.NoError(t, d.HandleEvent(deletion))
	_, ok = store.GetVault("policy1")
	require.False(t, ok)

	// A relay redelivers the original (now deleted) policy event: it must
	// not be reprocessed and must not recreate the vault.
	require.NoError(t, d.HandleEvent(policyEv))
	_, ok = store.GetVault("policy1")
	require.False(t, ok)
	require.Len(t, notif.notes, 1, "no second NewPolicy notification for a resurrected event")
}

func TestExpiredEventIsDropped(t *testing.T) {
	selfPriv, selfPub, _ := keyPair(t)
	d, _, notif := newDispatcher(t, selfPriv, selfPub)

	ev := &Event{
		ID:        "exp1",
		PubKey:    selfPub,
		CreatedAt: nostr.Timestamp(time.Now().Unix()),
		Kind:      int(KindMetadata),
		Tags:      nostr.Tags{{"expiration", "1"}},
		Content:   `{"name":"alice"}`,
	}
	require.NoError(t, d.HandleEvent(ev))
	require.Empty(t, d.profiles)
	require.Len(t, notif.notes, 0)
}

func nip04EncryptFor(senderPriv *btcec.PrivateKey, recipientPubHex, plaintext string) (string, error) {
	return Nip04Encrypt(hex.EncodeToString(senderPriv.Serialize()), recipientPubHex, plaintext)
}

func repeatHex(s string, n int) string {
	out := make([]byte, 0, len(s)*n)
	for i := 0; i < n; i++ {
		out = append(out, s...)
	}
	return string(out)
}
