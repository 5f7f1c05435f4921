package relay

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"sort"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/chaincfg"

	"github.com/3yekn/coinstr/policy"
	"github.com/3yekn/coinstr/proposal"
	"github.com/3yekn/coinstr/vaultdb"
)

// NotifierSink is the minimal capability the dispatcher needs from the
// notification bus (C9); kept as a consumer-defined interface so this
// package never imports the notifier package directly.
type NotifierSink interface {
	Publish(vaultdb.Notification)
}

// NostrConnectHandler handles an inbound NostrConnect request against the
// remote-signer session table (C8); a consumer-defined interface so this
// package never imports remotesigner directly, the same "define the
// interface where it's consumed" shape as proposal.Wallet.
type NostrConnectHandler interface {
	HandleNostrConnect(ev *Event) error
}

// policyPayload is the decrypted content of a Policy event.
type policyPayload struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Descriptor  string `json:"descriptor"`
}

// proposalPayload is the decrypted content of a Proposal event.
type proposalPayload struct {
	Kind        string `json:"kind"` // "spending" | "proof_of_reserve"
	Descriptor  string `json:"descriptor"`
	Address     string `json:"address,omitempty"`
	Amount      int64  `json:"amount,omitempty"`
	Description string `json:"description,omitempty"`
	Message     string `json:"message,omitempty"`
	PSBT        string `json:"psbt"` // base64
}

// signerPayload is the decrypted content of a Signers/SharedSigners event.
type signerPayload struct {
	Fingerprint string   `json:"fingerprint"`
	Descriptors []string `json:"descriptors"`
}

// metadataPayload is the JSON content of a NIP-01 Metadata event.
type metadataPayload struct {
	Name  string `json:"name"`
	About string `json:"about"`
}

// Dispatcher applies inbound relay events to the vault store and signer
// store (C4), following the per-kind clause table in order, first match
// wins, the same "switch on message type, mutate the relevant table"
// shape a gossip syncer's handleNetworkUpdate uses.
type Dispatcher struct {
	store   *vaultdb.Store
	signers *vaultdb.SignerStore
	notif   NotifierSink
	connect NostrConnectHandler
	net     *chaincfg.Params

	privateKeyHex string
	publicKeyHex  string

	// sharedKeys maps a policy event id to the vault's symmetric shared
	// key, hex-encoded, known once the SharedKey event for that policy
	// has been decrypted.
	sharedKeys map[string]string

	// eventAuthors records, for every event this dispatcher has acted
	// on, who published it — consulted by the EventDeletion clause to
	// enforce that only the original author may delete.
	eventAuthors map[string]string

	contacts map[string]struct{}
	profiles map[string]metadataPayload

	now func() time.Time
}

// NewDispatcher constructs a Dispatcher bound to store, signers and notif.
// now defaults to time.Now; tests may override it for determinism.
func NewDispatcher(store *vaultdb.Store, signers *vaultdb.SignerStore, notif NotifierSink,
	connect NostrConnectHandler, net *chaincfg.Params, privateKeyHex, publicKeyHex string) *Dispatcher {

	return &Dispatcher{
		store:         store,
		signers:       signers,
		notif:         notif,
		connect:       connect,
		net:           net,
		privateKeyHex: privateKeyHex,
		publicKeyHex:  publicKeyHex,
		sharedKeys:    make(map[string]string),
		eventAuthors:  make(map[string]string),
		contacts:      make(map[string]struct{}),
		profiles:      make(map[string]metadataPayload),
		now:           time.Now,
	}
}

// HandleEvent applies one inbound event, in the order spec by the clause
// table: expiry, then already-deleted, then the per-kind switch.
func (d *Dispatcher) HandleEvent(ev *Event) error {
	if IsExpired(ev, d.now().Unix()) {
		log.Warnf("relay: dropping expired event %s (kind %d)", ev.ID, ev.Kind)
		return nil
	}
	if d.store.WasDeleted(ev.ID) {
		log.Debugf("relay: dropping resurrected event %s (kind %d): already deleted", ev.ID, ev.Kind)
		return nil
	}

	switch Kind(ev.Kind) {
	case KindSharedKey:
		return d.handleSharedKey(ev)
	case KindPolicy:
		return d.handlePolicy(ev)
	case KindProposal:
		return d.handleProposal(ev)
	case KindApprovedProposal:
		return d.handleApprovedProposal(ev)
	case KindCompletedProposal:
		return d.handleCompletedProposal(ev)
	case KindSigners:
		return d.handleSigners(ev)
	case KindSharedSigners:
		return d.handleSharedSigners(ev)
	case KindEventDeletion:
		return d.handleEventDeletion(ev)
	case KindContactList:
		return d.handleContactList(ev)
	case KindMetadata:
		return d.handleMetadata(ev)
	case KindNostrConnect:
		return d.handleNostrConnect(ev)
	default:
		log.Debugf("relay: ignoring event %s of unhandled kind %d", ev.ID, ev.Kind)
		return nil
	}
}

func (d *Dispatcher) handleSharedKey(ev *Event) error {
	policyID, ok := ExtractFirstEventID(ev)
	if !ok {
		return ErrMalformedEvent
	}
	if _, known := d.sharedKeys[policyID]; known {
		return nil
	}
	plaintext, err := Nip04Decrypt(d.privateKeyHex, ev.PubKey, ev.Content)
	if err != nil {
		return err
	}
	d.sharedKeys[policyID] = plaintext
	d.eventAuthors[ev.ID] = ev.PubKey
	return nil
}

func (d *Dispatcher) handlePolicy(ev *Event) error {
	if _, ok := d.store.GetVault(ev.ID); ok {
		return nil
	}
	sharedKey, known := d.sharedKeys[ev.ID]
	if !known {
		d.park(ev)
		return nil
	}

	plaintext, err := Nip04DecryptWithKey(sharedKey, ev.Content)
	if err != nil {
		return err
	}
	var payload policyPayload
	if err := json.Unmarshal([]byte(plaintext), &payload); err != nil {
		return ErrMalformedEvent
	}

	var members []string
	for _, tag := range ev.Tags {
		if len(tag) >= 2 && tag[0] == "p" {
			members = append(members, tag[1])
		}
	}

	pol, err := policy.FromDescriptor(payload.Name, payload.Descriptor, payload.Description, d.net)
	if err != nil {
		return err
	}
	vault := vaultdb.NewVault(pol, vaultdb.VaultMetadata{Name: payload.Name, Description: payload.Description},
		sharedKey, members, time.Unix(int64(ev.CreatedAt), 0))

	if err := d.store.SavePolicy(ev.ID, vault, members); err != nil {
		return err
	}
	d.eventAuthors[ev.ID] = ev.PubKey
	d.notify(vaultdb.Notification{Kind: vaultdb.NewPolicy, VaultID: vault.ID})
	return nil
}

func (d *Dispatcher) handleProposal(ev *Event) error {
	if _, ok := d.store.GetProposal(ev.ID); ok {
		return nil
	}
	policyID, ok := ExtractFirstEventID(ev)
	if !ok {
		return ErrMalformedEvent
	}
	vault, ok := d.store.GetVault(policyID)
	sharedKey, keyKnown := d.sharedKeys[policyID]
	if !ok || !keyKnown {
		d.park(ev)
		return nil
	}

	p, err := d.decryptProposal(sharedKey, ev.Content)
	if err != nil {
		return err
	}
	if err := d.store.SaveProposal(ev.ID, vault.ID, p); err != nil {
		return err
	}
	d.eventAuthors[ev.ID] = ev.PubKey
	d.notify(vaultdb.Notification{Kind: vaultdb.NewProposal, VaultID: vault.ID, ProposalID: ev.ID})
	return nil
}

func (d *Dispatcher) handleApprovedProposal(ev *Event) error {
	if _, known := d.eventAuthors[ev.ID]; known {
		return nil
	}
	proposalID, ok := ExtractFirstEventID(ev)
	if !ok {
		return ErrMalformedEvent
	}
	policyID, ok := ExtractSecondEventID(ev)
	if !ok {
		return ErrMalformedEvent
	}
	sharedKey, known := d.sharedKeys[policyID]
	if !known {
		d.park(ev)
		return nil
	}
	if _, err := Nip04DecryptWithKey(sharedKey, ev.Content); err != nil {
		return err
	}

	vaultID, ok := d.store.ProposalVaultID(proposalID)
	if !ok {
		d.park(ev)
		return nil
	}
	if err := d.store.SaveApprovedProposal(proposalID, ev.PubKey, ev.ID, time.Unix(int64(ev.CreatedAt), 0)); err != nil {
		return err
	}
	d.eventAuthors[ev.ID] = ev.PubKey
	d.notify(vaultdb.Notification{Kind: vaultdb.NewApproval, VaultID: vaultID, ProposalID: proposalID, Approver: ev.PubKey})
	return nil
}

func (d *Dispatcher) handleCompletedProposal(ev *Event) error {
	if _, ok := d.store.ProposalVaultID(ev.ID); ok {
		// Already recorded as completed under this exact event id.
		return nil
	}
	pendingID, ok := ExtractFirstEventID(ev)
	if !ok {
		return ErrMalformedEvent
	}
	vaultID, ok := d.store.ProposalVaultID(pendingID)
	if !ok {
		d.park(ev)
		return nil
	}
	d.store.DeleteGenericEventID(pendingID)

	policyEventID, _ := d.store.PolicyEventID(vaultID)
	sharedKey, known := d.sharedKeys[policyEventID]
	if known {
		p, err := d.decryptProposal(sharedKey, ev.Content)
		if err != nil {
			return err
		}
		d.store.SaveCompletedProposal(ev.ID, vaultID, p, d.now())
	} else {
		d.park(ev)
	}
	d.eventAuthors[ev.ID] = ev.PubKey
	d.notify(vaultdb.Notification{Kind: vaultdb.NewCompletedProposal, VaultID: vaultID, ProposalID: pendingID})
	return nil
}

func (d *Dispatcher) handleSigners(ev *Event) error {
	plaintext, err := Nip04Decrypt(d.privateKeyHex, d.publicKeyHex, ev.Content)
	if err != nil {
		return err
	}
	var payload signerPayload
	if err := json.Unmarshal([]byte(plaintext), &payload); err != nil {
		return ErrMalformedEvent
	}
	d.eventAuthors[ev.ID] = ev.PubKey
	log.Infof("relay: received owned signer %s (%d descriptors)", payload.Fingerprint, len(payload.Descriptors))
	return nil
}

func (d *Dispatcher) handleSharedSigners(ev *Event) error {
	if ev.PubKey == d.publicKeyHex {
		signerID, ok := ExtractFirstEventID(ev)
		if !ok {
			return ErrMalformedEvent
		}
		receiver, ok := ExtractFirstPubkeyTag(ev)
		if !ok {
			return ErrMalformedEvent
		}
		d.signers.SaveMySharedSigner(ev.ID, signerID, receiver)
		d.eventAuthors[ev.ID] = ev.PubKey
		return nil
	}

	plaintext, err := Nip04Decrypt(d.privateKeyHex, ev.PubKey, ev.Content)
	if err != nil {
		return err
	}
	var payload signerPayload
	if err := json.Unmarshal([]byte(plaintext), &payload); err != nil {
		return ErrMalformedEvent
	}
	d.signers.SaveSharedSigner(ev.ID, vaultdb.SharedSigner{
		Owner:       ev.PubKey,
		Fingerprint: payload.Fingerprint,
		Descriptors: payload.Descriptors,
	})
	d.eventAuthors[ev.ID] = ev.PubKey
	d.notify(vaultdb.Notification{Kind: vaultdb.NewSharedSigner})
	return nil
}

func (d *Dispatcher) handleEventDeletion(ev *Event) error {
	for _, tag := range ev.Tags {
		if len(tag) < 2 || tag[0] != "e" {
			continue
		}
		targetID := tag[1]
		author, known := d.eventAuthors[targetID]
		if known && author != ev.PubKey {
			log.Warnf("relay: ignoring deletion of %s by %s: %v", targetID, ev.PubKey, ErrUnauthorizedDeletion)
			continue
		}
		d.store.DeleteGenericEventID(targetID)
		delete(d.eventAuthors, targetID)
	}
	return nil
}

func (d *Dispatcher) handleContactList(ev *Event) error {
	fresh := make(map[string]struct{})
	for _, tag := range ev.Tags {
		if len(tag) >= 2 && tag[0] == "p" {
			fresh[tag[1]] = struct{}{}
		}
	}
	d.contacts = fresh
	return nil
}

func (d *Dispatcher) handleMetadata(ev *Event) error {
	var payload metadataPayload
	if err := json.Unmarshal([]byte(ev.Content), &payload); err != nil {
		return ErrMalformedEvent
	}
	d.profiles[ev.PubKey] = payload
	return nil
}

func (d *Dispatcher) handleNostrConnect(ev *Event) error {
	if d.connect == nil {
		d.park(ev)
		return nil
	}
	return d.connect.HandleNostrConnect(ev)
}

// UnsyncedProfiles returns every contact pubkey for which no Metadata
// event has been seen yet, sorted for deterministic batching.
func (d *Dispatcher) UnsyncedProfiles() []string {
	var out []string
	for pubkey := range d.contacts {
		if _, known := d.profiles[pubkey]; !known {
			out = append(out, pubkey)
		}
	}
	sort.Strings(out)
	return out
}

func (d *Dispatcher) park(ev *Event) {
	raw, err := json.Marshal(ev)
	if err != nil {
		log.Errorf("relay: failed to park event %s: %v", ev.ID, err)
		return
	}
	d.store.SavePendingEvent(vaultdb.PendingEvent{ID: ev.ID, Kind: ev.Kind, Raw: raw})
}

func (d *Dispatcher) notify(n vaultdb.Notification) {
	if d.notif != nil {
		d.notif.Publish(n)
	}
}

func (d *Dispatcher) decryptProposal(sharedKeyHex, content string) (proposal.Proposal, error) {
	plaintext, err := Nip04DecryptWithKey(sharedKeyHex, content)
	if err != nil {
		return proposal.Proposal{}, err
	}
	var payload proposalPayload
	if err := json.Unmarshal([]byte(plaintext), &payload); err != nil {
		return proposal.Proposal{}, ErrMalformedEvent
	}
	raw, err := base64.StdEncoding.DecodeString(payload.PSBT)
	if err != nil {
		return proposal.Proposal{}, ErrMalformedEvent
	}
	pkt, err := psbt.NewFromRawBytes(bytes.NewReader(raw), false)
	if err != nil {
		return proposal.Proposal{}, err
	}
	switch payload.Kind {
	case "proof_of_reserve":
		return proposal.NewProofOfReserveProposal(payload.Descriptor, payload.Message, pkt), nil
	default:
		return proposal.NewSpendingProposal(payload.Descriptor, payload.Address,
			btcutil.Amount(payload.Amount), payload.Description, pkt), nil
	}
}
