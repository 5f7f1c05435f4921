package vaultdb

import (
	"sync"

	"github.com/3yekn/coinstr/signer"
)

// MySharedSigner records that we (the author) shared one of our signers
// with a peer, keyed by the originating event's first e-tag (the shared
// signer's id) and carrying the receiver's pubkey from the first p-tag.
type MySharedSigner struct {
	SignerID string
	Receiver string
}

// SharedSigner is a signer a peer shared with us: a fingerprint plus the
// subset of descriptor public keys they chose to expose.
type SharedSigner struct {
	Owner       string
	Fingerprint string
	Descriptors []string
}

// SignerStore holds owned signers (ours, full CoreSigner material) and
// shared signers (peers', descriptor-only), each under its own lock.
type SignerStore struct {
	ownedMtx sync.RWMutex
	owned    map[string]*signer.CoreSigner // keyed by fingerprint hex

	mySharedMtx sync.RWMutex
	myShared    map[string]MySharedSigner // keyed by event id

	sharedMtx sync.RWMutex
	shared    map[string]SharedSigner // keyed by event id
}

// NewSignerStore constructs an empty SignerStore.
func NewSignerStore() *SignerStore {
	return &SignerStore{
		owned:    make(map[string]*signer.CoreSigner),
		myShared: make(map[string]MySharedSigner),
		shared:   make(map[string]SharedSigner),
	}
}

// SaveOwnedSigner records one of our own signers.
func (s *SignerStore) SaveOwnedSigner(sgnr *signer.CoreSigner) {
	s.ownedMtx.Lock()
	defer s.ownedMtx.Unlock()
	s.owned[sgnr.Fingerprint().String()] = sgnr
}

// OwnedSigners returns every signer we own.
func (s *SignerStore) OwnedSigners() []*signer.CoreSigner {
	s.ownedMtx.RLock()
	defer s.ownedMtx.RUnlock()
	out := make([]*signer.CoreSigner, 0, len(s.owned))
	for _, sgnr := range s.owned {
		out = append(out, sgnr)
	}
	return out
}

// SaveMySharedSigner records that we shared signerID with receiver.
func (s *SignerStore) SaveMySharedSigner(eventID, signerID, receiver string) {
	s.mySharedMtx.Lock()
	defer s.mySharedMtx.Unlock()
	s.myShared[eventID] = MySharedSigner{SignerID: signerID, Receiver: receiver}
}

// SaveSharedSigner records a signer a peer shared with us.
func (s *SignerStore) SaveSharedSigner(eventID string, shared SharedSigner) {
	s.sharedMtx.Lock()
	defer s.sharedMtx.Unlock()
	s.shared[eventID] = shared
}

// SharedSigners returns every signer shared with us by peers.
func (s *SignerStore) SharedSigners() []SharedSigner {
	s.sharedMtx.RLock()
	defer s.sharedMtx.RUnlock()
	out := make([]SharedSigner, 0, len(s.shared))
	for _, sh := range s.shared {
		out = append(out, sh)
	}
	return out
}
