package vaultdb

import (
	"sync"
	"time"

	"github.com/3yekn/coinstr/proposal"
)

// policyRecord is what save_policy stores: the policy plus the members who
// were p-tagged on the originating event.
type policyRecord struct {
	vaultID VaultIdentifier
	vault   *Vault
	members []string
}

// proposalRecord is what save_proposal stores: the proposal plus the vault
// it belongs to.
type proposalRecord struct {
	vaultID  VaultIdentifier
	proposal proposal.Proposal
}

// Approval is one signer's approval of a pending proposal.
type Approval struct {
	ProposalID string
	Approver   string
	EventID    string
	Timestamp  time.Time
}

// PendingEvent is an inbound relay event parked because its required
// shared key (or referenced policy) is not yet known. Only the fields the
// store itself needs to track FIFO order and later re-dispatch are kept
// here; the dispatcher's own Event type carries the full payload and is
// round-tripped through Raw.
type PendingEvent struct {
	ID   string
	Kind int
	Raw  []byte
}

// Store is the single logical owner of every vault-related table,
// following a package-level-registry locking idiom
// (RegisterWallet/RegisteredWallets style) but scoped to one Store instance
// per process instead of a package-level global, and with one mutex per
// table rather than one global lock for fine-grained concurrency.
type Store struct {
	policiesMtx sync.RWMutex
	policies    map[string]policyRecord // keyed by originating event id

	proposalsMtx sync.RWMutex
	proposals    map[string]proposalRecord // keyed by originating event id

	approvalsMtx sync.RWMutex
	approvals    map[string][]Approval // keyed by proposal id

	completedMtx sync.RWMutex
	completed    map[string]proposalRecord // keyed by originating event id

	pendingMtx sync.Mutex
	pending    []PendingEvent

	invitesMtx sync.RWMutex
	invites    map[VaultIdentifier]VaultInvite

	// eventOwner records, for every processed event, which table it ended
	// up in and under what key, so DeleteGenericEventID can find and
	// remove it without the caller needing to know its kind.
	eventOwnerMtx sync.RWMutex
	eventOwner    map[string]string // event id -> table name

	// deleted tombstones every event id DeleteGenericEventID has ever
	// been called with, so a relay redelivering the original event after
	// its deletion does not resurrect the record it once created.
	deletedMtx sync.RWMutex
	deleted    map[string]struct{}

	lastSyncMtx sync.RWMutex
	lastSync    map[string]time.Time // relay url -> last EOSE timestamp

	recentCompletedMtx sync.RWMutex
	recentCompleted    map[VaultIdentifier]time.Time
}

// New constructs an empty in-memory Store.
func New() *Store {
	return &Store{
		policies:        make(map[string]policyRecord),
		proposals:       make(map[string]proposalRecord),
		approvals:       make(map[string][]Approval),
		completed:       make(map[string]proposalRecord),
		invites:         make(map[VaultIdentifier]VaultInvite),
		eventOwner:      make(map[string]string),
		deleted:         make(map[string]struct{}),
		lastSync:        make(map[string]time.Time),
		recentCompleted: make(map[VaultIdentifier]time.Time),
	}
}

const (
	tablePolicy    = "policy"
	tableProposal  = "proposal"
	tableCompleted = "completed"
)

// SavePolicy records a vault's policy under its originating event id.
// Rejects when members is empty.
func (s *Store) SavePolicy(eventID string, v *Vault, members []string) error {
	if len(members) == 0 {
		return ErrEmptyMembers
	}
	s.policiesMtx.Lock()
	s.policies[eventID] = policyRecord{vaultID: v.ID, vault: v, members: members}
	s.policiesMtx.Unlock()

	s.markOwner(eventID, tablePolicy)
	return nil
}

// GetVault returns the vault saved under eventID, if any.
func (s *Store) GetVault(eventID string) (*Vault, bool) {
	s.policiesMtx.RLock()
	defer s.policiesMtx.RUnlock()
	rec, ok := s.policies[eventID]
	if !ok {
		return nil, false
	}
	return rec.vault, true
}

// Vaults returns every vault currently known to the store.
func (s *Store) Vaults() []*Vault {
	s.policiesMtx.RLock()
	defer s.policiesMtx.RUnlock()
	out := make([]*Vault, 0, len(s.policies))
	for _, rec := range s.policies {
		out = append(out, rec.vault)
	}
	return out
}

// SaveProposal records a proposal under its originating event id. The vault
// it belongs to must already exist.
func (s *Store) SaveProposal(eventID string, vaultID VaultIdentifier, p proposal.Proposal) error {
	if !s.vaultExists(vaultID) {
		return ErrVaultNotFound
	}
	s.proposalsMtx.Lock()
	s.proposals[eventID] = proposalRecord{vaultID: vaultID, proposal: p}
	s.proposalsMtx.Unlock()

	s.markOwner(eventID, tableProposal)
	return nil
}

// ProposalVaultID returns the vault id a saved (pending or completed)
// proposal belongs to.
func (s *Store) ProposalVaultID(eventID string) (VaultIdentifier, bool) {
	s.proposalsMtx.RLock()
	rec, ok := s.proposals[eventID]
	s.proposalsMtx.RUnlock()
	if ok {
		return rec.vaultID, true
	}
	s.completedMtx.RLock()
	defer s.completedMtx.RUnlock()
	crec, ok := s.completed[eventID]
	return crec.vaultID, ok
}

// PolicyEventID returns the event id a vault's policy was saved under,
// the key the SharedKey clause's sharedKeys map is indexed by.
func (s *Store) PolicyEventID(vaultID VaultIdentifier) (string, bool) {
	s.policiesMtx.RLock()
	defer s.policiesMtx.RUnlock()
	for eventID, rec := range s.policies {
		if rec.vaultID == vaultID {
			return eventID, true
		}
	}
	return "", false
}

func (s *Store) vaultExists(id VaultIdentifier) bool {
	s.policiesMtx.RLock()
	defer s.policiesMtx.RUnlock()
	for _, rec := range s.policies {
		if rec.vaultID == id {
			return true
		}
	}
	return false
}

// GetProposal returns the proposal saved under eventID.
func (s *Store) GetProposal(eventID string) (proposal.Proposal, bool) {
	s.proposalsMtx.RLock()
	defer s.proposalsMtx.RUnlock()
	rec, ok := s.proposals[eventID]
	if !ok {
		return proposal.Proposal{}, false
	}
	return rec.proposal, true
}

// SaveApprovedProposal records an approval. The proposal must already
// exist.
func (s *Store) SaveApprovedProposal(proposalID, approver, eventID string, ts time.Time) error {
	if _, ok := s.GetProposal(proposalID); !ok {
		return ErrProposalNotFound
	}
	s.approvalsMtx.Lock()
	s.approvals[proposalID] = append(s.approvals[proposalID], Approval{
		ProposalID: proposalID,
		Approver:   approver,
		EventID:    eventID,
		Timestamp:  ts,
	})
	s.approvalsMtx.Unlock()
	return nil
}

// Approvals returns every recorded approval of proposalID.
func (s *Store) Approvals(proposalID string) []Approval {
	s.approvalsMtx.RLock()
	defer s.approvalsMtx.RUnlock()
	return append([]Approval{}, s.approvals[proposalID]...)
}

// completedSyncWindow is how recently a vault must have been created for
// SaveCompletedProposal to schedule it for an immediate timechain sync.
const completedSyncWindow = 600 * time.Second

// SaveCompletedProposal records a completed proposal and, if the vault was
// created within the last completedSyncWindow, marks it for an immediate
// sync (consumed by the C7 timechain-sync scheduler).
func (s *Store) SaveCompletedProposal(eventID string, vaultID VaultIdentifier, p proposal.Proposal, now time.Time) {
	s.completedMtx.Lock()
	s.completed[eventID] = proposalRecord{vaultID: vaultID, proposal: p}
	s.completedMtx.Unlock()
	s.markOwner(eventID, tableCompleted)

	s.policiesMtx.RLock()
	var createdAt time.Time
	var found bool
	for _, rec := range s.policies {
		if rec.vaultID == vaultID {
			createdAt = rec.vault.CreatedAt
			found = true
			break
		}
	}
	s.policiesMtx.RUnlock()

	if found && now.Sub(createdAt) < completedSyncWindow {
		s.recentCompletedMtx.Lock()
		s.recentCompleted[vaultID] = now
		s.recentCompletedMtx.Unlock()
	}
}

// PendingImmediateSync drains and returns the set of vaults
// SaveCompletedProposal flagged for an immediate sync.
func (s *Store) PendingImmediateSync() []VaultIdentifier {
	s.recentCompletedMtx.Lock()
	defer s.recentCompletedMtx.Unlock()
	out := make([]VaultIdentifier, 0, len(s.recentCompleted))
	for id := range s.recentCompleted {
		out = append(out, id)
		delete(s.recentCompleted, id)
	}
	return out
}

// SavePendingEvent parks an event whose required shared key is unknown.
func (s *Store) SavePendingEvent(ev PendingEvent) {
	s.pendingMtx.Lock()
	defer s.pendingMtx.Unlock()
	s.pending = append(s.pending, ev)
}

// GetPendingEvents drains the FIFO of parked events.
func (s *Store) GetPendingEvents() []PendingEvent {
	s.pendingMtx.Lock()
	defer s.pendingMtx.Unlock()
	out := s.pending
	s.pending = nil
	return out
}

func (s *Store) markOwner(eventID, table string) {
	s.eventOwnerMtx.Lock()
	s.eventOwner[eventID] = table
	s.eventOwnerMtx.Unlock()
}

// DeleteGenericEventID removes whichever entity eventID produced,
// regardless of kind. Idempotent: a no-op if eventID is unknown.
func (s *Store) DeleteGenericEventID(eventID string) {
	s.MarkDeleted(eventID)

	s.eventOwnerMtx.Lock()
	table, ok := s.eventOwner[eventID]
	if ok {
		delete(s.eventOwner, eventID)
	}
	s.eventOwnerMtx.Unlock()
	if !ok {
		return
	}

	switch table {
	case tablePolicy:
		s.policiesMtx.Lock()
		delete(s.policies, eventID)
		s.policiesMtx.Unlock()
	case tableProposal:
		s.proposalsMtx.Lock()
		delete(s.proposals, eventID)
		s.proposalsMtx.Unlock()
	case tableCompleted:
		s.completedMtx.Lock()
		delete(s.completed, eventID)
		s.completedMtx.Unlock()
	}
}

// MarkDeleted tombstones eventID. Called by DeleteGenericEventID, and
// exposed directly so callers can tombstone an id that was never locally
// materialized (e.g. a deletion that arrives before the event it targets).
func (s *Store) MarkDeleted(eventID string) {
	s.deletedMtx.Lock()
	defer s.deletedMtx.Unlock()
	s.deleted[eventID] = struct{}{}
}

// WasDeleted reports whether eventID has ever been tombstoned by
// DeleteGenericEventID / MarkDeleted.
func (s *Store) WasDeleted(eventID string) bool {
	s.deletedMtx.RLock()
	defer s.deletedMtx.RUnlock()
	_, ok := s.deleted[eventID]
	return ok
}

// SaveInvite records a vault shared with a non-member.
func (s *Store) SaveInvite(invite VaultInvite) {
	s.invitesMtx.Lock()
	defer s.invitesMtx.Unlock()
	s.invites[invite.VaultID] = invite
}

// AcceptInvite removes a vault invite once the recipient accepts it.
func (s *Store) AcceptInvite(vaultID VaultIdentifier) (VaultInvite, error) {
	s.invitesMtx.Lock()
	defer s.invitesMtx.Unlock()
	invite, ok := s.invites[vaultID]
	if !ok {
		return VaultInvite{}, ErrInviteNotFound
	}
	delete(s.invites, vaultID)
	return invite, nil
}

// DeleteInvite discards a vault invite without accepting it.
func (s *Store) DeleteInvite(vaultID VaultIdentifier) {
	s.invitesMtx.Lock()
	defer s.invitesMtx.Unlock()
	delete(s.invites, vaultID)
}

// SetLastSync records the watermark for a relay after it emits EOSE.
func (s *Store) SetLastSync(relayURL string, ts time.Time) {
	s.lastSyncMtx.Lock()
	defer s.lastSyncMtx.Unlock()
	s.lastSync[relayURL] = ts
}

// LastSync returns the last recorded EOSE watermark for a relay, or the
// zero time if none is known.
func (s *Store) LastSync(relayURL string) time.Time {
	s.lastSyncMtx.RLock()
	defer s.lastSyncMtx.RUnlock()
	return s.lastSync[relayURL]
}
