package vaultdb

import "fmt"

// NotificationKind classifies what changed in the store, one variant per
// event kind that produces user-visible state.
type NotificationKind int

const (
	NewPolicy NotificationKind = iota
	NewProposal
	NewApproval
	NewCompletedProposal
	NewSharedSigner
)

func (k NotificationKind) String() string {
	switch k {
	case NewPolicy:
		return "NewPolicy"
	case NewProposal:
		return "NewProposal"
	case NewApproval:
		return "NewApproval"
	case NewCompletedProposal:
		return "NewCompletedProposal"
	case NewSharedSigner:
		return "NewSharedSigner"
	default:
		return "Unknown"
	}
}

// Notification is emitted onto the notification bus (C9) whenever the
// dispatcher (C6) makes a change to the store a user cares about.
type Notification struct {
	Kind       NotificationKind
	VaultID    VaultIdentifier
	ProposalID string
	Approver   string // NewApproval only
}

// cutID shortens a long hex identifier to its first and last 4 characters,
// the same "cut-id" abbreviation coinstr-sdk's notification Display impl
// uses so log lines and TUI messages stay readable.
func cutID(id string) string {
	if len(id) <= 10 {
		return id
	}
	return id[:4] + ".." + id[len(id)-4:]
}

// String renders the notification the way coinstr-sdk's notification type
// does: a short verb phrase with abbreviated ids.
func (n Notification) String() string {
	switch n.Kind {
	case NewPolicy:
		return fmt.Sprintf("new policy for vault %s", cutID(n.VaultID.String()))
	case NewProposal:
		return fmt.Sprintf("new proposal %s for vault %s", cutID(n.ProposalID), cutID(n.VaultID.String()))
	case NewApproval:
		return fmt.Sprintf("new approval of proposal %s by %s", cutID(n.ProposalID), cutID(n.Approver))
	case NewCompletedProposal:
		return fmt.Sprintf("proposal %s completed for vault %s", cutID(n.ProposalID), cutID(n.VaultID.String()))
	case NewSharedSigner:
		return fmt.Sprintf("new shared signer for vault %s", cutID(n.VaultID.String()))
	default:
		return "notification"
	}
}
