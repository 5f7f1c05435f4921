package proposal

import (
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/psbt"
)

// Kind distinguishes the tagged variants of Proposal, the same way the wire
// protocol's protobuf oneof (ProtoPendingProposalEnum) distinguishes them.
type Kind int

const (
	// KindSpending is a proposal to spend funds to a destination address.
	KindSpending Kind = iota
	// KindProofOfReserve is a proposal proving ownership of funds without
	// moving them, signed under a fixed policy path.
	KindProofOfReserve
)

func (k Kind) String() string {
	switch k {
	case KindSpending:
		return "Spending"
	case KindProofOfReserve:
		return "ProofOfReserve"
	default:
		return "Unknown"
	}
}

// Proposal is the polymorphic pending-spend type: one PSBT under
// construction or awaiting approvals, tagged by Kind. Only the fields
// relevant to the active Kind are populated, mirroring the Rust original's
// enum variants rather than splitting into separate Go types, since every
// consumer (vaultdb, the CLI) needs to range over proposals of either kind
// uniformly.
type Proposal struct {
	Kind        Kind
	Descriptor  string
	Address     string // KindSpending only
	Amount      btcutil.Amount
	Description string
	Message     string // KindProofOfReserve only
	PSBT        *psbt.Packet
}

// NewSpendingProposal builds a KindSpending proposal.
func NewSpendingProposal(descriptor, address string, amount btcutil.Amount,
	description string, p *psbt.Packet) Proposal {

	return Proposal{
		Kind:        KindSpending,
		Descriptor:  descriptor,
		Address:     address,
		Amount:      amount,
		Description: description,
		PSBT:        p,
	}
}

// NewProofOfReserveProposal builds a KindProofOfReserve proposal.
func NewProofOfReserveProposal(descriptor, message string, p *psbt.Packet) Proposal {
	return Proposal{
		Kind:       KindProofOfReserve,
		Descriptor: descriptor,
		Message:    message,
		PSBT:       p,
	}
}
