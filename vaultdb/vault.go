package vaultdb

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/3yekn/coinstr/policy"
)

// VaultIdentifier is a deterministic function of a vault's descriptor plus
// its shared-key public key, so two members who independently derive the
// same vault agree on its id without a central allocator — grounded on
// vault.compute_id() in the reference client.
type VaultIdentifier [32]byte

// String renders the identifier as lowercase hex.
func (id VaultIdentifier) String() string {
	return hex.EncodeToString(id[:])
}

// ComputeVaultIdentifier derives a VaultIdentifier from a descriptor string
// and the vault's shared-key public key (hex-encoded x-only key).
func ComputeVaultIdentifier(descriptor, sharedKeyPubkey string) VaultIdentifier {
	h := sha256.New()
	h.Write([]byte(descriptor))
	h.Write([]byte(sharedKeyPubkey))
	var id VaultIdentifier
	copy(id[:], h.Sum(nil))
	return id
}

// VaultMetadata is the user-editable label attached to a vault, distinct
// from the underlying Policy's own name/description (a vault may outlive
// edits to how its owner describes it locally).
type VaultMetadata struct {
	Name        string
	Description string
}

// Vault is a policy bound to a shared key and a membership set, the unit
// the store and the wallet manager operate on.
type Vault struct {
	ID              VaultIdentifier
	Policy          *policy.Policy
	Metadata        VaultMetadata
	SharedKeyPubkey string
	Members         map[string]struct{}
	CreatedAt       time.Time
}

// NewVault computes the vault's id and constructs it.
func NewVault(pol *policy.Policy, metadata VaultMetadata, sharedKeyPubkey string,
	members []string, createdAt time.Time) *Vault {

	memberSet := make(map[string]struct{}, len(members))
	for _, m := range members {
		memberSet[m] = struct{}{}
	}
	return &Vault{
		ID:              ComputeVaultIdentifier(pol.Descriptor.String(), sharedKeyPubkey),
		Policy:          pol,
		Metadata:        metadata,
		SharedKeyPubkey: sharedKeyPubkey,
		Members:         memberSet,
		CreatedAt:       createdAt,
	}
}

// VaultInvite is a vault shared with a non-member before they accept it.
type VaultInvite struct {
	VaultID   VaultIdentifier
	Sender    string
	Message   string
	Timestamp time.Time
}

// SignerKeyProvider is the minimal capability GetMembersOfVault needs from
// a signer record, mirroring policy.SignerKeyProvider so vaultdb doesn't
// need to import the signer package just for this one read.
type SignerKeyProvider interface {
	Fingerprint() string
	DescriptorStrings() []string
}

// GetMembersOfVault derives a vault's membership-profile set from owned and
// shared signers any of whose descriptor strings is textually present in
// the vault's descriptor, returning their fingerprints — the same
// substring-search style as
// policy.Policy.SearchUsedSigners, applied here to classify "whose key is
// this" rather than "which of my signers can I sign with".
func GetMembersOfVault(v *Vault, signers []SignerKeyProvider) []string {
	descStr := v.Policy.Descriptor.String()
	var involved []string
	for _, s := range signers {
		for _, ds := range s.DescriptorStrings() {
			if ds != "" && strings.Contains(descStr, ds) {
				involved = append(involved, s.Fingerprint())
				break
			}
		}
	}
	return involved
}
