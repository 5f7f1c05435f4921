package signer

import (
	"fmt"

	"github.com/3yekn/coinstr/descriptor"
	"github.com/btcsuite/btcd/chaincfg"
)

// SMARTVAULTSAccountIndex is the fixed account index that, when used with
// FromSeed, also derives a BIP86 descriptor to remain compatible with
// legacy single-sig vaults. The constant is treated as canonical;
// reimplementations must not renumber it.
const SMARTVAULTSAccountIndex = 0

// SignerType classifies how a signer's private key material is held.
type SignerType int

const (
	TypeSeed SignerType = iota
	TypeHardware
	TypeAirGap
	TypeUnknown
)

func (t SignerType) String() string {
	switch t {
	case TypeSeed:
		return "Seed"
	case TypeHardware:
		return "Hardware"
	case TypeAirGap:
		return "AirGap"
	default:
		return "Unknown"
	}
}

// Purposes lists every BIP purpose a CoreSigner derives descriptors for by
// default (BIP86 is added conditionally by FromSeed).
var Purposes = []descriptor.Purpose{
	descriptor.PurposeBIP48P2WSH,
	descriptor.PurposeBIP48P2TR,
}

// CoreSigner represents a signing device as a fingerprint plus one
// descriptor public key per derivation purpose. HD derivation from a BIP39
// seed is out of scope for this package; callers supply already-derived
// public keys (e.g. from a hardware wallet's xpub export, or from an
// external derivation helper) and CoreSigner validates and stores them.
type CoreSigner struct {
	fingerprint descriptor.Fingerprint
	descriptors map[descriptor.Purpose]descriptor.PublicKey
	typ         SignerType
	network     *chaincfg.Params
}

// New validates and stores every descriptor in descriptors under the given
// fingerprint, type and network.
func New(fingerprint descriptor.Fingerprint, descriptors map[descriptor.Purpose]descriptor.PublicKey,
	typ SignerType, network *chaincfg.Params) (*CoreSigner, error) {

	s := &CoreSigner{
		fingerprint: fingerprint,
		descriptors: make(map[descriptor.Purpose]descriptor.PublicKey),
		typ:         typ,
		network:     network,
	}
	if err := s.AddDescriptors(descriptors); err != nil {
		return nil, err
	}
	return s, nil
}

// FromSeed composes a CoreSigner from a set of per-purpose descriptor
// public keys already derived elsewhere from a seed. If account equals
// SMARTVAULTSAccountIndex, a BIP86 descriptor must also be present in
// derived, matching the legacy-vault compatibility rule.
func FromSeed(fingerprint descriptor.Fingerprint, derived map[descriptor.Purpose]descriptor.PublicKey,
	account *uint32, network *chaincfg.Params) (*CoreSigner, error) {

	purposes := append([]descriptor.Purpose{}, Purposes...)
	if account != nil && *account == SMARTVAULTSAccountIndex {
		purposes = append(purposes, descriptor.PurposeBIP86)
	}

	subset := make(map[descriptor.Purpose]descriptor.PublicKey, len(purposes))
	for _, p := range purposes {
		key, ok := derived[p]
		if !ok {
			return nil, fmt.Errorf("%w: missing derived key for purpose %v", ErrDerivationPathNotFound, p)
		}
		subset[p] = key
	}
	return New(fingerprint, subset, TypeSeed, network)
}

// AirGap composes a CoreSigner for a device that is never directly
// connected, exporting its descriptors via microSD or camera.
func AirGap(fingerprint descriptor.Fingerprint, descriptors map[descriptor.Purpose]descriptor.PublicKey,
	network *chaincfg.Params) (*CoreSigner, error) {
	return New(fingerprint, descriptors, TypeAirGap, network)
}

// Unknown composes a CoreSigner of unspecified provenance.
func Unknown(fingerprint descriptor.Fingerprint, descriptors map[descriptor.Purpose]descriptor.PublicKey,
	network *chaincfg.Params) (*CoreSigner, error) {
	return New(fingerprint, descriptors, TypeUnknown, network)
}

// Fingerprint returns the signer's master fingerprint. Satisfies
// policy.SignerFingerprint.
func (s *CoreSigner) Fingerprint() descriptor.Fingerprint { return s.fingerprint }

// Type returns the signer's type.
func (s *CoreSigner) Type() SignerType { return s.typ }

// Network returns the signer's network.
func (s *CoreSigner) Network() *chaincfg.Params { return s.network }

// Descriptors returns a copy of the per-purpose descriptor map.
func (s *CoreSigner) Descriptors() map[descriptor.Purpose]descriptor.PublicKey {
	out := make(map[descriptor.Purpose]descriptor.PublicKey, len(s.descriptors))
	for k, v := range s.descriptors {
		out[k] = v
	}
	return out
}

// Descriptor returns the descriptor public key for a given purpose, if any.
func (s *CoreSigner) Descriptor(purpose descriptor.Purpose) (descriptor.PublicKey, bool) {
	pk, ok := s.descriptors[purpose]
	return pk, ok
}

// DescriptorStrings returns every descriptor public key's textual form.
// Satisfies policy.SignerKeyProvider.
func (s *CoreSigner) DescriptorStrings() []string {
	out := make([]string, 0, len(s.descriptors))
	for _, pk := range s.descriptors {
		out = append(out, pk.String())
	}
	return out
}

// AddDescriptor inserts a descriptor under purpose after validating:
//  1. the key's master fingerprint matches the signer's fingerprint;
//  2. the first path component is hardened and equals purpose's index;
//  3. the second path component's coin-type matches the network (0' for
//     mainnet, 1' otherwise).
func (s *CoreSigner) AddDescriptor(purpose descriptor.Purpose, pk descriptor.PublicKey) error {
	if s.fingerprint != pk.Origin.Fingerprint {
		return ErrFingerprintNotMatch
	}

	path := pk.Origin.Path
	if len(path) == 0 {
		return ErrDerivationPathNotFound
	}

	if !descriptor.IsHardened(path[0]) || descriptor.PathIndex(path[0]) != purpose.AsUint32() {
		return ErrPurposeNotMatch
	}

	if len(path) < 2 {
		return ErrNetworkNotFound
	}
	coinType := descriptor.PathIndex(path[1])
	wantMainnet := s.network == &chaincfg.MainNetParams
	if wantMainnet && coinType != 0 {
		return ErrNetworkNotMatch
	}
	if !wantMainnet && coinType != 1 {
		return ErrNetworkNotMatch
	}

	s.descriptors[purpose] = pk
	return nil
}

// AddDescriptors inserts every (purpose, key) pair, stopping at the first
// validation failure.
func (s *CoreSigner) AddDescriptors(descriptors map[descriptor.Purpose]descriptor.PublicKey) error {
	for purpose, pk := range descriptors {
		if err := s.AddDescriptor(purpose, pk); err != nil {
			return err
		}
	}
	return nil
}

// ContainsDescriptor reports whether pk is one of this signer's descriptor
// public keys.
func (s *CoreSigner) ContainsDescriptor(pk descriptor.PublicKey) bool {
	for _, d := range s.descriptors {
		if d.Equal(pk) {
			return true
		}
	}
	return false
}
