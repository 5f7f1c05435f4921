package descriptor

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// Purpose identifies the BIP derivation scheme a descriptor public key was
// derived under. HD derivation itself is out of scope for this package; a
// Purpose is only ever attached to a key that has already been derived
// elsewhere and handed to us.
type Purpose uint8

const (
	// PurposeBIP48P2WSH is the purpose for a P2WSH multisig account.
	PurposeBIP48P2WSH Purpose = iota
	// PurposeBIP48P2TR is the purpose for a taproot multisig account.
	PurposeBIP48P2TR
	// PurposeBIP86 is the purpose for a single-sig taproot account.
	PurposeBIP86
)

// String renders the purpose the way it appears in a derivation path.
func (p Purpose) String() string {
	switch p {
	case PurposeBIP48P2WSH:
		return "48'/.../2'"
	case PurposeBIP48P2TR:
		return "48'/.../3'"
	case PurposeBIP86:
		return "86'"
	default:
		return "unknown"
	}
}

// AsUint32 returns the hardened child index this purpose derives at the
// first path component.
func (p Purpose) AsUint32() uint32 {
	switch p {
	case PurposeBIP48P2WSH, PurposeBIP48P2TR:
		return 48
	case PurposeBIP86:
		return 86
	default:
		return 0
	}
}

// Fingerprint is the 4-byte BIP-32 fingerprint of an extended public key.
type Fingerprint [4]byte

// String renders the fingerprint as lowercase hex, the form used for
// substring matching against a descriptor string.
func (f Fingerprint) String() string {
	return hex.EncodeToString(f[:])
}

// ParseFingerprint decodes an 8-character hex fingerprint.
func ParseFingerprint(s string) (Fingerprint, error) {
	var fp Fingerprint
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != 4 {
		return fp, fmt.Errorf("descriptor: invalid fingerprint %q", s)
	}
	copy(fp[:], b)
	return fp, nil
}

// KeyOrigin records the master fingerprint and derivation path a public key
// was derived from, the bracketed `[fp/path]` prefix of a descriptor key
// expression.
type KeyOrigin struct {
	Fingerprint Fingerprint
	Path        []uint32 // each entry's top bit set means hardened
}

// hardenedBit marks a path component as hardened.
const hardenedBit = uint32(1) << 31

// Hardened wraps an index as a hardened derivation step.
func Hardened(index uint32) uint32 {
	return index | hardenedBit
}

// IsHardened reports whether a path component is hardened.
func IsHardened(component uint32) bool {
	return component&hardenedBit != 0
}

// PathIndex returns the unhardened numeric value of a path component.
func PathIndex(component uint32) uint32 {
	return component &^ hardenedBit
}

func pathString(path []uint32) string {
	parts := make([]string, len(path))
	for i, c := range path {
		if IsHardened(c) {
			parts[i] = strconv.FormatUint(uint64(PathIndex(c)), 10) + "'"
		} else {
			parts[i] = strconv.FormatUint(uint64(c), 10)
		}
	}
	return strings.Join(parts, "/")
}

// String renders the key origin as `[fingerprint/path]`.
func (o KeyOrigin) String() string {
	if len(o.Path) == 0 {
		return "[" + o.Fingerprint.String() + "]"
	}
	return "[" + o.Fingerprint.String() + "/" + pathString(o.Path) + "]"
}

// PublicKey is a descriptor public key: an origin plus the raw key material.
// Full BIP-32 extended-key (xpub) serialization is out of scope here — this
// type carries only what the policy engine needs: a stable, parseable
// textual form that embeds the owning fingerprint so substring search
// against a descriptor string (search_used_signers) works.
type PublicKey struct {
	Origin KeyOrigin
	Key    []byte // 32-byte x-only or 33-byte compressed secp256k1 key
}

// String renders the descriptor key expression `[fp/path]hexkey`.
func (k PublicKey) String() string {
	return k.Origin.String() + hex.EncodeToString(k.Key)
}

// Equal reports whether two public keys refer to the same key material.
func (k PublicKey) Equal(other PublicKey) bool {
	return k.Origin.Fingerprint == other.Origin.Fingerprint &&
		string(k.Key) == string(other.Key)
}

// ParsePublicKey parses a `[fp/path]hexkey` descriptor key expression.
func ParsePublicKey(s string) (PublicKey, error) {
	var pk PublicKey
	if !strings.HasPrefix(s, "[") {
		return pk, fmt.Errorf("descriptor: key expression missing origin: %q", s)
	}
	end := strings.Index(s, "]")
	if end < 0 {
		return pk, fmt.Errorf("descriptor: unterminated origin in %q", s)
	}
	origin := s[1:end]
	rest := s[end+1:]

	segs := strings.Split(origin, "/")
	fp, err := ParseFingerprint(segs[0])
	if err != nil {
		return pk, err
	}
	path := make([]uint32, 0, len(segs)-1)
	for _, seg := range segs[1:] {
		hardened := strings.HasSuffix(seg, "'")
		seg = strings.TrimSuffix(seg, "'")
		idx, err := strconv.ParseUint(seg, 10, 32)
		if err != nil {
			return pk, fmt.Errorf("descriptor: bad path component %q: %w", seg, err)
		}
		component := uint32(idx)
		if hardened {
			component = Hardened(component)
		}
		path = append(path, component)
	}

	key, err := hex.DecodeString(rest)
	if err != nil {
		return pk, fmt.Errorf("descriptor: bad key hex %q: %w", rest, err)
	}

	pk.Origin = KeyOrigin{Fingerprint: fp, Path: path}
	pk.Key = key
	return pk, nil
}
