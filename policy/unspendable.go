package policy

import (
	"crypto/sha256"

	"github.com/btcsuite/btcd/btcec/v2"
)

// unspendableSeed is the fixed input this port hashes to derive the taproot
// unspendable internal key. Every implementation of this system MUST derive
// the same point from the same seed so that policies compiled from the same
// Concrete expression produce byte-identical descriptors.
const unspendableSeed = "coinstr/unspendable-key"

// UnspendableInternalKey deterministically derives a 32-byte x-only
// secp256k1 point with no known discrete log: SHA-256 of a fixed domain
// string, re-hashed with SHA-256 until the digest, prefixed with 0x02,
// parses as a valid compressed public key. The domain separator is our
// own rather than the BIP-341 "nothing up my sleeve" string, so this key
// is unrelated to that one and to any signer's key.
func UnspendableInternalKey() [32]byte {
	h := sha256.Sum256([]byte(unspendableSeed))
	for {
		if _, err := btcec.ParsePubKey(append([]byte{0x02}, h[:]...)); err == nil {
			return h
		}
		h = sha256.Sum256(h[:])
	}
}
