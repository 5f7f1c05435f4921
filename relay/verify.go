package relay

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
)

// VerifyEventSignature checks that ev.Sig is a valid BIP-340 Schnorr
// signature by ev.PubKey over the SHA-256 digest of ev's canonical NIP-01
// serialization, the same "compute the digest, parse the key, verify the
// detached signature" shape a channel-announcement validator uses,
// generalized from two channel-announcement signatures to one event
// signature.
func VerifyEventSignature(ev *Event) error {
	serialized := ev.Serialize()
	digest := sha256.Sum256(serialized)

	pubKeyBytes, err := hex.DecodeString(ev.PubKey)
	if err != nil {
		return fmt.Errorf("%w: bad pubkey hex: %v", ErrInvalidSignature, err)
	}
	pubKey, err := schnorr.ParsePubKey(pubKeyBytes)
	if err != nil {
		return fmt.Errorf("%w: bad pubkey: %v", ErrInvalidSignature, err)
	}

	sigBytes, err := hex.DecodeString(ev.Sig)
	if err != nil {
		return fmt.Errorf("%w: bad signature hex: %v", ErrInvalidSignature, err)
	}
	sig, err := schnorr.ParseSignature(sigBytes)
	if err != nil {
		return fmt.Errorf("%w: bad signature: %v", ErrInvalidSignature, err)
	}

	if !sig.Verify(digest[:], pubKey) {
		return ErrInvalidSignature
	}
	return nil
}

// SignEvent computes ev.ID and ev.Sig in place: the SHA-256 digest of ev's
// canonical NIP-01 serialization, BIP-340-Schnorr-signed with
// privateKeyHex, the mirror image of VerifyEventSignature.
func SignEvent(ev *Event, privateKeyHex string) error {
	keyBytes, err := hex.DecodeString(privateKeyHex)
	if err != nil {
		return fmt.Errorf("relay: bad private key hex: %v", err)
	}
	privKey, _ := btcec.PrivKeyFromBytes(keyBytes)
	ev.PubKey = hex.EncodeToString(schnorr.SerializePubKey(privKey.PubKey()))

	serialized := ev.Serialize()
	digest := sha256.Sum256(serialized)

	sig, err := schnorr.Sign(privKey, digest[:])
	if err != nil {
		return fmt.Errorf("relay: signing event: %v", err)
	}

	ev.ID = hex.EncodeToString(digest[:])
	ev.Sig = hex.EncodeToString(sig.Serialize())
	return nil
}
