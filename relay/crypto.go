package relay

import (
	"encoding/hex"
	"fmt"

	"github.com/nbd-wtf/go-nostr/nip04"
)

// Nip04Encrypt encrypts plaintext for recipientPubkeyHex using our
// privateKeyHex, via go-nostr's NIP-04 implementation (ECDH-derived
// AES-256-CBC), adopted as-is rather than reinventing the wire/crypto
// format.
func Nip04Encrypt(privateKeyHex, recipientPubkeyHex, plaintext string) (string, error) {
	shared, err := nip04.ComputeSharedSecret(recipientPubkeyHex, privateKeyHex)
	if err != nil {
		return "", fmt.Errorf("relay: computing nip-04 shared secret: %w", err)
	}
	return nip04.Encrypt(plaintext, shared)
}

// Nip04Decrypt decrypts ciphertext sent by senderPubkeyHex using our
// privateKeyHex.
func Nip04Decrypt(privateKeyHex, senderPubkeyHex, ciphertext string) (string, error) {
	shared, err := nip04.ComputeSharedSecret(senderPubkeyHex, privateKeyHex)
	if err != nil {
		return "", fmt.Errorf("relay: computing nip-04 shared secret: %w", err)
	}
	return nip04.Decrypt(ciphertext, shared)
}

// Nip04EncryptWithKey encrypts plaintext directly under a pre-shared vault
// symmetric key (hex-encoded), the form a Policy/Proposal/CompletedProposal
// event is encrypted under once the vault's SharedKey event has already
// been exchanged — no further ECDH derivation is performed.
func Nip04EncryptWithKey(sharedKeyHex, plaintext string) (string, error) {
	key, err := hex.DecodeString(sharedKeyHex)
	if err != nil {
		return "", fmt.Errorf("relay: bad shared key hex: %w", err)
	}
	return nip04.Encrypt(plaintext, key)
}

// Nip04DecryptWithKey decrypts ciphertext directly under a pre-shared vault
// symmetric key (hex-encoded).
func Nip04DecryptWithKey(sharedKeyHex, ciphertext string) (string, error) {
	key, err := hex.DecodeString(sharedKeyHex)
	if err != nil {
		return "", fmt.Errorf("relay: bad shared key hex: %w", err)
	}
	return nip04.Decrypt(ciphertext, key)
}
