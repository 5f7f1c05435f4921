package signer

import (
	"context"

	"github.com/btcsuite/btcd/btcutil/psbt"
)

// HardwareSigner is the capability interface a connected signing device
// implements: reading its master fingerprint and per-purpose public keys,
// and signing a PSBT's inputs in place. Devices that can only export key
// material (air-gapped, SD-card based) do not implement this interface —
// they are represented purely as CoreSigner values (built via AirGap, or
// via ParseColdcardExport for a Coldcard export).
type HardwareSigner interface {
	// Fingerprint reads the device's master key fingerprint.
	Fingerprint(ctx context.Context) (Fingerprint4, error)

	// SignPSBT signs every input of p the device holds a matching key for,
	// returning the updated PSBT. Devices that cannot partially sign return
	// ErrUnsupportedOperation instead of a best-effort partial result.
	SignPSBT(ctx context.Context, p *psbt.Packet) (*psbt.Packet, error)
}

// Fingerprint4 is a device master fingerprint as read directly off
// hardware, before it is wrapped as a descriptor.Fingerprint.
type Fingerprint4 [4]byte
