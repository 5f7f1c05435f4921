package signer

import "errors"

// Sentinel errors returned by CoreSigner.AddDescriptor's validation steps.
var (
	// ErrFingerprintNotMatch is returned when a descriptor's origin
	// fingerprint does not match the signer's own fingerprint.
	ErrFingerprintNotMatch = errors.New("signer: descriptor fingerprint does not match signer")

	// ErrDerivationPathNotFound is returned when a descriptor key carries
	// no derivation path, or FromSeed's required purpose set is missing a
	// derived key.
	ErrDerivationPathNotFound = errors.New("signer: derivation path not found")

	// ErrPurposeNotMatch is returned when a descriptor's first path
	// component is not hardened or does not match the target purpose.
	ErrPurposeNotMatch = errors.New("signer: derivation purpose does not match")

	// ErrNetworkNotFound is returned when a descriptor's path is too short
	// to carry a coin-type component.
	ErrNetworkNotFound = errors.New("signer: derivation path has no coin type")

	// ErrNetworkNotMatch is returned when a descriptor's coin-type
	// component does not match the signer's configured network.
	ErrNetworkNotMatch = errors.New("signer: derivation coin type does not match network")

	// ErrUnsupportedOperation is returned by a HardwareSigner capability
	// method the underlying device does not implement.
	ErrUnsupportedOperation = errors.New("signer: operation not supported by this device")
)
