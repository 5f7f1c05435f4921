package policy

import (
	"errors"

	"github.com/3yekn/coinstr/descriptor"
)

// Sentinel errors returned by this package, using package-level
// `var Err... = errors.New(...)` values for simple, unparameterized
// failure modes.
var (
	// ErrNotTaprootDescriptor is returned when a descriptor is not of
	// taproot (`tr()`) form. It is the same value as
	// descriptor.ErrNotTaprootDescriptor, which FromDescriptor passes through.
	ErrNotTaprootDescriptor = descriptor.ErrNotTaprootDescriptor

	// ErrInvalidPolicy is returned when a concrete policy expression
	// fails to parse.
	ErrInvalidPolicy = errors.New("policy: invalid policy expression")

	// ErrEmptyMembers names a policy publish that carries no member
	// pubkeys. No function in this package returns it; the vault store
	// rejects such a publish with vaultdb.ErrEmptyMembers.
	ErrEmptyMembers = errors.New("policy: members must not be empty")

	// ErrWalletSpendingPolicyNotFound names a wallet with no loaded
	// spending policy for the requested vault. No function in this
	// module returns it.
	ErrWalletSpendingPolicyNotFound = errors.New("policy: wallet spending policy not found")
)

// ParseError wraps both underlying parse attempts performed by
// FromDescOrPolicy, reporting both failures the way the reference
// implementation's `DescOrPolicy` error variant does.
type ParseError struct {
	DescriptorErr error
	PolicyErr     error
}

func (e *ParseError) Error() string {
	return "policy: not a valid descriptor (" + e.DescriptorErr.Error() +
		") nor a valid policy (" + e.PolicyErr.Error() + ")"
}

func (e *ParseError) Unwrap() []error {
	return []error{e.DescriptorErr, e.PolicyErr}
}
