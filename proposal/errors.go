package proposal

import (
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
)

// Sentinel errors for the preconditions spend() checks, in the exact order
// they are raised.
var (
	// ErrNoUtxosAvailable is returned when a wallet has no UTXOs at all,
	// or when every UTXO is excluded as frozen by another proposal.
	ErrNoUtxosAvailable = errors.New("proposal: wallet contains no usable UTXO")

	// ErrCheckpointNotAvailable is returned when the wallet has not yet
	// synced far enough to know a checkpoint height.
	ErrCheckpointNotAvailable = errors.New("proposal: no checkpoint available")

	// ErrNoUtxosSelected is returned when a caller-provided utxo list is
	// present but empty.
	ErrNoUtxosSelected = errors.New("proposal: no utxos selected")

	// ErrAbsoluteTimelockNotSatisfied is returned when the policy's
	// absolute timelock has not yet expired at the checkpoint height/time.
	ErrAbsoluteTimelockNotSatisfied = errors.New("proposal: absolute timelock not satisfied")

	// ErrRelativeTimelockNotSatisfied is returned when an input's
	// confirmation depth has not yet reached the policy's relative
	// timelock sequence.
	ErrRelativeTimelockNotSatisfied = errors.New("proposal: relative timelock not satisfied")

	// ErrVaultNotFound is returned by ProofOfReserve when the wallet has
	// no loaded spending policy.
	ErrVaultNotFound = errors.New("proposal: vault spending policy not found")
)

// ErrInsufficientFunds mirrors a channel-funding coin selector's
// ErrInsufficientFunds shape: a parameterized error reporting how much was
// needed vs. available.
type ErrInsufficientFunds struct {
	AmountNeeded    btcutil.Amount
	AmountAvailable btcutil.Amount
}

func (e *ErrInsufficientFunds) Error() string {
	return fmt.Sprintf("proposal: insufficient funds to build spend, need %v only have %v available",
		e.AmountNeeded, e.AmountAvailable)
}
