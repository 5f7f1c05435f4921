package proposal

import (
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/wire"
)

// Utxo is a spendable output belonging to a watch-only vault wallet. It
// wraps the wire output plus the outpoint and confirmation metadata needed
// for both coin selection and relative-timelock checks.
type Utxo struct {
	wire.TxOut
	wire.OutPoint

	// Confirmations is the number of confirmations this output has at
	// the checkpoint height used to build the current spend, or 0 if
	// unconfirmed.
	Confirmations uint32

	// Frozen marks a UTXO reserved by another in-flight proposal.
	Frozen bool
}

// FeeRate is expressed in satoshis per 1000 virtual bytes, the BIP-141
// convention, matching a sat-per-kilo-unit chainfee type but without
// pulling in a full estimator subsystem (out of scope here — callers
// supply a rate sourced from the wallet manager's fee estimate).
type FeeRate btcutil.Amount

// FeeForVSize returns the absolute fee for a transaction of the given
// virtual size in bytes.
func (r FeeRate) FeeForVSize(vsize int64) btcutil.Amount {
	return btcutil.Amount(int64(r) * vsize / 1000)
}

// selectInputs accumulates coins in order until their sum covers amt,
// adapted from a channel-funding coin selector with its Coin type replaced
// by a spendable Utxo.
func selectInputs(amt btcutil.Amount, utxos []Utxo) (btcutil.Amount, []Utxo, error) {
	selected := btcutil.Amount(0)
	for i, u := range utxos {
		selected += btcutil.Amount(u.Value)
		if selected >= amt {
			return selected, utxos[:i+1], nil
		}
	}
	return 0, nil, &ErrInsufficientFunds{AmountNeeded: amt, AmountAvailable: selected}
}

// taprootInputVSize is the approximate virtual size contribution of one
// key-path-spend taproot input (36 outpoint + 4 sequence + 1 witness count +
// 1 stack-item-count + 65 signature byte, amortized over the witness
// discount).
const taprootInputVSize = 57

// taprootOutputVSize is the approximate virtual size of one P2TR output
// (8 value + 1 script length + 34 script).
const taprootOutputVSize = 43

// CoinSelect selects UTXOs to cover amt at feeRate, iterating fee estimation
// the same way a channel-funding CoinSelect does: an initial selection
// establishes a size estimate, and selection is re-run with a larger target if the
// leftover amount can't cover the estimated fee. Returns the selected UTXOs
// and the change amount (0 if the result should be a drain, i.e. no change
// output).
func CoinSelect(feeRate FeeRate, amt btcutil.Amount, utxos []Utxo) ([]Utxo, btcutil.Amount, error) {
	amtNeeded := amt
	for {
		total, selected, err := selectInputs(amtNeeded, utxos)
		if err != nil {
			return nil, 0, err
		}

		vsize := int64(len(selected))*taprootInputVSize + taprootOutputVSize*2
		requiredFee := feeRate.FeeForVSize(vsize)

		overshoot := total - amt
		if overshoot < requiredFee {
			amtNeeded = amt + requiredFee
			continue
		}

		return selected, overshoot - requiredFee, nil
	}
}

// DrainAmount sums every non-frozen UTXO's value, the total available to
// send in an Amount::Max spend before fees.
func DrainAmount(utxos []Utxo) btcutil.Amount {
	var total btcutil.Amount
	for _, u := range utxos {
		if !u.Frozen {
			total += btcutil.Amount(u.Value)
		}
	}
	return total
}
