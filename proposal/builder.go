package proposal

import (
	"context"
	"time"

	"github.com/3yekn/coinstr/policy"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/wire"
)

// Checkpoint is the wallet's most recently synced chain tip, used both as
// the PSBT's locktime base and as the reference point for timelock checks.
type Checkpoint struct {
	Height uint32
	Time   time.Time
}

// Wallet is the subset of walletmgr.Wallet the proposal builder needs.
// Defined here, on the consumer side, so this package never imports
// walletmgr — the same pattern policy.SignerFingerprint uses to avoid a
// cycle with the signer package.
type Wallet interface {
	ListUnspent(ctx context.Context) ([]Utxo, error)
	LatestCheckpoint(ctx context.Context) (*Checkpoint, error)
	Descriptor() string
	Network() *chaincfg.Params
	Policy() *policy.Policy
	LastUnusedAddress(ctx context.Context) (string, error)
}

// Amount is the spend() amount parameter: either drain-everything (Max) or
// a fixed value (Custom).
type Amount struct {
	Max    bool
	Custom btcutil.Amount
}

// MaxAmount is the Amount value meaning "drain the wallet to the
// recipient".
var MaxAmount = Amount{Max: true}

// CustomAmount builds a fixed-value Amount.
func CustomAmount(sat btcutil.Amount) Amount {
	return Amount{Custom: sat}
}

// SpendParams collects spend()'s optional parameters.
type SpendParams struct {
	Address      string
	Amount       Amount
	Description  string
	FeeRate     FeeRate
	Utxos       []wire.OutPoint // manual selection, nil for automatic
	FrozenUtxos []wire.OutPoint
	PolicyPath  *policy.PolicyPathSelector
}

func containsOutpoint(set []wire.OutPoint, op wire.OutPoint) bool {
	for _, o := range set {
		if o == op {
			return true
		}
	}
	return false
}

// Spend builds a Proposal{Kind: KindSpending} PSBT, checking preconditions
// in the exact order the reference implementation does so the first
// violated precondition is always what's reported.
func Spend(ctx context.Context, w Wallet, p SpendParams) (*Proposal, error) {
	allUtxos, err := w.ListUnspent(ctx)
	if err != nil {
		return nil, err
	}
	if len(allUtxos) == 0 {
		return nil, ErrNoUtxosAvailable
	}

	checkpoint, err := w.LatestCheckpoint(ctx)
	if err != nil {
		return nil, err
	}
	if checkpoint == nil {
		return nil, ErrCheckpointNotAvailable
	}

	usable := make([]Utxo, 0, len(allUtxos))
	for _, u := range allUtxos {
		if containsOutpoint(p.FrozenUtxos, u.OutPoint) {
			continue
		}
		usable = append(usable, u)
	}
	if len(p.FrozenUtxos) > 0 && len(usable) == 0 {
		return nil, ErrNoUtxosAvailable
	}

	var selected []Utxo
	var changeAmt btcutil.Amount
	var spendAmt btcutil.Amount

	if p.Utxos != nil {
		if len(p.Utxos) == 0 {
			return nil, ErrNoUtxosSelected
		}
		for _, u := range usable {
			if containsOutpoint(p.Utxos, u.OutPoint) {
				selected = append(selected, u)
			}
		}
		if p.Amount.Max {
			spendAmt = DrainAmount(selected)
		} else {
			selected, changeAmt, err = coinSelectFrom(p.FeeRate, p.Amount.Custom, selected)
			if err != nil {
				return nil, err
			}
			spendAmt = p.Amount.Custom
		}
	} else if p.Amount.Max {
		selected = usable
		spendAmt = DrainAmount(selected)
	} else {
		selected, changeAmt, err = coinSelectFrom(p.FeeRate, p.Amount.Custom, usable)
		if err != nil {
			return nil, err
		}
		spendAmt = p.Amount.Custom
	}

	pol := w.Policy()
	if pol.HasTimelock() {
		if pol.HasAbsoluteTimelock() {
			if !isAbsoluteTimelockSatisfied(pol, checkpoint.Height, checkpoint.Time) {
				return nil, ErrAbsoluteTimelockNotSatisfied
			}
		}
		if pol.HasRelativeTimelock() {
			sequence, ok := extractOlderValue(pol)
			if ok {
				for _, u := range selected {
					if u.Confirmations < sequence {
						return nil, ErrRelativeTimelockNotSatisfied
					}
				}
			}
		}
	}

	tx, err := buildUnsignedTx(selected, p.Address, spendAmt, changeAmt, w)
	if err != nil {
		return nil, err
	}
	pkt, err := psbt.NewFromUnsignedTx(tx)
	if err != nil {
		return nil, err
	}
	if p.PolicyPath != nil {
		attachPolicyPath(pkt, p.PolicyPath)
	}

	finalAmount := spendAmt
	if p.Amount.Max {
		finalAmount = spendAmt - estimateFee(p.FeeRate, len(selected))
	}

	proposal := NewSpendingProposal(w.Descriptor(), p.Address, finalAmount, p.Description, pkt)
	return &proposal, nil
}

func coinSelectFrom(rate FeeRate, amt btcutil.Amount, utxos []Utxo) ([]Utxo, btcutil.Amount, error) {
	return CoinSelect(rate, amt, utxos)
}

func estimateFee(rate FeeRate, numInputs int) btcutil.Amount {
	return rate.FeeForVSize(int64(numInputs)*taprootInputVSize + taprootOutputVSize)
}

// isAbsoluteTimelockSatisfied mirrors
// smartvaults-core::Policy::spend's Height/Time comparison: a BIP-65
// locktime below 500,000,000 is a block height, at or above it is a Unix
// timestamp.
func isAbsoluteTimelockSatisfied(pol *policy.Policy, height uint32, now time.Time) bool {
	locktime, ok := extractAfterValue(pol)
	if !ok {
		return true
	}
	const locktimeThreshold = 500_000_000
	if locktime < locktimeThreshold {
		return height >= locktime
	}
	return uint64(now.Unix()) >= uint64(locktime)
}

func extractAfterValue(pol *policy.Policy) (uint32, bool) {
	item, err := pol.SatisfiableItem()
	if err != nil {
		return 0, false
	}
	return findAbsoluteTimelock(item)
}

func findAbsoluteTimelock(item policy.SatisfiableItem) (uint32, bool) {
	switch v := item.(type) {
	case policy.AbsoluteTimelock:
		return v.Value, true
	case policy.Thresh:
		for _, it := range v.Items {
			if val, ok := findAbsoluteTimelock(it); ok {
				return val, ok
			}
		}
	}
	return 0, false
}

// extractOlderValue returns the policy's `older(N)` sequence value, the
// minimum confirmation depth a selected UTXO must have reached, mirroring
// smartvaults-core::Policy::spend's
// `current_height.saturating_sub(height) < sequence.0` depth check.
func extractOlderValue(pol *policy.Policy) (uint32, bool) {
	item, err := pol.SatisfiableItem()
	if err != nil {
		return 0, false
	}
	return findRelativeTimelock(item)
}

func findRelativeTimelock(item policy.SatisfiableItem) (uint32, bool) {
	switch v := item.(type) {
	case policy.RelativeTimelock:
		return v.Value, true
	case policy.Thresh:
		for _, it := range v.Items {
			if val, ok := findRelativeTimelock(it); ok {
				return val, ok
			}
		}
	}
	return 0, false
}

// buildUnsignedTx composes the unsigned wire.MsgTx: one input per selected
// UTXO, a recipient output, and (for a non-draining custom spend) a change
// output back to the wallet's last-unused address.
func buildUnsignedTx(selected []Utxo, address string, spendAmt, changeAmt btcutil.Amount, w Wallet) (*wire.MsgTx, error) {
	tx := wire.NewMsgTx(2)
	for _, u := range selected {
		op := u.OutPoint
		txIn := wire.NewTxIn(&op, nil, nil)
		txIn.Sequence = wire.MaxTxInSequenceNum - 2 // RBF enabled
		tx.AddTxIn(txIn)
	}

	recipientScript, err := addressToScript(address, w.Network())
	if err != nil {
		return nil, err
	}
	tx.AddTxOut(wire.NewTxOut(int64(spendAmt), recipientScript))

	if changeAmt > 0 {
		changeAddr, err := w.LastUnusedAddress(context.Background())
		if err != nil {
			return nil, err
		}
		changeScript, err := addressToScript(changeAddr, w.Network())
		if err != nil {
			return nil, err
		}
		tx.AddTxOut(wire.NewTxOut(int64(changeAmt), changeScript))
	}

	return tx, nil
}

// attachPolicyPath records the caller-selected script-path branch on the
// PSBT's first input as an unknown key-value pair under the external
// keychain, the way a PSBT carries taproot leaf-script hints. The exact
// proprietary-field encoding is implementation-defined; what matters for
// this port is that the selector survives PSBT round-trips to be consumed
// at sign time.
func attachPolicyPath(pkt *psbt.Packet, selector *policy.PolicyPathSelector) {
	if len(pkt.Inputs) == 0 {
		return
	}
	data := encodeSelector(selector)
	pkt.Inputs[0].Unknowns = append(pkt.Inputs[0].Unknowns, &psbt.Unknown{
		Key:   []byte("coinstr-policy-path"),
		Value: data,
	})
}

func encodeSelector(selector *policy.PolicyPathSelector) []byte {
	paths := selector.Path
	if !selector.Complete {
		paths = selector.SelectedPath
	}
	var buf []byte
	for label, indices := range paths {
		buf = append(buf, []byte(label)...)
		buf = append(buf, ':')
		for _, i := range indices {
			buf = append(buf, byte(i))
		}
		buf = append(buf, ';')
	}
	return buf
}

// ProofOfReserve builds a Proposal{Kind: KindProofOfReserve} for message,
// signed under the wallet's fixed spending-policy id with policy path
// {id -> [1]} — the second branch (index 1) of the root 1-of-2 threshold
// between the key-path spend and the script-path policy, i.e. always the
// script path, never the internal key.
func ProofOfReserve(ctx context.Context, w Wallet, message string) (*Proposal, error) {
	pol := w.Policy()
	spendingPolicy, err := pol.SpendingPolicy()
	if err != nil {
		return nil, err
	}
	if spendingPolicy == nil {
		return nil, ErrVaultNotFound
	}

	selector := &policy.PolicyPathSelector{
		Complete: true,
		Path:     map[string][]int{spendingPolicy.ID: {1}},
	}

	tx := wire.NewMsgTx(2)
	pkt, err := psbt.NewFromUnsignedTx(tx)
	if err != nil {
		return nil, err
	}
	attachPolicyPath(pkt, selector)

	proposal := NewProofOfReserveProposal(w.Descriptor(), message, pkt)
	return &proposal, nil
}
