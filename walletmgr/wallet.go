package walletmgr

import (
	"context"
	"sync"
	"time"

	"github.com/3yekn/coinstr/policy"
	"github.com/3yekn/coinstr/proposal"
	"github.com/3yekn/coinstr/vaultdb"
	"github.com/btcsuite/btcd/chaincfg"
)

// AddressInfo is one derived address and whether it has been used.
type AddressInfo struct {
	Address string
	Used    bool
}

// TxInfo is a cached transaction the watch-only wallet has observed.
type TxInfo struct {
	Txid          string
	Confirmations uint32
	Timestamp     time.Time
}

// Wallet is a per-vault watch-only wallet following a taproot output
// descriptor, generalizing lnwallet.WalletController (lnwallet/interface.go)
// from "wallet with keys" to "wallet that only ever observes a descriptor".
// It satisfies proposal.Wallet.
type Wallet struct {
	mu sync.RWMutex

	vaultID    vaultdb.VaultIdentifier
	descriptor string
	pol        *policy.Policy
	network    *chaincfg.Params

	utxos      []proposal.Utxo
	addresses  []AddressInfo
	txs        []TxInfo
	checkpoint *proposal.Checkpoint
	lastSync   time.Time
}

// NewWallet constructs a watch-only wallet for a vault's policy.
func NewWallet(vaultID vaultdb.VaultIdentifier, pol *policy.Policy) *Wallet {
	return &Wallet{
		vaultID:    vaultID,
		descriptor: pol.Descriptor.String(),
		pol:        pol,
		network:    pol.Network,
	}
}

// ListUnspent satisfies proposal.Wallet.
func (w *Wallet) ListUnspent(ctx context.Context) ([]proposal.Utxo, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return append([]proposal.Utxo{}, w.utxos...), nil
}

// LatestCheckpoint satisfies proposal.Wallet.
func (w *Wallet) LatestCheckpoint(ctx context.Context) (*proposal.Checkpoint, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.checkpoint, nil
}

// Descriptor satisfies proposal.Wallet.
func (w *Wallet) Descriptor() string { return w.descriptor }

// Network satisfies proposal.Wallet.
func (w *Wallet) Network() *chaincfg.Params { return w.network }

// Policy satisfies proposal.Wallet.
func (w *Wallet) Policy() *policy.Policy { return w.pol }

// LastUnusedAddress satisfies proposal.Wallet.
func (w *Wallet) LastUnusedAddress(ctx context.Context) (string, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	for _, a := range w.addresses {
		if !a.Used {
			return a.Address, nil
		}
	}
	if len(w.addresses) > 0 {
		return w.addresses[len(w.addresses)-1].Address, nil
	}
	return "", nil
}

// GetBalance returns the sum of every cached unspent output's value.
func (w *Wallet) GetBalance() int64 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	var total int64
	for _, u := range w.utxos {
		total += u.Value
	}
	return total
}

// ListUtxos returns a copy of the cached UTXO set.
func (w *Wallet) ListUtxos() []proposal.Utxo {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return append([]proposal.Utxo{}, w.utxos...)
}

// GetTxs returns the cached transaction history.
func (w *Wallet) GetTxs() []TxInfo {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return append([]TxInfo{}, w.txs...)
}

// GetAddresses returns every derived address.
func (w *Wallet) GetAddresses() []AddressInfo {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return append([]AddressInfo{}, w.addresses...)
}

// GetAddressesBalances returns an entry for every derived address. It does
// not match cached UTXOs to addresses, so every balance it reports is 0.
func (w *Wallet) GetAddressesBalances() map[string]int64 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	balances := make(map[string]int64, len(w.addresses))
	for _, a := range w.addresses {
		balances[a.Address] = 0
	}
	return balances
}

// LastSync returns when this wallet last completed a timechain sync.
func (w *Wallet) LastSync() time.Time {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.lastSync
}

// applySyncResult replaces the cached wallet state after a successful
// Electrum sync. Unexported: only the manager's sync path calls it, since
// the source of truth for "what did the chain say" is the sync
// implementation, not a public setter callers could use to desync state
// from chain reality.
func (w *Wallet) applySyncResult(utxos []proposal.Utxo, addrs []AddressInfo, txs []TxInfo,
	checkpoint *proposal.Checkpoint, now time.Time) {

	w.mu.Lock()
	defer w.mu.Unlock()
	w.utxos = utxos
	w.addresses = addrs
	w.txs = txs
	w.checkpoint = checkpoint
	w.lastSync = now
}
