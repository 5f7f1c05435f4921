package walletmgr

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/3yekn/coinstr/policy"
	"github.com/3yekn/coinstr/proposal"
	"github.com/3yekn/coinstr/vaultdb"
	"github.com/3yekn/coinstr/walletmgr/electrum"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

// ProgressNotifier is the minimal capability SyncWithTimechain needs to
// report per-vault sync progress, satisfied by notifier.Bus without this
// package importing it directly.
type ProgressNotifier interface {
	Notify(message string)
}

// Manager owns one watch-only Wallet per loaded vault, following the
// teacher's package-level-registry locking idiom
// (RegisterWallet/RegisteredWallets in lnwallet/interface.go) scoped to a
// per-process Manager instance.
type Manager struct {
	mu      sync.RWMutex
	wallets map[vaultdb.VaultIdentifier]*Wallet
}

// NewManager constructs an empty Manager.
func NewManager() *Manager {
	return &Manager{wallets: make(map[vaultdb.VaultIdentifier]*Wallet)}
}

// LoadPolicy registers the watch-only wallet for a vault's policy. If a
// wallet is already loaded for vaultID, it is returned unchanged and pol
// is ignored.
func (m *Manager) LoadPolicy(vaultID vaultdb.VaultIdentifier, pol *policy.Policy) *Wallet {
	m.mu.Lock()
	defer m.mu.Unlock()
	if w, ok := m.wallets[vaultID]; ok {
		return w
	}
	w := NewWallet(vaultID, pol)
	m.wallets[vaultID] = w
	return w
}

// UnloadPolicy removes a vault's wallet; idempotent.
func (m *Manager) UnloadPolicy(vaultID vaultdb.VaultIdentifier) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.wallets, vaultID)
}

// Wallet returns the loaded wallet for vaultID, if any.
func (m *Manager) Wallet(vaultID vaultdb.VaultIdentifier) (*Wallet, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	w, ok := m.wallets[vaultID]
	return w, ok
}

// LoadedVaults returns every vault id with a loaded wallet.
func (m *Manager) LoadedVaults() []vaultdb.VaultIdentifier {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]vaultdb.VaultIdentifier, 0, len(m.wallets))
	for id := range m.wallets {
		out = append(out, id)
	}
	return out
}

// scriptHash computes the Electrum scripthash (reversed sha256,
// hex) of a taproot key-path output script for the policy's internal key.
// Scripts committing to the script-path merkle root are out of scope here:
// the wallet manager watches the key-path output only, matching what a
// freshly-created vault's first receive address looks like before any
// script-path spend has ever been needed.
func scriptHash(pol *policy.Policy) (string, error) {
	internal := pol.Descriptor.InternalKey()
	pubKey, err := schnorr.ParsePubKey(internal)
	if err != nil {
		return "", err
	}
	pkScript, err := txscript.PayToTaprootScript(pubKey)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(pkScript)
	reversed := make([]byte, len(sum))
	for i := range sum {
		reversed[i] = sum[len(sum)-1-i]
	}
	return hex.EncodeToString(reversed), nil
}

// SyncWithTimechain connects to electrumEndpoint (optionally via a SOCKS5
// proxy) and refreshes every loaded wallet's cached UTXO set and
// checkpoint, emitting one progress notification per vault. Errors for one
// vault are logged and do not abort the others, matching a
// background-scheduler's partial-failure error policy.
func (m *Manager) SyncWithTimechain(ctx context.Context, electrumEndpoint string, useTLS bool,
	socksProxy string, notifier ProgressNotifier) error {

	client, err := electrum.Dial(ctx, electrumEndpoint, useTLS, socksProxy)
	if err != nil {
		return err
	}
	defer client.Close()

	tip, err := client.SubscribeHeaders(ctx)
	if err != nil {
		return err
	}

	for _, vaultID := range m.LoadedVaults() {
		w, ok := m.Wallet(vaultID)
		if !ok {
			continue
		}
		if err := m.syncOne(ctx, client, w, tip.Height); err != nil {
			log.Warnf("timechain sync failed for vault %s: %v", vaultID.String(), err)
			continue
		}
		if notifier != nil {
			notifier.Notify("synced vault " + vaultID.String())
		}
	}
	return nil
}

func (m *Manager) syncOne(ctx context.Context, client *electrum.Client, w *Wallet, tipHeight int64) error {
	hash, err := scriptHash(w.Policy())
	if err != nil {
		return err
	}

	unspent, err := client.ListUnspent(ctx, hash)
	if err != nil {
		return err
	}

	utxos := make([]proposal.Utxo, 0, len(unspent))
	for _, u := range unspent {
		var confs uint32
		if u.Height > 0 && tipHeight >= u.Height {
			confs = uint32(tipHeight-u.Height) + 1
		}
		txHash, err := chainhash.NewHashFromStr(u.TxHash)
		if err != nil {
			continue
		}
		utxos = append(utxos, proposal.Utxo{
			TxOut:         wire.TxOut{Value: u.Value},
			OutPoint:      wire.OutPoint{Hash: *txHash, Index: uint32(u.TxPos)},
			Confirmations: confs,
		})
	}

	checkpoint := &proposal.Checkpoint{Height: uint32(tipHeight), Time: time.Now()}
	w.applySyncResult(utxos, w.GetAddresses(), w.GetTxs(), checkpoint, time.Now())
	return nil
}
