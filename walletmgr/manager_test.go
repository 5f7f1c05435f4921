package walletmgr

import (
	"context"
	"testing"

	"github.com/3yekn/coinstr/policy"
	"github.com/3yekn/coinstr/vaultdb"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/stretchr/testify/require"
)

func testPolicy(t *testing.T) *policy.Policy {
	p, err := policy.FromPolicy("vault", "multi_a(2,[aaaaaaaa]0211111111111111111111111111111111111111111111111111111111111111,[bbbbbbbb]0222222222222222222222222222222222222222222222222222222222222222)", "", &chaincfg.MainNetParams)
	require.NoError(t, err)
	return p
}

func TestLoadPolicyIdempotent(t *testing.T) {
	m := NewManager()
	vaultID := vaultdb.ComputeVaultIdentifier("desc", "shared")

	w1 := m.LoadPolicy(vaultID, testPolicy(t))
	w2 := m.LoadPolicy(vaultID, testPolicy(t))
	require.Same(t, w1, w2)
	require.Len(t, m.LoadedVaults(), 1)
}

func TestUnloadPolicyIdempotent(t *testing.T) {
	m := NewManager()
	vaultID := vaultdb.ComputeVaultIdentifier("desc", "shared")
	m.LoadPolicy(vaultID, testPolicy(t))

	m.UnloadPolicy(vaultID)
	_, ok := m.Wallet(vaultID)
	require.False(t, ok)

	m.UnloadPolicy(vaultID) // no-op, must not panic
}

func TestWalletQueriesBeforeSync(t *testing.T) {
	w := NewWallet(vaultdb.ComputeVaultIdentifier("desc", "shared"), testPolicy(t))
	utxos, err := w.ListUnspent(context.Background())
	require.NoError(t, err)
	require.Empty(t, utxos)

	cp, err := w.LatestCheckpoint(context.Background())
	require.NoError(t, err)
	require.Nil(t, cp)

	addr, err := w.LastUnusedAddress(context.Background())
	require.NoError(t, err)
	require.Empty(t, addr)
}
