package proposal

import (
	"context"
	"testing"
	"time"

	"github.com/3yekn/coinstr/policy"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"
)

type fakeWallet struct {
	utxos      []Utxo
	checkpoint *Checkpoint
	pol        *policy.Policy
	net        *chaincfg.Params
	addr       string
}

func (w *fakeWallet) ListUnspent(ctx context.Context) ([]Utxo, error) { return w.utxos, nil }
func (w *fakeWallet) LatestCheckpoint(ctx context.Context) (*Checkpoint, error) {
	return w.checkpoint, nil
}
func (w *fakeWallet) Descriptor() string             { return w.pol.Descriptor.String() }
func (w *fakeWallet) Network() *chaincfg.Params      { return w.net }
func (w *fakeWallet) Policy() *policy.Policy         { return w.pol }
func (w *fakeWallet) LastUnusedAddress(ctx context.Context) (string, error) {
	return w.addr, nil
}

func multisigPolicy(t *testing.T) *policy.Policy {
	k1 := testKey(t, "aaaaaaaa")
	k2 := testKey(t, "bbbbbbbb")
	k3 := testKey(t, "cccccccc")
	p, err := policy.FromPolicy("vault", "multi_a(2,"+k1.String()+","+k2.String()+","+k3.String()+")", "", &chaincfg.MainNetParams)
	require.NoError(t, err)
	return p
}

func TestSpendNoUtxosAvailable(t *testing.T) {
	w := &fakeWallet{
		utxos: nil,
		pol:   multisigPolicy(t),
		net:   &chaincfg.MainNetParams,
	}
	_, err := Spend(context.Background(), w, SpendParams{
		Address: "bc1qexampleaddress",
		Amount:  MaxAmount,
	})
	require.ErrorIs(t, err, ErrNoUtxosAvailable)
}

func TestSpendFrozenCoversAllUtxos(t *testing.T) {
	op := wire.OutPoint{Hash: chainhash.Hash{1}, Index: 0}
	w := &fakeWallet{
		utxos: []Utxo{
			{TxOut: wire.TxOut{Value: 100_000}, OutPoint: op, Confirmations: 10},
		},
		checkpoint: &Checkpoint{Height: 100, Time: time.Now()},
		pol:        multisigPolicy(t),
		net:        &chaincfg.MainNetParams,
	}
	_, err := Spend(context.Background(), w, SpendParams{
		Address:     "bc1qexampleaddress",
		Amount:      MaxAmount,
		FrozenUtxos: []wire.OutPoint{op},
	})
	require.ErrorIs(t, err, ErrNoUtxosAvailable)
}

func TestSpendCheckpointNotAvailable(t *testing.T) {
	w := &fakeWallet{
		utxos: []Utxo{
			{TxOut: wire.TxOut{Value: 100_000}, OutPoint: wire.OutPoint{Hash: chainhash.Hash{1}, Index: 0}},
		},
		checkpoint: nil,
		pol:        multisigPolicy(t),
		net:        &chaincfg.MainNetParams,
	}
	_, err := Spend(context.Background(), w, SpendParams{
		Address: "bc1qexampleaddress",
		Amount:  MaxAmount,
	})
	require.ErrorIs(t, err, ErrCheckpointNotAvailable)
}

func TestSpendAbsoluteTimelockNotSatisfied(t *testing.T) {
	k1 := testKey(t, "aaaaaaaa")
	pol, err := policy.FromPolicy("hold", "and(pk("+k1.String()+"),after(840000))", "", &chaincfg.MainNetParams)
	require.NoError(t, err)

	w := &fakeWallet{
		utxos: []Utxo{
			{TxOut: wire.TxOut{Value: 100_000}, OutPoint: wire.OutPoint{Hash: chainhash.Hash{1}, Index: 0}, Confirmations: 10},
		},
		checkpoint: &Checkpoint{Height: 839_999, Time: time.Now()},
		pol:        pol,
		net:        &chaincfg.MainNetParams,
	}
	_, err = Spend(context.Background(), w, SpendParams{
		Address: "bc1qexampleaddress",
		Amount:  MaxAmount,
	})
	require.ErrorIs(t, err, ErrAbsoluteTimelockNotSatisfied)
}

func TestSpendAbsoluteTimelockSatisfiedProducesPSBT(t *testing.T) {
	k1 := testKey(t, "aaaaaaaa")
	pol, err := policy.FromPolicy("hold", "and(pk("+k1.String()+"),after(840000))", "", &chaincfg.MainNetParams)
	require.NoError(t, err)

	w := &fakeWallet{
		utxos: []Utxo{
			{TxOut: wire.TxOut{Value: 100_000}, OutPoint: wire.OutPoint{Hash: chainhash.Hash{1}, Index: 0}, Confirmations: 10},
		},
		checkpoint: &Checkpoint{Height: 840_000, Time: time.Now()},
		pol:        pol,
		net:        &chaincfg.MainNetParams,
		addr:       "bc1qw508d6qejxtdg4y5r3zarvary0c5xw7kv8f3t4",
	}
	p, err := Spend(context.Background(), w, SpendParams{
		Address: "bc1qw508d6qejxtdg4y5r3zarvary0c5xw7kv8f3t4",
		Amount:  MaxAmount,
	})
	require.NoError(t, err)
	require.NotNil(t, p.PSBT)
	require.Equal(t, KindSpending, p.Kind)
}

func TestSpendRelativeTimelockNotSatisfied(t *testing.T) {
	k1 := testKey(t, "aaaaaaaa")
	pol, err := policy.FromPolicy("decaying", "and(pk("+k1.String()+"),older(6))", "", &chaincfg.MainNetParams)
	require.NoError(t, err)

	w := &fakeWallet{
		utxos: []Utxo{
			{TxOut: wire.TxOut{Value: 100_000}, OutPoint: wire.OutPoint{Hash: chainhash.Hash{1}, Index: 0}, Confirmations: 2},
		},
		checkpoint: &Checkpoint{Height: 100, Time: time.Now()},
		pol:        pol,
		net:        &chaincfg.MainNetParams,
	}
	_, err = Spend(context.Background(), w, SpendParams{
		Address: "bc1qexampleaddress",
		Amount:  MaxAmount,
	})
	require.ErrorIs(t, err, ErrRelativeTimelockNotSatisfied)
}

func TestSpendRelativeTimelockSatisfiedProducesPSBT(t *testing.T) {
	k1 := testKey(t, "aaaaaaaa")
	pol, err := policy.FromPolicy("decaying", "and(pk("+k1.String()+"),older(6))", "", &chaincfg.MainNetParams)
	require.NoError(t, err)

	w := &fakeWallet{
		utxos: []Utxo{
			{TxOut: wire.TxOut{Value: 100_000}, OutPoint: wire.OutPoint{Hash: chainhash.Hash{1}, Index: 0}, Confirmations: 6},
		},
		checkpoint: &Checkpoint{Height: 100, Time: time.Now()},
		pol:        pol,
		net:        &chaincfg.MainNetParams,
		addr:       "bc1qw508d6qejxtdg4y5r3zarvary0c5xw7kv8f3t4",
	}
	p, err := Spend(context.Background(), w, SpendParams{
		Address: "bc1qw508d6qejxtdg4y5r3zarvary0c5xw7kv8f3t4",
		Amount:  MaxAmount,
	})
	require.NoError(t, err)
	require.NotNil(t, p.PSBT)
	require.Equal(t, KindSpending, p.Kind)
}

func TestSpendNoUtxosSelected(t *testing.T) {
	w := &fakeWallet{
		utxos: []Utxo{
			{TxOut: wire.TxOut{Value: 100_000}, OutPoint: wire.OutPoint{Hash: chainhash.Hash{1}, Index: 0}, Confirmations: 10},
		},
		checkpoint: &Checkpoint{Height: 100, Time: time.Now()},
		pol:        multisigPolicy(t),
		net:        &chaincfg.MainNetParams,
	}
	_, err := Spend(context.Background(), w, SpendParams{
		Address: "bc1qexampleaddress",
		Amount:  MaxAmount,
		Utxos:   []wire.OutPoint{},
	})
	require.ErrorIs(t, err, ErrNoUtxosSelected)
}

func testKey(t *testing.T, fp string) keyStringer {
	return keyStringer{fp: fp}
}

type keyStringer struct{ fp string }

func (k keyStringer) String() string {
	return "[" + k.fp + "]02" + repeat("11", 32)
}

func repeat(s string, n int) string {
	out := make([]byte, 0, len(s)*n)
	for i := 0; i < n; i++ {
		out = append(out, s...)
	}
	return string(out)
}
