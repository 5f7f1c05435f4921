package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/urfave/cli"

	"github.com/3yekn/coinstr"
	"github.com/3yekn/coinstr/policy"
	"github.com/3yekn/coinstr/proposal"
	"github.com/3yekn/coinstr/vaultdb"
)

// appManager constructs a fresh, unpersisted Manager for the duration of
// one CLI invocation — this CLI talks to no running daemon.
func appManager(ctx *cli.Context) (*coinstr.Manager, error) {
	cfg := coinstr.DefaultConfig()
	cfg.Network = networkFromFlags(ctx)
	return coinstr.NewManager(cfg, nil), nil
}

// vaultFlags is the set of flags every command needs to locate and load a
// vault's descriptor before it can do anything else, since this CLI has no
// persistent daemon to talk to — each invocation loads the watch-only
// wallet fresh.
var vaultFlags = []cli.Flag{
	cli.StringFlag{Name: "descriptor", Usage: "taproot output descriptor"},
	cli.StringFlag{Name: "shared-key", Usage: "vault shared-key pubkey (hex)"},
	cli.BoolFlag{Name: "testnet", Usage: "use testnet parameters"},
}

func networkFromFlags(ctx *cli.Context) *chaincfg.Params {
	if ctx.Bool("testnet") {
		return &chaincfg.TestNet3Params
	}
	return &chaincfg.MainNetParams
}

func loadVaultWallet(ctx *cli.Context) (*policy.Policy, vaultdb.VaultIdentifier, error) {
	desc := ctx.String("descriptor")
	if desc == "" {
		return nil, vaultdb.VaultIdentifier{}, fmt.Errorf("--descriptor is required")
	}
	net := networkFromFlags(ctx)
	pol, err := policy.FromDescriptor("cli", desc, "", net)
	if err != nil {
		return nil, vaultdb.VaultIdentifier{}, err
	}
	vaultID := vaultdb.ComputeVaultIdentifier(desc, ctx.String("shared-key"))
	return pol, vaultID, nil
}

var balanceCommand = cli.Command{
	Name:      "balance",
	Category:  "Wallet",
	Usage:     "Print a vault's cached balance.",
	Flags:     vaultFlags,
	ArgsUsage: "--descriptor DESC",
	Action:    balance,
}

func balance(ctx *cli.Context) error {
	pol, vaultID, err := loadVaultWallet(ctx)
	if err != nil {
		return err
	}

	manager, err := appManager(ctx)
	if err != nil {
		return err
	}
	w := manager.Wallets.LoadPolicy(vaultID, pol)
	fmt.Println(w.GetBalance())
	return nil
}

var listUtxosCommand = cli.Command{
	Name:      "listutxos",
	Category:  "Wallet",
	Usage:     "List a vault's cached UTXOs as JSON.",
	Flags:     vaultFlags,
	ArgsUsage: "--descriptor DESC",
	Action:    listUtxos,
}

func listUtxos(ctx *cli.Context) error {
	pol, vaultID, err := loadVaultWallet(ctx)
	if err != nil {
		return err
	}
	manager, err := appManager(ctx)
	if err != nil {
		return err
	}
	w := manager.Wallets.LoadPolicy(vaultID, pol)
	raw, err := json.MarshalIndent(w.ListUtxos(), "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(raw))
	return nil
}

var newAddressCommand = cli.Command{
	Name:      "newaddress",
	Category:  "Wallet",
	Usage:     "Print the vault's next unused receive address.",
	Flags:     vaultFlags,
	ArgsUsage: "--descriptor DESC",
	Action:    newAddress,
}

func newAddress(ctx *cli.Context) error {
	pol, vaultID, err := loadVaultWallet(ctx)
	if err != nil {
		return err
	}
	manager, err := appManager(ctx)
	if err != nil {
		return err
	}
	w := manager.Wallets.LoadPolicy(vaultID, pol)
	addr, err := w.LastUnusedAddress(context.Background())
	if err != nil {
		return err
	}
	fmt.Println(addr)
	return nil
}

var spendCommand = cli.Command{
	Name:      "spend",
	Category:  "Vault",
	Usage:     "Build (but do not broadcast) a spending proposal.",
	Flags: append(vaultFlags,
		cli.StringFlag{Name: "address", Usage: "recipient address"},
		cli.Int64Flag{Name: "amount", Usage: "amount in satoshis, 0 to drain"},
		cli.Float64Flag{Name: "fee-rate", Usage: "fee rate in sat/vbyte", Value: 1},
	),
	ArgsUsage: "--descriptor DESC --address ADDR --amount SATS",
	Action:    spend,
}

func spend(ctx *cli.Context) error {
	pol, vaultID, err := loadVaultWallet(ctx)
	if err != nil {
		return err
	}
	address := ctx.String("address")
	if address == "" {
		return fmt.Errorf("--address is required")
	}

	manager, err := appManager(ctx)
	if err != nil {
		return err
	}
	w := manager.Wallets.LoadPolicy(vaultID, pol)

	amt := proposal.MaxAmount
	if sats := ctx.Int64("amount"); sats > 0 {
		amt = proposal.CustomAmount(btcutil.Amount(sats))
	}
	// The flag is in sat/vbyte; proposal.FeeRate is in sat per 1000 vbytes.
	feeRate := proposal.FeeRate(btcutil.Amount(ctx.Float64("fee-rate") * 1000))

	p, err := proposal.Spend(context.Background(), w, proposal.SpendParams{
		Address: address,
		Amount:  amt,
		FeeRate: feeRate,
	})
	if err != nil {
		return err
	}
	raw, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(raw))
	return nil
}
