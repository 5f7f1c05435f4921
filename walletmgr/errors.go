package walletmgr

import "errors"

var (
	// ErrVaultAlreadyLoaded names a vault id that is already loaded.
	// LoadPolicy does not return it: it returns the wallet already loaded
	// for that id.
	ErrVaultAlreadyLoaded = errors.New("walletmgr: vault already loaded")

	// ErrVaultNotLoaded names a per-vault query made before LoadPolicy.
	// Manager.Wallet reports that case with a false second result rather
	// than this error.
	ErrVaultNotLoaded = errors.New("walletmgr: vault not loaded")
)
