package coinstr

import (
	"time"

	"github.com/btcsuite/btcd/chaincfg"
)

// Config is the set of parameters a Manager needs to wire up C1-C9. It is
// deliberately a plain struct rather than a parsed-flags type: cmd/coinstr-cli
// is responsible for populating one from urfave/cli flags, the same
// separation of "config struct" from "flag parsing" a daemon's Config
// type draws from its CLI's flag definitions.
type Config struct {
	Network *chaincfg.Params

	// DataDir is where the bbolt-backed persister keeps its database.
	DataDir string

	// PrivateKeyHex/PublicKeyHex are this client's own nostr identity,
	// used to decrypt SharedKey/Signers events addressed to us and to
	// sign outgoing events.
	PrivateKeyHex string
	PublicKeyHex  string

	// RelayURLs is the set of relays Manager.Run subscribes to.
	RelayURLs []string

	// ElectrumEndpoint, ElectrumUseTLS and ElectrumSocksProxy configure
	// the timechain sync scheduler's Electrum connection.
	ElectrumEndpoint  string
	ElectrumUseTLS    bool
	ElectrumSocksProxy string

	// Scheduler intervals, defaulted by DefaultConfig; see schedulers.go.
	TimechainSyncInterval      time.Duration
	PendingEventRedriveInterval time.Duration
	MetadataSyncInterval       time.Duration
	RebroadcastInterval        time.Duration
}

// DefaultConfig returns a Config with the scheduler intervals the reference
// client uses, against mainnet, with no relays or Electrum endpoint
// configured (the caller must still supply those).
func DefaultConfig() Config {
	return Config{
		Network:                     &chaincfg.MainNetParams,
		TimechainSyncInterval:       10 * time.Second,
		PendingEventRedriveInterval: 30 * time.Second,
		MetadataSyncInterval:        60 * time.Second,
		RebroadcastInterval:         60 * time.Second,
	}
}
