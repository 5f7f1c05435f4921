package proposal

import (
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
)

// addressToScript decodes a bech32/base58 address for net and returns its
// output script.
func addressToScript(address string, net *chaincfg.Params) ([]byte, error) {
	addr, err := btcutil.DecodeAddress(address, net)
	if err != nil {
		return nil, err
	}
	return txscript.PayToAddrScript(addr)
}
