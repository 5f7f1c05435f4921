package signer

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/3yekn/coinstr/descriptor"
	"github.com/btcsuite/btcd/chaincfg"
)

// parseDerivPath parses a "m/48'/0'/0'/2'" style path string into the
// hardened-bit-encoded component slice descriptor.KeyOrigin expects.
func parseDerivPath(deriv string) ([]uint32, error) {
	deriv = strings.TrimPrefix(deriv, "m/")
	if deriv == "" {
		return nil, nil
	}
	segs := strings.Split(deriv, "/")
	path := make([]uint32, 0, len(segs))
	for _, seg := range segs {
		hardened := strings.HasSuffix(seg, "'") || strings.HasSuffix(seg, "h")
		seg = strings.TrimSuffix(strings.TrimSuffix(seg, "'"), "h")
		idx, err := strconv.ParseUint(seg, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("signer: bad deriv path component %q: %w", seg, err)
		}
		component := uint32(idx)
		if hardened {
			component = descriptor.Hardened(component)
		}
		path = append(path, component)
	}
	return path, nil
}

// coldcardExport mirrors the subset of fields Coldcard's "Export XPUB"
// generic-JSON-on-SD-card feature writes that this system needs: the
// master fingerprint plus one {deriv, xpub} entry per account type.
// Unrecognized fields in the real export (chain, p2pkh_deriv, bip44, ...)
// are intentionally not modeled.
type coldcardExport struct {
	Fingerprint string `json:"xfp"`
	P2WSH       struct {
		Deriv string `json:"deriv"`
		Xpub  string `json:"xpub"`
	} `json:"p2wsh"`
	P2TR struct {
		Deriv string `json:"deriv"`
		Xpub  string `json:"xpub"`
	} `json:"p2tr"`
	BIP86 struct {
		Deriv string `json:"deriv"`
		Xpub  string `json:"xpub"`
	} `json:"bip86"`
}

// ParseColdcardExport decodes a Coldcard generic JSON export and composes
// a CoreSigner of type Unknown from it (via Unknown). Because the export carries xpubs
// rather than single derived keys, the xpub's raw bytes are used directly
// as PublicKey.Key; full BIP-32 child derivation from the xpub is out of
// scope for this package (see descriptor.PublicKey's doc comment).
func ParseColdcardExport(data []byte, network *chaincfg.Params) (*CoreSigner, error) {
	var export coldcardExport
	if err := json.Unmarshal(data, &export); err != nil {
		return nil, fmt.Errorf("signer: parsing coldcard export: %w", err)
	}

	fp, err := descriptor.ParseFingerprint(export.Fingerprint)
	if err != nil {
		return nil, fmt.Errorf("signer: coldcard export fingerprint: %w", err)
	}

	descriptors := make(map[descriptor.Purpose]descriptor.PublicKey)
	entries := []struct {
		purpose descriptor.Purpose
		deriv   string
		xpub    string
	}{
		{descriptor.PurposeBIP48P2WSH, export.P2WSH.Deriv, export.P2WSH.Xpub},
		{descriptor.PurposeBIP48P2TR, export.P2TR.Deriv, export.P2TR.Xpub},
		{descriptor.PurposeBIP86, export.BIP86.Deriv, export.BIP86.Xpub},
	}
	for _, e := range entries {
		if e.xpub == "" {
			continue
		}
		path, err := parseDerivPath(e.deriv)
		if err != nil {
			return nil, err
		}
		descriptors[e.purpose] = descriptor.PublicKey{
			Origin: descriptor.KeyOrigin{Fingerprint: fp, Path: path},
			Key:    []byte(e.xpub),
		}
	}

	return Unknown(fp, descriptors, network)
}
