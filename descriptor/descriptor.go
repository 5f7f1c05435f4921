package descriptor

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/chaincfg"
)

// Descriptor is an immutable textual output-script descriptor. It is shared
// by reference and never mutated after construction.
type Descriptor struct {
	raw         string
	internalKey []byte
	expr        string
}

// Errors surfaced while parsing a descriptor.
var (
	ErrNotTaprootDescriptor = fmt.Errorf("descriptor: not a taproot (tr()) descriptor")
	ErrMalformedDescriptor  = fmt.Errorf("descriptor: malformed descriptor string")
)

// String returns the canonical textual form of the descriptor.
func (d *Descriptor) String() string {
	return d.raw
}

// InternalKey returns the raw bytes of the taproot internal key.
func (d *Descriptor) InternalKey() []byte {
	return d.internalKey
}

// ScriptExpr returns the script-path policy expression embedded in the
// descriptor, i.e. everything between the internal key and the descriptor's
// closing paren.
func (d *Descriptor) ScriptExpr() string {
	return d.expr
}

// Parse validates that s is a taproot descriptor of the form
// `tr(<internal-key-hex>,<script-expr>)` and returns the parsed Descriptor.
// network is currently used only to validate addresses embedded in the
// expression tree elsewhere in the policy package; Parse itself does not
// reject a descriptor on account of network.
func Parse(s string, _ *chaincfg.Params) (*Descriptor, error) {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "tr(") || !strings.HasSuffix(trimmed, ")") {
		return nil, ErrNotTaprootDescriptor
	}

	inner := trimmed[len("tr(") : len(trimmed)-1]
	comma := strings.Index(inner, ",")
	if comma < 0 {
		return nil, ErrMalformedDescriptor
	}

	keyHex := inner[:comma]
	expr := inner[comma+1:]

	key, err := hex.DecodeString(keyHex)
	if err != nil || len(key) != 32 {
		return nil, fmt.Errorf("%w: internal key must be 32-byte x-only hex", ErrMalformedDescriptor)
	}

	return &Descriptor{
		raw:         trimmed,
		internalKey: key,
		expr:        expr,
	}, nil
}

// New builds a Descriptor from an internal key and a script-path expression,
// the inverse of Parse. Used by Policy.FromPolicy once a concrete policy has
// been compiled to an expression string.
func New(internalKey []byte, scriptExpr string) *Descriptor {
	raw := fmt.Sprintf("tr(%s,%s)", hex.EncodeToString(internalKey), scriptExpr)
	return &Descriptor{raw: raw, internalKey: internalKey, expr: scriptExpr}
}
