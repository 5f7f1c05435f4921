package policy

import (
	"fmt"
	"strings"

	"github.com/3yekn/coinstr/descriptor"
)

// SatisfiableItem is one node of a policy's spending-condition tree. The
// concrete node kinds mirror the reference implementation's
// SatisfiableItem enum: a single signature, a multisig, an absolute or
// relative timelock, or a generic threshold of sub-items.
type SatisfiableItem interface {
	// id is a stable, content-derived identifier for this node, used as
	// the path label in SelectableCondition and PolicyPathSelector.
	id() string

	// String renders the node back to the textual policy-expression
	// grammar understood by ParseExpr, the inverse of parsing.
	String() string

	// jsonLine is a deterministic single-line rendering used for the
	// textual fingerprint-membership search performed by
	// GetPolicyPathFromSigner, mirroring the reference implementation's
	// use of JSON serialization for the same purpose.
	jsonLine() string
}

// Schnorr is a single Schnorr (BIP-340) signature requirement.
type Schnorr struct {
	Key descriptor.PublicKey
}

func (s Schnorr) id() string       { return "schnorr:" + s.Key.String() }
func (s Schnorr) String() string   { return "pk(" + s.Key.String() + ")" }
func (s Schnorr) jsonLine() string { return fmt.Sprintf(`{"Signature":{"key":%q}}`, s.Key.String()) }

// Multisig is a k-of-n Schnorr multisig requirement (`multi_a`).
type Multisig struct {
	Threshold int
	Keys      []descriptor.PublicKey
}

func (m Multisig) id() string {
	return fmt.Sprintf("multisig:%d:%d", m.Threshold, len(m.Keys))
}

func (m Multisig) String() string {
	parts := make([]string, len(m.Keys))
	for i, k := range m.Keys {
		parts[i] = k.String()
	}
	return fmt.Sprintf("multi_a(%d,%s)", m.Threshold, strings.Join(parts, ","))
}

func (m Multisig) jsonLine() string {
	parts := make([]string, len(m.Keys))
	for i, k := range m.Keys {
		parts[i] = fmt.Sprintf("%q", k.String())
	}
	return fmt.Sprintf(`{"Multisig":{"threshold":%d,"keys":[%s]}}`, m.Threshold, strings.Join(parts, ","))
}

// AbsoluteTimelock requires the spending transaction's nLockTime to satisfy
// a fixed block height or unix timestamp (`after`).
type AbsoluteTimelock struct {
	Value uint32
}

func (a AbsoluteTimelock) id() string       { return fmt.Sprintf("after:%d", a.Value) }
func (a AbsoluteTimelock) String() string   { return fmt.Sprintf("after(%d)", a.Value) }
func (a AbsoluteTimelock) jsonLine() string { return fmt.Sprintf(`{"AbsoluteTimelock":{"value":%d}}`, a.Value) }

// RelativeTimelock requires nSequence to encode a relative delay of Value
// blocks since the spent output's confirmation (`older`).
type RelativeTimelock struct {
	Value uint32
}

func (r RelativeTimelock) id() string       { return fmt.Sprintf("older:%d", r.Value) }
func (r RelativeTimelock) String() string   { return fmt.Sprintf("older(%d)", r.Value) }
func (r RelativeTimelock) jsonLine() string { return fmt.Sprintf(`{"RelativeTimelock":{"value":%d}}`, r.Value) }

// Thresh is a generic k-of-n threshold over arbitrary sub-items; `and` and
// `or` compile to Thresh with threshold 2 and 1 respectively.
type Thresh struct {
	Threshold int
	Items     []SatisfiableItem
}

func (t Thresh) id() string {
	ids := make([]string, len(t.Items))
	for i, it := range t.Items {
		ids[i] = it.id()
	}
	return fmt.Sprintf("thresh(%d,%s)", t.Threshold, strings.Join(ids, "|"))
}

func (t Thresh) String() string {
	parts := make([]string, len(t.Items))
	for i, it := range t.Items {
		parts[i] = it.String()
	}
	return fmt.Sprintf("thresh(%d,%s)", t.Threshold, strings.Join(parts, ","))
}

func (t Thresh) jsonLine() string {
	parts := make([]string, len(t.Items))
	for i, it := range t.Items {
		parts[i] = it.jsonLine()
	}
	return fmt.Sprintf(`{"Thresh":{"threshold":%d,"items":[%s]}}`, t.Threshold, strings.Join(parts, ","))
}

// SubPathLabels returns the path-id of each sub-item of a Thresh node, in
// order, the `sub_paths` of a SelectableCondition.
func (t Thresh) SubPathLabels() []string {
	labels := make([]string, len(t.Items))
	for i, it := range t.Items {
		labels[i] = it.id()
	}
	return labels
}
