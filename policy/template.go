package policy

import (
	"fmt"
	"strings"

	"github.com/3yekn/coinstr/descriptor"
)

// Template builds the script-path policy expression for one of the four
// canonical vault shapes (Multisig, Hold, Recovery, Decaying). Its Build
// output is what Policy.FromTemplate hands to FromPolicy; the classifier in
// policy.go (TemplateMatch) is the inverse operation, recognizing these same
// shapes back out of a parsed SatisfiableItem tree.
type Template struct {
	expr string
}

// Build returns the policy expression this template compiles to.
func (t Template) Build() string {
	return t.expr
}

func keyStrings(keys []descriptor.PublicKey) []string {
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = k.String()
	}
	return out
}

// NewMultisigTemplate builds a k-of-n multisig policy.
func NewMultisigTemplate(threshold int, keys []descriptor.PublicKey) Template {
	return Template{expr: fmt.Sprintf("multi_a(%d,%s)", threshold, strings.Join(keyStrings(keys), ","))}
}

// NewHoldTemplate builds a policy spendable only once an absolute timelock
// expires — the "hold" shape of §4.1's template_match (root `b = Thresh{2,
// [x, y]}` with `x` Schnorr, `y` Timelock).
func NewHoldTemplate(owner descriptor.PublicKey, afterHeight uint32) Template {
	return Template{
		expr: fmt.Sprintf("and(pk(%s),after(%d))", owner.String(), afterHeight),
	}
}

// NewRecoveryTemplate builds a policy spendable by an m-of-n recovery
// quorum once an absolute timelock expires — the social-recovery /
// inheritance shape (`x` Multisig, `y` Timelock).
func NewRecoveryTemplate(recoveryThreshold int, recoveryKeys []descriptor.PublicKey,
	afterHeight uint32) Template {

	return Template{
		expr: fmt.Sprintf(
			"and(multi_a(%d,%s),after(%d))",
			recoveryThreshold, strings.Join(keyStrings(recoveryKeys), ","), afterHeight,
		),
	}
}

// NewDecayingTemplate builds thresh(threshold, pk(k1), ..., pk(kn),
// older(olderBlocks)): before the relative delay has elapsed, threshold of
// the keys must sign; once older(olderBlocks) is satisfiable it counts as
// one of the threshold items, so threshold-1 keys suffice.
func NewDecayingTemplate(threshold int, keys []descriptor.PublicKey, olderBlocks uint32) Template {
	items := make([]string, 0, len(keys)+1)
	for _, k := range keys {
		items = append(items, "pk("+k.String()+")")
	}
	items = append(items, fmt.Sprintf("older(%d)", olderBlocks))
	return Template{expr: fmt.Sprintf("thresh(%d,%s)", threshold, strings.Join(items, ","))}
}
