package policy

import (
	"strings"

	"github.com/3yekn/coinstr/descriptor"
	"github.com/btcsuite/btcd/chaincfg"
)

// PolicyTemplateType classifies a policy's SatisfiableItem tree against one
// of the canonical vault shapes. It is derived, never stored.
type PolicyTemplateType int

const (
	TemplateNone PolicyTemplateType = iota
	TemplateMultisig
	TemplateHold
	TemplateRecovery
	TemplateDecaying
)

func (t PolicyTemplateType) String() string {
	switch t {
	case TemplateMultisig:
		return "Multisig"
	case TemplateHold:
		return "Hold"
	case TemplateRecovery:
		return "Recovery"
	case TemplateDecaying:
		return "Decaying"
	default:
		return "None"
	}
}

// SelectableCondition is one internal threshold node in the policy tree
// where threshold < len(sub_paths), i.e. the user genuinely has a choice.
type SelectableCondition struct {
	Path      string
	Threshold int
	SubPaths  []string
}

// PolicyPathSelector resolves a signer's available policy paths. Complete
// means every SelectableCondition is resolved with exactly Threshold
// entries; Partial means at least one condition still needs input.
type PolicyPathSelector struct {
	Complete bool

	// Path holds the resolved path when Complete.
	Path map[string][]int

	// SelectedPath and MissingToSelect hold the partial resolution when
	// not Complete.
	SelectedPath    map[string][]int
	MissingToSelect map[string][]string
}

// PolicyPathKind distinguishes the three shapes GetPolicyPathsFromSigners
// can produce.
type PolicyPathKind int

const (
	PolicyPathKindNone PolicyPathKind = iota
	PolicyPathKindSingle
	PolicyPathKindMultiple
)

// PolicyPath is the aggregate of every signer's resolved PolicyPathSelector.
type PolicyPath struct {
	Kind   PolicyPathKind
	Single *PolicyPathSelector
	// Multiple maps signer fingerprint hex to that signer's selector.
	Multiple map[string]*PolicyPathSelector
}

// SignerFingerprint is the minimal capability GetPolicyPathFromSigner needs
// from a signer; signer.CoreSigner implements it without this package
// importing the signer package.
type SignerFingerprint interface {
	Fingerprint() descriptor.Fingerprint
}

// SignerKeyProvider additionally exposes the signer's own descriptor public
// key strings, used by SearchUsedSigners.
type SignerKeyProvider interface {
	SignerFingerprint
	DescriptorStrings() []string
}

// Policy is a named, described taproot spending policy.
type Policy struct {
	Name        string
	Description string
	Descriptor  *descriptor.Descriptor
	Network     *chaincfg.Params
}

// FromDescriptor builds a Policy directly from a taproot descriptor string.
func FromDescriptor(name, desc, description string, net *chaincfg.Params) (*Policy, error) {
	d, err := descriptor.Parse(desc, net)
	if err != nil {
		return nil, err
	}
	return &Policy{Name: name, Description: description, Descriptor: d, Network: net}, nil
}

// FromPolicy compiles a concrete miniscript policy expression into a
// taproot descriptor using the deterministic unspendable internal key, then
// builds a Policy from it.
func FromPolicy(name, policyExpr, description string, net *chaincfg.Params) (*Policy, error) {
	if _, err := ParseExpr(policyExpr); err != nil {
		return nil, err
	}
	unspendable := UnspendableInternalKey()
	d := descriptor.New(unspendable[:], policyExpr)
	return &Policy{Name: name, Description: description, Descriptor: d, Network: net}, nil
}

// FromDescOrPolicy tries desc first as a descriptor, then as a policy
// expression, reporting both errors on double failure.
func FromDescOrPolicy(name, descOrPolicy, description string, net *chaincfg.Params) (*Policy, error) {
	p, descErr := FromDescriptor(name, descOrPolicy, description, net)
	if descErr == nil {
		return p, nil
	}
	p, polErr := FromPolicy(name, descOrPolicy, description, net)
	if polErr == nil {
		return p, nil
	}
	return nil, &ParseError{DescriptorErr: descErr, PolicyErr: polErr}
}

// FromTemplate builds a Policy from one of the canonical Template
// constructors.
func FromTemplate(name string, tmpl Template, description string, net *chaincfg.Params) (*Policy, error) {
	return FromPolicy(name, tmpl.Build(), description, net)
}

// scriptItem parses the descriptor's script-path expression into its
// SatisfiableItem tree, the "b" of satisfiable_item's root wrapper.
func (p *Policy) scriptItem() (SatisfiableItem, error) {
	return ParseExpr(p.Descriptor.ScriptExpr())
}

// SatisfiableItem returns the full spending-condition tree: a synthetic
// 1-of-2 threshold between the taproot internal key (key-path spend) and
// the descriptor's script-path policy.
func (p *Policy) SatisfiableItem() (SatisfiableItem, error) {
	b, err := p.scriptItem()
	if err != nil {
		return nil, err
	}
	internal := descriptor.PublicKey{Key: p.Descriptor.InternalKey()}
	return Thresh{Threshold: 1, Items: []SatisfiableItem{Schnorr{Key: internal}, b}}, nil
}

// SpendingPolicy is a minimal stand-in for the wallet-level spending policy
// id used by proof_of_reserve's fixed `{id -> [1]}` path.
type SpendingPolicy struct {
	ID string
}

// SpendingPolicy returns the wallet-facing spending policy for this Policy.
func (p *Policy) SpendingPolicy() (*SpendingPolicy, error) {
	item, err := p.SatisfiableItem()
	if err != nil {
		return nil, err
	}
	return &SpendingPolicy{ID: item.(Thresh).id()}, nil
}

// HasAbsoluteTimelock reports whether the descriptor contains an `after`
// fragment. Detection is textual, matching the reference implementation's
// intentional substring check — the descriptor is canonical and
// self-describing, so this is exact, not an approximation.
func (p *Policy) HasAbsoluteTimelock() bool {
	return strings.Contains(p.Descriptor.ScriptExpr(), "after(")
}

// HasRelativeTimelock reports whether the descriptor contains an `older`
// fragment.
func (p *Policy) HasRelativeTimelock() bool {
	return strings.Contains(p.Descriptor.ScriptExpr(), "older(")
}

// HasTimelock reports whether the policy has any timelock at all.
func (p *Policy) HasTimelock() bool {
	return p.HasAbsoluteTimelock() || p.HasRelativeTimelock()
}

// SelectableConditions returns nil iff the policy has no timelock;
// otherwise it walks the script-path tree collecting every threshold node
// where threshold < len(items) — the nodes a user genuinely has to choose
// among. A timelocked policy with no such node (e.g. a plain `and(pk,
// after)` hold) yields a non-nil, empty slice.
func (p *Policy) SelectableConditions() ([]SelectableCondition, error) {
	if !p.HasTimelock() {
		return nil, nil
	}
	b, err := p.scriptItem()
	if err != nil {
		return nil, err
	}
	out := []SelectableCondition{}
	walkSelectable(b, &out)
	return out, nil
}

func walkSelectable(item SatisfiableItem, out *[]SelectableCondition) {
	switch t := item.(type) {
	case Thresh:
		if t.Threshold < len(t.Items) {
			*out = append(*out, SelectableCondition{
				Path:      t.id(),
				Threshold: t.Threshold,
				SubPaths:  t.SubPathLabels(),
			})
		}
		for _, it := range t.Items {
			walkSelectable(it, out)
		}
	case Multisig:
		if t.Threshold < len(t.Keys) {
			labels := make([]string, len(t.Keys))
			for i, k := range t.Keys {
				labels[i] = Schnorr{Key: k}.id()
			}
			*out = append(*out, SelectableCondition{
				Path:      t.id(),
				Threshold: t.Threshold,
				SubPaths:  labels,
			})
		}
	}
}

// buildSubtreeLookup indexes every sub-item of the script-path tree by its
// id, so GetPolicyPathFromSigner can fetch the SatisfiableItem rooted at a
// given SelectableCondition sub-path label.
func buildSubtreeLookup(item SatisfiableItem, out map[string]SatisfiableItem) {
	out[item.id()] = item
	switch t := item.(type) {
	case Thresh:
		for _, it := range t.Items {
			buildSubtreeLookup(it, out)
		}
	case Multisig:
		for _, k := range t.Keys {
			s := Schnorr{Key: k}
			out[s.id()] = s
		}
	}
}

// TemplateMatch classifies the policy against the canonical template
// shapes. It never fails: an unrecognized tree classifies as TemplateNone.
func (p *Policy) TemplateMatch() PolicyTemplateType {
	item, err := p.SatisfiableItem()
	if err != nil {
		return TemplateNone
	}
	root, ok := item.(Thresh)
	if !ok || root.Threshold != 1 || len(root.Items) != 2 {
		return TemplateNone
	}
	if _, ok := root.Items[0].(Schnorr); !ok {
		return TemplateNone
	}
	b := root.Items[1]

	switch v := b.(type) {
	case Schnorr:
		return TemplateMultisig
	case Multisig:
		return TemplateMultisig
	case Thresh:
		if v.Threshold == 2 && len(v.Items) == 2 {
			x, y := v.Items[0], v.Items[1]
			_, xSchnorr := x.(Schnorr)
			_, xMulti := x.(Multisig)
			_, yTimelock := isTimelock(y)
			if xSchnorr && yTimelock {
				return TemplateHold
			}
			if xMulti && yTimelock {
				return TemplateRecovery
			}
		}
		if v.Threshold < len(v.Items) {
			k := 0
			tl := 0
			for _, it := range v.Items {
				if _, ok := it.(Schnorr); ok {
					k++
				}
				if _, ok := isTimelock(it); ok {
					tl++
				}
			}
			if v.Threshold <= k && tl == len(v.Items)-k {
				return TemplateDecaying
			}
		}
	}
	return TemplateNone
}

func isTimelock(item SatisfiableItem) (SatisfiableItem, bool) {
	switch item.(type) {
	case AbsoluteTimelock, RelativeTimelock:
		return item, true
	default:
		return nil, false
	}
}

// SearchUsedSigners returns the subset of signers whose descriptor key
// string appears as a substring of this policy's descriptor string —
// sufficient because descriptors normalize key material into canonical
// form.
func (p *Policy) SearchUsedSigners(mySigners []SignerKeyProvider) []SignerKeyProvider {
	descStr := p.Descriptor.String()
	var used []SignerKeyProvider
	for _, s := range mySigners {
		for _, ds := range s.DescriptorStrings() {
			if ds != "" && strings.Contains(descStr, ds) {
				used = append(used, s)
				break
			}
		}
	}
	return used
}

// GetPolicyPathFromSigner resolves which SelectableCondition sub-paths the
// given signer can satisfy, by textually searching each sub-tree's JSON
// rendering for the signer's fingerprint.
func (p *Policy) GetPolicyPathFromSigner(signer SignerFingerprint) (*PolicyPathSelector, error) {
	conditions, err := p.SelectableConditions()
	if err != nil {
		return nil, err
	}
	if conditions == nil {
		return nil, nil
	}

	b, err := p.scriptItem()
	if err != nil {
		return nil, err
	}
	lookup := make(map[string]SatisfiableItem)
	buildSubtreeLookup(b, lookup)

	fp := signer.Fingerprint().String()

	matched := make(map[string][]int)
	for _, c := range conditions {
		for i, label := range c.SubPaths {
			item, ok := lookup[label]
			if !ok {
				continue
			}
			if strings.Contains(item.jsonLine(), fp) {
				matched[c.Path] = append(matched[c.Path], i)
			}
		}
	}

	if len(matched) == 0 {
		return nil, nil
	}

	allMatched := len(matched) == len(conditions)
	if allMatched {
		satisfied := true
		for _, c := range conditions {
			if len(matched[c.Path]) != c.Threshold {
				satisfied = false
				break
			}
		}
		if satisfied {
			return &PolicyPathSelector{Complete: true, Path: matched}, nil
		}

		selected := make(map[string][]int)
		missing := make(map[string][]string)
		for _, c := range conditions {
			indices := matched[c.Path]
			selected[c.Path] = indices
			if len(indices) < c.Threshold {
				missing[c.Path] = remainingLabels(c, indices)
			}
		}
		return &PolicyPathSelector{Complete: false, SelectedPath: selected, MissingToSelect: missing}, nil
	}

	// Some conditions are entirely unmatched: fall back to the
	// internal-key-path synthetic entry on the first condition, used
	// when the signer only satisfies via the taproot internal key.
	selected := make(map[string][]int)
	for _, c := range conditions {
		if indices, ok := matched[c.Path]; ok {
			selected[c.Path] = indices
		}
	}
	first := conditions[0]
	if _, ok := selected[first.Path]; !ok {
		selected[first.Path] = []int{0}
	}

	complete := len(selected) == len(conditions)
	if complete {
		for _, c := range conditions {
			if len(selected[c.Path]) != c.Threshold && !(c.Path == first.Path && len(selected[c.Path]) == 1) {
				complete = false
				break
			}
		}
	}
	if complete {
		return &PolicyPathSelector{Complete: true, Path: selected}, nil
	}

	missing := make(map[string][]string)
	for _, c := range conditions {
		indices := selected[c.Path]
		if len(indices) < c.Threshold {
			missing[c.Path] = remainingLabels(c, indices)
		}
	}
	return &PolicyPathSelector{Complete: false, SelectedPath: selected, MissingToSelect: missing}, nil
}

func remainingLabels(c SelectableCondition, chosen []int) []string {
	chosenSet := make(map[int]bool, len(chosen))
	for _, i := range chosen {
		chosenSet[i] = true
	}
	var out []string
	for i, label := range c.SubPaths {
		if !chosenSet[i] {
			out = append(out, label)
		}
	}
	return out
}

// GetPolicyPathsFromSigners aggregates GetPolicyPathFromSigner across every
// signer: if all non-nil paths are identical, Single; if multiple distinct
// non-nil paths exist, Multiple; if none resolve, None.
func (p *Policy) GetPolicyPathsFromSigners(mySigners []SignerFingerprint) (PolicyPath, error) {
	byFingerprint := make(map[string]*PolicyPathSelector)
	for _, s := range mySigners {
		path, err := p.GetPolicyPathFromSigner(s)
		if err != nil {
			return PolicyPath{}, err
		}
		if path != nil {
			byFingerprint[s.Fingerprint().String()] = path
		}
	}

	if len(byFingerprint) == 0 {
		return PolicyPath{Kind: PolicyPathKindNone}, nil
	}

	var first *PolicyPathSelector
	allSame := true
	for _, path := range byFingerprint {
		if first == nil {
			first = path
			continue
		}
		if !selectorsEqual(first, path) {
			allSame = false
		}
	}
	if allSame {
		return PolicyPath{Kind: PolicyPathKindSingle, Single: first}, nil
	}
	return PolicyPath{Kind: PolicyPathKindMultiple, Multiple: byFingerprint}, nil
}

func selectorsEqual(a, b *PolicyPathSelector) bool {
	if a.Complete != b.Complete {
		return false
	}
	if a.Complete {
		return intMapsEqual(a.Path, b.Path)
	}
	return intMapsEqual(a.SelectedPath, b.SelectedPath)
}

func intMapsEqual(a, b map[string][]int) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		other, ok := b[k]
		if !ok || len(v) != len(other) {
			return false
		}
		for i := range v {
			if v[i] != other[i] {
				return false
			}
		}
	}
	return true
}
