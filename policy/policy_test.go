package policy

import (
	"encoding/hex"
	"strings"
	"testing"

	"github.com/3yekn/coinstr/descriptor"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/stretchr/testify/require"
)

func key(fp string, hexKey string) descriptor.PublicKey {
	f, err := descriptor.ParseFingerprint(fp)
	if err != nil {
		panic(err)
	}
	b, err := hex.DecodeString(hexKey)
	if err != nil {
		panic(err)
	}
	return descriptor.PublicKey{Origin: descriptor.KeyOrigin{Fingerprint: f}, Key: b}
}

func rep(s string, n int) string {
	return strings.Repeat(s, n)
}

func TestS1Multisig(t *testing.T) {
	k1 := key("aaaaaaaa", "02"+rep("11", 32))
	k2 := key("bbbbbbbb", "02"+rep("22", 32))
	k3 := key("cccccccc", "02"+rep("33", 32))

	tmpl := NewMultisigTemplate(2, []descriptor.PublicKey{k1, k2, k3})
	p, err := FromTemplate("vault", tmpl, "2-of-3", &chaincfg.MainNetParams)
	require.NoError(t, err)

	require.Equal(t, TemplateMultisig, p.TemplateMatch())
	require.False(t, p.HasTimelock())
	conditions, err := p.SelectableConditions()
	require.NoError(t, err)
	require.Nil(t, conditions)
}

func TestS2Hold(t *testing.T) {
	k1 := key("aaaaaaaa", "02"+rep("11", 32))
	tmpl := Template{expr: "and(pk(" + k1.String() + "),after(840000))"}
	p, err := FromTemplate("hold", tmpl, "", &chaincfg.MainNetParams)
	require.NoError(t, err)

	require.Equal(t, TemplateHold, p.TemplateMatch())
	require.True(t, p.HasAbsoluteTimelock())

	conditions, err := p.SelectableConditions()
	require.NoError(t, err)
	require.NotNil(t, conditions)
	require.Len(t, conditions, 0)
}

func TestS3Decaying(t *testing.T) {
	k1 := key("aaaaaaaa", "02"+rep("11", 32))
	k2 := key("bbbbbbbb", "02"+rep("22", 32))
	k3 := key("cccccccc", "02"+rep("33", 32))
	tmpl := NewDecayingTemplate(3, []descriptor.PublicKey{k1, k2, k3}, 2)
	p, err := FromTemplate("decaying", tmpl, "", &chaincfg.MainNetParams)
	require.NoError(t, err)

	require.Equal(t, TemplateDecaying, p.TemplateMatch())
	conditions, err := p.SelectableConditions()
	require.NoError(t, err)
	require.Len(t, conditions, 1)
	require.Equal(t, 3, conditions[0].Threshold)
	require.Len(t, conditions[0].SubPaths, 4)
}

func TestS4RecoveryPolicyPath(t *testing.T) {
	ka := key("bbbbbbbb", "02"+rep("22", 32))
	kb := key("cccccccc", "02"+rep("33", 32))
	kc := key("dddddddd", "02"+rep("44", 32))

	tmpl := NewRecoveryTemplate(2, []descriptor.PublicKey{ka, kb, kc}, 840000)
	p, err := FromTemplate("recovery", tmpl, "", &chaincfg.MainNetParams)
	require.NoError(t, err)
	require.Equal(t, TemplateRecovery, p.TemplateMatch())

	signer := testSigner{fp: ka.Origin.Fingerprint}
	selector, err := p.GetPolicyPathFromSigner(signer)
	require.NoError(t, err)
	require.NotNil(t, selector)
	require.False(t, selector.Complete)
	require.NotEmpty(t, selector.MissingToSelect)
}

func TestDescriptorRoundTrip(t *testing.T) {
	k1 := key("aaaaaaaa", "02"+rep("11", 32))
	tmpl := NewMultisigTemplate(1, []descriptor.PublicKey{k1})
	p, err := FromTemplate("single", tmpl, "", &chaincfg.MainNetParams)
	require.NoError(t, err)

	d := p.Descriptor.String()
	p2, err := FromDescriptor("single", d, "", &chaincfg.MainNetParams)
	require.NoError(t, err)
	require.Equal(t, d, p2.Descriptor.String())
}

type testSigner struct {
	fp descriptor.Fingerprint
}

func (t testSigner) Fingerprint() descriptor.Fingerprint { return t.fp }
