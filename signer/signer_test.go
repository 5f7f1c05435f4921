package signer

import (
	"testing"

	"github.com/3yekn/coinstr/descriptor"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/stretchr/testify/require"
)

func testFingerprint(t *testing.T) descriptor.Fingerprint {
	fp, err := descriptor.ParseFingerprint("aabbccdd")
	require.NoError(t, err)
	return fp
}

func TestAddDescriptorValidatesFingerprint(t *testing.T) {
	fp := testFingerprint(t)
	other, err := descriptor.ParseFingerprint("11223344")
	require.NoError(t, err)

	s, err := New(fp, nil, TypeSeed, &chaincfg.MainNetParams)
	require.NoError(t, err)

	bad := descriptor.PublicKey{
		Origin: descriptor.KeyOrigin{
			Fingerprint: other,
			Path:        []uint32{descriptor.Hardened(48), descriptor.Hardened(0)},
		},
		Key: make([]byte, 32),
	}
	err = s.AddDescriptor(descriptor.PurposeBIP48P2TR, bad)
	require.ErrorIs(t, err, ErrFingerprintNotMatch)
}

func TestAddDescriptorValidatesPurposeAndNetwork(t *testing.T) {
	fp := testFingerprint(t)
	s, err := New(fp, nil, TypeSeed, &chaincfg.MainNetParams)
	require.NoError(t, err)

	goodMainnet := descriptor.PublicKey{
		Origin: descriptor.KeyOrigin{
			Fingerprint: fp,
			Path:        []uint32{descriptor.Hardened(48), descriptor.Hardened(0), descriptor.Hardened(0), descriptor.Hardened(3)},
		},
		Key: make([]byte, 32),
	}
	require.NoError(t, s.AddDescriptor(descriptor.PurposeBIP48P2TR, goodMainnet))

	wrongPurpose := descriptor.PublicKey{
		Origin: descriptor.KeyOrigin{
			Fingerprint: fp,
			Path:        []uint32{descriptor.Hardened(86), descriptor.Hardened(0)},
		},
		Key: make([]byte, 32),
	}
	err = s.AddDescriptor(descriptor.PurposeBIP48P2WSH, wrongPurpose)
	require.ErrorIs(t, err, ErrPurposeNotMatch)

	testnetPath := descriptor.PublicKey{
		Origin: descriptor.KeyOrigin{
			Fingerprint: fp,
			Path:        []uint32{descriptor.Hardened(48), descriptor.Hardened(1), descriptor.Hardened(0), descriptor.Hardened(2)},
		},
		Key: make([]byte, 32),
	}
	err = s.AddDescriptor(descriptor.PurposeBIP48P2WSH, testnetPath)
	require.ErrorIs(t, err, ErrNetworkNotMatch)
}

func TestFromSeedRequiresBIP86AtAccountZero(t *testing.T) {
	fp := testFingerprint(t)
	derived := map[descriptor.Purpose]descriptor.PublicKey{
		descriptor.PurposeBIP48P2WSH: {
			Origin: descriptor.KeyOrigin{Fingerprint: fp, Path: []uint32{descriptor.Hardened(48), descriptor.Hardened(0), descriptor.Hardened(0), descriptor.Hardened(2)}},
			Key:    make([]byte, 32),
		},
		descriptor.PurposeBIP48P2TR: {
			Origin: descriptor.KeyOrigin{Fingerprint: fp, Path: []uint32{descriptor.Hardened(48), descriptor.Hardened(0), descriptor.Hardened(0), descriptor.Hardened(3)}},
			Key:    make([]byte, 32),
		},
	}
	account := uint32(SMARTVAULTSAccountIndex)
	_, err := FromSeed(fp, derived, &account, &chaincfg.MainNetParams)
	require.ErrorIs(t, err, ErrDerivationPathNotFound)

	derived[descriptor.PurposeBIP86] = descriptor.PublicKey{
		Origin: descriptor.KeyOrigin{Fingerprint: fp, Path: []uint32{descriptor.Hardened(86), descriptor.Hardened(0), descriptor.Hardened(0)}},
		Key:    make([]byte, 32),
	}
	s, err := FromSeed(fp, derived, &account, &chaincfg.MainNetParams)
	require.NoError(t, err)
	_, ok := s.Descriptor(descriptor.PurposeBIP86)
	require.True(t, ok)
}

func TestParseColdcardExport(t *testing.T) {
	data := []byte(`{
		"xfp": "aabbccdd",
		"p2tr": {"deriv": "m/48'/0'/0'/3'", "xpub": "xpub-p2tr-example"}
	}`)
	s, err := ParseColdcardExport(data, &chaincfg.MainNetParams)
	require.NoError(t, err)
	require.Equal(t, TypeUnknown, s.Type())
	pk, ok := s.Descriptor(descriptor.PurposeBIP48P2TR)
	require.True(t, ok)
	require.Equal(t, "xpub-p2tr-example", string(pk.Key))
}
