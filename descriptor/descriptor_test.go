package descriptor

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseRoundTrip(t *testing.T) {
	d := "tr(50929b74c1a04954b78b4b6035e97a5e078a5a0f28ec96d547bfee9ace803ac0,pk([aabbccdd]02deadbeef))"
	desc, err := Parse(d, nil)
	require.NoError(t, err)
	require.Equal(t, d, desc.String())
}

func TestParseRejectsNonTaproot(t *testing.T) {
	_, err := Parse("wsh(multi(2,A,B))", nil)
	require.ErrorIs(t, err, ErrNotTaprootDescriptor)
}

func TestPublicKeyRoundTrip(t *testing.T) {
	s := "[aabbccdd/48'/0'/0'/2']0245bb"
	pk, err := ParsePublicKey(s)
	require.NoError(t, err)
	require.Equal(t, s, pk.String())
	require.Equal(t, "aabbccdd", pk.Origin.Fingerprint.String())
}
