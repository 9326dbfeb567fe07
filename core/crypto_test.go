package core

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSignAndVerifyRoundTrip(t *testing.T) {
	pub, priv, err := GenerateKeypair()
	require.NoError(t, err)

	msg := []byte("hello tos")
	sig, err := Sign(msg, priv)
	require.NoError(t, err)
	require.True(t, Verify(msg, sig, pub))
}

func TestVerifyRejectsTamperedMessage(t *testing.T) {
	pub, priv, err := GenerateKeypair()
	require.NoError(t, err)

	sig, err := Sign([]byte("original"), priv)
	require.NoError(t, err)
	require.False(t, Verify([]byte("tampered"), sig, pub))
}

func TestVerifyRejectsWrongKey(t *testing.T) {
	_, priv, err := GenerateKeypair()
	require.NoError(t, err)
	otherPub, _, err := GenerateKeypair()
	require.NoError(t, err)

	msg := []byte("hello")
	sig, err := Sign(msg, priv)
	require.NoError(t, err)
	require.False(t, Verify(msg, sig, otherPub))
}

func TestPublicKeyIsZero(t *testing.T) {
	var zero PublicKey
	require.True(t, zero.IsZero())

	pub, _, err := GenerateKeypair()
	require.NoError(t, err)
	require.False(t, pub.IsZero())
}

func TestPublicKeyJSONRoundTrip(t *testing.T) {
	pub, _, err := GenerateKeypair()
	require.NoError(t, err)

	data, err := json.Marshal(pub)
	require.NoError(t, err)

	var decoded PublicKey
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Equal(t, pub, decoded)
}

func TestPublicKeyUnmarshalJSONRejectsWrongSize(t *testing.T) {
	var decoded PublicKey
	err := json.Unmarshal([]byte(`"abcd"`), &decoded)
	require.Error(t, err)
}
