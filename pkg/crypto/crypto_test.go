package crypto

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEd25519Signer_SignVerify(t *testing.T) {
	signer, err := NewEd25519Signer("key-1")
	require.NoError(t, err)

	data := []byte("seq=1:execution.started")
	sig, err := signer.Sign(data)
	require.NoError(t, err)

	ok, err := VerifyHex(signer.PublicKeyHex(), sig, data)
	require.NoError(t, err)
	require.True(t, ok)

	ok, _ = VerifyHex(signer.PublicKeyHex(), sig, []byte("tampered"))
	require.False(t, ok)
}

func TestKeyRegistry_VerifyUnknownKeyFailsClosed(t *testing.T) {
	reg := NewKeyRegistry()
	ok, err := reg.Verify("missing-key", []byte("data"), "deadbeef")
	require.Error(t, err)
	require.False(t, ok)
}

func TestKeyRegistry_RegisterSignerRoundTrip(t *testing.T) {
	signer, err := NewEd25519Signer("key-2")
	require.NoError(t, err)

	reg := NewKeyRegistry()
	reg.RegisterSigner(signer)

	data := []byte("payload")
	sig, err := signer.Sign(data)
	require.NoError(t, err)

	ok, err := reg.Verify("key-2", data, sig)
	require.NoError(t, err)
	require.True(t, ok)
}
