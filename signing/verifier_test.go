package signing

import (
	"crypto/ed25519"
	"crypto/rand"
	"testing"

	schnorrkel "github.com/ChainSafe/go-schnorrkel"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	secpecdsa "github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"github.com/stretchr/testify/require"
)

func TestEd25519Verifier(t *testing.T) {
	t.Parallel()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	verifier, err := NewVerifier(Ed25519, pub)
	require.NoError(t, err)

	msg := []byte("signed audit entry")
	sig := ed25519.Sign(priv, msg)

	require.True(t, verifier.Verify(sig, msg))
	require.False(t, verifier.Verify(sig, []byte("other message")))
	require.False(t, verifier.Verify(sig[:10], msg))

	sig[0] ^= 0xff
	require.False(t, verifier.Verify(sig, msg))
}

func TestSr25519Verifier(t *testing.T) {
	t.Parallel()
	msk, err := schnorrkel.GenerateMiniSecretKey()
	require.NoError(t, err)
	pub := msk.Public().Encode()

	verifier, err := NewVerifier(Sr25519, pub[:])
	require.NoError(t, err)

	msg := []byte("signed audit entry")
	sig, err := msk.ExpandEd25519().Sign(schnorrkel.NewSigningContext(sr25519Context, msg))
	require.NoError(t, err)
	raw := sig.Encode()

	require.True(t, verifier.Verify(raw[:], msg))
	require.False(t, verifier.Verify(raw[:], []byte("other message")))
	require.False(t, verifier.Verify(raw[:20], msg))

	raw[0] ^= 0xff
	require.False(t, verifier.Verify(raw[:], msg))
}

func TestSecp256k1Verifier(t *testing.T) {
	t.Parallel()
	priv, err := secp256k1.GeneratePrivateKey()
	require.NoError(t, err)

	verifier, err := NewVerifier(Secp256k1, priv.PubKey().SerializeCompressed())
	require.NoError(t, err)

	msg := []byte("signed audit entry")
	sig := secpecdsa.SignCompact(priv, keccak256(msg), true)

	require.True(t, verifier.Verify(sig, msg))
	require.False(t, verifier.Verify(sig, []byte("other message")))
	require.False(t, verifier.Verify(sig[:12], msg))

	// A signature from another key recovers to a different pubkey.
	other, err := secp256k1.GeneratePrivateKey()
	require.NoError(t, err)
	require.False(t, verifier.Verify(secpecdsa.SignCompact(other, keccak256(msg), true), msg))
}

func TestNewVerifierRejectsBadKeys(t *testing.T) {
	t.Parallel()
	_, err := NewVerifier(Ed25519, []byte{1, 2, 3})
	require.ErrorIs(t, err, ErrInvalidPubkeyLen)

	_, err = NewVerifier(Sr25519, []byte{1, 2, 3})
	require.ErrorIs(t, err, ErrInvalidPubkeyLen)

	_, err = NewVerifier(Secp256k1, []byte{1, 2, 3})
	require.Error(t, err)

	_, err = NewVerifier("dsa", make([]byte, 32))
	require.ErrorIs(t, err, ErrUnknownScheme)
}
