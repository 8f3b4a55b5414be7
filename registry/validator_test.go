package registry

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/searchnet/chainreg/shared"
	"github.com/searchnet/chainreg/signing"
)

func signedEntry(t *testing.T, priv ed25519.PrivateKey, ts uint64, payload string) shared.SignedEntry {
	t.Helper()
	msg := make([]byte, shared.TimestampPrefixLen+len(payload))
	binary.BigEndian.PutUint64(msg, ts)
	copy(msg[shared.TimestampPrefixLen:], payload)
	return shared.SignedEntry{
		Signature: ed25519.Sign(priv, msg),
		Message:   msg,
	}
}

func TestValidateBatch(t *testing.T) {
	t.Parallel()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	verifier, err := signing.NewVerifier(signing.Ed25519, pub)
	require.NoError(t, err)

	t.Run("accepts a valid ordered batch", func(t *testing.T) {
		t.Parallel()
		batch := []shared.SignedEntry{
			signedEntry(t, priv, 1000, "a"),
			signedEntry(t, priv, 1500, "b"),
			signedEntry(t, priv, 2000, "c"),
		}
		require.NoError(t, validateBatch(batch, 1000, verifier))
	})

	t.Run("accepts an empty batch", func(t *testing.T) {
		t.Parallel()
		require.NoError(t, validateBatch(nil, 1000, verifier))
	})

	t.Run("rejects an entry older than the anchor", func(t *testing.T) {
		t.Parallel()
		batch := []shared.SignedEntry{
			signedEntry(t, priv, 1000, "a"),
			signedEntry(t, priv, 999, "b"),
		}
		require.ErrorIs(t, validateBatch(batch, 1000, verifier), ErrSignatureTooEarly)
	})

	t.Run("entry at exactly the anchor passes", func(t *testing.T) {
		t.Parallel()
		batch := []shared.SignedEntry{signedEntry(t, priv, 1000, "a")}
		require.NoError(t, validateBatch(batch, 1000, verifier))
	})

	t.Run("rejects a forged signature", func(t *testing.T) {
		t.Parallel()
		entry := signedEntry(t, priv, 1000, "a")
		entry.Signature[0] ^= 0xff
		require.ErrorIs(t, validateBatch([]shared.SignedEntry{entry}, 1000, verifier), ErrSignatureInvalid)
	})

	t.Run("rejects a message without a timestamp prefix", func(t *testing.T) {
		t.Parallel()
		entry := shared.SignedEntry{
			Signature: ed25519.Sign(priv, []byte("tiny")),
			Message:   []byte("tiny"),
		}
		require.ErrorIs(t, validateBatch([]shared.SignedEntry{entry}, 1000, verifier), ErrSignatureInvalid)
	})

	t.Run("short-circuits on the first bad entry", func(t *testing.T) {
		t.Parallel()
		bad := signedEntry(t, priv, 500, "early")
		forged := signedEntry(t, priv, 2000, "forged")
		forged.Signature[0] ^= 0xff
		// The too-early entry comes first, so its error wins.
		batch := []shared.SignedEntry{bad, forged}
		require.ErrorIs(t, validateBatch(batch, 1000, verifier), ErrSignatureTooEarly)
	})
}
