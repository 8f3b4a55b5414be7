package shared

import (
	"encoding/binary"
	"testing"

	"github.com/minio/sha256-simd"
	"github.com/stretchr/testify/require"
)

func entry(ts uint64, payload ...byte) SignedEntry {
	msg := make([]byte, TimestampPrefixLen, TimestampPrefixLen+len(payload))
	binary.BigEndian.PutUint64(msg, ts)
	return SignedEntry{Message: append(msg, payload...)}
}

func TestTimestampPrefix(t *testing.T) {
	t.Parallel()

	ts, ok := entry(1_700_000_000_123, 0xAA).Timestamp()
	require.True(t, ok)
	require.Equal(t, uint64(1_700_000_000_123), ts)

	_, ok = SignedEntry{Message: []byte{1, 2, 3}}.Timestamp()
	require.False(t, ok)
}

func TestRootHashFromBytes(t *testing.T) {
	t.Parallel()

	raw := make([]byte, RootHashSize)
	raw[0] = 0xFF
	h, ok := RootHashFromBytes(raw)
	require.True(t, ok)
	require.Equal(t, raw, h[:])

	_, ok = RootHashFromBytes(raw[:RootHashSize-1])
	require.False(t, ok)
}

func TestBatchRoot(t *testing.T) {
	t.Parallel()

	batch := []SignedEntry{entry(1, 'a'), entry(2, 'b'), entry(3, 'c')}

	root, err := BatchRoot(batch)
	require.NoError(t, err)
	require.NotEqual(t, RootHash{}, root)

	// Deterministic for the same ordered batch.
	again, err := BatchRoot(batch)
	require.NoError(t, err)
	require.Equal(t, root, again)

	// Order sensitive.
	swapped, err := BatchRoot([]SignedEntry{batch[1], batch[0], batch[2]})
	require.NoError(t, err)
	require.NotEqual(t, root, swapped)

	_, err = BatchRoot(nil)
	require.ErrorIs(t, err, ErrEmptyBatch)
}

func TestBatchRootMatchesNodeHash(t *testing.T) {
	t.Parallel()

	pair := []SignedEntry{entry(1, 'a'), entry(2, 'b')}
	root, err := BatchRoot(pair)
	require.NoError(t, err)

	// A two-entry tree has a single internal node over the leaf digests.
	left := sha256.Sum256(pair[0].Message)
	right := sha256.Sum256(pair[1].Message)
	require.Equal(t, HashAuditTreeNode(left[:], right[:]), root[:])
}
