package shared

import (
	"encoding/binary"
	"encoding/hex"
)

const (
	// RootHashSize is the size of an audit chain root digest.
	RootHashSize = 32

	// TimestampPrefixLen is the number of leading message bytes that carry
	// the big-endian epoch-milliseconds timestamp of a signed entry.
	TimestampPrefixLen = 8
)

// RootHash is a digest summarizing one committed batch of audit entries.
// Consecutive commits chain these digests: every commit presents the
// previously stored root and replaces it with its own.
type RootHash [RootHashSize]byte

func (h RootHash) String() string {
	return hex.EncodeToString(h[:])
}

// RootHashFromBytes converts a raw slice into a RootHash.
// Returns false unless the slice is exactly RootHashSize bytes.
func RootHashFromBytes(b []byte) (RootHash, bool) {
	var h RootHash
	if len(b) != RootHashSize {
		return h, false
	}
	copy(h[:], b)
	return h, true
}

// SignedEntry is a single externally-signed activity record.
// The message starts with a TimestampPrefixLen-byte big-endian timestamp
// (epoch milliseconds) followed by arbitrary attested payload.
type SignedEntry struct {
	Signature []byte
	Message   []byte
}

// Timestamp extracts the embedded timestamp from the message prefix.
// Returns false when the message is too short to carry one.
func (e SignedEntry) Timestamp() (uint64, bool) {
	if len(e.Message) < TimestampPrefixLen {
		return 0, false
	}
	return binary.BigEndian.Uint64(e.Message[:TimestampPrefixLen]), true
}
