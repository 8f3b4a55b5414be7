package registry

import (
	"fmt"

	"github.com/searchnet/chainreg/shared"
	"github.com/searchnet/chainreg/signing"
)

// validateBatch checks every signed entry, in order, against the monotonic
// timestamp rule and the configured signature scheme.
//
// Each entry must embed a timestamp no older than the anchor (the chain's
// last recorded update) - this blocks replay of stale attestations. The
// check short-circuits: the first failing entry rejects the whole batch.
func validateBatch(batch []shared.SignedEntry, anchor uint64, verifier signing.Verifier) error {
	for i, entry := range batch {
		ts, ok := entry.Timestamp()
		if !ok {
			return fmt.Errorf("%w: entry %d carries no timestamp prefix", ErrSignatureInvalid, i)
		}
		if ts < anchor {
			return fmt.Errorf("%w: entry %d: %d < %d", ErrSignatureTooEarly, i, ts, anchor)
		}
		if !verifier.Verify(entry.Signature, entry.Message) {
			return fmt.Errorf("%w: entry %d", ErrSignatureInvalid, i)
		}
	}
	return nil
}
