package shared

import (
	"errors"
	"fmt"

	"github.com/minio/sha256-simd" // simd optimized sha256 computation
	"github.com/spacemeshos/merkle-tree"
)

var ErrEmptyBatch = errors.New("batch contains no entries")

// HashAuditTreeNode calculates an internal node of the audit batch
// merkle tree. The 0x01 domain prefix keeps internal nodes distinct
// from leaves.
func HashAuditTreeNode(lChild, rChild []byte) []byte {
	hasher := sha256.New()
	_, _ = hasher.Write([]byte{0x01})
	_, _ = hasher.Write(lChild)
	_, _ = hasher.Write(rChild)
	return hasher.Sum(nil)
}

// BatchRoot computes the canonical root digest over an ordered batch of
// signed entries. Leaves are sha256 digests of the raw messages.
//
// The registry itself never recomputes roots - providers derive the root
// they commit with this helper.
func BatchRoot(entries []SignedEntry) (RootHash, error) {
	var root RootHash
	if len(entries) == 0 {
		return root, ErrEmptyBatch
	}

	mtree, err := merkle.NewTreeBuilder().
		WithHashFunc(HashAuditTreeNode).
		Build()
	if err != nil {
		return root, fmt.Errorf("failed to initialize merkle tree: %w", err)
	}

	for _, entry := range entries {
		leaf := sha256.Sum256(entry.Message)
		if err := mtree.AddLeaf(leaf[:]); err != nil {
			return root, fmt.Errorf("adding batch leaf: %w", err)
		}
	}

	copy(root[:], mtree.Root())
	return root, nil
}
