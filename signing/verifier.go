// Package signing provides the pluggable signature schemes used to verify
// audit batch entries. The scheme is a deployment choice - the registry
// only depends on the Verifier capability.
package signing

import (
	"crypto/ed25519"
	"errors"
	"fmt"

	schnorrkel "github.com/ChainSafe/go-schnorrkel"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	secpecdsa "github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"golang.org/x/crypto/sha3"
)

var (
	ErrUnknownScheme    = errors.New("unknown signature scheme")
	ErrInvalidPubkeyLen = errors.New("pubkey has invalid length")
)

// Verifier checks a detached signature over a raw message.
type Verifier interface {
	Verify(signature, message []byte) bool
}

// Scheme identifies a supported signature scheme.
type Scheme string

const (
	Ed25519   Scheme = "ed25519"
	Sr25519   Scheme = "sr25519"
	Secp256k1 Scheme = "secp256k1"
)

// sr25519 signatures commit to a context string; signers must use the same one.
var sr25519Context = []byte("chainreg-audit")

// NewVerifier constructs a verifier for the given scheme and public key.
func NewVerifier(scheme Scheme, pubkey []byte) (Verifier, error) {
	switch scheme {
	case Ed25519:
		if len(pubkey) != ed25519.PublicKeySize {
			return nil, fmt.Errorf("%w: got %d bytes", ErrInvalidPubkeyLen, len(pubkey))
		}
		return &ed25519Verifier{pubkey: pubkey}, nil
	case Sr25519:
		if len(pubkey) != 32 {
			return nil, fmt.Errorf("%w: got %d bytes", ErrInvalidPubkeyLen, len(pubkey))
		}
		var raw [32]byte
		copy(raw[:], pubkey)
		pub := new(schnorrkel.PublicKey)
		if err := pub.Decode(raw); err != nil {
			return nil, fmt.Errorf("decoding sr25519 pubkey: %w", err)
		}
		return &sr25519Verifier{pubkey: pub}, nil
	case Secp256k1:
		pub, err := secp256k1.ParsePubKey(pubkey)
		if err != nil {
			return nil, fmt.Errorf("parsing secp256k1 pubkey: %w", err)
		}
		return &secp256k1Verifier{pubkey: pub}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownScheme, scheme)
	}
}

type ed25519Verifier struct {
	pubkey ed25519.PublicKey
}

func (v *ed25519Verifier) Verify(signature, message []byte) bool {
	if len(signature) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(v.pubkey, message, signature)
}

type sr25519Verifier struct {
	pubkey *schnorrkel.PublicKey
}

func (v *sr25519Verifier) Verify(signature, message []byte) bool {
	if len(signature) != 64 {
		return false
	}
	var raw [64]byte
	copy(raw[:], signature)
	sig := new(schnorrkel.Signature)
	if err := sig.Decode(raw); err != nil {
		return false
	}
	ok, err := v.pubkey.Verify(sig, schnorrkel.NewSigningContext(sr25519Context, message))
	return err == nil && ok
}

// secp256k1Verifier accepts compact recoverable signatures over the
// keccak-256 digest of the message. Verification succeeds when the
// recovered key equals the configured one.
type secp256k1Verifier struct {
	pubkey *secp256k1.PublicKey
}

func (v *secp256k1Verifier) Verify(signature, message []byte) bool {
	recovered, _, err := secpecdsa.RecoverCompact(signature, keccak256(message))
	if err != nil {
		return false
	}
	return recovered.IsEqual(v.pubkey)
}

func keccak256(data []byte) []byte {
	hasher := sha3.NewLegacyKeccak256()
	_, _ = hasher.Write(data)
	return hasher.Sum(nil)
}
