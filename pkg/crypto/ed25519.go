package crypto

import (
	"bytes"
	"crypto/ed25519"
	"crypto/subtle"
	"fmt"

	"filippo.io/edwards25519"
)

// Ed25519Signer signs with an in-memory Ed25519 private key.
type Ed25519Signer struct {
	key ed25519.PrivateKey
	kid []byte
}

// NewEd25519Signer creates a signer from a 64-byte private key. All-zero
// seeds are rejected.
func NewEd25519Signer(key ed25519.PrivateKey) (*Ed25519Signer, error) {
	if len(key) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("%w: ed25519 private key must be %d bytes, got %d", ErrInvalidKey, ed25519.PrivateKeySize, len(key))
	}
	if isZero(key.Seed()) {
		return nil, fmt.Errorf("%w: ed25519 seed is all zeros", ErrInvalidKey)
	}
	if _, err := checkEd25519Public(key.Public().(ed25519.PublicKey)); err != nil {
		return nil, err
	}
	return &Ed25519Signer{key: bytes.Clone(key)}, nil
}

// NewEd25519SignerFromSeed creates a signer from a 32-byte seed.
func NewEd25519SignerFromSeed(seed []byte) (*Ed25519Signer, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("%w: ed25519 seed must be %d bytes, got %d", ErrInvalidKey, ed25519.SeedSize, len(seed))
	}
	if isZero(seed) {
		return nil, fmt.Errorf("%w: ed25519 seed is all zeros", ErrInvalidKey)
	}
	return &Ed25519Signer{key: ed25519.NewKeyFromSeed(seed)}, nil
}

// WithKeyID returns a copy of s that reports kid from KeyID.
func (s *Ed25519Signer) WithKeyID(kid []byte) *Ed25519Signer {
	return &Ed25519Signer{key: s.key, kid: bytes.Clone(kid)}
}

// KeyID implements KeyIdentifier.
func (s *Ed25519Signer) KeyID() []byte { return s.kid }

// Public returns the verification key.
func (s *Ed25519Signer) Public() ed25519.PublicKey {
	return s.key.Public().(ed25519.PublicKey)
}

// Sign implements Signer.
func (s *Ed25519Signer) Sign(alg Algorithm, _ []byte, data []byte) ([]byte, error) {
	if alg != EdDSA {
		return nil, unsupported(alg, EdDSA)
	}
	return ed25519.Sign(s.key, data), nil
}

// Zeroize scrubs the private key. The signer is unusable afterwards.
func (s *Ed25519Signer) Zeroize() {
	Zeroize(s.key)
}

// Ed25519Verifier verifies Ed25519 signatures.
type Ed25519Verifier struct {
	key ed25519.PublicKey
}

// NewEd25519Verifier creates a verifier from a 32-byte public key. Invalid
// encodings and small-order points are rejected.
func NewEd25519Verifier(key ed25519.PublicKey) (*Ed25519Verifier, error) {
	pub, err := checkEd25519Public(key)
	if err != nil {
		return nil, err
	}
	return &Ed25519Verifier{key: pub}, nil
}

// Verify implements SignatureVerifier.
func (v *Ed25519Verifier) Verify(alg Algorithm, _ []byte, data, signature []byte) error {
	if alg != EdDSA {
		return unsupported(alg, EdDSA)
	}
	if len(signature) != ed25519.SignatureSize {
		return fmt.Errorf("%w: ed25519 signature must be %d bytes, got %d", ErrSignatureInvalid, ed25519.SignatureSize, len(signature))
	}
	if !ed25519.Verify(v.key, data, signature) {
		return ErrSignatureInvalid
	}
	return nil
}

func checkEd25519Public(key []byte) (ed25519.PublicKey, error) {
	if len(key) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("%w: ed25519 public key must be %d bytes, got %d", ErrInvalidKey, ed25519.PublicKeySize, len(key))
	}
	p, err := new(edwards25519.Point).SetBytes(key)
	if err != nil {
		return nil, fmt.Errorf("%w: ed25519 public key is not a valid point", ErrInvalidKey)
	}
	if new(edwards25519.Point).MultByCofactor(p).Equal(edwards25519.NewIdentityPoint()) == 1 {
		return nil, fmt.Errorf("%w: ed25519 public key has small order", ErrInvalidKey)
	}
	return bytes.Clone(key), nil
}

func isZero(b []byte) bool {
	return subtle.ConstantTimeCompare(b, make([]byte, len(b))) == 1
}
