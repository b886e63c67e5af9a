package crypto

import (
	"bytes"
	"crypto/ecdh"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"math/big"
)

const p256FieldSize = 32

// ECDSAP256Signer signs with ES256 (ECDSA P-256, SHA-256) and emits the
// fixed-width r||s signature form used by COSE.
type ECDSAP256Signer struct {
	key *ecdsa.PrivateKey
	kid []byte
}

// NewECDSAP256Signer wraps a P-256 private key.
func NewECDSAP256Signer(key *ecdsa.PrivateKey) (*ECDSAP256Signer, error) {
	if key == nil || key.Curve != elliptic.P256() {
		return nil, fmt.Errorf("%w: key is not on P-256", ErrInvalidKey)
	}
	if key.D == nil || key.D.Sign() == 0 {
		return nil, fmt.Errorf("%w: P-256 scalar is zero", ErrInvalidKey)
	}
	if _, err := key.ECDH(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	return &ECDSAP256Signer{key: key}, nil
}

// NewECDSAP256SignerFromScalar builds a signer from a 32-byte big-endian
// private scalar.
func NewECDSAP256SignerFromScalar(d []byte) (*ECDSAP256Signer, error) {
	if len(d) != p256FieldSize {
		return nil, fmt.Errorf("%w: P-256 scalar must be %d bytes, got %d", ErrInvalidKey, p256FieldSize, len(d))
	}
	priv, err := ecdh.P256().NewPrivateKey(d)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	pub := priv.PublicKey().Bytes()
	key := &ecdsa.PrivateKey{
		PublicKey: ecdsa.PublicKey{
			Curve: elliptic.P256(),
			X:     new(big.Int).SetBytes(pub[1 : 1+p256FieldSize]),
			Y:     new(big.Int).SetBytes(pub[1+p256FieldSize:]),
		},
		D: new(big.Int).SetBytes(d),
	}
	return &ECDSAP256Signer{key: key}, nil
}

// WithKeyID returns a copy of s that reports kid from KeyID.
func (s *ECDSAP256Signer) WithKeyID(kid []byte) *ECDSAP256Signer {
	return &ECDSAP256Signer{key: s.key, kid: bytes.Clone(kid)}
}

// KeyID implements KeyIdentifier.
func (s *ECDSAP256Signer) KeyID() []byte { return s.kid }

// Public returns the verification key.
func (s *ECDSAP256Signer) Public() *ecdsa.PublicKey {
	return &s.key.PublicKey
}

// Sign implements Signer.
func (s *ECDSAP256Signer) Sign(alg Algorithm, _ []byte, data []byte) ([]byte, error) {
	if alg != ES256 {
		return nil, unsupported(alg, ES256)
	}
	digest := sha256.Sum256(data)
	r, sv, err := ecdsa.Sign(rand.Reader, s.key, digest[:])
	if err != nil {
		return nil, fmt.Errorf("failed to sign: %w", err)
	}
	sig := make([]byte, 2*p256FieldSize)
	r.FillBytes(sig[:p256FieldSize])
	sv.FillBytes(sig[p256FieldSize:])
	return sig, nil
}

// ECDSAP256Verifier verifies ES256 signatures in r||s form.
type ECDSAP256Verifier struct {
	key *ecdsa.PublicKey
}

// NewECDSAP256Verifier wraps a P-256 public key, rejecting points that are
// off the curve or at infinity.
func NewECDSAP256Verifier(key *ecdsa.PublicKey) (*ECDSAP256Verifier, error) {
	if key == nil || key.Curve != elliptic.P256() || key.X == nil || key.Y == nil {
		return nil, fmt.Errorf("%w: key is not on P-256", ErrInvalidKey)
	}
	if _, err := key.ECDH(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	return &ECDSAP256Verifier{key: key}, nil
}

// NewECDSAP256VerifierFromBytes parses an SEC 1 encoded point, either
// uncompressed (65 bytes) or compressed (33 bytes).
func NewECDSAP256VerifierFromBytes(b []byte) (*ECDSAP256Verifier, error) {
	switch len(b) {
	case 1 + 2*p256FieldSize:
		pub, err := ecdh.P256().NewPublicKey(b)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
		}
		raw := pub.Bytes()
		return &ECDSAP256Verifier{key: &ecdsa.PublicKey{
			Curve: elliptic.P256(),
			X:     new(big.Int).SetBytes(raw[1 : 1+p256FieldSize]),
			Y:     new(big.Int).SetBytes(raw[1+p256FieldSize:]),
		}}, nil
	case 1 + p256FieldSize:
		x, y := elliptic.UnmarshalCompressed(elliptic.P256(), b)
		if x == nil {
			return nil, fmt.Errorf("%w: invalid compressed P-256 point", ErrInvalidKey)
		}
		return NewECDSAP256Verifier(&ecdsa.PublicKey{Curve: elliptic.P256(), X: x, Y: y})
	default:
		return nil, fmt.Errorf("%w: P-256 public key must be 33 or 65 bytes, got %d", ErrInvalidKey, len(b))
	}
}

// Verify implements SignatureVerifier.
func (v *ECDSAP256Verifier) Verify(alg Algorithm, _ []byte, data, signature []byte) error {
	if alg != ES256 {
		return unsupported(alg, ES256)
	}
	if len(signature) != 2*p256FieldSize {
		return fmt.Errorf("%w: ES256 signature must be %d bytes, got %d", ErrSignatureInvalid, 2*p256FieldSize, len(signature))
	}
	r := new(big.Int).SetBytes(signature[:p256FieldSize])
	s := new(big.Int).SetBytes(signature[p256FieldSize:])
	digest := sha256.Sum256(data)
	if !ecdsa.Verify(v.key, digest[:], r, s) {
		return ErrSignatureInvalid
	}
	return nil
}
