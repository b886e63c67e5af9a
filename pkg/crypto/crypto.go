// Package crypto defines the capability interfaces the claim169 pipeline uses
// for signing, verification, encryption and decryption, together with
// in-process implementations for Ed25519, ECDSA P-256 and AES-GCM.
//
// Every interface is a byte-in/byte-out seam parameterised by an algorithm
// name and an optional key identifier, so HSM, KMS or host-runtime
// callbacks can stand in for the built-ins.
//
// Concurrency contract: implementations may be called from any goroutine,
// and concurrently when one provider is shared across pipeline calls. The
// built-ins hold only immutable key material and are safe for concurrent
// use. Custom implementations must be reentrant or synchronise internally,
// and are responsible for their own timeouts; the pipeline blocks on them.
package crypto

import (
	"errors"
	"fmt"
)

// Algorithm is a stable algorithm name. Custom providers receive these
// strings unchanged.
type Algorithm string

// Supported algorithms.
const (
	EdDSA   Algorithm = "EdDSA"
	ES256   Algorithm = "ES256"
	A128GCM Algorithm = "A128GCM"
	A256GCM Algorithm = "A256GCM"
)

// COSE algorithm identifiers (RFC 9053).
const (
	coseEdDSA   int64 = -8
	coseES256   int64 = -7
	coseA128GCM int64 = 1
	coseA256GCM int64 = 3
)

// Common errors returned by providers. Custom providers should wrap these
// so the pipeline can classify their failures.
var (
	// ErrSignatureInvalid means the signature check ran and did not pass.
	ErrSignatureInvalid = errors.New("signature verification failed")

	// ErrAuthentication means the AEAD tag did not match.
	ErrAuthentication = errors.New("authentication tag mismatch")

	// ErrMalformedInput means a nonce, ciphertext or signature has the wrong shape.
	ErrMalformedInput = errors.New("malformed cryptographic input")

	// ErrUnsupportedAlgorithm means the provider does not implement the algorithm.
	ErrUnsupportedAlgorithm = errors.New("unsupported algorithm")

	// ErrKeyNotFound means a resolver has no key for the identifier.
	ErrKeyNotFound = errors.New("key not found")

	// ErrInvalidKey means key material is malformed or degenerate.
	ErrInvalidKey = errors.New("invalid key")
)

// COSEID returns the COSE algorithm identifier for a.
func (a Algorithm) COSEID() (int64, error) {
	switch a {
	case EdDSA:
		return coseEdDSA, nil
	case ES256:
		return coseES256, nil
	case A128GCM:
		return coseA128GCM, nil
	case A256GCM:
		return coseA256GCM, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, string(a))
	}
}

// AlgorithmFromCOSE maps a COSE algorithm identifier to its name.
func AlgorithmFromCOSE(id int64) (Algorithm, error) {
	switch id {
	case coseEdDSA:
		return EdDSA, nil
	case coseES256:
		return ES256, nil
	case coseA128GCM:
		return A128GCM, nil
	case coseA256GCM:
		return A256GCM, nil
	default:
		return "", fmt.Errorf("%w: COSE id %d", ErrUnsupportedAlgorithm, id)
	}
}

// IsSignature reports whether a is a signature algorithm.
func (a Algorithm) IsSignature() bool {
	return a == EdDSA || a == ES256
}

// IsEncryption reports whether a is a content-encryption algorithm.
func (a Algorithm) IsEncryption() bool {
	return a == A128GCM || a == A256GCM
}

// KeySize returns the symmetric key length for an encryption algorithm.
func (a Algorithm) KeySize() int {
	switch a {
	case A128GCM:
		return 16
	case A256GCM:
		return 32
	default:
		return 0
	}
}

// Signer produces a signature over data.
type Signer interface {
	Sign(alg Algorithm, keyID []byte, data []byte) ([]byte, error)
}

// KeyIdentifier is implemented by providers that know their own key id.
// The encoder places it in the envelope header when the caller did not set
// one explicitly.
type KeyIdentifier interface {
	KeyID() []byte
}

// SignatureVerifier checks a signature over data. It returns nil only after
// a successful cryptographic check and an error wrapping ErrSignatureInvalid
// when the check fails. Any other error is reported as a provider failure.
type SignatureVerifier interface {
	Verify(alg Algorithm, keyID []byte, data, signature []byte) error
}

// Encryptor seals plaintext, returning ciphertext with the tag appended.
type Encryptor interface {
	Encrypt(alg Algorithm, keyID []byte, nonce, aad, plaintext []byte) ([]byte, error)
}

// Decryptor opens ciphertext with an appended tag. Tag mismatch is reported
// as ErrAuthentication, structurally bad input as ErrMalformedInput.
type Decryptor interface {
	Decrypt(alg Algorithm, keyID []byte, nonce, aad, ciphertext []byte) ([]byte, error)
}

// KeyResolver selects a provider from the key id carried in an envelope
// header. It returns an error wrapping ErrKeyNotFound for unknown ids.
type KeyResolver interface {
	ResolveVerifier(alg Algorithm, keyID []byte) (SignatureVerifier, error)
	ResolveDecryptor(alg Algorithm, keyID []byte) (Decryptor, error)
}

// SignerFunc adapts a function to Signer.
type SignerFunc func(alg Algorithm, keyID []byte, data []byte) ([]byte, error)

// Sign calls f.
func (f SignerFunc) Sign(alg Algorithm, keyID []byte, data []byte) ([]byte, error) {
	return f(alg, keyID, data)
}

// VerifierFunc adapts a function to SignatureVerifier.
type VerifierFunc func(alg Algorithm, keyID []byte, data, signature []byte) error

// Verify calls f.
func (f VerifierFunc) Verify(alg Algorithm, keyID []byte, data, signature []byte) error {
	return f(alg, keyID, data, signature)
}

// EncryptorFunc adapts a function to Encryptor.
type EncryptorFunc func(alg Algorithm, keyID []byte, nonce, aad, plaintext []byte) ([]byte, error)

// Encrypt calls f.
func (f EncryptorFunc) Encrypt(alg Algorithm, keyID []byte, nonce, aad, plaintext []byte) ([]byte, error) {
	return f(alg, keyID, nonce, aad, plaintext)
}

// DecryptorFunc adapts a function to Decryptor.
type DecryptorFunc func(alg Algorithm, keyID []byte, nonce, aad, ciphertext []byte) ([]byte, error)

// Decrypt calls f.
func (f DecryptorFunc) Decrypt(alg Algorithm, keyID []byte, nonce, aad, ciphertext []byte) ([]byte, error) {
	return f(alg, keyID, nonce, aad, ciphertext)
}

// Zeroize overwrites b with zeros.
func Zeroize(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

func unsupported(got, want Algorithm) error {
	return fmt.Errorf("%w: %q (provider handles %s)", ErrUnsupportedAlgorithm, string(got), want)
}
