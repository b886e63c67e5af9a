package crypto

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
)

// NonceSize is the AES-GCM nonce length used in COSE_Encrypt0.
const NonceSize = 12

const gcmTagSize = 16

// AESGCM is an AES-GCM key usable as both Encryptor and Decryptor. The
// cipher is rebuilt per call, so one value may be shared across goroutines.
type AESGCM struct {
	key []byte
	alg Algorithm
	kid []byte
}

// NewAESGCM creates an AES-GCM provider. The key length selects the
// algorithm: 16 bytes for A128GCM, 32 bytes for A256GCM. All-zero keys are
// rejected.
func NewAESGCM(key []byte) (*AESGCM, error) {
	var alg Algorithm
	switch len(key) {
	case 16:
		alg = A128GCM
	case 32:
		alg = A256GCM
	default:
		return nil, fmt.Errorf("%w: AES-GCM key must be 16 or 32 bytes, got %d", ErrInvalidKey, len(key))
	}
	if isZero(key) {
		return nil, fmt.Errorf("%w: AES key is all zeros", ErrInvalidKey)
	}
	return &AESGCM{key: bytes.Clone(key), alg: alg}, nil
}

// NewAESGCMEncryptor is NewAESGCM typed as an Encryptor.
func NewAESGCMEncryptor(key []byte) (Encryptor, error) {
	return NewAESGCM(key)
}

// NewAESGCMDecryptor is NewAESGCM typed as a Decryptor.
func NewAESGCMDecryptor(key []byte) (Decryptor, error) {
	return NewAESGCM(key)
}

// WithKeyID returns a copy of a that reports kid from KeyID.
func (a *AESGCM) WithKeyID(kid []byte) *AESGCM {
	return &AESGCM{key: a.key, alg: a.alg, kid: bytes.Clone(kid)}
}

// KeyID implements KeyIdentifier.
func (a *AESGCM) KeyID() []byte { return a.kid }

// Algorithm returns the algorithm implied by the key length.
func (a *AESGCM) Algorithm() Algorithm { return a.alg }

// Encrypt implements Encryptor.
func (a *AESGCM) Encrypt(alg Algorithm, _ []byte, nonce, aad, plaintext []byte) ([]byte, error) {
	aead, err := a.aead(alg, nonce)
	if err != nil {
		return nil, err
	}
	return aead.Seal(nil, nonce, plaintext, aad), nil
}

// Decrypt implements Decryptor.
func (a *AESGCM) Decrypt(alg Algorithm, _ []byte, nonce, aad, ciphertext []byte) ([]byte, error) {
	aead, err := a.aead(alg, nonce)
	if err != nil {
		return nil, err
	}
	if len(ciphertext) < gcmTagSize {
		return nil, fmt.Errorf("%w: ciphertext shorter than tag", ErrMalformedInput)
	}
	pt, err := aead.Open(nil, nonce, ciphertext, aad)
	if err != nil {
		return nil, ErrAuthentication
	}
	return pt, nil
}

// Zeroize scrubs the key. The provider is unusable afterwards.
func (a *AESGCM) Zeroize() {
	Zeroize(a.key)
}

func (a *AESGCM) aead(alg Algorithm, nonce []byte) (cipher.AEAD, error) {
	if alg != a.alg {
		return nil, unsupported(alg, a.alg)
	}
	if len(nonce) != NonceSize {
		return nil, fmt.Errorf("%w: nonce must be %d bytes, got %d", ErrMalformedInput, NonceSize, len(nonce))
	}
	block, err := aes.NewCipher(a.key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	return cipher.NewGCM(block)
}

// RandomNonce returns a fresh random AES-GCM nonce.
func RandomNonce() ([]byte, error) {
	n := make([]byte, NonceSize)
	if _, err := rand.Read(n); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return n, nil
}
