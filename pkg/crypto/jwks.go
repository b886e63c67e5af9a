package crypto

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"fmt"

	"github.com/go-jose/go-jose/v4"
)

// AlgorithmForJWK returns the algorithm a JWK is meant for. An explicit
// "alg" member wins; otherwise it is inferred from the key type.
func AlgorithmForJWK(jwk *jose.JSONWebKey) (Algorithm, error) {
	if jwk == nil || jwk.Key == nil {
		return "", fmt.Errorf("%w: empty JWK", ErrInvalidKey)
	}
	if jwk.Algorithm != "" {
		alg := Algorithm(jwk.Algorithm)
		if _, err := alg.COSEID(); err != nil {
			return "", err
		}
		return alg, nil
	}

	switch k := jwk.Key.(type) {
	case ed25519.PrivateKey, ed25519.PublicKey:
		return EdDSA, nil
	case *ecdsa.PrivateKey:
		if k.Curve == elliptic.P256() {
			return ES256, nil
		}
	case *ecdsa.PublicKey:
		if k.Curve == elliptic.P256() {
			return ES256, nil
		}
	case []byte:
		switch len(k) {
		case 16:
			return A128GCM, nil
		case 32:
			return A256GCM, nil
		}
	}
	return "", fmt.Errorf("%w: cannot infer algorithm for %T", ErrUnsupportedAlgorithm, jwk.Key)
}

// SignerFromJWK builds a Signer from a private JWK. The signer reports the
// JWK's kid from KeyID.
func SignerFromJWK(jwk *jose.JSONWebKey) (Signer, Algorithm, error) {
	alg, err := AlgorithmForJWK(jwk)
	if err != nil {
		return nil, "", err
	}
	kid := []byte(jwk.KeyID)

	switch k := jwk.Key.(type) {
	case ed25519.PrivateKey:
		if alg != EdDSA {
			return nil, "", unsupported(alg, EdDSA)
		}
		s, err := NewEd25519Signer(k)
		if err != nil {
			return nil, "", err
		}
		return s.WithKeyID(kid), alg, nil
	case *ecdsa.PrivateKey:
		if alg != ES256 {
			return nil, "", unsupported(alg, ES256)
		}
		s, err := NewECDSAP256Signer(k)
		if err != nil {
			return nil, "", err
		}
		return s.WithKeyID(kid), alg, nil
	default:
		return nil, "", fmt.Errorf("%w: JWK does not hold a private signing key (%T)", ErrInvalidKey, jwk.Key)
	}
}

// VerifierFromJWK builds a SignatureVerifier from a public (or private) JWK.
func VerifierFromJWK(jwk *jose.JSONWebKey) (SignatureVerifier, Algorithm, error) {
	alg, err := AlgorithmForJWK(jwk)
	if err != nil {
		return nil, "", err
	}

	pub := jwk.Public()
	switch k := pub.Key.(type) {
	case ed25519.PublicKey:
		if alg != EdDSA {
			return nil, "", unsupported(alg, EdDSA)
		}
		v, err := NewEd25519Verifier(k)
		return v, alg, err
	case *ecdsa.PublicKey:
		if alg != ES256 {
			return nil, "", unsupported(alg, ES256)
		}
		v, err := NewECDSAP256Verifier(k)
		return v, alg, err
	default:
		return nil, "", fmt.Errorf("%w: JWK does not hold a signature key (%T)", ErrInvalidKey, jwk.Key)
	}
}

// AEADFromJWK builds an AES-GCM provider from a symmetric ("oct") JWK.
func AEADFromJWK(jwk *jose.JSONWebKey) (*AESGCM, error) {
	alg, err := AlgorithmForJWK(jwk)
	if err != nil {
		return nil, err
	}
	raw, ok := jwk.Key.([]byte)
	if !ok {
		return nil, fmt.Errorf("%w: JWK is not a symmetric key (%T)", ErrInvalidKey, jwk.Key)
	}
	a, err := NewAESGCM(raw)
	if err != nil {
		return nil, err
	}
	if a.Algorithm() != alg {
		return nil, fmt.Errorf("%w: %d-byte key cannot be used for %s", ErrInvalidKey, len(raw), alg)
	}
	return a.WithKeyID([]byte(jwk.KeyID)), nil
}

// EncryptorFromJWK builds an Encryptor from a symmetric JWK. The encryptor
// reports the JWK's kid from KeyID.
func EncryptorFromJWK(jwk *jose.JSONWebKey) (Encryptor, Algorithm, error) {
	a, err := AEADFromJWK(jwk)
	if err != nil {
		return nil, "", err
	}
	return a, a.Algorithm(), nil
}

// DecryptorFromJWK builds a Decryptor from a symmetric JWK.
func DecryptorFromJWK(jwk *jose.JSONWebKey) (Decryptor, Algorithm, error) {
	a, err := AEADFromJWK(jwk)
	if err != nil {
		return nil, "", err
	}
	return a, a.Algorithm(), nil
}

// KeySetResolver resolves providers from a JSON Web Key Set by kid.
type KeySetResolver struct {
	set jose.JSONWebKeySet
}

// NewKeySetResolver creates a resolver over set. The set is not copied and
// must not be modified while the resolver is in use.
func NewKeySetResolver(set jose.JSONWebKeySet) *KeySetResolver {
	return &KeySetResolver{set: set}
}

// ResolveVerifier implements KeyResolver.
func (r *KeySetResolver) ResolveVerifier(alg Algorithm, keyID []byte) (SignatureVerifier, error) {
	for _, jwk := range r.set.Key(string(keyID)) {
		v, keyAlg, err := VerifierFromJWK(&jwk)
		if err != nil || keyAlg != alg {
			continue
		}
		return v, nil
	}
	return nil, fmt.Errorf("%w: no %s verification key with kid %q", ErrKeyNotFound, alg, keyID)
}

// ResolveDecryptor implements KeyResolver.
func (r *KeySetResolver) ResolveDecryptor(alg Algorithm, keyID []byte) (Decryptor, error) {
	for _, jwk := range r.set.Key(string(keyID)) {
		d, err := AEADFromJWK(&jwk)
		if err != nil || d.Algorithm() != alg {
			continue
		}
		return d, nil
	}
	return nil, fmt.Errorf("%w: no %s decryption key with kid %q", ErrKeyNotFound, alg, keyID)
}
