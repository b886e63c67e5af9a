package cose

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/claim169/claim169-core/pkg/crypto"
)

const contextEncrypt0 = "Encrypt0"

// Encrypt0Message is a parsed COSE_Encrypt0.
type Encrypt0Message struct {
	Protected  []byte
	Headers    Headers
	Ciphertext []byte
}

type encrypt0Wire struct {
	_           struct{} `cbor:",toarray"`
	Protected   []byte
	Unprotected map[any]cbor.RawMessage
	Ciphertext  []byte
}

type encrypt0Out struct {
	_           struct{} `cbor:",toarray"`
	Protected   []byte
	Unprotected map[int64]any
	Ciphertext  []byte
}

// Encrypt0 seals plaintext under e and returns a tagged COSE_Encrypt0. The
// nonce is written to the IV header; any h.IV is ignored. Certificate
// headers are not carried on this envelope.
func Encrypt0(plaintext []byte, h Headers, e crypto.Encryptor, nonce []byte) ([]byte, error) {
	if !h.Algorithm.IsEncryption() {
		return nil, fmt.Errorf("%w: %q is not an encryption algorithm", crypto.ErrUnsupportedAlgorithm, string(h.Algorithm))
	}
	if len(nonce) != crypto.NonceSize {
		return nil, fmt.Errorf("%w: nonce must be %d bytes, got %d", crypto.ErrMalformedInput, crypto.NonceSize, len(nonce))
	}

	h = Headers{Algorithm: h.Algorithm, KeyID: h.KeyID, IV: nonce}
	protected, err := h.protected()
	if err != nil {
		return nil, err
	}
	aad, err := encStructure(protected)
	if err != nil {
		return nil, err
	}
	ct, err := e.Encrypt(h.Algorithm, h.KeyID, nonce, aad, plaintext)
	if err != nil {
		return nil, err
	}

	out, err := encMode.Marshal(cbor.Tag{
		Number: TagEncrypt0,
		Content: encrypt0Out{
			Protected:   protected,
			Unprotected: h.unprotected(),
			Ciphertext:  ct,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode COSE_Encrypt0: %w", err)
	}
	return out, nil
}

// ParseEncrypt0 parses a tagged or untagged COSE_Encrypt0.
func ParseEncrypt0(data []byte) (*Encrypt0Message, error) {
	body, err := unwrap(data, TagEncrypt0)
	if err != nil {
		return nil, err
	}

	var w encrypt0Wire
	if err := decMode.Unmarshal(body, &w); err != nil {
		return nil, fmt.Errorf("%w: COSE_Encrypt0: %v", ErrMalformed, err)
	}
	if w.Ciphertext == nil {
		return nil, fmt.Errorf("%w: detached ciphertext", ErrMalformed)
	}

	h, err := parseHeaders(w.Protected, w.Unprotected)
	if err != nil {
		return nil, err
	}
	if h.Algorithm == "" {
		return nil, fmt.Errorf("%w: missing algorithm header", ErrMalformed)
	}
	if !h.Algorithm.IsEncryption() {
		return nil, fmt.Errorf("%w: %s in an encryption envelope", crypto.ErrUnsupportedAlgorithm, h.Algorithm)
	}
	if len(h.IV) == 0 {
		return nil, fmt.Errorf("%w: missing IV header", ErrMalformed)
	}

	return &Encrypt0Message{
		Protected:  w.Protected,
		Headers:    h,
		Ciphertext: w.Ciphertext,
	}, nil
}

// AAD rebuilds the Enc_structure used as additional authenticated data.
func (m *Encrypt0Message) AAD() ([]byte, error) {
	return encStructure(m.Protected)
}

// Decrypt opens the ciphertext with d. The error from d is returned unchanged.
func (m *Encrypt0Message) Decrypt(d crypto.Decryptor) ([]byte, error) {
	aad, err := m.AAD()
	if err != nil {
		return nil, err
	}
	return d.Decrypt(m.Headers.Algorithm, m.Headers.KeyID, m.Headers.IV, aad, m.Ciphertext)
}

func encStructure(protected []byte) ([]byte, error) {
	if protected == nil {
		protected = []byte{}
	}
	out, err := encMode.Marshal([]any{contextEncrypt0, protected, []byte{}})
	if err != nil {
		return nil, fmt.Errorf("failed to encode Enc_structure: %w", err)
	}
	return out, nil
}
