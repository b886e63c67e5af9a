package cose

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/claim169/claim169-core/pkg/crypto"
)

const contextSignature1 = "Signature1"

// Sign1Message is a parsed COSE_Sign1.
type Sign1Message struct {
	// Protected is the serialized protected bucket exactly as received.
	Protected []byte
	Headers   Headers
	Payload   []byte
	Signature []byte
}

type sign1Wire struct {
	_           struct{} `cbor:",toarray"`
	Protected   []byte
	Unprotected map[any]cbor.RawMessage
	Payload     []byte
	Signature   []byte
}

type sign1Out struct {
	_           struct{} `cbor:",toarray"`
	Protected   []byte
	Unprotected map[int64]any
	Payload     []byte
	Signature   []byte
}

// Sign1 signs payload and returns a tagged COSE_Sign1. h.Algorithm selects
// the signature algorithm; h.IV must be empty.
func Sign1(payload []byte, h Headers, s crypto.Signer) ([]byte, error) {
	if !h.Algorithm.IsSignature() {
		return nil, fmt.Errorf("%w: %q is not a signature algorithm", crypto.ErrUnsupportedAlgorithm, string(h.Algorithm))
	}
	if len(h.IV) > 0 {
		return nil, fmt.Errorf("%w: IV header on a signature envelope", ErrMalformed)
	}
	if payload == nil {
		payload = []byte{}
	}

	protected, err := h.protected()
	if err != nil {
		return nil, err
	}
	tbs, err := sigStructure(protected, payload)
	if err != nil {
		return nil, err
	}
	sig, err := s.Sign(h.Algorithm, h.KeyID, tbs)
	if err != nil {
		return nil, err
	}

	return marshalSign1(protected, h, payload, sig)
}

func marshalSign1(protected []byte, h Headers, payload, sig []byte) ([]byte, error) {
	out, err := encMode.Marshal(cbor.Tag{
		Number: TagSign1,
		Content: sign1Out{
			Protected:   protected,
			Unprotected: h.unprotected(),
			Payload:     payload,
			Signature:   sig,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode COSE_Sign1: %w", err)
	}
	return out, nil
}

// Sign1Unsigned builds a COSE_Sign1 with no algorithm header and an empty
// signature. h.Algorithm must be empty.
func Sign1Unsigned(payload []byte, h Headers) ([]byte, error) {
	if h.Algorithm != "" {
		return nil, fmt.Errorf("%w: algorithm header on an unsigned envelope", ErrMalformed)
	}
	if len(h.IV) > 0 {
		return nil, fmt.Errorf("%w: IV header on a signature envelope", ErrMalformed)
	}
	if payload == nil {
		payload = []byte{}
	}
	protected, err := h.protected()
	if err != nil {
		return nil, err
	}
	return marshalSign1(protected, h, payload, []byte{})
}

// ParseSign1 parses a tagged or untagged COSE_Sign1. It does not verify the
// signature.
func ParseSign1(data []byte) (*Sign1Message, error) {
	body, err := unwrap(data, TagSign1)
	if err != nil {
		return nil, err
	}

	var w sign1Wire
	if err := decMode.Unmarshal(body, &w); err != nil {
		return nil, fmt.Errorf("%w: COSE_Sign1: %v", ErrMalformed, err)
	}
	if w.Payload == nil {
		return nil, fmt.Errorf("%w: detached payload", ErrMalformed)
	}

	h, err := parseHeaders(w.Protected, w.Unprotected)
	if err != nil {
		return nil, err
	}
	switch {
	case h.Algorithm == "" && len(w.Signature) > 0:
		return nil, fmt.Errorf("%w: signature without algorithm header", ErrMalformed)
	case h.Algorithm != "" && len(w.Signature) == 0:
		return nil, fmt.Errorf("%w: empty signature", ErrMalformed)
	case h.Algorithm != "" && !h.Algorithm.IsSignature():
		return nil, fmt.Errorf("%w: %s in a signature envelope", crypto.ErrUnsupportedAlgorithm, h.Algorithm)
	}

	return &Sign1Message{
		Protected: w.Protected,
		Headers:   h,
		Payload:   w.Payload,
		Signature: w.Signature,
	}, nil
}

// ToBeSigned rebuilds the Sig_structure the signer signed.
func (m *Sign1Message) ToBeSigned() ([]byte, error) {
	return sigStructure(m.Protected, m.Payload)
}

// Signed reports whether the message carries a signature. Unsigned messages
// are produced only when the encoder was explicitly allowed to skip signing.
func (m *Sign1Message) Signed() bool {
	return len(m.Signature) > 0
}

// Verify checks the signature with v. The error from v is returned unchanged.
// An unsigned message fails without calling v.
func (m *Sign1Message) Verify(v crypto.SignatureVerifier) error {
	if !m.Signed() {
		return fmt.Errorf("%w: message is unsigned", crypto.ErrSignatureInvalid)
	}
	tbs, err := m.ToBeSigned()
	if err != nil {
		return err
	}
	return v.Verify(m.Headers.Algorithm, m.Headers.KeyID, tbs, m.Signature)
}

func sigStructure(protected, payload []byte) ([]byte, error) {
	if protected == nil {
		protected = []byte{}
	}
	out, err := encMode.Marshal([]any{contextSignature1, protected, []byte{}, payload})
	if err != nil {
		return nil, fmt.Errorf("failed to encode Sig_structure: %w", err)
	}
	return out, nil
}
