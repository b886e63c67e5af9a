package cose

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/claim169/claim169-core/pkg/crypto"
)

// Header labels.
const (
	LabelAlgorithm int64 = 1
	LabelKeyID     int64 = 4
	LabelIV        int64 = 5
	LabelX5Bag     int64 = 32
	LabelX5Chain   int64 = 33
	LabelX5T       int64 = 34
	LabelX5U       int64 = 35
)

// Thumbprint is a COSE_CertHash (RFC 9360): a hash algorithm identifier and
// the certificate hash.
type Thumbprint struct {
	_         struct{} `cbor:",toarray"`
	Algorithm int64    `json:"alg"`
	Hash      []byte   `json:"hash"`
}

// Headers is the merged view of an envelope's header parameters. On encode
// Algorithm and KeyID go into the protected bucket and everything else into
// the unprotected one. On decode both buckets are read and a protected value
// wins over an unprotected one with the same label.
type Headers struct {
	Algorithm crypto.Algorithm
	KeyID     []byte
	IV        []byte

	// Certificate material is carried for the caller and never validated here.
	X5Chain [][]byte
	X5Bag   [][]byte
	X5T     *Thumbprint
	X5U     string
}

// HasCertificates reports whether any certificate header is present.
func (h Headers) HasCertificates() bool {
	return len(h.X5Chain) > 0 || len(h.X5Bag) > 0 || h.X5T != nil || h.X5U != ""
}

// protected serializes the protected bucket. With no algorithm and no key id
// it is the empty byte string.
func (h Headers) protected() ([]byte, error) {
	m := make(map[int64]any)
	if h.Algorithm != "" {
		id, err := h.Algorithm.COSEID()
		if err != nil {
			return nil, err
		}
		m[LabelAlgorithm] = id
	}
	if len(h.KeyID) > 0 {
		m[LabelKeyID] = h.KeyID
	}
	if len(m) == 0 {
		return []byte{}, nil
	}
	out, err := encMode.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to encode protected header: %w", err)
	}
	return out, nil
}

func (h Headers) unprotected() map[int64]any {
	m := make(map[int64]any)
	if len(h.IV) > 0 {
		m[LabelIV] = h.IV
	}
	if len(h.X5Bag) > 0 {
		m[LabelX5Bag] = certSet(h.X5Bag)
	}
	if len(h.X5Chain) > 0 {
		m[LabelX5Chain] = certSet(h.X5Chain)
	}
	if h.X5T != nil {
		m[LabelX5T] = h.X5T
	}
	if h.X5U != "" {
		m[LabelX5U] = h.X5U
	}
	return m
}

// certSet encodes a single certificate as a bare bstr and several as an
// array, as RFC 9360 requires.
func certSet(certs [][]byte) any {
	if len(certs) == 1 {
		return certs[0]
	}
	return certs
}

// parseHeaders merges the serialized protected bucket with the unprotected
// map. Non-integer labels are ignored.
func parseHeaders(protected []byte, unprotected map[any]cbor.RawMessage) (Headers, error) {
	var h Headers

	merged := make(map[int64]cbor.RawMessage)
	if len(protected) > 0 {
		var p map[any]cbor.RawMessage
		if err := decMode.Unmarshal(protected, &p); err != nil {
			return h, fmt.Errorf("%w: protected header: %v", ErrMalformed, err)
		}
		if p == nil {
			return h, fmt.Errorf("%w: protected header is not a map", ErrMalformed)
		}
		addLabels(merged, p)
	}
	addLabels(merged, unprotected)

	if v, ok := merged[LabelAlgorithm]; ok {
		var id int64
		if err := decMode.Unmarshal(v, &id); err != nil {
			return h, fmt.Errorf("%w: algorithm header: %v", ErrMalformed, err)
		}
		alg, err := crypto.AlgorithmFromCOSE(id)
		if err != nil {
			return h, err
		}
		h.Algorithm = alg
	}
	if err := decodeLabel(merged, LabelKeyID, &h.KeyID); err != nil {
		return h, err
	}
	if err := decodeLabel(merged, LabelIV, &h.IV); err != nil {
		return h, err
	}

	var err error
	if h.X5Bag, err = decodeCertSet(merged, LabelX5Bag); err != nil {
		return h, err
	}
	if h.X5Chain, err = decodeCertSet(merged, LabelX5Chain); err != nil {
		return h, err
	}
	if v, ok := merged[LabelX5T]; ok {
		var t Thumbprint
		if err := decMode.Unmarshal(v, &t); err != nil {
			return h, fmt.Errorf("%w: x5t header: %v", ErrMalformed, err)
		}
		h.X5T = &t
	}
	if err := decodeLabel(merged, LabelX5U, &h.X5U); err != nil {
		return h, err
	}
	return h, nil
}

// addLabels copies integer labels from src that dst does not hold yet.
func addLabels(dst map[int64]cbor.RawMessage, src map[any]cbor.RawMessage) {
	for k, v := range src {
		var label int64
		switch k := k.(type) {
		case int64:
			label = k
		case uint64:
			if k > 1<<62 {
				continue
			}
			label = int64(k)
		default:
			continue
		}
		if _, ok := dst[label]; !ok {
			dst[label] = v
		}
	}
}

func decodeLabel(merged map[int64]cbor.RawMessage, label int64, dst any) error {
	v, ok := merged[label]
	if !ok {
		return nil
	}
	if err := decMode.Unmarshal(v, dst); err != nil {
		return fmt.Errorf("%w: header %d: %v", ErrMalformed, label, err)
	}
	return nil
}

func decodeCertSet(merged map[int64]cbor.RawMessage, label int64) ([][]byte, error) {
	v, ok := merged[label]
	if !ok {
		return nil, nil
	}
	var one []byte
	if err := decMode.Unmarshal(v, &one); err == nil {
		return [][]byte{one}, nil
	}
	var many [][]byte
	if err := decMode.Unmarshal(v, &many); err != nil {
		return nil, fmt.Errorf("%w: header %d: %v", ErrMalformed, label, err)
	}
	return many, nil
}
