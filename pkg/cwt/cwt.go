// Package cwt wraps an encoded claim in a CBOR Web Token claims set
// (RFC 8392) and validates the token's time window.
package cwt

import (
	"errors"
	"fmt"
	"math"

	"github.com/fxamacker/cbor/v2"
)

// ClaimKey is the claims-set key that carries the binary identity claim.
const ClaimKey int64 = 169

// Registered claim keys.
const (
	keyIssuer    int64 = 1
	keySubject   int64 = 2
	keyExpiresAt int64 = 4
	keyNotBefore int64 = 5
	keyIssuedAt  int64 = 6
)

var (
	// ErrParse means the claims set is not a well-formed CBOR map or a
	// registered claim has the wrong type.
	ErrParse = errors.New("malformed token claims set")

	// ErrClaimNotFound means the claims set is well formed but carries no
	// identity claim, so the token is some other credential type.
	ErrClaimNotFound = errors.New("identity claim not found in token")
)

// Meta is the token metadata. Nil fields are absent.
type Meta struct {
	Issuer    *string `json:"issuer,omitempty"`
	Subject   *string `json:"subject,omitempty"`
	ExpiresAt *int64  `json:"expiresAt,omitempty"`
	NotBefore *int64  `json:"notBefore,omitempty"`
	IssuedAt  *int64  `json:"issuedAt,omitempty"`
}

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	decMode, err = cbor.DecOptions{DupMapKey: cbor.DupMapKeyEnforcedAPF}.DecMode()
	if err != nil {
		panic(err)
	}
}

// Marshal builds a claims set from meta with claimBytes embedded at
// ClaimKey as a nested map.
func Marshal(meta Meta, claimBytes []byte) ([]byte, error) {
	if err := cbor.Wellformed(claimBytes); err != nil {
		return nil, fmt.Errorf("%w: claim: %v", ErrParse, err)
	}

	m := map[int64]any{ClaimKey: cbor.RawMessage(claimBytes)}
	if meta.Issuer != nil {
		m[keyIssuer] = *meta.Issuer
	}
	if meta.Subject != nil {
		m[keySubject] = *meta.Subject
	}
	if meta.ExpiresAt != nil {
		m[keyExpiresAt] = *meta.ExpiresAt
	}
	if meta.NotBefore != nil {
		m[keyNotBefore] = *meta.NotBefore
	}
	if meta.IssuedAt != nil {
		m[keyIssuedAt] = *meta.IssuedAt
	}

	out, err := encMode.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to encode claims set: %w", err)
	}
	return out, nil
}

// Unmarshal parses a claims set and returns its metadata and the raw
// identity claim. Unregistered keys other than ClaimKey are ignored, as are
// text-string claim names.
func Unmarshal(data []byte) (Meta, cbor.RawMessage, error) {
	var meta Meta

	var labelled map[any]cbor.RawMessage
	if err := decMode.Unmarshal(data, &labelled); err != nil {
		return meta, nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	if labelled == nil {
		return meta, nil, fmt.Errorf("%w: claims set is not a map", ErrParse)
	}
	raw := integerClaims(labelled)

	if err := decodeString(raw, keyIssuer, &meta.Issuer); err != nil {
		return meta, nil, err
	}
	if err := decodeString(raw, keySubject, &meta.Subject); err != nil {
		return meta, nil, err
	}
	if err := decodeTime(raw, keyExpiresAt, &meta.ExpiresAt); err != nil {
		return meta, nil, err
	}
	if err := decodeTime(raw, keyNotBefore, &meta.NotBefore); err != nil {
		return meta, nil, err
	}
	if err := decodeTime(raw, keyIssuedAt, &meta.IssuedAt); err != nil {
		return meta, nil, err
	}

	claim, ok := raw[ClaimKey]
	if !ok {
		return meta, nil, ErrClaimNotFound
	}
	return meta, claim, nil
}

// integerClaims keeps the integer-keyed claims of a claims set.
func integerClaims(labelled map[any]cbor.RawMessage) map[int64]cbor.RawMessage {
	raw := make(map[int64]cbor.RawMessage, len(labelled))
	for k, v := range labelled {
		switch k := k.(type) {
		case int64:
			raw[k] = v
		case uint64:
			if k <= math.MaxInt64 {
				raw[int64(k)] = v
			}
		}
	}
	return raw
}

func decodeString(raw map[int64]cbor.RawMessage, key int64, dst **string) error {
	v, ok := raw[key]
	if !ok {
		return nil
	}
	var s string
	if err := decMode.Unmarshal(v, &s); err != nil {
		return fmt.Errorf("%w: claim %d: %v", ErrParse, key, err)
	}
	*dst = &s
	return nil
}

// decodeTime accepts integer NumericDate values and truncates floating-point
// ones, as RFC 8392 permits both.
func decodeTime(raw map[int64]cbor.RawMessage, key int64, dst **int64) error {
	v, ok := raw[key]
	if !ok {
		return nil
	}
	var n int64
	if err := decMode.Unmarshal(v, &n); err == nil {
		*dst = &n
		return nil
	}
	var f float64
	if err := decMode.Unmarshal(v, &f); err != nil {
		return fmt.Errorf("%w: claim %d: %v", ErrParse, key, err)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return fmt.Errorf("%w: claim %d is not a finite time", ErrParse, key)
	}
	if f >= 1<<63 || f < -(1<<63) {
		return fmt.Errorf("%w: claim %d is out of range", ErrParse, key)
	}
	n = int64(f)
	*dst = &n
	return nil
}
