// Package cose implements the two COSE envelopes a credential uses
// (RFC 9052): COSE_Sign1 for the signature layer and COSE_Encrypt0 for the
// optional encryption layer. Cryptography is delegated to the provider
// interfaces in pkg/crypto.
package cose

import (
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// CBOR tags.
const (
	TagEncrypt0 uint64 = 16
	TagSign1    uint64 = 18
	TagCWT      uint64 = 61
)

var (
	// ErrMalformed means the bytes are not a well-formed envelope.
	ErrMalformed = errors.New("malformed COSE structure")

	// ErrUnsupportedType means the bytes hold a COSE structure other than
	// the one expected, such as a multi-signer COSE_Sign.
	ErrUnsupportedType = errors.New("unsupported COSE structure")
)

// MessageType classifies an envelope.
type MessageType int

const (
	TypeUnknown MessageType = iota
	TypeSign1
	TypeEncrypt0
)

func (t MessageType) String() string {
	switch t {
	case TypeSign1:
		return "COSE_Sign1"
	case TypeEncrypt0:
		return "COSE_Encrypt0"
	default:
		return "unknown"
	}
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
	decMode, err = cbor.DecOptions{
		DupMapKey: cbor.DupMapKeyEnforcedAPF,
		IntDec:    cbor.IntDecConvertSigned,
	}.DecMode()
	if err != nil {
		panic(err)
	}
}

// Detect reports which envelope data holds. Tagged input is classified by
// tag; untagged input by array length (four elements for Sign1, three for
// Encrypt0). An outer CWT tag is looked through.
func Detect(data []byte) MessageType {
	content, number, tagged, err := untag(data)
	if err != nil {
		return TypeUnknown
	}
	if tagged {
		switch number {
		case TagSign1:
			return TypeSign1
		case TagEncrypt0:
			return TypeEncrypt0
		default:
			return TypeUnknown
		}
	}
	if len(content) == 0 {
		return TypeUnknown
	}
	switch content[0] {
	case 0x84:
		return TypeSign1
	case 0x83:
		return TypeEncrypt0
	default:
		return TypeUnknown
	}
}

// untag strips an optional CWT tag and then one optional message tag.
func untag(data []byte) (content []byte, number uint64, tagged bool, err error) {
	content = data
	for range 2 {
		if len(content) == 0 {
			return nil, 0, false, fmt.Errorf("%w: empty input", ErrMalformed)
		}
		if content[0]>>5 != 6 {
			return content, 0, false, nil
		}
		var rt cbor.RawTag
		if err := decMode.Unmarshal(content, &rt); err != nil {
			return nil, 0, false, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		if rt.Number != TagCWT {
			return rt.Content, rt.Number, true, nil
		}
		content = rt.Content
	}
	return nil, 0, false, fmt.Errorf("%w: nested CWT tags", ErrMalformed)
}

// unwrap returns the untagged body of a message, rejecting a tag other than
// want.
func unwrap(data []byte, want uint64) ([]byte, error) {
	content, number, tagged, err := untag(data)
	if err != nil {
		return nil, err
	}
	if tagged && number != want {
		return nil, fmt.Errorf("%w: CBOR tag %d", ErrUnsupportedType, number)
	}
	return content, nil
}
