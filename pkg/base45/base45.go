// Package base45 implements the Base45 transport encoding (RFC 9285) used to
// carry binary credentials in QR alphanumeric mode.
//
// The alphabet contains a literal space. Encoded text must be passed to
// Decode exactly as produced: trimming or normalising whitespace corrupts
// valid input.
package base45

import (
	"errors"
	"fmt"
	"strings"
)

// Alphabet is the 45-character set from RFC 9285 §4.
const Alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ $%*+-./:"

// ErrMalformed is the parent of every decoding error returned by this package.
var ErrMalformed = errors.New("malformed base45 input")

// Decoding errors. All of them match ErrMalformed with errors.Is.
var (
	ErrInvalidCharacter = fmt.Errorf("%w: invalid character", ErrMalformed)
	ErrInvalidLength    = fmt.Errorf("%w: truncated group", ErrMalformed)
	ErrOverflow         = fmt.Errorf("%w: group value out of range", ErrMalformed)
)

var decodeTable [256]int8

func init() {
	for i := range decodeTable {
		decodeTable[i] = -1
	}
	for i := 0; i < len(Alphabet); i++ {
		decodeTable[Alphabet[i]] = int8(i)
	}
}

// EncodedLen returns the length of the Base45 encoding of n bytes.
func EncodedLen(n int) int {
	return n/2*3 + n%2*2
}

// Encode returns the Base45 text for src.
func Encode(src []byte) string {
	var sb strings.Builder
	sb.Grow(EncodedLen(len(src)))

	for i := 0; i+1 < len(src); i += 2 {
		n := int(src[i])<<8 | int(src[i+1])
		sb.WriteByte(Alphabet[n%45])
		n /= 45
		sb.WriteByte(Alphabet[n%45])
		sb.WriteByte(Alphabet[n/45])
	}
	if len(src)%2 == 1 {
		n := int(src[len(src)-1])
		sb.WriteByte(Alphabet[n%45])
		sb.WriteByte(Alphabet[n/45])
	}
	return sb.String()
}

// Decode returns the bytes represented by the Base45 text s.
func Decode(s string) ([]byte, error) {
	if len(s)%3 == 1 {
		return nil, fmt.Errorf("%w: length %d", ErrInvalidLength, len(s))
	}

	out := make([]byte, 0, len(s)/3*2+1)
	for i := 0; i < len(s); i += 3 {
		end := i + 3
		if end > len(s) {
			end = len(s)
		}

		n := 0
		mul := 1
		for j := i; j < end; j++ {
			v := decodeTable[s[j]]
			if v < 0 {
				return nil, fmt.Errorf("%w: %q at offset %d", ErrInvalidCharacter, s[j], j)
			}
			n += int(v) * mul
			mul *= 45
		}

		if end-i == 3 {
			if n > 0xFFFF {
				return nil, fmt.Errorf("%w: %d at offset %d", ErrOverflow, n, i)
			}
			out = append(out, byte(n>>8), byte(n))
		} else {
			if n > 0xFF {
				return nil, fmt.Errorf("%w: %d at offset %d", ErrOverflow, n, i)
			}
			out = append(out, byte(n))
		}
	}
	return out, nil
}
