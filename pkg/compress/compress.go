// Package compress implements the compression stage that sits between the
// COSE envelope and the Base45 transport text.
//
// zlib is the only method accepted by every conforming reader. The other
// methods trade interoperability for size and are reported as non-standard.
package compress

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
)

// DefaultMaxDecompressedBytes bounds decompressed output unless the caller
// configures another limit.
const DefaultMaxDecompressedBytes = 64 * 1024

// DefaultZstdLevel is used when a zstd method is requested without a level.
const DefaultZstdLevel = 19

// Kind names a compression strategy.
type Kind string

// Compression strategies.
const (
	KindZlib         Kind = "zlib"
	KindNone         Kind = "none"
	KindAdaptive     Kind = "adaptive"
	KindZstd         Kind = "zstd"
	KindAdaptiveZstd Kind = "adaptive-zstd"
)

// Common errors returned by this package.
var (
	// ErrCorrupt is returned when a compressed stream cannot be decoded.
	ErrCorrupt = errors.New("compressed data is corrupt")

	// ErrLimitExceeded is matched by *LimitError.
	ErrLimitExceeded = errors.New("decompressed size limit exceeded")

	// ErrNonStandard is returned in strict mode for anything but zlib.
	ErrNonStandard = errors.New("non-standard compression rejected in strict mode")

	// ErrUnknownMethod is returned by ParseMethod and for invalid levels.
	ErrUnknownMethod = errors.New("unknown compression method")
)

// LimitError reports that decompression stopped at the configured limit.
type LimitError struct {
	Limit int
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("decompressed size exceeds limit of %d bytes", e.Limit)
}

// Unwrap makes errors.Is(err, ErrLimitExceeded) hold.
func (e *LimitError) Unwrap() error {
	return ErrLimitExceeded
}

// Method is a compression strategy and, for zstd variants, its level.
type Method struct {
	Kind  Kind
	Level int
}

// Zlib returns the default, interoperable method.
func Zlib() Method { return Method{Kind: KindZlib} }

// None disables compression.
func None() Method { return Method{Kind: KindNone} }

// Adaptive picks whichever of zlib and none is smaller.
func Adaptive() Method { return Method{Kind: KindAdaptive} }

// Zstd compresses with zstd at the given level (1-22).
func Zstd(level int) Method { return Method{Kind: KindZstd, Level: level} }

// AdaptiveZstd picks whichever of zstd at level and none is smaller.
func AdaptiveZstd(level int) Method { return Method{Kind: KindAdaptiveZstd, Level: level} }

// Standard reports whether the method produces output every reader accepts.
func (m Method) Standard() bool {
	return m.Kind == KindZlib || m.Kind == ""
}

func (m Method) String() string {
	switch m.Kind {
	case "":
		return string(KindZlib)
	case KindZstd, KindAdaptiveZstd:
		if m.Level != 0 {
			return string(m.Kind) + ":" + strconv.Itoa(m.Level)
		}
	}
	return string(m.Kind)
}

// MarshalText encodes the method as its String form.
func (m Method) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText parses text with ParseMethod.
func (m *Method) UnmarshalText(text []byte) error {
	parsed, err := ParseMethod(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// ParseMethod parses the textual form produced by Method.String, for example
// "zlib", "adaptive" or "zstd:19".
func ParseMethod(s string) (Method, error) {
	name, levelStr, hasLevel := strings.Cut(strings.ToLower(s), ":")

	m := Method{Kind: Kind(name)}
	switch m.Kind {
	case KindZlib, KindNone, KindAdaptive:
		if hasLevel {
			return Method{}, fmt.Errorf("%w: %s does not take a level", ErrUnknownMethod, name)
		}
		return m, nil
	case KindZstd, KindAdaptiveZstd:
		m.Level = DefaultZstdLevel
		if hasLevel {
			lvl, err := strconv.Atoi(levelStr)
			if err != nil {
				return Method{}, fmt.Errorf("%w: invalid level %q", ErrUnknownMethod, levelStr)
			}
			m.Level = lvl
		}
		if err := checkZstdLevel(m.Level); err != nil {
			return Method{}, err
		}
		return m, nil
	default:
		return Method{}, fmt.Errorf("%w: %q", ErrUnknownMethod, s)
	}
}

func checkZstdLevel(level int) error {
	if level < 1 || level > 22 {
		return fmt.Errorf("%w: zstd level %d out of range 1-22", ErrUnknownMethod, level)
	}
	return nil
}

// Compress applies m to data and returns the output together with the
// concrete method actually used. Adaptive methods resolve to the winning
// concrete method.
func Compress(data []byte, m Method) ([]byte, Method, error) {
	switch m.Kind {
	case KindZlib, "":
		out, err := deflate(data)
		return out, Zlib(), err

	case KindNone:
		return bytes.Clone(data), None(), nil

	case KindAdaptive:
		out, err := deflate(data)
		if err != nil {
			return nil, Method{}, err
		}
		if len(data) < len(out) {
			return bytes.Clone(data), None(), nil
		}
		return out, Zlib(), nil

	case KindZstd:
		out, err := zstdCompress(data, m.Level)
		return out, Zstd(m.Level), err

	case KindAdaptiveZstd:
		out, err := zstdCompress(data, m.Level)
		if err != nil {
			return nil, Method{}, err
		}
		if len(data) < len(out) {
			return bytes.Clone(data), None(), nil
		}
		return out, Zstd(m.Level), nil

	default:
		return nil, Method{}, fmt.Errorf("%w: %q", ErrUnknownMethod, m.Kind)
	}
}

func deflate(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := zlib.NewWriterLevel(&buf, zlib.BestCompression)
	if err != nil {
		return nil, fmt.Errorf("failed to create zlib writer: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("failed to deflate: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish zlib stream: %w", err)
	}
	return buf.Bytes(), nil
}

func zstdCompress(data []byte, level int) ([]byte, error) {
	if err := checkZstdLevel(level); err != nil {
		return nil, err
	}
	enc, err := zstd.NewWriter(nil,
		zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)),
		zstd.WithEncoderConcurrency(1),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	out := enc.EncodeAll(data, nil)
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to close zstd encoder: %w", err)
	}
	return out, nil
}

var zstdMagic = []byte{0x28, 0xB5, 0x2F, 0xFD}

// Detect inspects the leading bytes of data and returns the method that
// produced it. Data without a recognised header is reported as KindNone.
func Detect(data []byte) Kind {
	if isZlibHeader(data) {
		return KindZlib
	}
	if bytes.HasPrefix(data, zstdMagic) {
		return KindZstd
	}
	return KindNone
}

func isZlibHeader(data []byte) bool {
	if len(data) < 2 {
		return false
	}
	cmf, flg := data[0], data[1]
	return cmf&0x0F == 8 && cmf>>4 <= 7 && (uint16(cmf)<<8|uint16(flg))%31 == 0
}

// Decompress auto-detects the method used for data and reverses it. Output
// larger than limit bytes is rejected with a *LimitError before more than
// limit+1 bytes are produced. A limit <= 0 selects
// DefaultMaxDecompressedBytes. In strict mode anything but zlib is rejected
// with ErrNonStandard.
func Decompress(data []byte, limit int, strict bool) ([]byte, Method, error) {
	if limit <= 0 {
		limit = DefaultMaxDecompressedBytes
	}

	kind := Detect(data)
	if strict && kind != KindZlib {
		return nil, Method{}, fmt.Errorf("%w: detected %s", ErrNonStandard, kind)
	}

	switch kind {
	case KindZlib:
		r, err := zlib.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, Method{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		defer func() { _ = r.Close() }()
		out, err := readLimited(r, limit)
		return out, Zlib(), err

	case KindZstd:
		dec, err := zstd.NewReader(bytes.NewReader(data), zstd.WithDecoderConcurrency(1))
		if err != nil {
			return nil, Method{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		defer dec.Close()
		out, err := readLimited(dec, limit)
		return out, Method{Kind: KindZstd}, err

	default:
		if len(data) > limit {
			return nil, Method{}, &LimitError{Limit: limit}
		}
		return bytes.Clone(data), None(), nil
	}
}

func readLimited(r io.Reader, limit int) ([]byte, error) {
	out, err := io.ReadAll(io.LimitReader(r, int64(limit)+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if len(out) > limit {
		return nil, &LimitError{Limit: limit}
	}
	return out, nil
}
