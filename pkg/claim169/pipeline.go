package claim169

import (
	"errors"
	"log/slog"

	"github.com/claim169/claim169-core/pkg/base45"
	"github.com/claim169/claim169-core/pkg/compress"
	"github.com/claim169/claim169-core/pkg/cose"
	"github.com/claim169/claim169-core/pkg/crypto"
)

var discardLogger = slog.New(slog.DiscardHandler)

func loggerOrDiscard(l *slog.Logger) *slog.Logger {
	if l == nil {
		return discardLogger
	}
	return l
}

// unwrapTransport reverses the base45 and compression stages.
func unwrapTransport(text string, limit int, strict bool) ([]byte, compress.Method, error) {
	data, err := base45.Decode(text)
	if err != nil {
		return nil, compress.Method{}, WrapError(ErrCodeBase45Decode, "invalid transport text", err)
	}

	out, method, err := compress.Decompress(data, limit, strict)
	if err != nil {
		var le *compress.LimitError
		if errors.As(err, &le) {
			return nil, compress.Method{}, &Error{
				Code:    ErrCodeDecompressLimit,
				Message: "decompressed payload too large",
				Cause:   err,
				Limit:   le.Limit,
			}
		}
		return nil, compress.Method{}, WrapError(ErrCodeDecompress, "failed to decompress payload", err)
	}
	return out, method, nil
}

func classifyEnvelopeError(err error) *Error {
	switch {
	case errors.Is(err, cose.ErrUnsupportedType):
		return WrapError(ErrCodeUnsupportedCOSEType, "unsupported envelope", err)
	case errors.Is(err, crypto.ErrUnsupportedAlgorithm):
		return WrapError(ErrCodeUnsupportedAlgorithm, "unsupported envelope algorithm", err)
	default:
		return WrapError(ErrCodeCOSEParse, "malformed envelope", err)
	}
}

func classifySignError(err error) *Error {
	switch {
	case errors.Is(err, crypto.ErrUnsupportedAlgorithm):
		return WrapError(ErrCodeUnsupportedAlgorithm, "signer rejected algorithm", err)
	case errors.Is(err, crypto.ErrKeyNotFound):
		return WrapError(ErrCodeKeyNotFound, "signing key not found", err)
	case errors.Is(err, crypto.ErrInvalidKey):
		return WrapError(ErrCodeConfiguration, "invalid signing key", err)
	default:
		return WrapError(ErrCodeCryptoProvider, "signing failed", err)
	}
}

func classifyEncryptError(err error) *Error {
	switch {
	case errors.Is(err, crypto.ErrUnsupportedAlgorithm):
		return WrapError(ErrCodeUnsupportedAlgorithm, "encryptor rejected algorithm", err)
	case errors.Is(err, crypto.ErrMalformedInput), errors.Is(err, crypto.ErrInvalidKey):
		return WrapError(ErrCodeConfiguration, "invalid encryption input", err)
	default:
		return WrapError(ErrCodeCryptoProvider, "encryption failed", err)
	}
}

// classifyVerifyError maps a verifier error. Signature mismatches and
// malformed signatures are SIGNATURE_INVALID; anything not wrapping a known
// sentinel is the provider's own failure.
func classifyVerifyError(err error) *Error {
	switch {
	case errors.Is(err, crypto.ErrSignatureInvalid), errors.Is(err, crypto.ErrMalformedInput):
		return WrapError(ErrCodeSignatureInvalid, "signature verification failed", err)
	case errors.Is(err, crypto.ErrUnsupportedAlgorithm):
		return WrapError(ErrCodeUnsupportedAlgorithm, "verifier rejected algorithm", err)
	case errors.Is(err, crypto.ErrKeyNotFound):
		return WrapError(ErrCodeKeyNotFound, "verification key not found", err)
	default:
		return WrapError(ErrCodeCryptoProvider, "verifier failed", err)
	}
}

func classifyDecryptError(err error) *Error {
	switch {
	case errors.Is(err, crypto.ErrAuthentication):
		return WrapError(ErrCodeDecryptionFailed, "authentication tag mismatch", err)
	case errors.Is(err, crypto.ErrMalformedInput):
		return WrapError(ErrCodeDecryptionFailed, "malformed ciphertext", err)
	case errors.Is(err, crypto.ErrUnsupportedAlgorithm):
		return WrapError(ErrCodeUnsupportedAlgorithm, "decryptor rejected algorithm", err)
	case errors.Is(err, crypto.ErrKeyNotFound):
		return WrapError(ErrCodeKeyNotFound, "decryption key not found", err)
	default:
		return WrapError(ErrCodeCryptoProvider, "decryptor failed", err)
	}
}
