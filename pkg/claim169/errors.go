package claim169

import (
	"errors"
	"fmt"
)

// Error codes. Each code belongs to exactly one Category.
const (
	// ErrCodeBase45Decode indicates the transport text has invalid characters or groups.
	ErrCodeBase45Decode = "BASE45_DECODE"

	// ErrCodeDecompress indicates the compressed stream is corrupt or was
	// rejected by strict compression.
	ErrCodeDecompress = "DECOMPRESS_FAILED"

	// ErrCodeDecompressLimit indicates decompressed output exceeded the limit.
	ErrCodeDecompressLimit = "DECOMPRESS_LIMIT_EXCEEDED"

	// ErrCodeCOSEParse indicates a malformed signature or encryption envelope.
	ErrCodeCOSEParse = "COSE_PARSE"

	// ErrCodeUnsupportedCOSEType indicates an envelope type other than
	// COSE_Sign1 or COSE_Encrypt0.
	ErrCodeUnsupportedCOSEType = "UNSUPPORTED_COSE_TYPE"

	// ErrCodeCWTParse indicates a malformed token claims set.
	ErrCodeCWTParse = "CWT_PARSE"

	// ErrCodeClaimNotFound indicates the token carries no identity claim.
	ErrCodeClaimNotFound = "CLAIM169_NOT_FOUND"

	// ErrCodeClaimSchema indicates the identity claim does not match the schema.
	ErrCodeClaimSchema = "CLAIM_SCHEMA_INVALID"

	// ErrCodeSignatureInvalid indicates signature verification failed.
	ErrCodeSignatureInvalid = "SIGNATURE_INVALID"

	// ErrCodeDecryptionFailed indicates decryption failed, including tag mismatch.
	ErrCodeDecryptionFailed = "DECRYPTION_FAILED"

	// ErrCodeUnsupportedAlgorithm indicates an algorithm no provider handles.
	ErrCodeUnsupportedAlgorithm = "UNSUPPORTED_ALGORITHM"

	// ErrCodeKeyNotFound indicates a key resolver had no key for the key id.
	ErrCodeKeyNotFound = "KEY_NOT_FOUND"

	// ErrCodeExpired indicates now > exp + tolerance.
	ErrCodeExpired = "EXPIRED"

	// ErrCodeNotYetValid indicates now < nbf - tolerance.
	ErrCodeNotYetValid = "NOT_YET_VALID"

	// ErrCodeCryptoProvider indicates a crypto provider failed for its own reasons.
	ErrCodeCryptoProvider = "CRYPTO_PROVIDER"

	// ErrCodeConfiguration indicates the encoder or decoder is misconfigured.
	ErrCodeConfiguration = "CONFIGURATION"
)

// Category groups error codes by how a caller should react.
type Category string

const (
	// CategoryNotCredential means the input is not a credential of this type.
	CategoryNotCredential Category = "not_credential"

	// CategoryCorrupt means the credential is structurally damaged.
	CategoryCorrupt Category = "corrupt"

	// CategorySecurity means a security check failed.
	CategorySecurity Category = "security"

	// CategoryValidity means the credential is intact but outside its time window.
	CategoryValidity Category = "validity"

	// CategoryConfiguration means the caller configured the pipeline wrongly.
	CategoryConfiguration Category = "configuration"

	// CategoryProvider means a caller-supplied crypto provider failed.
	CategoryProvider Category = "provider"
)

var categories = map[string]Category{
	ErrCodeBase45Decode:         CategoryCorrupt,
	ErrCodeDecompress:           CategoryCorrupt,
	ErrCodeDecompressLimit:      CategorySecurity,
	ErrCodeCOSEParse:            CategoryCorrupt,
	ErrCodeUnsupportedCOSEType:  CategoryNotCredential,
	ErrCodeCWTParse:             CategoryCorrupt,
	ErrCodeClaimNotFound:        CategoryNotCredential,
	ErrCodeClaimSchema:          CategoryCorrupt,
	ErrCodeSignatureInvalid:     CategorySecurity,
	ErrCodeDecryptionFailed:     CategorySecurity,
	ErrCodeUnsupportedAlgorithm: CategorySecurity,
	ErrCodeKeyNotFound:          CategorySecurity,
	ErrCodeExpired:              CategoryValidity,
	ErrCodeNotYetValid:          CategoryValidity,
	ErrCodeCryptoProvider:       CategoryProvider,
	ErrCodeConfiguration:        CategoryConfiguration,
}

// Error is a pipeline failure with a stable code.
type Error struct {
	// Code is one of the ErrCode* constants.
	Code string

	// Message is a human-readable description.
	Message string

	// Cause is the underlying error, if any.
	Cause error

	// Limit is the configured decompression limit for
	// DECOMPRESS_LIMIT_EXCEEDED.
	Limit int

	// Timestamp is the offending exp or nbf value for EXPIRED and
	// NOT_YET_VALID, in Unix seconds.
	Timestamp int64
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches a target error code.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// Category returns the category of the error's code.
func (e *Error) Category() Category {
	return categories[e.Code]
}

// NewError creates a new Error with the given code and message.
func NewError(code, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// WrapError creates a new Error that wraps an underlying error.
func WrapError(code, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// Predefined sentinel errors, one per code. Use these with errors.Is().
var (
	ErrBase45Decode         = NewError(ErrCodeBase45Decode, "transport text is malformed")
	ErrDecompress           = NewError(ErrCodeDecompress, "decompression failed")
	ErrDecompressLimit      = NewError(ErrCodeDecompressLimit, "decompressed size limit exceeded")
	ErrCOSEParse            = NewError(ErrCodeCOSEParse, "envelope is malformed")
	ErrUnsupportedCOSEType  = NewError(ErrCodeUnsupportedCOSEType, "unsupported envelope type")
	ErrCWTParse             = NewError(ErrCodeCWTParse, "token claims set is malformed")
	ErrClaimNotFound        = NewError(ErrCodeClaimNotFound, "identity claim not found")
	ErrClaimSchema          = NewError(ErrCodeClaimSchema, "identity claim is invalid")
	ErrSignatureInvalid     = NewError(ErrCodeSignatureInvalid, "signature verification failed")
	ErrDecryptionFailed     = NewError(ErrCodeDecryptionFailed, "decryption failed")
	ErrUnsupportedAlgorithm = NewError(ErrCodeUnsupportedAlgorithm, "unsupported algorithm")
	ErrKeyNotFound          = NewError(ErrCodeKeyNotFound, "key not found")
	ErrExpired              = NewError(ErrCodeExpired, "credential has expired")
	ErrNotYetValid          = NewError(ErrCodeNotYetValid, "credential is not yet valid")
	ErrCryptoProvider       = NewError(ErrCodeCryptoProvider, "crypto provider failed")
	ErrConfiguration        = NewError(ErrCodeConfiguration, "invalid configuration")
)

// AsError checks if err is an Error and returns it if so.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// GetErrorCode extracts the error code from an Error, or returns empty string.
func GetErrorCode(err error) string {
	if e, ok := AsError(err); ok {
		return e.Code
	}
	return ""
}

// GetCategory extracts the category from an Error, or returns empty string.
func GetCategory(err error) Category {
	if e, ok := AsError(err); ok {
		return e.Category()
	}
	return ""
}

func configError(format string, args ...any) *Error {
	return NewError(ErrCodeConfiguration, fmt.Sprintf(format, args...))
}
