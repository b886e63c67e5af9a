package claim169

import (
	"github.com/claim169/claim169-core/pkg/claim"
	"github.com/claim169/claim169-core/pkg/compress"
	"github.com/claim169/claim169-core/pkg/cose"
	"github.com/claim169/claim169-core/pkg/crypto"
	"github.com/claim169/claim169-core/pkg/cwt"
)

// VerificationStatus is the outcome of the signature layer on decode.
type VerificationStatus string

const (
	// Verified follows only a successful cryptographic check.
	Verified VerificationStatus = "verified"

	// Skipped follows only an explicit AllowUnverified with no verifier.
	Skipped VerificationStatus = "skipped"

	// Failed is reported only with AllowVerificationFailure; otherwise a
	// failed check is a SIGNATURE_INVALID error.
	Failed VerificationStatus = "failed"
)

// WarningCode identifies a non-fatal advisory.
type WarningCode string

const (
	WarnExpiringSoon               WarningCode = "EXPIRING_SOON"
	WarnUnknownFields              WarningCode = "UNKNOWN_FIELDS"
	WarnTimestampValidationSkipped WarningCode = "TIMESTAMP_VALIDATION_SKIPPED"
	WarnBiometricsSkipped          WarningCode = "BIOMETRICS_SKIPPED"
	WarnNonStandardCompression     WarningCode = "NON_STANDARD_COMPRESSION"
)

// Warning is a non-fatal advisory collected during encode or decode.
type Warning struct {
	Code    WarningCode `json:"code"`
	Message string      `json:"message"`
}

// Certificates is the certificate header material found in the signature
// envelope. It is reported as received and never validated.
type Certificates struct {
	Chain      [][]byte         `json:"x5chain,omitempty"`
	Bag        [][]byte         `json:"x5bag,omitempty"`
	Thumbprint *cose.Thumbprint `json:"x5t,omitempty"`
	URI        string           `json:"x5u,omitempty"`
}

func certificatesFrom(h cose.Headers) *Certificates {
	if !h.HasCertificates() {
		return nil
	}
	return &Certificates{
		Chain:      h.X5Chain,
		Bag:        h.X5Bag,
		Thumbprint: h.X5T,
		URI:        h.X5U,
	}
}

// EncodeResult is the output of Encoder.Encode.
type EncodeResult struct {
	// QRData is the transport text. It contains spaces and must be placed in
	// the QR symbol unmodified.
	QRData      string          `json:"qrData"`
	Compression compress.Method `json:"compression"`
	Warnings    []Warning       `json:"warnings,omitempty"`
}

// DecodeResult is the output of Decoder.Decode.
type DecodeResult struct {
	Claim        *claim.Claim       `json:"claim"`
	Meta         cwt.Meta           `json:"meta"`
	Verification VerificationStatus `json:"verification"`
	Certificates *Certificates      `json:"certificates,omitempty"`

	// KeyID and Algorithm come from the signature envelope.
	KeyID     []byte           `json:"keyId,omitempty"`
	Algorithm crypto.Algorithm `json:"algorithm,omitempty"`

	Compression compress.Method `json:"compression"`
	Encrypted   bool            `json:"encrypted"`
	Warnings    []Warning       `json:"warnings,omitempty"`
}

// HasWarning reports whether the result carries a warning with code.
func (r *DecodeResult) HasWarning(code WarningCode) bool {
	return hasWarning(r.Warnings, code)
}

// HasWarning reports whether the result carries a warning with code.
func (r *EncodeResult) HasWarning(code WarningCode) bool {
	return hasWarning(r.Warnings, code)
}

func hasWarning(ws []Warning, code WarningCode) bool {
	for _, w := range ws {
		if w.Code == code {
			return true
		}
	}
	return false
}
