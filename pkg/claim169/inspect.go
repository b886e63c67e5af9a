package claim169

import (
	"github.com/claim169/claim169-core/pkg/compress"
	"github.com/claim169/claim169-core/pkg/cose"
	"github.com/claim169/claim169-core/pkg/crypto"
	"github.com/claim169/claim169-core/pkg/cwt"
)

// InspectResult describes a credential's envelope without verifying it.
// Nothing in it is authenticated.
type InspectResult struct {
	// Envelope is the outermost envelope type.
	Envelope    string          `json:"envelope"`
	Compression compress.Method `json:"compression"`

	// Algorithm and KeyID belong to the outermost envelope: the encryption
	// layer for an encrypted credential, otherwise the signature layer.
	Algorithm crypto.Algorithm `json:"algorithm,omitempty"`
	KeyID     []byte           `json:"keyId,omitempty"`

	// The remaining fields are only available when the credential is not
	// encrypted.
	Signed       bool          `json:"signed"`
	Certificates *Certificates `json:"certificates,omitempty"`
	Meta         *cwt.Meta     `json:"meta,omitempty"`
}

// Inspect decodes the transport and compression stages of text and reads
// the envelope headers, so a caller can choose a key before decoding. It
// uses the default decompression limit.
func Inspect(text string) (*InspectResult, error) {
	payload, method, err := unwrapTransport(text, compress.DefaultMaxDecompressedBytes, false)
	if err != nil {
		return nil, err
	}
	res := &InspectResult{Compression: method}

	if cose.Detect(payload) == cose.TypeEncrypt0 {
		enc, err := cose.ParseEncrypt0(payload)
		if err != nil {
			return nil, classifyEnvelopeError(err)
		}
		res.Envelope = cose.TypeEncrypt0.String()
		res.Algorithm = enc.Headers.Algorithm
		res.KeyID = enc.Headers.KeyID
		return res, nil
	}

	msg, err := cose.ParseSign1(payload)
	if err != nil {
		return nil, classifyEnvelopeError(err)
	}
	res.Envelope = cose.TypeSign1.String()
	res.Algorithm = msg.Headers.Algorithm
	res.KeyID = msg.Headers.KeyID
	res.Signed = msg.Signed()
	res.Certificates = certificatesFrom(msg.Headers)

	meta, _, err := cwt.Unmarshal(msg.Payload)
	if err != nil {
		return nil, classifyTokenError(err)
	}
	res.Meta = &meta
	return res, nil
}
