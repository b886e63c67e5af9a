// Package claim169 encodes and decodes identity credentials for QR codes.
//
// A credential is built in fixed layers:
//   - the identity claim as an integer-keyed CBOR map (pkg/claim)
//   - a CWT claims set carrying the claim at key 169 (pkg/cwt)
//   - a COSE_Sign1 signature envelope (pkg/cose)
//   - an optional COSE_Encrypt0 envelope
//   - zlib compression (pkg/compress)
//   - Base45 text (pkg/base45)
//
// Usage:
//
//	res, err := claim169.NewEncoder(c, meta).
//		SignWithEd25519(priv).
//		Encode()
//
//	out, err := claim169.NewDecoder(res.QRData).
//		VerifyWithEd25519(pub).
//		Decode()
//
// Both builders fail closed. Encode needs a signer or AllowUnsigned, and
// Decode needs a verifier, a key resolver or AllowUnverified. Failures are
// *Error values; use errors.Is with the Err* sentinels or Category to decide
// how to react.
package claim169
