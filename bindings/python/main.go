package main

/*
#include <stdlib.h>
*/
import "C"
import (
	"encoding/json"
	"unsafe"

	"github.com/go-jose/go-jose/v4"

	"github.com/claim169/claim169-core/pkg/claim169"
	"github.com/claim169/claim169-core/pkg/crypto"
)

type response struct {
	OK     bool           `json:"ok"`
	Result any            `json:"result,omitempty"`
	Error  *responseError `json:"error,omitempty"`
}

type responseError struct {
	Code     string            `json:"code"`
	Category claim169.Category `json:"category,omitempty"`
	Message  string            `json:"message"`
}

// Claim169Decode decodes and verifies a QR credential.
// publicJWK is the issuer's public key as a JWK JSON string, or empty.
// allowUnverified: 0 for false, 1 for true. An empty publicJWK with
// allowUnverified 0 fails with a CONFIGURATION error.
// Returns a JSON string; it must be freed using FreeString.
//
//export Claim169Decode
func Claim169Decode(text *C.char, publicJWK *C.char, allowUnverified int) *C.char {
	d := claim169.NewDecoder(C.GoString(text))

	if jwkStr := C.GoString(publicJWK); jwkStr != "" {
		var jwk jose.JSONWebKey
		if err := json.Unmarshal([]byte(jwkStr), &jwk); err != nil {
			return C.CString(fmtError(claim169.ErrCodeConfiguration, "invalid JWK: "+err.Error()))
		}
		v, _, err := crypto.VerifierFromJWK(&jwk)
		if err != nil {
			return C.CString(fmtError(claim169.ErrCodeConfiguration, err.Error()))
		}
		d = d.VerifyWith(v)
	}
	if allowUnverified != 0 {
		d = d.AllowUnverified()
	}

	res, err := d.Decode()
	if err != nil {
		return C.CString(fmtFailure(err))
	}
	return C.CString(fmtResult(res))
}

// Claim169Inspect reads a credential's envelope without verifying it.
// Returns a JSON string; it must be freed using FreeString.
//
//export Claim169Inspect
func Claim169Inspect(text *C.char) *C.char {
	info, err := claim169.Inspect(C.GoString(text))
	if err != nil {
		return C.CString(fmtFailure(err))
	}
	return C.CString(fmtResult(info))
}

// FreeString frees the memory allocated for a C string by Go.
//
//export FreeString
func FreeString(str *C.char) {
	C.free(unsafe.Pointer(str))
}

func fmtResult(v any) string {
	bytes, err := json.Marshal(response{OK: true, Result: v})
	if err != nil {
		return fmtError("JSON_MARSHAL_ERROR", err.Error())
	}
	return string(bytes)
}

func fmtFailure(err error) string {
	bytes, _ := json.Marshal(response{Error: &responseError{
		Code:     claim169.GetErrorCode(err),
		Category: claim169.GetCategory(err),
		Message:  err.Error(),
	}})
	return string(bytes)
}

func fmtError(code, msg string) string {
	bytes, _ := json.Marshal(response{Error: &responseError{Code: code, Message: msg}})
	return string(bytes)
}

func main() {}
