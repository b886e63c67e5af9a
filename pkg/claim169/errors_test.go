package claim169

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_IsMatchesByCode(t *testing.T) {
	err := WrapError(ErrCodeSignatureInvalid, "bad signature", errors.New("mismatch"))

	assert.ErrorIs(t, err, ErrSignatureInvalid)
	assert.NotErrorIs(t, err, ErrDecryptionFailed)
	assert.ErrorIs(t, fmt.Errorf("decode: %w", err), ErrSignatureInvalid)
	assert.Equal(t, "SIGNATURE_INVALID: bad signature: mismatch", err.Error())
	assert.Equal(t, "KEY_NOT_FOUND: no key", NewError(ErrCodeKeyNotFound, "no key").Error())
}

func TestError_UnwrapsCause(t *testing.T) {
	cause := errors.New("hsm offline")
	err := WrapError(ErrCodeCryptoProvider, "verifier failed", cause)
	assert.ErrorIs(t, err, cause)
}

func TestError_EveryCodeHasCategory(t *testing.T) {
	sentinels := []*Error{
		ErrBase45Decode, ErrDecompress, ErrDecompressLimit, ErrCOSEParse,
		ErrUnsupportedCOSEType, ErrCWTParse, ErrClaimNotFound, ErrClaimSchema,
		ErrSignatureInvalid, ErrDecryptionFailed, ErrUnsupportedAlgorithm,
		ErrKeyNotFound, ErrExpired, ErrNotYetValid, ErrCryptoProvider,
		ErrConfiguration,
	}
	require.Len(t, categories, len(sentinels))
	for _, e := range sentinels {
		assert.NotEmpty(t, e.Category(), e.Code)
	}
}

func TestError_Categories(t *testing.T) {
	tests := []struct {
		code string
		want Category
	}{
		{ErrCodeBase45Decode, CategoryCorrupt},
		{ErrCodeDecompressLimit, CategorySecurity},
		{ErrCodeUnsupportedCOSEType, CategoryNotCredential},
		{ErrCodeClaimNotFound, CategoryNotCredential},
		{ErrCodeSignatureInvalid, CategorySecurity},
		{ErrCodeExpired, CategoryValidity},
		{ErrCodeCryptoProvider, CategoryProvider},
		{ErrCodeConfiguration, CategoryConfiguration},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.want, NewError(tt.code, "x").Category())
			assert.Equal(t, tt.want, GetCategory(fmt.Errorf("wrapped: %w", NewError(tt.code, "x"))))
		})
	}
}

func TestHelpers(t *testing.T) {
	err := fmt.Errorf("outer: %w", NewError(ErrCodeExpired, "late"))

	e, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, ErrCodeExpired, e.Code)
	assert.Equal(t, ErrCodeExpired, GetErrorCode(err))

	_, ok = AsError(errors.New("plain"))
	assert.False(t, ok)
	assert.Empty(t, GetErrorCode(errors.New("plain")))
	assert.Empty(t, GetCategory(errors.New("plain")))

	cfg := configError("limit %d", -1)
	assert.ErrorIs(t, cfg, ErrConfiguration)
	assert.Contains(t, cfg.Error(), "limit -1")
}
