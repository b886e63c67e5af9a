package claim_test

import (
	"math"
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/claim169/claim169-core/pkg/claim"
)

func fullClaim() *claim.Claim {
	return &claim.Claim{
		ID:                 claim.Ptr("3918592438"),
		Version:            claim.Ptr("1.0"),
		Language:           claim.Ptr("eng"),
		FullName:           claim.Ptr("Janardhan BS"),
		FirstName:          claim.Ptr("Janardhan"),
		LastName:           claim.Ptr("BS"),
		DateOfBirth:        claim.Ptr("19840418"),
		Gender:             claim.Ptr(claim.GenderMale),
		Address:            claim.Ptr("New City, METRO LINE, PA"),
		Email:              claim.Ptr("janardhan@example.com"),
		Phone:              claim.Ptr("+919876543210"),
		Nationality:        claim.Ptr("IN"),
		MaritalStatus:      claim.Ptr(claim.MaritalMarried),
		Photo:              []byte{0xFF, 0xD8, 0xFF, 0xE0},
		PhotoFormat:        claim.Ptr(claim.PhotoJPEG),
		BestQualityFingers: []int64{1, 6},
		SecondaryFullName:  claim.Ptr("جاناردان بنغالور سرينيفاس"),
		SecondaryLanguage:  claim.Ptr("ara"),
		LocationCode:       claim.Ptr("849VCWC8+R9"),
		LegalStatus:        claim.Ptr("citizen"),
		CountryOfIssuance:  claim.Ptr("IN"),
		Biometrics: map[claim.Modality][]claim.BiometricEntry{
			claim.RightThumb: {{
				Data:      []byte{0x01, 0x02, 0x03},
				Format:    claim.Ptr(claim.FormatImage),
				SubFormat: claim.Ptr(claim.ImageWSQ),
				Issuer:    claim.Ptr("VendorA"),
			}},
			claim.Face: {
				{Data: []byte{0x0A}},
				{Data: []byte{0x0B}, Format: claim.Ptr(claim.FormatTemplate)},
			},
		},
	}
}

func TestMarshalUnmarshal_RoundTrip(t *testing.T) {
	c := fullClaim()

	data, err := claim.Marshal(c)
	require.NoError(t, err)

	got, err := claim.Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, c, got)
}

func TestMarshal_Deterministic(t *testing.T) {
	a, err := claim.Marshal(fullClaim())
	require.NoError(t, err)
	b, err := claim.Marshal(fullClaim())
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestMarshal_OmitsAbsentFields(t *testing.T) {
	data, err := claim.Marshal(&claim.Claim{FullName: claim.Ptr("Jane")})
	require.NoError(t, err)

	var raw map[int64]any
	require.NoError(t, cbor.Unmarshal(data, &raw))
	assert.Len(t, raw, 1)
	assert.Equal(t, "Jane", raw[4])
}

func TestUnmarshal_EmptyIsNotAbsent(t *testing.T) {
	c := &claim.Claim{
		FullName:           claim.Ptr(""),
		Photo:              []byte{},
		BestQualityFingers: []int64{},
		Biometrics:         map[claim.Modality][]claim.BiometricEntry{claim.Voice: {}},
	}

	data, err := claim.Marshal(c)
	require.NoError(t, err)
	got, err := claim.Unmarshal(data)
	require.NoError(t, err)

	require.NotNil(t, got.FullName)
	assert.Equal(t, "", *got.FullName)
	assert.NotNil(t, got.Photo)
	assert.Empty(t, got.Photo)
	assert.NotNil(t, got.BestQualityFingers)
	assert.Contains(t, got.Biometrics, claim.Voice)
	assert.Nil(t, got.FirstName)
	assert.Nil(t, got.Gender)
}

func TestUnmarshal_UnknownFieldsPreserved(t *testing.T) {
	em, err := cbor.CoreDetEncOptions().EncMode()
	require.NoError(t, err)

	original, err := em.Marshal(map[int64]any{
		4:   "Jane Doe",
		24:  "future field",
		99:  []any{int64(1), "two", []byte{3}},
		200: map[int64]any{1: true},
	})
	require.NoError(t, err)

	c, err := claim.Unmarshal(original)
	require.NoError(t, err)
	require.NotNil(t, c.FullName)
	assert.Equal(t, "Jane Doe", *c.FullName)
	require.Len(t, c.Unknown, 3)

	var s string
	require.NoError(t, cbor.Unmarshal(c.Unknown[24], &s))
	assert.Equal(t, "future field", s)

	reencoded, err := claim.Marshal(c)
	require.NoError(t, err)
	assert.Equal(t, original, reencoded)
}

func TestUnmarshal_NonIntegerLabelsPreserved(t *testing.T) {
	em, err := cbor.CoreDetEncOptions().EncMode()
	require.NoError(t, err)

	original, err := em.Marshal(map[any]any{
		1:                      "id",
		"ext":                  "x",
		uint64(math.MaxUint64): []byte{1},
		24:                     "future field",
	})
	require.NoError(t, err)

	c, err := claim.Unmarshal(original)
	require.NoError(t, err)
	require.NotNil(t, c.ID)
	assert.Equal(t, "id", *c.ID)
	assert.Contains(t, c.Unknown, int64(24))
	require.Len(t, c.UnknownLabels, 2)

	var s string
	require.NoError(t, cbor.Unmarshal(c.UnknownLabels["ext"], &s))
	assert.Equal(t, "x", s)
	assert.Contains(t, c.UnknownLabels, uint64(math.MaxUint64))

	reencoded, err := claim.Marshal(c)
	require.NoError(t, err)
	assert.Equal(t, original, reencoded)
}

func TestWithoutBiometrics(t *testing.T) {
	c := fullClaim()

	t.Run("marshal omits slots", func(t *testing.T) {
		data, err := claim.Marshal(c, claim.WithoutBiometrics())
		require.NoError(t, err)
		got, err := claim.Unmarshal(data)
		require.NoError(t, err)
		assert.Nil(t, got.Biometrics)
		assert.Equal(t, c.FullName, got.FullName)
	})

	t.Run("unmarshal ignores slots", func(t *testing.T) {
		data, err := claim.Marshal(c)
		require.NoError(t, err)
		got, err := claim.Unmarshal(data, claim.WithoutBiometrics())
		require.NoError(t, err)
		assert.Nil(t, got.Biometrics)
		assert.Nil(t, got.Unknown)
		assert.Equal(t, c.Photo, got.Photo)
	})
}

func TestUnmarshal_SchemaErrors(t *testing.T) {
	mustEncode := func(v any) []byte {
		b, err := cbor.Marshal(v)
		require.NoError(t, err)
		return b
	}

	tests := []struct {
		name string
		data []byte
	}{
		{"array instead of map", mustEncode([]int{1, 2})},
		{"null", mustEncode(nil)},
		{"string key map", mustEncode(map[string]string{"a": "b"})},
		{"full name is int", mustEncode(map[int64]any{4: 42})},
		{"gender is string", mustEncode(map[int64]any{9: "male"})},
		{"biometric slot not array", mustEncode(map[int64]any{62: "face"})},
		{"biometric entry without data", mustEncode(map[int64]any{62: []any{map[int64]any{1: 0}}})},
		{"biometric issuer is int", mustEncode(map[int64]any{62: []any{map[int64]any{0: []byte{1}, 3: 7}}})},
		{"truncated", []byte{0xA1, 0x04}},
		{"duplicate key", []byte{0xA2, 0x04, 0x61, 0x41, 0x04, 0x61, 0x42}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := claim.Unmarshal(tt.data)
			assert.ErrorIs(t, err, claim.ErrSchemaInvalid)
		})
	}
}

func TestMarshal_SchemaErrors(t *testing.T) {
	tests := []struct {
		name string
		c    *claim.Claim
	}{
		{"nil claim", nil},
		{"entry without data", &claim.Claim{
			Biometrics: map[claim.Modality][]claim.BiometricEntry{claim.Face: {{}}},
		}},
		{"invalid modality", &claim.Claim{
			Biometrics: map[claim.Modality][]claim.BiometricEntry{claim.Modality(70): {{Data: []byte{1}}}},
		}},
		{"unknown collides with schema key", &claim.Claim{
			Unknown: map[int64]cbor.RawMessage{4: cbor.RawMessage{0x60}},
		}},
		{"integer label outside Unknown", &claim.Claim{
			UnknownLabels: map[any]cbor.RawMessage{uint64(7): cbor.RawMessage{0x60}},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := claim.Marshal(tt.c)
			assert.ErrorIs(t, err, claim.ErrSchemaInvalid)
		})
	}
}

func TestIsKnownKey(t *testing.T) {
	for _, k := range []int64{1, 9, 16, 18, 23, 50, 65} {
		assert.True(t, claim.IsKnownKey(k), "key %d", k)
	}
	for _, k := range []int64{0, 24, 49, 66, 169, -1} {
		assert.False(t, claim.IsKnownKey(k), "key %d", k)
	}
}

func TestClearSensitive(t *testing.T) {
	c := fullClaim()
	photo := c.Photo
	thumb := c.Biometrics[claim.RightThumb][0].Data

	c.ClearSensitive()

	assert.Equal(t, []byte{0, 0, 0, 0}, photo)
	assert.Equal(t, []byte{0, 0, 0}, thumb)
}

func TestModality_Text(t *testing.T) {
	for _, m := range claim.Modalities() {
		text, err := m.MarshalText()
		require.NoError(t, err)

		var back claim.Modality
		require.NoError(t, back.UnmarshalText(text))
		assert.Equal(t, m, back)
	}
	assert.Len(t, claim.Modalities(), 16)

	var m claim.Modality
	assert.Error(t, m.UnmarshalText([]byte("tail")))
	_, err := claim.Modality(7).MarshalText()
	assert.Error(t, err)
}
