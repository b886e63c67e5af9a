package claim

import (
	"errors"
	"fmt"
	"math"

	"github.com/fxamacker/cbor/v2"
)

// ErrSchemaInvalid is returned when binary claim data does not match the
// schema: a non-map value, a known key holding the wrong type, or a
// biometric entry without data.
var ErrSchemaInvalid = errors.New("claim schema invalid")

// CBOR keys of the binary claim map.
const (
	keyID                 int64 = 1
	keyVersion            int64 = 2
	keyLanguage           int64 = 3
	keyFullName           int64 = 4
	keyFirstName          int64 = 5
	keyMiddleName         int64 = 6
	keyLastName           int64 = 7
	keyDateOfBirth        int64 = 8
	keyGender             int64 = 9
	keyAddress            int64 = 10
	keyEmail              int64 = 11
	keyPhone              int64 = 12
	keyNationality        int64 = 13
	keyMaritalStatus      int64 = 14
	keyGuardian           int64 = 15
	keyPhoto              int64 = 16
	keyPhotoFormat        int64 = 17
	keyBestQualityFingers int64 = 18
	keySecondaryFullName  int64 = 19
	keySecondaryLanguage  int64 = 20
	keyLocationCode       int64 = 21
	keyLegalStatus        int64 = 22
	keyCountryOfIssuance  int64 = 23
)

// Biometric entry keys.
const (
	entryData      int64 = 0
	entryFormat    int64 = 1
	entrySubFormat int64 = 2
	entryIssuer    int64 = 3
)

var stringFields = map[int64]func(*Claim) **string{
	keyID:                func(c *Claim) **string { return &c.ID },
	keyVersion:           func(c *Claim) **string { return &c.Version },
	keyLanguage:          func(c *Claim) **string { return &c.Language },
	keyFullName:          func(c *Claim) **string { return &c.FullName },
	keyFirstName:         func(c *Claim) **string { return &c.FirstName },
	keyMiddleName:        func(c *Claim) **string { return &c.MiddleName },
	keyLastName:          func(c *Claim) **string { return &c.LastName },
	keyDateOfBirth:       func(c *Claim) **string { return &c.DateOfBirth },
	keyAddress:           func(c *Claim) **string { return &c.Address },
	keyEmail:             func(c *Claim) **string { return &c.Email },
	keyPhone:             func(c *Claim) **string { return &c.Phone },
	keyNationality:       func(c *Claim) **string { return &c.Nationality },
	keyGuardian:          func(c *Claim) **string { return &c.Guardian },
	keySecondaryFullName: func(c *Claim) **string { return &c.SecondaryFullName },
	keySecondaryLanguage: func(c *Claim) **string { return &c.SecondaryLanguage },
	keyLocationCode:      func(c *Claim) **string { return &c.LocationCode },
	keyLegalStatus:       func(c *Claim) **string { return &c.LegalStatus },
	keyCountryOfIssuance: func(c *Claim) **string { return &c.CountryOfIssuance },
}

// IsKnownKey reports whether key belongs to the current schema.
func IsKnownKey(key int64) bool {
	if _, ok := stringFields[key]; ok {
		return true
	}
	switch key {
	case keyGender, keyMaritalStatus, keyPhoto, keyPhotoFormat, keyBestQualityFingers:
		return true
	}
	return Modality(key).Valid()
}

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	decMode, err = cbor.DecOptions{
		DupMapKey: cbor.DupMapKeyEnforcedAPF,
		IntDec:    cbor.IntDecConvertSigned,
	}.DecMode()
	if err != nil {
		panic(err)
	}
}

type options struct {
	skipBiometrics bool
}

// Option configures Marshal and Unmarshal.
type Option func(*options)

// WithoutBiometrics omits all biometric slots when encoding and ignores
// them when decoding.
func WithoutBiometrics() Option {
	return func(o *options) { o.skipBiometrics = true }
}

func collect(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Marshal encodes c as a deterministic integer-keyed CBOR map. Absent fields
// are omitted and Unknown and UnknownLabels entries are re-emitted verbatim
// at their keys.
func Marshal(c *Claim, opts ...Option) ([]byte, error) {
	if c == nil {
		return nil, fmt.Errorf("%w: nil claim", ErrSchemaInvalid)
	}
	o := collect(opts)

	m := make(map[any]any)
	for key, field := range stringFields {
		if v := *field(c); v != nil {
			m[key] = *v
		}
	}
	if c.Gender != nil {
		m[keyGender] = int64(*c.Gender)
	}
	if c.MaritalStatus != nil {
		m[keyMaritalStatus] = int64(*c.MaritalStatus)
	}
	if c.Photo != nil {
		m[keyPhoto] = c.Photo
	}
	if c.PhotoFormat != nil {
		m[keyPhotoFormat] = int64(*c.PhotoFormat)
	}
	if c.BestQualityFingers != nil {
		m[keyBestQualityFingers] = c.BestQualityFingers
	}

	if !o.skipBiometrics {
		for modality, entries := range c.Biometrics {
			if !modality.Valid() {
				return nil, fmt.Errorf("%w: invalid biometric modality %d", ErrSchemaInvalid, int64(modality))
			}
			encoded := make([]map[int64]any, 0, len(entries))
			for i, e := range entries {
				if e.Data == nil {
					return nil, fmt.Errorf("%w: %s entry %d has no data", ErrSchemaInvalid, modality, i)
				}
				encoded = append(encoded, encodeEntry(e))
			}
			m[int64(modality)] = encoded
		}
	}

	for key, raw := range c.Unknown {
		if IsKnownKey(key) {
			return nil, fmt.Errorf("%w: unknown field %d collides with a schema key", ErrSchemaInvalid, key)
		}
		m[key] = raw
	}
	for label, raw := range c.UnknownLabels {
		if _, ok := intLabel(label); ok {
			return nil, fmt.Errorf("%w: integer label %v belongs in Unknown", ErrSchemaInvalid, label)
		}
		m[label] = raw
	}

	out, err := encMode.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to encode claim: %w", err)
	}
	return out, nil
}

func encodeEntry(e BiometricEntry) map[int64]any {
	m := map[int64]any{entryData: e.Data}
	if e.Format != nil {
		m[entryFormat] = int64(*e.Format)
	}
	if e.SubFormat != nil {
		m[entrySubFormat] = *e.SubFormat
	}
	if e.Issuer != nil {
		m[entryIssuer] = *e.Issuer
	}
	return m
}

// Unmarshal decodes a binary claim map. Integer keys outside the schema are
// kept in Claim.Unknown and every other label in Claim.UnknownLabels.
func Unmarshal(data []byte, opts ...Option) (*Claim, error) {
	o := collect(opts)

	var raw map[any]cbor.RawMessage
	if err := decMode.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSchemaInvalid, err)
	}
	if raw == nil {
		return nil, fmt.Errorf("%w: claim is not a map", ErrSchemaInvalid)
	}

	c := &Claim{}
	for label, val := range raw {
		key, ok := intLabel(label)
		if !ok {
			if c.UnknownLabels == nil {
				c.UnknownLabels = make(map[any]cbor.RawMessage)
			}
			c.UnknownLabels[label] = append(cbor.RawMessage(nil), val...)
			continue
		}
		if field, ok := stringFields[key]; ok {
			var s string
			if err := decodeField(key, val, &s); err != nil {
				return nil, err
			}
			*field(c) = &s
			continue
		}

		switch key {
		case keyGender:
			var v int64
			if err := decodeField(key, val, &v); err != nil {
				return nil, err
			}
			c.Gender = Ptr(Gender(v))
		case keyMaritalStatus:
			var v int64
			if err := decodeField(key, val, &v); err != nil {
				return nil, err
			}
			c.MaritalStatus = Ptr(MaritalStatus(v))
		case keyPhoto:
			var v []byte
			if err := decodeField(key, val, &v); err != nil {
				return nil, err
			}
			if v == nil {
				v = []byte{}
			}
			c.Photo = v
		case keyPhotoFormat:
			var v int64
			if err := decodeField(key, val, &v); err != nil {
				return nil, err
			}
			c.PhotoFormat = Ptr(PhotoFormat(v))
		case keyBestQualityFingers:
			var v []int64
			if err := decodeField(key, val, &v); err != nil {
				return nil, err
			}
			if v == nil {
				v = []int64{}
			}
			c.BestQualityFingers = v
		default:
			if Modality(key).Valid() {
				if o.skipBiometrics {
					continue
				}
				entries, err := decodeEntries(Modality(key), val)
				if err != nil {
					return nil, err
				}
				if c.Biometrics == nil {
					c.Biometrics = make(map[Modality][]BiometricEntry)
				}
				c.Biometrics[Modality(key)] = entries
				continue
			}
			if c.Unknown == nil {
				c.Unknown = make(map[int64]cbor.RawMessage)
			}
			c.Unknown[key] = append(cbor.RawMessage(nil), val...)
		}
	}
	return c, nil
}

// intLabel reports the int64 value of a decoded map label.
func intLabel(label any) (int64, bool) {
	switch k := label.(type) {
	case int64:
		return k, true
	case uint64:
		if k <= math.MaxInt64 {
			return int64(k), true
		}
	}
	return 0, false
}

func decodeField(key int64, val cbor.RawMessage, dst any) error {
	if err := decMode.Unmarshal(val, dst); err != nil {
		return fmt.Errorf("%w: key %d: %v", ErrSchemaInvalid, key, err)
	}
	return nil
}

func decodeEntries(modality Modality, val cbor.RawMessage) ([]BiometricEntry, error) {
	var rawEntries []map[int64]cbor.RawMessage
	if err := decMode.Unmarshal(val, &rawEntries); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSchemaInvalid, modality, err)
	}

	entries := make([]BiometricEntry, 0, len(rawEntries))
	for i, re := range rawEntries {
		var e BiometricEntry
		data, ok := re[entryData]
		if !ok {
			return nil, fmt.Errorf("%w: %s entry %d has no data", ErrSchemaInvalid, modality, i)
		}
		if err := decMode.Unmarshal(data, &e.Data); err != nil {
			return nil, fmt.Errorf("%w: %s entry %d data: %v", ErrSchemaInvalid, modality, i, err)
		}
		if e.Data == nil {
			e.Data = []byte{}
		}
		if v, ok := re[entryFormat]; ok {
			var f int64
			if err := decMode.Unmarshal(v, &f); err != nil {
				return nil, fmt.Errorf("%w: %s entry %d format: %v", ErrSchemaInvalid, modality, i, err)
			}
			e.Format = Ptr(BiometricFormat(f))
		}
		if v, ok := re[entrySubFormat]; ok {
			var sf int64
			if err := decMode.Unmarshal(v, &sf); err != nil {
				return nil, fmt.Errorf("%w: %s entry %d sub-format: %v", ErrSchemaInvalid, modality, i, err)
			}
			e.SubFormat = &sf
		}
		if v, ok := re[entryIssuer]; ok {
			var s string
			if err := decMode.Unmarshal(v, &s); err != nil {
				return nil, fmt.Errorf("%w: %s entry %d issuer: %v", ErrSchemaInvalid, modality, i, err)
			}
			e.Issuer = &s
		}
		entries = append(entries, e)
	}
	return entries, nil
}
