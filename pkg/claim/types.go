// Package claim holds the identity and biometric record carried inside a
// credential, and its compact integer-keyed CBOR form.
//
// Every demographic field is optional and pointer-typed: nil means the field
// is absent, which is distinct from a present empty value. Fields are never
// defaulted.
package claim

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Claim is the identity record.
type Claim struct {
	ID                 *string        `json:"id,omitempty"`
	Version            *string        `json:"version,omitempty"`
	Language           *string        `json:"language,omitempty"`
	FullName           *string        `json:"fullName,omitempty"`
	FirstName          *string        `json:"firstName,omitempty"`
	MiddleName         *string        `json:"middleName,omitempty"`
	LastName           *string        `json:"lastName,omitempty"`
	DateOfBirth        *string        `json:"dateOfBirth,omitempty"`
	Gender             *Gender        `json:"gender,omitempty"`
	Address            *string        `json:"address,omitempty"`
	Email              *string        `json:"email,omitempty"`
	Phone              *string        `json:"phone,omitempty"`
	Nationality        *string        `json:"nationality,omitempty"`
	MaritalStatus      *MaritalStatus `json:"maritalStatus,omitempty"`
	Guardian           *string        `json:"guardian,omitempty"`
	Photo              []byte         `json:"photo,omitempty"`
	PhotoFormat        *PhotoFormat   `json:"photoFormat,omitempty"`
	BestQualityFingers []int64        `json:"bestQualityFingers,omitempty"`
	SecondaryFullName  *string        `json:"secondaryFullName,omitempty"`
	SecondaryLanguage  *string        `json:"secondaryLanguage,omitempty"`
	LocationCode       *string        `json:"locationCode,omitempty"`
	LegalStatus        *string        `json:"legalStatus,omitempty"`
	CountryOfIssuance  *string        `json:"countryOfIssuance,omitempty"`

	// Biometrics maps a modality slot to its entries. A slot is present when
	// its key exists, even with an empty slice.
	Biometrics map[Modality][]BiometricEntry `json:"biometrics,omitempty"`

	// Unknown keeps keys this schema version does not recognise, as raw CBOR,
	// so they survive a decode/re-encode cycle unchanged.
	Unknown map[int64]cbor.RawMessage `json:"unknown,omitempty"`

	// UnknownLabels keeps keys that are not int64 values, such as text
	// strings or unsigned integers above math.MaxInt64, keyed by their
	// decoded CBOR label.
	UnknownLabels map[any]cbor.RawMessage `json:"-"`
}

// BiometricEntry is one biometric sample or template.
type BiometricEntry struct {
	Data      []byte           `json:"data"`
	Format    *BiometricFormat `json:"format,omitempty"`
	SubFormat *int64           `json:"subFormat,omitempty"`
	Issuer    *string          `json:"issuer,omitempty"`
}

// Ptr returns a pointer to v. It keeps optional field literals short.
func Ptr[T any](v T) *T {
	return &v
}

// HasBiometrics reports whether any biometric slot is present.
func (c *Claim) HasBiometrics() bool {
	return len(c.Biometrics) > 0
}

// ClearSensitive zeroes the photo and every biometric data buffer in place.
// Call it once decoded biometric data is no longer needed.
func (c *Claim) ClearSensitive() {
	clear(c.Photo)
	for _, entries := range c.Biometrics {
		for i := range entries {
			clear(entries[i].Data)
		}
	}
}

// Gender code.
type Gender int64

// Gender values.
const (
	GenderMale   Gender = 1
	GenderFemale Gender = 2
	GenderOther  Gender = 3
)

func (g Gender) String() string {
	switch g {
	case GenderMale:
		return "male"
	case GenderFemale:
		return "female"
	case GenderOther:
		return "other"
	default:
		return fmt.Sprintf("gender(%d)", int64(g))
	}
}

// MaritalStatus code.
type MaritalStatus int64

// MaritalStatus values.
const (
	MaritalUnmarried MaritalStatus = 1
	MaritalMarried   MaritalStatus = 2
	MaritalDivorced  MaritalStatus = 3
)

func (m MaritalStatus) String() string {
	switch m {
	case MaritalUnmarried:
		return "unmarried"
	case MaritalMarried:
		return "married"
	case MaritalDivorced:
		return "divorced"
	default:
		return fmt.Sprintf("maritalStatus(%d)", int64(m))
	}
}

// PhotoFormat code.
type PhotoFormat int64

// PhotoFormat values.
const (
	PhotoJPEG     PhotoFormat = 1
	PhotoJPEG2000 PhotoFormat = 2
	PhotoAVIF     PhotoFormat = 3
	PhotoWebP     PhotoFormat = 4
)

func (p PhotoFormat) String() string {
	switch p {
	case PhotoJPEG:
		return "jpeg"
	case PhotoJPEG2000:
		return "jpeg2000"
	case PhotoAVIF:
		return "avif"
	case PhotoWebP:
		return "webp"
	default:
		return fmt.Sprintf("photoFormat(%d)", int64(p))
	}
}

// BiometricFormat says how a biometric entry's data is represented.
type BiometricFormat int64

// BiometricFormat values.
const (
	FormatImage    BiometricFormat = 0
	FormatTemplate BiometricFormat = 1
	FormatSound    BiometricFormat = 2
	FormatBioHash  BiometricFormat = 3
)

func (f BiometricFormat) String() string {
	switch f {
	case FormatImage:
		return "image"
	case FormatTemplate:
		return "template"
	case FormatSound:
		return "sound"
	case FormatBioHash:
		return "biohash"
	default:
		return fmt.Sprintf("biometricFormat(%d)", int64(f))
	}
}

// Sub-format codes. Their meaning depends on the entry's BiometricFormat.
const (
	ImagePNG      int64 = 0
	ImageJPEG     int64 = 1
	ImageJPEG2000 int64 = 2
	ImageAVIF     int64 = 3
	ImageWebP     int64 = 4
	ImageTIFF     int64 = 5
	ImageWSQ      int64 = 6

	TemplateANSI378   int64 = 0
	TemplateISO197942 int64 = 1
	TemplateNIST      int64 = 2

	SoundWAV int64 = 0
	SoundMP3 int64 = 1
)

// Modality identifies a biometric slot. Its value is the slot's CBOR key.
type Modality int64

// Biometric slots.
const (
	RightThumb         Modality = 50
	RightPointerFinger Modality = 51
	RightMiddleFinger  Modality = 52
	RightRingFinger    Modality = 53
	RightLittleFinger  Modality = 54
	LeftThumb          Modality = 55
	LeftPointerFinger  Modality = 56
	LeftMiddleFinger   Modality = 57
	LeftRingFinger     Modality = 58
	LeftLittleFinger   Modality = 59
	RightIris          Modality = 60
	LeftIris           Modality = 61
	Face               Modality = 62
	RightPalm          Modality = 63
	LeftPalm           Modality = 64
	Voice              Modality = 65
)

var modalityNames = map[Modality]string{
	RightThumb:         "rightThumb",
	RightPointerFinger: "rightPointerFinger",
	RightMiddleFinger:  "rightMiddleFinger",
	RightRingFinger:    "rightRingFinger",
	RightLittleFinger:  "rightLittleFinger",
	LeftThumb:          "leftThumb",
	LeftPointerFinger:  "leftPointerFinger",
	LeftMiddleFinger:   "leftMiddleFinger",
	LeftRingFinger:     "leftRingFinger",
	LeftLittleFinger:   "leftLittleFinger",
	RightIris:          "rightIris",
	LeftIris:           "leftIris",
	Face:               "face",
	RightPalm:          "rightPalm",
	LeftPalm:           "leftPalm",
	Voice:              "voice",
}

// Modalities returns every biometric slot in key order.
func Modalities() []Modality {
	out := make([]Modality, 0, len(modalityNames))
	for m := RightThumb; m <= Voice; m++ {
		out = append(out, m)
	}
	return out
}

// Valid reports whether m is one of the sixteen slots.
func (m Modality) Valid() bool {
	return m >= RightThumb && m <= Voice
}

func (m Modality) String() string {
	if name, ok := modalityNames[m]; ok {
		return name
	}
	return fmt.Sprintf("modality(%d)", int64(m))
}

// MarshalText lets Modality serve as a JSON object key.
func (m Modality) MarshalText() ([]byte, error) {
	name, ok := modalityNames[m]
	if !ok {
		return nil, fmt.Errorf("unknown biometric modality %d", int64(m))
	}
	return []byte(name), nil
}

// UnmarshalText parses a slot name produced by MarshalText.
func (m *Modality) UnmarshalText(text []byte) error {
	for k, name := range modalityNames {
		if name == string(text) {
			*m = k
			return nil
		}
	}
	return fmt.Errorf("unknown biometric modality %q", text)
}
