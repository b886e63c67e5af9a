package claim169_test

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"github.com/claim169/claim169-core/pkg/base45"
	"github.com/claim169/claim169-core/pkg/claim"
	"github.com/claim169/claim169-core/pkg/claim169"
	"github.com/claim169/claim169-core/pkg/compress"
	"github.com/claim169/claim169-core/pkg/cose"
	"github.com/claim169/claim169-core/pkg/crypto"
	"github.com/claim169/claim169-core/pkg/crypto/mocks"
	"github.com/claim169/claim169-core/pkg/cwt"
)

// =============================================================================
// Pipeline Test Suite
// =============================================================================
// Exercises the full encode/decode pipeline with built-in and mocked crypto
// providers, a fixed clock, and deterministic Ed25519 keys.

const now = int64(1700000000)

type PipelineSuite struct {
	suite.Suite
	ctrl   *gomock.Controller
	priv   ed25519.PrivateKey
	pub    ed25519.PublicKey
	aesKey []byte
	claim  *claim.Claim
	meta   cwt.Meta
	logger *slog.Logger
}

func TestPipelineSuite(t *testing.T) {
	suite.Run(t, new(PipelineSuite))
}

func (s *PipelineSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.priv = ed25519.NewKeyFromSeed(bytes.Repeat([]byte{0x01}, ed25519.SeedSize))
	s.pub = s.priv.Public().(ed25519.PublicKey)
	s.aesKey = bytes.Repeat([]byte{0x5A}, 32)
	s.logger = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))

	s.claim = &claim.Claim{
		ID:          claim.Ptr("3918592438"),
		FullName:    claim.Ptr("Janardhan BS"),
		DateOfBirth: claim.Ptr("19840418"),
		Gender:      claim.Ptr(claim.GenderMale),
		Email:       claim.Ptr("janardhan@example.com"),
		Photo:       []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00},
		PhotoFormat: claim.Ptr(claim.PhotoJPEG),
		Biometrics: map[claim.Modality][]claim.BiometricEntry{
			claim.RightThumb: {{Data: []byte{1, 2, 3}, Format: claim.Ptr(claim.FormatImage), SubFormat: claim.Ptr(claim.ImageWSQ)}},
			claim.Face:       {{Data: []byte{4, 5, 6}, Issuer: claim.Ptr("VendorA")}},
		},
	}
	s.meta = cwt.Meta{
		Issuer:    claim.Ptr("https://issuer.example"),
		Subject:   claim.Ptr("3918592438"),
		IssuedAt:  claim.Ptr(now - 100),
		ExpiresAt: claim.Ptr(now + 30*86400),
	}
}

func (s *PipelineSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *PipelineSuite) clock() time.Time { return time.Unix(now, 0) }

func (s *PipelineSuite) encode(configure func(*claim169.Encoder) *claim169.Encoder) string {
	res, err := configure(claim169.NewEncoder(s.claim, s.meta).WithLogger(s.logger)).Encode()
	s.Require().NoError(err)
	return res.QRData
}

func (s *PipelineSuite) decoder(text string) *claim169.Decoder {
	return claim169.NewDecoder(text).WithClock(s.clock).WithLogger(s.logger)
}

func (s *PipelineSuite) signed() string {
	return s.encode(func(e *claim169.Encoder) *claim169.Encoder { return e.SignWithEd25519(s.priv) })
}

// rawEnvelope returns the uncompressed envelope bytes of a credential
// encoded without compression.
func (s *PipelineSuite) rawEnvelope(text string) []byte {
	data, err := base45.Decode(text)
	s.Require().NoError(err)
	return data
}

// =============================================================================
// Round trips
// =============================================================================

func (s *PipelineSuite) TestRoundTrip() {
	s.Run("Ed25519", func() {
		res, err := s.decoder(s.signed()).VerifyWithEd25519(s.pub).Decode()
		s.Require().NoError(err)
		s.Equal(s.claim, res.Claim)
		s.Equal(s.meta, res.Meta)
		s.Equal(claim169.Verified, res.Verification)
		s.Equal(crypto.EdDSA, res.Algorithm)
		s.Equal(compress.Zlib(), res.Compression)
		s.False(res.Encrypted)
		s.Empty(res.Warnings)
	})

	s.Run("ECDSA P-256", func() {
		key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
		s.Require().NoError(err)

		text := s.encode(func(e *claim169.Encoder) *claim169.Encoder { return e.SignWithECDSAP256(key) })
		res, err := s.decoder(text).VerifyWithECDSAP256(&key.PublicKey).Decode()
		s.Require().NoError(err)
		s.Equal(s.claim, res.Claim)
		s.Equal(crypto.ES256, res.Algorithm)
		s.Equal(claim169.Verified, res.Verification)
	})

	s.Run("encrypted AES-128 and AES-256", func() {
		k128 := bytes.Repeat([]byte{0x11}, 16)
		text := s.encode(func(e *claim169.Encoder) *claim169.Encoder {
			return e.SignWithEd25519(s.priv).EncryptWithAES128(k128)
		})
		res, err := s.decoder(text).DecryptWithAES128(k128).VerifyWithEd25519(s.pub).Decode()
		s.Require().NoError(err)
		s.True(res.Encrypted)
		s.Equal(s.claim, res.Claim)

		text = s.encode(func(e *claim169.Encoder) *claim169.Encoder {
			return e.EncryptWithAES256(s.aesKey).SignWithEd25519(s.priv)
		})
		res, err = s.decoder(text).VerifyWithEd25519(s.pub).DecryptWithAES256(s.aesKey).Decode()
		s.Require().NoError(err)
		s.True(res.Encrypted)
		s.Equal(s.meta, res.Meta)
	})

	s.Run("minimal claim and metadata", func() {
		res, err := claim169.NewEncoder(&claim.Claim{}, cwt.Meta{}).SignWithEd25519(s.priv).Encode()
		s.Require().NoError(err)
		out, err := s.decoder(res.QRData).VerifyWithEd25519(s.pub).Decode()
		s.Require().NoError(err)
		s.Equal(&claim.Claim{}, out.Claim)
		s.Equal(cwt.Meta{}, out.Meta)
	})
}

func (s *PipelineSuite) TestOrderIndependence() {
	nonce := bytes.Repeat([]byte{0x07}, crypto.NonceSize)

	a := s.encode(func(e *claim169.Encoder) *claim169.Encoder {
		return e.SignWithEd25519(s.priv).EncryptWithAES256(s.aesKey).WithNonce(nonce).WithKeyID([]byte("k1"))
	})
	b := s.encode(func(e *claim169.Encoder) *claim169.Encoder {
		return e.WithKeyID([]byte("k1")).WithNonce(nonce).EncryptWithAES256(s.aesKey).SignWithEd25519(s.priv)
	})
	s.Equal(a, b)

	c := s.encode(func(e *claim169.Encoder) *claim169.Encoder {
		return e.Compression(compress.Zlib()).SkipBiometrics().SignWithEd25519(s.priv)
	})
	d := s.encode(func(e *claim169.Encoder) *claim169.Encoder {
		return e.SignWithEd25519(s.priv).SkipBiometrics().Compression(compress.Zlib())
	})
	s.Equal(c, d)

	r1, err := s.decoder(a).DecryptWithAES256(s.aesKey).VerifyWithEd25519(s.pub).ClockSkewTolerance(time.Minute).Decode()
	s.Require().NoError(err)
	r2, err := s.decoder(a).ClockSkewTolerance(time.Minute).VerifyWithEd25519(s.pub).DecryptWithAES256(s.aesKey).Decode()
	s.Require().NoError(err)
	s.Equal(r1, r2)
}

func (s *PipelineSuite) TestRandomNonceByDefault() {
	configure := func(e *claim169.Encoder) *claim169.Encoder {
		return e.SignWithEd25519(s.priv).EncryptWithAES256(s.aesKey)
	}
	s.NotEqual(s.encode(configure), s.encode(configure))
}

// =============================================================================
// Security checks
// =============================================================================

func (s *PipelineSuite) TestTamperDetection() {
	text := s.encode(func(e *claim169.Encoder) *claim169.Encoder {
		return e.SignWithEd25519(s.priv).Compression(compress.None())
	})
	msg, err := cose.ParseSign1(s.rawEnvelope(text))
	s.Require().NoError(err)

	rebuild := func(payload, sig []byte) string {
		data, err := cbor.Marshal(cbor.Tag{
			Number:  cose.TagSign1,
			Content: []any{msg.Protected, map[int64]any{}, payload, sig},
		})
		s.Require().NoError(err)
		return base45.Encode(data)
	}

	for i := range msg.Signature {
		sig := bytes.Clone(msg.Signature)
		sig[i] ^= 0x01
		_, err := s.decoder(rebuild(msg.Payload, sig)).VerifyWithEd25519(s.pub).Decode()
		s.ErrorIs(err, claim169.ErrSignatureInvalid, "signature byte %d", i)
	}
	for i := range msg.Payload {
		payload := bytes.Clone(msg.Payload)
		payload[i] ^= 0x01
		_, err := s.decoder(rebuild(payload, msg.Signature)).VerifyWithEd25519(s.pub).Decode()
		s.ErrorIs(err, claim169.ErrSignatureInvalid, "payload byte %d", i)
	}
}

func (s *PipelineSuite) TestVerificationFailurePolicy() {
	other := ed25519.NewKeyFromSeed(bytes.Repeat([]byte{0x02}, ed25519.SeedSize))
	text := s.encode(func(e *claim169.Encoder) *claim169.Encoder {
		return e.SignWithEd25519(s.priv).WithCertificateChain([]byte("leaf"), []byte("root")).WithCertificateURI("https://certs.example")
	})

	s.Run("default is a hard error", func() {
		_, err := s.decoder(text).VerifyWithEd25519(other.Public().(ed25519.PublicKey)).Decode()
		s.ErrorIs(err, claim169.ErrSignatureInvalid)
		s.Equal(claim169.CategorySecurity, claim169.GetCategory(err))
	})

	s.Run("opt-in reports Failed with data and certificates", func() {
		res, err := s.decoder(text).
			VerifyWithEd25519(other.Public().(ed25519.PublicKey)).
			AllowVerificationFailure().
			Decode()
		s.Require().NoError(err)
		s.Equal(claim169.Failed, res.Verification)
		s.Equal(s.claim, res.Claim)
		s.Require().NotNil(res.Certificates)
		s.Equal([][]byte{[]byte("leaf"), []byte("root")}, res.Certificates.Chain)
		s.Equal("https://certs.example", res.Certificates.URI)
	})

	s.Run("provider failure is not downgraded", func() {
		broken := crypto.VerifierFunc(func(crypto.Algorithm, []byte, []byte, []byte) error {
			return errors.New("hsm offline")
		})
		_, err := s.decoder(text).VerifyWith(broken).AllowVerificationFailure().Decode()
		s.ErrorIs(err, claim169.ErrCryptoProvider)
		s.Equal(claim169.CategoryProvider, claim169.GetCategory(err))
	})
}

func (s *PipelineSuite) TestFailClosed() {
	s.Run("encode without signer", func() {
		_, err := claim169.NewEncoder(s.claim, s.meta).Encode()
		s.ErrorIs(err, claim169.ErrConfiguration)
		s.Equal(claim169.CategoryConfiguration, claim169.GetCategory(err))
	})

	s.Run("decode without verifier", func() {
		_, err := s.decoder(s.signed()).Decode()
		s.ErrorIs(err, claim169.ErrConfiguration)
	})

	s.Run("encryption alone does not sign", func() {
		_, err := claim169.NewEncoder(s.claim, s.meta).EncryptWithAES256(s.aesKey).Encode()
		s.ErrorIs(err, claim169.ErrConfiguration)
	})

	s.Run("unsigned needs explicit opt-in on both sides", func() {
		res, err := claim169.NewEncoder(s.claim, s.meta).AllowUnsigned().Encode()
		s.Require().NoError(err)

		out, err := s.decoder(res.QRData).AllowUnverified().Decode()
		s.Require().NoError(err)
		s.Equal(claim169.Skipped, out.Verification)
		s.Equal(s.claim, out.Claim)

		_, err = s.decoder(res.QRData).VerifyWithEd25519(s.pub).Decode()
		s.ErrorIs(err, claim169.ErrSignatureInvalid)
	})

	s.Run("allow unverified still verifies a configured key", func() {
		other := ed25519.NewKeyFromSeed(bytes.Repeat([]byte{0x03}, ed25519.SeedSize))
		_, err := s.decoder(s.signed()).AllowUnverified().VerifyWithEd25519(other.Public().(ed25519.PublicKey)).Decode()
		s.ErrorIs(err, claim169.ErrSignatureInvalid)

		res, err := s.decoder(s.signed()).AllowUnverified().VerifyWithEd25519(s.pub).Decode()
		s.Require().NoError(err)
		s.Equal(claim169.Verified, res.Verification)
	})
}

func (s *PipelineSuite) TestConfigurationErrors() {
	tests := []struct {
		name string
		run  func() error
	}{
		{"short AES key", func() error {
			_, err := claim169.NewEncoder(s.claim, s.meta).SignWithEd25519(s.priv).EncryptWithAES256(make([]byte, 16)).Encode()
			return err
		}},
		{"zero AES key", func() error {
			_, err := claim169.NewEncoder(s.claim, s.meta).SignWithEd25519(s.priv).EncryptWithAES128(make([]byte, 16)).Encode()
			return err
		}},
		{"bad nonce", func() error {
			_, err := claim169.NewEncoder(s.claim, s.meta).SignWithEd25519(s.priv).WithNonce([]byte{1}).Encode()
			return err
		}},
		{"short Ed25519 key", func() error {
			_, err := claim169.NewEncoder(s.claim, s.meta).SignWithEd25519(s.priv[:10]).Encode()
			return err
		}},
		{"nil claim", func() error {
			_, err := claim169.NewEncoder(nil, s.meta).SignWithEd25519(s.priv).Encode()
			return err
		}},
		{"zero decompression limit", func() error {
			_, err := s.decoder(s.signed()).AllowUnverified().MaxDecompressedBytes(0).Decode()
			return err
		}},
		{"negative skew", func() error {
			_, err := s.decoder(s.signed()).AllowUnverified().ClockSkewTolerance(-time.Second).Decode()
			return err
		}},
		{"small-order verification key", func() error {
			_, err := s.decoder(s.signed()).VerifyWithEd25519(make(ed25519.PublicKey, ed25519.PublicKeySize)).Decode()
			return err
		}},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			s.ErrorIs(tt.run(), claim169.ErrConfiguration)
		})
	}
}

func (s *PipelineSuite) TestSingleUse() {
	enc := claim169.NewEncoder(s.claim, s.meta).SignWithEd25519(s.priv)
	_, err := enc.Encode()
	s.Require().NoError(err)
	_, err = enc.Encode()
	s.ErrorIs(err, claim169.ErrConfiguration)

	dec := s.decoder(s.signed()).VerifyWithEd25519(s.pub)
	_, err = dec.Decode()
	s.Require().NoError(err)
	_, err = dec.Decode()
	s.ErrorIs(err, claim169.ErrConfiguration)
}

func (s *PipelineSuite) TestEncryption() {
	text := s.encode(func(e *claim169.Encoder) *claim169.Encoder {
		return e.SignWithEd25519(s.priv).EncryptWithAES256(s.aesKey)
	})

	s.Run("no decryptor", func() {
		_, err := s.decoder(text).VerifyWithEd25519(s.pub).Decode()
		s.ErrorIs(err, claim169.ErrDecryptionFailed)
	})

	s.Run("wrong key", func() {
		_, err := s.decoder(text).VerifyWithEd25519(s.pub).DecryptWithAES256(bytes.Repeat([]byte{0x6B}, 32)).Decode()
		s.ErrorIs(err, claim169.ErrDecryptionFailed)
		s.Equal(claim169.CategorySecurity, claim169.GetCategory(err))
	})

	s.Run("wrong algorithm", func() {
		_, err := s.decoder(text).VerifyWithEd25519(s.pub).DecryptWithAES128(bytes.Repeat([]byte{0x6B}, 16)).Decode()
		s.ErrorIs(err, claim169.ErrUnsupportedAlgorithm)
	})

	s.Run("custom encryptor receives nonce and aad", func() {
		enc := mocks.NewMockEncryptor(s.ctrl)
		dec := mocks.NewMockDecryptor(s.ctrl)
		nonce := bytes.Repeat([]byte{0x09}, crypto.NonceSize)

		enc.EXPECT().
			Encrypt(crypto.A128GCM, gomock.Any(), nonce, gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ crypto.Algorithm, _, _, _, plaintext []byte) ([]byte, error) {
				return append(bytes.Clone(plaintext), bytes.Repeat([]byte{0xEE}, 16)...), nil
			})
		dec.EXPECT().
			Decrypt(crypto.A128GCM, gomock.Any(), nonce, gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ crypto.Algorithm, _, _, _, ciphertext []byte) ([]byte, error) {
				return ciphertext[:len(ciphertext)-16], nil
			})

		qr := s.encode(func(e *claim169.Encoder) *claim169.Encoder {
			return e.SignWithEd25519(s.priv).EncryptWith(enc, crypto.A128GCM).WithNonce(nonce)
		})
		res, err := s.decoder(qr).DecryptWith(dec).VerifyWithEd25519(s.pub).Decode()
		s.Require().NoError(err)
		s.True(res.Encrypted)
		s.Equal(s.claim, res.Claim)
	})
}

func (s *PipelineSuite) TestKeyResolver() {
	text := s.encode(func(e *claim169.Encoder) *claim169.Encoder {
		return e.SignWithEd25519(s.priv).WithKeyID([]byte("issuer-2024"))
	})
	verifier, err := crypto.NewEd25519Verifier(s.pub)
	s.Require().NoError(err)

	s.Run("resolves by key id", func() {
		r := mocks.NewMockKeyResolver(s.ctrl)
		r.EXPECT().ResolveVerifier(crypto.EdDSA, []byte("issuer-2024")).Return(verifier, nil)

		res, err := s.decoder(text).WithKeyResolver(r).Decode()
		s.Require().NoError(err)
		s.Equal(claim169.Verified, res.Verification)
		s.Equal([]byte("issuer-2024"), res.KeyID)
	})

	s.Run("unknown key id", func() {
		r := mocks.NewMockKeyResolver(s.ctrl)
		r.EXPECT().ResolveVerifier(crypto.EdDSA, []byte("issuer-2024")).Return(nil, crypto.ErrKeyNotFound)

		_, err := s.decoder(text).WithKeyResolver(r).Decode()
		s.ErrorIs(err, claim169.ErrKeyNotFound)
	})

	s.Run("explicit verifier wins", func() {
		r := mocks.NewMockKeyResolver(s.ctrl)
		res, err := s.decoder(text).WithKeyResolver(r).VerifyWithEd25519(s.pub).Decode()
		s.Require().NoError(err)
		s.Equal(claim169.Verified, res.Verification)
	})

	s.Run("no key id in envelope", func() {
		r := mocks.NewMockKeyResolver(s.ctrl)
		_, err := s.decoder(s.signed()).WithKeyResolver(r).Decode()
		s.ErrorIs(err, claim169.ErrKeyNotFound)
	})

	s.Run("resolves decryptor", func() {
		a, err := crypto.NewAESGCM(s.aesKey)
		s.Require().NoError(err)
		a = a.WithKeyID([]byte("enc-1"))
		encrypted := s.encode(func(e *claim169.Encoder) *claim169.Encoder {
			return e.SignWithEd25519(s.priv).WithKeyID([]byte("issuer-2024")).EncryptWith(a, crypto.A256GCM)
		})

		r := mocks.NewMockKeyResolver(s.ctrl)
		r.EXPECT().ResolveDecryptor(crypto.A256GCM, []byte("enc-1")).Return(a, nil)
		r.EXPECT().ResolveVerifier(crypto.EdDSA, []byte("issuer-2024")).Return(verifier, nil)

		res, err := s.decoder(encrypted).WithKeyResolver(r).Decode()
		s.Require().NoError(err)
		s.True(res.Encrypted)
		s.Equal(claim169.Verified, res.Verification)
	})
}

func (s *PipelineSuite) TestSignerKeyID() {
	signer, err := crypto.NewEd25519Signer(s.priv)
	s.Require().NoError(err)

	text := s.encode(func(e *claim169.Encoder) *claim169.Encoder {
		return e.SignWith(signer.WithKeyID([]byte("from-signer")), crypto.EdDSA)
	})
	res, err := s.decoder(text).VerifyWithEd25519(s.pub).Decode()
	s.Require().NoError(err)
	s.Equal([]byte("from-signer"), res.KeyID)

	text = s.encode(func(e *claim169.Encoder) *claim169.Encoder {
		return e.SignWith(signer.WithKeyID([]byte("from-signer")), crypto.EdDSA).WithKeyID([]byte("explicit"))
	})
	res, err = s.decoder(text).VerifyWithEd25519(s.pub).Decode()
	s.Require().NoError(err)
	s.Equal([]byte("explicit"), res.KeyID)
}

// =============================================================================
// Compression and transport
// =============================================================================

func (s *PipelineSuite) TestDecompressionBomb() {
	bomb, _, err := compress.Compress(make([]byte, 1_000_000), compress.Zlib())
	s.Require().NoError(err)

	_, err = s.decoder(base45.Encode(bomb)).AllowUnverified().MaxDecompressedBytes(1024).Decode()
	s.Require().ErrorIs(err, claim169.ErrDecompressLimit)

	e, ok := claim169.AsError(err)
	s.Require().True(ok)
	s.Equal(1024, e.Limit)
	s.Equal(claim169.CategorySecurity, e.Category())
}

func (s *PipelineSuite) TestNonStandardCompression() {
	res, err := claim169.NewEncoder(s.claim, s.meta).SignWithEd25519(s.priv).Compression(compress.Zstd(3)).Encode()
	s.Require().NoError(err)
	s.True(res.HasWarning(claim169.WarnNonStandardCompression))

	out, err := s.decoder(res.QRData).VerifyWithEd25519(s.pub).Decode()
	s.Require().NoError(err)
	s.True(out.HasWarning(claim169.WarnNonStandardCompression))
	s.Equal(compress.KindZstd, out.Compression.Kind)
	s.Equal(s.claim, out.Claim)

	_, err = s.decoder(res.QRData).VerifyWithEd25519(s.pub).StrictCompression().Decode()
	s.ErrorIs(err, claim169.ErrDecompress)

	std, err := claim169.NewEncoder(s.claim, s.meta).SignWithEd25519(s.priv).Encode()
	s.Require().NoError(err)
	s.Empty(std.Warnings)
	_, err = s.decoder(std.QRData).VerifyWithEd25519(s.pub).StrictCompression().Decode()
	s.NoError(err)
}

func (s *PipelineSuite) TestTransportExactness() {
	var text string
	for i := 0; i < 100 && !strings.Contains(text, " "); i++ {
		c := *s.claim
		c.FullName = claim.Ptr(fmt.Sprintf("Holder %d", i))
		res, err := claim169.NewEncoder(&c, s.meta).SignWithEd25519(s.priv).Encode()
		s.Require().NoError(err)
		text = res.QRData
	}
	s.Require().Contains(text, " ")

	res, err := s.decoder(text).VerifyWithEd25519(s.pub).Decode()
	s.Require().NoError(err)

	mangled := strings.ReplaceAll(text, " ", "")
	out, err := s.decoder(mangled).VerifyWithEd25519(s.pub).Decode()
	if err == nil {
		s.NotEqual(res.Claim, out.Claim)
	}

	_, err = s.decoder("not base45!").AllowUnverified().Decode()
	s.ErrorIs(err, claim169.ErrBase45Decode)
	s.Equal(claim169.CategoryCorrupt, claim169.GetCategory(err))
}

// =============================================================================
// Timestamps
// =============================================================================

func (s *PipelineSuite) TestTimestampBoundaries() {
	T := now
	s.meta = cwt.Meta{ExpiresAt: claim.Ptr(T), NotBefore: claim.Ptr(T - 3600)}
	text := s.signed()
	tol := 30 * time.Second

	decodeAt := func(at int64) (*claim169.DecodeResult, error) {
		return claim169.NewDecoder(text).
			VerifyWithEd25519(s.pub).
			ClockSkewTolerance(tol).
			WithClock(func() time.Time { return time.Unix(at, 0) }).
			Decode()
	}

	_, err := decodeAt(T + 30)
	s.NoError(err)

	_, err = decodeAt(T + 31)
	s.Require().ErrorIs(err, claim169.ErrExpired)
	e, _ := claim169.AsError(err)
	s.Equal(T, e.Timestamp)
	s.Equal(claim169.CategoryValidity, e.Category())

	_, err = decodeAt(T - 3600 - 30)
	s.NoError(err)

	_, err = decodeAt(T - 3600 - 31)
	s.Require().ErrorIs(err, claim169.ErrNotYetValid)
	e, _ = claim169.AsError(err)
	s.Equal(T-3600, e.Timestamp)

	for _, at := range []int64{T + 31, T - 3600 - 31} {
		res, err := claim169.NewDecoder(text).
			VerifyWithEd25519(s.pub).
			WithoutTimestampValidation().
			WithClock(func() time.Time { return time.Unix(at, 0) }).
			Decode()
		s.Require().NoError(err)
		s.True(res.HasWarning(claim169.WarnTimestampValidationSkipped))
	}
}

func (s *PipelineSuite) TestExpiringSoon() {
	s.meta.ExpiresAt = claim.Ptr(now + 86400)
	text := s.signed()

	res, err := s.decoder(text).VerifyWithEd25519(s.pub).Decode()
	s.Require().NoError(err)
	s.True(res.HasWarning(claim169.WarnExpiringSoon))

	res, err = s.decoder(text).VerifyWithEd25519(s.pub).ExpiringSoonWindow(0).Decode()
	s.Require().NoError(err)
	s.False(res.HasWarning(claim169.WarnExpiringSoon))
}

// =============================================================================
// Claim handling
// =============================================================================

func (s *PipelineSuite) TestUnknownFields() {
	extra, err := cbor.Marshal("added in a later schema")
	s.Require().NoError(err)
	s.claim.Unknown = map[int64]cbor.RawMessage{99: extra}
	text := s.signed()

	res, err := s.decoder(text).VerifyWithEd25519(s.pub).Decode()
	s.Require().NoError(err)
	s.True(res.HasWarning(claim169.WarnUnknownFields))
	s.Equal(cbor.RawMessage(extra), res.Claim.Unknown[99])

	again, err := claim169.NewEncoder(res.Claim, res.Meta).SignWithEd25519(s.priv).Encode()
	s.Require().NoError(err)
	s.Equal(text, again.QRData)
}

func (s *PipelineSuite) TestNonIntegerClaimLabels() {
	signer, err := crypto.NewEd25519Signer(s.priv)
	s.Require().NoError(err)

	claimBytes, err := cbor.Marshal(map[any]any{1: "id", "ext": "x"})
	s.Require().NoError(err)
	token, err := cbor.Marshal(map[any]any{1: "issuer", "private": "x", 169: cbor.RawMessage(claimBytes)})
	s.Require().NoError(err)
	envelope, err := cose.Sign1(token, cose.Headers{Algorithm: crypto.EdDSA}, signer)
	s.Require().NoError(err)
	compressed, _, err := compress.Compress(envelope, compress.Zlib())
	s.Require().NoError(err)

	res, err := s.decoder(base45.Encode(compressed)).VerifyWithEd25519(s.pub).Decode()
	s.Require().NoError(err)
	s.Equal("id", *res.Claim.ID)
	s.Contains(res.Claim.UnknownLabels, "ext")
	s.True(res.HasWarning(claim169.WarnUnknownFields))
}

func (s *PipelineSuite) TestSkipBiometrics() {
	s.Run("decode", func() {
		res, err := s.decoder(s.signed()).VerifyWithEd25519(s.pub).SkipBiometrics().Decode()
		s.Require().NoError(err)
		s.Nil(res.Claim.Biometrics)
		s.True(res.HasWarning(claim169.WarnBiometricsSkipped))
		s.Equal(s.claim.FullName, res.Claim.FullName)
	})

	s.Run("encode", func() {
		enc, err := claim169.NewEncoder(s.claim, s.meta).SignWithEd25519(s.priv).SkipBiometrics().Encode()
		s.Require().NoError(err)
		s.True(enc.HasWarning(claim169.WarnBiometricsSkipped))

		res, err := s.decoder(enc.QRData).VerifyWithEd25519(s.pub).Decode()
		s.Require().NoError(err)
		s.Nil(res.Claim.Biometrics)
		s.False(res.HasWarning(claim169.WarnBiometricsSkipped))
	})

	s.Run("encode without slots", func() {
		s.claim.Biometrics = nil
		enc, err := claim169.NewEncoder(s.claim, s.meta).SignWithEd25519(s.priv).SkipBiometrics().Encode()
		s.Require().NoError(err)
		s.False(enc.HasWarning(claim169.WarnBiometricsSkipped))
	})
}

func (s *PipelineSuite) TestNotThisCredential() {
	signer, err := crypto.NewEd25519Signer(s.priv)
	s.Require().NoError(err)

	token, err := cbor.Marshal(map[int64]any{1: "issuer", 170: map[int64]any{}})
	s.Require().NoError(err)
	envelope, err := cose.Sign1(token, cose.Headers{Algorithm: crypto.EdDSA}, signer)
	s.Require().NoError(err)
	compressed, _, err := compress.Compress(envelope, compress.Zlib())
	s.Require().NoError(err)

	_, err = s.decoder(base45.Encode(compressed)).VerifyWithEd25519(s.pub).Decode()
	s.ErrorIs(err, claim169.ErrClaimNotFound)
	s.Equal(claim169.CategoryNotCredential, claim169.GetCategory(err))

	token, err = cbor.Marshal(map[any]any{1: "issuer", "private": "x"})
	s.Require().NoError(err)
	envelope, err = cose.Sign1(token, cose.Headers{Algorithm: crypto.EdDSA}, signer)
	s.Require().NoError(err)
	compressed, _, err = compress.Compress(envelope, compress.Zlib())
	s.Require().NoError(err)

	_, err = s.decoder(base45.Encode(compressed)).VerifyWithEd25519(s.pub).Decode()
	s.ErrorIs(err, claim169.ErrClaimNotFound)

	garbage, _, err := compress.Compress([]byte{0xA1, 0x01}, compress.Zlib())
	s.Require().NoError(err)
	_, err = s.decoder(base45.Encode(garbage)).AllowUnverified().Decode()
	s.ErrorIs(err, claim169.ErrCOSEParse)
}

func (s *PipelineSuite) TestInspect() {
	text := s.encode(func(e *claim169.Encoder) *claim169.Encoder {
		return e.SignWithEd25519(s.priv).WithKeyID([]byte("issuer-2024")).WithCertificateThumbprint(-16, bytes.Repeat([]byte{1}, 32))
	})

	info, err := claim169.Inspect(text)
	s.Require().NoError(err)
	s.Equal("COSE_Sign1", info.Envelope)
	s.Equal(crypto.EdDSA, info.Algorithm)
	s.Equal([]byte("issuer-2024"), info.KeyID)
	s.True(info.Signed)
	s.Require().NotNil(info.Meta)
	s.Equal(s.meta, *info.Meta)
	s.Require().NotNil(info.Certificates)
	s.Equal(int64(-16), info.Certificates.Thumbprint.Algorithm)

	encrypted := s.encode(func(e *claim169.Encoder) *claim169.Encoder {
		return e.SignWithEd25519(s.priv).EncryptWithAES256(s.aesKey)
	})
	info, err = claim169.Inspect(encrypted)
	s.Require().NoError(err)
	s.Equal("COSE_Encrypt0", info.Envelope)
	s.Equal(crypto.A256GCM, info.Algorithm)
	s.Nil(info.Meta)
}

func (s *PipelineSuite) TestConcurrentCalls() {
	signer, err := crypto.NewEd25519Signer(s.priv)
	s.Require().NoError(err)
	verifier, err := crypto.NewEd25519Verifier(s.pub)
	s.Require().NoError(err)

	var wg sync.WaitGroup
	errs := make(chan error, 32)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c := &claim.Claim{ID: claim.Ptr(fmt.Sprint(i))}
			res, err := claim169.NewEncoder(c, cwt.Meta{}).SignWith(signer, crypto.EdDSA).Encode()
			if err != nil {
				errs <- err
				return
			}
			out, err := claim169.NewDecoder(res.QRData).VerifyWith(verifier).Decode()
			if err != nil {
				errs <- err
				return
			}
			if *out.Claim.ID != fmt.Sprint(i) {
				errs <- fmt.Errorf("claim %d decoded as %s", i, *out.Claim.ID)
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		s.NoError(err)
	}
}
