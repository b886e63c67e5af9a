package claim169

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"time"

	"github.com/claim169/claim169-core/pkg/claim"
	"github.com/claim169/claim169-core/pkg/compress"
	"github.com/claim169/claim169-core/pkg/cose"
	"github.com/claim169/claim169-core/pkg/crypto"
	"github.com/claim169/claim169-core/pkg/cwt"
)

// DefaultExpiringSoonWindow is how close to expiry a credential must be for
// an EXPIRING_SOON warning.
const DefaultExpiringSoonWindow = 7 * 24 * time.Hour

// decodeConfig is everything a Decoder accumulates. It is read once by
// runDecode.
type decodeConfig struct {
	text string

	verifier                 crypto.SignatureVerifier
	resolver                 crypto.KeyResolver
	allowUnverified          bool
	allowVerificationFailure bool

	decryptor crypto.Decryptor

	maxDecompressed    int
	strictCompression  bool
	validateTimestamps bool
	skew               time.Duration
	expiringSoon       time.Duration
	skipBiometrics     bool
	now                func() time.Time
	logger             *slog.Logger
}

// Decoder reads a credential. Configuration methods may be called in any
// order and only record settings; Decode runs the pipeline once. A Decoder
// must not be shared between goroutines.
type Decoder struct {
	cfg  decodeConfig
	errs []error
	used bool
}

// NewDecoder starts decoding text, the exact string read from a QR symbol.
// The text must not be trimmed or otherwise normalized.
func NewDecoder(text string) *Decoder {
	return &Decoder{cfg: decodeConfig{
		text:               text,
		maxDecompressed:    compress.DefaultMaxDecompressedBytes,
		validateTimestamps: true,
		expiringSoon:       DefaultExpiringSoonWindow,
		now:                time.Now,
	}}
}

// VerifyWith verifies the signature with a custom provider. An explicit
// verifier takes precedence over a key resolver.
func (d *Decoder) VerifyWith(v crypto.SignatureVerifier) *Decoder {
	if v == nil {
		d.errs = append(d.errs, configError("nil verifier"))
		return d
	}
	d.cfg.verifier = v
	return d
}

// VerifyWithEd25519 verifies with a built-in Ed25519 provider.
func (d *Decoder) VerifyWithEd25519(pub ed25519.PublicKey) *Decoder {
	v, err := crypto.NewEd25519Verifier(pub)
	if err != nil {
		d.errs = append(d.errs, WrapError(ErrCodeConfiguration, "invalid Ed25519 public key", err))
		return d
	}
	return d.VerifyWith(v)
}

// VerifyWithECDSAP256 verifies with a built-in ECDSA P-256 provider.
func (d *Decoder) VerifyWithECDSAP256(pub *ecdsa.PublicKey) *Decoder {
	v, err := crypto.NewECDSAP256Verifier(pub)
	if err != nil {
		d.errs = append(d.errs, WrapError(ErrCodeConfiguration, "invalid ECDSA P-256 public key", err))
		return d
	}
	return d.VerifyWith(v)
}

// WithKeyResolver selects the verifier and decryptor from the envelope key
// id. Explicitly configured providers take precedence.
func (d *Decoder) WithKeyResolver(r crypto.KeyResolver) *Decoder {
	if r == nil {
		d.errs = append(d.errs, configError("nil key resolver"))
		return d
	}
	d.cfg.resolver = r
	return d
}

// AllowUnverified permits decoding without a verifier; the result then
// reports Skipped. A configured verifier or resolver still verifies.
func (d *Decoder) AllowUnverified() *Decoder {
	d.cfg.allowUnverified = true
	return d
}

// AllowVerificationFailure turns a failed signature check into a Failed
// status on the result instead of a SIGNATURE_INVALID error.
func (d *Decoder) AllowVerificationFailure() *Decoder {
	d.cfg.allowVerificationFailure = true
	return d
}

// DecryptWith decrypts with a custom provider.
func (d *Decoder) DecryptWith(dec crypto.Decryptor) *Decoder {
	if dec == nil {
		d.errs = append(d.errs, configError("nil decryptor"))
		return d
	}
	d.cfg.decryptor = dec
	return d
}

// DecryptWithAES128 decrypts with a built-in AES-128-GCM provider.
func (d *Decoder) DecryptWithAES128(key []byte) *Decoder {
	return d.decryptWithAES(key, crypto.A128GCM)
}

// DecryptWithAES256 decrypts with a built-in AES-256-GCM provider.
func (d *Decoder) DecryptWithAES256(key []byte) *Decoder {
	return d.decryptWithAES(key, crypto.A256GCM)
}

func (d *Decoder) decryptWithAES(key []byte, alg crypto.Algorithm) *Decoder {
	if len(key) != alg.KeySize() {
		d.errs = append(d.errs, configError("%s requires a %d-byte key, got %d", alg, alg.KeySize(), len(key)))
		return d
	}
	a, err := crypto.NewAESGCM(key)
	if err != nil {
		d.errs = append(d.errs, WrapError(ErrCodeConfiguration, "invalid AES key", err))
		return d
	}
	return d.DecryptWith(a)
}

// MaxDecompressedBytes bounds the decompressed payload. The default is
// compress.DefaultMaxDecompressedBytes.
func (d *Decoder) MaxDecompressedBytes(n int) *Decoder {
	if n <= 0 {
		d.errs = append(d.errs, configError("decompression limit must be positive, got %d", n))
		return d
	}
	d.cfg.maxDecompressed = n
	return d
}

// StrictCompression rejects anything but zlib.
func (d *Decoder) StrictCompression() *Decoder {
	d.cfg.strictCompression = true
	return d
}

// WithoutTimestampValidation skips the exp and nbf checks and adds a
// TIMESTAMP_VALIDATION_SKIPPED warning.
func (d *Decoder) WithoutTimestampValidation() *Decoder {
	d.cfg.validateTimestamps = false
	return d
}

// ClockSkewTolerance widens the validity window by tol on both sides.
func (d *Decoder) ClockSkewTolerance(tol time.Duration) *Decoder {
	if tol < 0 {
		d.errs = append(d.errs, configError("clock skew tolerance must not be negative"))
		return d
	}
	d.cfg.skew = tol
	return d
}

// ExpiringSoonWindow sets how close to expiry triggers EXPIRING_SOON. Zero
// disables the warning.
func (d *Decoder) ExpiringSoonWindow(w time.Duration) *Decoder {
	if w < 0 {
		d.errs = append(d.errs, configError("expiring-soon window must not be negative"))
		return d
	}
	d.cfg.expiringSoon = w
	return d
}

// SkipBiometrics ignores every biometric slot in the claim.
func (d *Decoder) SkipBiometrics() *Decoder {
	d.cfg.skipBiometrics = true
	return d
}

// WithClock replaces time.Now for timestamp validation.
func (d *Decoder) WithClock(now func() time.Time) *Decoder {
	if now == nil {
		d.errs = append(d.errs, configError("nil clock"))
		return d
	}
	d.cfg.now = now
	return d
}

// WithLogger sets the logger for stage-level debug output.
func (d *Decoder) WithLogger(logger *slog.Logger) *Decoder {
	d.cfg.logger = logger
	return d
}

// Decode runs the pipeline: transport, decompression, optional decryption,
// verification, token, timestamps, claim. It can be called once.
func (d *Decoder) Decode() (*DecodeResult, error) {
	if d.used {
		return nil, configError("decoder already used")
	}
	d.used = true
	if len(d.errs) > 0 {
		return nil, d.errs[0]
	}
	return runDecode(d.cfg)
}

// verifyStage is the resolved verification decision.
type verifyStage interface {
	verify(msg *cose.Sign1Message) error
}

type explicitVerify struct{ v crypto.SignatureVerifier }

func (s explicitVerify) verify(msg *cose.Sign1Message) error {
	return msg.Verify(s.v)
}

type resolvedVerify struct{ r crypto.KeyResolver }

func (s resolvedVerify) verify(msg *cose.Sign1Message) error {
	if !msg.Signed() {
		return fmt.Errorf("%w: message is unsigned", crypto.ErrSignatureInvalid)
	}
	if len(msg.Headers.KeyID) == 0 {
		return fmt.Errorf("%w: envelope has no key id to resolve", crypto.ErrKeyNotFound)
	}
	v, err := s.r.ResolveVerifier(msg.Headers.Algorithm, msg.Headers.KeyID)
	if err != nil {
		return err
	}
	return msg.Verify(v)
}

// skipVerify is chosen only by AllowUnverified with no provider.
type skipVerify struct{}

func (skipVerify) verify(*cose.Sign1Message) error { return nil }

func resolveVerifyStage(cfg decodeConfig) (verifyStage, error) {
	switch {
	case cfg.verifier != nil:
		return explicitVerify{v: cfg.verifier}, nil
	case cfg.resolver != nil:
		return resolvedVerify{r: cfg.resolver}, nil
	case cfg.allowUnverified:
		return skipVerify{}, nil
	default:
		return nil, configError("no verifier configured; call AllowUnverified to decode without verification")
	}
}

func resolveDecryptor(cfg decodeConfig, h cose.Headers) (crypto.Decryptor, error) {
	switch {
	case cfg.decryptor != nil:
		return cfg.decryptor, nil
	case cfg.resolver != nil:
		if len(h.KeyID) == 0 {
			return nil, NewError(ErrCodeKeyNotFound, "encrypted envelope has no key id to resolve")
		}
		dec, err := cfg.resolver.ResolveDecryptor(h.Algorithm, h.KeyID)
		if err != nil {
			return nil, classifyDecryptError(err)
		}
		return dec, nil
	default:
		return nil, NewError(ErrCodeDecryptionFailed, "credential is encrypted and no decryptor is configured")
	}
}

func runDecode(cfg decodeConfig) (*DecodeResult, error) {
	log := loggerOrDiscard(cfg.logger)

	verify, err := resolveVerifyStage(cfg)
	if err != nil {
		return nil, err
	}

	res := &DecodeResult{}

	payload, method, err := unwrapTransport(cfg.text, cfg.maxDecompressed, cfg.strictCompression)
	if err != nil {
		return nil, err
	}
	res.Compression = method
	log.Debug("payload decompressed", "stage", "decompress", "method", method.String(), "bytes", len(payload))
	if !method.Standard() {
		res.Warnings = append(res.Warnings, Warning{
			Code:    WarnNonStandardCompression,
			Message: "credential uses " + method.String() + " compression",
		})
	}

	if cose.Detect(payload) == cose.TypeEncrypt0 {
		enc, err := cose.ParseEncrypt0(payload)
		if err != nil {
			return nil, classifyEnvelopeError(err)
		}
		dec, err := resolveDecryptor(cfg, enc.Headers)
		if err != nil {
			return nil, err
		}
		payload, err = enc.Decrypt(dec)
		if err != nil {
			return nil, classifyDecryptError(err)
		}
		res.Encrypted = true
		log.Debug("envelope decrypted", "stage", "decrypt", "alg", enc.Headers.Algorithm, "bytes", len(payload))
	}

	msg, err := cose.ParseSign1(payload)
	if err != nil {
		return nil, classifyEnvelopeError(err)
	}
	res.Algorithm = msg.Headers.Algorithm
	res.KeyID = msg.Headers.KeyID
	res.Certificates = certificatesFrom(msg.Headers)

	res.Verification = Verified
	if _, skipped := verify.(skipVerify); skipped {
		res.Verification = Skipped
	} else if err := verify.verify(msg); err != nil {
		verr := classifyVerifyError(err)
		if verr.Code != ErrCodeSignatureInvalid || !cfg.allowVerificationFailure {
			return nil, verr
		}
		res.Verification = Failed
	}
	log.Debug("signature checked", "stage", "verify", "alg", msg.Headers.Algorithm, "status", string(res.Verification))

	meta, rawClaim, err := cwt.Unmarshal(msg.Payload)
	if err != nil {
		return nil, classifyTokenError(err)
	}
	res.Meta = meta

	now := cfg.now()
	if cfg.validateTimestamps {
		if err := meta.Validate(now, cfg.skew); err != nil {
			return nil, classifyTimeError(err)
		}
	} else {
		res.Warnings = append(res.Warnings, Warning{
			Code:    WarnTimestampValidationSkipped,
			Message: "expiry and not-before were not checked",
		})
	}
	if meta.ExpiresWithin(now, cfg.expiringSoon) {
		res.Warnings = append(res.Warnings, Warning{
			Code:    WarnExpiringSoon,
			Message: "credential expires at " + time.Unix(*meta.ExpiresAt, 0).UTC().Format(time.RFC3339),
		})
	}

	var opts []claim.Option
	if cfg.skipBiometrics {
		opts = append(opts, claim.WithoutBiometrics())
		res.Warnings = append(res.Warnings, Warning{
			Code:    WarnBiometricsSkipped,
			Message: "biometric slots were not decoded",
		})
	}
	c, err := claim.Unmarshal(rawClaim, opts...)
	if err != nil {
		return nil, WrapError(ErrCodeClaimSchema, "failed to decode claim", err)
	}
	if len(c.Unknown) > 0 || len(c.UnknownLabels) > 0 {
		msg := fmt.Sprintf("claim carries unrecognised keys %v", slices.Sorted(maps.Keys(c.Unknown)))
		if n := len(c.UnknownLabels); n > 0 {
			msg += fmt.Sprintf(" and %d non-integer labels", n)
		}
		res.Warnings = append(res.Warnings, Warning{Code: WarnUnknownFields, Message: msg})
	}
	res.Claim = c
	log.Debug("claim decoded", "stage", "claim", "bytes", len(rawClaim), "warnings", len(res.Warnings))

	return res, nil
}

func classifyTokenError(err error) *Error {
	if errors.Is(err, cwt.ErrClaimNotFound) {
		return WrapError(ErrCodeClaimNotFound, "token does not carry an identity claim", err)
	}
	return WrapError(ErrCodeCWTParse, "malformed token", err)
}

func classifyTimeError(err error) *Error {
	var expired *cwt.ExpiredError
	if errors.As(err, &expired) {
		return &Error{Code: ErrCodeExpired, Message: "credential has expired", Cause: err, Timestamp: expired.ExpiresAt}
	}
	var early *cwt.NotYetValidError
	if errors.As(err, &early) {
		return &Error{Code: ErrCodeNotYetValid, Message: "credential is not yet valid", Cause: err, Timestamp: early.NotBefore}
	}
	return WrapError(ErrCodeCWTParse, "invalid token times", err)
}
