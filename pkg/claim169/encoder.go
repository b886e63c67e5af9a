package claim169

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"log/slog"

	"github.com/claim169/claim169-core/pkg/base45"
	"github.com/claim169/claim169-core/pkg/claim"
	"github.com/claim169/claim169-core/pkg/compress"
	"github.com/claim169/claim169-core/pkg/cose"
	"github.com/claim169/claim169-core/pkg/crypto"
	"github.com/claim169/claim169-core/pkg/cwt"
)

// encodeConfig is everything an Encoder accumulates. It is read once by
// runEncode.
type encodeConfig struct {
	claim *claim.Claim
	meta  cwt.Meta

	signer        crypto.Signer
	signAlg       crypto.Algorithm
	allowUnsigned bool

	encryptor crypto.Encryptor
	encAlg    crypto.Algorithm
	nonce     []byte

	keyID   []byte
	x5chain [][]byte
	x5bag   [][]byte
	x5t     *cose.Thumbprint
	x5u     string

	compression    compress.Method
	skipBiometrics bool
	logger         *slog.Logger
}

// Encoder builds a credential. Configuration methods may be called in any
// order and only record settings; Encode runs the pipeline once. An Encoder
// must not be shared between goroutines.
type Encoder struct {
	cfg  encodeConfig
	errs []error
	used bool
}

// NewEncoder starts building a credential for c with token metadata meta.
func NewEncoder(c *claim.Claim, meta cwt.Meta) *Encoder {
	return &Encoder{cfg: encodeConfig{
		claim:       c,
		meta:        meta,
		compression: compress.Zlib(),
	}}
}

// SignWith signs with a custom provider under alg.
func (e *Encoder) SignWith(s crypto.Signer, alg crypto.Algorithm) *Encoder {
	if s == nil {
		e.errs = append(e.errs, configError("nil signer"))
		return e
	}
	if !alg.IsSignature() {
		e.errs = append(e.errs, WrapError(ErrCodeUnsupportedAlgorithm, "not a signature algorithm", crypto.ErrUnsupportedAlgorithm))
		return e
	}
	e.cfg.signer = s
	e.cfg.signAlg = alg
	return e
}

// SignWithEd25519 signs with a built-in Ed25519 provider.
func (e *Encoder) SignWithEd25519(key ed25519.PrivateKey) *Encoder {
	s, err := crypto.NewEd25519Signer(key)
	if err != nil {
		e.errs = append(e.errs, WrapError(ErrCodeConfiguration, "invalid Ed25519 signing key", err))
		return e
	}
	return e.SignWith(s, crypto.EdDSA)
}

// SignWithECDSAP256 signs with a built-in ECDSA P-256 provider.
func (e *Encoder) SignWithECDSAP256(key *ecdsa.PrivateKey) *Encoder {
	s, err := crypto.NewECDSAP256Signer(key)
	if err != nil {
		e.errs = append(e.errs, WrapError(ErrCodeConfiguration, "invalid ECDSA P-256 signing key", err))
		return e
	}
	return e.SignWith(s, crypto.ES256)
}

// AllowUnsigned permits encoding without a signer. A configured signer still
// signs.
func (e *Encoder) AllowUnsigned() *Encoder {
	e.cfg.allowUnsigned = true
	return e
}

// EncryptWith encrypts the signed envelope with a custom provider under alg.
func (e *Encoder) EncryptWith(enc crypto.Encryptor, alg crypto.Algorithm) *Encoder {
	if enc == nil {
		e.errs = append(e.errs, configError("nil encryptor"))
		return e
	}
	if !alg.IsEncryption() {
		e.errs = append(e.errs, WrapError(ErrCodeUnsupportedAlgorithm, "not an encryption algorithm", crypto.ErrUnsupportedAlgorithm))
		return e
	}
	e.cfg.encryptor = enc
	e.cfg.encAlg = alg
	return e
}

// EncryptWithAES128 encrypts with a built-in AES-128-GCM provider.
func (e *Encoder) EncryptWithAES128(key []byte) *Encoder {
	return e.encryptWithAES(key, crypto.A128GCM)
}

// EncryptWithAES256 encrypts with a built-in AES-256-GCM provider.
func (e *Encoder) EncryptWithAES256(key []byte) *Encoder {
	return e.encryptWithAES(key, crypto.A256GCM)
}

func (e *Encoder) encryptWithAES(key []byte, alg crypto.Algorithm) *Encoder {
	if len(key) != alg.KeySize() {
		e.errs = append(e.errs, configError("%s requires a %d-byte key, got %d", alg, alg.KeySize(), len(key)))
		return e
	}
	a, err := crypto.NewAESGCM(key)
	if err != nil {
		e.errs = append(e.errs, WrapError(ErrCodeConfiguration, "invalid AES key", err))
		return e
	}
	return e.EncryptWith(a, alg)
}

// WithNonce fixes the encryption nonce instead of drawing a random one. A
// nonce must never be reused with the same key; use this only for
// reproducible output such as test vectors.
func (e *Encoder) WithNonce(nonce []byte) *Encoder {
	if len(nonce) != crypto.NonceSize {
		e.errs = append(e.errs, configError("nonce must be %d bytes, got %d", crypto.NonceSize, len(nonce)))
		return e
	}
	e.cfg.nonce = append([]byte(nil), nonce...)
	return e
}

// WithKeyID sets the signature envelope's key id. Without it a signer that
// implements crypto.KeyIdentifier supplies its own.
func (e *Encoder) WithKeyID(kid []byte) *Encoder {
	e.cfg.keyID = append([]byte(nil), kid...)
	return e
}

// WithCertificateChain adds an x5chain header (DER certificates, leaf first).
func (e *Encoder) WithCertificateChain(der ...[]byte) *Encoder {
	e.cfg.x5chain = der
	return e
}

// WithCertificateBag adds an x5bag header.
func (e *Encoder) WithCertificateBag(der ...[]byte) *Encoder {
	e.cfg.x5bag = der
	return e
}

// WithCertificateThumbprint adds an x5t header. hashAlg is a COSE hash
// algorithm identifier such as -16 for SHA-256.
func (e *Encoder) WithCertificateThumbprint(hashAlg int64, hash []byte) *Encoder {
	e.cfg.x5t = &cose.Thumbprint{Algorithm: hashAlg, Hash: hash}
	return e
}

// WithCertificateURI adds an x5u header.
func (e *Encoder) WithCertificateURI(uri string) *Encoder {
	e.cfg.x5u = uri
	return e
}

// Compression selects the compression method. The default is zlib.
func (e *Encoder) Compression(m compress.Method) *Encoder {
	e.cfg.compression = m
	return e
}

// SkipBiometrics leaves every biometric slot out of the credential.
func (e *Encoder) SkipBiometrics() *Encoder {
	e.cfg.skipBiometrics = true
	return e
}

// WithLogger sets the logger for stage-level debug output.
func (e *Encoder) WithLogger(logger *slog.Logger) *Encoder {
	e.cfg.logger = logger
	return e
}

// Encode runs the pipeline: claim, token, signature, optional encryption,
// compression, transport. It can be called once.
func (e *Encoder) Encode() (*EncodeResult, error) {
	if e.used {
		return nil, configError("encoder already used")
	}
	e.used = true
	if len(e.errs) > 0 {
		return nil, e.errs[0]
	}
	return runEncode(e.cfg)
}

// signStage is the resolved signing decision: signed with a provider, or
// explicitly unsigned.
type signStage interface {
	seal(payload []byte, h cose.Headers) ([]byte, error)
	algorithm() crypto.Algorithm
}

type signedStage struct {
	signer crypto.Signer
	alg    crypto.Algorithm
}

func (s signedStage) seal(payload []byte, h cose.Headers) ([]byte, error) {
	h.Algorithm = s.alg
	return cose.Sign1(payload, h, s.signer)
}

func (s signedStage) algorithm() crypto.Algorithm { return s.alg }

type unsignedStage struct{}

func (unsignedStage) seal(payload []byte, h cose.Headers) ([]byte, error) {
	return cose.Sign1Unsigned(payload, h)
}

func (unsignedStage) algorithm() crypto.Algorithm { return "" }

func resolveSignStage(cfg encodeConfig) (signStage, error) {
	switch {
	case cfg.signer != nil:
		return signedStage{signer: cfg.signer, alg: cfg.signAlg}, nil
	case cfg.allowUnsigned:
		return unsignedStage{}, nil
	default:
		return nil, configError("no signer configured; call AllowUnsigned to encode an unsigned credential")
	}
}

func runEncode(cfg encodeConfig) (*EncodeResult, error) {
	log := loggerOrDiscard(cfg.logger)

	if cfg.claim == nil {
		return nil, configError("nil claim")
	}
	sign, err := resolveSignStage(cfg)
	if err != nil {
		return nil, err
	}

	var opts []claim.Option
	if cfg.skipBiometrics {
		opts = append(opts, claim.WithoutBiometrics())
	}
	claimBytes, err := claim.Marshal(cfg.claim, opts...)
	if err != nil {
		return nil, WrapError(ErrCodeClaimSchema, "failed to encode claim", err)
	}
	log.Debug("claim encoded", "stage", "claim", "bytes", len(claimBytes))

	token, err := cwt.Marshal(cfg.meta, claimBytes)
	if err != nil {
		return nil, WrapError(ErrCodeCWTParse, "failed to encode token", err)
	}
	log.Debug("token encoded", "stage", "cwt", "bytes", len(token))

	kid := cfg.keyID
	if kid == nil {
		if ki, ok := cfg.signer.(crypto.KeyIdentifier); ok {
			kid = ki.KeyID()
		}
	}
	envelope, err := sign.seal(token, cose.Headers{
		KeyID:   kid,
		X5Chain: cfg.x5chain,
		X5Bag:   cfg.x5bag,
		X5T:     cfg.x5t,
		X5U:     cfg.x5u,
	})
	if err != nil {
		return nil, classifySignError(err)
	}
	log.Debug("envelope signed", "stage", "sign", "alg", sign.algorithm(), "bytes", len(envelope))

	if cfg.encryptor != nil {
		envelope, err = encrypt(cfg, envelope)
		if err != nil {
			return nil, err
		}
		log.Debug("envelope encrypted", "stage", "encrypt", "alg", cfg.encAlg, "bytes", len(envelope))
	}

	compressed, used, err := compress.Compress(envelope, cfg.compression)
	if err != nil {
		return nil, WrapError(ErrCodeConfiguration, "compression failed", err)
	}
	log.Debug("payload compressed", "stage", "compress", "method", used.String(), "bytes", len(compressed))

	res := &EncodeResult{
		QRData:      base45.Encode(compressed),
		Compression: used,
	}
	if cfg.skipBiometrics && cfg.claim.HasBiometrics() {
		res.Warnings = append(res.Warnings, Warning{
			Code:    WarnBiometricsSkipped,
			Message: "biometric slots were not encoded",
		})
	}
	if !cfg.compression.Standard() {
		res.Warnings = append(res.Warnings, Warning{
			Code:    WarnNonStandardCompression,
			Message: "compression method " + cfg.compression.String() + " is not readable by every decoder",
		})
	}
	return res, nil
}

func encrypt(cfg encodeConfig, plaintext []byte) ([]byte, error) {
	nonce := cfg.nonce
	if nonce == nil {
		var err error
		nonce, err = crypto.RandomNonce()
		if err != nil {
			return nil, WrapError(ErrCodeCryptoProvider, "failed to generate nonce", err)
		}
	}
	var kid []byte
	if ki, ok := cfg.encryptor.(crypto.KeyIdentifier); ok {
		kid = ki.KeyID()
	}
	out, err := cose.Encrypt0(plaintext, cose.Headers{Algorithm: cfg.encAlg, KeyID: kid}, cfg.encryptor, nonce)
	if err != nil {
		return nil, classifyEncryptError(err)
	}
	return out, nil
}
