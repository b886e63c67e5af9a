package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/claim169/claim169-core/pkg/claim"
	"github.com/claim169/claim169-core/pkg/claim169"
	"github.com/claim169/claim169-core/pkg/compress"
	"github.com/claim169/claim169-core/pkg/crypto"
	"github.com/claim169/claim169-core/pkg/cwt"
)

var (
	encodeKeyFile        string
	encodeEncryptKeyFile string
	encodeUnsigned       bool
	encodeCompression    string
	encodeSkipBiometrics bool
	encodeIssuer         string
	encodeSubject        string
	encodeExpiry         time.Duration
	encodeCertURI        string
	encodeOutFile        string
)

var encodeCmd = &cobra.Command{
	Use:   "encode [claim.json]",
	Short: "Encode an identity claim into QR text",
	Long: `Encode an identity claim, given as JSON, into Base45 QR text.

The claim JSON uses the field names of the claim record (id, fullName,
dateOfBirth, gender, photo as base64, biometrics keyed by slot name).
Use "-" or no argument to read from stdin.

The credential is signed with the private JWK given by --key. Pass
--unsigned to produce an unsigned credential instead; only decoders that
explicitly allow unverified input will accept it.`,
	Example: `  # Sign with an Ed25519 key, valid for a year
  claim169 encode person.json --key private.jwk --iss https://id.example --exp 8760h

  # Sign and encrypt
  claim169 encode person.json --key private.jwk --encrypt-key enc.jwk`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		c, err := readClaim(args)
		if err != nil {
			return err
		}

		now := time.Now().Unix()
		meta := cwt.Meta{IssuedAt: &now}
		if encodeIssuer != "" {
			meta.Issuer = &encodeIssuer
		}
		if encodeSubject != "" {
			meta.Subject = &encodeSubject
		}
		if encodeExpiry > 0 {
			exp := now + int64(encodeExpiry/time.Second)
			meta.ExpiresAt = &exp
		}

		method, err := compress.ParseMethod(encodeCompression)
		if err != nil {
			return err
		}

		enc := claim169.NewEncoder(c, meta).Compression(method).WithLogger(logger)
		if encodeSkipBiometrics {
			enc = enc.SkipBiometrics()
		}
		if encodeCertURI != "" {
			enc = enc.WithCertificateURI(encodeCertURI)
		}

		switch {
		case encodeKeyFile != "":
			jwk, err := readJWK(encodeKeyFile)
			if err != nil {
				return err
			}
			signer, alg, err := crypto.SignerFromJWK(jwk)
			if err != nil {
				return fmt.Errorf("invalid signing key: %w", err)
			}
			enc = enc.SignWith(signer, alg)
		case encodeUnsigned:
			enc = enc.AllowUnsigned()
		}

		if encodeEncryptKeyFile != "" {
			jwk, err := readJWK(encodeEncryptKeyFile)
			if err != nil {
				return err
			}
			encryptor, alg, err := crypto.EncryptorFromJWK(jwk)
			if err != nil {
				return fmt.Errorf("invalid encryption key: %w", err)
			}
			enc = enc.EncryptWith(encryptor, alg)
		}

		res, err := enc.Encode()
		if err != nil {
			return err
		}
		for _, w := range res.Warnings {
			fmt.Fprintf(os.Stderr, "⚠️  %s: %s\n", w.Code, w.Message)
		}

		if encodeOutFile != "" {
			if err := os.WriteFile(encodeOutFile, []byte(res.QRData), 0644); err != nil {
				return fmt.Errorf("failed to write output: %w", err)
			}
			fmt.Fprintf(os.Stderr, "✅ QR text (%d chars) saved to %s\n", len(res.QRData), encodeOutFile)
			return nil
		}
		fmt.Println(res.QRData)
		return nil
	},
}

func readClaim(args []string) (*claim.Claim, error) {
	var data []byte
	var err error
	if len(args) == 0 || args[0] == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(args[0])
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read claim: %w", err)
	}

	var c claim.Claim
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse claim JSON: %w", err)
	}
	return &c, nil
}

func init() {
	rootCmd.AddCommand(encodeCmd)

	encodeCmd.Flags().StringVar(&encodeKeyFile, "key", "", "Path to the private signing JWK")
	encodeCmd.Flags().BoolVar(&encodeUnsigned, "unsigned", false, "Produce an unsigned credential (explicit)")
	encodeCmd.Flags().StringVar(&encodeEncryptKeyFile, "encrypt-key", "", "Path to a symmetric JWK to encrypt with (optional)")
	encodeCmd.Flags().StringVar(&encodeCompression, "compression", "zlib", "Compression: zlib, none, adaptive, zstd[:level], adaptive-zstd[:level]")
	encodeCmd.Flags().BoolVar(&encodeSkipBiometrics, "skip-biometrics", false, "Leave biometric slots out of the credential")
	encodeCmd.Flags().StringVar(&encodeIssuer, "iss", "", "Issuer (CWT iss)")
	encodeCmd.Flags().StringVar(&encodeSubject, "sub", "", "Subject (CWT sub)")
	encodeCmd.Flags().DurationVar(&encodeExpiry, "exp", 0, "Validity period from now (0 for no expiry)")
	encodeCmd.Flags().StringVar(&encodeCertURI, "x5u", "", "Certificate URI header (optional)")
	encodeCmd.Flags().StringVarP(&encodeOutFile, "out", "o", "", "Write QR text to a file instead of stdout")
}
