package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/claim169/claim169-core/pkg/claim169"
	"github.com/claim169/claim169-core/pkg/compress"
	"github.com/claim169/claim169-core/pkg/crypto"
	"github.com/claim169/claim169-core/pkg/keystore"
)

var (
	decodeKeyFile                  string
	decodeDecryptKeyFile           string
	decodeUseKeystore              bool
	decodeAllowUnverified          bool
	decodeAllowVerificationFailure bool
	decodeNoTimestamps             bool
	decodeSkew                     time.Duration
	decodeMaxBytes                 int
	decodeStrictCompression        bool
	decodeSkipBiometrics           bool
	decodeJSON                     bool
)

var decodeCmd = &cobra.Command{
	Use:   "decode [file...]",
	Short: "Decode and verify QR credentials",
	Long: `Decode and verify one or more QR credentials.

Each input file holds one credential per line; "-" or no argument reads
stdin. Lines are used exactly as read apart from the line terminator,
since spaces are part of the QR text. Credentials are decoded
concurrently and reported in input order.

A verification key is required: --key with a public JWK, or --keystore to
resolve the envelope key id against the local keystore. Use
--allow-unverified to accept credentials without checking signatures.`,
	Example: `  # Verify with a known issuer key
  claim169 decode qr.txt --key public.jwk

  # Resolve keys by kid from ~/.claim169/keys
  claim169 decode batch.txt --keystore --json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		inputs, err := readCredentials(args)
		if err != nil {
			return err
		}
		if len(inputs) == 0 {
			return fmt.Errorf("no credentials to decode")
		}

		configure, err := decoderOptions()
		if err != nil {
			return err
		}

		reports := decodeAll(cmd.Context(), inputs, configure)

		failed := 0
		for _, r := range reports {
			if r.Error != nil {
				failed++
			}
		}

		if decodeJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(reports); err != nil {
				return err
			}
		} else {
			for i, r := range reports {
				printReport(i, r)
			}
		}

		if failed > 0 {
			return fmt.Errorf("%d of %d credential(s) failed", failed, len(reports))
		}
		return nil
	},
}

// decodeReport is the outcome for one input line.
type decodeReport struct {
	Result *claim169.DecodeResult `json:"result,omitempty"`
	Error  *reportError           `json:"error,omitempty"`
}

type reportError struct {
	Code     string            `json:"code"`
	Category claim169.Category `json:"category,omitempty"`
	Message  string            `json:"message"`
}

func newReportError(err error) *reportError {
	return &reportError{
		Code:     claim169.GetErrorCode(err),
		Category: claim169.GetCategory(err),
		Message:  err.Error(),
	}
}

// decodeAll decodes every input with at most GOMAXPROCS decoders running.
// Each input gets its own Decoder; providers are shared.
func decodeAll(ctx context.Context, inputs []string, configure func(*claim169.Decoder) *claim169.Decoder) []decodeReport {
	reports := make([]decodeReport, len(inputs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, text := range inputs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				reports[i].Error = newReportError(err)
				return nil
			}
			res, err := configure(claim169.NewDecoder(text)).Decode()
			if err != nil {
				reports[i].Error = newReportError(err)
				return nil
			}
			reports[i].Result = res
			return nil
		})
	}
	_ = g.Wait()
	return reports
}

// decoderOptions loads keys once and returns the configuration applied to
// each Decoder.
func decoderOptions() (func(*claim169.Decoder) *claim169.Decoder, error) {
	var verifier crypto.SignatureVerifier
	if decodeKeyFile != "" {
		jwk, err := readJWK(decodeKeyFile)
		if err != nil {
			return nil, err
		}
		if verifier, _, err = crypto.VerifierFromJWK(jwk); err != nil {
			return nil, fmt.Errorf("invalid verification key: %w", err)
		}
	}

	var decryptor crypto.Decryptor
	if decodeDecryptKeyFile != "" {
		jwk, err := readJWK(decodeDecryptKeyFile)
		if err != nil {
			return nil, err
		}
		if decryptor, _, err = crypto.DecryptorFromJWK(jwk); err != nil {
			return nil, fmt.Errorf("invalid decryption key: %w", err)
		}
	}

	var resolver crypto.KeyResolver
	if decodeUseKeystore {
		store, err := keystore.NewFileStore("")
		if err != nil {
			return nil, fmt.Errorf("failed to open keystore: %w", err)
		}
		resolver = keystore.Resolver(store)
	}

	return func(d *claim169.Decoder) *claim169.Decoder {
		d = d.WithLogger(logger).MaxDecompressedBytes(decodeMaxBytes).ClockSkewTolerance(decodeSkew)
		if verifier != nil {
			d = d.VerifyWith(verifier)
		}
		if decryptor != nil {
			d = d.DecryptWith(decryptor)
		}
		if resolver != nil {
			d = d.WithKeyResolver(resolver)
		}
		if decodeAllowUnverified {
			d = d.AllowUnverified()
		}
		if decodeAllowVerificationFailure {
			d = d.AllowVerificationFailure()
		}
		if decodeNoTimestamps {
			d = d.WithoutTimestampValidation()
		}
		if decodeStrictCompression {
			d = d.StrictCompression()
		}
		if decodeSkipBiometrics {
			d = d.SkipBiometrics()
		}
		return d
	}, nil
}

// readCredentials reads one credential per non-empty line from each file.
func readCredentials(args []string) ([]string, error) {
	if len(args) == 0 {
		args = []string{"-"}
	}

	var out []string
	for _, path := range args {
		var r io.Reader
		if path == "-" {
			r = os.Stdin
		} else {
			f, err := os.Open(path)
			if err != nil {
				return nil, fmt.Errorf("failed to open %s: %w", path, err)
			}
			defer f.Close()
			r = f
		}
		lines, err := splitLines(r)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		out = append(out, lines...)
	}
	return out, nil
}

func splitLines(r io.Reader) ([]string, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)

	var lines []string
	for sc.Scan() {
		line := strings.TrimSuffix(sc.Text(), "\r")
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	return lines, sc.Err()
}

func printReport(i int, r decodeReport) {
	if r.Error != nil {
		fmt.Printf("❌ [%d] %s (%s)\n", i+1, r.Error.Message, r.Error.Category)
		return
	}

	res := r.Result
	status := "✅"
	if res.Verification != claim169.Verified {
		status = "⚠️ "
	}
	fmt.Printf("%s [%d] verification: %s\n", status, i+1, res.Verification)
	if res.Algorithm != "" {
		fmt.Printf("   Algorithm: %s\n", res.Algorithm)
	}
	if len(res.KeyID) > 0 {
		fmt.Printf("   Key ID: %s\n", res.KeyID)
	}
	if res.Meta.Issuer != nil {
		fmt.Printf("   Issuer: %s\n", *res.Meta.Issuer)
	}
	if res.Meta.ExpiresAt != nil {
		fmt.Printf("   Expires: %s\n", time.Unix(*res.Meta.ExpiresAt, 0).UTC().Format(time.RFC3339))
	}
	if res.Claim.ID != nil {
		fmt.Printf("   ID: %s\n", *res.Claim.ID)
	}
	if res.Claim.FullName != nil {
		fmt.Printf("   Name: %s\n", *res.Claim.FullName)
	}
	if res.Encrypted {
		fmt.Println("   Encrypted: yes")
	}
	if res.Compression.Kind != compress.KindZlib {
		fmt.Printf("   Compression: %s\n", res.Compression)
	}
	for _, w := range res.Warnings {
		fmt.Printf("   ⚠️  %s: %s\n", w.Code, w.Message)
	}
}

func init() {
	rootCmd.AddCommand(decodeCmd)

	decodeCmd.Flags().StringVar(&decodeKeyFile, "key", "", "Path to the issuer's public JWK")
	decodeCmd.Flags().BoolVar(&decodeUseKeystore, "keystore", false, "Resolve keys by kid from the local keystore")
	decodeCmd.Flags().StringVar(&decodeDecryptKeyFile, "decrypt-key", "", "Path to a symmetric JWK for encrypted credentials")
	decodeCmd.Flags().BoolVar(&decodeAllowUnverified, "allow-unverified", false, "Accept credentials without verifying signatures (explicit)")
	decodeCmd.Flags().BoolVar(&decodeAllowVerificationFailure, "allow-verification-failure", false, "Report invalid signatures instead of failing")
	decodeCmd.Flags().BoolVar(&decodeNoTimestamps, "no-timestamps", false, "Skip expiry and not-before checks")
	decodeCmd.Flags().DurationVar(&decodeSkew, "skew", 0, "Clock skew tolerance for timestamp checks")
	decodeCmd.Flags().IntVar(&decodeMaxBytes, "max-bytes", compress.DefaultMaxDecompressedBytes, "Decompressed size limit in bytes")
	decodeCmd.Flags().BoolVar(&decodeStrictCompression, "strict-compression", false, "Reject anything but zlib")
	decodeCmd.Flags().BoolVar(&decodeSkipBiometrics, "skip-biometrics", false, "Do not decode biometric slots")
	decodeCmd.Flags().BoolVar(&decodeJSON, "json", false, "Output results as JSON")
}
