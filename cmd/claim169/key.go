package main

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"os"

	"github.com/go-jose/go-jose/v4"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/claim169/claim169-core/pkg/crypto"
	"github.com/claim169/claim169-core/pkg/keystore"
)

var (
	keyAlg        string
	keyID         string
	keyOutPrivate string
	keyOutPublic  string
	keyToStore    bool
)

var keyCmd = &cobra.Command{
	Use:   "key",
	Short: "Manage credential keys",
}

var keyGenCmd = &cobra.Command{
	Use:   "gen",
	Short: "Generate a signing key pair or an encryption key",
	Long: `Generate a key in JWK format.

Signature algorithms (EdDSA, ES256) produce a private and a public JWK.
Encryption algorithms (A128GCM, A256GCM) produce a single secret JWK,
written to the private key path.

The key id defaults to a random UUID. It is what decoders see in the
credential envelope and what the keystore resolves.`,
	Example: `  # Ed25519 issuer key
  claim169 key gen

  # ES256 key with a fixed kid, public half trusted locally
  claim169 key gen --alg ES256 --kid issuer-2025 --keystore

  # AES-256-GCM credential encryption key
  claim169 key gen --alg A256GCM --out-priv enc.jwk`,
	RunE: func(_ *cobra.Command, _ []string) error {
		if keyID == "" {
			keyID = uuid.NewString()
		}

		priv, pub, err := generateKey(crypto.Algorithm(keyAlg), keyID)
		if err != nil {
			return err
		}

		if err := writeJWK(keyOutPrivate, priv, 0600); err != nil {
			return fmt.Errorf("failed to write private key: %w", err)
		}
		fmt.Printf("✅ Private key saved to %s\n", keyOutPrivate)

		trusted := priv
		if pub != nil {
			if err := writeJWK(keyOutPublic, *pub, 0644); err != nil {
				return fmt.Errorf("failed to write public key: %w", err)
			}
			fmt.Printf("✅ Public key saved to %s\n", keyOutPublic)
			trusted = *pub
		}

		if keyToStore {
			store, err := keystore.NewFileStore("")
			if err != nil {
				return fmt.Errorf("failed to open keystore: %w", err)
			}
			if err := store.Add(trusted); err != nil {
				return fmt.Errorf("failed to add key to keystore: %w", err)
			}
			fmt.Printf("✅ Added to keystore at %s\n", store.Dir())
		}

		fmt.Printf("🔑 kid: %s\n", keyID)
		return nil
	},
}

// generateKey creates a fresh key for alg. pub is nil for symmetric keys.
func generateKey(alg crypto.Algorithm, kid string) (priv jose.JSONWebKey, pub *jose.JSONWebKey, err error) {
	switch alg {
	case crypto.EdDSA:
		pk, sk, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return priv, nil, fmt.Errorf("failed to generate key: %w", err)
		}
		priv = jose.JSONWebKey{Key: sk, KeyID: kid, Algorithm: string(alg), Use: "sig"}
		pub = &jose.JSONWebKey{Key: pk, KeyID: kid, Algorithm: string(alg), Use: "sig"}

	case crypto.ES256:
		sk, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
		if err != nil {
			return priv, nil, fmt.Errorf("failed to generate key: %w", err)
		}
		priv = jose.JSONWebKey{Key: sk, KeyID: kid, Algorithm: string(alg), Use: "sig"}
		pub = &jose.JSONWebKey{Key: &sk.PublicKey, KeyID: kid, Algorithm: string(alg), Use: "sig"}

	case crypto.A128GCM, crypto.A256GCM:
		secret := make([]byte, alg.KeySize())
		if _, err := rand.Read(secret); err != nil {
			return priv, nil, fmt.Errorf("failed to generate key: %w", err)
		}
		priv = jose.JSONWebKey{Key: secret, KeyID: kid, Algorithm: string(alg), Use: "enc"}

	default:
		return priv, nil, fmt.Errorf("unsupported algorithm %q (use EdDSA, ES256, A128GCM or A256GCM)", alg)
	}
	return priv, pub, nil
}

func readJWK(path string) (*jose.JSONWebKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}
	var key jose.JSONWebKey
	if err := json.Unmarshal(data, &key); err != nil {
		return nil, fmt.Errorf("failed to parse JWK: %w", err)
	}
	return &key, nil
}

func writeJWK(path string, key jose.JSONWebKey, perm os.FileMode) error {
	data, err := json.MarshalIndent(key, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, perm)
}

func init() {
	rootCmd.AddCommand(keyCmd)
	keyCmd.AddCommand(keyGenCmd)

	keyGenCmd.Flags().StringVar(&keyAlg, "alg", string(crypto.EdDSA), "Algorithm: EdDSA, ES256, A128GCM or A256GCM")
	keyGenCmd.Flags().StringVar(&keyID, "kid", "", "Key id (default: random UUID)")
	keyGenCmd.Flags().StringVar(&keyOutPrivate, "out-priv", "private.jwk", "Output path for the private or secret key")
	keyGenCmd.Flags().StringVar(&keyOutPublic, "out-pub", "public.jwk", "Output path for the public key")
	keyGenCmd.Flags().BoolVar(&keyToStore, "keystore", false, "Also add the public (or secret) key to the local keystore")
}
