package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-jose/go-jose/v4"
	"github.com/spf13/cobra"

	"github.com/claim169/claim169-core/pkg/keystore"
)

var (
	keystoreFromJWKS string
)

var keystoreCmd = &cobra.Command{
	Use:   "keystore",
	Short: "Manage trusted issuer and decryption keys",
	Long: `Manage the local keystore used by "decode --keystore".

The keystore holds issuer public keys and credential decryption keys as
JWK files named by kid. Decoding resolves the key id found in the
credential envelope against it.

Location: ~/.claim169/keys/ (or $CLAIM169_KEYSTORE_PATH)`,
}

var keystoreAddCmd = &cobra.Command{
	Use:   "add [jwk-file]",
	Short: "Add a key to the keystore",
	Example: `  # Add a single issuer key
  claim169 keystore add issuer.pub.jwk

  # Add every key of a JWKS document from stdin
  cat jwks.json | claim169 keystore add --from-jwks -`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		store, err := keystore.NewFileStore("")
		if err != nil {
			return fmt.Errorf("failed to open keystore: %w", err)
		}

		if keystoreFromJWKS != "" {
			return addFromJWKS(store, keystoreFromJWKS)
		}
		if len(args) == 0 {
			return fmt.Errorf("provide a JWK file path or use --from-jwks")
		}

		key, err := readJWK(args[0])
		if err != nil {
			return err
		}
		if err := store.Add(*key); err != nil {
			return fmt.Errorf("failed to add key: %w", err)
		}

		fmt.Printf("✅ Added key: %s\n", key.KeyID)
		fmt.Printf("   Algorithm: %s\n", key.Algorithm)
		return nil
	},
}

func addFromJWKS(store *keystore.FileStore, source string) error {
	var data []byte
	var err error
	if source == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(source)
	}
	if err != nil {
		return fmt.Errorf("failed to read JWKS: %w", err)
	}

	var jwks jose.JSONWebKeySet
	if err := json.Unmarshal(data, &jwks); err != nil {
		return fmt.Errorf("failed to parse JWKS: %w", err)
	}
	if len(jwks.Keys) == 0 {
		return fmt.Errorf("JWKS contains no keys")
	}

	if err := store.AddFromJWKS(&jwks); err != nil {
		return fmt.Errorf("failed to add keys: %w", err)
	}

	fmt.Printf("✅ Added %d key(s) from JWKS\n", len(jwks.Keys))
	for _, key := range jwks.Keys {
		fmt.Printf("   - %s (%s)\n", key.KeyID, key.Algorithm)
	}
	return nil
}

var keystoreListCmd = &cobra.Command{
	Use:   "list",
	Short: "List keys in the keystore",
	RunE: func(_ *cobra.Command, _ []string) error {
		store, err := keystore.NewFileStore("")
		if err != nil {
			return fmt.Errorf("failed to open keystore: %w", err)
		}

		keys, err := store.List()
		if err != nil {
			return fmt.Errorf("failed to list keys: %w", err)
		}

		if len(keys) == 0 {
			fmt.Println("No keys in keystore.")
			fmt.Println("\nAdd keys with:")
			fmt.Println("  claim169 keystore add issuer.pub.jwk")
			return nil
		}

		fmt.Printf("🔑 Keys (%d):\n\n", len(keys))
		for _, key := range keys {
			fmt.Printf("  Key ID: %s\n", key.KeyID)
			fmt.Printf("    Algorithm: %s\n", key.Algorithm)
			fmt.Printf("    Use: %s\n", describeKeyUse(key.Use))
			fmt.Println()
		}

		fmt.Printf("Keystore location: %s\n", store.Dir())
		return nil
	},
}

var keystoreRemoveCmd = &cobra.Command{
	Use:   "remove [kid]",
	Short: "Remove a key from the keystore",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		kid := args[0]

		store, err := keystore.NewFileStore("")
		if err != nil {
			return fmt.Errorf("failed to open keystore: %w", err)
		}

		if err := store.Remove(kid); err != nil {
			if errors.Is(err, keystore.ErrKeyNotFound) {
				return fmt.Errorf("key not found: %s", kid)
			}
			return fmt.Errorf("failed to remove key: %w", err)
		}

		fmt.Printf("✅ Removed key: %s\n", kid)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(keystoreCmd)
	keystoreCmd.AddCommand(keystoreAddCmd)
	keystoreCmd.AddCommand(keystoreListCmd)
	keystoreCmd.AddCommand(keystoreRemoveCmd)

	keystoreAddCmd.Flags().StringVar(&keystoreFromJWKS, "from-jwks", "", "Add all keys from a JWKS file (\"-\" for stdin)")
}

// describeKeyUse summarises a JWK "use" member for listings.
func describeKeyUse(use string) string {
	switch strings.ToLower(use) {
	case "sig":
		return "signature"
	case "enc":
		return "encryption"
	case "":
		return "unspecified"
	default:
		return use
	}
}
