package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/claim169/claim169-core/pkg/claim169"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect [file]",
	Short: "Show a credential's envelope without verifying it",
	Long: `Show the envelope type, algorithm, key id, certificate headers and
token metadata of a credential without verifying its signature.

Nothing printed by this command is authenticated. Use it to find out which
key a credential needs before decoding it.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		inputs, err := readCredentials(args)
		if err != nil {
			return err
		}
		if len(inputs) != 1 {
			return fmt.Errorf("expected exactly one credential, got %d", len(inputs))
		}

		info, err := claim169.Inspect(inputs[0])
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}
