package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/alanyoungcy/poolkeeper/internal/crypto"
)

func newEncryptKeyCmd() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "encrypt-key",
		Short: "Encrypt a hex private key into a key file",
		Long: "Reads the hex private key and the password from POOLKEEPER_WALLET_PRIVATE_KEY and\n" +
			"POOLKEEPER_WALLET_KEY_PASSWORD, or from the first two lines of stdin when unset.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			key := os.Getenv("POOLKEEPER_WALLET_PRIVATE_KEY")
			password := os.Getenv("POOLKEEPER_WALLET_KEY_PASSWORD")
			if key == "" || password == "" {
				scanner := bufio.NewScanner(cmd.InOrStdin())
				if key == "" && scanner.Scan() {
					key = strings.TrimSpace(scanner.Text())
				}
				if password == "" && scanner.Scan() {
					password = strings.TrimSpace(scanner.Text())
				}
			}

			data, err := crypto.EncryptKey(key, password)
			if err != nil {
				return err
			}
			if err := os.WriteFile(out, data, 0o600); err != nil {
				return fmt.Errorf("encrypt-key: write %s: %w", out, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "keeper.key.json", "destination key file")
	return cmd
}
