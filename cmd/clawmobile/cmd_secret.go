package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"clawmobile/internal/domain"
	"clawmobile/internal/security"
)

// configKeyEnv holds the passphrase used for "enc:" values in the config file.
const configKeyEnv = "CLAWMOBILE_CONFIG_KEY"

func newEncryptCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "encrypt <value>",
		Short: "Encrypt a value for the config file with " + configKeyEnv,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			passphrase := os.Getenv(configKeyEnv)
			if passphrase == "" {
				return fmt.Errorf("%w: %s is not set", domain.ErrInvalidInput, configKeyEnv)
			}
			enc, err := security.EncryptValue(args[0], passphrase)
			if err != nil {
				return fmt.Errorf("%w: %w", domain.ErrEncryption, err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), security.SecretPrefix+enc)
			return nil
		},
	}
}
