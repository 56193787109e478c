package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/unfloned/chronik/internal/daemon"
	"github.com/unfloned/chronik/internal/security"
)

func init() {
	rootCmd.AddCommand(pubkeyCmd)
}

var pubkeyCmd = &cobra.Command{
	Use:   "pubkey",
	Short: "Print the public key that verifies signed push deliveries",
	RunE: func(cmd *cobra.Command, args []string) error {
		signer, err := security.LoadOrCreateSigner(daemon.ChronikHome())
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), signer.PublicKeyHex())
		return nil
	},
}
