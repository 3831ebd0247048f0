package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"e2ecore/internal/fingerprint"
)

// fingerprintCmd unseals the local vault and prints the identity's
// fingerprint, so it can be read aloud and compared over a second channel.
func fingerprintCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fingerprint",
		Short: "Print this identity's fingerprint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			km, err := unsealLocalVault()
			if err != nil {
				return err
			}
			fmt.Printf("Fingerprint: %s\n", fingerprint.Of(km.IdentityPublic()))
			return nil
		},
	}
}
