package commands

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"e2ecore/config"
	"e2ecore/keymanager"
	"e2ecore/keyvault"
)

// bundleCmd unseals the local vault and prints the registration bundle a peer
// would fetch from a directory service to start a session with us.
func bundleCmd() *cobra.Command {
	var otk int

	cmd := &cobra.Command{
		Use:   "bundle",
		Short: "Print this identity's registration bundle as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			km, err := unsealLocalVault()
			if err != nil {
				return err
			}

			if otk > 0 {
				if _, err := km.GenerateOneTimePrekeys(rand.Reader, otk); err != nil {
					return fmt.Errorf("generating one-time prekeys: %w", err)
				}
			}

			b, err := km.ExportRegistrationBundle()
			if err != nil {
				return fmt.Errorf("exporting bundle: %w", err)
			}

			out, err := json.MarshalIndent(b, "", "  ")
			if err != nil {
				return fmt.Errorf("encoding bundle: %w", err)
			}
			fmt.Println(string(out))
			return nil
		},
	}

	cmd.Flags().IntVar(&otk, "generate-one-time-keys", 0, "mint N fresh one-time prekeys before printing the bundle")
	return cmd
}

// unsealLocalVault reads the on-disk vault and opens it under the configured
// passphrase, reconstructing the key manager it was sealed from.
func unsealLocalVault() (*keymanager.Manager, error) {
	if passphrase == "" {
		return nil, fmt.Errorf("a passphrase is required: pass --passphrase/-p")
	}

	blob, err := os.ReadFile(appCtx.VaultPath)
	if err != nil {
		return nil, fmt.Errorf("reading vault at %s: %w (run `e2ecli init` first)", appCtx.VaultPath, err)
	}

	v, err := keyvault.UnmarshalVault(blob)
	if err != nil {
		return nil, fmt.Errorf("decoding vault: %w", err)
	}

	cfg := config.Default()
	km, err := keyvault.Unseal(appCtx.Suite, v, passphrase, cfg.MaxPrekeyAge)
	if err != nil {
		return nil, fmt.Errorf("unsealing vault: %w", err)
	}
	return km, nil
}
