package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"e2ecore/config"
	"e2ecore/internal/fingerprint"
	"e2ecore/keymanager"
	"e2ecore/keyvault"
)

// initCmd creates a fresh identity, signing key, and signed prekey, then seals
// them to the vault file under the configured passphrase.
func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create a new sealed identity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if passphrase == "" {
				return fmt.Errorf("a passphrase is required: pass --passphrase/-p")
			}

			cfg := config.Default()
			km, err := keymanager.New(appCtx.Suite, cfg.MaxPrekeyAge)
			if err != nil {
				return fmt.Errorf("generating identity: %w", err)
			}

			v, err := keyvault.Seal(appCtx.Suite, km, passphrase, cfg.PBKDF2Iterations)
			if err != nil {
				return fmt.Errorf("sealing vault: %w", err)
			}

			blob, err := v.Marshal()
			if err != nil {
				return fmt.Errorf("encoding vault: %w", err)
			}
			if err := os.WriteFile(appCtx.VaultPath, blob, 0o600); err != nil {
				return fmt.Errorf("writing vault: %w", err)
			}

			appCtx.Logger.Info("identity created", "vault_path", appCtx.VaultPath)
			fmt.Println("Identity created.")
			fmt.Printf("Fingerprint: %s\n", fingerprint.Of(km.IdentityPublic()))
			return nil
		},
	}
}
