package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/spf13/cobra"

	"e2ecore/internal/app"
)

var (
	homeDir    string
	suiteName  string
	passphrase string

	appCtx *app.Wire
)

// Execute initialises the application context and runs the root cobra command.
func Execute() error {
	root := &cobra.Command{
		Use:   "e2ecli",
		Short: "Local demonstration CLI for the e2ecore handshake and ratchet library",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if homeDir == "" {
				if h, err := os.UserHomeDir(); err == nil {
					homeDir = filepath.Join(h, ".e2ecli")
				}
			}
			if err := os.MkdirAll(homeDir, 0o700); err != nil {
				return fmt.Errorf("creating config dir: %w", err)
			}

			var err error
			appCtx, err = app.NewWire(app.Config{
				HomeDir:   homeDir,
				SuiteName: suiteName,
			})
			if err != nil {
				return fmt.Errorf("initialising application: %w", err)
			}
			return nil
		},
	}

	root.PersistentFlags().StringVar(&homeDir, "home", "", "config directory (default: $HOME/.e2ecli)")
	root.PersistentFlags().StringVar(&suiteName, "suite", "classic", "crypto suite: classic or nistp256")
	root.PersistentFlags().StringVarP(&passphrase, "passphrase", "p", "", "passphrase to unlock/seal your keys")

	root.AddCommand(
		initCmd(),
		bundleCmd(),
		fingerprintCmd(),
		demoCmd(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	root.SetContext(ctx)

	return root.Execute()
}
