package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"e2ecore/client"
	"e2ecore/config"
)

// demoCmd runs a full local handshake and message exchange between two
// in-process identities. There is no transport in this module (see
// package transport), so this command stands in for a real network hop:
// it hands the message values from one side directly to the other, without
// serialising them.
func demoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "demo",
		Short: "Run a local Alice/Bob handshake and message exchange",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Default()

			alice, err := client.New(appCtx.Suite, cfg.MaxPrekeyAge, cfg.MaxSkippedMessages, cfg.MaxSkippedMessageAge)
			if err != nil {
				return fmt.Errorf("creating alice: %w", err)
			}
			bob, err := client.New(appCtx.Suite, cfg.MaxPrekeyAge, cfg.MaxSkippedMessages, cfg.MaxSkippedMessageAge)
			if err != nil {
				return fmt.Errorf("creating bob: %w", err)
			}

			if _, err := bob.GenerateOneTimePrekeys(1); err != nil {
				return fmt.Errorf("minting bob's one-time prekey: %w", err)
			}
			bobBundle, err := bob.RegistrationBundle()
			if err != nil {
				return fmt.Errorf("fetching bob's bundle: %w", err)
			}
			otk := bobBundle.OneTimeKeys[0]

			first, wireMsg, err := alice.InitSession("bob", bobBundle, &otk, []byte("hey bob, it's alice"))
			if err != nil {
				return fmt.Errorf("alice init: %w", err)
			}
			fmt.Println("alice -> bob: handshake + first message sent")

			pt, err := bob.InitReceivingSession("alice", bobBundle.SignedPrekeyID, first, wireMsg)
			if err != nil {
				return fmt.Errorf("bob init: %w", err)
			}
			fmt.Printf("bob received: %q\n", pt)

			reply, err := bob.EncryptMessage("alice", []byte("hey alice, got it"))
			if err != nil {
				return fmt.Errorf("bob encrypt: %w", err)
			}
			pt2, err := alice.DecryptMessage("bob", reply)
			if err != nil {
				return fmt.Errorf("alice decrypt: %w", err)
			}
			fmt.Printf("alice received: %q\n", pt2)

			appCtx.Logger.Info("demo exchange complete", "suite", suiteName)
			return nil
		},
	}
}
