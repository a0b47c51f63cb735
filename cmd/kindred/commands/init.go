package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"kindred/internal/crypto"
	"kindred/internal/domain"
)

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Derive encryption keys and publish the public key",
		RunE: func(cmd *cobra.Command, args []string) error {
			if userID == "" {
				return fmt.Errorf("--user required")
			}
			pub, err := wire.Encryption.EnsureReady(cmd.Context(), domain.UserID(userID))
			if err != nil {
				return err
			}
			fmt.Printf("Encryption ready.\nFingerprint: %s\n", crypto.Fingerprint(pub.Slice()))
			return nil
		},
	}
}
