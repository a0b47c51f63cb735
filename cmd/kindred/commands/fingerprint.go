package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"kindred/internal/crypto"
	"kindred/internal/domain"
)

func fingerprintCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fingerprint",
		Short: "Print the local public-key fingerprint",
		RunE: func(cmd *cobra.Command, args []string) error {
			if userID == "" {
				return fmt.Errorf("--user required")
			}
			priv, ok, err := wire.Keys.PrivateKey(domain.UserID(userID))
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("no keys on this device; run init first")
			}
			pub, err := crypto.PublicFor(priv)
			if err != nil {
				return err
			}
			fmt.Println(crypto.Fingerprint(pub.Slice()))
			return nil
		},
	}
}
