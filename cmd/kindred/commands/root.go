package commands

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"kindred/internal/app"
)

var (
	home   string
	userID string

	wire *app.Wire
)

func Execute() error {
	root := &cobra.Command{
		Use:   "kindred",
		Short: "Encrypted messaging core for the kindred matchmaking client",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if home == "" {
				dir, err := os.UserHomeDir()
				if err != nil {
					return err
				}
				home = filepath.Join(dir, ".kindred")
			}
			if err := os.MkdirAll(home, 0o700); err != nil {
				return err
			}

			cfg, err := app.LoadConfig(home)
			if err != nil {
				return err
			}
			wire, err = app.NewWire(cmd.Context(), cfg)
			return err
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if wire != nil {
				return wire.Close()
			}
			return nil
		},
	}

	root.PersistentFlags().StringVar(&home, "home", "", "config dir (default ~/.kindred)")
	root.PersistentFlags().StringVarP(&userID, "user", "u", "", "acting user id")

	root.AddCommand(initCmd(), fingerprintCmd(), sendCmd(), listenCmd())
	return root.Execute()
}
