package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"kindred/internal/domain"
)

// send <match-id> <receiver-id> <message>: send a text message on a match.
func sendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "send <match-id> <receiver-id> <message>",
		Short: "Send a message on a match",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			if userID == "" {
				return fmt.Errorf("--user required")
			}
			msg, err := wire.Pipeline.Send(cmd.Context(),
				domain.MatchID(args[0]), domain.UserID(userID), domain.UserID(args[1]), args[2])
			if err != nil {
				return err
			}
			fmt.Printf("sent %s\n", msg.ID)
			return nil
		},
	}
}
