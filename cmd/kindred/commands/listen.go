package commands

import (
	"fmt"
	"os"
	"os/signal"
	"sync"

	"github.com/spf13/cobra"

	"kindred/internal/domain"
)

// listen <match-id>: print the conversation history, then follow it live
// until interrupted.
func listenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "listen <match-id>",
		Short: "Follow a conversation live",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if userID == "" {
				return fmt.Errorf("--user required")
			}

			var mu sync.Mutex
			printed := make(map[string]struct{})
			show := func(m domain.Message) {
				mu.Lock()
				defer mu.Unlock()
				if _, done := printed[m.ID]; done {
					return
				}
				printed[m.ID] = struct{}{}
				fmt.Printf("[%s] %s: %s\n", m.CreatedAt.Format("15:04:05"), m.SenderID, m.Payload)
			}

			stream, err := wire.Pipeline.SubscribeConversation(cmd.Context(),
				domain.MatchID(args[0]), domain.UserID(userID), show)
			if err != nil {
				return err
			}
			defer stream.Close()

			for _, m := range stream.Conversation().Messages() {
				show(m)
			}

			stop := make(chan os.Signal, 1)
			signal.Notify(stop, os.Interrupt)
			select {
			case <-stop:
			case <-stream.Done():
			}
			return nil
		},
	}
}
