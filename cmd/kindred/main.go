package main

import (
	"os"

	"kindred/cmd/kindred/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
