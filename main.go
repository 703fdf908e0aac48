package main

import (
	"os"

	"discord-pk-bot/command"
)

func main() {
	if err := command.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
