// Package command holds the pkbot command line.
package command

import (
	"github.com/spf13/cobra"
)

func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pkbot",
		Short: "Discord bot that tells proxied messages apart from a user's own",
		Example: `  pkbot run
  pkbot guild show 123456789012345678
  pkbot health --addr localhost:50051`,
		SilenceUsage: true,
	}

	cmd.AddCommand(
		NewRunCommand(),
		NewGuildCommand(),
		NewHealthCommand(),
	)

	return cmd
}
