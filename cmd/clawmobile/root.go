package main

import (
	"github.com/spf13/cobra"

	"clawmobile/internal/infra/config"
)

// rootOptions are the flags shared by every subcommand.
type rootOptions struct {
	configPath string
}

// newRootCmd creates the root clawmobile command with all subcommands attached.
func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "clawmobile",
		Short:         "Terminal client for an AllMightyClaw agent server",
		Long:          "clawmobile pairs with an agent server, chats over a reconnecting\nsocket with an offline queue, and tails the agent's event feed.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", config.DefaultPath, "path to the YAML config file")

	cmd.AddCommand(
		newPairCmd(opts),
		newChatCmd(opts),
		newFeedCmd(opts),
		newStatusCmd(opts),
		newServersCmd(opts),
		newDiscoverCmd(opts),
		newCronCmd(opts),
		newAskCmd(opts),
		newMemoryCmd(opts),
		newLogoutCmd(opts),
		newEncryptCmd(),
	)
	return cmd
}
