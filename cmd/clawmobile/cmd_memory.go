package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"clawmobile/internal/domain"
)

func newMemoryCmd(opts *rootOptions) *cobra.Command {
	var category string
	cmd := &cobra.Command{
		Use:   "memory [query...]",
		Short: "Search the agent's memory",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				entries, err := a.api.Memory(ctx, strings.Join(args, " "), domain.MemoryCategory(category))
				if err != nil {
					return err
				}
				for _, e := range entries {
					fmt.Fprintf(cmd.OutOrStdout(), "%s [%s] %s\n",
						time.UnixMilli(e.Timestamp).Format(time.DateTime), e.Category, e.Content)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "core, daily or conversation")

	add := &cobra.Command{
		Use:   "add <content...>",
		Short: "Store a new memory",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				cat := domain.MemoryCategory(category)
				if cat == "" {
					cat = domain.MemoryCore
				}
				e, err := a.api.AddMemory(ctx, strings.Join(args, " "), cat)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Stored %s\n", e.ID)
				return nil
			})
		},
	}
	add.Flags().StringVar(&category, "category", "", "core, daily or conversation")
	cmd.AddCommand(add)
	return cmd
}
