package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

func newCronCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cron",
		Short: "Manage the agent's scheduled commands",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List scheduled commands with their next run",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withApp(cmd, opts, func(ctx context.Context, a *app) error {
					jobs, err := a.api.CronJobs(ctx)
					if err != nil {
						return err
					}
					for _, j := range jobs {
						next := "-"
						if j.Enabled && j.NextRun > 0 {
							next = time.UnixMilli(j.NextRun).Format(time.RFC3339)
						}
						fmt.Fprintf(cmd.OutOrStdout(), "%s  %-15s %-25s %s\n", j.ID, j.Expression, next, j.Command)
					}
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "add <expression> <command...>",
			Short: "Schedule a command, e.g. cron add \"0 9 * * *\" summarize inbox",
			Args:  cobra.MinimumNArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withApp(cmd, opts, func(ctx context.Context, a *app) error {
					job, err := a.api.AddCronJob(ctx, args[0], strings.Join(args[1:], " "))
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Scheduled %s, next run %s\n", job.ID, time.UnixMilli(job.NextRun).Format(time.RFC3339))
					return nil
				})
			},
		},
		&cobra.Command{
			Use:     "remove <id>",
			Aliases: []string{"rm"},
			Short:   "Delete a scheduled command",
			Args:    cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withApp(cmd, opts, func(ctx context.Context, a *app) error {
					if err := a.api.DeleteCronJob(ctx, args[0]); err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
					return nil
				})
			},
		},
	)
	return cmd
}
