package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newServersCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "servers",
		Short: "Manage the list of known servers",
	}
	cmd.AddCommand(
		newServersListCmd(opts),
		newServersAddCmd(opts),
		newServersRemoveCmd(opts),
		newServersUseCmd(opts),
	)
	return cmd
}

func newServersListCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List known servers; * marks the current one",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				list, err := a.servers.List(ctx)
				if err != nil {
					return err
				}
				if len(list) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No servers.")
					return nil
				}
				cur, _, err := a.servers.Current(ctx)
				if err != nil {
					return err
				}
				for _, srv := range list {
					mark := " "
					if srv.ID == cur.ID {
						mark = "*"
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s %s  %-20s %s\n", mark, srv.ID, srv.Name, srv.URL)
				}
				return nil
			})
		},
	}
}

func newServersAddCmd(opts *rootOptions) *cobra.Command {
	var token string
	cmd := &cobra.Command{
		Use:   "add <name> <url>",
		Short: "Add a server without pairing",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				srv, err := a.servers.Add(ctx, args[0], args[1], token)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added %s (%s)\n", srv.Name, srv.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&token, "token", "", "bearer token, if already known")
	return cmd
}

func newServersRemoveCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "remove <id>",
		Aliases: []string{"rm"},
		Short:   "Remove a server",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				if err := a.servers.Remove(ctx, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", args[0])
				return nil
			})
		},
	}
}

func newServersUseCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "use <id>",
		Short: "Make a known server the active one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				srv, err := a.servers.Switch(ctx, args[0])
				if err != nil {
					return err
				}
				if err := a.session.Use(ctx, srv); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Using %s (%s)\n", srv.Name, srv.URL)
				return nil
			})
		},
	}
}
