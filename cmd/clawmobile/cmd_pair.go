package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"clawmobile/internal/domain"
)

func newPairCmd(opts *rootOptions) *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "pair <server-url> <code>",
		Short: "Pair with an agent server using its one-time code",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				srv, err := a.session.Pair(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				if err := remember(ctx, a, name, srv); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Paired with %s\n", srv.URL)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name for the server list")
	return cmd
}

// remember records srv in the server book, refreshing the token when the
// URL is already known, and makes it current.
func remember(ctx context.Context, a *app, name string, srv domain.Server) error {
	added, err := a.servers.Add(ctx, name, srv.URL, srv.Token)
	if err == nil {
		_, err = a.servers.Switch(ctx, added.ID)
		return err
	}
	if !errors.Is(err, domain.ErrDuplicate) {
		return err
	}
	list, err := a.servers.List(ctx)
	if err != nil {
		return err
	}
	for _, known := range list {
		if known.URL != srv.URL {
			continue
		}
		known.Token = srv.Token
		if name != "" {
			known.Name = name
		}
		if err := a.servers.Update(ctx, known); err != nil {
			return err
		}
		_, err = a.servers.Switch(ctx, known.ID)
		return err
	}
	return nil
}

func newLogoutCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the active server and its token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				if err := a.session.Logout(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
				return nil
			})
		},
	}
}
