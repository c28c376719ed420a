package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"clawmobile/internal/adapter/discovery"
)

func newDiscoverCmd(opts *rootOptions) *cobra.Command {
	var add bool
	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Find agent servers advertised on the local network",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				if !a.cfg.Discovery.Enabled {
					fmt.Fprintln(cmd.OutOrStdout(), "Discovery is disabled.")
					return nil
				}
				found, err := discovery.New(a.cfg.Discovery.Timeout, a.logger).Scan(ctx)
				if err != nil {
					return err
				}
				if len(found) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No servers found.")
					return nil
				}
				for _, srv := range found {
					fmt.Fprintf(cmd.OutOrStdout(), "%-20s %s\n", srv.Name, srv.URL)
					if !add {
						continue
					}
					if _, err := a.servers.Add(ctx, srv.Name, srv.URL, ""); err != nil {
						a.logger.Debug("skip discovered server", "url", srv.URL, "error", err)
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&add, "add", false, "add discovered servers to the server list")
	return cmd
}
