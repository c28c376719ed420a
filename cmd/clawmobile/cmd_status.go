package main

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"clawmobile/internal/adapter/render"
	"clawmobile/internal/domain"
	"clawmobile/internal/usecase/outbox"
)

// offline is a sender that never connects; it lets status count the outbox
// without draining it.
type offline struct{}

func (offline) Send(string)       {}
func (offline) IsConnected() bool { return false }

func newStatusCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show server status, health, spend and queued messages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				out := cmd.OutOrStdout()

				queue := outbox.New(a.store, offline{}, outbox.WithKey(a.cfg.Queue.Key), outbox.WithLogger(a.logger))
				if err := queue.Load(ctx); err != nil {
					return err
				}

				serverURL, err := a.session.ServerURL(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Server:   %s\n", serverURL)

				status, err := a.api.Status(ctx)
				if err != nil {
					fmt.Fprintln(out, render.StatusLine(false, queue.Len()))
					return err
				}
				fmt.Fprintln(out, render.StatusLine(true, queue.Len()))
				fmt.Fprintf(out, "Provider: %s (%s)\n", status.Provider, status.Model)
				fmt.Fprintf(out, "Uptime:   %s\n", (time.Duration(status.Uptime) * time.Second).String())
				if len(status.Channels) > 0 {
					fmt.Fprintf(out, "Channels: %s\n", strings.Join(status.Channels, ", "))
				}
				fmt.Fprintf(out, "Health:   %s\n", status.Health)

				health, err := a.api.Health(ctx)
				if err != nil {
					return err
				}
				printHealth(cmd, health)

				cost, err := a.api.Cost(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Spend:    session $%.2f (%d tok), today $%.2f, month $%.2f\n",
					cost.Session.USD, cost.Session.Tokens, cost.Daily.USD, cost.Monthly.USD)
				fmt.Fprintf(out, "Breaker:  %s\n", a.api.BreakerState())
				policy := a.policy()
				fmt.Fprintf(out, "Retry:    %d attempts, gives up after %s\n", policy.MaxAttempts, policy.Budget())
				return nil
			})
		},
	}
}

func printHealth(cmd *cobra.Command, health domain.HealthCheck) {
	names := make([]string, 0, len(health))
	for name := range health {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(cmd.OutOrStdout(), "  %-10s %s\n", name, health[name])
	}
}
