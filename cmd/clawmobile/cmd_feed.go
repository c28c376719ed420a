package main

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"clawmobile/internal/adapter/realtime"
	"clawmobile/internal/adapter/render"
	"clawmobile/internal/domain"
	"clawmobile/internal/usecase/activity"
)

func newFeedCmd(opts *rootOptions) *cobra.Command {
	var (
		count   int
		summary bool
	)
	cmd := &cobra.Command{
		Use:   "feed",
		Short: "Tail the agent's live event feed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				client := realtime.NewFeedClient(realtime.SSEDialer{MaxEventSize: a.cfg.Feed.MaxEventSize}, realtime.WithPolicy(a.policy()), realtime.WithLogger(a.logger))
				log := activity.NewLog(a.cfg.Feed.History)
				out := cmd.OutOrStdout()

				enough := make(chan struct{})
				fatal := make(chan error, 1)
				seen := 0

				defer log.Attach(client)()
				defer client.OnEvent(func(ev domain.FeedEvent) {
					fmt.Fprintln(out, render.Event(ev, time.Local))
					seen++
					if count > 0 && seen == count {
						close(enough)
					}
				})()
				defer client.OnStateChange(func(sc domain.StateChange) {
					fmt.Fprintln(cmd.ErrOrStderr(), render.StateLine(sc.To, client.Attempts(), 0))
				})()
				defer client.OnError(func(err error) {
					if domain.IsFatal(err) {
						select {
						case fatal <- err:
						default:
						}
					}
				})()

				if err := client.ConnectWith(ctx, a.session); err != nil {
					return err
				}
				defer client.Disconnect()

				var err error
				select {
				case <-enough:
				case err = <-fatal:
				case <-ctx.Done():
				}
				if summary {
					printCounts(cmd, log.Counts())
				}
				return err
			})
		},
	}
	cmd.Flags().IntVarP(&count, "count", "n", 0, "exit after this many events (0 = run until interrupted)")
	cmd.Flags().BoolVar(&summary, "summary", false, "print per-type event counts on exit")
	return cmd
}

func printCounts(cmd *cobra.Command, counts map[domain.FeedEventType]int) {
	types := make([]string, 0, len(counts))
	for t := range counts {
		types = append(types, string(t))
	}
	sort.Strings(types)
	for _, t := range types {
		fmt.Fprintf(cmd.OutOrStdout(), "%-12s %d\n", t, counts[domain.FeedEventType(t)])
	}
}
