package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"clawmobile/internal/adapter/render"
	"clawmobile/internal/domain"
)

func newAskCmd(opts *rootOptions) *cobra.Command {
	var (
		model string
		plain bool
	)
	cmd := &cobra.Command{
		Use:   "ask <prompt...>",
		Short: "One-shot completion over the REST API, without the chat socket",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				res, err := a.api.ChatCompletion(ctx, domain.ChatCompletionRequest{
					Model:    model,
					Messages: []domain.CompletionMessage{{Role: "user", Content: strings.Join(args, " ")}},
				})
				if err != nil {
					return err
				}
				if len(res.Choices) == 0 {
					return fmt.Errorf("%w: empty completion", domain.ErrRequestFailed)
				}
				answer := res.Choices[0].Message.Content
				if plain {
					fmt.Fprintln(cmd.OutOrStdout(), answer)
				} else {
					fmt.Fprint(cmd.OutOrStdout(), render.NewMarkdown().Render(answer, render.DefaultWidth))
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&model, "model", "default", "model name sent with the request")
	cmd.Flags().BoolVar(&plain, "plain", false, "print the answer without markdown rendering")
	return cmd
}
