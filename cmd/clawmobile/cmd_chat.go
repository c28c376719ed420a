package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"clawmobile/internal/adapter/realtime"
	"clawmobile/internal/adapter/render"
	"clawmobile/internal/domain"
	"clawmobile/internal/usecase/chat"
	"clawmobile/internal/usecase/outbox"
)

type chatOptions struct {
	wait  time.Duration
	plain bool
	width int
}

func newChatCmd(opts *rootOptions) *cobra.Command {
	co := &chatOptions{}
	cmd := &cobra.Command{
		Use:   "chat [message...]",
		Short: "Chat with the agent over the realtime socket",
		Long: "Sends the message given as arguments, or every line read from stdin,\n" +
			"and prints the agent's replies. Messages typed while the socket is down\n" +
			"are queued on disk and sent once it reconnects.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				return runChat(ctx, cmd, a, co, args)
			})
		},
	}
	cmd.Flags().DurationVar(&co.wait, "wait", 30*time.Second, "how long to wait for outstanding replies after input ends")
	cmd.Flags().BoolVar(&co.plain, "plain", false, "print replies without markdown rendering")
	cmd.Flags().IntVar(&co.width, "width", render.DefaultWidth, "word-wrap width for rendered replies")
	return cmd
}

// chatSession prints replies as they complete and counts outstanding ones.
type chatSession struct {
	out      io.Writer
	errOut   io.Writer
	markdown *render.Markdown
	opts     *chatOptions

	mu       sync.Mutex
	awaiting int
	settled  chan struct{}
	fatal    chan error
}

func runChat(ctx context.Context, cmd *cobra.Command, a *app, co *chatOptions, args []string) error {
	serverURL, token, err := a.credentials(ctx)
	if err != nil {
		return err
	}

	client := realtime.NewChatClient(realtime.WebSocketDialer{ReadLimit: a.cfg.Chat.ReadLimit}, realtime.WithPolicy(a.policy()), realtime.WithLogger(a.logger))
	transcript := chat.NewTranscript(nil)
	queue := outbox.New(a.store, client, outbox.WithKey(a.cfg.Queue.Key), outbox.WithLogger(a.logger))

	s := &chatSession{
		out:     cmd.OutOrStdout(),
		errOut:  cmd.ErrOrStderr(),
		opts:    co,
		settled: make(chan struct{}, 1),
		fatal:   make(chan error, 1),
	}
	if !co.plain {
		s.markdown = render.NewMarkdown()
	}

	defer client.OnMessage(func(msg domain.ChatWireMessage) {
		entry, ok := transcript.Apply(msg)
		if ok {
			s.show(msg.Type, entry)
		}
	})()
	defer client.OnStateChange(func(sc domain.StateChange) {
		fmt.Fprintln(s.errOut, render.StateLine(sc.To, client.Attempts(), queue.Len()))
	})()
	defer client.OnError(func(err error) {
		if domain.IsFatal(err) {
			select {
			case s.fatal <- err:
			default:
			}
			return
		}
		a.logger.Debug("chat error", "error", err)
	})()
	defer queue.OnError(func(err error) {
		fmt.Fprintln(s.errOut, render.Error(err))
	})()
	defer queue.Bind(ctx, client)()

	if err := queue.Load(ctx); err != nil {
		return err
	}
	// Messages restored from a previous run are answered like fresh input.
	s.awaiting = queue.Len()
	if err := client.Connect(serverURL, token); err != nil {
		return err
	}
	defer client.Disconnect()

	input := make(chan string)
	go readInput(ctx, cmd.InOrStdin(), args, input)

	for {
		select {
		case line, ok := <-input:
			if !ok {
				return s.drain(ctx)
			}
			transcript.AddUser(line)
			s.expect()
			if queue.QueueMessage(ctx, line) {
				fmt.Fprintln(s.errOut, render.StatusLine(false, queue.Len()))
			}
		case err := <-s.fatal:
			return err
		case <-ctx.Done():
			return nil
		}
	}
}

// readInput feeds args, or else stdin lines, into lines and closes it.
func readInput(ctx context.Context, r io.Reader, args []string, lines chan<- string) {
	defer close(lines)
	send := func(s string) bool {
		s = strings.TrimSpace(s)
		if s == "" {
			return true
		}
		select {
		case lines <- s:
			return true
		case <-ctx.Done():
			return false
		}
	}
	if len(args) > 0 {
		send(strings.Join(args, " "))
		return
	}
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if !send(scanner.Text()) {
			return
		}
	}
}

// show prints entries that are final: completed replies, tool activity and
// errors. Streaming chunks are not echoed.
func (s *chatSession) show(kind domain.ChatMessageType, e chat.Entry) {
	switch kind {
	case domain.ChatChunk:
		return
	case domain.ChatToolCall, domain.ChatToolResult:
		fmt.Fprintln(s.out, render.Entry(e))
		return
	}
	if s.markdown != nil {
		fmt.Fprint(s.out, s.markdown.Render(e.Content, s.opts.width))
	} else {
		fmt.Fprintln(s.out, render.Entry(e))
	}
	s.reply()
}

func (s *chatSession) expect() {
	s.mu.Lock()
	s.awaiting++
	s.mu.Unlock()
}

func (s *chatSession) reply() {
	s.mu.Lock()
	if s.awaiting > 0 {
		s.awaiting--
	}
	done := s.awaiting == 0
	s.mu.Unlock()
	if done {
		select {
		case s.settled <- struct{}{}:
		default:
		}
	}
}

func (s *chatSession) pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.awaiting
}

// drain waits for outstanding replies once input has ended.
func (s *chatSession) drain(ctx context.Context) error {
	timer := time.NewTimer(s.opts.wait)
	defer timer.Stop()
	for s.pending() > 0 {
		select {
		case <-s.settled:
		case err := <-s.fatal:
			return err
		case <-timer.C:
			return fmt.Errorf("%w: %d replies outstanding after %s", domain.ErrTimeout, s.pending(), s.opts.wait)
		case <-ctx.Done():
			return nil
		}
	}
	return nil
}
