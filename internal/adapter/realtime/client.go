// Package realtime implements the reconnecting chat socket and event feed
// clients. Both are thin typed shells around Client, which owns the
// connection lifecycle, reconnect scheduling and handler registries.
package realtime

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/jonboulle/clockwork"

	"clawmobile/internal/domain"
	"clawmobile/internal/usecase/handlers"
	"clawmobile/internal/usecase/reconnect"
)

// Conn is one live connection produced by a Dialer.
// Read returns io.EOF when the peer ended the stream cleanly.
type Conn interface {
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, data []byte) error
	Close() error
}

// Dialer opens connections. Dial must honour ctx cancellation.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// DialerFunc adapts a function to Dialer.
type DialerFunc func(ctx context.Context, url string) (Conn, error)

// Dial calls f.
func (f DialerFunc) Dial(ctx context.Context, url string) (Conn, error) { return f(ctx, url) }

// ParseFunc decodes one incoming frame.
type ParseFunc[T any] func(data []byte) (T, error)

// Option configures a Client.
type Option func(*settings)

type settings struct {
	policy reconnect.Policy
	clock  clockwork.Clock
	logger *slog.Logger
}

// WithPolicy overrides the reconnect policy. Zero fields fall back to defaults.
func WithPolicy(p reconnect.Policy) Option {
	return func(s *settings) { s.policy = p.WithDefaults() }
}

// WithClock sets the clock used for reconnect timers.
func WithClock(c clockwork.Clock) Option {
	return func(s *settings) { s.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *settings) { s.logger = l }
}

func newSettings(opts []Option) settings {
	s := settings{
		policy: reconnect.Default(),
		clock:  clockwork.NewRealClock(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// Client is a single-connection reconnecting client. Every Connect and
// Disconnect bumps a generation counter; dial results, read results and
// reconnect timers belonging to an older generation are discarded, so nothing
// scheduled before Disconnect can reconnect after it.
type Client[T any] struct {
	subsystem string
	dialer    Dialer
	parse     ParseFunc[T]
	policy    reconnect.Policy
	clock     clockwork.Clock
	logger    *slog.Logger

	messages *handlers.Registry[T]
	errs     *handlers.Registry[error]
	closes   *handlers.Registry[error]
	states   *handlers.Registry[domain.StateChange]

	mu          sync.Mutex
	state       domain.ConnectionState
	url         string
	gen         uint64
	attempts    int
	intentional bool
	conn        Conn
	ctx         context.Context
	cancel      context.CancelFunc
	timer       clockwork.Timer
}

// NewClient builds a client for the given subsystem ("chat", "feed").
func NewClient[T any](subsystem string, dialer Dialer, parse ParseFunc[T], opts ...Option) *Client[T] {
	s := newSettings(opts)
	logger := s.logger.With("component", "realtime."+subsystem)
	return &Client[T]{
		subsystem: subsystem,
		dialer:    dialer,
		parse:     parse,
		policy:    s.policy,
		clock:     s.clock,
		logger:    logger,
		messages:  handlers.New[T](subsystem+".message", logger),
		errs:      handlers.New[error](subsystem+".error", logger),
		closes:    handlers.New[error](subsystem+".close", logger),
		states:    handlers.New[domain.StateChange](subsystem+".state", logger),
		state:     domain.StateIdle,
	}
}

// OnMessage registers a handler for parsed incoming frames.
func (c *Client[T]) OnMessage(h func(T)) func() { return c.messages.Register(h) }

// OnError registers a handler for connection, parse and max-retries errors.
func (c *Client[T]) OnError(h func(error)) func() { return c.errs.Register(h) }

// OnClose registers a handler invoked whenever a live connection ends. The
// argument is nil for a clean or intentional close.
func (c *Client[T]) OnClose(h func(error)) func() { return c.closes.Register(h) }

// OnStateChange registers a handler for state transitions.
func (c *Client[T]) OnStateChange(h func(domain.StateChange)) func() { return c.states.Register(h) }

// State returns the current connection state.
func (c *Client[T]) State() domain.ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// IsConnected reports whether the state is Open.
func (c *Client[T]) IsConnected() bool {
	return c.State() == domain.StateOpen
}

// Attempts returns the reconnects scheduled in the current failure run.
func (c *Client[T]) Attempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempts
}

// Connect supersedes any prior connection and starts dialing url in the
// background. Attempts and the intentional-close flag are reset.
func (c *Client[T]) Connect(url string) {
	ctx, cancel := context.WithCancel(context.Background())

	c.mu.Lock()
	c.gen++
	gen := c.gen
	prev := c.releaseLocked()
	c.url = url
	c.attempts = 0
	c.intentional = false
	c.ctx, c.cancel = ctx, cancel
	change := c.setStateLocked(domain.StateConnecting)
	c.mu.Unlock()

	closeQuietly(prev)
	c.logger.Info("connecting", "url", redactToken(url))
	c.emitState(change)

	go c.run(ctx, gen, url)
}

// Disconnect closes the connection on purpose. It is safe from any state and
// guarantees no automatic reconnect afterwards.
func (c *Client[T]) Disconnect() {
	c.mu.Lock()
	c.gen++
	c.intentional = true
	prev := c.releaseLocked()
	change := c.setStateLocked(domain.StateClosed)
	c.mu.Unlock()

	if prev != nil {
		closeQuietly(prev)
		c.closes.Emit(nil)
	}
	c.emitState(change)
}

// send writes one frame if the connection is Open. It reports whether the
// frame was handed to the connection.
func (c *Client[T]) send(op string, data []byte) bool {
	c.mu.Lock()
	if c.state != domain.StateOpen || c.conn == nil {
		c.mu.Unlock()
		return false
	}
	conn, ctx, gen := c.conn, c.ctx, c.gen
	c.mu.Unlock()

	if err := conn.Write(ctx, data); err != nil {
		if c.current(gen) {
			c.emitError(op, domain.ErrConnection, err)
		}
		return false
	}
	return true
}

// releaseLocked stops the pending timer, cancels the connection context and
// detaches the live connection, which the caller closes outside the lock.
func (c *Client[T]) releaseLocked() Conn {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	conn := c.conn
	c.conn = nil
	return conn
}

func (c *Client[T]) current(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return gen == c.gen
}

// run performs one dial and, on success, reads until the connection ends.
func (c *Client[T]) run(ctx context.Context, gen uint64, url string) {
	conn, err := c.dialer.Dial(ctx, url)

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		closeQuietly(conn)
		return
	}
	if err != nil {
		c.mu.Unlock()
		c.logger.Warn("dial failed", "error", err)
		c.emitError("dial", domain.ErrConnection, err)
		c.closes.Emit(err)
		c.scheduleReconnect(gen)
		return
	}
	c.conn = conn
	c.attempts = 0
	change := c.setStateLocked(domain.StateOpen)
	c.mu.Unlock()

	c.logger.Info("connected")
	c.emitState(change)
	c.readLoop(ctx, gen, conn)
}

func (c *Client[T]) readLoop(ctx context.Context, gen uint64, conn Conn) {
	for {
		data, err := conn.Read(ctx)
		if err != nil {
			c.connectionLost(gen, conn, err)
			return
		}
		if !c.current(gen) {
			return
		}
		msg, err := c.parse(data)
		if err != nil {
			c.logger.Debug("dropping malformed frame", "error", err)
			c.emitError("read", domain.ErrParse, err)
			continue
		}
		c.messages.Emit(msg)
	}
}

func (c *Client[T]) connectionLost(gen uint64, conn Conn, err error) {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		closeQuietly(conn)
		return
	}
	c.conn = nil
	c.mu.Unlock()
	closeQuietly(conn)

	if errors.Is(err, io.EOF) {
		c.logger.Info("connection closed by peer")
		err = nil
	} else {
		c.logger.Warn("connection lost", "error", err)
		c.emitError("read", domain.ErrConnection, err)
	}
	c.closes.Emit(err)
	c.scheduleReconnect(gen)
}

// scheduleReconnect arms the backoff timer, or fail-stops once the policy is
// exhausted. The bare ErrMaxRetries sentinel is emitted so its message reaches
// handlers verbatim; Failed arms no timer, so it is emitted once per run.
func (c *Client[T]) scheduleReconnect(gen uint64) {
	c.mu.Lock()
	if gen != c.gen || c.intentional {
		c.mu.Unlock()
		return
	}
	delay, ok := c.policy.Next(c.attempts)
	if !ok {
		if c.cancel != nil {
			c.cancel()
			c.cancel = nil
		}
		change := c.setStateLocked(domain.StateFailed)
		attempts := c.attempts
		c.mu.Unlock()

		c.logger.Error("giving up on reconnect", "attempts", attempts)
		c.emitState(change)
		c.errs.Emit(domain.ErrMaxRetries)
		return
	}
	c.attempts++
	attempt := c.attempts
	c.timer = c.clock.AfterFunc(delay, func() { c.redial(gen) })
	change := c.setStateLocked(domain.StateReconnecting)
	c.mu.Unlock()

	c.logger.Info("reconnect scheduled", "attempt", attempt, "delay", delay)
	c.emitState(change)
}

func (c *Client[T]) redial(gen uint64) {
	c.mu.Lock()
	if gen != c.gen || c.intentional {
		c.mu.Unlock()
		return
	}
	c.timer = nil
	ctx, url := c.ctx, c.url
	change := c.setStateLocked(domain.StateConnecting)
	c.mu.Unlock()

	c.emitState(change)
	c.run(ctx, gen, url)
}

// setStateLocked records a transition. The returned change has From == To
// when nothing changed.
func (c *Client[T]) setStateLocked(to domain.ConnectionState) domain.StateChange {
	change := domain.StateChange{From: c.state, To: to}
	c.state = to
	return change
}

func (c *Client[T]) emitState(change domain.StateChange) {
	if change.From == change.To {
		return
	}
	c.states.Emit(change)
}

func (c *Client[T]) emitError(op string, sentinel, cause error) {
	detail := ""
	if cause != nil {
		detail = cause.Error()
	}
	c.errs.Emit(domain.NewSubSystemError(c.subsystem, c.op(op), sentinel, detail))
}

func (c *Client[T]) op(name string) string {
	return "realtime." + c.subsystem + "." + name
}

func closeQuietly(conn Conn) {
	if conn != nil {
		_ = conn.Close()
	}
}
