package realtime

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var errRefused = errors.New("connection refused")

// fakeConn is a scripted connection. Frames pushed with deliver are returned
// by Read in order; fail makes the next Read return err.
type fakeConn struct {
	incoming chan []byte
	failures chan error
	closed   chan struct{}

	mu        sync.Mutex
	written   [][]byte
	writeErr  error
	closeOnce sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		incoming: make(chan []byte, 16),
		failures: make(chan error, 1),
		closed:   make(chan struct{}),
	}
}

func (c *fakeConn) Read(ctx context.Context) ([]byte, error) {
	select {
	case data := <-c.incoming:
		return data, nil
	case err := <-c.failures:
		return nil, err
	case <-c.closed:
		return nil, errors.New("use of closed connection")
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *fakeConn) Write(_ context.Context, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writeErr != nil {
		return c.writeErr
	}
	c.written = append(c.written, append([]byte(nil), data...))
	return nil
}

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) deliver(data string) { c.incoming <- []byte(data) }

func (c *fakeConn) fail(err error) { c.failures <- err }

func (c *fakeConn) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

func (c *fakeConn) writes() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.written))
	for i, w := range c.written {
		out[i] = string(w)
	}
	return out
}

// fakeDialer records every dial. When refuse is set dials fail; otherwise
// each dial returns a fresh fakeConn.
type fakeDialer struct {
	mu     sync.Mutex
	urls   []string
	conns  []*fakeConn
	refuse bool
	block  bool
}

func (d *fakeDialer) Dial(ctx context.Context, url string) (Conn, error) {
	d.mu.Lock()
	d.urls = append(d.urls, url)
	refuse, block := d.refuse, d.block
	d.mu.Unlock()

	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if refuse {
		return nil, errRefused
	}
	conn := newFakeConn()
	d.mu.Lock()
	d.conns = append(d.conns, conn)
	d.mu.Unlock()
	return conn, nil
}

func (d *fakeDialer) setRefuse(v bool) {
	d.mu.Lock()
	d.refuse = v
	d.mu.Unlock()
}

func (d *fakeDialer) dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.urls)
}

func (d *fakeDialer) lastURL() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.urls) == 0 {
		return ""
	}
	return d.urls[len(d.urls)-1]
}

func (d *fakeDialer) conn(i int) *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.conns[i]
}

// errorLog collects errors emitted through a registry.
type errorLog struct {
	mu   sync.Mutex
	errs []error
}

func (l *errorLog) add(err error) {
	l.mu.Lock()
	l.errs = append(l.errs, err)
	l.mu.Unlock()
}

func (l *errorLog) matching(target error) []error {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []error
	for _, err := range l.errs {
		if errors.Is(err, target) {
			out = append(out, err)
		}
	}
	return out
}

const waitFor = 2 * time.Second
const tick = 5 * time.Millisecond

func waitDials(t *testing.T, d *fakeDialer, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return d.dials() == n }, waitFor, tick, "expected %d dials", n)
}

// waitTimer blocks until a reconnect timer is armed on clock.
func waitTimer(t *testing.T, clock *clockwork.FakeClock) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()
	require.NoError(t, clock.BlockUntilContext(ctx, 1))
}
