package realtime

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"clawmobile/internal/domain"
)

// FeedClient is the receive-only agent event feed.
type FeedClient struct {
	*Client[domain.FeedEvent]
}

// NewFeedClient creates a feed client. A nil dialer uses SSEDialer.
func NewFeedClient(dialer Dialer, opts ...Option) *FeedClient {
	if dialer == nil {
		dialer = SSEDialer{}
	}
	return &FeedClient{Client: NewClient("feed", dialer, ParseFeedEvent, opts...)}
}

// Connect starts streaming from {serverURL}/api/events.
func (c *FeedClient) Connect(serverURL, token string) {
	c.Client.Connect(FeedURL(serverURL, token))
}

// ConnectWith resolves the server URL and token from creds, then connects.
func (c *FeedClient) ConnectWith(ctx context.Context, creds domain.CredentialSource) error {
	serverURL, err := creds.ServerURL(ctx)
	if err != nil {
		return fmt.Errorf("feed connect: %w", err)
	}
	token, err := creds.Token(ctx)
	if err != nil {
		return fmt.Errorf("feed connect: %w", err)
	}
	c.Connect(serverURL, token)
	return nil
}

// OnEvent registers a handler for feed events.
func (c *FeedClient) OnEvent(h func(domain.FeedEvent)) func() { return c.OnMessage(h) }

// ParseFeedEvent decodes one event payload.
func ParseFeedEvent(data []byte) (domain.FeedEvent, error) {
	var ev domain.FeedEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return domain.FeedEvent{}, err
	}
	if !ev.Type.Valid() {
		return domain.FeedEvent{}, fmt.Errorf("unknown event type %q", ev.Type)
	}
	return ev, nil
}

// DefaultMaxEventSize caps one SSE line when the dialer sets no limit.
const DefaultMaxEventSize = 1 << 20

// SSEDialer opens text/event-stream connections.
type SSEDialer struct {
	HTTPClient *http.Client
	// MaxEventSize caps a single stream line; zero means DefaultMaxEventSize.
	// A longer line fails the read with bufio.ErrTooLong: the event is
	// dropped, the stream closed, and the feed reconnects.
	MaxEventSize int
}

// Dial issues the GET and returns once response headers arrive. The stream
// lives until ctx is cancelled or the server ends it.
func (d SSEDialer) Dial(ctx context.Context, url string) (Conn, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("event feed request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	client := d.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("event feed dial: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("event feed dial: unexpected status %d", resp.StatusCode)
	}

	scanner := bufio.NewScanner(resp.Body)
	limit := d.MaxEventSize
	if limit <= 0 {
		limit = DefaultMaxEventSize
	}
	scanner.Buffer(make([]byte, 0, min(64*1024, limit)), limit)
	return &sseConn{body: resp.Body, scanner: scanner}, nil
}

type sseConn struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
}

// Read returns the data of the next event. Multi-line data fields are joined
// with newlines; comments and other fields are ignored.
func (c *sseConn) Read(ctx context.Context) ([]byte, error) {
	var data [][]byte
	for c.scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		line := c.scanner.Bytes()

		if len(line) == 0 {
			if len(data) > 0 {
				return bytes.Join(data, []byte("\n")), nil
			}
			continue
		}
		if line[0] == ':' {
			continue
		}
		if !bytes.HasPrefix(line, []byte("data:")) {
			continue
		}
		payload := bytes.TrimPrefix(line, []byte("data:"))
		payload = bytes.TrimPrefix(payload, []byte(" "))
		data = append(data, append([]byte(nil), payload...))
	}
	if err := c.scanner.Err(); err != nil {
		return nil, err
	}
	if len(data) > 0 {
		return bytes.Join(data, []byte("\n")), nil
	}
	return nil, io.EOF
}

func (c *sseConn) Write(context.Context, []byte) error {
	return domain.ErrSendOnly
}

func (c *sseConn) Close() error {
	return c.body.Close()
}
