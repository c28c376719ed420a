package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"nhooyr.io/websocket"

	"clawmobile/internal/domain"
)

// ChatClient is the bidirectional chat socket.
type ChatClient struct {
	*Client[domain.ChatWireMessage]
}

// NewChatClient creates a chat client. A nil dialer uses WebSocketDialer.
func NewChatClient(dialer Dialer, opts ...Option) *ChatClient {
	if dialer == nil {
		dialer = WebSocketDialer{}
	}
	return &ChatClient{Client: NewClient("chat", dialer, ParseChatMessage, opts...)}
}

// Connect derives the socket URL from serverURL and starts connecting.
// Only URL derivation can fail; connection errors go to OnError.
func (c *ChatClient) Connect(serverURL, token string) error {
	u, err := ChatURL(serverURL, token)
	if err != nil {
		return err
	}
	c.Client.Connect(u)
	return nil
}

// Send writes {"type":"message","content":text} when the socket is Open and
// is a no-op otherwise. Write failures are reported through OnError.
func (c *ChatClient) Send(text string) {
	data, err := json.Marshal(domain.NewOutgoingMessage(text))
	if err != nil {
		c.emitError("send", domain.ErrInvalidInput, err)
		return
	}
	c.send("send", data)
}

// ParseChatMessage decodes one incoming chat frame.
func ParseChatMessage(data []byte) (domain.ChatWireMessage, error) {
	var msg domain.ChatWireMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return domain.ChatWireMessage{}, err
	}
	if !msg.Type.Valid() {
		return domain.ChatWireMessage{}, fmt.Errorf("unknown message type %q", msg.Type)
	}
	return msg, nil
}

// DefaultReadLimit caps a single incoming chat frame when the dialer sets no
// limit. Streamed replies end with a done frame carrying the whole response,
// so the cap is far above the library's 32 KiB default.
const DefaultReadLimit int64 = 16 << 20

// WebSocketDialer dials text-frame WebSocket connections.
type WebSocketDialer struct {
	HTTPClient *http.Client
	// ReadLimit caps a single incoming frame. Zero means DefaultReadLimit and
	// a negative value disables the cap. A frame over the cap fails the read,
	// which closes the socket and schedules a reconnect.
	ReadLimit int64
}

// Dial opens a WebSocket connection to url.
func (d WebSocketDialer) Dial(ctx context.Context, url string) (Conn, error) {
	ws, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{HTTPClient: d.HTTPClient})
	if err != nil {
		return nil, fmt.Errorf("websocket dial: %w", err)
	}
	ws.SetReadLimit(d.readLimit())
	return &wsConn{ws: ws}, nil
}

func (d WebSocketDialer) readLimit() int64 {
	switch {
	case d.ReadLimit < 0:
		return -1
	case d.ReadLimit == 0:
		return DefaultReadLimit
	default:
		return d.ReadLimit
	}
}

type wsConn struct {
	ws *websocket.Conn
}

func (c *wsConn) Read(ctx context.Context) ([]byte, error) {
	_, data, err := c.ws.Read(ctx)
	if err != nil {
		switch websocket.CloseStatus(err) {
		case websocket.StatusNormalClosure, websocket.StatusGoingAway:
			return nil, io.EOF
		}
		return nil, err
	}
	return data, nil
}

func (c *wsConn) Write(ctx context.Context, data []byte) error {
	return c.ws.Write(ctx, websocket.MessageText, data)
}

func (c *wsConn) Close() error {
	return c.ws.Close(websocket.StatusNormalClosure, "")
}
