// Package agentserver is an in-process fake of the agent server. It speaks
// the chat socket, the event feed and the REST surface so client packages
// can be tested end to end without a real server.
package agentserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"clawmobile/internal/domain"
)

// ReplyFunc produces the frames streamed back for one user message.
type ReplyFunc func(content string) []domain.ChatWireMessage

// EchoReply streams the content back as a single chunk followed by done.
func EchoReply(content string) []domain.ChatWireMessage {
	return []domain.ChatWireMessage{
		{Type: domain.ChatChunk, Content: content},
		{Type: domain.ChatDone, FullResponse: content},
	}
}

// chatConn tracks a single socket connection.
type chatConn struct {
	ws        *websocket.Conn
	sendCh    chan domain.ChatWireMessage
	done      chan struct{}
	closeOnce sync.Once
}

func (cc *chatConn) stop() { cc.closeOnce.Do(func() { close(cc.done) }) }

// Server is the fake agent server.
type Server struct {
	*httptest.Server

	Token       string
	PairingCode string
	Reply       ReplyFunc

	logger *slog.Logger
	nextID atomic.Uint64

	mu          sync.Mutex
	conns       map[uint64]*chatConn
	subscribers map[uint64]chan domain.FeedEvent
	received    []string
	chatDials   int
	feedDials   int
	healthy     bool
	state       *restState
}

// New starts a fake server and closes it on test cleanup.
func New(t testing.TB) *Server {
	t.Helper()
	s := &Server{
		Token:       "test-token",
		PairingCode: "123456",
		Reply:       EchoReply,
		logger:      slog.Default(),
		conns:       make(map[uint64]*chatConn),
		subscribers: make(map[uint64]chan domain.FeedEvent),
		healthy:     true,
		state:       newRESTState(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws/chat", s.handleChat)
	mux.HandleFunc("/api/events", s.handleEvents)
	s.registerREST(mux)

	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

// Close drops every live connection and stops the listener.
func (s *Server) Close() {
	s.DropChatConnections()
	s.mu.Lock()
	for id, ch := range s.subscribers {
		close(ch)
		delete(s.subscribers, id)
	}
	s.mu.Unlock()
	s.Server.Close()
}

// SetHealthy toggles the /health endpoint.
func (s *Server) SetHealthy(ok bool) {
	s.mu.Lock()
	s.healthy = ok
	s.mu.Unlock()
}

// Received returns the contents of every user message received so far.
func (s *Server) Received() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.received...)
}

// ChatDials is the number of accepted socket connections.
func (s *Server) ChatDials() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chatDials
}

// FeedDials is the number of accepted event feed connections.
func (s *Server) FeedDials() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.feedDials
}

// Subscribers is the number of live event feed streams.
func (s *Server) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subscribers)
}

// Push sends a frame to every connected chat client.
func (s *Server) Push(msg domain.ChatWireMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, cc := range s.conns {
		select {
		case cc.sendCh <- msg:
		default:
			s.logger.Warn("agentserver: dropped frame for slow client")
		}
	}
}

// Publish fans an event out to every feed subscriber.
func (s *Server) Publish(ev domain.FeedEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.subscribers {
		select {
		case ch <- ev:
		default:
			s.logger.Warn("agentserver: dropped event for slow subscriber")
		}
	}
}

// DropChatConnections closes every socket with an abnormal status, which the
// client must treat as an unexpected close.
func (s *Server) DropChatConnections() {
	s.mu.Lock()
	conns := make([]*chatConn, 0, len(s.conns))
	for id, cc := range s.conns {
		conns = append(conns, cc)
		delete(s.conns, id)
	}
	s.mu.Unlock()
	for _, cc := range conns {
		cc.stop()
		cc.ws.Close(websocket.StatusInternalError, "dropped")
	}
}

func (s *Server) authorizedQuery(r *http.Request) bool {
	return r.URL.Query().Get("token") == s.currentToken()
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if !s.authorizedQuery(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	ws, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.logger.Warn("agentserver: websocket accept failed", "error", err)
		return
	}

	id := s.nextID.Add(1)
	cc := &chatConn{
		ws:     ws,
		sendCh: make(chan domain.ChatWireMessage, 64),
		done:   make(chan struct{}),
	}
	s.mu.Lock()
	s.conns[id] = cc
	s.chatDials++
	s.mu.Unlock()

	go s.writeLoop(cc)
	s.readLoop(r.Context(), cc)

	cc.stop()
	s.mu.Lock()
	delete(s.conns, id)
	s.mu.Unlock()
	ws.Close(websocket.StatusNormalClosure, "")
}

func (s *Server) readLoop(ctx context.Context, cc *chatConn) {
	for {
		select {
		case <-cc.done:
			return
		default:
		}

		var frame domain.OutgoingFrame
		if err := wsjson.Read(ctx, cc.ws, &frame); err != nil {
			return
		}
		if frame.Type != domain.ChatMessage {
			continue
		}

		s.mu.Lock()
		s.received = append(s.received, frame.Content)
		reply := s.Reply
		s.mu.Unlock()

		if reply == nil {
			continue
		}
		for _, msg := range reply(frame.Content) {
			select {
			case cc.sendCh <- msg:
			case <-cc.done:
				return
			}
		}
	}
}

func (s *Server) writeLoop(cc *chatConn) {
	for {
		select {
		case <-cc.done:
			return
		case msg := <-cc.sendCh:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			err := wsjson.Write(ctx, cc.ws, msg)
			cancel()
			if err != nil {
				return
			}
		}
	}
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if !s.authorizedQuery(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	id := s.nextID.Add(1)
	ch := make(chan domain.FeedEvent, 64)
	s.mu.Lock()
	s.subscribers[id] = ch
	s.feedDials++
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		if _, ok := s.subscribers[id]; ok {
			delete(s.subscribers, id)
		}
		s.mu.Unlock()
	}()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		}
	}
}

// EndEventStreams ends every feed stream cleanly.
func (s *Server) EndEventStreams() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, ch := range s.subscribers {
		close(ch)
		delete(s.subscribers, id)
	}
}

// RotateToken replaces the accepted bearer token, invalidating the old one.
func (s *Server) RotateToken(token string) {
	s.mu.Lock()
	s.Token = token
	s.mu.Unlock()
}

func (s *Server) currentToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Token
}
