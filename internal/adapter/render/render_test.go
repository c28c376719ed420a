package render

import (
	"errors"
	"testing"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/stretchr/testify/assert"

	"clawmobile/internal/domain"
	"clawmobile/internal/usecase/chat"
)

func TestStatusLine(t *testing.T) {
	assert.Contains(t, StatusLine(true, 0), "Connected")
	assert.NotContains(t, StatusLine(true, 0), "queued")

	line := StatusLine(false, 3)
	assert.Contains(t, line, "Disconnected")
	assert.Contains(t, line, "3 queued")
}

func TestStateLine(t *testing.T) {
	assert.Contains(t, StateLine(domain.StateOpen, 0, 0), "Connected")
	assert.Contains(t, StateLine(domain.StateConnecting, 0, 0), "Connecting")
	assert.Contains(t, StateLine(domain.StateReconnecting, 2, 1), "attempt 2")
	assert.Contains(t, StateLine(domain.StateReconnecting, 2, 1), "1 queued")
	assert.Contains(t, StateLine(domain.StateFailed, 10, 0), "failed")
	assert.Contains(t, StateLine(domain.StateClosed, 0, 0), "Disconnected")
}

func TestEntry(t *testing.T) {
	assert.Contains(t, Entry(chat.Entry{Role: chat.RoleUser, Content: "hi"}), "You: ")
	assert.Contains(t, Entry(chat.Entry{Role: chat.RoleAssistant, Content: "hello"}), "hello")
	assert.Contains(t, Entry(chat.Entry{Role: chat.RoleTool, Name: "shell", Content: "ls"}), "shell")
}

func TestEvent(t *testing.T) {
	ev := domain.FeedEvent{
		Type:      domain.FeedToolCall,
		Data:      map[string]any{"tool": "shell", "args": "ls"},
		Timestamp: time.Date(2024, 1, 2, 15, 4, 5, 0, time.UTC).UnixMilli(),
	}
	line := Event(ev, time.UTC)
	assert.Contains(t, line, "15:04:05")
	assert.Contains(t, line, "[tool_call]")
	assert.Contains(t, line, "args=ls tool=shell")
}

func TestError(t *testing.T) {
	line := Error(domain.NewSubSystemError("chat", "realtime.chat.read", domain.ErrConnection, "reset"))
	assert.Contains(t, line, "CHAT_CONNECTION")
	assert.Contains(t, line, "reset")

	assert.Contains(t, Error(errors.New("plain")), "UNKNOWN")
}

func TestMarkdown(t *testing.T) {
	md := NewMarkdown(glamour.WithStandardStyle("notty"))

	out := md.Render("# Title\n\nSome **bold** text.", 40)
	assert.Contains(t, out, "Title")
	assert.Contains(t, out, "bold")

	assert.Equal(t, "  ", md.Render("  ", 40))
}

func TestMarkdownReusesRenderer(t *testing.T) {
	md := NewMarkdown(glamour.WithStandardStyle("notty"))
	md.Render("a", 0)
	md.Render("b", DefaultWidth)
	md.Render("c", 60)

	md.mu.Lock()
	defer md.mu.Unlock()
	assert.Len(t, md.renderers, 2)
}
