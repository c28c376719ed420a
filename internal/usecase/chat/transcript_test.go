package chat

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clawmobile/internal/domain"
	"clawmobile/internal/usecase/handlers"
)

func chunk(s string) domain.ChatWireMessage {
	return domain.ChatWireMessage{Type: domain.ChatChunk, Content: s}
}

func TestTranscript_ChunksConcatenateUntilDone(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.UnixMilli(1000))
	tr := NewTranscript(clock)

	tr.AddUser("hi")
	tr.Apply(chunk("Hel"))
	clock.Advance(time.Millisecond)
	e, ok := tr.Apply(chunk("lo"))
	require.True(t, ok)
	assert.Equal(t, "Hello", e.Content)
	assert.False(t, e.Complete)
	assert.True(t, tr.Streaming())

	e, ok = tr.Apply(domain.ChatWireMessage{Type: domain.ChatDone, FullResponse: "ignored"})
	require.True(t, ok)
	assert.True(t, e.Complete)
	assert.Equal(t, "Hello", e.Content)
	assert.False(t, tr.Streaming())

	msgs := tr.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, RoleUser, msgs[0].Role)
	assert.Equal(t, RoleAssistant, msgs[1].Role)
	assert.Equal(t, int64(1000), msgs[1].Timestamp)
	assert.NotEqual(t, msgs[0].ID, msgs[1].ID)
}

func TestTranscript_NextReplyStartsNewEntry(t *testing.T) {
	tr := NewTranscript(nil)

	tr.Apply(chunk("first"))
	tr.Apply(domain.ChatWireMessage{Type: domain.ChatDone})
	tr.Apply(chunk("second"))

	msgs := tr.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "first", msgs[0].Content)
	assert.Equal(t, "second", msgs[1].Content)
}

func TestTranscript_DoneWithoutChunksUsesFullResponse(t *testing.T) {
	tr := NewTranscript(nil)

	e, ok := tr.Apply(domain.ChatWireMessage{Type: domain.ChatDone, FullResponse: "whole answer"})
	require.True(t, ok)
	assert.Equal(t, "whole answer", e.Content)
	assert.True(t, e.Complete)

	_, ok = tr.Apply(domain.ChatWireMessage{Type: domain.ChatDone})
	assert.False(t, ok)
	assert.Equal(t, 1, tr.Len())
}

func TestTranscript_ErrorEntry(t *testing.T) {
	tr := NewTranscript(nil)
	tr.Apply(chunk("partial"))

	e, ok := tr.Apply(domain.ChatWireMessage{Type: domain.ChatError, Message: "rate limited"})
	require.True(t, ok)
	assert.Equal(t, "Error: rate limited", e.Content)
	assert.Equal(t, RoleAssistant, e.Role)

	msgs := tr.Messages()
	require.Len(t, msgs, 2)
	assert.True(t, msgs[0].Complete, "partial reply is closed by the error")
	assert.False(t, tr.Streaming())
}

func TestTranscript_ToolEntriesKeepReplyOpen(t *testing.T) {
	tr := NewTranscript(nil)

	tr.Apply(chunk("Let me check. "))
	call, _ := tr.Apply(domain.ChatWireMessage{Type: domain.ChatToolCall, Name: "shell", Args: map[string]any{"cmd": "date"}})
	result, _ := tr.Apply(domain.ChatWireMessage{Type: domain.ChatToolResult, Name: "shell", Output: "Mon"})
	tr.Apply(chunk("It is Monday."))
	tr.Apply(domain.ChatWireMessage{Type: domain.ChatDone})

	assert.Equal(t, `{"cmd":"date"}`, call.Content)
	assert.Equal(t, "Mon", result.Content)

	msgs := tr.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, "Let me check. It is Monday.", msgs[0].Content)
	assert.True(t, msgs[0].Complete)
	assert.Equal(t, RoleTool, msgs[1].Role)
	assert.Equal(t, "shell", msgs[1].Name)
	assert.Equal(t, RoleTool, msgs[2].Role)
}

func TestTranscript_MessageFrame(t *testing.T) {
	tr := NewTranscript(nil)
	e, ok := tr.Apply(domain.ChatWireMessage{Type: domain.ChatMessage, Content: "hello"})
	require.True(t, ok)
	assert.True(t, e.Complete)
	assert.Equal(t, "hello", e.Content)

	_, ok = tr.Apply(domain.ChatWireMessage{Type: "unknown"})
	assert.False(t, ok)
}

func TestTranscript_AttachAndClear(t *testing.T) {
	var reg handlers.Registry[domain.ChatWireMessage]
	src := sourceFunc(reg.Register)
	tr := NewTranscript(nil)

	detach := tr.Attach(src)
	reg.Emit(chunk("a"))
	reg.Emit(chunk("b"))
	detach()
	reg.Emit(chunk("c"))

	msgs := tr.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "ab", msgs[0].Content)

	tr.Clear()
	assert.Zero(t, tr.Len())
	assert.False(t, tr.Streaming())
}

func TestTranscript_MessagesIsACopy(t *testing.T) {
	tr := NewTranscript(nil)
	tr.AddUser("x")
	msgs := tr.Messages()
	msgs[0].Content = "mutated"
	assert.Equal(t, "x", tr.Messages()[0].Content)
}

type sourceFunc func(func(domain.ChatWireMessage)) func()

func (f sourceFunc) OnMessage(h func(domain.ChatWireMessage)) func() { return f(h) }
