package domain

// ChatMessageType discriminates frames received on the chat socket.
type ChatMessageType string

const (
	ChatMessage    ChatMessageType = "message"
	ChatChunk      ChatMessageType = "chunk"
	ChatToolCall   ChatMessageType = "tool_call"
	ChatToolResult ChatMessageType = "tool_result"
	ChatDone       ChatMessageType = "done"
	ChatError      ChatMessageType = "error"
)

// Valid reports whether t is one of the known chat frame types.
func (t ChatMessageType) Valid() bool {
	switch t {
	case ChatMessage, ChatChunk, ChatToolCall, ChatToolResult, ChatDone, ChatError:
		return true
	}
	return false
}

// ChatWireMessage is one frame pushed by the server over the chat socket.
// Chunks arrive in order and are concatenated to rebuild a streamed reply.
type ChatWireMessage struct {
	Type         ChatMessageType `json:"type"`
	Content      string          `json:"content,omitempty"`
	Name         string          `json:"name,omitempty"`
	Args         map[string]any  `json:"args,omitempty"`
	Output       string          `json:"output,omitempty"`
	FullResponse string          `json:"full_response,omitempty"`
	Message      string          `json:"message,omitempty"`
}

// OutgoingFrame is the only frame the client writes to the chat socket.
type OutgoingFrame struct {
	Type    ChatMessageType `json:"type"`
	Content string          `json:"content"`
}

// NewOutgoingMessage builds the frame for a user-composed message.
func NewOutgoingMessage(content string) OutgoingFrame {
	return OutgoingFrame{Type: ChatMessage, Content: content}
}

// FeedEventType identifies an event pushed on the telemetry feed.
type FeedEventType string

const (
	FeedLLMRequest FeedEventType = "llm_request"
	FeedToolCall   FeedEventType = "tool_call"
	FeedAgentStart FeedEventType = "agent_start"
	FeedAgentEnd   FeedEventType = "agent_end"
	FeedError      FeedEventType = "error"
)

// Valid reports whether t is one of the known feed event types.
func (t FeedEventType) Valid() bool {
	switch t {
	case FeedLLMRequest, FeedToolCall, FeedAgentStart, FeedAgentEnd, FeedError:
		return true
	}
	return false
}

// FeedEvent is one server-push telemetry event. Timestamp is unix millis.
type FeedEvent struct {
	Type      FeedEventType  `json:"type"`
	Data      map[string]any `json:"data"`
	Timestamp int64          `json:"timestamp"`
}
