// Package chat rebuilds a conversation from chat socket frames.
package chat

import (
	"encoding/json"
	"math/rand"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/oklog/ulid/v2"

	"clawmobile/internal/domain"
)

// Role identifies who produced an entry.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
)

// Entry is one line of the conversation. Timestamp is unix millis.
// Complete is false while an assistant reply is still streaming.
type Entry struct {
	ID        string `json:"id"`
	Role      Role   `json:"role"`
	Content   string `json:"content"`
	Name      string `json:"name,omitempty"`
	Timestamp int64  `json:"timestamp"`
	Complete  bool   `json:"complete"`
}

// MessageSource is anything that publishes chat frames.
type MessageSource interface {
	OnMessage(func(domain.ChatWireMessage)) func()
}

// Transcript accumulates entries in arrival order. Chunks are concatenated
// onto the open assistant entry; done closes it. Tool entries arriving
// mid-reply are appended without closing the reply.
type Transcript struct {
	clock clockwork.Clock

	mu      sync.Mutex
	entries []Entry
	open    int // index of the streaming assistant entry, -1 when none
	entropy *ulid.MonotonicEntropy
}

// NewTranscript creates an empty transcript. A nil clock uses the real one.
func NewTranscript(clock clockwork.Clock) *Transcript {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Transcript{
		clock:   clock,
		open:    -1,
		entropy: ulid.Monotonic(rand.New(rand.NewSource(clock.Now().UnixNano())), 0),
	}
}

// Attach records every frame src publishes until the returned func is called.
func (t *Transcript) Attach(src MessageSource) func() {
	return src.OnMessage(func(msg domain.ChatWireMessage) { t.Apply(msg) })
}

// AddUser records user input. It closes any reply still streaming.
func (t *Transcript) AddUser(text string) Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closeOpenLocked()
	return t.appendLocked(Entry{Role: RoleUser, Content: text, Complete: true})
}

// Apply folds one frame into the transcript and returns the entry it created
// or changed. ok is false for frames that change nothing.
func (t *Transcript) Apply(msg domain.ChatWireMessage) (Entry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch msg.Type {
	case domain.ChatChunk:
		if t.open >= 0 {
			e := &t.entries[t.open]
			e.Content += msg.Content
			return *e, true
		}
		t.open = len(t.entries)
		return t.appendLocked(Entry{Role: RoleAssistant, Content: msg.Content}), true

	case domain.ChatDone:
		if t.open >= 0 {
			e := &t.entries[t.open]
			t.open = -1
			if e.Content == "" {
				e.Content = msg.FullResponse
			}
			e.Complete = true
			return *e, true
		}
		if msg.FullResponse == "" {
			return Entry{}, false
		}
		return t.appendLocked(Entry{Role: RoleAssistant, Content: msg.FullResponse, Complete: true}), true

	case domain.ChatMessage:
		t.closeOpenLocked()
		return t.appendLocked(Entry{Role: RoleAssistant, Content: msg.Content, Complete: true}), true

	case domain.ChatError:
		t.closeOpenLocked()
		return t.appendLocked(Entry{Role: RoleAssistant, Content: "Error: " + msg.Message, Complete: true}), true

	case domain.ChatToolCall:
		args := ""
		if len(msg.Args) > 0 {
			if b, err := json.Marshal(msg.Args); err == nil {
				args = string(b)
			}
		}
		return t.appendLocked(Entry{Role: RoleTool, Name: msg.Name, Content: args, Complete: true}), true

	case domain.ChatToolResult:
		return t.appendLocked(Entry{Role: RoleTool, Name: msg.Name, Content: msg.Output, Complete: true}), true
	}
	return Entry{}, false
}

// Messages returns a copy of every entry in order.
func (t *Transcript) Messages() []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Entry(nil), t.entries...)
}

// Len returns the number of entries.
func (t *Transcript) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// Streaming reports whether an assistant reply is still open.
func (t *Transcript) Streaming() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.open >= 0
}

// Clear drops every entry.
func (t *Transcript) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = nil
	t.open = -1
}

// closeOpenLocked marks a partially streamed reply complete as received.
func (t *Transcript) closeOpenLocked() {
	if t.open >= 0 {
		t.entries[t.open].Complete = true
		t.open = -1
	}
}

func (t *Transcript) appendLocked(e Entry) Entry {
	e = t.stamp(e)
	t.entries = append(t.entries, e)
	return e
}

func (t *Transcript) stamp(e Entry) Entry {
	now := t.clock.Now()
	e.ID = ulid.MustNew(ulid.Timestamp(now), t.entropy).String()
	e.Timestamp = now.UnixMilli()
	return e
}
