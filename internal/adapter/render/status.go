package render

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"clawmobile/internal/domain"
	"clawmobile/internal/usecase/chat"
)

// StatusLine is the one-line connection indicator: "● Connected" or
// "○ Disconnected", followed by the outbox size when messages are waiting.
func StatusLine(connected bool, pending int) string {
	var line string
	if connected {
		line = textSuccess.Render("● Connected")
	} else {
		line = textError.Render("○ Disconnected")
	}
	if pending > 0 {
		line += "  " + textWarning.Render(fmt.Sprintf("%d queued", pending))
	}
	return line
}

// StateLine is StatusLine with the full connection state spelled out.
func StateLine(state domain.ConnectionState, attempts, pending int) string {
	var label string
	switch state {
	case domain.StateOpen:
		return StatusLine(true, pending)
	case domain.StateConnecting:
		label = textInfo.Render("◌ Connecting")
	case domain.StateReconnecting:
		label = textWarning.Render(fmt.Sprintf("◌ Reconnecting (attempt %d)", attempts))
	case domain.StateFailed:
		label = textError.Render("✗ Connection failed")
	default:
		return StatusLine(false, pending)
	}
	if pending > 0 {
		label += "  " + textWarning.Render(fmt.Sprintf("%d queued", pending))
	}
	return label
}

// Entry renders one transcript entry with a role label.
func Entry(e chat.Entry) string {
	switch e.Role {
	case chat.RoleUser:
		return bold.Render("You: ") + e.Content
	case chat.RoleTool:
		return textMuted.Render("→ "+e.Name+": ") + e.Content
	case chat.RoleSystem:
		return textMuted.Render(e.Content)
	default:
		return textInfo.Render("Agent: ") + e.Content
	}
}

// Event renders one feed event as "15:04:05 [type] key=value ...", with
// data keys sorted.
func Event(ev domain.FeedEvent, loc *time.Location) string {
	ts := time.UnixMilli(ev.Timestamp)
	if loc != nil {
		ts = ts.In(loc)
	}
	label := "[" + string(ev.Type) + "]"
	switch ev.Type {
	case domain.FeedError:
		label = textError.Render(label)
	case domain.FeedToolCall, domain.FeedLLMRequest:
		label = textInfo.Render(label)
	default:
		label = textMuted.Render(label)
	}
	line := textMuted.Render(ts.Format("15:04:05")) + " " + label
	if summary := summarize(ev.Data); summary != "" {
		line += " " + summary
	}
	return line
}

func summarize(data map[string]any) string {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, data[k]))
	}
	return strings.Join(parts, " ")
}

// Error renders an error with its machine-readable code.
func Error(err error) string {
	return textError.Render(fmt.Sprintf("✗ [%s] ", domain.ErrorCodeOf(err))) + err.Error()
}
