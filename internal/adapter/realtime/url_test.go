package realtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChatURL(t *testing.T) {
	tests := []struct {
		name string
		base string
		want string
	}{
		{"http", "http://localhost:42617", "ws://localhost:42617/ws/chat?token=tok"},
		{"https", "https://h", "wss://h/ws/chat?token=tok"},
		{"trailing slash", "http://h:1/", "ws://h:1/ws/chat?token=tok"},
		{"base path", "https://h/agent", "wss://h/agent/ws/chat?token=tok"},
		{"already ws", "ws://h", "ws://h/ws/chat?token=tok"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ChatURL(tt.base, "tok")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestChatURL_Invalid(t *testing.T) {
	for _, base := range []string{"", "localhost:42617", "ftp://h", "http://"} {
		_, err := ChatURL(base, "tok")
		assert.Error(t, err, base)
	}
}

func TestChatURL_EscapesToken(t *testing.T) {
	got, err := ChatURL("http://h", "a&b=c")
	require.NoError(t, err)
	assert.Equal(t, "ws://h/ws/chat?token=a%26b%3Dc", got)
}

func TestFeedURL(t *testing.T) {
	assert.Equal(t, "http://h/api/events?token=tok", FeedURL("http://h", "tok"))
	assert.Equal(t, "https://h/api/events?token=tok", FeedURL("https://h/", "tok"))
}

func TestRedactToken(t *testing.T) {
	assert.Equal(t, "ws://h/ws/chat?token=redacted", redactToken("ws://h/ws/chat?token=secret"))
	assert.Equal(t, "ws://h/ws/chat", redactToken("ws://h/ws/chat"))
}
