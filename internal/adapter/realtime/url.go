package realtime

import (
	"fmt"
	"net/url"
	"strings"

	"clawmobile/internal/domain"
)

const (
	chatPath = "/ws/chat"
	feedPath = "/api/events"
)

// ChatURL derives the socket endpoint from a paired server's base URL:
// http becomes ws, https becomes wss, path /ws/chat, query token.
func ChatURL(serverURL, token string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(serverURL))
	if err != nil {
		return "", domain.NewDomainError("realtime.ChatURL", domain.ErrInvalidInput, err.Error())
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", domain.NewDomainError("realtime.ChatURL", domain.ErrInvalidInput,
			fmt.Sprintf("unsupported scheme %q", u.Scheme))
	}
	if u.Host == "" {
		return "", domain.NewDomainError("realtime.ChatURL", domain.ErrInvalidInput, "missing host")
	}
	u.Path = strings.TrimRight(u.Path, "/") + chatPath
	u.RawQuery = url.Values{"token": {token}}.Encode()
	u.Fragment = ""
	return u.String(), nil
}

// FeedURL derives the event feed endpoint. The scheme is kept as is.
func FeedURL(serverURL, token string) string {
	return strings.TrimRight(strings.TrimSpace(serverURL), "/") + feedPath + "?token=" + url.QueryEscape(token)
}

// redactToken hides the token query parameter for logging.
func redactToken(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	q := u.Query()
	if q.Get("token") == "" {
		return raw
	}
	q.Set("token", "redacted")
	u.RawQuery = q.Encode()
	return u.String()
}
