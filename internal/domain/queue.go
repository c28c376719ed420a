package domain

// QueuedMessage is a user-composed message held by the outbox while the chat
// socket is down. RetryCount is carried on the wire format but never incremented.
type QueuedMessage struct {
	ID         string `json:"id"`
	Content    string `json:"content"`
	Timestamp  int64  `json:"timestamp"`
	RetryCount int    `json:"retryCount"`
}
