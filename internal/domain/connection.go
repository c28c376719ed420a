package domain

// ConnectionState is the lifecycle state of a realtime client.
// A client is in exactly one state at any time.
type ConnectionState int

const (
	// StateIdle means Connect has never been called.
	StateIdle ConnectionState = iota
	// StateConnecting means a dial is in flight.
	StateConnecting
	// StateOpen means the connection is established and frames flow.
	StateOpen
	// StateReconnecting means a reconnect timer is pending after an unexpected close.
	StateReconnecting
	// StateFailed means reconnect attempts were exhausted. Only Connect leaves it.
	StateFailed
	// StateClosed means the caller disconnected on purpose.
	StateClosed
)

// String returns the lowercase name of the state.
func (s ConnectionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateReconnecting:
		return "reconnecting"
	case StateFailed:
		return "failed"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// StateChange is emitted whenever a client moves between states.
type StateChange struct {
	From ConnectionState
	To   ConnectionState
}
