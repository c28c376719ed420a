// Package reconnect computes bounded exponential backoff for realtime clients.
package reconnect

import "time"

// Defaults shared by the chat socket and the event feed.
const (
	DefaultBaseDelay   = 1 * time.Second
	DefaultMaxDelay    = 30 * time.Second
	DefaultMaxAttempts = 10
)

// Policy decides how long to wait before the next reconnect and when to stop.
// Attempt counts are 0-based: attempts is the number of reconnects already
// scheduled in the current failure run.
type Policy struct {
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	MaxAttempts int
}

// Default returns the 1s/30s/10 policy.
func Default() Policy {
	return Policy{
		BaseDelay:   DefaultBaseDelay,
		MaxDelay:    DefaultMaxDelay,
		MaxAttempts: DefaultMaxAttempts,
	}
}

// WithDefaults fills zero fields from Default.
func (p Policy) WithDefaults() Policy {
	d := Default()
	if p.BaseDelay <= 0 {
		p.BaseDelay = d.BaseDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = d.MaxDelay
	}
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = d.MaxAttempts
	}
	return p
}

// Delay returns min(BaseDelay * 2^attempts, MaxDelay).
func (p Policy) Delay(attempts int) time.Duration {
	if attempts < 0 {
		attempts = 0
	}
	delay := p.BaseDelay
	for i := 0; i < attempts; i++ {
		if delay >= p.MaxDelay {
			break
		}
		delay *= 2
	}
	if delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	return delay
}

// Exhausted reports whether another reconnect would exceed MaxAttempts.
func (p Policy) Exhausted(attempts int) bool {
	return attempts >= p.MaxAttempts
}

// Next returns the delay for the next reconnect, or ok=false when the policy
// is exhausted and the client must fail-stop.
func (p Policy) Next(attempts int) (delay time.Duration, ok bool) {
	if p.Exhausted(attempts) {
		return 0, false
	}
	return p.Delay(attempts), true
}

// Budget is the worst-case total wait across a full failure run.
func (p Policy) Budget() time.Duration {
	var total time.Duration
	for i := 0; i < p.MaxAttempts; i++ {
		total += p.Delay(i)
	}
	return total
}
