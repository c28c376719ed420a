// Package activity keeps a bounded history of agent feed events.
package activity

import (
	"sync"

	"clawmobile/internal/domain"
)

// DefaultCapacity matches the history shown by the activity screen.
const DefaultCapacity = 100

// EventSource publishes feed events.
type EventSource interface {
	OnEvent(func(domain.FeedEvent)) func()
}

// Log stores events in arrival order and evicts the oldest beyond capacity.
type Log struct {
	mu       sync.Mutex
	events   []domain.FeedEvent
	capacity int
}

// NewLog returns a log holding at most capacity events; capacity <= 0 uses
// DefaultCapacity.
func NewLog(capacity int) *Log {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Log{capacity: capacity}
}

// Attach appends every event src publishes until the returned func is called.
func (l *Log) Attach(src EventSource) func() {
	return src.OnEvent(l.Append)
}

// Append records ev.
func (l *Log) Append(ev domain.FeedEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
	if over := len(l.events) - l.capacity; over > 0 {
		l.events = append(l.events[:0:0], l.events[over:]...)
	}
}

// Events returns the retained events oldest first.
func (l *Log) Events() []domain.FeedEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]domain.FeedEvent(nil), l.events...)
}

// Newest returns the retained events newest first.
func (l *Log) Newest() []domain.FeedEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]domain.FeedEvent, len(l.events))
	for i, ev := range l.events {
		out[len(l.events)-1-i] = ev
	}
	return out
}

// Counts tallies retained events by type.
func (l *Log) Counts() map[domain.FeedEventType]int {
	l.mu.Lock()
	defer l.mu.Unlock()
	counts := make(map[domain.FeedEventType]int)
	for _, ev := range l.events {
		counts[ev.Type]++
	}
	return counts
}

// Len returns the number of retained events.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.events)
}

// Clear drops every event.
func (l *Log) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = nil
}
