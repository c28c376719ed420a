// Package handlers provides the ordered observer registry used by every
// realtime client and the outbox to notify subscribers.
package handlers

import (
	"log/slog"
	"sync"
	"sync/atomic"
)

type subscription[T any] struct {
	id      uint64
	handler func(T)
}

// Registry is an ordered, goroutine-safe set of callbacks.
// The zero value is ready to use and logs handler panics to slog.Default.
type Registry[T any] struct {
	mu     sync.RWMutex
	subs   []subscription[T]
	nextID atomic.Uint64
	logger *slog.Logger
	name   string
}

// New creates a registry whose handler panics are logged with the given name.
func New[T any](name string, logger *slog.Logger) *Registry[T] {
	return &Registry[T]{name: name, logger: logger}
}

// Register appends handler and returns its unsubscribe function.
// Registering the same function twice yields two independent registrations.
// Unsubscribe is idempotent and only ever removes its own registration.
func (r *Registry[T]) Register(handler func(T)) func() {
	id := r.nextID.Add(1)

	r.mu.Lock()
	r.subs = append(r.subs, subscription[T]{id: id, handler: handler})
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { r.remove(id) })
	}
}

func (r *Registry[T]) remove(id uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, s := range r.subs {
		if s.id == id {
			// Copy so snapshots taken by an in-flight Emit stay intact.
			subs := make([]subscription[T], 0, len(r.subs)-1)
			subs = append(subs, r.subs[:i]...)
			r.subs = append(subs, r.subs[i+1:]...)
			return
		}
	}
}

// Emit invokes every handler synchronously, in registration order, on the
// calling goroutine. Handlers registered or removed during Emit take effect on
// the next call. A panicking handler is recovered and logged; later handlers
// still run.
func (r *Registry[T]) Emit(v T) {
	r.mu.RLock()
	subs := r.subs
	r.mu.RUnlock()

	for _, sub := range subs {
		r.dispatch(sub, v)
	}
}

func (r *Registry[T]) dispatch(sub subscription[T], v T) {
	defer func() {
		if p := recover(); p != nil {
			r.log().Error("handler panicked",
				"registry", r.name,
				"subscription", sub.id,
				"panic", p,
			)
		}
	}()
	sub.handler(v)
}

// Len returns the number of live registrations.
func (r *Registry[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subs)
}

func (r *Registry[T]) log() *slog.Logger {
	if r.logger != nil {
		return r.logger
	}
	return slog.Default()
}
