// Package outbox buffers user-composed chat messages while the socket is
// down, persists them through a KVStore and drains them in order once the
// socket is open again.
package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/oklog/ulid/v2"

	"clawmobile/internal/domain"
	"clawmobile/internal/usecase/handlers"
)

// DefaultKey is the storage key holding the JSON-encoded queue.
const DefaultKey = "allmightyclaw_message_queue"

// Sender is the transport the queue drains into.
type Sender interface {
	Send(text string)
	IsConnected() bool
}

// StateSource publishes connection state transitions.
type StateSource interface {
	OnStateChange(func(domain.StateChange)) func()
}

// Option configures a Queue.
type Option func(*Queue)

// WithKey overrides the storage key.
func WithKey(key string) Option {
	return func(q *Queue) {
		if key != "" {
			q.key = key
		}
	}
}

// WithClock sets the clock used for message timestamps and ids.
func WithClock(c clockwork.Clock) Option {
	return func(q *Queue) { q.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(q *Queue) { q.logger = l }
}

// Queue is the persisted FIFO outbox. One Queue per process owns the key.
type Queue struct {
	store  domain.KVStore
	sender Sender
	key    string
	clock  clockwork.Clock
	logger *slog.Logger

	errs    *handlers.Registry[error]
	changes *handlers.Registry[int]

	mu       sync.Mutex
	items    []domain.QueuedMessage
	entropy  io.Reader
	draining bool
	loaded   bool
	seq      uint64

	// saveMu orders writes to the store; saved is the seq last written.
	saveMu sync.Mutex
	saved  uint64
}

// New creates a queue draining into sender.
func New(store domain.KVStore, sender Sender, opts ...Option) *Queue {
	q := &Queue{
		store:  store,
		sender: sender,
		key:    DefaultKey,
		clock:  clockwork.NewRealClock(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(q)
	}
	q.logger = q.logger.With("component", "outbox")
	q.entropy = ulid.Monotonic(rand.New(rand.NewSource(q.clock.Now().UnixNano())), 0)
	q.errs = handlers.New[error]("outbox.error", q.logger)
	q.changes = handlers.New[int]("outbox.change", q.logger)
	return q
}

// OnError registers a handler for persistence failures.
func (q *Queue) OnError(h func(error)) func() { return q.errs.Register(h) }

// OnChange registers a handler receiving the pending count after every change.
func (q *Queue) OnChange(h func(pending int)) func() { return q.changes.Register(h) }

// Bind drains the queue whenever source reports the Open state.
func (q *Queue) Bind(ctx context.Context, source StateSource) func() {
	return source.OnStateChange(func(sc domain.StateChange) {
		q.HandleConnectivity(ctx, sc.To == domain.StateOpen)
	})
}

// Load rehydrates the queue from storage once. Unparsable data leaves the
// queue empty. Items restored are drained at once if the sender is connected.
func (q *Queue) Load(ctx context.Context) error {
	q.mu.Lock()
	if q.loaded {
		q.mu.Unlock()
		return nil
	}
	q.loaded = true
	q.mu.Unlock()

	raw, ok, err := q.store.Get(ctx, q.key)
	if err != nil {
		return q.reportPersistence("load", err)
	}
	var restored []domain.QueuedMessage
	if ok && raw != "" {
		if err := json.Unmarshal([]byte(raw), &restored); err != nil {
			q.logger.Warn("discarding unreadable queue", "error", err)
			restored = nil
		}
	}

	q.mu.Lock()
	// Messages queued while loading were saved without the restored ones.
	resave := len(restored) > 0 && len(q.items) > 0
	q.items = append(restored, q.items...)
	n := len(q.items)
	seq, snap := q.snapshotLocked()
	q.mu.Unlock()

	if resave {
		if err := q.persist(ctx, seq, snap); err != nil {
			_ = q.reportPersistence("save", err)
		}
	}
	if len(restored) > 0 {
		q.logger.Info("restored queued messages", "count", len(restored))
		q.changes.Emit(n)
	}
	q.Drain(ctx)
	return nil
}

// QueueMessage sends content straight away when connected and reports false.
// Otherwise it appends a new QueuedMessage, persists the whole list and
// reports true.
func (q *Queue) QueueMessage(ctx context.Context, content string) bool {
	if q.sender.IsConnected() {
		q.sender.Send(content)
		return false
	}

	now := q.clock.Now()
	q.mu.Lock()
	msg := domain.QueuedMessage{
		ID:        ulid.MustNew(ulid.Timestamp(now), q.entropy).String(),
		Content:   content,
		Timestamp: now.UnixMilli(),
	}
	q.items = append(q.items, msg)
	n := len(q.items)
	seq, snap := q.snapshotLocked()
	q.mu.Unlock()

	err := q.persist(ctx, seq, snap)
	q.logger.Debug("message queued", "id", msg.ID, "pending", n)
	if err != nil {
		_ = q.reportPersistence("save", err)
	}
	q.changes.Emit(n)

	// The socket may have opened, and drained, between the check above and
	// the append.
	if q.sender.IsConnected() {
		q.Drain(ctx)
	}
	return true
}

// HandleConnectivity drains when connected becomes true.
func (q *Queue) HandleConnectivity(ctx context.Context, connected bool) {
	if connected {
		q.Drain(ctx)
	}
}

// Drain flushes the queue if the sender is connected and no drain is already
// running. The list is cleared in memory and storage before sending, then
// every item is sent in insertion order. It returns the number sent.
func (q *Queue) Drain(ctx context.Context) int {
	sent := 0
	for {
		q.mu.Lock()
		if q.draining || len(q.items) == 0 || !q.sender.IsConnected() {
			q.mu.Unlock()
			return sent
		}
		q.draining = true
		batch := q.items
		q.items = nil
		seq, snap := q.snapshotLocked()
		q.mu.Unlock()

		if err := q.persist(ctx, seq, snap); err != nil {
			_ = q.reportPersistence("clear", err)
		}
		q.changes.Emit(0)
		q.logger.Info("draining queued messages", "count", len(batch))

		for _, msg := range batch {
			q.sender.Send(msg.Content)
		}
		sent += len(batch)

		q.mu.Lock()
		q.draining = false
		q.mu.Unlock()
	}
}

// Pending returns a copy of the queued messages in insertion order.
func (q *Queue) Pending() []domain.QueuedMessage {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]domain.QueuedMessage(nil), q.items...)
}

// Len returns the number of queued messages.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// HasPending reports whether anything is waiting to be sent.
func (q *Queue) HasPending() bool { return q.Len() > 0 }

// snapshotLocked copies the list and stamps it with the next sequence number.
// Callers hold q.mu.
func (q *Queue) snapshotLocked() (uint64, []domain.QueuedMessage) {
	q.seq++
	return q.seq, append([]domain.QueuedMessage(nil), q.items...)
}

// persist overwrites the stored list with items, removing the key when empty.
// A snapshot older than the last one written is skipped, so a slow save can
// never replace newer state.
func (q *Queue) persist(ctx context.Context, seq uint64, items []domain.QueuedMessage) error {
	q.saveMu.Lock()
	defer q.saveMu.Unlock()
	if seq <= q.saved {
		return nil
	}
	var err error
	if len(items) == 0 {
		err = q.store.Remove(ctx, q.key)
	} else {
		var data []byte
		if data, err = json.Marshal(items); err != nil {
			return fmt.Errorf("marshal queue: %w", err)
		}
		err = q.store.Set(ctx, q.key, string(data))
	}
	if err == nil {
		q.saved = seq
	}
	return err
}

func (q *Queue) reportPersistence(op string, err error) error {
	q.logger.Warn("queue persistence failed", "op", op, "error", err)
	derr := domain.NewSubSystemError("outbox", "outbox."+op, domain.ErrPersistence, err.Error())
	q.errs.Emit(derr)
	return derr
}
