package pairing

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"math/rand"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/oklog/ulid/v2"

	"clawmobile/internal/domain"
	"clawmobile/internal/security"
)

// ServersKey is the storage key holding the server book.
const ServersKey = "allmightyclaw_servers"

const subsystem = "servers"

type book struct {
	Servers []domain.Server `json:"servers"`
	Current string          `json:"current,omitempty"`
}

// ServerBook is the persisted list of known servers plus the current one.
// The first server added becomes current.
type ServerBook struct {
	store   domain.KVStore
	clock   clockwork.Clock
	logger  *slog.Logger
	mu      sync.Mutex
	entropy io.Reader
}

// NewServerBook creates a book over store.
func NewServerBook(store domain.KVStore, clock clockwork.Clock, logger *slog.Logger) *ServerBook {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ServerBook{
		store:   store,
		clock:   clock,
		logger:  logger.With("component", "pairing.servers"),
		entropy: ulid.Monotonic(rand.New(rand.NewSource(clock.Now().UnixNano())), 0),
	}
}

// List returns the servers in insertion order.
func (b *ServerBook) List(ctx context.Context) ([]domain.Server, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	bk, err := b.load(ctx)
	if err != nil {
		return nil, err
	}
	return bk.Servers, nil
}

// Current returns the current server; ok is false when the book is empty.
func (b *ServerBook) Current(ctx context.Context) (domain.Server, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	bk, err := b.load(ctx)
	if err != nil {
		return domain.Server{}, false, err
	}
	i := bk.index(bk.Current)
	if i < 0 {
		return domain.Server{}, false, nil
	}
	return bk.Servers[i], true, nil
}

// Add records a new server. URLs are unique within the book.
func (b *ServerBook) Add(ctx context.Context, name, rawURL, token string) (domain.Server, error) {
	serverURL := NormalizeURL(rawURL)
	if err := security.ValidateServerURL(serverURL); err != nil {
		return domain.Server{}, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	bk, err := b.load(ctx)
	if err != nil {
		return domain.Server{}, err
	}
	for _, s := range bk.Servers {
		if s.URL == serverURL {
			return domain.Server{}, domain.NewSubSystemError(subsystem, "servers.Add", domain.ErrDuplicate, serverURL)
		}
	}
	if name == "" {
		name = serverURL
	}
	srv := domain.Server{
		ID:    ulid.MustNew(ulid.Timestamp(b.clock.Now()), b.entropy).String(),
		URL:   serverURL,
		Name:  name,
		Token: token,
	}
	bk.Servers = append(bk.Servers, srv)
	if bk.Current == "" {
		bk.Current = srv.ID
	}
	if err := b.save(ctx, bk); err != nil {
		return domain.Server{}, err
	}
	return srv, nil
}

// Remove deletes a server. Removing the current server makes the first
// remaining one current.
func (b *ServerBook) Remove(ctx context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	bk, err := b.load(ctx)
	if err != nil {
		return err
	}
	i := bk.index(id)
	if i < 0 {
		return domain.NewSubSystemError(subsystem, "servers.Remove", domain.ErrNotFound, id)
	}
	bk.Servers = append(bk.Servers[:i], bk.Servers[i+1:]...)
	if bk.Current == id {
		bk.Current = ""
		if len(bk.Servers) > 0 {
			bk.Current = bk.Servers[0].ID
		}
	}
	return b.save(ctx, bk)
}

// Switch makes id the current server and returns it.
func (b *ServerBook) Switch(ctx context.Context, id string) (domain.Server, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	bk, err := b.load(ctx)
	if err != nil {
		return domain.Server{}, err
	}
	i := bk.index(id)
	if i < 0 {
		return domain.Server{}, domain.NewSubSystemError(subsystem, "servers.Switch", domain.ErrNotFound, id)
	}
	bk.Current = id
	if err := b.save(ctx, bk); err != nil {
		return domain.Server{}, err
	}
	return bk.Servers[i], nil
}

// Update replaces the stored server with the same ID.
func (b *ServerBook) Update(ctx context.Context, srv domain.Server) error {
	srv.URL = NormalizeURL(srv.URL)
	if err := security.ValidateServerURL(srv.URL); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	bk, err := b.load(ctx)
	if err != nil {
		return err
	}
	i := bk.index(srv.ID)
	if i < 0 {
		return domain.NewSubSystemError(subsystem, "servers.Update", domain.ErrNotFound, srv.ID)
	}
	for j, s := range bk.Servers {
		if j != i && s.URL == srv.URL {
			return domain.NewSubSystemError(subsystem, "servers.Update", domain.ErrDuplicate, srv.URL)
		}
	}
	bk.Servers[i] = srv
	return b.save(ctx, bk)
}

// load reads the book. Missing or corrupt data reads as an empty book.
func (b *ServerBook) load(ctx context.Context) (book, error) {
	raw, ok, err := b.store.Get(ctx, ServersKey)
	if err != nil {
		return book{}, domain.NewSubSystemError(subsystem, "servers.load", domain.ErrPersistence, err.Error())
	}
	if !ok {
		return book{}, nil
	}
	var bk book
	if err := json.Unmarshal([]byte(raw), &bk); err != nil {
		b.logger.Warn("discarding corrupt server list", "error", err)
		return book{}, nil
	}
	if bk.index(bk.Current) < 0 {
		bk.Current = ""
		if len(bk.Servers) > 0 {
			bk.Current = bk.Servers[0].ID
		}
	}
	return bk, nil
}

func (b *ServerBook) save(ctx context.Context, bk book) error {
	data, err := json.Marshal(bk)
	if err != nil {
		return domain.NewSubSystemError(subsystem, "servers.save", domain.ErrPersistence, err.Error())
	}
	if err := b.store.Set(ctx, ServersKey, string(data)); err != nil {
		return domain.NewSubSystemError(subsystem, "servers.save", domain.ErrPersistence, err.Error())
	}
	return nil
}

func (bk book) index(id string) int {
	if id == "" {
		return -1
	}
	for i, s := range bk.Servers {
		if s.ID == id {
			return i
		}
	}
	return -1
}
