// Package pairing owns the client's credentials: the paired server URL, the
// bearer token obtained with a one-time pairing code, and the book of known
// servers.
package pairing

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"clawmobile/internal/domain"
	"clawmobile/internal/infra/tracer"
	"clawmobile/internal/security"
)

// Storage keys for the active credentials.
const (
	KeyServerURL = "server_url"
	KeyAuthToken = "auth_token"
)

// Pairer performs the network side of pairing.
type Pairer interface {
	CheckHealth(ctx context.Context, serverURL string) bool
	Pair(ctx context.Context, serverURL, code string) (domain.PairingResponse, error)
}

// Session is the credential source backed by a KVStore.
type Session struct {
	store  domain.KVStore
	pairer Pairer
	logger *slog.Logger
}

// NewSession creates a session. pairer may be nil when the caller only reads
// credentials.
func NewSession(store domain.KVStore, pairer Pairer, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{store: store, pairer: pairer, logger: logger.With("component", "pairing")}
}

// ServerURL returns the paired server URL or ErrNoServer.
func (s *Session) ServerURL(ctx context.Context) (string, error) {
	v, ok, err := s.store.Get(ctx, KeyServerURL)
	if err != nil {
		return "", domain.WrapOp("pairing.ServerURL", err)
	}
	if !ok || v == "" {
		return "", domain.ErrNoServer
	}
	return v, nil
}

// Token returns the bearer token or ErrNotAuthenticated.
func (s *Session) Token(ctx context.Context) (string, error) {
	v, ok, err := s.store.Get(ctx, KeyAuthToken)
	if err != nil {
		return "", domain.WrapOp("pairing.Token", err)
	}
	if !ok || v == "" {
		return "", domain.ErrNotAuthenticated
	}
	return v, nil
}

// IsAuthenticated reports whether both a server URL and a token are stored.
func (s *Session) IsAuthenticated(ctx context.Context) bool {
	if _, err := s.ServerURL(ctx); err != nil {
		return false
	}
	_, err := s.Token(ctx)
	return err == nil
}

// Pair verifies the server is reachable, exchanges code for a token and
// stores both. Nothing is stored on failure.
func (s *Session) Pair(ctx context.Context, rawURL, code string) (_ domain.Server, err error) {
	serverURL := NormalizeURL(rawURL)
	ctx, span := tracer.Start(ctx, "pairing.Pair", attribute.String(tracer.AttrServer, serverURL))
	defer func() { tracer.End(span, err) }()

	if s.pairer == nil {
		return domain.Server{}, errors.New("pairing: no pairer configured")
	}
	if err := security.ValidateServerURL(serverURL); err != nil {
		return domain.Server{}, err
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return domain.Server{}, domain.NewDomainError("pairing.Pair", domain.ErrInvalidInput, "pairing code is empty")
	}
	if security.InsecureTransport(serverURL) {
		s.logger.Warn("pairing over plain http outside the local network", "url", serverURL)
	}

	if !s.pairer.CheckHealth(ctx, serverURL) {
		return domain.Server{}, domain.NewDomainError("pairing.Pair", domain.ErrServerUnreachable, serverURL)
	}
	resp, err := s.pairer.Pair(ctx, serverURL, code)
	if err != nil {
		return domain.Server{}, err
	}

	srv := domain.Server{URL: serverURL, Token: resp.Token}
	if err = s.Use(ctx, srv); err != nil {
		return domain.Server{}, err
	}
	s.logger.Info("paired", "url", serverURL)
	return srv, nil
}

// Use makes srv the active server.
func (s *Session) Use(ctx context.Context, srv domain.Server) error {
	if err := s.store.Set(ctx, KeyServerURL, srv.URL); err != nil {
		return domain.WrapOp("pairing.Use", err)
	}
	if srv.Token == "" {
		return domain.WrapOp("pairing.Use", s.store.Remove(ctx, KeyAuthToken))
	}
	return domain.WrapOp("pairing.Use", s.store.Set(ctx, KeyAuthToken, srv.Token))
}

// Expire drops the token after the server rejected it. The URL is kept so the
// user can re-pair against the same server.
func (s *Session) Expire(ctx context.Context) error {
	return domain.WrapOp("pairing.Expire", s.store.Remove(ctx, KeyAuthToken))
}

// Logout forgets both the token and the server URL.
func (s *Session) Logout(ctx context.Context) error {
	if err := s.store.Remove(ctx, KeyAuthToken); err != nil {
		return domain.WrapOp("pairing.Logout", err)
	}
	return domain.WrapOp("pairing.Logout", s.store.Remove(ctx, KeyServerURL))
}

// NormalizeURL trims whitespace and trailing slashes and defaults the scheme
// to http, which is what a LAN agent serves.
func NormalizeURL(raw string) string {
	u := strings.TrimRight(strings.TrimSpace(raw), "/")
	if u != "" && !strings.Contains(u, "://") {
		u = "http://" + u
	}
	return u
}

var _ domain.CredentialSource = (*Session)(nil)
