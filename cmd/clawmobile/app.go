package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/spf13/cobra"

	"clawmobile/internal/adapter/api"
	"clawmobile/internal/adapter/storage"
	"clawmobile/internal/domain"
	"clawmobile/internal/infra/config"
	"clawmobile/internal/infra/logger"
	"clawmobile/internal/infra/tracer"
	"clawmobile/internal/usecase/pairing"
	"clawmobile/internal/usecase/reconnect"
)

// app is everything a command needs, built from the config file.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   domain.KVStore
	session *pairing.Session
	servers *pairing.ServerBook
	api     *api.Client
	closers []func() error
}

func openApp(ctx context.Context, opts *rootOptions) (*app, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrConfigLoad, err)
	}

	log, closeLog, err := logger.New(cfg.Logger)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: log, closers: []func() error{closeLog}}

	shutdown, err := tracer.Setup(ctx, cfg.Tracer)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("tracer: %w", err)
	}
	a.closers = append(a.closers, func() error { return shutdown(context.Background()) })

	store, closeStore, err := openStore(cfg.Storage, cfg.Queue.Key)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.store = store
	a.closers = append(a.closers, closeStore)

	// Session keeps no state besides the store, so the REST client can read
	// credentials through its own pairer-less instance.
	a.api = api.NewClient(pairing.NewSession(store, nil, log),
		api.WithHTTPClient(&http.Client{Timeout: cfg.API.Timeout}),
		api.WithRateLimit(cfg.API.RequestsPerMinute, cfg.API.Burst),
		api.WithBreaker(api.BreakerConfig{
			MaxFailures: cfg.API.Breaker.MaxFailures,
			Timeout:     cfg.API.Breaker.Timeout,
			Interval:    cfg.API.Breaker.Interval,
		}),
		api.WithLogger(log),
	)
	a.session = pairing.NewSession(store, a.api, log)
	a.servers = pairing.NewServerBook(store, nil, log)

	if err := a.seed(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// seed makes the configured server the active one. A configured URL without
// a token keeps the token of an earlier pairing with the same server.
func (a *app) seed(ctx context.Context) error {
	if a.cfg.Server.URL == "" {
		return nil
	}
	srv := domain.Server{URL: pairing.NormalizeURL(a.cfg.Server.URL), Token: a.cfg.Server.Token}
	if srv.Token == "" {
		if cur, err := a.session.ServerURL(ctx); err == nil && cur == srv.URL {
			return nil
		}
	}
	return a.session.Use(ctx, srv)
}

func openStore(cfg config.StorageConfig, queueKey string) (domain.KVStore, func() error, error) {
	var (
		inner      domain.KVStore
		closeInner = func() error { return nil }
	)
	switch cfg.Driver {
	case "memory":
		inner = storage.NewMemoryStore()
	default:
		db, err := storage.NewSQLiteStore(cfg.Path)
		if err != nil {
			return nil, nil, err
		}
		inner, closeInner = db, db.Close
	}
	if !cfg.EncryptSecrets {
		return inner, closeInner, nil
	}
	secure, err := storage.NewSecureStore(inner, cfg.Passphrase, pairing.KeyAuthToken, pairing.ServersKey, queueKey)
	if err != nil {
		_ = closeInner()
		return nil, nil, err
	}
	return secure, func() error { return errors.Join(secure.Close(), closeInner()) }, nil
}

// policy is the reconnect policy shared by the chat socket and the feed.
func (a *app) policy() reconnect.Policy {
	return reconnect.Policy{
		BaseDelay:   a.cfg.Reconnect.BaseDelay,
		MaxDelay:    a.cfg.Reconnect.MaxDelay,
		MaxAttempts: a.cfg.Reconnect.MaxAttempts,
	}
}

// credentials returns the active server URL and token.
func (a *app) credentials(ctx context.Context) (string, string, error) {
	serverURL, err := a.session.ServerURL(ctx)
	if err != nil {
		return "", "", err
	}
	token, err := a.session.Token(ctx)
	if err != nil {
		return "", "", err
	}
	return serverURL, token, nil
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}

// withApp opens the app for the duration of fn.
func withApp(cmd *cobra.Command, opts *rootOptions, fn func(ctx context.Context, a *app) error) (err error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := openApp(ctx, opts)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, a.Close()) }()
	return fn(ctx, a)
}
