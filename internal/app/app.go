package app

import (
	"context"
	"errors"
	"fmt"
	stdhttp "net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/keyroom-server/internal/announce"
	"github.com/vovakirdan/keyroom-server/internal/auth"
	"github.com/vovakirdan/keyroom-server/internal/config"
	"github.com/vovakirdan/keyroom-server/internal/core"
	"github.com/vovakirdan/keyroom-server/internal/keys"
	"github.com/vovakirdan/keyroom-server/internal/metrics"
	"github.com/vovakirdan/keyroom-server/internal/session"
	"github.com/vovakirdan/keyroom-server/internal/store"
	"github.com/vovakirdan/keyroom-server/internal/store/badger"
	"github.com/vovakirdan/keyroom-server/internal/store/file"
	"github.com/vovakirdan/keyroom-server/internal/store/sqlite"
	transporthttp "github.com/vovakirdan/keyroom-server/internal/transport/http"
)

// App wires together core and transport layers.
type App struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	hub             *core.Hub
	store           store.Store
	log             *zerolog.Logger
}

// New constructs the application with provided configuration.
func New(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	st, err := OpenStore(cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}
	logger.Info().Str("backend", cfg.Storage.Backend).Msg("store initialized")

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	hub := core.NewHub(
		core.WithHistoryLimit(cfg.Chat.HistoryLimit),
		core.WithMaxTextLength(cfg.Chat.MaxTextLength),
		core.WithLogger(logger),
		core.WithMetrics(m),
	)
	keySvc := keys.NewService(ctx, st, logger,
		keys.WithCodeLength(cfg.Keys.CodeLength),
		keys.WithMetrics(m),
	)
	channel := announce.New(ctx, st, hub, logger,
		announce.WithDefault(cfg.WelcomeText),
		announce.WithMetrics(m),
	)
	hub.SetAnnouncementSource(channel)

	authz := auth.FromConfig(cfg.Admin)
	if !authz.Enabled() {
		logger.Warn().Msg("admin secret not set, admin api disabled")
	}

	server := transporthttp.NewServer(transporthttp.Services{
		Hub:           hub,
		Keys:          keySvc,
		Sessions:      session.NewManager(cfg.Session.TTL),
		Announcements: channel,
		Admin:         authz,
		Gatherer:      reg,
	}, cfg, logger)

	return &App{
		server:          server,
		shutdownTimeout: cfg.ShutdownTimeout,
		hub:             hub,
		store:           st,
		log:             logger,
	}, nil
}

// OpenStore opens the configured persistence backend.
func OpenStore(cfg config.StorageConfig) (store.Store, error) {
	switch cfg.Backend {
	case config.BackendFile:
		return file.New(cfg.KeysFile, cfg.AnnouncementFile), nil
	case config.BackendSQLite:
		st, err := sqlite.New(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return st, nil
	case config.BackendBadger:
		st, err := badger.Open(cfg.BadgerDir)
		if err != nil {
			return nil, err
		}
		return st, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

// Run starts the HTTP server and blocks until context cancellation or fatal error.
func (a *App) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)

	hubCtx, stopHub := context.WithCancel(ctx)
	defer stopHub()
	go a.hub.Run(hubCtx)

	go func() {
		a.log.Info().Str("addr", a.server.Addr).Msg("http server listening")
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	select {
	case err := <-serverErr:
		a.cleanup()
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		a.log.Info().Msg("shutting down http server")
		// Hijacked websocket connections are not tracked by Shutdown; stopping
		// the hub closes their event streams.
		stopHub()
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			a.cleanup()
			return err
		}

		a.cleanup()
		return <-serverErr
	}
}

// cleanup closes the store and other resources.
func (a *App) cleanup() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
}
