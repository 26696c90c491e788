package app

import (
	"context"
	"errors"
	"fmt"
	stdhttp "net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/groupchat-server/internal/config"
	"github.com/vovakirdan/groupchat-server/internal/core"
	"github.com/vovakirdan/groupchat-server/internal/store"
	"github.com/vovakirdan/groupchat-server/internal/store/cache"
	"github.com/vovakirdan/groupchat-server/internal/store/postgres"
	"github.com/vovakirdan/groupchat-server/internal/store/sqlite"
	transporthttp "github.com/vovakirdan/groupchat-server/internal/transport/http"
)

const connectTimeout = 10 * time.Second

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
	st, err := OpenStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	hub := core.NewHub(st, transporthttp.EncodeEnvelope, core.Options{
		HistoryLimit: cfg.HistoryLimit,
		Fanout:       cfg.BroadcastConcurrency,
	}, logger)
	server := transporthttp.NewServer(hub, st, cfg, logger)

	return &App{
		server:          server,
		shutdownTimeout: cfg.ShutdownTimeout,
		hub:             hub,
		store:           st,
		log:             logger,
	}, nil
}

// OpenStore selects the backend from cfg.DatabaseURL and wraps it with the
// Redis history cache when cfg.RedisAddr is set.
func OpenStore(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (store.Store, error) {
	var (
		st  store.Store
		err error
	)

	if postgres.IsURL(cfg.DatabaseURL) {
		connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
		defer cancel()
		st, err = postgres.New(connectCtx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("init store: %w", err)
		}
		logger.Info().Str("backend", "postgres").Msg("database initialized")
	} else {
		st, err = sqlite.New(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("init store: %w", err)
		}
		logger.Info().Str("backend", "sqlite").Str("db_path", cfg.DatabaseURL).Msg("database initialized")
	}

	if cfg.RedisAddr == "" {
		return st, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		// The cache falls back to the backend on every Redis error.
		logger.Warn().Err(err).Str("redis_addr", cfg.RedisAddr).Msg("redis unreachable, history cache degraded")
	} else {
		logger.Info().Str("redis_addr", cfg.RedisAddr).Msg("history cache enabled")
	}

	window := cfg.HistoryLimit
	if window <= 0 {
		window = core.DefaultHistoryLimit
	}
	return cache.New(st, client, window, cfg.HistoryCacheTTL, logger), nil
}

// Run starts the HTTP server and blocks until context cancellation or fatal error.
func (a *App) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)

	go func() {
		a.log.Info().Str("addr", a.server.Addr).Msg("starting groupchat server")
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
		// Hijacked websocket connections are not tracked by Shutdown.
		a.hub.Shutdown(shutdownCtx, "server shutting down")
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			a.cleanup()
			return err
		}

		a.cleanup()
		return <-serverErr
	}
}

// cleanup closes database and other resources.
func (a *App) cleanup() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
}
