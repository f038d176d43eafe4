package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/planwatch/edge/internal/auth"
	"github.com/planwatch/edge/internal/config"
	"github.com/planwatch/edge/internal/observability"
	"github.com/planwatch/edge/internal/plans"
	"github.com/planwatch/edge/internal/server"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("startup failed")
	}
}

func run() error {
	// Initialize structured logging from environment.
	level, parseErr := zerolog.ParseLevel(os.Getenv("EDGE_LOG_LEVEL"))
	if parseErr != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if os.Getenv("EDGE_LOG_FORMAT") == "text" {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	} else {
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	}

	ctx := context.Background()

	// Load configuration from environment.
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// Error reporting: Sentry when configured, logs otherwise.
	var reporter observability.Reporter = observability.LogReporter{}
	if cfg.Sentry.DSN != "" {
		sentryReporter, err := observability.NewSentryReporter(cfg.Sentry.DSN, cfg.Sentry.Environment, "")
		if err != nil {
			return err
		}
		defer sentryReporter.Close()
		reporter = sentryReporter
	}

	// Directory cache: in-process L1, optionally layered over Redis.
	memCache, err := plans.NewMemoryCache(cfg.Cache.MaxBytes)
	if err != nil {
		return err
	}
	var cache plans.Cache = memCache
	if cfg.Cache.RedisAddr != "" {
		redisCache, err := plans.NewRedisCache(ctx, cfg.Cache.RedisAddr, cfg.Cache.RedisPassword, cfg.Cache.RedisDB)
		if err != nil {
			return err
		}
		cache = plans.NewTieredCache(memCache, redisCache, cfg.Cache.TTL)
		log.Info().Str("addr", cfg.Cache.RedisAddr).Msg("shared directory cache enabled")
	}
	defer cache.Close()

	// Content backend client and the cached plan directory.
	client := plans.NewClient(cfg.Backend.URL, cfg.Backend.Token, cfg.Backend.Timeout)
	directory := plans.NewCachedDirectory(client, cache, cfg.Cache.TTL)

	// Authentication gate for password-protected hostnames.
	authSvc := auth.NewService(cfg.Auth.Secret, cfg.Auth.SessionTTL, cfg.Auth.ProtectedHosts)

	// Graceful shutdown on SIGINT / SIGTERM.
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	srv := server.New(ctx, cfg, directory, authSvc, reporter)

	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Msg("starting server")
		if startErr := srv.Start(ctx); startErr != nil {
			log.Error().Err(startErr).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if shutdownErr := srv.Shutdown(shutdownCtx); shutdownErr != nil {
		return shutdownErr
	}

	log.Info().Msg("stopped")
	return nil
}
