// SPDX-License-Identifier: MIT

// Command daemon runs the chandir playlist distribution service.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/chandir/chandir/internal/api"
	"github.com/chandir/chandir/internal/batch"
	"github.com/chandir/chandir/internal/config"
	"github.com/chandir/chandir/internal/log"
	"github.com/chandir/chandir/internal/probe"
	"github.com/chandir/chandir/internal/store"
	"github.com/chandir/chandir/internal/testlock"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "path to config file (YAML)")
	flag.Parse()

	if *showVersion {
		fmt.Printf("chandir %s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	// Safe defaults until config is loaded.
	log.Configure(log.Config{
		Level:   "info",
		Service: "chandir",
		Version: version,
	})
	logger := log.WithComponent("daemon")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal().
			Err(err).
			Str(log.FieldEvent, "config.load_failed").
			Msg("failed to load configuration")
	}

	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("daemon exited with error")
	}
	logger.Info().Msg("daemon stopped")
}

func run(ctx context.Context, cfg config.AppConfig, logger zerolog.Logger) error {
	st, err := store.Open(cfg.DBPath, store.DefaultConfig())
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() { _ = st.Close() }()

	lock, err := newLock(cfg)
	if err != nil {
		return fmt.Errorf("init test lock: %w", err)
	}

	prober := probe.New(probe.WithTimeout(cfg.ProbeTimeout))
	orch := batch.New(st, prober, lock, batch.WithWorkers(cfg.TestWorkers))

	srv := api.New(st, orch, api.Config{
		AdminToken:        cfg.AdminToken,
		PlaylistRateLimit: cfg.PlaylistRateLimit,
		Version:           version,
	})

	apiServer := &http.Server{
		Addr:              cfg.Listen,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	var metricsServer *http.Server
	if cfg.MetricsEnabled && cfg.MetricsListen != "" && cfg.MetricsListen != cfg.Listen {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsServer = &http.Server{
			Addr:              cfg.MetricsListen,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info().
			Str("listen", cfg.Listen).
			Str(log.FieldEvent, "server.started").
			Msg("API server listening")
		if err := apiServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("api server: %w", err)
		}
		return nil
	})

	if metricsServer != nil {
		g.Go(func() error {
			logger.Info().
				Str("listen", cfg.MetricsListen).
				Msg("metrics server listening")
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Str(log.FieldEvent, "server.shutdown").Msg("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		var errs []error
		if err := apiServer.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("api shutdown: %w", err))
		}
		if metricsServer != nil {
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				errs = append(errs, fmt.Errorf("metrics shutdown: %w", err))
			}
		}
		return errors.Join(errs...)
	})

	return g.Wait()
}

// newLock picks the advisory lock backend: Redis when configured, so
// multiple instances share one lock, otherwise process-local.
func newLock(cfg config.AppConfig) (testlock.Lock, error) {
	if cfg.RedisAddr == "" {
		return testlock.NewMemoryLock(testlock.DefaultTTL), nil
	}
	return testlock.NewRedisLock(testlock.RedisConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}, testlock.DefaultTTL)
}
