package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/p-n-ai/pai-academy/internal/catalog"
	"github.com/p-n-ai/pai-academy/internal/challenge"
	"github.com/p-n-ai/pai-academy/internal/httpapi"
	"github.com/p-n-ai/pai-academy/internal/platform/cache"
	"github.com/p-n-ai/pai-academy/internal/platform/config"
	"github.com/p-n-ai/pai-academy/internal/platform/database"
	"github.com/p-n-ai/pai-academy/internal/progress"
	"github.com/p-n-ai/pai-academy/internal/progression"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	slog.SetDefault(newLogger(os.Stdout, cfg.Log))

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	// Graceful shutdown on SIGTERM/SIGINT.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	handler, cleanup, err := buildHandler(ctx, cfg)
	if err != nil {
		slog.Error("failed to start", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
}

// newLogger builds the process logger from LEARN_LOG_LEVEL and LEARN_LOG_FORMAT.
func newLogger(w io.Writer, cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(cfg.Level))); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// buildHandler wires the catalog, stores, cache and grading into the HTTP
// handler. cleanup releases connections opened along the way.
func buildHandler(ctx context.Context, cfg *config.Config) (http.Handler, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (http.Handler, func(), error) {
		cleanup()
		return nil, func() {}, err
	}

	cat, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		return fail(fmt.Errorf("load catalog: %w", err))
	}

	svcCfg := progression.ServiceConfig{
		Catalog: cat,
		Evaluator: challenge.NewEvaluator(challenge.EvaluatorConfig{
			DescriptiveMode:  challenge.DescriptiveMode(cfg.Grading.DescriptiveMode),
			OverlapThreshold: cfg.Grading.OverlapThreshold,
		}),
	}
	checks := map[string]httpapi.Checker{}

	switch cfg.Store {
	case config.StorePostgres:
		db, err := database.New(ctx, cfg.Database)
		if err != nil {
			return fail(err)
		}
		closers = append(closers, db.Close)

		store, err := progress.NewPostgresStore(db.Pool)
		if err != nil {
			return fail(err)
		}
		svcCfg.Store = store
		svcCfg.Events = progression.NewPostgresEventLogger(db.Pool)
		checks["database"] = db
		slog.Info("using postgres progress store")
	default:
		svcCfg.Store = progress.NewMemoryStore()
		slog.Warn("using in-memory progress store; records are lost on restart")
	}

	if cfg.Cache.Enabled {
		c, err := cache.New(ctx, cfg.Cache)
		if err != nil {
			return fail(err)
		}
		closers = append(closers, func() { c.Close() })

		svcCfg.Cache = progression.NewRedisStatusCache(c)
		checks["cache"] = c
		slog.Info("section status cache enabled", "ttl_seconds", cfg.Cache.TTLSeconds)
	}

	srv, err := httpapi.New(httpapi.Config{
		Service:   progression.NewService(svcCfg),
		JWTSecret: cfg.Auth.JWTSecret,
		Checks:    checks,
	})
	if err != nil {
		return fail(err)
	}
	return srv.Handler(), cleanup, nil
}
