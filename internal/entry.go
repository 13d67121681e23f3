package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/halvard/raido/internal/api"
	"github.com/halvard/raido/internal/export"
	"github.com/halvard/raido/internal/exportlog"
	"github.com/halvard/raido/internal/sse"
	"github.com/halvard/raido/internal/watch"
)

// Run starts the watch daemon: a vault watcher auto-exporting changed
// documents plus a local status API with an SSE event stream.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config
	if cfg.Watch.Route == "" {
		return fmt.Errorf("watch.route must be set for watch mode")
	}
	route, ok := cfg.FindRoute(cfg.Watch.Route)
	if !ok {
		return fmt.Errorf("watch route %q is not defined", cfg.Watch.Route)
	}

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("vault_path", cfg.Vault.Path),
		slog.String("service_url", cfg.Service.URL),
		slog.String("watch_route", cfg.Watch.Route),
		slog.String("log_level", cfg.App.LogLevel.String()))

	rt, err := NewRuntime(cfg, logger)
	if err != nil {
		return err
	}
	defer rt.Close()

	// SSE broker for export events.
	broker := sse.NewBroker()
	defer broker.Close()

	// Status API router.
	var ledger exportlog.Log
	if rt.Log != nil {
		ledger = rt.Log
	}
	apiRouter := api.NewRouter(rt.Exporter, ledger, cfg.Routes, cfg.Auth.Enabled(), cfg.Auth.Token, broker)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	logger.Info("Daemon starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Start vault watcher driving auto-exports.
	g.Go(func() error {
		return watch.Run(gCtx, rt.Store.Root(), cfg.Watch.Debounce(), logger, func(path string) {
			exportChanged(gCtx, rt, broker, path, route)
		})
	})

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down daemon...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Daemon error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Daemon stopped successfully")
	return nil
}

// exportChanged runs one watcher-triggered export and publishes its
// lifecycle to the SSE broker. Failures are logged, never fatal for the
// daemon.
func exportChanged(ctx context.Context, rt *Runtime, broker *sse.Broker, path string, route export.Route) {
	broker.PublishExportEvent("started", path, route.Name, "")

	res, err := rt.Exporter.Export(ctx, path, route, export.Options{})
	if err != nil {
		rt.Logger.Warn("auto-export failed",
			slog.String("path", path),
			slog.String("route", route.Name),
			slog.String("error", err.Error()))
		broker.PublishExportEvent("failed", path, route.Name, err.Error())
		return
	}
	if res.Skipped {
		broker.PublishExportEvent("skipped", path, route.Name, "")
		return
	}

	detail := ""
	if len(res.Failed) > 0 {
		detail = fmt.Sprintf("%d images failed to migrate", len(res.Failed))
	}
	broker.PublishExportEvent("succeeded", path, route.Name, detail)
}
