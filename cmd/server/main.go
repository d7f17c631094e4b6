package main

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
	"github.com/go-chi/render"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tendant/guided-content/pkg/guidedcontent/api"
	"github.com/tendant/guided-content/pkg/guidedcontent/config"
)

func main() {
	// Load .env file if it exists (silently ignore if not found)
	_ = godotenv.Load()

	cfg, err := config.Load(config.WithEnv())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n\nEnvironment:\n%s", err, config.EnvUsage())
		os.Exit(1)
	}
	logger := cfg.NewLogger(os.Stderr)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("Server exited with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.ServerConfig, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := cfg.Build(ctx, logger)
	if err != nil {
		return fmt.Errorf("failed to build service: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := app.Close(closeCtx); err != nil {
			logger.Error("Failed to close backends", "error", err)
		}
	}()

	if !cfg.AuthConfig().Enabled() {
		logger.Warn("Admin authentication disabled; mutations are open to any caller")
	}

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           newRouter(app, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Guided content server starting",
			"port", cfg.Port,
			"env", cfg.Environment,
			"database", cfg.DatabaseType,
			"kinds", app.Registry.KindIDs())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	logger.Info("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	logger.Info("Server exiting")
	return nil
}

func newRouter(app *config.App, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(app.Sink.Middleware)

	// CORS for development
	if app.Config.Environment == "development" {
		r.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Access-Control-Allow-Origin", "*")
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, "+api.AdminKeyHeader)

				if r.Method == http.MethodOptions {
					w.WriteHeader(http.StatusOK)
					return
				}

				next.ServeHTTP(w, r)
			})
		})
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, map[string]any{
			"status":      "healthy",
			"environment": app.Config.Environment,
			"kinds":       app.Registry.KindIDs(),
		})
	})
	r.Handle("/metrics", promhttp.HandlerFor(app.Metrics, promhttp.HandlerOpts{}))

	handler := api.NewHandler(app.Service,
		api.WithLogger(logger),
		api.WithAdminAuth(api.AdminAuth(app.Config.AuthConfig())))
	r.Mount("/api", handler.Routes())

	if app.Media != nil {
		r.Mount("/media", api.MediaRoutes(app.Media, logger))
	}
	return r
}
