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
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tendant/chi-demo/app"
	"github.com/tendant/simple-statement/pkg/simplestatement/api"
	"github.com/tendant/simple-statement/pkg/simplestatement/config"
	"github.com/tendant/simple-statement/pkg/simplestatement/presigned"
	"github.com/tendant/simple-statement/pkg/simplestatement/ratelimit"
	repopg "github.com/tendant/simple-statement/pkg/simplestatement/repo/postgres"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to load .env", "err", err)
	}

	cfg, err := config.Load(config.WithEnv())
	if err != nil {
		slog.Error("Failed to load server configuration", "err", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped", "err", err)
		os.Exit(1)
	}
}

func run(cfg *config.ServerConfig, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.UsesPostgres() {
		if err := repopg.Migrate(cfg.DatabaseURL, cfg.DBSchema, logger); err != nil {
			return err
		}
	}

	comps, err := cfg.Build(ctx, logger)
	if err != nil {
		return err
	}
	defer comps.Close()

	secret, err := cfg.JWTSecret()
	if err != nil {
		return err
	}
	auth, err := api.NewTokenAuth(secret)
	if err != nil {
		return err
	}

	if fw, ok := comps.Limiter.(*ratelimit.FixedWindow); ok {
		go fw.RunSweeper(ctx, cfg.RateLimit.Window())
	}

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           newRouter(cfg, comps, auth, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("statement server starting",
			"port", cfg.Port,
			"env", cfg.Environment,
			"storage", cfg.Storage.Backend,
			"rate_limit_backend", cfg.RateLimit.Backend,
			"dev_tokens", cfg.Auth.EnableDevTokens)
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

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

// newRouter mounts health, metrics, signed object downloads and the API.
// Client addresses come from proxy headers only with TrustProxyHeaders.
func newRouter(cfg *config.ServerConfig, comps *config.Components, auth *api.TokenAuth, logger *slog.Logger) *chi.Mux {
	r := chi.NewRouter()
	if cfg.TrustProxyHeaders {
		r.Use(middleware.RealIP)
	}
	r.Use(middleware.Logger)

	app.RoutesHealthz(r)
	app.RoutesHealthzReady(r)
	r.Handle("/metrics", promhttp.Handler())

	if comps.Signer != nil {
		r.Handle(comps.Signer.PathPrefix()+"*", presigned.NewHandler(comps.Signer, comps.ObjectStore))
	}

	r.Mount("/api/v1", api.NewRouter(api.RouterConfig{
		Service:         comps.Service,
		AuditRepository: comps.Store,
		Limiter:         comps.Limiter,
		Recorder:        comps.Recorder,
		Auth:            auth,
		MaxUploadBytes:  cfg.Upload.MaxBytes,
		EnableDevTokens: cfg.Auth.EnableDevTokens,
		Logger:          logger,
	}))
	return r
}
