package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"phatsurf/internal/config"
	"phatsurf/internal/db"
	"phatsurf/internal/http/middleware"
	"phatsurf/internal/http/router"
	"phatsurf/internal/logging"
	"phatsurf/internal/security"
	"phatsurf/internal/users"
	"phatsurf/internal/web"
)

func main() {
	configPath := flag.String("config", envOr("PHATSURF_CONFIG", config.DefaultPath), "path to the YAML config file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := logging.New(os.Stdout, cfg.LogFormat, cfg.Level())
	ctx := context.Background()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error(ctx, "server stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger logging.Logger) error {
	// Initialize database
	database, err := db.Init(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return err
	}
	defer database.Close()

	hasher := security.NewHasher(cfg.BcryptCost)
	sessionStore := security.NewSessionStore([]byte(cfg.Secret), security.SessionOptions{
		MaxAge: time.Duration(cfg.SessionMaxAge),
		Secure: cfg.CookieSecure,
	})
	pages, err := web.NewRenderer()
	if err != nil {
		return err
	}

	var protect func(http.Handler) http.Handler
	if cfg.CSRFEnabled() {
		protect = middleware.CSRF([]byte(cfg.Secret), cfg.CookieSecure, logger)
	} else {
		logger.Warn(ctx, "csrf protection disabled", "testing", cfg.Testing, "debug", cfg.Debug)
	}

	// Setup router
	r := router.Setup(router.Deps{
		Users:    users.NewRepository(database.Collection(users.CollectionName), hasher),
		Sessions: sessionStore,
		Verifier: hasher,
		Pages:    pages,
		Log:      logger,
		CSRF:     protect,
	})

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info(ctx, "starting server", "addr", srv.Addr, "driver", cfg.DBDriver, "debug", cfg.Debug)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info(context.Background(), "shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
