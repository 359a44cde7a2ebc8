package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"vaultx/internal/config"
	"vaultx/internal/handler"
	"vaultx/internal/middleware"
	"vaultx/internal/repository"
	"vaultx/internal/service"

	_ "github.com/go-kivik/kivik/v4/couchdb"

	"github.com/go-kivik/kivik/v4"
	"github.com/rs/zerolog"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := config.NewLogger(cfg.Logging, cfg.Server.Env, os.Stderr)

	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("server stopped")
	}
}

func run(cfg *config.Config, logger zerolog.Logger) error {
	couchURL := fmt.Sprintf("http://%s:%s@%s:%s",
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.Host,
		cfg.Database.Port,
	)

	client, err := kivik.New("couch", couchURL)
	if err != nil {
		return fmt.Errorf("failed to connect to CouchDB: %w", err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	exists, err := client.DBExists(ctx, cfg.Database.Name)
	if err != nil {
		return fmt.Errorf("failed to check database existence: %w", err)
	}

	if !exists {
		if err := client.CreateDB(ctx, cfg.Database.Name); err != nil {
			return fmt.Errorf("failed to create database: %w", err)
		}
		logger.Info().Str("db", cfg.Database.Name).Msg("created database")
	}

	if err := ensureIndexes(ctx, client.DB(cfg.Database.Name)); err != nil {
		return err
	}

	userRepo := repository.NewUserRepository(client, cfg.Database.Name)
	blobRepo := repository.NewBlobRepository(client, cfg.Database.Name)

	authService := service.NewAuthService(userRepo, cfg.JWT.Secret, cfg.JWT.Expiration, cfg.JWT.RefreshTokenExpiration)
	userService := service.NewUserService(userRepo)
	blobService := service.NewBlobService(blobRepo, cfg.Storage.MaxBlobSize)

	var limiter *middleware.RateLimiter
	if cfg.RateLimit.Enabled {
		limiter = middleware.NewRateLimiter(cfg.RateLimit.RequestsPerMinute, 10*time.Minute)
	}

	router := handler.NewRouter(handler.Routes{
		Auth:        handler.NewAuthHandler(authService, logger),
		Users:       handler.NewUserHandler(userService),
		Blobs:       handler.NewBlobHandler(blobService, logger),
		JWTSecret:   cfg.JWT.Secret,
		Logger:      logger,
		AuthLimiter: limiter,
		CORS: middleware.CORSMiddleware(
			cfg.CORS.AllowedOrigins,
			cfg.CORS.AllowedMethods,
			cfg.CORS.AllowedHeaders,
		),
	})

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)

	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info().
			Str("addr", addr).
			Str("env", cfg.Server.Env).
			Str("couchdb", cfg.Database.Host+":"+cfg.Database.Port).
			Msg("starting vaultx storage server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server failed to start: %w", err)
		}
		return nil
	case <-quit:
	}

	logger.Info().Msg("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info().Msg("server stopped gracefully")
	return nil
}

// ensureIndexes creates the Mango index used by sign-in lookups.
func ensureIndexes(ctx context.Context, db *kivik.DB) error {
	index := map[string]interface{}{
		"fields": []string{"type", "email"},
	}
	if err := db.CreateIndex(ctx, "users", "by-email", index); err != nil {
		return fmt.Errorf("failed to create email index: %w", err)
	}
	return nil
}
