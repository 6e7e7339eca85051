package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"accounts/internal/api"
	"accounts/internal/auth"
	"accounts/internal/blob"
	"accounts/internal/config"
	"accounts/internal/db"
	"accounts/internal/email"
	"accounts/internal/mongodb"
	"accounts/internal/store"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *configPath); err != nil {
		slog.Error("server failed", "error", err)
		stop()
		os.Exit(1)
	}
}

// run serves until ctx is cancelled. Every resource opened here is released
// before it returns, including on startup errors.
func run(ctx context.Context, configPath string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	slog.Info("starting server", "name", cfg.Server.Name)

	st, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("opening %s database: %w", cfg.Database.Driver, err)
	}
	defer func() {
		if err := st.Close(context.Background()); err != nil {
			slog.Error("database close error", "error", err)
		}
	}()

	backend, err := openBlobBackend(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initializing %s blob storage: %w", cfg.Storage.Driver, err)
	}
	blobService, err := blob.NewService(backend, cfg.Storage.UploadMaxBytes)
	if err != nil {
		return fmt.Errorf("initializing blob storage: %w", err)
	}
	slog.Info("blob storage initialized", "driver", cfg.Storage.Driver, "upload_max_bytes", cfg.Storage.UploadMaxBytes)

	hasher, err := auth.NewPasswordHasher(cfg.Auth.BcryptCost)
	if err != nil {
		return fmt.Errorf("configuring password hashing: %w", err)
	}
	tokens, err := auth.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	if err != nil {
		return fmt.Errorf("configuring tokens: %w", err)
	}

	emailService := email.NewSMTPService(
		cfg.Email.SMTP.Host,
		cfg.Email.SMTP.Port,
		cfg.Email.SMTP.Username,
		cfg.Email.SMTP.Password,
		cfg.Email.SMTP.From,
	)
	slog.Info("email configured", "host", cfg.Email.SMTP.Host, "port", cfg.Email.SMTP.Port)

	resets := auth.NewResetService(st.ResetTokens(), emailService, cfg.Auth.ResetTokenTTL, cfg.Auth.ResetURL)

	server, err := api.NewServer(cfg, api.Dependencies{
		Store:  st,
		Hasher: hasher,
		Tokens: tokens,
		Resets: resets,
		Blobs:  blobService,
	})
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	addr := cfg.Addr()
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           server,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr, "base_url", cfg.Server.BaseURL)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var listenErr error
	select {
	case <-ctx.Done():
	case listenErr = <-serveErr:
	}

	slog.Info("shutting down")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown error", "error", err)
	}

	slog.Info("server stopped")
	return listenErr
}

// openStore connects the configured backend. For sqlite it also starts the
// expired reset token sweeper, which stops with ctx.
func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.Database.Driver {
	case config.DriverMongo:
		connectCtx, cancel := context.WithTimeout(ctx, cfg.Database.ConnectTimeout)
		defer cancel()
		st, err := mongodb.Connect(connectCtx, cfg.Database.URI, cfg.Database.Name)
		if err != nil {
			return nil, err
		}
		slog.Info("database opened", "driver", cfg.Database.Driver, "name", cfg.Database.Name)
		return st, nil
	default:
		database, err := db.Open(ctx, cfg.Database.Path)
		if err != nil {
			return nil, err
		}
		st := db.NewStore(database)
		go db.NewCleanupService(st.ResetTokenRepository()).Start(ctx)
		slog.Info("database opened", "driver", cfg.Database.Driver, "path", cfg.Database.Path)
		return st, nil
	}
}

func openBlobBackend(ctx context.Context, cfg *config.Config) (blob.Backend, error) {
	if cfg.Storage.Driver == config.StorageS3 {
		return blob.NewS3Backend(ctx, blob.S3Config{
			Region:    cfg.Storage.S3.Region,
			Bucket:    cfg.Storage.S3.Bucket,
			Endpoint:  cfg.Storage.S3.Endpoint,
			AccessKey: cfg.Storage.S3.AccessKey,
			SecretKey: cfg.Storage.S3.SecretKey,
		})
	}
	return blob.NewLocalBackend(cfg.Storage.Root)
}
