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

	"github.com/felixgeelhaar/audiogate/internal/api"
	"github.com/felixgeelhaar/audiogate/internal/auth"
	"github.com/felixgeelhaar/audiogate/internal/config"
	"github.com/felixgeelhaar/audiogate/internal/credential"
	"github.com/felixgeelhaar/audiogate/internal/queue"
	"github.com/felixgeelhaar/audiogate/internal/storage/postgres"
	"github.com/felixgeelhaar/audiogate/internal/storage/s3"
	"github.com/felixgeelhaar/audiogate/internal/storage/sqlite"
	"github.com/felixgeelhaar/audiogate/internal/upload"
)

func main() {
	if err := run(); err != nil {
		slog.Error("daemon error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	ctx := context.Background()

	repo, cleanup, err := openRepository(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	objectStore, err := s3.New(s3.Config{
		Endpoint:   cfg.S3Endpoint,
		Region:     cfg.S3Region,
		AccessKey:  cfg.S3AccessKey,
		SecretKey:  cfg.S3SecretKey,
		Bucket:     cfg.S3Bucket,
		UseSSL:     cfg.S3UseSSL,
		PutTimeout: cfg.S3PutTimeout,
	}, slog.Default())
	if err != nil {
		return fmt.Errorf("create object store: %w", err)
	}

	var publisher upload.JobPublisher
	if cfg.RabbitMQURL != "" {
		conn, err := queue.NewConnection(cfg.RabbitMQURL)
		if err != nil {
			return fmt.Errorf("connect to queue: %w", err)
		}
		defer conn.Close()
		publisher = queue.NewProducer(conn)
	} else {
		slog.Info("transcription queue disabled")
	}

	policy := upload.DefaultPolicy()
	if cfg.UploadPolicyFile != "" {
		policy, err = upload.LoadPolicy(cfg.UploadPolicyFile)
		if err != nil {
			return fmt.Errorf("load upload policy: %w", err)
		}
	}

	app := api.NewApp(api.AppConfig{
		Repo:         repo,
		Vault:        credential.NewVault(cfg.BcryptCost),
		ObjectStore:  objectStore,
		Publisher:    publisher,
		UploadPolicy: policy,
		SessionTTL:   cfg.SessionTTL,
		SecureCookie: !cfg.Debug,
		Logger:       slog.Default(),
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      api.NewRouter(app),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "port", cfg.Port, "driver", cfg.DatabaseDriver)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigCh:
		slog.Info("shutting down", "signal", sig)
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func openRepository(ctx context.Context, cfg *config.Config) (auth.Repository, func(), error) {
	switch cfg.DatabaseDriver {
	case "sqlite":
		db, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite: %w", err)
		}
		return sqlite.NewRepository(db), func() { db.Close() }, nil
	default:
		pool, err := postgres.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		return postgres.NewRepository(pool), pool.Close, nil
	}
}
