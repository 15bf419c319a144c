package api

import (
	"log/slog"
	"time"

	"github.com/felixgeelhaar/audiogate/internal/admin"
	"github.com/felixgeelhaar/audiogate/internal/auth"
	"github.com/felixgeelhaar/audiogate/internal/credential"
	"github.com/felixgeelhaar/audiogate/internal/upload"
)

// App holds all application dependencies
type App struct {
	Sessions *auth.Service
	Gate     *auth.Gate
	Admin    *admin.Service
	Uploads  *upload.Service

	SessionTTL   time.Duration
	SecureCookie bool
	Logger       *slog.Logger
}

// AppConfig holds configuration for application initialization
type AppConfig struct {
	Repo         auth.Repository
	Vault        *credential.Vault
	ObjectStore  upload.ObjectStore
	Publisher    upload.JobPublisher
	UploadPolicy upload.Policy
	SessionTTL   time.Duration
	SecureCookie bool
	Logger       *slog.Logger
}

// NewApp creates a new application instance with all dependencies wired
func NewApp(cfg AppConfig) *App {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	sessions := auth.NewService(cfg.Repo, cfg.Vault, cfg.SessionTTL)
	validator := upload.NewValidator(cfg.UploadPolicy)

	ttl := cfg.SessionTTL
	if ttl <= 0 {
		ttl = auth.DefaultSessionTTL
	}

	return &App{
		Sessions:     sessions,
		Gate:         auth.NewGate(sessions),
		Admin:        admin.NewService(cfg.Repo, cfg.Vault),
		Uploads:      upload.NewService(validator, cfg.ObjectStore, cfg.Publisher, logger),
		SessionTTL:   ttl,
		SecureCookie: cfg.SecureCookie,
		Logger:       logger,
	}
}
