package main

import (
	"log"
	"log/slog"
	"net/http"
	"time"

	"shopadmin/internal/app"
	"shopadmin/internal/cache"
	"shopadmin/internal/config"
	"shopadmin/internal/server"
	"shopadmin/internal/util"
	"shopadmin/pkg/auth"
	"shopadmin/pkg/domain"
	"shopadmin/pkg/storage"
	"shopadmin/pkg/store"
)

func main() {
	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	sessionTTL, err := config.ParseSessionTTL(cfg.SessionTTL)
	if err != nil {
		log.Fatalf("failed to parse session TTL: %v", err)
	}

	logger := util.InitLogger(cfg.LogLevel)

	db, err := store.NewGormStore(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}

	objects, err := storage.NewMinioStore(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
	if err != nil {
		log.Fatalf("failed to connect object storage: %v", err)
	}

	listings, err := cache.NewListingCache(cfg.RedisAddr, cfg.RedisPassword, 5*time.Minute)
	if err != nil {
		log.Fatalf("failed to connect redis: %v", err)
	}

	tokens, err := auth.NewTokenIssuer(cfg.SessionSecret, sessionTTL)
	if err != nil {
		log.Fatalf("failed to init token issuer: %v", err)
	}

	appCore, err := app.New(app.Config{
		Store:    db,
		Assets:   storage.NewAssetStore(objects),
		Listings: listings,
		Tokens:   tokens,
	})
	if err != nil {
		log.Fatalf("failed to init app: %v", err)
	}

	if cfg.SeedAdminEmail != "" {
		if err := seedAdmin(db, cfg); err != nil {
			log.Fatalf("failed to seed admin: %v", err)
		}
	}

	httpServer := server.New(server.Config{
		App:            appCore,
		Tokens:         tokens,
		SessionTTL:     sessionTTL,
		MaxUploadBytes: cfg.MaxUploadBytes,
	})

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	slog.Info("admin server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "err", err)
	}
}

// seedAdmin guarantees one admin account exists so a fresh deployment can
// log in. The insert is idempotent; an existing row wins.
func seedAdmin(db store.Store, cfg config.FileConfig) error {
	hash, err := auth.HashPassword(cfg.SeedAdminSecret)
	if err != nil {
		return err
	}
	name := cfg.SeedAdminName
	if name == "" {
		name = "Administrator"
	}
	return db.EnsureAdmin(domain.User{
		ID:           util.NewID(),
		Name:         name,
		Email:        cfg.SeedAdminEmail,
		PasswordHash: hash,
		Role:         domain.RoleAdmin,
		CreatedAt:    time.Now().UTC(),
	})
}
