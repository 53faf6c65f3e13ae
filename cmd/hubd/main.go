package main

import (
	"context"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/signware/hubsync/internal/config"
	"github.com/signware/hubsync/internal/hub"
	"github.com/signware/hubsync/pkg/objectstore"
)

func main() {
	configPath := flag.String("config", "configs/hubd.yaml", "path to the hubd configuration file")
	flag.Parse()

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if level, err := zerolog.ParseLevel(cfg.Logging.Level); err == nil {
		logger = logger.Level(level)
	}

	db, err := gorm.Open(postgres.Open(cfg.Database.DSN), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to open database")
	}
	if err := hub.Migrate(db); err != nil {
		logger.Fatal().Err(err).Msg("Failed to run database migrations")
	}

	// Optional object storage for presigned content downloads. When
	// disabled, content files are served straight off the local disk.
	var store hub.ObjectStore
	if cfg.ObjectStorage.Enabled {
		objStorage := objectstore.NewObjectStorage(cfg.ObjectStorage.Bucket)
		if err := objStorage.Connect(cfg.ObjectStorage.Endpoint, cfg.ObjectStorage.AccessKey,
			cfg.ObjectStorage.SecretKey, cfg.ObjectStorage.UseSSL); err != nil {
			logger.Fatal().Err(err).Msg("Failed to connect to object storage")
		}
		store = objStorage
	}

	repo := hub.NewRepo(db)
	registry := hub.NewRegistry(repo, logger)
	manifest := hub.NewManifestService(repo, logger)
	ingest := hub.NewIngestService(repo, logger)

	router := mux.NewRouter()
	httpAPI := hub.NewHTTP(registry, manifest, ingest, repo, cfg.Content.Dir, store,
		cfg.Auth.RequireToken, logger)
	httpAPI.RegisterRoutes(router)

	bind := net.JoinHostPort(cfg.Server.Address, cfg.Server.Port)
	server := &http.Server{
		Addr:         bind,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info().Str("addr", bind).Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)
	<-stopCh

	logger.Info().Msg("Shutting down gracefully...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown failed")
	}
}
