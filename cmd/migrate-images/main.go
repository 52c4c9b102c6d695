package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	appmedia "github.com/flora/backend/internal/application/media"
	"github.com/flora/backend/internal/infrastructure/config"
	"github.com/flora/backend/internal/infrastructure/logger"
	"github.com/flora/backend/internal/infrastructure/persistence"
	"github.com/flora/backend/internal/infrastructure/storage"
	"go.uber.org/zap"
)

func main() {
	var (
		dryRun   bool
		timeout  time.Duration
		logLevel string
	)
	flag.BoolVar(&dryRun, "dry-run", false, "Report what would be migrated without uploading or updating flowers")
	flag.DurationVar(&timeout, "download-timeout", 30*time.Second, "Timeout for each image download")
	flag.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flag.Parse()

	logCfg := logger.DefaultConfig()
	logCfg.Level = logLevel
	log, err := logger.New(logCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration", zap.Error(err))
	}
	if !cfg.Storage.Enabled {
		log.Fatal("Object storage is disabled, set FLORA_STORAGE_ENABLED=true")
	}

	db, err := persistence.NewDatabase(&cfg.Database,
		persistence.WithLogger(logger.NewGormLogger(log, logger.MapGormLogLevel("warn"))))
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	store, err := storage.NewS3ObjectStorage(&cfg.Storage, storage.WithLogger(log))
	if err != nil {
		log.Fatal("Failed to create object storage", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if !dryRun {
		if err := store.EnsureBucket(ctx); err != nil {
			log.Fatal("Bucket is not usable", zap.String("bucket", store.Bucket()), zap.Error(err))
		}
	}

	svc := appmedia.NewService(
		persistence.NewGormFlowerRepository(db.DB),
		persistence.NewGormTransactionScope(db.DB),
		store,
		storage.NewHTTPDownloader(timeout),
		cfg.Storage.PublicBaseURL,
		cfg.Storage.Prefix,
		log,
	)

	report, err := svc.MigrateImages(ctx, appmedia.MigrateOptions{DryRun: dryRun})
	if err != nil {
		log.Fatal("Image migration failed", zap.Error(err))
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(report)

	log.Info("Image migration finished",
		zap.Bool("dry_run", report.DryRun),
		zap.Int("flowers", report.Flowers),
		zap.Int("migrated", report.Migrated),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", len(report.Failures)),
	)
	if len(report.Failures) > 0 {
		os.Exit(1)
	}
}
