package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	appidentity "github.com/flora/backend/internal/application/identity"
	"github.com/flora/backend/internal/infrastructure/auth"
	"github.com/flora/backend/internal/infrastructure/cache"
	"github.com/flora/backend/internal/infrastructure/config"
	"github.com/flora/backend/internal/infrastructure/logger"
	"github.com/flora/backend/internal/infrastructure/persistence"
	"go.uber.org/zap"
)

func main() {
	var (
		email    string
		name     string
		password string
	)
	flag.StringVar(&email, "email", "", "Admin email (required)")
	flag.StringVar(&name, "name", "", "Display name; kept when resetting an existing admin")
	flag.StringVar(&password, "password", "", "Password; falls back to FLORA_ADMIN_PASSWORD")
	flag.Parse()

	if password == "" {
		password = os.Getenv("FLORA_ADMIN_PASSWORD")
	}
	if email == "" || password == "" {
		fmt.Fprintln(os.Stderr, "Usage: seed-admin -email <email> [-name <name>] [-password <password>]")
		os.Exit(2)
	}

	log, err := logger.New(logger.DefaultConfig())
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

	db, err := persistence.NewDatabase(&cfg.Database,
		persistence.WithLogger(logger.NewGormLogger(log, logger.MapGormLogLevel("warn"))))
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	// a reset revokes the admin's tokens in the blacklist the server reads
	var blacklist auth.TokenBlacklist
	if cfg.Redis.Enabled {
		client, err := cache.NewRedisClient(cfg.Redis)
		if err != nil {
			log.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer client.Close()
		blacklist = auth.NewRedisTokenBlacklist(client)
	}

	authService := appidentity.NewAuthService(
		persistence.NewGormCustomerRepository(db.DB),
		persistence.NewGormAdminUserRepository(db.DB),
		auth.NewJWTService(cfg.JWT),
		blacklist,
		cfg.POS.PhoneRegion,
		log,
	)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	admin, created, err := authService.SeedAdmin(ctx, email, name, password)
	if err != nil {
		log.Fatal("Failed to seed admin", zap.Error(err))
	}
	action := "reset"
	if created {
		action = "created"
	}
	log.Info("Admin "+action, zap.String("email", admin.Email), zap.String("id", admin.ID.String()))
}
