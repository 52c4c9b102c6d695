package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/flora/backend/internal/infrastructure/config"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Database wraps the GORM handle together with its connection pool
type Database struct {
	DB  *gorm.DB
	sql *sql.DB
}

type openSettings struct {
	gorm    gorm.Config
	plugins []gorm.Plugin
}

// Option customizes how the database is opened
type Option func(*openSettings)

// WithLogger installs a GORM logger
func WithLogger(l gormlogger.Interface) Option {
	return func(s *openSettings) {
		s.gorm.Logger = l
	}
}

// WithPlugin installs a GORM plugin (tracing, query metrics) right after
// the connection is opened
func WithPlugin(p gorm.Plugin) Option {
	return func(s *openSettings) {
		s.plugins = append(s.plugins, p)
	}
}

// NewDatabase connects to PostgreSQL
func NewDatabase(cfg *config.DatabaseConfig, opts ...Option) (*Database, error) {
	return Open(postgres.Open(cfg.DSN()), cfg, opts...)
}

// Open connects through any dialector. Timestamps are written in UTC and
// writes run without GORM's implicit transaction; services open explicit
// ones through TransactionScope.
func Open(dialector gorm.Dialector, cfg *config.DatabaseConfig, opts ...Option) (*Database, error) {
	settings := openSettings{gorm: gorm.Config{
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
		SkipDefaultTransaction: true,
		NowFunc:                func() time.Time { return time.Now().UTC() },
	}}
	for _, opt := range opts {
		opt(&settings)
	}

	db, err := gorm.Open(dialector, &settings.gorm)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	for _, p := range settings.plugins {
		if err := db.Use(p); err != nil {
			return nil, fmt.Errorf("failed to install %s plugin: %w", p.Name(), err)
		}
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	if cfg != nil {
		configurePool(sqlDB, cfg)
	}
	return &Database{DB: db, sql: sqlDB}, nil
}

func configurePool(sqlDB *sql.DB, cfg *config.DatabaseConfig) {
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Minute)
	sqlDB.SetConnMaxIdleTime(time.Duration(cfg.ConnMaxIdleTime) * time.Minute)
}

// SQL exposes the pool for metrics registration
func (d *Database) SQL() *sql.DB { return d.sql }

// Ping is the readiness check used by /health
func (d *Database) Ping(ctx context.Context) error {
	return d.sql.PingContext(ctx)
}

func (d *Database) Close() error {
	return d.sql.Close()
}
