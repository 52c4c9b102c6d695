package telemetry

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DBConfig controls database instrumentation
type DBConfig struct {
	Tracing            bool
	LogFullSQL         bool // include bind variables in spans; never in production
	SlowQueryThreshold time.Duration
	DBName             string
}

// DBInstrumentation is a GORM plugin that adds otelgorm spans, query metrics
// and slow query marking
type DBInstrumentation struct {
	config        DBConfig
	logger        *zap.Logger
	queryTotal    metric.Int64Counter
	queryDuration metric.Float64Histogram
	slowQuery     metric.Int64Counter
}

type queryStartKey struct{}

// NewDBInstrumentation creates the plugin. meter may be a no-op meter.
func NewDBInstrumentation(meter metric.Meter, cfg DBConfig, logger *zap.Logger) (*DBInstrumentation, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.SlowQueryThreshold <= 0 {
		cfg.SlowQueryThreshold = 200 * time.Millisecond
	}
	if cfg.DBName == "" {
		cfg.DBName = "postgresql"
	}

	in := NewInstruments(meter)
	d := &DBInstrumentation{
		config:        cfg,
		logger:        logger,
		queryTotal:    in.Counter("db_query_total", "Database queries by operation", "{query}"),
		queryDuration: in.Histogram("db_query_duration_seconds", "Database query latency", "s", DBDurationBuckets...),
		slowQuery:     in.Counter("db_slow_query_total", "Queries slower than the slow query threshold", "{query}"),
	}
	if err := in.Err(); err != nil {
		return nil, err
	}
	return d, nil
}

// Name implements gorm.Plugin
func (d *DBInstrumentation) Name() string {
	return "flora:db_instrumentation"
}

// Initialize implements gorm.Plugin
func (d *DBInstrumentation) Initialize(db *gorm.DB) error {
	cb := db.Callback()
	hooks := []struct {
		op       string
		register func(before, after func(*gorm.DB)) error
	}{
		{"create", func(b, a func(*gorm.DB)) error {
			if err := cb.Create().Before("gorm:create").Register("flora:before_create", b); err != nil {
				return err
			}
			return cb.Create().After("gorm:create").Register("flora:after_create", a)
		}},
		{"query", func(b, a func(*gorm.DB)) error {
			if err := cb.Query().Before("gorm:query").Register("flora:before_query", b); err != nil {
				return err
			}
			return cb.Query().After("gorm:query").Register("flora:after_query", a)
		}},
		{"update", func(b, a func(*gorm.DB)) error {
			if err := cb.Update().Before("gorm:update").Register("flora:before_update", b); err != nil {
				return err
			}
			return cb.Update().After("gorm:update").Register("flora:after_update", a)
		}},
		{"delete", func(b, a func(*gorm.DB)) error {
			if err := cb.Delete().Before("gorm:delete").Register("flora:before_delete", b); err != nil {
				return err
			}
			return cb.Delete().After("gorm:delete").Register("flora:after_delete", a)
		}},
		{"row", func(b, a func(*gorm.DB)) error {
			if err := cb.Row().Before("gorm:row").Register("flora:before_row", b); err != nil {
				return err
			}
			return cb.Row().After("gorm:row").Register("flora:after_row", a)
		}},
		{"raw", func(b, a func(*gorm.DB)) error {
			if err := cb.Raw().Before("gorm:raw").Register("flora:before_raw", b); err != nil {
				return err
			}
			return cb.Raw().After("gorm:raw").Register("flora:after_raw", a)
		}},
	}
	for _, h := range hooks {
		if err := h.register(d.before, d.after(h.op)); err != nil {
			return err
		}
	}

	// registered after our hooks so the span is still open when they run
	if d.config.Tracing {
		opts := []otelgorm.Option{otelgorm.WithDBName(d.config.DBName)}
		if !d.config.LogFullSQL {
			opts = append(opts, otelgorm.WithoutQueryVariables())
		}
		if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
			return err
		}
	}

	d.logger.Info("Database instrumentation enabled",
		zap.Bool("tracing", d.config.Tracing),
		zap.Duration("slow_query_threshold", d.config.SlowQueryThreshold),
	)
	return nil
}

func (d *DBInstrumentation) before(db *gorm.DB) {
	ctx := db.Statement.Context
	if ctx == nil {
		ctx = context.Background()
	}
	db.Statement.Context = context.WithValue(ctx, queryStartKey{}, time.Now())
}

func (d *DBInstrumentation) after(op string) func(*gorm.DB) {
	operation := strings.ToUpper(op)
	return func(db *gorm.DB) {
		ctx := db.Statement.Context
		if ctx == nil {
			return
		}
		start, ok := ctx.Value(queryStartKey{}).(time.Time)
		if !ok {
			return
		}
		elapsed := time.Since(start)
		table := db.Statement.Table
		if table == "" {
			table = "unknown"
		}

		op := With(AttrDBOperation.String(operation))
		d.queryTotal.Add(ctx, 1, op)
		d.queryDuration.Record(ctx, elapsed.Seconds(), op)
		slow := elapsed > d.config.SlowQueryThreshold
		if slow {
			d.slowQuery.Add(ctx, 1, With(AttrDBTable.String(table)))
		}

		span := trace.SpanFromContext(ctx)
		if !span.IsRecording() {
			return
		}
		span.SetAttributes(
			attribute.Int64("db.rows_affected", db.Statement.RowsAffected),
			attribute.String("db.sql.table", table),
		)
		if db.Error != nil && !errors.Is(db.Error, gorm.ErrRecordNotFound) {
			span.RecordError(db.Error)
			span.SetStatus(codes.Error, db.Error.Error())
		}
		if slow {
			span.SetAttributes(attribute.Bool("db.slow_query", true))
			span.AddEvent("slow_query", trace.WithAttributes(
				attribute.Int64("duration_ms", elapsed.Milliseconds()),
				attribute.Int64("threshold_ms", d.config.SlowQueryThreshold.Milliseconds()),
			))
		}
	}
}

// RegisterPoolMetrics observes connection pool usage on every metrics collection
func RegisterPoolMetrics(meter metric.Meter, sqlDB *sql.DB) error {
	open, err := meter.Int64ObservableGauge("db_pool_connections",
		metric.WithDescription("Connections in the pool by state"),
		metric.WithUnit("{connection}"))
	if err != nil {
		return err
	}
	maxOpen, err := meter.Int64ObservableGauge("db_pool_connections_max",
		metric.WithDescription("Maximum open connections"),
		metric.WithUnit("{connection}"))
	if err != nil {
		return err
	}
	waits, err := meter.Int64ObservableCounter("db_pool_wait_total",
		metric.WithDescription("Connections waited for"),
		metric.WithUnit("{wait}"))
	if err != nil {
		return err
	}
	_, err = meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		s := sqlDB.Stats()
		o.ObserveInt64(open, int64(s.Idle), metric.WithAttributes(AttrDBPoolState.String("idle")))
		o.ObserveInt64(open, int64(s.InUse), metric.WithAttributes(AttrDBPoolState.String("in_use")))
		o.ObserveInt64(open, int64(s.OpenConnections), metric.WithAttributes(AttrDBPoolState.String("open")))
		o.ObserveInt64(maxOpen, int64(s.MaxOpenConnections))
		o.ObserveInt64(waits, s.WaitCount)
		return nil
	}, open, maxOpen, waits)
	return err
}

var _ gorm.Plugin = (*DBInstrumentation)(nil)
