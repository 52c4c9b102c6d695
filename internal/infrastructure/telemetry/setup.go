package telemetry

import (
	"context"
	"errors"

	"github.com/flora/backend/internal/infrastructure/config"
	"go.uber.org/zap"
)

// Telemetry owns every provider started by Setup
type Telemetry struct {
	Tracer   *TracerProvider
	Meter    *MeterProvider
	Logs     *LoggerProvider
	Profiler *Profiler
}

// Setup starts profiling, tracing, metrics and log export according to cfg.
// Disabled parts are no-ops; the returned value is never nil on success.
// The profiler starts first so spans can be linked to profiles.
func Setup(ctx context.Context, cfg config.TelemetryConfig, build Build, logger *zap.Logger) (*Telemetry, error) {
	t := &Telemetry{}

	var err error
	if t.Profiler, err = NewProfiler(ProfilerConfig{
		Enabled:         cfg.ProfilingEnabled,
		ServerAddress:   cfg.PyroscopeURL,
		ApplicationName: cfg.ServiceName,
		Version:         build.Version,
		Contention:      cfg.ProfileContention,
	}, logger); err != nil {
		return nil, err
	}

	base := Config{
		Enabled:           cfg.Enabled,
		CollectorEndpoint: cfg.CollectorEndpoint,
		Insecure:          cfg.Insecure,
		SamplingRatio:     cfg.SamplingRatio,
		ServiceName:       cfg.ServiceName,
		ServiceVersion:    build.Version,
		Environment:       build.Environment,
	}

	traces := base
	traces.SpanProfiles = t.Profiler.IsEnabled()
	if t.Tracer, err = NewTracerProvider(ctx, traces, logger); err != nil {
		_ = t.Shutdown(ctx)
		return nil, err
	}

	metrics := base
	metrics.Enabled = cfg.Enabled && cfg.MetricsEnabled
	if t.Meter, err = NewMeterProvider(ctx, metrics, 0, logger); err != nil {
		_ = t.Shutdown(ctx)
		return nil, err
	}

	logs := base
	logs.Enabled = cfg.Enabled && cfg.LogsEnabled
	if t.Logs, err = NewLoggerProvider(ctx, logs, logger); err != nil {
		_ = t.Shutdown(ctx)
		return nil, err
	}
	return t, nil
}

// Shutdown flushes and stops everything that was started
func (t *Telemetry) Shutdown(ctx context.Context) error {
	var errs []error
	if t.Profiler != nil {
		errs = append(errs, t.Profiler.Stop())
	}
	if t.Logs != nil {
		errs = append(errs, t.Logs.Shutdown(ctx))
	}
	if t.Meter != nil {
		errs = append(errs, t.Meter.Shutdown(ctx))
	}
	if t.Tracer != nil {
		errs = append(errs, t.Tracer.Shutdown(ctx))
	}
	return errors.Join(errs...)
}
