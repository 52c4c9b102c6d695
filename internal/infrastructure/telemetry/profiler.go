package telemetry

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"sync"

	"github.com/grafana/pyroscope-go"
	"go.uber.org/zap"
)

// ProfilerConfig holds Pyroscope settings
type ProfilerConfig struct {
	Enabled         bool
	ServerAddress   string
	ApplicationName string
	Version         string
	// Contention adds mutex and block profiles. The POS paths serialize on
	// row locks and Redis locks, so these show where requests queue.
	Contention bool
}

// contentionRate is the sampling rate for mutex and block profiles
const contentionRate = 5

func (c ProfilerConfig) profileTypes() []pyroscope.ProfileType {
	types := []pyroscope.ProfileType{
		pyroscope.ProfileCPU,
		pyroscope.ProfileAllocSpace,
		pyroscope.ProfileInuseSpace,
		pyroscope.ProfileGoroutines,
	}
	if c.Contention {
		types = append(types,
			pyroscope.ProfileMutexCount,
			pyroscope.ProfileMutexDuration,
			pyroscope.ProfileBlockCount,
			pyroscope.ProfileBlockDuration,
		)
	}
	return types
}

func (c ProfilerConfig) tags() map[string]string {
	tags := map[string]string{}
	if c.Version != "" {
		tags["version"] = c.Version
	}
	if hostname, err := os.Hostname(); err == nil {
		tags["hostname"] = hostname
	}
	return tags
}

// Profiler is a running Pyroscope session, or a no-op when profiling is off
type Profiler struct {
	session  *pyroscope.Profiler
	stopOnce sync.Once
	stopErr  error
}

// NewProfiler starts continuous profiling
func NewProfiler(cfg ProfilerConfig, logger *zap.Logger) (*Profiler, error) {
	if !cfg.Enabled {
		return &Profiler{}, nil
	}
	if cfg.ServerAddress == "" {
		return nil, errors.New("telemetry.pyroscope_url is required when profiling is enabled")
	}
	if cfg.Contention {
		runtime.SetMutexProfileFraction(contentionRate)
		runtime.SetBlockProfileRate(contentionRate)
	}

	session, err := pyroscope.Start(pyroscope.Config{
		ApplicationName: cfg.ApplicationName,
		ServerAddress:   cfg.ServerAddress,
		Logger:          pyroscopeLogger{logger.Named("pyroscope").Sugar()},
		Tags:            cfg.tags(),
		ProfileTypes:    cfg.profileTypes(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start Pyroscope profiler: %w", err)
	}
	logger.Info("Profiling enabled",
		zap.String("server_address", cfg.ServerAddress),
		zap.Bool("contention", cfg.Contention),
	)
	return &Profiler{session: session}, nil
}

// IsEnabled returns whether profiles are being collected
func (p *Profiler) IsEnabled() bool {
	return p.session != nil
}

// Stop flushes the last profiles. Later calls return the first result.
func (p *Profiler) Stop() error {
	p.stopOnce.Do(func() {
		if p.session == nil {
			return
		}
		if err := p.session.Stop(); err != nil {
			p.stopErr = fmt.Errorf("failed to stop profiler: %w", err)
		}
	})
	return p.stopErr
}

// pyroscopeLogger adapts zap to pyroscope's Debugf/Infof/Errorf logger
type pyroscopeLogger struct {
	*zap.SugaredLogger
}

var _ pyroscope.Logger = pyroscopeLogger{}
