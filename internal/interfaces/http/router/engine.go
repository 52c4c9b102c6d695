package router

import (
	"net/http"

	"github.com/flora/backend/internal/infrastructure/logger"
	"github.com/flora/backend/internal/interfaces/http/dto"
	"github.com/flora/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// EngineConfig selects the global middleware of the engine
type EngineConfig struct {
	TrustedProxies []string
	Security       middleware.SecurityConfig
	CORS           middleware.CORSConfig
	BodyLimits     middleware.BodyLimits
	Tracing        middleware.TracingConfig
	Meter          metric.Meter // nil disables HTTP metrics
	Profiling      bool
	// Limiter throttles every request per client IP; nil disables it
	Limiter middleware.Limiter
}

// unobserved paths are kept out of traces and profiles
var unobserved = []string{"/health"}

// NewEngine builds a gin engine with the middleware stack in order:
// request ID, recovery, access log, tracing, metrics, profiling, security
// headers, CORS, body limit, rate limit.
func NewEngine(cfg EngineConfig, log *zap.Logger) *gin.Engine {
	engine := gin.New()
	if len(cfg.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log, unobserved...))
	if cfg.Tracing.Enabled {
		cfg.Tracing.SkipPaths = append(cfg.Tracing.SkipPaths, unobserved...)
		engine.Use(middleware.Tracing(cfg.Tracing)...)
	}
	if cfg.Meter != nil {
		engine.Use(middleware.HTTPMetrics(cfg.Meter, log))
	}
	if cfg.Profiling {
		engine.Use(middleware.Profiling(true, unobserved...))
	}
	engine.Use(middleware.SecureWithConfig(cfg.Security))
	engine.Use(middleware.CORSWithConfig(cfg.CORS))
	engine.Use(middleware.BodyLimit(cfg.BodyLimits))
	if cfg.Limiter != nil {
		engine.Use(middleware.RateLimit(cfg.Limiter, log))
	}

	engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, dto.NewErrorResponse(
			dto.ErrCodeNotFound, "Route not found", middleware.GetRequestID(c)))
	})
	return engine
}
