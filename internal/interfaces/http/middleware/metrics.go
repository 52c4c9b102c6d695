package middleware

import (
	"time"

	"github.com/flora/backend/internal/infrastructure/telemetry"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

type httpMetrics struct {
	requests       metric.Int64Counter
	duration       metric.Float64Histogram
	responseSize   metric.Float64Histogram
	activeRequests metric.Int64UpDownCounter
}

var responseSizeBuckets = []float64{100, 1000, 10000, 100000, 1000000, 10000000}

func newHTTPMetrics(meter metric.Meter) (*httpMetrics, error) {
	in := telemetry.NewInstruments(meter)
	m := &httpMetrics{
		requests:       in.Counter("http_server_request_total", "Total number of HTTP requests", "{request}"),
		duration:       in.Histogram("http_server_request_duration_seconds", "HTTP request latency", "s", telemetry.HTTPDurationBuckets...),
		responseSize:   in.Histogram("http_server_response_size_bytes", "HTTP response body size", "By", responseSizeBuckets...),
		activeRequests: in.UpDownCounter("http_server_active_requests", "Number of HTTP requests in flight", "{request}"),
	}
	return m, in.Err()
}

// HTTPMetrics records request count, latency, response size and in-flight
// requests per route. A nil meter or a failed setup yields a pass-through.
func HTTPMetrics(meter metric.Meter, log *zap.Logger) gin.HandlerFunc {
	if meter == nil {
		return func(c *gin.Context) { c.Next() }
	}
	m, err := newHTTPMetrics(meter)
	if err != nil {
		if log != nil {
			log.Warn("HTTP metrics disabled", zap.Error(err))
		}
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		ctx := c.Request.Context()
		start := time.Now()
		m.activeRequests.Add(ctx, 1)
		defer m.activeRequests.Add(ctx, -1)

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		method := telemetry.AttrHTTPMethod.String(c.Request.Method)
		path := telemetry.AttrHTTPRoute.String(route)
		m.requests.Add(ctx, 1, telemetry.With(method, path, telemetry.AttrHTTPStatusClass.String(StatusClass(c.Writer.Status()))))
		m.duration.Record(ctx, time.Since(start).Seconds(), telemetry.With(method, path))
		if size := c.Writer.Size(); size > 0 {
			m.responseSize.Record(ctx, float64(size), telemetry.With(method, path))
		}
	}
}

// StatusClass groups status codes as 2xx, 3xx, 4xx or 5xx
func StatusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	case status >= 200:
		return "2xx"
	}
	return "other"
}
