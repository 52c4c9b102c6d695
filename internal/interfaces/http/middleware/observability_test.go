package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"runtime/pprof"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestHTTPMetrics_RecordsRequests(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer func() { _ = provider.Shutdown(context.Background()) }()

	router := gin.New()
	router.Use(HTTPMetrics(provider.Meter("test"), nil))
	router.GET("/api/flowers/:documentId", func(c *gin.Context) { c.String(http.StatusOK, "rose") })

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/flowers/abc", nil))
		require.Equal(t, http.StatusOK, w.Code)
	}

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	found := map[string]metricdata.Aggregation{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			found[m.Name] = m.Data
		}
	}
	require.Contains(t, found, "http_server_request_total")
	assert.Contains(t, found, "http_server_request_duration_seconds")
	assert.Contains(t, found, "http_server_response_size_bytes")

	sum, ok := found["http_server_request_total"].(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, sum.DataPoints, 1)
	dp := sum.DataPoints[0]
	assert.Equal(t, int64(3), dp.Value)
	route, _ := dp.Attributes.Value(attribute.Key("http.route"))
	assert.Equal(t, "/api/flowers/:documentId", route.AsString())
	class, _ := dp.Attributes.Value(attribute.Key("http.status_class"))
	assert.Equal(t, "2xx", class.AsString())
}

func TestHTTPMetrics_NilMeterPassesThrough(t *testing.T) {
	router := gin.New()
	router.Use(HTTPMetrics(nil, nil))
	router.GET("/test", func(c *gin.Context) { c.Status(http.StatusAccepted) })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))
	assert.Equal(t, http.StatusAccepted, w.Code)
}

func TestTracing(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	defer func() { _ = provider.Shutdown(context.Background()) }()

	router := gin.New()
	router.Use(RequestID())
	router.Use(Tracing(TracingConfig{
		ServiceName:    "flora-test",
		Enabled:        true,
		SkipPaths:      []string{"/health"},
		TracerProvider: provider,
	})...)
	router.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/api/boom", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Empty(t, recorder.Ended(), "skipped path must not be traced")

	req := httptest.NewRequest(http.MethodGet, "/api/boom", nil)
	req.Header.Set(RequestIDHeader, "trace-me")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	span := spans[0]
	assert.Equal(t, codes.Error, span.Status().Code)

	var requestID string
	for _, kv := range span.Attributes() {
		if kv.Key == "request_id" {
			requestID = kv.Value.AsString()
		}
	}
	assert.Equal(t, "trace-me", requestID)
}

func TestTracing_Disabled(t *testing.T) {
	assert.Nil(t, Tracing(TracingConfig{Enabled: false}))
}

func TestProfiling_PassesThrough(t *testing.T) {
	for _, enabled := range []bool{false, true} {
		router := gin.New()
		router.Use(Profiling(enabled, "/health"))
		router.GET("/api/shifts/current", func(c *gin.Context) {
			route, _ := pprof.Label(c.Request.Context(), "route")
			c.String(http.StatusOK, route)
		})
		router.GET("/health", func(c *gin.Context) {
			_, labelled := pprof.Label(c.Request.Context(), "route")
			assert.False(t, labelled)
			c.Status(http.StatusOK)
		})

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/shifts/current", nil))
		assert.Equal(t, http.StatusOK, w.Code)
		if enabled {
			assert.Equal(t, "/api/shifts/current", w.Body.String())
		} else {
			assert.Empty(t, w.Body.String())
		}

		w = httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	}
}
