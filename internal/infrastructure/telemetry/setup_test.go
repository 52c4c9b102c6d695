package telemetry_test

import (
	"context"
	"errors"
	"testing"

	"github.com/flora/backend/internal/domain/shared"
	"github.com/flora/backend/internal/infrastructure/config"
	"github.com/flora/backend/internal/infrastructure/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
)

func TestSetup_Disabled(t *testing.T) {
	ctx := context.Background()
	tel, err := telemetry.Setup(ctx, config.TelemetryConfig{
		Enabled:        false,
		MetricsEnabled: true,
		LogsEnabled:    true,
		ServiceName:    "flora-test",
	}, telemetry.Build{Version: "test", Environment: "test"}, zaptest.NewLogger(t))
	require.NoError(t, err)

	assert.False(t, tel.Tracer.IsEnabled())
	assert.False(t, tel.Meter.IsEnabled())
	assert.False(t, tel.Logs.IsEnabled())
	assert.False(t, tel.Profiler.IsEnabled())
	assert.False(t, tel.Tracer.SpanProfilesEnabled())
	assert.Nil(t, tel.Logs.ZapCore("flora", zapcore.InfoLevel))
	assert.NotNil(t, tel.Meter.Meter("test"))

	assert.NoError(t, tel.Shutdown(ctx))
	assert.NoError(t, tel.Shutdown(ctx))
}

func TestNewProfiler_RequiresServerAddress(t *testing.T) {
	_, err := telemetry.NewProfiler(telemetry.ProfilerConfig{Enabled: true, ApplicationName: "flora"}, zaptest.NewLogger(t))
	assert.Error(t, err)
}

func installRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	previous := otel.GetTracerProvider()
	otel.SetTracerProvider(provider)
	t.Cleanup(func() {
		otel.SetTracerProvider(previous)
		_ = provider.Shutdown(context.Background())
	})
	return recorder
}

func spanAttributes(s sdktrace.ReadOnlySpan) map[string]string {
	attrs := map[string]string{}
	for _, kv := range s.Attributes() {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	return attrs
}

func TestStartServiceSpan(t *testing.T) {
	recorder := installRecorder(t)

	ctx, span := telemetry.StartServiceSpan(context.Background(), "pos", "create_sale",
		telemetry.AttrItems.Int(3),
		telemetry.AttrIdempotentReplay.Bool(false),
	)
	assert.NotEmpty(t, telemetry.TraceID(ctx))
	span.SetAttributes(telemetry.AttrTransactionNumber.String("S-20261019-ABCDEF"))
	telemetry.EndSpan(span, errors.New("connection reset"))

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	s := spans[0]
	assert.Equal(t, "pos.create_sale", s.Name())
	assert.Equal(t, codes.Error, s.Status().Code)
	assert.Equal(t, map[string]string{
		"flora.items":              "3",
		"flora.idempotent_replay":  "false",
		"flora.transaction.number": "S-20261019-ABCDEF",
	}, spanAttributes(s))
}

func TestEndSpan_DomainErrorKeepsStatus(t *testing.T) {
	recorder := installRecorder(t)

	_, span := telemetry.StartServiceSpan(context.Background(), "pos", "create_sale")
	telemetry.EndSpan(span, shared.NewDomainError("INSUFFICIENT_STOCK", "not enough stems"))

	s := recorder.Ended()[0]
	assert.Equal(t, codes.Unset, s.Status().Code)
	assert.Equal(t, "INSUFFICIENT_STOCK", spanAttributes(s)["flora.error.code"])
	require.Len(t, s.Events(), 1)
	assert.Equal(t, "exception", s.Events()[0].Name)
}

func TestEndSpan_UnavailableIsAFault(t *testing.T) {
	recorder := installRecorder(t)

	_, span := telemetry.StartServiceSpan(context.Background(), "media", "upload_url")
	telemetry.EndSpan(span, shared.ErrUnavailable)

	assert.Equal(t, codes.Error, recorder.Ended()[0].Status().Code)
}

func TestTraceID_WithoutSpan(t *testing.T) {
	assert.Empty(t, telemetry.TraceID(context.Background()))
}

func TestRecordError_Nil(t *testing.T) {
	recorder := installRecorder(t)
	_, span := telemetry.StartServiceSpan(context.Background(), "catalog", "safe_update")
	telemetry.EndSpan(span, nil)

	require.Len(t, recorder.Ended(), 1)
	assert.Equal(t, codes.Unset, recorder.Ended()[0].Status().Code)
}
