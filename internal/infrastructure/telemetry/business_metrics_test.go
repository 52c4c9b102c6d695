package telemetry_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/flora/backend/internal/infrastructure/telemetry"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newManualMeter(t *testing.T) (*telemetry.MeterProvider, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	provider := telemetry.NewMeterProviderWithReader(reader, nil)
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })
	return provider, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Aggregation {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	out := make(map[string]metricdata.Aggregation)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m.Data
		}
	}
	return out
}

func sumWhere(t *testing.T, data metricdata.Aggregation, key attribute.Key, value string) int64 {
	t.Helper()
	sum, ok := data.(metricdata.Sum[int64])
	require.True(t, ok, "expected an int64 sum, got %T", data)
	var total int64
	for _, dp := range sum.DataPoints {
		if v, ok := dp.Attributes.Value(key); ok && v.AsString() == value {
			total += dp.Value
		}
	}
	return total
}

func TestNewBusinessMetrics_NilMeter(t *testing.T) {
	bm, err := telemetry.NewBusinessMetrics(telemetry.BusinessMetricsConfig{})
	assert.ErrorIs(t, err, telemetry.ErrMeterNil)
	assert.Nil(t, bm)
}

func TestBusinessMetrics_RecordTransaction(t *testing.T) {
	provider, reader := newManualMeter(t)
	bm, err := telemetry.NewBusinessMetrics(telemetry.BusinessMetricsConfig{Meter: provider.Meter("test")})
	require.NoError(t, err)
	ctx := context.Background()

	bm.RecordTransaction(ctx, "sale", "cash", "paid", decimal.RequireFromString("4500.50"), 10)
	bm.RecordTransaction(ctx, "sale", "", "pending", decimal.NewFromInt(1500), 5)
	bm.RecordTransaction(ctx, "write_off", "", "not_applicable", decimal.NewFromInt(300), 1)
	bm.RecordPaymentConfirmed(ctx, "transfer", decimal.NewFromInt(1500))

	data := collect(t, reader)
	assert.Equal(t, int64(2), sumWhere(t, data["flora_pos_transactions_total"], telemetry.AttrTransactionType, "sale"))
	assert.Equal(t, int64(2), sumWhere(t, data["flora_pos_transactions_total"], telemetry.AttrPaymentMethod, "none"))
	assert.Equal(t, int64(450050), sumWhere(t, data["flora_pos_amount_total"], telemetry.AttrPaymentMethod, "cash"))
	assert.Equal(t, int64(150000), sumWhere(t, data["flora_pos_amount_total"], telemetry.AttrTransactionType, "payment_confirmed"))
	assert.Equal(t, int64(15), sumWhere(t, data["flora_pos_stems_total"], telemetry.AttrTransactionType, "sale"))
	assert.Equal(t, int64(1), sumWhere(t, data["flora_pos_payments_confirmed_total"], telemetry.AttrPaymentMethod, "transfer"))
}

func TestBusinessMetrics_RecordLowStock(t *testing.T) {
	provider, reader := newManualMeter(t)
	bm, err := telemetry.NewBusinessMetrics(telemetry.BusinessMetricsConfig{Meter: provider.Meter("test")})
	require.NoError(t, err)

	bm.RecordLowStock(context.Background(), "Rose", 60, 3)
	bm.RecordLowStock(context.Background(), "Rose", 70, 0)

	data := collect(t, reader)
	alerts := data["flora_stock_low_alerts_total"]
	assert.Equal(t, int64(2), sumWhere(t, alerts, telemetry.AttrFlower, "Rose"))
	assert.Equal(t, int64(1), sumWhere(t, alerts, telemetry.AttrAlertType, "out_of_stock"))
}

type stubStockProvider struct {
	calls atomic.Int32
	err   error
}

func (s *stubStockProvider) StockLevels(_ context.Context, threshold int) (int64, int64, error) {
	s.calls.Add(1)
	if s.err != nil {
		return 0, 0, s.err
	}
	return 420, int64(threshold), nil
}

func TestBusinessMetrics_PeriodicCollection(t *testing.T) {
	provider, reader := newManualMeter(t)
	stub := &stubStockProvider{}
	bm, err := telemetry.NewBusinessMetrics(telemetry.BusinessMetricsConfig{
		Meter:             provider.Meter("test"),
		StockProvider:     stub,
		LowStockThreshold: 3,
		CollectInterval:   10 * time.Millisecond,
	})
	require.NoError(t, err)

	bm.Start(context.Background())
	bm.Start(context.Background())
	assert.Eventually(t, func() bool { return stub.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
	bm.Stop()
	bm.Stop()

	data := collect(t, reader)
	stems, ok := data["flora_stock_stems"].(metricdata.Gauge[int64])
	require.True(t, ok)
	require.Len(t, stems.DataPoints, 1)
	assert.Equal(t, int64(420), stems.DataPoints[0].Value)

	low, ok := data["flora_stock_low_variants"].(metricdata.Gauge[int64])
	require.True(t, ok)
	assert.Equal(t, int64(3), low.DataPoints[0].Value)
}

func TestBusinessMetrics_CollectionErrorsAreSkipped(t *testing.T) {
	provider, reader := newManualMeter(t)
	stub := &stubStockProvider{err: errors.New("db down")}
	bm, err := telemetry.NewBusinessMetrics(telemetry.BusinessMetricsConfig{
		Meter:           provider.Meter("test"),
		StockProvider:   stub,
		CollectInterval: 10 * time.Millisecond,
	})
	require.NoError(t, err)

	bm.Start(context.Background())
	assert.Eventually(t, func() bool { return stub.calls.Load() >= 1 }, time.Second, 5*time.Millisecond)
	bm.Stop()

	if stems, ok := collect(t, reader)["flora_stock_stems"].(metricdata.Gauge[int64]); ok {
		assert.Empty(t, stems.DataPoints)
	}
}

func TestBusinessMetrics_StartWithoutProvider(t *testing.T) {
	provider, _ := newManualMeter(t)
	bm, err := telemetry.NewBusinessMetrics(telemetry.BusinessMetricsConfig{Meter: provider.Meter("test")})
	require.NoError(t, err)

	bm.Start(context.Background())
	bm.Stop()
}
