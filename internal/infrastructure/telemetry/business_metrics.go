package telemetry

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// ErrMeterNil is returned when no meter is supplied
var ErrMeterNil = errors.New("telemetry: meter cannot be nil")

// StockLevelsProvider reports aggregate stock for the periodic gauges
type StockLevelsProvider interface {
	// StockLevels returns total stems on hand and the number of variants at or below threshold
	StockLevels(ctx context.Context, threshold int) (stems int64, low int64, err error)
}

// BusinessMetricsConfig holds configuration for business metrics
type BusinessMetricsConfig struct {
	Meter             metric.Meter
	Logger            *zap.Logger
	StockProvider     StockLevelsProvider
	LowStockThreshold int
	CollectInterval   time.Duration // default 5 minutes
}

// BusinessMetrics records POS and stock metrics. Amounts are recorded in
// minor currency units (tiyn).
type BusinessMetrics struct {
	logger *zap.Logger

	transactions      metric.Int64Counter
	amount            metric.Int64Counter
	stems             metric.Int64Counter
	paymentsConfirmed metric.Int64Counter
	lowStockAlerts    metric.Int64Counter

	stockStems    metric.Int64Gauge
	stockLowCount metric.Int64Gauge

	provider  StockLevelsProvider
	threshold int
	interval  time.Duration

	stopCh    chan struct{}
	stopOnce  sync.Once
	startOnce sync.Once
	wg        sync.WaitGroup
}

// NewBusinessMetrics creates the POS and stock instruments
func NewBusinessMetrics(cfg BusinessMetricsConfig) (*BusinessMetrics, error) {
	if cfg.Meter == nil {
		return nil, ErrMeterNil
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	interval := cfg.CollectInterval
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	bm := &BusinessMetrics{
		logger:    logger,
		provider:  cfg.StockProvider,
		threshold: cfg.LowStockThreshold,
		interval:  interval,
		stopCh:    make(chan struct{}),
	}

	in := NewInstruments(cfg.Meter)
	bm.transactions = in.Counter("flora_pos_transactions_total", "POS transactions by type", "{transactions}")
	bm.amount = in.Counter("flora_pos_amount_total", "POS transaction totals in tiyn", "{tiyn}")
	bm.stems = in.Counter("flora_pos_stems_total", "Stems moved by POS transactions", "{stems}")
	bm.paymentsConfirmed = in.Counter("flora_pos_payments_confirmed_total", "Credit sales settled later", "{payments}")
	bm.lowStockAlerts = in.Counter("flora_stock_low_alerts_total", "Low and out of stock alerts", "{alerts}")
	bm.stockStems = in.Gauge("flora_stock_stems", "Stems on hand", "{stems}")
	bm.stockLowCount = in.Gauge("flora_stock_low_variants", "Variants at or below the low stock threshold", "{variants}")
	if err := in.Err(); err != nil {
		return nil, err
	}
	return bm, nil
}

func toTiyn(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

// RecordTransaction counts a completed sale, write-off or return
func (bm *BusinessMetrics) RecordTransaction(ctx context.Context, txType, paymentMethod, paymentStatus string, amount decimal.Decimal, quantity int) {
	if paymentMethod == "" {
		paymentMethod = "none"
	}
	kind := AttrTransactionType.String(txType)
	method := AttrPaymentMethod.String(paymentMethod)
	bm.transactions.Add(ctx, 1, With(kind, method, AttrPaymentStatus.String(paymentStatus)))
	bm.amount.Add(ctx, toTiyn(amount), With(kind, method))
	bm.stems.Add(ctx, int64(quantity), With(kind))
}

// RecordPaymentConfirmed counts a credit sale being paid
func (bm *BusinessMetrics) RecordPaymentConfirmed(ctx context.Context, paymentMethod string, amount decimal.Decimal) {
	method := AttrPaymentMethod.String(paymentMethod)
	bm.paymentsConfirmed.Add(ctx, 1, With(method))
	bm.amount.Add(ctx, toTiyn(amount), With(AttrTransactionType.String("payment_confirmed"), method))
}

// RecordLowStock counts a low stock alert for a flower
func (bm *BusinessMetrics) RecordLowStock(ctx context.Context, flowerName string, _ int, stock int) {
	alert := "low_stock"
	if stock == 0 {
		alert = "out_of_stock"
	}
	bm.lowStockAlerts.Add(ctx, 1, With(AttrFlower.String(flowerName), AttrAlertType.String(alert)))
}

// Start begins periodic collection of the stock gauges. It returns at once;
// Stop ends collection.
func (bm *BusinessMetrics) Start(ctx context.Context) {
	if bm.provider == nil {
		return
	}
	bm.startOnce.Do(func() {
		bm.wg.Add(1)
		go bm.run(ctx)
	})
}

func (bm *BusinessMetrics) run(ctx context.Context) {
	defer bm.wg.Done()
	ticker := time.NewTicker(bm.interval)
	defer ticker.Stop()

	bm.collect(ctx)
	for {
		select {
		case <-bm.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			bm.collect(ctx)
		}
	}
}

func (bm *BusinessMetrics) collect(ctx context.Context) {
	stems, low, err := bm.provider.StockLevels(ctx, bm.threshold)
	if err != nil {
		bm.logger.Warn("Failed to collect stock metrics", zap.Error(err))
		return
	}
	bm.stockStems.Record(ctx, stems)
	bm.stockLowCount.Record(ctx, low)
}

// Stop ends periodic collection. Safe to call more than once.
func (bm *BusinessMetrics) Stop() {
	bm.stopOnce.Do(func() {
		close(bm.stopCh)
		bm.wg.Wait()
	})
}
