package inventory

import (
	"context"
	"fmt"

	"github.com/flora/backend/internal/domain/inventory"
	"github.com/flora/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// LowStockRecorder counts low stock alerts, typically as a metric
type LowStockRecorder interface {
	RecordLowStock(ctx context.Context, flowerName string, length, stock int)
}

// LowStockHandler warns when a stock operation leaves a variant at or below
// the low stock threshold
type LowStockHandler struct {
	logger   *zap.Logger
	recorder LowStockRecorder
}

// NewLowStockHandler creates a new handler for StockLow events
func NewLowStockHandler(logger *zap.Logger) *LowStockHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LowStockHandler{logger: logger}
}

// WithRecorder sets the recorder notified for each alert
func (h *LowStockHandler) WithRecorder(recorder LowStockRecorder) *LowStockHandler {
	h.recorder = recorder
	return h
}

// EventTypes returns the event types this handler is interested in
func (h *LowStockHandler) EventTypes() []string {
	return []string{inventory.EventTypeStockLow}
}

// Handle processes a StockLowEvent
func (h *LowStockHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	low, ok := event.(*inventory.StockLowEvent)
	if !ok {
		h.logger.Error("unexpected event type",
			zap.String("expected", inventory.EventTypeStockLow),
			zap.String("actual", event.EventType()),
		)
		return fmt.Errorf("unexpected event type: expected %s, got %s", inventory.EventTypeStockLow, event.EventType())
	}

	alertType := "low_stock"
	if low.Stock == 0 {
		alertType = "out_of_stock"
	}
	h.logger.Warn("stock running low",
		zap.String("alert_type", alertType),
		zap.String("flower_id", low.AggregateID().String()),
		zap.String("variant_id", low.VariantID.String()),
		zap.String("flower", low.FlowerName),
		zap.Int("length", low.Length),
		zap.Int("stock", low.Stock),
		zap.Int("threshold", low.Threshold),
	)

	if h.recorder != nil {
		h.recorder.RecordLowStock(ctx, low.FlowerName, low.Length, low.Stock)
	}
	return nil
}

var _ shared.EventHandler = (*LowStockHandler)(nil)
