package pos

import (
	"context"
	"fmt"

	"github.com/flora/backend/internal/domain/pos"
	"github.com/flora/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// TransactionRecorder receives POS business metrics
type TransactionRecorder interface {
	// RecordTransaction counts a completed sale, write-off or return
	RecordTransaction(ctx context.Context, txType, paymentMethod, paymentStatus string, amount decimal.Decimal, quantity int)
	// RecordPaymentConfirmed counts a settled sale that was sold on credit
	RecordPaymentConfirmed(ctx context.Context, paymentMethod string, amount decimal.Decimal)
}

// MetricsHandler turns POS events into business metrics
type MetricsHandler struct {
	recorder TransactionRecorder
}

// NewMetricsHandler creates a handler feeding recorder
func NewMetricsHandler(recorder TransactionRecorder) *MetricsHandler {
	return &MetricsHandler{recorder: recorder}
}

// EventTypes returns the event types this handler is interested in
func (h *MetricsHandler) EventTypes() []string {
	return []string{
		pos.EventTypeSaleCompleted,
		pos.EventTypeWriteOffRecorded,
		pos.EventTypeTransactionReturned,
		pos.EventTypePaymentConfirmed,
	}
}

// Handle records the event
func (h *MetricsHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	ev, ok := event.(*pos.TransactionEvent)
	if !ok {
		return fmt.Errorf("unexpected event type: expected TransactionEvent, got %s", event.EventType())
	}
	if h.recorder == nil {
		return nil
	}
	if ev.EventType() == pos.EventTypePaymentConfirmed {
		h.recorder.RecordPaymentConfirmed(ctx, string(ev.PaymentMethod), ev.Total)
		return nil
	}
	h.recorder.RecordTransaction(ctx, string(ev.Type), string(ev.PaymentMethod), string(ev.PaymentStatus), ev.Total, ev.Quantity)
	return nil
}

var _ shared.EventHandler = (*MetricsHandler)(nil)
