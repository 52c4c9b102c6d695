package analytics

import (
	"context"

	"github.com/flora/backend/internal/domain/catalog"
	"github.com/flora/backend/internal/domain/inventory"
	"github.com/flora/backend/internal/domain/pos"
	"github.com/flora/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// Invalidator drops cached reports
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// CacheInvalidationHandler clears the report cache whenever stock or sales change
type CacheInvalidationHandler struct {
	invalidator Invalidator
	logger      *zap.Logger
}

// NewCacheInvalidationHandler creates a new CacheInvalidationHandler
func NewCacheInvalidationHandler(invalidator Invalidator, logger *zap.Logger) *CacheInvalidationHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheInvalidationHandler{invalidator: invalidator, logger: logger}
}

// EventTypes returns the event types this handler is interested in
func (h *CacheInvalidationHandler) EventTypes() []string {
	return []string{
		pos.EventTypeSaleCompleted,
		pos.EventTypeWriteOffRecorded,
		pos.EventTypePaymentConfirmed,
		pos.EventTypeTransactionReturned,
		pos.EventTypeBalancesSynced,
		pos.EventTypeShiftOpened,
		pos.EventTypeShiftClosed,
		inventory.EventTypeSupplyReceived,
		catalog.EventTypeFlowerCreated,
		catalog.EventTypeFlowerUpdated,
		catalog.EventTypeVariantRemoved,
	}
}

// Handle drops the cache. Failures are logged and returned so the bus reports them.
func (h *CacheInvalidationHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	if err := h.invalidator.Invalidate(ctx); err != nil {
		h.logger.Warn("failed to invalidate analytics cache", zap.String("event_type", event.EventType()), zap.Error(err))
		return err
	}
	h.logger.Debug("analytics cache invalidated", zap.String("event_type", event.EventType()))
	return nil
}

var _ shared.EventHandler = (*CacheInvalidationHandler)(nil)
