package inventory

import (
	"context"
	"sync"
	"testing"

	"github.com/flora/backend/internal/domain/inventory"
	"github.com/flora/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type lowStockCall struct {
	flower string
	length int
	stock  int
}

type mockRecorder struct {
	mu    sync.Mutex
	calls []lowStockCall
}

func (r *mockRecorder) RecordLowStock(_ context.Context, flowerName string, length, stock int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, lowStockCall{flowerName, length, stock})
}

func TestLowStockHandler_Handle(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	recorder := &mockRecorder{}
	handler := NewLowStockHandler(zap.New(core)).WithRecorder(recorder)

	assert.Equal(t, []string{inventory.EventTypeStockLow}, handler.EventTypes())

	t.Run("low stock", func(t *testing.T) {
		event := inventory.NewStockLowEvent(uuid.New(), uuid.New(), "Rose", 60, 3, 5)
		require.NoError(t, handler.Handle(context.Background(), event))

		entries := logs.FilterMessage("stock running low").All()
		require.Len(t, entries, 1)
		assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
		fields := entries[0].ContextMap()
		assert.Equal(t, "low_stock", fields["alert_type"])
		assert.Equal(t, "Rose", fields["flower"])
		assert.Equal(t, int64(3), fields["stock"])
	})

	t.Run("out of stock", func(t *testing.T) {
		event := inventory.NewStockLowEvent(uuid.New(), uuid.New(), "Tulip", 40, 0, 5)
		require.NoError(t, handler.Handle(context.Background(), event))

		entries := logs.FilterMessage("stock running low").All()
		require.Len(t, entries, 2)
		assert.Equal(t, "out_of_stock", entries[1].ContextMap()["alert_type"])
	})

	assert.Equal(t, []lowStockCall{{"Rose", 60, 3}, {"Tulip", 40, 0}}, recorder.calls)
}

func TestLowStockHandler_RejectsOtherEvents(t *testing.T) {
	handler := NewLowStockHandler(nil)
	other := &inventory.SupplyEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(inventory.EventTypeSupplyPlanned, inventory.AggregateTypeSupply, uuid.New()),
	}
	err := handler.Handle(context.Background(), other)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected event type")
}
