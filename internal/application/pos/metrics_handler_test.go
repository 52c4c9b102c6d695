package pos

import (
	"context"
	"testing"

	"github.com/flora/backend/internal/domain/inventory"
	"github.com/flora/backend/internal/domain/pos"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockRecorder struct {
	mock.Mock
}

func (m *mockRecorder) RecordTransaction(ctx context.Context, txType, paymentMethod, paymentStatus string, amount decimal.Decimal, quantity int) {
	m.Called(ctx, txType, paymentMethod, paymentStatus, amount, quantity)
}

func (m *mockRecorder) RecordPaymentConfirmed(ctx context.Context, paymentMethod string, amount decimal.Decimal) {
	m.Called(ctx, paymentMethod, amount)
}

func newSaleForMetrics(t *testing.T) *pos.Transaction {
	t.Helper()
	customer := uuid.New()
	txn, err := pos.NewSale(pos.SaleInput{
		Lines: []pos.Line{{
			VariantID:  uuid.New(),
			FlowerID:   uuid.New(),
			FlowerName: "Rose",
			Length:     60,
			Quantity:   4,
			Price:      decimal.NewFromInt(450),
		}},
		PaymentStatus: pos.PaymentStatusPending,
		CustomerID:    &customer,
		ShiftID:       uuid.New(),
		Operator:      admin,
	})
	require.NoError(t, err)
	return txn
}

func TestMetricsHandler_RecordsTransactions(t *testing.T) {
	ctx := context.Background()
	rec := new(mockRecorder)
	h := NewMetricsHandler(rec)
	txn := newSaleForMetrics(t)

	rec.On("RecordTransaction", ctx, "sale", "", "pending", mock.MatchedBy(func(d decimal.Decimal) bool {
		return d.Equal(decimal.NewFromInt(1800))
	}), 4).Once()
	require.NoError(t, h.Handle(ctx, pos.NewTransactionEvent(pos.EventTypeSaleCompleted, txn)))

	require.NoError(t, txn.ConfirmPayment(pos.PaymentMethodTransfer, txn.ShiftID))
	rec.On("RecordPaymentConfirmed", ctx, "transfer", mock.MatchedBy(func(d decimal.Decimal) bool {
		return d.Equal(decimal.NewFromInt(1800))
	})).Once()
	require.NoError(t, h.Handle(ctx, pos.NewTransactionEvent(pos.EventTypePaymentConfirmed, txn)))

	rec.AssertExpectations(t)
}

func TestMetricsHandler_EventTypes(t *testing.T) {
	h := NewMetricsHandler(nil)
	assert.ElementsMatch(t, []string{
		pos.EventTypeSaleCompleted,
		pos.EventTypeWriteOffRecorded,
		pos.EventTypeTransactionReturned,
		pos.EventTypePaymentConfirmed,
	}, h.EventTypes())
}

func TestMetricsHandler_RejectsForeignEvents(t *testing.T) {
	h := NewMetricsHandler(new(mockRecorder))
	ev := inventory.NewStockLowEvent(uuid.New(), uuid.New(), "Rose", 60, 2, 5)
	assert.Error(t, h.Handle(context.Background(), ev))
}

func TestMetricsHandler_NilRecorder(t *testing.T) {
	h := NewMetricsHandler(nil)
	txn := newSaleForMetrics(t)
	assert.NoError(t, h.Handle(context.Background(), pos.NewTransactionEvent(pos.EventTypeSaleCompleted, txn)))
}
