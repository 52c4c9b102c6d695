package inventory

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRows() []SupplyRowInput {
	sale := decimal.NewFromInt(700)
	return []SupplyRowInput{
		{FlowerName: "Rose", Length: 60, Quantity: 100, PurchasePrice: decimal.NewFromInt(300), SalePrice: &sale},
		{FlowerName: "Rose", Length: 70, Quantity: 50, PurchasePrice: decimal.NewFromInt(350)},
	}
}

func TestNewSupply(t *testing.T) {
	t.Run("creates planned supply", func(t *testing.T) {
		s, err := NewSupply(" Ecuador Farms ", nil, sampleRows())
		require.NoError(t, err)

		assert.Equal(t, SupplyStatusPlanned, s.Status)
		assert.Equal(t, "Ecuador Farms", s.Supplier)
		assert.Contains(t, s.Number, "SUP-")
		require.Len(t, s.Rows, 2)
		assert.Equal(t, s.ID, s.Rows[0].SupplyID)
		assert.Equal(t, 150, s.TotalQuantity())
		assert.True(t, decimal.NewFromInt(47500).Equal(s.TotalCost()))
		require.Len(t, s.GetDomainEvents(), 1)
		assert.Equal(t, EventTypeSupplyPlanned, s.GetDomainEvents()[0].EventType())
	})

	t.Run("rejects empty supply", func(t *testing.T) {
		_, err := NewSupply("x", nil, nil)
		require.Error(t, err)
	})

	t.Run("reports the failing row", func(t *testing.T) {
		rows := sampleRows()
		rows[1].Quantity = 0
		_, err := NewSupply("x", nil, rows)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "row 2")
	})
}

func TestSupply_Lifecycle(t *testing.T) {
	operator := uuid.New()

	t.Run("receive once", func(t *testing.T) {
		s, err := NewSupply("x", nil, sampleRows())
		require.NoError(t, err)

		require.NoError(t, s.MarkReceived(&operator))
		assert.Equal(t, SupplyStatusReceived, s.Status)
		assert.NotNil(t, s.ReceivedAt)
		assert.Equal(t, 2, s.GetVersion())

		assert.Error(t, s.MarkReceived(&operator))
		assert.Error(t, s.Cancel())
	})

	t.Run("cancel planned", func(t *testing.T) {
		s, err := NewSupply("x", nil, sampleRows())
		require.NoError(t, err)

		require.NoError(t, s.Cancel())
		assert.Equal(t, SupplyStatusCancelled, s.Status)
		assert.Error(t, s.MarkReceived(nil))
	})
}
