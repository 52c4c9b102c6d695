package inventory

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStockMovement(t *testing.T) {
	base := MovementInput{
		VariantID:     uuid.New(),
		FlowerID:      uuid.New(),
		Type:          MovementTypeSale,
		Quantity:      -3,
		BalanceBefore: 10,
		SourceType:    SourceTransaction,
		SourceID:      uuid.New(),
	}

	t.Run("computes balance after", func(t *testing.T) {
		m, err := NewStockMovement(base)
		require.NoError(t, err)
		assert.Equal(t, 7, m.BalanceAfter)
		assert.NotEqual(t, uuid.Nil, m.ID)
	})

	t.Run("sale must decrease", func(t *testing.T) {
		in := base
		in.Quantity = 3
		_, err := NewStockMovement(in)
		require.Error(t, err)
	})

	t.Run("return must increase", func(t *testing.T) {
		in := base
		in.Type = MovementTypeReturn
		_, err := NewStockMovement(in)
		require.Error(t, err)
	})

	t.Run("adjustment may go either way", func(t *testing.T) {
		in := base
		in.Type = MovementTypeAdjustment
		in.Quantity = 4
		m, err := NewStockMovement(in)
		require.NoError(t, err)
		assert.Equal(t, 14, m.BalanceAfter)
	})

	t.Run("rejects negative balance", func(t *testing.T) {
		in := base
		in.Quantity = -11
		_, err := NewStockMovement(in)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "negative")
	})

	t.Run("rejects zero quantity and unknown type", func(t *testing.T) {
		in := base
		in.Quantity = 0
		_, err := NewStockMovement(in)
		require.Error(t, err)

		in = base
		in.Type = "teleport"
		_, err = NewStockMovement(in)
		require.Error(t, err)
	})
}
