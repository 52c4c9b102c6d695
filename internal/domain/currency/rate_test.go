package currency

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRate(t *testing.T) {
	now := time.Now()

	r, err := NewRate("usd", " kzt ", decimal.RequireFromString("512.37"), "test", now)
	require.NoError(t, err)
	assert.Equal(t, "USD", r.Base)
	assert.Equal(t, "KZT", r.Target)
	assert.True(t, decimal.RequireFromString("5123.70").Equal(r.Convert(decimal.NewFromInt(10))))
	assert.Equal(t, time.Minute, r.Age(now.Add(time.Minute)))

	_, err = NewRate("usd", "kzt", decimal.Zero, "test", now)
	require.Error(t, err)

	_, err = NewRate("dollar", "kzt", decimal.NewFromInt(1), "test", now)
	require.Error(t, err)
}
