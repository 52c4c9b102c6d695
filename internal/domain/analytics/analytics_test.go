package analytics

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePeriod(t *testing.T) {
	p, err := ParsePeriod("")
	require.NoError(t, err)
	assert.Equal(t, PeriodWeek, p)

	for _, raw := range []string{"day", "week", "month", "year"} {
		p, err := ParsePeriod(raw)
		require.NoError(t, err)
		assert.Equal(t, Period(raw), p)
	}

	_, err = ParsePeriod("decade")
	require.Error(t, err)
}

func TestPeriod_Window(t *testing.T) {
	loc := time.FixedZone("ALMT", 5*3600)
	now := time.Date(2026, 10, 19, 14, 30, 0, 0, loc)

	t.Run("day is hourly from midnight", func(t *testing.T) {
		w := PeriodDay.Window(now)
		assert.Equal(t, time.Date(2026, 10, 19, 0, 0, 0, 0, loc), w.From)
		assert.Equal(t, BucketHour, w.Bucket)
		assert.Len(t, w.Buckets(), 15)
		assert.Equal(t, "14:00", w.Label(w.Buckets()[14]))
	})

	t.Run("week covers seven days", func(t *testing.T) {
		w := PeriodWeek.Window(now)
		assert.Equal(t, time.Date(2026, 10, 13, 0, 0, 0, 0, loc), w.From)
		assert.Len(t, w.Buckets(), 7)
	})

	t.Run("month covers thirty days", func(t *testing.T) {
		assert.Len(t, PeriodMonth.Window(now).Buckets(), 30)
	})

	t.Run("year is monthly", func(t *testing.T) {
		w := PeriodYear.Window(now)
		assert.Equal(t, time.Date(2025, 11, 1, 0, 0, 0, 0, loc), w.From)
		buckets := w.Buckets()
		assert.Len(t, buckets, 12)
		assert.Equal(t, "2026-10", w.Label(buckets[11]))
	})

	t.Run("truncate converts to window location", func(t *testing.T) {
		w := PeriodWeek.Window(now)
		utc := time.Date(2026, 10, 18, 20, 0, 0, 0, time.UTC) // 01:00 on the 19th locally
		assert.Equal(t, time.Date(2026, 10, 19, 0, 0, 0, 0, loc).Unix(), w.Truncate(utc).Unix())
		assert.True(t, w.Contains(utc))
		assert.False(t, w.Contains(now))
	})
}

func TestBuildSalesReport(t *testing.T) {
	loc := time.UTC
	now := time.Date(2026, 10, 19, 18, 0, 0, 0, loc)
	w := PeriodWeek.Window(now)
	rose, tulip := uuid.New(), uuid.New()
	yesterday := now.AddDate(0, 0, -1)

	txns := []TransactionFact{
		{Type: "sale", PaymentStatus: "paid", PaymentMethod: "cash", Total: decimal.NewFromInt(1000), CreatedAt: now.Add(-time.Hour)},
		{Type: "sale", PaymentStatus: "paid", PaymentMethod: "card", Total: decimal.NewFromInt(2000), CreatedAt: yesterday},
		{Type: "sale", PaymentStatus: "pending", Total: decimal.NewFromInt(500), CreatedAt: yesterday},
		{Type: "return", PaymentStatus: "refunded", PaymentMethod: "cash", Total: decimal.NewFromInt(300), CreatedAt: now.Add(-time.Minute)},
		{Type: "write_off", PaymentStatus: "not_applicable", Total: decimal.NewFromInt(150), CreatedAt: yesterday},
	}
	items := []ItemFact{
		{TransactionType: "sale", FlowerID: rose, FlowerName: "Rose", Quantity: 10, Total: decimal.NewFromInt(2500)},
		{TransactionType: "sale", FlowerID: tulip, FlowerName: "Tulip", Quantity: 5, Total: decimal.NewFromInt(1000)},
		{TransactionType: "return", FlowerID: rose, FlowerName: "Rose", Quantity: 1, Total: decimal.NewFromInt(300)},
		{TransactionType: "write_off", FlowerID: tulip, FlowerName: "Tulip", Quantity: 1, Total: decimal.NewFromInt(150)},
	}

	r := BuildSalesReport(PeriodWeek, w, txns, items, 10)

	assert.Equal(t, 3, r.Totals.SalesCount)
	assert.True(t, decimal.NewFromInt(3500).Equal(r.Totals.SalesTotal))
	assert.True(t, decimal.NewFromInt(3200).Equal(r.Totals.Revenue))
	assert.True(t, decimal.RequireFromString("1166.67").Equal(r.Totals.AverageCheck))
	assert.Equal(t, 14, r.Totals.StemsSold)
	assert.True(t, decimal.NewFromInt(150).Equal(r.Totals.WriteOffsTotal))
	assert.True(t, decimal.NewFromInt(500).Equal(r.PendingTotal))

	require.Len(t, r.ByPaymentMethod, 2)
	assert.Equal(t, "card", r.ByPaymentMethod[0].Method)
	assert.Equal(t, "cash", r.ByPaymentMethod[1].Method)
	assert.True(t, decimal.NewFromInt(700).Equal(r.ByPaymentMethod[1].Total))

	require.Len(t, r.Series, 7)
	last := r.Series[6]
	assert.Equal(t, 1, last.SalesCount)
	assert.True(t, decimal.NewFromInt(700).Equal(last.Revenue))
	prev := r.Series[5]
	assert.Equal(t, 2, prev.SalesCount)
	assert.True(t, decimal.NewFromInt(150).Equal(prev.WriteOffs))

	require.Len(t, r.TopFlowers, 2)
	assert.Equal(t, "Rose", r.TopFlowers[0].Name)
	assert.Equal(t, 9, r.TopFlowers[0].Quantity)
	assert.True(t, decimal.NewFromInt(2200).Equal(r.TopFlowers[0].Revenue))
}

func TestTopFlowers_Limit(t *testing.T) {
	var items []ItemFact
	for i := 0; i < 5; i++ {
		items = append(items, ItemFact{TransactionType: "sale", FlowerID: uuid.New(), FlowerName: string(rune('A' + i)), Quantity: 1, Total: decimal.NewFromInt(int64(i))})
	}
	top := TopFlowers(items, 3)
	require.Len(t, top, 3)
	assert.Equal(t, "E", top[0].Name)
}

func TestBuildStockReport(t *testing.T) {
	rose, tulip := uuid.New(), uuid.New()
	levels := []VariantLevel{
		{VariantID: uuid.New(), FlowerID: tulip, FlowerName: "Tulip", Length: 40, Stock: 3, Price: decimal.NewFromInt(200)},
		{VariantID: uuid.New(), FlowerID: rose, FlowerName: "Rose", Length: 70, Stock: 20, Price: decimal.NewFromInt(600)},
		{VariantID: uuid.New(), FlowerID: rose, FlowerName: "Rose", Length: 60, Stock: 0, Price: decimal.NewFromInt(500)},
	}

	r := BuildStockReport(levels, 5)

	require.Len(t, r.Flowers, 2)
	assert.Equal(t, "Rose", r.Flowers[0].Name)
	assert.Equal(t, 60, r.Flowers[0].Variants[0].Length)
	assert.Equal(t, 20, r.Flowers[0].TotalStock)
	assert.True(t, decimal.NewFromInt(12000).Equal(r.Flowers[0].Value))

	assert.Equal(t, 2, r.Totals.Flowers)
	assert.Equal(t, 3, r.Totals.Variants)
	assert.Equal(t, 23, r.Totals.Stems)
	assert.True(t, decimal.NewFromInt(12600).Equal(r.Totals.Value))
	assert.Equal(t, 2, r.Totals.LowStock)
	require.Len(t, r.LowStock, 2)
	assert.Equal(t, 0, r.LowStock[0].Stock)
}
