package spreadsheet

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/flora/backend/internal/domain/analytics"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func buildWorkbook(t *testing.T, rows [][]interface{}) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	require.NoError(t, writeRows(f, "Sheet1", rows))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf
}

func TestFormatFromFilename(t *testing.T) {
	f, err := FormatFromFilename("Supply.XLSX")
	require.NoError(t, err)
	assert.Equal(t, FormatXLSX, f)

	f, err = FormatFromFilename("supply.csv")
	require.NoError(t, err)
	assert.Equal(t, FormatCSV, f)

	_, err = FormatFromFilename("supply.xls")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestParseSupplySheet_XLSX(t *testing.T) {
	buf := buildWorkbook(t, [][]interface{}{
		{"Flower", "Length", "Quantity", "Purchase price", "Sale price"},
		{"Rose Red Naomi", 60, 100, 120.5, 350},
		{"Tulip", 40, 50, 80, nil},
		{},
		{"Peony", 50, 20, 300, 900},
	})

	sheet, err := ParseSupplySheet(buf, "supply.xlsx")
	require.NoError(t, err)
	assert.False(t, sheet.Errors.HasErrors(), sheet.Errors.Errors())
	assert.Equal(t, 3, sheet.TotalRows)
	require.Len(t, sheet.Rows, 3)

	rose := sheet.Rows[0]
	assert.Equal(t, "Rose Red Naomi", rose.FlowerName)
	assert.Equal(t, 60, rose.Length)
	assert.Equal(t, 100, rose.Quantity)
	assert.True(t, rose.PurchasePrice.Equal(decimal.RequireFromString("120.5")))
	require.NotNil(t, rose.SalePrice)
	assert.True(t, rose.SalePrice.Equal(decimal.NewFromInt(350)))

	assert.Nil(t, sheet.Rows[1].SalePrice)
	assert.Equal(t, "Peony", sheet.Rows[2].FlowerName)
}

func TestParseSupplySheet_RussianHeaders(t *testing.T) {
	buf := buildWorkbook(t, [][]interface{}{
		{"Цветок", "Длина", "Количество", "Закупочная цена", "Цена продажи"},
		{"Роза", 70, 25, 150, 400},
	})

	sheet, err := ParseSupplySheet(buf, "поставка.xlsx")
	require.NoError(t, err)
	require.Len(t, sheet.Rows, 1)
	assert.Equal(t, "Роза", sheet.Rows[0].FlowerName)
	assert.Equal(t, 70, sheet.Rows[0].Length)
}

func TestParseSupplySheet_RowErrors(t *testing.T) {
	buf := buildWorkbook(t, [][]interface{}{
		{"Flower", "Length", "Quantity", "Purchase price"},
		{"", 60, 10, 100},
		{"Rose", "long", 10, 100},
		{"Rose", 60, 0, 100},
		{"Rose", 60, 10, -1},
		{"Rose", 60, 10, 100},
	})

	sheet, err := ParseSupplySheet(buf, "supply.xlsx")
	require.NoError(t, err)
	assert.Equal(t, 5, sheet.TotalRows)
	require.Len(t, sheet.Rows, 1)

	errs := sheet.Errors.Errors()
	require.Len(t, errs, 4)
	assert.Equal(t, RowError{Row: 2, Column: "Flower", Code: ErrCodeRequiredField, Message: "field 'Flower' is required"}, errs[0])
	assert.Equal(t, 3, errs[1].Row)
	assert.Equal(t, ErrCodeInvalidType, errs[1].Code)
	assert.Equal(t, "long", errs[1].Value)
	assert.Equal(t, 4, errs[2].Row)
	assert.Equal(t, ErrCodeInvalidRange, errs[2].Code)
	assert.Equal(t, "Purchase price", errs[3].Column)
}

func TestParseSupplySheet_MissingColumns(t *testing.T) {
	buf := buildWorkbook(t, [][]interface{}{
		{"Flower", "Quantity"},
		{"Rose", 10},
	})

	_, err := ParseSupplySheet(buf, "supply.xlsx")
	var missing *MissingColumnsError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, []string{"Length", "Purchase price"}, missing.Columns)
}

func TestParseSupplySheet_CSV(t *testing.T) {
	t.Run("comma separated with BOM", func(t *testing.T) {
		data := "\xEF\xBB\xBFFlower,Length,Quantity,Purchase price,Sale price\nRose,60,100,120.50,350\n"
		sheet, err := ParseSupplySheet(strings.NewReader(data), "supply.csv")
		require.NoError(t, err)
		require.Len(t, sheet.Rows, 1)
		assert.Equal(t, "Rose", sheet.Rows[0].FlowerName)
		assert.Equal(t, "120.5", sheet.Rows[0].PurchasePrice.String())
	})

	t.Run("semicolon separated with decimal comma", func(t *testing.T) {
		data := "Flower;Length;Quantity;Purchase price\nTulip;40;50;\"1 250,75\"\n"
		sheet, err := ParseSupplySheet(strings.NewReader(data), "supply.csv")
		require.NoError(t, err)
		require.Len(t, sheet.Rows, 1)
		assert.Equal(t, "1250.75", sheet.Rows[0].PurchasePrice.String())
	})

	t.Run("empty file", func(t *testing.T) {
		_, err := ParseSupplySheet(strings.NewReader(""), "supply.csv")
		assert.ErrorIs(t, err, ErrEmptyFile)
	})

	t.Run("header only", func(t *testing.T) {
		_, err := ParseSupplySheet(strings.NewReader("Flower,Length,Quantity,Purchase price\n"), "supply.csv")
		assert.ErrorIs(t, err, ErrNoDataRows)
	})

	t.Run("invalid encoding", func(t *testing.T) {
		_, err := ParseSupplySheet(strings.NewReader("Flower\n\xff\xfe\n"), "supply.csv")
		assert.ErrorIs(t, err, ErrInvalidEncoding)
	})
}

func TestErrorCollection_Truncates(t *testing.T) {
	ec := NewErrorCollection(2)
	for i := 0; i < 5; i++ {
		ec.AddRequired(i+2, "Flower")
	}
	assert.Len(t, ec.Errors(), 2)
	assert.Equal(t, 5, ec.TotalCount())
	assert.True(t, ec.IsTruncated())
	assert.Equal(t, "row 2, column 'Flower': field 'Flower' is required", ec.Errors()[0].Error())
}

func TestWriteSalesReport(t *testing.T) {
	loc := time.FixedZone("ALMT", 5*3600)
	now := time.Date(2026, 3, 8, 18, 0, 0, 0, loc)
	w := analytics.PeriodWeek.Window(now)
	rose := uuid.New()
	txns := []analytics.TransactionFact{
		{ID: uuid.New(), Type: "sale", PaymentStatus: "paid", PaymentMethod: "cash", Total: decimal.NewFromInt(1000), CreatedAt: now.Add(-time.Hour)},
		{ID: uuid.New(), Type: "sale", PaymentStatus: "pending", PaymentMethod: "card", Total: decimal.NewFromInt(500), CreatedAt: now.Add(-26 * time.Hour)},
	}
	items := []analytics.ItemFact{
		{TransactionType: "sale", FlowerID: rose, FlowerName: "Rose", Quantity: 10, Total: decimal.NewFromInt(1500), CreatedAt: now},
	}
	report := analytics.BuildSalesReport(analytics.PeriodWeek, w, txns, items, 10)

	var buf bytes.Buffer
	require.NoError(t, WriteSalesReport(&buf, report))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	assert.Equal(t, []string{"Summary", "Series", "Top flowers"}, f.GetSheetList())

	summary, err := f.GetRows("Summary")
	require.NoError(t, err)
	assert.Equal(t, []string{"Period", "week"}, summary[0])
	assert.Equal(t, []string{"Revenue", "1500"}, summary[3])
	assert.Equal(t, []string{"Sales", "2"}, summary[4])

	series, err := f.GetRows("Series")
	require.NoError(t, err)
	assert.Len(t, series, 8)
	assert.Equal(t, []string{"Bucket", "Revenue", "Sales", "Write-offs"}, series[0])
	assert.Equal(t, "2026-03-08", series[7][0])
	assert.Equal(t, "1000", series[7][1])

	top, err := f.GetRows("Top flowers")
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, []string{"1", "Rose", "10", "1500"}, top[1])

	assert.Equal(t, "sales-week-20260308.xlsx", SalesReportFilename(report))
}
