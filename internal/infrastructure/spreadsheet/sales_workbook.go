package spreadsheet

import (
	"fmt"
	"io"

	"github.com/flora/backend/internal/domain/analytics"
	"github.com/xuri/excelize/v2"
)

// ContentTypeXLSX is the MIME type of generated workbooks
const ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

const (
	sheetSummary    = "Summary"
	sheetSeries     = "Series"
	sheetTopFlowers = "Top flowers"
)

// WriteSalesReport renders a sales report as a workbook with summary, series
// and top flowers sheets.
func WriteSalesReport(w io.Writer, report analytics.SalesReport) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	// the default sheet becomes the summary
	if err := f.SetSheetName("Sheet1", sheetSummary); err != nil {
		return err
	}
	if _, err := f.NewSheet(sheetSeries); err != nil {
		return err
	}
	if _, err := f.NewSheet(sheetTopFlowers); err != nil {
		return err
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}

	t := report.Totals
	summary := [][]interface{}{
		{"Period", string(report.Period)},
		{"From", report.Window.From.Format("2006-01-02 15:04")},
		{"To", report.Window.To.Format("2006-01-02 15:04")},
		{"Revenue", t.Revenue.InexactFloat64()},
		{"Sales", t.SalesCount},
		{"Sales total", t.SalesTotal.InexactFloat64()},
		{"Average check", t.AverageCheck.InexactFloat64()},
		{"Returns", t.ReturnsCount},
		{"Returns total", t.ReturnsTotal.InexactFloat64()},
		{"Write-offs", t.WriteOffsCount},
		{"Write-offs total", t.WriteOffsTotal.InexactFloat64()},
		{"Stems sold", t.StemsSold},
		{"Pending payments", report.PendingTotal.InexactFloat64()},
	}
	for _, p := range report.ByPaymentMethod {
		summary = append(summary, []interface{}{"Paid by " + p.Method, p.Total.InexactFloat64()})
	}
	if err := writeRows(f, sheetSummary, summary); err != nil {
		return err
	}
	if err := f.SetColStyle(sheetSummary, "A", bold); err != nil {
		return err
	}

	series := [][]interface{}{{"Bucket", "Revenue", "Sales", "Write-offs"}}
	for _, p := range report.Series {
		series = append(series, []interface{}{p.Label, p.Revenue.InexactFloat64(), p.SalesCount, p.WriteOffs.InexactFloat64()})
	}
	if err := writeRows(f, sheetSeries, series); err != nil {
		return err
	}

	top := [][]interface{}{{"#", "Flower", "Quantity", "Revenue"}}
	for i, fs := range report.TopFlowers {
		top = append(top, []interface{}{i + 1, fs.Name, fs.Quantity, fs.Revenue.InexactFloat64()})
	}
	if err := writeRows(f, sheetTopFlowers, top); err != nil {
		return err
	}
	for _, sheet := range []string{sheetSeries, sheetTopFlowers} {
		if err := f.SetRowStyle(sheet, 1, 1, bold); err != nil {
			return err
		}
	}

	return f.Write(w)
}

// SalesReportFilename builds the attachment name of an export
func SalesReportFilename(report analytics.SalesReport) string {
	return fmt.Sprintf("sales-%s-%s.xlsx", report.Period, report.Window.To.Format("20060102"))
}

func writeRows(f *excelize.File, sheet string, rows [][]interface{}) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("sheet %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}
