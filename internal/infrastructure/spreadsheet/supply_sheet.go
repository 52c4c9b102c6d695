package spreadsheet

import (
	"io"
	"strconv"
	"strings"

	"github.com/flora/backend/internal/domain/inventory"
	"github.com/shopspring/decimal"
)

// Supply sheet columns. Each accepts English and Russian headers.
var (
	colFlower        = []string{"flower", "name", "цветок", "название"}
	colLength        = []string{"length", "length, cm", "длина", "длина, см"}
	colQuantity      = []string{"quantity", "qty", "количество", "кол-во"}
	colPurchasePrice = []string{"purchase price", "cost", "закупочная цена", "закупка"}
	colSalePrice     = []string{"sale price", "price", "цена продажи", "цена"}
)

// MaxRowErrors caps the errors reported for one upload
const MaxRowErrors = 200

// SupplySheet is the result of parsing a supply upload
type SupplySheet struct {
	Rows      []inventory.SupplyRowInput
	Errors    *ErrorCollection
	TotalRows int
}

// ParseSupplySheet reads rows "Flower | Length | Quantity | Purchase price | Sale price"
// from an .xlsx or .csv file. Row level problems are collected and the row is skipped;
// a file level problem is returned as an error.
func ParseSupplySheet(r io.Reader, filename string) (*SupplySheet, error) {
	format, err := FormatFromFilename(filename)
	if err != nil {
		return nil, err
	}
	table, err := ReadTable(r, format)
	if err != nil {
		return nil, err
	}
	return parseSupplyTable(table)
}

func parseSupplyTable(t *Table) (*SupplySheet, error) {
	required := []struct {
		name    string
		aliases []string
	}{
		{"Flower", colFlower},
		{"Length", colLength},
		{"Quantity", colQuantity},
		{"Purchase price", colPurchasePrice},
	}
	cols := make(map[string]int)
	var missing []string
	for _, c := range required {
		idx, ok := t.Column(c.aliases...)
		if !ok {
			missing = append(missing, c.name)
			continue
		}
		cols[c.name] = idx
	}
	if len(missing) > 0 {
		return nil, &MissingColumnsError{Columns: missing}
	}
	saleIdx, hasSale := t.Column(colSalePrice...)

	sheet := &SupplySheet{Errors: NewErrorCollection(MaxRowErrors)}
	for _, row := range t.Rows() {
		sheet.TotalRows++
		in, ok := parseSupplyRow(row, cols, saleIdx, hasSale, sheet.Errors)
		if ok {
			sheet.Rows = append(sheet.Rows, in)
		}
	}
	return sheet, nil
}

func parseSupplyRow(row TableRow, cols map[string]int, saleIdx int, hasSale bool, errs *ErrorCollection) (inventory.SupplyRowInput, bool) {
	var in inventory.SupplyRowInput
	before := errs.TotalCount()

	in.FlowerName = row.Cell(cols["Flower"])
	if in.FlowerName == "" {
		errs.AddRequired(row.Line, "Flower")
	}

	in.Length = parsePositiveInt(row, cols["Length"], "Length", errs)
	in.Quantity = parsePositiveInt(row, cols["Quantity"], "Quantity", errs)

	raw := row.Cell(cols["Purchase price"])
	if raw == "" {
		errs.AddRequired(row.Line, "Purchase price")
	} else if d, ok := parseMoney(raw); !ok {
		errs.AddType(row.Line, "Purchase price", "a number", raw)
	} else if d.IsNegative() {
		errs.AddRange(row.Line, "Purchase price", "must not be negative", raw)
	} else {
		in.PurchasePrice = d
	}

	if hasSale {
		if raw := row.Cell(saleIdx); raw != "" {
			if d, ok := parseMoney(raw); !ok {
				errs.AddType(row.Line, "Sale price", "a number", raw)
			} else if d.IsNegative() {
				errs.AddRange(row.Line, "Sale price", "must not be negative", raw)
			} else {
				in.SalePrice = &d
			}
		}
	}
	return in, errs.TotalCount() == before
}

func parsePositiveInt(row TableRow, idx int, column string, errs *ErrorCollection) int {
	raw := row.Cell(idx)
	if raw == "" {
		errs.AddRequired(row.Line, column)
		return 0
	}
	// Excel stores whole numbers as "50" but some exports write "50.0"
	v, err := strconv.ParseFloat(strings.NewReplacer(" ", "", "\u00a0", "").Replace(raw), 64)
	if err != nil || v != float64(int(v)) {
		errs.AddType(row.Line, column, "a whole number", raw)
		return 0
	}
	if v <= 0 {
		errs.AddRange(row.Line, column, "must be greater than zero", raw)
		return 0
	}
	return int(v)
}

// parseMoney accepts "1 250,50" as well as "1250.50"
func parseMoney(raw string) (decimal.Decimal, bool) {
	s := strings.NewReplacer(" ", "", "\u00a0", "", ",", ".").Replace(raw)
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// MissingColumnsError is returned when required headers are absent
type MissingColumnsError struct {
	Columns []string
}

func (e *MissingColumnsError) Error() string {
	return "missing required columns: " + strings.Join(e.Columns, ", ")
}
