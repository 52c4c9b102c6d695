package analytics

import (
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// VariantLevel is the reporting projection of a variant
type VariantLevel struct {
	VariantID  uuid.UUID       `json:"variant_id"`
	FlowerID   uuid.UUID       `json:"flower_id"`
	DocumentID string          `json:"document_id"`
	FlowerName string          `json:"flower_name"`
	Slug       string          `json:"slug"`
	Length     int             `json:"length"`
	Stock      int             `json:"stock"`
	Price      decimal.Decimal `json:"price"`
	Value      decimal.Decimal `json:"value"`
	Low        bool            `json:"low"`
}

// FlowerStock groups variant levels of a flower
type FlowerStock struct {
	FlowerID   uuid.UUID       `json:"flower_id"`
	DocumentID string          `json:"document_id"`
	Name       string          `json:"name"`
	Slug       string          `json:"slug"`
	TotalStock int             `json:"total_stock"`
	Value      decimal.Decimal `json:"value"`
	Variants   []VariantLevel  `json:"variants"`
}

// StockTotals summarizes the whole stock
type StockTotals struct {
	Flowers  int             `json:"flowers"`
	Variants int             `json:"variants"`
	Stems    int             `json:"stems"`
	Value    decimal.Decimal `json:"value"`
	LowStock int             `json:"low_stock"`
}

// StockReport is the response of the stock analytics endpoint
type StockReport struct {
	Flowers   []FlowerStock  `json:"flowers"`
	Totals    StockTotals    `json:"totals"`
	LowStock  []VariantLevel `json:"low_stock"`
	Threshold int            `json:"threshold"`
}

// BuildStockReport groups variant levels by flower. A variant is low when its
// stock is at or below threshold.
func BuildStockReport(levels []VariantLevel, threshold int) StockReport {
	report := StockReport{
		Totals:    StockTotals{Value: decimal.Zero},
		Threshold: threshold,
		Flowers:   []FlowerStock{},
		LowStock:  []VariantLevel{},
	}
	index := make(map[uuid.UUID]int)
	for _, lv := range levels {
		lv.Value = lv.Price.Mul(decimal.NewFromInt(int64(lv.Stock)))
		lv.Low = lv.Stock <= threshold

		i, ok := index[lv.FlowerID]
		if !ok {
			report.Flowers = append(report.Flowers, FlowerStock{
				FlowerID:   lv.FlowerID,
				DocumentID: lv.DocumentID,
				Name:       lv.FlowerName,
				Slug:       lv.Slug,
				Value:      decimal.Zero,
			})
			i = len(report.Flowers) - 1
			index[lv.FlowerID] = i
		}
		f := &report.Flowers[i]
		f.Variants = append(f.Variants, lv)
		f.TotalStock += lv.Stock
		f.Value = f.Value.Add(lv.Value)

		report.Totals.Variants++
		report.Totals.Stems += lv.Stock
		report.Totals.Value = report.Totals.Value.Add(lv.Value)
		if lv.Low {
			report.Totals.LowStock++
			report.LowStock = append(report.LowStock, lv)
		}
	}
	report.Totals.Flowers = len(report.Flowers)

	sort.Slice(report.Flowers, func(i, j int) bool { return report.Flowers[i].Name < report.Flowers[j].Name })
	for i := range report.Flowers {
		vs := report.Flowers[i].Variants
		sort.Slice(vs, func(a, b int) bool { return vs[a].Length < vs[b].Length })
	}
	sort.Slice(report.LowStock, func(i, j int) bool { return report.LowStock[i].Stock < report.LowStock[j].Stock })
	return report
}
