package analytics

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Transaction types and payment statuses as stored by the POS
const (
	typeSale     = "sale"
	typeWriteOff = "write_off"
	typeReturn   = "return"

	statusPending  = "pending"
	statusPaid     = "paid"
	statusRefunded = "refunded"
)

// TransactionFact is the reporting projection of a POS transaction
type TransactionFact struct {
	ID            uuid.UUID
	Type          string
	PaymentStatus string
	PaymentMethod string
	Total         decimal.Decimal
	CreatedAt     time.Time
}

// ItemFact is the reporting projection of a transaction line
type ItemFact struct {
	TransactionType string
	FlowerID        uuid.UUID
	FlowerName      string
	Quantity        int
	Total           decimal.Decimal
	CreatedAt       time.Time
}

// Totals summarizes transactions in a window
type Totals struct {
	Revenue        decimal.Decimal `json:"revenue"`
	SalesCount     int             `json:"sales_count"`
	SalesTotal     decimal.Decimal `json:"sales_total"`
	AverageCheck   decimal.Decimal `json:"average_check"`
	ReturnsCount   int             `json:"returns_count"`
	ReturnsTotal   decimal.Decimal `json:"returns_total"`
	WriteOffsCount int             `json:"write_offs_count"`
	WriteOffsTotal decimal.Decimal `json:"write_offs_total"`
	StemsSold      int             `json:"stems_sold"`
}

// PaymentShare is revenue collected with one payment method
type PaymentShare struct {
	Method string          `json:"method"`
	Count  int             `json:"count"`
	Total  decimal.Decimal `json:"total"`
}

// SeriesPoint is one bucket of a sales chart
type SeriesPoint struct {
	Start      time.Time       `json:"start"`
	Label      string          `json:"label"`
	Revenue    decimal.Decimal `json:"revenue"`
	SalesCount int             `json:"sales_count"`
	WriteOffs  decimal.Decimal `json:"write_offs"`
}

// FlowerSales ranks flowers by revenue
type FlowerSales struct {
	FlowerID uuid.UUID       `json:"flower_id"`
	Name     string          `json:"name"`
	Quantity int             `json:"quantity"`
	Revenue  decimal.Decimal `json:"revenue"`
}

// SalesReport is the response of the sales analytics endpoint
type SalesReport struct {
	Period          Period          `json:"period"`
	Window          Window          `json:"window"`
	Totals          Totals          `json:"totals"`
	ByPaymentMethod []PaymentShare  `json:"by_payment_method"`
	PendingTotal    decimal.Decimal `json:"pending_total"`
	Series          []SeriesPoint   `json:"series"`
	TopFlowers      []FlowerSales   `json:"top_flowers"`
}

// SummarizeTotals folds transactions and sale lines into totals
func SummarizeTotals(txns []TransactionFact, items []ItemFact) Totals {
	t := Totals{
		Revenue:        decimal.Zero,
		SalesTotal:     decimal.Zero,
		AverageCheck:   decimal.Zero,
		ReturnsTotal:   decimal.Zero,
		WriteOffsTotal: decimal.Zero,
	}
	for _, f := range txns {
		switch f.Type {
		case typeSale:
			t.SalesCount++
			t.SalesTotal = t.SalesTotal.Add(f.Total)
		case typeReturn:
			t.ReturnsCount++
			t.ReturnsTotal = t.ReturnsTotal.Add(f.Total)
		case typeWriteOff:
			t.WriteOffsCount++
			t.WriteOffsTotal = t.WriteOffsTotal.Add(f.Total)
		}
	}
	for _, it := range items {
		switch it.TransactionType {
		case typeSale:
			t.StemsSold += it.Quantity
		case typeReturn:
			t.StemsSold -= it.Quantity
		}
	}
	t.Revenue = t.SalesTotal.Sub(t.ReturnsTotal)
	if t.SalesCount > 0 {
		t.AverageCheck = t.SalesTotal.Div(decimal.NewFromInt(int64(t.SalesCount))).Round(2)
	}
	return t
}

// BuildSalesReport aggregates facts of the window into a report
func BuildSalesReport(period Period, w Window, txns []TransactionFact, items []ItemFact, topN int) SalesReport {
	report := SalesReport{
		Period:       period,
		Window:       w,
		Totals:       SummarizeTotals(txns, items),
		PendingTotal: decimal.Zero,
	}

	points := make(map[int64]*SeriesPoint)
	buckets := w.Buckets()
	for _, start := range buckets {
		points[start.Unix()] = &SeriesPoint{Start: start, Label: w.Label(start), Revenue: decimal.Zero, WriteOffs: decimal.Zero}
	}

	shares := make(map[string]*PaymentShare)
	for _, f := range txns {
		p := points[w.Truncate(f.CreatedAt).Unix()]
		switch f.Type {
		case typeSale:
			if p != nil {
				p.Revenue = p.Revenue.Add(f.Total)
				p.SalesCount++
			}
			switch f.PaymentStatus {
			case statusPending:
				report.PendingTotal = report.PendingTotal.Add(f.Total)
			case statusPaid:
				s := share(shares, f.PaymentMethod)
				s.Count++
				s.Total = s.Total.Add(f.Total)
			}
		case typeReturn:
			if p != nil {
				p.Revenue = p.Revenue.Sub(f.Total)
			}
			if f.PaymentStatus == statusRefunded {
				s := share(shares, f.PaymentMethod)
				s.Total = s.Total.Sub(f.Total)
			}
		case typeWriteOff:
			if p != nil {
				p.WriteOffs = p.WriteOffs.Add(f.Total)
			}
		}
	}
	report.Series = make([]SeriesPoint, 0, len(buckets))
	for _, start := range buckets {
		report.Series = append(report.Series, *points[start.Unix()])
	}

	for _, s := range shares {
		report.ByPaymentMethod = append(report.ByPaymentMethod, *s)
	}
	sort.Slice(report.ByPaymentMethod, func(i, j int) bool {
		return report.ByPaymentMethod[i].Method < report.ByPaymentMethod[j].Method
	})

	report.TopFlowers = TopFlowers(items, topN)
	return report
}

func share(m map[string]*PaymentShare, method string) *PaymentShare {
	if method == "" {
		method = "unknown"
	}
	s, ok := m[method]
	if !ok {
		s = &PaymentShare{Method: method, Total: decimal.Zero}
		m[method] = s
	}
	return s
}

// TopFlowers ranks flowers by net revenue from sale lines minus returned lines
func TopFlowers(items []ItemFact, limit int) []FlowerSales {
	byFlower := make(map[uuid.UUID]*FlowerSales)
	for _, it := range items {
		if it.TransactionType != typeSale && it.TransactionType != typeReturn {
			continue
		}
		fs, ok := byFlower[it.FlowerID]
		if !ok {
			fs = &FlowerSales{FlowerID: it.FlowerID, Name: it.FlowerName, Revenue: decimal.Zero}
			byFlower[it.FlowerID] = fs
		}
		if it.TransactionType == typeSale {
			fs.Quantity += it.Quantity
			fs.Revenue = fs.Revenue.Add(it.Total)
		} else {
			fs.Quantity -= it.Quantity
			fs.Revenue = fs.Revenue.Sub(it.Total)
		}
	}
	out := make([]FlowerSales, 0, len(byFlower))
	for _, fs := range byFlower {
		out = append(out, *fs)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Revenue.Equal(out[j].Revenue) {
			return out[i].Revenue.GreaterThan(out[j].Revenue)
		}
		return out[i].Name < out[j].Name
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
