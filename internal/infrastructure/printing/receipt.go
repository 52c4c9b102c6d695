package printing

import (
	"context"
	"html/template"
	"time"

	"github.com/flora/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// ErrPDFDisabled is returned when PDF receipts are requested without a renderer
var ErrPDFDisabled = shared.NewDomainError("SERVICE_UNAVAILABLE", "PDF receipts are not enabled")

// ReceiptItem is one printed line
type ReceiptItem struct {
	Name     string
	Length   int
	Quantity int
	Price    decimal.Decimal
	Total    decimal.Decimal
}

// Receipt is the printable view of a POS transaction
type Receipt struct {
	StoreName      string
	Number         string
	Kind           string // sale, write_off or return
	CreatedAt      time.Time
	ShiftNumber    string
	Customer       string
	Items          []ReceiptItem
	Subtotal       decimal.Decimal
	Discount       decimal.Decimal
	Total          decimal.Decimal
	PaymentMethod  string
	PaymentStatus  string
	Reason         string
	OriginalNumber string
}

// Title is the document heading for the receipt kind
func (r *Receipt) Title() string {
	switch r.Kind {
	case "write_off":
		return "Акт списания"
	case "return":
		return "Возврат"
	default:
		return "Товарный чек"
	}
}

// PaymentLabel translates the payment method and status for print
func (r *Receipt) PaymentLabel() string {
	switch r.PaymentStatus {
	case "pending":
		return "В долг"
	case "not_applicable":
		return ""
	}
	switch r.PaymentMethod {
	case "cash":
		return "Наличные"
	case "card":
		return "Карта"
	case "transfer":
		return "Перевод"
	}
	return r.PaymentMethod
}

const receiptTemplate = `<!DOCTYPE html>
<html lang="ru">
<head>
<meta charset="UTF-8">
<title>{{.Title}} {{.Number}}</title>
<style>
body { font-family: "DejaVu Sans Mono", monospace; font-size: 11px; width: 72mm; margin: 0 auto; }
h1 { font-size: 13px; text-align: center; margin: 4px 0; }
.center { text-align: center; }
table { width: 100%; border-collapse: collapse; }
td { padding: 1px 0; vertical-align: top; }
td.num { text-align: right; white-space: nowrap; }
.sep { border-top: 1px dashed #000; margin: 4px 0; }
.total td { font-weight: bold; font-size: 12px; }
</style>
</head>
<body>
<div class="center">{{.StoreName}}</div>
<h1>{{.Title}}</h1>
<div class="center">№ {{.Number}}</div>
<div class="center">{{formatDateTime .CreatedAt}}</div>
{{- if .ShiftNumber}}<div>Смена: {{.ShiftNumber}}</div>{{end}}
{{- if .Customer}}<div>Покупатель: {{.Customer}}</div>{{end}}
{{- if .OriginalNumber}}<div>К чеку: {{.OriginalNumber}}</div>{{end}}
<div class="sep"></div>
<table>
{{- range .Items}}
<tr><td colspan="2">{{.Name}} {{formatLength .Length}}</td></tr>
<tr><td>{{.Quantity}} × {{amount .Price}}</td><td class="num">{{amount .Total}}</td></tr>
{{- end}}
</table>
<div class="sep"></div>
<table>
<tr><td>Подытог</td><td class="num">{{formatMoney .Subtotal}}</td></tr>
{{- if isPositive .Discount}}
<tr><td>Скидка</td><td class="num">-{{formatMoney .Discount}}</td></tr>
{{- end}}
<tr class="total"><td>Итого</td><td class="num">{{formatMoney .Total}}</td></tr>
{{- with .PaymentLabel}}
<tr><td>Оплата</td><td class="num">{{.}}</td></tr>
{{- end}}
</table>
{{- if .Reason}}<div>Причина: {{.Reason}}</div>{{end}}
<div class="sep"></div>
<div class="center">Спасибо за покупку!</div>
</body>
</html>
`

// ReceiptPrinter renders receipts as HTML and, when a PDF renderer is
// configured, as PDF
type ReceiptPrinter struct {
	engine    *TemplateEngine
	tmpl      *template.Template
	pdf       PDFRenderer
	storeName string
}

// NewReceiptPrinter compiles the receipt template. pdf may be nil.
func NewReceiptPrinter(engine *TemplateEngine, pdf PDFRenderer, storeName string) (*ReceiptPrinter, error) {
	if engine == nil {
		engine = NewTemplateEngine()
	}
	tmpl, err := engine.Parse("receipt", receiptTemplate)
	if err != nil {
		return nil, err
	}
	return &ReceiptPrinter{engine: engine, tmpl: tmpl, pdf: pdf, storeName: storeName}, nil
}

// PDFEnabled reports whether PDF output is available
func (p *ReceiptPrinter) PDFEnabled() bool {
	return p.pdf != nil
}

// HTML renders the receipt document
func (p *ReceiptPrinter) HTML(r *Receipt) ([]byte, error) {
	if r.StoreName == "" {
		r.StoreName = p.storeName
	}
	out, err := p.engine.Execute(p.tmpl, r)
	if err != nil {
		return nil, err
	}
	return []byte(out), nil
}

// PDF renders the receipt on 80 mm paper
func (p *ReceiptPrinter) PDF(ctx context.Context, r *Receipt) ([]byte, error) {
	if p.pdf == nil {
		return nil, ErrPDFDisabled
	}
	doc, err := p.HTML(r)
	if err != nil {
		return nil, err
	}
	res, err := p.pdf.Render(ctx, &RenderRequest{
		HTML:         string(doc),
		Title:        r.Number,
		PaperWidthMM: ReceiptWidthMM,
		MarginMM:     2,
	})
	if err != nil {
		return nil, err
	}
	return res.PDFData, nil
}

// Close releases the PDF renderer
func (p *ReceiptPrinter) Close() error {
	if p.pdf == nil {
		return nil
	}
	return p.pdf.Close()
}
