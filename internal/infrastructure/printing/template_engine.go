package printing

import (
	"bytes"
	"html/template"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TemplateEngine renders receipt templates. Its helpers format money the
// way Kazakh tills print it (space-grouped thousands, symbol after the
// amount), times in the shop's zone and stem lengths in centimetres.
type TemplateEngine struct {
	location *time.Location
	currency string
}

type TemplateEngineOption func(*TemplateEngine)

// WithLocation renders times in loc instead of UTC
func WithLocation(loc *time.Location) TemplateEngineOption {
	return func(e *TemplateEngine) {
		if loc != nil {
			e.location = loc
		}
	}
}

// WithCurrencySymbol sets the symbol printed after amounts (default ₸)
func WithCurrencySymbol(symbol string) TemplateEngineOption {
	return func(e *TemplateEngine) {
		e.currency = symbol
	}
}

func NewTemplateEngine(opts ...TemplateEngineOption) *TemplateEngine {
	e := &TemplateEngine{location: time.UTC, currency: "₸"}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *TemplateEngine) funcs() template.FuncMap {
	return template.FuncMap{
		"formatMoney":    e.formatMoney,
		"amount":         groupThousands,
		"formatDateTime": e.inZone("02.01.2006 15:04"),
		"formatDate":     e.inZone("02.01.2006"),
		"formatLength":   formatLength,
		"isPositive":     decimal.Decimal.IsPositive,
	}
}

// Parse compiles a named template with the engine helpers
func (e *TemplateEngine) Parse(name, content string) (*template.Template, error) {
	if strings.TrimSpace(content) == "" {
		return nil, NewRenderError(ErrCodeInvalidHTML, "template content is empty", nil)
	}
	tmpl, err := template.New(name).Funcs(e.funcs()).Parse(content)
	if err != nil {
		return nil, NewRenderError(ErrCodeInvalidHTML, "failed to parse template", err)
	}
	return tmpl, nil
}

func (e *TemplateEngine) Execute(tmpl *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", NewRenderError(ErrCodeRenderFailed, "failed to execute template", err)
	}
	return buf.String(), nil
}

// RenderString parses and executes in one step
func (e *TemplateEngine) RenderString(name, content string, data any) (string, error) {
	tmpl, err := e.Parse(name, content)
	if err != nil {
		return "", err
	}
	return e.Execute(tmpl, data)
}

// formatMoney: 1234.5 -> "1 234.50 ₸"
func (e *TemplateEngine) formatMoney(d decimal.Decimal) string {
	if e.currency == "" {
		return groupThousands(d)
	}
	return groupThousands(d) + " " + e.currency
}

func (e *TemplateEngine) inZone(layout string) func(time.Time) string {
	return func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.In(e.location).Format(layout)
	}
}

// groupThousands rounds to tiyn and separates thousands with spaces:
// -1234567.891 -> "-1 234 567.89"
func groupThousands(d decimal.Decimal) string {
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Abs()
	}
	intPart, fraction, _ := strings.Cut(d.StringFixed(2), ".")

	var b strings.Builder
	for i, c := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(' ')
		}
		b.WriteRune(c)
	}
	return sign + b.String() + "." + fraction
}

// formatLength: 60 -> "60 см"; unknown lengths print nothing
func formatLength(cm int) string {
	if cm <= 0 {
		return ""
	}
	return strconv.Itoa(cm) + " см"
}
