package printing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/flora/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRenderer struct {
	req    *RenderRequest
	err    error
	closed bool
}

func (f *fakeRenderer) Render(_ context.Context, req *RenderRequest) (*RenderResult, error) {
	f.req = req
	if f.err != nil {
		return nil, f.err
	}
	return &RenderResult{PDFData: []byte("%PDF-1.7")}, nil
}

func (f *fakeRenderer) Close() error {
	f.closed = true
	return nil
}

func sampleReceipt() *Receipt {
	return &Receipt{
		Number:        "S-20261019-ABC123",
		Kind:          "sale",
		CreatedAt:     time.Date(2026, 10, 19, 6, 30, 0, 0, time.UTC),
		ShiftNumber:   "SH-20261019-000001",
		Customer:      "Айгерим",
		PaymentMethod: "card",
		PaymentStatus: "paid",
		Items: []ReceiptItem{
			{Name: "Роза Red Naomi", Length: 60, Quantity: 25, Price: decimal.RequireFromString("450"), Total: decimal.RequireFromString("11250")},
			{Name: "Эвкалипт", Length: 50, Quantity: 3, Price: decimal.RequireFromString("1200.5"), Total: decimal.RequireFromString("3601.5")},
		},
		Subtotal: decimal.RequireFromString("14851.5"),
		Discount: decimal.RequireFromString("851.5"),
		Total:    decimal.RequireFromString("14000"),
	}
}

func TestGroupThousands(t *testing.T) {
	for in, want := range map[string]string{
		"0":            "0.00",
		"999.5":        "999.50",
		"1234.5":       "1 234.50",
		"-1234567.891": "-1 234 567.89",
		"1000":         "1 000.00",
		"12.345":       "12.35",
	} {
		assert.Equal(t, want, groupThousands(decimal.RequireFromString(in)), in)
	}
}

func TestTemplateEngine_Formatting(t *testing.T) {
	loc := time.FixedZone("ALMT", 5*3600)
	e := NewTemplateEngine(WithLocation(loc), WithCurrencySymbol("KZT"))

	out, err := e.RenderString("t", `{{formatMoney .Amount}}|{{formatDateTime .At}}|{{formatDate .At}}|{{formatLength .Len}}|{{formatDate .Never}}|{{isPositive .Amount}}`, map[string]any{
		"Amount": decimal.RequireFromString("2500"),
		"At":     time.Date(2026, 10, 19, 20, 15, 0, 0, time.UTC),
		"Never":  time.Time{},
		"Len":    70,
	})
	require.NoError(t, err)
	assert.Equal(t, "2 500.00 KZT|20.10.2026 01:15|20.10.2026|70 см||true", out)
}

func TestTemplateEngine_Errors(t *testing.T) {
	e := NewTemplateEngine()

	_, err := e.RenderString("empty", "   ", nil)
	var renderErr *RenderError
	require.ErrorAs(t, err, &renderErr)
	assert.Equal(t, ErrCodeInvalidHTML, renderErr.Code)

	_, err = e.RenderString("broken", "{{ .Foo ", nil)
	require.ErrorAs(t, err, &renderErr)
	assert.Equal(t, ErrCodeInvalidHTML, renderErr.Code)

	_, err = e.RenderString("missing", "{{ .Foo.Bar }}", struct{ Foo int }{})
	require.ErrorAs(t, err, &renderErr)
	assert.Equal(t, ErrCodeRenderFailed, renderErr.Code)
}

func TestReceiptPrinter_HTML(t *testing.T) {
	p, err := NewReceiptPrinter(NewTemplateEngine(WithLocation(time.FixedZone("ALMT", 5*3600))), nil, "Flora Opt")
	require.NoError(t, err)

	out, err := p.HTML(sampleReceipt())
	require.NoError(t, err)
	html := string(out)

	assert.Contains(t, html, "Flora Opt")
	assert.Contains(t, html, "Товарный чек")
	assert.Contains(t, html, "S-20261019-ABC123")
	assert.Contains(t, html, "19.10.2026 11:30")
	assert.Contains(t, html, "Роза Red Naomi 60 см")
	assert.Contains(t, html, "25 × 450.00")
	assert.Contains(t, html, "11 250.00")
	assert.Contains(t, html, "Скидка")
	assert.Contains(t, html, "14 000.00 ₸")
	assert.Contains(t, html, "Карта")
	assert.False(t, p.PDFEnabled())
}

func TestReceiptPrinter_HTMLEscapes(t *testing.T) {
	p, err := NewReceiptPrinter(nil, nil, "Flora")
	require.NoError(t, err)

	r := sampleReceipt()
	r.Customer = "<script>alert(1)</script>"
	r.Discount = decimal.Zero
	out, err := p.HTML(r)
	require.NoError(t, err)

	assert.NotContains(t, string(out), "<script>alert(1)</script>")
	assert.NotContains(t, string(out), "Скидка")
}

func TestReceipt_Labels(t *testing.T) {
	r := &Receipt{Kind: "write_off", PaymentStatus: "not_applicable"}
	assert.Equal(t, "Акт списания", r.Title())
	assert.Empty(t, r.PaymentLabel())

	r = &Receipt{Kind: "return", PaymentStatus: "refunded", PaymentMethod: "cash"}
	assert.Equal(t, "Возврат", r.Title())
	assert.Equal(t, "Наличные", r.PaymentLabel())

	r = &Receipt{Kind: "sale", PaymentStatus: "pending"}
	assert.Equal(t, "В долг", r.PaymentLabel())
}

func TestReceiptPrinter_PDF(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		p, err := NewReceiptPrinter(nil, nil, "Flora")
		require.NoError(t, err)
		_, err = p.PDF(context.Background(), sampleReceipt())
		assert.ErrorIs(t, err, ErrPDFDisabled)
		assert.NoError(t, p.Close())
	})

	t.Run("renders on receipt paper", func(t *testing.T) {
		fr := &fakeRenderer{}
		p, err := NewReceiptPrinter(nil, fr, "Flora")
		require.NoError(t, err)

		data, err := p.PDF(context.Background(), sampleReceipt())
		require.NoError(t, err)
		assert.Equal(t, []byte("%PDF-1.7"), data)
		require.NotNil(t, fr.req)
		assert.Equal(t, float64(ReceiptWidthMM), fr.req.PaperWidthMM)
		assert.Equal(t, "S-20261019-ABC123", fr.req.Title)
		assert.Contains(t, fr.req.HTML, "<!DOCTYPE html>")

		require.NoError(t, p.Close())
		assert.True(t, fr.closed)
	})

	t.Run("renderer failure", func(t *testing.T) {
		fr := &fakeRenderer{err: NewRenderError(ErrCodeRenderTimeout, "timed out", nil)}
		p, err := NewReceiptPrinter(nil, fr, "Flora")
		require.NoError(t, err)

		_, err = p.PDF(context.Background(), sampleReceipt())
		var renderErr *RenderError
		require.True(t, errors.As(err, &renderErr))
		assert.Equal(t, ErrCodeRenderTimeout, renderErr.Code)

		// the API answers 503 for a browser failure
		var domainErr *shared.DomainError
		require.True(t, errors.As(err, &domainErr))
		assert.Equal(t, shared.ErrUnavailable.Code, domainErr.Code)
	})
}

func TestRenderError_InvalidHTMLIsNotUnavailable(t *testing.T) {
	var domainErr *shared.DomainError
	assert.False(t, errors.As(NewRenderError(ErrCodeInvalidHTML, "empty", nil), &domainErr))
}

func TestReceiptGeometry(t *testing.T) {
	geo := receiptGeometry(&RenderRequest{HTML: "<p>x</p>", MarginMM: 2})
	assert.InDelta(t, 80/25.4, geo.width, 0.001)
	assert.InDelta(t, 2/25.4, geo.margin, 0.001)

	geo = receiptGeometry(&RenderRequest{HTML: "<p>x</p>", PaperWidthMM: 58})
	assert.InDelta(t, 58/25.4, geo.width, 0.001)
	assert.Zero(t, geo.margin)
}

func TestGeometry_HeightFitsContent(t *testing.T) {
	geo := geometry{width: 80 / 25.4, margin: 0.1}

	// 960 CSS px is 10 inches, plus top and bottom margins
	assert.InDelta(t, 10.2, geo.height(960), 0.001)
	// a near-empty receipt still gets a tear-off length
	assert.InDelta(t, 40/25.4, geo.height(10), 0.001)
	// runaway content is capped
	assert.InDelta(t, 3000/25.4, geo.height(1e6), 0.001)
}

func TestWrapDocument(t *testing.T) {
	full := "<!DOCTYPE html><html><body>x</body></html>"
	assert.Equal(t, full, wrapDocument(&RenderRequest{HTML: full}))

	wrapped := wrapDocument(&RenderRequest{HTML: "<p>x</p>", Title: "A&B"})
	assert.Contains(t, wrapped, `<meta charset="UTF-8">`)
	assert.Contains(t, wrapped, "<title>A&amp;B</title>")
	assert.Contains(t, wrapped, "<body><p>x</p></body>")
}

func TestChromedpRenderer_RejectsEmptyHTML(t *testing.T) {
	r := NewChromedpRenderer(&ChromedpConfig{RemoteURL: "ws://127.0.0.1:1/devtools/browser/none"})
	defer r.Close()

	_, err := r.Render(context.Background(), &RenderRequest{HTML: "  "})
	var renderErr *RenderError
	require.ErrorAs(t, err, &renderErr)
	assert.Equal(t, ErrCodeInvalidHTML, renderErr.Code)

	_, err = r.Render(context.Background(), nil)
	require.ErrorAs(t, err, &renderErr)
}
