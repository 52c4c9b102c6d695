package printing

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

const (
	defaultChromeTimeout = 30 * time.Second

	// receipts are cut to the measured content height within these bounds
	minReceiptHeightMM = 40
	maxReceiptHeightMM = 3000

	mmPerInch  = 25.4
	cssPxPerIn = 96
)

// ChromedpConfig configures the headless Chrome used for receipt PDFs
type ChromedpConfig struct {
	DefaultTimeout time.Duration
	// RemoteURL is the DevTools websocket of a running Chrome, e.g. a
	// chromedp/headless-shell sidecar. Empty launches a local browser.
	RemoteURL string
	ExecPath  string
	// NoSandbox is required when running as root in a container
	NoSandbox bool
	Logger    *zap.Logger
}

// ChromedpRenderer prints receipts through the Chrome DevTools Protocol.
// The browser process starts on the first render and is shared; each
// render gets its own tab.
type ChromedpRenderer struct {
	timeout     time.Duration
	logger      *zap.Logger
	allocCtx    context.Context
	allocCancel context.CancelFunc
}

func NewChromedpRenderer(cfg *ChromedpConfig) *ChromedpRenderer {
	if cfg == nil {
		cfg = &ChromedpConfig{}
	}
	r := &ChromedpRenderer{timeout: cfg.DefaultTimeout, logger: cfg.Logger}
	if r.timeout <= 0 {
		r.timeout = defaultChromeTimeout
	}
	if r.logger == nil {
		r.logger = zap.NewNop()
	}

	if cfg.RemoteURL != "" {
		r.allocCtx, r.allocCancel = chromedp.NewRemoteAllocator(context.Background(), cfg.RemoteURL)
	} else {
		r.allocCtx, r.allocCancel = chromedp.NewExecAllocator(context.Background(), execOptions(cfg)...)
	}
	return r
}

func execOptions(cfg *ChromedpConfig) []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-background-networking", true),
		chromedp.Flag("font-render-hinting", "none"),
	)
	if cfg.NoSandbox {
		opts = append(opts, chromedp.NoSandbox)
	}
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	return opts
}

// geometry is the receipt page in inches, the unit PrintToPDF takes
type geometry struct {
	width  float64
	margin float64
}

func receiptGeometry(req *RenderRequest) geometry {
	width := req.PaperWidthMM
	if width <= 0 {
		width = ReceiptWidthMM
	}
	return geometry{width: width / mmPerInch, margin: req.MarginMM / mmPerInch}
}

// height fits the page to contentPx CSS pixels of content plus margins
func (g geometry) height(contentPx float64) float64 {
	h := contentPx/cssPxPerIn + 2*g.margin
	return min(max(h, minReceiptHeightMM/mmPerInch), maxReceiptHeightMM/mmPerInch)
}

// Render prints req.HTML to a single continuous receipt page
func (r *ChromedpRenderer) Render(ctx context.Context, req *RenderRequest) (*RenderResult, error) {
	if req == nil {
		return nil, NewRenderError(ErrCodeInvalidHTML, "render request is nil", nil)
	}
	if strings.TrimSpace(req.HTML) == "" {
		return nil, NewRenderError(ErrCodeInvalidHTML, "HTML content is empty", nil)
	}

	started := time.Now()
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = r.timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	tab, closeTab := chromedp.NewContext(r.allocCtx, chromedp.WithLogf(r.logger.Sugar().Debugf))
	defer closeTab()
	stop := context.AfterFunc(ctx, closeTab)
	defer stop()

	geo := receiptGeometry(req)
	var (
		contentPx float64
		pdf       []byte
	)
	err := chromedp.Run(tab,
		chromedp.Navigate("about:blank"),
		loadDocument(wrapDocument(req)),
		chromedp.Evaluate(`document.documentElement.scrollHeight`, &contentPx),
		chromedp.ActionFunc(func(ctx context.Context) error {
			data, _, err := page.PrintToPDF().
				WithPrintBackground(true).
				WithPaperWidth(geo.width).
				WithPaperHeight(geo.height(contentPx)).
				WithMarginTop(geo.margin).
				WithMarginRight(geo.margin).
				WithMarginBottom(geo.margin).
				WithMarginLeft(geo.margin).
				Do(ctx)
			pdf = data
			return err
		}),
	)
	if err != nil {
		return nil, r.classify(ctx, timeout, err)
	}
	if len(pdf) == 0 {
		return nil, NewRenderError(ErrCodeRenderFailed, "generated PDF is empty", nil)
	}

	took := time.Since(started)
	r.logger.Debug("Receipt PDF rendered",
		zap.Int("bytes", len(pdf)),
		zap.Float64("content_px", contentPx),
		zap.Duration("duration", took),
	)
	return &RenderResult{PDFData: pdf, RenderDuration: took}, nil
}

// loadDocument replaces the blank page's content with doc
func loadDocument(doc string) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		tree, err := page.GetFrameTree().Do(ctx)
		if err != nil {
			return err
		}
		return page.SetDocumentContent(tree.Frame.ID, doc).Do(ctx)
	})
}

func (r *ChromedpRenderer) classify(ctx context.Context, timeout time.Duration, err error) error {
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return NewRenderError(ErrCodeRenderTimeout, fmt.Sprintf("PDF rendering timed out after %v", timeout), err)
	case errors.Is(ctx.Err(), context.Canceled):
		return NewRenderError(ErrCodeRenderTimeout, "PDF rendering was cancelled", err)
	}
	r.logger.Error("Receipt rendering failed", zap.Error(err))
	return NewRenderError(ErrCodeRenderFailed, "chromedp execution failed", err)
}

// wrapDocument turns an HTML fragment into a UTF-8 document; complete
// documents pass through
func wrapDocument(req *RenderRequest) string {
	lower := strings.ToLower(req.HTML)
	if strings.Contains(lower, "<!doctype") || strings.Contains(lower, "<html") {
		return req.HTML
	}
	var b strings.Builder
	b.WriteString(`<!DOCTYPE html><html><head><meta charset="UTF-8">`)
	if req.Title != "" {
		b.WriteString("<title>" + html.EscapeString(req.Title) + "</title>")
	}
	b.WriteString("</head><body>")
	b.WriteString(req.HTML)
	b.WriteString("</body></html>")
	return b.String()
}

// Close stops the browser
func (r *ChromedpRenderer) Close() error {
	r.allocCancel()
	return nil
}

var _ PDFRenderer = (*ChromedpRenderer)(nil)
