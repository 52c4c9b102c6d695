package printing

import (
	"context"
	"time"

	"github.com/flora/backend/internal/domain/shared"
)

// ReceiptWidthMM is the paper width of a thermal receipt printer
const ReceiptWidthMM = 80

// RenderRequest describes one HTML document to print. Receipts use
// continuous paper, so only the width is fixed.
type RenderRequest struct {
	HTML         string
	Title        string
	PaperWidthMM float64
	MarginMM     float64
	// Timeout overrides the renderer default
	Timeout time.Duration
}

// RenderResult is a printed document
type RenderResult struct {
	PDFData        []byte
	RenderDuration time.Duration
}

// PDFRenderer turns HTML into PDF
type PDFRenderer interface {
	Render(ctx context.Context, req *RenderRequest) (*RenderResult, error)
	Close() error
}

const (
	ErrCodeRenderTimeout = "RENDER_TIMEOUT"
	ErrCodeRenderFailed  = "RENDER_FAILED"
	ErrCodeInvalidHTML   = "INVALID_HTML"
)

// RenderError is a failed print. Browser failures and timeouts surface to
// API callers as shared.ErrUnavailable; invalid input stays an internal error.
type RenderError struct {
	Code    string
	Message string
	Cause   error
}

// NewRenderError creates a new RenderError
func NewRenderError(code, message string, cause error) *RenderError {
	return &RenderError{Code: code, Message: message, Cause: cause}
}

func (e *RenderError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *RenderError) Unwrap() error {
	return e.Cause
}

// As lets errors.As find shared.ErrUnavailable in a browser failure
func (e *RenderError) As(target any) bool {
	if e.Code == ErrCodeInvalidHTML {
		return false
	}
	de, ok := target.(**shared.DomainError)
	if ok {
		*de = shared.ErrUnavailable
	}
	return ok
}
