package pos

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/flora/backend/internal/domain/pos"
	"github.com/flora/backend/internal/domain/shared"
	"github.com/flora/backend/internal/infrastructure/printing"
	"github.com/google/uuid"
)

// ReceiptRenderer produces printable receipts
type ReceiptRenderer interface {
	HTML(r *printing.Receipt) ([]byte, error)
	PDF(ctx context.Context, r *printing.Receipt) ([]byte, error)
}

// Receipt formats
const (
	ReceiptFormatHTML = "html"
	ReceiptFormatPDF  = "pdf"
)

// ReceiptDocument is a rendered receipt ready to be sent
type ReceiptDocument struct {
	Content     []byte
	ContentType string
	Filename    string
}

// GetReceipt renders the receipt of a transaction as html (default) or pdf
func (s *TransactionService) GetReceipt(ctx context.Context, id uuid.UUID, format string) (*ReceiptDocument, error) {
	if s.printer == nil {
		return nil, shared.ErrUnavailable
	}
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = ReceiptFormatHTML
	}
	if format != ReceiptFormatHTML && format != ReceiptFormatPDF {
		return nil, shared.NewDomainError("INVALID_INPUT", fmt.Sprintf("Unknown receipt format %q, use html or pdf", format))
	}

	txn, err := s.txns.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	receipt, err := s.buildReceipt(ctx, txn)
	if err != nil {
		return nil, err
	}

	if format == ReceiptFormatPDF {
		content, err := s.printer.PDF(ctx, receipt)
		if err != nil {
			return nil, err
		}
		return &ReceiptDocument{Content: content, ContentType: "application/pdf", Filename: txn.Number + ".pdf"}, nil
	}
	content, err := s.printer.HTML(receipt)
	if err != nil {
		return nil, err
	}
	return &ReceiptDocument{Content: content, ContentType: "text/html; charset=utf-8", Filename: txn.Number + ".html"}, nil
}

func (s *TransactionService) buildReceipt(ctx context.Context, txn *pos.Transaction) (*printing.Receipt, error) {
	r := &printing.Receipt{
		Number:        txn.Number,
		Kind:          string(txn.Type),
		CreatedAt:     txn.CreatedAt,
		Subtotal:      txn.Subtotal,
		Discount:      txn.Discount,
		Total:         txn.Total,
		PaymentMethod: string(txn.PaymentMethod),
		PaymentStatus: string(txn.PaymentStatus),
		Reason:        txn.Reason,
		Items:         make([]printing.ReceiptItem, len(txn.Items)),
	}
	for i, it := range txn.Items {
		r.Items[i] = printing.ReceiptItem{
			Name:     it.FlowerName,
			Length:   it.Length,
			Quantity: it.Quantity,
			Price:    it.Price,
			Total:    it.Total,
		}
	}

	shift, err := s.shifts.FindByID(ctx, txn.ShiftID)
	switch {
	case err == nil:
		r.ShiftNumber = shift.Number
	case !errors.Is(err, shared.ErrNotFound):
		return nil, err
	}
	if txn.CustomerID != nil {
		c, err := s.customers.FindByID(ctx, *txn.CustomerID)
		switch {
		case err == nil:
			r.Customer = c.Name
		case !errors.Is(err, shared.ErrNotFound):
			return nil, err
		}
	}
	if txn.OriginalTransactionID != nil {
		orig, err := s.txns.FindByID(ctx, *txn.OriginalTransactionID)
		switch {
		case err == nil:
			r.OriginalNumber = orig.Number
		case !errors.Is(err, shared.ErrNotFound):
			return nil, err
		}
	}
	return r, nil
}
