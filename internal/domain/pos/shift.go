package pos

import (
	"fmt"
	"strings"
	"time"

	"github.com/flora/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ShiftStatus is open or closed
type ShiftStatus string

const (
	ShiftStatusOpen   ShiftStatus = "open"
	ShiftStatusClosed ShiftStatus = "closed"
)

// ShiftSummary aggregates the transactions of a shift
type ShiftSummary struct {
	SalesCount     int             `gorm:"not null;default:0" json:"sales_count"`
	SalesTotal     decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0" json:"sales_total"`
	CashTotal      decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0" json:"cash_total"`
	CardTotal      decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0" json:"card_total"`
	TransferTotal  decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0" json:"transfer_total"`
	PendingTotal   decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0" json:"pending_total"`
	CollectedCount int             `gorm:"not null;default:0" json:"collected_count"`
	CollectedTotal decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0" json:"collected_total"`
	WriteOffsCount int             `gorm:"not null;default:0" json:"write_offs_count"`
	WriteOffsTotal decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0" json:"write_offs_total"`
	ReturnsCount   int             `gorm:"not null;default:0" json:"returns_count"`
	ReturnsTotal   decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0" json:"returns_total"`
	NetTotal       decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0" json:"net_total"`
}

// Summarize computes the totals of shiftID. Sales and write-offs count in
// the shift they were rung up in; money counts in the shift it was taken in,
// so a pending sale paid later shows up as collected in the paying shift.
// Refunds are taken out of the method the sale was paid with.
func Summarize(shiftID uuid.UUID, txns []Transaction) ShiftSummary {
	s := ShiftSummary{
		SalesTotal:     decimal.Zero,
		CashTotal:      decimal.Zero,
		CardTotal:      decimal.Zero,
		TransferTotal:  decimal.Zero,
		PendingTotal:   decimal.Zero,
		CollectedTotal: decimal.Zero,
		WriteOffsTotal: decimal.Zero,
		ReturnsTotal:   decimal.Zero,
	}
	for _, t := range txns {
		rungUpHere := t.ShiftID == shiftID
		switch t.Type {
		case TransactionTypeSale:
			if rungUpHere {
				s.SalesCount++
				s.SalesTotal = s.SalesTotal.Add(t.Total)
			}
			switch {
			case t.PaymentStatus == PaymentStatusPending && rungUpHere:
				s.PendingTotal = s.PendingTotal.Add(t.Total)
			case t.PaymentStatus == PaymentStatusPaid && t.SettledIn() == shiftID:
				s.addByMethod(t.PaymentMethod, t.Total)
				if !rungUpHere {
					s.CollectedCount++
					s.CollectedTotal = s.CollectedTotal.Add(t.Total)
				}
			case t.PaymentStatus == PaymentStatusPaid && rungUpHere:
				// paid after this shift closed
				s.PendingTotal = s.PendingTotal.Add(t.Total)
			}
		case TransactionTypeWriteOff:
			if rungUpHere {
				s.WriteOffsCount++
				s.WriteOffsTotal = s.WriteOffsTotal.Add(t.Total)
			}
		case TransactionTypeReturn:
			if !rungUpHere {
				continue
			}
			s.ReturnsCount++
			s.ReturnsTotal = s.ReturnsTotal.Add(t.Total)
			if t.PaymentStatus == PaymentStatusRefunded {
				s.addByMethod(t.PaymentMethod, t.Total.Neg())
			}
		}
	}
	s.NetTotal = s.SalesTotal.Sub(s.ReturnsTotal)
	return s
}

func (s *ShiftSummary) addByMethod(m PaymentMethod, amount decimal.Decimal) {
	switch m {
	case PaymentMethodCash:
		s.CashTotal = s.CashTotal.Add(amount)
	case PaymentMethodCard:
		s.CardTotal = s.CardTotal.Add(amount)
	case PaymentMethodTransfer:
		s.TransferTotal = s.TransferTotal.Add(amount)
	}
}

// Shift is a POS working session. At most one shift is open at a time.
type Shift struct {
	shared.BaseAggregateRoot
	Number         string      `gorm:"type:varchar(40);not null;uniqueIndex"`
	Status         ShiftStatus `gorm:"type:varchar(20);not null;index"`
	OpenedAt       time.Time   `gorm:"not null"`
	OpenedBy       uuid.UUID   `gorm:"type:uuid;not null"`
	ClosedAt       *time.Time
	ClosedBy       *uuid.UUID       `gorm:"type:uuid"`
	OpeningCash    decimal.Decimal  `gorm:"type:decimal(18,2);not null;default:0"`
	ClosingCash    *decimal.Decimal `gorm:"type:decimal(18,2)"`
	ExpectedCash   decimal.Decimal  `gorm:"type:decimal(18,2);not null;default:0"`
	CashDifference decimal.Decimal  `gorm:"type:decimal(18,2);not null;default:0"`
	Notes          string           `gorm:"type:text"`
	ShiftSummary   `gorm:"embedded"`
}

// TableName returns the table name for GORM
func (Shift) TableName() string {
	return "shifts"
}

// OpenShift starts a new shift
func OpenShift(openedBy uuid.UUID, openingCash decimal.Decimal) (*Shift, error) {
	if openingCash.IsNegative() {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Opening cash cannot be negative")
	}
	s := &Shift{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Status:            ShiftStatusOpen,
		OpenedBy:          openedBy,
		OpeningCash:       shared.RoundMoney(openingCash),
		ExpectedCash:      shared.RoundMoney(openingCash),
		ShiftSummary:      Summarize(uuid.Nil, nil),
	}
	s.OpenedAt = s.CreatedAt
	s.Number = fmt.Sprintf("SH-%s-%s", s.OpenedAt.Format("20060102"), strings.ToUpper(uuid.NewString()[:6]))
	s.AddDomainEvent(NewShiftEvent(EventTypeShiftOpened, s))
	return s, nil
}

// IsOpen returns true while the shift accepts transactions
func (s *Shift) IsOpen() bool {
	return s.Status == ShiftStatusOpen
}

// Close freezes the shift totals. closingCash is the counted drawer amount, if any.
func (s *Shift) Close(summary ShiftSummary, closingCash *decimal.Decimal, notes string, closedBy uuid.UUID) error {
	if !s.IsOpen() {
		return shared.NewDomainError("INVALID_STATE", "Shift is already closed")
	}
	if closingCash != nil && closingCash.IsNegative() {
		return shared.NewDomainError("INVALID_AMOUNT", "Closing cash cannot be negative")
	}
	now := time.Now()
	s.ShiftSummary = summary
	s.ExpectedCash = s.OpeningCash.Add(summary.CashTotal)
	if closingCash != nil {
		counted := shared.RoundMoney(*closingCash)
		s.ClosingCash = &counted
		s.CashDifference = counted.Sub(s.ExpectedCash)
	}
	s.Notes = strings.TrimSpace(notes)
	s.Status = ShiftStatusClosed
	s.ClosedAt = &now
	s.ClosedBy = &closedBy
	s.UpdatedAt = now
	s.IncrementVersion()
	s.AddDomainEvent(NewShiftEvent(EventTypeShiftClosed, s))
	return nil
}
