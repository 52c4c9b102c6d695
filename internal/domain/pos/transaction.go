package pos

import (
	"fmt"
	"strings"
	"time"

	"github.com/flora/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionType distinguishes sales, write-offs and returns
type TransactionType string

const (
	TransactionTypeSale     TransactionType = "sale"
	TransactionTypeWriteOff TransactionType = "write_off"
	TransactionTypeReturn   TransactionType = "return"
)

// IsValid returns true if the type is known
func (t TransactionType) IsValid() bool {
	switch t {
	case TransactionTypeSale, TransactionTypeWriteOff, TransactionTypeReturn:
		return true
	}
	return false
}

func (t TransactionType) numberPrefix() string {
	switch t {
	case TransactionTypeWriteOff:
		return "W"
	case TransactionTypeReturn:
		return "R"
	default:
		return "S"
	}
}

// TransactionStatus tracks returns against a sale
type TransactionStatus string

const (
	TransactionStatusCompleted         TransactionStatus = "completed"
	TransactionStatusPartiallyReturned TransactionStatus = "partially_returned"
	TransactionStatusReturned          TransactionStatus = "returned"
)

// PaymentStatus of a transaction
type PaymentStatus string

const (
	PaymentStatusPaid          PaymentStatus = "paid"
	PaymentStatusPending       PaymentStatus = "pending"
	PaymentStatusRefunded      PaymentStatus = "refunded"
	PaymentStatusNotApplicable PaymentStatus = "not_applicable"
)

// PaymentMethod used to settle a sale
type PaymentMethod string

const (
	PaymentMethodCash     PaymentMethod = "cash"
	PaymentMethodCard     PaymentMethod = "card"
	PaymentMethodTransfer PaymentMethod = "transfer"
)

// IsValid returns true if the method is known
func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentMethodCash, PaymentMethodCard, PaymentMethodTransfer:
		return true
	}
	return false
}

// OperatorKind tells which token family the operator authenticated with
type OperatorKind string

const (
	OperatorCustomer OperatorKind = "customer"
	OperatorAdmin    OperatorKind = "admin"
)

// Operator is the authenticated principal performing an operation
type Operator struct {
	ID   uuid.UUID
	Kind OperatorKind
}

// Transaction is a POS document: a sale, a write-off or a return
type Transaction struct {
	shared.BaseAggregateRoot
	Number                string            `gorm:"type:varchar(40);not null;uniqueIndex"`
	Type                  TransactionType   `gorm:"type:varchar(20);not null;index"`
	Status                TransactionStatus `gorm:"type:varchar(30);not null;default:'completed'"`
	PaymentStatus         PaymentStatus     `gorm:"type:varchar(20);not null;index"`
	PaymentMethod         PaymentMethod     `gorm:"type:varchar(20)"`
	ShiftID               uuid.UUID         `gorm:"type:uuid;not null;index"`
	CustomerID            *uuid.UUID        `gorm:"type:uuid;index"`
	Subtotal              decimal.Decimal   `gorm:"type:decimal(18,2);not null;default:0"`
	Discount              decimal.Decimal   `gorm:"type:decimal(18,2);not null;default:0"`
	Total                 decimal.Decimal   `gorm:"type:decimal(18,2);not null;default:0"`
	OriginalTransactionID *uuid.UUID        `gorm:"type:uuid;index"`
	Reason                string            `gorm:"type:varchar(255)"`
	Notes                 string            `gorm:"type:text"`
	OperatorID            uuid.UUID         `gorm:"type:uuid;not null"`
	OperatorKind          OperatorKind      `gorm:"type:varchar(20);not null"`
	IdempotencyKey        *string           `gorm:"type:varchar(100);uniqueIndex"`
	PaidAt                *time.Time
	PaidShiftID           *uuid.UUID        `gorm:"type:uuid;index"`
	Items                 []TransactionItem `gorm:"foreignKey:TransactionID"`
}

// TableName returns the table name for GORM
func (Transaction) TableName() string {
	return "pos_transactions"
}

// SettledIn is the shift whose till holds the money for t. Rows written
// before the paying shift was recorded fall back to ShiftID.
func (t *Transaction) SettledIn() uuid.UUID {
	if t.PaidShiftID != nil {
		return *t.PaidShiftID
	}
	return t.ShiftID
}

// TransactionItem is a line of a transaction
type TransactionItem struct {
	ID               uuid.UUID       `gorm:"type:uuid;primaryKey"`
	TransactionID    uuid.UUID       `gorm:"type:uuid;not null;index"`
	VariantID        uuid.UUID       `gorm:"type:uuid;not null;index"`
	FlowerID         uuid.UUID       `gorm:"type:uuid;not null;index"`
	FlowerName       string          `gorm:"type:varchar(200);not null"`
	Length           int             `gorm:"not null"`
	Quantity         int             `gorm:"not null"`
	Price            decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	Total            decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	ReturnedQuantity int             `gorm:"not null;default:0"`
	OriginalItemID   *uuid.UUID      `gorm:"type:uuid"`
}

// TableName returns the table name for GORM
func (TransactionItem) TableName() string {
	return "pos_transaction_items"
}

// Returnable is the quantity of the line not yet returned
func (i *TransactionItem) Returnable() int {
	return i.Quantity - i.ReturnedQuantity
}

// Line is a resolved line used to build a transaction
type Line struct {
	VariantID  uuid.UUID
	FlowerID   uuid.UUID
	FlowerName string
	Length     int
	Quantity   int
	Price      decimal.Decimal
}

// SaleInput holds the data of a new sale
type SaleInput struct {
	Lines          []Line
	Discount       decimal.Decimal
	PaymentMethod  PaymentMethod
	PaymentStatus  PaymentStatus
	CustomerID     *uuid.UUID
	ShiftID        uuid.UUID
	Operator       Operator
	Notes          string
	IdempotencyKey string
}

// NewSale validates and builds a completed sale
func NewSale(in SaleInput) (*Transaction, error) {
	if in.PaymentStatus == "" {
		in.PaymentStatus = PaymentStatusPaid
	}
	if in.PaymentStatus != PaymentStatusPaid && in.PaymentStatus != PaymentStatusPending {
		return nil, shared.NewDomainError("INVALID_PAYMENT_STATUS", "Sale payment status must be paid or pending")
	}
	if in.PaymentStatus == PaymentStatusPaid && !in.PaymentMethod.IsValid() {
		return nil, shared.NewDomainError("INVALID_PAYMENT_METHOD", "Payment method must be cash, card or transfer")
	}
	if in.PaymentMethod != "" && !in.PaymentMethod.IsValid() {
		return nil, shared.NewDomainError("INVALID_PAYMENT_METHOD", "Payment method must be cash, card or transfer")
	}
	if in.PaymentStatus == PaymentStatusPending && in.CustomerID == nil {
		return nil, shared.NewDomainError("CUSTOMER_REQUIRED", "A customer is required for sales paid later")
	}
	if in.Discount.IsNegative() {
		return nil, shared.NewDomainError("INVALID_DISCOUNT", "Discount cannot be negative")
	}

	t, err := newTransaction(TransactionTypeSale, in.ShiftID, in.Operator, in.Lines)
	if err != nil {
		return nil, err
	}
	discount := shared.RoundMoney(in.Discount)
	if discount.GreaterThan(t.Subtotal) {
		return nil, shared.NewDomainError("INVALID_DISCOUNT", "Discount cannot exceed the subtotal")
	}
	t.Discount = discount
	t.Total = t.Subtotal.Sub(discount)
	t.PaymentStatus = in.PaymentStatus
	t.PaymentMethod = in.PaymentMethod
	t.CustomerID = in.CustomerID
	t.Notes = strings.TrimSpace(in.Notes)
	if in.IdempotencyKey != "" {
		key := in.IdempotencyKey
		t.IdempotencyKey = &key
	}
	if t.PaymentStatus == PaymentStatusPaid {
		paidAt := t.CreatedAt
		t.PaidAt = &paidAt
		paidIn := t.ShiftID
		t.PaidShiftID = &paidIn
	}
	t.AddDomainEvent(NewTransactionEvent(EventTypeSaleCompleted, t))
	return t, nil
}

// WriteOffInput holds the data of a new write-off
type WriteOffInput struct {
	Lines    []Line
	Reason   string
	ShiftID  uuid.UUID
	Operator Operator
	Notes    string
}

// NewWriteOff validates and builds a write-off valued at sale prices
func NewWriteOff(in WriteOffInput) (*Transaction, error) {
	reason := strings.TrimSpace(in.Reason)
	if reason == "" {
		return nil, shared.NewDomainError("REASON_REQUIRED", "Write-off reason is required")
	}
	t, err := newTransaction(TransactionTypeWriteOff, in.ShiftID, in.Operator, in.Lines)
	if err != nil {
		return nil, err
	}
	t.Total = t.Subtotal
	t.PaymentStatus = PaymentStatusNotApplicable
	t.Reason = reason
	t.Notes = strings.TrimSpace(in.Notes)
	t.AddDomainEvent(NewTransactionEvent(EventTypeWriteOffRecorded, t))
	return t, nil
}

func newTransaction(typ TransactionType, shiftID uuid.UUID, op Operator, lines []Line) (*Transaction, error) {
	if len(lines) == 0 {
		return nil, shared.NewDomainError("EMPTY_TRANSACTION", "At least one item is required")
	}
	if shiftID == uuid.Nil {
		return nil, shared.NewDomainError("SHIFT_REQUIRED", "An open shift is required")
	}
	t := &Transaction{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Type:              typ,
		Status:            TransactionStatusCompleted,
		ShiftID:           shiftID,
		OperatorID:        op.ID,
		OperatorKind:      op.Kind,
		Subtotal:          decimal.Zero,
		Discount:          decimal.Zero,
		Total:             decimal.Zero,
	}
	t.Number = NewTransactionNumber(typ, t.CreatedAt)

	seen := make(map[uuid.UUID]bool, len(lines))
	for _, l := range lines {
		if seen[l.VariantID] {
			return nil, shared.NewDomainError("DUPLICATE_ITEM", "Each variant may appear only once")
		}
		seen[l.VariantID] = true
		if l.Quantity <= 0 {
			return nil, shared.NewDomainError("INVALID_QUANTITY", "Quantity must be positive")
		}
		if l.Price.IsNegative() {
			return nil, shared.NewDomainError("INVALID_PRICE", "Price cannot be negative")
		}
		price := shared.RoundMoney(l.Price)
		lineTotal := price.Mul(decimal.NewFromInt(int64(l.Quantity)))
		t.Items = append(t.Items, TransactionItem{
			ID:            uuid.New(),
			TransactionID: t.ID,
			VariantID:     l.VariantID,
			FlowerID:      l.FlowerID,
			FlowerName:    l.FlowerName,
			Length:        l.Length,
			Quantity:      l.Quantity,
			Price:         price,
			Total:         lineTotal,
		})
		t.Subtotal = t.Subtotal.Add(lineTotal)
	}
	return t, nil
}

// NewTransactionNumber builds a document number such as S-20261019-1A2B3C
func NewTransactionNumber(typ TransactionType, at time.Time) string {
	return fmt.Sprintf("%s-%s-%s", typ.numberPrefix(), at.Format("20060102"), strings.ToUpper(uuid.NewString()[:6]))
}

// ConfirmPayment settles a pending sale. The money is counted in shiftID,
// which may be a later shift than the one the sale was rung up in.
func (t *Transaction) ConfirmPayment(method PaymentMethod, shiftID uuid.UUID) error {
	if t.Type != TransactionTypeSale {
		return shared.NewDomainError("INVALID_STATE", "Only sales can be paid")
	}
	if t.PaymentStatus != PaymentStatusPending {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Payment is already %s", t.PaymentStatus))
	}
	if shiftID == uuid.Nil {
		return shared.NewDomainError("INVALID_INPUT", "Payment must be taken in a shift")
	}
	if method != "" {
		if !method.IsValid() {
			return shared.NewDomainError("INVALID_PAYMENT_METHOD", "Payment method must be cash, card or transfer")
		}
		t.PaymentMethod = method
	}
	if !t.PaymentMethod.IsValid() {
		return shared.NewDomainError("INVALID_PAYMENT_METHOD", "Payment method is required")
	}
	now := time.Now()
	t.PaymentStatus = PaymentStatusPaid
	t.PaidAt = &now
	t.PaidShiftID = &shiftID
	t.UpdatedAt = now
	t.IncrementVersion()
	t.AddDomainEvent(NewTransactionEvent(EventTypePaymentConfirmed, t))
	return nil
}

// ItemByID returns the line with the given ID, or nil
func (t *Transaction) ItemByID(id uuid.UUID) *TransactionItem {
	for i := range t.Items {
		if t.Items[i].ID == id {
			return &t.Items[i]
		}
	}
	return nil
}

// ItemByVariant returns the line for a variant, or nil
func (t *Transaction) ItemByVariant(variantID uuid.UUID) *TransactionItem {
	for i := range t.Items {
		if t.Items[i].VariantID == variantID {
			return &t.Items[i]
		}
	}
	return nil
}

// IsFullyReturned is true when nothing is left to return
func (t *Transaction) IsFullyReturned() bool {
	for _, it := range t.Items {
		if it.Returnable() > 0 {
			return false
		}
	}
	return true
}

// returnedAmount is the list value of everything returned so far
func (t *Transaction) returnedAmount() decimal.Decimal {
	amount := decimal.Zero
	for _, it := range t.Items {
		amount = amount.Add(it.Price.Mul(decimal.NewFromInt(int64(it.ReturnedQuantity))))
	}
	return amount
}

// chargedFor is the share of Total paid for lines worth amount at list
// price. The discount is spread pro rata; the whole subtotal maps to Total
// exactly, so the refunds of successive returns never add up past it.
func (t *Transaction) chargedFor(amount decimal.Decimal) decimal.Decimal {
	if amount.GreaterThanOrEqual(t.Subtotal) {
		return t.Total
	}
	return shared.RoundMoney(amount.Mul(t.Total).Div(t.Subtotal))
}

// ReturnLine requests the return of quantity stems of one sale line.
// The line is matched by ItemID, or by VariantID when ItemID is nil.
type ReturnLine struct {
	ItemID    *uuid.UUID
	VariantID *uuid.UUID
	Quantity  int
}

// ReturnInput holds the data of a return against a sale
type ReturnInput struct {
	Lines    []ReturnLine
	Reason   string
	ShiftID  uuid.UUID
	Operator Operator
}

// NewReturn registers a return against the original sale and builds the
// return transaction. Omitting lines returns everything still returnable.
func NewReturn(original *Transaction, in ReturnInput) (*Transaction, error) {
	if original.Type != TransactionTypeSale {
		return nil, shared.NewDomainError("INVALID_STATE", "Only sales can be returned")
	}
	if original.IsFullyReturned() {
		return nil, shared.NewDomainError("INVALID_STATE", "Sale has already been fully returned")
	}
	if in.ShiftID == uuid.Nil {
		return nil, shared.NewDomainError("SHIFT_REQUIRED", "An open shift is required")
	}

	lines := in.Lines
	if len(lines) == 0 {
		for i := range original.Items {
			if n := original.Items[i].Returnable(); n > 0 {
				id := original.Items[i].ID
				lines = append(lines, ReturnLine{ItemID: &id, Quantity: n})
			}
		}
	}

	ret := &Transaction{
		BaseAggregateRoot:     shared.NewBaseAggregateRoot(),
		Type:                  TransactionTypeReturn,
		Status:                TransactionStatusCompleted,
		ShiftID:               in.ShiftID,
		CustomerID:            original.CustomerID,
		PaymentMethod:         original.PaymentMethod,
		OriginalTransactionID: &original.ID,
		Reason:                strings.TrimSpace(in.Reason),
		OperatorID:            in.Operator.ID,
		OperatorKind:          in.Operator.Kind,
		Subtotal:              decimal.Zero,
		Total:                 decimal.Zero,
	}
	ret.Number = NewTransactionNumber(TransactionTypeReturn, ret.CreatedAt)

	refundedBefore := original.chargedFor(original.returnedAmount())
	requested := make(map[uuid.UUID]int)
	for _, rl := range lines {
		item := original.resolveReturnLine(rl)
		if item == nil {
			return nil, shared.NewDomainError("ITEM_NOT_FOUND", "Returned item is not part of the sale")
		}
		if rl.Quantity <= 0 {
			return nil, shared.NewDomainError("INVALID_QUANTITY", "Quantity must be positive")
		}
		requested[item.ID] += rl.Quantity
		if requested[item.ID] > item.Returnable() {
			return nil, shared.NewDomainError("RETURN_EXCEEDS_SOLD",
				fmt.Sprintf("Cannot return %d of %s %d cm: only %d returnable", requested[item.ID], item.FlowerName, item.Length, item.Returnable()))
		}
	}

	for i := range original.Items {
		item := &original.Items[i]
		qty, ok := requested[item.ID]
		if !ok {
			continue
		}
		lineAmount := item.Price.Mul(decimal.NewFromInt(int64(qty)))
		refund := original.chargedFor(lineAmount)
		origID := item.ID
		ret.Items = append(ret.Items, TransactionItem{
			ID:             uuid.New(),
			TransactionID:  ret.ID,
			VariantID:      item.VariantID,
			FlowerID:       item.FlowerID,
			FlowerName:     item.FlowerName,
			Length:         item.Length,
			Quantity:       qty,
			Price:          item.Price,
			Total:          refund,
			OriginalItemID: &origID,
		})
		ret.Subtotal = ret.Subtotal.Add(lineAmount)
		ret.Total = ret.Total.Add(refund)
		item.ReturnedQuantity += qty
	}
	// line refunds are rounded one by one; the last line absorbs the cents
	// that make the cumulative refund match the sale
	refund := original.chargedFor(original.returnedAmount()).Sub(refundedBefore)
	if last := len(ret.Items) - 1; last >= 0 && !refund.Equal(ret.Total) {
		ret.Items[last].Total = ret.Items[last].Total.Add(refund.Sub(ret.Total))
		ret.Total = refund
	}
	ret.Discount = ret.Subtotal.Sub(ret.Total)

	if original.PaymentStatus == PaymentStatusPaid {
		ret.PaymentStatus = PaymentStatusRefunded
		now := time.Now()
		ret.PaidAt = &now
		paidIn := ret.ShiftID
		ret.PaidShiftID = &paidIn
	} else {
		ret.PaymentStatus = PaymentStatusNotApplicable
	}

	if original.IsFullyReturned() {
		original.Status = TransactionStatusReturned
		if original.PaymentStatus == PaymentStatusPending {
			original.PaymentStatus = PaymentStatusNotApplicable
		}
	} else {
		original.Status = TransactionStatusPartiallyReturned
	}
	original.UpdatedAt = time.Now()
	original.IncrementVersion()

	ret.AddDomainEvent(NewTransactionEvent(EventTypeTransactionReturned, ret))
	return ret, nil
}

func (t *Transaction) resolveReturnLine(rl ReturnLine) *TransactionItem {
	if rl.ItemID != nil {
		return t.ItemByID(*rl.ItemID)
	}
	if rl.VariantID != nil {
		return t.ItemByVariant(*rl.VariantID)
	}
	return nil
}

// TotalQuantity returns the number of stems in the transaction
func (t *Transaction) TotalQuantity() int {
	n := 0
	for _, it := range t.Items {
		n += it.Quantity
	}
	return n
}

// OutstandingAmount is what is still owed for the lines that were not returned
func (t *Transaction) OutstandingAmount() decimal.Decimal {
	return t.Total.Sub(t.chargedFor(t.returnedAmount()))
}
