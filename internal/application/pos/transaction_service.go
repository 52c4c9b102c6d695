package pos

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	appshared "github.com/flora/backend/internal/application/shared"
	"github.com/flora/backend/internal/domain/catalog"
	"github.com/flora/backend/internal/domain/identity"
	"github.com/flora/backend/internal/domain/inventory"
	"github.com/flora/backend/internal/domain/pos"
	"github.com/flora/backend/internal/domain/shared"
	"github.com/flora/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const maxIdempotencyKeyLength = 100

// Options tune the POS services
type Options struct {
	// LowStockThreshold publishes StockLow when a decrease leaves a variant
	// at or below it. Negative disables the check.
	LowStockThreshold int
	// AutoOpenShift opens a shift on the first transaction when none is open
	AutoOpenShift bool
	// LockTTL bounds how long a distributed lock may be held
	LockTTL time.Duration
}

// TransactionService registers sales, write-offs, returns and balance syncs
type TransactionService struct {
	txns           pos.TransactionRepository
	shifts         pos.ShiftRepository
	customers      identity.CustomerRepository
	scope          appshared.TransactionScope
	locker         shared.Locker
	printer        ReceiptRenderer
	eventPublisher shared.EventPublisher
	opts           Options
	logger         *zap.Logger
}

// NewTransactionService creates a new TransactionService
func NewTransactionService(
	txns pos.TransactionRepository,
	shifts pos.ShiftRepository,
	customers identity.CustomerRepository,
	scope appshared.TransactionScope,
	locker shared.Locker,
	opts Options,
	logger *zap.Logger,
) *TransactionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = defaultLockTTL
	}
	return &TransactionService{
		txns:      txns,
		shifts:    shifts,
		customers: customers,
		scope:     scope,
		locker:    locker,
		opts:      opts,
		logger:    logger,
	}
}

// SetEventPublisher sets the event publisher for publishing domain events
func (s *TransactionService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// SetReceiptRenderer enables GetReceipt
func (s *TransactionService) SetReceiptRenderer(r ReceiptRenderer) {
	s.printer = r
}

// saleLine accumulates the requested quantity of one variant
type saleLine struct {
	quantity int
	price    *decimal.Decimal
}

// CreateSale sells stems from stock. Lines for the same variant are merged.
// With an idempotency key a retry returns the sale created by the first call.
func (s *TransactionService) CreateSale(ctx context.Context, req CreateSaleRequest, op pos.Operator) (_ *TransactionResponse, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "pos", "create_sale", telemetry.AttrItems.Int(len(req.Items)))
	defer func() { telemetry.EndSpan(span, err) }()

	order, lines, err := aggregateSaleItems(req.Items)
	if err != nil {
		return nil, err
	}

	key := strings.TrimSpace(req.IdempotencyKey)
	if len(key) > maxIdempotencyKeyLength {
		return nil, shared.NewDomainError("INVALID_INPUT", "Idempotency-Key is too long")
	}
	if key != "" {
		release, err := obtainLock(ctx, s.locker, saleLockPrefix+key, s.opts.LockTTL)
		if err != nil {
			return nil, err
		}
		defer release()

		existing, err := s.txns.FindByIdempotencyKey(ctx, key)
		if err == nil {
			s.logger.Info("sale replayed", zap.String("number", existing.Number), zap.String("idempotency_key", key))
			span.SetAttributes(telemetry.AttrIdempotentReplay.Bool(true), telemetry.AttrTransactionNumber.String(existing.Number))
			resp := ToTransactionResponse(existing)
			resp.Replayed = true
			return &resp, nil
		}
		if !errors.Is(err, shared.ErrNotFound) {
			return nil, err
		}
	}

	shift, err := s.activeShift(ctx, op)
	if err != nil {
		return nil, err
	}

	var (
		txn      *pos.Transaction
		customer *identity.Customer
		lowStock appshared.EventList
	)
	err = s.scope.Execute(ctx, func(repos appshared.Repositories) error {
		if err := ensureShiftOpen(ctx, repos, shift.ID); err != nil {
			return err
		}
		variants, err := lockVariants(ctx, repos, order)
		if err != nil {
			return err
		}
		if req.CustomerID != nil {
			customer, err = findCustomerForUpdate(ctx, repos, *req.CustomerID)
			if err != nil {
				return err
			}
		}

		saleLines := make([]pos.Line, 0, len(order))
		for _, id := range order {
			v := variants[id]
			price := v.Price
			if p := lines[id].price; p != nil {
				price = *p
			}
			saleLines = append(saleLines, pos.Line{
				VariantID:  v.ID,
				FlowerID:   v.FlowerID,
				FlowerName: v.FlowerName(),
				Length:     v.Length,
				Quantity:   lines[id].quantity,
				Price:      price,
			})
		}

		txn, err = pos.NewSale(pos.SaleInput{
			Lines:          saleLines,
			Discount:       req.Discount,
			PaymentMethod:  pos.PaymentMethod(req.PaymentMethod),
			PaymentStatus:  pos.PaymentStatus(req.PaymentStatus),
			CustomerID:     req.CustomerID,
			ShiftID:        shift.ID,
			Operator:       op,
			Notes:          req.Notes,
			IdempotencyKey: key,
		})
		if err != nil {
			return err
		}
		if err := s.moveStock(ctx, repos, txn, variants, inventory.MovementTypeSale, &lowStock); err != nil {
			return err
		}
		if err := repos.Transactions().Create(ctx, txn); err != nil {
			return err
		}
		if customer != nil {
			customer.RecordSale(txn.Total, txn.PaymentStatus == pos.PaymentStatusPending)
			if err := repos.Customers().Save(ctx, customer); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("sale completed",
		zap.String("number", txn.Number),
		zap.String("total", txn.Total.String()),
		zap.Int("quantity", txn.TotalQuantity()),
		zap.String("payment_status", string(txn.PaymentStatus)),
		zap.String("operator_kind", string(op.Kind)),
	)
	appshared.PublishEvents(ctx, s.eventPublisher, txn, &lowStock)

	resp := ToTransactionResponse(txn)
	return &resp, nil
}

func aggregateSaleItems(items []SaleItemRequest) ([]uuid.UUID, map[uuid.UUID]*saleLine, error) {
	if len(items) == 0 {
		return nil, nil, shared.NewDomainError("EMPTY_TRANSACTION", "At least one item is required")
	}
	var order []uuid.UUID
	lines := make(map[uuid.UUID]*saleLine, len(items))
	for i, it := range items {
		if it.Quantity <= 0 {
			return nil, nil, shared.NewDomainError("INVALID_QUANTITY", fmt.Sprintf("items[%d]: quantity must be positive", i))
		}
		l, ok := lines[it.VariantID]
		if !ok {
			l = &saleLine{}
			lines[it.VariantID] = l
			order = append(order, it.VariantID)
		}
		l.quantity += it.Quantity
		if it.Price != nil {
			if l.price != nil && !l.price.Equal(*it.Price) {
				return nil, nil, shared.NewDomainError("INVALID_PRICE", fmt.Sprintf("items[%d]: conflicting prices for variant %s", i, it.VariantID))
			}
			p := *it.Price
			l.price = &p
		}
	}
	return order, lines, nil
}

// CreateWriteOff takes damaged stems out of stock, valued at the variant price
func (s *TransactionService) CreateWriteOff(ctx context.Context, req CreateWriteOffRequest, op pos.Operator) (_ *TransactionResponse, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "pos", "create_write_off", telemetry.AttrItems.Int(len(req.Items)))
	defer func() { telemetry.EndSpan(span, err) }()

	if len(req.Items) == 0 {
		return nil, shared.NewDomainError("EMPTY_TRANSACTION", "At least one item is required")
	}
	quantities := make(map[uuid.UUID]int, len(req.Items))
	var order []uuid.UUID
	for i, it := range req.Items {
		if it.Quantity <= 0 {
			return nil, shared.NewDomainError("INVALID_QUANTITY", fmt.Sprintf("items[%d]: quantity must be positive", i))
		}
		if _, ok := quantities[it.VariantID]; !ok {
			order = append(order, it.VariantID)
		}
		quantities[it.VariantID] += it.Quantity
	}

	shift, err := s.activeShift(ctx, op)
	if err != nil {
		return nil, err
	}

	var (
		txn      *pos.Transaction
		lowStock appshared.EventList
	)
	err = s.scope.Execute(ctx, func(repos appshared.Repositories) error {
		if err := ensureShiftOpen(ctx, repos, shift.ID); err != nil {
			return err
		}
		variants, err := lockVariants(ctx, repos, order)
		if err != nil {
			return err
		}
		lines := make([]pos.Line, 0, len(order))
		for _, id := range order {
			v := variants[id]
			lines = append(lines, pos.Line{
				VariantID:  v.ID,
				FlowerID:   v.FlowerID,
				FlowerName: v.FlowerName(),
				Length:     v.Length,
				Quantity:   quantities[id],
				Price:      v.Price,
			})
		}
		txn, err = pos.NewWriteOff(pos.WriteOffInput{
			Lines:    lines,
			Reason:   req.Reason,
			ShiftID:  shift.ID,
			Operator: op,
			Notes:    req.Notes,
		})
		if err != nil {
			return err
		}
		if err := s.moveStock(ctx, repos, txn, variants, inventory.MovementTypeWriteOff, &lowStock); err != nil {
			return err
		}
		return repos.Transactions().Create(ctx, txn)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("write-off recorded",
		zap.String("number", txn.Number),
		zap.String("total", txn.Total.String()),
		zap.Int("quantity", txn.TotalQuantity()),
		zap.String("reason", txn.Reason),
	)
	appshared.PublishEvents(ctx, s.eventPublisher, txn, &lowStock)

	resp := ToTransactionResponse(txn)
	return &resp, nil
}

// ConfirmPayment marks a pending sale as paid and settles the customer debt.
// The money is booked to the open shift, not the shift of the sale.
func (s *TransactionService) ConfirmPayment(ctx context.Context, id uuid.UUID, req ConfirmPaymentRequest, op pos.Operator) (*TransactionResponse, error) {
	shift, err := s.activeShift(ctx, op)
	if err != nil {
		return nil, err
	}

	var txn *pos.Transaction
	err = s.scope.Execute(ctx, func(repos appshared.Repositories) error {
		if err := ensureShiftOpen(ctx, repos, shift.ID); err != nil {
			return err
		}
		var err error
		txn, err = repos.Transactions().FindByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := txn.ConfirmPayment(pos.PaymentMethod(req.PaymentMethod), shift.ID); err != nil {
			return err
		}
		if err := repos.Transactions().Save(ctx, txn); err != nil {
			return err
		}
		if txn.CustomerID == nil {
			return nil
		}
		customer, err := findCustomerForUpdate(ctx, repos, *txn.CustomerID)
		if err != nil {
			return err
		}
		customer.RecordPayment(txn.OutstandingAmount())
		return repos.Customers().Save(ctx, customer)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("payment confirmed",
		zap.String("number", txn.Number),
		zap.String("shift", shift.Number),
		zap.String("payment_method", string(txn.PaymentMethod)),
		zap.String("amount", txn.OutstandingAmount().String()),
	)
	appshared.PublishEvents(ctx, s.eventPublisher, txn)

	resp := ToTransactionResponse(txn)
	return &resp, nil
}

// Return books a return against a sale. Stems go back to stock and the
// customer counters are reduced by the refund.
func (s *TransactionService) Return(ctx context.Context, id uuid.UUID, req ReturnRequest, op pos.Operator) (_ *ReturnResponse, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "pos", "return", telemetry.AttrTransactionID.String(id.String()))
	defer func() { telemetry.EndSpan(span, err) }()

	lines := make([]pos.ReturnLine, len(req.Items))
	for i, it := range req.Items {
		lines[i] = pos.ReturnLine{ItemID: it.ItemID, VariantID: it.VariantID, Quantity: it.Quantity}
	}

	shift, err := s.activeShift(ctx, op)
	if err != nil {
		return nil, err
	}

	var original, ret *pos.Transaction
	err = s.scope.Execute(ctx, func(repos appshared.Repositories) error {
		if err := ensureShiftOpen(ctx, repos, shift.ID); err != nil {
			return err
		}
		var err error
		original, err = repos.Transactions().FindByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		wasPending := original.PaymentStatus == pos.PaymentStatusPending

		ret, err = pos.NewReturn(original, pos.ReturnInput{
			Lines:    lines,
			Reason:   req.Reason,
			ShiftID:  shift.ID,
			Operator: op,
		})
		if err != nil {
			return err
		}

		ids := make([]uuid.UUID, len(ret.Items))
		for i, it := range ret.Items {
			ids[i] = it.VariantID
		}
		variants, err := lockVariants(ctx, repos, ids)
		if err != nil {
			return err
		}
		if err := s.moveStock(ctx, repos, ret, variants, inventory.MovementTypeReturn, nil); err != nil {
			return err
		}
		if err := repos.Transactions().Save(ctx, original); err != nil {
			return err
		}
		if err := repos.Transactions().Create(ctx, ret); err != nil {
			return err
		}
		if original.CustomerID == nil {
			return nil
		}
		customer, err := findCustomerForUpdate(ctx, repos, *original.CustomerID)
		if err != nil {
			return err
		}
		customer.RecordReturn(ret.Total, wasPending)
		return repos.Customers().Save(ctx, customer)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("sale returned",
		zap.String("number", ret.Number),
		zap.String("original", original.Number),
		zap.String("refund", ret.Total.String()),
		zap.Int("quantity", ret.TotalQuantity()),
		zap.String("original_status", string(original.Status)),
	)
	appshared.PublishEvents(ctx, s.eventPublisher, ret)

	return &ReturnResponse{
		Return:   ToTransactionResponse(ret),
		Original: ToTransactionResponse(original),
	}, nil
}

// SyncBalances overwrites stock with counted balances. Every non-zero delta
// is written as an adjustment movement. Only one sync runs at a time.
func (s *TransactionService) SyncBalances(ctx context.Context, req SyncBalancesRequest, op pos.Operator) (_ *SyncBalancesResponse, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "pos", "sync_balances", telemetry.AttrBalances.Int(len(req.Balances)))
	defer func() { telemetry.EndSpan(span, err) }()

	if len(req.Balances) == 0 {
		return nil, shared.NewDomainError("INVALID_INPUT", "At least one balance is required")
	}
	counted := make(map[uuid.UUID]int, len(req.Balances))
	order := make([]uuid.UUID, 0, len(req.Balances))
	for i, b := range req.Balances {
		if b.Stock == nil || *b.Stock < 0 {
			return nil, shared.NewDomainError("INVALID_QUANTITY", fmt.Sprintf("balances[%d]: stock must be zero or positive", i))
		}
		if _, dup := counted[b.VariantID]; dup {
			return nil, shared.NewDomainError("DUPLICATE_ITEM", fmt.Sprintf("balances[%d]: variant %s listed twice", i, b.VariantID))
		}
		counted[b.VariantID] = *b.Stock
		order = append(order, b.VariantID)
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		reason = "balance sync"
	}

	release, err := obtainLock(ctx, s.locker, syncLockKey, s.opts.LockTTL)
	if err != nil {
		return nil, err
	}
	defer release()

	syncID := uuid.New()
	resp := &SyncBalancesResponse{Reason: reason, Changes: make([]BalanceChangeResponse, 0, len(order))}
	var (
		changes []pos.BalanceChange
		events  appshared.EventList
	)
	err = s.scope.Execute(ctx, func(repos appshared.Repositories) error {
		variants, err := lockVariants(ctx, repos, order)
		if err != nil {
			return err
		}
		var movements []*inventory.StockMovement
		for _, id := range order {
			v := variants[id]
			before := v.Stock
			delta, err := v.SetStock(counted[id])
			if err != nil {
				return err
			}
			resp.Changes = append(resp.Changes, BalanceChangeResponse{
				VariantID:  v.ID,
				FlowerID:   v.FlowerID,
				FlowerName: v.FlowerName(),
				Length:     v.Length,
				Before:     before,
				After:      v.Stock,
				Delta:      delta,
			})
			if delta == 0 {
				resp.Unchanged++
				continue
			}
			resp.Changed++

			m, err := inventory.NewStockMovement(inventory.MovementInput{
				VariantID:     v.ID,
				FlowerID:      v.FlowerID,
				Type:          inventory.MovementTypeAdjustment,
				Quantity:      delta,
				BalanceBefore: before,
				SourceType:    inventory.SourceSync,
				SourceID:      syncID,
				Reason:        reason,
				OperatorID:    operatorIDPtr(op),
			})
			if err != nil {
				return err
			}
			movements = append(movements, m)
			if err := repos.Variants().Save(ctx, v); err != nil {
				return err
			}
			changes = append(changes, pos.BalanceChange{
				VariantID: v.ID,
				FlowerID:  v.FlowerID,
				Before:    before,
				After:     v.Stock,
				Delta:     delta,
			})
			if delta < 0 {
				s.checkLowStock(v, &events)
			}
		}
		return repos.Movements().Create(ctx, movements...)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("balances synced",
		zap.String("sync_id", syncID.String()),
		zap.Int("changed", resp.Changed),
		zap.Int("unchanged", resp.Unchanged),
		zap.String("reason", reason),
	)
	if len(changes) > 0 {
		events.Add(pos.NewBalancesSyncedEvent(syncID, changes, reason))
	}
	appshared.PublishEvents(ctx, s.eventPublisher, &events)
	return resp, nil
}

// Get returns a transaction by ID
func (s *TransactionService) Get(ctx context.Context, id uuid.UUID) (*TransactionResponse, error) {
	txn, err := s.txns.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := ToTransactionResponse(txn)
	return &resp, nil
}

// List returns a page of transactions
func (s *TransactionService) List(ctx context.Context, filter TransactionListFilter) ([]TransactionResponse, int64, error) {
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}
	if filter.OrderDir == "" {
		filter.OrderDir = "desc"
	}
	to := filter.To
	if to != nil {
		// the end date is inclusive
		end := to.AddDate(0, 0, 1)
		to = &end
	}

	txns, total, err := s.txns.FindAll(ctx, pos.TransactionFilter{
		Filter: shared.Filter{
			Page:     filter.Page,
			PageSize: filter.PageSize,
			OrderBy:  "created_at",
			OrderDir: filter.OrderDir,
			Search:   filter.Search,
		},
		Type:          pos.TransactionType(filter.Type),
		ShiftID:       filter.ShiftID,
		CustomerID:    filter.CustomerID,
		PaymentStatus: pos.PaymentStatus(filter.PaymentStatus),
		From:          filter.From,
		To:            to,
	})
	if err != nil {
		return nil, 0, err
	}

	out := make([]TransactionResponse, len(txns))
	for i := range txns {
		out[i] = ToTransactionResponse(&txns[i])
	}
	return out, total, nil
}

// activeShift returns the open shift, opening one when allowed
func (s *TransactionService) activeShift(ctx context.Context, op pos.Operator) (*pos.Shift, error) {
	shift, err := s.shifts.FindOpen(ctx)
	if err == nil {
		return shift, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return nil, err
	}
	if !s.opts.AutoOpenShift {
		return nil, ErrNoOpenShift
	}

	release, err := obtainLock(ctx, s.locker, shiftLockKey, s.opts.LockTTL)
	if err != nil {
		return nil, err
	}
	defer release()

	// another request may have opened it while we waited
	shift, err = s.shifts.FindOpen(ctx)
	if err == nil {
		return shift, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return nil, err
	}
	shift, err = pos.OpenShift(op.ID, decimal.Zero)
	if err != nil {
		return nil, err
	}
	if err := s.shifts.Save(ctx, shift); err != nil {
		return nil, err
	}
	s.logger.Info("shift opened automatically", zap.String("number", shift.Number), zap.String("opened_by", op.ID.String()))
	appshared.PublishEvents(ctx, s.eventPublisher, shift)
	return shift, nil
}

// moveStock applies the items of txn to the locked variants and writes one
// ledger row per item. Sales and write-offs decrease stock, returns increase it.
func (s *TransactionService) moveStock(ctx context.Context, repos appshared.Repositories, txn *pos.Transaction, variants map[uuid.UUID]*catalog.Variant, typ inventory.MovementType, lowStock *appshared.EventList) error {
	operatorID := txn.OperatorID
	movements := make([]*inventory.StockMovement, 0, len(txn.Items))
	for _, it := range txn.Items {
		v := variants[it.VariantID]
		before := v.Stock
		qty := it.Quantity
		if typ == inventory.MovementTypeReturn {
			if err := v.Increase(it.Quantity); err != nil {
				return err
			}
		} else {
			if err := v.Decrease(it.Quantity); err != nil {
				return err
			}
			qty = -qty
		}

		m, err := inventory.NewStockMovement(inventory.MovementInput{
			VariantID:     v.ID,
			FlowerID:      v.FlowerID,
			Type:          typ,
			Quantity:      qty,
			BalanceBefore: before,
			SourceType:    inventory.SourceTransaction,
			SourceID:      txn.ID,
			Reason:        txn.Number,
			OperatorID:    &operatorID,
		})
		if err != nil {
			return err
		}
		movements = append(movements, m)
		if err := repos.Variants().Save(ctx, v); err != nil {
			return err
		}
		if qty < 0 && lowStock != nil {
			s.checkLowStock(v, lowStock)
		}
	}
	return repos.Movements().Create(ctx, movements...)
}

func (s *TransactionService) checkLowStock(v *catalog.Variant, events *appshared.EventList) {
	if s.opts.LowStockThreshold < 0 || v.Stock > s.opts.LowStockThreshold {
		return
	}
	events.Add(inventory.NewStockLowEvent(v.FlowerID, v.ID, v.FlowerName(), v.Length, v.Stock, s.opts.LowStockThreshold))
}

func findCustomerForUpdate(ctx context.Context, repos appshared.Repositories, id uuid.UUID) (*identity.Customer, error) {
	c, err := repos.Customers().FindByIDForUpdate(ctx, id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NewDomainError("CUSTOMER_NOT_FOUND", fmt.Sprintf("Customer %s not found", id))
		}
		return nil, err
	}
	return c, nil
}
