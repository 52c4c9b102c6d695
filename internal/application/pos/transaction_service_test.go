package pos

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/flora/backend/internal/domain/catalog"
	"github.com/flora/backend/internal/domain/identity"
	"github.com/flora/backend/internal/domain/inventory"
	"github.com/flora/backend/internal/domain/pos"
	"github.com/flora/backend/internal/domain/shared"
	"github.com/flora/backend/internal/infrastructure/cache"
	"github.com/flora/backend/internal/infrastructure/persistence"
	"github.com/flora/backend/internal/infrastructure/printing"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []shared.DomainEvent
}

func (p *recordingPublisher) Publish(_ context.Context, events ...shared.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, events...)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.EventType()
	}
	return out
}

func (p *recordingPublisher) reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = nil
}

type testEnv struct {
	db     *gorm.DB
	txns   *TransactionService
	shifts *ShiftService
	locker *cache.InMemoryLocker
	pub    *recordingPublisher
}

func newTestEnv(t *testing.T, opts Options) *testEnv {
	t.Helper()
	db, err := persistence.OpenSQLiteMemory()
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	scope := persistence.NewGormTransactionScope(db)
	locker := cache.NewInMemoryLocker()
	pub := &recordingPublisher{}

	txns := NewTransactionService(
		persistence.NewGormTransactionRepository(db),
		persistence.NewGormShiftRepository(db),
		persistence.NewGormCustomerRepository(db),
		scope, locker, opts, nil,
	)
	txns.SetEventPublisher(pub)
	shifts := NewShiftService(persistence.NewGormShiftRepository(db), scope, locker, time.Minute, nil)
	shifts.SetEventPublisher(pub)

	return &testEnv{db: db, txns: txns, shifts: shifts, locker: locker, pub: pub}
}

func defaultOptions() Options {
	return Options{LowStockThreshold: -1, AutoOpenShift: true}
}

var admin = pos.Operator{ID: uuid.MustParse("6f1c7a54-1111-4d2e-9a55-2b1f0a9e0001"), Kind: pos.OperatorAdmin}

func seedVariant(t *testing.T, db *gorm.DB, name string, length int, price string, stock int) *catalog.Variant {
	t.Helper()
	f, err := catalog.NewFlower(name, catalog.Slugify(name))
	require.NoError(t, err)
	v, err := f.AddVariant(length, decimal.RequireFromString(price), stock)
	require.NoError(t, err)
	id := v.ID
	require.NoError(t, persistence.NewGormFlowerRepository(db).Save(context.Background(), f))
	return loadVariant(t, db, id)
}

func loadVariant(t *testing.T, db *gorm.DB, id uuid.UUID) *catalog.Variant {
	t.Helper()
	vs, err := persistence.NewGormVariantRepository(db).FindByIDs(context.Background(), []uuid.UUID{id})
	require.NoError(t, err)
	require.Len(t, vs, 1)
	return &vs[0]
}

func seedCustomer(t *testing.T, db *gorm.DB, name, phone string) *identity.Customer {
	t.Helper()
	c, err := identity.NewCustomer(name, phone, "")
	require.NoError(t, err)
	require.NoError(t, persistence.NewGormCustomerRepository(db).Save(context.Background(), c))
	return c
}

func loadCustomer(t *testing.T, db *gorm.DB, id uuid.UUID) *identity.Customer {
	t.Helper()
	c, err := persistence.NewGormCustomerRepository(db).FindByID(context.Background(), id)
	require.NoError(t, err)
	return c
}

func variantMovements(t *testing.T, db *gorm.DB, variantID uuid.UUID) []inventory.StockMovement {
	t.Helper()
	list, _, err := persistence.NewGormStockMovementRepository(db).FindAll(context.Background(), inventory.MovementFilter{
		Filter:    shared.Filter{Page: 1, PageSize: 100, OrderBy: "created_at", OrderDir: "asc"},
		VariantID: &variantID,
	})
	require.NoError(t, err)
	return list
}

func errorCode(t *testing.T, err error) string {
	t.Helper()
	var domainErr *shared.DomainError
	require.True(t, errors.As(err, &domainErr), "expected a domain error, got %v", err)
	return domainErr.Code
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestCreateSale_AutoOpensShiftAndMovesStock(t *testing.T) {
	env := newTestEnv(t, defaultOptions())
	ctx := context.Background()
	rose := seedVariant(t, env.db, "Rose Explorer", 60, "450", 100)

	resp, err := env.txns.CreateSale(ctx, CreateSaleRequest{
		Items: []SaleItemRequest{
			{VariantID: rose.ID, Quantity: 10},
			{VariantID: rose.ID, Quantity: 5},
		},
		Discount:      dec("250"),
		PaymentMethod: "cash",
	}, admin)
	require.NoError(t, err)

	assert.Equal(t, "sale", resp.Type)
	assert.Equal(t, "completed", resp.Status)
	assert.Equal(t, "paid", resp.PaymentStatus)
	assert.NotNil(t, resp.PaidAt)
	require.Len(t, resp.Items, 1)
	assert.Equal(t, 15, resp.Items[0].Quantity)
	assert.Equal(t, "Rose Explorer", resp.Items[0].FlowerName)
	assert.True(t, resp.Subtotal.Equal(dec("6750")))
	assert.True(t, resp.Total.Equal(dec("6500")))
	assert.Equal(t, "admin", resp.OperatorKind)

	assert.Equal(t, 85, loadVariant(t, env.db, rose.ID).Stock)
	moves := variantMovements(t, env.db, rose.ID)
	require.Len(t, moves, 1)
	assert.Equal(t, inventory.MovementTypeSale, moves[0].Type)
	assert.Equal(t, -15, moves[0].Quantity)
	assert.Equal(t, 100, moves[0].BalanceBefore)
	assert.Equal(t, 85, moves[0].BalanceAfter)
	assert.Equal(t, inventory.SourceTransaction, moves[0].SourceType)
	assert.Equal(t, resp.ID, moves[0].SourceID)

	current, err := env.shifts.Current(ctx)
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, current.ID, resp.ShiftID)
	assert.Equal(t, 1, current.Summary.SalesCount)
	assert.True(t, current.Summary.CashTotal.Equal(dec("6500")))

	assert.Equal(t, []string{pos.EventTypeShiftOpened, pos.EventTypeSaleCompleted}, env.pub.types())
}

func TestCreateSale_ExplicitPrice(t *testing.T) {
	env := newTestEnv(t, defaultOptions())
	rose := seedVariant(t, env.db, "Rose", 60, "450", 10)

	resp, err := env.txns.CreateSale(context.Background(), CreateSaleRequest{
		Items:         []SaleItemRequest{{VariantID: rose.ID, Quantity: 2, Price: decPtr("400")}},
		PaymentMethod: "card",
	}, admin)
	require.NoError(t, err)
	assert.True(t, resp.Total.Equal(dec("800")))

	_, err = env.txns.CreateSale(context.Background(), CreateSaleRequest{
		Items: []SaleItemRequest{
			{VariantID: rose.ID, Quantity: 1, Price: decPtr("400")},
			{VariantID: rose.ID, Quantity: 1, Price: decPtr("420")},
		},
		PaymentMethod: "card",
	}, admin)
	assert.Equal(t, "INVALID_PRICE", errorCode(t, err))
}

func TestCreateSale_InsufficientStockHasNoEffect(t *testing.T) {
	env := newTestEnv(t, defaultOptions())
	ctx := context.Background()
	rose := seedVariant(t, env.db, "Rose", 60, "450", 50)
	tulip := seedVariant(t, env.db, "Tulip", 40, "200", 3)

	_, err := env.txns.CreateSale(ctx, CreateSaleRequest{
		Items: []SaleItemRequest{
			{VariantID: rose.ID, Quantity: 20},
			{VariantID: tulip.ID, Quantity: 5},
		},
		PaymentMethod: "cash",
	}, admin)
	require.Error(t, err)
	assert.Equal(t, "INSUFFICIENT_STOCK", errorCode(t, err))

	assert.Equal(t, 50, loadVariant(t, env.db, rose.ID).Stock)
	assert.Equal(t, 3, loadVariant(t, env.db, tulip.ID).Stock)
	assert.Empty(t, variantMovements(t, env.db, rose.ID))

	list, total, err := env.txns.List(ctx, TransactionListFilter{})
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.Zero(t, total)
}

func TestCreateSale_Validation(t *testing.T) {
	env := newTestEnv(t, defaultOptions())
	ctx := context.Background()
	rose := seedVariant(t, env.db, "Rose", 60, "450", 50)

	_, err := env.txns.CreateSale(ctx, CreateSaleRequest{}, admin)
	assert.Equal(t, "EMPTY_TRANSACTION", errorCode(t, err))

	_, err = env.txns.CreateSale(ctx, CreateSaleRequest{
		Items:         []SaleItemRequest{{VariantID: uuid.New(), Quantity: 1}},
		PaymentMethod: "cash",
	}, admin)
	assert.Equal(t, "VARIANT_NOT_FOUND", errorCode(t, err))

	_, err = env.txns.CreateSale(ctx, CreateSaleRequest{
		Items:         []SaleItemRequest{{VariantID: rose.ID, Quantity: 1}},
		Discount:      dec("451"),
		PaymentMethod: "cash",
	}, admin)
	assert.Equal(t, "INVALID_DISCOUNT", errorCode(t, err))

	_, err = env.txns.CreateSale(ctx, CreateSaleRequest{
		Items: []SaleItemRequest{{VariantID: rose.ID, Quantity: 1}},
	}, admin)
	assert.Equal(t, "INVALID_PAYMENT_METHOD", errorCode(t, err))

	_, err = env.txns.CreateSale(ctx, CreateSaleRequest{
		Items:         []SaleItemRequest{{VariantID: rose.ID, Quantity: 1}},
		PaymentStatus: "pending",
	}, admin)
	assert.Equal(t, "CUSTOMER_REQUIRED", errorCode(t, err))

	missing := uuid.New()
	_, err = env.txns.CreateSale(ctx, CreateSaleRequest{
		Items:         []SaleItemRequest{{VariantID: rose.ID, Quantity: 1}},
		PaymentStatus: "pending",
		CustomerID:    &missing,
	}, admin)
	assert.Equal(t, "CUSTOMER_NOT_FOUND", errorCode(t, err))

	assert.Equal(t, 50, loadVariant(t, env.db, rose.ID).Stock)
}

func TestCreateSale_WithoutAutoOpenShift(t *testing.T) {
	env := newTestEnv(t, Options{LowStockThreshold: -1})
	ctx := context.Background()
	rose := seedVariant(t, env.db, "Rose", 60, "450", 50)
	req := CreateSaleRequest{Items: []SaleItemRequest{{VariantID: rose.ID, Quantity: 1}}, PaymentMethod: "cash"}

	_, err := env.txns.CreateSale(ctx, req, admin)
	assert.ErrorIs(t, err, ErrNoOpenShift)

	_, err = env.shifts.Open(ctx, OpenShiftRequest{}, admin.ID)
	require.NoError(t, err)
	_, err = env.txns.CreateSale(ctx, req, admin)
	require.NoError(t, err)
}

func TestCreateSale_IdempotencyKeyReturnsOriginal(t *testing.T) {
	env := newTestEnv(t, defaultOptions())
	ctx := context.Background()
	rose := seedVariant(t, env.db, "Rose", 60, "450", 50)
	req := CreateSaleRequest{
		Items:          []SaleItemRequest{{VariantID: rose.ID, Quantity: 4}},
		PaymentMethod:  "transfer",
		IdempotencyKey: "till-1-0042",
	}

	first, err := env.txns.CreateSale(ctx, req, admin)
	require.NoError(t, err)
	assert.False(t, first.Replayed)

	second, err := env.txns.CreateSale(ctx, req, admin)
	require.NoError(t, err)
	assert.True(t, second.Replayed)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.Number, second.Number)

	assert.Equal(t, 46, loadVariant(t, env.db, rose.ID).Stock)
	assert.Len(t, variantMovements(t, env.db, rose.ID), 1)
}

func TestCreateSale_ConcurrentSalesNeverOversell(t *testing.T) {
	env := newTestEnv(t, defaultOptions())
	ctx := context.Background()
	rose := seedVariant(t, env.db, "Rose", 60, "450", 20)
	_, err := env.shifts.Open(ctx, OpenShiftRequest{}, admin.ID)
	require.NoError(t, err)

	const workers = 10
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		rejected  int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.txns.CreateSale(ctx, CreateSaleRequest{
				Items:         []SaleItemRequest{{VariantID: rose.ID, Quantity: 3}},
				PaymentMethod: "cash",
			}, admin)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				succeeded++
				return
			}
			var domainErr *shared.DomainError
			if errors.As(err, &domainErr) && domainErr.Code == "INSUFFICIENT_STOCK" {
				rejected++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 6, succeeded)
	assert.Equal(t, 4, rejected)
	assert.Equal(t, 2, loadVariant(t, env.db, rose.ID).Stock)
	assert.Len(t, variantMovements(t, env.db, rose.ID), 6)
}

func TestCreateSale_PublishesStockLow(t *testing.T) {
	env := newTestEnv(t, Options{LowStockThreshold: 10, AutoOpenShift: true})
	rose := seedVariant(t, env.db, "Rose", 60, "450", 12)

	_, err := env.txns.CreateSale(context.Background(), CreateSaleRequest{
		Items:         []SaleItemRequest{{VariantID: rose.ID, Quantity: 3}},
		PaymentMethod: "cash",
	}, admin)
	require.NoError(t, err)

	assert.Equal(t, []string{pos.EventTypeShiftOpened, pos.EventTypeSaleCompleted, inventory.EventTypeStockLow}, env.pub.types())
	low, ok := env.pub.events[2].(*inventory.StockLowEvent)
	require.True(t, ok)
	assert.Equal(t, rose.ID, low.VariantID)
	assert.Equal(t, 9, low.Stock)
	assert.Equal(t, 10, low.Threshold)
	assert.Equal(t, "Rose", low.FlowerName)
}

func TestPendingSale_CustomerDebtAndConfirmPayment(t *testing.T) {
	env := newTestEnv(t, defaultOptions())
	ctx := context.Background()
	rose := seedVariant(t, env.db, "Rose", 60, "500", 100)
	customer := seedCustomer(t, env.db, "Айгерим", "+77011234567")

	sale, err := env.txns.CreateSale(ctx, CreateSaleRequest{
		Items:         []SaleItemRequest{{VariantID: rose.ID, Quantity: 10}},
		PaymentStatus: "pending",
		CustomerID:    &customer.ID,
	}, admin)
	require.NoError(t, err)
	assert.Equal(t, "pending", sale.PaymentStatus)
	assert.Nil(t, sale.PaidAt)

	c := loadCustomer(t, env.db, customer.ID)
	assert.Equal(t, 1, c.OrdersCount)
	assert.True(t, c.TotalSpent.Equal(dec("5000")))
	assert.True(t, c.Debt.Equal(dec("5000")))

	pending, _, err := env.txns.List(ctx, TransactionListFilter{PaymentStatus: "pending"})
	require.NoError(t, err)
	require.Len(t, pending, 1)

	_, err = env.txns.ConfirmPayment(ctx, sale.ID, ConfirmPaymentRequest{}, admin)
	assert.Equal(t, "INVALID_PAYMENT_METHOD", errorCode(t, err))

	paid, err := env.txns.ConfirmPayment(ctx, sale.ID, ConfirmPaymentRequest{PaymentMethod: "card"}, admin)
	require.NoError(t, err)
	assert.Equal(t, "paid", paid.PaymentStatus)
	assert.Equal(t, "card", paid.PaymentMethod)
	assert.NotNil(t, paid.PaidAt)
	assert.Equal(t, 2, paid.Version)

	c = loadCustomer(t, env.db, customer.ID)
	assert.True(t, c.Debt.IsZero())
	assert.True(t, c.TotalSpent.Equal(dec("5000")))

	_, err = env.txns.ConfirmPayment(ctx, sale.ID, ConfirmPaymentRequest{PaymentMethod: "cash"}, admin)
	assert.Equal(t, "INVALID_STATE", errorCode(t, err))

	_, err = env.txns.ConfirmPayment(ctx, uuid.New(), ConfirmPaymentRequest{PaymentMethod: "cash"}, admin)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestCreateWriteOff(t *testing.T) {
	env := newTestEnv(t, defaultOptions())
	ctx := context.Background()
	rose := seedVariant(t, env.db, "Rose", 60, "450", 30)

	_, err := env.txns.CreateWriteOff(ctx, CreateWriteOffRequest{
		Items: []WriteOffItemRequest{{VariantID: rose.ID, Quantity: 2}},
	}, admin)
	assert.Equal(t, "REASON_REQUIRED", errorCode(t, err))

	resp, err := env.txns.CreateWriteOff(ctx, CreateWriteOffRequest{
		Items:  []WriteOffItemRequest{{VariantID: rose.ID, Quantity: 2}, {VariantID: rose.ID, Quantity: 1}},
		Reason: "broken stems",
	}, admin)
	require.NoError(t, err)
	assert.Equal(t, "write_off", resp.Type)
	assert.Equal(t, "not_applicable", resp.PaymentStatus)
	assert.Equal(t, "broken stems", resp.Reason)
	assert.True(t, resp.Total.Equal(dec("1350")))

	assert.Equal(t, 27, loadVariant(t, env.db, rose.ID).Stock)
	moves := variantMovements(t, env.db, rose.ID)
	require.Len(t, moves, 1)
	assert.Equal(t, inventory.MovementTypeWriteOff, moves[0].Type)
	assert.Equal(t, -3, moves[0].Quantity)

	_, err = env.txns.CreateWriteOff(ctx, CreateWriteOffRequest{
		Items:  []WriteOffItemRequest{{VariantID: rose.ID, Quantity: 28}},
		Reason: "frost",
	}, admin)
	assert.Equal(t, "INSUFFICIENT_STOCK", errorCode(t, err))
}

func TestReturn_PartialThenRest(t *testing.T) {
	env := newTestEnv(t, defaultOptions())
	ctx := context.Background()
	rose := seedVariant(t, env.db, "Rose", 60, "450", 100)

	sale, err := env.txns.CreateSale(ctx, CreateSaleRequest{
		Items:         []SaleItemRequest{{VariantID: rose.ID, Quantity: 10}},
		Discount:      dec("450"),
		PaymentMethod: "cash",
	}, admin)
	require.NoError(t, err)
	assert.True(t, sale.Total.Equal(dec("4050")))

	itemID := sale.Items[0].ID
	_, err = env.txns.Return(ctx, sale.ID, ReturnRequest{
		Items: []ReturnItemRequest{{ItemID: &itemID, Quantity: 11}},
	}, admin)
	assert.Equal(t, "RETURN_EXCEEDS_SOLD", errorCode(t, err))

	first, err := env.txns.Return(ctx, sale.ID, ReturnRequest{
		Items:  []ReturnItemRequest{{VariantID: &rose.ID, Quantity: 4}},
		Reason: "wilted",
	}, admin)
	require.NoError(t, err)
	assert.Equal(t, "return", first.Return.Type)
	assert.Equal(t, "refunded", first.Return.PaymentStatus)
	assert.Equal(t, "cash", first.Return.PaymentMethod)
	assert.True(t, first.Return.Total.Equal(dec("1620")), first.Return.Total.String())
	require.NotNil(t, first.Return.OriginalTransactionID)
	assert.Equal(t, sale.ID, *first.Return.OriginalTransactionID)
	assert.Equal(t, "partially_returned", first.Original.Status)
	assert.Equal(t, 4, first.Original.Items[0].ReturnedQuantity)
	assert.Equal(t, 94, loadVariant(t, env.db, rose.ID).Stock)

	rest, err := env.txns.Return(ctx, sale.ID, ReturnRequest{}, admin)
	require.NoError(t, err)
	assert.Equal(t, 6, rest.Return.TotalQuantity)
	assert.True(t, rest.Return.Total.Equal(dec("2430")))
	assert.Equal(t, "returned", rest.Original.Status)
	assert.Equal(t, 100, loadVariant(t, env.db, rose.ID).Stock)

	stored, err := env.txns.Get(ctx, sale.ID)
	require.NoError(t, err)
	assert.Equal(t, "returned", stored.Status)
	assert.Equal(t, 10, stored.Items[0].ReturnedQuantity)
	assert.Equal(t, 3, stored.Version)

	_, err = env.txns.Return(ctx, sale.ID, ReturnRequest{}, admin)
	assert.Equal(t, "INVALID_STATE", errorCode(t, err))

	moves := variantMovements(t, env.db, rose.ID)
	require.Len(t, moves, 3)
	assert.Equal(t, inventory.MovementTypeReturn, moves[1].Type)
	assert.Equal(t, 4, moves[1].Quantity)
	assert.Equal(t, 6, moves[2].Quantity)

	returns, _, err := env.txns.List(ctx, TransactionListFilter{Type: "return"})
	require.NoError(t, err)
	assert.Len(t, returns, 2)
}

func TestReturn_PendingSaleClearsDebt(t *testing.T) {
	env := newTestEnv(t, defaultOptions())
	ctx := context.Background()
	rose := seedVariant(t, env.db, "Rose", 60, "300", 50)
	customer := seedCustomer(t, env.db, "Ерлан", "+77017654321")

	sale, err := env.txns.CreateSale(ctx, CreateSaleRequest{
		Items:         []SaleItemRequest{{VariantID: rose.ID, Quantity: 5}},
		PaymentStatus: "pending",
		CustomerID:    &customer.ID,
	}, admin)
	require.NoError(t, err)

	ret, err := env.txns.Return(ctx, sale.ID, ReturnRequest{Reason: "changed mind"}, admin)
	require.NoError(t, err)
	assert.Equal(t, "not_applicable", ret.Return.PaymentStatus)
	assert.Equal(t, "returned", ret.Original.Status)
	assert.Equal(t, "not_applicable", ret.Original.PaymentStatus)

	c := loadCustomer(t, env.db, customer.ID)
	assert.True(t, c.Debt.IsZero())
	assert.True(t, c.TotalSpent.IsZero())
	assert.Equal(t, 1, c.OrdersCount)

	_, err = env.txns.ConfirmPayment(ctx, sale.ID, ConfirmPaymentRequest{PaymentMethod: "cash"}, admin)
	assert.Equal(t, "INVALID_STATE", errorCode(t, err))
}

func TestReturn_OnlySales(t *testing.T) {
	env := newTestEnv(t, defaultOptions())
	ctx := context.Background()
	rose := seedVariant(t, env.db, "Rose", 60, "300", 50)

	wo, err := env.txns.CreateWriteOff(ctx, CreateWriteOffRequest{
		Items:  []WriteOffItemRequest{{VariantID: rose.ID, Quantity: 1}},
		Reason: "broken",
	}, admin)
	require.NoError(t, err)

	_, err = env.txns.Return(ctx, wo.ID, ReturnRequest{}, admin)
	assert.Equal(t, "INVALID_STATE", errorCode(t, err))
	assert.Equal(t, 49, loadVariant(t, env.db, rose.ID).Stock)
}

func TestSyncBalances(t *testing.T) {
	env := newTestEnv(t, Options{LowStockThreshold: 5, AutoOpenShift: true})
	ctx := context.Background()
	rose := seedVariant(t, env.db, "Rose", 60, "450", 100)
	tulip := seedVariant(t, env.db, "Tulip", 40, "200", 8)
	peony := seedVariant(t, env.db, "Peony", 50, "900", 10)

	resp, err := env.txns.SyncBalances(ctx, SyncBalancesRequest{
		Balances: []BalanceRequest{
			{VariantID: rose.ID, Stock: intPtr(90)},
			{VariantID: tulip.ID, Stock: intPtr(8)},
			{VariantID: peony.ID, Stock: intPtr(3)},
		},
	}, admin)
	require.NoError(t, err)

	assert.Equal(t, 2, resp.Changed)
	assert.Equal(t, 1, resp.Unchanged)
	assert.Equal(t, "balance sync", resp.Reason)
	require.Len(t, resp.Changes, 3)
	assert.Equal(t, BalanceChangeResponse{
		VariantID: rose.ID, FlowerID: rose.FlowerID, FlowerName: "Rose", Length: 60,
		Before: 100, After: 90, Delta: -10,
	}, resp.Changes[0])
	assert.Equal(t, 0, resp.Changes[1].Delta)

	assert.Equal(t, 90, loadVariant(t, env.db, rose.ID).Stock)
	assert.Equal(t, 3, loadVariant(t, env.db, peony.ID).Stock)

	moves := variantMovements(t, env.db, rose.ID)
	require.Len(t, moves, 1)
	assert.Equal(t, inventory.MovementTypeAdjustment, moves[0].Type)
	assert.Equal(t, inventory.SourceSync, moves[0].SourceType)
	assert.Equal(t, -10, moves[0].Quantity)
	assert.Empty(t, variantMovements(t, env.db, tulip.ID))

	assert.Equal(t, []string{inventory.EventTypeStockLow, pos.EventTypeBalancesSynced}, env.pub.types())
	synced := env.pub.events[1].(*pos.BalancesSyncedEvent)
	assert.Len(t, synced.Changes, 2)
}

func TestSyncBalances_Rejections(t *testing.T) {
	env := newTestEnv(t, defaultOptions())
	ctx := context.Background()
	rose := seedVariant(t, env.db, "Rose", 60, "450", 100)

	_, err := env.txns.SyncBalances(ctx, SyncBalancesRequest{
		Balances: []BalanceRequest{{VariantID: rose.ID, Stock: intPtr(1)}, {VariantID: rose.ID, Stock: intPtr(2)}},
	}, admin)
	assert.Equal(t, "DUPLICATE_ITEM", errorCode(t, err))

	_, err = env.txns.SyncBalances(ctx, SyncBalancesRequest{
		Balances: []BalanceRequest{{VariantID: rose.ID, Stock: intPtr(-1)}},
	}, admin)
	assert.Equal(t, "INVALID_QUANTITY", errorCode(t, err))

	_, err = env.txns.SyncBalances(ctx, SyncBalancesRequest{
		Balances: []BalanceRequest{{VariantID: rose.ID, Stock: intPtr(1)}, {VariantID: uuid.New(), Stock: intPtr(2)}},
	}, admin)
	assert.Equal(t, "VARIANT_NOT_FOUND", errorCode(t, err))
	assert.Equal(t, 100, loadVariant(t, env.db, rose.ID).Stock)

	release, err := env.locker.Obtain(ctx, syncLockKey, time.Minute)
	require.NoError(t, err)
	defer release()

	short, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	_, err = env.txns.SyncBalances(short, SyncBalancesRequest{
		Balances: []BalanceRequest{{VariantID: rose.ID, Stock: intPtr(1)}},
	}, admin)
	assert.ErrorIs(t, err, shared.ErrLockNotObtained)
	assert.Equal(t, 100, loadVariant(t, env.db, rose.ID).Stock)
}

func TestGetReceipt(t *testing.T) {
	env := newTestEnv(t, defaultOptions())
	ctx := context.Background()
	rose := seedVariant(t, env.db, "Rose Explorer", 60, "450", 100)
	customer := seedCustomer(t, env.db, "Айгерим", "+77011234567")

	sale, err := env.txns.CreateSale(ctx, CreateSaleRequest{
		Items:         []SaleItemRequest{{VariantID: rose.ID, Quantity: 3}},
		PaymentMethod: "cash",
		CustomerID:    &customer.ID,
	}, admin)
	require.NoError(t, err)

	_, err = env.txns.GetReceipt(ctx, sale.ID, "html")
	assert.ErrorIs(t, err, shared.ErrUnavailable)

	printer, err := printing.NewReceiptPrinter(nil, nil, "Flora")
	require.NoError(t, err)
	env.txns.SetReceiptRenderer(printer)

	doc, err := env.txns.GetReceipt(ctx, sale.ID, "")
	require.NoError(t, err)
	assert.Equal(t, "text/html; charset=utf-8", doc.ContentType)
	assert.Equal(t, sale.Number+".html", doc.Filename)
	assert.Contains(t, string(doc.Content), sale.Number)
	assert.Contains(t, string(doc.Content), "Rose Explorer 60 см")
	assert.Contains(t, string(doc.Content), "Айгерим")
	assert.Contains(t, string(doc.Content), "SH-")

	_, err = env.txns.GetReceipt(ctx, sale.ID, "pdf")
	assert.ErrorIs(t, err, printing.ErrPDFDisabled)

	_, err = env.txns.GetReceipt(ctx, sale.ID, "docx")
	assert.Equal(t, "INVALID_INPUT", errorCode(t, err))

	ret, err := env.txns.Return(ctx, sale.ID, ReturnRequest{}, admin)
	require.NoError(t, err)
	doc, err = env.txns.GetReceipt(ctx, ret.Return.ID, "html")
	require.NoError(t, err)
	assert.Contains(t, string(doc.Content), "Возврат")
	assert.Contains(t, string(doc.Content), sale.Number)
}

func TestList_Filters(t *testing.T) {
	env := newTestEnv(t, defaultOptions())
	ctx := context.Background()
	rose := seedVariant(t, env.db, "Rose", 60, "100", 100)

	for i := 0; i < 3; i++ {
		_, err := env.txns.CreateSale(ctx, CreateSaleRequest{
			Items:         []SaleItemRequest{{VariantID: rose.ID, Quantity: 1}},
			PaymentMethod: "cash",
		}, admin)
		require.NoError(t, err)
	}
	_, err := env.txns.CreateWriteOff(ctx, CreateWriteOffRequest{
		Items:  []WriteOffItemRequest{{VariantID: rose.ID, Quantity: 1}},
		Reason: "broken",
	}, admin)
	require.NoError(t, err)

	all, total, err := env.txns.List(ctx, TransactionListFilter{PageSize: 2})
	require.NoError(t, err)
	assert.Len(t, all, 2)
	assert.Equal(t, int64(4), total)

	sales, total, err := env.txns.List(ctx, TransactionListFilter{Type: "sale"})
	require.NoError(t, err)
	assert.Len(t, sales, 3)
	assert.Equal(t, int64(3), total)
}

func intPtr(n int) *int { return &n }

func decPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}
