package catalog

import (
	"context"
	"sync"
	"testing"

	"github.com/flora/backend/internal/domain/catalog"
	"github.com/flora/backend/internal/domain/inventory"
	"github.com/flora/backend/internal/domain/shared"
	"github.com/flora/backend/internal/infrastructure/persistence"
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

func newTestService(t *testing.T) (*FlowerService, *gorm.DB, *recordingPublisher) {
	t.Helper()
	db, err := persistence.OpenSQLiteMemory()
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	svc := NewFlowerService(persistence.NewGormFlowerRepository(db), persistence.NewGormTransactionScope(db), nil)
	pub := &recordingPublisher{}
	svc.SetEventPublisher(pub)
	return svc, db, pub
}

func intPtr(n int) *int { return &n }

func strPtr(s string) *string { return &s }

func decPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func movements(t *testing.T, db *gorm.DB, flowerID uuid.UUID) []inventory.StockMovement {
	t.Helper()
	list, _, err := persistence.NewGormStockMovementRepository(db).FindAll(context.Background(), inventory.MovementFilter{
		Filter:   shared.Filter{Page: 1, PageSize: 100, OrderBy: "created_at", OrderDir: "asc"},
		FlowerID: &flowerID,
	})
	require.NoError(t, err)
	return list
}

func TestFlowerService_Create(t *testing.T) {
	svc, db, pub := newTestService(t)
	ctx := context.Background()

	resp, err := svc.Create(ctx, CreateFlowerRequest{
		Name:    "Роза Red Naomi",
		Country: "Эквадор",
		Variants: []VariantInput{
			{Length: intPtr(60), Price: decPtr("450"), Stock: intPtr(100)},
			{Length: intPtr(50), Price: decPtr("380")},
		},
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, "roza-red-naomi", resp.Slug)
	assert.Len(t, resp.DocumentID, 24)
	assert.True(t, resp.Published)
	assert.Equal(t, 100, resp.TotalStock)
	assert.Equal(t, []string{catalog.EventTypeFlowerCreated}, pub.types())

	ms := movements(t, db, resp.ID)
	require.Len(t, ms, 1)
	assert.Equal(t, inventory.MovementTypeAdjustment, ms[0].Type)
	assert.Equal(t, 100, ms[0].BalanceAfter)

	second, err := svc.Create(ctx, CreateFlowerRequest{Name: "Роза Red Naomi"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "roza-red-naomi-2", second.Slug)
}

func TestFlowerService_CreateRequiresVariantLength(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.Create(context.Background(), CreateFlowerRequest{
		Name:     "Tulip",
		Variants: []VariantInput{{Price: decPtr("100")}},
	}, nil)

	var de *shared.DomainError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "INVALID_LENGTH", de.Code)
}

func TestFlowerService_GetBySlugOrDocumentID(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	created, err := svc.Create(ctx, CreateFlowerRequest{Name: "Peony Sarah Bernhardt"}, nil)
	require.NoError(t, err)

	byDoc, err := svc.Get(ctx, created.DocumentID)
	require.NoError(t, err)
	bySlug, err := svc.Get(ctx, "peony-sarah-bernhardt")
	require.NoError(t, err)
	assert.Equal(t, byDoc.ID, bySlug.ID)

	_, err = svc.Get(ctx, "missing")
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestFlowerService_SafeUpdate(t *testing.T) {
	svc, db, pub := newTestService(t)
	ctx := context.Background()
	created, err := svc.Create(ctx, CreateFlowerRequest{
		Name:        "Rose",
		Description: "classic",
		Variants: []VariantInput{
			{Length: intPtr(60), Price: decPtr("450"), Stock: intPtr(10)},
			{Length: intPtr(70), Price: decPtr("500"), Stock: intPtr(5)},
		},
	}, nil)
	require.NoError(t, err)
	v60 := created.Variants[0].ID

	resp, err := svc.SafeUpdate(ctx, created.DocumentID, SafeUpdateRequest{
		Version: intPtr(created.Version),
		Color:   strPtr("red"),
		Variants: []VariantInput{
			{ID: &v60, Stock: intPtr(7)},
			{Length: intPtr(80), Price: decPtr("600"), Stock: intPtr(3)},
		},
		Reason: "recount",
	}, nil)
	require.NoError(t, err)

	f := resp.Flower
	assert.Equal(t, "classic", f.Description, "absent fields are untouched")
	assert.Equal(t, "red", f.Color)
	assert.Equal(t, "rose", f.Slug)
	assert.Equal(t, created.Version+1, f.Version)
	require.Len(t, f.Variants, 3, "variants missing from the payload are kept")
	assert.Len(t, resp.Created, 1)
	require.Len(t, resp.Adjustments, 2)
	assert.Equal(t, StockAdjustment{VariantID: v60, Length: 60, Before: 10, After: 7, Delta: -3}, resp.Adjustments[0])

	loaded, err := svc.Get(ctx, created.DocumentID)
	require.NoError(t, err)
	assert.Equal(t, 7+5+3, loaded.TotalStock)

	ms := movements(t, db, created.ID)
	require.Len(t, ms, 4)
	for _, m := range ms {
		assert.Equal(t, m.BalanceBefore+m.Quantity, m.BalanceAfter)
	}
	assert.Contains(t, pub.types(), catalog.EventTypeFlowerUpdated)
}

func TestFlowerService_SafeUpdateRenameRegeneratesSlug(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	created, err := svc.Create(ctx, CreateFlowerRequest{Name: "Rose"}, nil)
	require.NoError(t, err)

	resp, err := svc.SafeUpdate(ctx, created.DocumentID, SafeUpdateRequest{Name: strPtr("Garden Rose")}, nil)
	require.NoError(t, err)

	assert.Equal(t, "garden-rose", resp.Flower.Slug)
	assert.Equal(t, created.DocumentID, resp.Flower.DocumentID, "document ID is stable across edits")
}

func TestFlowerService_SafeUpdateStaleVersion(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	created, err := svc.Create(ctx, CreateFlowerRequest{Name: "Rose"}, nil)
	require.NoError(t, err)

	_, err = svc.SafeUpdate(ctx, created.DocumentID, SafeUpdateRequest{Color: strPtr("white")}, nil)
	require.NoError(t, err)

	_, err = svc.SafeUpdate(ctx, created.DocumentID, SafeUpdateRequest{
		Version: intPtr(created.Version),
		Color:   strPtr("pink"),
	}, nil)
	assert.ErrorIs(t, err, shared.ErrConcurrencyConflict)
}

func TestFlowerService_SafeUpdateForeignVariant(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	created, err := svc.Create(ctx, CreateFlowerRequest{Name: "Rose"}, nil)
	require.NoError(t, err)

	foreign := uuid.New()
	_, err = svc.SafeUpdate(ctx, created.DocumentID, SafeUpdateRequest{
		Variants: []VariantInput{{ID: &foreign, Stock: intPtr(1)}},
	}, nil)

	var de *shared.DomainError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "VARIANT_NOT_FOUND", de.Code)
}

func TestFlowerService_DeleteVariant(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	created, err := svc.Create(ctx, CreateFlowerRequest{
		Name: "Rose",
		Variants: []VariantInput{
			{Length: intPtr(60), Stock: intPtr(4)},
			{Length: intPtr(70)},
		},
	}, nil)
	require.NoError(t, err)

	err = svc.DeleteVariant(ctx, created.DocumentID, created.Variants[0].ID)
	var de *shared.DomainError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "VARIANT_HAS_STOCK", de.Code)

	require.NoError(t, svc.DeleteVariant(ctx, created.DocumentID, created.Variants[1].ID))
	loaded, err := svc.Get(ctx, created.DocumentID)
	require.NoError(t, err)
	require.Len(t, loaded.Variants, 1)
	assert.Equal(t, 60, loaded.Variants[0].Length)
}

func TestFlowerService_ListPublishedAndInStock(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	hidden := false
	_, err := svc.Create(ctx, CreateFlowerRequest{Name: "Rose", Variants: []VariantInput{{Length: intPtr(60), Stock: intPtr(4)}}}, nil)
	require.NoError(t, err)
	_, err = svc.Create(ctx, CreateFlowerRequest{Name: "Tulip", Variants: []VariantInput{{Length: intPtr(40)}}}, nil)
	require.NoError(t, err)
	_, err = svc.Create(ctx, CreateFlowerRequest{Name: "Draft", Published: &hidden}, nil)
	require.NoError(t, err)

	all, total, err := svc.List(ctx, FlowerListFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Equal(t, "Rose", all[0].Name)

	inStock, total, err := svc.List(ctx, FlowerListFilter{InStock: true})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, "Rose", inStock[0].Name)

	_, total, err = svc.List(ctx, FlowerListFilter{All: true})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
}
