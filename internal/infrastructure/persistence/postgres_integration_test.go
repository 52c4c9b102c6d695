//go:build integration

package persistence_test

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	apppos "github.com/flora/backend/internal/application/pos"
	"github.com/flora/backend/internal/domain/catalog"
	"github.com/flora/backend/internal/domain/pos"
	"github.com/flora/backend/internal/domain/shared"
	"github.com/flora/backend/internal/infrastructure/cache"
	"github.com/flora/backend/internal/infrastructure/config"
	"github.com/flora/backend/internal/infrastructure/migration"
	"github.com/flora/backend/internal/infrastructure/persistence"
	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// newPostgres starts a PostgreSQL container and applies the embedded migrations
func newPostgres(t *testing.T) *gorm.DB {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("flora_test"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("flora"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err, "Failed to start PostgreSQL container")
	t.Cleanup(func() {
		_ = container.Terminate(context.Background())
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	// the migrator closes its connection when done
	sqlDB, err := sql.Open("postgres", dsn)
	require.NoError(t, err)
	m, err := migration.NewEmbedded(sqlDB, nil)
	require.NoError(t, err)
	require.NoError(t, m.Up())
	require.NoError(t, m.Close())

	db, err := persistence.Open(gormpostgres.Open(dsn), &config.DatabaseConfig{MaxOpenConns: 20, MaxIdleConns: 5})
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db.DB
}

func TestPostgres_MigratedSchemaMatchesModels(t *testing.T) {
	db := newPostgres(t)
	ctx := context.Background()
	repo := persistence.NewGormFlowerRepository(db)

	f, err := catalog.NewFlower("Rose Explorer", "rose-explorer")
	require.NoError(t, err)
	_, err = f.AddVariant(60, decimal.RequireFromString("450"), 100)
	require.NoError(t, err)
	_, err = f.AddVariant(70, decimal.RequireFromString("520"), 40)
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, f))

	loaded, err := repo.FindByDocumentID(ctx, f.DocumentID)
	require.NoError(t, err)
	assert.Equal(t, "Rose Explorer", loaded.Name)
	assert.Len(t, loaded.Variants, 2)

	exists, err := repo.ExistsBySlug(ctx, "rose-explorer", uuid.Nil)
	require.NoError(t, err)
	assert.True(t, exists)

	_, err = repo.FindByDocumentID(ctx, "missing")
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestPostgres_ConcurrentSalesNeverOversell(t *testing.T) {
	db := newPostgres(t)
	ctx := context.Background()

	f, err := catalog.NewFlower("Tulip", "tulip")
	require.NoError(t, err)
	v, err := f.AddVariant(40, decimal.RequireFromString("300"), 20)
	require.NoError(t, err)
	variantID := v.ID
	require.NoError(t, persistence.NewGormFlowerRepository(db).Save(ctx, f))

	locker := cache.NewInMemoryLocker()
	svc := apppos.NewTransactionService(
		persistence.NewGormTransactionRepository(db),
		persistence.NewGormShiftRepository(db),
		persistence.NewGormCustomerRepository(db),
		persistence.NewGormTransactionScope(db),
		locker,
		apppos.Options{LowStockThreshold: -1, AutoOpenShift: true},
		nil,
	)
	shifts := apppos.NewShiftService(persistence.NewGormShiftRepository(db), persistence.NewGormTransactionScope(db), locker, time.Minute, nil)
	_, err = shifts.Open(ctx, apppos.OpenShiftRequest{}, uuid.New())
	require.NoError(t, err)

	op := pos.Operator{ID: uuid.New(), Kind: pos.OperatorAdmin}
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		failures  []error
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.CreateSale(ctx, apppos.CreateSaleRequest{
				Items:         []apppos.SaleItemRequest{{VariantID: variantID, Quantity: 3}},
				PaymentMethod: "cash",
			}, op)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failures = append(failures, err)
				return
			}
			succeeded++
		}()
	}
	wg.Wait()

	assert.Equal(t, 6, succeeded)
	for _, err := range failures {
		var de *shared.DomainError
		require.ErrorAs(t, err, &de)
		assert.Contains(t, []string{"INSUFFICIENT_STOCK", "LOCKED"}, de.Code)
	}

	variants, err := persistence.NewGormVariantRepository(db).FindByIDs(ctx, []uuid.UUID{variantID})
	require.NoError(t, err)
	require.Len(t, variants, 1)
	assert.Equal(t, 2, variants[0].Stock)
}
