package persistence

import (
	"fmt"

	"github.com/flora/backend/internal/domain/catalog"
	"github.com/flora/backend/internal/domain/identity"
	"github.com/flora/backend/internal/domain/inventory"
	"github.com/flora/backend/internal/domain/pos"
	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Models lists every persisted type in dependency order
func Models() []any {
	return []any{
		&catalog.Flower{},
		&catalog.Variant{},
		&inventory.StockMovement{},
		&inventory.Supply{},
		&inventory.SupplyRow{},
		&identity.Customer{},
		&identity.AdminUser{},
		&pos.Shift{},
		&pos.Transaction{},
		&pos.TransactionItem{},
	}
}

// OpenSQLiteMemory opens an isolated in-memory SQLite database with the
// schema created from the models. Used by service and handler tests.
func OpenSQLiteMemory() (*gorm.DB, error) {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=1", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// a single connection keeps the shared in-memory database alive and
	// serializes writers the way row locks do on PostgreSQL
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(Models()...); err != nil {
		return nil, fmt.Errorf("failed to migrate sqlite schema: %w", err)
	}
	return db, nil
}
