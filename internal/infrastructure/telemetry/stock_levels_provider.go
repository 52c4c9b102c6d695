package telemetry

import (
	"context"

	"gorm.io/gorm"
)

// GormStockLevelsProvider aggregates flower_variants for the stock gauges
type GormStockLevelsProvider struct {
	db *gorm.DB
}

// NewGormStockLevelsProvider creates a new GormStockLevelsProvider
func NewGormStockLevelsProvider(db *gorm.DB) *GormStockLevelsProvider {
	return &GormStockLevelsProvider{db: db}
}

// StockLevels returns total stems and the count of variants at or below threshold.
// A negative threshold disables the low count.
func (p *GormStockLevelsProvider) StockLevels(ctx context.Context, threshold int) (int64, int64, error) {
	var row struct {
		Stems int64
		Low   int64
	}
	err := p.db.WithContext(ctx).
		Table("flower_variants").
		Select("COALESCE(SUM(stock), 0) AS stems, COALESCE(SUM(CASE WHEN stock <= ? THEN 1 ELSE 0 END), 0) AS low", threshold).
		Scan(&row).Error
	if err != nil {
		return 0, 0, err
	}
	return row.Stems, row.Low, nil
}

var _ StockLevelsProvider = (*GormStockLevelsProvider)(nil)
