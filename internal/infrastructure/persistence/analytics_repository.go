package persistence

import (
	"context"
	"time"

	"github.com/flora/backend/internal/domain/analytics"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// GormAnalyticsRepository implements analytics.Repository with read-only projections
type GormAnalyticsRepository struct {
	db *gorm.DB
}

// NewGormAnalyticsRepository creates a new GormAnalyticsRepository
func NewGormAnalyticsRepository(db *gorm.DB) *GormAnalyticsRepository {
	return &GormAnalyticsRepository{db: db}
}

// TransactionFacts lists transactions created in [from, to)
func (r *GormAnalyticsRepository) TransactionFacts(ctx context.Context, from, to time.Time) ([]analytics.TransactionFact, error) {
	var facts []analytics.TransactionFact
	err := r.db.WithContext(ctx).
		Table("pos_transactions").
		Select("id, type, payment_status, payment_method, total, created_at").
		Where("created_at >= ? AND created_at < ?", from, to).
		Order("created_at ASC").
		Scan(&facts).Error
	return facts, err
}

// ItemFacts lists transaction lines created in [from, to)
func (r *GormAnalyticsRepository) ItemFacts(ctx context.Context, from, to time.Time) ([]analytics.ItemFact, error) {
	var facts []analytics.ItemFact
	err := r.db.WithContext(ctx).
		Table("pos_transaction_items i").
		Select("t.type AS transaction_type, i.flower_id, i.flower_name, i.quantity, i.total, t.created_at").
		Joins("JOIN pos_transactions t ON t.id = i.transaction_id").
		Where("t.created_at >= ? AND t.created_at < ?", from, to).
		Scan(&facts).Error
	return facts, err
}

// VariantLevels lists the current stock of every variant
func (r *GormAnalyticsRepository) VariantLevels(ctx context.Context) ([]analytics.VariantLevel, error) {
	var levels []analytics.VariantLevel
	err := r.db.WithContext(ctx).
		Table("flower_variants v").
		Select("v.id AS variant_id, v.flower_id, f.document_id, f.name AS flower_name, f.slug, v.length, v.stock, v.price").
		Joins("JOIN flowers f ON f.id = v.flower_id").
		Order("f.name ASC, v.length ASC").
		Scan(&levels).Error
	return levels, err
}

// PendingPayments sums what is still owed for sales on credit: pending
// sale totals minus the returns already made against them
func (r *GormAnalyticsRepository) PendingPayments(ctx context.Context) (analytics.PendingPayments, error) {
	var sales struct {
		Count int64
		Total decimal.Decimal
	}
	err := r.db.WithContext(ctx).
		Table("pos_transactions").
		Select("COUNT(*) AS count, COALESCE(SUM(total), 0) AS total").
		Where("type = ? AND payment_status = ?", "sale", "pending").
		Scan(&sales).Error
	if err != nil {
		return analytics.PendingPayments{}, err
	}

	var returned struct {
		Total decimal.Decimal
	}
	err = r.db.WithContext(ctx).
		Table("pos_transactions r").
		Select("COALESCE(SUM(r.total), 0) AS total").
		Joins("JOIN pos_transactions o ON o.id = r.original_transaction_id").
		Where("r.type = ? AND o.payment_status = ?", "return", "pending").
		Scan(&returned).Error
	if err != nil {
		return analytics.PendingPayments{}, err
	}

	return analytics.PendingPayments{Count: sales.Count, Total: sales.Total.Sub(returned.Total)}, nil
}

var _ analytics.Repository = (*GormAnalyticsRepository)(nil)
