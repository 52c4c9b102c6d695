package persistence

import (
	"context"

	"github.com/flora/backend/internal/domain/pos"
	"github.com/flora/backend/internal/domain/shared"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormTransactionRepository implements pos.TransactionRepository using GORM
type GormTransactionRepository struct {
	db *gorm.DB
}

// NewGormTransactionRepository creates a new GormTransactionRepository
func NewGormTransactionRepository(db *gorm.DB) *GormTransactionRepository {
	return &GormTransactionRepository{db: db}
}

func (r *GormTransactionRepository) withItems(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Preload("Items", func(db *gorm.DB) *gorm.DB {
		return db.Order("flower_name ASC, length ASC")
	})
}

// FindByID loads a transaction with its items
func (r *GormTransactionRepository) FindByID(ctx context.Context, id uuid.UUID) (*pos.Transaction, error) {
	var t pos.Transaction
	if err := r.withItems(ctx).First(&t, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &t, nil
}

// FindByIDForUpdate loads and row-locks a transaction header, then its items
func (r *GormTransactionRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*pos.Transaction, error) {
	var t pos.Transaction
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&t, "id = ?", id).Error
	if err != nil {
		return nil, notFound(err)
	}
	if err := r.db.WithContext(ctx).
		Where("transaction_id = ?", t.ID).
		Order("flower_name ASC, length ASC").
		Find(&t.Items).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

// FindByIdempotencyKey finds the transaction created for a client retry key
func (r *GormTransactionRepository) FindByIdempotencyKey(ctx context.Context, key string) (*pos.Transaction, error) {
	var t pos.Transaction
	if err := r.withItems(ctx).First(&t, "idempotency_key = ?", key).Error; err != nil {
		return nil, notFound(err)
	}
	return &t, nil
}

// FindAll lists transactions with items
func (r *GormTransactionRepository) FindAll(ctx context.Context, filter pos.TransactionFilter) ([]pos.Transaction, int64, error) {
	query := r.db.WithContext(ctx).Model(&pos.Transaction{})
	if filter.Type != "" {
		query = query.Where("type = ?", filter.Type)
	}
	if filter.ShiftID != nil {
		query = query.Where("shift_id = ?", *filter.ShiftID)
	}
	if filter.CustomerID != nil {
		query = query.Where("customer_id = ?", *filter.CustomerID)
	}
	if filter.PaymentStatus != "" {
		query = query.Where("payment_status = ?", filter.PaymentStatus)
	}
	if filter.From != nil {
		query = query.Where("created_at >= ?", *filter.From)
	}
	if filter.To != nil {
		query = query.Where("created_at < ?", *filter.To)
	}
	if filter.Search != "" {
		query = query.Where(`LOWER(number) LIKE ? ESCAPE '\'`, likePattern(filter.Search))
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var txns []pos.Transaction
	err := paginate(query, filter.Filter, TransactionSortFields, "created_at").
		Preload("Items").
		Find(&txns).Error
	if err != nil {
		return nil, 0, err
	}
	return txns, total, nil
}

// FindByShift loads every transaction rung up in a shift plus earlier sales
// paid during it
func (r *GormTransactionRepository) FindByShift(ctx context.Context, shiftID uuid.UUID) ([]pos.Transaction, error) {
	var txns []pos.Transaction
	err := r.db.WithContext(ctx).
		Where("shift_id = ? OR paid_shift_id = ?", shiftID, shiftID).
		Order("created_at ASC").
		Find(&txns).Error
	return txns, err
}

// FindReturnsOf loads the return transactions linked to a sale
func (r *GormTransactionRepository) FindReturnsOf(ctx context.Context, originalID uuid.UUID) ([]pos.Transaction, error) {
	var txns []pos.Transaction
	err := r.withItems(ctx).
		Where("original_transaction_id = ?", originalID).
		Order("created_at ASC").
		Find(&txns).Error
	return txns, err
}

// Create inserts a transaction with its items
func (r *GormTransactionRepository) Create(ctx context.Context, t *pos.Transaction) error {
	return r.db.WithContext(ctx).Create(t).Error
}

// Save updates the header and the item return counters, guarded by version
func (r *GormTransactionRepository) Save(ctx context.Context, t *pos.Transaction) error {
	db := r.db.WithContext(ctx)
	result := db.Model(t).
		Omit(clause.Associations).
		Select("status", "payment_status", "payment_method", "paid_at", "paid_shift_id", "version", "updated_at").
		Where("version = ?", t.Version-1).
		Updates(t)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}

	for i := range t.Items {
		item := &t.Items[i]
		if err := db.Model(item).Select("returned_quantity").Updates(item).Error; err != nil {
			return err
		}
	}
	return nil
}

var _ pos.TransactionRepository = (*GormTransactionRepository)(nil)

// GormShiftRepository implements pos.ShiftRepository using GORM
type GormShiftRepository struct {
	db *gorm.DB
}

// NewGormShiftRepository creates a new GormShiftRepository
func NewGormShiftRepository(db *gorm.DB) *GormShiftRepository {
	return &GormShiftRepository{db: db}
}

// FindOpen returns the open shift or shared.ErrNotFound
func (r *GormShiftRepository) FindOpen(ctx context.Context) (*pos.Shift, error) {
	return r.findOpen(r.db.WithContext(ctx))
}

// FindOpenForUpdate returns the open shift with its row locked for update
func (r *GormShiftRepository) FindOpenForUpdate(ctx context.Context) (*pos.Shift, error) {
	return r.findOpen(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}))
}

func (r *GormShiftRepository) findOpen(db *gorm.DB) (*pos.Shift, error) {
	var s pos.Shift
	err := db.Where("status = ?", pos.ShiftStatusOpen).
		Order("opened_at DESC").
		First(&s).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &s, nil
}

// FindByID finds a shift by ID
func (r *GormShiftRepository) FindByID(ctx context.Context, id uuid.UUID) (*pos.Shift, error) {
	var s pos.Shift
	if err := r.db.WithContext(ctx).First(&s, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &s, nil
}

// FindByIDForShare finds a shift by ID holding a FOR SHARE lock. Concurrent
// sales share the lock; closing the shift waits for them.
func (r *GormShiftRepository) FindByIDForShare(ctx context.Context, id uuid.UUID) (*pos.Shift, error) {
	var s pos.Shift
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "SHARE"}).
		First(&s, "id = ?", id).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &s, nil
}

// FindAll lists shifts, newest first by default
func (r *GormShiftRepository) FindAll(ctx context.Context, filter shared.Filter) ([]pos.Shift, int64, error) {
	query := r.db.WithContext(ctx).Model(&pos.Shift{})
	if status, ok := filter.Filters["status"].(string); ok && status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var shifts []pos.Shift
	if err := paginate(query, filter, ShiftSortFields, "opened_at").Find(&shifts).Error; err != nil {
		return nil, 0, err
	}
	return shifts, total, nil
}

// Save inserts a new shift or updates an existing one guarded by version
func (r *GormShiftRepository) Save(ctx context.Context, s *pos.Shift) error {
	db := r.db.WithContext(ctx)
	if s.Version <= 1 {
		return db.Create(s).Error
	}
	result := db.Model(&pos.Shift{}).
		Where("id = ? AND version = ?", s.ID, s.Version-1).
		Select("*").
		Omit("id", "created_at").
		Updates(s)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	return nil
}

var _ pos.ShiftRepository = (*GormShiftRepository)(nil)
