package persistence

import (
	"context"

	"github.com/flora/backend/internal/domain/inventory"
	"github.com/flora/backend/internal/domain/shared"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStockMovementRepository implements inventory.StockMovementRepository using GORM
type GormStockMovementRepository struct {
	db *gorm.DB
}

// NewGormStockMovementRepository creates a new GormStockMovementRepository
func NewGormStockMovementRepository(db *gorm.DB) *GormStockMovementRepository {
	return &GormStockMovementRepository{db: db}
}

// Create appends movements to the ledger
func (r *GormStockMovementRepository) Create(ctx context.Context, movements ...*inventory.StockMovement) error {
	if len(movements) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(movements).Error
}

// FindAll lists ledger rows, newest first by default
func (r *GormStockMovementRepository) FindAll(ctx context.Context, filter inventory.MovementFilter) ([]inventory.StockMovement, int64, error) {
	query := r.db.WithContext(ctx).Model(&inventory.StockMovement{})
	if filter.VariantID != nil {
		query = query.Where("variant_id = ?", *filter.VariantID)
	}
	if filter.FlowerID != nil {
		query = query.Where("flower_id = ?", *filter.FlowerID)
	}
	if filter.SourceType != "" {
		query = query.Where("source_type = ?", filter.SourceType)
	}
	if filter.SourceID != nil {
		query = query.Where("source_id = ?", *filter.SourceID)
	}
	if filter.Type != "" {
		query = query.Where("type = ?", filter.Type)
	}
	if filter.From != nil {
		query = query.Where("created_at >= ?", *filter.From)
	}
	if filter.To != nil {
		query = query.Where("created_at < ?", *filter.To)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var movements []inventory.StockMovement
	if err := paginate(query, filter.Filter, MovementSortFields, "created_at").Find(&movements).Error; err != nil {
		return nil, 0, err
	}
	return movements, total, nil
}

var _ inventory.StockMovementRepository = (*GormStockMovementRepository)(nil)

// GormSupplyRepository implements inventory.SupplyRepository using GORM
type GormSupplyRepository struct {
	db *gorm.DB
}

// NewGormSupplyRepository creates a new GormSupplyRepository
func NewGormSupplyRepository(db *gorm.DB) *GormSupplyRepository {
	return &GormSupplyRepository{db: db}
}

// FindByID loads a supply with its rows
func (r *GormSupplyRepository) FindByID(ctx context.Context, id uuid.UUID) (*inventory.Supply, error) {
	var s inventory.Supply
	err := r.db.WithContext(ctx).
		Preload("Rows", func(db *gorm.DB) *gorm.DB { return db.Order("flower_name ASC, length ASC") }).
		First(&s, "id = ?", id).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &s, nil
}

// FindAll lists supplies with rows
func (r *GormSupplyRepository) FindAll(ctx context.Context, filter inventory.SupplyFilter) ([]inventory.Supply, int64, error) {
	query := r.db.WithContext(ctx).Model(&inventory.Supply{})
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Search != "" {
		query = query.Where(`(LOWER(supplier) LIKE ? ESCAPE '\' OR LOWER(number) LIKE ? ESCAPE '\')`,
			likePattern(filter.Search), likePattern(filter.Search))
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var supplies []inventory.Supply
	err := paginate(query, filter.Filter, SupplySortFields, "created_at").
		Preload("Rows").
		Find(&supplies).Error
	if err != nil {
		return nil, 0, err
	}
	return supplies, total, nil
}

// Save creates a supply with rows, or updates the header and rows of an
// existing one guarded by its version
func (r *GormSupplyRepository) Save(ctx context.Context, s *inventory.Supply) error {
	db := r.db.WithContext(ctx)
	if s.Version <= 1 {
		return db.Create(s).Error
	}

	result := db.Model(s).
		Omit(clause.Associations).
		Select("status", "received_at", "received_by", "notes", "version", "updated_at").
		Where("version = ?", s.Version-1).
		Updates(s)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}

	for i := range s.Rows {
		row := &s.Rows[i]
		err := db.Model(row).
			Select("flower_id", "variant_id").
			Updates(row).Error
		if err != nil {
			return err
		}
	}
	return nil
}

var _ inventory.SupplyRepository = (*GormSupplyRepository)(nil)
