package persistence

import (
	"context"

	"github.com/flora/backend/internal/domain/catalog"
	"github.com/flora/backend/internal/domain/shared"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormFlowerRepository implements catalog.FlowerRepository using GORM
type GormFlowerRepository struct {
	db *gorm.DB
}

// NewGormFlowerRepository creates a new GormFlowerRepository
func NewGormFlowerRepository(db *gorm.DB) *GormFlowerRepository {
	return &GormFlowerRepository{db: db}
}

func (r *GormFlowerRepository) withVariants(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Preload("Variants", func(db *gorm.DB) *gorm.DB {
		return db.Order("length ASC")
	})
}

// FindByID loads a flower with its variants
func (r *GormFlowerRepository) FindByID(ctx context.Context, id uuid.UUID) (*catalog.Flower, error) {
	var f catalog.Flower
	if err := r.withVariants(ctx).First(&f, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &f, nil
}

// FindByDocumentID loads a flower by its public document ID
func (r *GormFlowerRepository) FindByDocumentID(ctx context.Context, documentID string) (*catalog.Flower, error) {
	var f catalog.Flower
	if err := r.withVariants(ctx).First(&f, "document_id = ?", documentID).Error; err != nil {
		return nil, notFound(err)
	}
	return &f, nil
}

// FindBySlug loads a flower by slug
func (r *GormFlowerRepository) FindBySlug(ctx context.Context, slug string) (*catalog.Flower, error) {
	var f catalog.Flower
	if err := r.withVariants(ctx).First(&f, "slug = ?", slug).Error; err != nil {
		return nil, notFound(err)
	}
	return &f, nil
}

// FindAll lists flowers with variants and returns the total count
func (r *GormFlowerRepository) FindAll(ctx context.Context, filter catalog.FlowerFilter) ([]catalog.Flower, int64, error) {
	query := r.db.WithContext(ctx).Model(&catalog.Flower{})
	if filter.Search != "" {
		query = query.Where(`LOWER(name) LIKE ? ESCAPE '\'`, likePattern(filter.Search))
	}
	if filter.PublishedOnly {
		query = query.Where("published = ?", true)
	}
	if filter.InStock {
		query = query.Where("EXISTS (SELECT 1 FROM flower_variants v WHERE v.flower_id = flowers.id AND v.stock > 0)")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var flowers []catalog.Flower
	err := paginate(query, filter.Filter, FlowerSortFields, "name").
		Preload("Variants", func(db *gorm.DB) *gorm.DB { return db.Order("length ASC") }).
		Find(&flowers).Error
	if err != nil {
		return nil, 0, err
	}
	return flowers, total, nil
}

// ExistsBySlug checks whether a slug is used by a flower other than excludeID
func (r *GormFlowerRepository) ExistsBySlug(ctx context.Context, slug string, excludeID uuid.UUID) (bool, error) {
	var count int64
	query := r.db.WithContext(ctx).Model(&catalog.Flower{}).Where("slug = ?", slug)
	if excludeID != uuid.Nil {
		query = query.Where("id <> ?", excludeID)
	}
	if err := query.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Save creates or updates a flower and upserts its variants.
// A flower at version 1 is inserted; later versions update the row whose
// stored version is one behind, and fail with a concurrency conflict otherwise.
func (r *GormFlowerRepository) Save(ctx context.Context, f *catalog.Flower) error {
	db := r.db.WithContext(ctx)

	if f.Version <= 1 {
		if err := db.Omit(clause.Associations).Create(f).Error; err != nil {
			return err
		}
	} else {
		result := db.Model(f).
			Omit(clause.Associations).
			Select("name", "slug", "description", "color", "country", "images", "published", "version", "updated_at").
			Where("version = ?", f.Version-1).
			Updates(f)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return shared.ErrConcurrencyConflict
		}
	}

	variants := NewGormVariantRepository(r.db)
	for i := range f.Variants {
		f.Variants[i].FlowerID = f.ID
		if err := variants.Save(ctx, &f.Variants[i]); err != nil {
			return err
		}
	}
	return nil
}

// DeleteVariant removes a variant row
func (r *GormFlowerRepository) DeleteVariant(ctx context.Context, variantID uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&catalog.Variant{}, "id = ?", variantID)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

var _ catalog.FlowerRepository = (*GormFlowerRepository)(nil)

// GormVariantRepository implements catalog.VariantRepository using GORM
type GormVariantRepository struct {
	db *gorm.DB
}

// NewGormVariantRepository creates a new GormVariantRepository
func NewGormVariantRepository(db *gorm.DB) *GormVariantRepository {
	return &GormVariantRepository{db: db}
}

// FindByIDs loads variants with their flower
func (r *GormVariantRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]catalog.Variant, error) {
	if len(ids) == 0 {
		return []catalog.Variant{}, nil
	}
	var variants []catalog.Variant
	err := r.db.WithContext(ctx).
		Preload("Flower").
		Where("id IN ?", ids).
		Order("id ASC").
		Find(&variants).Error
	return variants, err
}

// FindByIDsForUpdate loads and row-locks variants in ascending ID order so
// concurrent stock operations acquire locks in the same sequence.
func (r *GormVariantRepository) FindByIDsForUpdate(ctx context.Context, ids []uuid.UUID) ([]catalog.Variant, error) {
	if len(ids) == 0 {
		return []catalog.Variant{}, nil
	}
	var variants []catalog.Variant
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id IN ?", ids).
		Order("id ASC").
		Find(&variants).Error
	if err != nil {
		return nil, err
	}
	if err := r.attachFlowers(ctx, variants); err != nil {
		return nil, err
	}
	return variants, nil
}

// attachFlowers loads owning flowers without locking them
func (r *GormVariantRepository) attachFlowers(ctx context.Context, variants []catalog.Variant) error {
	if len(variants) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, 0, len(variants))
	for _, v := range variants {
		ids = append(ids, v.FlowerID)
	}
	var flowers []catalog.Flower
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&flowers).Error; err != nil {
		return err
	}
	byID := make(map[uuid.UUID]*catalog.Flower, len(flowers))
	for i := range flowers {
		byID[flowers[i].ID] = &flowers[i]
	}
	for i := range variants {
		variants[i].Flower = byID[variants[i].FlowerID]
	}
	return nil
}

// FindByFlowerAndLength finds the variant of a flower with the given length
func (r *GormVariantRepository) FindByFlowerAndLength(ctx context.Context, flowerID uuid.UUID, length int) (*catalog.Variant, error) {
	var v catalog.Variant
	err := r.db.WithContext(ctx).
		Preload("Flower").
		Where("flower_id = ? AND length = ?", flowerID, length).
		First(&v).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &v, nil
}

// FindAll loads every variant with its flower
func (r *GormVariantRepository) FindAll(ctx context.Context) ([]catalog.Variant, error) {
	var variants []catalog.Variant
	err := r.db.WithContext(ctx).
		Preload("Flower").
		Order("flower_id ASC, length ASC").
		Find(&variants).Error
	return variants, err
}

// Save creates or updates a variant row without touching the flower
func (r *GormVariantRepository) Save(ctx context.Context, v *catalog.Variant) error {
	return r.db.WithContext(ctx).Omit("Flower").Save(v).Error
}

var _ catalog.VariantRepository = (*GormVariantRepository)(nil)
