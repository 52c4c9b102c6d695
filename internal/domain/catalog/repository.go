package catalog

import (
	"context"

	"github.com/flora/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// FlowerFilter narrows flower listings
type FlowerFilter struct {
	shared.Filter
	InStock       bool
	PublishedOnly bool
}

// FlowerRepository defines the interface for flower persistence
type FlowerRepository interface {
	// FindByID loads a flower with its variants
	FindByID(ctx context.Context, id uuid.UUID) (*Flower, error)

	// FindByDocumentID loads a flower by its public document ID
	FindByDocumentID(ctx context.Context, documentID string) (*Flower, error)

	// FindBySlug loads a flower by slug
	FindBySlug(ctx context.Context, slug string) (*Flower, error)

	// FindAll lists flowers with variants and returns the total count
	FindAll(ctx context.Context, filter FlowerFilter) ([]Flower, int64, error)

	// ExistsBySlug checks whether a slug is used by a flower other than excludeID
	ExistsBySlug(ctx context.Context, slug string, excludeID uuid.UUID) (bool, error)

	// Save creates or updates a flower and upserts its variants.
	// Updates are guarded by the aggregate version.
	Save(ctx context.Context, flower *Flower) error

	// DeleteVariant removes a variant row
	DeleteVariant(ctx context.Context, variantID uuid.UUID) error
}

// VariantRepository defines access to variants used by stock operations
type VariantRepository interface {
	// FindByIDs loads variants with their flower
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]Variant, error)

	// FindByIDsForUpdate loads and row-locks variants in ascending ID order.
	// Must be called inside a transaction.
	FindByIDsForUpdate(ctx context.Context, ids []uuid.UUID) ([]Variant, error)

	// FindByFlowerAndLength finds the variant of a flower with the given length
	FindByFlowerAndLength(ctx context.Context, flowerID uuid.UUID, length int) (*Variant, error)

	// FindAll loads every variant with its flower
	FindAll(ctx context.Context) ([]Variant, error)

	// Save creates or updates a variant row without touching the flower
	Save(ctx context.Context, variant *Variant) error
}
