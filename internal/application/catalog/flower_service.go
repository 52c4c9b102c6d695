package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	appshared "github.com/flora/backend/internal/application/shared"
	"github.com/flora/backend/internal/domain/catalog"
	"github.com/flora/backend/internal/domain/inventory"
	"github.com/flora/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// FlowerService handles catalog operations on flowers and their variants
type FlowerService struct {
	flowers        catalog.FlowerRepository
	scope          appshared.TransactionScope
	eventPublisher shared.EventPublisher
	logger         *zap.Logger
}

// NewFlowerService creates a new FlowerService
func NewFlowerService(flowers catalog.FlowerRepository, scope appshared.TransactionScope, logger *zap.Logger) *FlowerService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FlowerService{flowers: flowers, scope: scope, logger: logger}
}

// SetEventPublisher sets the event publisher for publishing domain events
func (s *FlowerService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// List returns a page of flowers
func (s *FlowerService) List(ctx context.Context, filter FlowerListFilter) ([]FlowerResponse, int64, error) {
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}
	if filter.OrderBy == "" {
		filter.OrderBy = "name"
	}
	if filter.OrderDir == "" {
		filter.OrderDir = "asc"
	}

	flowers, total, err := s.flowers.FindAll(ctx, catalog.FlowerFilter{
		Filter: shared.Filter{
			Page:     filter.Page,
			PageSize: filter.PageSize,
			OrderBy:  filter.OrderBy,
			OrderDir: filter.OrderDir,
			Search:   filter.Search,
		},
		InStock:       filter.InStock,
		PublishedOnly: !filter.All,
	})
	if err != nil {
		return nil, 0, err
	}

	out := make([]FlowerResponse, len(flowers))
	for i := range flowers {
		out[i] = ToFlowerResponse(&flowers[i])
	}
	return out, total, nil
}

// Get loads a flower by document ID, falling back to the slug
func (s *FlowerService) Get(ctx context.Context, key string) (*FlowerResponse, error) {
	f, err := s.flowers.FindByDocumentID(ctx, key)
	if errors.Is(err, shared.ErrNotFound) {
		f, err = s.flowers.FindBySlug(ctx, key)
	}
	if err != nil {
		return nil, err
	}
	resp := ToFlowerResponse(f)
	return &resp, nil
}

// Create adds a flower with a slug derived from its name. Initial stock is
// recorded as adjustment movements.
func (s *FlowerService) Create(ctx context.Context, req CreateFlowerRequest, operatorID *uuid.UUID) (*FlowerResponse, error) {
	var flower *catalog.Flower

	err := s.scope.Execute(ctx, func(repos appshared.Repositories) error {
		slug, err := catalog.UniqueSlug(ctx, req.Name, func(ctx context.Context, slug string) (bool, error) {
			return repos.Flowers().ExistsBySlug(ctx, slug, uuid.Nil)
		})
		if err != nil {
			return err
		}

		flower, err = catalog.NewFlower(req.Name, slug)
		if err != nil {
			return err
		}
		flower.ApplyDetails(catalog.FlowerDetails{
			Description: &req.Description,
			Color:       &req.Color,
			Country:     &req.Country,
			Images:      req.Images,
			Published:   req.Published,
		})

		var movements []*inventory.StockMovement
		for i, in := range req.Variants {
			if in.Length == nil {
				return shared.NewDomainError("INVALID_LENGTH", fmt.Sprintf("variants[%d]: length is required", i))
			}
			v, err := flower.AddVariant(*in.Length, valueOr(in.Price, decimal.Zero), intOr(in.Stock, 0))
			if err != nil {
				return err
			}
			if v.Stock > 0 {
				m, err := newAdjustment(flower, v, 0, v.Stock, "initial stock", operatorID)
				if err != nil {
					return err
				}
				movements = append(movements, m)
			}
		}

		if err := repos.Flowers().Save(ctx, flower); err != nil {
			return err
		}
		if len(movements) > 0 {
			return repos.Movements().Create(ctx, movements...)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("flower created", zap.String("document_id", flower.DocumentID), zap.String("slug", flower.Slug))
	appshared.PublishEvents(ctx, s.eventPublisher, flower)

	resp := ToFlowerResponse(flower)
	return &resp, nil
}

// SafeUpdate applies a partial update. Only fields present in the payload
// change; payload variants are matched by ID, then by length, and created
// when unmatched; variants absent from the payload are never deleted. Stock
// edits are recorded as adjustment movements.
func (s *FlowerService) SafeUpdate(ctx context.Context, documentID string, req SafeUpdateRequest, operatorID *uuid.UUID) (*SafeUpdateResponse, error) {
	var flower *catalog.Flower
	resp := &SafeUpdateResponse{Created: []uuid.UUID{}, Adjustments: []StockAdjustment{}}

	err := s.scope.Execute(ctx, func(repos appshared.Repositories) error {
		var err error
		flower, err = repos.Flowers().FindByDocumentID(ctx, documentID)
		if err != nil {
			return err
		}
		if req.Version != nil && *req.Version != flower.Version {
			return shared.ErrConcurrencyConflict
		}

		// stock values come from the locked rows, not from the preload
		ids := make([]uuid.UUID, len(flower.Variants))
		for i := range flower.Variants {
			ids[i] = flower.Variants[i].ID
		}
		locked, err := repos.Variants().FindByIDsForUpdate(ctx, ids)
		if err != nil {
			return err
		}
		for _, lv := range locked {
			if v := flower.VariantByID(lv.ID); v != nil {
				v.Stock = lv.Stock
				v.Price = lv.Price
			}
		}

		if req.Name != nil && strings.TrimSpace(*req.Name) != flower.Name {
			slug, err := catalog.UniqueSlug(ctx, *req.Name, func(ctx context.Context, slug string) (bool, error) {
				return repos.Flowers().ExistsBySlug(ctx, slug, flower.ID)
			})
			if err != nil {
				return err
			}
			if err := flower.Rename(*req.Name, slug); err != nil {
				return err
			}
		}
		flower.ApplyDetails(catalog.FlowerDetails{
			Description: req.Description,
			Color:       req.Color,
			Country:     req.Country,
			Images:      req.Images,
			Published:   req.Published,
		})

		reason := strings.TrimSpace(req.Reason)
		if reason == "" {
			reason = "flower edit"
		}
		var movements []*inventory.StockMovement
		for i, in := range req.Variants {
			m, err := s.applyVariant(flower, in, reason, operatorID, resp)
			if err != nil {
				return fmt.Errorf("variants[%d]: %w", i, err)
			}
			if m != nil {
				movements = append(movements, m)
			}
		}

		flower.MarkUpdated()
		if err := repos.Flowers().Save(ctx, flower); err != nil {
			return err
		}
		if len(movements) > 0 {
			return repos.Movements().Create(ctx, movements...)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("flower updated",
		zap.String("document_id", flower.DocumentID),
		zap.Int("version", flower.Version),
		zap.Int("created_variants", len(resp.Created)),
		zap.Int("stock_adjustments", len(resp.Adjustments)),
	)
	appshared.PublishEvents(ctx, s.eventPublisher, flower)

	resp.Flower = ToFlowerResponse(flower)
	return resp, nil
}

func (s *FlowerService) applyVariant(f *catalog.Flower, in VariantInput, reason string, operatorID *uuid.UUID, resp *SafeUpdateResponse) (*inventory.StockMovement, error) {
	var v *catalog.Variant
	switch {
	case in.ID != nil:
		if v = f.VariantByID(*in.ID); v == nil {
			return nil, shared.NewDomainError("VARIANT_NOT_FOUND", "Variant does not belong to this flower")
		}
	case in.Length != nil:
		v = f.VariantByLength(*in.Length)
	default:
		return nil, shared.NewDomainError("INVALID_VARIANT", "Variant needs an id or a length")
	}

	if v == nil {
		created, err := f.AddVariant(*in.Length, valueOr(in.Price, decimal.Zero), intOr(in.Stock, 0))
		if err != nil {
			return nil, err
		}
		resp.Created = append(resp.Created, created.ID)
		if created.Stock == 0 {
			return nil, nil
		}
		resp.Adjustments = append(resp.Adjustments, StockAdjustment{
			VariantID: created.ID, Length: created.Length, Before: 0, After: created.Stock, Delta: created.Stock,
		})
		return newAdjustment(f, created, 0, created.Stock, reason, operatorID)
	}

	if in.Length != nil && *in.Length != v.Length {
		if other := f.VariantByLength(*in.Length); other != nil {
			return nil, shared.NewDomainError("DUPLICATE_VARIANT", "Variant with this length already exists")
		}
		if *in.Length <= 0 {
			return nil, shared.NewDomainError("INVALID_LENGTH", "Stem length must be positive")
		}
		v.Length = *in.Length
	}
	if in.Price != nil {
		if err := v.SetPrice(*in.Price); err != nil {
			return nil, err
		}
	}
	if in.Stock == nil {
		return nil, nil
	}

	before := v.Stock
	delta, err := v.SetStock(*in.Stock)
	if err != nil || delta == 0 {
		return nil, err
	}
	resp.Adjustments = append(resp.Adjustments, StockAdjustment{
		VariantID: v.ID, Length: v.Length, Before: before, After: v.Stock, Delta: delta,
	})
	return newAdjustment(f, v, before, delta, reason, operatorID)
}

// DeleteVariant removes a variant without stock from a flower
func (s *FlowerService) DeleteVariant(ctx context.Context, documentID string, variantID uuid.UUID) error {
	var flower *catalog.Flower

	err := s.scope.Execute(ctx, func(repos appshared.Repositories) error {
		var err error
		flower, err = repos.Flowers().FindByDocumentID(ctx, documentID)
		if err != nil {
			return err
		}
		locked, err := repos.Variants().FindByIDsForUpdate(ctx, []uuid.UUID{variantID})
		if err != nil {
			return err
		}
		for _, lv := range locked {
			if v := flower.VariantByID(lv.ID); v != nil {
				v.Stock = lv.Stock
			}
		}

		if err := flower.RemoveVariant(variantID); err != nil {
			return err
		}
		if err := repos.Flowers().DeleteVariant(ctx, variantID); err != nil {
			return err
		}
		return repos.Flowers().Save(ctx, flower)
	})
	if err != nil {
		return err
	}

	appshared.PublishEvents(ctx, s.eventPublisher, flower)
	return nil
}

func newAdjustment(f *catalog.Flower, v *catalog.Variant, before, delta int, reason string, operatorID *uuid.UUID) (*inventory.StockMovement, error) {
	return inventory.NewStockMovement(inventory.MovementInput{
		VariantID:     v.ID,
		FlowerID:      f.ID,
		Type:          inventory.MovementTypeAdjustment,
		Quantity:      delta,
		BalanceBefore: before,
		SourceType:    inventory.SourceFlowerEdit,
		SourceID:      f.ID,
		Reason:        reason,
		OperatorID:    operatorID,
	})
}

func valueOr(d *decimal.Decimal, def decimal.Decimal) decimal.Decimal {
	if d == nil {
		return def
	}
	return *d
}

func intOr(n *int, def int) int {
	if n == nil {
		return def
	}
	return *n
}
